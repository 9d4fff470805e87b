package models

import (
	"strings"

	dErrors "casekeeper/pkg/domain-errors"
)

const (
	maxTitleLength       = 200
	maxDescriptionLength = 10000
	maxUpdateLength      = 5000
)

// UploadFile is one submitted file, already read from the transport.
type UploadFile struct {
	Name        string
	ContentType string
	Data        []byte
}

type CreateCaseRequest struct {
	Title       string
	Description string
	Priority    Priority
	// PolicyID is the internal id of the selected access policy.
	PolicyID string
	Files    []UploadFile
}

func (r *CreateCaseRequest) Normalize() {
	r.Title = strings.TrimSpace(r.Title)
	r.Description = strings.TrimSpace(r.Description)
	r.PolicyID = strings.TrimSpace(r.PolicyID)
	if r.Priority == "" {
		r.Priority = PriorityMedium
	}
}

func (r *CreateCaseRequest) Validate() error {
	if r.Title == "" {
		return dErrors.New(dErrors.CodeValidation, "title is required")
	}
	if len(r.Title) > maxTitleLength {
		return dErrors.New(dErrors.CodeValidation, "title is too long")
	}
	if len(r.Description) > maxDescriptionLength {
		return dErrors.New(dErrors.CodeValidation, "description is too long")
	}
	if !r.Priority.IsValid() {
		return dErrors.Newf(dErrors.CodeValidation, "invalid priority %q", r.Priority)
	}
	if r.PolicyID == "" {
		return dErrors.New(dErrors.CodeValidation, "please select an access policy")
	}
	return nil
}

type UpdateCaseRequest struct {
	Title       *string   `json:"title,omitempty"`
	Description *string   `json:"description,omitempty"`
	Priority    *Priority `json:"priority,omitempty"`
	Status      *Status   `json:"status,omitempty"`
}

// Changes validates the request and returns the normalized field changes.
func (r UpdateCaseRequest) Changes() (FieldChanges, error) {
	var out FieldChanges
	if r.Title != nil {
		t := strings.TrimSpace(*r.Title)
		if t == "" {
			return out, dErrors.New(dErrors.CodeValidation, "title cannot be empty")
		}
		if len(t) > maxTitleLength {
			return out, dErrors.New(dErrors.CodeValidation, "title is too long")
		}
		out.Title = &t
	}
	if r.Description != nil {
		d := strings.TrimSpace(*r.Description)
		if len(d) > maxDescriptionLength {
			return out, dErrors.New(dErrors.CodeValidation, "description is too long")
		}
		out.Description = &d
	}
	if r.Priority != nil {
		if !r.Priority.IsValid() {
			return out, dErrors.Newf(dErrors.CodeValidation, "invalid priority %q", *r.Priority)
		}
		out.Priority = r.Priority
	}
	if r.Status != nil {
		if !r.Status.IsValid() {
			return out, dErrors.Newf(dErrors.CodeValidation, "invalid status %q", *r.Status)
		}
		out.Status = r.Status
	}
	if out.IsEmpty() {
		return out, dErrors.New(dErrors.CodeValidation, "no changes provided")
	}
	return out, nil
}

// ValidateUpdateText trims and checks a case update note.
func ValidateUpdateText(text string) (string, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return "", dErrors.New(dErrors.CodeValidation, "update text is required")
	}
	if len(text) > maxUpdateLength {
		return "", dErrors.New(dErrors.CodeValidation, "update text is too long")
	}
	return text, nil
}
