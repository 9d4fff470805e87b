package models

import (
	"bytes"
	"encoding/json"
	"strings"

	dErrors "casekeeper/pkg/domain-errors"
)

const maxPolicyNameLength = 120

// Normalize trims input and defaults missing arrays to empty ones.
func (r *CreatePolicyRequest) Normalize() {
	r.Name = strings.TrimSpace(r.Name)
	r.Description = strings.TrimSpace(r.Description)
	if len(bytes.TrimSpace(r.Categories)) == 0 {
		r.Categories = json.RawMessage("[]")
	}
	if len(bytes.TrimSpace(r.Rules)) == 0 {
		r.Rules = json.RawMessage("[]")
	}
}

func (r *CreatePolicyRequest) Validate() error {
	if r.Name == "" {
		return dErrors.New(dErrors.CodeValidation, "name is required")
	}
	if len(r.Name) > maxPolicyNameLength {
		return dErrors.New(dErrors.CodeValidation, "name is too long")
	}
	if !isJSONArray(r.Categories) {
		return dErrors.New(dErrors.CodeValidation, "categories must be a JSON array")
	}
	if !isJSONArray(r.Rules) {
		return dErrors.New(dErrors.CodeValidation, "rules must be a JSON array")
	}
	return nil
}

func isJSONArray(raw json.RawMessage) bool {
	var arr []json.RawMessage
	return json.Unmarshal(raw, &arr) == nil && arr != nil
}
