package models

import (
	"time"

	"casekeeper/internal/authz"
)

type Priority string

const (
	PriorityHigh   Priority = "high"
	PriorityMedium Priority = "medium"
	PriorityLow    Priority = "low"
)

func (p Priority) IsValid() bool {
	switch p {
	case PriorityHigh, PriorityMedium, PriorityLow:
		return true
	}
	return false
}

type Status string

const (
	StatusOpen               Status = "open"
	StatusUnderInvestigation Status = "under_investigation"
	StatusPendingReview      Status = "pending_review"
	StatusClosed             Status = "closed"
)

func (s Status) IsValid() bool {
	switch s {
	case StatusOpen, StatusUnderInvestigation, StatusPendingReview, StatusClosed:
		return true
	}
	return false
}

// Case is the metadata aggregate. Evidence bytes live in the ledger; the case
// only holds record ids the ledger confirmed.
type Case struct {
	ID          string   `json:"id" bson:"_id"`
	CaseNumber  string   `json:"case_number" bson:"caseNumber"`
	Title       string   `json:"title" bson:"title"`
	Description string   `json:"description" bson:"description"`
	Priority    Priority `json:"priority" bson:"priority"`
	Status      Status   `json:"status" bson:"status"`
	// AssignedTo is the owning investigator. Set once.
	AssignedTo string `json:"assigned_to" bson:"assignedTo"`
	// Jurisdiction is copied from the investigator at creation and never re-derived.
	Jurisdiction authz.Jurisdiction `json:"jurisdiction" bson:"jurisdiction"`
	PolicyID     string             `json:"policy_id" bson:"policyId"`
	// LedgerPolicyID is the policy's ledger-facing id, captured at creation.
	LedgerPolicyID string     `json:"ledger_policy_id" bson:"ledgerPolicyId"`
	Documents      []Document `json:"documents" bson:"documents"`
	Updates        []Update   `json:"updates" bson:"updates"`
	CreatedAt      time.Time  `json:"created_at" bson:"createdAt"`
	UpdatedAt      time.Time  `json:"updated_at" bson:"updatedAt"`
}

type Document struct {
	ID          string    `json:"id" bson:"id"`
	Name        string    `json:"name" bson:"name"`
	ContentType string    `json:"content_type" bson:"contentType"`
	RecordID    string    `json:"record_id" bson:"recordId"`
	Size        int64     `json:"size" bson:"size"`
	UploadedAt  time.Time `json:"uploaded_at" bson:"uploadedAt"`
	UploadedBy  string    `json:"uploaded_by" bson:"uploadedBy"`
}

type Update struct {
	Text      string    `json:"text" bson:"text"`
	Timestamp time.Time `json:"timestamp" bson:"timestamp"`
	UpdatedBy string    `json:"updated_by" bson:"updatedBy"`
}

// DocumentByID returns the referenced document, if present.
func (c *Case) DocumentByID(id string) (Document, bool) {
	for _, d := range c.Documents {
		if d.ID == id {
			return d, true
		}
	}
	return Document{}, false
}

// FieldChanges is a partial update of the mutable case fields.
type FieldChanges struct {
	Title       *string
	Description *string
	Priority    *Priority
	Status      *Status
}

func (f FieldChanges) IsEmpty() bool {
	return f.Title == nil && f.Description == nil && f.Priority == nil && f.Status == nil
}
