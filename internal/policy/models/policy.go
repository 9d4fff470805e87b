package models

import (
	"encoding/json"
	"time"
)

// State tracks a policy through its two-step creation.
type State string

const (
	// StatePending is a local record whose ledger creation has not resolved.
	StatePending State = "pending"
	// StateActive policies exist in the ledger and may be selected for cases.
	StateActive State = "active"
)

// Policy is the local mirror of an access policy held by the ledger.
type Policy struct {
	ID string `json:"id"`
	// PolicyID is generated here and shared with the ledger. Immutable.
	PolicyID       string          `json:"policy_id"`
	LedgerPolicyID string          `json:"ledger_policy_id,omitempty"`
	Name           string          `json:"name"`
	Description    string          `json:"description,omitempty"`
	Categories     json.RawMessage `json:"categories"`
	Rules          json.RawMessage `json:"rules"`
	CreatedBy      string          `json:"created_by"`
	CreatedAt      time.Time       `json:"created_at"`
	State          State           `json:"state"`
}

// IsSelectable reports whether cases may reference this policy.
func (p *Policy) IsSelectable() bool {
	return p.State == StateActive
}

// LedgerID is the id documents are stored under in the ledger.
func (p *Policy) LedgerID() string {
	if p.LedgerPolicyID != "" {
		return p.LedgerPolicyID
	}
	return p.PolicyID
}

type CreatePolicyRequest struct {
	Name        string          `json:"name" yaml:"name"`
	Description string          `json:"description" yaml:"description"`
	Categories  json.RawMessage `json:"categories" yaml:"-"`
	Rules       json.RawMessage `json:"rules" yaml:"-"`
}
