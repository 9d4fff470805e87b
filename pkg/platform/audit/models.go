package audit

import (
	"context"
	"time"
)

// EventCategory classifies audit events by their primary purpose.
// Categories drive retention and routing downstream of the outbox.
type EventCategory string

const (
	// CategoryCompliance covers evidentiary chain-of-custody actions: policy
	// creation and compensation, documents attached to or removed from a case.
	CategoryCompliance EventCategory = "compliance"

	// CategorySecurity covers denials: role/jurisdiction rejections and
	// ledger-side policy denials on artifact reads.
	CategorySecurity EventCategory = "security"

	// CategoryOperations covers routine reads and partial failures that are
	// useful for debugging the ledger integration.
	CategoryOperations EventCategory = "operations"
)

// Event is emitted from domain logic to capture key actions. Keep it
// transport-agnostic so stores and sinks can fan out.
type Event struct {
	Category  EventCategory
	Timestamp time.Time
	// ActorID is the user who performed the action.
	ActorID string
	// Subject is the primary resource touched (case id, policy id, record id).
	Subject string
	Action  string
	Reason  string
	// Tenant is the organizational scope presented to the ledger, when one was used.
	Tenant    string
	RequestID string
}

type AuditEvent string

const (
	EventPolicyCreated     AuditEvent = "policy_created"
	EventPolicyCompensated AuditEvent = "policy_compensated"

	EventCaseCreated       AuditEvent = "case_created"
	EventCaseUpdated       AuditEvent = "case_updated"
	EventDocumentsAttached AuditEvent = "documents_attached"
	EventDocumentRemoved   AuditEvent = "document_removed"
	EventDocumentStoreFail AuditEvent = "document_store_failed"

	EventDocumentFetched     AuditEvent = "document_fetched"
	EventDocumentFetchDenied AuditEvent = "document_fetch_denied"
	EventCaseArchived        AuditEvent = "case_archived"
	EventAuthorizationDenied AuditEvent = "authorization_denied"
)

var eventCategories = map[AuditEvent]EventCategory{
	EventPolicyCreated:     CategoryCompliance,
	EventPolicyCompensated: CategoryCompliance,
	EventCaseCreated:       CategoryCompliance,
	EventDocumentsAttached: CategoryCompliance,
	EventDocumentRemoved:   CategoryCompliance,

	EventDocumentFetchDenied: CategorySecurity,
	EventAuthorizationDenied: CategorySecurity,

	EventCaseUpdated:       CategoryOperations,
	EventDocumentStoreFail: CategoryOperations,
	EventDocumentFetched:   CategoryOperations,
	EventCaseArchived:      CategoryOperations,
}

// Category returns the EventCategory for this audit event.
// Unknown events default to CategoryOperations.
func (e AuditEvent) Category() EventCategory {
	if cat, ok := eventCategories[e]; ok {
		return cat
	}
	return CategoryOperations
}

// Store persists audit events.
type Store interface {
	Append(ctx context.Context, event Event) error
}
