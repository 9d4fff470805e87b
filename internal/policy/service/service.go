// Package service is the policy orchestrator: a local record and its ledger
// counterpart are created together or not at all.
package service

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"casekeeper/internal/authz"
	"casekeeper/internal/ledger"
	"casekeeper/internal/platform/metrics"
	"casekeeper/internal/policy/models"
	dErrors "casekeeper/pkg/domain-errors"
	"casekeeper/pkg/platform/audit"
	"casekeeper/pkg/platform/sentinel"
	"casekeeper/pkg/requestcontext"
)

type Store interface {
	Create(ctx context.Context, p *models.Policy) error
	Activate(ctx context.Context, id, ledgerPolicyID string, at time.Time) error
	Delete(ctx context.Context, id string) error
	FindByID(ctx context.Context, id string) (*models.Policy, error)
	List(ctx context.Context, activeOnly bool) ([]*models.Policy, error)
}

type LedgerClient interface {
	CreatePolicy(ctx context.Context, policyID string, categories, rules json.RawMessage, tenant string) (string, error)
}

type Authorizer interface {
	Check(ctx context.Context, p *authz.Principal, action authz.Action) (authz.Scope, error)
}

type AuditPublisher interface {
	Emit(ctx context.Context, event audit.Event) error
}

type Service struct {
	store          Store
	ledger         LedgerClient
	gate           Authorizer
	logger         *slog.Logger
	auditPublisher AuditPublisher
	metrics        *metrics.Metrics
	compensateWait time.Duration
}

type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

func WithAuditPublisher(publisher AuditPublisher) Option {
	return func(s *Service) {
		s.auditPublisher = publisher
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

// New constructs a Service.
func New(store Store, ledger LedgerClient, gate Authorizer, opts ...Option) *Service {
	s := &Service{
		store:          store,
		ledger:         ledger,
		gate:           gate,
		logger:         slog.Default(),
		compensateWait: 10 * time.Second,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// CreatePolicy persists a pending record, creates the policy in the ledger,
// then activates the record. On ledger failure the record is deleted and the
// ledger's failure is returned.
func (s *Service) CreatePolicy(ctx context.Context, p *authz.Principal, req models.CreatePolicyRequest) (*models.Policy, error) {
	if _, err := s.gate.Check(ctx, p, authz.ActionManagePolicies); err != nil {
		return nil, err
	}
	req.Normalize()
	if err := req.Validate(); err != nil {
		return nil, err
	}

	now := requestcontext.Now(ctx)
	policyID, err := newPolicyID(now)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to generate policy id")
	}
	policy := &models.Policy{
		ID:          uuid.NewString(),
		PolicyID:    policyID,
		Name:        req.Name,
		Description: req.Description,
		Categories:  req.Categories,
		Rules:       req.Rules,
		CreatedBy:   p.UserID,
		CreatedAt:   now,
		State:       models.StatePending,
	}

	if err := s.store.Create(ctx, policy); err != nil {
		if errors.Is(err, sentinel.ErrConflict) {
			return nil, dErrors.New(dErrors.CodeConflict, "policy id already exists")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to save policy")
	}

	ledgerPolicyID, err := s.ledger.CreatePolicy(ctx, policy.PolicyID, policy.Categories, policy.Rules, p.Tenant)
	if err != nil {
		s.compensate(ctx, p, policy, err)
		return nil, ledger.ToDomain(err, "failed to create policy in ledger")
	}

	if err := s.store.Activate(ctx, policy.ID, ledgerPolicyID, now); err != nil {
		// The ledger holds the policy; the record stays pending and is never offered.
		s.logger.ErrorContext(ctx, "policy created in ledger but activation failed",
			"policy_id", policy.PolicyID,
			"ledger_policy_id", ledgerPolicyID,
			"error", err,
			"request_id", requestcontext.RequestID(ctx),
		)
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to activate policy")
	}
	policy.State = models.StateActive
	policy.LedgerPolicyID = ledgerPolicyID

	s.metrics.IncPoliciesCreated()
	s.logger.InfoContext(ctx, "policy created",
		"policy_id", policy.PolicyID,
		"created_by", p.UserID,
		"tenant", p.Tenant,
		"request_id", requestcontext.RequestID(ctx),
	)
	s.logAudit(ctx, audit.Event{
		ActorID: p.UserID,
		Subject: policy.PolicyID,
		Action:  string(audit.EventPolicyCreated),
		Tenant:  p.Tenant,
	})
	return policy, nil
}

// compensate removes the pending record. It runs detached from the request so
// a caller that went away cannot leave a record without a ledger policy.
func (s *Service) compensate(ctx context.Context, p *authz.Principal, policy *models.Policy, cause error) {
	cctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.compensateWait)
	defer cancel()

	requestID := requestcontext.RequestID(ctx)
	if err := s.store.Delete(cctx, policy.ID); err != nil && !errors.Is(err, sentinel.ErrNotFound) {
		s.logger.ErrorContext(ctx, "policy compensation failed; pending record remains",
			"policy_id", policy.PolicyID,
			"error", err,
			"request_id", requestID,
		)
	}
	s.metrics.IncPolicyCompensations()
	s.logger.WarnContext(ctx, "policy creation rolled back after ledger failure",
		"policy_id", policy.PolicyID,
		"ledger_error", cause,
		"request_id", requestID,
	)
	s.logAudit(cctx, audit.Event{
		ActorID: p.UserID,
		Subject: policy.PolicyID,
		Action:  string(audit.EventPolicyCompensated),
		Reason:  ledger.Reason(cause),
		Tenant:  p.Tenant,
	})
}

// ListPolicies returns every policy for administrators.
func (s *Service) ListPolicies(ctx context.Context, p *authz.Principal) ([]*models.Policy, error) {
	if _, err := s.gate.Check(ctx, p, authz.ActionManagePolicies); err != nil {
		return nil, err
	}
	policies, err := s.store.List(ctx, false)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list policies")
	}
	return policies, nil
}

// GetPolicy returns one policy, in any state, for administrators.
func (s *Service) GetPolicy(ctx context.Context, p *authz.Principal, id string) (*models.Policy, error) {
	if _, err := s.gate.Check(ctx, p, authz.ActionManagePolicies); err != nil {
		return nil, err
	}
	policy, err := s.store.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "policy not found")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load policy")
	}
	return policy, nil
}

// ListSelectable returns the policies a case may be created under.
func (s *Service) ListSelectable(ctx context.Context, p *authz.Principal) ([]*models.Policy, error) {
	if _, err := s.gate.Check(ctx, p, authz.ActionSelectPolicy); err != nil {
		return nil, err
	}
	policies, err := s.store.List(ctx, true)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list policies")
	}
	return policies, nil
}

// ResolveSelectable looks up an active policy by its internal id. Pending or
// missing policies are both "not found".
func (s *Service) ResolveSelectable(ctx context.Context, id string) (*models.Policy, error) {
	policy, err := s.store.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeValidation, "selected policy not found")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load policy")
	}
	if !policy.IsSelectable() {
		return nil, dErrors.New(dErrors.CodeValidation, "selected policy not found")
	}
	return policy, nil
}

func (s *Service) logAudit(ctx context.Context, event audit.Event) {
	if s.auditPublisher == nil {
		return
	}
	event.RequestID = requestcontext.RequestID(ctx)
	if err := s.auditPublisher.Emit(ctx, event); err != nil {
		s.logger.ErrorContext(ctx, "failed to emit audit event",
			"action", event.Action,
			"error", err,
			"request_id", event.RequestID,
		)
	}
}

func newPolicyID(now time.Time) (string, error) {
	suffix, err := randomHex(3)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("policy-%d-%s", now.UnixMilli(), suffix), nil
}

func randomHex(n int) (string, error) {
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}
