package authz

import (
	"context"
	"log/slog"

	"casekeeper/internal/platform/metrics"
	dErrors "casekeeper/pkg/domain-errors"
	"casekeeper/pkg/platform/audit"
	"casekeeper/pkg/requestcontext"
)

type Action string

const (
	// ActionManagePolicies covers creating policies and listing all of them.
	ActionManagePolicies Action = "manage_policies"
	// ActionSelectPolicy lists policies offered for case creation.
	ActionSelectPolicy Action = "select_policy"
	ActionCreateCase   Action = "create_case"
	ActionReadCase     Action = "read_case"
	// ActionMutateCase covers field updates, update notes, and document add/remove.
	ActionMutateCase Action = "mutate_case"
)

type ScopeKind int

const (
	ScopeNone ScopeKind = iota
	ScopeAll
	ScopeOwn
	ScopeDistrict
	ScopeState
)

func (k ScopeKind) String() string {
	switch k {
	case ScopeAll:
		return "all"
	case ScopeOwn:
		return "own"
	case ScopeDistrict:
		return "district"
	case ScopeState:
		return "state"
	default:
		return "none"
	}
}

// Scope restricts which cases an allowed action may touch. Stores turn it
// into a query filter.
type Scope struct {
	Kind     ScopeKind
	UserID   string
	State    string
	District string
}

func AllScope() Scope { return Scope{Kind: ScopeAll} }

// Matches reports whether a case with the given owner and jurisdiction is in scope.
func (s Scope) Matches(assignedTo string, j Jurisdiction) bool {
	switch s.Kind {
	case ScopeAll:
		return true
	case ScopeOwn:
		return s.UserID != "" && assignedTo == s.UserID
	case ScopeDistrict:
		return s.District != "" && j.District == s.District
	case ScopeState:
		return s.State != "" && j.State == s.State
	default:
		return false
	}
}

type AuditPublisher interface {
	Emit(ctx context.Context, event audit.Event) error
}

// Gate is the single authorization decision point.
type Gate struct {
	logger  *slog.Logger
	auditor AuditPublisher
	metrics *metrics.Metrics
}

type Option func(*Gate)

func WithLogger(logger *slog.Logger) Option {
	return func(g *Gate) {
		g.logger = logger
	}
}

func WithAuditPublisher(p AuditPublisher) Option {
	return func(g *Gate) {
		g.auditor = p
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(g *Gate) {
		g.metrics = m
	}
}

func NewGate(opts ...Option) *Gate {
	g := &Gate{logger: slog.Default()}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Authorize decides whether p may perform action and, if so, within which scope.
// It is pure; use Check to also log and audit denials.
func Authorize(p *Principal, action Action) (Scope, error) {
	if p == nil || p.Role == nil {
		return Scope{}, dErrors.New(dErrors.CodeUnauthorized, "authentication required")
	}
	if p.Blocked {
		return Scope{}, dErrors.New(dErrors.CodeForbidden, "account is blocked")
	}
	if _, admin := p.Role.(Admin); !admin && !p.Approved {
		return Scope{}, dErrors.New(dErrors.CodeForbidden, "account is pending approval")
	}

	denied := dErrors.Newf(dErrors.CodeForbidden, "role %s may not %s", p.Role.Name(), action)

	switch r := p.Role.(type) {
	case Admin:
		switch action {
		case ActionManagePolicies, ActionSelectPolicy, ActionReadCase:
			return AllScope(), nil
		}
	case Investigator:
		switch action {
		case ActionSelectPolicy:
			return AllScope(), nil
		case ActionCreateCase, ActionReadCase, ActionMutateCase:
			return Scope{Kind: ScopeOwn, UserID: r.UserID}, nil
		}
	case Judiciary:
		if action == ActionReadCase {
			return judiciaryScope(r), nil
		}
	case Forensics:
	}
	return Scope{}, denied
}

func judiciaryScope(j Judiciary) Scope {
	switch j.Level {
	case LevelDistrict:
		if j.Jurisdiction.District == "" {
			return Scope{Kind: ScopeNone}
		}
		return Scope{Kind: ScopeDistrict, District: j.Jurisdiction.District}
	case LevelState:
		if j.Jurisdiction.State == "" {
			return Scope{Kind: ScopeNone}
		}
		return Scope{Kind: ScopeState, State: j.Jurisdiction.State}
	case LevelNational:
		return AllScope()
	default:
		return Scope{Kind: ScopeNone}
	}
}

// Check is Authorize plus denial logging, metrics, and an authorization_denied audit event.
func (g *Gate) Check(ctx context.Context, p *Principal, action Action) (Scope, error) {
	scope, err := Authorize(p, action)
	if err == nil {
		return scope, nil
	}

	actor, role := "", "anonymous"
	if p != nil {
		actor = p.UserID
		if p.Role != nil {
			role = p.Role.Name()
		}
	}
	requestID := requestcontext.RequestID(ctx)
	g.logger.WarnContext(ctx, "authorization denied",
		"user_id", actor,
		"role", role,
		"action", string(action),
		"reason", dErrors.MessageOf(err),
		"request_id", requestID,
	)
	g.metrics.IncAuthorizationDenied(string(action))
	if g.auditor != nil && p != nil {
		if aerr := g.auditor.Emit(ctx, audit.Event{
			ActorID:   actor,
			Subject:   string(action),
			Action:    string(audit.EventAuthorizationDenied),
			Reason:    dErrors.MessageOf(err),
			Tenant:    p.Tenant,
			RequestID: requestID,
		}); aerr != nil {
			g.logger.ErrorContext(ctx, "failed to emit audit event", "error", aerr, "request_id", requestID)
		}
	}
	return scope, err
}
