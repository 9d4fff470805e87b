package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"casekeeper/internal/authz"
	"casekeeper/internal/policy/models"
	dErrors "casekeeper/pkg/domain-errors"
	"casekeeper/pkg/platform/httputil"
	"casekeeper/pkg/requestcontext"
)

const maxPolicyBody = 1 << 20

// Service defines the interface for policy operations.
type Service interface {
	CreatePolicy(ctx context.Context, p *authz.Principal, req models.CreatePolicyRequest) (*models.Policy, error)
	ListPolicies(ctx context.Context, p *authz.Principal) ([]*models.Policy, error)
	GetPolicy(ctx context.Context, p *authz.Principal, id string) (*models.Policy, error)
	ListSelectable(ctx context.Context, p *authz.Principal) ([]*models.Policy, error)
}

// Handler handles policy endpoints.
type Handler struct {
	policies Service
	logger   *slog.Logger
}

func New(policies Service, logger *slog.Logger) *Handler {
	return &Handler{policies: policies, logger: logger}
}

// Register mounts policy routes. The router must already authenticate.
func (h *Handler) Register(r chi.Router) {
	r.Post("/admin/policies", h.handleCreatePolicy)
	r.Get("/admin/policies", h.handleListPolicies)
	r.Get("/admin/policies/{policyID}", h.handleGetPolicy)
	r.Get("/policies", h.handleListSelectable)
}

type policyListResponse struct {
	Policies []*models.Policy `json:"policies"`
}

func (h *Handler) handleCreatePolicy(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	var req models.CreatePolicyRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxPolicyBody)).Decode(&req); err != nil {
		h.logger.WarnContext(ctx, "invalid create policy request",
			"request_id", requestID,
			"error", err.Error(),
		)
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid request body"))
		return
	}

	policy, err := h.policies.CreatePolicy(ctx, authz.PrincipalFrom(ctx), req)
	if err != nil {
		h.logFailure(ctx, "failed to create policy", err)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, policy)
}

func (h *Handler) handleListPolicies(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	policies, err := h.policies.ListPolicies(ctx, authz.PrincipalFrom(ctx))
	if err != nil {
		h.logFailure(ctx, "failed to list policies", err)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, policyListResponse{Policies: policies})
}

func (h *Handler) handleGetPolicy(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	policy, err := h.policies.GetPolicy(ctx, authz.PrincipalFrom(ctx), chi.URLParam(r, "policyID"))
	if err != nil {
		h.logFailure(ctx, "failed to load policy", err)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, policy)
}

func (h *Handler) handleListSelectable(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	policies, err := h.policies.ListSelectable(ctx, authz.PrincipalFrom(ctx))
	if err != nil {
		h.logFailure(ctx, "failed to list selectable policies", err)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, policyListResponse{Policies: policies})
}

func (h *Handler) logFailure(ctx context.Context, msg string, err error) {
	level := slog.LevelWarn
	if httputil.StatusFor(dErrors.CodeOf(err)) >= http.StatusInternalServerError {
		level = slog.LevelError
	}
	h.logger.Log(ctx, level, msg,
		"error", err,
		"request_id", requestcontext.RequestID(ctx),
	)
}
