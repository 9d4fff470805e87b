// Package service turns an authenticated user id into a request Principal.
package service

import (
	"context"
	"errors"
	"log/slog"

	"casekeeper/internal/authz"
	"casekeeper/internal/identity/models"
	dErrors "casekeeper/pkg/domain-errors"
	"casekeeper/pkg/platform/sentinel"
	"casekeeper/pkg/requestcontext"
)

type Directory interface {
	FindByID(ctx context.Context, id string) (*models.User, error)
}

type Service struct {
	directory Directory
	tenants   TenantResolver
	logger    *slog.Logger
}

type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

func New(directory Directory, tenants TenantResolver, opts ...Option) *Service {
	s := &Service{directory: directory, tenants: tenants, logger: slog.Default()}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Principal loads the user and builds the caller identity for this request.
// Block and approval state are carried, not enforced; the authz gate decides.
func (s *Service) Principal(ctx context.Context, userID string) (*authz.Principal, error) {
	user, err := s.directory.FindByID(ctx, userID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeUnauthorized, "unknown user")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load user")
	}

	role, err := user.AuthzRole()
	if err != nil {
		s.logger.WarnContext(ctx, "user has unsupported role",
			"user_id", user.ID,
			"role", user.Role,
			"request_id", requestcontext.RequestID(ctx),
		)
		return nil, dErrors.Wrap(err, dErrors.CodeForbidden, "unsupported role")
	}

	return &authz.Principal{
		UserID:       user.ID,
		UserName:     user.UserName,
		Role:         role,
		Approved:     user.IsApproved,
		Blocked:      user.IsBlocked,
		Tenant:       s.tenants.Resolve(user),
		Jurisdiction: user.Jurisdiction,
	}, nil
}
