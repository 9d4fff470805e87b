// Package middleware authenticates bearer tokens and attaches the Principal.
package middleware

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"casekeeper/internal/authz"
	jwttoken "casekeeper/internal/jwt_token"
	dErrors "casekeeper/pkg/domain-errors"
	"casekeeper/pkg/platform/httputil"
	"casekeeper/pkg/requestcontext"
)

// TokenValidator defines the interface for validating JWT tokens
type TokenValidator interface {
	ValidateToken(tokenString string) (*jwttoken.Claims, error)
}

type PrincipalSource interface {
	Principal(ctx context.Context, userID string) (*authz.Principal, error)
}

// RequireAuth rejects requests without a valid bearer token and attaches the
// caller's Principal to the request context.
func RequireAuth(validator TokenValidator, principals PrincipalSource, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			requestID := requestcontext.RequestID(ctx)

			token, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
			if !ok || token == "" {
				logger.WarnContext(ctx, "unauthorized access - missing token", "request_id", requestID)
				httputil.WriteError(w, dErrors.New(dErrors.CodeUnauthorized, "Missing or invalid Authorization header"))
				return
			}

			claims, err := validator.ValidateToken(token)
			if err != nil {
				logger.WarnContext(ctx, "unauthorized access - invalid token", "error", err, "request_id", requestID)
				httputil.WriteError(w, err)
				return
			}

			principal, err := principals.Principal(ctx, claims.UserID)
			if err != nil {
				logger.WarnContext(ctx, "unauthorized access - principal unavailable",
					"user_id", claims.UserID,
					"error", err,
					"request_id", requestID,
				)
				httputil.WriteError(w, err)
				return
			}

			next.ServeHTTP(w, r.WithContext(authz.WithPrincipal(ctx, principal)))
		})
	}
}
