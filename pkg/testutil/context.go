package testutil

import (
	"net/http"

	"casekeeper/internal/authz"
)

// WithPrincipal attaches p to the request, as the identity middleware would.
func WithPrincipal(req *http.Request, p *authz.Principal) *http.Request {
	return req.WithContext(authz.WithPrincipal(req.Context(), p))
}
