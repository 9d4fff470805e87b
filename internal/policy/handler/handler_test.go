package handler

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/suite"
	"go.uber.org/mock/gomock"

	"casekeeper/internal/authz"
	"casekeeper/internal/policy/handler/mocks"
	"casekeeper/internal/policy/models"
	dErrors "casekeeper/pkg/domain-errors"
	"casekeeper/pkg/testutil"
)

//go:generate mockgen -source=handler.go -destination=mocks/policy-mocks.go -package=mocks Service
type PolicyHandlerSuite struct {
	suite.Suite
	service *mocks.MockService
	router  chi.Router
	admin   *authz.Principal
}

func TestPolicyHandlerSuite(t *testing.T) {
	suite.Run(t, new(PolicyHandlerSuite))
}

func (s *PolicyHandlerSuite) SetupTest() {
	ctrl := gomock.NewController(s.T())
	s.service = mocks.NewMockService(ctrl)
	s.admin = &authz.Principal{UserID: "admin-1", Role: authz.Admin{}, Tenant: "Org1MSP"}

	h := New(s.service, slog.New(slog.NewTextHandler(io.Discard, nil)))
	r := chi.NewRouter()
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			next.ServeHTTP(w, testutil.WithPrincipal(req, s.admin))
		})
	})
	h.Register(r)
	s.router = r
}

func (s *PolicyHandlerSuite) do(method, path string, body []byte) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, bytes.NewReader(body))
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	return rec
}

func (s *PolicyHandlerSuite) TestCreatePolicy() {
	s.Run("created", func() {
		s.service.EXPECT().CreatePolicy(gomock.Any(), s.admin, gomock.Any()).
			DoAndReturn(func(_ any, _ *authz.Principal, req models.CreatePolicyRequest) (*models.Policy, error) {
				s.Equal("Court only", req.Name)
				s.JSONEq(`["Evidence"]`, string(req.Categories))
				return &models.Policy{ID: "p-1", PolicyID: "policy-1-abcdef", Name: req.Name, State: models.StateActive}, nil
			})

		rec := s.do(http.MethodPost, "/admin/policies", []byte(`{"name":"Court only","categories":["Evidence"],"rules":[]}`))
		s.Equal(http.StatusCreated, rec.Code)
		var got map[string]any
		s.Require().NoError(json.Unmarshal(rec.Body.Bytes(), &got))
		s.Equal("policy-1-abcdef", got["policy_id"])
		s.Equal("active", got["state"])
	})

	s.Run("ledger unavailable is 503", func() {
		s.service.EXPECT().CreatePolicy(gomock.Any(), gomock.Any(), gomock.Any()).
			Return(nil, dErrors.New(dErrors.CodeLedgerUnavailable, "failed to create policy in ledger: ledger unavailable"))
		rec := s.do(http.MethodPost, "/admin/policies", []byte(`{"name":"x"}`))
		s.Equal(http.StatusServiceUnavailable, rec.Code)
		s.Contains(rec.Body.String(), "ledger_unavailable")
	})

	s.Run("malformed body", func() {
		rec := s.do(http.MethodPost, "/admin/policies", []byte(`{`))
		s.Equal(http.StatusBadRequest, rec.Code)
	})
}

func (s *PolicyHandlerSuite) TestListSelectable() {
	s.service.EXPECT().ListSelectable(gomock.Any(), s.admin).Return([]*models.Policy{{ID: "p-1", Name: "A"}}, nil)
	rec := s.do(http.MethodGet, "/policies", nil)
	s.Equal(http.StatusOK, rec.Code)
	s.Contains(rec.Body.String(), `"policies"`)
}

func (s *PolicyHandlerSuite) TestListPoliciesForbidden() {
	s.service.EXPECT().ListPolicies(gomock.Any(), gomock.Any()).Return(nil, dErrors.New(dErrors.CodeForbidden, "role investigator may not manage_policies"))
	rec := s.do(http.MethodGet, "/admin/policies", nil)
	s.Equal(http.StatusForbidden, rec.Code)
}

func (s *PolicyHandlerSuite) TestGetPolicy() {
	s.service.EXPECT().GetPolicy(gomock.Any(), s.admin, "p-1").Return(&models.Policy{ID: "p-1", State: models.StatePending}, nil)
	rec := s.do(http.MethodGet, "/admin/policies/p-1", nil)
	s.Equal(http.StatusOK, rec.Code)
	s.Contains(rec.Body.String(), `"pending"`)

	s.service.EXPECT().GetPolicy(gomock.Any(), s.admin, "nope").Return(nil, dErrors.New(dErrors.CodeNotFound, "policy not found"))
	s.Equal(http.StatusNotFound, s.do(http.MethodGet, "/admin/policies/nope", nil).Code)
}
