package httptransport

import (
	"bytes"
	"io"
	"log/slog"
	"net/http"
	"testing"
	"time"

	"github.com/klauspost/compress/zip"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"casekeeper/internal/authz"
	casehandler "casekeeper/internal/cases/handler"
	casemodels "casekeeper/internal/cases/models"
	caseservice "casekeeper/internal/cases/service"
	casestore "casekeeper/internal/cases/store"
	identitymw "casekeeper/internal/identity/middleware"
	identitymodels "casekeeper/internal/identity/models"
	identityservice "casekeeper/internal/identity/service"
	identitystore "casekeeper/internal/identity/store"
	jwttoken "casekeeper/internal/jwt_token"
	"casekeeper/internal/ledger"
	"casekeeper/internal/ledger/ledgertest"
	"casekeeper/internal/platform/config"
	policyhandler "casekeeper/internal/policy/handler"
	policymodels "casekeeper/internal/policy/models"
	policyservice "casekeeper/internal/policy/service"
	policystore "casekeeper/internal/policy/store"
	"casekeeper/pkg/testutil"
)

type apiFixture struct {
	router http.Handler
	ledger *ledgertest.Fake
	tokens map[string]string
}

func newAPIFixture(t *testing.T) *apiFixture {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	north := authz.Jurisdiction{State: "Westland", District: "DistrictPoliceA"}
	south := authz.Jurisdiction{State: "Westland", District: "DistrictPoliceB"}
	users := identitystore.NewInMemoryUserStore(
		&identitymodels.User{ID: "u-admin", UserName: "admin", Role: identitymodels.RoleAdmin, IsApproved: true},
		&identitymodels.User{ID: "u-inv", UserName: "ines", Role: identitymodels.RoleInvestigator, Jurisdiction: north, IsApproved: true},
		&identitymodels.User{ID: "u-judge-n", UserName: "judge-n", Role: identitymodels.RoleJudiciary, JurisdictionLevel: "district", Jurisdiction: north, IsApproved: true},
		&identitymodels.User{ID: "u-judge-s", UserName: "judge-s", Role: identitymodels.RoleJudiciary, JurisdictionLevel: "district", Jurisdiction: south, IsApproved: true},
		&identitymodels.User{ID: "u-blocked", UserName: "blocked", Role: identitymodels.RoleInvestigator, IsApproved: true, IsBlocked: true},
	)
	tenants := identityservice.NewTenantResolver(config.TenantConfig{
		ByDistrict: map[string]string{"DistrictPoliceA": "Org1MSP", "DistrictPoliceB": "Org2MSP"},
		Default:    "Org1MSP",
		Forensics:  "Org2MSP",
	})
	identity := identityservice.New(users, tenants, identityservice.WithLogger(logger))

	fake := ledgertest.New()
	gate := authz.NewGate(authz.WithLogger(logger))
	policies := policyservice.New(policystore.NewInMemoryPolicyStore(), fake, gate, policyservice.WithLogger(logger))
	cases := caseservice.New(casestore.NewInMemoryCaseStore(), policies, fake, gate, caseservice.WithLogger(logger))

	jwt := jwttoken.NewJWTService("test-signing-key", "casekeeper")
	tokens := map[string]string{}
	for _, id := range []string{"u-admin", "u-inv", "u-judge-n", "u-judge-s", "u-blocked"} {
		tok, err := jwt.GenerateAccessToken(id, time.Hour)
		require.NoError(t, err)
		tokens[id] = tok
	}

	router := NewRouter(Deps{
		Logger: logger,
		Auth:   identitymw.RequireAuth(jwt, identity, logger),
		Features: []Registrar{
			policyhandler.New(policies, logger),
			casehandler.New(cases, logger),
		},
	})
	return &apiFixture{router: router, ledger: fake, tokens: tokens}
}

func (f *apiFixture) as(userID string, req *http.Request) *http.Request {
	return testutil.WithBearer(req, f.tokens[userID])
}

func TestCaseLifecycleOverHTTP(t *testing.T) {
	f := newAPIFixture(t)
	f.ledger.RejectFile("b.pdf", "file type not permitted")

	rr := testutil.DoRequest(f.router, f.as("u-admin", testutil.NewJSONRequest(t, http.MethodPost, "/admin/policies", map[string]any{
		"name":       "District A police",
		"categories": []string{"Evidence"},
		"rules":      []map[string]any{{"org": "Org1MSP", "read": true}},
	})))
	testutil.AssertStatus(t, rr, http.StatusCreated)
	policy := testutil.UnmarshalResponse[policymodels.Policy](t, rr)
	assert.Equal(t, policymodels.StateActive, policy.State)

	rr = testutil.DoRequest(f.router, f.as("u-inv", testutil.NewMultipartRequest(t, http.MethodPost, "/cases",
		map[string]string{"title": "Warehouse break-in", "policy_id": policy.ID},
		"documents[]",
		testutil.UploadFile{Name: "a.pdf", Data: []byte("%PDF-a")},
		testutil.UploadFile{Name: "b.pdf", Data: []byte("%PDF-b")},
	)))
	testutil.AssertStatus(t, rr, http.StatusCreated)
	created := testutil.UnmarshalResponse[casemodels.CreateCaseResult](t, rr)
	require.Len(t, created.Case.Documents, 1)
	require.Len(t, created.Report.Failed, 1)
	assert.Equal(t, "b.pdf", created.Report.Failed[0].Name)
	caseID := created.Case.ID
	docID := created.Case.Documents[0].ID

	t.Run("document downloads through the ledger", func(t *testing.T) {
		rr := testutil.DoRequest(f.router, f.as("u-inv", testutil.NewJSONRequest(t, http.MethodGet, "/cases/"+caseID+"/documents/"+docID, nil)))
		testutil.AssertStatus(t, rr, http.StatusOK)
		assert.Equal(t, "%PDF-a", rr.Body.String())
	})

	t.Run("archive is a valid zip", func(t *testing.T) {
		rr := testutil.DoRequest(f.router, f.as("u-inv", testutil.NewJSONRequest(t, http.MethodGet, "/cases/"+caseID+"/archive", nil)))
		testutil.AssertStatus(t, rr, http.StatusOK)
		body := rr.Body.Bytes()
		zr, err := zip.NewReader(bytes.NewReader(body), int64(len(body)))
		require.NoError(t, err)
		assert.Len(t, zr.File, 2)
	})

	t.Run("district judge sees own district only", func(t *testing.T) {
		rr := testutil.DoRequest(f.router, f.as("u-judge-n", testutil.NewJSONRequest(t, http.MethodGet, "/cases/"+caseID, nil)))
		testutil.AssertStatus(t, rr, http.StatusOK)

		rr = testutil.DoRequest(f.router, f.as("u-judge-s", testutil.NewJSONRequest(t, http.MethodGet, "/cases/"+caseID, nil)))
		testutil.AssertStatusAndError(t, rr, http.StatusNotFound, "not_found")
	})

	t.Run("other tenant is denied by ledger policy", func(t *testing.T) {
		f.ledger.DenyTenant("Org1MSP")
		rr := testutil.DoRequest(f.router, f.as("u-judge-n", testutil.NewJSONRequest(t, http.MethodGet, "/cases/"+caseID+"/documents/"+docID, nil)))
		testutil.AssertStatusAndError(t, rr, http.StatusForbidden, "policy_denied")
	})

	t.Run("judges cannot upload", func(t *testing.T) {
		rr := testutil.DoRequest(f.router, f.as("u-judge-n", testutil.NewMultipartRequest(t, http.MethodPost, "/cases/"+caseID+"/documents",
			nil, "documents[]", testutil.UploadFile{Name: "c.pdf", Data: []byte("c")})))
		testutil.AssertStatusAndError(t, rr, http.StatusForbidden, "forbidden")
	})
}

func TestAuthenticationFailures(t *testing.T) {
	f := newAPIFixture(t)

	rr := testutil.DoRequest(f.router, testutil.NewJSONRequest(t, http.MethodGet, "/cases", nil))
	testutil.AssertStatusAndError(t, rr, http.StatusUnauthorized, "unauthorized")

	rr = testutil.DoRequest(f.router, testutil.WithBearer(testutil.NewJSONRequest(t, http.MethodGet, "/cases", nil), "not-a-jwt"))
	testutil.AssertStatusAndError(t, rr, http.StatusUnauthorized, "unauthorized")

	rr = testutil.DoRequest(f.router, f.as("u-blocked", testutil.NewJSONRequest(t, http.MethodGet, "/cases", nil)))
	testutil.AssertStatusAndError(t, rr, http.StatusForbidden, "forbidden")
}

func TestPolicyCreationRolledBackWhenLedgerFails(t *testing.T) {
	f := newAPIFixture(t)
	f.ledger.PolicyErr = &ledger.Error{Kind: ledger.KindUnavailable, Op: "create_policy", Message: "connection refused"}

	rr := testutil.DoRequest(f.router, f.as("u-admin", testutil.NewJSONRequest(t, http.MethodPost, "/admin/policies", map[string]any{
		"name": "Court only", "categories": []string{}, "rules": []any{},
	})))
	testutil.AssertStatusAndError(t, rr, http.StatusServiceUnavailable, "ledger_unavailable")

	rr = testutil.DoRequest(f.router, f.as("u-admin", testutil.NewJSONRequest(t, http.MethodGet, "/admin/policies", nil)))
	testutil.AssertStatus(t, rr, http.StatusOK)
	listed := testutil.UnmarshalResponse[struct {
		Policies []policymodels.Policy `json:"policies"`
	}](t, rr)
	assert.Empty(t, listed.Policies)
}
