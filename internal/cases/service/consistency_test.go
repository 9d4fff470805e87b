package service

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/klauspost/compress/zip"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"casekeeper/internal/authz"
	"casekeeper/internal/cases/models"
	"casekeeper/internal/cases/store"
	"casekeeper/internal/ledger/ledgertest"
	policymodels "casekeeper/internal/policy/models"
	policyservice "casekeeper/internal/policy/service"
	policystore "casekeeper/internal/policy/store"
	dErrors "casekeeper/pkg/domain-errors"
	"casekeeper/pkg/requestcontext"
)

type harness struct {
	ledger   *ledgertest.Fake
	cases    *store.InMemoryCaseStore
	policies *policystore.InMemoryPolicyStore
	service  *Service
	policyID string
	ctx      context.Context
}

func newHarness(t *testing.T, opts ...Option) *harness {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	gate := authz.NewGate(authz.WithLogger(logger))
	fake := ledgertest.New()
	policyStore := policystore.NewInMemoryPolicyStore()
	policies := policyservice.New(policyStore, fake, gate, policyservice.WithLogger(logger))
	ctx := requestcontext.WithTime(context.Background(), time.Date(2025, 6, 1, 8, 0, 0, 0, time.UTC))

	admin := &authz.Principal{UserID: "admin", Role: authz.Admin{}, Tenant: "Org1MSP"}
	p, err := policies.CreatePolicy(ctx, admin, policymodels.CreatePolicyRequest{
		Name:       "Investigators only",
		Categories: json.RawMessage(`["Evidence"]`),
		Rules:      json.RawMessage(`[{"org":"Org1MSP","read":true}]`),
	})
	require.NoError(t, err)

	cases := store.NewInMemoryCaseStore()
	opts = append([]Option{WithLogger(logger)}, opts...)
	return &harness{
		ledger:   fake,
		cases:    cases,
		policies: policyStore,
		service:  New(cases, policies, fake, gate, opts...),
		policyID: p.ID,
		ctx:      ctx,
	}
}

func investigator(id, state, district string) *authz.Principal {
	return &authz.Principal{
		UserID:       id,
		Role:         authz.Investigator{UserID: id},
		Approved:     true,
		Tenant:       "Org1MSP",
		Jurisdiction: authz.Jurisdiction{State: state, District: district},
	}
}

func files(names ...string) []models.UploadFile {
	out := make([]models.UploadFile, len(names))
	for i, n := range names {
		out[i] = models.UploadFile{Name: n, ContentType: "application/pdf", Data: []byte("content of " + n)}
	}
	return out
}

func (h *harness) assertAllReferencesFetchable(t *testing.T, caseID string) {
	t.Helper()
	c, err := h.cases.FindByID(context.Background(), caseID, authz.AllScope())
	require.NoError(t, err)
	for _, d := range c.Documents {
		_, ok := h.ledger.Artifact(d.RecordID)
		assert.True(t, ok, "document %s references unknown record %s", d.Name, d.RecordID)
	}
}

func TestCreateCaseWithOneRejectedFile(t *testing.T) {
	h := newHarness(t)
	h.ledger.RejectFile("b.pdf", "file type not permitted")
	inv := investigator("inv-1", "Westland", "North")

	res, err := h.service.CreateCase(h.ctx, inv, models.CreateCaseRequest{
		Title:    "C1",
		PolicyID: h.policyID,
		Files:    files("a.pdf", "b.pdf"),
	})
	require.NoError(t, err)

	stored, err := h.cases.FindByID(context.Background(), res.Case.ID, authz.AllScope())
	require.NoError(t, err)
	require.Len(t, stored.Documents, 1)
	assert.Equal(t, "a.pdf", stored.Documents[0].Name)
	require.Len(t, res.Report.Failed, 1)
	assert.Equal(t, "b.pdf", res.Report.Failed[0].Name)
	h.assertAllReferencesFetchable(t, res.Case.ID)
}

func TestCreateCaseRejectsUnselectablePolicy(t *testing.T) {
	h := newHarness(t)
	require.NoError(t, h.policies.Create(context.Background(), &policymodels.Policy{
		ID:         "pending-1",
		PolicyID:   "policy-1748764800000-abcdef",
		Name:       "Awaiting ledger",
		Categories: json.RawMessage(`[]`),
		Rules:      json.RawMessage(`[]`),
		CreatedBy:  "admin",
		CreatedAt:  time.Date(2025, 6, 1, 7, 0, 0, 0, time.UTC),
		State:      policymodels.StatePending,
	}))

	for name, policyID := range map[string]string{
		"pending policy": "pending-1",
		"unknown policy": "does-not-exist",
	} {
		t.Run(name, func(t *testing.T) {
			_, err := h.service.CreateCase(h.ctx, investigator("inv-1", "W", "N"), models.CreateCaseRequest{
				Title:    "C1",
				PolicyID: policyID,
				Files:    files("a.pdf"),
			})
			require.Error(t, err)
			assert.True(t, dErrors.HasCode(err, dErrors.CodeValidation))

			all, err := h.cases.List(context.Background(), authz.AllScope())
			require.NoError(t, err)
			assert.Empty(t, all)
			assert.Zero(t, h.ledger.ArtifactCount())
		})
	}
}

func TestConcurrentUploadsToOneCase(t *testing.T) {
	for _, limit := range []int{1, 4} {
		t.Run(fmt.Sprintf("concurrency %d", limit), func(t *testing.T) {
			h := newHarness(t, WithUploadConcurrency(limit))
			inv := investigator("inv-1", "W", "N")
			res, err := h.service.CreateCase(h.ctx, inv, models.CreateCaseRequest{Title: "C", PolicyID: h.policyID})
			require.NoError(t, err)

			batchA := files("a1", "a2", "a3", "a4", "a5")
			batchB := files("b1", "b2", "b3")
			reports := make([]*models.UploadReport, 2)
			var wg sync.WaitGroup
			for i, batch := range [][]models.UploadFile{batchA, batchB} {
				wg.Add(1)
				go func() {
					defer wg.Done()
					r, err := h.service.UploadDocuments(h.ctx, inv, res.Case.ID, batch)
					assert.NoError(t, err)
					reports[i] = r
				}()
			}
			wg.Wait()

			c, err := h.cases.FindByID(context.Background(), res.Case.ID, authz.AllScope())
			require.NoError(t, err)
			require.Len(t, c.Documents, len(batchA)+len(batchB))

			// Each caller's documents keep their submission order.
			var gotA, gotB []string
			for _, d := range c.Documents {
				switch d.Name[0] {
				case 'a':
					gotA = append(gotA, d.Name)
				case 'b':
					gotB = append(gotB, d.Name)
				}
			}
			assert.Equal(t, []string{"a1", "a2", "a3", "a4", "a5"}, gotA)
			assert.Equal(t, []string{"b1", "b2", "b3"}, gotB)
			for i, sd := range reports[0].Succeeded {
				assert.Equal(t, batchA[i].Name, sd.Name)
			}
			h.assertAllReferencesFetchable(t, res.Case.ID)
		})
	}
}

func TestUploadsUseCaseLedgerPolicy(t *testing.T) {
	h := newHarness(t)
	inv := investigator("inv-1", "W", "N")
	res, err := h.service.CreateCase(h.ctx, inv, models.CreateCaseRequest{Title: "C", PolicyID: h.policyID})
	require.NoError(t, err)

	report, err := h.service.UploadDocuments(h.ctx, inv, res.Case.ID, files("later.pdf"))
	require.NoError(t, err)
	require.Len(t, report.Succeeded, 1)

	a, ok := h.ledger.Artifact(report.Succeeded[0].RecordID)
	require.True(t, ok)
	assert.Equal(t, res.Case.LedgerPolicyID, a.Upload.PolicyID)
	assert.True(t, h.ledger.HasPolicy(a.Upload.PolicyID))
}

func TestJurisdictionScoping(t *testing.T) {
	h := newHarness(t)
	north := investigator("inv-n", "Westland", "North")
	south := investigator("inv-s", "Westland", "South")
	east := investigator("inv-e", "Eastland", "East")
	for _, inv := range []*authz.Principal{north, south, east} {
		_, err := h.service.CreateCase(h.ctx, inv, models.CreateCaseRequest{Title: "case of " + inv.UserID, PolicyID: h.policyID})
		require.NoError(t, err)
	}

	judge := func(level authz.Level, j authz.Jurisdiction) *authz.Principal {
		return &authz.Principal{UserID: "judge", Role: authz.Judiciary{Level: level, Jurisdiction: j}, Approved: true}
	}
	tests := []struct {
		name      string
		principal *authz.Principal
		want      []string
	}{
		{"district judge", judge(authz.LevelDistrict, authz.Jurisdiction{State: "Westland", District: "North"}), []string{"inv-n"}},
		{"state judge", judge(authz.LevelState, authz.Jurisdiction{State: "Westland"}), []string{"inv-n", "inv-s"}},
		{"judge without level", judge(authz.LevelNone, authz.Jurisdiction{State: "Westland", District: "North"}), nil},
		{"investigator", south, []string{"inv-s"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cases, err := h.service.ListCases(h.ctx, tt.principal)
			require.NoError(t, err)
			var owners []string
			for _, c := range cases {
				owners = append(owners, c.AssignedTo)
			}
			assert.ElementsMatch(t, tt.want, owners)
		})
	}

	t.Run("out of district lookup is not found", func(t *testing.T) {
		southCases, err := h.service.ListCases(h.ctx, south)
		require.NoError(t, err)
		require.Len(t, southCases, 1)
		_, err = h.service.GetCase(h.ctx, judge(authz.LevelDistrict, authz.Jurisdiction{District: "North"}), southCases[0].ID)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeNotFound))
	})
}

func TestFetchDeniedByLedgerPolicy(t *testing.T) {
	h := newHarness(t)
	inv := investigator("inv-1", "W", "N")
	res, err := h.service.CreateCase(h.ctx, inv, models.CreateCaseRequest{Title: "C", PolicyID: h.policyID, Files: files("a.pdf")})
	require.NoError(t, err)
	docID := res.Report.Succeeded[0].DocID

	art, err := h.service.FetchDocument(h.ctx, inv, res.Case.ID, docID)
	require.NoError(t, err)
	assert.Equal(t, "content of a.pdf", string(art.Data))

	h.ledger.DenyTenant("Org1MSP")
	_, err = h.service.FetchDocument(h.ctx, inv, res.Case.ID, docID)
	require.Error(t, err)
	assert.True(t, dErrors.HasCode(err, dErrors.CodePolicyDenied))
}

func TestArchiveWithOneFailingFetch(t *testing.T) {
	h := newHarness(t)
	inv := investigator("inv-1", "W", "N")
	res, err := h.service.CreateCase(h.ctx, inv, models.CreateCaseRequest{
		Title:    "C",
		PolicyID: h.policyID,
		Files:    files("a.pdf", "b.pdf", "c.pdf"),
	})
	require.NoError(t, err)
	h.ledger.FailFetch(res.Report.Succeeded[1].RecordID, errors.New("boom"))

	job, err := h.service.OpenArchive(h.ctx, inv, res.Case.ID)
	require.NoError(t, err)
	assert.Equal(t, "Case-"+res.Case.CaseNumber+".zip", job.FileName())

	var buf bytes.Buffer
	summary, err := job.WriteTo(h.ctx, &buf)
	require.NoError(t, err)
	assert.Equal(t, 2, summary.Included)
	assert.Equal(t, 3, h.ledger.FetchCalls, "every document is attempted exactly once")

	zr, err := zip.NewReader(bytes.NewReader(buf.Bytes()), int64(buf.Len()))
	require.NoError(t, err)
	var names []string
	for _, f := range zr.File {
		names = append(names, f.Name)
	}
	assert.ElementsMatch(t, []string{
		"case-details.txt",
		"documents/a.pdf",
		"documents/FAILED_b.pdf.txt",
		"documents/c.pdf",
	}, names)
}
