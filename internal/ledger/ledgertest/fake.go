// Package ledgertest provides an in-memory ledger for service tests.
package ledgertest

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"casekeeper/internal/ledger"
)

// StoredArtifact is what the fake kept for a record id.
type StoredArtifact struct {
	Upload ledger.ArtifactUpload
	Tenant string
}

// Fake is a concurrency-safe ledger. Failures are injected per filename,
// record id, or globally.
type Fake struct {
	mu sync.Mutex

	seq       int
	artifacts map[string]StoredArtifact
	policies  map[string]json.RawMessage

	rejectFiles map[string]string
	failFetch   map[string]error
	denyTenants map[string]bool

	// PolicyErr, when set, fails every CreatePolicy.
	PolicyErr error
	// StoreErr, when set, fails every StoreArtifact.
	StoreErr error

	StoreCalls int
	FetchCalls int
}

var _ ledger.Client = (*Fake)(nil)

func New() *Fake {
	return &Fake{
		artifacts:   map[string]StoredArtifact{},
		policies:    map[string]json.RawMessage{},
		rejectFiles: map[string]string{},
		failFetch:   map[string]error{},
		denyTenants: map[string]bool{},
	}
}

// RejectFile makes StoreArtifact reject uploads named filename.
func (f *Fake) RejectFile(filename, message string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.rejectFiles[filename] = message
}

// FailFetch makes FetchArtifact of recordID return err.
func (f *Fake) FailFetch(recordID string, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failFetch[recordID] = err
}

// DenyTenant makes every FetchArtifact by tenant fail with access_denied.
func (f *Fake) DenyTenant(tenant string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.denyTenants[tenant] = true
}

func (f *Fake) CreatePolicy(_ context.Context, policyID string, _, rules json.RawMessage, _ string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.PolicyErr != nil {
		return "", f.PolicyErr
	}
	if _, exists := f.policies[policyID]; exists {
		return "", &ledger.Error{Kind: ledger.KindRejected, Op: "create_policy", Message: "duplicate policy id"}
	}
	f.policies[policyID] = rules
	return policyID, nil
}

func (f *Fake) StoreArtifact(ctx context.Context, upload ledger.ArtifactUpload, tenant string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", &ledger.Error{Kind: ledger.KindUnavailable, Op: "store_artifact", Message: "canceled", Err: err}
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.StoreCalls++
	if f.StoreErr != nil {
		return "", f.StoreErr
	}
	if msg, ok := f.rejectFiles[upload.Filename]; ok {
		return "", &ledger.Error{Kind: ledger.KindRejected, Op: "store_artifact", Message: msg}
	}
	f.seq++
	recordID := fmt.Sprintf("rec-%04d", f.seq)
	f.artifacts[recordID] = StoredArtifact{Upload: upload, Tenant: tenant}
	return recordID, nil
}

func (f *Fake) FetchArtifact(ctx context.Context, recordID, tenant string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, &ledger.Error{Kind: ledger.KindUnavailable, Op: "fetch_artifact", Message: "canceled", Err: err}
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.FetchCalls++
	if err, ok := f.failFetch[recordID]; ok {
		return nil, err
	}
	if f.denyTenants[tenant] {
		return nil, &ledger.Error{Kind: ledger.KindAccessDenied, Op: "fetch_artifact"}
	}
	a, ok := f.artifacts[recordID]
	if !ok {
		return nil, &ledger.Error{Kind: ledger.KindNotFound, Op: "fetch_artifact"}
	}
	return append([]byte(nil), a.Upload.Data...), nil
}

// Artifact returns what was stored under recordID.
func (f *Fake) Artifact(recordID string) (StoredArtifact, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	a, ok := f.artifacts[recordID]
	return a, ok
}

func (f *Fake) HasPolicy(policyID string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.policies[policyID]
	return ok
}

func (f *Fake) ArtifactCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.artifacts)
}
