// Package ledger is the narrow client for the external, write-once ledger that
// holds evidentiary artifacts and access policies.
//
// No operation is assumed idempotent: a repeated StoreArtifact may create a
// second artifact, so nothing in this package retries. Callers fail the
// operation and let the user resubmit.
package ledger

import (
	"context"
	"encoding/json"
)

// RecordTypeEvidence is the record type used for case documents.
const RecordTypeEvidence = "Evidence"

// ArtifactUpload is one file destined for the ledger.
type ArtifactUpload struct {
	Data        []byte
	Filename    string
	ContentType string
	CaseID      string
	RecordType  string
	// PolicyID is the ledger-facing policy id governing reads of the artifact.
	PolicyID string
}

// Client is the contract the orchestrators depend on. Tenant is the
// organizational identity (e.g. "Org1MSP") the ledger evaluates policies against.
type Client interface {
	// CreatePolicy registers a policy and returns the ledger's id for it.
	CreatePolicy(ctx context.Context, policyID string, categories, rules json.RawMessage, tenant string) (string, error)
	// StoreArtifact stores bytes and returns an opaque, globally unique record id.
	StoreArtifact(ctx context.Context, upload ArtifactUpload, tenant string) (string, error)
	// FetchArtifact returns the artifact bytes, or an access_denied / not_found error.
	FetchArtifact(ctx context.Context, recordID, tenant string) ([]byte, error)
}
