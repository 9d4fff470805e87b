package models

// StoredDocument is a file the ledger confirmed and the case now references.
type StoredDocument struct {
	Name     string `json:"name"`
	RecordID string `json:"record_id"`
	DocID    string `json:"document_id"`
}

// FileFailure is a file the ledger did not confirm. It is not referenced.
type FileFailure struct {
	Name   string `json:"name"`
	Reason string `json:"reason"`
}

// UploadReport enumerates per-file outcomes in submission order. A report
// with failures is a successful result, not an error.
type UploadReport struct {
	Succeeded []StoredDocument `json:"succeeded"`
	Failed    []FileFailure    `json:"failed"`
}

func (r UploadReport) HasFailures() bool {
	return len(r.Failed) > 0
}

type CreateCaseResult struct {
	Case   *Case        `json:"case"`
	Report UploadReport `json:"upload_report"`
}

// Artifact is a fetched document.
type Artifact struct {
	Name        string
	ContentType string
	Data        []byte
}
