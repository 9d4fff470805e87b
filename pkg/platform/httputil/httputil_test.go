package httputil

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	dErrors "casekeeper/pkg/domain-errors"
)

func TestWriteError(t *testing.T) {
	t.Run("internal error omits description", func(t *testing.T) {
		w := httptest.NewRecorder()
		WriteError(w, dErrors.New(dErrors.CodeInternal, "mongo write failed"))

		if w.Code != http.StatusInternalServerError {
			t.Fatalf("expected status %d, got %d", http.StatusInternalServerError, w.Code)
		}

		var body map[string]string
		if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
			t.Fatalf("decode response: %v", err)
		}
		if body["error"] != "internal_error" {
			t.Fatalf("expected error code internal_error, got %q", body["error"])
		}
		if _, ok := body["error_description"]; ok {
			t.Fatalf("expected error_description to be omitted for internal errors")
		}
	})

	t.Run("validation error includes description", func(t *testing.T) {
		w := httptest.NewRecorder()
		WriteError(w, dErrors.New(dErrors.CodeValidation, "please select an access policy"))

		if w.Code != http.StatusBadRequest {
			t.Fatalf("expected status %d, got %d", http.StatusBadRequest, w.Code)
		}

		var body map[string]string
		if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
			t.Fatalf("decode response: %v", err)
		}
		if body["error"] != "validation_error" {
			t.Fatalf("expected error code validation_error, got %q", body["error"])
		}
		if body["error_description"] != "please select an access policy" {
			t.Fatalf("expected error_description to be returned for validation errors")
		}
	})

	t.Run("policy denial is distinct from not found", func(t *testing.T) {
		denied := httptest.NewRecorder()
		WriteError(denied, dErrors.New(dErrors.CodePolicyDenied, "access denied by ledger policy"))
		missing := httptest.NewRecorder()
		WriteError(missing, dErrors.New(dErrors.CodeNotFound, "document not found"))

		if denied.Code != http.StatusForbidden {
			t.Fatalf("expected 403 for policy denial, got %d", denied.Code)
		}
		if missing.Code != http.StatusNotFound {
			t.Fatalf("expected 404 for missing document, got %d", missing.Code)
		}
	})

	t.Run("ledger failures map apart from local failures", func(t *testing.T) {
		w := httptest.NewRecorder()
		WriteError(w, dErrors.New(dErrors.CodeLedgerUnavailable, "ledger unavailable"))
		if w.Code != http.StatusServiceUnavailable {
			t.Fatalf("expected 503 for unavailable ledger, got %d", w.Code)
		}

		w = httptest.NewRecorder()
		WriteError(w, dErrors.New(dErrors.CodeLedgerRejected, "duplicate policy id"))
		if w.Code != http.StatusUnprocessableEntity {
			t.Fatalf("expected 422 for rejected ledger write, got %d", w.Code)
		}
	})
}
