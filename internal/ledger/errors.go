package ledger

import (
	"errors"
	"fmt"

	dErrors "casekeeper/pkg/domain-errors"
)

// Kind classifies ledger failures.
type Kind string

const (
	KindUnavailable  Kind = "unavailable"
	KindRejected     Kind = "rejected"
	KindAccessDenied Kind = "access_denied"
	KindNotFound     Kind = "not_found"
)

// Error is returned by every Client operation on failure.
type Error struct {
	Kind    Kind
	Op      string
	Message string
	Err     error
}

func (e *Error) Error() string {
	msg := fmt.Sprintf("ledger %s: %s", e.Op, e.Kind)
	if e.Message != "" {
		msg += ": " + e.Message
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Err
}

// KindOf returns the ledger error kind in err's chain, if any.
func KindOf(err error) (Kind, bool) {
	var le *Error
	if errors.As(err, &le) {
		return le.Kind, true
	}
	return "", false
}

func IsKind(err error, kind Kind) bool {
	k, ok := KindOf(err)
	return ok && k == kind
}

// ToDomain maps a ledger error to a coded domain error. Non-ledger errors are
// wrapped as internal.
func ToDomain(err error, message string) error {
	if err == nil {
		return nil
	}
	kind, ok := KindOf(err)
	if !ok {
		return dErrors.Wrap(err, dErrors.CodeInternal, message)
	}
	switch kind {
	case KindUnavailable:
		return dErrors.Wrap(err, dErrors.CodeLedgerUnavailable, message+": ledger unavailable")
	case KindRejected:
		return dErrors.Wrap(err, dErrors.CodeLedgerRejected, message+": "+reason(err))
	case KindAccessDenied:
		return dErrors.Wrap(err, dErrors.CodePolicyDenied, "access denied by policy")
	case KindNotFound:
		return dErrors.Wrap(err, dErrors.CodeNotFound, "record not found in ledger")
	default:
		return dErrors.Wrap(err, dErrors.CodeInternal, message)
	}
}

// Reason is a short, user-facing explanation used in upload reports and
// archive failure markers.
func Reason(err error) string {
	return reason(err)
}

func reason(err error) string {
	var le *Error
	if !errors.As(err, &le) {
		return err.Error()
	}
	switch le.Kind {
	case KindUnavailable:
		return "ledger unavailable"
	case KindAccessDenied:
		return "access denied by policy"
	case KindNotFound:
		return "record not found"
	}
	if le.Message != "" {
		return "rejected by ledger: " + le.Message
	}
	return "rejected by ledger"
}
