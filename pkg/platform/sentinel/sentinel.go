package sentinel

import "errors"

// Sentinel errors for storage facts. Case, policy, and user stores return these
// (optionally wrapped) so services can translate them into domain errors.
//
//   - ErrNotFound: no record matched the id and scope filter
//   - ErrConflict: a unique key (case number, ledger policy id) is already taken
//   - ErrUnavailable: the backing store could not be reached
var (
	ErrNotFound    = errors.New("not found")
	ErrConflict    = errors.New("conflict")
	ErrUnavailable = errors.New("unavailable")
)
