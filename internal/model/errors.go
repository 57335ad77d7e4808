package model

import (
	"errors"
	"fmt"
)

// ErrTargetNotFound indicates a routing target the catalog cannot
// resolve. The engine only produces targets the default catalog covers,
// so hitting this at runtime means the deployed catalog is missing an
// entry: a configuration defect, never a user error.
var ErrTargetNotFound = errors.New("routing target not found in catalog")

// ValidationError reports a user-correctable problem with a commit
// request (missing or ineligible target/assignee). Nothing is committed.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// ConflictError reports an optimistic-concurrency failure: the claim's
// stored version moved past the caller's expected version. Recoverable by
// re-fetching the claim and re-presenting the latest state.
type ConflictError struct {
	ClaimID  string
	Expected int64
	Current  int64
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("claim %s: version conflict (expected %d, current %d)", e.ClaimID, e.Expected, e.Current)
}

// FetchError reports inability to obtain claim data from the claim
// store. No recommendation may be presented when this occurs.
type FetchError struct {
	ClaimID string
	Err     error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("fetch claim %s: %v", e.ClaimID, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

// IsConflict reports whether err is (or wraps) a ConflictError.
func IsConflict(err error) bool {
	var ce *ConflictError
	return errors.As(err, &ce)
}

// IsValidation reports whether err is (or wraps) a ValidationError.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}
