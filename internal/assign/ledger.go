package assign

import (
	"context"

	"github.com/pvoronin/claimroute/internal/model"
)

// Ledger stores assignment records: exactly one current record per
// claim, prior records retained as an append-only audit trail.
//
// Append is the compare-and-swap primitive behind optimistic
// concurrency: the record is committed if and only if the claim's
// current version equals expectedVersion, and the stored record's
// version is expectedVersion+1. A mismatch fails with ConflictError and
// leaves the ledger untouched. Claims with no assignments yet have
// current version 0.
type Ledger interface {
	// Current returns the claim's current assignment, or ok=false when
	// the claim has never been routed.
	Current(ctx context.Context, claimID string) (model.AssignmentRecord, bool, error)

	// Append atomically commits rec as the claim's new current
	// assignment, setting its version to expectedVersion+1.
	Append(ctx context.Context, rec model.AssignmentRecord, expectedVersion int64) (model.AssignmentRecord, error)

	// History returns the claim's full audit trail, oldest first.
	History(ctx context.Context, claimID string) ([]model.AssignmentRecord, error)

	// Counts returns the number of currently assigned claims per target
	// id, for queue summaries.
	Counts(ctx context.Context) (map[string]int, error)
}
