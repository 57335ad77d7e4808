package assign

import (
	"context"
	"sync"

	"github.com/pvoronin/claimroute/internal/model"
)

// MemoryLedger is the in-process ledger. Commits across different claims
// proceed in parallel; commits on a single claim are linearized by the
// version check under one lock.
type MemoryLedger struct {
	mu     sync.RWMutex
	trails map[string][]model.AssignmentRecord
}

// NewMemoryLedger creates an empty in-memory ledger
func NewMemoryLedger() *MemoryLedger {
	return &MemoryLedger{
		trails: make(map[string][]model.AssignmentRecord),
	}
}

// Current returns the claim's current assignment record
func (l *MemoryLedger) Current(ctx context.Context, claimID string) (model.AssignmentRecord, bool, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	trail := l.trails[claimID]
	if len(trail) == 0 {
		return model.AssignmentRecord{}, false, nil
	}
	return trail[len(trail)-1], true, nil
}

// Append commits rec iff the claim's current version equals
// expectedVersion. The check and the append happen under one lock, so
// concurrent attempts against the same expectedVersion admit exactly
// one winner.
func (l *MemoryLedger) Append(ctx context.Context, rec model.AssignmentRecord, expectedVersion int64) (model.AssignmentRecord, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	trail := l.trails[rec.ClaimID]
	var current int64
	if len(trail) > 0 {
		current = trail[len(trail)-1].Version
	}

	if current != expectedVersion {
		return model.AssignmentRecord{}, &model.ConflictError{
			ClaimID:  rec.ClaimID,
			Expected: expectedVersion,
			Current:  current,
		}
	}

	rec.Version = expectedVersion + 1
	l.trails[rec.ClaimID] = append(trail, rec)
	return rec, nil
}

// History returns the claim's audit trail, oldest first
func (l *MemoryLedger) History(ctx context.Context, claimID string) ([]model.AssignmentRecord, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	trail := l.trails[claimID]
	out := make([]model.AssignmentRecord, len(trail))
	copy(out, trail)
	return out, nil
}

// Counts returns currently assigned claims per target id
func (l *MemoryLedger) Counts(ctx context.Context) (map[string]int, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	counts := make(map[string]int)
	for _, trail := range l.trails {
		if len(trail) == 0 {
			continue
		}
		counts[trail[len(trail)-1].TargetID]++
	}
	return counts, nil
}
