package pipeline

import (
	"context"
	"fmt"
	"os"

	"github.com/pvoronin/claimroute/internal/assign"
	"github.com/pvoronin/claimroute/internal/catalog"
	"github.com/pvoronin/claimroute/internal/claims"
	"github.com/pvoronin/claimroute/internal/model"
	"github.com/pvoronin/claimroute/internal/resolve"
	"github.com/pvoronin/claimroute/internal/route"
)

// autoRouteMaxAttempts bounds the re-read/re-decide/re-attempt loop on
// version conflicts during automatic routing.
const autoRouteMaxAttempts = 3

// ClaimSource reads claim payloads from the external claim store
type ClaimSource interface {
	Fetch(ctx context.Context, claimID string) (*model.ClaimPayload, error)
}

// ClaimWriter pushes committed assignments back to the external store,
// which matches by team display name.
type ClaimWriter interface {
	Reassign(ctx context.Context, claimID string, req claims.ReassignRequest) error
}

// Triage orchestrates the full flow: fetch claim data, resolve scores,
// compute the recommendation, and commit routing decisions through the
// transaction boundary.
type Triage struct {
	source   ClaimSource
	writer   ClaimWriter
	resolver *resolve.Resolver
	engine   *route.Engine
	catalog  *catalog.Catalog
	ledger   assign.Ledger
	tx       *assign.Transaction
}

// NewTriage wires the pipeline. writer may be nil when no external
// write-back is wanted (tests, dry runs).
func NewTriage(source ClaimSource, writer ClaimWriter, cat *catalog.Catalog, ledger assign.Ledger, tx *assign.Transaction) *Triage {
	return &Triage{
		source:   source,
		writer:   writer,
		resolver: resolve.NewResolver(),
		engine:   route.NewEngine(),
		catalog:  cat,
		ledger:   ledger,
		tx:       tx,
	}
}

// Recommend computes the default routing selection for a claim. A fetch
// failure blocks the recommendation entirely: no default may be
// presented from partial or stale data.
func (t *Triage) Recommend(ctx context.Context, claimID string) (*model.Recommendation, error) {
	claim, err := t.source.Fetch(ctx, claimID)
	if err != nil {
		return nil, err
	}
	return t.recommendFor(ctx, claim)
}

func (t *Triage) recommendFor(ctx context.Context, claim *model.ClaimPayload) (*model.Recommendation, error) {
	score := t.resolver.Resolve(claim)
	category := t.resolver.Category(claim)
	target := t.engine.Recommend(score, category)

	assignee, err := t.catalog.DefaultAssignee(target)
	if err != nil {
		// The engine produced a target the catalog cannot resolve: a
		// configuration defect that must not reach an end user as-is.
		return nil, fmt.Errorf("catalog does not cover engine target: %w", err)
	}

	version := int64(0)
	if current, ok, err := t.ledger.Current(ctx, claim.ClaimID); err != nil {
		return nil, fmt.Errorf("read current assignment: %w", err)
	} else if ok {
		version = current.Version
	}

	return &model.Recommendation{
		ClaimID:  claim.ClaimID,
		Target:   target,
		Assignee: assignee,
		Reason:   t.engine.Reason(score, target),
		Score:    score,
		Category: category,
		Version:  version,
	}, nil
}

// Decision is a routing choice ready to commit: the engine's
// recommendation as-is, or a human override of target and/or assignee.
type Decision struct {
	ClaimID         string
	Target          model.RoutingTarget
	Assignee        string
	Note            string
	ExpectedVersion int64
}

// Commit validates and commits the decision, then writes it back to the
// external store in its name-based shape. The local ledger is the source
// of truth; a failed write-back is reported but does not roll back the
// committed assignment.
func (t *Triage) Commit(ctx context.Context, d Decision) (model.AssignmentRecord, error) {
	rec, err := t.tx.Commit(ctx, assign.CommitRequest{
		ClaimID:         d.ClaimID,
		Target:          d.Target,
		Assignee:        d.Assignee,
		Note:            d.Note,
		ExpectedVersion: d.ExpectedVersion,
	})
	if err != nil {
		return model.AssignmentRecord{}, err
	}

	if t.writer != nil {
		wbErr := t.writer.Reassign(ctx, rec.ClaimID, claims.ReassignRequest{
			Queue:    rec.TargetName,
			Assignee: rec.Assignee,
			Note:     rec.Note,
		})
		if wbErr != nil {
			fmt.Fprintf(os.Stderr, "Warning: claim store write-back failed for %s: %v\n", rec.ClaimID, wbErr)
		}
	}

	return rec, nil
}

// AutoRoute fetches, recommends and commits in one step, retrying the
// commit on version conflicts with a fresh recommendation each attempt.
// Used by batch reroutes after a catalog change.
func (t *Triage) AutoRoute(ctx context.Context, claimID, note string) (model.AssignmentRecord, error) {
	var lastErr error
	for attempt := 0; attempt < autoRouteMaxAttempts; attempt++ {
		rec, err := t.Recommend(ctx, claimID)
		if err != nil {
			return model.AssignmentRecord{}, err
		}

		committed, err := t.Commit(ctx, Decision{
			ClaimID:         rec.ClaimID,
			Target:          rec.Target,
			Assignee:        rec.Assignee,
			Note:            note,
			ExpectedVersion: rec.Version,
		})
		if err == nil {
			return committed, nil
		}
		if !model.IsConflict(err) {
			return model.AssignmentRecord{}, err
		}
		lastErr = err
	}
	return model.AssignmentRecord{}, lastErr
}

// QueueInfo is one row of the queue summary
type QueueInfo struct {
	Entry catalog.Entry `json:"entry"`
	Count int           `json:"count"`
}

// Queues returns the catalog entries with their current assignment
// counts from the ledger.
func (t *Triage) Queues(ctx context.Context) ([]QueueInfo, error) {
	counts, err := t.ledger.Counts(ctx)
	if err != nil {
		return nil, fmt.Errorf("read assignment counts: %w", err)
	}

	entries := t.catalog.Entries()
	out := make([]QueueInfo, 0, len(entries))
	for _, entry := range entries {
		out = append(out, QueueInfo{Entry: entry, Count: counts[entry.TargetID]})
	}
	return out, nil
}

// History returns a claim's audit trail
func (t *Triage) History(ctx context.Context, claimID string) ([]model.AssignmentRecord, error) {
	return t.ledger.History(ctx, claimID)
}
