package assign

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/pvoronin/claimroute/internal/catalog"
	"github.com/pvoronin/claimroute/internal/model"
	"github.com/pvoronin/claimroute/internal/notify"
)

// nowFunc is the clock used for commit timestamps (injectable for tests)
var nowFunc = func() time.Time { return time.Now().UTC() }

// Transaction validates a routing decision against the catalog and
// commits it atomically as the claim's new assignment. The commit either
// fully lands (record visible, version bumped by one) or has no visible
// effect.
type Transaction struct {
	catalog *catalog.Catalog
	ledger  Ledger
	hook    notify.Hook
}

// NewTransaction wires the transaction boundary. A nil hook disables
// notifications.
func NewTransaction(cat *catalog.Catalog, ledger Ledger, hook notify.Hook) *Transaction {
	if hook == nil {
		hook = notify.Nop()
	}
	return &Transaction{catalog: cat, ledger: ledger, hook: hook}
}

// CommitRequest is a routing decision ready to commit, engine-chosen or
// human-overridden.
type CommitRequest struct {
	ClaimID         string
	Target          model.RoutingTarget
	Assignee        string
	Note            string
	ExpectedVersion int64
}

// Commit validates the request, performs the version compare-and-swap,
// and raises the refresh signal exactly once on success. Validation
// failures return ValidationError; a stale ExpectedVersion returns
// ConflictError. Neither commits anything.
func (t *Transaction) Commit(ctx context.Context, req CommitRequest) (model.AssignmentRecord, error) {
	entry, err := t.validate(req)
	if err != nil {
		return model.AssignmentRecord{}, err
	}

	rec := model.AssignmentRecord{
		ClaimID:         req.ClaimID,
		Target:          req.Target,
		TargetID:        req.Target.ID(),
		TargetName:      entry.DisplayName,
		Assignee:        req.Assignee,
		Note:            req.Note,
		CommittedAt:     nowFunc(),
		CatalogRevision: t.catalog.Revision(),
	}

	committed, err := t.ledger.Append(ctx, rec, req.ExpectedVersion)
	if err != nil {
		return model.AssignmentRecord{}, err
	}

	// The assignment is durable at this point. A failing hook must not
	// un-commit it; surface the failure without rolling back.
	if hookErr := t.hook.AssignmentCommitted(ctx, committed); hookErr != nil {
		fmt.Fprintf(os.Stderr, "Warning: refresh notification failed for claim %s: %v\n", committed.ClaimID, hookErr)
	}

	return committed, nil
}

func (t *Transaction) validate(req CommitRequest) (catalog.Entry, error) {
	if strings.TrimSpace(req.ClaimID) == "" {
		return catalog.Entry{}, &model.ValidationError{Field: "claim id", Reason: "must not be empty"}
	}
	if req.Target == (model.RoutingTarget{}) {
		return catalog.Entry{}, &model.ValidationError{Field: "target", Reason: "must not be empty"}
	}
	if strings.TrimSpace(req.Assignee) == "" {
		return catalog.Entry{}, &model.ValidationError{Field: "assignee", Reason: "must not be empty"}
	}

	entry, err := t.catalog.Lookup(req.Target)
	if err != nil {
		return catalog.Entry{}, &model.ValidationError{
			Field:  "target",
			Reason: fmt.Sprintf("%q does not resolve in the team catalog", req.Target.ID()),
		}
	}

	if !t.catalog.Eligible(req.Target, req.Assignee) {
		return catalog.Entry{}, &model.ValidationError{
			Field:  "assignee",
			Reason: fmt.Sprintf("%q is not eligible for %s (eligible: %s)", req.Assignee, entry.DisplayName, strings.Join(entry.EligibleRoles, ", ")),
		}
	}

	return entry, nil
}
