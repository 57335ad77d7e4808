package assign

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/pvoronin/claimroute/internal/catalog"
	"github.com/pvoronin/claimroute/internal/model"
	"github.com/pvoronin/claimroute/internal/notify"
)

func init() {
	// Fixed clock for deterministic commit timestamps.
	nowFunc = func() time.Time { return time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC) }
}

func healthHigh() model.RoutingTarget {
	return model.RoutingTarget{Category: model.CategoryHealth, Tier: model.TierHigh}
}

func TestCommit_Success(t *testing.T) {
	ledger := NewMemoryLedger()
	var notified int32
	hook := notify.HookFunc(func(ctx context.Context, rec model.AssignmentRecord) error {
		atomic.AddInt32(&notified, 1)
		return nil
	})
	tx := NewTransaction(catalog.Default(), ledger, hook)

	rec, err := tx.Commit(context.Background(), CommitRequest{
		ClaimID:         "CLM-2001",
		Target:          healthHigh(),
		Assignee:        "Senior Adjuster",
		Note:            "manual escalation",
		ExpectedVersion: 0,
	})
	if err != nil {
		t.Fatalf("Commit failed: %v", err)
	}

	if rec.Version != 1 {
		t.Errorf("Expected version 1 after first commit, got %d", rec.Version)
	}
	if rec.TargetID != "health-high" {
		t.Errorf("Expected persisted target id health-high, got %q", rec.TargetID)
	}
	if rec.TargetName != "Health Dept - High" {
		t.Errorf("Expected display name resolved at commit time, got %q", rec.TargetName)
	}
	if notified != 1 {
		t.Errorf("Expected exactly one notification, got %d", notified)
	}

	current, ok, err := ledger.Current(context.Background(), "CLM-2001")
	if err != nil || !ok {
		t.Fatalf("Expected current assignment, ok=%v err=%v", ok, err)
	}
	if current.Version != 1 {
		t.Errorf("Expected stored version 1, got %d", current.Version)
	}
}

func TestCommit_IneligibleAssignee(t *testing.T) {
	ledger := NewMemoryLedger()
	var notified int32
	hook := notify.HookFunc(func(ctx context.Context, rec model.AssignmentRecord) error {
		atomic.AddInt32(&notified, 1)
		return nil
	})
	tx := NewTransaction(catalog.Default(), ledger, hook)

	_, err := tx.Commit(context.Background(), CommitRequest{
		ClaimID:         "CLM-2002",
		Target:          healthHigh(),
		Assignee:        "SIU Investigator", // not eligible for health-high
		ExpectedVersion: 0,
	})

	if !model.IsValidation(err) {
		t.Fatalf("Expected ValidationError, got %v", err)
	}
	if notified != 0 {
		t.Error("Expected no notification on validation failure")
	}
	if _, ok, _ := ledger.Current(context.Background(), "CLM-2002"); ok {
		t.Error("Expected no record committed on validation failure")
	}
}

func TestCommit_EmptyFields(t *testing.T) {
	tx := NewTransaction(catalog.Default(), NewMemoryLedger(), nil)

	tests := []struct {
		name string
		req  CommitRequest
	}{
		{"empty claim id", CommitRequest{Target: healthHigh(), Assignee: "Senior Adjuster"}},
		{"empty target", CommitRequest{ClaimID: "CLM-1", Assignee: "Senior Adjuster"}},
		{"empty assignee", CommitRequest{ClaimID: "CLM-1", Target: healthHigh()}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := tx.Commit(context.Background(), tt.req); !model.IsValidation(err) {
				t.Errorf("Expected ValidationError, got %v", err)
			}
		})
	}
}

func TestCommit_UnknownTarget(t *testing.T) {
	// Catalog without the accident department: an override to it must be
	// rejected as a validation failure, committing nothing.
	entries := []catalog.Entry{
		{TargetID: "siu-fraud", DisplayName: "SIU (Fraud)", EligibleRoles: []string{"SIU Investigator"}},
	}
	cat, err := catalog.New(1, entries)
	if err != nil {
		t.Fatalf("catalog.New failed: %v", err)
	}
	tx := NewTransaction(cat, NewMemoryLedger(), nil)

	_, err = tx.Commit(context.Background(), CommitRequest{
		ClaimID:  "CLM-2003",
		Target:   model.RoutingTarget{Category: model.CategoryAccident, Tier: model.TierLow},
		Assignee: "Junior Adjuster",
	})
	if !model.IsValidation(err) {
		t.Errorf("Expected ValidationError for unknown target, got %v", err)
	}
}

func TestCommit_VersionConflict(t *testing.T) {
	ledger := NewMemoryLedger()
	tx := NewTransaction(catalog.Default(), ledger, nil)
	ctx := context.Background()

	if _, err := tx.Commit(ctx, CommitRequest{
		ClaimID: "CLM-2004", Target: healthHigh(), Assignee: "Senior Adjuster", ExpectedVersion: 0,
	}); err != nil {
		t.Fatalf("first commit failed: %v", err)
	}

	// Second commit still expecting version 0 must conflict.
	_, err := tx.Commit(ctx, CommitRequest{
		ClaimID: "CLM-2004", Target: healthHigh(), Assignee: "Senior Adjuster", ExpectedVersion: 0,
	})

	var ce *model.ConflictError
	if !errors.As(err, &ce) {
		t.Fatalf("Expected ConflictError, got %v", err)
	}
	if ce.Expected != 0 || ce.Current != 1 {
		t.Errorf("Expected conflict detail 0/1, got %d/%d", ce.Expected, ce.Current)
	}

	// Retry with the fresh version succeeds.
	rec, err := tx.Commit(ctx, CommitRequest{
		ClaimID: "CLM-2004", Target: healthHigh(), Assignee: "Senior Adjuster", ExpectedVersion: 1,
	})
	if err != nil {
		t.Fatalf("retry commit failed: %v", err)
	}
	if rec.Version != 2 {
		t.Errorf("Expected version 2 after retry, got %d", rec.Version)
	}
}

func TestCommit_ConcurrentRace(t *testing.T) {
	ledger := NewMemoryLedger()
	var notified int32
	hook := notify.HookFunc(func(ctx context.Context, rec model.AssignmentRecord) error {
		atomic.AddInt32(&notified, 1)
		return nil
	})
	tx := NewTransaction(catalog.Default(), ledger, hook)
	ctx := context.Background()

	const attempts = 16
	var wg sync.WaitGroup
	var successes, conflicts int32

	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := tx.Commit(ctx, CommitRequest{
				ClaimID:         "CLM-2005",
				Target:          healthHigh(),
				Assignee:        "Senior Adjuster",
				ExpectedVersion: 0,
			})
			switch {
			case err == nil:
				atomic.AddInt32(&successes, 1)
			case model.IsConflict(err):
				atomic.AddInt32(&conflicts, 1)
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()

	if successes != 1 {
		t.Errorf("Expected exactly one winner, got %d", successes)
	}
	if conflicts != attempts-1 {
		t.Errorf("Expected %d conflicts, got %d", attempts-1, conflicts)
	}
	if notified != 1 {
		t.Errorf("Expected exactly one notification for one successful commit, got %d", notified)
	}

	current, ok, err := ledger.Current(ctx, "CLM-2005")
	if err != nil || !ok {
		t.Fatalf("Expected current assignment, ok=%v err=%v", ok, err)
	}
	if current.Version != 1 {
		t.Errorf("Expected version to increment by exactly one, got %d", current.Version)
	}
}

func TestCommit_HookFailureDoesNotRollBack(t *testing.T) {
	ledger := NewMemoryLedger()
	hook := notify.HookFunc(func(ctx context.Context, rec model.AssignmentRecord) error {
		return errors.New("broker unreachable")
	})
	tx := NewTransaction(catalog.Default(), ledger, hook)

	rec, err := tx.Commit(context.Background(), CommitRequest{
		ClaimID: "CLM-2006", Target: healthHigh(), Assignee: "Senior Adjuster", ExpectedVersion: 0,
	})
	if err != nil {
		t.Fatalf("Commit should succeed despite hook failure, got %v", err)
	}
	if rec.Version != 1 {
		t.Errorf("Expected committed version 1, got %d", rec.Version)
	}
}

func TestLedger_AuditTrailRetained(t *testing.T) {
	ledger := NewMemoryLedger()
	tx := NewTransaction(catalog.Default(), ledger, nil)
	ctx := context.Background()

	targets := []model.RoutingTarget{
		{Category: model.CategoryHealth, Tier: model.TierLow},
		{Category: model.CategoryHealth, Tier: model.TierHigh},
		model.SIUFraud,
	}
	roles := []string{"Junior Adjuster", "Senior Adjuster", "SIU Investigator"}

	for i, target := range targets {
		if _, err := tx.Commit(ctx, CommitRequest{
			ClaimID: "CLM-2007", Target: target, Assignee: roles[i], ExpectedVersion: int64(i),
		}); err != nil {
			t.Fatalf("commit %d failed: %v", i, err)
		}
	}

	history, err := ledger.History(ctx, "CLM-2007")
	if err != nil {
		t.Fatalf("History failed: %v", err)
	}
	if len(history) != 3 {
		t.Fatalf("Expected 3 audit records, got %d", len(history))
	}
	for i, rec := range history {
		if rec.Version != int64(i+1) {
			t.Errorf("record %d: expected version %d, got %d", i, i+1, rec.Version)
		}
	}
	if history[2].TargetID != "siu-fraud" {
		t.Errorf("Expected final record siu-fraud, got %q", history[2].TargetID)
	}
}

func TestLedger_Counts(t *testing.T) {
	ledger := NewMemoryLedger()
	tx := NewTransaction(catalog.Default(), ledger, nil)
	ctx := context.Background()

	commits := []struct {
		claimID string
		target  model.RoutingTarget
		role    string
	}{
		{"CLM-A", healthHigh(), "Senior Adjuster"},
		{"CLM-B", healthHigh(), "Senior Adjuster"},
		{"CLM-C", model.SIUFraud, "SIU Investigator"},
	}
	for _, c := range commits {
		if _, err := tx.Commit(ctx, CommitRequest{
			ClaimID: c.claimID, Target: c.target, Assignee: c.role, ExpectedVersion: 0,
		}); err != nil {
			t.Fatalf("commit %s failed: %v", c.claimID, err)
		}
	}

	counts, err := ledger.Counts(ctx)
	if err != nil {
		t.Fatalf("Counts failed: %v", err)
	}
	if counts["health-high"] != 2 {
		t.Errorf("Expected 2 claims on health-high, got %d", counts["health-high"])
	}
	if counts["siu-fraud"] != 1 {
		t.Errorf("Expected 1 claim on siu-fraud, got %d", counts["siu-fraud"])
	}
}
