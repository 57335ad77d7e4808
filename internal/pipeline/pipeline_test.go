package pipeline

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/pvoronin/claimroute/internal/assign"
	"github.com/pvoronin/claimroute/internal/catalog"
	"github.com/pvoronin/claimroute/internal/claims"
	"github.com/pvoronin/claimroute/internal/model"
)

type fakeSource struct {
	mu     sync.Mutex
	claims map[string]*model.ClaimPayload
	err    error
	calls  int
}

func (s *fakeSource) Fetch(ctx context.Context, claimID string) (*model.ClaimPayload, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	claim, ok := s.claims[claimID]
	if !ok {
		return nil, &model.FetchError{ClaimID: claimID, Err: claims.ErrClaimNotFound}
	}
	return claim, nil
}

type fakeWriter struct {
	mu    sync.Mutex
	calls []claims.ReassignRequest
	err   error
}

func (w *fakeWriter) Reassign(ctx context.Context, claimID string, req claims.ReassignRequest) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.calls = append(w.calls, req)
	return w.err
}

func newTestTriage(source *fakeSource, writer *fakeWriter) (*Triage, assign.Ledger) {
	cat := catalog.Default()
	ledger := assign.NewMemoryLedger()
	tx := assign.NewTransaction(cat, ledger, nil)
	var w ClaimWriter
	if writer != nil {
		w = writer
	}
	return NewTriage(source, w, cat, ledger, tx), ledger
}

func testClaim(id string, fraud, complexity float64, severity string) *model.ClaimPayload {
	return &model.ClaimPayload{
		ClaimID:   id,
		ClaimType: "health",
		MLScores: map[string]interface{}{
			"fraud_score":      fraud,
			"complexity_score": complexity,
			"severity_level":   severity,
		},
	}
}

func TestRecommendHappyPath(t *testing.T) {
	source := &fakeSource{claims: map[string]*model.ClaimPayload{
		"CLM-1": testClaim("CLM-1", 0.1, 2.5, "low"),
	}}
	triage, _ := newTestTriage(source, nil)

	rec, err := triage.Recommend(context.Background(), "CLM-1")
	if err != nil {
		t.Fatalf("Recommend failed: %v", err)
	}
	want := model.RoutingTarget{Category: model.CategoryHealth, Tier: model.TierMid}
	if rec.Target != want {
		t.Errorf("Target = %v, want %v", rec.Target, want)
	}
	if rec.Assignee != "Standard Adjuster" {
		t.Errorf("Assignee = %q, want Standard Adjuster", rec.Assignee)
	}
	if rec.Version != 0 {
		t.Errorf("Version = %d, want 0 for unassigned claim", rec.Version)
	}
	if rec.Reason == "" {
		t.Error("expected a non-empty routing reason")
	}
}

func TestRecommendFraudGate(t *testing.T) {
	source := &fakeSource{claims: map[string]*model.ClaimPayload{
		"CLM-2": testClaim("CLM-2", 0.6, 1.0, "low"),
	}}
	triage, _ := newTestTriage(source, nil)

	rec, err := triage.Recommend(context.Background(), "CLM-2")
	if err != nil {
		t.Fatalf("Recommend failed: %v", err)
	}
	if rec.Target != model.SIUFraud {
		t.Errorf("Target = %v, want SIU fraud track", rec.Target)
	}
	if rec.Assignee != "SIU Investigator" {
		t.Errorf("Assignee = %q, want SIU Investigator", rec.Assignee)
	}
}

func TestRecommendFetchFailureBlocks(t *testing.T) {
	source := &fakeSource{err: errors.New("connection refused")}
	triage, _ := newTestTriage(source, nil)

	if _, err := triage.Recommend(context.Background(), "CLM-3"); err == nil {
		t.Fatal("expected error when claim fetch fails")
	}
}

func TestCommitWritesBackByName(t *testing.T) {
	source := &fakeSource{claims: map[string]*model.ClaimPayload{
		"CLM-4": testClaim("CLM-4", 0.1, 4.0, "high"),
	}}
	writer := &fakeWriter{}
	triage, _ := newTestTriage(source, writer)

	rec, err := triage.Recommend(context.Background(), "CLM-4")
	if err != nil {
		t.Fatalf("Recommend failed: %v", err)
	}

	committed, err := triage.Commit(context.Background(), Decision{
		ClaimID:         rec.ClaimID,
		Target:          rec.Target,
		Assignee:        rec.Assignee,
		Note:            "initial triage",
		ExpectedVersion: rec.Version,
	})
	if err != nil {
		t.Fatalf("Commit failed: %v", err)
	}
	if committed.Version != 1 {
		t.Errorf("Version = %d, want 1", committed.Version)
	}

	if len(writer.calls) != 1 {
		t.Fatalf("expected 1 write-back, got %d", len(writer.calls))
	}
	wb := writer.calls[0]
	if wb.Queue != "Health Dept - High" {
		t.Errorf("write-back queue = %q, want display name Health Dept - High", wb.Queue)
	}
	if wb.Assignee != "Senior Adjuster" {
		t.Errorf("write-back assignee = %q", wb.Assignee)
	}
}

func TestCommitWriteBackFailureDoesNotRollBack(t *testing.T) {
	source := &fakeSource{claims: map[string]*model.ClaimPayload{
		"CLM-5": testClaim("CLM-5", 0.0, 1.0, "low"),
	}}
	writer := &fakeWriter{err: errors.New("store unavailable")}
	triage, ledger := newTestTriage(source, writer)

	rec, err := triage.Recommend(context.Background(), "CLM-5")
	if err != nil {
		t.Fatalf("Recommend failed: %v", err)
	}
	if _, err := triage.Commit(context.Background(), Decision{
		ClaimID:         rec.ClaimID,
		Target:          rec.Target,
		Assignee:        rec.Assignee,
		ExpectedVersion: rec.Version,
	}); err != nil {
		t.Fatalf("Commit should succeed despite write-back failure: %v", err)
	}

	if _, ok, _ := ledger.Current(context.Background(), "CLM-5"); !ok {
		t.Error("committed assignment missing from ledger after write-back failure")
	}
}

func TestCommitConflictSurfaces(t *testing.T) {
	source := &fakeSource{claims: map[string]*model.ClaimPayload{
		"CLM-6": testClaim("CLM-6", 0.0, 1.0, "low"),
	}}
	triage, _ := newTestTriage(source, nil)

	rec, err := triage.Recommend(context.Background(), "CLM-6")
	if err != nil {
		t.Fatalf("Recommend failed: %v", err)
	}
	d := Decision{
		ClaimID:         rec.ClaimID,
		Target:          rec.Target,
		Assignee:        rec.Assignee,
		ExpectedVersion: rec.Version,
	}
	if _, err := triage.Commit(context.Background(), d); err != nil {
		t.Fatalf("first Commit failed: %v", err)
	}
	if _, err := triage.Commit(context.Background(), d); !model.IsConflict(err) {
		t.Errorf("second Commit with stale version: got %v, want conflict", err)
	}
}

func TestAutoRouteAfterPriorAssignment(t *testing.T) {
	source := &fakeSource{claims: map[string]*model.ClaimPayload{
		"CLM-7": testClaim("CLM-7", 0.0, 1.0, "low"),
	}}
	triage, ledger := newTestTriage(source, nil)

	// Seed one prior assignment so auto-routing must read version 1.
	cat := catalog.Default()
	tx := assign.NewTransaction(cat, ledger, nil)
	if _, err := tx.Commit(context.Background(), assign.CommitRequest{
		ClaimID:         "CLM-7",
		Target:          model.RoutingTarget{Category: model.CategoryAccident, Tier: model.TierHigh},
		Assignee:        "Senior Adjuster",
		ExpectedVersion: 0,
	}); err != nil {
		t.Fatalf("seed commit failed: %v", err)
	}

	rec, err := triage.AutoRoute(context.Background(), "CLM-7", "catalog change reroute")
	if err != nil {
		t.Fatalf("AutoRoute failed: %v", err)
	}
	if rec.Version != 2 {
		t.Errorf("Version = %d, want 2", rec.Version)
	}
	want := model.RoutingTarget{Category: model.CategoryHealth, Tier: model.TierLow}
	if rec.Target != want {
		t.Errorf("Target = %v, want %v", rec.Target, want)
	}
}

// conflictOnceLedger rejects the first Append with a version conflict,
// simulating a concurrent commit between recommend and commit.
type conflictOnceLedger struct {
	assign.Ledger
	mu       sync.Mutex
	rejected bool
}

func (l *conflictOnceLedger) Append(ctx context.Context, rec model.AssignmentRecord, expectedVersion int64) (model.AssignmentRecord, error) {
	l.mu.Lock()
	if !l.rejected {
		l.rejected = true
		l.mu.Unlock()
		return model.AssignmentRecord{}, &model.ConflictError{ClaimID: rec.ClaimID, Expected: expectedVersion, Current: expectedVersion + 1}
	}
	l.mu.Unlock()
	return l.Ledger.Append(ctx, rec, expectedVersion)
}

func TestAutoRouteRetriesOnConflict(t *testing.T) {
	source := &fakeSource{claims: map[string]*model.ClaimPayload{
		"CLM-10": testClaim("CLM-10", 0.0, 1.0, "low"),
	}}
	cat := catalog.Default()
	ledger := &conflictOnceLedger{Ledger: assign.NewMemoryLedger()}
	tx := assign.NewTransaction(cat, ledger, nil)
	triage := NewTriage(source, nil, cat, ledger, tx)

	rec, err := triage.AutoRoute(context.Background(), "CLM-10", "")
	if err != nil {
		t.Fatalf("AutoRoute failed: %v", err)
	}
	if rec.Version != 1 {
		t.Errorf("Version = %d, want 1", rec.Version)
	}
	if source.calls < 2 {
		t.Errorf("expected a fresh fetch per attempt, got %d calls", source.calls)
	}
}

func TestQueuesMergeCatalogAndCounts(t *testing.T) {
	source := &fakeSource{claims: map[string]*model.ClaimPayload{
		"CLM-8": testClaim("CLM-8", 0.0, 1.0, "low"),
	}}
	triage, _ := newTestTriage(source, nil)

	if _, err := triage.AutoRoute(context.Background(), "CLM-8", ""); err != nil {
		t.Fatalf("AutoRoute failed: %v", err)
	}

	queues, err := triage.Queues(context.Background())
	if err != nil {
		t.Fatalf("Queues failed: %v", err)
	}
	if len(queues) != 7 {
		t.Fatalf("expected 7 queues, got %d", len(queues))
	}
	found := false
	for _, q := range queues {
		if q.Entry.TargetID == "health-low" {
			found = true
			if q.Count != 1 {
				t.Errorf("health-low count = %d, want 1", q.Count)
			}
		} else if q.Count != 0 {
			t.Errorf("queue %s count = %d, want 0", q.Entry.TargetID, q.Count)
		}
	}
	if !found {
		t.Error("health-low queue missing from summary")
	}
}

func TestHistoryReturnsTrail(t *testing.T) {
	source := &fakeSource{claims: map[string]*model.ClaimPayload{
		"CLM-9": testClaim("CLM-9", 0.0, 1.0, "low"),
	}}
	triage, _ := newTestTriage(source, nil)

	if _, err := triage.AutoRoute(context.Background(), "CLM-9", "first"); err != nil {
		t.Fatalf("AutoRoute failed: %v", err)
	}
	if _, err := triage.AutoRoute(context.Background(), "CLM-9", "second"); err != nil {
		t.Fatalf("second AutoRoute failed: %v", err)
	}

	trail, err := triage.History(context.Background(), "CLM-9")
	if err != nil {
		t.Fatalf("History failed: %v", err)
	}
	if len(trail) != 2 {
		t.Fatalf("expected 2 records, got %d", len(trail))
	}
	if trail[0].Version != 1 || trail[1].Version != 2 {
		t.Errorf("versions = %d, %d; want 1, 2", trail[0].Version, trail[1].Version)
	}
}
