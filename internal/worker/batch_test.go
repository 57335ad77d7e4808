package worker

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/pvoronin/claimroute/internal/model"
)

type fakeRouter struct {
	mu     sync.Mutex
	routed []string
	fail   map[string]error
}

func (r *fakeRouter) AutoRoute(ctx context.Context, claimID, note string) (model.AssignmentRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.routed = append(r.routed, claimID)
	if err, ok := r.fail[claimID]; ok {
		return model.AssignmentRecord{}, err
	}
	return model.AssignmentRecord{
		ClaimID:  claimID,
		TargetID: "health-low",
		Assignee: "Junior Adjuster",
		Note:     note,
		Version:  1,
	}, nil
}

func TestProcessClaimsRoutesEach(t *testing.T) {
	router := &fakeRouter{}
	processor := NewBatchProcessor(router, 4, "batch reroute")

	ids := []string{"CLM-1", "CLM-2", "CLM-3"}
	results := processor.ProcessClaims(context.Background(), ids)

	if len(results) != 3 {
		t.Fatalf("expected 3 results, got %d", len(results))
	}
	for _, r := range results {
		if r.Error != nil {
			t.Errorf("claim %s: unexpected error %v", r.ClaimID, r.Error)
		}
		if r.Record == nil || r.Record.Note != "batch reroute" {
			t.Errorf("claim %s: note not propagated", r.ClaimID)
		}
	}
	if len(router.routed) != 3 {
		t.Errorf("router saw %d claims, want 3", len(router.routed))
	}
}

func TestProcessClaimsPartialFailure(t *testing.T) {
	router := &fakeRouter{fail: map[string]error{
		"CLM-2": errors.New("claim not found"),
	}}
	processor := NewBatchProcessor(router, 2, "")

	results := processor.ProcessClaims(context.Background(), []string{"CLM-1", "CLM-2", "CLM-3"})

	failures := 0
	for _, r := range results {
		if r.GetError() != nil {
			failures++
			if r.ClaimID != "CLM-2" {
				t.Errorf("unexpected failure for %s", r.ClaimID)
			}
		}
	}
	if failures != 1 {
		t.Errorf("expected 1 failure, got %d", failures)
	}
}

func TestProcessClaimsEmpty(t *testing.T) {
	processor := NewBatchProcessor(&fakeRouter{}, 2, "")
	results := processor.ProcessClaims(context.Background(), nil)
	if len(results) != 0 {
		t.Errorf("expected no results, got %d", len(results))
	}
}

func TestReadClaimIDsFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "claims.txt")
	content := "CLM-1\n\n# backlog from catalog change\nCLM-2\nCLM-1\n  CLM-3  \n"
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write fixture: %v", err)
	}

	ids, err := ReadClaimIDsFromFile(path)
	if err != nil {
		t.Fatalf("ReadClaimIDsFromFile failed: %v", err)
	}

	want := []string{"CLM-1", "CLM-2", "CLM-3"}
	if len(ids) != len(want) {
		t.Fatalf("got %d ids, want %d: %v", len(ids), len(want), ids)
	}
	for i, id := range want {
		if ids[i] != id {
			t.Errorf("ids[%d] = %q, want %q", i, ids[i], id)
		}
	}
}

func TestReadClaimIDsMissingFile(t *testing.T) {
	if _, err := ReadClaimIDsFromFile("/nonexistent/claims.txt"); err == nil {
		t.Error("expected error for missing file")
	}
}

func TestProcessFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "claims.txt")
	if err := os.WriteFile(path, []byte("CLM-1\nCLM-2\n"), 0o644); err != nil {
		t.Fatalf("write fixture: %v", err)
	}

	router := &fakeRouter{}
	processor := NewBatchProcessor(router, 2, "")

	results, err := processor.ProcessFile(context.Background(), path)
	if err != nil {
		t.Fatalf("ProcessFile failed: %v", err)
	}
	if len(results) != 2 {
		t.Errorf("expected 2 results, got %d", len(results))
	}
}
