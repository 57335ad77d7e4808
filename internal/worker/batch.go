package worker

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/pvoronin/claimroute/internal/model"
)

// Router routes a single claim to its recommended target and commits
// the assignment.
type Router interface {
	AutoRoute(ctx context.Context, claimID, note string) (model.AssignmentRecord, error)
}

// RerouteJob routes one claim
type RerouteJob struct {
	ClaimID string
	Note    string
	Router  Router
}

// Execute runs the reroute and wraps the outcome
func (j *RerouteJob) Execute(ctx context.Context) Result {
	rec, err := j.Router.AutoRoute(ctx, j.ClaimID, j.Note)
	if err != nil {
		return &RerouteResult{ClaimID: j.ClaimID, Error: err}
	}
	return &RerouteResult{ClaimID: j.ClaimID, Record: &rec}
}

// RerouteResult is the outcome of rerouting one claim
type RerouteResult struct {
	ClaimID string
	Record  *model.AssignmentRecord
	Error   error
}

// GetError returns the reroute error, if any
func (r *RerouteResult) GetError() error {
	return r.Error
}

// BatchProcessor reroutes many claims concurrently, typically after a
// catalog change invalidates existing assignments.
type BatchProcessor struct {
	router      Router
	concurrency int
	note        string
}

// NewBatchProcessor creates a batch processor routing through router
// with the given concurrency. note is recorded on every commit.
func NewBatchProcessor(router Router, concurrency int, note string) *BatchProcessor {
	return &BatchProcessor{
		router:      router,
		concurrency: concurrency,
		note:        note,
	}
}

// ProcessClaims reroutes the given claim ids concurrently
func (b *BatchProcessor) ProcessClaims(ctx context.Context, claimIDs []string) []*RerouteResult {
	if len(claimIDs) == 0 {
		return []*RerouteResult{}
	}

	pool := NewPool(b.concurrency)
	pool.Start()

	for _, id := range claimIDs {
		pool.Submit(&RerouteJob{
			ClaimID: id,
			Note:    b.note,
			Router:  b.router,
		})
	}

	results := pool.Wait()

	rerouteResults := make([]*RerouteResult, len(results))
	for i, result := range results {
		rerouteResults[i] = result.(*RerouteResult)
	}

	return rerouteResults
}

// ProcessFile reads claim ids from a file and reroutes them concurrently
func (b *BatchProcessor) ProcessFile(ctx context.Context, filePath string) ([]*RerouteResult, error) {
	claimIDs, err := ReadClaimIDsFromFile(filePath)
	if err != nil {
		return nil, fmt.Errorf("read claim ids: %w", err)
	}

	return b.ProcessClaims(ctx, claimIDs), nil
}

// ReadClaimIDsFromFile reads claim ids from a file, one per line.
// Empty lines and #-comments are skipped, duplicates are dropped.
func ReadClaimIDsFromFile(filePath string) ([]string, error) {
	file, err := os.Open(filePath)
	if err != nil {
		return nil, fmt.Errorf("open file: %w", err)
	}
	defer func() { _ = file.Close() }()

	var claimIDs []string
	seen := make(map[string]bool)

	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())

		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		if !seen[line] {
			seen[line] = true
			claimIDs = append(claimIDs, line)
		}
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("scan file: %w", err)
	}

	return claimIDs, nil
}
