package cli

import (
	"context"
	"fmt"
	"os"
	"runtime"
	"time"

	"github.com/spf13/cobra"

	"github.com/pvoronin/claimroute/internal/worker"
)

var (
	concurrency    int
	rerouteNote    string
	rerouteTimeout time.Duration
)

// rerouteCmd represents the reroute command
var rerouteCmd = &cobra.Command{
	Use:   "reroute <file>",
	Short: "Reroute claims from a file in parallel",
	Long: `Reroute reads claim ids from a file (one per line) and routes each
claim to its current recommendation, committing the result. Intended
for re-triaging a backlog after a catalog change.

Each claim is fetched, scored and committed independently; a failure on
one claim does not stop the batch. Version conflicts are retried with a
fresh recommendation.

Example:
  claimroute reroute claims.txt
  claimroute reroute claims.txt --concurrency 16 --note "catalog v3 migration"
  claimroute reroute claims.txt --ledger sqlite --ledger-path ./assignments.db`,
	Args: cobra.ExactArgs(1),
	RunE: runReroute,
}

func init() {
	rootCmd.AddCommand(rerouteCmd)

	addStoreFlags(rerouteCmd)
	rerouteCmd.Flags().IntVar(&concurrency, "concurrency", runtime.NumCPU(), "number of concurrent workers")
	rerouteCmd.Flags().StringVar(&rerouteNote, "note", "batch reroute", "note recorded on every commit")
	rerouteCmd.Flags().DurationVar(&rerouteTimeout, "batch-timeout", 10*time.Minute, "total timeout for the batch")
}

func runReroute(cmd *cobra.Command, args []string) error {
	file := args[0]
	ctx, cancel := context.WithTimeout(context.Background(), rerouteTimeout)
	defer cancel()

	cfg := resolveConfig()
	cfg.Concurrency.Workers = concurrency

	a, err := buildApp(cfg)
	if err != nil {
		return err
	}
	defer a.Close()

	fmt.Fprintf(os.Stderr, "\n")
	fmt.Fprintf(os.Stderr, "═══════════════════════════════════════════════════════════\n")
	fmt.Fprintf(os.Stderr, "  Claimroute Batch Reroute\n")
	fmt.Fprintf(os.Stderr, "═══════════════════════════════════════════════════════════\n")
	fmt.Fprintf(os.Stderr, "\n")
	fmt.Fprintf(os.Stderr, "  Input file:   %s\n", file)
	fmt.Fprintf(os.Stderr, "  Workers:      %d\n", concurrency)
	fmt.Fprintf(os.Stderr, "  Claim store:  %s\n", cfg.HTTP.BaseURL)
	fmt.Fprintf(os.Stderr, "  Timeout:      %v\n", rerouteTimeout)
	fmt.Fprintf(os.Stderr, "\n")

	processor := worker.NewBatchProcessor(a.triage, concurrency, rerouteNote)

	results, err := processor.ProcessFile(ctx, file)
	if err != nil {
		return fmt.Errorf("process file: %w", err)
	}

	successCount := 0
	failureCount := 0

	for _, result := range results {
		if result.Error != nil {
			failureCount++
			fmt.Fprintf(os.Stderr, "✗ %s: %v\n", result.ClaimID, result.Error)
			continue
		}

		successCount++
		fmt.Fprintf(os.Stderr, "✓ %s -> %s (%s), version %d\n",
			result.ClaimID, result.Record.TargetName, result.Record.Assignee, result.Record.Version)
	}

	fmt.Fprintf(os.Stderr, "\n")
	fmt.Fprintf(os.Stderr, "═══════════════════════════════════════════════════════════\n")
	fmt.Fprintf(os.Stderr, "  Reroute Complete\n")
	fmt.Fprintf(os.Stderr, "═══════════════════════════════════════════════════════════\n")
	fmt.Fprintf(os.Stderr, "\n")
	fmt.Fprintf(os.Stderr, "  Total:     %d claims\n", len(results))
	fmt.Fprintf(os.Stderr, "  Success:   %d\n", successCount)
	fmt.Fprintf(os.Stderr, "  Failures:  %d\n", failureCount)
	fmt.Fprintf(os.Stderr, "\n")

	if failureCount > 0 {
		return fmt.Errorf("%d of %d claims failed to reroute", failureCount, len(results))
	}

	return nil
}
