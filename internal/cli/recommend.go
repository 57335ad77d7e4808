package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/pvoronin/claimroute/internal/model"
)

var (
	baseURL     string
	timeout     time.Duration
	noCache     bool
	catalogPath string
	ledgerFlag  string
	ledgerPath  string
	jsonOutput  bool
)

// recommendCmd represents the recommend command
var recommendCmd = &cobra.Command{
	Use:   "recommend <claim-id>",
	Short: "Compute the routing recommendation for a claim",
	Long: `Recommend fetches a claim from the claim store, resolves its risk
scores and prints the default routing selection:
- Fraud score at or above the investigation threshold routes to SIU
- Otherwise the claim routes to a category/tier team, where the tier is
  the stricter of the complexity band and the severity level

The recommendation is advisory. Nothing is committed until 'reassign'.

Example:
  claimroute recommend CLM-2024-001
  claimroute recommend CLM-2024-001 --json
  claimroute recommend CLM-2024-001 --base-url http://claims.internal/api`,
	Args: cobra.ExactArgs(1),
	RunE: runRecommend,
}

func init() {
	rootCmd.AddCommand(recommendCmd)

	addStoreFlags(recommendCmd)
	recommendCmd.Flags().BoolVar(&jsonOutput, "json", false, "print the recommendation as JSON")
}

// addStoreFlags registers the flags shared by every command that talks
// to the claim store and the ledger.
func addStoreFlags(cmd *cobra.Command) {
	cmd.Flags().StringVar(&baseURL, "base-url", "", "claim store base URL (overrides config)")
	cmd.Flags().DurationVar(&timeout, "timeout", 30*time.Second, "overall command timeout")
	cmd.Flags().BoolVar(&noCache, "no-cache", false, "disable claim payload cache (force fresh fetch)")
	cmd.Flags().StringVar(&catalogPath, "catalog", "", "team catalog YAML path (default: built-in catalog)")
	cmd.Flags().StringVar(&ledgerFlag, "ledger", "", "ledger backend: memory or sqlite (overrides config)")
	cmd.Flags().StringVar(&ledgerPath, "ledger-path", "", "sqlite ledger file path")
}

// resolveConfig applies the shared store flags on top of the config
// file and environment.
func resolveConfig() *model.Config {
	cfg := loadConfig()
	if baseURL != "" {
		cfg.HTTP.BaseURL = baseURL
	}
	if timeout > 0 {
		cfg.HTTP.Timeout = timeout
	}
	if noCache {
		cfg.Cache.Enabled = false
	}
	if catalogPath != "" {
		cfg.Catalog.Path = catalogPath
	}
	if ledgerFlag != "" {
		cfg.Ledger.Backend = ledgerFlag
	}
	if ledgerPath != "" {
		cfg.Ledger.Path = ledgerPath
	}
	cfg.Output.Verbose = verbose
	return cfg
}

func runRecommend(cmd *cobra.Command, args []string) error {
	claimID := args[0]
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	cfg := resolveConfig()
	a, err := buildApp(cfg)
	if err != nil {
		return err
	}
	defer a.Close()

	if verbose {
		fmt.Fprintf(os.Stderr, "Fetching claim %s from %s\n", claimID, cfg.HTTP.BaseURL)
	}

	rec, err := a.triage.Recommend(ctx, claimID)
	if err != nil {
		return fmt.Errorf("recommend failed: %w", err)
	}

	if jsonOutput {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(rec)
	}

	entry, err := a.catalog.Lookup(rec.Target)
	if err != nil {
		return err
	}

	fmt.Printf("Claim:       %s\n", rec.ClaimID)
	fmt.Printf("Team:        %s (%s)\n", entry.DisplayName, rec.Target.ID())
	fmt.Printf("Assignee:    %s\n", rec.Assignee)
	fmt.Printf("Reason:      %s\n", rec.Reason)
	fmt.Printf("Scores:      fraud=%.2f complexity=%.2f severity=%s\n",
		rec.Score.Fraud, rec.Score.Complexity, rec.Score.Severity)
	fmt.Printf("Version:     %d\n", rec.Version)

	return nil
}
