package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

// queuesCmd represents the queues command
var queuesCmd = &cobra.Command{
	Use:   "queues",
	Short: "Show catalog teams and their assignment counts",
	Long: `Queues lists every team in the routing catalog together with the
number of claims currently assigned to it in the ledger.

Example:
  claimroute queues
  claimroute queues --ledger sqlite --ledger-path ./assignments.db
  claimroute queues --json`,
	RunE: runQueues,
}

// historyCmd represents the history command
var historyCmd = &cobra.Command{
	Use:   "history <claim-id>",
	Short: "Show the assignment audit trail for a claim",
	Long: `History prints every committed assignment for a claim in version
order, oldest first. The trail is append-only; superseded assignments
are retained.

Example:
  claimroute history CLM-2024-001
  claimroute history CLM-2024-001 --ledger sqlite --ledger-path ./assignments.db`,
	Args: cobra.ExactArgs(1),
	RunE: runHistory,
}

func init() {
	rootCmd.AddCommand(queuesCmd)
	rootCmd.AddCommand(historyCmd)

	addStoreFlags(queuesCmd)
	queuesCmd.Flags().BoolVar(&jsonOutput, "json", false, "print the summary as JSON")

	addStoreFlags(historyCmd)
}

func runQueues(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	cfg := resolveConfig()
	a, err := buildApp(cfg)
	if err != nil {
		return err
	}
	defer a.Close()

	queues, err := a.triage.Queues(ctx)
	if err != nil {
		return err
	}

	if jsonOutput {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(queues)
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "TEAM\tID\tROLES\tCLAIMS")
	for _, q := range queues {
		fmt.Fprintf(w, "%s\t%s\t%s\t%d\n",
			q.Entry.DisplayName, q.Entry.TargetID, strings.Join(q.Entry.EligibleRoles, ", "), q.Count)
	}
	return w.Flush()
}

func runHistory(cmd *cobra.Command, args []string) error {
	claimID := args[0]
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	cfg := resolveConfig()
	a, err := buildApp(cfg)
	if err != nil {
		return err
	}
	defer a.Close()

	trail, err := a.triage.History(ctx, claimID)
	if err != nil {
		return err
	}
	if len(trail) == 0 {
		fmt.Printf("No assignments recorded for claim %s\n", claimID)
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "VERSION\tTEAM\tASSIGNEE\tCOMMITTED\tNOTE")
	for _, rec := range trail {
		fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%s\n",
			rec.Version, rec.TargetName, rec.Assignee, rec.CommittedAt.Format("2006-01-02 15:04:05"), rec.Note)
	}
	return w.Flush()
}
