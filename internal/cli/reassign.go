package cli

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/pvoronin/claimroute/internal/model"
	"github.com/pvoronin/claimroute/internal/pipeline"
)

var (
	targetFlag   string
	assigneeFlag string
	noteFlag     string
	versionFlag  int64
	autoAccept   bool
)

// reassignCmd represents the reassign command
var reassignCmd = &cobra.Command{
	Use:   "reassign <claim-id>",
	Short: "Commit a routing decision for a claim",
	Long: `Reassign commits a routing decision to the assignment ledger and
writes it back to the claim store.

By default the engine's recommendation is presented and committed.
Target and assignee can be overridden, but the assignee's role must be
eligible for the chosen team. The commit is rejected with a conflict
when another decision landed since the claim was read; the latest state
is then shown so the decision can be remade.

Example:
  claimroute reassign CLM-2024-001 --auto
  claimroute reassign CLM-2024-001 --target accident-high --assignee "Senior Adjuster" --note "escalated"
  claimroute reassign CLM-2024-001 --target siu-fraud --assignee "SIU Investigator" --version 2`,
	Args: cobra.ExactArgs(1),
	RunE: runReassign,
}

func init() {
	rootCmd.AddCommand(reassignCmd)

	addStoreFlags(reassignCmd)
	reassignCmd.Flags().StringVar(&targetFlag, "target", "", "target team id, e.g. health-mid or siu-fraud (default: engine recommendation)")
	reassignCmd.Flags().StringVar(&assigneeFlag, "assignee", "", "assignee role or name (default: team's default role)")
	reassignCmd.Flags().StringVar(&noteFlag, "note", "", "note recorded on the assignment")
	reassignCmd.Flags().Int64Var(&versionFlag, "version", -1, "expected claim version (default: version observed at recommendation)")
	reassignCmd.Flags().BoolVar(&autoAccept, "auto", false, "accept the engine recommendation without overrides")
}

func runReassign(cmd *cobra.Command, args []string) error {
	claimID := args[0]
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	cfg := resolveConfig()
	a, err := buildApp(cfg)
	if err != nil {
		return err
	}
	defer a.Close()

	rec, err := a.triage.Recommend(ctx, claimID)
	if err != nil {
		return fmt.Errorf("recommend failed: %w", err)
	}

	decision, err := buildDecision(a, rec)
	if err != nil {
		return err
	}

	committed, err := a.triage.Commit(ctx, decision)
	if err != nil {
		var conflict *model.ConflictError
		if errors.As(err, &conflict) {
			return presentConflict(ctx, a, conflict)
		}
		return fmt.Errorf("reassign failed: %w", err)
	}

	fmt.Printf("Claim %s assigned to %s (%s), version %d\n",
		committed.ClaimID, committed.TargetName, committed.Assignee, committed.Version)
	if committed.Note != "" {
		fmt.Printf("Note: %s\n", committed.Note)
	}

	return nil
}

// buildDecision applies flag overrides to the engine recommendation
func buildDecision(a *app, rec *model.Recommendation) (pipeline.Decision, error) {
	d := pipeline.Decision{
		ClaimID:         rec.ClaimID,
		Target:          rec.Target,
		Assignee:        rec.Assignee,
		Note:            noteFlag,
		ExpectedVersion: rec.Version,
	}

	if autoAccept {
		if targetFlag != "" || assigneeFlag != "" {
			return pipeline.Decision{}, fmt.Errorf("--auto cannot be combined with --target or --assignee")
		}
	} else {
		if targetFlag != "" {
			target, err := model.ParseTargetID(targetFlag)
			if err != nil {
				return pipeline.Decision{}, err
			}
			d.Target = target
			// An overridden target invalidates the recommended assignee
			// unless one was given explicitly.
			if assigneeFlag == "" {
				assignee, err := a.catalog.DefaultAssignee(target)
				if err != nil {
					return pipeline.Decision{}, err
				}
				d.Assignee = assignee
			}
		}
		if assigneeFlag != "" {
			d.Assignee = assigneeFlag
		}
	}

	if versionFlag >= 0 {
		d.ExpectedVersion = versionFlag
	}

	return d, nil
}

// presentConflict reports a lost optimistic-concurrency race and shows
// the assignment that won, so the operator can decide again from
// current state.
func presentConflict(ctx context.Context, a *app, conflict *model.ConflictError) error {
	fmt.Fprintf(os.Stderr, "Conflict: claim %s moved from version %d to %d while deciding\n",
		conflict.ClaimID, conflict.Expected, conflict.Current)

	current, ok, err := a.ledger.Current(ctx, conflict.ClaimID)
	if err == nil && ok {
		fmt.Fprintf(os.Stderr, "Current assignment: %s (%s), version %d\n",
			current.TargetName, current.Assignee, current.Version)
		if current.Note != "" {
			fmt.Fprintf(os.Stderr, "Note: %s\n", current.Note)
		}
	}

	fmt.Fprintf(os.Stderr, "Re-run 'claimroute reassign %s' to decide against the latest state\n", conflict.ClaimID)
	return conflict
}
