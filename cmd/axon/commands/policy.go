package commands

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/opsloop/axon/internal/app"
	"github.com/opsloop/axon/internal/printer"
	"github.com/opsloop/axon/internal/tuner"
	"github.com/opsloop/axon/pkg/evidence"
)

var policyCmd = &cobra.Command{
	Use:   "policy",
	Short: "Show, apply, or roll back tuner-proposed policy overrides",
}

var policyApprovedBy string

var policyShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Evaluate the current window and print proposed overrides",
	RunE:  runPolicyShow,
}

var policyApplyCmd = &cobra.Command{
	Use:   "apply",
	Short: "Evaluate the current window and apply proposed overrides",
	RunE:  runPolicyApply,
}

var policyRollbackCmd = &cobra.Command{
	Use:   "rollback <snapshot_id>",
	Short: "Restore the override state active immediately before a snapshot",
	Args:  cobra.ExactArgs(1),
	RunE:  runPolicyRollback,
}

func init() {
	policyApplyCmd.Flags().StringVar(&policyApprovedBy, "approved-by", "operator", "identity recorded as approving this snapshot")
	policyCmd.AddCommand(policyShowCmd)
	policyCmd.AddCommand(policyApplyCmd)
	policyCmd.AddCommand(policyRollbackCmd)
	rootCmd.AddCommand(policyCmd)
}

func evaluateWindow(a *app.App) ([]tuner.Proposal, error) {
	attempts, err := a.Store.AllAttempts()
	if err != nil {
		return nil, fmt.Errorf("failed to load attempts: %w", err)
	}

	end := time.Now().UTC()
	start := end.AddDate(0, 0, -a.Cfg.Tuner.WindowDays)

	var samples []tuner.AttemptSample
	for _, at := range attempts {
		if at.StartedAt.Before(start) || at.StartedAt.After(end) {
			continue
		}
		if at.Status != evidence.AttemptSucceeded && at.Status != evidence.AttemptFailed {
			continue
		}
		samples = append(samples, tuner.AttemptSample{
			StrategyID:   at.StrategyID,
			Succeeded:    at.Status == evidence.AttemptSucceeded,
			LatencyMs:    at.Telemetry.LatencyMs,
			FallbackUsed: at.Telemetry.FallbacksUsed > 0,
		})
	}

	records := a.Tuner.Evaluate(samples, start, end, map[string]int{})
	return a.Tuner.Propose(records), nil
}

func runPolicyShow(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	a, err := app.Build(ctx, configPath)
	if err != nil {
		return err
	}
	defer a.Close()

	proposals, err := evaluateWindow(a)
	if err != nil {
		return err
	}

	if len(proposals) == 0 {
		printer.Info("no policy changes proposed")
		return nil
	}
	for _, p := range proposals {
		printer.Println(fmt.Sprintf("%-30s %-10s priority=%.3f", p.Override.Key, p.Override.Value, p.Priority))
	}
	return nil
}

func runPolicyApply(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	a, err := app.Build(ctx, configPath)
	if err != nil {
		return err
	}
	defer a.Close()

	if !a.Cfg.Tuner.Apply {
		return printer.Error(
			"automatic policy application is disabled",
			"tuner.apply is false in axon.toml.",
			[]string{"Set tuner.apply = true to allow `axon policy apply`, or apply overrides manually."},
		)
	}

	proposals, err := evaluateWindow(a)
	if err != nil {
		return err
	}
	if len(proposals) == 0 {
		printer.Info("no policy changes to apply")
		return nil
	}

	snapshotID, err := a.Tuner.Apply(proposals, policyApprovedBy)
	if err != nil {
		return fmt.Errorf("failed to apply policy overrides: %w", err)
	}

	printer.Success("applied %d override(s) as snapshot %s", len(proposals), snapshotID)
	return nil
}

func runPolicyRollback(cmd *cobra.Command, args []string) error {
	snapshotID := args[0]
	ctx := context.Background()
	a, err := app.Build(ctx, configPath)
	if err != nil {
		return err
	}
	defer a.Close()

	all, err := a.Store.AllOverrides()
	if err != nil {
		return fmt.Errorf("failed to load overrides: %w", err)
	}

	found := false
	for _, o := range all {
		if o.SnapshotID == snapshotID {
			found = true
			break
		}
	}
	if !found {
		return printer.Error(fmt.Sprintf("snapshot %q not found", snapshotID), "No override snapshot with that ID has been applied.", nil)
	}

	priorState := tuner.ActiveAt(all, snapshotID)

	var restore []tuner.Proposal
	for _, o := range priorState {
		restore = append(restore, tuner.Proposal{Override: evidence.PolicyOverride{Scope: o.Scope, Key: o.Key, Value: o.Value}})
	}

	newSnapshotID, err := a.Tuner.Apply(restore, "rollback:"+snapshotID)
	if err != nil {
		return fmt.Errorf("failed to roll back: %w", err)
	}

	printer.Success("restored %d override(s) from before snapshot %s as new snapshot %s", len(restore), snapshotID, newSnapshotID)
	return nil
}
