package commands

import (
	"context"
	"time"

	"github.com/spf13/cobra"

	"github.com/opsloop/axon/internal/app"
	"github.com/opsloop/axon/internal/printer"
	"github.com/opsloop/axon/internal/watch"
	"github.com/opsloop/axon/pkg/evidence"
)

var (
	statusWait    bool
	statusTimeout time.Duration
)

var statusCmd = &cobra.Command{
	Use:   "status <run_id>",
	Short: "Report a run's terminal outcome, or that it is still in flight",
	Args:  cobra.ExactArgs(1),
	RunE:  runStatus,
}

func init() {
	statusCmd.Flags().BoolVar(&statusWait, "wait", false, "block until the run reaches a terminal outcome")
	statusCmd.Flags().DurationVar(&statusTimeout, "timeout", 5*time.Minute, "max time to wait with --wait")
	rootCmd.AddCommand(statusCmd)
}

func runStatus(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	runID := args[0]

	a, err := app.Build(ctx, configPath)
	if err != nil {
		return err
	}
	defer a.Close()

	resolved, err := resolveRunID(a, runID)
	if err != nil {
		return friendlyResolveErr(err, runID)
	}
	runID = resolved

	if !statusWait {
		summary, ok := a.Kernel.Status(runID)
		if !ok {
			printer.Info("run %s is still in flight", runID)
			return nil
		}
		printer.Info("run %s: %s", summary.RunID, summary.Outcome)
		return nil
	}

	summary, err := watch.UntilReady(ctx, func(ctx context.Context) (*evidence.RunSummary, bool, error) {
		s, ok := a.Kernel.Status(runID)
		return s, ok, nil
	}, time.Second, statusTimeout)
	if err != nil {
		return err
	}

	printer.Info("run %s: %s", summary.RunID, summary.Outcome)
	return nil
}
