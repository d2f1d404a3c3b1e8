package commands

import (
	"context"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/opsloop/axon/internal/app"
	"github.com/opsloop/axon/internal/autonomy"
	"github.com/opsloop/axon/internal/printer"
	"github.com/opsloop/axon/internal/watch"
	"github.com/opsloop/axon/pkg/evidence"
)

var (
	submitProfile string
	submitWait    bool
	submitTimeout time.Duration
)

var submitCmd = &cobra.Command{
	Use:   "submit <task text>",
	Short: "Submit a task to the kernel and print its run_id",
	Long: `Submit a task for classification, ranking, and execution.

Submission is asynchronous: axon submit returns the run_id immediately.
Use --wait to block until the run reaches a terminal outcome, or poll
separately with:

  axon status <run_id>`,
	Args: cobra.MinimumNArgs(1),
	RunE: runSubmit,
}

func init() {
	submitCmd.Flags().StringVar(&submitProfile, "profile", string(evidence.ProfileAuto), "governance profile: strict, adaptive, auto")
	submitCmd.Flags().BoolVar(&submitWait, "wait", false, "block until the run reaches a terminal outcome")
	submitCmd.Flags().DurationVar(&submitTimeout, "timeout", 5*time.Minute, "max time to wait with --wait")
	rootCmd.AddCommand(submitCmd)
}

func runSubmit(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	a, err := app.Build(ctx, configPath)
	if err != nil {
		return err
	}
	defer a.Close()

	task := evidence.NewTaskSpec(strings.Join(args, " "), evidence.OriginCLI)

	runID, err := a.Kernel.Submit(task, evidence.Profile(submitProfile), autonomy.ClarificationCheck(app.DefaultClarify))
	if err != nil {
		return err
	}

	printer.Success("submitted run %s", runID)

	if !submitWait {
		printer.Info("poll with: axon status %s", runID)
		return nil
	}

	summary, err := watch.UntilReady(ctx, func(ctx context.Context) (*evidence.RunSummary, bool, error) {
		s, ok := a.Kernel.Status(runID)
		return s, ok, nil
	}, time.Second, submitTimeout)
	if err != nil {
		return err
	}

	printer.Info("run %s finished: %s", summary.RunID, summary.Outcome)
	return nil
}
