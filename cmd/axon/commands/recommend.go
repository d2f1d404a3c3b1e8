package commands

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/opsloop/axon/internal/app"
	"github.com/opsloop/axon/internal/printer"
	"github.com/opsloop/axon/pkg/evidence"
)

var recommendProfile string

var recommendCmd = &cobra.Command{
	Use:   "recommend <task text>",
	Short: "Preview the ranked execution plan for a task without running it",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runRecommend,
}

func init() {
	recommendCmd.Flags().StringVar(&recommendProfile, "profile", string(evidence.ProfileAuto), "governance profile: strict, adaptive, auto")
	rootCmd.AddCommand(recommendCmd)
}

func runRecommend(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	a, err := app.Build(ctx, configPath)
	if err != nil {
		return err
	}
	defer a.Close()

	task := evidence.NewTaskSpec(strings.Join(args, " "), evidence.OriginCLI)
	rc, err := a.Kernel.BuildRunContext(task, evidence.Profile(recommendProfile))
	if err != nil {
		return err
	}

	plan := a.Ranker.Plan(rc, task.Text, rc.MaxFallbackSteps, task.TaskKind)

	printer.Info("task_kind=%s profile=%s ambiguous=%v", task.TaskKind, rc.Profile, plan.Ambiguous)
	for i, c := range plan.Candidates {
		printer.Println(fmt.Sprintf("%d. %-24s composite=%.3f risk=%s maturity=%s", i+1, c.StrategyID, c.CompositeScore, c.RiskLevel, c.Maturity))
	}
	if len(plan.Candidates) == 0 {
		printer.Warning("no eligible strategies for this task under profile %q", rc.Profile)
	}
	return nil
}
