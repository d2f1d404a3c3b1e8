package commands

import (
	"context"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/opsloop/axon/internal/app"
	"github.com/opsloop/axon/internal/printer"
)

var observeCmd = &cobra.Command{
	Use:   "observe",
	Short: "Stream live attempt, run, and breaker events from the running kernel",
	Long: `Subscribes to the live event bus and prints attempts, run outcomes, and
breaker transitions as they happen. Requires redis_addr to be configured;
without it, axon still runs, just without a live feed.

Stop with Ctrl-C.`,
	RunE: runObserve,
}

func init() {
	rootCmd.AddCommand(observeCmd)
}

func runObserve(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := app.Build(ctx, configPath)
	if err != nil {
		return err
	}
	defer a.Close()

	if a.Live == nil {
		return printer.Error(
			"no live event bus configured",
			"redis_addr is empty in axon.toml.",
			[]string{"Set redis_addr to a reachable Redis instance to enable `axon observe`."},
		)
	}

	attempts := a.Live.SubscribeAttempts(ctx)
	runs := a.Live.SubscribeRuns(ctx)
	breakers := a.Live.SubscribeBreakerTransitions(ctx)
	defer attempts.Close()
	defer runs.Close()
	defer breakers.Close()

	printer.Info("watching for live events (ctrl-c to stop)")
	for {
		select {
		case <-ctx.Done():
			return nil
		case at, ok := <-attempts.Events():
			if !ok {
				return nil
			}
			printer.Println("attempt " + at.AttemptID + " (" + at.StrategyID + "): " + string(at.Status))
		case r, ok := <-runs.Events():
			if !ok {
				return nil
			}
			printer.Println("run " + r.RunID + " finished: " + string(r.Outcome))
		case t, ok := <-breakers.Events():
			if !ok {
				return nil
			}
			printer.Println("breaker " + t.ToolName + ": " + t.From + " -> " + t.To)
		}
	}
}
