package commands

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/opsloop/axon/internal/app"
	"github.com/opsloop/axon/internal/printer"
	"github.com/opsloop/axon/internal/timespec"
	"github.com/opsloop/axon/pkg/evidence"
)

var feedbackCmd = &cobra.Command{
	Use:   "feedback",
	Short: "Record and inspect operator feedback on completed runs",
}

var feedbackNote string

var feedbackAddCmd = &cobra.Command{
	Use:   "add <run_id> <up|down>",
	Short: "Rate a completed run",
	Args:  cobra.ExactArgs(2),
	RunE:  runFeedbackAdd,
}

var feedbackStatsSince string

var feedbackStatsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show aggregate feedback counts",
	RunE:  runFeedbackStats,
}

func init() {
	feedbackAddCmd.Flags().StringVar(&feedbackNote, "note", "", "optional free-form note")
	feedbackStatsCmd.Flags().StringVar(&feedbackStatsSince, "since", "", "only count feedback since this time (duration like 24h, or RFC3339)")
	feedbackCmd.AddCommand(feedbackAddCmd)
	feedbackCmd.AddCommand(feedbackStatsCmd)
	rootCmd.AddCommand(feedbackCmd)
}

func runFeedbackAdd(cmd *cobra.Command, args []string) error {
	runID, polarity := args[0], strings.ToLower(args[1])

	var rating evidence.Rating
	switch polarity {
	case "up":
		rating = evidence.RatingPositive
	case "down":
		rating = evidence.RatingNegative
	default:
		return printer.Error("invalid rating", fmt.Sprintf("unknown rating: %s", polarity), []string{"Use 'up' or 'down'"})
	}

	ctx := context.Background()
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

	if err := a.Store.AppendFeedback(&evidence.FeedbackRecord{
		RunID:       runID,
		Rating:      rating,
		Note:        feedbackNote,
		SubmittedAt: time.Now().UTC(),
	}); err != nil {
		return fmt.Errorf("failed to record feedback: %w", err)
	}

	printer.Success("recorded %s feedback for run %s", polarity, runID)
	return nil
}

func runFeedbackStats(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	a, err := app.Build(ctx, configPath)
	if err != nil {
		return err
	}
	defer a.Close()

	records, err := a.Store.AllFeedback()
	if err != nil {
		return fmt.Errorf("failed to load feedback: %w", err)
	}

	var sinceMs int64
	if feedbackStatsSince != "" {
		sinceMs, err = timespec.Parse(feedbackStatsSince)
		if err != nil {
			return printer.Error("invalid --since", err.Error(), []string{"Use a duration like 24h, or an RFC3339 timestamp."})
		}
	}

	var up, down int
	for _, r := range records {
		if sinceMs > 0 && r.SubmittedAt.UnixMilli() < sinceMs {
			continue
		}
		if r.Rating == evidence.RatingPositive {
			up++
		} else {
			down++
		}
	}

	printer.Info("%d total: %d up, %d down", len(records), up, down)
	return nil
}
