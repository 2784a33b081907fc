package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/alem-hub/progress-hub/internal/application/command"
	"github.com/alem-hub/progress-hub/internal/application/query"
	"github.com/alem-hub/progress-hub/pkg/logger"
	"github.com/alem-hub/progress-hub/pkg/timeutil"
)

func newRecomputeCommand(c *cli) *cobra.Command {
	var (
		studentID string
		dateStr   string
		days      int
	)

	cmd := &cobra.Command{
		Use:   "recompute",
		Short: "Rebuild daily summaries from stored events",
		Long: "Rebuild the daily summary for --date and the (--days - 1) days before it.\n" +
			"Days without events are reported and left untouched.",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			if days < 1 {
				return fmt.Errorf("--days must be at least 1, got %d", days)
			}

			a, err := c.open(ctx)
			if err != nil {
				return err
			}
			defer a.Close()

			end := timeutil.Today(a.Clock)
			if dateStr != "" {
				if end, err = timeutil.ParseDate(dateStr); err != nil {
					return fmt.Errorf("parse --date: %w", err)
				}
			}

			for i := days - 1; i >= 0; i-- {
				day := timeutil.AddDays(end, -i)
				res, err := a.Recompute.Handle(ctx, command.RecomputeDayCommand{
					StudentID:     studentID,
					Date:          day,
					CorrelationID: fmt.Sprintf("progressctl-%d", time.Now().UnixNano()),
				})
				if err != nil {
					return fmt.Errorf("recompute %s: %w", timeutil.FormatDateStr(day), err)
				}
				if res.Summary == nil {
					fmt.Printf("%s  no events\n", timeutil.FormatDateStr(day))
					continue
				}
				s := res.Summary
				fmt.Printf("%s  events=%d total_time=%d avg_score=%.2f progress=%.2f valid=%t\n",
					timeutil.FormatDateStr(day), res.EventCount, s.TotalTime, s.AvgScore, s.ProgressScore, s.IsValidDay)
			}

			a.Bus.Drain()
			state, err := a.Rewards.Handle(ctx, query.SettleRewardsQuery{StudentID: studentID})
			if err != nil {
				// Rewards need a registered student; summaries are rebuilt regardless.
				c.log.Debug("rewards not settled", logger.Err(err))
				return nil
			}
			fmt.Printf("rewards: puzzle_pieces=%d badges=%v\n", state.PuzzlePieces, state.Badges)
			return nil
		},
	}

	cmd.Flags().StringVar(&studentID, "student", "", "student ID")
	cmd.Flags().StringVar(&dateStr, "date", "", "last day to rebuild, YYYY-MM-DD (default today)")
	cmd.Flags().IntVar(&days, "days", 1, "number of days to rebuild, ending at --date")
	_ = cmd.MarkFlagRequired("student")

	return cmd
}

func newStreakCommand(c *cli) *cobra.Command {
	var studentID string

	cmd := &cobra.Command{
		Use:   "streak",
		Short: "Print a student's current streak and confidence",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, err := c.open(ctx)
			if err != nil {
				return err
			}
			defer a.Close()

			streak, err := a.Streak.Handle(ctx, query.GetStreakQuery{StudentID: studentID})
			if err != nil {
				return fmt.Errorf("get streak: %w", err)
			}
			last := "never"
			if streak.LastActivityDate != nil {
				last = timeutil.FormatDateStr(*streak.LastActivityDate)
			}
			fmt.Printf("streak=%d active=%t last_valid_day=%s\n", streak.CurrentStreak, streak.IsActive, last)

			conf, err := a.Confidence.Handle(ctx, query.GetConfidenceQuery{StudentID: studentID})
			if err != nil {
				return fmt.Errorf("get confidence: %w", err)
			}
			fmt.Printf("confidence=%s reason=%q\n", conf.Level, conf.Reason)
			return nil
		},
	}

	cmd.Flags().StringVar(&studentID, "student", "", "student ID")
	_ = cmd.MarkFlagRequired("student")

	return cmd
}
