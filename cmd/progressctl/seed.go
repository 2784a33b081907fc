package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/alem-hub/progress-hub/internal/application/command"
	"github.com/alem-hub/progress-hub/internal/domain/progress"
	"github.com/alem-hub/progress-hub/pkg/timeutil"
)

// Gaps in the demo history, as days before today.
var seedGaps = map[int]bool{2: true, 5: true, 12: true, 13: true, 20: true}

var (
	seedKinds  = []progress.ActivityKind{progress.KindPractice, progress.KindQuiz, progress.KindRevision}
	seedTopics = []string{"Python", "React", "Docker", "SQL"}
)

// seedEvents builds a deterministic history that ends today and spans days
// calendar days, with a few gaps that break the streak.
func seedEvents(studentID string, today time.Time, days int) []progress.LearningEvent {
	events := make([]progress.LearningEvent, 0, days)
	for i := days - 1; i >= 0; i-- {
		if seedGaps[i] {
			continue
		}
		events = append(events, progress.LearningEvent{
			StudentID: studentID,
			Date:      timeutil.AddDays(today, -i),
			Kind:      seedKinds[i%len(seedKinds)],
			Topic:     seedTopics[i%len(seedTopics)],
			Score:     60 + (i*7)%41,
			TimeSpent: 20 + (i*11)%71,
			Attempt:   1,
		})
	}
	return events
}

func newSeedCommand(c *cli) *cobra.Command {
	var (
		studentID string
		days      int
	)

	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Ingest a deterministic demo history for one student",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			if days < 1 || days > 365 {
				return fmt.Errorf("--days must be between 1 and 365, got %d", days)
			}

			a, err := c.open(ctx)
			if err != nil {
				return err
			}
			defer a.Close()
			if a.IsMemoryStore() {
				c.log.Warn("seeding the in-memory store, data is discarded on exit")
			}

			events := seedEvents(studentID, timeutil.Today(a.Clock), days)
			for _, ev := range events {
				if _, err := a.Ingest.Handle(ctx, command.IngestEventCommand{
					Event:  ev,
					Source: command.SourceSeed,
				}); err != nil {
					return fmt.Errorf("ingest %s: %w", timeutil.FormatDateStr(ev.Date), err)
				}
			}
			a.Bus.Drain()

			fmt.Printf("seeded %d events for student %s over %d days\n", len(events), studentID, days)
			return nil
		},
	}

	cmd.Flags().StringVar(&studentID, "student", "123", "student ID")
	cmd.Flags().IntVar(&days, "days", 31, "length of the history in days, ending today")

	return cmd
}
