package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/marcus/shopsync/internal/models"
	"github.com/marcus/shopsync/internal/output"
)

var syncCmd = &cobra.Command{
	Use:     "sync",
	Short:   "Replay queued actions against the backend",
	GroupID: "queue",
	RunE: func(cmd *cobra.Command, args []string) error {
		statusOnly, _ := cmd.Flags().GetBool("status")

		s, err := newStack()
		if err != nil {
			output.Error("%v", err)
			return err
		}
		defer s.Close()

		if err := s.requireQueue(); err != nil {
			output.Error("%v", err)
			return err
		}

		if statusOnly {
			return printSyncStatus(s)
		}

		if !s.Prober.Online() {
			output.Error("backend unreachable (set SHOPSYNC_SERVER_URL or check connectivity)")
			return fmt.Errorf("offline")
		}

		summary, err := s.Engine.DrainOnce(time.Now())
		if err != nil {
			output.Error("replay failed: %v", err)
			return err
		}

		// The manual drain satisfies every pending intent.
		if intents, err := s.Queue.PendingIntents(); err == nil {
			for _, in := range intents {
				s.Queue.MarkIntentFired(in.Tag)
			}
		}

		for _, category := range models.Categories() {
			cs := summary.PerCategory[category]
			if cs.Delivered == 0 && cs.Deduped == 0 && cs.Rescheduled == 0 && cs.DeadLettered == 0 {
				continue
			}
			line := fmt.Sprintf("%s  delivered %d", output.FormatCategory(category), cs.Delivered)
			if cs.Deduped > 0 {
				line += fmt.Sprintf(", deduped %d", cs.Deduped)
			}
			if cs.Rescheduled > 0 {
				line += fmt.Sprintf(", rescheduled %d", cs.Rescheduled)
			}
			if cs.DeadLettered > 0 {
				line += fmt.Sprintf(", dead-lettered %d", cs.DeadLettered)
			}
			output.Info("%s", line)
		}

		output.Success("delivered %d item(s)", summary.Delivered())
		if summary.Pending() {
			output.Warning("some items were rescheduled; run 'shopsync sync' again later")
		}
		return nil
	},
}

func printSyncStatus(s *stack) error {
	counts, err := s.Queue.Counts()
	if err != nil {
		output.Error("read queue: %v", err)
		return err
	}

	var total int64
	for _, category := range models.Categories() {
		n := counts[category]
		total += n
		output.Info("%s  %d pending", output.FormatCategory(category), n)
	}

	dead, err := s.Queue.DeadLetterCount()
	if err != nil {
		output.Error("read dead letters: %v", err)
		return err
	}
	if dead > 0 {
		output.Warning("%d dead-lettered item(s) (shopsync queue failed)", dead)
	}

	intents, err := s.Queue.PendingIntents()
	if err != nil {
		output.Error("read intents: %v", err)
		return err
	}
	for _, in := range intents {
		output.Info("intent %s registered %s", in.Tag, output.FormatTimeAgo(in.RegisteredAt))
	}

	if total == 0 && dead == 0 {
		output.Success("queue empty")
	}
	return nil
}

func init() {
	syncCmd.Flags().Bool("status", false, "show pending counts without replaying")
	rootCmd.AddCommand(syncCmd)
}
