package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/marcus/shopsync/internal/config"
	"github.com/marcus/shopsync/internal/models"
	"github.com/marcus/shopsync/internal/output"
	"github.com/marcus/shopsync/internal/replay"
)

var statusCmd = &cobra.Command{
	Use:     "status",
	Short:   "Show connectivity, queue and subscription state",
	GroupID: "queue",
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := newStack()
		if err != nil {
			output.Error("%v", err)
			return err
		}
		defer s.Close()

		output.Info("Server:  %s", config.GetServerURL())
		output.Info("Device:  %s", s.Client.DeviceID)
		output.Info("Network: %s", output.FormatOnline(s.Prober.Online()))

		if replay.DaemonRunning(getBaseDir()) {
			output.Info("Daemon:  running")
		} else {
			output.Info("Daemon:  not running")
		}

		fmt.Print(output.SectionHeader("queue"))
		if s.Queue == nil {
			output.Warning("local queue unavailable")
		} else {
			counts, err := s.Queue.Counts()
			if err != nil {
				output.Error("read queue: %v", err)
				return err
			}
			for _, category := range models.Categories() {
				output.Info("  %s  %d pending", output.FormatCategory(category), counts[category])
			}
			if dead, err := s.Queue.DeadLetterCount(); err == nil && dead > 0 {
				output.Warning("  %d dead-lettered item(s)", dead)
			}
		}

		fmt.Print(output.SectionHeader("notifications"))
		output.Info("  Consent: %s", s.Push.Consent())
		if sub := s.Push.Subscription(); sub != nil {
			output.Info("  Subscribed: %s", output.Truncate(sub.Endpoint, 60))
			output.Info("  Created: %s", output.FormatTimeAgo(sub.CreatedAt))
		} else {
			output.Info("  Subscribed: no")
		}

		return nil
	},
}

func init() {
	rootCmd.AddCommand(statusCmd)
}
