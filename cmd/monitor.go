package cmd

import (
	"time"

	"github.com/spf13/cobra"

	"github.com/marcus/shopsync/internal/output"
	"github.com/marcus/shopsync/internal/tui/monitor"
)

var monitorCmd = &cobra.Command{
	Use:     "monitor",
	Short:   "Live queue and connectivity monitor",
	GroupID: "system",
	Args:    cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		interval, _ := cmd.Flags().GetDuration("interval")

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

		return monitor.Run(s.Queue, s.Prober, s.Engine, interval)
	},
}

func init() {
	monitorCmd.Flags().Duration("interval", 5*time.Second, "refresh interval")
	rootCmd.AddCommand(monitorCmd)
}
