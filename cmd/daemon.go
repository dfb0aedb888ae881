package cmd

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/marcus/shopsync/internal/config"
	"github.com/marcus/shopsync/internal/output"
	"github.com/marcus/shopsync/internal/replay"
)

var daemonCmd = &cobra.Command{
	Use:     "daemon",
	Short:   "Run the background replay daemon",
	Long: `Periodically probes connectivity and replays queued items when the backend
is reachable. Registered replay intents are consumed here; while a daemon is
running, dispatchers skip their inline replay fallback.`,
	GroupID: "system",
	RunE: func(cmd *cobra.Command, args []string) error {
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

		interval := config.GetDaemonInterval()
		output.Info("shopsync daemon started (interval %s)", interval)

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()
		defer replay.ClearHeartbeat(getBaseDir())

		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			if err := replay.Heartbeat(getBaseDir()); err != nil {
				slog.Warn("daemon: heartbeat failed", "err", err)
			}
			daemonTick(s)

			select {
			case <-ctx.Done():
				output.Info("daemon stopping")
				return nil
			case <-ticker.C:
			}
		}
	},
}

// daemonTick runs one probe-and-drain cycle. Errors are logged; the daemon
// keeps running.
func daemonTick(s *stack) {
	if !s.Prober.Online() {
		return
	}

	intents, err := s.Queue.PendingIntents()
	if err != nil {
		slog.Warn("daemon: read intents failed", "err", err)
		return
	}
	counts, err := s.Queue.Counts()
	if err != nil {
		slog.Warn("daemon: read counts failed", "err", err)
		return
	}
	var pending int64
	for _, n := range counts {
		pending += n
	}
	if len(intents) == 0 && pending == 0 {
		return
	}

	summary, err := s.Engine.DrainOnce(time.Now())
	if err != nil {
		slog.Warn("daemon: drain failed", "err", err)
		return
	}
	for _, in := range intents {
		if err := s.Queue.MarkIntentFired(in.Tag); err != nil {
			slog.Debug("daemon: mark intent fired failed", "tag", in.Tag, "err", err)
		}
	}
	if n := summary.Delivered(); n > 0 {
		slog.Info("daemon: delivered items", "count", n)
	}
}

func init() {
	rootCmd.AddCommand(daemonCmd)
}
