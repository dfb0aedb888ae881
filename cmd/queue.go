package cmd

import (
	"fmt"
	"strconv"

	"github.com/charmbracelet/huh"
	"github.com/spf13/cobra"

	"github.com/marcus/shopsync/internal/models"
	"github.com/marcus/shopsync/internal/output"
)

var queueCmd = &cobra.Command{
	Use:     "queue",
	Short:   "Inspect and manage the local queue",
	GroupID: "queue",
}

var queueListCmd = &cobra.Command{
	Use:   "list",
	Short: "List pending items",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		categoryFilter, _ := cmd.Flags().GetString("category")
		asJSON, _ := cmd.Flags().GetBool("json")
		long, _ := cmd.Flags().GetBool("long")

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

		width := output.TerminalWidth()
		total := 0
		for _, category := range models.Categories() {
			if categoryFilter != "" && string(category) != categoryFilter {
				continue
			}
			items, err := s.Queue.All(category)
			if err != nil {
				output.Error("read queue: %v", err)
				return err
			}
			if len(items) == 0 {
				continue
			}
			total += len(items)

			if asJSON {
				if err := output.JSON(items); err != nil {
					return err
				}
				continue
			}
			for i := range items {
				if long {
					output.Info("%s", output.FormatItemLong(&items[i]))
				} else {
					output.Info("%s", output.Truncate(output.FormatItemShort(&items[i]), width))
				}
			}
		}

		if total == 0 && !asJSON {
			output.Info("queue empty")
		}
		return nil
	},
}

var queueFailedCmd = &cobra.Command{
	Use:   "failed",
	Short: "List dead-lettered items",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		limit, _ := cmd.Flags().GetInt("limit")

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

		letters, err := s.Queue.DeadLetters(limit)
		if err != nil {
			output.Error("read dead letters: %v", err)
			return err
		}
		if len(letters) == 0 {
			output.Info("no dead-lettered items")
			return nil
		}

		for i := range letters {
			dl := &letters[i]
			output.Info("%s  failed %s", output.FormatItemShort(&dl.Item), output.FormatTimeAgo(dl.FailedAt))
		}
		output.Info("\nRequeue with: shopsync queue requeue <id>")
		return nil
	},
}

var queueRequeueCmd = &cobra.Command{
	Use:   "requeue <id>",
	Short: "Move a dead-lettered item back onto its queue",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := strconv.ParseInt(args[0], 10, 64)
		if err != nil {
			output.Error("invalid id %q", args[0])
			return fmt.Errorf("invalid id")
		}

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

		requeued, err := s.Queue.RequeueDeadLetter(id)
		if err != nil {
			output.Error("requeue: %v", err)
			return err
		}
		if !requeued {
			output.Error("no dead-lettered item with id %d", id)
			return fmt.Errorf("not found")
		}
		output.Success("requeued item %d", id)
		return nil
	},
}

var queueClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Discard queued items",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		failedOnly, _ := cmd.Flags().GetBool("failed")
		force, _ := cmd.Flags().GetBool("force")

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

		what := "all pending items"
		if failedOnly {
			what = "all dead-lettered items"
		}
		if !force && !confirm(fmt.Sprintf("Discard %s?", what)) {
			output.Info("aborted")
			return nil
		}

		if failedOnly {
			purged, err := s.Queue.PurgeDeadLetters()
			if err != nil {
				output.Error("purge: %v", err)
				return err
			}
			output.Success("purged %d dead-lettered item(s)", purged)
			return nil
		}

		if err := s.Queue.ClearAll(); err != nil {
			output.Error("clear: %v", err)
			return err
		}
		output.Success("queue cleared")
		return nil
	},
}

// confirm asks an interactive yes/no question, defaulting to no.
func confirm(title string) bool {
	ok := false
	form := huh.NewForm(huh.NewGroup(
		huh.NewConfirm().Title(title).Value(&ok),
	))
	if err := form.Run(); err != nil {
		return false
	}
	return ok
}

func init() {
	queueListCmd.Flags().String("category", "", "only show one category")
	queueListCmd.Flags().Bool("json", false, "output as JSON")
	queueListCmd.Flags().Bool("long", false, "show full item details including payload")
	queueFailedCmd.Flags().Int("limit", 50, "max items to show")
	queueClearCmd.Flags().Bool("failed", false, "clear dead letters instead of pending items")
	queueClearCmd.Flags().Bool("force", false, "skip confirmation")

	queueCmd.AddCommand(queueListCmd, queueFailedCmd, queueRequeueCmd, queueClearCmd)
	rootCmd.AddCommand(queueCmd)
}
