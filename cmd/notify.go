package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/marcus/shopsync/internal/config"
	"github.com/marcus/shopsync/internal/output"
	"github.com/marcus/shopsync/internal/push"
)

var notifyCmd = &cobra.Command{
	Use:     "notify",
	Short:   "Send and preview push notifications",
	GroupID: "notify",
}

// parseData turns trailing key=value arguments into template data.
func parseData(args []string) (map[string]string, error) {
	data := make(map[string]string, len(args))
	for _, arg := range args {
		key, value, ok := strings.Cut(arg, "=")
		if !ok || key == "" {
			return nil, fmt.Errorf("expected key=value, got %q", arg)
		}
		data[key] = value
	}
	return data, nil
}

var notifySendCmd = &cobra.Command{
	Use:   "send <kind> [key=value ...]",
	Short: "Render and deliver a notification",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		data, err := parseData(args[1:])
		if err != nil {
			output.Error("%v", err)
			return err
		}

		s, err := newStack()
		if err != nil {
			output.Error("%v", err)
			return err
		}
		defer s.Close()

		if s.Push.Send(push.Kind(args[0]), data) {
			output.Success("notification delivered")
			return nil
		}
		output.Warning("notification not delivered (queued for replay when possible)")
		return fmt.Errorf("not delivered")
	},
}

var notifyPreviewCmd = &cobra.Command{
	Use:   "preview <kind> [key=value ...]",
	Short: "Render a notification without sending it",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		data, err := parseData(args[1:])
		if err != nil {
			output.Error("%v", err)
			return err
		}

		n, err := push.Render(push.Kind(args[0]), data)
		if err != nil {
			output.Error("%v", err)
			output.Info("known kinds:")
			for _, k := range push.Kinds() {
				output.Info("  %s", k)
			}
			return err
		}
		return output.JSON(n)
	},
}

var notifyConsentCmd = &cobra.Command{
	Use:   "consent [grant|deny]",
	Short: "Show or set notification consent",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := newStack()
		if err != nil {
			output.Error("%v", err)
			return err
		}
		defer s.Close()

		if len(args) == 0 {
			output.Info("consent: %s", s.Push.Consent())
			return nil
		}

		var granted bool
		switch args[0] {
		case "grant":
			granted = true
		case "deny":
			granted = false
		default:
			output.Error("expected 'grant' or 'deny', got %q", args[0])
			return fmt.Errorf("invalid consent")
		}

		if err := s.Push.RecordConsent(granted); err != nil {
			output.Error("persist consent: %v", err)
			return err
		}
		output.Success("consent: %s", config.GetConsent())
		return nil
	},
}

func init() {
	notifyCmd.AddCommand(notifySendCmd, notifyPreviewCmd, notifyConsentCmd)
	rootCmd.AddCommand(notifyCmd)
}
