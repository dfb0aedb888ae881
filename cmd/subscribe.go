package cmd

import (
	"fmt"

	"github.com/charmbracelet/huh"
	"github.com/spf13/cobra"

	"github.com/marcus/shopsync/internal/models"
	"github.com/marcus/shopsync/internal/output"
)

var subscribeUserID string

// promptConsent is the interactive analog of a platform permission prompt.
func promptConsent() bool {
	granted := false
	form := huh.NewForm(huh.NewGroup(
		huh.NewConfirm().
			Title("Allow push notifications?").
			Description("The store will notify you about orders, price drops and offers.").
			Value(&granted),
	))
	if err := form.Run(); err != nil {
		return false
	}
	return granted
}

// promptPreferences edits the per-category opt-in flags interactively.
func promptPreferences(p models.Preferences) (models.Preferences, error) {
	form := huh.NewForm(huh.NewGroup(
		huh.NewConfirm().Title("Order updates").Value(&p.Orders),
		huh.NewConfirm().Title("Promotions and offers").Value(&p.Promotions),
		huh.NewConfirm().Title("New product announcements").Value(&p.NewProducts),
		huh.NewConfirm().Title("Price drops").Value(&p.PriceDrops),
		huh.NewConfirm().Title("Cart reminders").Value(&p.CartReminders),
		huh.NewConfirm().Title("Review requests").Value(&p.Reviews),
	))
	err := form.Run()
	return p, err
}

var subscribeCmd = &cobra.Command{
	Use:     "subscribe",
	Short:   "Create a push subscription",
	GroupID: "notify",
	Args:    cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		interactive, _ := cmd.Flags().GetBool("interactive")

		s, err := newStack()
		if err != nil {
			output.Error("%v", err)
			return err
		}
		defer s.Close()

		s.Push.ConsentPrompt = promptConsent

		var overrides *models.Preferences
		if interactive {
			prefs, err := promptPreferences(models.DefaultPreferences())
			if err != nil {
				output.Error("preferences prompt: %v", err)
				return err
			}
			overrides = &prefs
		}

		sub := s.Push.Subscribe(subscribeUserID, overrides)
		if sub == nil {
			output.Error("subscription failed")
			return fmt.Errorf("subscription failed")
		}
		output.Success("subscribed: %s", sub.Endpoint)
		return nil
	},
}

var unsubscribeCmd = &cobra.Command{
	Use:     "unsubscribe",
	Short:   "Remove the push subscription",
	GroupID: "notify",
	Args:    cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := newStack()
		if err != nil {
			output.Error("%v", err)
			return err
		}
		defer s.Close()

		if !s.Push.Unsubscribe() {
			output.Warning("no subscription to remove")
			return nil
		}
		output.Success("unsubscribed")
		return nil
	},
}

var preferencesCmd = &cobra.Command{
	Use:     "preferences",
	Short:   "Show or edit notification preferences",
	GroupID: "notify",
	Args:    cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		edit, _ := cmd.Flags().GetBool("edit")

		s, err := newStack()
		if err != nil {
			output.Error("%v", err)
			return err
		}
		defer s.Close()

		sub := s.Push.Subscription()
		if sub == nil {
			output.Error("no subscription (run 'shopsync subscribe' first)")
			return fmt.Errorf("no subscription")
		}

		if !edit {
			return output.JSON(sub.Preferences)
		}

		prefs, err := promptPreferences(sub.Preferences)
		if err != nil {
			output.Error("preferences prompt: %v", err)
			return err
		}
		if s.Push.UpdatePreferences(prefs) {
			output.Success("preferences updated")
			return nil
		}
		output.Warning("preferences saved locally; backend update queued for replay")
		return nil
	},
}

func init() {
	subscribeCmd.Flags().StringVar(&subscribeUserID, "user", "", "user ID to attach to the subscription")
	subscribeCmd.Flags().Bool("interactive", false, "choose preferences interactively")
	preferencesCmd.Flags().Bool("edit", false, "edit preferences interactively")

	rootCmd.AddCommand(subscribeCmd, unsubscribeCmd, preferencesCmd)
}
