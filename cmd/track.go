package cmd

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/marcus/shopsync/internal/models"
	"github.com/marcus/shopsync/internal/output"
)

var trackUserID string

var trackCmd = &cobra.Command{
	Use:     "track",
	Short:   "Dispatch analytics events",
	GroupID: "actions",
}

// runTrack builds a RunE that dispatches one analytics kind.
func runTrack(kind models.Kind, build func(args []string) models.AnalyticsPayload) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		s, err := newStack()
		if err != nil {
			output.Error("%v", err)
			return err
		}
		defer s.Close()

		p := build(args)
		p.UserID = trackUserID
		return reportResult(s.Dispatcher.Track(kind, p))
	}
}

var trackPageViewCmd = &cobra.Command{
	Use:   "page-view <path>",
	Short: "Record a page view",
	Args:  cobra.ExactArgs(1),
	RunE: runTrack(models.KindPageView, func(args []string) models.AnalyticsPayload {
		return models.AnalyticsPayload{Path: args[0]}
	}),
}

var trackProductViewCmd = &cobra.Command{
	Use:   "product-view <product-id>",
	Short: "Record a product detail view",
	Args:  cobra.ExactArgs(1),
	RunE: runTrack(models.KindProductView, func(args []string) models.AnalyticsPayload {
		return models.AnalyticsPayload{ProductID: args[0]}
	}),
}

var trackAddToCartCmd = &cobra.Command{
	Use:   "add-to-cart <product-id>",
	Short: "Record an add-to-cart event",
	Args:  cobra.ExactArgs(1),
	RunE: runTrack(models.KindAddToCart, func(args []string) models.AnalyticsPayload {
		return models.AnalyticsPayload{ProductID: args[0]}
	}),
}

var trackSearchCmd = &cobra.Command{
	Use:   "search <query>",
	Short: "Record a search",
	Args:  cobra.ExactArgs(1),
	RunE: runTrack(models.KindSearch, func(args []string) models.AnalyticsPayload {
		return models.AnalyticsPayload{Query: args[0]}
	}),
}

var trackPurchaseCmd = &cobra.Command{
	Use:   "purchase <order-value>",
	Short: "Record a completed purchase",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		value, err := strconv.ParseFloat(args[0], 64)
		if err != nil || value < 0 {
			output.Error("invalid order value %q", args[0])
			return fmt.Errorf("invalid order value")
		}
		return runTrack(models.KindPurchase, func([]string) models.AnalyticsPayload {
			return models.AnalyticsPayload{Value: value}
		})(cmd, args)
	},
}

func init() {
	trackCmd.PersistentFlags().StringVar(&trackUserID, "user", "", "user ID to attribute the event to")
	trackCmd.AddCommand(trackPageViewCmd, trackProductViewCmd, trackAddToCartCmd, trackSearchCmd, trackPurchaseCmd)
	rootCmd.AddCommand(trackCmd)
}
