package cmd

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/marcus/shopsync/internal/output"
)

var cartUserID string

var cartCmd = &cobra.Command{
	Use:     "cart",
	Short:   "Dispatch cart mutations",
	GroupID: "actions",
}

var cartUpdateCmd = &cobra.Command{
	Use:   "update <product-id> <quantity>",
	Short: "Set the quantity of a cart line",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		qty, err := strconv.Atoi(args[1])
		if err != nil || qty < 0 {
			output.Error("invalid quantity %q", args[1])
			return fmt.Errorf("invalid quantity")
		}

		s, err := newStack()
		if err != nil {
			output.Error("%v", err)
			return err
		}
		defer s.Close()

		return reportResult(s.Dispatcher.CartUpdate(args[0], qty, cartUserID))
	},
}

var cartRemoveCmd = &cobra.Command{
	Use:   "remove <product-id>",
	Short: "Remove a line from the cart",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := newStack()
		if err != nil {
			output.Error("%v", err)
			return err
		}
		defer s.Close()

		return reportResult(s.Dispatcher.CartRemove(args[0], cartUserID))
	},
}

var cartClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Empty the cart",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := newStack()
		if err != nil {
			output.Error("%v", err)
			return err
		}
		defer s.Close()

		return reportResult(s.Dispatcher.CartClear(cartUserID))
	},
}

func init() {
	cartCmd.PersistentFlags().StringVar(&cartUserID, "user", "", "user ID to attribute the action to")
	cartCmd.AddCommand(cartUpdateCmd, cartRemoveCmd, cartClearCmd)
	rootCmd.AddCommand(cartCmd)
}
