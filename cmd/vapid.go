package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/marcus/shopsync/internal/config"
	"github.com/marcus/shopsync/internal/output"
	"github.com/marcus/shopsync/internal/push"
)

var vapidCmd = &cobra.Command{
	Use:     "vapid",
	Short:   "Generate a VAPID signing keypair",
	GroupID: "notify",
	Args:    cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		save, _ := cmd.Flags().GetBool("save")

		privateKey, publicKey, err := push.GenerateVAPIDKeys()
		if err != nil {
			output.Error("generate keys: %v", err)
			return err
		}

		fmt.Printf("Public key:  %s\n", publicKey)
		fmt.Printf("Private key: %s\n", privateKey)

		if !save {
			output.Info("\nPersist with: shopsync vapid --save")
			return nil
		}

		cfg, err := config.Load()
		if err != nil {
			output.Error("load config: %v", err)
			return err
		}
		cfg.Notifications.VAPIDPublicKey = publicKey
		cfg.Notifications.VAPIDPrivateKey = privateKey
		if err := config.Save(cfg); err != nil {
			output.Error("save config: %v", err)
			return err
		}
		output.Success("keys saved to config")
		return nil
	},
}

func init() {
	vapidCmd.Flags().Bool("save", false, "write the keypair to the config file")
	rootCmd.AddCommand(vapidCmd)
}
