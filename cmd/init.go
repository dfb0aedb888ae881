package cmd

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/marcus/shopsync/internal/config"
	"github.com/marcus/shopsync/internal/output"
	"github.com/marcus/shopsync/internal/queue"
)

var initCmd = &cobra.Command{
	Use:     "init",
	Short:   "Initialize the local queue database",
	Long:    `Creates the local .shopsync directory and SQLite queue database.`,
	GroupID: "system",
	RunE: func(cmd *cobra.Command, args []string) error {
		baseDir := getBaseDir()

		if _, err := os.Stat(filepath.Join(baseDir, ".shopsync")); err == nil {
			output.Warning(".shopsync/ already exists")
			return nil
		}

		db, err := queue.Initialize(baseDir)
		if err != nil {
			output.Error("failed to initialize queue: %v", err)
			return err
		}
		defer db.Close()

		fmt.Println("INITIALIZED .shopsync/")

		deviceID, err := config.GetDeviceID()
		if err != nil {
			output.Error("failed to assign device id: %v", err)
			return err
		}
		fmt.Printf("Device: %s\n", deviceID)
		fmt.Printf("Server: %s\n", config.GetServerURL())

		return nil
	},
}

func init() {
	rootCmd.AddCommand(initCmd)
}
