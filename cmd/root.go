package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/marcus/shopsync/internal/config"
)

var (
	version string
	baseDir string
)

// SetVersion sets the version string
func SetVersion(v string) {
	version = v
	rootCmd.Version = v
}

var rootCmd = &cobra.Command{
	Use:   "shopsync",
	Short: "Offline-first sync and push notification agent",
	Long: `shopsync - offline-first sync and push notification agent for the storefront backend.

Actions dispatched while the backend is unreachable land in a local durable
queue and are replayed when connectivity returns, either by the background
daemon or inline on the next dispatch.`,
}

// Execute runs the root command
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initBaseDir)

	// Define command groups for organized help output
	rootCmd.AddGroup(
		&cobra.Group{ID: "actions", Title: "Action Commands:"},
		&cobra.Group{ID: "queue", Title: "Queue Commands:"},
		&cobra.Group{ID: "notify", Title: "Notification Commands:"},
		&cobra.Group{ID: "system", Title: "System Commands:"},
	)

	rootCmd.SetHelpCommandGroupID("system")
	rootCmd.SetCompletionCommandGroupID("system")
}

func initBaseDir() {
	var err error
	baseDir, err = config.DataDir()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: cannot determine data directory: %v\n", err)
		os.Exit(1)
	}
}

// getBaseDir returns the directory holding the local queue database
func getBaseDir() string {
	return baseDir
}
