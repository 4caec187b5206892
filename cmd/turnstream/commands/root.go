// Package commands provides the CLI commands for the turnstream
// client.
package commands

import (
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "turnstream",
	Short: "turnstream is a CLI client for the turnstream session server",
	Long: `turnstream talks to a running turnstream-server over HTTP: create
agents and sessions, post a message and watch the reply stream in, and
inspect a session's event log.`,
	Run: func(cmd *cobra.Command, args []string) {
		cmd.Help()
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&serverURL, "server", "http://localhost:8080", "turnstream server base URL")

	rootCmd.AddCommand(agentCmd)
	rootCmd.AddCommand(sessionCmd)
	rootCmd.AddCommand(chatCmd)
	rootCmd.AddCommand(eventsCmd)
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}
