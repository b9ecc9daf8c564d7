// Package cmd holds the mailpilot CLI commands.
package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var configPath string

var rootCmd = &cobra.Command{
	Use:   "mailpilot",
	Short: "MailPilot - automated email triage and reply drafting",
	Long: `MailPilot triages a mailbox slice into a ranked priority queue,
drafts replies for emails that need one, and holds everything behind an
approval gate. Nothing is ever sent without explicit approval.`,
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Println("MailPilot - email triage agent")
		fmt.Println("Use 'mailpilot --help' for usage information")
	},
}

func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "path to a YAML config overlay")
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(runCmd)
}
