package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var version = "1.0.0"

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "relay-cli",
	Short: "Relay CLI - take turns extending shared image relays",
	Long: `relay-cli talks to relay-api to open relays, generate continuations and
publish them as the next panel.

Quick Start:
  relay-cli session create                 # Open a new relay
  relay-cli tui <session-id>               # Interactive view

Examples:
  # Scripted use
  relay-cli draft <session-id> "the fox meets a crow"
  relay-cli publish <session-id> <draft-id> --title "Crow"

  # Inspect a relay
  relay-cli session show <session-id>`,
	Version:       version,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.AddCommand(sessionCmd)
	rootCmd.AddCommand(draftCmd)
	rootCmd.AddCommand(publishCmd)
	rootCmd.AddCommand(tuiCmd)

	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "Enable verbose output")
	rootCmd.PersistentFlags().String("profile", "", "Profile file (default: $HOME/.config/relay-cli/profile.yaml)")
	rootCmd.PersistentFlags().String("api-url", "", "relay-api base URL")
	rootCmd.PersistentFlags().String("user", "", "User id sent as X-User-ID")
	rootCmd.PersistentFlags().String("token", "", "Bearer token")
}
