package main

import (
	"fmt"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"
)

var tuiCmd = &cobra.Command{
	Use:   "tui [session-id]",
	Short: "Open the interactive relay view",
	Long: `Shows the relay, keeps it refreshed while open and lets you generate,
browse and publish continuations.

Keys:
  enter     generate from the prompt (or publish when entering a title)
  ctrl+p    publish the selected candidate
  ctrl+n/b  next/previous candidate
  ctrl+d    discard the selected candidate
  ctrl+r    reload the relay
  esc       quit`,
	Args: cobra.ExactArgs(1),
	RunE: runTUI,
}

func init() {
	tuiCmd.Flags().Bool("alt-screen", true, "Use the terminal's alternate screen")
}

func runTUI(cmd *cobra.Command, args []string) error {
	o, p, err := newOrchestrator(cmd, args[0])
	if err != nil {
		return err
	}
	defer o.Leave()

	opts := []tea.ProgramOption{tea.WithContext(cmd.Context())}
	if alt, _ := cmd.Flags().GetBool("alt-screen"); alt {
		opts = append(opts, tea.WithAltScreen())
	}
	if _, err := tea.NewProgram(newTUIModel(cmd.Context(), o, p.UserID), opts...).Run(); err != nil {
		return fmt.Errorf("relay view: %w", err)
	}
	return nil
}
