package main

import (
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/janhq/jan-relay/pkg/relay/api"
	"github.com/janhq/jan-relay/pkg/relay/draft"
	"github.com/janhq/jan-relay/pkg/relay/orchestrator"
)

var sessionCmd = &cobra.Command{
	Use:   "session",
	Short: "Relay session commands",
	Long:  `Open relays, inspect their panels and change their length.`,
}

var sessionCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Open a new relay",
	RunE:  runSessionCreate,
}

var sessionShowCmd = &cobra.Command{
	Use:   "show [session-id]",
	Short: "Show a relay's panels and your drafts",
	Args:  cobra.ExactArgs(1),
	RunE:  runSessionShow,
}

var sessionResizeCmd = &cobra.Command{
	Use:   "resize [session-id] [max-steps]",
	Short: "Change the relay length (originator only, before step two)",
	Args:  cobra.ExactArgs(2),
	RunE:  runSessionResize,
}

func init() {
	sessionCmd.AddCommand(sessionCreateCmd)
	sessionCmd.AddCommand(sessionShowCmd)
	sessionCmd.AddCommand(sessionResizeCmd)

	sessionCreateCmd.Flags().Int("max-steps", 0, "Relay length (server default when 0)")
}

func runSessionCreate(cmd *cobra.Command, args []string) error {
	client, _, err := newClient(cmd)
	if err != nil {
		return err
	}
	maxSteps, _ := cmd.Flags().GetInt("max-steps")

	session, err := client.CreateSession(cmd.Context(), api.CreateSessionRequest{MaxSteps: maxSteps})
	if err != nil {
		return explain(err, "create session", client.UserID())
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Opened relay %s (%d steps)\n", session.ID, session.MaxSteps)
	return nil
}

func runSessionShow(cmd *cobra.Command, args []string) error {
	client, _, err := newClient(cmd)
	if err != nil {
		return err
	}
	env, err := client.GetSession(cmd.Context(), args[0])
	if err != nil {
		return explain(err, "load relay", client.UserID())
	}
	printSession(cmd.OutOrStdout(), env)
	return nil
}

func runSessionResize(cmd *cobra.Command, args []string) error {
	maxSteps, err := strconv.Atoi(args[1])
	if err != nil {
		return fmt.Errorf("max-steps must be a number: %w", err)
	}
	client, _, err := newClient(cmd)
	if err != nil {
		return err
	}
	session, err := client.UpdateSession(cmd.Context(), args[0], api.UpdateSessionRequest{MaxSteps: maxSteps})
	if err != nil {
		return explain(err, "resize relay", client.UserID())
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Relay %s now has %d steps\n", session.ID, session.MaxSteps)
	return nil
}

func printSession(w io.Writer, env *api.SessionEnvelope) {
	s := env.Session
	title := s.Title
	if title == "" {
		title = "(untitled)"
	}
	fmt.Fprintf(w, "%s  %s\n", s.ID, title)
	fmt.Fprintf(w, "  status: %s  steps: %d/%d  originator: %s\n", s.Status, s.StepCount, s.MaxSteps, s.OriginatorID)

	if len(env.Steps) > 0 {
		fmt.Fprintln(w, "\nPanels:")
	}
	for _, step := range env.Steps {
		fmt.Fprintf(w, "  %d. %-12s %s  %s\n", step.StepNumber, step.AuthorID,
			step.PublishedAt.Local().Format(time.DateTime), draft.StripContinuityPrefix(step.PromptText))
		if step.MediaURL != "" {
			fmt.Fprintf(w, "     %s\n", step.MediaURL)
		}
	}

	if len(env.Drafts) > 0 {
		fmt.Fprintln(w, "\nYour drafts:")
	}
	for _, d := range env.Drafts {
		line := fmt.Sprintf("  %s  on step %d  %-8s %s", d.ID, d.BasedOnStepNumber, d.Status, (draft.Candidate{Draft: d}).DisplayPrompt())
		if d.ErrorMessage != "" {
			line += "  (" + d.ErrorMessage + ")"
		}
		fmt.Fprintln(w, strings.TrimRight(line, " "))
	}
}

// explain turns a client error into the message a view would show.
func explain(err error, location, userID string) error {
	notice := orchestrator.NoticeFor(err, location, userID)
	if notice == nil {
		return nil
	}
	msg := notice.String()
	if notice.Diagnostic != nil {
		msg += fmt.Sprintf(" [code %s]", notice.Diagnostic.Code)
	}
	return fmt.Errorf("%s", msg)
}
