package main

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/janhq/jan-relay/pkg/relay/orchestrator"
)

var draftCmd = &cobra.Command{
	Use:   "draft [session-id] [prompt]",
	Short: "Generate a continuation of the latest panel",
	Long: `Creates a draft that continues the latest panel and waits for its
generation job. The draft stays private until it is published.`,
	Args: cobra.MinimumNArgs(2),
	RunE: runDraft,
}

var draftDiscardCmd = &cobra.Command{
	Use:   "discard [draft-id]",
	Short: "Delete one of your drafts",
	Args:  cobra.ExactArgs(1),
	RunE:  runDraftDiscard,
}

func init() {
	draftCmd.AddCommand(draftDiscardCmd)
}

func newOrchestrator(cmd *cobra.Command, sessionID string) (*orchestrator.Orchestrator, Profile, error) {
	client, p, err := newClient(cmd)
	if err != nil {
		return nil, p, err
	}
	o := orchestrator.New(client, sessionID, orchestrator.Config{
		UserID:            p.UserID,
		DraftPollInterval: p.PollInterval,
		Logger:            newLogger(cmd),
	})
	return o, p, nil
}

func runDraft(cmd *cobra.Command, args []string) error {
	sessionID := args[0]
	prompt := strings.Join(args[1:], " ")

	o, _, err := newOrchestrator(cmd, sessionID)
	if err != nil {
		return err
	}
	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()
	defer o.Leave()

	if notice := o.Start(ctx); notice != nil {
		return fmt.Errorf("%s", notice)
	}
	if !o.CanContinue() {
		snap := o.Snapshot()
		if snap.IsComplete() {
			return fmt.Errorf("relay %s is complete", sessionID)
		}
		return fmt.Errorf("relay %s cannot be continued right now", sessionID)
	}

	fmt.Fprintln(cmd.ErrOrStderr(), "Generating...")
	if notice := o.Generate(ctx, prompt); notice != nil {
		return fmt.Errorf("%s", notice)
	}

	candidates, selected := o.Candidates()
	if selected < 0 || selected >= len(candidates) {
		return fmt.Errorf("generation was interrupted")
	}
	c := candidates[selected]
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Draft %s ready (continues step %d)\n", c.ID(), c.Draft.BasedOnStepNumber)
	fmt.Fprintf(out, "  prompt: %s\n", c.DisplayPrompt())
	fmt.Fprintf(out, "  media:  %s\n", c.Draft.OutputMediaReference)
	if wait := o.CooldownRemaining(); wait > 0 {
		fmt.Fprintf(out, "You published the latest panel; publishing opens in %s.\n", wait.Round(time.Minute))
	}
	fmt.Fprintf(out, "Publish with: relay-cli publish %s %s\n", sessionID, c.ID())
	return nil
}

func runDraftDiscard(cmd *cobra.Command, args []string) error {
	client, _, err := newClient(cmd)
	if err != nil {
		return err
	}
	if err := client.DeleteDraft(cmd.Context(), args[0]); err != nil {
		return explain(err, "discard draft", client.UserID())
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Discarded %s\n", args[0])
	return nil
}
