package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/janhq/jan-relay/pkg/relay/publish"
)

var publishCmd = &cobra.Command{
	Use:   "publish [session-id] [draft-id]",
	Short: "Publish a ready draft as the next panel",
	Long: `Publishes the draft if it still continues the latest panel. When someone
else published first the draft is stale: generate a new one from the latest
panel.`,
	Args: cobra.ExactArgs(2),
	RunE: runPublish,
}

func init() {
	publishCmd.Flags().String("title", "", "Relay title (used for the first panel)")
}

func runPublish(cmd *cobra.Command, args []string) error {
	client, _, err := newClient(cmd)
	if err != nil {
		return err
	}
	title, _ := cmd.Flags().GetString("title")

	step, err := publish.NewCoordinator(client, newLogger(cmd)).Publish(cmd.Context(), args[0], args[1], title)
	if err != nil {
		if publish.IsConflict(err) {
			fmt.Fprintln(cmd.ErrOrStderr(), "The relay moved on; your draft was not published.")
		}
		return explain(err, "publish", client.UserID())
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Published step %d of %s\n", step.StepNumber, step.SessionID)
	return nil
}
