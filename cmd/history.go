package cmd

import (
	"context"
	"fmt"

	"github.com/iksnae/doc-session/internal"
	"github.com/spf13/cobra"
)

var (
	historyLimit int
)

// historyCmd represents the history command
var historyCmd = &cobra.Command{
	Use:   "history <document-id>",
	Short: "Show the conversation about a document",
	Long:  `Load the chat history of a completed document from the backend and display it.`,
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id := args[0]

		return withClient(cmd, func(ctx context.Context, client *internal.Client) error {
			messages, err := client.Sessions.LoadHistory(ctx, id)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if len(messages) == 0 {
				fmt.Fprintln(out, headerStyle.Render("💬 No messages yet"))
				fmt.Fprintln(out, idStyle.Render(fmt.Sprintf("💡 Tip: Start with `doc-session chat %s`", id)))
				return nil
			}

			total := len(messages)
			shown := messages
			if historyLimit > 0 && historyLimit < total {
				shown = messages[total-historyLimit:]
			}
			for i, msg := range shown {
				displayMessage(out, total-len(shown)+i+1, msg, total)
			}
			return nil
		})
	},
}

func init() {
	rootCmd.AddCommand(historyCmd)
	historyCmd.Flags().IntVarP(&historyLimit, "limit", "n", 0, "Show only the last n messages")
}
