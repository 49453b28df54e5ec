package cmd

import (
	"context"

	"github.com/iksnae/doc-session/internal"
	"github.com/spf13/cobra"
)

// removeCmd represents the remove command
var removeCmd = &cobra.Command{
	Use:     "remove <document-id>",
	Aliases: []string{"rm"},
	Short:   "Remove a document",
	Long: `Forget a document and its conversation locally.

When remote_delete is enabled in the configuration the backend copy is
deleted as well; a failure there does not undo the local removal.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withClient(cmd, func(ctx context.Context, client *internal.Client) error {
			return client.Documents.Remove(ctx, args[0])
		})
	},
}

func init() {
	rootCmd.AddCommand(removeCmd)
}
