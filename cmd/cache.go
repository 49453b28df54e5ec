package cmd

import (
	"context"
	"fmt"

	"github.com/iksnae/doc-session/internal"
	"github.com/spf13/cobra"
)

// cacheCmd groups the local state maintenance commands
var cacheCmd = &cobra.Command{
	Use:   "cache",
	Short: "Manage locally stored documents",
}

var cacheClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Forget every locally tracked document",
	Long: `Delete the local document history and conversations.

Documents on the backend are left untouched; they can still be viewed with
'doc-session show <id>' if the id is known.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withClient(cmd, func(ctx context.Context, client *internal.Client) error {
			n, err := client.Documents.Forget(ctx)
			if err != nil {
				return fmt.Errorf("failed to clear document history: %w", err)
			}
			internal.PrintSuccess(fmt.Sprintf("Cleared %d document(s)", n))
			return nil
		})
	},
}

func init() {
	rootCmd.AddCommand(cacheCmd)
	cacheCmd.AddCommand(cacheClearCmd)
}
