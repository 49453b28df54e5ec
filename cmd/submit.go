package cmd

import (
	"context"

	"github.com/iksnae/doc-session/internal"
	"github.com/spf13/cobra"
)

var (
	submitWait bool
)

// submitCmd represents the submit command
var submitCmd = &cobra.Command{
	Use:   "submit <url>",
	Short: "Submit a document by URL",
	Long: `Ask the backend to fetch and process a remote document.

Only well-formed http(s) URLs are accepted.
Use --wait to poll until processing completes or fails.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withClient(cmd, func(ctx context.Context, client *internal.Client) error {
			var id string
			steps := []internal.ProgressStep{
				{
					Message: "Submitting URL",
					Fn: func() error {
						var err error
						id, err = client.Documents.SubmitURL(ctx, args[0])
						return err
					},
				},
			}
			return submitAndReport(ctx, cmd, client, steps, &id, submitWait)
		})
	},
}

func init() {
	rootCmd.AddCommand(submitCmd)
	submitCmd.Flags().BoolVarP(&submitWait, "wait", "w", false, "Wait until processing completes")
}
