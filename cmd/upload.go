package cmd

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/iksnae/doc-session/internal"
	"github.com/spf13/cobra"
)

var (
	uploadWait bool
)

// uploadCmd represents the upload command
var uploadCmd = &cobra.Command{
	Use:   "upload <file>",
	Short: "Upload a document for text extraction",
	Long: `Upload a PDF or image file to the backend for OCR.

The document is recorded locally as soon as the backend accepts it.
Use --wait to poll until processing completes or fails.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		path := args[0]
		f, err := os.Open(path)
		if err != nil {
			return fmt.Errorf("failed to open file: %w", err)
		}
		defer func() { _ = f.Close() }()

		return withClient(cmd, func(ctx context.Context, client *internal.Client) error {
			var id string
			steps := []internal.ProgressStep{
				{
					Message: "Uploading " + filepath.Base(path),
					Fn: func() error {
						var err error
						id, err = client.Documents.SubmitFile(ctx, internal.FileUpload{Name: filepath.Base(path), Content: f})
						return err
					},
				},
			}
			return submitAndReport(ctx, cmd, client, steps, &id, uploadWait)
		})
	},
}

// submitAndReport runs the submission steps, optionally waits for a terminal
// status, and prints the resulting document
func submitAndReport(ctx context.Context, cmd *cobra.Command, client *internal.Client, steps []internal.ProgressStep, id *string, wait bool) error {
	var doc internal.Document
	if wait {
		steps = append(steps, internal.ProgressStep{
			Message: "Waiting for processing",
			Fn: func() error {
				var err error
				doc, err = client.Documents.WaitForTerminal(ctx, *id, cfg.PollInterval)
				return err
			},
		})
	}

	if err := internal.ShowProgressWithSteps(ctx, steps); err != nil {
		return err
	}

	if !wait {
		doc, _ = client.Cache.Get(*id)
	}
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "%s %s\n", idStyle.Render("ID:"), *id)
	fmt.Fprintf(out, "%s %s\n", idStyle.Render("Status:"), internal.RenderStatus(doc.Status))
	if doc.Status == internal.StatusFailed && doc.Error != "" {
		fmt.Fprintf(out, "%s %s\n", idStyle.Render("Error:"), doc.Error)
	}
	return nil
}

func init() {
	rootCmd.AddCommand(uploadCmd)
	uploadCmd.Flags().BoolVarP(&uploadWait, "wait", "w", false, "Wait until processing completes")
}
