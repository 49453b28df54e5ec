package cmd

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/iksnae/doc-session/internal"
	"github.com/iksnae/doc-session/internal/export"
	"github.com/spf13/cobra"
)

var (
	format    string
	outputDir string
)

// exportCmd represents the export command
var exportCmd = &cobra.Command{
	Use:   "export <document-id>",
	Short: "Export a conversation to file",
	Long: `Export the conversation about a document to jsonl, md, yaml or json.

The history is loaded from the backend first, so the export reflects every
answered question. Use --out - to write to stdout.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id := args[0]

		// Create exporter before touching the store or the network
		exporter, err := export.NewExporter(format)
		if err != nil {
			return err
		}

		return withClient(cmd, func(ctx context.Context, client *internal.Client) error {
			var transcript internal.Transcript
			err := internal.ShowProgress(ctx, "Loading conversation", func() error {
				if _, err := client.Sessions.LoadHistory(ctx, id); err != nil {
					return err
				}
				filename := ""
				if doc, ok := client.Cache.Get(id); ok {
					filename = doc.Filename
				}
				transcript = client.Sessions.Transcript(id, filename)
				return nil
			})
			if err != nil {
				return err
			}

			if outputDir == "-" {
				if err := exporter.Export(&transcript, cmd.OutOrStdout()); err != nil {
					return &internal.ExportError{Format: format, Path: "stdout", Err: err}
				}
				return nil
			}

			path, err := writeTranscript(exporter, &transcript, outputDir)
			if err != nil {
				return err
			}
			internal.PrintSuccess(fmt.Sprintf("Export complete: %d message(s) exported to %s", len(transcript.Messages), path))
			return nil
		})
	},
}

// writeTranscript writes one transcript file into dir and returns its path
func writeTranscript(exporter export.Exporter, transcript *internal.Transcript, dir string) (string, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("failed to create output directory: %w", err)
	}

	path := filepath.Join(dir, fmt.Sprintf("chat_%s.%s", transcript.DocumentID, exporter.Extension()))
	file, err := os.Create(path)
	if err != nil {
		return "", &internal.ExportError{Format: format, Path: path, Err: err}
	}

	if err := exporter.Export(transcript, file); err != nil {
		_ = file.Close()
		return "", &internal.ExportError{Format: format, Path: path, Err: err}
	}
	if err := file.Close(); err != nil {
		return "", &internal.ExportError{Format: format, Path: path, Err: err}
	}
	return path, nil
}

func init() {
	rootCmd.AddCommand(exportCmd)
	exportCmd.Flags().StringVarP(&format, "format", "f", "jsonl", "Export format (jsonl, md, yaml, json)")
	exportCmd.Flags().StringVarP(&outputDir, "out", "o", "./exports", "Output directory, or - for stdout")
}
