package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"

	"github.com/iksnae/doc-session/internal"
	"github.com/iksnae/doc-session/internal/gateway"
	"github.com/spf13/cobra"
)

var (
	verbose    bool
	configPath string
	apiURL     string
	storeName  string
	storePath  string
	version    string = "dev"
	commit     string = "unknown"
	date       string = "unknown"

	// cfg is resolved once per invocation by loadSettings
	cfg internal.Config
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "doc-session",
	Short: "Upload documents for OCR and chat about them",
	Long: `A CLI client for a document OCR and chat backend.

Submit files or URLs for text extraction, follow their processing status,
and hold a conversation with an assistant about each completed document.

Features:
  • Upload PDF and image files, or submit a URL
  • Track processing status with a persisted document history
  • Chat about any completed document
  • Export conversations (JSON, JSONL, YAML, Markdown)
  • SQLite, Redis or in-memory local storage

Quick Start:
  doc-session upload invoice.pdf --wait     # Upload and wait for OCR
  doc-session list                          # List known documents
  doc-session chat <document-id>            # Start a conversation
  doc-session export <document-id> -f md    # Export the conversation`,
	Version:            fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, date),
	PersistentPreRunE:  loadSettings,
	PersistentPostRunE: func(cmd *cobra.Command, args []string) error { return internal.CloseLogging() },
	SilenceUsage:       true,
	SilenceErrors:      true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		stop()
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose logging")
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Config file (default ~/.doc-session/config.yaml)")
	rootCmd.PersistentFlags().StringVar(&apiURL, "api-url", "", "Backend API base URL")
	rootCmd.PersistentFlags().StringVar(&storeName, "store", "", "Local store backend (sqlite, redis, memory)")
	rootCmd.PersistentFlags().StringVar(&storePath, "store-path", "", "SQLite database file for the sqlite store")

	// Set version template to ensure --version flag works
	rootCmd.SetVersionTemplate(`{{printf "%s\n" .Version}}`)
}

// loadSettings layers the command line flags over the loaded configuration
func loadSettings(cmd *cobra.Command, args []string) error {
	internal.SetVerbose(verbose)

	loaded, err := internal.LoadConfig(configPath)
	if err != nil {
		return err
	}
	if apiURL != "" {
		loaded.APIURL = apiURL
	}
	if storeName != "" {
		loaded.Store = storeName
	}
	if storePath != "" {
		loaded.StorePath = storePath
	}
	if err := loaded.Validate(); err != nil {
		return err
	}

	if !verbose {
		internal.SetLogLevel(internal.ParseLogLevel(loaded.LogLevel))
	}
	if loaded.LogFile != "" {
		internal.ConfigureLogging(loaded.LogFile)
	}
	cfg = loaded
	return nil
}

// withClient opens the local store and the backend client for one command
func withClient(cmd *cobra.Command, fn func(ctx context.Context, client *internal.Client) error) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	client, err := internal.Open(ctx, cfg, gateway.NewFromConfig(cfg))
	if err != nil {
		return fmt.Errorf("failed to open document store: %w", err)
	}
	defer func() {
		if err := client.Close(context.Background()); err != nil {
			internal.LogWarn("Failed to close document store: %v", err)
		}
	}()

	if err := client.Bus.OnNotification(ctx, internal.PrintNotification); err != nil {
		internal.LogWarn("Failed to subscribe to notifications: %v", err)
	}

	return fn(ctx, client)
}
