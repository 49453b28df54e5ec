package cmd

import (
	"context"
	"fmt"
	"io"

	"github.com/charmbracelet/lipgloss"
	"github.com/iksnae/doc-session/internal"
	"github.com/iksnae/doc-session/internal/gateway"
	"github.com/spf13/cobra"
)

var (
	healthcheckDetails bool
)

var (
	successStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("42")).
			Bold(true)

	warningStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("214")).
			Bold(true)

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("196")).
			Bold(true)

	infoStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("39"))

	sectionStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("62")).
			Bold(true).
			Underline(true)
)

type pinger interface {
	Ping(ctx context.Context) error
}

// healthcheckCmd represents the healthcheck command
var healthcheckCmd = &cobra.Command{
	Use:   "healthcheck",
	Short: "Check that the backend and the local store are reachable",
	Long: `Check the health of doc-session by verifying:
  • Backend API reachability
  • Local store access (sqlite, redis or memory)
  • Persisted document history

This command is useful for debugging configuration issues.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		if ctx == nil {
			ctx = context.Background()
		}
		out := cmd.OutOrStdout()

		fmt.Fprintln(out, sectionStyle.Render("🔍 doc-session Health Check"))
		fmt.Fprintln(out)

		backendOK := checkBackend(ctx, out)
		documents, storeOK := checkStore(ctx, out)

		fmt.Fprintln(out, sectionStyle.Render("📊 Summary"))
		fmt.Fprintln(out)
		switch {
		case backendOK && storeOK:
			fmt.Fprintln(out, successStyle.Render("✅ Health check passed!"))
			fmt.Fprintln(out, successStyle.Render("   • Backend: reachable"))
			fmt.Fprintln(out, successStyle.Render(fmt.Sprintf("   • Documents: %d tracked", documents)))
			return nil
		case storeOK:
			fmt.Fprintln(out, warningStyle.Render("⚠️  Local store available but backend unreachable"))
			fmt.Fprintln(out, "   • Stored documents can be listed")
			fmt.Fprintln(out, "   • Uploads, refreshes and chat will fail")
			return fmt.Errorf("health check failed: backend unreachable at %s", cfg.APIURL)
		default:
			fmt.Fprintln(out, errorStyle.Render("❌ Health check failed"))
			fmt.Fprintln(out, "   • Cannot access the local store")
			return fmt.Errorf("health check failed: %s store unavailable", cfg.Store)
		}
	},
}

func checkBackend(ctx context.Context, out io.Writer) bool {
	fmt.Fprintln(out, infoStyle.Render("Step 1: Contacting backend..."))
	if healthcheckDetails {
		fmt.Fprintf(out, "   API URL: %s\n", cfg.APIURL)
	}
	if err := gateway.NewFromConfig(cfg).Health(ctx); err != nil {
		fmt.Fprintln(out, errorStyle.Render("❌ Backend unreachable:"), err)
		fmt.Fprintln(out)
		return false
	}
	fmt.Fprintln(out, successStyle.Render("✅ Backend reachable"))
	fmt.Fprintln(out)
	return true
}

func checkStore(ctx context.Context, out io.Writer) (int, bool) {
	fmt.Fprintln(out, infoStyle.Render("Step 2: Opening local store..."))
	if healthcheckDetails {
		fmt.Fprintf(out, "   Backend: %s\n", cfg.Store)
		switch cfg.Store {
		case "sqlite":
			fmt.Fprintf(out, "   Database: %s\n", cfg.StorePath)
		case "redis":
			fmt.Fprintf(out, "   Redis: %s\n", cfg.RedisURL)
		}
	}
	kv, err := internal.OpenKV(ctx, cfg)
	if err != nil {
		fmt.Fprintln(out, errorStyle.Render("❌ Failed to open local store:"), err)
		fmt.Fprintln(out)
		return 0, false
	}
	defer func() { _ = kv.Close() }()

	if p, ok := kv.(pinger); ok {
		if err := p.Ping(ctx); err != nil {
			fmt.Fprintln(out, errorStyle.Render("❌ Local store not responding:"), err)
			fmt.Fprintln(out)
			return 0, false
		}
	}
	fmt.Fprintln(out, successStyle.Render(fmt.Sprintf("✅ %s store opened", kv.Name())))
	fmt.Fprintln(out)

	fmt.Fprintln(out, infoStyle.Render("Step 3: Loading document history..."))
	store := internal.NewDocumentStore(kv, cfg.StoreKey, cfg.MaxDocuments)
	if err := store.Load(ctx); err != nil {
		fmt.Fprintln(out, errorStyle.Render("❌ Failed to load documents:"), err)
		fmt.Fprintln(out)
		return 0, false
	}

	docs := store.List()
	pending := 0
	for _, doc := range docs {
		if !doc.Status.IsTerminal() {
			pending++
		}
	}
	if len(docs) > 0 {
		fmt.Fprintln(out, successStyle.Render(fmt.Sprintf("✅ Found %d document(s), %d still processing", len(docs), pending)))
		if healthcheckDetails {
			for i, doc := range docs {
				if i == 5 {
					fmt.Fprintf(out, "   ... and %d more\n", len(docs)-5)
					break
				}
				fmt.Fprintf(out, "   [%d] %s (ID: %s, %s)\n", i+1, doc.Filename, doc.ID, doc.Status)
			}
		}
	} else {
		fmt.Fprintln(out, warningStyle.Render("⚠️  No documents found"))
		fmt.Fprintln(out, "   Upload one with `doc-session upload <file>`")
	}
	fmt.Fprintln(out)
	return len(docs), true
}

func init() {
	rootCmd.AddCommand(healthcheckCmd)
	healthcheckCmd.Flags().BoolVar(&healthcheckDetails, "details", false, "Show detailed diagnostic information")
}
