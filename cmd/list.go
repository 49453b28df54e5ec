package cmd

import (
	"context"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/iksnae/doc-session/internal"
	"github.com/spf13/cobra"
)

var (
	listRefresh bool
)

var (
	// Styles
	headerStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("62")).
			Padding(0, 1)

	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("212"))

	idStyle = lipgloss.NewStyle().
		Foreground(lipgloss.Color("240")).
		Italic(true)

	countStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("42")).
			Bold(true)

	dateStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("243"))

	sourceStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("135")).
			Italic(true)
)

// listCmd represents the list command
var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List known documents",
	Long: `List the documents submitted from this machine, most recent first.

Statuses are shown as last seen. Use --refresh to ask the backend for the
current status of every document that is still processing.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withClient(cmd, func(ctx context.Context, client *internal.Client) error {
			if listRefresh {
				err := internal.ShowProgress(ctx, "Refreshing pending documents", func() error {
					refreshed, err := client.Documents.RefreshPending(ctx)
					internal.LogDebug("Refreshed %d document(s)", len(refreshed))
					return err
				})
				if err != nil {
					internal.LogWarn("Some documents could not be refreshed: %v", err)
				}
			}

			displayDocuments(cmd.OutOrStdout(), client.Documents.List())
			return nil
		})
	},
}

func displayDocuments(out io.Writer, docs []internal.Document) {
	if len(docs) == 0 {
		fmt.Fprintln(out, headerStyle.Render("📋 No documents found"))
		fmt.Fprintln(out, idStyle.Render("💡 Tip: Upload one with `doc-session upload <file>`"))
		return
	}

	fmt.Fprintln(out, headerStyle.Render(fmt.Sprintf("📋 Found %d document(s)", len(docs))))
	fmt.Fprintln(out)

	w := tabwriter.NewWriter(out, 0, 0, 3, ' ', 0)
	_, _ = fmt.Fprintln(w, titleStyle.Render("ID")+"\t"+titleStyle.Render("Name")+"\t"+titleStyle.Render("Status")+"\t"+titleStyle.Render("Pages")+"\t"+titleStyle.Render("Created")+"\t"+titleStyle.Render("Source")+"\t")
	_, _ = fmt.Fprintln(w, strings.Repeat("─", 100))

	for _, doc := range docs {
		name := doc.Filename
		if name == "" {
			name = "Untitled"
		}
		if len(name) > 40 {
			name = name[:37] + "..."
		}

		pages := dateStyle.Render("—")
		if doc.PageCount > 0 {
			pages = countStyle.Render(fmt.Sprintf("%d", doc.PageCount))
		}

		source := sourceStyle.Render(string(doc.Source.Kind))
		if doc.IsURL() {
			source = sourceStyle.Render(shortenURL(doc.Source.URL, 30))
		}

		_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\t\n",
			idStyle.Render(doc.ID), name, internal.RenderStatus(doc.Status), pages, formatCreated(doc.CreatedAt, time.Now()), source)
	}

	_ = w.Flush()
	fmt.Fprintln(out)
	fmt.Fprintln(out, idStyle.Render("💡 Tip: Use the full ID (e.g., ")+
		lipgloss.NewStyle().Foreground(lipgloss.Color("62")).Render(docs[0].ID)+
		idStyle.Render(") with `doc-session show <id>` or `doc-session chat <id>`"))
}

// formatCreated renders a creation time relative to now
func formatCreated(t, now time.Time) string {
	if t.IsZero() {
		return dateStyle.Render("—")
	}
	t = t.Local()
	diff := now.Sub(t)
	switch {
	case diff < 24*time.Hour:
		return dateStyle.Render(t.Format("Today 15:04"))
	case diff < 7*24*time.Hour:
		return dateStyle.Render(t.Format("Mon 15:04"))
	case diff < 365*24*time.Hour:
		return dateStyle.Render(t.Format("Jan 02 15:04"))
	default:
		return dateStyle.Render(t.Format("2006-01-02"))
	}
}

func shortenURL(u string, max int) string {
	u = strings.TrimPrefix(strings.TrimPrefix(u, "https://"), "http://")
	if len(u) > max {
		return u[:max-3] + "..."
	}
	return u
}

func init() {
	rootCmd.AddCommand(listCmd)
	listCmd.Flags().BoolVar(&listRefresh, "refresh", false, "Refresh documents that are still processing")
}
