package cmd

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/iksnae/doc-session/internal"
	"github.com/spf13/cobra"
)

var (
	showRefresh bool
	showWait    bool
	showText    bool
)

var (
	// Styles for show command
	documentHeaderStyle = lipgloss.NewStyle().
				Bold(true).
				Foreground(lipgloss.Color("212")).
				Padding(0, 1).
				MarginBottom(1)

	documentMetaStyle = lipgloss.NewStyle().
				Foreground(lipgloss.Color("243")).
				MarginBottom(1)

	userMessageStyle = lipgloss.NewStyle().
				Foreground(lipgloss.Color("39")).
				Bold(true).
				Padding(0, 1)

	assistantMessageStyle = lipgloss.NewStyle().
				Foreground(lipgloss.Color("135")).
				Bold(true).
				Padding(0, 1)

	messageContentStyle = lipgloss.NewStyle().
				Padding(0, 2).
				MarginBottom(1)

	timestampStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("240")).
			Italic(true)
)

// showCmd represents the show command
var showCmd = &cobra.Command{
	Use:   "show <document-id>",
	Short: "Show a document",
	Long: `Display the status and metadata of a document.

The last known snapshot is shown unless --refresh or --wait is given.
Use --text to print the extracted text of a completed document.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id := args[0]

		return withClient(cmd, func(ctx context.Context, client *internal.Client) error {
			var doc internal.Document
			var err error
			switch {
			case showWait:
				err = internal.ShowProgress(ctx, "Waiting for processing", func() error {
					var waitErr error
					doc, waitErr = client.Documents.WaitForTerminal(ctx, id, cfg.PollInterval)
					return waitErr
				})
			case showRefresh:
				doc, err = client.Documents.Refresh(ctx, id)
			default:
				doc, err = client.Documents.Get(ctx, id)
			}
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			displayDocumentHeader(out, doc)
			if showText {
				displayExtractedText(out, doc)
			}
			return nil
		})
	},
}

func displayDocumentHeader(out io.Writer, doc internal.Document) {
	name := doc.Filename
	if name == "" {
		name = doc.ID
	}
	fmt.Fprintln(out, documentHeaderStyle.Render(fmt.Sprintf("📄 %s", name)))

	metaParts := []string{
		fmt.Sprintf("ID: %s", doc.ID),
		fmt.Sprintf("Status: %s", doc.Status),
	}
	if doc.PageCount > 0 {
		metaParts = append(metaParts, fmt.Sprintf("Pages: %d", doc.PageCount))
	}
	if !doc.CreatedAt.IsZero() {
		metaParts = append(metaParts, fmt.Sprintf("Created: %s", doc.CreatedAt.Local().Format(time.RFC3339)))
	}
	if doc.IsURL() {
		metaParts = append(metaParts, fmt.Sprintf("URL: %s", doc.Source.URL))
	}
	fmt.Fprintln(out, documentMetaStyle.Render(strings.Join(metaParts, " • ")))

	if doc.Status == internal.StatusFailed && doc.Error != "" {
		fmt.Fprintln(out, errorStyle.Render("❌ "+doc.Error))
	}
	if doc.PreviewURL != "" {
		fmt.Fprintln(out, timestampStyle.Render("Preview: "+doc.PreviewURL))
	}
}

func displayExtractedText(out io.Writer, doc internal.Document) {
	if doc.Status != internal.StatusCompleted {
		fmt.Fprintln(out, timestampStyle.Render(fmt.Sprintf("(no extracted text: document is %s)", doc.Status)))
		return
	}
	text := strings.TrimSpace(doc.ExtractedText)
	if text == "" {
		fmt.Fprintln(out, timestampStyle.Render("(empty document)"))
		return
	}
	fmt.Fprintln(out)
	fmt.Fprintln(out, wrapText(text, 80))
}

func displayMessage(out io.Writer, index int, msg internal.ConversationMessage, total int) {
	var actorStyle lipgloss.Style
	var actorLabel string

	switch msg.Role {
	case internal.RoleUser:
		actorStyle = userMessageStyle
		actorLabel = "👤 You"
	case internal.RoleAssistant:
		actorStyle = assistantMessageStyle
		actorLabel = "🤖 Assistant"
	default:
		actorStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("243"))
		actorLabel = fmt.Sprintf("🔧 %s", msg.Role)
	}

	header := actorStyle.Render(actorLabel) + " " + timestampStyle.Render(fmt.Sprintf("[%d/%d]", index, total))
	if !msg.Timestamp.IsZero() {
		header += " " + timestampStyle.Render(msg.Timestamp.Local().Format("15:04:05"))
	}
	if msg.Pending {
		header += " " + timestampStyle.Render("(sending…)")
	}
	fmt.Fprintln(out, header)

	content := strings.TrimSpace(msg.Content)
	if content != "" {
		fmt.Fprintln(out, messageContentStyle.Render(wrapText(content, 80)))
	} else {
		fmt.Fprintln(out, messageContentStyle.Foreground(lipgloss.Color("240")).Render("(empty message)"))
	}
}

func wrapText(text string, width int) string {
	lines := strings.Split(text, "\n")
	var wrapped []string

	for _, line := range lines {
		if len(line) <= width {
			wrapped = append(wrapped, line)
			continue
		}

		words := strings.Fields(line)
		currentLine := ""
		for _, word := range words {
			switch {
			case currentLine == "":
				currentLine = word
			case len(currentLine)+len(word)+1 > width:
				wrapped = append(wrapped, currentLine)
				currentLine = word
			default:
				currentLine += " " + word
			}
		}
		if currentLine != "" {
			wrapped = append(wrapped, currentLine)
		}
	}

	return strings.Join(wrapped, "\n")
}

func init() {
	rootCmd.AddCommand(showCmd)
	showCmd.Flags().BoolVar(&showRefresh, "refresh", false, "Fetch the current status from the backend")
	showCmd.Flags().BoolVarP(&showWait, "wait", "w", false, "Wait until processing completes")
	showCmd.Flags().BoolVar(&showText, "text", false, "Print the extracted text")
}
