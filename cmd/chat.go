package cmd

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/iksnae/doc-session/internal"
	"github.com/spf13/cobra"
)

const (
	chatClearCommand = "/clear"
	chatExitCommand  = "/exit"
)

// chatCmd represents the chat command
var chatCmd = &cobra.Command{
	Use:   "chat <document-id> [message]",
	Short: "Chat about a completed document",
	Long: `Ask the assistant about a completed document.

With a message, one question is sent and the answer printed.
Without one, an interactive session reads questions from stdin:
  /clear   clear the local conversation
  /exit    leave the session`,
	Args: cobra.RangeArgs(1, 2),
	RunE: func(cmd *cobra.Command, args []string) error {
		id := args[0]

		return withClient(cmd, func(ctx context.Context, client *internal.Client) error {
			if _, err := client.Sessions.LoadHistory(ctx, id); err != nil {
				return err
			}

			if len(args) == 2 {
				reply, err := sendQuestion(ctx, client, id, args[1])
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), reply.Content)
				return nil
			}
			return runChatLoop(ctx, cmd.InOrStdin(), cmd.OutOrStdout(), client, id)
		})
	},
}

func sendQuestion(ctx context.Context, client *internal.Client, id, question string) (internal.ConversationMessage, error) {
	var reply internal.ConversationMessage
	err := internal.ShowProgress(ctx, "Thinking", func() error {
		var err error
		reply, err = client.Sessions.SendMessage(ctx, id, question)
		return err
	})
	return reply, err
}

// runChatLoop reads one question per line until EOF or /exit
func runChatLoop(ctx context.Context, in io.Reader, out io.Writer, client *internal.Client, id string) error {
	messages := client.Sessions.Messages(id)
	for i, msg := range messages {
		displayMessage(out, i+1, msg, len(messages))
	}
	fmt.Fprintln(out, timestampStyle.Render("Type a question, /clear to reset, /exit to quit."))

	scanner := bufio.NewScanner(in)
	for {
		fmt.Fprint(out, userMessageStyle.Render("> "))
		if !scanner.Scan() {
			break
		}
		line := strings.TrimSpace(scanner.Text())

		switch line {
		case "":
			continue
		case chatExitCommand:
			return nil
		case chatClearCommand:
			client.Sessions.Clear(id)
			fmt.Fprintln(out, timestampStyle.Render("Conversation cleared"))
			continue
		}

		reply, err := sendQuestion(ctx, client, id, line)
		if err != nil {
			// remote failures are already reported as notifications
			switch internal.KindOf(err) {
			case internal.KindValidation, internal.KindBusy, internal.KindNotReady:
				internal.PrintWarning(err.Error())
			}
			if ctx.Err() != nil {
				return ctx.Err()
			}
			continue
		}
		count := len(client.Sessions.Messages(id))
		displayMessage(out, count, reply, count)
	}
	return scanner.Err()
}

func init() {
	rootCmd.AddCommand(chatCmd)
}
