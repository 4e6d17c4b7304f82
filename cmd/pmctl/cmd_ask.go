package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"pm-intelligence/internal/app"
	"pm-intelligence/internal/conversation"
)

var conversationID string

// askCmd runs one question, or a conversation read line by line from stdin.
var askCmd = &cobra.Command{
	Use:   "ask [question]",
	Short: "Ask the knowledge graph a question",
	Long: `Ask a natural-language question about firms, funds, people and deals.

Without an argument, questions are read from stdin one per line and share
a single conversation, so follow-up turns see the earlier context.`,
	Example: `  pmctl ask "Tell me about Blackstone"
  pmctl ask --json "Who has KKR co-invested with?"`,
	RunE: runAsk,
}

func init() {
	askCmd.Flags().StringVar(&conversationID, "conversation", "", "Continue an existing conversation")
}

func runAsk(cmd *cobra.Command, args []string) error {
	return withApp(cmd, func(ctx context.Context, a *app.App) error {
		id := conversationID
		if id == "" {
			id = uuid.NewString()
		}
		out := cmd.OutOrStdout()

		if len(args) > 0 {
			resp := a.Orchestrator.ProcessQuery(ctx, conversation.Request{Text: strings.Join(args, " "), ConversationID: id})
			return printResponse(out, resp)
		}

		scanner := bufio.NewScanner(cmd.InOrStdin())
		for scanner.Scan() {
			text := strings.TrimSpace(scanner.Text())
			if text == "" {
				continue
			}
			resp := a.Orchestrator.ProcessQuery(ctx, conversation.Request{Text: text, ConversationID: id})
			if err := printResponse(out, resp); err != nil {
				return err
			}
		}
		if err := scanner.Err(); err != nil {
			return err
		}

		if summary, ok := a.Orchestrator.Conversation(id); ok && !jsonOutput {
			fmt.Fprintf(out, "\n%d turns, satisfaction %.2f, engagement %s\n",
				summary.Turns, summary.Satisfaction, summary.Engagement)
		}
		return nil
	})
}

func printResponse(w io.Writer, resp *conversation.Response) error {
	if jsonOutput {
		return printJSON(w, resp)
	}
	fmt.Fprintf(w, "%s\n", resp.Answer)
	fmt.Fprintf(w, "  intent %s, confidence %.2f, %d records in %dms\n",
		resp.Intent, resp.Confidence, resp.Metadata.TotalRecords, resp.Metadata.ProcessingTimeMs)
	if resp.Insight != "" {
		fmt.Fprintf(w, "  insight: %s\n", resp.Insight)
	}
	for _, s := range resp.FollowUps {
		fmt.Fprintf(w, "  > %s\n", s)
	}
	return nil
}
