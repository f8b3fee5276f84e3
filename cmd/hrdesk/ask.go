package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/ent0n29/hrdesk/internal/agent"
)

const askPrompt = "Ask HR > "

var askOnce string

var askCmd = &cobra.Command{
	Use:   "ask",
	Short: "Ask questions interactively",
	Long: `Start an interactive question loop. Type 'exit' or 'quit' to leave.

Examples:
  hrdesk ask
  hrdesk ask --once "How many sick leaves do I get?"`,
	Args: cobra.NoArgs,
	RunE: runAsk,
}

func init() {
	rootCmd.AddCommand(askCmd)

	askCmd.Flags().StringVar(&askOnce, "once", "", "Answer a single question and exit")
}

func runAsk(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	res, err := buildForCLI(ctx, cmd)
	if err != nil {
		return err
	}
	defer func() { _ = res.Cleanup() }()

	if err := ingestIfEmpty(ctx, res); err != nil {
		res.Logger.Warn("corpus ingest failed", "dir", res.Config.CorpusDir, "error", err)
	}

	conv := agent.NewConversation(res.Agent, res.Store, uuid.NewString())
	out := cmd.OutOrStdout()
	if strings.TrimSpace(askOnce) != "" {
		printResult(out, conv.Ask(ctx, askOnce))
		return nil
	}
	printBanner(out)
	return runREPL(ctx, conv, cmd.InOrStdin(), out)
}

func printBanner(w io.Writer) {
	fmt.Fprintln(w, "Offline HR Policy Assistant")
	fmt.Fprintln(w, "I can help you with:")
	fmt.Fprintln(w, " - Leave Policies (Sick, Casual, Earned)")
	fmt.Fprintln(w, " - Reimbursements & Travel Claims")
	fmt.Fprintln(w, " - Onboarding & Offboarding")
	fmt.Fprintln(w, " - Code of Conduct & Ethics")
	fmt.Fprintln(w, "Try asking: 'How many sick leaves do I get?'")
	fmt.Fprintln(w, "Type 'exit' to quit.")
	fmt.Fprintln(w)
}

// runREPL reads one question per line until EOF or exit/quit.
func runREPL(ctx context.Context, conv *agent.Conversation, in io.Reader, out io.Writer) error {
	scanner := bufio.NewScanner(in)
	for {
		fmt.Fprint(out, askPrompt)
		if !scanner.Scan() {
			fmt.Fprintln(out)
			return scanner.Err()
		}
		q := strings.TrimSpace(scanner.Text())
		if q == "" {
			continue
		}
		switch strings.ToLower(q) {
		case "exit", "quit":
			fmt.Fprintln(out, "Goodbye!")
			return nil
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		printResult(out, conv.Ask(ctx, q))
	}
}

func printResult(w io.Writer, res agent.Result) {
	fmt.Fprintf(w, "\n>> Intent: %s\n\n%s\n\n", res.Intent, res.Answer)
	if len(res.Sources) > 0 {
		fmt.Fprintln(w, "--- Sources ---")
		for _, s := range res.Sources {
			fmt.Fprintf(w, "- %s\n", s)
		}
	}
	fmt.Fprintln(w, strings.Repeat("-", 40))
}
