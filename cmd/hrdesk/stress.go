package main

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/ent0n29/hrdesk/internal/agent"
)

// stressQuestions covers every rule stage plus the adversarial negation and
// general-knowledge cases.
var stressQuestions = []string{
	"Hiii",
	"Good morning",
	"What is casual leave?",
	"How to claim travel expenses?",
	"What is the notice period?",
	"Can I do freelance work?",
	"Explain my salary structure",
	"What is the maternity leave policy?",
	"Does apple color is blue?",
	"Sky is brown in color",
	"What is the capital of France?",
	"I am NOT asking about leave, just saying hi",
	"Don't tell me about reimbursement, tell me about gym",
	"Who are you?",
	"Help me",
	"What is my bonus?",
	"What happens if I get fired?",
	"sky is brown is also chitchat not hr info",
}

var stressShowAnswers bool

var stressCmd = &cobra.Command{
	Use:   "stress",
	Short: "Run the fixed question set and report intent and latency",
	Long: `Run a fixed set of questions through one conversation and print the
detected intent and wall-clock duration of each.

Examples:
  hrdesk stress
  hrdesk stress --answers`,
	Args: cobra.NoArgs,
	RunE: runStressCmd,
}

func init() {
	rootCmd.AddCommand(stressCmd)

	stressCmd.Flags().BoolVar(&stressShowAnswers, "answers", false, "Print each answer under its row")
}

type stressResult struct {
	ID       int
	Question string
	Intent   string
	Answer   string
	Duration time.Duration
}

func runStressCmd(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	res, err := buildForCLI(ctx, cmd)
	if err != nil {
		return err
	}
	defer func() { _ = res.Cleanup() }()

	if err := ingestIfEmpty(ctx, res); err != nil {
		res.Logger.Warn("corpus ingest failed", "dir", res.Config.CorpusDir, "error", err)
	}

	out := cmd.OutOrStdout()
	conv := agent.NewConversation(res.Agent, res.Store, uuid.NewString())
	results := runStress(ctx, conv, stressQuestions)
	fmt.Fprintf(out, "\nRunning %d Question Stress Test...\n\n", len(results))
	printStressTable(out, results, stressShowAnswers)
	return nil
}

// runStress asks every question in order on one conversation. A panicking
// turn is reported as ERROR and the run continues.
func runStress(ctx context.Context, conv *agent.Conversation, questions []string) []stressResult {
	results := make([]stressResult, 0, len(questions))
	for i, q := range questions {
		results = append(results, askTimed(ctx, conv, i+1, q))
	}
	return results
}

func askTimed(ctx context.Context, conv *agent.Conversation, id int, q string) (r stressResult) {
	r = stressResult{ID: id, Question: q}
	defer func() {
		if rec := recover(); rec != nil {
			r.Intent = "ERROR"
			r.Answer = fmt.Sprint(rec)
			r.Duration = 0
		}
	}()
	start := time.Now()
	res := conv.Ask(ctx, q)
	r.Duration = time.Since(start)
	r.Intent = string(res.Intent)
	r.Answer = res.Answer
	return r
}

func printStressTable(w io.Writer, results []stressResult, answers bool) {
	fmt.Fprintf(w, "%-3s | %-35s | %-20s | %s\n", "ID", "Question", "Intent", "Duration")
	fmt.Fprintln(w, strings.Repeat("-", 80))
	for _, r := range results {
		fmt.Fprintf(w, "%-3d | %-35s | %-20s | %.2fs\n", r.ID, r.Question, r.Intent, r.Duration.Seconds())
		if answers {
			fmt.Fprintf(w, "    %s\n", strings.ReplaceAll(r.Answer, "\n", "\n    "))
		}
	}
}
