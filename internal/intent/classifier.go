package intent

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/ent0n29/hrdesk/internal/llm"
)

const (
	classifyMaxTokens    = 20
	historyContextTurns  = 2
	historyContentLength = 100
)

// Completer is the slice of the generation gateway the classifier needs.
type Completer interface {
	Chat(ctx context.Context, messages []llm.Message, maxTokens int, temperature float64) string
}

// Decision is a classification plus the stage that produced it.
type Decision struct {
	Intent Intent
	Stage  Stage
}

// Classifier assigns exactly one Intent to every query.
type Classifier struct {
	model       Completer
	temperature float64
	logger      *slog.Logger
}

// NewClassifier builds a classifier. A nil model disables the model stage
// and unmatched queries resolve to GeneralHRInfo.
func NewClassifier(model Completer, logger *slog.Logger) *Classifier {
	if logger == nil {
		logger = slog.Default()
	}
	return &Classifier{
		model:       model,
		temperature: llm.DefaultTemperature,
		logger:      logger,
	}
}

// Classify returns the intent for query; history feeds only the model stage.
func (c *Classifier) Classify(ctx context.Context, query string, history []llm.Message) Intent {
	return c.Explain(ctx, query, history).Intent
}

// Explain classifies query and reports which stage decided.
func (c *Classifier) Explain(ctx context.Context, query string, history []llm.Message) Decision {
	q := strings.ToLower(query)
	if in, stage, ok := classifyByRules(q); ok {
		return Decision{Intent: in, Stage: stage}
	}

	if c.model == nil {
		return Decision{Intent: GeneralHRInfo, Stage: StageDefault}
	}

	prompt := BuildPrompt(query, history)
	response := c.model.Chat(ctx, []llm.Message{llm.UserMessage(prompt)}, classifyMaxTokens, c.temperature)
	in, stage := interpretResponse(response)
	c.logger.Debug("model classification", "response", response, "intent", in, "stage", stage)
	return Decision{Intent: in, Stage: stage}
}

// BuildPrompt renders the classification prompt with up to the last two
// history turns, each cut to 100 characters.
func BuildPrompt(query string, history []llm.Message) string {
	var b strings.Builder
	b.WriteString("You are a classification model.\nAvailable categories:\n")
	for _, in := range All {
		b.WriteString("- ")
		b.WriteString(string(in))
		b.WriteString("\n")
	}
	b.WriteString("\n")
	if len(history) > 0 {
		start := len(history) - historyContextTurns
		if start < 0 {
			start = 0
		}
		b.WriteString("\nConversation History:\n")
		for _, m := range history[start:] {
			role := "Assistant"
			if m.Role == llm.RoleUser {
				role = "User"
			}
			fmt.Fprintf(&b, "%s: %s\n", role, truncateRunes(m.Content, historyContentLength))
		}
	}
	b.WriteString("\n")
	b.WriteString("Current Query: \"" + query + "\"\n\n")
	b.WriteString("Task: Classify the Current Query into exactly one category.\n")
	b.WriteString("- If it's about common sense, facts, or logic (e.g. \"Sky color\", \"Math\"), choose 'general_knowledge'.\n")
	b.WriteString("- If it's general chat, choose 'chitchat'.\n")
	b.WriteString("- If it's HR/Company Policy, choose specific category.\n\n")
	b.WriteString("Output ONLY the category name.")
	return b.String()
}

func truncateRunes(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
