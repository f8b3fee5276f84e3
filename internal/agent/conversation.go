package agent

import (
	"context"
	"log/slog"
	"sync"

	"github.com/ent0n29/hrdesk/internal/llm"
	"github.com/ent0n29/hrdesk/internal/memory"
	"github.com/ent0n29/hrdesk/internal/policy"
)

// Conversation is one session's transcript in front of an Agent. Turns are
// serialized so the transcript is appended in order. Persistence is
// best-effort: a failing store never fails a turn.
type Conversation struct {
	mu        sync.Mutex
	agent     *Agent
	store     memory.Store
	sessionID string
	history   []llm.Message
	logger    *slog.Logger
}

func NewConversation(a *Agent, store memory.Store, sessionID string) *Conversation {
	logger := slog.Default()
	if a != nil && a.logger != nil {
		logger = a.logger
	}
	return &Conversation{
		agent:     a,
		store:     store,
		sessionID: sessionID,
		logger:    logger.With("session_id", sessionID),
	}
}

func (c *Conversation) SessionID() string { return c.sessionID }

// Ask answers query and appends the user and assistant turns.
func (c *Conversation) Ask(ctx context.Context, query string) Result {
	c.mu.Lock()
	defer c.mu.Unlock()

	res := c.agent.Handle(ctx, query, c.history)
	c.history = append(c.history, llm.UserMessage(query), llm.AssistantMessage(res.Answer))

	c.persist(ctx, memory.TurnRecord{
		SessionID: c.sessionID,
		Role:      string(llm.RoleUser),
		Content:   query,
		Intent:    string(res.Intent),
	})
	c.persist(ctx, memory.TurnRecord{
		SessionID: c.sessionID,
		Role:      string(llm.RoleAssistant),
		Content:   res.Answer,
		Intent:    string(res.Intent),
		Sources:   res.Sources,
	})
	return res
}

// History returns a copy of the full transcript.
func (c *Conversation) History() []llm.Message {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]llm.Message, len(c.history))
	copy(out, c.history)
	return out
}

func (c *Conversation) persist(ctx context.Context, record memory.TurnRecord) {
	if c.store == nil {
		return
	}
	record.Content, record.PIIRedacted = policy.RedactPII(record.Content)
	if err := c.store.SaveTurn(ctx, record); err != nil {
		c.logger.Warn("save turn failed", "role", record.Role, "error", err)
	}
}
