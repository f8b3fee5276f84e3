package llm

import "context"

// Role tags a message in a chat exchange.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message is one role-tagged turn.
type Message struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// Request is the normalized completion request handed to a backend.
type Request struct {
	Messages    []Message
	MaxTokens   int
	Temperature float64
}

// Backend produces one raw completion. Implementations return the text as
// generated; stop-marker cleanup happens in Gateway.
type Backend interface {
	Name() string
	Complete(ctx context.Context, req Request) (string, error)
}

func UserMessage(content string) Message {
	return Message{Role: RoleUser, Content: content}
}

func AssistantMessage(content string) Message {
	return Message{Role: RoleAssistant, Content: content}
}

func SystemMessage(content string) Message {
	return Message{Role: RoleSystem, Content: content}
}
