package llm

import (
	"context"
	"strings"
)

// mockGreeting must not contain intent labels or their fuzzy keywords.
const mockGreeting = "Hello! I am the HR assistant running in offline mode. Ask me anything about company policy."

// MockBackend answers without a model: it quotes the first policy passage
// from the system prompt when one is present, greets when the system prompt
// has none, and returns an empty reply to a bare prompt such as the intent
// classifier's, so classification falls through to its default.
type MockBackend struct{}

func NewMockBackend() *MockBackend { return &MockBackend{} }

func (b *MockBackend) Name() string { return "mock" }

func (b *MockBackend) Complete(ctx context.Context, req Request) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	hasSystem := false
	for _, m := range req.Messages {
		if m.Role != RoleSystem {
			continue
		}
		hasSystem = true
		_, policy, ok := strings.Cut(m.Content, "CONTEXT FROM POLICIES:\n")
		if !ok {
			continue
		}
		policy = strings.TrimSpace(policy)
		if policy == "" {
			return "I could not find this in the policy documents.", nil
		}
		first, _, _ := strings.Cut(policy, "\n\n")
		return "According to the policy: " + truncateRunes(first, 400), nil
	}
	if !hasSystem {
		return "", nil
	}
	return mockGreeting, nil
}

func truncateRunes(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
