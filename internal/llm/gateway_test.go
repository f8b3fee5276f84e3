package llm

import (
	"context"
	"errors"
	"testing"
)

type recordingBackend struct {
	reply string
	err   error
	panic bool
	reqs  []Request
}

func (b *recordingBackend) Name() string { return "recording" }

func (b *recordingBackend) Complete(_ context.Context, req Request) (string, error) {
	b.reqs = append(b.reqs, req)
	if b.panic {
		panic("model crashed")
	}
	return b.reply, b.err
}

func TestGatewayChatCleansOutput(t *testing.T) {
	backend := &recordingBackend{reply: "Twelve days.<|eot_id|>\nUser: thanks"}
	g := NewGateway(backend)

	got := g.Chat(context.Background(), []Message{UserMessage("casual leave?")}, 0, -1)
	if got != "Twelve days." {
		t.Fatalf("Chat() = %q, want %q", got, "Twelve days.")
	}
	if len(backend.reqs) != 1 {
		t.Fatalf("backend calls = %d, want 1", len(backend.reqs))
	}
	if backend.reqs[0].MaxTokens != DefaultMaxTokens {
		t.Fatalf("MaxTokens = %d, want %d", backend.reqs[0].MaxTokens, DefaultMaxTokens)
	}
	if backend.reqs[0].Temperature != DefaultTemperature {
		t.Fatalf("Temperature = %v, want %v", backend.reqs[0].Temperature, DefaultTemperature)
	}
}

func TestGatewayChatPassesLimits(t *testing.T) {
	backend := &recordingBackend{reply: "leave_policy"}
	g := NewGateway(backend)

	_ = g.Chat(context.Background(), []Message{UserMessage("x")}, 20, 0)
	if backend.reqs[0].MaxTokens != 20 {
		t.Fatalf("MaxTokens = %d, want 20", backend.reqs[0].MaxTokens)
	}
	if backend.reqs[0].Temperature != 0 {
		t.Fatalf("Temperature = %v, want 0", backend.reqs[0].Temperature)
	}
}

func TestGatewayChatReturnsApologyOnError(t *testing.T) {
	g := NewGateway(&recordingBackend{err: errors.New("connection refused")})
	if got := g.Chat(context.Background(), []Message{UserMessage("hi")}, 0, -1); got != ApologyText {
		t.Fatalf("Chat() = %q, want apology", got)
	}
}

func TestGatewayChatReturnsApologyOnPanic(t *testing.T) {
	g := NewGateway(&recordingBackend{panic: true})
	if got := g.Chat(context.Background(), []Message{UserMessage("hi")}, 0, -1); got != ApologyText {
		t.Fatalf("Chat() = %q, want apology", got)
	}
}

func TestGatewayChatWithoutBackend(t *testing.T) {
	g := NewGateway(nil)
	if got := g.Chat(context.Background(), nil, 0, -1); got != ApologyText {
		t.Fatalf("Chat() = %q, want apology", got)
	}
}

func TestGatewayDoesNotShareCallerSlice(t *testing.T) {
	backend := &recordingBackend{reply: "ok"}
	g := NewGateway(backend)
	msgs := []Message{UserMessage("a")}

	_ = g.Chat(context.Background(), msgs, 0, -1)
	backend.reqs[0].Messages[0].Content = "changed"
	if msgs[0].Content != "a" {
		t.Fatalf("caller message mutated to %q", msgs[0].Content)
	}
}

func TestGatewayWithDefaults(t *testing.T) {
	backend := &recordingBackend{reply: "ok"}
	g := NewGateway(backend, WithDefaults(256, 0.4))

	_ = g.Chat(context.Background(), []Message{UserMessage("x")}, 0, -1)
	if backend.reqs[0].MaxTokens != 256 || backend.reqs[0].Temperature != 0.4 {
		t.Fatalf("request = %+v, want 256 tokens at 0.4", backend.reqs[0])
	}
}
