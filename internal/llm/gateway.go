package llm

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/ent0n29/hrdesk/internal/observability"
)

// ApologyText is returned in place of a completion when the backend fails.
const ApologyText = "I apologize, but I encountered an error generating the response."

const (
	DefaultMaxTokens   = 1024
	DefaultTemperature = 0.1
)

// Gateway wraps a Backend with output cleanup and failure containment.
// Chat never returns an error; callers always get displayable text.
type Gateway struct {
	backend     Backend
	maxTokens   int
	temperature float64
	logger      *slog.Logger
	metrics     *observability.Metrics
}

type GatewayOption func(*Gateway)

func WithLogger(logger *slog.Logger) GatewayOption {
	return func(g *Gateway) {
		if logger != nil {
			g.logger = logger
		}
	}
}

// WithDefaults sets the budget used when a caller passes maxTokens <= 0 or
// temperature < 0. Invalid values are ignored.
func WithDefaults(maxTokens int, temperature float64) GatewayOption {
	return func(g *Gateway) {
		if maxTokens > 0 {
			g.maxTokens = maxTokens
		}
		if temperature >= 0 {
			g.temperature = temperature
		}
	}
}

func WithMetrics(metrics *observability.Metrics) GatewayOption {
	return func(g *Gateway) {
		g.metrics = metrics
	}
}

func NewGateway(backend Backend, opts ...GatewayOption) *Gateway {
	g := &Gateway{
		backend:     backend,
		maxTokens:   DefaultMaxTokens,
		temperature: DefaultTemperature,
		logger:      slog.Default(),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// BackendName reports the active backend for health output.
func (g *Gateway) BackendName() string {
	if g == nil || g.backend == nil {
		return "none"
	}
	return g.backend.Name()
}

// Chat sends messages to the backend and returns the cleaned completion.
// maxTokens <= 0 and temperature < 0 select the gateway defaults.
func (g *Gateway) Chat(ctx context.Context, messages []Message, maxTokens int, temperature float64) (out string) {
	if maxTokens <= 0 {
		maxTokens = DefaultMaxTokens
		if g != nil {
			maxTokens = g.maxTokens
		}
	}
	if temperature < 0 {
		temperature = DefaultTemperature
		if g != nil {
			temperature = g.temperature
		}
	}
	name := g.BackendName()

	defer func() {
		if r := recover(); r != nil {
			g.fail(name, fmt.Errorf("backend panic: %v", r))
			out = ApologyText
		}
	}()

	if g == nil || g.backend == nil {
		g.fail(name, fmt.Errorf("no generation backend configured"))
		return ApologyText
	}

	req := Request{
		Messages:    append([]Message(nil), messages...),
		MaxTokens:   maxTokens,
		Temperature: temperature,
	}
	started := time.Now()
	raw, err := g.backend.Complete(ctx, req)
	g.metrics.ObserveStage(observability.StageGenerate, time.Since(started))
	if err != nil {
		g.fail(name, err)
		return ApologyText
	}
	return CleanCompletion(raw)
}

func (g *Gateway) fail(backend string, err error) {
	logger := slog.Default()
	var metrics *observability.Metrics
	if g != nil {
		logger = g.logger
		metrics = g.metrics
	}
	logger.Error("generation failed", "backend", backend, "error", err)
	metrics.ObserveGenerationFailure(backend)
}
