// Package agent is the top-level question pipeline: classify, dispatch to a
// skill, and package the result.
package agent

import (
	"context"
	"log/slog"
	"time"

	"github.com/ent0n29/hrdesk/internal/intent"
	"github.com/ent0n29/hrdesk/internal/llm"
	"github.com/ent0n29/hrdesk/internal/observability"
)

// HistoryWindow bounds how many trailing turns reach the classifier and the
// skills, however long the transcript is.
const HistoryWindow = 2

// Classifier assigns one intent to a query.
type Classifier interface {
	Explain(ctx context.Context, query string, history []llm.Message) intent.Decision
}

// Dispatcher answers a query for an already decided intent.
type Dispatcher interface {
	Dispatch(ctx context.Context, in intent.Intent, query string, history []llm.Message) (string, []string)
}

// Result is one answered question.
type Result struct {
	Intent  intent.Intent `json:"intent"`
	Answer  string        `json:"answer"`
	Sources []string      `json:"sources"`
}

// Agent runs classification then dispatch for one question at a time.
type Agent struct {
	classifier Classifier
	dispatcher Dispatcher
	logger     *slog.Logger
	metrics    *observability.Metrics
}

// Option configures an Agent.
type Option func(*Agent)

// WithLogger replaces slog.Default. A nil logger is ignored.
func WithLogger(logger *slog.Logger) Option {
	return func(a *Agent) {
		if logger != nil {
			a.logger = logger
		}
	}
}

// WithMetrics records stage latencies and intent counts.
func WithMetrics(metrics *observability.Metrics) Option {
	return func(a *Agent) {
		a.metrics = metrics
	}
}

// New wires a classifier and a dispatcher into an Agent.
func New(classifier Classifier, dispatcher Dispatcher, opts ...Option) *Agent {
	a := &Agent{
		classifier: classifier,
		dispatcher: dispatcher,
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Handle answers query given the prior transcript. history is never
// modified; only its last HistoryWindow turns are used.
func (a *Agent) Handle(ctx context.Context, query string, history []llm.Message) Result {
	started := time.Now()
	window := Window(history)

	classifyStarted := time.Now()
	decision := a.classifier.Explain(ctx, query, window)
	a.metrics.ObserveStage(observability.StageClassify, time.Since(classifyStarted))
	a.metrics.ObserveIntent(string(decision.Intent), string(decision.Stage))
	a.logger.Info("intent detected", "intent", string(decision.Intent), "stage", string(decision.Stage))

	dispatchStarted := time.Now()
	answer, sources := a.dispatcher.Dispatch(ctx, decision.Intent, query, window)
	a.metrics.ObserveStage(observability.StageDispatch, time.Since(dispatchStarted))
	if sources == nil {
		sources = []string{}
	}

	a.metrics.ObserveStage(observability.StageTurn, time.Since(started))
	return Result{
		Intent:  decision.Intent,
		Answer:  answer,
		Sources: sources,
	}
}

// Window returns a copy of the trailing HistoryWindow turns.
func Window(history []llm.Message) []llm.Message {
	start := len(history) - HistoryWindow
	if start < 0 {
		start = 0
	}
	out := make([]llm.Message, len(history)-start)
	copy(out, history[start:])
	return out
}
