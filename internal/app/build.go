package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/ent0n29/hrdesk/internal/agent"
	"github.com/ent0n29/hrdesk/internal/config"
	"github.com/ent0n29/hrdesk/internal/embedding"
	"github.com/ent0n29/hrdesk/internal/httpapi"
	"github.com/ent0n29/hrdesk/internal/index"
	"github.com/ent0n29/hrdesk/internal/ingest"
	"github.com/ent0n29/hrdesk/internal/intent"
	"github.com/ent0n29/hrdesk/internal/llm"
	"github.com/ent0n29/hrdesk/internal/memory"
	"github.com/ent0n29/hrdesk/internal/observability"
	"github.com/ent0n29/hrdesk/internal/retrieval"
	"github.com/ent0n29/hrdesk/internal/session"
	"github.com/ent0n29/hrdesk/internal/skills"
)

type BuildResult struct {
	Config    config.Config
	Logger    *slog.Logger
	Metrics   *observability.Metrics
	Index     index.Index
	Retrieval *retrieval.Gateway
	Gateway   *llm.Gateway
	Agent     *agent.Agent
	Ingester  *ingest.Ingester
	Store     memory.Store
	Sessions  *session.Manager
	API       *httpapi.Server

	// Cleanup should be called on shutdown to release the index and the
	// transcript store.
	Cleanup func() error
}

// Options tweak construction for entry points that are not the server.
type Options struct {
	LogOutput io.Writer
	// SkipServer leaves API and Sessions nil, for one-shot CLI commands.
	SkipServer bool
}

// Build constructs every process-wide dependency once. Any failure here is
// fatal to the caller; nothing is retried per question.
func Build(ctx context.Context, cfg config.Config, opts Options) (*BuildResult, error) {
	out := opts.LogOutput
	if out == nil {
		out = os.Stderr
	}
	logger := observability.NewLogger(out, cfg.LogLevel, cfg.LogFormat)
	metrics := observability.NewMetrics(cfg.MetricsNamespace)

	var embedder index.Embedder
	if strings.EqualFold(cfg.IndexBackend, "qdrant") {
		embedURL := cfg.EmbeddingURL
		if embedURL == "" {
			embedURL = cfg.OllamaURL
		}
		embedder = embedding.NewOllamaEmbedder(embedURL, cfg.EmbeddingModel)
	}
	idx, err := index.New(index.Config{
		Backend:          cfg.IndexBackend,
		Path:             cfg.IndexPath,
		QdrantURL:        cfg.QdrantURL,
		QdrantAPIKey:     cfg.QdrantAPIKey,
		QdrantCollection: cfg.QdrantCollection,
		Embedder:         embedder,
	})
	if err != nil {
		return nil, fmt.Errorf("index init failed: %w", err)
	}

	backend, err := llm.NewBackend(ctx, llm.Config{
		Mode:          cfg.LLMBackend,
		Model:         cfg.LLMModel,
		OllamaURL:     cfg.OllamaURL,
		OpenAIBaseURL: cfg.OpenAIBaseURL,
		OpenAIAPIKey:  cfg.OpenAIAPIKey,
		Timeout:       cfg.LLMTimeout,
	})
	if err != nil {
		_ = idx.Close()
		return nil, fmt.Errorf("generation backend init failed: %w", err)
	}
	logger.Info("generation backend selected", "backend", backend.Name(), "model", cfg.LLMModel)

	store, err := memory.NewStore(ctx, cfg.DatabaseURL)
	if err != nil {
		_ = idx.Close()
		return nil, fmt.Errorf("memory store init failed: %w", err)
	}

	gateway := llm.NewGateway(backend,
		llm.WithLogger(logger),
		llm.WithMetrics(metrics),
		llm.WithDefaults(cfg.LLMMaxTokens, cfg.LLMTemperature),
	)
	retriever := retrieval.NewGateway(idx,
		retrieval.WithTopK(cfg.RetrievalTopK),
		retrieval.WithCacheSize(cfg.RetrievalCacheSize),
		retrieval.WithLogger(logger),
		retrieval.WithMetrics(metrics),
	)
	a := agent.New(
		intent.NewClassifier(gateway, logger),
		skills.NewDispatcher(retriever, gateway, cfg.RetrievalTopK, logger),
		agent.WithLogger(logger),
		agent.WithMetrics(metrics),
	)
	ingester := ingest.New(idx, ingest.Config{
		ChunkSize:    cfg.ChunkSize,
		ChunkOverlap: cfg.ChunkOverlap,
		Logger:       logger,
		Metrics:      metrics,
		OnChange:     retriever.Invalidate,
	})

	res := &BuildResult{
		Config:    cfg,
		Logger:    logger,
		Metrics:   metrics,
		Index:     idx,
		Retrieval: retriever,
		Gateway:   gateway,
		Agent:     a,
		Ingester:  ingester,
		Store:     store,
	}

	if !opts.SkipServer {
		res.Sessions = session.NewManager(cfg.SessionInactivityTimeout)
		res.API = httpapi.New(cfg, res.Sessions, a, store, metrics, indexReady(idx))
		res.API.SetLogger(logger)
	}

	res.Cleanup = func() error {
		var errs []error
		if err := idx.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close index: %w", err))
		}
		if err := store.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close store: %w", err))
		}
		return errors.Join(errs...)
	}
	return res, nil
}

// indexReady fails until the corpus has been ingested.
func indexReady(idx index.Index) httpapi.ReadinessCheck {
	return func(ctx context.Context) error {
		n, err := idx.Count(ctx)
		if err != nil {
			return fmt.Errorf("index unavailable: %w", err)
		}
		if n == 0 {
			return errors.New("index is empty; run ingest")
		}
		return nil
	}
}
