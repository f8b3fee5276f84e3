// Package index stores policy chunks and ranks them against a query.
// Backends are interchangeable; the retrieval layer treats them as a
// black-box ranked search with an optional category filter.
package index

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrUnknownCategory is returned when a filter names a category the
	// index has never stored.
	ErrUnknownCategory = errors.New("unknown category")
	ErrClosed          = errors.New("index closed")
)

// Chunk is one indexed slice of a policy document.
type Chunk struct {
	ID       string `json:"id"`
	Text     string `json:"text"`
	Source   string `json:"source"`
	Category string `json:"category"`
	Path     string `json:"path"`
	Index    int    `json:"chunk_index"`
}

// Hit is a ranked search result.
type Hit struct {
	ID       string  `json:"id"`
	Text     string  `json:"text"`
	Source   string  `json:"source"`
	Category string  `json:"category"`
	Score    float64 `json:"score"`
}

// Filter narrows a search. The zero value searches everything.
type Filter struct {
	Category string
}

type Index interface {
	Search(ctx context.Context, query string, filter Filter, k int) ([]Hit, error)
	Upsert(ctx context.Context, chunks []Chunk) error
	DeleteSource(ctx context.Context, path string) error
	Categories(ctx context.Context) ([]string, error)
	Count(ctx context.Context) (int, error)
	Close() error
}

// Config controls backend construction.
type Config struct {
	Backend string
	// Path is the bleve index directory; empty keeps the index in memory.
	Path             string
	QdrantURL        string
	QdrantAPIKey     string
	QdrantCollection string
	Embedder         Embedder
}

// Embedder turns text into a dense vector for vector backends.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// New builds the backend selected by cfg.Backend: bleve, memory or qdrant.
func New(cfg Config) (Index, error) {
	backend := strings.ToLower(strings.TrimSpace(cfg.Backend))
	if backend == "" {
		backend = "bleve"
	}
	switch backend {
	case "bleve":
		return OpenBleve(cfg.Path)
	case "memory":
		return NewMemoryIndex(), nil
	case "qdrant":
		if strings.TrimSpace(cfg.QdrantURL) == "" {
			return nil, errors.New("qdrant url is required for qdrant backend")
		}
		if cfg.Embedder == nil {
			return nil, errors.New("qdrant backend requires an embedder")
		}
		return NewQdrantIndex(QdrantConfig{
			URL:        cfg.QdrantURL,
			APIKey:     cfg.QdrantAPIKey,
			Collection: cfg.QdrantCollection,
		}, cfg.Embedder), nil
	default:
		return nil, fmt.Errorf("unsupported index backend %q", cfg.Backend)
	}
}
