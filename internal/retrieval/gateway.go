// Package retrieval turns a query and optional category into prompt-ready
// policy context and a parallel list of human-readable sources.
package retrieval

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/ent0n29/hrdesk/internal/index"
	"github.com/ent0n29/hrdesk/internal/observability"
)

const (
	DefaultTopK      = 3
	DefaultCacheSize = 512

	chunkSeparator  = "\n\n"
	unknownSource   = "Unknown"
	unknownCategory = "N/A"
)

// Result is the joined context and its sources, in rank order.
type Result struct {
	Context string
	Sources []string
}

type cacheKey struct {
	query    string
	category string
	k        int
}

// Gateway wraps an index.Index with filter fallback and a bounded result
// cache. Retrieve never fails; the worst case is an empty result.
type Gateway struct {
	index   index.Index
	topK    int
	cache   *lru.Cache[cacheKey, Result]
	logger  *slog.Logger
	metrics *observability.Metrics
}

// Option configures a Gateway.
type Option func(*Gateway)

// WithTopK sets the chunk count used when a caller passes k <= 0.
func WithTopK(k int) Option {
	return func(g *Gateway) {
		if k > 0 {
			g.topK = k
		}
	}
}

// WithCacheSize bounds the result cache; 0 disables caching.
func WithCacheSize(n int) Option {
	return func(g *Gateway) {
		if n <= 0 {
			g.cache = nil
			return
		}
		g.cache, _ = lru.New[cacheKey, Result](n)
	}
}

// WithLogger replaces slog.Default. A nil logger is ignored.
func WithLogger(logger *slog.Logger) Option {
	return func(g *Gateway) {
		if logger != nil {
			g.logger = logger
		}
	}
}

// WithMetrics counts fallbacks and cache hits and times retrieval.
func WithMetrics(metrics *observability.Metrics) Option {
	return func(g *Gateway) {
		g.metrics = metrics
	}
}

// NewGateway wraps idx with DefaultTopK and a DefaultCacheSize cache.
func NewGateway(idx index.Index, opts ...Option) *Gateway {
	cache, _ := lru.New[cacheKey, Result](DefaultCacheSize)
	g := &Gateway{
		index:  idx,
		topK:   DefaultTopK,
		cache:  cache,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Retrieve returns the top-k chunks for query joined by a blank line, plus
// one "<source> (Category: <category>)" entry per chunk. An empty category
// searches the whole corpus. When the filtered search fails it is retried
// once without the filter; when that fails too the result is empty.
func (g *Gateway) Retrieve(ctx context.Context, query, category string, k int) (string, []string) {
	r := g.Lookup(ctx, query, category, k)
	return r.Context, r.Sources
}

// Lookup is Retrieve returning a Result.
func (g *Gateway) Lookup(ctx context.Context, query, category string, k int) Result {
	if k <= 0 {
		k = g.topK
	}
	started := time.Now()
	defer func() {
		g.metrics.ObserveStage(observability.StageRetrieve, time.Since(started))
	}()
	key := cacheKey{query: query, category: category, k: k}
	if g.cache != nil {
		if r, ok := g.cache.Get(key); ok {
			g.metrics.ObserveRetrievalCache(true)
			return cloneResult(r)
		}
		g.metrics.ObserveRetrievalCache(false)
	}

	hits, err := g.search(ctx, query, category, k)
	if err != nil && category != "" {
		reason := "filter_error"
		if errors.Is(err, index.ErrUnknownCategory) {
			reason = "unknown_category"
		}
		g.logger.Warn("filtered retrieval failed, retrying without category", "category", category, "error", err)
		g.metrics.ObserveRetrievalFallback(reason)
		hits, err = g.search(ctx, query, "", k)
	}
	if err != nil {
		g.logger.Error("retrieval failed", "error", err)
		g.metrics.ObserveRetrievalFallback("empty")
		return Result{Sources: []string{}}
	}

	r := build(hits)
	if g.cache != nil {
		g.cache.Add(key, r)
	}
	return cloneResult(r)
}

// Invalidate drops cached results, e.g. after the corpus was re-indexed.
func (g *Gateway) Invalidate() {
	if g.cache != nil {
		g.cache.Purge()
	}
}

func (g *Gateway) search(ctx context.Context, query, category string, k int) (hits []index.Hit, err error) {
	if g.index == nil {
		return nil, errors.New("no index configured")
	}
	defer func() {
		if r := recover(); r != nil {
			hits, err = nil, fmt.Errorf("index panic: %v", r)
		}
	}()
	return g.index.Search(ctx, query, index.Filter{Category: category}, k)
}

func build(hits []index.Hit) Result {
	chunks := make([]string, 0, len(hits))
	sources := make([]string, 0, len(hits))
	for _, h := range hits {
		chunks = append(chunks, h.Text)
		sources = append(sources, FormatSource(h.Source, h.Category))
	}
	return Result{
		Context: strings.Join(chunks, chunkSeparator),
		Sources: sources,
	}
}

// FormatSource renders a citation, substituting placeholders for missing
// metadata.
func FormatSource(source, category string) string {
	if source == "" {
		source = unknownSource
	}
	if category == "" {
		category = unknownCategory
	}
	return source + " (Category: " + category + ")"
}

func cloneResult(r Result) Result {
	return Result{Context: r.Context, Sources: append([]string{}, r.Sources...)}
}
