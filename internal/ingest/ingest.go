// Package ingest loads the policy corpus from disk, chunks it, and keeps an
// index in sync with the directory tree.
package ingest

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"path/filepath"
	"strconv"

	"github.com/google/uuid"

	"github.com/ent0n29/hrdesk/internal/index"
	"github.com/ent0n29/hrdesk/internal/observability"
)

// Stats summarizes one ingestion run.
type Stats struct {
	Files  int            `json:"files"`
	Chunks int            `json:"chunks"`
	Failed int            `json:"failed"`
	ByCat  map[string]int `json:"by_category"`
}

type Config struct {
	ChunkSize    int
	ChunkOverlap int
	PDF          PDFExtractor
	Logger       *slog.Logger
	Metrics      *observability.Metrics
	// OnChange runs after any file is indexed or removed.
	OnChange func()
}

type Ingester struct {
	index   index.Index
	size    int
	overlap int
	pdf     PDFExtractor
	logger  *slog.Logger
	metrics *observability.Metrics
	changed func()
}

func New(idx index.Index, cfg Config) *Ingester {
	if cfg.ChunkSize <= 0 {
		cfg.ChunkSize = DefaultChunkSize
	}
	if cfg.ChunkOverlap < 0 {
		cfg.ChunkOverlap = DefaultChunkOverlap
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.PDF == nil {
		cfg.PDF = PDFToText
	}
	return &Ingester{
		index:   idx,
		size:    cfg.ChunkSize,
		overlap: cfg.ChunkOverlap,
		pdf:     cfg.PDF,
		logger:  cfg.Logger,
		metrics: cfg.Metrics,
		changed: cfg.OnChange,
	}
}

// IngestDir indexes every supported file under dir. Unreadable files are
// logged and counted; they do not stop the run.
func (i *Ingester) IngestDir(ctx context.Context, dir string) (Stats, error) {
	stats := Stats{ByCat: map[string]int{}}
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if d.IsDir() || !Supported(path) {
			return nil
		}
		doc, n, err := i.ingestFile(ctx, path)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return err
			}
			stats.Failed++
			i.logger.Warn("ingest file failed", "path", path, "error", err)
			return nil
		}
		stats.Files++
		stats.Chunks += n
		stats.ByCat[doc.Category] += n
		return nil
	})
	if err != nil {
		return stats, fmt.Errorf("walk %s: %w", dir, err)
	}
	if stats.Files > 0 {
		i.notify()
	}
	i.logger.Info("corpus ingested", "dir", dir, "files", stats.Files, "chunks", stats.Chunks, "failed", stats.Failed)
	return stats, nil
}

// IngestFile replaces whatever the index holds for path with fresh chunks.
func (i *Ingester) IngestFile(ctx context.Context, path string) (int, error) {
	_, n, err := i.ingestFile(ctx, path)
	if err != nil {
		return 0, err
	}
	i.notify()
	return n, nil
}

// Remove drops every chunk of path from the index.
func (i *Ingester) Remove(ctx context.Context, path string) error {
	if err := i.index.DeleteSource(ctx, path); err != nil {
		return fmt.Errorf("remove %s: %w", path, err)
	}
	i.notify()
	return nil
}

func (i *Ingester) ingestFile(ctx context.Context, path string) (Document, int, error) {
	doc, err := LoadDocument(ctx, path, i.pdf)
	if err != nil {
		return Document{}, 0, err
	}
	chunks := i.Chunks(doc)
	if err := i.index.DeleteSource(ctx, path); err != nil {
		return doc, 0, fmt.Errorf("clear %s: %w", path, err)
	}
	if len(chunks) > 0 {
		if err := i.index.Upsert(ctx, chunks); err != nil {
			return doc, 0, fmt.Errorf("index %s: %w", path, err)
		}
	}
	i.metrics.ObserveIngested(doc.Category, len(chunks))
	i.logger.Debug("file indexed", "path", path, "category", doc.Category, "chunks", len(chunks))
	return doc, len(chunks), nil
}

// Chunks splits doc into index chunks. IDs are stable for a given path so
// re-ingesting a file overwrites rather than duplicates.
func (i *Ingester) Chunks(doc Document) []index.Chunk {
	parts := Split(doc.Text, i.size, i.overlap)
	suffix := uuid.NewSHA1(uuid.NameSpaceURL, []byte(doc.Path)).String()[:8]
	out := make([]index.Chunk, 0, len(parts))
	for n, text := range parts {
		out = append(out, index.Chunk{
			ID:       doc.Source + "_" + strconv.Itoa(n) + "_" + suffix,
			Text:     text,
			Source:   doc.Source,
			Category: doc.Category,
			Path:     doc.Path,
			Index:    n,
		})
	}
	return out
}

func (i *Ingester) notify() {
	if i.changed != nil {
		i.changed()
	}
}
