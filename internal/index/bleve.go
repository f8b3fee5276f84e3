package index

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"strings"
	"sync"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/analysis/lang/en"
	"github.com/blevesearch/bleve/v2/mapping"
	"github.com/blevesearch/bleve/v2/search/query"
)

const (
	fieldText       = "text"
	fieldSource     = "source"
	fieldCategory   = "category"
	fieldPath       = "path"
	fieldChunkIndex = "chunk_index"

	categoriesKey = "hrdesk:categories"
	deletePage    = 500

	categoryBackfillBoost = 0.001
)

// BleveIndex is a full-text index over policy chunks. Text is analysed with
// the English analyzer; category, source and path are exact keywords.
type BleveIndex struct {
	mu         sync.RWMutex
	index      bleve.Index
	categories map[string]struct{}
	closed     bool
}

// OpenBleve opens the index at path, creating it when missing. An empty path
// builds a memory-only index.
func OpenBleve(path string) (*BleveIndex, error) {
	var (
		idx bleve.Index
		err error
	)
	switch {
	case strings.TrimSpace(path) == "":
		idx, err = bleve.NewMemOnly(buildMapping())
	default:
		if _, statErr := os.Stat(path); statErr == nil {
			idx, err = bleve.Open(path)
		} else {
			idx, err = bleve.New(path, buildMapping())
		}
	}
	if err != nil {
		return nil, fmt.Errorf("open bleve index: %w", err)
	}

	b := &BleveIndex{index: idx, categories: make(map[string]struct{})}
	if err := b.loadCategories(); err != nil {
		_ = idx.Close()
		return nil, err
	}
	return b, nil
}

func buildMapping() mapping.IndexMapping {
	text := bleve.NewTextFieldMapping()
	text.Analyzer = en.AnalyzerName
	text.Store = true

	keyword := bleve.NewKeywordFieldMapping()
	keyword.Store = true

	position := bleve.NewNumericFieldMapping()
	position.Store = true
	position.Index = false

	doc := bleve.NewDocumentMapping()
	doc.AddFieldMappingsAt(fieldText, text)
	doc.AddFieldMappingsAt(fieldSource, keyword)
	doc.AddFieldMappingsAt(fieldCategory, keyword)
	doc.AddFieldMappingsAt(fieldPath, keyword)
	doc.AddFieldMappingsAt(fieldChunkIndex, position)

	im := bleve.NewIndexMapping()
	im.DefaultMapping = doc
	im.DefaultAnalyzer = en.AnalyzerName
	return im
}

func (b *BleveIndex) loadCategories() error {
	raw, err := b.index.GetInternal([]byte(categoriesKey))
	if err != nil {
		return fmt.Errorf("read category set: %w", err)
	}
	if len(raw) == 0 {
		return nil
	}
	var names []string
	if err := json.Unmarshal(raw, &names); err != nil {
		return fmt.Errorf("decode category set: %w", err)
	}
	for _, n := range names {
		b.categories[n] = struct{}{}
	}
	return nil
}

// persistCategories must be called with the write lock held.
func (b *BleveIndex) persistCategories() error {
	raw, err := json.Marshal(sortedKeys(b.categories))
	if err != nil {
		return fmt.Errorf("encode category set: %w", err)
	}
	if err := b.index.SetInternal([]byte(categoriesKey), raw); err != nil {
		return fmt.Errorf("write category set: %w", err)
	}
	return nil
}

func (b *BleveIndex) Search(ctx context.Context, text string, filter Filter, k int) ([]Hit, error) {
	if k <= 0 {
		k = 3
	}
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		return nil, ErrClosed
	}

	match := bleve.NewMatchQuery(text)
	match.SetField(fieldText)
	var q query.Query = match
	if filter.Category != "" {
		if _, ok := b.categories[filter.Category]; !ok {
			return nil, fmt.Errorf("%w: %q", ErrUnknownCategory, filter.Category)
		}
		term := bleve.NewTermQuery(filter.Category)
		term.SetField(fieldCategory)
		// Match-all at a low boost backfills k from the category when
		// few or no chunks share a term with the query.
		all := bleve.NewMatchAllQuery()
		all.SetBoost(categoryBackfillBoost)
		q = bleve.NewConjunctionQuery(bleve.NewDisjunctionQuery(match, all), term)
	}

	req := bleve.NewSearchRequestOptions(q, k, 0, false)
	req.Fields = []string{fieldText, fieldSource, fieldCategory}
	res, err := b.index.SearchInContext(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("bleve search: %w", err)
	}

	hits := make([]Hit, 0, len(res.Hits))
	for _, h := range res.Hits {
		hits = append(hits, Hit{
			ID:       h.ID,
			Text:     stringField(h.Fields, fieldText),
			Source:   stringField(h.Fields, fieldSource),
			Category: stringField(h.Fields, fieldCategory),
			Score:    h.Score,
		})
	}
	return hits, nil
}

func (b *BleveIndex) Upsert(ctx context.Context, chunks []Chunk) error {
	if len(chunks) == 0 {
		return nil
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return ErrClosed
	}

	batch := b.index.NewBatch()
	added := false
	for _, c := range chunks {
		doc := map[string]interface{}{
			fieldText:       c.Text,
			fieldSource:     c.Source,
			fieldCategory:   c.Category,
			fieldPath:       c.Path,
			fieldChunkIndex: float64(c.Index),
		}
		if err := batch.Index(c.ID, doc); err != nil {
			return fmt.Errorf("batch chunk %s: %w", c.ID, err)
		}
		if _, ok := b.categories[c.Category]; !ok && c.Category != "" {
			b.categories[c.Category] = struct{}{}
			added = true
		}
	}
	if err := b.index.Batch(batch); err != nil {
		return fmt.Errorf("commit batch: %w", err)
	}
	if added {
		return b.persistCategories()
	}
	return nil
}

func (b *BleveIndex) DeleteSource(ctx context.Context, path string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return ErrClosed
	}

	term := bleve.NewTermQuery(path)
	term.SetField(fieldPath)
	for {
		req := bleve.NewSearchRequestOptions(term, deletePage, 0, false)
		res, err := b.index.SearchInContext(ctx, req)
		if err != nil {
			return fmt.Errorf("find chunks for %s: %w", path, err)
		}
		if len(res.Hits) == 0 {
			return nil
		}
		batch := b.index.NewBatch()
		for _, h := range res.Hits {
			batch.Delete(h.ID)
		}
		if err := b.index.Batch(batch); err != nil {
			return fmt.Errorf("delete chunks for %s: %w", path, err)
		}
	}
}

func (b *BleveIndex) Categories(_ context.Context) ([]string, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		return nil, ErrClosed
	}
	return sortedKeys(b.categories), nil
}

func (b *BleveIndex) Count(_ context.Context) (int, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		return 0, ErrClosed
	}
	n, err := b.index.DocCount()
	if err != nil {
		return 0, fmt.Errorf("doc count: %w", err)
	}
	return int(n), nil
}

func (b *BleveIndex) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return nil
	}
	b.closed = true
	return b.index.Close()
}

func stringField(fields map[string]interface{}, name string) string {
	if v, ok := fields[name].(string); ok {
		return v
	}
	return ""
}

func sortedKeys(m map[string]struct{}) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
