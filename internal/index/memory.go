package index

import (
	"context"
	"fmt"
	"math"
	"regexp"
	"sort"
	"strings"
	"sync"
)

var wordPattern = regexp.MustCompile(`\p{L}+(?:['’]\p{L}+)*|\p{N}+`)

// MemoryIndex ranks chunks by Ochiai token overlap with the query. It keeps
// everything in process and suits tests and small corpora. Like a
// nearest-neighbour store, a category-filtered search returns up to k chunks
// of that category even when none shares a term with the query.
type MemoryIndex struct {
	mu     sync.RWMutex
	chunks map[string]memoryEntry
	order  []string
	closed bool
}

type memoryEntry struct {
	chunk  Chunk
	tokens map[string]struct{}
}

func NewMemoryIndex() *MemoryIndex {
	return &MemoryIndex{chunks: make(map[string]memoryEntry)}
}

func (m *MemoryIndex) Search(ctx context.Context, query string, filter Filter, k int) ([]Hit, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if k <= 0 {
		k = 3
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.closed {
		return nil, ErrClosed
	}
	if filter.Category != "" && !m.hasCategory(filter.Category) {
		return nil, fmt.Errorf("%w: %q", ErrUnknownCategory, filter.Category)
	}

	qset := tokenSet(query)
	hits := make([]Hit, 0, len(m.order))
	for _, id := range m.order {
		e := m.chunks[id]
		if filter.Category != "" && e.chunk.Category != filter.Category {
			continue
		}
		score := ochiai(qset, e.tokens)
		// A filtered search always fills k from its category; zero-score
		// chunks rank after scored ones in insertion order.
		if score <= 0 && filter.Category == "" {
			continue
		}
		hits = append(hits, Hit{
			ID:       e.chunk.ID,
			Text:     e.chunk.Text,
			Source:   e.chunk.Source,
			Category: e.chunk.Category,
			Score:    score,
		})
	}
	sort.SliceStable(hits, func(i, j int) bool { return hits[i].Score > hits[j].Score })
	if len(hits) > k {
		hits = hits[:k]
	}
	return hits, nil
}

func (m *MemoryIndex) hasCategory(category string) bool {
	for _, e := range m.chunks {
		if e.chunk.Category == category {
			return true
		}
	}
	return false
}

func (m *MemoryIndex) Upsert(_ context.Context, chunks []Chunk) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return ErrClosed
	}
	for _, c := range chunks {
		if _, exists := m.chunks[c.ID]; !exists {
			m.order = append(m.order, c.ID)
		}
		m.chunks[c.ID] = memoryEntry{chunk: c, tokens: tokenSet(c.Text)}
	}
	return nil
}

func (m *MemoryIndex) DeleteSource(_ context.Context, path string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return ErrClosed
	}
	kept := m.order[:0]
	for _, id := range m.order {
		if m.chunks[id].chunk.Path == path {
			delete(m.chunks, id)
			continue
		}
		kept = append(kept, id)
	}
	m.order = kept
	return nil
}

func (m *MemoryIndex) Categories(_ context.Context) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.closed {
		return nil, ErrClosed
	}
	set := make(map[string]struct{})
	for _, e := range m.chunks {
		if e.chunk.Category != "" {
			set[e.chunk.Category] = struct{}{}
		}
	}
	return sortedKeys(set), nil
}

func (m *MemoryIndex) Count(_ context.Context) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.closed {
		return 0, ErrClosed
	}
	return len(m.chunks), nil
}

func (m *MemoryIndex) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}

func tokenSet(s string) map[string]struct{} {
	tokens := wordPattern.FindAllString(strings.ToLower(s), -1)
	set := make(map[string]struct{}, len(tokens))
	for _, t := range tokens {
		set[t] = struct{}{}
	}
	return set
}

// ochiai is |A∩B| / sqrt(|A||B|).
func ochiai(a, b map[string]struct{}) float64 {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}
	inter := 0
	for t := range a {
		if _, ok := b[t]; ok {
			inter++
		}
	}
	return float64(inter) / math.Sqrt(float64(len(a))*float64(len(b)))
}
