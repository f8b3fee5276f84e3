package index

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/ent0n29/hrdesk/internal/reliability"
)

// Point ids are derived from chunk ids so re-ingesting a file overwrites
// its previous points.
var pointNamespace = uuid.MustParse("6f1c5d1e-9a57-4b0e-8c43-7f3a3c1e2b90")

type QdrantConfig struct {
	URL        string
	APIKey     string
	Collection string
	Timeout    time.Duration
}

// QdrantIndex is a vector backend using Qdrant's REST API. Cosine distance;
// the collection and its category payload index are created on first write.
type QdrantIndex struct {
	url        string
	apiKey     string
	collection string
	client     *http.Client
	embedder   Embedder

	mu         sync.Mutex
	ready      bool
	categories map[string]struct{}
}

func NewQdrantIndex(cfg QdrantConfig, embedder Embedder) *QdrantIndex {
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 15 * time.Second
	}
	collection := strings.TrimSpace(cfg.Collection)
	if collection == "" {
		collection = "hr_policies"
	}
	return &QdrantIndex{
		url:        strings.TrimRight(cfg.URL, "/"),
		apiKey:     cfg.APIKey,
		collection: collection,
		client:     &http.Client{Timeout: timeout},
		embedder:   embedder,
	}
}

type qdrantFilter struct {
	Must []qdrantCondition `json:"must"`
}

type qdrantCondition struct {
	Key   string      `json:"key"`
	Match qdrantMatch `json:"match"`
}

type qdrantMatch struct {
	Value string `json:"value"`
}

func matchFilter(key, value string) *qdrantFilter {
	return &qdrantFilter{Must: []qdrantCondition{{Key: key, Match: qdrantMatch{Value: value}}}}
}

func (q *QdrantIndex) Search(ctx context.Context, text string, filter Filter, k int) ([]Hit, error) {
	if k <= 0 {
		k = 3
	}
	if filter.Category != "" {
		known, err := q.knownCategory(ctx, filter.Category)
		if err != nil {
			return nil, err
		}
		if !known {
			return nil, fmt.Errorf("%w: %q", ErrUnknownCategory, filter.Category)
		}
	}

	vec, err := q.embedder.Embed(ctx, text)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}
	body := map[string]any{
		"vector":       vec,
		"limit":        k,
		"with_payload": true,
	}
	if filter.Category != "" {
		body["filter"] = matchFilter("category", filter.Category)
	}

	var resp struct {
		Result []struct {
			ID      any            `json:"id"`
			Score   float64        `json:"score"`
			Payload map[string]any `json:"payload"`
		} `json:"result"`
	}
	if err := q.do(ctx, http.MethodPost, "/collections/"+q.collection+"/points/search", body, &resp); err != nil {
		return nil, err
	}

	hits := make([]Hit, 0, len(resp.Result))
	for _, r := range resp.Result {
		hits = append(hits, Hit{
			ID:       payloadString(r.Payload, "chunk_id"),
			Text:     payloadString(r.Payload, "text"),
			Source:   payloadString(r.Payload, "source"),
			Category: payloadString(r.Payload, "category"),
			Score:    r.Score,
		})
	}
	return hits, nil
}

func (q *QdrantIndex) Upsert(ctx context.Context, chunks []Chunk) error {
	if len(chunks) == 0 {
		return nil
	}
	points := make([]map[string]any, 0, len(chunks))
	for _, c := range chunks {
		vec, err := q.embedder.Embed(ctx, c.Text)
		if err != nil {
			return fmt.Errorf("embed chunk %s: %w", c.ID, err)
		}
		if err := q.ensureCollection(ctx, len(vec)); err != nil {
			return err
		}
		points = append(points, map[string]any{
			"id":     uuid.NewSHA1(pointNamespace, []byte(c.ID)).String(),
			"vector": vec,
			"payload": map[string]any{
				"chunk_id":    c.ID,
				"text":        c.Text,
				"source":      c.Source,
				"category":    c.Category,
				"path":        c.Path,
				"chunk_index": c.Index,
			},
		})
	}
	if err := q.do(ctx, http.MethodPut, "/collections/"+q.collection+"/points?wait=true", map[string]any{"points": points}, nil); err != nil {
		return err
	}

	q.mu.Lock()
	if q.categories == nil {
		q.categories = make(map[string]struct{})
	}
	for _, c := range chunks {
		q.categories[c.Category] = struct{}{}
	}
	q.mu.Unlock()
	return nil
}

func (q *QdrantIndex) DeleteSource(ctx context.Context, path string) error {
	body := map[string]any{"filter": matchFilter("path", path)}
	err := q.do(ctx, http.MethodPost, "/collections/"+q.collection+"/points/delete?wait=true", body, nil)
	var statusErr *reliability.StatusError
	if errors.As(err, &statusErr) && statusErr.Code == http.StatusNotFound {
		return nil
	}
	return err
}

func (q *QdrantIndex) Categories(ctx context.Context) ([]string, error) {
	var resp struct {
		Result struct {
			Hits []struct {
				Value any `json:"value"`
			} `json:"hits"`
		} `json:"result"`
	}
	body := map[string]any{"key": "category", "limit": 256, "exact": true}
	if err := q.do(ctx, http.MethodPost, "/collections/"+q.collection+"/facet", body, &resp); err != nil {
		return nil, err
	}
	set := make(map[string]struct{}, len(resp.Result.Hits))
	for _, h := range resp.Result.Hits {
		if s, ok := h.Value.(string); ok && s != "" {
			set[s] = struct{}{}
		}
	}
	q.mu.Lock()
	q.categories = set
	q.mu.Unlock()
	return sortedKeys(set), nil
}

func (q *QdrantIndex) knownCategory(ctx context.Context, category string) (bool, error) {
	q.mu.Lock()
	_, ok := q.categories[category]
	q.mu.Unlock()
	if ok {
		return true, nil
	}
	names, err := q.Categories(ctx)
	if err != nil {
		return false, fmt.Errorf("load categories: %w", err)
	}
	for _, n := range names {
		if n == category {
			return true, nil
		}
	}
	return false, nil
}

func (q *QdrantIndex) Count(ctx context.Context) (int, error) {
	var resp struct {
		Result struct {
			Count int `json:"count"`
		} `json:"result"`
	}
	if err := q.do(ctx, http.MethodPost, "/collections/"+q.collection+"/points/count", map[string]any{"exact": true}, &resp); err != nil {
		return 0, err
	}
	return resp.Result.Count, nil
}

func (q *QdrantIndex) Close() error { return nil }

func (q *QdrantIndex) ensureCollection(ctx context.Context, dim int) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.ready {
		return nil
	}
	err := q.do(ctx, http.MethodGet, "/collections/"+q.collection, nil, nil)
	var statusErr *reliability.StatusError
	switch {
	case err == nil:
		q.ready = true
		return nil
	case errors.As(err, &statusErr) && statusErr.Code == http.StatusNotFound:
	default:
		return err
	}

	create := map[string]any{"vectors": map[string]any{"size": dim, "distance": "Cosine"}}
	if err := q.do(ctx, http.MethodPut, "/collections/"+q.collection, create, nil); err != nil {
		return fmt.Errorf("create collection: %w", err)
	}
	for _, field := range []string{"category", "path"} {
		schema := map[string]any{"field_name": field, "field_schema": "keyword"}
		if err := q.do(ctx, http.MethodPut, "/collections/"+q.collection+"/index?wait=true", schema, nil); err != nil {
			return fmt.Errorf("create %s payload index: %w", field, err)
		}
	}
	q.ready = true
	return nil
}

func (q *QdrantIndex) do(ctx context.Context, method, path string, body any, out any) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal qdrant request: %w", err)
		}
		reader = bytes.NewReader(data)
	}
	req, err := http.NewRequestWithContext(ctx, method, q.url+path, reader)
	if err != nil {
		return fmt.Errorf("create qdrant request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if q.apiKey != "" {
		req.Header.Set("api-key", q.apiKey)
	}

	res, err := q.client.Do(req)
	if err != nil {
		return fmt.Errorf("qdrant %s %s: %w", method, path, err)
	}
	defer res.Body.Close()
	if res.StatusCode >= 300 {
		msg, _ := io.ReadAll(io.LimitReader(res.Body, 4<<10))
		return &reliability.StatusError{Backend: "qdrant", Code: res.StatusCode, Body: strings.TrimSpace(string(msg))}
	}
	if out != nil {
		if err := json.NewDecoder(res.Body).Decode(out); err != nil {
			return fmt.Errorf("decode qdrant response: %w", err)
		}
	}
	return nil
}

func payloadString(payload map[string]any, key string) string {
	if v, ok := payload[key].(string); ok {
		return v
	}
	return ""
}
