// Package embedding turns text into dense vectors for vector index backends.
package embedding

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/ent0n29/hrdesk/internal/reliability"
)

// OllamaEmbedder calls a local Ollama server's /api/embeddings endpoint.
type OllamaEmbedder struct {
	baseURL string
	model   string
	client  *http.Client
}

func NewOllamaEmbedder(baseURL, model string) *OllamaEmbedder {
	baseURL = strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if baseURL == "" {
		baseURL = "http://localhost:11434"
	}
	if strings.TrimSpace(model) == "" {
		model = "nomic-embed-text"
	}
	return &OllamaEmbedder{
		baseURL: baseURL,
		model:   model,
		client:  &http.Client{Timeout: 60 * time.Second},
	}
}

type embedRequest struct {
	Model  string `json:"model"`
	Prompt string `json:"prompt"`
}

type embedResponse struct {
	Embedding []float32 `json:"embedding"`
}

func (e *OllamaEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	payload, err := json.Marshal(embedRequest{Model: e.model, Prompt: text})
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	var vec []float32
	err = reliability.Retry(ctx, 3, 200*time.Millisecond, 2*time.Second, func(ctx context.Context) error {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.baseURL+"/api/embeddings", bytes.NewReader(payload))
		if err != nil {
			return fmt.Errorf("create request: %w", err)
		}
		req.Header.Set("Content-Type", "application/json")

		res, err := e.client.Do(req)
		if err != nil {
			return fmt.Errorf("send request: %w", err)
		}
		defer res.Body.Close()
		if res.StatusCode != http.StatusOK {
			body, _ := io.ReadAll(io.LimitReader(res.Body, 4<<10))
			return &reliability.StatusError{Backend: "ollama-embeddings", Code: res.StatusCode, Body: strings.TrimSpace(string(body))}
		}

		var out embedResponse
		if err := json.NewDecoder(res.Body).Decode(&out); err != nil {
			return fmt.Errorf("decode response: %w", err)
		}
		if len(out.Embedding) == 0 {
			return errors.New("empty embedding")
		}
		vec = out.Embedding
		return nil
	})
	if err != nil {
		return nil, err
	}
	return vec, nil
}
