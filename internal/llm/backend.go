package llm

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"
)

// Config controls backend construction.
type Config struct {
	Mode          string
	Model         string
	OllamaURL     string
	OpenAIBaseURL string
	OpenAIAPIKey  string
	Timeout       time.Duration
}

// NewBackend builds the backend selected by cfg.Mode: auto, ollama, openai or mock.
func NewBackend(ctx context.Context, cfg Config) (Backend, error) {
	mode := strings.ToLower(strings.TrimSpace(cfg.Mode))
	if mode == "" {
		mode = "auto"
	}

	switch mode {
	case "auto":
		return newAutoBackend(ctx, cfg), nil
	case "ollama":
		return NewOllamaBackend(cfg.OllamaURL, cfg.Model, cfg.Timeout), nil
	case "openai":
		return NewOpenAIBackend(cfg.OpenAIBaseURL, cfg.OpenAIAPIKey, cfg.Model, cfg.Timeout)
	case "mock":
		return NewMockBackend(), nil
	default:
		return nil, fmt.Errorf("unsupported llm backend mode %q", cfg.Mode)
	}
}

func newAutoBackend(ctx context.Context, cfg Config) Backend {
	var local Backend
	if ollamaReachable(ctx, cfg.OllamaURL) {
		local = NewOllamaBackend(cfg.OllamaURL, cfg.Model, cfg.Timeout)
	}

	if strings.TrimSpace(cfg.OpenAIBaseURL) != "" || strings.TrimSpace(cfg.OpenAIAPIKey) != "" {
		if remote, err := NewOpenAIBackend(cfg.OpenAIBaseURL, cfg.OpenAIAPIKey, cfg.Model, cfg.Timeout); err == nil {
			if local != nil {
				return NewFallbackBackend(remote, local)
			}
			return remote
		}
	}
	if local != nil {
		return local
	}
	return NewMockBackend()
}

func ollamaReachable(ctx context.Context, baseURL string) bool {
	baseURL = strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if baseURL == "" {
		baseURL = "http://localhost:11434"
	}
	ctx, cancel := context.WithTimeout(ctx, 750*time.Millisecond)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, baseURL+"/api/tags", nil)
	if err != nil {
		return false
	}
	res, err := http.DefaultClient.Do(req)
	if err != nil {
		return false
	}
	defer res.Body.Close()
	return res.StatusCode == http.StatusOK
}
