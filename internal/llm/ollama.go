package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/ent0n29/hrdesk/internal/reliability"
)

// OllamaBackend drives a local Ollama server through /api/generate in raw
// mode, rendering the Llama 3 template itself.
type OllamaBackend struct {
	baseURL  string
	model    string
	client   *http.Client
	attempts int
}

func NewOllamaBackend(baseURL, model string, timeout time.Duration) *OllamaBackend {
	baseURL = strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if baseURL == "" {
		baseURL = "http://localhost:11434"
	}
	if strings.TrimSpace(model) == "" {
		model = "llama3.2:1b"
	}
	if timeout <= 0 {
		timeout = 120 * time.Second
	}
	return &OllamaBackend{
		baseURL:  baseURL,
		model:    model,
		client:   &http.Client{Timeout: timeout},
		attempts: 3,
	}
}

func (b *OllamaBackend) Name() string { return "ollama" }

type ollamaGenerateRequest struct {
	Model   string        `json:"model"`
	Prompt  string        `json:"prompt"`
	Raw     bool          `json:"raw"`
	Stream  bool          `json:"stream"`
	Options ollamaOptions `json:"options"`
}

type ollamaOptions struct {
	NumPredict  int      `json:"num_predict"`
	Temperature float64  `json:"temperature"`
	Stop        []string `json:"stop,omitempty"`
}

type ollamaGenerateResponse struct {
	Response string `json:"response"`
	Done     bool   `json:"done"`
	Error    string `json:"error,omitempty"`
}

func (b *OllamaBackend) Complete(ctx context.Context, req Request) (string, error) {
	payload, err := json.Marshal(ollamaGenerateRequest{
		Model:  b.model,
		Prompt: FormatLlama3(req.Messages),
		Raw:    true,
		Stream: false,
		Options: ollamaOptions{
			NumPredict:  req.MaxTokens,
			Temperature: req.Temperature,
			Stop:        StopMarkers(),
		},
	})
	if err != nil {
		return "", fmt.Errorf("marshal request: %w", err)
	}

	var text string
	err = reliability.Retry(ctx, b.attempts, 250*time.Millisecond, 2*time.Second, func(ctx context.Context) error {
		out, err := b.generate(ctx, payload)
		if err != nil {
			return err
		}
		text = out
		return nil
	})
	if err != nil {
		return "", err
	}
	return text, nil
}

func (b *OllamaBackend) generate(ctx context.Context, payload []byte) (string, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, b.baseURL+"/api/generate", bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	res, err := b.client.Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("send request: %w", err)
	}
	defer res.Body.Close()

	if res.StatusCode < 200 || res.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(res.Body, 4<<10))
		return "", &reliability.StatusError{Backend: "ollama", Code: res.StatusCode, Body: strings.TrimSpace(string(body))}
	}

	var out ollamaGenerateResponse
	if err := json.NewDecoder(res.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("decode response: %w", err)
	}
	if out.Error != "" {
		return "", fmt.Errorf("ollama error: %s", out.Error)
	}
	return out.Response, nil
}
