package llm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"
)

func TestOllamaBackendSendsRawLlama3Prompt(t *testing.T) {
	var got ollamaGenerateRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/generate" {
			t.Errorf("path = %q, want /api/generate", r.URL.Path)
		}
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("decode request: %v", err)
		}
		_ = json.NewEncoder(w).Encode(ollamaGenerateResponse{Response: "Hello there", Done: true})
	}))
	defer srv.Close()

	b := NewOllamaBackend(srv.URL, "llama3.2:1b", 5*time.Second)
	out, err := b.Complete(context.Background(), Request{
		Messages:    []Message{SystemMessage("sys"), UserMessage("Hello")},
		MaxTokens:   20,
		Temperature: 0.1,
	})
	if err != nil {
		t.Fatalf("Complete() error = %v", err)
	}
	if out != "Hello there" {
		t.Fatalf("Complete() = %q, want %q", out, "Hello there")
	}
	if !got.Raw || got.Stream {
		t.Fatalf("raw/stream = %v/%v, want true/false", got.Raw, got.Stream)
	}
	if !strings.HasPrefix(got.Prompt, "<|begin_of_text|>") || !strings.HasSuffix(got.Prompt, "<|start_header_id|>assistant<|end_header_id|>\n\n") {
		t.Fatalf("prompt not templated: %q", got.Prompt)
	}
	if got.Options.NumPredict != 20 {
		t.Fatalf("num_predict = %d, want 20", got.Options.NumPredict)
	}
	if len(got.Options.Stop) != 2 {
		t.Fatalf("stop = %v, want 2 markers", got.Options.Stop)
	}
}

func TestOllamaBackendRetriesUnavailable(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			http.Error(w, "loading model", http.StatusServiceUnavailable)
			return
		}
		_ = json.NewEncoder(w).Encode(ollamaGenerateResponse{Response: "ok", Done: true})
	}))
	defer srv.Close()

	b := NewOllamaBackend(srv.URL, "m", 5*time.Second)
	out, err := b.Complete(context.Background(), Request{Messages: []Message{UserMessage("x")}, MaxTokens: 5})
	if err != nil {
		t.Fatalf("Complete() error = %v", err)
	}
	if out != "ok" {
		t.Fatalf("Complete() = %q, want ok", out)
	}
	if calls.Load() != 2 {
		t.Fatalf("calls = %d, want 2", calls.Load())
	}
}

func TestOllamaBackendBadRequestIsNotRetried(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		http.Error(w, "model not found", http.StatusNotFound)
	}))
	defer srv.Close()

	b := NewOllamaBackend(srv.URL, "missing", 5*time.Second)
	if _, err := b.Complete(context.Background(), Request{Messages: []Message{UserMessage("x")}}); err == nil {
		t.Fatalf("Complete() expected error")
	}
	if calls.Load() != 1 {
		t.Fatalf("calls = %d, want 1", calls.Load())
	}
}
