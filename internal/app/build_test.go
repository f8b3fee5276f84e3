package app

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/ent0n29/hrdesk/internal/config"
	"github.com/ent0n29/hrdesk/internal/intent"
)

func TestBuildOfflinePipeline(t *testing.T) {
	dir := t.TempDir()
	leaveDir := filepath.Join(dir, "leave")
	if err := os.MkdirAll(leaveDir, 0o755); err != nil {
		t.Fatalf("MkdirAll() error = %v", err)
	}
	if err := os.WriteFile(filepath.Join(leaveDir, "leave_policy.md"), []byte("Casual leave: 12 days per year."), 0o644); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}

	cfg := config.Defaults()
	cfg.IndexBackend = "memory"
	cfg.LLMBackend = "mock"
	cfg.MetricsNamespace = "test_app_build"

	ctx := context.Background()
	res, err := Build(ctx, cfg, Options{LogOutput: io.Discard})
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}
	defer func() {
		if err := res.Cleanup(); err != nil {
			t.Fatalf("Cleanup() error = %v", err)
		}
	}()
	if res.API == nil || res.Sessions == nil {
		t.Fatalf("Build() did not construct the server")
	}

	if err := indexReady(res.Index)(ctx); err == nil {
		t.Fatalf("indexReady() before ingest error = nil, want empty index error")
	}
	if _, err := res.Ingester.IngestDir(ctx, dir); err != nil {
		t.Fatalf("IngestDir() error = %v", err)
	}
	if err := indexReady(res.Index)(ctx); err != nil {
		t.Fatalf("indexReady() after ingest error = %v", err)
	}

	got := res.Agent.Handle(ctx, "What is casual leave?", nil)
	if got.Intent != intent.LeavePolicy {
		t.Fatalf("Intent = %q, want leave_policy", got.Intent)
	}
	if len(got.Sources) != 1 || got.Sources[0] != "leave_policy.md (Category: leave)" {
		t.Fatalf("Sources = %v", got.Sources)
	}
}

func TestBuildRejectsUnknownBackend(t *testing.T) {
	cfg := config.Defaults()
	cfg.IndexBackend = "chroma"
	cfg.MetricsNamespace = "test_app_build_bad"
	if _, err := Build(context.Background(), cfg, Options{LogOutput: io.Discard}); err == nil {
		t.Fatalf("Build() error = nil, want index error")
	}
}

func TestBuildOfflineGroundsEveryCategory(t *testing.T) {
	dir := t.TempDir()
	for rel, text := range map[string]string{
		"leave/leave.txt":      "Casual leave: 12 days per year.",
		"offboarding/exit.txt": "Notice period is 60 days. Termination requires HR approval.",
	} {
		path := filepath.Join(dir, rel)
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			t.Fatalf("MkdirAll() error = %v", err)
		}
		if err := os.WriteFile(path, []byte(text), 0o644); err != nil {
			t.Fatalf("WriteFile() error = %v", err)
		}
	}

	for _, backend := range []string{"memory", "bleve"} {
		cfg := config.Defaults()
		cfg.IndexBackend = backend
		cfg.IndexPath = ""
		cfg.LLMBackend = "mock"
		cfg.DatabaseURL = ""
		cfg.MetricsNamespace = "test_app_grounding_" + backend

		ctx := context.Background()
		res, err := Build(ctx, cfg, Options{LogOutput: io.Discard, SkipServer: true})
		if err != nil {
			t.Fatalf("%s: Build() error = %v", backend, err)
		}
		if _, err := res.Ingester.IngestDir(ctx, dir); err != nil {
			t.Fatalf("%s: IngestDir() error = %v", backend, err)
		}

		got := res.Agent.Handle(ctx, "What happens if I get fired?", nil)
		if got.Intent != intent.Offboarding {
			t.Fatalf("%s: Intent = %q, want offboarding", backend, got.Intent)
		}
		if len(got.Sources) != 1 || got.Sources[0] != "exit.txt (Category: offboarding)" {
			t.Fatalf("%s: Sources = %v, want exit.txt", backend, got.Sources)
		}
		if !strings.Contains(got.Answer, "Notice period is 60 days") {
			t.Fatalf("%s: Answer = %q, want grounded answer", backend, got.Answer)
		}

		if got := res.Agent.Handle(ctx, "How many days off do I get?", nil); got.Intent != intent.GeneralHRInfo {
			t.Fatalf("%s: unmatched query Intent = %q, want general_hr_info", backend, got.Intent)
		}
		if err := res.Cleanup(); err != nil {
			t.Fatalf("%s: Cleanup() error = %v", backend, err)
		}
	}
}
