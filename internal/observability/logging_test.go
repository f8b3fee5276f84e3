package observability

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
)

func TestNewLoggerJSONRespectsLevel(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(&buf, "warn", "json")
	logger.Info("hidden")
	logger.Warn("shown", "intent", "leave_policy")

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 1 {
		t.Fatalf("lines = %d, want 1: %q", len(lines), buf.String())
	}
	var rec map[string]any
	if err := json.Unmarshal([]byte(lines[0]), &rec); err != nil {
		t.Fatalf("json.Unmarshal() error = %v", err)
	}
	if rec["msg"] != "shown" || rec["intent"] != "leave_policy" {
		t.Fatalf("record = %v", rec)
	}
}

func TestNewLoggerTextDefaultLevel(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(&buf, "nonsense", "")
	logger.Debug("hidden")
	logger.Info("shown")
	if strings.Contains(buf.String(), "hidden") || !strings.Contains(buf.String(), "msg=shown") {
		t.Fatalf("output = %q", buf.String())
	}
}
