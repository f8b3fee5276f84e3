package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/ent0n29/hrdesk/internal/agent"
	"github.com/ent0n29/hrdesk/internal/config"
	"github.com/ent0n29/hrdesk/internal/index"
	"github.com/ent0n29/hrdesk/internal/intent"
	"github.com/ent0n29/hrdesk/internal/llm"
	"github.com/ent0n29/hrdesk/internal/memory"
	"github.com/ent0n29/hrdesk/internal/observability"
	"github.com/ent0n29/hrdesk/internal/protocol"
	"github.com/ent0n29/hrdesk/internal/retrieval"
	"github.com/ent0n29/hrdesk/internal/session"
	"github.com/ent0n29/hrdesk/internal/skills"
)

var metricsSeq atomic.Int64

// Metrics register globally, so every server needs its own namespace.
func testMetrics(prefix string) *observability.Metrics {
	return observability.NewMetrics(fmt.Sprintf("%s_%d", prefix, metricsSeq.Add(1)))
}

func newTestServer(t *testing.T, ready ReadinessCheck) (*httptest.Server, memory.Store) {
	t.Helper()
	idx := index.NewMemoryIndex()
	err := idx.Upsert(context.Background(), []index.Chunk{
		{ID: "l0", Text: "Casual leave: 12 days per calendar year.", Source: "leave_policy.pdf", Category: "leave", Path: "data/leave/leave_policy.pdf"},
	})
	if err != nil {
		t.Fatalf("Upsert() error = %v", err)
	}
	metrics := testMetrics("test_httpapi")
	gateway := llm.NewGateway(llm.NewMockBackend(), llm.WithMetrics(metrics))
	retriever := retrieval.NewGateway(idx, retrieval.WithMetrics(metrics))
	a := agent.New(
		intent.NewClassifier(gateway, nil),
		skills.NewDispatcher(retriever, gateway, retrieval.DefaultTopK, nil),
		agent.WithMetrics(metrics),
	)

	cfg := config.Defaults()
	store := memory.NewInMemoryStore()
	sessions := session.NewManager(cfg.SessionInactivityTimeout)
	srv := New(cfg, sessions, a, store, metrics, ready)

	ts := httptest.NewServer(srv.Router())
	t.Cleanup(ts.Close)
	return ts, store
}

func postJSON(t *testing.T, url string, body any) *http.Response {
	t.Helper()
	raw, _ := json.Marshal(body)
	res, err := http.Post(url, "application/json", bytes.NewReader(raw))
	if err != nil {
		t.Fatalf("POST %s error = %v", url, err)
	}
	return res
}

func decodeBody(t *testing.T, res *http.Response, out any) {
	t.Helper()
	defer res.Body.Close()
	if err := json.NewDecoder(res.Body).Decode(out); err != nil {
		t.Fatalf("decode response: %v", err)
	}
}

func createSession(t *testing.T, baseURL string) string {
	t.Helper()
	res := postJSON(t, baseURL+"/v1/sessions", map[string]string{"user_id": "emp-7"})
	if res.StatusCode != http.StatusCreated {
		t.Fatalf("create status = %d, want %d", res.StatusCode, http.StatusCreated)
	}
	var created session.CreateResponse
	decodeBody(t, res, &created)
	if created.SessionID == "" || created.UserID != "emp-7" {
		t.Fatalf("unexpected create response: %+v", created)
	}
	return created.SessionID
}

func TestAskStateless(t *testing.T) {
	ts, _ := newTestServer(t, nil)

	res := postJSON(t, ts.URL+"/v1/ask", map[string]any{
		"query":   "What is casual leave?",
		"history": []map[string]string{{"role": "user", "content": "hi"}, {"role": "assistant", "content": "Hello"}},
	})
	if res.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want %d", res.StatusCode, http.StatusOK)
	}
	var got agent.Result
	decodeBody(t, res, &got)
	if got.Intent != intent.LeavePolicy {
		t.Fatalf("Intent = %q, want leave_policy", got.Intent)
	}
	if len(got.Sources) != 1 || got.Sources[0] != "leave_policy.pdf (Category: leave)" {
		t.Fatalf("Sources = %v", got.Sources)
	}
	if !strings.Contains(got.Answer, "12 days") {
		t.Fatalf("Answer = %q, want grounded answer", got.Answer)
	}
}

func TestAskRejectsBadInput(t *testing.T) {
	ts, _ := newTestServer(t, nil)
	tests := []struct {
		body any
		code string
	}{
		{map[string]any{"query": "   "}, "invalid_query"},
		{map[string]any{"query": "leave?", "history": []map[string]string{{"role": "system", "content": "x"}}}, "invalid_history"},
	}
	for _, tc := range tests {
		res := postJSON(t, ts.URL+"/v1/ask", tc.body)
		if res.StatusCode != http.StatusBadRequest {
			t.Fatalf("status = %d, want %d", res.StatusCode, http.StatusBadRequest)
		}
		var e errorResponse
		decodeBody(t, res, &e)
		if e.Code != tc.code {
			t.Fatalf("code = %q, want %q", e.Code, tc.code)
		}
	}
}

func TestSessionConversationFlow(t *testing.T) {
	ts, store := newTestServer(t, nil)
	id := createSession(t, ts.URL)

	for _, q := range []string{"Hiii", "What is casual leave?"} {
		res := postJSON(t, ts.URL+"/v1/sessions/"+id+"/messages", map[string]string{"query": q})
		if res.StatusCode != http.StatusOK {
			t.Fatalf("message %q status = %d", q, res.StatusCode)
		}
		res.Body.Close()
	}

	histRes, err := http.Get(ts.URL + "/v1/sessions/" + id + "/history")
	if err != nil {
		t.Fatalf("GET history error = %v", err)
	}
	var hist struct {
		SessionID string              `json:"session_id"`
		Turns     []memory.TurnRecord `json:"turns"`
	}
	decodeBody(t, histRes, &hist)
	if len(hist.Turns) != 4 {
		t.Fatalf("len(turns) = %d, want 4", len(hist.Turns))
	}
	if hist.Turns[0].Role != "user" || hist.Turns[0].Intent != string(intent.Chitchat) {
		t.Fatalf("first turn = %+v", hist.Turns[0])
	}
	if hist.Turns[3].Intent != string(intent.LeavePolicy) {
		t.Fatalf("last turn = %+v", hist.Turns[3])
	}
	if turns, _ := store.History(context.Background(), id, 0); len(turns) != 4 {
		t.Fatalf("store turns = %d, want 4", len(turns))
	}

	endRes := postJSON(t, ts.URL+"/v1/sessions/"+id+"/end", nil)
	if endRes.StatusCode != http.StatusOK {
		t.Fatalf("end status = %d, want %d", endRes.StatusCode, http.StatusOK)
	}
	endRes.Body.Close()

	after := postJSON(t, ts.URL+"/v1/sessions/"+id+"/messages", map[string]string{"query": "hi"})
	if after.StatusCode != http.StatusConflict {
		t.Fatalf("message after end status = %d, want %d", after.StatusCode, http.StatusConflict)
	}
	after.Body.Close()
}

func TestSessionNotFound(t *testing.T) {
	ts, _ := newTestServer(t, nil)
	res := postJSON(t, ts.URL+"/v1/sessions/missing/messages", map[string]string{"query": "hi"})
	if res.StatusCode != http.StatusNotFound {
		t.Fatalf("status = %d, want %d", res.StatusCode, http.StatusNotFound)
	}
	res.Body.Close()

	histRes, _ := http.Get(ts.URL + "/v1/sessions/missing/history")
	if histRes.StatusCode != http.StatusNotFound {
		t.Fatalf("history status = %d, want %d", histRes.StatusCode, http.StatusNotFound)
	}
	histRes.Body.Close()
}

func TestReadiness(t *testing.T) {
	ts, _ := newTestServer(t, func(context.Context) error { return errors.New("index is empty") })
	res, err := http.Get(ts.URL + "/readyz")
	if err != nil {
		t.Fatalf("GET /readyz error = %v", err)
	}
	if res.StatusCode != http.StatusServiceUnavailable {
		t.Fatalf("status = %d, want %d", res.StatusCode, http.StatusServiceUnavailable)
	}
	res.Body.Close()

	healthy, _ := newTestServer(t, nil)
	res, err = http.Get(healthy.URL + "/readyz")
	if err != nil {
		t.Fatalf("GET /readyz error = %v", err)
	}
	if res.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want %d", res.StatusCode, http.StatusOK)
	}
	res.Body.Close()
}

func TestPerfLatencyAfterTurn(t *testing.T) {
	ts, _ := newTestServer(t, nil)
	postJSON(t, ts.URL+"/v1/ask", map[string]any{"query": "What is casual leave?"}).Body.Close()

	res, err := http.Get(ts.URL + "/v1/perf/latency")
	if err != nil {
		t.Fatalf("GET /v1/perf/latency error = %v", err)
	}
	var snap observability.TurnStageSnapshot
	decodeBody(t, res, &snap)
	stages := map[string]bool{}
	for _, s := range snap.Stages {
		stages[s.Stage] = true
	}
	for _, want := range []string{observability.StageClassify, observability.StageRetrieve, observability.StageGenerate, observability.StageTurn} {
		if !stages[want] {
			t.Fatalf("stages = %v, missing %q", stages, want)
		}
	}
}

func TestPerfLatencyReset(t *testing.T) {
	ts, _ := newTestServer(t, nil)
	postJSON(t, ts.URL+"/v1/ask", map[string]any{"query": "What is casual leave?"}).Body.Close()

	res := postJSON(t, ts.URL+"/v1/perf/latency/reset", map[string]any{})
	res.Body.Close()
	if res.StatusCode != http.StatusNoContent {
		t.Fatalf("reset status = %d, want %d", res.StatusCode, http.StatusNoContent)
	}

	res, err := http.Get(ts.URL + "/v1/perf/latency")
	if err != nil {
		t.Fatalf("GET /v1/perf/latency error = %v", err)
	}
	var snap observability.TurnStageSnapshot
	decodeBody(t, res, &snap)
	if len(snap.Stages) != 0 {
		t.Fatalf("Stages after reset = %+v, want none", snap.Stages)
	}
}

func TestChatWebSocket(t *testing.T) {
	ts, _ := newTestServer(t, nil)
	id := createSession(t, ts.URL)

	wsURL := "ws" + strings.TrimPrefix(ts.URL, "http") + "/v1/chat/ws?session_id=" + id
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("Dial() error = %v", err)
	}
	defer conn.Close()
	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))

	if err := conn.WriteJSON(protocol.UserMessage{
		Type:      protocol.TypeUserMessage,
		SessionID: id,
		MessageID: "m1",
		Query:     "What is casual leave?",
	}); err != nil {
		t.Fatalf("WriteJSON() error = %v", err)
	}
	var answer protocol.AssistantAnswer
	if err := conn.ReadJSON(&answer); err != nil {
		t.Fatalf("ReadJSON() error = %v", err)
	}
	if answer.Type != protocol.TypeAssistantAnswer || answer.MessageID != "m1" || answer.Intent != string(intent.LeavePolicy) {
		t.Fatalf("answer = %+v", answer)
	}

	if err := conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"bogus"}`)); err != nil {
		t.Fatalf("WriteMessage() error = %v", err)
	}
	var errEvt protocol.ErrorEvent
	if err := conn.ReadJSON(&errEvt); err != nil {
		t.Fatalf("ReadJSON() error = %v", err)
	}
	if errEvt.Type != protocol.TypeErrorEvent || errEvt.Code != "invalid_client_message" {
		t.Fatalf("error event = %+v", errEvt)
	}
}

func TestChatWebSocketUnknownSession(t *testing.T) {
	ts, _ := newTestServer(t, nil)
	res, err := http.Get(ts.URL + "/v1/chat/ws?session_id=nope")
	if err != nil {
		t.Fatalf("GET ws error = %v", err)
	}
	if res.StatusCode != http.StatusNotFound {
		t.Fatalf("status = %d, want %d", res.StatusCode, http.StatusNotFound)
	}
	res.Body.Close()
}
