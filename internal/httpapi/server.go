package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"

	"github.com/ent0n29/hrdesk/internal/agent"
	"github.com/ent0n29/hrdesk/internal/config"
	"github.com/ent0n29/hrdesk/internal/llm"
	"github.com/ent0n29/hrdesk/internal/memory"
	"github.com/ent0n29/hrdesk/internal/observability"
	"github.com/ent0n29/hrdesk/internal/protocol"
	"github.com/ent0n29/hrdesk/internal/session"
)

// ReadinessCheck reports whether dependencies can serve questions.
type ReadinessCheck func(ctx context.Context) error

type Server struct {
	cfg      config.Config
	sessions *session.Manager
	agent    *agent.Agent
	store    memory.Store
	metrics  *observability.Metrics
	ready    ReadinessCheck
	logger   *slog.Logger
	upgrader websocket.Upgrader

	convMu        sync.Mutex
	conversations map[string]*agent.Conversation
}

func New(cfg config.Config, sessions *session.Manager, a *agent.Agent, store memory.Store, metrics *observability.Metrics, ready ReadinessCheck) *Server {
	s := &Server{
		cfg:           cfg,
		sessions:      sessions,
		agent:         a,
		store:         store,
		metrics:       metrics,
		ready:         ready,
		logger:        slog.Default(),
		conversations: make(map[string]*agent.Conversation),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			CheckOrigin: func(r *http.Request) bool {
				// Same-origin browsers only unless explicitly opened up.
				if cfg.AllowAnyOrigin {
					return true
				}
				origin := strings.TrimSpace(r.Header.Get("Origin"))
				if origin == "" {
					// Non-browser clients often omit Origin.
					return true
				}
				u, err := url.Parse(origin)
				if err != nil {
					return false
				}
				if u.Scheme != "http" && u.Scheme != "https" {
					return false
				}
				return strings.EqualFold(u.Host, r.Host)
			},
		},
	}
	if sessions != nil {
		sessions.SetExpireHook(func(sess *session.Session) {
			s.dropConversation(sess.ID)
			s.metrics.ObserveSessionEvent("expired", sessions.ActiveCount())
		})
	}
	return s
}

// SetLogger replaces the default logger.
func (s *Server) SetLogger(logger *slog.Logger) {
	if logger != nil {
		s.logger = logger
	}
}

func (s *Server) Router() http.Handler {
	r := chi.NewRouter()

	r.Get("/healthz", s.handleHealth)
	r.Get("/readyz", s.handleReady)
	r.Get("/metrics", func(w http.ResponseWriter, r *http.Request) {
		observability.MetricsHandler().ServeHTTP(w, r)
	})

	r.Post("/v1/ask", s.handleAsk)
	r.Post("/v1/sessions", s.handleCreateSession)
	r.Post("/v1/sessions/{id}/end", s.handleEndSession)
	r.Post("/v1/sessions/{id}/messages", s.handleSessionMessage)
	r.Get("/v1/sessions/{id}/history", s.handleSessionHistory)
	r.Get("/v1/chat/ws", s.handleChatWS)
	r.Get("/v1/perf/latency", s.handlePerfLatency)
	r.Post("/v1/perf/latency/reset", s.handlePerfLatencyReset)

	return r
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	respondJSON(w, http.StatusOK, map[string]any{
		"status":        "ok",
		"index_backend": s.cfg.IndexBackend,
		"llm_backend":   s.cfg.LLMBackend,
	})
}

func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	if s.agent == nil {
		respondError(w, http.StatusServiceUnavailable, "not_ready", "agent not configured")
		return
	}
	if s.ready != nil {
		if err := s.ready(r.Context()); err != nil {
			respondError(w, http.StatusServiceUnavailable, "not_ready", err.Error())
			return
		}
	}
	respondJSON(w, http.StatusOK, map[string]any{"status": "ready"})
}

type askRequest struct {
	Query   string        `json:"query"`
	History []llm.Message `json:"history"`
}

func (s *Server) handleAsk(w http.ResponseWriter, r *http.Request) {
	if s.agent == nil {
		respondError(w, http.StatusNotImplemented, "unavailable", "agent not configured")
		return
	}
	var req askRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}
	query, err := validateQuery(req.Query)
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid_query", err.Error())
		return
	}
	for _, m := range req.History {
		if m.Role != llm.RoleUser && m.Role != llm.RoleAssistant {
			respondError(w, http.StatusBadRequest, "invalid_history", "history roles must be user or assistant")
			return
		}
	}

	respondJSON(w, http.StatusOK, s.agent.Handle(r.Context(), query, req.History))
}

func (s *Server) handleCreateSession(w http.ResponseWriter, r *http.Request) {
	var req session.CreateRequest
	if err := decodeJSON(r, &req); err != nil && !errors.Is(err, errEmptyBody) {
		respondError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}
	if strings.TrimSpace(req.UserID) == "" {
		req.UserID = "anonymous"
	}

	sess := s.sessions.Create(req.UserID)
	s.metrics.ObserveSessionEvent("created", s.sessions.ActiveCount())

	respondJSON(w, http.StatusCreated, session.CreateResponse{
		SessionID:       sess.ID,
		UserID:          sess.UserID,
		Status:          sess.Status,
		StartedAt:       sess.StartedAt,
		LastActivityAt:  sess.LastActivityAt,
		InactivityTTLMS: s.sessions.InactivityTimeout().Milliseconds(),
	})
}

func (s *Server) handleEndSession(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if strings.TrimSpace(id) == "" {
		respondError(w, http.StatusBadRequest, "invalid_session_id", "missing session id")
		return
	}

	sess, err := s.sessions.End(id)
	if err != nil {
		respondError(w, http.StatusNotFound, "session_not_found", err.Error())
		return
	}
	s.dropConversation(id)
	s.metrics.ObserveSessionEvent("ended", s.sessions.ActiveCount())
	respondJSON(w, http.StatusOK, sess)
}

type messageRequest struct {
	Query string `json:"query"`
}

func (s *Server) handleSessionMessage(w http.ResponseWriter, r *http.Request) {
	if s.agent == nil {
		respondError(w, http.StatusNotImplemented, "unavailable", "agent not configured")
		return
	}
	id := chi.URLParam(r, "id")
	var req messageRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}
	query, err := validateQuery(req.Query)
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid_query", err.Error())
		return
	}

	res, err := s.ask(r.Context(), id, query)
	if err != nil {
		s.respondSessionError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, res)
}

func (s *Server) handleSessionHistory(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if _, err := s.sessions.Get(id); err != nil {
		respondError(w, http.StatusNotFound, "session_not_found", err.Error())
		return
	}

	var turns []memory.TurnRecord
	if s.store != nil {
		var err error
		turns, err = s.store.History(r.Context(), id, 0)
		if err != nil {
			respondError(w, http.StatusInternalServerError, "history_unavailable", err.Error())
			return
		}
	}
	if turns == nil {
		turns = []memory.TurnRecord{}
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"session_id": id,
		"turns":      turns,
	})
}

// ask runs one question against a session's conversation. Turns on the same
// session are serialized by the conversation.
func (s *Server) ask(ctx context.Context, sessionID, query string) (agent.Result, error) {
	sess, err := s.sessions.Get(sessionID)
	if err != nil {
		return agent.Result{}, err
	}
	if sess.Status != session.StatusActive {
		return agent.Result{}, session.ErrEnded
	}
	res := s.conversation(sessionID).Ask(ctx, query)
	if err := s.sessions.RecordTurn(sessionID, string(res.Intent)); err != nil {
		s.logger.Warn("record turn failed", "session_id", sessionID, "error", err)
	}
	return res, nil
}

func (s *Server) conversation(sessionID string) *agent.Conversation {
	s.convMu.Lock()
	defer s.convMu.Unlock()
	c, ok := s.conversations[sessionID]
	if !ok {
		c = agent.NewConversation(s.agent, s.store, sessionID)
		s.conversations[sessionID] = c
	}
	return c
}

func (s *Server) dropConversation(sessionID string) {
	s.convMu.Lock()
	defer s.convMu.Unlock()
	delete(s.conversations, sessionID)
}

func (s *Server) respondSessionError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, session.ErrNotFound):
		respondError(w, http.StatusNotFound, "session_not_found", err.Error())
	case errors.Is(err, session.ErrEnded):
		respondError(w, http.StatusConflict, "session_ended", err.Error())
	default:
		respondError(w, http.StatusInternalServerError, "internal", err.Error())
	}
}

func validateQuery(q string) (string, error) {
	q = strings.TrimSpace(q)
	if q == "" {
		return "", errors.New("query is required")
	}
	if len([]rune(q)) > protocol.MaxQueryLength {
		return "", errors.New("query is too long")
	}
	return q, nil
}

type errorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

var errEmptyBody = errors.New("empty body")

func decodeJSON(r *http.Request, out any) error {
	if r.Body == nil {
		return errEmptyBody
	}
	defer r.Body.Close()
	dec := json.NewDecoder(r.Body)
	if err := dec.Decode(out); err != nil {
		if strings.Contains(strings.ToLower(err.Error()), "eof") {
			return errEmptyBody
		}
		return err
	}
	return nil
}

func respondJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func respondError(w http.ResponseWriter, status int, code, message string) {
	respondJSON(w, status, errorResponse{Error: message, Code: code})
}
