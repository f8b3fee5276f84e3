package httpapi

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	"github.com/ent0n29/hrdesk/internal/protocol"
	"github.com/ent0n29/hrdesk/internal/session"
)

const (
	wsReadTimeout  = 10 * time.Minute
	wsWriteTimeout = 10 * time.Second
)

func (s *Server) handleChatWS(w http.ResponseWriter, r *http.Request) {
	sessionID := strings.TrimSpace(r.URL.Query().Get("session_id"))
	if sessionID == "" {
		respondError(w, http.StatusBadRequest, "missing_session_id", "query parameter session_id is required")
		return
	}
	if s.agent == nil {
		respondError(w, http.StatusNotImplemented, "unavailable", "agent not configured")
		return
	}
	sess, err := s.sessions.Get(sessionID)
	if err != nil {
		respondError(w, http.StatusNotFound, "session_not_found", err.Error())
		return
	}
	if sess.Status != session.StatusActive {
		respondError(w, http.StatusConflict, "session_ended", session.ErrEnded.Error())
		return
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer conn.Close()

	s.metrics.ObserveSessionEvent("ws_connected", s.sessions.ActiveCount())

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	inbound := make(chan any, 16)
	outbound := make(chan any, 16)
	runDone := make(chan struct{})

	go func() {
		defer close(runDone)
		defer close(outbound)
		s.runChat(ctx, sessionID, inbound, outbound)
	}()

	writerDone := make(chan struct{})
	go func() {
		defer close(writerDone)
		for msg := range outbound {
			_ = conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
			if err := conn.WriteJSON(msg); err != nil {
				cancel()
				// Keep draining so runChat never blocks on a dead socket.
				continue
			}
			if t, ok := messageTypeOf(msg); ok {
				s.metrics.ObserveWSMessage("outbound", string(t))
			}
		}
	}()

	conn.SetReadLimit(64 << 10)
	_ = conn.SetReadDeadline(time.Now().Add(wsReadTimeout))
	conn.SetPongHandler(func(string) error {
		_ = conn.SetReadDeadline(time.Now().Add(wsReadTimeout))
		return nil
	})

readLoop:
	for {
		msgType, data, err := conn.ReadMessage()
		if err != nil {
			break
		}
		_ = conn.SetReadDeadline(time.Now().Add(wsReadTimeout))
		if msgType != websocket.TextMessage {
			continue
		}
		parsed, err := protocol.ParseClientMessage(data)
		if err != nil {
			parsed = protocol.ErrorEvent{
				Type:      protocol.TypeErrorEvent,
				SessionID: sessionID,
				Code:      "invalid_client_message",
				Source:    "gateway",
				Retryable: false,
				Detail:    err.Error(),
			}
		} else if t, ok := messageTypeOf(parsed); ok {
			s.metrics.ObserveWSMessage("inbound", string(t))
		}
		select {
		case <-ctx.Done():
			break readLoop
		case inbound <- parsed:
		}
	}

	cancel()
	close(inbound)
	<-runDone
	<-writerDone
	s.metrics.ObserveSessionEvent("ws_disconnected", s.sessions.ActiveCount())
}

// runChat answers user messages in arrival order until inbound closes or an
// end control arrives.
func (s *Server) runChat(ctx context.Context, sessionID string, inbound <-chan any, outbound chan<- any) {
	for msg := range inbound {
		switch m := msg.(type) {
		case protocol.ErrorEvent:
			outbound <- m
		case protocol.UserMessage:
			if m.SessionID != sessionID {
				outbound <- errorEvent(sessionID, "session_mismatch", "message session_id does not match connection")
				continue
			}
			started := time.Now()
			res, err := s.ask(ctx, sessionID, m.Query)
			if err != nil {
				code := "internal"
				if errors.Is(err, session.ErrEnded) || errors.Is(err, session.ErrNotFound) {
					code = "session_ended"
				}
				outbound <- errorEvent(sessionID, code, err.Error())
				continue
			}
			outbound <- protocol.AssistantAnswer{
				Type:      protocol.TypeAssistantAnswer,
				SessionID: sessionID,
				MessageID: m.MessageID,
				Intent:    string(res.Intent),
				Answer:    res.Answer,
				Sources:   res.Sources,
				LatencyMS: time.Since(started).Milliseconds(),
			}
		case protocol.ClientControl:
			switch m.Action {
			case "end":
				if _, err := s.sessions.End(sessionID); err == nil {
					s.dropConversation(sessionID)
					s.metrics.ObserveSessionEvent("ended", s.sessions.ActiveCount())
				}
				outbound <- protocol.SystemEvent{Type: protocol.TypeSystemEvent, SessionID: sessionID, Code: "session_ended"}
			case "ping":
				if err := s.sessions.Touch(sessionID); err != nil {
					outbound <- errorEvent(sessionID, "session_ended", err.Error())
					continue
				}
				outbound <- protocol.SystemEvent{Type: protocol.TypeSystemEvent, SessionID: sessionID, Code: "pong"}
			default:
				outbound <- errorEvent(sessionID, "unsupported_action", "unsupported control action "+m.Action)
			}
		}
	}
}

func errorEvent(sessionID, code, detail string) protocol.ErrorEvent {
	return protocol.ErrorEvent{
		Type:      protocol.TypeErrorEvent,
		SessionID: sessionID,
		Code:      code,
		Source:    "agent",
		Detail:    detail,
	}
}

func messageTypeOf(v any) (protocol.MessageType, bool) {
	switch m := v.(type) {
	case protocol.UserMessage:
		return m.Type, true
	case protocol.ClientControl:
		return m.Type, true
	case protocol.AssistantAnswer:
		return m.Type, true
	case protocol.SystemEvent:
		return m.Type, true
	case protocol.ErrorEvent:
		return m.Type, true
	default:
		return "", false
	}
}
