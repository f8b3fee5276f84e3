package protocol

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// MessageType identifies websocket payload variants.
type MessageType string

const (
	TypeUserMessage     MessageType = "user_message"
	TypeClientControl   MessageType = "client_control"
	TypeAssistantAnswer MessageType = "assistant_answer"
	TypeSystemEvent     MessageType = "system_event"
	TypeErrorEvent      MessageType = "error_event"
)

// MaxQueryLength bounds a single question in characters.
const MaxQueryLength = 4000

var ErrUnsupportedType = errors.New("unsupported message type")

type Envelope struct {
	Type MessageType `json:"type"`
}

// UserMessage is one question typed by the employee.
type UserMessage struct {
	Type      MessageType `json:"type"`
	SessionID string      `json:"session_id"`
	MessageID string      `json:"message_id,omitempty"`
	Query     string      `json:"query"`
}

// ClientControl carries out-of-band actions such as "end" or "ping".
type ClientControl struct {
	Type      MessageType `json:"type"`
	SessionID string      `json:"session_id"`
	Action    string      `json:"action"`
}

// AssistantAnswer is the full reply to one UserMessage.
type AssistantAnswer struct {
	Type      MessageType `json:"type"`
	SessionID string      `json:"session_id"`
	MessageID string      `json:"message_id,omitempty"`
	Intent    string      `json:"intent"`
	Answer    string      `json:"answer"`
	Sources   []string    `json:"sources"`
	LatencyMS int64       `json:"latency_ms"`
}

type SystemEvent struct {
	Type      MessageType `json:"type"`
	SessionID string      `json:"session_id"`
	Code      string      `json:"code"`
	Detail    string      `json:"detail,omitempty"`
}

type ErrorEvent struct {
	Type      MessageType `json:"type"`
	SessionID string      `json:"session_id"`
	Code      string      `json:"code"`
	Source    string      `json:"source"`
	Retryable bool        `json:"retryable"`
	Detail    string      `json:"detail"`
}

func ParseClientMessage(raw []byte) (any, error) {
	var env Envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, fmt.Errorf("invalid envelope: %w", err)
	}

	switch env.Type {
	case TypeUserMessage:
		var msg UserMessage
		if err := json.Unmarshal(raw, &msg); err != nil {
			return nil, err
		}
		msg.Query = strings.TrimSpace(msg.Query)
		if msg.SessionID == "" || msg.Query == "" {
			return nil, errors.New("invalid user_message")
		}
		if len([]rune(msg.Query)) > MaxQueryLength {
			return nil, fmt.Errorf("invalid user_message: query longer than %d characters", MaxQueryLength)
		}
		return msg, nil
	case TypeClientControl:
		var msg ClientControl
		if err := json.Unmarshal(raw, &msg); err != nil {
			return nil, err
		}
		if msg.SessionID == "" || msg.Action == "" {
			return nil, errors.New("invalid client_control")
		}
		return msg, nil
	default:
		return nil, ErrUnsupportedType
	}
}
