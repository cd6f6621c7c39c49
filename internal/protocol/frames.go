// Package protocol defines the JSON frame format of the companion channel.
// One JSON object per frame, discriminated by the "type" field.
package protocol

import (
	"encoding/json"
	"fmt"

	"github.com/selene-app/selene/internal/domain"
)

// Incoming frame types.
const (
	TypeConnected  = "connected"
	TypeThinking   = "thinking"
	TypeTextDelta  = "text_delta"
	TypeToolCall   = "tool_call"
	TypeToolResult = "tool_result"
	TypeComplete   = "complete"
	TypeError      = "error"
	TypeInsight    = "insight"
	TypePong       = "pong"
)

// Outgoing frame types.
const (
	TypeChatMessage  = "chat_message"
	TypeClearHistory = "clear_history"
	TypePing         = "ping"
)

// ConnectedFrame acknowledges a new connection and assigns the session id.
type ConnectedFrame struct {
	Type      string `json:"type"`
	SessionID string `json:"session_id"`
}

// ThinkingFrame is an advisory indicator update while the backend works.
type ThinkingFrame struct {
	Type    string `json:"type"`
	Message string `json:"message,omitempty"`
}

// TextDeltaFrame carries one chunk of a streaming assistant response.
type TextDeltaFrame struct {
	Type    string `json:"type"`
	Content string `json:"content"`
}

// ToolCallFrame instructs the client about a tool invocation.
type ToolCallFrame struct {
	Type      string           `json:"type"`
	ID        string           `json:"id"`
	Name      string           `json:"name"`
	Input     map[string]any   `json:"input,omitempty"`
	ExecuteOn domain.ExecuteOn `json:"execute_on"`
}

// ToolResultFrame carries a tool outcome in either direction: the backend
// reports its own tool results with it, and the client echoes settled
// frontend calls back through the same shape.
type ToolResultFrame struct {
	Type   string                `json:"type"`
	ID     string                `json:"id"`
	Name   string                `json:"name,omitempty"`
	Status domain.ToolCallStatus `json:"status,omitempty"`
	Result string                `json:"result,omitempty"`
}

// CompleteFrame signals the end of a streamed response.
type CompleteFrame struct {
	Type         string   `json:"type"`
	FullResponse string   `json:"full_response,omitempty"`
	ToolCalls    []string `json:"tool_calls,omitempty"`
}

// ErrorFrame reports a backend-side failure for the current exchange.
type ErrorFrame struct {
	Type  string `json:"type"`
	Error string `json:"error"`
}

// InsightFrame is a proactive observation pushed by the backend.
type InsightFrame struct {
	Type    string `json:"type"`
	Message string `json:"message"`
	Trigger string `json:"trigger,omitempty"`
}

// PongFrame acknowledges a heartbeat ping.
type PongFrame struct {
	Type string `json:"type"`
}

// UnknownFrame is returned for frames whose type is not recognized. The
// caller logs and ignores it.
type UnknownFrame struct {
	Type string
}

// ChatMessageFrame is an outgoing user message together with the application
// context snapshot assembled at send time.
type ChatMessageFrame struct {
	Type         string              `json:"type"`
	Content      string              `json:"content"`
	SessionID    string              `json:"session_id,omitempty"`
	AppContext   domain.AppContext   `json:"app_context"`
	ChartContext domain.ChartContext `json:"chart_context"`
	Preferences  domain.Preferences  `json:"user_preferences"`
}

// ClearHistoryFrame asks the backend to reset server-side conversation state.
type ClearHistoryFrame struct {
	Type      string `json:"type"`
	SessionID string `json:"session_id,omitempty"`
}

// PingFrame is the heartbeat keepalive.
type PingFrame struct {
	Type string `json:"type"`
}

// NewChatMessage builds an outgoing chat_message frame.
func NewChatMessage(content, sessionID string, app domain.AppContext, chart domain.ChartContext, prefs domain.Preferences) ChatMessageFrame {
	return ChatMessageFrame{
		Type:         TypeChatMessage,
		Content:      content,
		SessionID:    sessionID,
		AppContext:   app,
		ChartContext: chart,
		Preferences:  prefs,
	}
}

// NewClearHistory builds an outgoing clear_history frame.
func NewClearHistory(sessionID string) ClearHistoryFrame {
	return ClearHistoryFrame{Type: TypeClearHistory, SessionID: sessionID}
}

// NewPing builds an outgoing heartbeat frame.
func NewPing() PingFrame {
	return PingFrame{Type: TypePing}
}

// envelope peeks at the discriminant before the payload is decoded.
type envelope struct {
	Type string `json:"type"`
}

// Decode classifies an inbound frame by its type field and unmarshals it
// into the matching frame struct. Unrecognized types decode to *UnknownFrame
// with no error; malformed payloads return an error and must be discarded by
// the caller without affecting the connection.
func Decode(data []byte) (any, error) {
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("decode frame envelope: %w", err)
	}

	var frame any
	switch env.Type {
	case TypeConnected:
		frame = &ConnectedFrame{}
	case TypeThinking:
		frame = &ThinkingFrame{}
	case TypeTextDelta:
		frame = &TextDeltaFrame{}
	case TypeToolCall:
		frame = &ToolCallFrame{}
	case TypeToolResult:
		frame = &ToolResultFrame{}
	case TypeComplete:
		frame = &CompleteFrame{}
	case TypeError:
		frame = &ErrorFrame{}
	case TypeInsight:
		frame = &InsightFrame{}
	case TypePong:
		frame = &PongFrame{}
	default:
		return &UnknownFrame{Type: env.Type}, nil
	}

	if err := json.Unmarshal(data, frame); err != nil {
		return nil, fmt.Errorf("decode %s frame: %w", env.Type, err)
	}
	return frame, nil
}
