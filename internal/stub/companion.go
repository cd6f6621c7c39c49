package stub

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"

	"github.com/coder/websocket"
	"github.com/google/uuid"
	"github.com/selene-app/selene/internal/protocol"
)

// cannedDeltas is the scripted reply streamed for every chat message.
var cannedDeltas = []string{
	"The stub oracle has consulted the ephemeris. ",
	"Your question touches the houses of habit and change; ",
	"the real service would say considerably more.",
}

// handleCompanion accepts the companion socket and answers frames with a
// scripted sequence.
func (s *Server) handleCompanion(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: []string{"*"},
	})
	if err != nil {
		slog.Error("Failed to accept companion socket", "error", err)
		return
	}
	defer func() {
		if closeErr := conn.Close(websocket.StatusNormalClosure, "session ended"); closeErr != nil {
			slog.Debug("Failed to close companion socket", "error", closeErr)
		}
	}()

	ctx := r.Context()
	sessionID := "stub-" + uuid.NewString()

	if err := writeJSON(ctx, conn, protocol.ConnectedFrame{Type: protocol.TypeConnected, SessionID: sessionID}); err != nil {
		slog.Debug("Failed to send connected frame", "error", err)
		return
	}
	slog.Info("Stub companion session started", "session_id", sessionID)

	for {
		_, data, err := conn.Read(ctx)
		if err != nil {
			if websocket.CloseStatus(err) != -1 {
				slog.Debug("Companion socket closed by client", "session_id", sessionID)
			} else {
				slog.Warn("Companion socket read error", "error", err, "session_id", sessionID)
			}
			return
		}

		var frame struct {
			Type    string `json:"type"`
			Content string `json:"content"`
		}
		if err := json.Unmarshal(data, &frame); err != nil {
			slog.Warn("Ignoring malformed client frame", "error", err)
			continue
		}

		switch frame.Type {
		case protocol.TypePing:
			if err := writeJSON(ctx, conn, protocol.PongFrame{Type: protocol.TypePong}); err != nil {
				slog.Debug("Failed to send pong", "error", err)
			}
		case protocol.TypeChatMessage:
			s.streamReply(ctx, conn, frame.Content)
		case protocol.TypeClearHistory:
			slog.Info("Stub history cleared", "session_id", sessionID)
		case protocol.TypeToolResult:
			slog.Debug("Tool result acknowledged", "session_id", sessionID)
		default:
			slog.Debug("Ignoring unrecognized client frame", "type", frame.Type)
		}
	}
}

// streamReply plays the scripted response for one chat message. Messages
// mentioning transits also exercise the frontend tool path.
func (s *Server) streamReply(ctx context.Context, conn *websocket.Conn, content string) {
	send := func(v any) bool {
		if err := writeJSON(ctx, conn, v); err != nil {
			slog.Debug("Failed to stream reply frame", "error", err)
			return false
		}
		return true
	}

	if !send(protocol.ThinkingFrame{Type: protocol.TypeThinking, Message: "consulting the ephemeris"}) {
		return
	}

	if strings.Contains(strings.ToLower(content), "transit") {
		send(protocol.ToolCallFrame{
			Type:      protocol.TypeToolCall,
			ID:        uuid.NewString(),
			Name:      "navigate",
			Input:     map[string]any{"page": "transits"},
			ExecuteOn: "frontend",
		})
	}

	var full strings.Builder
	for _, delta := range cannedDeltas {
		full.WriteString(delta)
		if !send(protocol.TextDeltaFrame{Type: protocol.TypeTextDelta, Content: delta}) {
			return
		}
	}

	send(protocol.CompleteFrame{Type: protocol.TypeComplete, FullResponse: full.String()})
}

func writeJSON(ctx context.Context, conn *websocket.Conn, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return conn.Write(ctx, websocket.MessageText, data)
}
