package stub

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/coder/websocket"
)

func newStubServer(t *testing.T, hasKey bool) *httptest.Server {
	t.Helper()
	s := NewServer()
	s.HasAPIKey = hasKey
	srv := httptest.NewServer(s.Router())
	t.Cleanup(srv.Close)
	return srv
}

func wsURL(srv *httptest.Server) string {
	return "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws/companion"
}

func dialStub(t *testing.T, srv *httptest.Server) *websocket.Conn {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	conn, _, err := websocket.Dial(ctx, wsURL(srv), nil)
	if err != nil {
		t.Fatalf("Dial stub failed: %v", err)
	}
	t.Cleanup(func() { _ = conn.Close(websocket.StatusNormalClosure, "test done") })
	return conn
}

func readStubFrame(t *testing.T, conn *websocket.Conn) map[string]any {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	_, data, err := conn.Read(ctx)
	if err != nil {
		t.Fatalf("Read frame failed: %v", err)
	}
	var frame map[string]any
	if err := json.Unmarshal(data, &frame); err != nil {
		t.Fatalf("Unmarshal frame %q: %v", data, err)
	}
	return frame
}

func writeStubFrame(t *testing.T, conn *websocket.Conn, v any) {
	t.Helper()
	data, err := json.Marshal(v)
	if err != nil {
		t.Fatalf("Marshal frame: %v", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := conn.Write(ctx, websocket.MessageText, data); err != nil {
		t.Fatalf("Write frame: %v", err)
	}
}

func TestStub_APIKeyStatus(t *testing.T) {
	tests := []struct {
		name   string
		hasKey bool
	}{
		{"with key", true},
		{"without key", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := newStubServer(t, tt.hasKey)

			resp, err := http.Get(srv.URL + "/auth/api-key/status")
			if err != nil {
				t.Fatalf("GET failed: %v", err)
			}
			defer func() { _ = resp.Body.Close() }()

			var body map[string]bool
			if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
				t.Fatalf("Decode failed: %v", err)
			}
			if body["has_api_key"] != tt.hasKey {
				t.Errorf("Expected has_api_key=%v, got %v", tt.hasKey, body["has_api_key"])
			}
		})
	}
}

func TestStub_CompanionHandshakeAndPing(t *testing.T) {
	srv := newStubServer(t, true)
	conn := dialStub(t, srv)

	connected := readStubFrame(t, conn)
	if connected["type"] != "connected" {
		t.Fatalf("Expected connected frame first, got %v", connected)
	}
	if session, _ := connected["session_id"].(string); !strings.HasPrefix(session, "stub-") {
		t.Errorf("Expected stub session id, got %v", connected["session_id"])
	}

	writeStubFrame(t, conn, map[string]string{"type": "ping"})
	if pong := readStubFrame(t, conn); pong["type"] != "pong" {
		t.Errorf("Expected pong, got %v", pong)
	}
}

func TestStub_ScriptedChatReply(t *testing.T) {
	srv := newStubServer(t, true)
	conn := dialStub(t, srv)
	readStubFrame(t, conn) // connected

	writeStubFrame(t, conn, map[string]string{"type": "chat_message", "content": "hello oracle"})

	if frame := readStubFrame(t, conn); frame["type"] != "thinking" {
		t.Fatalf("Expected thinking, got %v", frame)
	}

	var streamed strings.Builder
	for {
		frame := readStubFrame(t, conn)
		switch frame["type"] {
		case "text_delta":
			streamed.WriteString(frame["content"].(string))
		case "complete":
			if frame["full_response"] != streamed.String() {
				t.Errorf("full_response %q does not match streamed %q", frame["full_response"], streamed.String())
			}
			return
		default:
			t.Fatalf("Unexpected frame %v", frame)
		}
	}
}

func TestStub_TransitQuestionTriggersToolCall(t *testing.T) {
	srv := newStubServer(t, true)
	conn := dialStub(t, srv)
	readStubFrame(t, conn) // connected

	writeStubFrame(t, conn, map[string]string{"type": "chat_message", "content": "show my transits today"})
	readStubFrame(t, conn) // thinking

	call := readStubFrame(t, conn)
	if call["type"] != "tool_call" || call["name"] != "navigate" {
		t.Fatalf("Expected a navigate tool_call, got %v", call)
	}
	if call["execute_on"] != "frontend" {
		t.Errorf("Expected frontend execution, got %v", call["execute_on"])
	}
	if id, _ := call["id"].(string); id == "" {
		t.Error("Expected a tool call id")
	}
}
