package protocol

import (
	"encoding/json"
	"testing"

	"github.com/selene-app/selene/internal/domain"
)

func TestDecode_Connected(t *testing.T) {
	frame, err := Decode([]byte(`{"type":"connected","session_id":"sess-42"}`))
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}

	connected, ok := frame.(*ConnectedFrame)
	if !ok {
		t.Fatalf("Expected *ConnectedFrame, got %T", frame)
	}
	if connected.SessionID != "sess-42" {
		t.Errorf("Expected session id sess-42, got %q", connected.SessionID)
	}
}

func TestDecode_ToolCall(t *testing.T) {
	raw := `{"type":"tool_call","id":"tc-1","name":"set_transit_date","input":{"date":"2026-03-21"},"execute_on":"frontend"}`
	frame, err := Decode([]byte(raw))
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}

	call, ok := frame.(*ToolCallFrame)
	if !ok {
		t.Fatalf("Expected *ToolCallFrame, got %T", frame)
	}
	if call.ID != "tc-1" || call.Name != "set_transit_date" {
		t.Errorf("Unexpected tool call: %+v", call)
	}
	if call.ExecuteOn != domain.ExecuteFrontend {
		t.Errorf("Expected execute_on frontend, got %q", call.ExecuteOn)
	}
	if call.Input["date"] != "2026-03-21" {
		t.Errorf("Expected input date 2026-03-21, got %v", call.Input["date"])
	}
}

func TestDecode_FrameKinds(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want any
	}{
		{"text delta", `{"type":"text_delta","content":"Your Moon"}`, &TextDeltaFrame{}},
		{"thinking", `{"type":"thinking","message":"casting"}`, &ThinkingFrame{}},
		{"tool result", `{"type":"tool_result","id":"tc-2","result":"ok"}`, &ToolResultFrame{}},
		{"complete", `{"type":"complete","full_response":"done"}`, &CompleteFrame{}},
		{"error", `{"type":"error","error":"model overloaded"}`, &ErrorFrame{}},
		{"insight", `{"type":"insight","message":"Mercury stations direct today","trigger":"transit"}`, &InsightFrame{}},
		{"pong", `{"type":"pong"}`, &PongFrame{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			frame, err := Decode([]byte(tt.raw))
			if err != nil {
				t.Fatalf("Decode failed: %v", err)
			}
			if gotType, wantType := typeName(frame), typeName(tt.want); gotType != wantType {
				t.Errorf("Expected %s, got %s", wantType, gotType)
			}
		})
	}
}

func typeName(v any) string {
	switch v.(type) {
	case *TextDeltaFrame:
		return "text_delta"
	case *ThinkingFrame:
		return "thinking"
	case *ToolResultFrame:
		return "tool_result"
	case *CompleteFrame:
		return "complete"
	case *ErrorFrame:
		return "error"
	case *InsightFrame:
		return "insight"
	case *PongFrame:
		return "pong"
	default:
		return "unknown"
	}
}

func TestDecode_UnknownType(t *testing.T) {
	frame, err := Decode([]byte(`{"type":"aurora_forecast","lat":64.8}`))
	if err != nil {
		t.Fatalf("Unknown types must not error: %v", err)
	}

	unknown, ok := frame.(*UnknownFrame)
	if !ok {
		t.Fatalf("Expected *UnknownFrame, got %T", frame)
	}
	if unknown.Type != "aurora_forecast" {
		t.Errorf("Expected type aurora_forecast, got %q", unknown.Type)
	}
}

func TestDecode_Malformed(t *testing.T) {
	if _, err := Decode([]byte(`not json at all`)); err == nil {
		t.Error("Expected error for malformed frame")
	}
	if _, err := Decode([]byte(`{"type":"text_delta","content":7}`)); err == nil {
		t.Error("Expected error for payload with wrong field type")
	}
}

func TestNewChatMessage_WireShape(t *testing.T) {
	frame := NewChatMessage("what does my chart say", "sess-1",
		domain.AppContext{Page: "natal", ActiveChartID: "chart-9"},
		domain.ChartContext{ChartID: "chart-9", Zodiac: domain.ZodiacTropical},
		domain.Preferences{Paradigms: []string{"hellenistic"}, SynthesisDepth: "deep"},
	)

	data, err := json.Marshal(frame)
	if err != nil {
		t.Fatalf("Marshal failed: %v", err)
	}

	var wire map[string]any
	if err := json.Unmarshal(data, &wire); err != nil {
		t.Fatalf("Unmarshal failed: %v", err)
	}
	if wire["type"] != TypeChatMessage {
		t.Errorf("Expected type chat_message, got %v", wire["type"])
	}
	for _, key := range []string{"content", "session_id", "app_context", "chart_context", "user_preferences"} {
		if _, ok := wire[key]; !ok {
			t.Errorf("Expected wire field %q to be present", key)
		}
	}
}
