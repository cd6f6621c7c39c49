package companion

import (
	"testing"
	"time"

	"github.com/selene-app/selene/internal/chart"
	"github.com/selene-app/selene/internal/domain"
	"github.com/selene-app/selene/internal/events"
)

func newTestDispatcher() (*Dispatcher, *chart.Store, *events.Bus, *Conversation) {
	state := chart.NewStore()
	bus := events.NewBus()
	conv := NewConversation()
	d := NewDispatcher(state, bus, conv)
	d.clearDelay = 10 * time.Millisecond
	return d, state, bus, conv
}

func dispatchCall(t *testing.T, d *Dispatcher, conv *Conversation, call domain.ToolCall) domain.ToolCall {
	t.Helper()
	if err := conv.AddToolCall(call); err != nil {
		t.Fatalf("AddToolCall failed: %v", err)
	}
	d.Dispatch(call)
	settled, ok := conv.ToolCall(call.ID)
	if !ok {
		t.Fatalf("Tool call %s disappeared", call.ID)
	}
	return settled
}

func TestDispatcher_Navigate(t *testing.T) {
	d, state, bus, conv := newTestDispatcher()

	var navigated []string
	bus.Subscribe(func(e events.Event) {
		if nav, ok := e.(events.Navigate); ok {
			navigated = append(navigated, nav.Page)
		}
	})

	settled := dispatchCall(t, d, conv, domain.ToolCall{
		ID:    "tc-nav",
		Name:  ToolNavigate,
		Input: map[string]any{"page": "transits"},
	})

	if settled.Status != domain.ToolCallCompleted {
		t.Errorf("Expected completed, got %s (%s)", settled.Status, settled.Result)
	}
	if state.Page() != "transits" {
		t.Errorf("Expected page transits, got %q", state.Page())
	}
	if len(navigated) != 1 || navigated[0] != "transits" {
		t.Errorf("Expected one Navigate{transits} event, got %v", navigated)
	}
}

func TestDispatcher_SetTransitDate(t *testing.T) {
	d, state, bus, conv := newTestDispatcher()

	var published []time.Time
	bus.Subscribe(func(e events.Event) {
		if set, ok := e.(events.SetTransitDate); ok {
			published = append(published, set.Date)
		}
	})

	settled := dispatchCall(t, d, conv, domain.ToolCall{
		ID:    "tc-date",
		Name:  ToolSetTransitDate,
		Input: map[string]any{"date": "2026-03-21"},
	})

	if settled.Status != domain.ToolCallCompleted {
		t.Fatalf("Expected completed, got %s (%s)", settled.Status, settled.Result)
	}
	want := time.Date(2026, 3, 21, 0, 0, 0, 0, time.UTC)
	if !state.TransitDate().Equal(want) {
		t.Errorf("Expected transit date %v, got %v", want, state.TransitDate())
	}
	if len(published) != 1 || !published[0].Equal(want) {
		t.Errorf("Expected one SetTransitDate event for %v, got %v", want, published)
	}
}

func TestDispatcher_ToggleLayer(t *testing.T) {
	d, state, _, conv := newTestDispatcher()

	settled := dispatchCall(t, d, conv, domain.ToolCall{
		ID:    "tc-layer",
		Name:  ToolToggleLayer,
		Input: map[string]any{"layer": "aspects"},
	})

	if settled.Status != domain.ToolCallCompleted {
		t.Fatalf("Expected completed, got %s", settled.Status)
	}
	if state.LayerEnabled("aspects") {
		t.Error("Expected aspects layer toggled off")
	}
}

func TestDispatcher_UnknownToolCompletes(t *testing.T) {
	d, _, _, conv := newTestDispatcher()

	settled := dispatchCall(t, d, conv, domain.ToolCall{
		ID:    "tc-future",
		Name:  "summon_asteroid_report",
		Input: map[string]any{"asteroid": "Chiron"},
	})

	if settled.Status != domain.ToolCallCompleted {
		t.Errorf("Unknown tool must settle completed, got %s", settled.Status)
	}
}

func TestDispatcher_BadInputFails(t *testing.T) {
	d, _, _, conv := newTestDispatcher()

	tests := []struct {
		name string
		call domain.ToolCall
	}{
		{"missing date", domain.ToolCall{ID: "tc-f1", Name: ToolSetTransitDate, Input: map[string]any{}}},
		{"non-string date", domain.ToolCall{ID: "tc-f2", Name: ToolSetTransitDate, Input: map[string]any{"date": 20260321}}},
		{"unparseable date", domain.ToolCall{ID: "tc-f3", Name: ToolSetTransitDate, Input: map[string]any{"date": "the vernal equinox"}}},
		{"missing page", domain.ToolCall{ID: "tc-f4", Name: ToolNavigate, Input: nil}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			settled := dispatchCall(t, d, conv, tt.call)
			if settled.Status != domain.ToolCallFailed {
				t.Errorf("Expected failed, got %s", settled.Status)
			}
			if settled.Result == "" {
				t.Error("Expected failure result to carry the error text")
			}
		})
	}
}

func TestDispatcher_CurrentActionClears(t *testing.T) {
	d, _, _, conv := newTestDispatcher()

	dispatchCall(t, d, conv, domain.ToolCall{
		ID:    "tc-act",
		Name:  ToolSelectElement,
		Input: map[string]any{"element": "Moon"},
	})

	if got := d.CurrentAction(); got == "" {
		t.Fatal("Expected a current action descriptor right after dispatch")
	}

	deadline := time.After(500 * time.Millisecond)
	for d.CurrentAction() != "" {
		select {
		case <-deadline:
			t.Fatal("Current action was never cleared")
		case <-time.After(5 * time.Millisecond):
		}
	}
}

func TestDispatcher_ReportCallbackSeesSettledCall(t *testing.T) {
	d, _, _, conv := newTestDispatcher()

	var reported []domain.ToolCall
	d.report = func(call domain.ToolCall) { reported = append(reported, call) }

	dispatchCall(t, d, conv, domain.ToolCall{
		ID:    "tc-rep",
		Name:  ToolRecalculate,
		Input: map[string]any{"chart_id": "chart-1"},
	})

	if len(reported) != 1 {
		t.Fatalf("Expected 1 report, got %d", len(reported))
	}
	if reported[0].Status != domain.ToolCallCompleted {
		t.Errorf("Expected reported status completed, got %s", reported[0].Status)
	}
}
