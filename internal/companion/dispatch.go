package companion

import (
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/selene-app/selene/internal/chart"
	"github.com/selene-app/selene/internal/domain"
	"github.com/selene-app/selene/internal/events"
)

// Tool names the backend may ask the client to execute.
const (
	ToolNavigate       = "navigate"
	ToolSelectElement  = "select_chart_element"
	ToolToggleLayer    = "toggle_display_layer"
	ToolSetTransitDate = "set_transit_date"
	ToolRecalculate    = "recalculate_chart"
)

const defaultActionClearDelay = 500 * time.Millisecond

// transit date inputs accepted from the backend, most specific first
var transitDateLayouts = []string{time.RFC3339, "2006-01-02"}

// Dispatcher executes frontend tool calls: exactly one local mutation per
// call, then a one-way pending -> completed/failed transition on the record.
type Dispatcher struct {
	state *chart.Store
	bus   *events.Bus
	conv  *Conversation

	// report, when set, sends the settled status back over the socket.
	report func(call domain.ToolCall)

	clearDelay time.Duration

	mu      sync.RWMutex
	current string
}

// NewDispatcher wires a dispatcher to its sibling state, the event bus, and
// the conversation holding the tool-call records.
func NewDispatcher(state *chart.Store, bus *events.Bus, conv *Conversation) *Dispatcher {
	return &Dispatcher{
		state:      state,
		bus:        bus,
		conv:       conv,
		clearDelay: defaultActionClearDelay,
	}
}

// CurrentAction returns the transient descriptor of the action just
// performed, for UI feedback. Cleared shortly after each dispatch.
func (d *Dispatcher) CurrentAction() string {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.current
}

func (d *Dispatcher) setCurrentAction(desc string) {
	d.mu.Lock()
	d.current = desc
	d.mu.Unlock()

	time.AfterFunc(d.clearDelay, func() {
		d.mu.Lock()
		if d.current == desc {
			d.current = ""
		}
		d.mu.Unlock()
	})
}

// Dispatch performs the tool call and settles its record. Errors and panics
// in the underlying action mark the call failed; they never propagate.
func (d *Dispatcher) Dispatch(call domain.ToolCall) {
	status := domain.ToolCallCompleted
	result, err := d.run(call)
	if err != nil {
		slog.Error("Tool call failed", "id", call.ID, "tool", call.Name, "error", err)
		status = domain.ToolCallFailed
		result = err.Error()
	}

	if settleErr := d.conv.SettleToolCall(call.ID, status, result); settleErr != nil {
		slog.Warn("Could not settle tool call", "id", call.ID, "error", settleErr)
		return
	}

	d.setCurrentAction(describeAction(call))

	if d.report != nil {
		call.Status = status
		call.Result = result
		d.report(call)
	}
}

// run performs the single mutation for the call. Unknown tool names are
// logged and treated as success so that newer backend tools never surface as
// failures to the backend.
func (d *Dispatcher) run(call domain.ToolCall) (result string, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("tool %s panicked: %v", call.Name, r)
		}
	}()

	switch call.Name {
	case ToolNavigate:
		page, err := stringInput(call.Input, "page")
		if err != nil {
			return "", err
		}
		d.state.SetPage(page)
		d.bus.Publish(events.Navigate{Page: page})
		return "navigated to " + page, nil

	case ToolSelectElement:
		element, err := stringInput(call.Input, "element")
		if err != nil {
			return "", err
		}
		d.state.SelectElement(element)
		return "selected " + element, nil

	case ToolToggleLayer:
		layer, err := stringInput(call.Input, "layer")
		if err != nil {
			return "", err
		}
		if d.state.ToggleLayer(layer) {
			return "enabled layer " + layer, nil
		}
		return "disabled layer " + layer, nil

	case ToolSetTransitDate:
		raw, err := stringInput(call.Input, "date")
		if err != nil {
			return "", err
		}
		date, err := parseTransitDate(raw)
		if err != nil {
			return "", err
		}
		d.state.SetTransitDate(date)
		d.bus.Publish(events.SetTransitDate{Date: date})
		return "transit date set to " + date.Format("2006-01-02"), nil

	case ToolRecalculate:
		chartID, _ := optionalStringInput(call.Input, "chart_id")
		d.bus.Publish(events.RecalculateChart{ChartID: chartID})
		return "chart recalculation requested", nil

	default:
		slog.Warn("Unknown tool requested", "tool", call.Name, "id", call.ID)
		return "unknown tool " + call.Name, nil
	}
}

func describeAction(call domain.ToolCall) string {
	switch call.Name {
	case ToolNavigate:
		page, _ := optionalStringInput(call.Input, "page")
		return "opening " + page
	case ToolSelectElement:
		element, _ := optionalStringInput(call.Input, "element")
		return "highlighting " + element
	case ToolToggleLayer:
		layer, _ := optionalStringInput(call.Input, "layer")
		return "toggling " + layer
	case ToolSetTransitDate:
		return "moving the transit view"
	case ToolRecalculate:
		return "recalculating the chart"
	default:
		return call.Name
	}
}

func stringInput(input map[string]any, key string) (string, error) {
	value, err := optionalStringInput(input, key)
	if err != nil {
		return "", err
	}
	if value == "" {
		return "", fmt.Errorf("tool input %q is missing", key)
	}
	return value, nil
}

func optionalStringInput(input map[string]any, key string) (string, error) {
	raw, ok := input[key]
	if !ok {
		return "", nil
	}
	value, ok := raw.(string)
	if !ok {
		return "", fmt.Errorf("tool input %q is not a string", key)
	}
	return value, nil
}

func parseTransitDate(raw string) (time.Time, error) {
	for _, layout := range transitDateLayouts {
		if date, err := time.Parse(layout, raw); err == nil {
			return date, nil
		}
	}
	return time.Time{}, fmt.Errorf("unparseable transit date %q", raw)
}
