package companion

import (
	"errors"
	"fmt"
	"sync"

	"github.com/selene-app/selene/internal/domain"
)

var (
	errToolCallExists   = errors.New("tool call already recorded")
	errToolCallNotFound = errors.New("tool call not found")
	errToolCallSettled  = errors.New("tool call already settled")
)

// Conversation holds the ordered message log, generation flag, avatar mood,
// tool-call records, and pending insights. Callers are the socket read loop,
// timers, and the UI goroutine, so every mutation takes the lock.
type Conversation struct {
	mu sync.RWMutex

	messages   []domain.Message
	generating bool
	mood       domain.Mood
	status     Status
	order      []string
	toolCalls  map[string]*domain.ToolCall
	insights   []domain.Insight

	watchers []func()
}

// NewConversation creates an empty conversation.
func NewConversation() *Conversation {
	return &Conversation{
		mood:      domain.MoodIdle,
		status:    StatusDisconnected,
		toolCalls: make(map[string]*domain.ToolCall),
	}
}

// setStatus records the connection status. Only the Client calls this;
// status transitions are owned by the connection manager.
func (c *Conversation) setStatus(status Status) {
	c.mu.Lock()
	c.status = status
	c.mu.Unlock()
	c.notify()
}

// Status returns the last recorded connection status.
func (c *Conversation) Status() Status {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.status
}

// Watch registers a callback invoked after every mutation, outside the lock.
func (c *Conversation) Watch(fn func()) {
	c.mu.Lock()
	c.watchers = append(c.watchers, fn)
	c.mu.Unlock()
}

func (c *Conversation) notify() {
	c.mu.RLock()
	watchers := make([]func(), len(c.watchers))
	copy(watchers, c.watchers)
	c.mu.RUnlock()
	for _, fn := range watchers {
		fn()
	}
}

// Append adds a message to the log.
func (c *Conversation) Append(role, content string) {
	c.mu.Lock()
	c.messages = append(c.messages, domain.Message{Role: role, Content: content})
	c.mu.Unlock()
	c.notify()
}

// AppendToLast appends streamed content to the open streaming slot: the
// trailing assistant message of an in-flight generation. Deltas arrive in
// emission order on the single socket stream, so appending in call order
// reconstructs the full response. A delta arriving when no generation is in
// flight, or when the trailing message is not the assistant slot, is a stray
// and is dropped.
func (c *Conversation) AppendToLast(content string) {
	c.mu.Lock()
	n := len(c.messages)
	if n == 0 || !c.generating || c.messages[n-1].Role != domain.RoleAssistant {
		c.mu.Unlock()
		return
	}
	c.messages[n-1].Content += content
	c.mu.Unlock()
	c.notify()
}

// Messages returns a copy of the message log.
func (c *Conversation) Messages() []domain.Message {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]domain.Message, len(c.messages))
	copy(out, c.messages)
	return out
}

// Clear empties the message log, tool calls, and insights.
func (c *Conversation) Clear() {
	c.mu.Lock()
	c.messages = nil
	c.order = nil
	c.toolCalls = make(map[string]*domain.ToolCall)
	c.insights = nil
	c.generating = false
	c.mood = domain.MoodIdle
	c.mu.Unlock()
	c.notify()
}

// SetGenerating flips the generation flag.
func (c *Conversation) SetGenerating(generating bool) {
	c.mu.Lock()
	c.generating = generating
	c.mu.Unlock()
	c.notify()
}

// Generating reports whether a response is currently streaming.
func (c *Conversation) Generating() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.generating
}

// SetMood updates the avatar mood indicator.
func (c *Conversation) SetMood(mood domain.Mood) {
	c.mu.Lock()
	c.mood = mood
	c.mu.Unlock()
	c.notify()
}

// Mood returns the avatar mood indicator.
func (c *Conversation) Mood() domain.Mood {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.mood
}

// AddToolCall records a new pending tool call.
func (c *Conversation) AddToolCall(call domain.ToolCall) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, exists := c.toolCalls[call.ID]; exists {
		return fmt.Errorf("%w: %s", errToolCallExists, call.ID)
	}
	call.Status = domain.ToolCallPending
	c.toolCalls[call.ID] = &call
	c.order = append(c.order, call.ID)
	return nil
}

// SettleToolCall moves a pending call to completed or failed. The transition
// happens exactly once; a second settle attempt is rejected.
func (c *Conversation) SettleToolCall(id string, status domain.ToolCallStatus, result string) error {
	if status != domain.ToolCallCompleted && status != domain.ToolCallFailed {
		return fmt.Errorf("invalid settle status %q for tool call %s", status, id)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	call, ok := c.toolCalls[id]
	if !ok {
		return fmt.Errorf("%w: %s", errToolCallNotFound, id)
	}
	if call.Status != domain.ToolCallPending {
		return fmt.Errorf("%w: %s is %s", errToolCallSettled, id, call.Status)
	}
	call.Status = status
	call.Result = result
	return nil
}

// ToolCall returns a copy of the record with the given id.
func (c *Conversation) ToolCall(id string) (domain.ToolCall, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	call, ok := c.toolCalls[id]
	if !ok {
		return domain.ToolCall{}, false
	}
	return *call, true
}

// ToolCalls returns copies of all records in arrival order.
func (c *Conversation) ToolCalls() []domain.ToolCall {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]domain.ToolCall, 0, len(c.order))
	for _, id := range c.order {
		if call, ok := c.toolCalls[id]; ok {
			out = append(out, *call)
		}
	}
	return out
}

// AddInsight appends a pending insight.
func (c *Conversation) AddInsight(insight domain.Insight) {
	c.mu.Lock()
	c.insights = append(c.insights, insight)
	c.mu.Unlock()
	c.notify()
}

// Insights returns a copy of the pending insights.
func (c *Conversation) Insights() []domain.Insight {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]domain.Insight, len(c.insights))
	copy(out, c.insights)
	return out
}
