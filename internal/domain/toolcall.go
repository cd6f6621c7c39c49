package domain

// ToolCallStatus tracks the lifecycle of a tool call. A call is created
// pending and moves to exactly one of completed or failed, exactly once.
type ToolCallStatus string

const (
	ToolCallPending   ToolCallStatus = "pending"
	ToolCallCompleted ToolCallStatus = "completed"
	ToolCallFailed    ToolCallStatus = "failed"
)

// ExecuteOn says which side performs a tool call.
type ExecuteOn string

const (
	// ExecuteFrontend means the client performs the action locally.
	ExecuteFrontend ExecuteOn = "frontend"
	// ExecuteBackend means the backend already ran the tool and a result
	// frame will follow; the client only records it.
	ExecuteBackend ExecuteOn = "backend"
)

// ToolCall is a backend-issued instruction naming a local action and its
// arguments. ID is the correlation key for matching a later result frame.
type ToolCall struct {
	ID       string         `json:"id"`
	Name     string         `json:"name"`
	Input    map[string]any `json:"input,omitempty"`
	Execute  ExecuteOn      `json:"execute_on"`
	Status   ToolCallStatus `json:"status"`
	Result   string         `json:"result,omitempty"`
}
