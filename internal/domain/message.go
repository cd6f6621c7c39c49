package domain

const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Message is a single conversation entry. Messages are immutable once
// appended, except that the most recent assistant message is built
// incrementally while a response streams in.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Insight is a proactive observation pushed by the backend outside the
// normal request/response exchange.
type Insight struct {
	Message string `json:"message"`
	Trigger string `json:"trigger,omitempty"`
}

// Mood drives the companion avatar indicator.
type Mood string

const (
	MoodIdle     Mood = "idle"
	MoodThinking Mood = "thinking"
	MoodSpeaking Mood = "speaking"
	MoodCurious  Mood = "curious"
)
