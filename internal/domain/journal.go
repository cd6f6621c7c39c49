package domain

import (
	"time"
)

// JournalEntry is a locally persisted journal note, optionally linked to a
// chart.
type JournalEntry struct {
	ID        int64     `json:"id"`
	Title     string    `json:"title"`
	Body      string    `json:"body"`
	Mood      string    `json:"mood,omitempty"`
	Tags      []string  `json:"tags,omitempty"`
	ChartID   string    `json:"chart_id,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// TranscriptSession groups persisted conversation messages under one
// backend-assigned session id.
type TranscriptSession struct {
	ID           int64     `json:"id"`
	SessionID    string    `json:"session_id"`
	StartedAt    time.Time `json:"started_at"`
	LastMessage  string    `json:"last_message,omitempty"`
	MessageCount int       `json:"message_count"`
}
