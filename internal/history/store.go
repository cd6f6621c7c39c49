// Package history provides local persistence for conversation transcripts
// and journal entries.
package history

import (
	"context"

	"github.com/selene-app/selene/internal/domain"
)

// Repository defines the interface for persisting transcripts and journal
// entries.
type Repository interface {
	// SaveMessage appends a message to a session's transcript, creating
	// the session row on first use.
	SaveMessage(ctx context.Context, sessionID, role, content string) error

	// Transcript returns a session's messages in order.
	Transcript(ctx context.Context, sessionID string) ([]domain.Message, error)

	// ListSessions returns the most recently active sessions.
	ListSessions(ctx context.Context, limit int) ([]domain.TranscriptSession, error)

	// DeleteSession removes a session and its messages.
	DeleteSession(ctx context.Context, sessionID string) error

	// CreateJournalEntry stores a new journal entry and returns its id.
	CreateJournalEntry(ctx context.Context, entry *domain.JournalEntry) (int64, error)

	// ListJournalEntries returns the newest entries first.
	ListJournalEntries(ctx context.Context, limit int) ([]domain.JournalEntry, error)

	// DeleteJournalEntry removes a journal entry.
	DeleteJournalEntry(ctx context.Context, id int64) error

	// Export serializes all sessions, messages, and journal entries as a
	// JSON backup document.
	Export(ctx context.Context) ([]byte, error)

	// Ping verifies database connectivity.
	Ping(ctx context.Context) error

	// Close closes the database connection.
	Close() error
}
