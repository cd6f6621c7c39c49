package history

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/selene-app/selene/internal/domain"
	_ "modernc.org/sqlite"
)

// SQLiteStore implements Repository using SQLite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite creates a new SQLite-backed repository.
func NewSQLite(dbPath string) (Repository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, fmt.Errorf("create database directory: %w", err)
	}

	// WAL mode for better concurrency between the UI and the read loop.
	dsn := dbPath + "?_journal=WAL&_sync=NORMAL&_busy_timeout=5000"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	db.SetMaxOpenConns(4)
	db.SetMaxIdleConns(2)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("ping database: %w", err)
	}

	store := &SQLiteStore{db: db}
	if err := store.initSchema(); err != nil {
		return nil, fmt.Errorf("initialize schema: %w", err)
	}

	return store, nil
}

func (s *SQLiteStore) initSchema() error {
	query := `
	PRAGMA busy_timeout = 5000;
	CREATE TABLE IF NOT EXISTS sessions (
		session_id TEXT PRIMARY KEY,
		started_at INTEGER NOT NULL,
		updated_at INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_sessions_updated ON sessions(updated_at DESC);

	CREATE TABLE IF NOT EXISTS messages (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		session_id TEXT NOT NULL,
		role TEXT NOT NULL,
		content TEXT NOT NULL,
		created_at INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_messages_session ON messages(session_id, id);

	CREATE TABLE IF NOT EXISTS journal (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		title TEXT NOT NULL,
		body TEXT NOT NULL,
		mood TEXT NOT NULL DEFAULT '',
		tags_json TEXT NOT NULL DEFAULT '[]',
		chart_id TEXT NOT NULL DEFAULT '',
		created_at INTEGER NOT NULL,
		updated_at INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_journal_created ON journal(created_at DESC);
	`
	if _, err := s.db.Exec(query); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}
	return nil
}

// Ping verifies database connectivity.
func (s *SQLiteStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// SaveMessage appends a message to a session's transcript.
func (s *SQLiteStore) SaveMessage(ctx context.Context, sessionID, role, content string) error {
	if sessionID == "" {
		return fmt.Errorf("session id cannot be empty")
	}
	now := time.Now().Unix()

	err := withBusyRetry(ctx, func() error {
		tx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			return fmt.Errorf("begin transaction: %w", err)
		}
		defer func() { _ = tx.Rollback() }()

		_, err = tx.ExecContext(ctx, `
			INSERT INTO sessions(session_id, started_at, updated_at) VALUES(?, ?, ?)
			ON CONFLICT(session_id) DO UPDATE SET updated_at = excluded.updated_at`,
			sessionID, now, now)
		if err != nil {
			return fmt.Errorf("upsert session: %w", err)
		}

		_, err = tx.ExecContext(ctx,
			"INSERT INTO messages(session_id, role, content, created_at) VALUES(?, ?, ?, ?)",
			sessionID, role, content, now)
		if err != nil {
			return fmt.Errorf("insert message: %w", err)
		}

		return tx.Commit()
	})
	if err != nil {
		return fmt.Errorf("save message: %w", err)
	}
	return nil
}

// Transcript returns a session's messages in insertion order.
func (s *SQLiteStore) Transcript(ctx context.Context, sessionID string) ([]domain.Message, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT role, content FROM messages WHERE session_id = ? ORDER BY id ASC",
		sessionID)
	if err != nil {
		return nil, fmt.Errorf("query transcript: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var messages []domain.Message
	for rows.Next() {
		var m domain.Message
		if err := rows.Scan(&m.Role, &m.Content); err != nil {
			return nil, fmt.Errorf("scan message row: %w", err)
		}
		messages = append(messages, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate transcript: %w", err)
	}
	return messages, nil
}

// ListSessions returns the most recently active sessions.
func (s *SQLiteStore) ListSessions(ctx context.Context, limit int) ([]domain.TranscriptSession, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT s.rowid, s.session_id, s.started_at,
		       COALESCE((SELECT content FROM messages m
		                 WHERE m.session_id = s.session_id ORDER BY m.id DESC LIMIT 1), ''),
		       (SELECT COUNT(*) FROM messages m WHERE m.session_id = s.session_id)
		FROM sessions s ORDER BY s.updated_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("query sessions: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var sessions []domain.TranscriptSession
	for rows.Next() {
		var sess domain.TranscriptSession
		var startedAt int64
		if err := rows.Scan(&sess.ID, &sess.SessionID, &startedAt, &sess.LastMessage, &sess.MessageCount); err != nil {
			return nil, fmt.Errorf("scan session row: %w", err)
		}
		sess.StartedAt = time.Unix(startedAt, 0)
		sessions = append(sessions, sess)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate sessions: %w", err)
	}
	return sessions, nil
}

// DeleteSession removes a session and its messages.
func (s *SQLiteStore) DeleteSession(ctx context.Context, sessionID string) error {
	err := withBusyRetry(ctx, func() error {
		if _, err := s.db.ExecContext(ctx, "DELETE FROM messages WHERE session_id = ?", sessionID); err != nil {
			return err
		}
		_, err := s.db.ExecContext(ctx, "DELETE FROM sessions WHERE session_id = ?", sessionID)
		return err
	})
	if err != nil {
		return fmt.Errorf("delete session %s: %w", sessionID, err)
	}
	return nil
}

// CreateJournalEntry stores a new journal entry.
func (s *SQLiteStore) CreateJournalEntry(ctx context.Context, entry *domain.JournalEntry) (int64, error) {
	tags, err := json.Marshal(entry.Tags)
	if err != nil {
		return 0, fmt.Errorf("marshal tags: %w", err)
	}
	now := time.Now().Unix()

	res, err := s.db.ExecContext(ctx, `
		INSERT INTO journal(title, body, mood, tags_json, chart_id, created_at, updated_at)
		VALUES(?, ?, ?, ?, ?, ?, ?)`,
		entry.Title, entry.Body, entry.Mood, string(tags), entry.ChartID, now, now)
	if err != nil {
		return 0, fmt.Errorf("insert journal entry: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("journal entry id: %w", err)
	}
	return id, nil
}

// ListJournalEntries returns the newest entries first.
func (s *SQLiteStore) ListJournalEntries(ctx context.Context, limit int) ([]domain.JournalEntry, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, title, body, mood, tags_json, chart_id, created_at, updated_at
		FROM journal ORDER BY created_at DESC, id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("query journal: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var entries []domain.JournalEntry
	for rows.Next() {
		var entry domain.JournalEntry
		var tagsJSON string
		var createdAt, updatedAt int64
		if err := rows.Scan(&entry.ID, &entry.Title, &entry.Body, &entry.Mood,
			&tagsJSON, &entry.ChartID, &createdAt, &updatedAt); err != nil {
			return nil, fmt.Errorf("scan journal row: %w", err)
		}
		if err := json.Unmarshal([]byte(tagsJSON), &entry.Tags); err != nil {
			return nil, fmt.Errorf("unmarshal tags for entry %d: %w", entry.ID, err)
		}
		entry.CreatedAt = time.Unix(createdAt, 0)
		entry.UpdatedAt = time.Unix(updatedAt, 0)
		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate journal: %w", err)
	}
	return entries, nil
}

// DeleteJournalEntry removes a journal entry.
func (s *SQLiteStore) DeleteJournalEntry(ctx context.Context, id int64) error {
	if _, err := s.db.ExecContext(ctx, "DELETE FROM journal WHERE id = ?", id); err != nil {
		return fmt.Errorf("delete journal entry %d: %w", id, err)
	}
	return nil
}

// backupDocument is the JSON shape of an exported backup.
type backupDocument struct {
	ExportedAt time.Time                   `json:"exported_at"`
	Sessions   []domain.TranscriptSession  `json:"sessions"`
	Messages   map[string][]domain.Message `json:"messages"`
	Journal    []domain.JournalEntry       `json:"journal"`
}

// Export serializes everything as one JSON backup document.
func (s *SQLiteStore) Export(ctx context.Context) ([]byte, error) {
	sessions, err := s.ListSessions(ctx, 10000)
	if err != nil {
		return nil, fmt.Errorf("export sessions: %w", err)
	}

	messages := make(map[string][]domain.Message, len(sessions))
	for _, sess := range sessions {
		transcript, err := s.Transcript(ctx, sess.SessionID)
		if err != nil {
			return nil, fmt.Errorf("export transcript %s: %w", sess.SessionID, err)
		}
		messages[sess.SessionID] = transcript
	}

	journal, err := s.ListJournalEntries(ctx, 10000)
	if err != nil {
		return nil, fmt.Errorf("export journal: %w", err)
	}

	doc := backupDocument{
		ExportedAt: time.Now().UTC(),
		Sessions:   sessions,
		Messages:   messages,
		Journal:    journal,
	}
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshal backup: %w", err)
	}
	return data, nil
}

const (
	busyRetries   = 3
	busyBaseDelay = 50 * time.Millisecond
)

// withBusyRetry retries a write a few times with exponential backoff to ride
// out SQLITE_BUSY while another connection holds the lock.
func withBusyRetry(ctx context.Context, fn func() error) error {
	var err error
	for i := 0; i < busyRetries; i++ {
		err = fn()
		if err == nil || !isBusyError(err) {
			return err
		}
		if ctx.Err() != nil {
			return err
		}
		time.Sleep(busyBaseDelay * time.Duration(1<<i))
	}
	return err
}

func isBusyError(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "SQLITE_BUSY") || strings.Contains(msg, "database is locked")
}
