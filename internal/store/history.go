// Package store persists chat history in a local SQLite database.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/oklog/ulid/v2"

	_ "modernc.org/sqlite" // register sqlite driver
)

// ErrChatNotFound is returned for an unknown chat ID.
var ErrChatNotFound = errors.New("store: chat not found")

// History provides SQLite-backed storage of chats and their turns.
type History struct {
	db *sql.DB
}

// Chat is one stored conversation.
type Chat struct {
	ID        string
	Source    string
	CreatedAt time.Time
	Turns     int
}

// Turn is one stored message.
type Turn struct {
	Seq       int
	Role      string
	Content   string
	CreatedAt time.Time
}

// NewID returns a fresh, time-sortable identifier.
func NewID() string {
	return ulid.Make().String()
}

// Open opens or creates the history database at the given path.
func Open(dbPath string) (*History, error) {
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, fmt.Errorf("creating history dir: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath+"?_pragma=journal_mode(wal)&_pragma=synchronous(normal)&_pragma=foreign_keys(on)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("opening history db: %w", err)
	}

	if _, err := db.Exec(schemaSQL); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}

	return &History{db: db}, nil
}

// Close closes the history database.
func (h *History) Close() error {
	return h.db.Close()
}

// CreateChat starts a new chat and returns its ID.
func (h *History) CreateChat(ctx context.Context, source string) (string, error) {
	id := NewID()
	_, err := h.db.ExecContext(ctx, "INSERT INTO chats (chat_id, source, created_at) VALUES (?, ?, ?)",
		id, source, formatTime(time.Now()))
	if err != nil {
		return "", fmt.Errorf("creating chat: %w", err)
	}
	return id, nil
}

// AppendTurn adds a turn at the end of a chat.
func (h *History) AppendTurn(ctx context.Context, chatID, role, content string, at time.Time) error {
	tx, err := h.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	var seq int
	err = tx.QueryRowContext(ctx, "SELECT COALESCE(MAX(seq), 0) + 1 FROM turns WHERE chat_id = ?", chatID).Scan(&seq)
	if err != nil {
		return err
	}

	_, err = tx.ExecContext(ctx, `INSERT INTO turns (chat_id, seq, role, content, created_at)
		VALUES (?, ?, ?, ?, ?)`, chatID, seq, role, content, formatTime(at))
	if err != nil {
		return fmt.Errorf("appending turn to %s: %w", chatID, err)
	}

	return tx.Commit()
}

// LoadTurns returns a chat's turns in order.
func (h *History) LoadTurns(ctx context.Context, chatID string) ([]Turn, error) {
	var exists int
	err := h.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM chats WHERE chat_id = ?", chatID).Scan(&exists)
	if err != nil {
		return nil, err
	}
	if exists == 0 {
		return nil, ErrChatNotFound
	}

	rows, err := h.db.QueryContext(ctx,
		"SELECT seq, role, content, created_at FROM turns WHERE chat_id = ? ORDER BY seq", chatID)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var turns []Turn
	for rows.Next() {
		var t Turn
		var created string
		if err := rows.Scan(&t.Seq, &t.Role, &t.Content, &created); err != nil {
			return nil, err
		}
		t.CreatedAt = parseTime(created)
		turns = append(turns, t)
	}
	return turns, rows.Err()
}

// ListChats returns the most recent chats first. limit <= 0 returns all.
func (h *History) ListChats(ctx context.Context, limit int) ([]Chat, error) {
	query := `SELECT c.chat_id, c.source, c.created_at, COUNT(t.seq)
		FROM chats c LEFT JOIN turns t ON t.chat_id = c.chat_id
		GROUP BY c.chat_id
		ORDER BY c.created_at DESC, c.chat_id DESC`
	args := []any{}
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := h.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var chats []Chat
	for rows.Next() {
		var c Chat
		var created string
		if err := rows.Scan(&c.ID, &c.Source, &created, &c.Turns); err != nil {
			return nil, err
		}
		c.CreatedAt = parseTime(created)
		chats = append(chats, c)
	}
	return chats, rows.Err()
}

// DeleteChat removes a chat and its turns.
func (h *History) DeleteChat(ctx context.Context, chatID string) error {
	res, err := h.db.ExecContext(ctx, "DELETE FROM chats WHERE chat_id = ?", chatID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrChatNotFound
	}
	return nil
}

// Fixed width so timestamps sort as text.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(s string) time.Time {
	t, _ := time.Parse(time.RFC3339Nano, s)
	return t
}
