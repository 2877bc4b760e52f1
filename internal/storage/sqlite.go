// Package storage persists messages and known users in SQLite. It is
// the persistence collaborator the realtime core calls into; the core
// itself never touches the database.
package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite" // Pure-Go SQLite driver

	"github.com/huddle-chat/huddle/internal/domain"
)

// ErrNotFound is returned when the referenced row does not exist.
var ErrNotFound = errors.New("storage: not found")

// Store wraps the SQLite database.
type Store struct {
	db *sql.DB
}

// Open opens (or creates) the database at path and bootstraps the
// schema. Use ":memory:" for tests.
func Open(path string) (*Store, error) {
	if path == "" {
		path = ":memory:"
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// The driver serializes access per connection; a single connection
	// avoids SQLITE_BUSY under concurrent writers.
	db.SetMaxOpenConns(1)

	s := &Store{db: db}
	if err := s.init(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) init() error {
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS messages (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			scope_key TEXT NOT NULL,
			scope TEXT NOT NULL,
			sender_id TEXT NOT NULL,
			sender_name TEXT NOT NULL,
			body TEXT NOT NULL,
			quoted TEXT NOT NULL DEFAULT '',
			removed INTEGER NOT NULL DEFAULT 0,
			created_at TIMESTAMP NOT NULL
		)
	`)
	if err != nil {
		return fmt.Errorf("failed to create messages table: %w", err)
	}

	_, err = s.db.Exec(`CREATE INDEX IF NOT EXISTS idx_messages_scope ON messages(scope_key, id)`)
	if err != nil {
		return fmt.Errorf("failed to create scope index: %w", err)
	}

	_, err = s.db.Exec(`
		CREATE TABLE IF NOT EXISTS users (
			id TEXT PRIMARY KEY,
			display_name TEXT NOT NULL,
			role TEXT NOT NULL DEFAULT 'member',
			last_login TIMESTAMP,
			last_logout TIMESTAMP
		)
	`)
	if err != nil {
		return fmt.Errorf("failed to create users table: %w", err)
	}
	return nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

// SaveMessage stores a message and returns its assigned sequence id.
func (s *Store) SaveMessage(ctx context.Context, msg *domain.Message) (int64, error) {
	scopeJSON, err := json.Marshal(msg.Scope)
	if err != nil {
		return 0, fmt.Errorf("failed to encode scope: %w", err)
	}

	res, err := s.db.ExecContext(ctx, `
		INSERT INTO messages (scope_key, scope, sender_id, sender_name, body, quoted, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		msg.Scope.Key(), string(scopeJSON), msg.SenderID, msg.SenderName,
		msg.Body, msg.Quoted, msg.CreatedAt.UTC(),
	)
	if err != nil {
		return 0, fmt.Errorf("failed to insert message: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("failed to read message id: %w", err)
	}
	return id, nil
}

// History returns up to limit most recent messages for a scope in
// ascending id order. Removed messages carry the redaction sentinel.
func (s *Store) History(ctx context.Context, scope domain.Scope, limit int) ([]domain.Message, error) {
	if limit <= 0 {
		limit = domain.DefaultHistoryLimit
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, scope, sender_id, sender_name, body, quoted, removed, created_at
		FROM (
			SELECT * FROM messages WHERE scope_key = ? ORDER BY id DESC LIMIT ?
		) ORDER BY id ASC`,
		scope.Key(), limit,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query history: %w", err)
	}
	defer rows.Close()

	var out []domain.Message
	for rows.Next() {
		msg, err := scanMessage(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, msg)
	}
	return out, rows.Err()
}

// Message returns a single message by id.
func (s *Store) Message(ctx context.Context, id int64) (domain.Message, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, scope, sender_id, sender_name, body, quoted, removed, created_at
		FROM messages WHERE id = ?`, id)
	return scanMessage(row)
}

// MarkRemoved flags a message as removed.
func (s *Store) MarkRemoved(ctx context.Context, id int64) error {
	res, err := s.db.ExecContext(ctx, `UPDATE messages SET removed = 1 WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to mark removed: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrNotFound
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanMessage(row rowScanner) (domain.Message, error) {
	var (
		msg       domain.Message
		scopeJSON string
		removed   int
	)
	err := row.Scan(&msg.ID, &scopeJSON, &msg.SenderID, &msg.SenderName,
		&msg.Body, &msg.Quoted, &removed, &msg.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Message{}, ErrNotFound
	}
	if err != nil {
		return domain.Message{}, fmt.Errorf("failed to scan message: %w", err)
	}
	if err := json.Unmarshal([]byte(scopeJSON), &msg.Scope); err != nil {
		return domain.Message{}, fmt.Errorf("failed to decode scope: %w", err)
	}
	if removed == 1 {
		msg.Removed = true
		msg.Body = domain.RemovedBody
		msg.Quoted = ""
	}
	return msg, nil
}

// KnownUser is a row of the roster join: identity plus the last time
// the user fully disconnected.
type KnownUser struct {
	ID          string     `json:"id"`
	DisplayName string     `json:"display_name"`
	Role        string     `json:"role"`
	LastLogout  *time.Time `json:"last_logout,omitempty"`
}

// UpsertUser records a login, inserting the user or refreshing their
// display name and last-login time.
func (s *Store) UpsertUser(ctx context.Context, ident domain.Identity) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO users (id, display_name, role, last_login)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			display_name = excluded.display_name,
			role = excluded.role,
			last_login = excluded.last_login`,
		ident.UserID, ident.DisplayName, ident.Role, time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("failed to upsert user: %w", err)
	}
	return nil
}

// TouchLogout records the time the user's last connection closed.
func (s *Store) TouchLogout(ctx context.Context, userID string) error {
	_, err := s.db.ExecContext(ctx, `UPDATE users SET last_logout = ? WHERE id = ?`,
		time.Now().UTC(), userID)
	if err != nil {
		return fmt.Errorf("failed to record logout: %w", err)
	}
	return nil
}

// Users returns every known user, ordered by display name.
func (s *Store) Users(ctx context.Context) ([]KnownUser, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, display_name, role, last_logout FROM users ORDER BY display_name, id`)
	if err != nil {
		return nil, fmt.Errorf("failed to query users: %w", err)
	}
	defer rows.Close()

	var out []KnownUser
	for rows.Next() {
		var (
			u          KnownUser
			lastLogout sql.NullTime
		)
		if err := rows.Scan(&u.ID, &u.DisplayName, &u.Role, &lastLogout); err != nil {
			return nil, fmt.Errorf("failed to scan user: %w", err)
		}
		if lastLogout.Valid {
			t := lastLogout.Time
			u.LastLogout = &t
		}
		out = append(out, u)
	}
	return out, rows.Err()
}
