package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"pocketsocrates/chat"
	"pocketsocrates/core"
)

// DB wraps the sqlite connection backing the session store and the
// instruction store.
type DB struct {
	db *sql.DB
}

// OpenDB opens (creating if needed) the sqlite database at path and
// initializes the schema.
func OpenDB(ctx context.Context, path string) (*DB, error) {
	// WAL mode allows readers alongside the single writer
	dsn := path + "?_journal_mode=WAL&_busy_timeout=5000"

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("store: open database: %w", err)
	}

	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if err := db.PingContext(ctx); err != nil {
		return nil, fmt.Errorf("store: ping database: %w", err)
	}

	d := &DB{db: db}
	if err := d.initSchema(ctx); err != nil {
		return nil, fmt.Errorf("store: initialize schema: %w", err)
	}
	return d, nil
}

func (d *DB) Close() error {
	return d.db.Close()
}

func (d *DB) initSchema(ctx context.Context) error {
	schema := `
	CREATE TABLE IF NOT EXISTS sessions (
		id           TEXT PRIMARY KEY,
		display_name TEXT NOT NULL,
		user_name    TEXT NOT NULL,
		user_age     INTEGER NOT NULL,
		privileged   INTEGER NOT NULL DEFAULT 0,
		created_at   INTEGER NOT NULL
	);

	CREATE TABLE IF NOT EXISTS messages (
		id         TEXT PRIMARY KEY,
		session_id TEXT NOT NULL,
		role       TEXT NOT NULL,
		content    TEXT NOT NULL,
		created_at INTEGER NOT NULL,
		FOREIGN KEY (session_id) REFERENCES sessions(id) ON DELETE CASCADE
	);

	CREATE TABLE IF NOT EXISTS system_settings (
		key   TEXT PRIMARY KEY,
		value TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_messages_session ON messages(session_id, created_at);
	`
	_, err := d.db.ExecContext(ctx, schema)
	return err
}

// LoadSessions returns all sessions with their full histories, newest
// session first, messages in creation order.
func (d *DB) LoadSessions(ctx context.Context) ([]*chat.Session, error) {
	rows, err := d.db.QueryContext(ctx, `
		SELECT id, display_name, user_name, user_age, privileged, created_at
		FROM sessions ORDER BY created_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("query sessions: %w", err)
	}
	defer rows.Close()

	var sessions []*chat.Session
	for rows.Next() {
		var s chat.Session
		var privileged int
		var createdAt int64
		if err := rows.Scan(&s.ID, &s.DisplayName, &s.UserName, &s.UserAge, &privileged, &createdAt); err != nil {
			return nil, fmt.Errorf("scan session: %w", err)
		}
		s.Privileged = privileged == 1
		s.CreatedAt = time.UnixMilli(createdAt)
		sessions = append(sessions, &s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate sessions: %w", err)
	}

	for _, s := range sessions {
		msgs, err := d.loadMessages(ctx, s.ID)
		if err != nil {
			return nil, err
		}
		s.Messages = msgs
	}
	return sessions, nil
}

func (d *DB) loadMessages(ctx context.Context, sessionID string) ([]chat.Message, error) {
	rows, err := d.db.QueryContext(ctx, `
		SELECT id, role, content, created_at
		FROM messages WHERE session_id = ? ORDER BY created_at ASC, rowid ASC`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("query messages: %w", err)
	}
	defer rows.Close()

	var msgs []chat.Message
	for rows.Next() {
		var m chat.Message
		var role string
		var createdAt int64
		if err := rows.Scan(&m.ID, &role, &m.Content, &createdAt); err != nil {
			return nil, fmt.Errorf("scan message: %w", err)
		}
		m.Role = core.Role(role)
		m.CreatedAt = time.UnixMilli(createdAt)
		msgs = append(msgs, m)
	}
	return msgs, rows.Err()
}

// CreateSession writes the session row and its seed messages in one
// transaction.
func (d *DB) CreateSession(ctx context.Context, session *chat.Session) error {
	tx, err := d.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	privileged := 0
	if session.Privileged {
		privileged = 1
	}
	_, err = tx.ExecContext(ctx, `
		INSERT INTO sessions (id, display_name, user_name, user_age, privileged, created_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		session.ID, session.DisplayName, session.UserName, session.UserAge, privileged, session.CreatedAt.UnixMilli())
	if err != nil {
		return fmt.Errorf("insert session: %w", err)
	}
	for _, m := range session.Messages {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO messages (id, session_id, role, content, created_at)
			VALUES (?, ?, ?, ?, ?)`,
			m.ID, session.ID, string(m.Role), m.Content, m.CreatedAt.UnixMilli()); err != nil {
			return fmt.Errorf("insert seed message: %w", err)
		}
	}
	return tx.Commit()
}

// DeleteSession removes the session and cascades its messages.
func (d *DB) DeleteSession(ctx context.Context, id string) error {
	tx, err := d.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM messages WHERE session_id = ?`, id); err != nil {
		return fmt.Errorf("delete messages: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM sessions WHERE id = ?`, id); err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	return tx.Commit()
}

// UpdateSession writes the declared identity fields and the recomputed
// display name.
func (d *DB) UpdateSession(ctx context.Context, session *chat.Session) error {
	_, err := d.db.ExecContext(ctx, `
		UPDATE sessions SET display_name = ?, user_name = ?, user_age = ? WHERE id = ?`,
		session.DisplayName, session.UserName, session.UserAge, session.ID)
	if err != nil {
		return fmt.Errorf("update session: %w", err)
	}
	return nil
}

// InsertMessage appends one message. Re-inserting a known identity is a
// no-op so duplicate deliveries stay idempotent end to end.
func (d *DB) InsertMessage(ctx context.Context, sessionID string, msg chat.Message) error {
	_, err := d.db.ExecContext(ctx, `
		INSERT INTO messages (id, session_id, role, content, created_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(id) DO NOTHING`,
		msg.ID, sessionID, string(msg.Role), msg.Content, msg.CreatedAt.UnixMilli())
	if err != nil {
		return fmt.Errorf("insert message: %w", err)
	}
	return nil
}

// DeleteMessages empties a session's history.
func (d *DB) DeleteMessages(ctx context.Context, sessionID string) error {
	_, err := d.db.ExecContext(ctx, `DELETE FROM messages WHERE session_id = ?`, sessionID)
	if err != nil {
		return fmt.Errorf("delete messages: %w", err)
	}
	return nil
}

// Instructions returns the instruction store view over this database,
// seeding the default persona when the key is absent.
func (d *DB) Instructions(ctx context.Context) (*SQLInstructionStore, error) {
	s := &SQLInstructionStore{db: d.db}
	if _, err := s.Get(ctx); err != nil {
		return nil, err
	}
	return s, nil
}

// SQLInstructionStore persists the single system-instruction key in the
// system_settings table.
type SQLInstructionStore struct {
	db *sql.DB
}

func (s *SQLInstructionStore) Get(ctx context.Context) (string, error) {
	var value string
	err := s.db.QueryRowContext(ctx,
		`SELECT value FROM system_settings WHERE key = ?`, InstructionKey).Scan(&value)
	if err == sql.ErrNoRows {
		if err := s.Set(ctx, DefaultInstructions); err != nil {
			return "", err
		}
		return DefaultInstructions, nil
	}
	if err != nil {
		return "", fmt.Errorf("store: read instructions: %w", err)
	}
	return value, nil
}

func (s *SQLInstructionStore) Set(ctx context.Context, text string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO system_settings (key, value) VALUES (?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value`,
		InstructionKey, text)
	if err != nil {
		return fmt.Errorf("store: write instructions: %w", err)
	}
	return nil
}
