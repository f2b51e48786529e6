// Package store owns the session list, message histories and selection
// state. All mutations go through the Store; nothing else touches sessions.
package store

import (
	"context"
	"fmt"
	"sync"

	"pocketsocrates/chat"
	"pocketsocrates/core"
)

// Persistence is the durable backend behind a Store. Every Store mutation
// maps to one write; local state is only updated after the write confirms,
// so a failed write never leaves the two out of sync.
type Persistence interface {
	LoadSessions(ctx context.Context) ([]*chat.Session, error)
	CreateSession(ctx context.Context, session *chat.Session) error
	DeleteSession(ctx context.Context, id string) error
	UpdateSession(ctx context.Context, session *chat.Session) error
	InsertMessage(ctx context.Context, sessionID string, msg chat.Message) error
	DeleteMessages(ctx context.Context, sessionID string) error
}

// Store holds the in-memory session state, optionally backed by a
// Persistence. A nil persistence gives a purely local store.
type Store struct {
	mu          sync.RWMutex
	persistence Persistence
	sessions    []*chat.Session // newest first
	activeID    string
	logger      *core.Logger
}

// DemoSessionName is the visitor name of the session bootstrapped on first
// run.
const DemoSessionName = "Demo"

const demoSessionAge = 30

func NewStore(persistence Persistence, logger *core.Logger) *Store {
	if logger == nil {
		logger = core.GetLogger()
	}
	return &Store{
		persistence: persistence,
		logger:      logger,
	}
}

// Load pulls all persisted sessions into memory and selects the most recent
// one. No-op without a persistence backend.
func (s *Store) Load(ctx context.Context) error {
	if s.persistence == nil {
		return nil
	}
	sessions, err := s.persistence.LoadSessions(ctx)
	if err != nil {
		return fmt.Errorf("store: load sessions: %w", err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions = sessions
	s.activeID = ""
	if len(sessions) > 0 {
		s.activeID = sessions[0].ID
	}
	return nil
}

// Bootstrap creates the demo session when the store is empty, so a first
// run always has a conversation to land in.
func (s *Store) Bootstrap(ctx context.Context) error {
	s.mu.RLock()
	empty := len(s.sessions) == 0
	s.mu.RUnlock()
	if !empty {
		return nil
	}
	_, err := s.Create(ctx, DemoSessionName, demoSessionAge, false)
	if err != nil {
		return fmt.Errorf("store: bootstrap demo session: %w", err)
	}
	s.logger.Info("store: bootstrapped demo session")
	return nil
}

// Create validates the declared identity, builds a session seeded with its
// welcome message, persists it and makes it active.
func (s *Store) Create(ctx context.Context, userName string, age int, privileged bool) (*chat.Session, error) {
	session, err := chat.NewSession(userName, age, privileged)
	if err != nil {
		return nil, err
	}
	if s.persistence != nil {
		if err := s.persistence.CreateSession(ctx, session); err != nil {
			return nil, fmt.Errorf("store: create session: %w", err)
		}
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions = append([]*chat.Session{session}, s.sessions...)
	s.activeID = session.ID
	return snapshot(session), nil
}

// Delete removes a session and its messages. When the active session is
// deleted the most recent remaining one becomes active, or none.
func (s *Store) Delete(ctx context.Context, id string) error {
	s.mu.RLock()
	idx := s.indexOf(id)
	s.mu.RUnlock()
	if idx < 0 {
		return fmt.Errorf("store: delete: unknown session %s", id)
	}
	if s.persistence != nil {
		if err := s.persistence.DeleteSession(ctx, id); err != nil {
			return fmt.Errorf("store: delete session: %w", err)
		}
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	idx = s.indexOf(id)
	if idx < 0 {
		return nil
	}
	s.sessions = append(s.sessions[:idx], s.sessions[idx+1:]...)
	if s.activeID == id {
		s.activeID = ""
		if len(s.sessions) > 0 {
			s.activeID = s.sessions[0].ID
		}
	}
	return nil
}

// AppendMessage appends a message to a session's history. Appends are
// idempotent by message identity: a message the session already holds is a
// no-op, which makes duplicate realtime delivery safe.
func (s *Store) AppendMessage(ctx context.Context, id string, msg chat.Message) error {
	s.mu.RLock()
	session := s.get(id)
	known := session != nil && session.HasMessage(msg.ID)
	s.mu.RUnlock()
	if session == nil {
		return fmt.Errorf("store: append: unknown session %s", id)
	}
	if known {
		return nil
	}
	if s.persistence != nil {
		if err := s.persistence.InsertMessage(ctx, id, msg); err != nil {
			return fmt.Errorf("store: append message: %w", err)
		}
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if session := s.get(id); session != nil && !session.HasMessage(msg.ID) {
		session.Messages = append(session.Messages, msg)
	}
	return nil
}

// MergeInserted folds in a message delivered by the realtime subscription.
// The record is already durable remotely, so only local state is touched.
// Duplicate delivery of a known identity is a no-op.
func (s *Store) MergeInserted(id string, msg chat.Message) {
	s.mu.Lock()
	defer s.mu.Unlock()
	session := s.get(id)
	if session == nil || session.HasMessage(msg.ID) {
		return
	}
	session.Messages = append(session.Messages, msg)
}

// ClearMessages empties a session's history in place. Identity, name and
// declared user fields are untouched and no new welcome is seeded.
func (s *Store) ClearMessages(ctx context.Context, id string) error {
	s.mu.RLock()
	exists := s.get(id) != nil
	s.mu.RUnlock()
	if !exists {
		return fmt.Errorf("store: clear: unknown session %s", id)
	}
	if s.persistence != nil {
		if err := s.persistence.DeleteMessages(ctx, id); err != nil {
			return fmt.Errorf("store: clear messages: %w", err)
		}
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if session := s.get(id); session != nil {
		session.Messages = nil
	}
	return nil
}

// Edit updates a session's declared name and age and recomputes the display
// name from the privileged flag. Message history is untouched.
func (s *Store) Edit(ctx context.Context, id string, userName string, age int) error {
	if err := chat.ValidateAge(age); err != nil {
		return err
	}
	s.mu.RLock()
	session := snapshot(s.get(id))
	s.mu.RUnlock()
	if session == nil {
		return fmt.Errorf("store: edit: unknown session %s", id)
	}

	updated := *session
	updated.UserName = userName
	updated.UserAge = age
	updated.DisplayName = chat.DisplayName(userName, session.Privileged)

	if s.persistence != nil {
		if err := s.persistence.UpdateSession(ctx, &updated); err != nil {
			return fmt.Errorf("store: edit session: %w", err)
		}
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if session := s.get(id); session != nil {
		session.UserName = updated.UserName
		session.UserAge = updated.UserAge
		session.DisplayName = updated.DisplayName
	}
	return nil
}

// Select makes the given session active.
func (s *Store) Select(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.get(id) == nil {
		return fmt.Errorf("store: select: unknown session %s", id)
	}
	s.activeID = id
	return nil
}

// Active returns a snapshot of the selected session, or nil when none is
// selected.
func (s *Store) Active() *chat.Session {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.activeID == "" {
		return nil
	}
	return snapshot(s.get(s.activeID))
}

// Get returns a snapshot of the session with the given id, or nil.
func (s *Store) Get(id string) *chat.Session {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return snapshot(s.get(id))
}

// Sessions returns snapshots of the session list, newest first.
func (s *Store) Sessions() []*chat.Session {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*chat.Session, len(s.sessions))
	for i, session := range s.sessions {
		out[i] = snapshot(session)
	}
	return out
}

// snapshot copies a session with its message history detached from the
// store's own slice. Accessors hand out snapshots only; the live session is
// mutated under the store mutex while callers read their copies on other
// goroutines.
func snapshot(session *chat.Session) *chat.Session {
	if session == nil {
		return nil
	}
	copied := *session
	copied.Messages = make([]chat.Message, len(session.Messages))
	copy(copied.Messages, session.Messages)
	return &copied
}

func (s *Store) get(id string) *chat.Session {
	if idx := s.indexOf(id); idx >= 0 {
		return s.sessions[idx]
	}
	return nil
}

func (s *Store) indexOf(id string) int {
	for i, session := range s.sessions {
		if session.ID == id {
			return i
		}
	}
	return -1
}
