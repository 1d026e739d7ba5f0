package store

import (
	"errors"
	"sync"
	"time"

	"github.com/edgegraph/chatd/internal/domain"
	"github.com/google/uuid"
)

// ErrSessionNotFound is returned by mutations that require an existing session.
// Lookups and deletes signal absence without an error.
var ErrSessionNotFound = errors.New("session not found")

// SessionStore is the sole owner of all chat sessions for the process lifetime.
// Nothing is persisted; a restart loses every session.
type SessionStore struct {
	mu       sync.RWMutex
	sessions map[uuid.UUID]*domain.ChatSession
}

// NewSessionStore creates an empty in-memory session store
func NewSessionStore() *SessionStore {
	return &SessionStore{
		sessions: make(map[uuid.UUID]*domain.ChatSession),
	}
}

// Create inserts a fresh session with no messages. It always succeeds.
func (s *SessionStore) Create() *domain.ChatSession {
	now := time.Now().UTC()
	session := &domain.ChatSession{
		ID:        uuid.New(),
		Messages:  make([]domain.ChatMessage, 0, 8),
		CreatedAt: now,
		UpdatedAt: now,
	}

	s.mu.Lock()
	s.sessions[session.ID] = session
	snapshot := session.Clone()
	s.mu.Unlock()

	return snapshot
}

// Get returns a snapshot of the session, or false when the id is unknown
func (s *SessionStore) Get(id uuid.UUID) (*domain.ChatSession, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	session, ok := s.sessions[id]
	if !ok {
		return nil, false
	}
	return session.Clone(), true
}

// Clear empties the session's message history, keeping its identity.
// Returns ErrSessionNotFound for an unknown id.
func (s *SessionStore) Clear(id uuid.UUID) (*domain.ChatSession, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	session, ok := s.sessions[id]
	if !ok {
		return nil, ErrSessionNotFound
	}

	session.Messages = session.Messages[:0]
	session.UpdatedAt = time.Now().UTC()
	return session.Clone(), nil
}

// Delete removes the session if present and reports whether a removal occurred
func (s *SessionStore) Delete(id uuid.UUID) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.sessions[id]; !ok {
		return false
	}
	delete(s.sessions, id)
	return true
}

// Len returns the number of live sessions
func (s *SessionStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}

// AppendMessage appends a message to the session and refreshes UpdatedAt
func (s *SessionStore) AppendMessage(id uuid.UUID, msg domain.ChatMessage) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	session, ok := s.sessions[id]
	if !ok {
		return ErrSessionNotFound
	}

	session.Messages = append(session.Messages, msg)
	session.UpdatedAt = time.Now().UTC()
	return nil
}

// AppendContent grows the content of an in-flight message. Used while an
// assistant reply is streaming; the session timestamp is not refreshed per
// token, only when the message itself is appended.
func (s *SessionStore) AppendContent(sessionID, messageID uuid.UUID, delta string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	session, ok := s.sessions[sessionID]
	if !ok {
		return ErrSessionNotFound
	}

	for i := range session.Messages {
		if session.Messages[i].ID == messageID {
			session.Messages[i].Content += delta
			return nil
		}
	}
	return ErrSessionNotFound
}

// Touch refreshes the session's UpdatedAt timestamp
func (s *SessionStore) Touch(id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	session, ok := s.sessions[id]
	if !ok {
		return ErrSessionNotFound
	}
	session.UpdatedAt = time.Now().UTC()
	return nil
}

// EvictIdle removes sessions whose UpdatedAt is older than maxAge and returns
// how many were removed. Maintenance only; the request path never calls this.
func (s *SessionStore) EvictIdle(maxAge time.Duration) int {
	cutoff := time.Now().UTC().Add(-maxAge)

	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	for id, session := range s.sessions {
		if session.UpdatedAt.Before(cutoff) {
			delete(s.sessions, id)
			removed++
		}
	}
	return removed
}
