package store

import (
	"testing"
	"time"

	"github.com/edgegraph/chatd/internal/domain"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSessionStore_Create(t *testing.T) {
	s := NewSessionStore()

	session := s.Create()
	require.NotNil(t, session)
	assert.NotEqual(t, uuid.Nil, session.ID)
	assert.Empty(t, session.Messages)
	assert.Equal(t, session.CreatedAt, session.UpdatedAt)
	assert.Equal(t, 1, s.Len())

	// The returned snapshot must not alias the stored session
	session.Messages = append(session.Messages, domain.NewChatMessage(domain.RoleUser, "local only"))
	stored, ok := s.Get(session.ID)
	require.True(t, ok)
	assert.Empty(t, stored.Messages)
}

func TestSessionStore_Get(t *testing.T) {
	s := NewSessionStore()
	created := s.Create()

	t.Run("existing id", func(t *testing.T) {
		got, ok := s.Get(created.ID)
		require.True(t, ok)
		assert.Equal(t, created.ID, got.ID)
	})

	t.Run("unknown id is absence, not an error", func(t *testing.T) {
		got, ok := s.Get(uuid.New())
		assert.False(t, ok)
		assert.Nil(t, got)
	})

	t.Run("idempotent without intervening mutation", func(t *testing.T) {
		first, ok := s.Get(created.ID)
		require.True(t, ok)
		second, ok := s.Get(created.ID)
		require.True(t, ok)
		assert.Equal(t, first, second)
	})

	t.Run("snapshots do not alias the store", func(t *testing.T) {
		got, _ := s.Get(created.ID)
		got.Messages = append(got.Messages, domain.NewChatMessage(domain.RoleUser, "local only"))

		again, _ := s.Get(created.ID)
		assert.Empty(t, again.Messages)
	})
}

func TestSessionStore_Clear(t *testing.T) {
	s := NewSessionStore()
	session := s.Create()
	require.NoError(t, s.AppendMessage(session.ID, domain.NewChatMessage(domain.RoleUser, "hi")))

	t.Run("empties messages, keeps identity, bumps updatedAt", func(t *testing.T) {
		before, _ := s.Get(session.ID)
		time.Sleep(2 * time.Millisecond)

		cleared, err := s.Clear(session.ID)
		require.NoError(t, err)
		assert.Equal(t, session.ID, cleared.ID)
		assert.Equal(t, session.CreatedAt, cleared.CreatedAt)
		assert.Empty(t, cleared.Messages)
		assert.True(t, cleared.UpdatedAt.After(before.UpdatedAt))
	})

	t.Run("unknown id errors", func(t *testing.T) {
		_, err := s.Clear(uuid.New())
		assert.ErrorIs(t, err, ErrSessionNotFound)
	})
}

func TestSessionStore_Delete(t *testing.T) {
	s := NewSessionStore()
	session := s.Create()

	assert.True(t, s.Delete(session.ID))

	_, ok := s.Get(session.ID)
	assert.False(t, ok)

	// Unknown id is false, never an error
	assert.False(t, s.Delete(session.ID))
	assert.False(t, s.Delete(uuid.New()))
}

func TestSessionStore_AppendMessage(t *testing.T) {
	s := NewSessionStore()
	session := s.Create()

	msg := domain.NewChatMessage(domain.RoleUser, "hello")
	require.NoError(t, s.AppendMessage(session.ID, msg))

	got, _ := s.Get(session.ID)
	require.Len(t, got.Messages, 1)
	assert.Equal(t, msg.ID, got.Messages[0].ID)
	assert.False(t, got.UpdatedAt.Before(got.CreatedAt))

	assert.ErrorIs(t, s.AppendMessage(uuid.New(), msg), ErrSessionNotFound)
}

func TestSessionStore_AppendContent(t *testing.T) {
	s := NewSessionStore()
	session := s.Create()
	msg := domain.NewChatMessage(domain.RoleAssistant, "")
	require.NoError(t, s.AppendMessage(session.ID, msg))

	require.NoError(t, s.AppendContent(session.ID, msg.ID, "Hel"))
	require.NoError(t, s.AppendContent(session.ID, msg.ID, "lo"))

	got, _ := s.Get(session.ID)
	require.Len(t, got.Messages, 1)
	assert.Equal(t, "Hello", got.Messages[0].Content)

	assert.ErrorIs(t, s.AppendContent(session.ID, uuid.New(), "x"), ErrSessionNotFound)
	assert.ErrorIs(t, s.AppendContent(uuid.New(), msg.ID, "x"), ErrSessionNotFound)
}

func TestSessionStore_EvictIdle(t *testing.T) {
	s := NewSessionStore()
	stale := s.Create()
	fresh := s.Create()

	// Backdate the stale session past the cutoff
	s.mu.Lock()
	s.sessions[stale.ID].UpdatedAt = time.Now().UTC().Add(-2 * time.Hour)
	s.mu.Unlock()

	removed := s.EvictIdle(time.Hour)
	assert.Equal(t, 1, removed)

	_, ok := s.Get(stale.ID)
	assert.False(t, ok)
	_, ok = s.Get(fresh.ID)
	assert.True(t, ok)
}

func TestSessionStore_IDUniqueness(t *testing.T) {
	s := NewSessionStore()
	seen := make(map[uuid.UUID]struct{}, 10000)

	for i := 0; i < 5000; i++ {
		session := s.Create()
		_, dup := seen[session.ID]
		require.False(t, dup, "session id collision after %d generations", i)
		seen[session.ID] = struct{}{}

		msg := domain.NewChatMessage(domain.RoleUser, "x")
		_, dup = seen[msg.ID]
		require.False(t, dup, "message id collision after %d generations", i)
		seen[msg.ID] = struct{}{}
	}
}
