package service

import (
	"context"
	"errors"
	"strings"

	"github.com/edgegraph/chatd/internal/domain"
	"github.com/edgegraph/chatd/internal/llm"
	"github.com/edgegraph/chatd/internal/store"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// ErrEmptyMessage rejects a sendMessage whose message is missing or blank
var ErrEmptyMessage = errors.New("message is required and cannot be empty")

// ChatService owns session operations and the send-message pipeline
type ChatService struct {
	store     *store.SessionStore
	completer llm.Completer
}

// NewChatService creates a chat service over the given store and completer
func NewChatService(sessions *store.SessionStore, completer llm.Completer) *ChatService {
	return &ChatService{
		store:     sessions,
		completer: completer,
	}
}

// CreateSession provisions a new empty session
func (s *ChatService) CreateSession() *domain.ChatSession {
	return s.store.Create()
}

// GetSession looks up a session by its string id. An unparseable or unknown
// id is absence, not an error.
func (s *ChatService) GetSession(id string) (*domain.ChatSession, bool) {
	sessionID, err := uuid.Parse(id)
	if err != nil {
		return nil, false
	}
	return s.store.Get(sessionID)
}

// ClearSession empties a session's history. Unknown ids are an error here,
// unlike get and delete; the asymmetry is part of the API contract.
func (s *ChatService) ClearSession(id string) (*domain.ChatSession, error) {
	sessionID, err := uuid.Parse(id)
	if err != nil {
		return nil, store.ErrSessionNotFound
	}
	return s.store.Clear(sessionID)
}

// DeleteSession removes a session, reporting whether anything was removed
func (s *ChatService) DeleteSession(id string) bool {
	sessionID, err := uuid.Parse(id)
	if err != nil {
		return false
	}
	return s.store.Delete(sessionID)
}

// SessionCount returns the number of live sessions
func (s *ChatService) SessionCount() int {
	return s.store.Len()
}

// SendOutcome is the settled result of one send-message invocation
type SendOutcome struct {
	Success bool                `json:"success"`
	Error   string              `json:"error,omitempty"`
	Message *domain.ChatMessage `json:"message,omitempty"`
	Session *domain.ChatSession `json:"session"`
}

// SendResult exposes a send in flight. Tokens, when non-nil, yields reply
// tokens in decode order and closes at end of generation; Outcome blocks
// until the result settles. Callers must drain Tokens before Outcome.
type SendResult struct {
	SessionID      uuid.UUID
	CreatedSession bool
	Tokens         <-chan string

	done    chan struct{}
	outcome *SendOutcome
}

// Outcome waits for the pipeline to settle and returns the final result
func (r *SendResult) Outcome() *SendOutcome {
	<-r.done
	return r.outcome
}

// SendMessage runs the pipeline: validate, resolve or create the session,
// commit the user message, then relay the completion stream into an
// assistant message. The user message survives an upstream failure.
func (s *ChatService) SendMessage(ctx context.Context, sessionID, message string) (*SendResult, error) {
	trimmed := strings.TrimSpace(message)
	if trimmed == "" {
		return nil, ErrEmptyMessage
	}

	// A supplied id that resolves is reused; anything else, including a
	// stale id, silently gets a brand-new session.
	var session *domain.ChatSession
	created := false
	if sessionID != "" {
		if id, err := uuid.Parse(sessionID); err == nil {
			if existing, ok := s.store.Get(id); ok {
				session = existing
			}
		}
	}
	if session == nil {
		session = s.store.Create()
		created = true
	}

	userMsg := domain.NewChatMessage(domain.RoleUser, trimmed)
	if err := s.store.AppendMessage(session.ID, userMsg); err != nil {
		// Session deleted between resolve and append; start over with a
		// fresh one rather than dropping user input.
		session = s.store.Create()
		created = true
		if err := s.store.AppendMessage(session.ID, userMsg); err != nil {
			return nil, err
		}
	}

	result := &SendResult{
		SessionID:      session.ID,
		CreatedSession: created,
		done:           make(chan struct{}),
	}

	history, ok := s.store.Get(session.ID)
	if !ok {
		history = session.Clone()
		history.Messages = append(history.Messages, userMsg)
	}

	events, err := s.completer.Complete(ctx, history.Messages)
	if err != nil {
		log.Error().Err(err).Str("session_id", session.ID.String()).Msg("completion call failed")
		s.store.Touch(session.ID)
		snapshot, _ := s.store.Get(session.ID)
		result.outcome = &SendOutcome{
			Success: false,
			Error:   err.Error(),
			Session: snapshot,
		}
		close(result.done)
		return result, nil
	}

	assistantMsg := domain.NewChatMessage(domain.RoleAssistant, "")
	if err := s.store.AppendMessage(session.ID, assistantMsg); err != nil {
		result.outcome = &SendOutcome{Success: false, Error: err.Error(), Session: session}
		close(result.done)
		return result, nil
	}

	tokens := make(chan string)
	result.Tokens = tokens
	go s.relay(ctx, session.ID, assistantMsg.ID, events, tokens, result)

	return result, nil
}

// relay consumes completion events one at a time, growing the assistant
// message before forwarding each token so the session is never behind what
// the caller has seen. The tokens channel is unbuffered: the upstream body
// is read no faster than the consumer drains.
func (s *ChatService) relay(ctx context.Context, sessionID, messageID uuid.UUID, events <-chan llm.Event, tokens chan<- string, result *SendResult) {
	defer close(result.done)
	defer close(tokens)

	var streamErr string

loop:
	for {
		select {
		case ev, ok := <-events:
			if !ok {
				break loop
			}
			switch ev.Type {
			case llm.EventContent:
				s.store.AppendContent(sessionID, messageID, ev.Content)
				select {
				case tokens <- ev.Content:
				case <-ctx.Done():
					streamErr = ctx.Err().Error()
					break loop
				}
			case llm.EventError:
				streamErr = ev.Err
				break loop
			case llm.EventEnd:
				break loop
			}
		case <-ctx.Done():
			streamErr = ctx.Err().Error()
			break loop
		}
	}

	snapshot, _ := s.store.Get(sessionID)
	outcome := &SendOutcome{
		Success: streamErr == "",
		Error:   streamErr,
		Session: snapshot,
	}
	if snapshot != nil {
		for i := range snapshot.Messages {
			if snapshot.Messages[i].ID == messageID {
				outcome.Message = &snapshot.Messages[i]
			}
		}
	}
	result.outcome = outcome
}
