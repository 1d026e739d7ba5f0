package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/edgegraph/chatd/internal/api/response"
	"github.com/edgegraph/chatd/internal/graphql"
	"github.com/edgegraph/chatd/internal/service"
	"github.com/edgegraph/chatd/internal/store"
	"github.com/rs/zerolog/log"
)

const (
	apiName       = "chatd"
	apiVersion    = "1.0.0"
	helloGreeting = "Hello from the chatd GraphQL API!"
)

// GraphQLHandler resolves the GraphQL-shaped API against the chat service
type GraphQLHandler struct {
	chat *service.ChatService
}

// NewGraphQLHandler creates the handler
func NewGraphQLHandler(chat *service.ChatService) *GraphQLHandler {
	return &GraphQLHandler{chat: chat}
}

// Handle resolves one operation request. Everything recoverable is turned
// into a structured envelope; a panic becomes a single generic error entry.
func (h *GraphQLHandler) Handle(w http.ResponseWriter, r *http.Request) {
	defer func() {
		if rec := recover(); rec != nil {
			log.Error().Interface("panic", rec).Msg("unexpected error resolving request")
			response.Errorf(w, http.StatusInternalServerError, "internal error: %v", rec)
		}
	}()

	var req graphql.Request
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.Errorf(w, http.StatusBadRequest, "invalid request body: %v", err)
		return
	}
	if !req.Validate() {
		response.Errorf(w, http.StatusBadRequest, "query is required and must be a non-empty string")
		return
	}

	switch graphql.Classify(req.Query) {
	case graphql.OpHello:
		response.Data(w, "hello", helloGreeting)

	case graphql.OpAPIInfo:
		response.Data(w, "apiInfo", h.apiInfo())

	case graphql.OpGetChatSession:
		id, ok := graphql.ResolveString(req.Variables, req.Query, "id")
		if !ok {
			response.Errorf(w, http.StatusOK, "id is required for getChatSession")
			return
		}
		session, found := h.chat.GetSession(id)
		if !found {
			response.Data(w, "getChatSession", nil)
			return
		}
		response.Data(w, "getChatSession", session)

	case graphql.OpCreateChatSession:
		response.Data(w, "createChatSession", h.chat.CreateSession())

	case graphql.OpClearChatSession:
		id, ok := graphql.ResolveString(req.Variables, req.Query, "sessionId")
		if !ok {
			response.Errorf(w, http.StatusOK, "sessionId is required for clearChatSession")
			return
		}
		session, err := h.chat.ClearSession(id)
		if err != nil {
			if errors.Is(err, store.ErrSessionNotFound) {
				response.Errorf(w, http.StatusOK, "session not found: %s", id)
				return
			}
			response.Errorf(w, http.StatusInternalServerError, "%v", err)
			return
		}
		response.Data(w, "clearChatSession", session)

	case graphql.OpDeleteChatSession:
		id, ok := graphql.ResolveString(req.Variables, req.Query, "sessionId")
		if !ok {
			response.Errorf(w, http.StatusOK, "sessionId is required for deleteChatSession")
			return
		}
		response.Data(w, "deleteChatSession", h.chat.DeleteSession(id))

	case graphql.OpSendMessage:
		h.sendMessage(w, r, &req)

	default:
		response.Errorf(w, http.StatusOK, "operation not recognized")
	}
}

// apiInfo builds the metadata blob, returned as a JSON-encoded string
func (h *GraphQLHandler) apiInfo() string {
	info := map[string]any{
		"name":    apiName,
		"version": apiVersion,
		"operations": []string{
			"hello", "apiInfo", "getChatSession", "createChatSession",
			"clearChatSession", "deleteChatSession", "sendMessage",
		},
		"sessions":  h.chat.SessionCount(),
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	}
	encoded, err := json.Marshal(info)
	if err != nil {
		return "{}"
	}
	return string(encoded)
}

// sendMessage drives the pipeline and picks the response mode: a buffered
// GraphQL envelope, or a token stream when the request asks for one.
func (h *GraphQLHandler) sendMessage(w http.ResponseWriter, r *http.Request, req *graphql.Request) {
	message, ok := graphql.ResolveString(req.Variables, req.Query, "message")
	if !ok {
		response.Errorf(w, http.StatusOK, "message is required for sendMessage")
		return
	}
	sessionID, _ := graphql.ResolveString(req.Variables, req.Query, "sessionId")
	wantStream := graphql.ResolveBool(req.Variables, "stream", false)

	result, err := h.chat.SendMessage(r.Context(), sessionID, message)
	if err != nil {
		response.Errorf(w, http.StatusOK, "%v", err)
		return
	}

	// An upstream call that failed outright never produced a token stream;
	// the failure rides inside the result object either way.
	if wantStream && result.Tokens != nil {
		h.streamTokens(w, result)
		return
	}

	if result.Tokens != nil {
		for range result.Tokens {
		}
	}
	response.Data(w, "sendMessage", result.Outcome())
}

// streamTokens relays reply tokens as they arrive, data:-framed and flushed
// one at a time so the client sees output before generation finishes
func (h *GraphQLHandler) streamTokens(w http.ResponseWriter, result *service.SendResult) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		for range result.Tokens {
		}
		response.Data(w, "sendMessage", result.Outcome())
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Session-Id", result.SessionID.String())
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	for token := range result.Tokens {
		frame, err := json.Marshal(map[string]string{"content": token})
		if err != nil {
			continue
		}
		fmt.Fprintf(w, "data: %s\n\n", frame)
		flusher.Flush()
	}

	outcome := result.Outcome()
	if outcome.Error != "" {
		frame, err := json.Marshal(map[string]string{"error": outcome.Error})
		if err == nil {
			fmt.Fprintf(w, "data: %s\n\n", frame)
		}
	}

	fmt.Fprint(w, "data: [DONE]\n\n")
	flusher.Flush()
}
