package openai

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/edgegraph/chatd/internal/config"
	"github.com/edgegraph/chatd/internal/domain"
	"github.com/edgegraph/chatd/internal/llm"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testClient(baseURL string) *Client {
	return NewClient(config.UpstreamConfig{
		BaseURL:     baseURL,
		APIKey:      "test-key",
		Model:       "test-model",
		MaxTokens:   64,
		Temperature: 0.5,
		Timeout:     5 * time.Second,
	})
}

func collect(events <-chan llm.Event) []llm.Event {
	var out []llm.Event
	for ev := range events {
		out = append(out, ev)
	}
	return out
}

func sseServer(t *testing.T, lines ...string) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		for _, line := range lines {
			fmt.Fprintf(w, "%s\n", line)
		}
	}))
}

func TestClient_Complete_Stream(t *testing.T) {
	srv := sseServer(t,
		`data: {"choices":[{"delta":{"role":"assistant"}}]}`,
		`data: {"choices":[{"delta":{"content":"Hel"}}]}`,
		``,
		`: keep-alive comment`,
		`data: {"choices":[{"delta":{"content":"lo"}}]}`,
		`data: [DONE]`,
	)
	defer srv.Close()

	events, err := testClient(srv.URL).Complete(context.Background(), []domain.ChatMessage{
		domain.NewChatMessage(domain.RoleUser, "hi"),
	})
	require.NoError(t, err)

	got := collect(events)
	require.Len(t, got, 4)
	assert.Equal(t, llm.EventStart, got[0].Type)
	assert.Equal(t, llm.Event{Type: llm.EventContent, Content: "Hel"}, got[1])
	assert.Equal(t, llm.Event{Type: llm.EventContent, Content: "lo"}, got[2])
	assert.Equal(t, llm.EventEnd, got[3].Type)
}

func TestClient_Complete_MalformedPayloadSkipped(t *testing.T) {
	srv := sseServer(t,
		`data: {this is not json}`,
		`data: {"choices":[{"delta":{"content":"ok"}}]}`,
		`data: [DONE]`,
	)
	defer srv.Close()

	events, err := testClient(srv.URL).Complete(context.Background(), nil)
	require.NoError(t, err)

	got := collect(events)
	require.Len(t, got, 3)
	assert.Equal(t, llm.EventStart, got[0].Type)
	assert.Equal(t, "ok", got[1].Content)
	assert.Equal(t, llm.EventEnd, got[2].Type)
}

func TestClient_Complete_ErrorPayloadTerminates(t *testing.T) {
	srv := sseServer(t,
		`data: {"choices":[{"delta":{"content":"par"}}]}`,
		`data: {"error":{"message":"quota exceeded"}}`,
		`data: {"choices":[{"delta":{"content":"never seen"}}]}`,
		`data: [DONE]`,
	)
	defer srv.Close()

	events, err := testClient(srv.URL).Complete(context.Background(), nil)
	require.NoError(t, err)

	got := collect(events)
	require.Len(t, got, 3)
	assert.Equal(t, llm.EventStart, got[0].Type)
	assert.Equal(t, "par", got[1].Content)
	assert.Equal(t, llm.Event{Type: llm.EventError, Err: "quota exceeded"}, got[2])
}

func TestClient_Complete_EOFWithoutSentinel(t *testing.T) {
	srv := sseServer(t,
		`data: {"choices":[{"delta":{"content":"cut"}}]}`,
	)
	defer srv.Close()

	events, err := testClient(srv.URL).Complete(context.Background(), nil)
	require.NoError(t, err)

	got := collect(events)
	require.Len(t, got, 3)
	assert.Equal(t, llm.EventEnd, got[2].Type)
}

func TestClient_Complete_CancelReleasesStream(t *testing.T) {
	release := make(chan struct{})
	defer close(release)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		fmt.Fprint(w, "data: {\"choices\":[{\"delta\":{\"content\":\"tok\"}}]}\n")
		w.(http.Flusher).Flush()
		// Hold the stream open until the client gives up
		select {
		case <-r.Context().Done():
		case <-release:
		}
	}))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	events, err := testClient(srv.URL).Complete(ctx, nil)
	require.NoError(t, err)

	require.Equal(t, llm.EventStart, (<-events).Type)
	require.Equal(t, "tok", (<-events).Content)

	cancel()

	// The decoder must shut down and close its channel rather than block on
	// a read that never returns
	deadline := time.After(5 * time.Second)
	for {
		select {
		case _, ok := <-events:
			if !ok {
				return
			}
		case <-deadline:
			t.Fatal("events channel not closed after cancel")
		}
	}
}

func TestClient_Complete_BadStatusFailsCall(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	events, err := testClient(srv.URL).Complete(context.Background(), nil)
	assert.Nil(t, events)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "429")
}

func TestClient_Complete_RequestShape(t *testing.T) {
	var got chatRequest
	var auth string

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		auth = r.Header.Get("Authorization")
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		fmt.Fprint(w, "data: [DONE]\n")
	}))
	defer srv.Close()

	history := []domain.ChatMessage{
		domain.NewChatMessage(domain.RoleUser, "first"),
		domain.NewChatMessage(domain.RoleAssistant, "reply"),
		domain.NewChatMessage(domain.RoleUser, "second"),
	}

	events, err := testClient(srv.URL).Complete(context.Background(), history)
	require.NoError(t, err)
	collect(events)

	assert.Equal(t, "Bearer test-key", auth)
	assert.Equal(t, "test-model", got.Model)
	assert.True(t, got.Stream)
	assert.Equal(t, 64, got.MaxTokens)

	// One system instruction is prepended ahead of the supplied history
	require.Len(t, got.Messages, 4)
	assert.Equal(t, "system", got.Messages[0].Role)
	assert.Equal(t, systemPrompt, got.Messages[0].Content)
	assert.Equal(t, "first", got.Messages[1].Content)
	assert.Equal(t, "second", got.Messages[3].Content)
}
