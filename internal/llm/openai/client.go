package openai

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/edgegraph/chatd/internal/config"
	"github.com/edgegraph/chatd/internal/domain"
	"github.com/edgegraph/chatd/internal/llm"
	"github.com/rs/zerolog/log"
)

// systemPrompt is prepended ahead of every conversation sent upstream
const systemPrompt = "You are a helpful assistant. Answer the user's messages directly and concisely."

// sentinel terminates the upstream event stream and must not be parsed as JSON
const doneSentinel = "[DONE]"

// Client implements llm.Completer against an OpenAI-compatible
// chat/completions endpoint with streaming enabled
type Client struct {
	apiKey      string
	model       string
	baseURL     string
	maxTokens   int
	temperature float64
	client      *http.Client
}

// NewClient creates a streaming completion client
func NewClient(cfg config.UpstreamConfig) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 120 * time.Second
	}
	return &Client{
		apiKey:      cfg.APIKey,
		model:       cfg.Model,
		baseURL:     strings.TrimRight(cfg.BaseURL, "/"),
		maxTokens:   cfg.MaxTokens,
		temperature: cfg.Temperature,
		client:      &http.Client{Timeout: timeout},
	}
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
	MaxTokens   int           `json:"max_tokens,omitempty"`
	Stream      bool          `json:"stream"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type streamChunk struct {
	Error *struct {
		Message string `json:"message"`
	} `json:"error"`
	Choices []struct {
		Delta struct {
			Content string `json:"content"`
		} `json:"delta"`
	} `json:"choices"`
}

// Complete sends the history upstream and decodes the streamed reply.
// The returned channel is unbuffered, so reads from the response body advance
// only as fast as the caller consumes events.
func (c *Client) Complete(ctx context.Context, messages []domain.ChatMessage) (<-chan llm.Event, error) {
	wire := make([]chatMessage, 0, len(messages)+1)
	wire = append(wire, chatMessage{Role: string(domain.RoleSystem), Content: systemPrompt})
	for _, m := range messages {
		wire = append(wire, chatMessage{Role: string(m.Role), Content: m.Content})
	}

	body, err := json.Marshal(chatRequest{
		Model:       c.model,
		Messages:    wire,
		Temperature: c.temperature,
		MaxTokens:   c.maxTokens,
		Stream:      true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("completion request failed: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		return nil, fmt.Errorf("completion endpoint returned status %d", resp.StatusCode)
	}
	if resp.Body == nil {
		return nil, fmt.Errorf("completion endpoint returned no body")
	}

	events := make(chan llm.Event)
	go c.decode(ctx, resp.Body, events)
	return events, nil
}

// decode reads the data:-framed stream line by line. Malformed payloads are
// skipped with a warning; only an explicit upstream error payload terminates
// generation early. A body that reaches EOF without the [DONE] sentinel is
// treated as a normally completed stream: the endpoint closes the body right
// after the sentinel, so a missing sentinel usually means the final lines
// were coalesced, and content already relayed is valid either way.
func (c *Client) decode(ctx context.Context, body io.ReadCloser, events chan<- llm.Event) {
	defer close(events)
	defer body.Close()

	send := func(ev llm.Event) bool {
		select {
		case events <- ev:
			return true
		case <-ctx.Done():
			return false
		}
	}

	started := false
	scanner := bufio.NewScanner(body)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if !strings.HasPrefix(line, "data:") {
			continue
		}

		payload := strings.TrimSpace(strings.TrimPrefix(line, "data:"))
		if payload == doneSentinel {
			send(llm.Event{Type: llm.EventEnd})
			return
		}

		var chunk streamChunk
		if err := json.Unmarshal([]byte(payload), &chunk); err != nil {
			log.Warn().Err(err).Msg("skipping malformed stream payload")
			continue
		}

		if chunk.Error != nil {
			send(llm.Event{Type: llm.EventError, Err: chunk.Error.Message})
			return
		}

		if len(chunk.Choices) == 0 {
			continue
		}
		delta := chunk.Choices[0].Delta.Content
		if delta == "" {
			continue
		}

		if !started {
			started = true
			if !send(llm.Event{Type: llm.EventStart}) {
				return
			}
		}
		if !send(llm.Event{Type: llm.EventContent, Content: delta}) {
			return
		}
	}

	if err := scanner.Err(); err != nil {
		send(llm.Event{Type: llm.EventError, Err: err.Error()})
		return
	}
	send(llm.Event{Type: llm.EventEnd})
}
