package service

import (
	"context"

	"github.com/edgegraph/chatd/internal/domain"
	"github.com/edgegraph/chatd/internal/llm"
	"github.com/stretchr/testify/mock"
)

// MockCompleter mocks the llm.Completer interface
type MockCompleter struct {
	mock.Mock
}

func (m *MockCompleter) Complete(ctx context.Context, messages []domain.ChatMessage) (<-chan llm.Event, error) {
	args := m.Called(ctx, messages)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(<-chan llm.Event), args.Error(1)
}

// eventStream scripts a completion stream for one Complete call
func eventStream(events ...llm.Event) <-chan llm.Event {
	ch := make(chan llm.Event)
	go func() {
		defer close(ch)
		for _, ev := range events {
			ch <- ev
		}
	}()
	return ch
}

// drain collects all relayed tokens
func drain(tokens <-chan string) []string {
	var out []string
	for tok := range tokens {
		out = append(out, tok)
	}
	return out
}
