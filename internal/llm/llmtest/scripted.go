// Package llmtest provides a deterministic chat model for tests.
package llmtest

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
)

// Scripted replays canned replies in order, repeating the last one once exhausted.
type Scripted struct {
	mu      sync.Mutex
	replies []string
	err     error
	calls   [][]*schema.Message

	delay     time.Duration
	streamErr error
}

var _ model.BaseChatModel = (*Scripted)(nil)

// New returns a model answering with replies.
func New(replies ...string) *Scripted {
	return &Scripted{replies: replies}
}

// Failing returns a model whose every call fails with err.
func Failing(err error) *Scripted {
	return &Scripted{err: err}
}

// WithDelay makes every call wait d before answering.
func (s *Scripted) WithDelay(d time.Duration) *Scripted {
	s.delay = d
	return s
}

// BreakStreamWith makes Stream emit the reply chunks and then fail with err.
func (s *Scripted) BreakStreamWith(err error) *Scripted {
	s.streamErr = err
	return s
}

// Generate implements model.BaseChatModel.
func (s *Scripted) Generate(ctx context.Context, input []*schema.Message, _ ...model.Option) (*schema.Message, error) {
	reply, err := s.next(ctx, input)
	if err != nil {
		return nil, err
	}
	return schema.AssistantMessage(reply, nil), nil
}

// Stream implements model.BaseChatModel, emitting the reply word by word.
func (s *Scripted) Stream(ctx context.Context, input []*schema.Message, _ ...model.Option) (*schema.StreamReader[*schema.Message], error) {
	reply, err := s.next(ctx, input)
	if err != nil {
		return nil, err
	}

	parts := strings.SplitAfter(reply, " ")
	chunks := make([]*schema.Message, 0, len(parts))
	for _, part := range parts {
		if part == "" {
			continue
		}
		chunks = append(chunks, schema.AssistantMessage(part, nil))
	}
	if s.streamErr == nil {
		return schema.StreamReaderFromArray(chunks), nil
	}

	sr, sw := schema.Pipe[*schema.Message](len(chunks) + 1)
	for _, chunk := range chunks {
		sw.Send(chunk, nil)
	}
	sw.Send(nil, s.streamErr)
	sw.Close()
	return sr, nil
}

// Calls returns the message lists the model received.
func (s *Scripted) Calls() [][]*schema.Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([][]*schema.Message(nil), s.calls...)
}

// LastInput returns the most recent message list, or nil.
func (s *Scripted) LastInput() []*schema.Message {
	calls := s.Calls()
	if len(calls) == 0 {
		return nil
	}
	return calls[len(calls)-1]
}

func (s *Scripted) next(ctx context.Context, input []*schema.Message) (string, error) {
	if s.delay > 0 {
		select {
		case <-time.After(s.delay):
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.calls = append(s.calls, append([]*schema.Message(nil), input...))
	if s.err != nil {
		return "", s.err
	}
	if len(s.replies) == 0 {
		return "", nil
	}

	idx := len(s.calls) - 1
	if idx >= len(s.replies) {
		idx = len(s.replies) - 1
	}
	return s.replies[idx], nil
}
