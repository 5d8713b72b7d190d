package roast

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/cloudwego/eino/schema"
	"go.uber.org/zap"

	"github.com/zhouzirui/ragebot/backend/internal/analysis/score"
	"github.com/zhouzirui/ragebot/backend/internal/model/chat"
	"github.com/zhouzirui/ragebot/backend/internal/model/difficulty"
	"github.com/zhouzirui/ragebot/backend/internal/service/ai"
	chatservice "github.com/zhouzirui/ragebot/backend/internal/service/chat"
)

var (
	ErrEmptyMessage = errors.New("message is required")
	ErrNoReply      = errors.New("no response from the model")
)

// Reply is the outcome of one roast round.
type Reply struct {
	Text         string  `json:"botReply"`
	RawText      string  `json:"-"`
	Score        *int    `json:"score,omitempty"`
	Average      float64 `json:"-"`
	AverageScore string  `json:"averageScore"`
	Band         int     `json:"band"`
	Difficulty   string  `json:"difficulty"`
}

// Summary backs the client's summary popup.
type Summary struct {
	Summary      string `json:"summary"`
	Basic        string `json:"basic"`
	UserCount    int    `json:"userCount"`
	BotCount     int    `json:"botCount"`
	AverageScore string `json:"averageScore"`
	Band         int    `json:"band"`
	BandLabel    string `json:"bandLabel"`
}

// Status reports the running score without touching the model.
type Status struct {
	Difficulty   string `json:"difficulty"`
	Exchanges    int    `json:"exchanges"`
	ScoredTurns  int    `json:"scoredTurns"`
	AverageScore string `json:"averageScore"`
	Band         int    `json:"band"`
}

// Service runs roast rounds: it resolves the level, calls the model, extracts
// the score and commits the exchange to the owner's conversation.
type Service struct {
	conversations *chatservice.Service
	ai            *ai.Service
	levels        difficulty.Store
	logger        *zap.Logger
}

// NewService wires the roast flow together.
func NewService(conversations *chatservice.Service, aiSvc *ai.Service, levels difficulty.Store, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		conversations: conversations,
		ai:            aiSvc,
		levels:        levels,
		logger:        logger,
	}
}

// StreamingEnabled reports whether Stream delivers incremental deltas.
func (s *Service) StreamingEnabled() bool {
	return s.ai.StreamingEnabled()
}

// Exchange sends message to the model and returns the cleaned reply with the updated average.
// An empty difficulty keeps the level already chosen for the conversation.
func (s *Service) Exchange(ctx context.Context, owner, message, level string) (Reply, error) {
	req, chosen, err := s.prepare(ctx, owner, message, level)
	if err != nil {
		return Reply{}, err
	}

	response, err := s.ai.GenerateReply(ctx, req)
	if err != nil {
		return Reply{}, err
	}

	return s.finish(ctx, owner, req.Message, response.Content, chosen)
}

// Stream is Exchange with deltas forwarded to onDelta as they arrive. When streaming
// is disabled the full reply is delivered as a single delta.
func (s *Service) Stream(ctx context.Context, owner, message, level string, onDelta func(string)) (Reply, error) {
	req, chosen, err := s.prepare(ctx, owner, message, level)
	if err != nil {
		return Reply{}, err
	}

	if !s.ai.StreamingEnabled() {
		response, err := s.ai.GenerateReply(ctx, req)
		if err != nil {
			return Reply{}, err
		}
		if onDelta != nil && response.Content != "" {
			onDelta(response.Content)
		}
		return s.finish(ctx, owner, req.Message, response.Content, chosen)
	}

	stream, err := s.ai.StreamReply(ctx, req)
	if err != nil {
		return Reply{}, err
	}
	defer stream.Close()

	chunks := make([]*schema.Message, 0, 16)
	for {
		chunk, recvErr := stream.Recv()
		if errors.Is(recvErr, io.EOF) {
			break
		}
		if recvErr != nil {
			return Reply{}, fmt.Errorf("roast stream: %w", recvErr)
		}
		if chunk == nil {
			continue
		}

		chunks = append(chunks, chunk)
		if onDelta != nil && chunk.Content != "" {
			onDelta(chunk.Content)
		}
	}

	if len(chunks) == 0 {
		return Reply{}, ErrNoReply
	}
	response, err := schema.ConcatMessages(chunks)
	if err != nil {
		return Reply{}, fmt.Errorf("roast stream: %w", err)
	}

	return s.finish(ctx, owner, req.Message, response.Content, chosen)
}

// Summary explains the owner's current score.
func (s *Service) Summary(ctx context.Context, owner string) (Summary, error) {
	session, err := s.conversations.Open(ctx, owner)
	if err != nil {
		return Summary{}, err
	}

	tracker := chatservice.Tracker(session)
	bubbles := chatservice.Bubbles(session.Turns)
	result := Summary{
		AverageScore: tracker.Format(),
		Band:         score.Band(tracker.Average()),
	}
	result.BandLabel = score.BandLabel(result.Band)
	for _, bubble := range bubbles {
		if bubble.Side == chat.SideRight {
			result.UserCount++
		} else {
			result.BotCount++
		}
	}
	result.Basic = fmt.Sprintf("You have sent %d messages and received %d responses.\nYour current productivity score is %s/100.",
		result.UserCount, result.BotCount, result.AverageScore)

	if len(bubbles) == 0 {
		result.Summary = "No summary available."
		return result, nil
	}

	summary, err := s.ai.Summarize(ctx, session.Turns, result.AverageScore)
	if err != nil {
		return Summary{}, err
	}
	if summary == "" {
		summary = "No summary available."
	}
	result.Summary = summary
	return result, nil
}

// Status returns the running average for owner.
func (s *Service) Status(ctx context.Context, owner string) (Status, error) {
	session, err := s.conversations.Open(ctx, owner)
	if err != nil {
		return Status{}, err
	}

	tracker := chatservice.Tracker(session)
	return Status{
		Difficulty:   session.Difficulty,
		Exchanges:    (len(session.Turns) - 1) / 2,
		ScoredTurns:  tracker.Count,
		AverageScore: tracker.Format(),
		Band:         score.Band(tracker.Average()),
	}, nil
}

// SetDifficulty changes the level used for the owner's next rounds.
func (s *Service) SetDifficulty(ctx context.Context, owner, level string) (string, error) {
	return s.conversations.SetDifficulty(ctx, owner, level)
}

// Reset starts the owner over with an empty transcript and no score.
func (s *Service) Reset(ctx context.Context, owner string) {
	s.conversations.Reset(ctx, owner)
	s.logger.Info("conversation reset", zap.String("owner", owner))
}

func (s *Service) prepare(ctx context.Context, owner, message, level string) (ai.Request, difficulty.Level, error) {
	message = strings.TrimSpace(message)
	if message == "" {
		return ai.Request{}, difficulty.Level{}, ErrEmptyMessage
	}

	session, err := s.conversations.Open(ctx, owner)
	if err != nil {
		return ai.Request{}, difficulty.Level{}, err
	}

	chosen := session.Difficulty
	if strings.TrimSpace(level) != "" {
		if chosen, err = s.conversations.SetDifficulty(ctx, owner, level); err != nil {
			return ai.Request{}, difficulty.Level{}, err
		}
	}
	resolved := difficulty.Resolve(s.levels, chosen)

	return ai.Request{
		LevelPrompt: resolved.Prompt,
		Transcript:  session.Turns,
		Message:     message,
	}, resolved, nil
}

func (s *Service) finish(ctx context.Context, owner, message, content string, level difficulty.Level) (Reply, error) {
	if strings.TrimSpace(content) == "" {
		return Reply{}, ErrNoReply
	}

	var value *int
	if extracted, ok := score.Extract(content); ok {
		value = &extracted
	}

	session, err := s.conversations.Commit(ctx, owner, message, content, value)
	if err != nil {
		return Reply{}, err
	}

	tracker := chatservice.Tracker(session)
	if value == nil {
		s.logger.Debug("reply carried no score", zap.String("owner", owner))
	}

	return Reply{
		Text:         score.Strip(content),
		RawText:      content,
		Score:        value,
		Average:      tracker.Average(),
		AverageScore: tracker.Format(),
		Band:         score.Band(tracker.Average()),
		Difficulty:   level.ID,
	}, nil
}
