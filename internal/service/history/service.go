package history

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/zhouzirui/ragebot/backend/internal/analysis/score"
	"github.com/zhouzirui/ragebot/backend/internal/model/chat"
	"github.com/zhouzirui/ragebot/backend/internal/model/user"
	chatservice "github.com/zhouzirui/ragebot/backend/internal/service/chat"
)

var (
	ErrInvalidSide  = errors.New("message side must be left or right")
	ErrEmptySession = errors.New("chat session has no messages")
)

// Message is a bubble as submitted by a client.
type Message struct {
	Text string `json:"text"`
	Side string `json:"side"`
}

// Service saves and lists users' chat sessions.
type Service struct {
	users         user.Store
	conversations *chatservice.Service
	now           func() time.Time
	logger        *zap.Logger
}

// NewService creates a history service.
func NewService(users user.Store, conversations *chatservice.Service, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		users:         users,
		conversations: conversations,
		now:           time.Now,
		logger:        logger,
	}
}

// Save stores the messages as a new session of userID.
func (s *Service) Save(ctx context.Context, userID string, messages []Message, averageScore float64, summary string) (chat.Record, error) {
	bubbles := make([]chat.Bubble, 0, len(messages))
	for i, msg := range messages {
		side, ok := chat.ParseSide(msg.Side)
		if !ok {
			return chat.Record{}, fmt.Errorf("%w: message %d has side %q", ErrInvalidSide, i, msg.Side)
		}
		text := strings.TrimSpace(msg.Text)
		if text == "" {
			continue
		}
		bubbles = append(bubbles, chat.Bubble{Text: text, Side: side})
	}

	return s.store(ctx, userID, bubbles, averageScore, summary)
}

// SaveConversation stores owner's live conversation as a new session of userID.
func (s *Service) SaveConversation(ctx context.Context, userID, owner string) (chat.Record, error) {
	session, err := s.conversations.Snapshot(ctx, owner)
	if errors.Is(err, chatservice.ErrSessionNotFound) {
		return chat.Record{}, ErrEmptySession
	}
	if err != nil {
		return chat.Record{}, err
	}

	tracker := chatservice.Tracker(session)
	return s.store(ctx, userID, chatservice.Bubbles(session.Turns), tracker.Average(), "")
}

// List returns userID's sessions in save order.
func (s *Service) List(ctx context.Context, userID string) ([]chat.Record, error) {
	records, err := s.users.Sessions(ctx, userID)
	if err != nil {
		return nil, err
	}
	if records == nil {
		records = []chat.Record{}
	}
	return records, nil
}

func (s *Service) store(ctx context.Context, userID string, bubbles []chat.Bubble, averageScore float64, summary string) (chat.Record, error) {
	if len(bubbles) == 0 {
		return chat.Record{}, ErrEmptySession
	}
	if math.IsNaN(averageScore) {
		averageScore = 0
	}

	record := chat.Record{
		Timestamp:    s.now().UnixMilli(),
		AverageScore: score.Clamp(averageScore),
		Messages:     bubbles,
		Summary:      strings.TrimSpace(summary),
	}
	if err := s.users.AppendSession(ctx, userID, record); err != nil {
		return chat.Record{}, err
	}

	s.logger.Info("chat session saved",
		zap.String("user_id", userID),
		zap.Int("messages", len(bubbles)),
		zap.Float64("average_score", record.AverageScore),
	)
	return record, nil
}
