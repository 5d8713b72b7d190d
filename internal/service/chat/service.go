package chat

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/zhouzirui/ragebot/backend/internal/analysis/score"
	"github.com/zhouzirui/ragebot/backend/internal/model/chat"
	"github.com/zhouzirui/ragebot/backend/internal/model/difficulty"
)

// PersonaPrompt seeds every new conversation.
const PersonaPrompt = "You are a helpful assistant who motivates the user by challenging them to push themselves further. You roast the user based on their actions, providing feedback and ratings."

var (
	ErrOwnerRequired   = errors.New("conversation owner is required")
	ErrSessionNotFound = errors.New("session not found")
	ErrEmptyTurn       = errors.New("turn content is required")
)

// Service encapsulates conversation state management, one conversation per owner.
type Service struct {
	mu       sync.RWMutex
	sessions map[string]*chat.Session
	now      func() time.Time
}

// NewService bootstraps the in-memory conversation store.
func NewService() *Service {
	return &Service{
		sessions: make(map[string]*chat.Session),
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// Open returns the owner's conversation, creating it on first use.
func (s *Service) Open(_ context.Context, owner string) (chat.Session, error) {
	if owner == "" {
		return chat.Session{}, ErrOwnerRequired
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	return snapshot(s.openLocked(owner)), nil
}

// Snapshot returns a copy of an existing conversation.
func (s *Service) Snapshot(_ context.Context, owner string) (chat.Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	session, ok := s.sessions[owner]
	if !ok {
		return chat.Session{}, ErrSessionNotFound
	}
	return snapshot(session), nil
}

// SetDifficulty stores the owner's chosen level. Unknown values become the default.
func (s *Service) SetDifficulty(_ context.Context, owner, raw string) (string, error) {
	if owner == "" {
		return "", ErrOwnerRequired
	}

	level := difficulty.Parse(raw)

	s.mu.Lock()
	defer s.mu.Unlock()
	session := s.openLocked(owner)
	session.Difficulty = level
	session.LastActivity = s.now()
	return level, nil
}

// Commit appends a completed exchange. The user and assistant turns land together,
// and a valid score, when present, is folded into the running average.
func (s *Service) Commit(_ context.Context, owner, userText, assistantText string, value *int) (chat.Session, error) {
	if owner == "" {
		return chat.Session{}, ErrOwnerRequired
	}
	if strings.TrimSpace(userText) == "" || strings.TrimSpace(assistantText) == "" {
		return chat.Session{}, ErrEmptyTurn
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	session := s.openLocked(owner)
	session.Turns = append(session.Turns,
		chat.Turn{Role: chat.RoleUser, Content: userText},
		chat.Turn{Role: chat.RoleAssistant, Content: assistantText},
	)
	if value != nil {
		tracker := trackerOf(session)
		tracker.Add(*value)
		session.TotalScore, session.ScoredTurns = tracker.Total, tracker.Count
	}
	session.LastActivity = s.now()
	return snapshot(session), nil
}

// Transcript returns the owner's turns, starting with the persona system turn.
func (s *Service) Transcript(ctx context.Context, owner string) ([]chat.Turn, error) {
	session, err := s.Open(ctx, owner)
	if err != nil {
		return nil, err
	}
	return session.Turns, nil
}

// Reset discards the owner's conversation, score included.
func (s *Service) Reset(_ context.Context, owner string) {
	s.mu.Lock()
	delete(s.sessions, owner)
	s.mu.Unlock()
}

// Prune drops conversations idle for longer than maxIdle and reports how many were removed.
func (s *Service) Prune(maxIdle time.Duration) int {
	cutoff := s.now().Add(-maxIdle)

	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	for owner, session := range s.sessions {
		if session.LastActivity.Before(cutoff) {
			delete(s.sessions, owner)
			removed++
		}
	}
	return removed
}

// Tracker rebuilds the running score of a session snapshot.
func Tracker(session chat.Session) score.Tracker {
	return score.Tracker{Total: session.TotalScore, Count: session.ScoredTurns}
}

// Bubbles converts a transcript into the client view: system turns are hidden
// and assistant text is shown without its score line.
func Bubbles(turns []chat.Turn) []chat.Bubble {
	bubbles := make([]chat.Bubble, 0, len(turns))
	for _, turn := range turns {
		switch turn.Role {
		case chat.RoleUser:
			bubbles = append(bubbles, chat.Bubble{Text: turn.Content, Side: chat.SideRight})
		case chat.RoleAssistant:
			bubbles = append(bubbles, chat.Bubble{Text: score.Strip(turn.Content), Side: chat.SideLeft})
		}
	}
	return bubbles
}

func (s *Service) openLocked(owner string) *chat.Session {
	if session, ok := s.sessions[owner]; ok {
		return session
	}

	now := s.now()
	session := &chat.Session{
		ID:           uuid.NewString(),
		Owner:        owner,
		Difficulty:   difficulty.Default,
		Turns:        append(make([]chat.Turn, 0, 16), chat.Turn{Role: chat.RoleSystem, Content: PersonaPrompt}),
		CreatedAt:    now,
		LastActivity: now,
	}
	s.sessions[owner] = session
	return session
}

func trackerOf(session *chat.Session) *score.Tracker {
	return &score.Tracker{Total: session.TotalScore, Count: session.ScoredTurns}
}

func snapshot(session *chat.Session) chat.Session {
	copied := *session
	copied.Turns = make([]chat.Turn, len(session.Turns))
	copy(copied.Turns, session.Turns)
	return copied
}
