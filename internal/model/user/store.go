package user

import (
	"context"
	"errors"

	"github.com/zhouzirui/ragebot/backend/internal/model/chat"
)

var (
	ErrUserNotFound = errors.New("user not found")
	ErrEmailTaken   = errors.New("email already registered")
)

// Store persists accounts and their chat history.
type Store interface {
	Create(ctx context.Context, u User) (User, error)
	FindByEmail(ctx context.Context, email string) (User, error)
	FindByID(ctx context.Context, id string) (User, error)
	AppendSession(ctx context.Context, userID string, record chat.Record) error
	Sessions(ctx context.Context, userID string) ([]chat.Record, error)
	Close() error
}
