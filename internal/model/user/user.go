package user

import (
	"time"

	"github.com/zhouzirui/ragebot/backend/internal/model/chat"
)

// User is an account together with its saved chat history.
type User struct {
	ID           string        `json:"id"`
	Email        string        `json:"email"`
	PasswordHash string        `json:"password"`
	CreatedAt    time.Time     `json:"createdAt"`
	ChatHistory  []chat.Record `json:"chatHistory"`
}
