package telegram

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
	"go.uber.org/zap"

	"github.com/zhouzirui/ragebot/backend/internal/service/roast"
)

const greeting = "Welcome to RageBot. Tell me what you did today and I'll rate your productivity from 0 to 100.\n\n" +
	"/easy /medium /hard pick how hard I roast you\n/score shows your average\n/summary explains it\n/reset starts over"

// Handler answers Telegram chats with roasts. Each chat is its own conversation.
type Handler struct {
	roastSvc *roast.Service
	logger   *zap.Logger
}

// New creates a Telegram handler.
func New(roastSvc *roast.Service, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{roastSvc: roastSvc, logger: logger}
}

// Register routes every text message of b to Handle, commands included.
func (h *Handler) Register(b *bot.Bot) {
	b.RegisterHandler(bot.HandlerTypeMessageText, "", bot.MatchTypePrefix, h.Handle)
}

// Handle replies to one update.
func (h *Handler) Handle(ctx context.Context, b *bot.Bot, update *models.Update) {
	if update == nil || update.Message == nil || update.Message.Text == "" {
		return
	}

	chatID := update.Message.Chat.ID
	text := h.Reply(ctx, chatID, update.Message.Text)
	if text == "" {
		return
	}

	if _, err := b.SendMessage(ctx, &bot.SendMessageParams{ChatID: chatID, Text: text}); err != nil {
		h.logger.Warn("telegram send failed", zap.Int64("chat_id", chatID), zap.Error(err))
	}
}

// Reply computes the answer to text sent in chatID.
func (h *Handler) Reply(ctx context.Context, chatID int64, text string) string {
	owner := Owner(chatID)
	command := strings.ToLower(strings.TrimSpace(text))
	// Commands may carry the bot name in groups: /score@ragebot.
	if at := strings.Index(command, "@"); strings.HasPrefix(command, "/") && at > 0 {
		command = command[:at]
	}

	switch command {
	case "/start":
		return greeting
	case "/easy", "/medium", "/hard":
		level, err := h.roastSvc.SetDifficulty(ctx, owner, strings.TrimPrefix(command, "/"))
		if err != nil {
			return h.failure(owner, err)
		}
		return fmt.Sprintf("Difficulty set to %s.", level)
	case "/reset":
		h.roastSvc.Reset(ctx, owner)
		return "Conversation cleared. Your score is back to 0."
	case "/score":
		status, err := h.roastSvc.Status(ctx, owner)
		if err != nil {
			return h.failure(owner, err)
		}
		return fmt.Sprintf("Average productivity score: %s/100 over %d rated messages.", status.AverageScore, status.ScoredTurns)
	case "/summary":
		summary, err := h.roastSvc.Summary(ctx, owner)
		if err != nil {
			return h.failure(owner, err)
		}
		return summary.Basic + "\n\n" + summary.Summary
	}

	reply, err := h.roastSvc.Exchange(ctx, owner, text, "")
	if err != nil {
		if errors.Is(err, roast.ErrEmptyMessage) {
			return ""
		}
		return h.failure(owner, err)
	}
	return fmt.Sprintf("%s\n\nAverage productivity score: %s/100", reply.Text, reply.AverageScore)
}

// Owner is the conversation key of a Telegram chat.
func Owner(chatID int64) string {
	return "tg:" + strconv.FormatInt(chatID, 10)
}

func (h *Handler) failure(owner string, err error) string {
	h.logger.Error("telegram roast failed", zap.String("owner", owner), zap.Error(err))
	return "Something went wrong talking to the model. Try again in a moment."
}
