package history

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/zhouzirui/ragebot/backend/internal/middleware"
	"github.com/zhouzirui/ragebot/backend/internal/model/user"
	historyService "github.com/zhouzirui/ragebot/backend/internal/service/history"
	"github.com/zhouzirui/ragebot/backend/pkg/utils"
)

// Handler 聊天记录的HTTP处理器，路由需挂在 RequireAuth 之后。
type Handler struct {
	historySvc *historyService.Service
	logger     *zap.Logger
}

// New 创建聊天记录处理器
func New(historySvc *historyService.Service, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{historySvc: historySvc, logger: logger}
}

// RegisterRoutes 注册聊天记录相关的路由
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Post("/saveChat", h.handleSaveChat)
	r.Post("/saveConversation", h.handleSaveConversation)
	r.Get("/chatLogs", h.handleChatLogs)
}

// handleSaveChat 保存客户端提交的对话
func (h *Handler) handleSaveChat(w http.ResponseWriter, r *http.Request) {
	identity, ok := middleware.IdentityFrom(r.Context())
	if !ok {
		utils.RespondError(w, http.StatusUnauthorized, "missing token")
		return
	}

	var payload struct {
		Messages     []historyService.Message `json:"messages"`
		AverageScore float64                  `json:"averageScore"`
		Summary      string                   `json:"summary"`
	}
	if err := utils.DecodeJSON(w, r, &payload); err != nil {
		utils.RespondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	record, err := h.historySvc.Save(r.Context(), identity.UserID, payload.Messages, payload.AverageScore, payload.Summary)
	if err != nil {
		h.respondError(w, identity.UserID, err)
		return
	}

	utils.RespondJSON(w, http.StatusCreated, map[string]any{
		"message": "Chat saved successfully",
		"session": record,
	})
}

// handleSaveConversation 保存服务端记录的当前对话
func (h *Handler) handleSaveConversation(w http.ResponseWriter, r *http.Request) {
	identity, ok := middleware.IdentityFrom(r.Context())
	if !ok {
		utils.RespondError(w, http.StatusUnauthorized, "missing token")
		return
	}

	record, err := h.historySvc.SaveConversation(r.Context(), identity.UserID, middleware.Owner(r))
	if err != nil {
		h.respondError(w, identity.UserID, err)
		return
	}

	utils.RespondJSON(w, http.StatusCreated, map[string]any{"session": record})
}

// handleChatLogs 列出历史对话
func (h *Handler) handleChatLogs(w http.ResponseWriter, r *http.Request) {
	identity, ok := middleware.IdentityFrom(r.Context())
	if !ok {
		utils.RespondError(w, http.StatusUnauthorized, "missing token")
		return
	}

	records, err := h.historySvc.List(r.Context(), identity.UserID)
	if err != nil {
		h.respondError(w, identity.UserID, err)
		return
	}

	utils.RespondJSON(w, http.StatusOK, map[string]any{"chatHistory": records})
}

func (h *Handler) respondError(w http.ResponseWriter, userID string, err error) {
	switch {
	case errors.Is(err, historyService.ErrInvalidSide), errors.Is(err, historyService.ErrEmptySession):
		utils.RespondError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, user.ErrUserNotFound):
		utils.RespondError(w, http.StatusNotFound, "User not found")
	default:
		h.logger.Error("chat history failed", zap.String("user_id", userID), zap.Error(err))
		utils.RespondError(w, http.StatusInternalServerError, "Error saving chat")
	}
}
