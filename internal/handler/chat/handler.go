package chat

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/zhouzirui/ragebot/backend/internal/middleware"
	chatService "github.com/zhouzirui/ragebot/backend/internal/service/chat"
	"github.com/zhouzirui/ragebot/backend/internal/service/roast"
	"github.com/zhouzirui/ragebot/backend/pkg/utils"
)

// Handler 吐槽对话的HTTP处理器
type Handler struct {
	roastSvc *roast.Service
	logger   *zap.Logger
}

// New 创建聊天处理器。roastSvc 为 nil 时模型相关接口返回 503。
func New(roastSvc *roast.Service, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{
		roastSvc: roastSvc,
		logger:   logger,
	}
}

// RegisterRoutes 注册聊天相关的路由
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Post("/ragebot", h.handleRagebot)
	r.Post("/summary", h.handleSummary)
	r.Post("/reset", h.handleReset)
	r.Get("/status", h.handleStatus)
}

// handleRagebot 处理一轮吐槽
func (h *Handler) handleRagebot(w http.ResponseWriter, r *http.Request) {
	if !h.available(w) {
		return
	}

	var payload struct {
		UserMessage string `json:"userMessage"`
		Difficulty  string `json:"difficulty"`
	}
	if err := utils.DecodeJSON(w, r, &payload); err != nil {
		utils.RespondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	owner := middleware.Owner(r)
	reply, err := h.roastSvc.Exchange(r.Context(), owner, payload.UserMessage, payload.Difficulty)
	if err != nil {
		h.respondRoastError(w, owner, err)
		return
	}

	utils.RespondJSON(w, http.StatusOK, reply)
}

// handleSummary 生成当前对话的总结
func (h *Handler) handleSummary(w http.ResponseWriter, r *http.Request) {
	if !h.available(w) {
		return
	}

	owner := middleware.Owner(r)
	summary, err := h.roastSvc.Summary(r.Context(), owner)
	if err != nil {
		h.respondRoastError(w, owner, err)
		return
	}

	utils.RespondJSON(w, http.StatusOK, summary)
}

// handleReset 清空当前对话
func (h *Handler) handleReset(w http.ResponseWriter, r *http.Request) {
	if !h.available(w) {
		return
	}

	h.roastSvc.Reset(r.Context(), middleware.Owner(r))
	utils.RespondJSON(w, http.StatusOK, map[string]string{"status": "reset"})
}

// handleStatus 返回当前难度与平均分
func (h *Handler) handleStatus(w http.ResponseWriter, r *http.Request) {
	if !h.available(w) {
		return
	}

	owner := middleware.Owner(r)
	status, err := h.roastSvc.Status(r.Context(), owner)
	if err != nil {
		h.respondRoastError(w, owner, err)
		return
	}

	utils.RespondJSON(w, http.StatusOK, status)
}

func (h *Handler) available(w http.ResponseWriter) bool {
	if h.roastSvc == nil {
		utils.RespondError(w, http.StatusServiceUnavailable, "ai service unavailable")
		return false
	}
	return true
}

func (h *Handler) respondRoastError(w http.ResponseWriter, owner string, err error) {
	switch {
	case errors.Is(err, roast.ErrEmptyMessage):
		utils.RespondError(w, http.StatusBadRequest, "User message is required")
	case errors.Is(err, chatService.ErrOwnerRequired):
		utils.RespondError(w, http.StatusBadRequest, err.Error())
	default:
		h.logger.Error("roast failed", zap.String("owner", owner), zap.Error(err))
		utils.RespondError(w, http.StatusBadGateway, "Failed to get a response from the model")
	}
}
