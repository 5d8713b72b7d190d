package difficulty

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/zhouzirui/ragebot/backend/internal/model/difficulty"
	"github.com/zhouzirui/ragebot/backend/pkg/utils"
)

// Handler 难度列表的HTTP处理器
type Handler struct {
	levels difficulty.Store
}

// New 创建难度处理器
func New(levels difficulty.Store) *Handler {
	return &Handler{levels: levels}
}

// RegisterRoutes 注册难度相关的路由
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/difficulties", h.handleList)
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	utils.RespondJSON(w, http.StatusOK, map[string]any{
		"default": difficulty.Default,
		"levels":  h.levels.List(),
	})
}
