package auth

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/zhouzirui/ragebot/backend/internal/model/user"
	authService "github.com/zhouzirui/ragebot/backend/internal/service/auth"
	"github.com/zhouzirui/ragebot/backend/pkg/utils"
)

// Handler 注册与登录的HTTP处理器
type Handler struct {
	authSvc *authService.Service
	logger  *zap.Logger
}

// New 创建认证处理器
func New(authSvc *authService.Service, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{authSvc: authSvc, logger: logger}
}

// RegisterRoutes 注册认证相关的路由
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Post("/signup", h.handleSignup)
	r.Post("/login", h.handleLogin)
}

type credentials struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// handleSignup 创建新用户
func (h *Handler) handleSignup(w http.ResponseWriter, r *http.Request) {
	var payload credentials
	if err := utils.DecodeJSON(w, r, &payload); err != nil {
		utils.RespondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	created, err := h.authSvc.Signup(r.Context(), payload.Email, payload.Password)
	switch {
	case errors.Is(err, authService.ErrInvalidInput):
		utils.RespondError(w, http.StatusBadRequest, err.Error())
		return
	case errors.Is(err, user.ErrEmailTaken):
		utils.RespondError(w, http.StatusConflict, "User already exists")
		return
	case err != nil:
		h.logger.Error("signup failed", zap.Error(err))
		utils.RespondError(w, http.StatusInternalServerError, "Error creating user")
		return
	}

	utils.RespondJSON(w, http.StatusCreated, map[string]string{
		"message": "User created successfully",
		"id":      created.ID,
	})
}

// handleLogin 校验凭证并签发令牌
func (h *Handler) handleLogin(w http.ResponseWriter, r *http.Request) {
	var payload credentials
	if err := utils.DecodeJSON(w, r, &payload); err != nil {
		utils.RespondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	token, err := h.authSvc.Login(r.Context(), payload.Email, payload.Password)
	switch {
	case errors.Is(err, authService.ErrInvalidCredentials):
		utils.RespondError(w, http.StatusUnauthorized, "Invalid credentials")
		return
	case err != nil:
		h.logger.Error("login failed", zap.Error(err))
		utils.RespondError(w, http.StatusInternalServerError, "Error logging in")
		return
	}

	utils.RespondJSON(w, http.StatusOK, map[string]string{"token": token})
}
