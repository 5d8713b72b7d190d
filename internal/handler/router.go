package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	authHandler "github.com/zhouzirui/ragebot/backend/internal/handler/auth"
	"github.com/zhouzirui/ragebot/backend/internal/handler/chat"
	difficultyHandler "github.com/zhouzirui/ragebot/backend/internal/handler/difficulty"
	historyHandler "github.com/zhouzirui/ragebot/backend/internal/handler/history"
	"github.com/zhouzirui/ragebot/backend/internal/handler/stream"
	"github.com/zhouzirui/ragebot/backend/internal/handler/ws"
	middlewarePkg "github.com/zhouzirui/ragebot/backend/internal/middleware"
	"github.com/zhouzirui/ragebot/backend/internal/model/difficulty"
	authService "github.com/zhouzirui/ragebot/backend/internal/service/auth"
	historyService "github.com/zhouzirui/ragebot/backend/internal/service/history"
	"github.com/zhouzirui/ragebot/backend/internal/service/roast"
	"github.com/zhouzirui/ragebot/backend/pkg/utils"
)

// Deps are the services behind the HTTP API. Roast may be nil when no model is configured.
type Deps struct {
	Levels         difficulty.Store
	Roast          *roast.Service
	Auth           *authService.Service
	History        *historyService.Service
	AllowedOrigins []string
	Logger         *zap.Logger
}

// NewRouter wires HTTP routes to core services.
func NewRouter(deps Deps) http.Handler {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middlewarePkg.Logger(logger))
	r.Use(middleware.Recoverer)
	r.Use(middlewarePkg.CORS(deps.AllowedOrigins))

	authn := middlewarePkg.NewAuthenticator(deps.Auth, logger)

	r.Get("/healthz", handleHealth)

	r.Route("/api", func(api chi.Router) {
		api.Get("/healthz", handleHealth)

		authHandler.New(deps.Auth, logger).RegisterRoutes(api)
		difficultyHandler.New(deps.Levels).RegisterRoutes(api)

		// Anonymous callers chat too; a valid token moves them to their own conversation.
		api.Group(func(open chi.Router) {
			open.Use(authn.OptionalAuth)
			chat.New(deps.Roast, logger).RegisterRoutes(open)
			stream.New(deps.Roast, logger).RegisterRoutes(open)
			ws.New(deps.Roast, logger).RegisterRoutes(open)
		})

		api.Group(func(private chi.Router) {
			private.Use(authn.RequireAuth)
			historyHandler.New(deps.History, logger).RegisterRoutes(private)
		})
	})

	return r
}

func handleHealth(w http.ResponseWriter, _ *http.Request) {
	utils.RespondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
