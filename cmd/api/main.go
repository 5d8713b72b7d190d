package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/zhouzirui/ragebot/backend/internal/config"
	"github.com/zhouzirui/ragebot/backend/internal/handler"
	"github.com/zhouzirui/ragebot/backend/internal/handler/telegram"
	"github.com/zhouzirui/ragebot/backend/internal/logging"
	"github.com/zhouzirui/ragebot/backend/internal/model/difficulty"
	"github.com/zhouzirui/ragebot/backend/internal/repository"
	"github.com/zhouzirui/ragebot/backend/internal/service/ai"
	"github.com/zhouzirui/ragebot/backend/internal/service/auth"
	"github.com/zhouzirui/ragebot/backend/internal/service/chat"
	"github.com/zhouzirui/ragebot/backend/internal/service/history"
	"github.com/zhouzirui/ragebot/backend/internal/service/roast"
)

const (
	conversationIdleTTL = 24 * time.Hour
	pruneInterval       = 10 * time.Minute
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Load .env file
	envErr := godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load configuration: %v", err)
	}

	logger, err := logging.New(cfg.Log)
	if err != nil {
		log.Fatalf("failed to build logger: %v", err)
	}
	defer logger.Sync()
	zap.ReplaceGlobals(logger)

	if envErr != nil {
		logger.Info("no .env file loaded, using system environment only", zap.Error(envErr))
	}
	if cfg.Auth.UsingDevSecret() {
		logger.Warn("JWT_SECRET not set, using the development secret")
	}

	store, err := repository.Open(ctx, cfg.Storage)
	if err != nil {
		logger.Fatal("failed to open user store", zap.String("driver", cfg.Storage.Driver), zap.Error(err))
	}
	defer store.Close()
	logger.Info("user store ready", zap.String("driver", cfg.Storage.Driver))

	levels := difficulty.NewMemoryStore(difficulty.Seed())
	conversations := chat.NewService()

	// Initialize AI service
	var roastService *roast.Service
	if cfg.AI.Enabled() {
		roastService, err = newRoastService(ctx, cfg.AI, conversations, levels, logger)
		if err != nil {
			logger.Warn("continuing without AI functionality", zap.Error(err))
		} else {
			logger.Info("AI service initialized",
				zap.String("provider", cfg.AI.Provider),
				zap.String("model", cfg.AI.Model),
				zap.Bool("stream", cfg.AI.StreamResponse),
			)
		}
	} else {
		logger.Warn("model credentials not configured, roast endpoints disabled", zap.String("provider", cfg.AI.Provider))
	}

	authService := auth.NewService(store, cfg.Auth, logger)
	historyService := history.NewService(store, conversations, logger)

	if cfg.Telegram.Enabled() && roastService != nil {
		startTelegram(ctx, cfg.Telegram, roastService, logger)
	}

	go pruneConversations(ctx, conversations, logger)

	router := handler.NewRouter(handler.Deps{
		Levels:         levels,
		Roast:          roastService,
		Auth:           authService,
		History:        historyService,
		AllowedOrigins: cfg.Server.AllowedOrigins,
		Logger:         logger,
	})

	startServer(ctx, cfg.Server, router, logger)
}

func newRoastService(ctx context.Context, cfg config.AIConfig, conversations *chat.Service, levels difficulty.Store, logger *zap.Logger) (*roast.Service, error) {
	chatModel, err := cfg.NewChatModel(ctx)
	if err != nil {
		return nil, err
	}

	aiService, err := ai.NewService(ctx, chatModel, cfg, logger)
	if err != nil {
		return nil, err
	}
	return roast.NewService(conversations, aiService, levels, logger), nil
}

func startTelegram(ctx context.Context, cfg config.TelegramConfig, roastService *roast.Service, logger *zap.Logger) {
	b, err := bot.New(cfg.Token, bot.WithDefaultHandler(func(ctx context.Context, b *bot.Bot, u *models.Update) {}))
	if err != nil {
		logger.Error("failed to start telegram bot", zap.Error(err))
		return
	}

	telegram.New(roastService, logger.Named("telegram")).Register(b)
	go b.Start(ctx)
	logger.Info("telegram bot started")
}

func pruneConversations(ctx context.Context, conversations *chat.Service, logger *zap.Logger) {
	ticker := time.NewTicker(pruneInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if removed := conversations.Prune(conversationIdleTTL); removed > 0 {
				logger.Debug("pruned idle conversations", zap.Int("removed", removed))
			}
		}
	}
}

func startServer(ctx context.Context, serverCfg config.ServerConfig, router http.Handler, logger *zap.Logger) {
	addr := serverCfg.Addr
	srv := &http.Server{
		Addr:              addr,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	logger.Info("RageBot backend listening", zap.String("addr", addr))
	if err := runServer(ctx, srv); err != nil {
		logger.Fatal("server error", zap.Error(err))
	}
}

func runServer(ctx context.Context, srv *http.Server) error {
	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
		err := <-errCh
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}
