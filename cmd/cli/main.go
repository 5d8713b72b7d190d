package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/zhouzirui/ragebot/backend/internal/config"
	"github.com/zhouzirui/ragebot/backend/internal/model/difficulty"
	"github.com/zhouzirui/ragebot/backend/internal/service/ai"
	"github.com/zhouzirui/ragebot/backend/internal/service/chat"
	"github.com/zhouzirui/ragebot/backend/internal/service/roast"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	_ = godotenv.Load()

	aiCfg, err := config.LoadAI()
	if err != nil {
		log.Fatalf("failed to load configuration: %v", err)
	}
	if !aiCfg.Enabled() {
		log.Fatalf("%s credentials are not configured", aiCfg.Provider)
	}

	chatModel, err := aiCfg.NewChatModel(ctx)
	if err != nil {
		log.Fatalf("failed to create chat model: %v", err)
	}

	// The terminal belongs to the conversation; keep the logger quiet.
	logger := zap.NewNop()
	aiService, err := ai.NewService(ctx, chatModel, aiCfg, logger)
	if err != nil {
		log.Fatalf("failed to initialize AI service: %v", err)
	}

	levels := difficulty.NewMemoryStore(difficulty.Seed())
	roastService := roast.NewService(chat.NewService(), aiService, levels, logger)

	repl := NewREPL(roastService, os.Stdin, os.Stdout, MarkdownRenderer())
	if err := repl.Run(ctx); err != nil {
		log.Fatalf("cli error: %v", err)
	}
}
