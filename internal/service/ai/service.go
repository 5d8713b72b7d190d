package ai

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/components/prompt"
	"github.com/cloudwego/eino/compose"
	"github.com/cloudwego/eino/schema"
	"go.uber.org/zap"

	"github.com/zhouzirui/ragebot/backend/internal/config"
	"github.com/zhouzirui/ragebot/backend/internal/model/chat"
)

var ErrStreamingDisabled = errors.New("streaming disabled in configuration")

// Service wraps the chat model in the roast and summary chains.
type Service struct {
	chatModel model.BaseChatModel
	cfg       config.AIConfig
	roast     compose.Runnable[map[string]any, *schema.Message]
	summary   compose.Runnable[map[string]any, *schema.Message]
	logger    *zap.Logger
}

// Request is one roast round: the level prompt, the transcript so far and the new user message.
type Request struct {
	LevelPrompt string
	Transcript  []chat.Turn
	Message     string
}

// NewService compiles both chains around chatModel.
func NewService(ctx context.Context, chatModel model.BaseChatModel, cfg config.AIConfig, logger *zap.Logger) (*Service, error) {
	if chatModel == nil {
		return nil, fmt.Errorf("chat model is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	roastTemplate := prompt.FromMessages(
		schema.FString,
		schema.SystemMessage("{roast}"),
		schema.MessagesPlaceholder("history", false),
		schema.SystemMessage("{scoring}"),
	)
	roast, err := compileChain(ctx, roastTemplate, chatModel)
	if err != nil {
		return nil, fmt.Errorf("failed to compile roast chain: %w", err)
	}

	summaryTemplate := prompt.FromMessages(
		schema.FString,
		schema.SystemMessage(summarySystemPrompt),
		schema.UserMessage(summaryUserPrompt),
	)
	summary, err := compileChain(ctx, summaryTemplate, chatModel)
	if err != nil {
		return nil, fmt.Errorf("failed to compile summary chain: %w", err)
	}

	return &Service{
		chatModel: chatModel,
		cfg:       cfg,
		roast:     roast,
		summary:   summary,
		logger:    logger,
	}, nil
}

func compileChain(ctx context.Context, template prompt.ChatTemplate, chatModel model.BaseChatModel) (compose.Runnable[map[string]any, *schema.Message], error) {
	chain := compose.NewChain[map[string]any, *schema.Message]()
	chain.AppendChatTemplate(template)
	chain.AppendChatModel(chatModel)
	return chain.Compile(ctx)
}

// StreamingEnabled 指示是否开启 SSE 流式输出。
func (s *Service) StreamingEnabled() bool {
	return s.cfg.StreamResponse
}

// GenerateReply runs the roast chain to completion.
func (s *Service) GenerateReply(ctx context.Context, req Request) (*schema.Message, error) {
	response, err := s.roast.Invoke(ctx, s.buildChainInput(req))
	if err != nil {
		return nil, fmt.Errorf("failed to run roast chain: %w", err)
	}

	s.logger.Debug("generated roast", zap.Int("length", len(response.Content)), zap.Int("turns", len(req.Transcript)))
	return response, nil
}

// StreamReply streams roast chunks. Callers must close the reader.
func (s *Service) StreamReply(ctx context.Context, req Request) (*schema.StreamReader[*schema.Message], error) {
	if !s.StreamingEnabled() {
		return nil, ErrStreamingDisabled
	}

	stream, err := s.roast.Stream(ctx, s.buildChainInput(req))
	if err != nil {
		return nil, fmt.Errorf("failed to stream roast chain: %w", err)
	}
	return stream, nil
}

// Summarize explains the average score of a conversation.
func (s *Service) Summarize(ctx context.Context, turns []chat.Turn, average string) (string, error) {
	response, err := s.summary.Invoke(ctx, map[string]any{
		"average":    average,
		"transcript": formatTranscript(turns),
	})
	if err != nil {
		return "", fmt.Errorf("failed to run summary chain: %w", err)
	}
	return strings.TrimSpace(response.Content), nil
}

func (s *Service) buildChainInput(req Request) map[string]any {
	return map[string]any{
		"roast":   req.LevelPrompt,
		"history": buildHistory(req.Transcript, req.Message, s.cfg.HistoryLimit),
		"scoring": ScoreInstruction,
	}
}

// buildHistory keeps the leading system turns, the last limit dialogue turns
// (starting on a user turn) and appends the pending message. limit 0 keeps everything.
func buildHistory(turns []chat.Turn, message string, limit int) []*schema.Message {
	var system, dialogue []chat.Turn
	for _, turn := range turns {
		if turn.Role == chat.RoleSystem {
			system = append(system, turn)
			continue
		}
		dialogue = append(dialogue, turn)
	}

	if limit > 0 && len(dialogue) > limit {
		dialogue = dialogue[len(dialogue)-limit:]
		for len(dialogue) > 0 && dialogue[0].Role != chat.RoleUser {
			dialogue = dialogue[1:]
		}
	}

	history := make([]*schema.Message, 0, len(system)+len(dialogue)+1)
	for _, turn := range system {
		history = append(history, schema.SystemMessage(turn.Content))
	}
	for _, turn := range dialogue {
		switch turn.Role {
		case chat.RoleUser:
			history = append(history, schema.UserMessage(turn.Content))
		case chat.RoleAssistant:
			history = append(history, schema.AssistantMessage(turn.Content, nil))
		}
	}
	return append(history, schema.UserMessage(message))
}
