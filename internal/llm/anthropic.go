package llm

import (
	"context"
	"fmt"
	"strings"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
	anthropic "github.com/liushuangls/go-anthropic/v2"
)

const defaultAnthropicMaxTokens = 1024

// AnthropicConfig configures the Anthropic messages backend.
type AnthropicConfig struct {
	APIKey      string
	Model       string
	MaxTokens   *int
	Temperature *float32
}

// AnthropicChatModel adapts the Anthropic SDK to eino's chat model interface.
type AnthropicChatModel struct {
	client *anthropic.Client
	cfg    AnthropicConfig
}

var _ model.BaseChatModel = (*AnthropicChatModel)(nil)

// NewAnthropicChatModel creates a chat model backed by the Anthropic messages API.
func NewAnthropicChatModel(cfg AnthropicConfig) (*AnthropicChatModel, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("ANTHROPIC_API_KEY not set")
	}
	if cfg.Model == "" {
		return nil, fmt.Errorf("anthropic model not set")
	}

	return &AnthropicChatModel{
		client: anthropic.NewClient(cfg.APIKey),
		cfg:    cfg,
	}, nil
}

// Generate returns the full completion for input.
func (m *AnthropicChatModel) Generate(ctx context.Context, input []*schema.Message, opts ...model.Option) (*schema.Message, error) {
	options := resolveOptions(m.cfg.Model, m.cfg.MaxTokens, m.cfg.Temperature, opts)

	maxTokens := defaultAnthropicMaxTokens
	if options.MaxTokens != nil && *options.MaxTokens > 0 {
		maxTokens = *options.MaxTokens
	}

	system, messages := toAnthropicMessages(input)
	if len(messages) == 0 {
		return nil, fmt.Errorf("anthropic request needs at least one user message")
	}

	req := anthropic.MessagesRequest{
		Model:       anthropic.Model(*options.Model),
		Messages:    messages,
		MaxTokens:   maxTokens,
		Temperature: options.Temperature,
	}
	if len(system) > 0 {
		req.MultiSystem = system
	}

	resp, err := m.client.CreateMessages(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("anthropic messages: %w", err)
	}

	var text strings.Builder
	for _, block := range resp.Content {
		if block.Type == anthropic.MessagesContentTypeText && block.Text != nil {
			text.WriteString(*block.Text)
		}
	}

	return schema.AssistantMessage(text.String(), nil), nil
}

// Stream delivers the completion as a single chunk.
func (m *AnthropicChatModel) Stream(ctx context.Context, input []*schema.Message, opts ...model.Option) (*schema.StreamReader[*schema.Message], error) {
	msg, err := m.Generate(ctx, input, opts...)
	if err != nil {
		return nil, err
	}
	return schema.StreamReaderFromArray([]*schema.Message{msg}), nil
}

// toAnthropicMessages lifts system turns into the system prompt and folds the
// dialogue into the strictly alternating user/assistant shape the API requires.
func toAnthropicMessages(input []*schema.Message) ([]anthropic.MessageSystemPart, []anthropic.Message) {
	systemTexts, dialogue := splitSystem(input)

	system := make([]anthropic.MessageSystemPart, 0, len(systemTexts))
	for _, text := range systemTexts {
		system = append(system, anthropic.MessageSystemPart{Type: "text", Text: text})
	}

	type folded struct {
		role anthropic.ChatRole
		text []string
	}
	var turns []folded
	for _, msg := range dialogue {
		var role anthropic.ChatRole
		switch msg.Role {
		case schema.User:
			role = anthropic.RoleUser
		case schema.Assistant:
			role = anthropic.RoleAssistant
		default:
			continue
		}
		if len(turns) == 0 && role != anthropic.RoleUser {
			continue
		}
		if n := len(turns); n > 0 && turns[n-1].role == role {
			turns[n-1].text = append(turns[n-1].text, msg.Content)
			continue
		}
		turns = append(turns, folded{role: role, text: []string{msg.Content}})
	}

	messages := make([]anthropic.Message, 0, len(turns))
	for _, turn := range turns {
		messages = append(messages, anthropic.Message{
			Role:    turn.role,
			Content: []anthropic.MessageContent{anthropic.NewTextMessageContent(strings.Join(turn.text, "\n\n"))},
		})
	}
	return system, messages
}
