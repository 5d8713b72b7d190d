package llm

import (
	"testing"

	"github.com/cloudwego/eino/schema"
	anthropic "github.com/liushuangls/go-anthropic/v2"
	openai "github.com/meguminnnnnnnnn/go-openai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestToOpenAIMessagesKeepsOrderAndRoles(t *testing.T) {
	input := []*schema.Message{
		schema.SystemMessage("roast"),
		schema.UserMessage("I slept in"),
		schema.AssistantMessage("Of course you did.", nil),
		nil,
		schema.SystemMessage("Score: 70"),
	}

	got := toOpenAIMessages(input)
	require.Len(t, got, 4)
	assert.Equal(t, openai.ChatMessageRoleSystem, got[0].Role)
	assert.Equal(t, openai.ChatMessageRoleUser, got[1].Role)
	assert.Equal(t, openai.ChatMessageRoleAssistant, got[2].Role)
	assert.Equal(t, "Score: 70", got[3].Content)
}

func TestToAnthropicMessagesFoldsTurns(t *testing.T) {
	input := []*schema.Message{
		schema.SystemMessage("persona"),
		schema.AssistantMessage("orphan reply", nil),
		schema.UserMessage("first"),
		schema.UserMessage("second"),
		schema.AssistantMessage("answer", nil),
		schema.SystemMessage("score rule"),
	}

	system, messages := toAnthropicMessages(input)
	require.Len(t, system, 2)
	assert.Equal(t, "persona", system[0].Text)
	assert.Equal(t, "score rule", system[1].Text)

	require.Len(t, messages, 2)
	assert.Equal(t, anthropic.RoleUser, messages[0].Role)
	require.NotNil(t, messages[0].Content[0].Text)
	assert.Equal(t, "first\n\nsecond", *messages[0].Content[0].Text)
	assert.Equal(t, anthropic.RoleAssistant, messages[1].Role)
}

func TestConstructorsRequireKeys(t *testing.T) {
	_, err := NewOpenAIChatModel(OpenAIConfig{Model: "gpt-3.5-turbo"})
	assert.Error(t, err)

	_, err = NewAnthropicChatModel(AnthropicConfig{APIKey: "key"})
	assert.Error(t, err)

	m, err := NewOpenAIChatModel(OpenAIConfig{APIKey: "key", Model: "gpt-3.5-turbo"})
	require.NoError(t, err)
	req := m.buildRequest([]*schema.Message{schema.UserMessage("hi")}, nil)
	assert.Equal(t, "gpt-3.5-turbo", req.Model)
	assert.Nil(t, req.Temperature)
}
