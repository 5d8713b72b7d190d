package ai

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/cloudwego/eino/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/zhouzirui/ragebot/backend/internal/config"
	"github.com/zhouzirui/ragebot/backend/internal/llm/llmtest"
	"github.com/zhouzirui/ragebot/backend/internal/model/chat"
)

func newTestService(t *testing.T, fake *llmtest.Scripted, cfg config.AIConfig) *Service {
	t.Helper()
	svc, err := NewService(context.Background(), fake, cfg, zap.NewNop())
	require.NoError(t, err)
	return svc
}

func TestGenerateReplyWrapsHistoryWithPrompts(t *testing.T) {
	fake := llmtest.New("Lazy.\nScore: 10")
	svc := newTestService(t, fake, config.AIConfig{})

	transcript := []chat.Turn{
		{Role: chat.RoleSystem, Content: "persona"},
		{Role: chat.RoleUser, Content: "I woke up at noon"},
		{Role: chat.RoleAssistant, Content: "Impressive.\nScore: 5"},
	}

	reply, err := svc.GenerateReply(context.Background(), Request{
		LevelPrompt: "Roast hard.",
		Transcript:  transcript,
		Message:     "then I {maybe} went back to bed",
	})
	require.NoError(t, err)
	assert.Equal(t, "Lazy.\nScore: 10", reply.Content)

	input := fake.LastInput()
	require.Len(t, input, 6)
	assert.Equal(t, schema.System, input[0].Role)
	assert.Equal(t, "Roast hard.", input[0].Content)
	assert.Equal(t, "persona", input[1].Content)
	assert.Equal(t, schema.User, input[4].Role)
	assert.Equal(t, "then I {maybe} went back to bed", input[4].Content)
	assert.Equal(t, ScoreInstruction, input[5].Content)
}

func TestStreamReplyRespectsConfig(t *testing.T) {
	fake := llmtest.New("Up at dawn? Sure.\nScore: 60")

	disabled := newTestService(t, fake, config.AIConfig{StreamResponse: false})
	_, err := disabled.StreamReply(context.Background(), Request{Message: "hi"})
	assert.ErrorIs(t, err, ErrStreamingDisabled)

	enabled := newTestService(t, fake, config.AIConfig{StreamResponse: true})
	stream, err := enabled.StreamReply(context.Background(), Request{Message: "hi"})
	require.NoError(t, err)
	defer stream.Close()

	var builder strings.Builder
	for {
		chunk, recvErr := stream.Recv()
		if errors.Is(recvErr, io.EOF) {
			break
		}
		require.NoError(t, recvErr)
		builder.WriteString(chunk.Content)
	}
	assert.Equal(t, "Up at dawn? Sure.\nScore: 60", builder.String())
}

func TestSummarizeFormatsTranscript(t *testing.T) {
	fake := llmtest.New("  You coasted.  ")
	svc := newTestService(t, fake, config.AIConfig{})

	summary, err := svc.Summarize(context.Background(), []chat.Turn{
		{Role: chat.RoleSystem, Content: "persona"},
		{Role: chat.RoleUser, Content: "I did nothing"},
		{Role: chat.RoleAssistant, Content: "Clearly."},
	}, "12.00")
	require.NoError(t, err)
	assert.Equal(t, "You coasted.", summary)

	input := fake.LastInput()
	require.Len(t, input, 2)
	assert.Contains(t, input[1].Content, "12.00/100")
	assert.Contains(t, input[1].Content, "User: I did nothing\nBot: Clearly.")
	assert.NotContains(t, input[1].Content, "persona")
}

func TestGenerateReplyPropagatesModelError(t *testing.T) {
	svc := newTestService(t, llmtest.Failing(errors.New("quota")), config.AIConfig{})

	_, err := svc.GenerateReply(context.Background(), Request{Message: "hi"})
	assert.Error(t, err)
}

func TestBuildHistoryWindow(t *testing.T) {
	turns := []chat.Turn{
		{Role: chat.RoleSystem, Content: "persona"},
		{Role: chat.RoleUser, Content: "u1"},
		{Role: chat.RoleAssistant, Content: "a1"},
		{Role: chat.RoleUser, Content: "u2"},
		{Role: chat.RoleAssistant, Content: "a2"},
	}

	all := buildHistory(turns, "u3", 0)
	assert.Len(t, all, 6)

	windowed := buildHistory(turns, "u3", 3)
	require.Len(t, windowed, 4)
	assert.Equal(t, "persona", windowed[0].Content)
	assert.Equal(t, "u2", windowed[1].Content)
	assert.Equal(t, "a2", windowed[2].Content)
	assert.Equal(t, "u3", windowed[3].Content)
}

func TestFormatTranscriptEmpty(t *testing.T) {
	assert.Equal(t, "(no messages yet)", formatTranscript(nil))
}

func TestNewServiceRequiresModel(t *testing.T) {
	_, err := NewService(context.Background(), nil, config.AIConfig{}, nil)
	assert.Error(t, err)
}
