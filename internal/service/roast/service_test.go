package roast

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/zhouzirui/ragebot/backend/internal/config"
	"github.com/zhouzirui/ragebot/backend/internal/llm/llmtest"
	"github.com/zhouzirui/ragebot/backend/internal/model/difficulty"
	"github.com/zhouzirui/ragebot/backend/internal/service/ai"
	chatservice "github.com/zhouzirui/ragebot/backend/internal/service/chat"
)

func newRoastService(t *testing.T, fake *llmtest.Scripted, stream bool) (*Service, *chatservice.Service) {
	t.Helper()
	aiSvc, err := ai.NewService(context.Background(), fake, config.AIConfig{StreamResponse: stream}, zap.NewNop())
	require.NoError(t, err)

	conversations := chatservice.NewService()
	return NewService(conversations, aiSvc, difficulty.NewMemoryStore(difficulty.Seed()), zap.NewNop()), conversations
}

func TestExchangeExtractsScoreAndAverages(t *testing.T) {
	fake := llmtest.New("You went to the gym? Shocking.\nScore: 70", "Netflix again.\nScore: 45")
	svc, conversations := newRoastService(t, fake, false)
	ctx := context.Background()

	first, err := svc.Exchange(ctx, "user:1", "I went to the gym", "hard")
	require.NoError(t, err)
	assert.Equal(t, "You went to the gym? Shocking.", first.Text)
	require.NotNil(t, first.Score)
	assert.Equal(t, 70, *first.Score)
	assert.Equal(t, "70.00", first.AverageScore)
	assert.Equal(t, "hard", first.Difficulty)
	assert.Equal(t, 4, first.Band)

	second, err := svc.Exchange(ctx, "user:1", "then Netflix", "")
	require.NoError(t, err)
	assert.Equal(t, "57.50", second.AverageScore)
	assert.Equal(t, "hard", second.Difficulty, "empty difficulty keeps the previous level")

	input := fake.LastInput()
	assert.Equal(t, "Roast the user hard, but make it clear they can do better and encourage improvement.", input[0].Content)
	assert.Equal(t, chatservice.PersonaPrompt, input[1].Content)

	turns, err := conversations.Transcript(ctx, "user:1")
	require.NoError(t, err)
	assert.Len(t, turns, 5)
	assert.Equal(t, "Netflix again.\nScore: 45", turns[4].Content, "transcript keeps the raw reply")
}

func TestExchangeWithoutScoreKeepsAverage(t *testing.T) {
	fake := llmtest.New("Fine.\nScore: 50", "I have no words.")
	svc, _ := newRoastService(t, fake, false)
	ctx := context.Background()

	_, err := svc.Exchange(ctx, "user:1", "cleaned my room", "easy")
	require.NoError(t, err)

	reply, err := svc.Exchange(ctx, "user:1", "ate a salad", "easy")
	require.NoError(t, err)
	assert.Nil(t, reply.Score)
	assert.Equal(t, "50.00", reply.AverageScore)
	assert.Equal(t, "I have no words.", reply.Text)
}

func TestExchangeUnknownDifficultyFallsBackToMedium(t *testing.T) {
	svc, _ := newRoastService(t, llmtest.New("ok\nScore: 10"), false)

	reply, err := svc.Exchange(context.Background(), "anon:x", "hello", "brutal")
	require.NoError(t, err)
	assert.Equal(t, "medium", reply.Difficulty)
}

func TestExchangeErrors(t *testing.T) {
	ctx := context.Background()

	svc, _ := newRoastService(t, llmtest.New("unused"), false)
	_, err := svc.Exchange(ctx, "user:1", "   ", "easy")
	assert.ErrorIs(t, err, ErrEmptyMessage)

	empty, conversations := newRoastService(t, llmtest.New("   "), false)
	_, err = empty.Exchange(ctx, "user:1", "hi", "easy")
	assert.ErrorIs(t, err, ErrNoReply)
	turns, _ := conversations.Transcript(ctx, "user:1")
	assert.Len(t, turns, 1, "failed rounds must not leave a dangling user turn")

	failing, failedConversations := newRoastService(t, llmtest.Failing(errors.New("boom")), false)
	_, err = failing.Exchange(ctx, "user:1", "hi", "easy")
	assert.Error(t, err)
	turns, _ = failedConversations.Transcript(ctx, "user:1")
	assert.Len(t, turns, 1, "model errors must not leave a dangling user turn")
}

func TestExchangeConcurrentSameOwner(t *testing.T) {
	svc, conversations := newRoastService(t, llmtest.New("ok\nScore: 50"), false)
	ctx := context.Background()
	const workers = 16

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := svc.Exchange(ctx, "user:1", fmt.Sprintf("task %d", i), "")
			assert.NoError(t, err)
		}(i)
	}
	wg.Wait()

	session, err := conversations.Snapshot(ctx, "user:1")
	require.NoError(t, err)
	require.Len(t, session.Turns, 1+2*workers)
	assert.Equal(t, workers, session.ScoredTurns)
	assert.Equal(t, "50.00", chatservice.Tracker(session).Format())
	for i := 1; i < len(session.Turns); i += 2 {
		assert.Equal(t, "user", string(session.Turns[i].Role))
		assert.Equal(t, "assistant", string(session.Turns[i+1].Role))
	}
}

func TestStreamForwardsDeltas(t *testing.T) {
	svc, _ := newRoastService(t, llmtest.New("Three push-ups is not a workout.\nScore: 15"), true)

	var deltas []string
	reply, err := svc.Stream(context.Background(), "user:1", "did three push-ups", "medium", func(delta string) {
		deltas = append(deltas, delta)
	})
	require.NoError(t, err)
	assert.Greater(t, len(deltas), 1)
	assert.Equal(t, "Three push-ups is not a workout.\nScore: 15", strings.Join(deltas, ""))
	assert.Equal(t, "Three push-ups is not a workout.", reply.Text)
	assert.Equal(t, "15.00", reply.AverageScore)
}

func TestStreamFailureAfterDeltasLeavesTranscript(t *testing.T) {
	fake := llmtest.New("You call that effort?\nScore: 5").BreakStreamWith(errors.New("connection reset"))
	svc, conversations := newRoastService(t, fake, true)
	ctx := context.Background()

	var deltas []string
	_, err := svc.Stream(ctx, "user:1", "watched a tutorial", "hard", func(delta string) {
		deltas = append(deltas, delta)
	})
	require.Error(t, err)
	assert.NotEmpty(t, deltas)

	turns, err := conversations.Transcript(ctx, "user:1")
	require.NoError(t, err)
	assert.Len(t, turns, 1)

	status, err := svc.Status(ctx, "user:1")
	require.NoError(t, err)
	assert.Equal(t, "0.00", status.AverageScore)
}

func TestStreamFallsBackWhenDisabled(t *testing.T) {
	svc, _ := newRoastService(t, llmtest.New("Meh.\nScore: 33"), false)

	var deltas []string
	reply, err := svc.Stream(context.Background(), "user:1", "stretched", "", func(delta string) {
		deltas = append(deltas, delta)
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"Meh.\nScore: 33"}, deltas)
	assert.Equal(t, "33.00", reply.AverageScore)
}

func TestSummaryCountsAndExplains(t *testing.T) {
	fake := llmtest.New("Slow start.\nScore: 20", "You coasted on one good idea.")
	svc, _ := newRoastService(t, fake, false)
	ctx := context.Background()

	empty, err := svc.Summary(ctx, "user:1")
	require.NoError(t, err)
	assert.Equal(t, "No summary available.", empty.Summary)
	assert.Equal(t, "0.00", empty.AverageScore)
	assert.Len(t, fake.Calls(), 0)

	_, err = svc.Exchange(ctx, "user:1", "I planned my week", "easy")
	require.NoError(t, err)

	summary, err := svc.Summary(ctx, "user:1")
	require.NoError(t, err)
	assert.Equal(t, 1, summary.UserCount)
	assert.Equal(t, 1, summary.BotCount)
	assert.Equal(t, "You coasted on one good idea.", summary.Summary)
	assert.Equal(t, "You have sent 1 messages and received 1 responses.\nYour current productivity score is 20.00/100.", summary.Basic)
	assert.Equal(t, 1, summary.Band)
}

func TestStatusAndReset(t *testing.T) {
	svc, _ := newRoastService(t, llmtest.New("ok\nScore: 90"), false)
	ctx := context.Background()

	_, err := svc.Exchange(ctx, "user:1", "shipped a feature", "hard")
	require.NoError(t, err)

	status, err := svc.Status(ctx, "user:1")
	require.NoError(t, err)
	assert.Equal(t, 1, status.Exchanges)
	assert.Equal(t, "90.00", status.AverageScore)
	assert.Equal(t, "hard", status.Difficulty)

	svc.Reset(ctx, "user:1")
	status, err = svc.Status(ctx, "user:1")
	require.NoError(t, err)
	assert.Equal(t, 0, status.Exchanges)
	assert.Equal(t, "0.00", status.AverageScore)
	assert.Equal(t, "medium", status.Difficulty)
}
