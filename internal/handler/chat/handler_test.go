package chat

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/zhouzirui/ragebot/backend/internal/config"
	"github.com/zhouzirui/ragebot/backend/internal/llm/llmtest"
	"github.com/zhouzirui/ragebot/backend/internal/middleware"
	"github.com/zhouzirui/ragebot/backend/internal/model/difficulty"
	"github.com/zhouzirui/ragebot/backend/internal/service/ai"
	chatservice "github.com/zhouzirui/ragebot/backend/internal/service/chat"
	"github.com/zhouzirui/ragebot/backend/internal/service/roast"
)

func setupRouter(t *testing.T, fake *llmtest.Scripted) *chi.Mux {
	t.Helper()
	aiSvc, err := ai.NewService(context.Background(), fake, config.AIConfig{}, zap.NewNop())
	if err != nil {
		t.Fatalf("ai.NewService: %v", err)
	}
	roastSvc := roast.NewService(chatservice.NewService(), aiSvc, difficulty.NewMemoryStore(difficulty.Seed()), zap.NewNop())

	r := chi.NewRouter()
	New(roastSvc, zap.NewNop()).RegisterRoutes(r)
	return r
}

func postJSON(r http.Handler, path, session string, body any) *httptest.ResponseRecorder {
	payload, _ := json.Marshal(body)
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	if session != "" {
		req.Header.Set(middleware.SessionHeader, session)
	}
	resp := httptest.NewRecorder()
	r.ServeHTTP(resp, req)
	return resp
}

func TestRagebotReturnsReplyAndAverage(t *testing.T) {
	r := setupRouter(t, llmtest.New("Three hours of scrolling? Elite.\nScore: 20"))

	resp := postJSON(r, "/ragebot", "tab", map[string]string{"userMessage": "scrolled tiktok", "difficulty": "easy"})
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", resp.Code, resp.Body.String())
	}

	var body map[string]any
	if err := json.Unmarshal(resp.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body["botReply"] != "Three hours of scrolling? Elite." {
		t.Fatalf("unexpected botReply %v", body["botReply"])
	}
	if body["averageScore"] != "20.00" {
		t.Fatalf("unexpected averageScore %v", body["averageScore"])
	}
	if body["difficulty"] != "easy" {
		t.Fatalf("unexpected difficulty %v", body["difficulty"])
	}
	if body["score"] != float64(20) {
		t.Fatalf("unexpected score %v", body["score"])
	}
}

func TestRagebotEmptyMessage(t *testing.T) {
	r := setupRouter(t, llmtest.New("unused"))

	resp := postJSON(r, "/ragebot", "", map[string]string{"userMessage": "   "})
	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", resp.Code)
	}
}

func TestRagebotInvalidBody(t *testing.T) {
	r := setupRouter(t, llmtest.New("unused"))

	req := httptest.NewRequest(http.MethodPost, "/ragebot", bytes.NewReader([]byte("{")))
	resp := httptest.NewRecorder()
	r.ServeHTTP(resp, req)
	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", resp.Code)
	}
}

func TestRagebotModelFailure(t *testing.T) {
	r := setupRouter(t, llmtest.Failing(errors.New("upstream down")))

	resp := postJSON(r, "/ragebot", "", map[string]string{"userMessage": "hi"})
	if resp.Code != http.StatusBadGateway {
		t.Fatalf("expected 502, got %d", resp.Code)
	}
}

func TestSessionsAreIsolatedAndResettable(t *testing.T) {
	r := setupRouter(t, llmtest.New("Meh.\nScore: 40"))

	postJSON(r, "/ragebot", "a", map[string]string{"userMessage": "worked"})

	req := httptest.NewRequest(http.MethodGet, "/status", nil)
	req.Header.Set(middleware.SessionHeader, "b")
	resp := httptest.NewRecorder()
	r.ServeHTTP(resp, req)

	var status roast.Status
	if err := json.Unmarshal(resp.Body.Bytes(), &status); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if status.Exchanges != 0 {
		t.Fatalf("expected session b to be empty, got %d exchanges", status.Exchanges)
	}

	resp = postJSON(r, "/reset", "a", nil)
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.Code)
	}

	req = httptest.NewRequest(http.MethodGet, "/status", nil)
	req.Header.Set(middleware.SessionHeader, "a")
	resp = httptest.NewRecorder()
	r.ServeHTTP(resp, req)
	if err := json.Unmarshal(resp.Body.Bytes(), &status); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if status.Exchanges != 0 || status.AverageScore != "0.00" {
		t.Fatalf("expected reset status, got %+v", status)
	}
}

func TestSummary(t *testing.T) {
	r := setupRouter(t, llmtest.New("Gym? Fine.\nScore: 60", "You are mediocre but trying."))

	postJSON(r, "/ragebot", "", map[string]string{"userMessage": "went to the gym"})
	resp := postJSON(r, "/summary", "", nil)
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.Code)
	}

	var summary roast.Summary
	if err := json.Unmarshal(resp.Body.Bytes(), &summary); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if summary.Summary != "You are mediocre but trying." {
		t.Fatalf("unexpected summary %q", summary.Summary)
	}
	if summary.UserCount != 1 || summary.BotCount != 1 {
		t.Fatalf("unexpected counts %+v", summary)
	}
}

func TestUnavailableWithoutModel(t *testing.T) {
	r := chi.NewRouter()
	New(nil, nil).RegisterRoutes(r)

	resp := postJSON(r, "/ragebot", "", map[string]string{"userMessage": "hi"})
	if resp.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", resp.Code)
	}
}
