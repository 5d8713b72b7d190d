package stream

import (
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/zhouzirui/ragebot/backend/internal/middleware"
	"github.com/zhouzirui/ragebot/backend/internal/service/roast"
	"github.com/zhouzirui/ragebot/backend/pkg/utils"
)

// Handler manages streaming roast replies via Server-Sent Events
type Handler struct {
	roastSvc *roast.Service
	logger   *zap.Logger
}

// New creates a new stream handler
func New(roastSvc *roast.Service, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{roastSvc: roastSvc, logger: logger}
}

// Event is the data of one SSE frame.
type Event struct {
	Content      string `json:"content,omitempty"`
	Score        *int   `json:"score,omitempty"`
	AverageScore string `json:"averageScore,omitempty"`
	Band         int    `json:"band,omitempty"`
	Difficulty   string `json:"difficulty,omitempty"`
	Finished     bool   `json:"finished,omitempty"`
	Error        string `json:"error,omitempty"`
}

// RegisterRoutes registers the streaming route
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/ragebot/stream", h.handleStream)
}

func (h *Handler) handleStream(w http.ResponseWriter, r *http.Request) {
	if h.roastSvc == nil {
		utils.RespondError(w, http.StatusServiceUnavailable, "ai streaming unavailable")
		return
	}

	message := strings.TrimSpace(r.URL.Query().Get("message"))
	if message == "" {
		utils.RespondError(w, http.StatusBadRequest, "message query parameter is required")
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		utils.RespondError(w, http.StatusInternalServerError, "streaming unsupported")
		return
	}

	utils.SetupSSEHeaders(w)
	w.WriteHeader(http.StatusOK)

	owner := middleware.Owner(r)
	ctx := r.Context()
	h.send(w, flusher, "start", Event{})

	reply, err := h.roastSvc.Stream(ctx, owner, message, r.URL.Query().Get("difficulty"), func(delta string) {
		h.send(w, flusher, "delta", Event{Content: delta})
	})
	if err != nil {
		if errors.Is(err, ctx.Err()) && ctx.Err() != nil {
			h.logger.Debug("stream client went away", zap.String("owner", owner))
			return
		}
		h.logger.Error("stream roast failed", zap.String("owner", owner), zap.Error(err))
		h.send(w, flusher, "error", Event{Error: streamErrorMessage(err)})
		return
	}

	h.send(w, flusher, "message", Event{Content: reply.Text, Difficulty: reply.Difficulty})
	h.send(w, flusher, "score", Event{
		Score:        reply.Score,
		AverageScore: reply.AverageScore,
		Band:         reply.Band,
	})
	h.send(w, flusher, "end", Event{Finished: true})

	h.logger.Debug("stream completed", zap.String("owner", owner), zap.String("difficulty", reply.Difficulty))
}

func (h *Handler) send(w http.ResponseWriter, flusher http.Flusher, event string, data Event) {
	if err := utils.SendSSEEvent(w, flusher, event, data); err != nil {
		h.logger.Debug("failed to write sse event", zap.String("event", event), zap.Error(err))
	}
}

func streamErrorMessage(err error) string {
	switch {
	case errors.Is(err, roast.ErrEmptyMessage):
		return "User message is required"
	case errors.Is(err, roast.ErrNoReply):
		return "The model returned an empty reply"
	default:
		return "Failed to get a response from the model"
	}
}
