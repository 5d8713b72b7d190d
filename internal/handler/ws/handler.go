package ws

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/zhouzirui/ragebot/backend/internal/middleware"
	"github.com/zhouzirui/ragebot/backend/internal/service/roast"
)

const (
	pongWait   = 60 * time.Second
	pingPeriod = 54 * time.Second
	writeWait  = 10 * time.Second
)

// Handler WebSocket 吐槽对话处理器
type Handler struct {
	roastSvc    *roast.Service
	upgrader    websocket.Upgrader
	logger      *zap.Logger
	readTimeout time.Duration
}

// New 创建WebSocket处理器
func New(roastSvc *roast.Service, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{
		roastSvc:    roastSvc,
		logger:      logger,
		readTimeout: pongWait,
		upgrader: websocket.Upgrader{
			// Authentication travels in the token query parameter.
			CheckOrigin:     func(r *http.Request) bool { return true },
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
	}
}

// RegisterRoutes 注册WebSocket路由
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/ws", h.handleWebSocket)
}

type inboundMessage struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

// TextMessage 用户发送的一条消息
type TextMessage struct {
	Text       string `json:"text"`
	Difficulty string `json:"difficulty"`
}

// DifficultyMessage 切换难度
type DifficultyMessage struct {
	Level string `json:"level"`
}

type outgoingMessage struct {
	Type      string      `json:"type"`
	Data      interface{} `json:"data,omitempty"`
	Timestamp int64       `json:"timestamp"`
}

// conn serialises writes; gorilla connections allow one concurrent writer.
type conn struct {
	ws *websocket.Conn
	mu sync.Mutex
}

func (c *conn) send(kind string, data interface{}) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.ws.SetWriteDeadline(time.Now().Add(writeWait))
	return c.ws.WriteJSON(outgoingMessage{
		Type:      kind,
		Data:      data,
		Timestamp: time.Now().UnixMilli(),
	})
}

func (c *conn) ping() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.ws.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait))
}

// handleWebSocket 处理WebSocket连接
func (h *Handler) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	if h.roastSvc == nil {
		http.Error(w, "ai service unavailable", http.StatusServiceUnavailable)
		return
	}

	owner := middleware.Owner(r)

	ws, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed", zap.Error(err))
		return
	}
	defer ws.Close()

	c := &conn{ws: ws}
	h.logger.Info("websocket connected", zap.String("owner", owner))

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	ws.SetReadLimit(64 << 10)
	ws.SetReadDeadline(time.Now().Add(h.readTimeout))
	ws.SetPongHandler(func(string) error {
		return ws.SetReadDeadline(time.Now().Add(h.readTimeout))
	})

	go h.pingLoop(ctx, c)

	h.sendStatus(ctx, c, owner)

	for {
		var msg inboundMessage
		if err := ws.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				h.logger.Warn("websocket read failed", zap.String("owner", owner), zap.Error(err))
			}
			return
		}

		h.handleMessage(ctx, c, owner, msg)
		// A round can outlast the read window, so the clock restarts once it is answered.
		ws.SetReadDeadline(time.Now().Add(h.readTimeout))
	}
}

func (h *Handler) handleMessage(ctx context.Context, c *conn, owner string, msg inboundMessage) {
	switch msg.Type {
	case "message":
		var payload TextMessage
		if err := json.Unmarshal(msg.Data, &payload); err != nil {
			h.sendError(c, "invalid message payload")
			return
		}
		h.handleText(ctx, c, owner, payload)
	case "difficulty":
		var payload DifficultyMessage
		if err := json.Unmarshal(msg.Data, &payload); err != nil {
			h.sendError(c, "invalid difficulty payload")
			return
		}
		if _, err := h.roastSvc.SetDifficulty(ctx, owner, payload.Level); err != nil {
			h.sendError(c, err.Error())
			return
		}
		h.sendStatus(ctx, c, owner)
	case "reset":
		h.roastSvc.Reset(ctx, owner)
		h.sendStatus(ctx, c, owner)
	case "summary":
		summary, err := h.roastSvc.Summary(ctx, owner)
		if err != nil {
			h.logger.Error("websocket summary failed", zap.String("owner", owner), zap.Error(err))
			h.sendError(c, "Failed to get a summary from the model")
			return
		}
		h.write(c, "summary", summary)
	default:
		h.sendError(c, "unknown message type: "+msg.Type)
	}
}

func (h *Handler) handleText(ctx context.Context, c *conn, owner string, payload TextMessage) {
	if strings.TrimSpace(payload.Text) == "" {
		h.sendError(c, "User message is required")
		return
	}

	reply, err := h.roastSvc.Stream(ctx, owner, payload.Text, payload.Difficulty, func(delta string) {
		h.write(c, "delta", map[string]string{"content": delta})
	})
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return
		}
		h.logger.Error("websocket roast failed", zap.String("owner", owner), zap.Error(err))
		h.sendError(c, "Failed to get a response from the model")
		return
	}

	h.write(c, "reply", reply)
}

func (h *Handler) sendStatus(ctx context.Context, c *conn, owner string) {
	status, err := h.roastSvc.Status(ctx, owner)
	if err != nil {
		h.sendError(c, err.Error())
		return
	}
	h.write(c, "status", status)
}

func (h *Handler) sendError(c *conn, message string) {
	h.write(c, "error", map[string]string{"message": message})
}

func (h *Handler) write(c *conn, kind string, data interface{}) {
	if err := c.send(kind, data); err != nil {
		h.logger.Debug("websocket write failed", zap.String("type", kind), zap.Error(err))
	}
}

func (h *Handler) pingLoop(ctx context.Context, c *conn) {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := c.ping(); err != nil {
				return
			}
		}
	}
}
