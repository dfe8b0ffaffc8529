package progress

import (
	"context"
	"log"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"

	writerModel "github.com/zhouzirui/chaptered-writer/backend/internal/model/writer"
	progressService "github.com/zhouzirui/chaptered-writer/backend/internal/service/progress"
	writerService "github.com/zhouzirui/chaptered-writer/backend/internal/service/writer"
	"github.com/zhouzirui/chaptered-writer/backend/pkg/utils"
)

const (
	writeWait  = 10 * time.Second
	pingPeriod = 54 * time.Second
	pongWait   = 60 * time.Second
)

// SessionSource 提供会话快照
type SessionSource interface {
	Snapshot(ctx context.Context, sessionID string) (writerModel.Snapshot, error)
}

// Handler 通过 WebSocket 推送章节生成进度
type Handler struct {
	broker   *progressService.Broker
	sessions SessionSource
	upgrader websocket.Upgrader
}

// New 创建进度推送处理器
func New(broker *progressService.Broker, sessions SessionSource) *Handler {
	return &Handler{
		broker:   broker,
		sessions: sessions,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
	}
}

// RegisterRoutes 注册WebSocket路由
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/sessions/{sessionID}/ws", h.handleWebSocket)
}

type outgoingMessage struct {
	Type      string      `json:"type"`
	SessionID string      `json:"sessionId,omitempty"`
	Data      interface{} `json:"data,omitempty"`
	Timestamp int64       `json:"timestamp"`
}

// handleWebSocket 先发送当前快照，之后转发该会话的每条进度
func (h *Handler) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")

	snap, err := h.sessions.Snapshot(r.Context(), sessionID)
	if err != nil {
		utils.RespondErrorKind(w, http.StatusNotFound, string(writerService.KindNotFound), "session not found")
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("[websocket] upgrade failed session=%s: %v", sessionID, err)
		return
	}
	defer conn.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// 先订阅再发快照，避免漏掉两者之间的进度
	updates := h.broker.Subscribe(ctx, sessionID)
	if err := writeMessage(conn, outgoingMessage{Type: "snapshot", SessionID: sessionID, Data: snap}); err != nil {
		log.Printf("[websocket] write snapshot failed session=%s: %v", sessionID, err)
		return
	}
	log.Printf("[websocket] progress stream opened session=%s", sessionID)

	go h.readLoop(conn, cancel)

	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Printf("[websocket] progress stream closed session=%s", sessionID)
			return
		case p, ok := <-updates:
			if !ok {
				return
			}
			if err := writeMessage(conn, outgoingMessage{Type: "progress", SessionID: sessionID, Data: p}); err != nil {
				log.Printf("[websocket] write progress failed session=%s: %v", sessionID, err)
				return
			}
		case <-ticker.C:
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// readLoop 丢弃客户端消息，连接关闭时取消订阅
func (h *Handler) readLoop(conn *websocket.Conn, cancel context.CancelFunc) {
	defer cancel()

	conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Printf("[websocket] read error: %v", err)
			}
			return
		}
	}
}

func writeMessage(conn *websocket.Conn, msg outgoingMessage) error {
	msg.Timestamp = time.Now().Unix()
	conn.SetWriteDeadline(time.Now().Add(writeWait))
	return conn.WriteJSON(msg)
}
