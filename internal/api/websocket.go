package api

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/Crazyka51/AudioCleaner/internal/logger"
	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
)

// WebSocket message types for the session progress protocol
const (
	// Client -> Server messages
	MsgTypeClean = "clean"
	MsgTypePing  = "ping"

	// Server -> Client messages
	MsgTypeConnected = "connected"
	MsgTypeProgress  = "progress"
	MsgTypeError     = "error"
	MsgTypePong      = "pong"
)

// WSMessage is the envelope for every websocket frame.
type WSMessage struct {
	Type      string          `json:"type"`
	ID        string          `json:"id,omitempty"`
	Payload   json.RawMessage `json:"payload,omitempty"`
	Timestamp int64           `json:"timestamp"`
}

// WSErrorResponse is the payload of an error message.
type WSErrorResponse struct {
	Message string `json:"message"`
	Code    string `json:"code,omitempty"`
}

// WebSocketHandler pushes session progress over a websocket and accepts
// clean requests from the page.
type WebSocketHandler struct {
	sessions SessionManager
	upgrader websocket.Upgrader
	log      *zap.Logger
}

// NewWebSocketHandler creates a new WebSocket progress handler
func NewWebSocketHandler(sessions SessionManager, log *zap.Logger) *WebSocketHandler {
	if log == nil {
		log = zap.NewNop()
	}
	return &WebSocketHandler{
		sessions: sessions,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				// Allow connections from dev server
				return true
			},
			ReadBufferSize:  4 * 1024,
			WriteBufferSize: 16 * 1024,
		},
		log: log,
	}
}

// wsConn serializes writes; gorilla connections allow one concurrent writer.
type wsConn struct {
	ws *websocket.Conn
	mu sync.Mutex
}

func (c *wsConn) send(msg WSMessage) error {
	msg.Timestamp = time.Now().UnixMilli()
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.ws.WriteJSON(msg)
}

// HandleSessionSocket upgrades the connection and streams progress events
// for one session.
func (wsh *WebSocketHandler) HandleSessionSocket(c echo.Context) error {
	id := c.Param("id")
	if _, ok := wsh.sessions.Get(id); !ok {
		return NewNotFoundError("session", id)
	}

	ws, err := wsh.upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		return err
	}
	conn := &wsConn{ws: ws}
	defer ws.Close()

	events, unsubscribe, err := wsh.sessions.Subscribe(id)
	if err != nil {
		wsh.sendError(conn, id, "session not found", "SESSION_NOT_FOUND")
		return nil
	}
	defer unsubscribe()

	log := wsh.log.With(zap.String("session", logger.ShortID(id)))
	log.Debug("websocket client connected")

	conn.send(WSMessage{Type: MsgTypeConnected, ID: id})

	stop := make(chan struct{})
	done := make(chan struct{})
	go func() {
		defer close(done)
		for ev := range events {
			if err := conn.send(WSMessage{Type: MsgTypeProgress, ID: id, Payload: mustJSON(ev)}); err != nil {
				return
			}
		}
		select {
		case <-stop:
			return
		default:
		}
		// Channel closed by the manager: the session was deleted.
		wsh.sendError(conn, id, "session deleted", "SESSION_DELETED")
		ws.Close()
	}()

	for {
		var msg WSMessage
		if err := ws.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Debug("websocket connection error", zap.Error(err))
			}
			break
		}

		switch msg.Type {
		case MsgTypePing:
			conn.send(WSMessage{Type: MsgTypePong, ID: id})
			wsh.sessions.Touch(id)
		case MsgTypeClean:
			if _, err := wsh.sessions.Clean(id); err != nil {
				apiErr := fromDomainError(err, "session", id)
				wsh.sendError(conn, id, apiErr.Message, apiErr.Code)
			}
		default:
			wsh.sendError(conn, id, "Unknown message type: "+msg.Type, "INVALID_TYPE")
		}
	}

	close(stop)
	unsubscribe()
	<-done
	log.Debug("websocket client disconnected")
	return nil
}

func (wsh *WebSocketHandler) sendError(conn *wsConn, id, message, code string) {
	err := conn.send(WSMessage{
		Type:    MsgTypeError,
		ID:      id,
		Payload: mustJSON(WSErrorResponse{Message: message, Code: code}),
	})
	if err != nil {
		wsh.log.Debug("failed to send websocket message", zap.Error(err))
	}
}

func mustJSON(v interface{}) json.RawMessage {
	data, err := json.Marshal(v)
	if err != nil {
		return []byte("{}")
	}
	return data
}
