package server

import (
	"context"
	"encoding/json"
	log "log/slog"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"voxbridge/internal/pipeline"
)

const (
	wsWriteWait   = 10 * time.Second
	wsMaxMessage  = 4096
	msgTypeRecord = "record"
	msgTypeStage  = "stage"
	msgTypeResult = "result"
	msgTypeError  = "error"
)

type wsClientMsg struct {
	Type     string `json:"type"`
	Duration int    `json:"duration"`
}

type wsServerMsg struct {
	Type  string         `json:"type"`
	Stage pipeline.Stage `json:"stage,omitempty"`
	Error string         `json:"error,omitempty"`
}

type wsResultMsg struct {
	Type string `json:"type"`
	pipeline.Result
}

type wsConn struct {
	c  *websocket.Conn
	mu sync.Mutex
}

func (w *wsConn) writeJSON(v any) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	_ = w.c.SetWriteDeadline(time.Now().Add(wsWriteWait))
	return w.c.WriteJSON(v)
}

// ws serves record requests over a WebSocket, reporting each stage before
// the result. Requests on one connection run one after another.
func (s *Server) ws(c *gin.Context) {
	conn, err := s.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		// upgrade already wrote the response
		return
	}
	defer conn.Close()
	conn.SetReadLimit(wsMaxMessage)

	wc := &wsConn{c: conn}
	ctx := context.WithoutCancel(c.Request.Context())

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				log.Debug("WebSocket closed", "err", err)
			}
			return
		}

		var msg wsClientMsg
		if err := json.Unmarshal(data, &msg); err != nil {
			if wc.writeJSON(wsServerMsg{Type: msgTypeError, Error: "invalid json"}) != nil {
				return
			}
			continue
		}
		if msg.Type != msgTypeRecord {
			if wc.writeJSON(wsServerMsg{Type: msgTypeError, Error: "unknown message type: " + msg.Type}) != nil {
				return
			}
			continue
		}

		res := s.deps.Pipeline.Run(ctx, msg.Duration, func(stage pipeline.Stage) {
			if stage == pipeline.StageResponding {
				return
			}
			if err := wc.writeJSON(wsServerMsg{Type: msgTypeStage, Stage: stage}); err != nil {
				log.Debug("Failed to send stage", "stage", stage, "err", err)
			}
		})
		if err := wc.writeJSON(wsResultMsg{Type: msgTypeResult, Result: res}); err != nil {
			log.Debug("Client disconnected before result", "err", err)
			return
		}
	}
}
