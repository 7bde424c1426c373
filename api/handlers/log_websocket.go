package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/yourusername/iwara-dl-go/pkg/logger"
	"go.uber.org/zap"
)

const writeWait = 10 * time.Second

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true // the ledger page is served from another origin
	},
}

// LogWebSocketHandler streams new entries of one log category to websocket clients
type LogWebSocketHandler struct {
	logReader    *logger.LogReader
	logger       *zap.Logger
	backlog      int
	pingInterval time.Duration
}

// NewLogWebSocketHandler creates a handler reading the files under logsDir
func NewLogWebSocketHandler(logsDir string, log *zap.Logger) *LogWebSocketHandler {
	return &LogWebSocketHandler{
		logReader:    logger.NewLogReader(logsDir),
		logger:       log,
		backlog:      50,
		pingInterval: 30 * time.Second,
	}
}

// HandleWebSocket handles GET /api/v1/logs/:category/stream.
// The client first receives the last entries of today's file, then every new one.
func (h *LogWebSocketHandler) HandleWebSocket(c *gin.Context) {
	category, ok := parseCategory(c)
	if !ok {
		return
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Error("Failed to upgrade WebSocket", zap.Error(err))
		return
	}
	defer conn.Close()

	h.logger.Info("Log stream client connected",
		zap.String("category", string(category)),
		zap.String("remote_addr", c.Request.RemoteAddr))

	if backlog, err := h.logReader.ReadTodayLogs(category, h.backlog); err == nil {
		for _, entry := range backlog {
			if err := h.send(conn, entry); err != nil {
				return
			}
		}
	}

	ctx, cancel := context.WithCancel(c.Request.Context())
	defer cancel()

	entries := make(chan logger.LogEntry, 100)
	go func() {
		if err := h.logReader.TailLogs(ctx, category, entries); err != nil {
			h.logger.Error("Log tailing error", zap.String("category", string(category)), zap.Error(err))
			cancel()
		}
	}()

	// reads only detect the client going away
	go func() {
		defer cancel()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ticker := time.NewTicker(h.pingInterval)
	defer ticker.Stop()

	for {
		select {
		case entry := <-entries:
			if err := h.send(conn, entry); err != nil {
				return
			}
		case <-ticker.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				return
			}
		case <-ctx.Done():
			return
		}
	}
}

func (h *LogWebSocketHandler) send(conn *websocket.Conn, entry logger.LogEntry) error {
	data, err := json.Marshal(entry)
	if err != nil {
		h.logger.Error("Failed to marshal log entry", zap.Error(err))
		return nil
	}
	_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
	if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
		h.logger.Debug("Log stream client gone", zap.Error(err))
		return err
	}
	return nil
}
