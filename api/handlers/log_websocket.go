package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/yourusername/mediabridge-go/pkg/logger"
	"go.uber.org/zap"
)

const (
	wsBacklog      = 50
	wsPingInterval = 30 * time.Second
	wsWriteTimeout = 10 * time.Second
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true // CORS middleware governs browser access
	},
}

// LogWebSocketHandler streams a log category to websocket clients
type LogWebSocketHandler struct {
	logReader *logger.LogReader
	logger    *zap.Logger
}

// NewLogWebSocketHandler creates a new WebSocket handler
func NewLogWebSocketHandler(logsDir string, log *zap.Logger) *LogWebSocketHandler {
	if log == nil {
		log = zap.NewNop()
	}
	return &LogWebSocketHandler{
		logReader: logger.NewLogReader(logsDir),
		logger:    log,
	}
}

// HandleWebSocket handles GET /api/v1/logs/ws?category=. The last entries of
// today's file are sent first, then new lines as they are written.
func (h *LogWebSocketHandler) HandleWebSocket(c *gin.Context) {
	cat := logger.LogCategory(c.DefaultQuery("category", string(logger.CategoryAcquire)))
	if !logger.ValidCategory(cat) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid category"})
		return
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Error("Failed to upgrade WebSocket", zap.Error(err))
		return
	}
	defer conn.Close()

	h.logger.Info("WebSocket client connected",
		zap.String("category", string(cat)),
		zap.String("remote_addr", c.Request.RemoteAddr))

	if entries, err := h.logReader.ReadLogs(cat, time.Now(), wsBacklog); err == nil {
		for _, entry := range entries {
			if err := writeJSON(conn, entry); err != nil {
				return
			}
		}
	}

	ctx, cancel := context.WithCancel(c.Request.Context())
	defer cancel()

	entryChan := make(chan logger.LogEntry, 100)
	go func() {
		if err := h.logReader.TailLogs(ctx, cat, entryChan); err != nil {
			h.logger.Error("Log tailing error", zap.Error(err))
			cancel()
		}
	}()

	// Reads only detect the client going away
	go func() {
		defer cancel()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ticker := time.NewTicker(wsPingInterval)
	defer ticker.Stop()

	for {
		select {
		case entry := <-entryChan:
			if err := writeJSON(conn, entry); err != nil {
				h.logger.Debug("Failed to send log entry", zap.Error(err))
				return
			}
		case <-ticker.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(wsWriteTimeout)); err != nil {
				return
			}
		case <-ctx.Done():
			return
		}
	}
}

func writeJSON(conn *websocket.Conn, v interface{}) error {
	conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
	return conn.WriteJSON(v)
}
