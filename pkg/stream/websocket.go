package stream

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/vexfs/vexfs/internal/logger"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

const writeTimeout = 10 * time.Second

// ServeWebSocket upgrades r to a WebSocket connection and pumps every
// Message from ch to it as JSON text frames, grounded on
// evalgo-org-eve/coordinator's WriteMessage/WriteControl usage for the
// outbound side of a long-lived connection.
func ServeWebSocket(w http.ResponseWriter, r *http.Request, ch <-chan Message) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.Warn("websocket upgrade failed", "error", err)
		return
	}
	defer conn.Close()

	for msg := range ch {
		data, err := json.Marshal(msg)
		if err != nil {
			logger.Warn("failed to marshal stream message", "error", err)
			continue
		}
		conn.SetWriteDeadline(time.Now().Add(writeTimeout))
		if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
			logger.Info("websocket write failed, closing stream", "error", err)
			return
		}
	}
	_ = conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, "stream ended"), time.Now().Add(writeTimeout))
}
