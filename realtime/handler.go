package realtime

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// Handler upgrades GET /ws to a subscriber connection. allowOrigin decides
// which browser origins may connect; nil allows all.
func (h *Hub) Handler(allowOrigin func(origin string) bool) gin.HandlerFunc {
	upgrader := websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			if allowOrigin == nil {
				return true
			}
			return allowOrigin(r.Header.Get("Origin"))
		},
	}

	return func(c *gin.Context) {
		conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
		if err != nil {
			// Upgrade already wrote the HTTP error response.
			h.log.Debug("websocket upgrade failed", zap.Error(err), zap.String("origin", c.GetHeader("Origin")))
			return
		}

		client := newClient(uuid.NewString(), conn)
		if !h.register(client) {
			_ = conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseGoingAway, "shutting down"), deadline())
			_ = conn.Close()
			return
		}
		h.log.Info("client connected", zap.String("client", client.id), zap.String("ip", c.ClientIP()))

		go client.writePump()
		client.readPump()

		h.unregister(client)
		h.log.Info("client disconnected", zap.String("client", client.id))
	}
}
