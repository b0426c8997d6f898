package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// Origin checks belong to the gateway in front of this service.
	CheckOrigin: func(r *http.Request) bool { return true },
}

const writeTimeout = 10 * time.Second

// AlertFeed streams a user's alert change events over a websocket. Events
// are best effort: a subscriber that falls behind misses events and should
// re-list alerts on reconnect.
func (h *Handler) AlertFeed(c *gin.Context) {
	userID, err := strconv.ParseInt(c.Param("user_id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid user_id"})
		return
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Errorf("Websocket upgrade for user %d failed: %v", userID, err)
		return
	}
	defer conn.Close()

	eventsCh, cancel := h.bus.Subscribe(userID)
	defer cancel()
	h.logger.Infof("Websocket feed opened for user %d", userID)

	// Drain client frames so pings and close frames are processed.
	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	for {
		select {
		case <-done:
			h.logger.Infof("Websocket feed closed for user %d", userID)
			return
		case ev := <-eventsCh:
			conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if err := conn.WriteJSON(ev); err != nil {
				h.logger.Warnf("Websocket write to user %d failed: %v", userID, err)
				return
			}
		}
	}
}
