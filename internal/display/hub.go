// Package display bridges the event broadcaster to live kitchen displays
// over WebSocket. A display missing an event only misses a refresh trigger;
// it can always re-fetch order state over the HTTP API.
package display

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"expediter/internal/broadcast"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = 30 * time.Second
)

// WebSocket upgrader configuration
var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true // Displays run on kitchen hardware with no fixed origin
	},
}

// Hub upgrades display connections and pipes their restaurant's events to
// them.
type Hub struct {
	broadcaster *broadcast.Broadcaster
	log         *zap.Logger
}

// NewHub creates a hub on top of the broadcaster.
func NewHub(b *broadcast.Broadcaster, log *zap.Logger) *Hub {
	return &Hub{broadcaster: b, log: log}
}

// HandleWS upgrades the connection and subscribes it to the restaurant given
// by the "restaurant" query parameter.
func (h *Hub) HandleWS(c *gin.Context) {
	restaurantID, err := strconv.ParseUint(c.Query("restaurant"), 10, 32)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "restaurant query parameter required"})
		return
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.log.Warn("websocket upgrade failed", zap.Error(err))
		return
	}

	sub := h.broadcaster.Subscribe(uint(restaurantID), broadcast.DefaultBuffer)
	dc := &displayConn{
		conn: conn,
		sub:  sub,
		hub:  h,
	}

	go dc.writePump()
	go dc.readPump()

	h.log.Info("display connected",
		zap.Uint64("restaurant_id", restaurantID),
		zap.String("remote", conn.RemoteAddr().String()))
}

// displayConn maintains one WebSocket connection to a kitchen display
type displayConn struct {
	conn *websocket.Conn
	sub  *broadcast.Subscriber
	hub  *Hub
}

// readPump discards inbound frames (displays only listen) and tears the
// subscription down when the peer goes away.
func (c *displayConn) readPump() {
	defer func() {
		c.hub.broadcaster.Unsubscribe(c.sub)
		c.conn.Close()
	}()

	c.conn.SetReadLimit(512)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.hub.log.Warn("display read error", zap.Error(err))
			}
			return
		}
	}
}

// writePump serializes events from the subscription onto the wire, with a
// ping keepalive.
func (c *displayConn) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case ev, ok := <-c.sub.Events():
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			data, err := json.Marshal(ev)
			if err != nil {
				c.hub.log.Error("marshal event", zap.Error(err))
				continue
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
