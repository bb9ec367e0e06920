package handlers

import (
	"log"
	"net/http"
	"time"

	"hotel-operations-api/internal/realtime"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

const (
	wsWriteWait    = 5 * time.Second
	wsMaxFrameSize = 4096
)

// wsTransport adapts a gorilla websocket connection to the hub's
// transport-agnostic duplex stream.
type wsTransport struct {
	conn *websocket.Conn
}

func (t *wsTransport) ReadMessage() ([]byte, error) {
	_, data, err := t.conn.ReadMessage()
	return data, err
}

func (t *wsTransport) WriteMessage(data []byte) error {
	t.conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
	return t.conn.WriteMessage(websocket.TextMessage, data)
}

func (t *wsTransport) Close() error {
	return t.conn.Close()
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		// CORS is already handled at Gin level; allow upgrade from any origin here
		return true
	},
}

// WSHandler terminates the websocket upgrade and feeds the connection to
// the hub. Token verification happened in the JWT middleware; identity
// binding happens in-band via the authenticate message.
type WSHandler struct {
	hub *realtime.Hub
}

func NewWSHandler(hub *realtime.Hub) *WSHandler {
	return &WSHandler{hub: hub}
}

// Serve upgrades the connection and blocks for its lifetime while the hub
// runs the read loop.
func (h *WSHandler) Serve(c *gin.Context) {
	userID := c.GetString("user_id")
	if userID == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "User not authorized"})
		return
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Println("websocket upgrade error:", err)
		return
	}
	conn.SetReadLimit(wsMaxFrameSize)

	if err := h.hub.Accept(&wsTransport{conn: conn}); err != nil {
		log.Println("websocket accept rejected:", err)
	}
}
