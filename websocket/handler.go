package websocket

import (
	"log"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true // Allow all origins
	},
}

// HandleConnection upgrades the request and starts the connection's pumps.
// The connection is anonymous until its attach event arrives.
func (h *Hub) HandleConnection(c *gin.Context) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Printf("error upgrading connection: %v", err)
		return
	}

	client := &Client{
		hub:  h,
		conn: conn,
		id:   uuid.New(),
		send: make(chan []byte, 256),
		done: make(chan struct{}),
	}

	log.Printf("connection %s established", client.id)
	go client.readPump()
	go client.writePump()
}
