package websocket

import (
	"encoding/json"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

const (
	// Time allowed to write a message to the peer
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer. A connection
	// idle past this deadline is detached so presence stays accurate.
	pongWait = 60 * time.Second

	// Send pings to peer with this period
	pingPeriod = (pongWait * 9) / 10

	// Maximum message size allowed from peer
	maxMessageSize = 10000
)

// Separates events batched into a single websocket frame
var newline = []byte{'\n'}

// Client represents a connected websocket client. A client starts unattached;
// the first honored event must be an attach carrying the user's token. Once
// attached it stays bound to that identity until it detaches.
type Client struct {
	hub  *Hub
	conn *websocket.Conn
	id   uuid.UUID

	send      chan []byte
	done      chan struct{}
	closeOnce sync.Once

	// Written by readPump during attach, before the handle is registered.
	identity string
	attached bool
}

// close signals teardown exactly once. writePump flushes what is queued and
// then closes the underlying connection, which in turn unblocks readPump.
func (c *Client) close() {
	c.closeOnce.Do(func() {
		close(c.done)
	})
}

// deliver queues an outbound event. Typing signals are droppable under
// backpressure; anything else must not be lost, so a persistently full queue
// disconnects the client instead of blocking the fan-out.
func (c *Client) deliver(msg Message, droppable bool) {
	payload, err := json.Marshal(msg)
	if err != nil {
		log.Printf("error marshaling outbound event: %v", err)
		return
	}

	select {
	case c.send <- payload:
	case <-c.done:
	default:
		if droppable {
			return
		}
		log.Printf("outbound queue full for %s (conn %s), disconnecting", c.identity, c.id)
		c.close()
	}
}

// readPump pumps events from the websocket connection into the hub
func (c *Client) readPump() {
	defer func() {
		c.hub.Detach(c)
		c.close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, payload, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Printf("error reading conn %s: %v", c.id, err)
			}
			break
		}

		if err := c.hub.HandleEvent(c, payload); err != nil {
			// Protocol-invalid connection. The rejection event is already
			// queued; writePump flushes it as the connection comes down.
			break
		}
	}
}

// writePump pumps queued events to the websocket connection
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case <-c.done:
			// Flush anything still queued (e.g. the rejection that caused
			// the teardown) before closing.
			for {
				select {
				case payload := <-c.send:
					c.conn.SetWriteDeadline(time.Now().Add(writeWait))
					c.conn.WriteMessage(websocket.TextMessage, payload)
				default:
					c.conn.WriteMessage(websocket.CloseMessage, []byte{})
					return
				}
			}
		case payload := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))

			w, err := c.conn.NextWriter(websocket.TextMessage)
			if err != nil {
				return
			}
			w.Write(payload)

			// Add queued messages to the current websocket message
			n := len(c.send)
			for i := 0; i < n; i++ {
				w.Write(newline)
				w.Write(<-c.send)
			}

			if err := w.Close(); err != nil {
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
