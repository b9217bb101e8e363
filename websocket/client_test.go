package websocket

import (
	"bytes"
	"log"
	"os"
	"strings"
	"testing"

	"github.com/google/uuid"
)

func TestDeliverBackpressure(t *testing.T) {
	var buf bytes.Buffer
	log.SetOutput(&buf)
	defer log.SetOutput(os.Stderr)

	// Unbuffered queue with no writePump draining it: every deliver hits
	// the backpressure path.
	c := &Client{
		id:       uuid.New(),
		identity: "a@example.com",
		send:     make(chan []byte),
		done:     make(chan struct{}),
	}

	c.deliver(Message{Type: EventUserTyping, Payload: TypingNotice{Identity: "b@example.com"}}, true)
	select {
	case <-c.done:
		t.Fatal("droppable event closed the client")
	default:
	}

	c.deliver(Message{Type: EventMessageReceived}, false)
	select {
	case <-c.done:
	default:
		t.Fatal("full queue did not disconnect the client")
	}
	if !strings.Contains(buf.String(), c.id.String()) {
		t.Errorf("disconnect log does not name the connection: %q", buf.String())
	}
}
