package websocket

import (
	"testing"
)

func TestPresenceLifecycle(t *testing.T) {
	p := NewPresence()

	first := &Client{}
	second := &Client{}

	if p.IsOnline("a@example.com") {
		t.Fatal("identity online before any registration")
	}

	if !p.Register("a@example.com", first) {
		t.Error("first handle did not report coming online")
	}
	if p.Register("a@example.com", second) {
		t.Error("second handle reported coming online again")
	}
	if !p.IsOnline("a@example.com") {
		t.Error("identity offline with two handles")
	}
	if got := len(p.HandlesFor("a@example.com")); got != 2 {
		t.Errorf("expected 2 handles, got %d", got)
	}

	// Removing one of two handles keeps the identity online.
	if p.Unregister("a@example.com", first) {
		t.Error("went offline with a handle remaining")
	}
	if !p.IsOnline("a@example.com") {
		t.Error("identity offline with one handle remaining")
	}

	if !p.Unregister("a@example.com", second) {
		t.Error("removing the last handle did not report offline")
	}
	if p.IsOnline("a@example.com") {
		t.Error("identity still online with no handles")
	}
	if got := len(p.HandlesFor("a@example.com")); got != 0 {
		t.Errorf("expected no handles, got %d", got)
	}
}

func TestPresenceUnregisterIdempotent(t *testing.T) {
	p := NewPresence()

	client := &Client{}
	p.Register("a@example.com", client)
	if !p.Unregister("a@example.com", client) {
		t.Error("first unregister did not report offline")
	}
	if p.Unregister("a@example.com", client) {
		t.Error("second unregister reported offline again")
	}
	if p.Unregister("never@example.com", client) {
		t.Error("unregister of unknown identity reported offline")
	}
}

func TestOnlineSnapshot(t *testing.T) {
	p := NewPresence()

	p.Register("c@example.com", &Client{})
	p.Register("a@example.com", &Client{})
	p.Register("b@example.com", &Client{})

	snapshot := p.OnlineSnapshot()
	want := []string{"a@example.com", "b@example.com", "c@example.com"}
	if len(snapshot) != len(want) {
		t.Fatalf("expected %v, got %v", want, snapshot)
	}
	for i := range want {
		if snapshot[i] != want[i] {
			t.Errorf("snapshot not sorted: %v", snapshot)
		}
	}
}
