package websocket

import (
	"sort"
	"sync"
)

// Presence tracks which identities currently have live connections. One
// identity may hold any number of concurrent connections (multiple tabs or
// devices); it is online while at least one remains. State is in-memory and
// owned by this process only.
type Presence struct {
	mu      sync.RWMutex
	clients map[string]map[*Client]struct{}
}

func NewPresence() *Presence {
	return &Presence{
		clients: make(map[string]map[*Client]struct{}),
	}
}

// Register adds a connection handle for the identity. It reports whether the
// identity just transitioned from offline to online.
func (p *Presence) Register(identity string, client *Client) (cameOnline bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	set, ok := p.clients[identity]
	if !ok {
		set = make(map[*Client]struct{})
		p.clients[identity] = set
	}
	set[client] = struct{}{}
	return !ok
}

// Unregister removes exactly that handle. It reports whether the identity
// just transitioned to offline. Safe to call twice for the same handle.
func (p *Presence) Unregister(identity string, client *Client) (wentOffline bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	set, ok := p.clients[identity]
	if !ok {
		return false
	}
	if _, ok := set[client]; !ok {
		return false
	}
	delete(set, client)
	if len(set) == 0 {
		delete(p.clients, identity)
		return true
	}
	return false
}

// HandlesFor returns the identity's live connection handles for fan-out.
func (p *Presence) HandlesFor(identity string) []*Client {
	p.mu.RLock()
	defer p.mu.RUnlock()

	set := p.clients[identity]
	handles := make([]*Client, 0, len(set))
	for client := range set {
		handles = append(handles, client)
	}
	return handles
}

// IsOnline reports whether the identity has at least one live connection.
func (p *Presence) IsOnline(identity string) bool {
	p.mu.RLock()
	defer p.mu.RUnlock()

	return len(p.clients[identity]) > 0
}

// OnlineSnapshot returns every currently-online identity, sorted for
// deterministic output.
func (p *Presence) OnlineSnapshot() []string {
	p.mu.RLock()
	defer p.mu.RUnlock()

	identities := make([]string, 0, len(p.clients))
	for identity := range p.clients {
		identities = append(identities, identity)
	}
	sort.Strings(identities)
	return identities
}
