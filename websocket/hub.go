package websocket

import (
	"encoding/json"
	"errors"
	"log"
	"strings"

	"github.com/mentorhub/chat_backend/models"
	"github.com/mentorhub/chat_backend/permissions"
	"github.com/mentorhub/chat_backend/store"
	"github.com/mentorhub/chat_backend/utils"
)

var (
	errNotAttached     = errors.New("event before attach")
	errDuplicateAttach = errors.New("duplicate attach")
)

// Hub routes events between live connections and the permission gate,
// message store and presence registry. Instances are injected wherever
// connections are owned; there is no package-level hub.
type Hub struct {
	presence *Presence
	gate     *permissions.Gate
	store    *store.Store
}

func NewHub(gate *permissions.Gate, messageStore *store.Store) *Hub {
	return &Hub{
		presence: NewPresence(),
		gate:     gate,
		store:    messageStore,
	}
}

// Presence exposes the registry for presence queries outside the socket
// surface (e.g. the conversation list enriching rows with online flags).
func (h *Hub) Presence() *Presence {
	return h.presence
}

// HandleEvent processes one inbound event from a connection. A non-nil error
// means the connection is protocol-invalid and must be dropped; per-operation
// failures are reported to the offending connection only and keep it open.
func (h *Hub) HandleEvent(c *Client, payload []byte) error {
	var msg Message
	if err := json.Unmarshal(payload, &msg); err != nil {
		log.Printf("error unmarshaling event: %v", err)
		sendError(c, ReasonValidationFailed, "malformed event")
		return nil
	}

	if !c.attached && msg.Type != EventAttach {
		sendError(c, ReasonNotAttached, "attach before sending events")
		return errNotAttached
	}

	switch msg.Type {
	case EventAttach:
		return h.handleAttach(c, msg.Payload)
	case EventSendMessage:
		h.handleSendMessage(c, msg.Payload)
	case EventTyping:
		h.handleTyping(c, msg.Payload, false)
	case EventStopTyping:
		h.handleTyping(c, msg.Payload, true)
	case EventChatRequestResponse:
		h.handleRequestResponse(c, msg.Payload)
	default:
		sendError(c, ReasonValidationFailed, "unknown event type")
	}
	return nil
}

// handleAttach binds the connection to an identity resolved from its token,
// registers the handle and pushes the online snapshot back so the client can
// render presence without a separate request. A connection attaches at most
// once; a second attach would rebind the identity under a live handle, so it
// is rejected and the connection dropped.
func (h *Hub) handleAttach(c *Client, payload interface{}) error {
	if c.attached {
		sendError(c, ReasonValidationFailed, "already attached")
		return errDuplicateAttach
	}

	var attach AttachPayload
	if err := decodePayload(payload, &attach); err != nil {
		sendError(c, ReasonValidationFailed, "malformed attach payload")
		return nil
	}

	identity, _, err := utils.ParseToken(attach.Token)
	if err != nil || strings.TrimSpace(identity) == "" {
		sendError(c, ReasonInvalidIdentity, "invalid token")
		return nil
	}

	c.identity = identity
	c.attached = true
	cameOnline := h.presence.Register(identity, c)

	c.deliver(Message{
		Type: EventAttached,
		Payload: AttachedPayload{
			Identity: identity,
			Online:   h.presence.OnlineSnapshot(),
		},
	}, false)

	if cameOnline {
		h.broadcastPresence(identity, true)
	}
	return nil
}

// handleSendMessage persists the message under the gate's pair lock, echoes a
// delivery ack to the sending connection and fans the message out to every
// live handle of the receiver. If the receiver is offline the durable row is
// all that happens; they discover it through the unread queries.
func (h *Hub) handleSendMessage(c *Client, payload interface{}) {
	var send SendMessagePayload
	if err := decodePayload(payload, &send); err != nil {
		reject(c, ReasonValidationFailed, "malformed message payload")
		return
	}

	receiver := strings.TrimSpace(send.Receiver)
	if receiver == "" || receiver == c.identity {
		reject(c, ReasonInvalidIdentity, "invalid receiver")
		return
	}

	var saved *models.Message
	err := h.gate.Authorized(c.identity, receiver, func() error {
		var appendErr error
		saved, appendErr = h.store.Append(c.identity, receiver, send.Content, send.Type)
		return appendErr
	})
	if err != nil {
		switch {
		case errors.Is(err, permissions.ErrPermissionDenied):
			reject(c, ReasonPermissionDenied, "no approved chat request")
		case errors.Is(err, store.ErrValidationFailed):
			reject(c, ReasonValidationFailed, err.Error())
		default:
			log.Printf("error persisting message from %s: %v", c.identity, err)
			reject(c, ReasonDeliveryFailed, "message not persisted, resend to retry")
		}
		return
	}

	c.deliver(Message{Type: EventMessageDelivered, Payload: MessagePayload{Message: saved}}, false)

	for _, handle := range h.presence.HandlesFor(receiver) {
		handle.deliver(Message{Type: EventMessageReceived, Payload: MessagePayload{Message: saved}}, false)
	}
}

// handleTyping forwards a typing signal to the receiver's handles, but only
// if the pair may exchange messages. Unauthorized signals are dropped
// silently so nothing leaks to a party that never approved the sender;
// a payload that does not decode is still an error back to the sender.
func (h *Hub) handleTyping(c *Client, payload interface{}, stop bool) {
	var typing TypingPayload
	if err := decodePayload(payload, &typing); err != nil {
		sendError(c, ReasonValidationFailed, "malformed typing payload")
		return
	}
	receiver := strings.TrimSpace(typing.Receiver)
	if receiver == "" || receiver == c.identity {
		return
	}

	ok, err := h.gate.CanExchange(c.identity, receiver)
	if err != nil || !ok {
		return
	}

	eventType := EventUserTyping
	if stop {
		eventType = EventUserStopTyping
	}
	for _, handle := range h.presence.HandlesFor(receiver) {
		handle.deliver(Message{Type: eventType, Payload: TypingNotice{Identity: c.identity}}, true)
	}
}

// handleRequestResponse resolves a chat request over the live connection and
// pushes the outcome to the original sender. Only the request's receiver may
// respond; anyone else sees not-found rather than the request's existence.
func (h *Hub) handleRequestResponse(c *Client, payload interface{}) {
	var response RequestResponsePayload
	if err := decodePayload(payload, &response); err != nil {
		sendError(c, ReasonValidationFailed, "malformed response payload")
		return
	}

	request, err := h.gate.Get(response.RequestID)
	if err != nil || request.Receiver != c.identity {
		sendError(c, ReasonNotFound, "chat request not found")
		return
	}

	request, err = h.gate.Respond(response.RequestID, response.Decision)
	if err != nil {
		switch {
		case errors.Is(err, permissions.ErrAlreadyResolved):
			sendError(c, ReasonAlreadyResolved, "chat request already resolved")
		case errors.Is(err, permissions.ErrInvalidDecision):
			sendError(c, ReasonValidationFailed, "decision must be approve or decline")
		case errors.Is(err, permissions.ErrNotFound):
			sendError(c, ReasonNotFound, "chat request not found")
		default:
			log.Printf("error responding to request %d: %v", response.RequestID, err)
			sendError(c, ReasonDeliveryFailed, "response not recorded, retry")
		}
		return
	}

	h.NotifyRequestResponded(request)
	c.deliver(Message{Type: EventRequestResponded, Payload: RequestPayload{Request: request}}, false)
}

// Detach unregisters the connection. If it was the identity's last handle,
// conversation partners that are online hear about the offline transition.
func (h *Hub) Detach(c *Client) {
	if !c.attached {
		return
	}
	if h.presence.Unregister(c.identity, c) {
		h.broadcastPresence(c.identity, false)
	}
}

// NotifyRequestCreated pushes a new-request notification to the receiver's
// live handles. Called by the HTTP surface after the gate created the row.
func (h *Hub) NotifyRequestCreated(request *models.ChatRequest) {
	for _, handle := range h.presence.HandlesFor(request.Receiver) {
		handle.deliver(Message{Type: EventNewChatRequest, Payload: RequestPayload{Request: request}}, false)
	}
}

// NotifyRequestResponded pushes the approval or decline to the original
// sender's live handles.
func (h *Hub) NotifyRequestResponded(request *models.ChatRequest) {
	for _, handle := range h.presence.HandlesFor(request.Sender) {
		handle.deliver(Message{Type: EventRequestResponded, Payload: RequestPayload{Request: request}}, false)
	}
}

// broadcastPresence tells the identity's online conversation partners about
// a presence transition.
func (h *Hub) broadcastPresence(identity string, online bool) {
	partners, err := h.store.PartnersOf(identity)
	if err != nil {
		log.Printf("error loading partners of %s: %v", identity, err)
		return
	}

	notice := Message{Type: EventPresenceChanged, Payload: PresencePayload{Identity: identity, Online: online}}
	for _, partner := range partners {
		for _, handle := range h.presence.HandlesFor(partner) {
			handle.deliver(notice, true)
		}
	}
}

func reject(c *Client, reason, detail string) {
	c.deliver(Message{Type: EventMessageRejected, Payload: RejectionPayload{Reason: reason, Detail: detail}}, false)
}

func sendError(c *Client, reason, detail string) {
	c.deliver(Message{Type: EventError, Payload: RejectionPayload{Reason: reason, Detail: detail}}, false)
}

// decodePayload re-marshals the loosely-typed payload into its concrete
// shape, the same two-step the incoming event envelope needs everywhere.
func decodePayload(payload interface{}, out interface{}) error {
	raw, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	return json.Unmarshal(raw, out)
}
