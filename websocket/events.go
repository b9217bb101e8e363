package websocket

import (
	"github.com/mentorhub/chat_backend/models"
)

// Message represents a websocket message
type Message struct {
	Type    string      `json:"type"`
	Payload interface{} `json:"payload"`
}

// Client -> server event types
const (
	EventAttach              = "attach"
	EventSendMessage         = "sendMessage"
	EventTyping              = "typing"
	EventStopTyping          = "stopTyping"
	EventChatRequestResponse = "chatRequestResponse"
)

// Server -> client event types
const (
	EventAttached         = "attached"
	EventMessageReceived  = "messageReceived"
	EventMessageDelivered = "messageDelivered"
	EventMessageRejected  = "messageRejected"
	EventUserTyping       = "userTyping"
	EventUserStopTyping   = "userStopTyping"
	EventNewChatRequest   = "newChatRequest"
	EventRequestResponded = "chatRequestResponse"
	EventPresenceChanged  = "presenceChanged"
	EventError            = "error"
)

// Rejection and error reason codes
const (
	ReasonNotAttached      = "not-attached"
	ReasonInvalidIdentity  = "invalid-identity"
	ReasonPermissionDenied = "permission-denied"
	ReasonValidationFailed = "validation-failed"
	ReasonNotFound         = "not-found"
	ReasonAlreadyResolved  = "already-resolved"
	ReasonDeliveryFailed   = "delivery-failed"
)

type AttachPayload struct {
	Token string `json:"token"`
}

type AttachedPayload struct {
	Identity string   `json:"identity"`
	Online   []string `json:"online"`
}

type SendMessagePayload struct {
	Receiver string `json:"receiver"`
	Content  string `json:"content"`
	Type     string `json:"message_type"`
}

type TypingPayload struct {
	Receiver string `json:"receiver"`
}

type RequestResponsePayload struct {
	RequestID uint   `json:"request_id"`
	Decision  string `json:"decision"`
}

type RejectionPayload struct {
	Reason string `json:"reason"`
	Detail string `json:"detail,omitempty"`
}

type TypingNotice struct {
	Identity string `json:"identity"`
}

type PresencePayload struct {
	Identity string `json:"identity"`
	Online   bool   `json:"online"`
}

type MessagePayload struct {
	Message *models.Message `json:"message"`
}

type RequestPayload struct {
	Request *models.ChatRequest `json:"request"`
}
