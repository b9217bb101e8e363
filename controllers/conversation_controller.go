package controllers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/mentorhub/chat_backend/models"
	"github.com/mentorhub/chat_backend/store"
	"github.com/mentorhub/chat_backend/websocket"
)

// ConversationController exposes conversation and unread queries over HTTP.
// It consults the hub's presence registry to enrich rows with online flags.
type ConversationController struct {
	store *store.Store
	hub   *websocket.Hub
}

func NewConversationController(messageStore *store.Store, hub *websocket.Hub) *ConversationController {
	return &ConversationController{store: messageStore, hub: hub}
}

type conversationRow struct {
	store.ConversationSummary
	Online bool `json:"online"`
}

// List godoc
// @Summary List conversations for the authenticated user
// @Description Returns one row per counterpart the user has exchanged messages with, sorted by last message, with unread counts and presence flags
// @Tags conversations
// @Accept json
// @Produce json
// @Security BearerAuth
// @Success 200 {object} map[string]interface{} "List of conversations"
// @Failure 401 {object} map[string]string "Unauthorized"
// @Failure 500 {object} map[string]string "Server error"
// @Router /api/conversations [get]
func (cc *ConversationController) List(c *gin.Context) {
	identity := c.MustGet("identity").(string)

	summaries, err := cc.store.ConversationsFor(identity)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch conversations"})
		return
	}

	presence := cc.hub.Presence()
	rows := make([]conversationRow, 0, len(summaries))
	for _, summary := range summaries {
		rows = append(rows, conversationRow{
			ConversationSummary: summary,
			Online:              presence.IsOnline(summary.OtherParticipant),
		})
	}

	c.JSON(http.StatusOK, gin.H{"conversations": rows})
}

// History godoc
// @Summary Fetch message history with a counterpart
// @Description Returns messages of the conversation with the given user in stable (timestamp, id) order. Pagination anchors on after_id: only messages after that message are returned.
// @Tags conversations
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param with path string true "Counterpart identity"
// @Param after_id query int false "Return only messages after this message id"
// @Param limit query int false "Maximum number of messages (default 50)"
// @Success 200 {object} map[string]interface{} "Messages"
// @Failure 401 {object} map[string]string "Unauthorized"
// @Failure 500 {object} map[string]string "Server error"
// @Router /api/conversations/{with}/messages [get]
func (cc *ConversationController) History(c *gin.Context) {
	identity := c.MustGet("identity").(string)
	other := c.Param("with")

	limit := 50
	if v := c.Query("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			limit = n
		}
	}

	var afterID uint
	if v := c.Query("after_id"); v != "" {
		if n, err := strconv.ParseUint(v, 10, 32); err == nil {
			afterID = uint(n)
		}
	}

	key := models.DeriveConversationKey(identity, other)
	messages, err := cc.store.History(key, limit, afterID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch messages"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"conversation_key": key.String(),
		"messages":         messages,
	})
}

// MarkRead godoc
// @Summary Mark a conversation as read
// @Description Flips every unread message addressed to the authenticated user in the conversation to read, and returns how many were flipped
// @Tags conversations
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param with path string true "Counterpart identity"
// @Success 200 {object} map[string]interface{} "Number of messages marked"
// @Failure 401 {object} map[string]string "Unauthorized"
// @Failure 500 {object} map[string]string "Server error"
// @Router /api/conversations/{with}/read [post]
func (cc *ConversationController) MarkRead(c *gin.Context) {
	identity := c.MustGet("identity").(string)
	other := c.Param("with")

	key := models.DeriveConversationKey(identity, other)
	marked, err := cc.store.MarkRead(key, identity)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to mark conversation read"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"marked": marked})
}

// Unread godoc
// @Summary Fetch all unread messages for the authenticated user
// @Description Returns every unread message addressed to the user across all conversations, oldest first, for rebuilding notification state after a reconnect
// @Tags messages
// @Accept json
// @Produce json
// @Security BearerAuth
// @Success 200 {object} map[string]interface{} "Unread messages"
// @Failure 401 {object} map[string]string "Unauthorized"
// @Failure 500 {object} map[string]string "Server error"
// @Router /api/messages/unread [get]
func (cc *ConversationController) Unread(c *gin.Context) {
	identity := c.MustGet("identity").(string)

	messages, err := cc.store.UnreadFor(identity)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch unread messages"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"messages": messages})
}
