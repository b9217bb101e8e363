package controllers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/mentorhub/chat_backend/permissions"
	"github.com/mentorhub/chat_backend/websocket"
)

type CreateRequestInput struct {
	Receiver string `json:"receiver" binding:"required" example:"mentor@example.com"`
	Message  string `json:"message" example:"Hi, I'd like to discuss my career path"`
}

type RespondRequestInput struct {
	RequestID uint   `json:"request_id" binding:"required" example:"1"`
	Decision  string `json:"decision" binding:"required,oneof=approve decline" example:"approve"`
}

// RequestController exposes the chat-request handshake over HTTP.
type RequestController struct {
	gate *permissions.Gate
	hub  *websocket.Hub
}

func NewRequestController(gate *permissions.Gate, hub *websocket.Hub) *RequestController {
	return &RequestController{gate: gate, hub: hub}
}

// Create godoc
// @Summary Send a chat request
// @Description Opens a chat request to another user. If an approved or pending request already exists between the pair, that request is returned instead of creating a duplicate.
// @Tags requests
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body CreateRequestInput true "Chat request"
// @Success 200 {object} map[string]interface{} "Existing active request"
// @Success 201 {object} map[string]interface{} "Request created"
// @Failure 400 {object} map[string]string "Invalid input"
// @Failure 401 {object} map[string]string "Unauthorized"
// @Failure 500 {object} map[string]string "Server error"
// @Router /api/requests [post]
func (rc *RequestController) Create(c *gin.Context) {
	identity := c.MustGet("identity").(string)

	var input CreateRequestInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	request, alreadyActive, err := rc.gate.CreateRequest(identity, input.Receiver, input.Message)
	if err != nil {
		if errors.Is(err, permissions.ErrInvalidIdentity) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Cannot open a chat request with yourself"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create chat request"})
		return
	}

	if alreadyActive {
		c.JSON(http.StatusOK, gin.H{
			"message": "An active request already exists for this pair",
			"request": request,
		})
		return
	}

	// Real-time push to the receiver, if connected
	rc.hub.NotifyRequestCreated(request)

	c.JSON(http.StatusCreated, gin.H{
		"message": "Chat request sent successfully",
		"request": request,
	})
}

// Respond godoc
// @Summary Respond to a chat request
// @Description Approve or decline a pending chat request. Only the receiver may respond, and only once.
// @Tags requests
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param response body RespondRequestInput true "Request response"
// @Success 200 {object} map[string]interface{} "Response recorded"
// @Failure 400 {object} map[string]string "Invalid input"
// @Failure 401 {object} map[string]string "Unauthorized"
// @Failure 404 {object} map[string]string "Request not found"
// @Failure 409 {object} map[string]string "Request already resolved"
// @Failure 500 {object} map[string]string "Server error"
// @Router /api/requests/respond [post]
func (rc *RequestController) Respond(c *gin.Context) {
	identity := c.MustGet("identity").(string)

	var input RespondRequestInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	// Only the receiver may respond; anyone else sees not-found rather than
	// learning the request exists.
	request, err := rc.gate.Get(input.RequestID)
	if err != nil || request.Receiver != identity {
		c.JSON(http.StatusNotFound, gin.H{"error": "Chat request not found"})
		return
	}

	request, err = rc.gate.Respond(input.RequestID, input.Decision)
	if err != nil {
		switch {
		case errors.Is(err, permissions.ErrNotFound):
			c.JSON(http.StatusNotFound, gin.H{"error": "Chat request not found"})
		case errors.Is(err, permissions.ErrAlreadyResolved):
			c.JSON(http.StatusConflict, gin.H{"error": "Chat request already resolved"})
		case errors.Is(err, permissions.ErrInvalidDecision):
			c.JSON(http.StatusBadRequest, gin.H{"error": "Decision must be approve or decline"})
		default:
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to respond to chat request"})
		}
		return
	}

	// Real-time push to the original sender, if connected
	rc.hub.NotifyRequestResponded(request)

	c.JSON(http.StatusOK, gin.H{
		"message": "Response recorded successfully",
		"request": request,
	})
}

// List godoc
// @Summary List chat requests for the authenticated user
// @Description Returns every request the user sent or received, newest first
// @Tags requests
// @Accept json
// @Produce json
// @Security BearerAuth
// @Success 200 {object} map[string]interface{} "List of requests"
// @Failure 401 {object} map[string]string "Unauthorized"
// @Failure 500 {object} map[string]string "Server error"
// @Router /api/requests [get]
func (rc *RequestController) List(c *gin.Context) {
	identity := c.MustGet("identity").(string)

	requests, err := rc.gate.ListForUser(identity)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch chat requests"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"requests": requests})
}
