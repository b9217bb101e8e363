package controllers

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/mentorhub/chat_backend/middleware"
	"github.com/mentorhub/chat_backend/models"
	"github.com/mentorhub/chat_backend/permissions"
	"github.com/mentorhub/chat_backend/store"
	"github.com/mentorhub/chat_backend/utils"
	"github.com/mentorhub/chat_backend/websocket"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

type testAPI struct {
	router *gin.Engine
	gate   *permissions.Gate
	store  *store.Store
}

func newTestAPI(t *testing.T) *testAPI {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", strings.ReplaceAll(t.Name(), "/", "_"))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}
	if err := db.AutoMigrate(&models.ChatRequest{}, &models.Message{}); err != nil {
		t.Fatalf("failed to migrate test database: %v", err)
	}

	gate := permissions.NewGate(db)
	messageStore := store.New(db, gate)
	hub := websocket.NewHub(gate, messageStore)
	requestController := NewRequestController(gate, hub)
	conversationController := NewConversationController(messageStore, hub)

	gin.SetMode(gin.TestMode)
	router := gin.New()
	api := router.Group("/api")
	api.Use(middleware.JWTAuth())
	{
		api.GET("/requests", requestController.List)
		api.POST("/requests", requestController.Create)
		api.POST("/requests/respond", requestController.Respond)
		api.GET("/conversations", conversationController.List)
		api.GET("/conversations/:with/messages", conversationController.History)
		api.POST("/conversations/:with/read", conversationController.MarkRead)
		api.GET("/messages/unread", conversationController.Unread)
	}

	return &testAPI{router: router, gate: gate, store: messageStore}
}

func (api *testAPI) do(t *testing.T, identity, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()

	var reader *bytes.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("failed to marshal body: %v", err)
		}
		reader = bytes.NewReader(payload)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if identity != "" {
		token, err := utils.GenerateToken(identity, "student")
		if err != nil {
			t.Fatalf("failed to mint token: %v", err)
		}
		req.Header.Set("Authorization", "Bearer "+token)
	}

	recorder := httptest.NewRecorder()
	api.router.ServeHTTP(recorder, req)
	return recorder
}

func TestAuthRequired(t *testing.T) {
	api := newTestAPI(t)

	resp := api.do(t, "", "GET", "/api/requests", nil)
	if resp.Code != http.StatusUnauthorized {
		t.Errorf("expected 401 without token, got %d", resp.Code)
	}
}

func TestCreateAndListRequests(t *testing.T) {
	api := newTestAPI(t)

	resp := api.do(t, "a@example.com", "POST", "/api/requests",
		CreateRequestInput{Receiver: "b@example.com", Message: "hi"})
	if resp.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", resp.Code, resp.Body.String())
	}

	// Duplicate reports the existing request instead of creating a new row.
	resp = api.do(t, "a@example.com", "POST", "/api/requests",
		CreateRequestInput{Receiver: "b@example.com"})
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 for duplicate, got %d", resp.Code)
	}

	resp = api.do(t, "b@example.com", "GET", "/api/requests", nil)
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.Code)
	}
	var listing struct {
		Requests []models.ChatRequest `json:"requests"`
	}
	if err := json.Unmarshal(resp.Body.Bytes(), &listing); err != nil {
		t.Fatalf("malformed listing: %v", err)
	}
	if len(listing.Requests) != 1 {
		t.Fatalf("expected 1 request, got %d", len(listing.Requests))
	}
	if listing.Requests[0].Status != models.RequestPending {
		t.Errorf("expected pending request, got %q", listing.Requests[0].Status)
	}
}

func TestCreateRequestSelf(t *testing.T) {
	api := newTestAPI(t)

	resp := api.do(t, "a@example.com", "POST", "/api/requests",
		CreateRequestInput{Receiver: "a@example.com"})
	if resp.Code != http.StatusBadRequest {
		t.Errorf("expected 400 for self request, got %d", resp.Code)
	}
}

func TestRespondToRequest(t *testing.T) {
	api := newTestAPI(t)

	request, _, err := api.gate.CreateRequest("a@example.com", "b@example.com", "hi")
	if err != nil {
		t.Fatalf("CreateRequest failed: %v", err)
	}

	// Only the receiver may respond.
	resp := api.do(t, "a@example.com", "POST", "/api/requests/respond",
		RespondRequestInput{RequestID: request.ID, Decision: "approve"})
	if resp.Code != http.StatusNotFound {
		t.Errorf("expected 404 for non-receiver respond, got %d", resp.Code)
	}

	resp = api.do(t, "b@example.com", "POST", "/api/requests/respond",
		RespondRequestInput{RequestID: request.ID, Decision: "approve"})
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", resp.Code, resp.Body.String())
	}

	ok, err := api.gate.CanExchange("a@example.com", "b@example.com")
	if err != nil || !ok {
		t.Errorf("pair cannot exchange after approval (ok=%v err=%v)", ok, err)
	}

	// Second respond conflicts and changes nothing.
	resp = api.do(t, "b@example.com", "POST", "/api/requests/respond",
		RespondRequestInput{RequestID: request.ID, Decision: "decline"})
	if resp.Code != http.StatusConflict {
		t.Errorf("expected 409 for double respond, got %d", resp.Code)
	}
	if ok, _ := api.gate.CanExchange("a@example.com", "b@example.com"); !ok {
		t.Error("approval lost after rejected double-respond")
	}

	resp = api.do(t, "b@example.com", "POST", "/api/requests/respond",
		RespondRequestInput{RequestID: 9999, Decision: "approve"})
	if resp.Code != http.StatusNotFound {
		t.Errorf("expected 404 for unknown request, got %d", resp.Code)
	}
}

func approvePair(t *testing.T, api *testAPI, a, b string) {
	t.Helper()
	request, _, err := api.gate.CreateRequest(a, b, "")
	if err != nil {
		t.Fatalf("CreateRequest failed: %v", err)
	}
	if _, err := api.gate.Respond(request.ID, permissions.DecisionApprove); err != nil {
		t.Fatalf("Respond failed: %v", err)
	}
}

func TestConversationEndpoints(t *testing.T) {
	api := newTestAPI(t)
	approvePair(t, api, "a@example.com", "b@example.com")

	for _, content := range []string{"one", "two", "three"} {
		if _, err := api.store.Append("a@example.com", "b@example.com", content, "text"); err != nil {
			t.Fatalf("Append failed: %v", err)
		}
	}

	// Conversation list with unread count and presence flag.
	resp := api.do(t, "b@example.com", "GET", "/api/conversations", nil)
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.Code)
	}
	var listing struct {
		Conversations []struct {
			OtherParticipant string `json:"other_participant"`
			UnreadCount      int64  `json:"unread_count"`
			Online           bool   `json:"online"`
		} `json:"conversations"`
	}
	if err := json.Unmarshal(resp.Body.Bytes(), &listing); err != nil {
		t.Fatalf("malformed listing: %v", err)
	}
	if len(listing.Conversations) != 1 {
		t.Fatalf("expected 1 conversation, got %d", len(listing.Conversations))
	}
	row := listing.Conversations[0]
	if row.OtherParticipant != "a@example.com" || row.UnreadCount != 3 || row.Online {
		t.Errorf("unexpected row: %+v", row)
	}

	// Paginated history.
	resp = api.do(t, "b@example.com", "GET", "/api/conversations/a@example.com/messages?limit=2", nil)
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.Code)
	}
	var history struct {
		Messages []models.Message `json:"messages"`
	}
	if err := json.Unmarshal(resp.Body.Bytes(), &history); err != nil {
		t.Fatalf("malformed history: %v", err)
	}
	if len(history.Messages) != 2 || history.Messages[0].Content != "one" {
		t.Fatalf("unexpected first page: %+v", history.Messages)
	}

	next := fmt.Sprintf("/api/conversations/a@example.com/messages?limit=2&after_id=%d", history.Messages[1].ID)
	resp = api.do(t, "b@example.com", "GET", next, nil)
	if err := json.Unmarshal(resp.Body.Bytes(), &history); err != nil {
		t.Fatalf("malformed history: %v", err)
	}
	if len(history.Messages) != 1 || history.Messages[0].Content != "three" {
		t.Fatalf("unexpected second page: %+v", history.Messages)
	}

	// Global unread, then mark the conversation read.
	resp = api.do(t, "b@example.com", "GET", "/api/messages/unread", nil)
	var unread struct {
		Messages []models.Message `json:"messages"`
	}
	if err := json.Unmarshal(resp.Body.Bytes(), &unread); err != nil {
		t.Fatalf("malformed unread: %v", err)
	}
	if len(unread.Messages) != 3 {
		t.Fatalf("expected 3 unread, got %d", len(unread.Messages))
	}

	resp = api.do(t, "b@example.com", "POST", "/api/conversations/a@example.com/read", nil)
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.Code)
	}
	var marked struct {
		Marked int64 `json:"marked"`
	}
	if err := json.Unmarshal(resp.Body.Bytes(), &marked); err != nil {
		t.Fatalf("malformed mark response: %v", err)
	}
	if marked.Marked != 3 {
		t.Errorf("expected 3 marked, got %d", marked.Marked)
	}

	resp = api.do(t, "b@example.com", "GET", "/api/messages/unread", nil)
	if err := json.Unmarshal(resp.Body.Bytes(), &unread); err != nil {
		t.Fatalf("malformed unread: %v", err)
	}
	if len(unread.Messages) != 0 {
		t.Errorf("unread not cleared: %d left", len(unread.Messages))
	}
}
