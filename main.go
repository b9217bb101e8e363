package main

import (
	"log"
	"os"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/mentorhub/chat_backend/controllers"
	"github.com/mentorhub/chat_backend/database"
	"github.com/mentorhub/chat_backend/docs"
	"github.com/mentorhub/chat_backend/middleware"
	"github.com/mentorhub/chat_backend/permissions"
	"github.com/mentorhub/chat_backend/store"
	"github.com/mentorhub/chat_backend/websocket"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
)

// @title           Mentorship Chat API
// @version         1.0
// @description     Real-time messaging API for the mentorship marketplace
// @host            localhost:8080
// @BasePath        /
// @schemes         http
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
// @description Type "Bearer" followed by a space and JWT token.
func main() {
	// Load environment variables
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using system environment variables")
	}

	// Initialize database
	database.Connect()
	database.Migrate()

	// Set up Swagger info
	docs.SwaggerInfo.Title = "Mentorship Chat API"
	docs.SwaggerInfo.Description = "Real-time messaging API for the mentorship marketplace"
	docs.SwaggerInfo.Version = "1.0"
	docs.SwaggerInfo.Host = "localhost:" + os.Getenv("PORT")
	if docs.SwaggerInfo.Host == "localhost:" {
		docs.SwaggerInfo.Host = "localhost:8080"
	}
	docs.SwaggerInfo.BasePath = "/"
	docs.SwaggerInfo.Schemes = []string{"http"}

	// Wire up components
	gate := permissions.NewGate(database.DB)
	messageStore := store.New(database.DB, gate)
	hub := websocket.NewHub(gate, messageStore)
	requestController := controllers.NewRequestController(gate, hub)
	conversationController := controllers.NewConversationController(messageStore, hub)

	// Set up router
	router := gin.Default()

	// CORS middleware
	router.Use(func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Credentials", "true")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Content-Length, Accept-Encoding, X-CSRF-Token, Authorization, accept, origin, Cache-Control, X-Requested-With")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "POST, OPTIONS, GET, PUT, DELETE")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(204)
			return
		}

		c.Next()
	})

	// Swagger documentation
	router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	// Protected routes
	api := router.Group("/api")
	api.Use(middleware.JWTAuth())
	{
		// Chat request routes
		api.GET("/requests", requestController.List)
		api.POST("/requests", requestController.Create)
		api.POST("/requests/respond", requestController.Respond)

		// Conversation routes
		api.GET("/conversations", conversationController.List)
		api.GET("/conversations/:with/messages", conversationController.History)
		api.POST("/conversations/:with/read", conversationController.MarkRead)
		api.GET("/messages/unread", conversationController.Unread)
	}

	// WebSocket route
	router.GET("/ws", hub.HandleConnection)

	// Start server
	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}

	log.Printf("Server running on port %s", port)
	log.Printf("Swagger documentation available at http://localhost:%s/swagger/index.html", port)
	if err := router.Run(":" + port); err != nil {
		log.Fatalf("Failed to start server: %v", err)
	}
}
