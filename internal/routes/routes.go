package routes

import (
	"hotel-operations-api/internal/handlers"
	"hotel-operations-api/internal/middleware"
	"hotel-operations-api/internal/realtime"
	"hotel-operations-api/internal/voice"

	"github.com/gin-gonic/gin"
)

// SetupRoutes wires the HTTP surface around an injected hub. The hub is
// owned by main, not a package-level singleton.
func SetupRoutes(hub *realtime.Hub, voiceClient *voice.Client) *gin.Engine {
	// Create a new GIN Router
	ginRouter := gin.Default()

	// CORS middleware (for frontend integration)
	ginRouter.Use(func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Credentials", "true")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Content-Length, Accept-Encoding, X-CSRF-Token, Authorization, accept, origin, Cache-Control, X-Requested-With")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "POST, OPTIONS, GET, PUT, DELETE, PATCH")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(204) // This depends on the implementation of the frontend
			return
		}

		c.Next()
	})

	ticketHandler := handlers.NewTicketHandler(hub)
	voiceLogHandler := handlers.NewVoiceLogHandler(hub, voiceClient)
	wsHandler := handlers.NewWSHandler(hub)

	// Health check endpoint, reporting live connection stats
	ginRouter.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{
			"status":   "ok",
			"message":  "Hotel Operations API is running",
			"realtime": hub.Stats(),
		})
	})

	// Public routes (no authentication required)
	api := ginRouter.Group("/api")
	{
		// Login / registration endpoints
		api.POST("/login", handlers.Login)
		api.POST("/register", handlers.Register)
	}

	// Protected routes (authentication required)
	protectedRoutes := api.Group("")
	protectedRoutes.Use(middleware.JWTAuthMiddleware())
	{
		// Ticket endpoints
		protectedRoutes.GET("/tickets", ticketHandler.GetTickets)
		protectedRoutes.GET("/tickets/:id", ticketHandler.GetTicketByID)
		protectedRoutes.POST("/tickets", ticketHandler.CreateTicket)
		protectedRoutes.PUT("/tickets/:id", ticketHandler.UpdateTicket)
		protectedRoutes.PATCH("/tickets/:id/status", ticketHandler.UpdateTicketStatus)
		protectedRoutes.DELETE("/tickets/:id", ticketHandler.DeleteTicket)
		protectedRoutes.GET("/stats/:userid", ticketHandler.GetStatsByAssignee)
		// Voice log endpoints
		protectedRoutes.GET("/voice-logs", voiceLogHandler.GetVoiceLogs)
		protectedRoutes.POST("/voice-logs", voiceLogHandler.CreateVoiceLog)
		protectedRoutes.DELETE("/voice-logs/:id", voiceLogHandler.DeleteVoiceLog)
		// Users endpoint
		protectedRoutes.GET("/users", handlers.GetAllUsers)
		// Realtime push channel
		protectedRoutes.GET("/ws", wsHandler.Serve)
	}

	return ginRouter
}
