package main

import (
	"log"
	"os"
	"os/signal"
	"syscall"

	"hotel-operations-api/internal/database"
	"hotel-operations-api/internal/realtime"
	"hotel-operations-api/internal/routes"
	"hotel-operations-api/internal/voice"
)

func main() {
	// Init database
	database.InitDB()

	// The hub owns the realtime connection registry; handlers get it injected
	hub := realtime.NewHub(realtime.Options{})
	defer hub.Shutdown()

	voiceClient := voice.NewClient()

	// Setup the routes (public and protected routes)
	ginRoutes := routes.SetupRoutes(hub, voiceClient)

	// Drain connections cleanly on SIGINT/SIGTERM
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		log.Println("Shutting down, evicting realtime connections")
		hub.Shutdown()
		os.Exit(0)
	}()

	// Start server
	port := os.Getenv("PORT")
	if port == "" {
		port = "8008"
	}
	log.Printf("Server starting on port :%s", port)
	log.Println("API endpoints:")
	log.Println("  POST   /api/login")
	log.Println("  POST   /api/register")
	log.Println("  GET    /api/tickets")
	log.Println("  GET    /api/tickets/:id")
	log.Println("  POST   /api/tickets")
	log.Println("  PUT    /api/tickets/:id")
	log.Println("  PATCH  /api/tickets/:id/status")
	log.Println("  DELETE /api/tickets/:id")
	log.Println("  GET    /api/voice-logs")
	log.Println("  POST   /api/voice-logs")
	log.Println("  GET    /api/ws")
	log.Println("  GET    /health")

	if err := ginRoutes.Run(":" + port); err != nil {
		log.Fatal("Failed to start server: ", err)
	}
}
