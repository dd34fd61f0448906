package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"drawsync/internal/api"
	"drawsync/internal/auth"
	"drawsync/internal/config"
	"drawsync/internal/db"
	"drawsync/internal/hub"
	"drawsync/internal/repository"
	"drawsync/internal/services"
	"drawsync/internal/telemetry"
)

func main() {
	log.Println("🚀 Starting drawsync server...")

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("❌ Failed to load config: %v", err)
	}

	// Initialize Jaeger tracing first so all operations are traced
	jaegerShutdown, err := telemetry.InitJaeger("drawsync", cfg.JaegerEndpoint)
	if err != nil {
		log.Printf("⚠️  Failed to initialize Jaeger: %v (continuing without tracing)", err)
		jaegerShutdown = func(ctx context.Context) error { return nil }
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := jaegerShutdown(ctx); err != nil {
			log.Printf("⚠️  Failed to shutdown Jaeger: %v", err)
		}
	}()

	// Initialize GORM database
	database, err := db.NewGorm(cfg)
	if err != nil {
		log.Fatalf("❌ Failed to connect to database: %v", err)
	}
	defer database.Close()

	// Initialize repositories
	roomRepo := repository.NewRoomRepository(database.DB)
	chatRepo := repository.NewChatRepository(database.DB)

	// Session authenticator: verifies tokens issued by the credential
	// service, never mints them
	authenticator := auth.NewAuthenticator(cfg.JWTSecret)

	// Chat archiver worker pool keeps chat persistence off the hub loop
	archiver := services.NewChatArchiver(chatRepo, cfg.ArchiveWorkers, cfg.ArchiveQueueSize)
	archiver.Start()

	// Room hub: the single event loop that owns all live room state
	roomHub := hub.New()
	roomHub.SetArchiver(archiver)
	roomHub.Start()

	// Connection gateway binds authenticated sockets to the hub
	gateway := hub.NewGateway(roomHub, authenticator)

	// Handlers and routes
	handler := api.NewHandler(roomRepo, chatRepo, gateway)
	router := api.SetupRoutes(handler, authenticator)

	// Configure HTTP server
	addr := fmt.Sprintf("%s:%s", cfg.ServerHost, cfg.ServerPort)
	server := &http.Server{
		Addr:         addr,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Printf("🌐 Server listening on http://%s", addr)
		log.Printf("📚 API Endpoints:")
		log.Printf("   POST   /api/rooms               - Create room")
		log.Printf("   GET    /api/rooms               - List rooms")
		log.Printf("   GET    /api/rooms/:id           - Get room")
		log.Printf("   GET    /api/rooms/:id/messages  - Archived chat history")
		log.Printf("   GET    /ws?token=...            - Live room socket")
		log.Println()

		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("❌ Server error: %v", err)
		}
	}()

	// Wait for interrupt signal to gracefully shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("\n🛑 Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.Printf("⚠️  Server forced to shutdown: %v", err)
	}

	// Close live connections, then drain the archive queue
	roomHub.Shutdown()
	archiver.Shutdown()

	log.Println("✓ Server shutdown complete")
}
