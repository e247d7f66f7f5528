package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ChanakaDev/ai-provider-example-websocket/agent"
	"github.com/ChanakaDev/ai-provider-example-websocket/config"
	"github.com/ChanakaDev/ai-provider-example-websocket/registry"
	"github.com/ChanakaDev/ai-provider-example-websocket/server"
)

func main() {
	// Load configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// Create the agent runtime (shared GenAI client)
	runtime, err := agent.NewGeminiRuntime(context.Background(), cfg.GeminiAPIKey, cfg.GeminiModel, cfg.Voice, cfg.SystemPrompt)
	if err != nil {
		log.Fatalf("Failed to create agent runtime: %v", err)
	}

	// Create session registry
	reg := registry.New(cfg, runtime)

	// Start idle-session cleanup (no-op when SESSION_TIMEOUT is unset)
	ctx, cancel := context.WithCancel(context.Background())
	go reg.StartCleanupRoutine(ctx)

	srv := server.NewServer(cfg, reg)

	// Handle graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	go func() {
		<-sigChan
		log.Println("\nReceived shutdown signal...")
		cancel()
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Printf("Server shutdown error: %v", err)
		}
	}()

	if err := srv.Start(); err != nil && err.Error() != "http: Server closed" {
		log.Fatalf("Server error: %v", err)
	}

	log.Println("Server stopped")
}
