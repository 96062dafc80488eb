package main

import (
	"context"
	"fmt"
	"log"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/playgroundai/playground-api/internal/api"
	"github.com/playgroundai/playground-api/internal/auth"
	"github.com/playgroundai/playground-api/internal/config"
	"github.com/playgroundai/playground-api/internal/core"
	"github.com/playgroundai/playground-api/internal/notify"
	"github.com/playgroundai/playground-api/internal/store"
)

const portProbeAttempts = 10

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	// Setup logging
	log.SetFlags(log.LstdFlags | log.Lshortfile)
	if cfg.LogLevel == "DEBUG" {
		log.Println("Service starting in DEBUG mode")
	}

	// Initialize file-backed store
	files, err := store.NewFileStore(cfg.DataDir)
	if err != nil {
		log.Fatalf("Failed to initialize store: %v", err)
	}
	registry := auth.NewRegistry(files)
	historyStore := store.NewHistoryStore(files)

	// Initialize engine client
	engine, err := core.NewEngineService(context.Background(), cfg)
	if err != nil {
		log.Fatalf("Failed to initialize engine service: %v", err)
	}
	defer engine.Close()

	// Initialize webhook notifier (disabled when WEBHOOK_URL is unset)
	notifier := notify.NewNotifier(cfg.WebhookURL)
	defer notifier.Close()

	// Initialize Chat service
	chatService := core.NewChatService(registry, historyStore, engine, notifier, cfg.ServiceName)

	// Initialize API Handler and Router
	apiHandler := api.NewAPIHandler(chatService)
	router := api.NewRouter(apiHandler)

	port, err := findFreePort(cfg.HTTPPort, portProbeAttempts)
	if err != nil {
		log.Fatal(err)
	}
	serverAddr := fmt.Sprintf(":%d", port)

	srv := &http.Server{
		Addr:         serverAddr,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 90 * time.Second, // Engine calls can take time
		IdleTimeout:  120 * time.Second,
	}

	// Graceful shutdown handling
	go func() {
		log.Printf("Starting server on %s. Press Ctrl+C to quit.", serverAddr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Could not listen on %s: %v\n", serverAddr, err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Fatalf("Server forced to shutdown: %v", err)
	}

	log.Println("Server exiting gracefully")
}

// findFreePort returns the first bindable port in [start, start+attempts).
func findFreePort(start, attempts int) (int, error) {
	for port := start; port < start+attempts; port++ {
		l, err := net.Listen("tcp", fmt.Sprintf(":%d", port))
		if err != nil {
			continue
		}
		l.Close()
		return port, nil
	}
	return 0, fmt.Errorf("no available port in range %d-%d", start, start+attempts-1)
}
