package main

import (
	"context"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"coinduel/internal/api"
	"coinduel/internal/feed"
	"coinduel/internal/game"
	"coinduel/internal/guard"
	"coinduel/internal/store"
)

func main() {
	port := flag.String("port", "8090", "server port")
	dbPath := flag.String("db", "coinduel.db", "SQLite database path")
	corsOrigins := flag.String("cors", "", "comma-separated allowed CORS origins (empty = allow all for dev)")
	feedURL := flag.String("feed-url", os.Getenv("FEED_WS_URL"), "websocket endpoint of the trade stream (empty = synthetic prices)")
	symbol := flag.String("symbol", "btcusdt", "symbol to track on the price feed")
	flag.Parse()

	// Initialize SQLite store for finished matches
	st, err := store.New(*dbPath)
	if err != nil {
		log.Fatalf("Failed to initialize database: %v", err)
	}

	// Price feed: live stream when configured, synthetic random walk otherwise
	var priceFeed feed.Feed
	var disconnectFeed func()
	if *feedURL != "" {
		live := feed.NewLive(*feedURL, *symbol)
		priceFeed = live
		disconnectFeed = live.Disconnect
		log.Printf("Using live price feed for %s", *symbol)
	} else {
		synth := feed.NewSynthetic(50000, 25)
		synth.Start(time.Second)
		priceFeed = synth
		disconnectFeed = synth.Disconnect
		log.Printf("No feed URL - using synthetic price data")
	}

	settlementGuard := guard.New()

	hub := api.NewHub()
	registry := game.NewRegistry(hub, priceFeed, settlementGuard, st)
	server := api.NewServer(hub, registry, st)

	if *corsOrigins != "" {
		origins := strings.Split(*corsOrigins, ",")
		for i := range origins {
			origins[i] = strings.TrimSpace(origins[i])
		}
		server.SetCORSOrigins(origins)
		log.Printf("CORS restricted to: %v", origins)
	}

	addr := ":" + *port
	httpServer := &http.Server{
		Addr:    addr,
		Handler: server.Router(),
	}

	go func() {
		log.Printf("Starting coinduel server on http://localhost%s", addr)
		log.Printf("Database: %s", *dbPath)

		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("HTTP server error: %v", err)
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Shutting down server...")

	// Drain every room: settle all pending orders, emit final game_over
	registry.EmergencyShutdown()
	log.Println("Registry drained")

	settlementGuard.Stop()
	disconnectFeed()
	log.Println("Price feed disconnected")

	server.Shutdown()

	// Graceful HTTP shutdown with 5 second timeout
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := httpServer.Shutdown(ctx); err != nil {
		log.Printf("HTTP server shutdown error: %v", err)
	}
	log.Println("HTTP server stopped")

	if err := st.Close(); err != nil {
		log.Printf("Database close error: %v", err)
	}
	log.Println("Server shutdown complete")
}
