package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"event-ticketing/auth"
	"event-ticketing/config"
	"event-ticketing/eventbus"
	"event-ticketing/hub"
	"event-ticketing/rooms"
	"event-ticketing/shared"
)

func main() {
	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}
	log.Printf("Starting edge server on port %s...", cfg.EdgePort)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	verifier := auth.NewJWT(cfg.JWTSecret)

	// Booking client for room-join snapshots
	bookingClient := NewBookingClient(cfg.BookingServiceURL, func() (string, error) {
		return verifier.Issue(auth.Identity{UserID: "edge-server", Role: shared.RoleAdmin}, time.Minute)
	})
	if err := bookingClient.HealthCheck(ctx); err != nil {
		log.Printf("[WARN] Booking service at %s not reachable yet: %v", cfg.BookingServiceURL, err)
	}
	log.Printf("Booking client initialized with URL: %s", cfg.BookingServiceURL)

	h := hub.New(verifier, rooms.NewRegistry(),
		hub.WithInventorySource(bookingClient),
		hub.WithSendBuffer(cfg.SendBuffer),
	)
	defer h.Close()
	log.Println("Hub initialized")

	bus := eventbus.New()
	bus.Subscribe(h.HandleReservationEvent)

	// Connect to NATS
	natsConn, err := eventbus.Connect(cfg.NATSURL, "edge-server")
	if err != nil {
		log.Fatalf("Failed to connect to NATS: %v", err)
	}
	defer natsConn.Close()
	log.Println("Connected to NATS")

	if _, err := eventbus.NewNATSSubscriber(bus).Subscribe(natsConn); err != nil {
		log.Fatalf("Failed to subscribe to NATS: %v", err)
	}

	httpServer := &http.Server{
		Addr:    ":" + cfg.EdgePort,
		Handler: setupRoutes(h, verifier),
	}

	go func() {
		<-ctx.Done()
		log.Println("Shutting down edge server...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		httpServer.Shutdown(shutdownCtx)
	}()

	log.Printf("Edge server started on :%s", cfg.EdgePort)
	if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Fatalf("Failed to start server: %v", err)
	}
}
