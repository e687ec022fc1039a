package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"event-ticketing/auth"
	"event-ticketing/clock"
	"event-ticketing/config"
	"event-ticketing/eventbus"
	"event-ticketing/ledger"
	"event-ticketing/reservation"
	"event-ticketing/shared"
	"event-ticketing/store"
)

func main() {
	log.Println("Starting booking service...")

	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	inventory := ledger.New()
	bus := eventbus.New()

	// Connect to Redis
	redisClient, err := store.NewRedisClient(ctx, cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
	if err != nil {
		log.Fatalf("Failed to connect to Redis: %v", err)
	}
	defer redisClient.Close()
	log.Println("Connected to Redis")

	snapshots := store.NewRedisInventory(redisClient)
	seeded, err := snapshots.Seed(ctx, inventory)
	if err != nil {
		log.Fatalf("Failed to load ticket types: %v", err)
	}
	log.Printf("Loaded %d ticket types from Redis", seeded)

	if cfg.SnapshotMirror {
		mirror := store.NewMirror(snapshots, inventory)
		bus.Subscribe(mirror.Handle)
		go mirror.Run(ctx)
	}

	// Connect to NATS
	natsConn, err := eventbus.Connect(cfg.NATSURL, "booking-service")
	if err != nil {
		log.Fatalf("Failed to connect to NATS: %v", err)
	}
	defer natsConn.Close()
	log.Println("Connected to NATS")
	bus.Subscribe(eventbus.NewNATSPublisher(natsConn).Forward)

	holds := reservation.NewManager(inventory, bus, clock.NewSystem(),
		reservation.WithHoldTTL(cfg.HoldTTL),
		reservation.WithSweepInterval(cfg.SweepInterval),
		reservation.WithRetention(cfg.ReservationRetention),
	)
	StartTimerService(ctx, holds)

	srv := &server{
		ledger: inventory,
		holds:  holds,
		store:  snapshots,
		auth:   auth.NewJWT(cfg.JWTSecret),
	}

	httpServer := &http.Server{
		Addr:    ":" + cfg.BookingPort,
		Handler: setupRoutes(srv),
	}

	go func() {
		<-ctx.Done()
		log.Println("Shutting down booking service...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		httpServer.Shutdown(shutdownCtx)
	}()

	log.Printf("Booking service started on :%s\n", cfg.BookingPort)
	if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Fatalf("Failed to start server: %v", err)
	}
}

func setupRoutes(s *server) *gin.Engine {
	router := gin.Default()

	api := router.Group("/api", requireAuth(s.auth))
	{
		api.POST("/holds", s.handleCreateHold)
		api.GET("/holds/:id", s.handleGetHold)
		api.POST("/holds/:id/confirm", s.handleConfirmHold)
		api.POST("/holds/:id/release", s.handleReleaseHold)

		api.GET("/ticket-types", s.handleListTicketTypes)
		api.GET("/ticket-types/:id", s.handleGetTicketType)
		api.POST("/ticket-types", requireRole(shared.RoleAdmin, shared.RoleOrganizer), s.handleRegisterTicketType)
		api.GET("/events/:eventId/inventory", s.handleEventInventory)
	}

	router.GET(shared.APIEndpointHealth, func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "service": "booking-service"})
	})

	return router
}
