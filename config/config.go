// Package config loads runtime settings for both services from the
// environment. A .env file in the working directory is read first when
// present; real environment variables always win.
package config

import (
	"errors"
	"io/fs"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"event-ticketing/shared"
)

// Config holds all runtime configuration values.
type Config struct {
	BookingPort       string
	EdgePort          string
	BookingServiceURL string

	JWTSecret string

	RedisAddr      string
	RedisPassword  string
	RedisDB        int
	SnapshotMirror bool

	NATSURL string

	HoldTTL              time.Duration
	SweepInterval        time.Duration
	ReservationRetention time.Duration

	SendBuffer int
}

// Load reads the environment (and an optional .env file) into a Config.
func Load() Config {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		log.Printf("[CONFIG] ignoring .env: %v", err)
	}

	cfg := Config{
		BookingPort:          envStr("BOOKING_PORT", shared.DefaultBookingPort),
		EdgePort:             envStr("EDGE_PORT", envStr("PORT", shared.DefaultEdgePort)),
		BookingServiceURL:    envStr("BOOKING_SERVICE_URL", "http://localhost:"+shared.DefaultBookingPort),
		JWTSecret:            os.Getenv("JWT_SECRET"),
		RedisAddr:            envStr("REDIS_ADDR", "localhost:6379"),
		RedisPassword:        os.Getenv("REDIS_PASSWORD"),
		RedisDB:              envInt("REDIS_DB", 0),
		SnapshotMirror:       envBool("SNAPSHOT_MIRROR", true),
		NATSURL:              envStr("NATS_URL", "nats://127.0.0.1:4222"),
		HoldTTL:              envDur("HOLD_TTL", shared.DefaultHoldTTL),
		SweepInterval:        envDur("SWEEP_INTERVAL", shared.DefaultSweepInterval),
		ReservationRetention: envDur("RESERVATION_RETENTION", shared.DefaultReservationRetention),
		SendBuffer:           envInt("WS_SEND_BUFFER", shared.DefaultSendBuffer),
	}
	if cfg.SweepInterval <= 0 {
		cfg.SweepInterval = shared.DefaultSweepInterval
	}
	if cfg.HoldTTL < 0 {
		cfg.HoldTTL = shared.DefaultHoldTTL
	}
	if cfg.SendBuffer < 1 {
		cfg.SendBuffer = shared.DefaultSendBuffer
	}
	return cfg
}

// Validate reports settings that would make a service unusable.
func (c Config) Validate() error {
	if c.JWTSecret == "" {
		return errors.New("JWT_SECRET is required")
	}
	return nil
}

func envStr(k, d string) string {
	if v := strings.TrimSpace(os.Getenv(k)); v != "" {
		return v
	}
	return d
}

func envBool(k string, d bool) bool {
	v := os.Getenv(k)
	if v == "" {
		return d
	}
	switch strings.ToLower(v) {
	case "1", "true", "yes", "on":
		return true
	case "0", "false", "no", "off":
		return false
	}
	return d
}

func envInt(k string, d int) int {
	v := os.Getenv(k)
	if v == "" {
		return d
	}
	if n, err := strconv.Atoi(v); err == nil {
		return n
	}
	return d
}

func envDur(k string, d time.Duration) time.Duration {
	v := os.Getenv(k)
	if v == "" {
		return d
	}
	if dur, err := time.ParseDuration(v); err == nil {
		return dur
	}
	return d
}
