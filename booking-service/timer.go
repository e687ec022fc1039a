package main

import (
	"context"
	"log"

	"event-ticketing/reservation"
)

// StartTimerService runs the hold expiry sweep until ctx is cancelled.
func StartTimerService(ctx context.Context, holds *reservation.Manager) {
	go holds.Run(ctx)
	log.Println("Timer service started - holds expire after", holds.HoldTTL())
}
