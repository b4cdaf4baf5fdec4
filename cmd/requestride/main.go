package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/example/ride-dispatch/internal/db"
	"github.com/example/ride-dispatch/internal/geo"
	"github.com/example/ride-dispatch/internal/ids"
	"github.com/example/ride-dispatch/internal/queue"
	"github.com/example/ride-dispatch/internal/ride"
)

// One-shot enqueue of a ride request, for local testing and demos. With
// -idempotency-key the key becomes the ride id, so resubmitting collides
// at insert time instead of creating a second ride.
func main() {
	var (
		userID         = flag.String("user", "", "requesting user id (required)")
		departureLat   = flag.Float64("departure-lat", 0, "pickup latitude")
		departureLon   = flag.Float64("departure-lon", 0, "pickup longitude")
		destinationLat = flag.Float64("destination-lat", 0, "dropoff latitude")
		destinationLon = flag.Float64("destination-lon", 0, "dropoff longitude")
		idemKey        = flag.String("idempotency-key", "", "optional uuid used as the ride id")
		timeout        = flag.Duration("timeout", 5*time.Second, "enqueue timeout")
	)
	flag.Parse()

	if *userID == "" {
		fmt.Fprintln(os.Stderr, "-user is required")
		flag.Usage()
		os.Exit(2)
	}

	departure, err := geo.NewLocation(*departureLat, *departureLon)
	if err != nil {
		fatal("invalid departure", err)
	}
	destination, err := geo.NewLocation(*destinationLat, *destinationLon)
	if err != nil {
		fatal("invalid destination", err)
	}

	rideID := *idemKey
	if rideID == "" {
		rideID = ids.New()
	} else if err := ids.Validate(rideID); err != nil {
		fatal("invalid idempotency key", err)
	}

	dsn := os.Getenv("PG_DSN")
	if dsn == "" {
		fatal("configuration", fmt.Errorf("PG_DSN is required"))
	}
	conn, err := db.Open(dsn)
	if err != nil {
		fatal("postgres unavailable", err)
	}
	defer conn.Close()

	store, err := queue.NewPostgresStore(conn, "")
	if err != nil {
		fatal("queue store init failed", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	id, err := store.Enqueue(ctx, ride.RequestRide{
		RideID:              rideID,
		UserID:              *userID,
		DepartureLocation:   departure,
		DestinationLocation: destination,
	})
	if err != nil {
		fatal("enqueue failed", err)
	}

	fmt.Printf("ride %s requested (command %s)\n", rideID, id)
}

func fatal(msg string, err error) {
	slog.Error(msg, "error", err)
	os.Exit(1)
}
