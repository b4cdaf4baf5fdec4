package quote

import (
	"context"
	"errors"
	"time"

	"github.com/example/ride-dispatch/internal/geo"
	"github.com/example/ride-dispatch/internal/ids"
)

// Quote is a fare estimate for a trip. It is advisory only; nothing
// downstream holds the rider to it.
type Quote struct {
	ID             string        `json:"id"`
	Departure      geo.Location  `json:"departure"`
	Destination    geo.Location  `json:"destination"`
	DistanceMeters float64       `json:"distance_meters"`
	Duration       time.Duration `json:"-"`
	Fare           Money         `json:"fare"`
}

// FareConfig holds the pricing components. All three must share one
// currency.
type FareConfig struct {
	BaseFare          Money
	PricePerKilometer Money
	PricePerMinute    Money
}

// DefaultFareConfig is the launch-market tariff.
func DefaultFareConfig() FareConfig {
	return FareConfig{
		BaseFare:          GBP(150),
		PricePerKilometer: GBP(80),
		PricePerMinute:    GBP(15),
	}
}

func (c FareConfig) Validate() error {
	if c.BaseFare.Currency != c.PricePerKilometer.Currency ||
		c.BaseFare.Currency != c.PricePerMinute.Currency {
		return errors.New("fare components must share one currency")
	}
	return nil
}

// Fare computes base + distance and time components.
func (c FareConfig) Fare(distanceMeters float64, duration time.Duration) Money {
	distanceCost := c.PricePerKilometer.MultiplyFloat(distanceMeters / 1000.0)
	durationCost := c.PricePerMinute.MultiplyFloat(duration.Minutes())
	return c.BaseFare.Add(distanceCost).Add(durationCost)
}

// DurationEstimator predicts how long the trip takes.
type DurationEstimator interface {
	Estimate(ctx context.Context, from, to geo.Location, distanceMeters float64) (time.Duration, error)
}

// SpeedEstimator assumes a flat average speed. Stands in when no routing
// engine is configured.
type SpeedEstimator struct {
	AverageSpeedKMH float64
}

func (e SpeedEstimator) Estimate(_ context.Context, _, _ geo.Location, distanceMeters float64) (time.Duration, error) {
	speed := e.AverageSpeedKMH
	if speed <= 0 {
		speed = 30.0
	}
	hours := distanceMeters / 1000.0 / speed
	return time.Duration(hours * float64(time.Hour)).Round(time.Second), nil
}

// Service builds quotes from straight-line distance and the configured
// duration estimator.
type Service struct {
	config    FareConfig
	estimator DurationEstimator
}

func NewService(config FareConfig, estimator DurationEstimator) (*Service, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	if estimator == nil {
		estimator = SpeedEstimator{}
	}
	return &Service{config: config, estimator: estimator}, nil
}

func (s *Service) Create(ctx context.Context, departure, destination geo.Location) (Quote, error) {
	if err := departure.Validate(); err != nil {
		return Quote{}, err
	}
	if err := destination.Validate(); err != nil {
		return Quote{}, err
	}

	distance := geo.Haversine(departure, destination)
	duration, err := s.estimator.Estimate(ctx, departure, destination, distance)
	if err != nil {
		return Quote{}, err
	}

	return Quote{
		ID:             ids.New(),
		Departure:      departure,
		Destination:    destination,
		DistanceMeters: distance,
		Duration:       duration,
		Fare:           s.config.Fare(distance, duration),
	}, nil
}
