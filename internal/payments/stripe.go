package payments

import (
	"context"
	"fmt"
	"strings"

	stripe "github.com/stripe/stripe-go/v74"
	"github.com/stripe/stripe-go/v74/paymentintent"

	"github.com/example/ride-dispatch/internal/geo"
	"github.com/example/ride-dispatch/internal/quote"
	"github.com/example/ride-dispatch/internal/ride"
)

// StripeCharger settles ride fares through stripe PaymentIntents using the
// hold-then-capture flow, so a failed capture can release the hold instead
// of double charging.
type StripeCharger struct {
	fares     quote.FareConfig
	estimator quote.DurationEstimator
}

// NewStripeCharger sets the package-level stripe key; stripe-go keeps the
// key global.
func NewStripeCharger(apiKey string, fares quote.FareConfig, estimator quote.DurationEstimator) *StripeCharger {
	stripe.Key = apiKey
	if estimator == nil {
		estimator = quote.SpeedEstimator{}
	}
	return &StripeCharger{fares: fares, estimator: estimator}
}

// ChargeFare prices the completed ride and captures the amount.
func (c *StripeCharger) ChargeFare(ctx context.Context, r ride.Ride) error {
	distance := geo.Haversine(r.DepartureLocation, r.DestinationLocation)
	duration, err := c.estimator.Estimate(ctx, r.DepartureLocation, r.DestinationLocation, distance)
	if err != nil {
		return fmt.Errorf("estimate ride %s duration: %w", r.ID, err)
	}
	fare := c.fares.Fare(distance, duration)

	intentID, err := c.Hold(ctx, fare, r)
	if err != nil {
		return fmt.Errorf("hold fare for ride %s: %w", r.ID, err)
	}
	if err := c.Capture(ctx, intentID); err != nil {
		// Release the hold so the rider isn't left with a dangling block.
		_ = c.Cancel(ctx, intentID)
		return fmt.Errorf("capture fare for ride %s: %w", r.ID, err)
	}
	return nil
}

// Hold creates a manual-capture PaymentIntent for the fare and returns its id.
func (c *StripeCharger) Hold(_ context.Context, fare quote.Money, r ride.Ride) (string, error) {
	params := &stripe.PaymentIntentParams{
		Amount:        stripe.Int64(fare.Amount),
		Currency:      stripe.String(strings.ToLower(fare.Currency)),
		CaptureMethod: stripe.String(string(stripe.PaymentIntentCaptureMethodManual)),
	}
	params.AddMetadata("ride_id", r.ID)
	params.AddMetadata("user_id", r.UserID)
	pi, err := paymentintent.New(params)
	if err != nil {
		return "", err
	}
	return pi.ID, nil
}

// Capture finalizes a previously-held PaymentIntent.
func (c *StripeCharger) Capture(_ context.Context, paymentIntentID string) error {
	_, err := paymentintent.Capture(paymentIntentID, nil)
	return err
}

// Cancel releases the hold on a PaymentIntent.
func (c *StripeCharger) Cancel(_ context.Context, paymentIntentID string) error {
	_, err := paymentintent.Cancel(paymentIntentID, nil)
	return err
}
