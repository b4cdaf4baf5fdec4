package quote

import (
	"context"
	"testing"
	"time"

	"github.com/example/ride-dispatch/internal/geo"
)

func TestFareFormula(t *testing.T) {
	cfg := DefaultFareConfig()

	// 10 km at 30 km/h = 20 minutes.
	// 150 + 80*10 + 15*20 = 1250 pence.
	fare := cfg.Fare(10000, 20*time.Minute)
	if fare.Amount != 1250 || fare.Currency != "GBP" {
		t.Fatalf("expected GBP 1250, got %+v", fare)
	}
}

func TestFareZeroDistanceIsBaseFare(t *testing.T) {
	cfg := DefaultFareConfig()
	fare := cfg.Fare(0, 0)
	if fare != cfg.BaseFare {
		t.Fatalf("expected base fare only, got %+v", fare)
	}
}

func TestFareRoundsToMinorUnits(t *testing.T) {
	cfg := DefaultFareConfig()
	// 1234m and 2m30s produce fractional pence on both components.
	fare := cfg.Fare(1234, 2*time.Minute+30*time.Second)
	// 150 + round(80*1.234)=99 + round(15*2.5)=38 -> 287
	if fare.Amount != 287 {
		t.Fatalf("expected 287 pence, got %d", fare.Amount)
	}
}

func TestSpeedEstimator(t *testing.T) {
	est := SpeedEstimator{AverageSpeedKMH: 30}
	d, err := est.Estimate(context.Background(), geo.Location{}, geo.Location{}, 15000)
	if err != nil {
		t.Fatal(err)
	}
	if d != 30*time.Minute {
		t.Fatalf("15km at 30km/h should take 30m, got %s", d)
	}
}

func TestServiceCreatesQuote(t *testing.T) {
	svc, err := NewService(DefaultFareConfig(), SpeedEstimator{AverageSpeedKMH: 30})
	if err != nil {
		t.Fatal(err)
	}

	westminster := geo.Location{Lat: 51.5007, Lon: -0.1246}
	heathrow := geo.Location{Lat: 51.4700, Lon: -0.4543}

	q, err := svc.Create(context.Background(), westminster, heathrow)
	if err != nil {
		t.Fatal(err)
	}
	if q.ID == "" {
		t.Fatal("quote must carry an id")
	}
	if q.DistanceMeters < 20000 || q.DistanceMeters > 26000 {
		t.Fatalf("implausible distance %f", q.DistanceMeters)
	}
	if q.Fare.Amount <= DefaultFareConfig().BaseFare.Amount {
		t.Fatalf("fare must exceed the base fare, got %+v", q.Fare)
	}
}

func TestServiceRejectsInvalidCoordinates(t *testing.T) {
	svc, err := NewService(DefaultFareConfig(), nil)
	if err != nil {
		t.Fatal(err)
	}
	_, err = svc.Create(context.Background(), geo.Location{Lat: 95, Lon: 0}, geo.Location{})
	if err == nil {
		t.Fatal("expected validation error for out-of-range latitude")
	}
}

func TestFareConfigValidateRejectsMixedCurrencies(t *testing.T) {
	cfg := FareConfig{
		BaseFare:          GBP(150),
		PricePerKilometer: Money{Amount: 80, Currency: "EUR"},
		PricePerMinute:    GBP(15),
	}
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected mixed-currency config to be rejected")
	}
}
