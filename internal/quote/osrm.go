package quote

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/example/ride-dispatch/internal/geo"
)

// OSRMEstimator queries an OSRM routing server for trip durations,
// falling back to the flat-speed estimate when the route lookup fails.
type OSRMEstimator struct {
	Endpoint string
	Client   *http.Client
	Fallback DurationEstimator
}

func NewOSRMEstimator(endpoint string) *OSRMEstimator {
	return &OSRMEstimator{
		Endpoint: endpoint,
		Client:   &http.Client{Timeout: 2 * time.Second},
		Fallback: SpeedEstimator{},
	}
}

func (o *OSRMEstimator) Estimate(ctx context.Context, from, to geo.Location, distanceMeters float64) (time.Duration, error) {
	d, err := o.route(ctx, from, to)
	if err != nil && o.Fallback != nil {
		return o.Fallback.Estimate(ctx, from, to, distanceMeters)
	}
	return d, err
}

func (o *OSRMEstimator) route(ctx context.Context, from, to geo.Location) (time.Duration, error) {
	url := fmt.Sprintf("%s/route/v1/driving/%.6f,%.6f;%.6f,%.6f?overview=false",
		o.Endpoint, from.Lon, from.Lat, to.Lon, to.Lat)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return 0, err
	}
	resp, err := o.Client.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()

	var out struct {
		Routes []struct {
			Duration float64 `json:"duration"`
		} `json:"routes"`
		Code string `json:"code"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return 0, err
	}
	if out.Code != "Ok" || len(out.Routes) == 0 {
		return 0, fmt.Errorf("osrm no route: %v", out.Code)
	}
	return time.Duration(out.Routes[0].Duration * float64(time.Second)).Round(time.Second), nil
}
