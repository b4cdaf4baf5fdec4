package geo

import (
	"context"

	"github.com/redis/go-redis/v9"
)

// RedisIndex implements Index using Redis GEO commands. All drivers live
// under a single sorted-set key; Redis orders GEOSEARCH results by distance
// which gives the finder its closest-first iteration order.
type RedisIndex struct {
	client *redis.Client
	key    string
}

func NewRedisIndex(client *redis.Client, key string) *RedisIndex {
	return &RedisIndex{client: client, key: key}
}

func (r *RedisIndex) Upsert(ctx context.Context, driverID string, loc Location) error {
	return r.client.GeoAdd(ctx, r.key, &redis.GeoLocation{
		Name:      driverID,
		Longitude: loc.Lon,
		Latitude:  loc.Lat,
	}).Err()
}

func (r *RedisIndex) Remove(ctx context.Context, driverID string) error {
	return r.client.ZRem(ctx, r.key, driverID).Err()
}

func (r *RedisIndex) Nearby(ctx context.Context, loc Location, radiusMeters float64, limit int) ([]Candidate, error) {
	res, err := r.client.GeoSearchLocation(ctx, r.key, &redis.GeoSearchLocationQuery{
		GeoSearchQuery: redis.GeoSearchQuery{
			Longitude:  loc.Lon,
			Latitude:   loc.Lat,
			Radius:     radiusMeters,
			RadiusUnit: "m",
			Sort:       "ASC",
			Count:      limit,
		},
		WithCoord: true,
		WithDist:  true,
	}).Result()
	if err != nil {
		return nil, err
	}
	out := make([]Candidate, 0, len(res))
	for _, g := range res {
		out = append(out, Candidate{
			DriverID:       g.Name,
			Location:       Location{Lat: g.Latitude, Lon: g.Longitude},
			DistanceMeters: g.Dist,
		})
	}
	return out, nil
}
