// README: Redis GEO mirror of driver positions for consumers outside the
// dispatch core (analytics, rider map). The in-memory registry stays
// authoritative; mirror failures are logged and never block dispatch.
package registry

import (
	"context"

	"github.com/redis/go-redis/v9"

	"pirideshare/internal/types"
)

const driverGeoKey = "registry:drivers"

type Mirror struct {
	redis *redis.Client
}

func NewMirror(client *redis.Client) *Mirror {
	return &Mirror{redis: client}
}

func (m *Mirror) Add(ctx context.Context, id types.ID, pos types.Point) error {
	return m.redis.GeoAdd(ctx, driverGeoKey, &redis.GeoLocation{
		Name:      string(id),
		Longitude: pos.Lng,
		Latitude:  pos.Lat,
	}).Err()
}

func (m *Mirror) Remove(ctx context.Context, id types.ID) error {
	return m.redis.ZRem(ctx, driverGeoKey, string(id)).Err()
}

// Nearby returns driver IDs within radiusKm of p, closest first.
func (m *Mirror) Nearby(ctx context.Context, p types.Point, radiusKm float64) ([]types.ID, error) {
	results, err := m.redis.GeoSearch(ctx, driverGeoKey, &redis.GeoSearchQuery{
		Longitude:  p.Lng,
		Latitude:   p.Lat,
		Radius:     radiusKm,
		RadiusUnit: "km",
		Sort:       "ASC",
	}).Result()
	if err != nil {
		return nil, err
	}
	ids := make([]types.ID, len(results))
	for i, r := range results {
		ids[i] = types.ID(r)
	}
	return ids, nil
}
