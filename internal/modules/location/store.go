// README: Driver position store backed by Redis GEO.
package location

import (
	"context"

	"github.com/redis/go-redis/v9"

	"swiftcab/internal/types"
)

const driverGeoKey = "location:drivers"

type Store struct {
	redis *redis.Client
}

func NewStore(redis *redis.Client) *Store {
	return &Store{redis: redis}
}

func (s *Store) SetPosition(ctx context.Context, id types.ID, lat, lng float64) error {
	if s == nil || s.redis == nil {
		return nil
	}
	return s.redis.GeoAdd(ctx, driverGeoKey, &redis.GeoLocation{
		Name:      string(id),
		Latitude:  lat,
		Longitude: lng,
	}).Err()
}
