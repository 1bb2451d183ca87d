package geo

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// RunnerPosition is one runner returned from a radius query.
type RunnerPosition struct {
	RunnerID   string
	Location   Point
	DistanceKm float64
}

// RunnerIndex is the geo-indexed runner lookup used to notify nearby runners
// about new errands. Positions live in a single Redis GEO key; the rest of
// the runner record stays in Postgres.
type RunnerIndex struct {
	client *redis.Client
	key    string
}

// NewRunnerIndex builds an index on the given Redis client and key.
func NewRunnerIndex(client *redis.Client, key string) *RunnerIndex {
	return &RunnerIndex{client: client, key: key}
}

// Upsert records a runner's latest position.
func (ix *RunnerIndex) Upsert(ctx context.Context, runnerID string, pt Point) error {
	err := ix.client.GeoAdd(ctx, ix.key, &redis.GeoLocation{
		Name:      runnerID,
		Longitude: pt.Longitude(),
		Latitude:  pt.Latitude(),
	}).Err()
	if err != nil {
		return fmt.Errorf("geo.RunnerIndex.Upsert: %w", err)
	}
	return nil
}

// Remove drops a runner from the index, e.g. when they go offline.
func (ix *RunnerIndex) Remove(ctx context.Context, runnerID string) error {
	if err := ix.client.ZRem(ctx, ix.key, runnerID).Err(); err != nil {
		return fmt.Errorf("geo.RunnerIndex.Remove: %w", err)
	}
	return nil
}

// Nearby returns up to limit runners within radiusKm of pt, closest first.
func (ix *RunnerIndex) Nearby(ctx context.Context, pt Point, radiusKm float64, limit int) ([]RunnerPosition, error) {
	locs, err := ix.client.GeoSearchLocation(ctx, ix.key, &redis.GeoSearchLocationQuery{
		GeoSearchQuery: redis.GeoSearchQuery{
			Longitude:  pt.Longitude(),
			Latitude:   pt.Latitude(),
			Radius:     radiusKm,
			RadiusUnit: "km",
			Sort:       "ASC",
			Count:      limit,
		},
		WithCoord: true,
		WithDist:  true,
	}).Result()
	if err != nil {
		return nil, fmt.Errorf("geo.RunnerIndex.Nearby: %w", err)
	}

	out := make([]RunnerPosition, 0, len(locs))
	for _, l := range locs {
		out = append(out, RunnerPosition{
			RunnerID:   l.Name,
			Location:   Point{l.Longitude, l.Latitude},
			DistanceKm: l.Dist,
		})
	}
	return out, nil
}
