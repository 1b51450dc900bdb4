package weather

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/monsoonwatch/flood-risk-service/internal/geo"
	"github.com/monsoonwatch/flood-risk-service/internal/observability"
)

// CachedSource wraps a Source with a redis cache keyed by 0.1° grid cell,
// so wards sharing a cell reuse one upstream call per TTL window.
type CachedSource struct {
	inner   Source
	rdb     *redis.Client
	ttl     time.Duration
	metrics *observability.Metrics
	logger  *slog.Logger
}

// NewCachedSource creates a cache decorator around a weather source.
func NewCachedSource(inner Source, rdb *redis.Client, ttl time.Duration, metrics *observability.Metrics, logger *slog.Logger) *CachedSource {
	return &CachedSource{
		inner:   inner,
		rdb:     rdb,
		ttl:     ttl,
		metrics: metrics,
		logger:  logger,
	}
}

func (c *CachedSource) CityOverview(ctx context.Context) (Snapshot, error) {
	return c.lookup(ctx, "weather:city", func() (Snapshot, error) {
		return c.inner.CityOverview(ctx)
	})
}

func (c *CachedSource) ForCell(ctx context.Context, lat, lon float64) (Snapshot, error) {
	// All coordinates inside a cell resolve to the same key, and the
	// upstream call is made for the cell center rather than the raw point.
	point := geo.Coordinate{Lat: lat, Lon: lon}
	key := "weather:cell:" + geo.GridCell(point)
	center := geo.CellCenter(point)
	return c.lookup(ctx, key, func() (Snapshot, error) {
		return c.inner.ForCell(ctx, center.Lat, center.Lon)
	})
}

func (c *CachedSource) lookup(ctx context.Context, key string, fetch func() (Snapshot, error)) (Snapshot, error) {
	raw, err := c.rdb.Get(ctx, key).Result()
	switch {
	case err == nil:
		var snap Snapshot
		if err := json.Unmarshal([]byte(raw), &snap); err == nil {
			c.metrics.WeatherCache.WithLabelValues("hit").Inc()
			return snap, nil
		}
		// Corrupt entry, fall through to a fresh fetch.
		c.metrics.WeatherCache.WithLabelValues("error").Inc()
	case err == redis.Nil:
		c.metrics.WeatherCache.WithLabelValues("miss").Inc()
	default:
		// Redis being down must not take the weather source with it.
		c.metrics.WeatherCache.WithLabelValues("error").Inc()
		c.logger.Warn("weather cache read failed", "key", key, "error", err)
	}

	snap, err := fetch()
	if err != nil {
		return Snapshot{}, err
	}

	if payload, err := json.Marshal(snap); err == nil {
		if err := c.rdb.Set(ctx, key, payload, c.ttl).Err(); err != nil {
			c.logger.Warn("weather cache write failed", "key", key, "error", err)
		}
	} else {
		return Snapshot{}, fmt.Errorf("marshal snapshot: %w", err)
	}
	return snap, nil
}
