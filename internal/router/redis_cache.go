package router

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strconv"
	"time"

	redis "github.com/redis/go-redis/v9"

	"mtspnav/internal/metrics"
	"mtspnav/internal/mtsp"
)

const unreachableValue = "unreachable"

// RedisCache keeps pair costs in Redis so repeated solves over the same points skip the
// router. Paths are never cached. Cache failures fall through to the wrapped router.
type RedisCache[P any] struct {
	Next   mtsp.Router[P]
	Client redis.Cmdable
	Key    func(P) string
	TTL    time.Duration
	Prefix string
}

// CoordKey identifies a coordinate at roughly 10cm resolution.
func CoordKey(c mtsp.Coord) string {
	return strconv.FormatFloat(c.Lat, 'f', 6, 64) + "," + strconv.FormatFloat(c.Lng, 'f', 6, 64)
}

// NewRedisCache wraps next with a coordinate keyed cost cache.
func NewRedisCache(next mtsp.Router[mtsp.Coord], client redis.Cmdable, ttl time.Duration) *RedisCache[mtsp.Coord] {
	return &RedisCache[mtsp.Coord]{Next: next, Client: client, Key: CoordKey, TTL: ttl, Prefix: "mtsp:cost"}
}

func (c *RedisCache[P]) key(a, b P, profile mtsp.Profile) string {
	return fmt.Sprintf("%s:%s:%s:%s", c.Prefix, profile, c.Key(a), c.Key(b))
}

func (c *RedisCache[P]) Cost(ctx context.Context, a, b P, profile mtsp.Profile) (float64, error) {
	key := c.key(a, b, profile)
	if v, err := c.Client.Get(ctx, key).Result(); err == nil {
		if w, uerr := decodeCost(v); uerr == nil || errors.Is(uerr, mtsp.ErrUnreachable) {
			metrics.RouterCalls.WithLabelValues("cost", string(profile), "cache_hit").Inc()
			return w, uerr
		}
	}
	w, err := c.Next.Cost(ctx, a, b, profile)
	switch {
	case errors.Is(err, mtsp.ErrUnreachable):
		_ = c.Client.Set(ctx, key, unreachableValue, c.TTL).Err()
	case err == nil:
		_ = c.Client.Set(ctx, key, encodeCost(w), c.TTL).Err()
	}
	return w, err
}

func (c *RedisCache[P]) Path(ctx context.Context, a, b P, profile mtsp.Profile) (mtsp.Path, error) {
	return c.Next.Path(ctx, a, b, profile)
}

func encodeCost(w float64) string {
	if math.IsInf(w, 1) {
		return unreachableValue
	}
	return strconv.FormatFloat(w, 'g', -1, 64)
}

func decodeCost(v string) (float64, error) {
	if v == unreachableValue {
		return 0, fmt.Errorf("cached: %w", mtsp.ErrUnreachable)
	}
	return strconv.ParseFloat(v, 64)
}
