package router

import (
	"context"
	"errors"
	"time"

	"mtspnav/internal/metrics"
	"mtspnav/internal/mtsp"
)

// Instrumented records Prometheus metrics around another router.
type Instrumented[P any] struct {
	Next mtsp.Router[P]
}

func (r Instrumented[P]) Cost(ctx context.Context, a, b P, profile mtsp.Profile) (float64, error) {
	start := time.Now()
	w, err := r.Next.Cost(ctx, a, b, profile)
	observe("cost", profile, start, err)
	return w, err
}

func (r Instrumented[P]) Path(ctx context.Context, a, b P, profile mtsp.Profile) (mtsp.Path, error) {
	start := time.Now()
	p, err := r.Next.Path(ctx, a, b, profile)
	observe("path", profile, start, err)
	return p, err
}

func observe(kind string, profile mtsp.Profile, start time.Time, err error) {
	metrics.RouterLatency.WithLabelValues(kind, string(profile)).Observe(float64(time.Since(start).Milliseconds()))
	metrics.RouterCalls.WithLabelValues(kind, string(profile), outcome(err)).Inc()
}

func outcome(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, mtsp.ErrUnreachable):
		return "unreachable"
	default:
		return "error"
	}
}
