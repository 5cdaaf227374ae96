package mtsp

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"
)

const defaultWorkers = 16

// MatrixBuilder computes the many-to-many cost matrix by querying the router for each pair.
type MatrixBuilder[P any] struct {
	Router  Router[P]
	Workers int           // concurrent router calls; 0 means defaultWorkers
	Limiter *rate.Limiter // optional router call throttle
	// Symmetric queries only i<j and mirrors the result. Use only when the
	// router's cost model is known to be symmetric for the profile.
	Symmetric bool
	Log       *slog.Logger
}

// MatrixStats describes one matrix build.
type MatrixStats struct {
	Pairs       int
	Unreachable int
	Elapsed     time.Duration
}

// Build returns the N×N cost matrix. Pairs the router reports as unreachable are stored as
// Unreachable; any other router error aborts the build.
func (b *MatrixBuilder[P]) Build(ctx context.Context, profile Profile, points []P) (CostMatrix, MatrixStats, error) {
	start := time.Now()
	n := len(points)
	m := NewCostMatrix(n)
	workers := b.Workers
	if workers <= 0 {
		workers = defaultWorkers
	}

	var unreachable atomic.Int64
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	pairs := 0
	for i := 0; i < n; i++ {
		for j := 0; j < n; j++ {
			if i == j || (b.Symmetric && j < i) {
				continue
			}
			pairs++
			g.Go(func() error {
				if b.Limiter != nil {
					if err := b.Limiter.Wait(gctx); err != nil {
						return err
					}
				}
				w, err := b.Router.Cost(gctx, points[i], points[j], profile)
				switch {
				case errors.Is(err, ErrUnreachable):
					w = Unreachable
					unreachable.Add(1)
				case err != nil:
					return &RouterError{Op: "cost", From: i, To: j, cause: err}
				case w < 0 || math.IsNaN(w):
					return &RouterError{Op: "cost", From: i, To: j, cause: fmt.Errorf("invalid cost %v", w)}
				}
				// each goroutine owns cell (i,j), and (j,i) when mirroring
				m[i][j] = w
				if b.Symmetric {
					m[j][i] = w
				}
				return nil
			})
		}
	}
	if err := g.Wait(); err != nil {
		return nil, MatrixStats{}, err
	}
	st := MatrixStats{Pairs: pairs, Unreachable: int(unreachable.Load()), Elapsed: time.Since(start)}
	if b.Symmetric {
		st.Unreachable *= 2
	}
	logger(b.Log).Debug("cost matrix built", "points", n, "pairs", st.Pairs, "unreachable", st.Unreachable, "elapsed", st.Elapsed)
	return m, st, nil
}

func logger(l *slog.Logger) *slog.Logger {
	if l == nil {
		return slog.New(slog.DiscardHandler)
	}
	return l
}
