package mtsp

import (
	"context"
	"errors"
	"log/slog"

	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"
)

// Assembler turns solved tours into routes by requesting the path of every tour edge,
// including the closing edge back to the first point.
type Assembler[P any] struct {
	Router  Router[P]
	Workers int
	Limiter *rate.Limiter
	Log     *slog.Logger
}

// Assemble returns one Route per tour in solution order. A single-point tour gets one
// self-loop leg. Any edge the router reports as unreachable fails with *AssemblyError.
func (a *Assembler[P]) Assemble(ctx context.Context, profile Profile, points []P, sol Solution) ([]Route, error) {
	workers := a.Workers
	if workers <= 0 {
		workers = defaultWorkers
	}
	legs := make([][]Leg, len(sol.Tours))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for t, tour := range sol.Tours {
		legs[t] = make([]Leg, len(tour))
		for i := range tour {
			from, to := tour[i], tour[(i+1)%len(tour)]
			g.Go(func() error {
				if a.Limiter != nil {
					if err := a.Limiter.Wait(gctx); err != nil {
						return err
					}
				}
				p, err := a.Router.Path(gctx, points[from], points[to], profile)
				switch {
				case errors.Is(err, ErrUnreachable):
					return &AssemblyError{Tour: t, From: from, To: to, cause: err}
				case err != nil:
					return &RouterError{Op: "path", From: from, To: to, cause: err}
				}
				legs[t][i] = Leg{From: from, To: to, Path: p}
				return nil
			})
		}
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	routes := make([]Route, len(sol.Tours))
	for t, tour := range sol.Tours {
		r := Route{Vehicle: t, Order: append([]int(nil), tour...)}
		for _, leg := range legs[t] {
			r = Concatenate(r, leg)
		}
		routes[t] = r
	}
	logger(a.Log).Debug("routes assembled", "routes", len(routes))
	return routes, nil
}
