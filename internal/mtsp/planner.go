package mtsp

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/time/rate"
)

// PlannerConfig wires the three phases of a Planner.
type PlannerConfig struct {
	Strategy  Strategy
	Options   Options
	Workers   int           // concurrent router calls for matrix and assembly
	Limiter   *rate.Limiter // shared by matrix and assembly router calls
	Symmetric bool
	Log       *slog.Logger
}

// Report carries the diagnostics of one Planner run. It is filled as far as the run got,
// also when Solve fails.
type Report struct {
	Strategy            string        `json:"strategy"`
	Objective           Objective     `json:"objective"`
	Profile             Profile       `json:"profile"`
	Points              int           `json:"points"`
	Vehicles            int           `json:"vehicles"`
	MatrixPairs         int           `json:"matrixPairs"`
	Unreachable         int           `json:"unreachable"`
	RebalanceIterations int           `json:"rebalanceIterations"`
	RebalanceCapHit     bool          `json:"rebalanceCapHit"`
	TwoOptMoves         int           `json:"twoOptMoves"`
	TwoOptCapHit        bool          `json:"twoOptCapHit"`
	ExactGroups         int           `json:"exactGroups"`
	ExactCapHit         bool          `json:"exactCapHit"`
	Repairs             int           `json:"repairs"`
	Regrouped           bool          `json:"regrouped"`
	TourCosts           []float64     `json:"tourCosts,omitempty"`
	TotalCost           float64       `json:"totalCost"`
	MaxCost             float64       `json:"maxCost"`
	MatrixTime          time.Duration `json:"matrixNs"`
	PartitionTime       time.Duration `json:"partitionNs"`
	SequenceTime        time.Duration `json:"sequenceNs"`
	AssemblyTime        time.Duration `json:"assemblyNs"`
	Elapsed             time.Duration `json:"elapsedNs"`
}

// Planner is the single entry point: cost matrix, then solve, then assemble.
type Planner[P any] struct {
	router Router[P]
	cfg    PlannerConfig
}

func NewPlanner[P any](r Router[P], cfg PlannerConfig) *Planner[P] {
	if cfg.Strategy == nil {
		cfg.Strategy = NN2Opt{}
	}
	return &Planner[P]{router: r, cfg: cfg}
}

// Solve plans k closed routes over points.
func (p *Planner[P]) Solve(ctx context.Context, profile Profile, points []P, k int) ([]Route, Report, error) {
	return p.SolveObserved(ctx, profile, points, k, nil)
}

// SolveObserved is Solve with progress events delivered to obs.
func (p *Planner[P]) SolveObserved(ctx context.Context, profile Profile, points []P, k int, obs Observer) ([]Route, Report, error) {
	start := time.Now()
	opts := p.cfg.Options.withDefaults()
	rep := Report{Strategy: p.cfg.Strategy.Name(), Objective: opts.Objective, Profile: profile, Points: len(points), Vehicles: k}
	if len(points) < 2 {
		return nil, rep, fmt.Errorf("%w: need at least 2 points, got %d", ErrInvalidInput, len(points))
	}
	if k < 1 || k > len(points) {
		return nil, rep, fmt.Errorf("%w: vehicle count %d outside [1,%d]", ErrInvalidInput, k, len(points))
	}
	emit := func(ev Event) {
		if obs != nil {
			obs(ev)
		}
	}

	builder := MatrixBuilder[P]{Router: p.router, Workers: p.cfg.Workers, Limiter: p.cfg.Limiter, Symmetric: p.cfg.Symmetric, Log: p.cfg.Log}
	m, mst, err := builder.Build(ctx, profile, points)
	if err != nil {
		rep.Elapsed = time.Since(start)
		return nil, rep, fmt.Errorf("build matrix: %w", err)
	}
	rep.MatrixPairs, rep.Unreachable, rep.MatrixTime = mst.Pairs, mst.Unreachable, mst.Elapsed
	emit(Event{Phase: PhaseMatrix, Group: -1, Size: len(points), Elapsed: time.Since(start)})

	solver := &Solver{Strategy: p.cfg.Strategy, Options: p.cfg.Options, Observe: obs, Log: p.cfg.Log}
	sol, sst, err := solver.Solve(ctx, m, k)
	rep.RebalanceIterations, rep.RebalanceCapHit = sst.RebalanceIterations, sst.RebalanceCapHit
	rep.TwoOptMoves, rep.TwoOptCapHit = sst.TwoOptMoves, sst.TwoOptCapHit
	rep.ExactGroups, rep.ExactCapHit = sst.ExactGroups, sst.ExactCapHit
	rep.Repairs, rep.Regrouped = sst.Repairs, sst.Regrouped
	rep.PartitionTime, rep.SequenceTime = sst.PartitionTime, sst.SequenceTime
	if err != nil {
		rep.Elapsed = time.Since(start)
		return nil, rep, err
	}
	rep.TourCosts, rep.TotalCost, rep.MaxCost = sol.Costs, sol.TotalCost(), sol.MaxCost()

	asmStart := time.Now()
	asm := Assembler[P]{Router: p.router, Workers: p.cfg.Workers, Limiter: p.cfg.Limiter, Log: p.cfg.Log}
	routes, err := asm.Assemble(ctx, profile, points, sol)
	rep.AssemblyTime = time.Since(asmStart)
	rep.Elapsed = time.Since(start)
	if err != nil {
		return nil, rep, err
	}
	for _, r := range routes {
		emit(Event{Phase: PhaseAssembled, Group: r.Vehicle, Size: len(r.Order), Cost: r.Cost, Elapsed: time.Since(start)})
	}
	logger(p.cfg.Log).Info("mtsp solved", "profile", profile, "points", len(points), "vehicles", k,
		"total", rep.TotalCost, "elapsed", rep.Elapsed)
	return routes, rep, nil
}
