package mtsp

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/samber/lo"
	"golang.org/x/sync/errgroup"
)

// SolveStats describes how a solve went. Caps never fail a solve; they show up here.
type SolveStats struct {
	Strategy            string
	Objective           Objective
	RebalanceIterations int
	RebalanceCapHit     bool
	TwoOptMoves         int
	TwoOptCapHit        bool
	ExactGroups         int
	ExactCapHit         bool
	Repairs             int
	Regrouped           bool
	PartitionTime       time.Duration
	SequenceTime        time.Duration
}

// Solver is the combinatorial core: it turns a cost matrix and K into K closed tours.
type Solver struct {
	Strategy Strategy // nil selects NN2Opt
	Options  Options
	Observe  Observer
	Log      *slog.Logger

	mu sync.Mutex
}

func (s *Solver) emit(ev Event) {
	if s.Observe == nil {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Observe(ev)
}

// Solve partitions the indices of m into k groups and orders each group into a closed
// tour that uses only reachable edges.
func (s *Solver) Solve(ctx context.Context, m CostMatrix, k int) (Solution, SolveStats, error) {
	if err := m.Validate(); err != nil {
		return Solution{}, SolveStats{}, err
	}
	n := m.Size()
	if n < 2 {
		return Solution{}, SolveStats{}, fmt.Errorf("%w: need at least 2 points, got %d", ErrInvalidInput, n)
	}
	if k < 1 || k > n {
		return Solution{}, SolveStats{}, fmt.Errorf("%w: vehicle count %d outside [1,%d]", ErrInvalidInput, k, n)
	}

	strategy := s.Strategy
	if strategy == nil {
		strategy = NN2Opt{}
	}
	opts := s.Options.withDefaults()
	if opts.TimeBudget > 0 {
		opts.deadline = time.Now().Add(opts.TimeBudget)
	}
	log := logger(s.Log).With("strategy", strategy.Name(), "n", n, "k", k)
	stats := SolveStats{Strategy: strategy.Name(), Objective: opts.Objective}
	start := time.Now()

	groups, pst, err := strategy.Partition(ctx, m, k, opts)
	if err != nil {
		return Solution{}, stats, fmt.Errorf("partition: %w", err)
	}
	if err := checkPartition(groups, n, k); err != nil {
		return Solution{}, stats, err
	}
	stats.RebalanceIterations, stats.RebalanceCapHit = pst.Iterations, pst.CapHit
	stats.PartitionTime = time.Since(start)
	log.Debug("partitioned", "iterations", pst.Iterations, "capHit", pst.CapHit, "elapsed", stats.PartitionTime)
	s.emit(Event{Phase: PhasePartitioned, Group: -1, Size: len(groups), Elapsed: stats.PartitionTime})

	seqStart := time.Now()
	tours, seqStats, failed, err := s.sequenceAll(ctx, strategy, m, groups, opts)
	if err != nil {
		return Solution{}, stats, fmt.Errorf("sequence: %w", err)
	}
	for _, g := range failed {
		repairs, err := s.repair(ctx, strategy, m, tours, groups, g, opts)
		stats.Repairs += repairs
		var inf *InfeasibleError
		if errors.As(err, &inf) && n <= opts.ExactMaxGroup {
			tours, seqStats, err = s.regroup(ctx, strategy, m, k, opts, inf)
			if err == nil {
				stats.Regrouped = true
				log.Debug("regrouped", "groups", tours)
				break
			}
		}
		if err != nil {
			if errors.As(err, &inf) {
				log.Debug("infeasible", "group", inf.Group, "indices", inf.Indices)
				s.emit(Event{Phase: PhaseInfeasible, Group: inf.Group, Size: len(inf.Indices), Elapsed: time.Since(start)})
			}
			return Solution{}, stats, err
		}
	}
	for _, st := range seqStats {
		stats.TwoOptMoves += st.Moves
		stats.TwoOptCapHit = stats.TwoOptCapHit || st.CapHit
		if st.Exact {
			stats.ExactGroups++
		}
		stats.ExactCapHit = stats.ExactCapHit || st.ExactCapHit
	}
	stats.SequenceTime = time.Since(seqStart)

	sol := Solution{Tours: make([][]int, k), Costs: make([]float64, k)}
	for g, t := range tours {
		sol.Tours[g] = rotateToMin(t)
		sol.Costs[g] = m.TourCost(sol.Tours[g])
	}
	if err := verifySolution(m, sol); err != nil {
		return Solution{}, stats, err
	}
	log.Debug("solved", "total", sol.TotalCost(), "max", sol.MaxCost(), "twoOptMoves", stats.TwoOptMoves, "repairs", stats.Repairs)
	s.emit(Event{Phase: PhaseSolved, Group: -1, Size: k, Cost: sol.TotalCost(), Elapsed: time.Since(start)})
	return sol, stats, nil
}

// sequenceAll runs the strategy on every group concurrently. Groups without a closed tour
// are returned in failed, in index order.
func (s *Solver) sequenceAll(ctx context.Context, strategy Strategy, m CostMatrix, groups [][]int, opts Options) ([][]int, []SequenceStats, []int, error) {
	k := len(groups)
	tours := make([][]int, k)
	stats := make([]SequenceStats, k)
	open := make([]bool, k)
	workers := opts.Workers
	if workers <= 0 {
		workers = k
	}
	start := time.Now()

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for i, group := range groups {
		g.Go(func() error {
			tour, st, err := strategy.Sequence(gctx, m, group, opts)
			if errors.Is(err, errNoClosedTour) {
				open[i] = true
				return nil
			}
			if err != nil {
				return err
			}
			tours[i], stats[i] = tour, st
			s.emit(Event{Phase: PhaseSequenced, Group: i, Size: len(tour), Cost: m.TourCost(tour), Elapsed: time.Since(start)})
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, nil, nil, err
	}
	var failed []int
	for i, bad := range open {
		if bad {
			failed = append(failed, i)
		}
	}
	return tours, stats, failed, nil
}

func checkPartition(groups [][]int, n, k int) error {
	if len(groups) != k {
		return fmt.Errorf("mtsp: partition produced %d groups, want %d", len(groups), k)
	}
	if lo.SomeBy(groups, func(g []int) bool { return len(g) == 0 }) {
		return errors.New("mtsp: partition produced an empty group")
	}
	all := lo.Flatten(groups)
	if len(all) != n || len(lo.Uniq(all)) != n || lo.SomeBy(all, func(i int) bool { return i < 0 || i >= n }) {
		return fmt.Errorf("mtsp: partition does not cover 0..%d exactly once", n-1)
	}
	return nil
}

func verifySolution(m CostMatrix, sol Solution) error {
	if err := checkPartition(sol.Tours, m.Size(), len(sol.Tours)); err != nil {
		return err
	}
	for g, c := range sol.Costs {
		if c == Unreachable {
			return fmt.Errorf("mtsp: tour %d uses an unreachable edge", g)
		}
	}
	return nil
}

// rotateToMin returns tour rotated so it starts at its smallest index.
func rotateToMin(tour []int) []int {
	if len(tour) == 0 {
		return tour
	}
	at := slices.Index(tour, slices.Min(tour))
	return append(slices.Clone(tour[at:]), tour[:at]...)
}
