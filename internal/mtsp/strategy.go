package mtsp

import (
	"context"
	"fmt"
	"slices"
)

// Strategy splits the points into groups and orders each group into a closed tour.
// Partition must return exactly k non-empty groups covering 0..n-1 once each.
type Strategy interface {
	Name() string
	Partition(ctx context.Context, m CostMatrix, k int, opts Options) ([][]int, PartitionStats, error)
	Sequence(ctx context.Context, m CostMatrix, group []int, opts Options) ([]int, SequenceStats, error)
}

const (
	StrategyNN2Opt  = "nn2opt"
	StrategySavings = "savings"
	StrategyExact   = "exact"
)

// Strategies lists the registered strategy names.
var Strategies = []string{StrategyNN2Opt, StrategySavings, StrategyExact}

// NewStrategy returns the strategy registered under name. Empty selects nn2opt.
func NewStrategy(name string) (Strategy, error) {
	switch name {
	case "", StrategyNN2Opt:
		return NN2Opt{}, nil
	case StrategySavings:
		return Savings{}, nil
	case StrategyExact:
		return Exact{}, nil
	}
	return nil, fmt.Errorf("%w: unknown strategy %q", ErrInvalidInput, name)
}

// NN2Opt partitions by nearest seed with rebalancing and sequences by nearest neighbor
// followed by 2-opt.
type NN2Opt struct {
	// Trace receives the tour cost after every accepted 2-opt move. Groups are sequenced
	// concurrently, so Trace must be safe for concurrent use when k > 1.
	Trace func(cost float64)
}

func (NN2Opt) Name() string { return StrategyNN2Opt }

func (NN2Opt) Partition(ctx context.Context, m CostMatrix, k int, opts Options) ([][]int, PartitionStats, error) {
	return partitionNearestSeed(ctx, m, k, opts)
}

func (s NN2Opt) Sequence(ctx context.Context, m CostMatrix, group []int, opts Options) ([]int, SequenceStats, error) {
	return sequenceHeuristic(ctx, m, group, opts, s.Trace)
}

// Savings builds groups by Clarke-Wright style merging. Each group keeps its merged order
// as the starting tour for 2-opt.
type Savings struct{}

func (Savings) Name() string { return StrategySavings }

func (Savings) Partition(ctx context.Context, m CostMatrix, k int, opts Options) ([][]int, PartitionStats, error) {
	groups, merges, err := savingsMerge(ctx, m, k, opts)
	if err != nil {
		return nil, PartitionStats{}, err
	}
	return groups, PartitionStats{Iterations: merges}, nil
}

func (Savings) Sequence(ctx context.Context, m CostMatrix, group []int, opts Options) ([]int, SequenceStats, error) {
	return sequenceFromOrder(ctx, m, group, opts, nil)
}

// Exact partitions like NN2Opt and solves groups up to Options.ExactMaxGroup optimally.
type Exact struct{}

func (Exact) Name() string { return StrategyExact }

func (Exact) Partition(ctx context.Context, m CostMatrix, k int, opts Options) ([][]int, PartitionStats, error) {
	return partitionNearestSeed(ctx, m, k, opts)
}

func (Exact) Sequence(ctx context.Context, m CostMatrix, group []int, opts Options) ([]int, SequenceStats, error) {
	if len(group) > opts.ExactMaxGroup {
		return sequenceHeuristic(ctx, m, group, opts, nil)
	}
	sorted := slices.Clone(group)
	slices.Sort(sorted)
	var incumbent []int
	if tour, _, err := sequenceHeuristic(ctx, m, sorted, opts, nil); err == nil {
		incumbent = tour
	}
	tour, _, capHit, err := branchAndBound(ctx, m, sorted, incumbent, opts)
	if err != nil {
		return nil, SequenceStats{}, err
	}
	return tour, SequenceStats{Exact: true, ExactCapHit: capHit}, nil
}
