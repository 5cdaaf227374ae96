package mtsp

import (
	"math/rand"
	"time"
)

// Options tunes the solver. Zero values select the defaults below.
type Options struct {
	Objective Objective
	// Seed drives the first depot pick. 0 selects a fixed default so output stays reproducible.
	Seed int64
	// MaxRebalanceIterations caps applied rebalance moves (default 500).
	MaxRebalanceIterations int
	// TwoOptMaxIterations caps accepted 2-opt moves per group (default 10000).
	TwoOptMaxIterations int
	// TimeBudget bounds partitioning plus sequencing wall-clock time. 0 means unlimited.
	// On expiry the best solution so far is returned.
	TimeBudget time.Duration
	// Epsilon is the minimum cost decrease that counts as an improvement (default 1e-9).
	Epsilon float64
	// ExactMaxGroup is the largest group the exact strategy sequences by branch and
	// bound, and the largest group heuristics retry exhaustively when greedy
	// construction cannot close a tour (default 10, at most MaxExactGroup).
	ExactMaxGroup int
	// Workers bounds concurrent group sequencing (default: one per group).
	Workers int

	deadline time.Time
}

const (
	defaultRebalanceIterations = 500
	defaultTwoOptIterations    = 10000
	defaultEpsilon             = 1e-9
	defaultExactMaxGroup       = 10
	defaultRNGSeed       int64 = 1
)

// MaxExactGroup is the largest accepted Options.ExactMaxGroup; larger values are clamped.
const MaxExactGroup = 16

func (o Options) withDefaults() Options {
	if o.Objective == "" {
		o.Objective = ObjectiveBalanced
	}
	if o.MaxRebalanceIterations <= 0 {
		o.MaxRebalanceIterations = defaultRebalanceIterations
	}
	if o.TwoOptMaxIterations <= 0 {
		o.TwoOptMaxIterations = defaultTwoOptIterations
	}
	if o.Epsilon <= 0 {
		o.Epsilon = defaultEpsilon
	}
	if o.ExactMaxGroup <= 0 {
		o.ExactMaxGroup = defaultExactMaxGroup
	}
	o.ExactMaxGroup = min(o.ExactMaxGroup, MaxExactGroup)
	return o
}

// expired reports whether the time budget has run out.
func (o Options) expired() bool {
	return !o.deadline.IsZero() && time.Now().After(o.deadline)
}

// sizeCap returns the largest group size the objective allows, or n when uncapped.
func (o Options) sizeCap(n, k int) int {
	if o.Objective == ObjectiveTotal {
		return n
	}
	return (n + k - 1) / k
}

func (o Options) rng() *rand.Rand {
	s := o.Seed
	if s == 0 {
		s = defaultRNGSeed
	}
	return rand.New(rand.NewSource(s))
}
