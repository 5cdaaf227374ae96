package mtsp_test

import (
	"context"
	"fmt"
	"math"
	"math/rand"
	"slices"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mtspnav/internal/mtsp"
)

func allStrategies(t *testing.T) []mtsp.Strategy {
	t.Helper()
	var out []mtsp.Strategy
	for _, name := range mtsp.Strategies {
		s, err := mtsp.NewStrategy(name)
		require.NoError(t, err)
		out = append(out, s)
	}
	return out
}

func requirePartition(t *testing.T, sol mtsp.Solution, n, k int) {
	t.Helper()
	require.Len(t, sol.Tours, k)
	require.Len(t, sol.Costs, k)
	seen := make([]int, n)
	for g, tour := range sol.Tours {
		require.NotEmpty(t, tour, "tour %d", g)
		for _, i := range tour {
			require.True(t, i >= 0 && i < n, "index %d out of range", i)
			seen[i]++
		}
	}
	for i, c := range seen {
		require.Equal(t, 1, c, "index %d visited %d times", i, c)
	}
}

func TestSolvePathMetricSingleVehicle(t *testing.T) {
	for _, st := range allStrategies(t) {
		t.Run(st.Name(), func(t *testing.T) {
			s := &mtsp.Solver{Strategy: st}
			sol, _, err := s.Solve(context.Background(), lineMatrix(4), 1)
			require.NoError(t, err)
			requirePartition(t, sol, 4, 1)
			assert.LessOrEqual(t, sol.TotalCost(), 6.0+1e-9)
		})
	}
}

func TestSolveEqualWeightsSplitsEvenly(t *testing.T) {
	for _, st := range allStrategies(t) {
		t.Run(st.Name(), func(t *testing.T) {
			s := &mtsp.Solver{Strategy: st}
			sol, _, err := s.Solve(context.Background(), uniformMatrix(6, 1), 2)
			require.NoError(t, err)
			requirePartition(t, sol, 6, 2)
			assert.Len(t, sol.Tours[0], 3)
			assert.Len(t, sol.Tours[1], 3)
			assert.Equal(t, []float64{3, 3}, sol.Costs)
		})
	}
}

func TestSolveBlockedPairIsInfeasible(t *testing.T) {
	m := uniformMatrix(3, 1)
	m[0][1], m[1][0] = mtsp.Unreachable, mtsp.Unreachable

	for _, st := range allStrategies(t) {
		t.Run(st.Name(), func(t *testing.T) {
			s := &mtsp.Solver{Strategy: st}
			_, _, err := s.Solve(context.Background(), m, 1)
			require.ErrorIs(t, err, mtsp.ErrInfeasible)
			assert.NotErrorIs(t, err, mtsp.ErrAssembly)

			var inf *mtsp.InfeasibleError
			require.ErrorAs(t, err, &inf)
			assert.Equal(t, 0, inf.Group)
			assert.Equal(t, []int{0, 1, 2}, inf.Indices)
		})
	}
}

func TestSolveRejectsInvalidInput(t *testing.T) {
	s := &mtsp.Solver{}
	ctx := context.Background()

	_, _, err := s.Solve(ctx, mtsp.NewCostMatrix(1), 1)
	assert.ErrorIs(t, err, mtsp.ErrInvalidInput, "single point")

	_, _, err = s.Solve(ctx, uniformMatrix(3, 1), 4)
	assert.ErrorIs(t, err, mtsp.ErrInvalidInput, "more vehicles than points")

	_, _, err = s.Solve(ctx, uniformMatrix(3, 1), 0)
	assert.ErrorIs(t, err, mtsp.ErrInvalidInput, "no vehicles")
}

func TestSolvePartitionCoverage(t *testing.T) {
	for _, st := range allStrategies(t) {
		for _, obj := range []mtsp.Objective{mtsp.ObjectiveBalanced, mtsp.ObjectiveTotal, mtsp.ObjectiveMinMax} {
			for n := 2; n <= 9; n++ {
				for k := 1; k <= n; k++ {
					name := fmt.Sprintf("%s/%s/n=%d/k=%d", st.Name(), obj, n, k)
					s := &mtsp.Solver{Strategy: st, Options: mtsp.Options{Objective: obj}}
					m := randomMatrix(n, int64(n*31+k))
					sol, _, err := s.Solve(context.Background(), m, k)
					require.NoError(t, err, name)
					requirePartition(t, sol, n, k)
					for g, tour := range sol.Tours {
						assert.InDelta(t, m.TourCost(tour), sol.Costs[g], 1e-9, name)
						assert.False(t, math.IsInf(sol.Costs[g], 1), name)
						if k == n {
							assert.Equal(t, 0.0, sol.Costs[g], name)
						}
					}
				}
			}
		}
	}
}

func TestSolveBalancedRespectsSizeCap(t *testing.T) {
	m := randomMatrix(11, 7)
	s := &mtsp.Solver{}
	sol, _, err := s.Solve(context.Background(), m, 3)
	require.NoError(t, err)
	for _, tour := range sol.Tours {
		assert.LessOrEqual(t, len(tour), 4)
	}
}

func TestSolveDeterministic(t *testing.T) {
	m := randomMatrix(14, 99)
	for _, st := range allStrategies(t) {
		t.Run(st.Name(), func(t *testing.T) {
			opts := mtsp.Options{Seed: 42}
			a, _, err := (&mtsp.Solver{Strategy: st, Options: opts}).Solve(context.Background(), m, 3)
			require.NoError(t, err)
			b, _, err := (&mtsp.Solver{Strategy: st, Options: opts}).Solve(context.Background(), m, 3)
			require.NoError(t, err)
			assert.Equal(t, a, b)
		})
	}
}

func TestSolveAvoidsUnreachableEdges(t *testing.T) {
	m := randomMatrix(8, 5)
	m[0][1], m[1][0] = mtsp.Unreachable, mtsp.Unreachable
	m[2][3] = mtsp.Unreachable
	m[4][5], m[5][4] = mtsp.Unreachable, mtsp.Unreachable

	for _, st := range allStrategies(t) {
		t.Run(st.Name(), func(t *testing.T) {
			sol, _, err := (&mtsp.Solver{Strategy: st}).Solve(context.Background(), m, 2)
			require.NoError(t, err)
			requirePartition(t, sol, 8, 2)
			for _, tour := range sol.Tours {
				for i := range tour {
					a, b := tour[i], tour[(i+1)%len(tour)]
					assert.True(t, m.Reachable(a, b), "edge %d->%d", a, b)
				}
			}
		})
	}
}

// fixedPartition hands the solver a chosen split and sequences like nn2opt.
type fixedPartition struct {
	mtsp.NN2Opt
	groups [][]int
}

func (f fixedPartition) Partition(context.Context, mtsp.CostMatrix, int, mtsp.Options) ([][]int, mtsp.PartitionStats, error) {
	out := make([][]int, len(f.groups))
	for i, g := range f.groups {
		out[i] = slices.Clone(g)
	}
	return out, mtsp.PartitionStats{}, nil
}

func TestSolveRepairsUnclosableGroup(t *testing.T) {
	m := uniformMatrix(4, 1)
	m[0][1], m[1][0] = mtsp.Unreachable, mtsp.Unreachable

	s := &mtsp.Solver{Strategy: fixedPartition{groups: [][]int{{0, 1, 2}, {3}}}}
	sol, stats, err := s.Solve(context.Background(), m, 2)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Repairs)
	assert.Equal(t, [][]int{{1, 2}, {0, 3}}, sol.Tours)
	assert.Equal(t, []float64{2, 2}, sol.Costs)
}

// sinkMatrix has 2 and 3 as dead ends, so {2},{3},{0,4,1} is the only split into three
// closed tours, and 0->4->1->0 is the only way round the last one.
func sinkMatrix() mtsp.CostMatrix {
	m := mtsp.NewCostMatrix(5)
	for i := range m {
		for j := range m[i] {
			if i != j {
				m[i][j] = mtsp.Unreachable
			}
		}
	}
	for _, e := range [][2]int{{0, 4}, {4, 1}, {1, 0}, {0, 2}, {1, 2}, {4, 2}, {0, 3}, {1, 3}, {4, 3}, {3, 2}} {
		m[e[0]][e[1]] = 1
	}
	return m
}

func TestSolveIsolatesDeadEnds(t *testing.T) {
	for _, st := range allStrategies(t) {
		t.Run(st.Name(), func(t *testing.T) {
			sol, _, err := (&mtsp.Solver{Strategy: st}).Solve(context.Background(), sinkMatrix(), 3)
			require.NoError(t, err)
			requirePartition(t, sol, 5, 3)
			assert.ElementsMatch(t, [][]int{{0, 4, 1}, {2}, {3}}, sol.Tours)
		})
	}
}

func TestSolveRegroupsWhenLocalRepairFails(t *testing.T) {
	s := &mtsp.Solver{Strategy: fixedPartition{groups: [][]int{{0, 2}, {1, 3}, {4}}}}
	sol, stats, err := s.Solve(context.Background(), sinkMatrix(), 3)
	require.NoError(t, err)
	assert.True(t, stats.Regrouped)
	assert.Equal(t, [][]int{{0, 4, 1}, {2}, {3}}, sol.Tours)
	assert.Equal(t, []float64{3, 0, 0}, sol.Costs)
}

func blockedMatrix(n int, edges ...[2]int) mtsp.CostMatrix {
	m := mtsp.NewCostMatrix(n)
	for i := range m {
		for j := range m[i] {
			if i != j {
				m[i][j] = mtsp.Unreachable
			}
		}
	}
	for _, e := range edges {
		m[e[0]][e[1]] = 1
	}
	return m
}

func TestSolveRepairPullsIndexIn(t *testing.T) {
	// 1->0 is missing; 2 can sit between them and [3 4] still closes without it
	m := blockedMatrix(5, [2]int{0, 1}, [2]int{1, 2}, [2]int{2, 0}, [2]int{2, 3}, [2]int{3, 4}, [2]int{4, 2}, [2]int{4, 3})
	s := &mtsp.Solver{Strategy: fixedPartition{groups: [][]int{{0, 1}, {2, 3, 4}}}}
	sol, stats, err := s.Solve(context.Background(), m, 2)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Repairs)
	assert.False(t, stats.Regrouped)
	assert.Equal(t, [][]int{{0, 1, 2}, {3, 4}}, sol.Tours)
	assert.Equal(t, []float64{3, 2}, sol.Costs)
}

func TestSolveRepairSwapsIndices(t *testing.T) {
	m := blockedMatrix(4, [2]int{0, 1}, [2]int{0, 2}, [2]int{2, 0}, [2]int{2, 3}, [2]int{3, 2}, [2]int{3, 1}, [2]int{1, 3})
	s := &mtsp.Solver{Strategy: fixedPartition{groups: [][]int{{0, 1}, {2, 3}}}}
	sol, stats, err := s.Solve(context.Background(), m, 2)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Repairs)
	assert.False(t, stats.Regrouped)
	assert.Equal(t, [][]int{{1, 3}, {0, 2}}, sol.Tours)
	assert.Equal(t, []float64{2, 2}, sol.Costs)
}

// closedTourExists tries every ordering of members.
func closedTourExists(m mtsp.CostMatrix, members []int) bool {
	if len(members) < 2 {
		return true
	}
	rest := slices.Clone(members[1:])
	found := false
	var permute func(int)
	permute = func(i int) {
		if found {
			return
		}
		if i == len(rest) {
			found = !math.IsInf(m.TourCost(append([]int{members[0]}, rest...)), 1)
			return
		}
		for j := i; j < len(rest); j++ {
			rest[i], rest[j] = rest[j], rest[i]
			permute(i + 1)
			rest[i], rest[j] = rest[j], rest[i]
		}
	}
	permute(0)
	return found
}

// groupingExists walks every split of 0..n-1 into k non-empty groups.
func groupingExists(m mtsp.CostMatrix, k int) bool {
	n := m.Size()
	label := make([]int, n)
	var walk func(i, used int) bool
	walk = func(i, used int) bool {
		if n-i < k-used {
			return false
		}
		if i == n {
			groups := make([][]int, k)
			for p, g := range label {
				groups[g] = append(groups[g], p)
			}
			for _, g := range groups {
				if !closedTourExists(m, g) {
					return false
				}
			}
			return true
		}
		for g := 0; g <= used && g < k; g++ {
			label[i] = g
			next := used
			if g == used {
				next++
			}
			if walk(i+1, next) {
				return true
			}
		}
		return false
	}
	return walk(0, 0)
}

func TestSolveInfeasibleOnlyWithoutAnyGrouping(t *testing.T) {
	rng := rand.New(rand.NewSource(29))
	strategies := allStrategies(t)
	infeasible := 0
	for trial := 0; trial < 200; trial++ {
		n := 4 + rng.Intn(4)
		k := 1 + rng.Intn(n)
		m := randomMatrix(n, int64(trial))
		for i := range m {
			for j := range m[i] {
				if i != j && rng.Float64() < 0.35 {
					m[i][j] = mtsp.Unreachable
				}
			}
		}
		want := groupingExists(m, k)
		if !want {
			infeasible++
		}
		for _, st := range strategies {
			sol, _, err := (&mtsp.Solver{Strategy: st}).Solve(context.Background(), m, k)
			if !want {
				assert.ErrorIs(t, err, mtsp.ErrInfeasible, "trial %d %s", trial, st.Name())
				continue
			}
			require.NoError(t, err, "trial %d %s n=%d k=%d", trial, st.Name(), n, k)
			requirePartition(t, sol, n, k)
			for g, c := range sol.Costs {
				assert.False(t, math.IsInf(c, 1), "trial %d %s tour %d", trial, st.Name(), g)
			}
		}
	}
	assert.Greater(t, infeasible, 0, "no infeasible instance generated")
}

func TestSolveRejectsBrokenPartition(t *testing.T) {
	s := &mtsp.Solver{Strategy: fixedPartition{groups: [][]int{{0, 1}, {1, 2}}}}
	_, _, err := s.Solve(context.Background(), uniformMatrix(3, 1), 2)
	require.Error(t, err)
}

func TestSolveTimeBudgetDegradesSoftly(t *testing.T) {
	m := randomMatrix(30, 3)
	s := &mtsp.Solver{Options: mtsp.Options{TimeBudget: time.Nanosecond}}
	sol, stats, err := s.Solve(context.Background(), m, 3)
	require.NoError(t, err)
	requirePartition(t, sol, 30, 3)
	assert.True(t, stats.RebalanceCapHit)
}

func TestSolveTimeBudgetAllStrategies(t *testing.T) {
	cases := []struct {
		name     string
		n, k     int
		maxGroup int
	}{
		{"single exact group", 16, 1, mtsp.MaxExactGroup},
		{"clamped group size", 28, 1, 28},
		{"two groups", 32, 2, mtsp.MaxExactGroup},
	}
	for _, st := range allStrategies(t) {
		for _, tc := range cases {
			t.Run(st.Name()+"/"+tc.name, func(t *testing.T) {
				ctx, cancel := context.WithTimeout(context.Background(), 20*time.Second)
				defer cancel()
				s := &mtsp.Solver{Strategy: st, Options: mtsp.Options{TimeBudget: 50 * time.Millisecond, ExactMaxGroup: tc.maxGroup}}
				start := time.Now()
				sol, _, err := s.Solve(ctx, randomMatrix(tc.n, 5), tc.k)
				require.NoError(t, err)
				assert.Less(t, time.Since(start), 5*time.Second)
				requirePartition(t, sol, tc.n, tc.k)
			})
		}
	}
}

func TestSolveExactStopsAtTimeBudget(t *testing.T) {
	s := &mtsp.Solver{Strategy: mtsp.Exact{}, Options: mtsp.Options{TimeBudget: time.Nanosecond, ExactMaxGroup: mtsp.MaxExactGroup}}
	sol, stats, err := s.Solve(context.Background(), randomMatrix(16, 5), 1)
	require.NoError(t, err)
	requirePartition(t, sol, 16, 1)
	assert.Equal(t, 1, stats.ExactGroups)
	assert.True(t, stats.ExactCapHit)
}

func TestSolveRebalanceIterationCap(t *testing.T) {
	m := randomMatrix(20, 11)
	s := &mtsp.Solver{Options: mtsp.Options{Objective: mtsp.ObjectiveTotal, MaxRebalanceIterations: 1}}
	sol, stats, err := s.Solve(context.Background(), m, 4)
	require.NoError(t, err)
	requirePartition(t, sol, 20, 4)
	assert.LessOrEqual(t, stats.RebalanceIterations, 1)
}

func TestSolveTwoOptTraceIsStrictlyDecreasing(t *testing.T) {
	var costs []float64
	st := mtsp.NN2Opt{Trace: func(c float64) { costs = append(costs, c) }}
	// k=1 keeps the trace single threaded
	_, stats, err := (&mtsp.Solver{Strategy: st}).Solve(context.Background(), randomMatrix(25, 17), 1)
	require.NoError(t, err)
	assert.Len(t, costs, stats.TwoOptMoves)
	for i := 1; i < len(costs); i++ {
		assert.Less(t, costs[i], costs[i-1])
	}
}

func TestSolveTraceAcrossGroups(t *testing.T) {
	var mu sync.Mutex
	calls := 0
	st := mtsp.NN2Opt{Trace: func(float64) {
		mu.Lock()
		calls++
		mu.Unlock()
	}}
	_, stats, err := (&mtsp.Solver{Strategy: st}).Solve(context.Background(), randomMatrix(40, 23), 4)
	require.NoError(t, err)
	assert.Equal(t, stats.TwoOptMoves, calls)
}

func TestSolveExactNoWorseOnEuclideanPoints(t *testing.T) {
	rng := rand.New(rand.NewSource(41))
	pts := make([][2]float64, 14)
	for i := range pts {
		pts[i] = [2]float64{rng.Float64() * 100, rng.Float64() * 100}
	}
	m := euclidMatrix(pts)

	heur, _, err := (&mtsp.Solver{Strategy: mtsp.NN2Opt{}}).Solve(context.Background(), m, 2)
	require.NoError(t, err)
	exact, stats, err := (&mtsp.Solver{Strategy: mtsp.Exact{}}).Solve(context.Background(), m, 2)
	require.NoError(t, err)
	assert.Equal(t, 2, stats.ExactGroups)
	for g := range exact.Tours {
		assert.ElementsMatch(t, heur.Tours[g], exact.Tours[g], "same partition")
		assert.LessOrEqual(t, exact.Costs[g], heur.Costs[g]+1e-9)
	}
}

func TestSolveObserverSeesPhases(t *testing.T) {
	var phases []mtsp.Phase
	s := &mtsp.Solver{Observe: func(ev mtsp.Event) { phases = append(phases, ev.Phase) }}
	_, _, err := s.Solve(context.Background(), randomMatrix(9, 1), 3)
	require.NoError(t, err)
	require.Len(t, phases, 5)
	assert.Equal(t, mtsp.PhasePartitioned, phases[0])
	assert.Equal(t, mtsp.PhaseSolved, phases[4])
	for _, p := range phases[1:4] {
		assert.Equal(t, mtsp.PhaseSequenced, p)
	}
}

func TestSolveHonoursCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, _, err := (&mtsp.Solver{}).Solve(ctx, randomMatrix(12, 2), 2)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestNewStrategyUnknown(t *testing.T) {
	_, err := mtsp.NewStrategy("genetic")
	assert.ErrorIs(t, err, mtsp.ErrInvalidInput)
}
