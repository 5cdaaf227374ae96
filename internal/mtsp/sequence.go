package mtsp

import (
	"context"
	"errors"
	"slices"
)

// errNoClosedTour marks a group for which no tour with only finite edges was found.
var errNoClosedTour = errors.New("mtsp: no closed tour with finite edges")

// SequenceStats describes the sequencing of one group.
type SequenceStats struct {
	Moves       int  // accepted 2-opt moves
	CapHit      bool // 2-opt stopped by TwoOptMaxIterations or the time budget
	Exact       bool // sequenced by branch and bound
	ExactCapHit bool // branch and bound stopped by the time budget
}

// nearestNeighbor builds a tour over group starting at group[start], always stepping to the
// cheapest reachable unvisited index (ties to the lowest index). ok is false when the walk
// gets stuck or cannot close back to the start.
func nearestNeighbor(m CostMatrix, group []int, start int) ([]int, bool) {
	n := len(group)
	if n == 0 {
		return nil, true
	}
	visited := make([]bool, n)
	tour := make([]int, 0, n)
	cur := start
	visited[cur] = true
	tour = append(tour, group[cur])
	for len(tour) < n {
		next := -1
		for j := 0; j < n; j++ {
			if visited[j] || !m.Reachable(group[cur], group[j]) {
				continue
			}
			if next < 0 || m[group[cur]][group[j]] < m[group[cur]][group[next]] ||
				(m[group[cur]][group[j]] == m[group[cur]][group[next]] && group[j] < group[next]) {
				next = j
			}
		}
		if next < 0 {
			return tour, false
		}
		visited[next] = true
		tour = append(tour, group[next])
		cur = next
	}
	return tour, n < 2 || m.Reachable(tour[n-1], tour[0])
}

// constructTour runs nearest neighbor from each start in index order and returns the first
// closed tour. Small groups fall back to exhaustive search.
func constructTour(ctx context.Context, m CostMatrix, group []int, opts Options) ([]int, SequenceStats, error) {
	sorted := slices.Clone(group)
	slices.Sort(sorted)
	for s := range sorted {
		if tour, ok := nearestNeighbor(m, sorted, s); ok {
			return tour, SequenceStats{}, nil
		}
	}
	if len(sorted) <= opts.ExactMaxGroup {
		tour, _, capHit, err := branchAndBound(ctx, m, sorted, nil, opts)
		if err != nil {
			return nil, SequenceStats{}, err
		}
		return tour, SequenceStats{Exact: true, ExactCapHit: capHit}, nil
	}
	return nil, SequenceStats{}, errNoClosedTour
}

// twoOpt improves a closed tour in place by segment reversal, taking the first improving
// move and restarting. Moves that would introduce an unreachable edge are skipped. trace,
// when set, receives the tour cost after every accepted move.
func twoOpt(ctx context.Context, m CostMatrix, tour []int, opts Options, trace func(float64)) (SequenceStats, error) {
	var st SequenceStats
	n := len(tour)
	if n < 3 {
		return st, nil
	}
	symmetric := m.Symmetric(0)
	evals := 0
	for {
		improved := false
	scan:
		for i := 1; i < n-1; i++ {
			for k := i + 1; k < n; k++ {
				evals++
				if evals%256 == 0 {
					if err := ctx.Err(); err != nil {
						return st, err
					}
					if opts.expired() {
						st.CapHit = true
						return st, nil
					}
				}
				a, b, c, d := tour[i-1], tour[i], tour[k], tour[(k+1)%n]
				if a == d {
					continue
				}
				if !m.Reachable(a, c) || !m.Reachable(b, d) {
					continue
				}
				delta := m[a][c] + m[b][d] - m[a][b] - m[c][d]
				if !symmetric {
					inner, ok := reversalDelta(m, tour, i, k)
					if !ok {
						continue
					}
					delta += inner
				}
				if delta < -opts.Epsilon {
					slices.Reverse(tour[i : k+1])
					st.Moves++
					improved = true
					if trace != nil {
						trace(m.TourCost(tour))
					}
					break scan
				}
			}
		}
		if !improved {
			return st, nil
		}
		if st.Moves >= opts.TwoOptMaxIterations || opts.expired() {
			st.CapHit = true
			return st, nil
		}
	}
}

// reversalDelta is the cost change inside tour[i..k] when its direction flips. ok is false
// if a reversed edge would be unreachable.
func reversalDelta(m CostMatrix, tour []int, i, k int) (float64, bool) {
	var d float64
	for p := i; p < k; p++ {
		x, y := tour[p], tour[p+1]
		if !m.Reachable(y, x) {
			return 0, false
		}
		d += m[y][x] - m[x][y]
	}
	return d, true
}

// sequenceHeuristic is the nearest-neighbor plus 2-opt sequencing shared by the strategies.
func sequenceHeuristic(ctx context.Context, m CostMatrix, group []int, opts Options, trace func(float64)) ([]int, SequenceStats, error) {
	tour, cst, err := constructTour(ctx, m, group, opts)
	if err != nil {
		return nil, SequenceStats{}, err
	}
	st, err := twoOpt(ctx, m, tour, opts, trace)
	st.Exact, st.ExactCapHit = cst.Exact, cst.ExactCapHit
	if err != nil {
		return nil, st, err
	}
	return tour, st, nil
}
