package mtsp

import (
	"context"
	"math"
	"slices"
)

// branchAndBound finds a minimum-cost closed tour over group by depth-first search with a
// cheapest-outgoing-edge lower bound. The tour starts at group[0]. incumbent, when it is a
// finite tour, seeds the upper bound.
//
// When the time budget runs out the search stops at the best tour found so far and capHit is
// true. Without any closed tour yet it keeps going until it finds one or ctx ends.
func branchAndBound(ctx context.Context, m CostMatrix, group []int, incumbent []int, opts Options) (tour []int, cost float64, capHit bool, err error) {
	n := len(group)
	if n < 2 {
		return slices.Clone(group), 0, false, nil
	}

	// minOut[v] is the cheapest finite edge leaving group[v] inside the group.
	minOut := make([]float64, n)
	var boundRest float64
	for v := range group {
		minOut[v] = math.Inf(1)
		for w := range group {
			if v != w && m.Reachable(group[v], group[w]) {
				minOut[v] = min(minOut[v], m[group[v]][group[w]])
			}
		}
		if math.IsInf(minOut[v], 1) {
			return nil, Unreachable, false, errNoClosedTour
		}
		boundRest += minOut[v]
	}

	// neighbors[v] lists candidate next hops, cheapest first, ties by index.
	neighbors := make([][]int, n)
	for v := range group {
		for w := range group {
			if v != w && m.Reachable(group[v], group[w]) {
				neighbors[v] = append(neighbors[v], w)
			}
		}
		slices.SortStableFunc(neighbors[v], func(a, b int) int {
			ca, cb := m[group[v]][group[a]], m[group[v]][group[b]]
			switch {
			case ca < cb:
				return -1
			case ca > cb:
				return 1
			}
			return a - b
		})
	}

	best := math.Inf(1)
	var bestTour []int
	if len(incumbent) == n {
		if c := m.TourCost(incumbent); !math.IsInf(c, 1) {
			best, bestTour = c, slices.Clone(incumbent)
		}
	}

	path := make([]int, 1, n)
	visited := make([]bool, n)
	visited[0] = true
	nodes := 0
	var cancelled error
	stopped := false

	var dfs func(cost, rest float64)
	dfs = func(cost, rest float64) {
		if cancelled != nil || stopped {
			return
		}
		nodes++
		if nodes%2048 == 1 {
			if err := ctx.Err(); err != nil {
				cancelled = err
				return
			}
			if opts.expired() {
				capHit = true
			}
		}
		if capHit && bestTour != nil {
			stopped = true
			return
		}
		last := path[len(path)-1]
		if len(path) == n {
			if !m.Reachable(group[last], group[0]) {
				return
			}
			if total := cost + m[group[last]][group[0]]; total < best-opts.Epsilon {
				best = total
				bestTour = bestTour[:0]
				for _, v := range path {
					bestTour = append(bestTour, group[v])
				}
			}
			return
		}
		// every unvisited vertex and the current one still has to leave once
		if cost+rest >= best-opts.Epsilon {
			return
		}
		for _, w := range neighbors[last] {
			if visited[w] {
				continue
			}
			visited[w] = true
			path = append(path, w)
			dfs(cost+m[group[last]][group[w]], rest-minOut[last])
			path = path[:len(path)-1]
			visited[w] = false
		}
	}
	dfs(0, boundRest)

	if cancelled != nil {
		return nil, Unreachable, false, cancelled
	}
	if bestTour == nil {
		return nil, Unreachable, capHit, errNoClosedTour
	}
	return bestTour, best, capHit, nil
}
