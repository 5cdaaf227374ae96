package mtsp

import (
	"context"
	"slices"
)

// savingsMerge starts from one tour per index and repeatedly joins the pair of tours whose
// concatenation adds the least cost, until k tours remain. Under a capped objective merges
// that would exceed the size cap are skipped while any other merge is possible.
func savingsMerge(ctx context.Context, m CostMatrix, k int, opts Options) ([][]int, int, error) {
	n := len(m)
	tours := make([][]int, n)
	for i := range tours {
		tours[i] = []int{i}
	}
	sizeCap := opts.sizeCap(n, k)
	merges := 0
	for len(tours) > k {
		if err := ctx.Err(); err != nil {
			return nil, merges, err
		}
		a, b, ok := bestSavingsPair(m, tours, sizeCap)
		if !ok {
			a, b = smallestPair(tours)
		}
		joined := append(slices.Clone(tours[a]), tours[b]...)
		tours[a] = joined
		tours = slices.Delete(tours, b, b+1)
		merges++
	}
	return tours, merges, nil
}

// bestSavingsPair returns the ordered pair (a, b) whose join a+b changes the closed-tour
// cost the least. Ties keep the first pair found.
func bestSavingsPair(m CostMatrix, tours [][]int, sizeCap int) (int, int, bool) {
	bestA, bestB := -1, -1
	var best tourCost
	for a := range tours {
		for b := range tours {
			if a == b || len(tours[a])+len(tours[b]) > sizeCap {
				continue
			}
			firstA, lastA := tours[a][0], tours[a][len(tours[a])-1]
			firstB, lastB := tours[b][0], tours[b][len(tours[b])-1]
			d := edgeCost(m, lastA, firstB).add(edgeCost(m, lastB, firstA)).
				sub(edgeCost(m, lastA, firstA)).sub(edgeCost(m, lastB, firstB))
			if bestA < 0 || d.less(best, 0) {
				bestA, bestB, best = a, b, d
			}
		}
	}
	return bestA, bestB, bestA >= 0
}

// smallestPair picks the two smallest tours, lower index first on ties.
func smallestPair(tours [][]int) (int, int) {
	order := make([]int, len(tours))
	for i := range order {
		order[i] = i
	}
	slices.SortStableFunc(order, func(x, y int) int { return len(tours[x]) - len(tours[y]) })
	return order[0], order[1]
}

// sequenceFromOrder keeps the merged order when it closes with finite edges and polishes it
// with 2-opt. Otherwise the group is sequenced from scratch.
func sequenceFromOrder(ctx context.Context, m CostMatrix, group []int, opts Options, trace func(float64)) ([]int, SequenceStats, error) {
	tour := slices.Clone(group)
	if len(tour) < 2 || !m.Reachable(tour[len(tour)-1], tour[0]) || !finitePath(m, tour) {
		return sequenceHeuristic(ctx, m, group, opts, trace)
	}
	st, err := twoOpt(ctx, m, tour, opts, trace)
	if err != nil {
		return nil, st, err
	}
	return tour, st, nil
}

func finitePath(m CostMatrix, tour []int) bool {
	for i := 1; i < len(tour); i++ {
		if !m.Reachable(tour[i-1], tour[i]) {
			return false
		}
	}
	return true
}
