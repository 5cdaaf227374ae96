package mtsp

import (
	"context"
	"math"
	"math/bits"
)

// subsetTourCosts returns the cheapest closed tour cost over every subset of the indices of
// m, keyed by bitmask. Subsets without a closed tour cost Unreachable.
//
// path[S*n+v] is the cheapest path that starts at the lowest member of S, visits all of S
// and ends at v.
func subsetTourCosts(ctx context.Context, m CostMatrix) ([]float64, error) {
	n := m.Size()
	full := 1 << n
	path := make([]float64, full*n)
	for i := range path {
		path[i] = Unreachable
	}
	tc := make([]float64, full)
	tc[0] = Unreachable
	for set := 1; set < full; set++ {
		if set&1023 == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}
		s0 := bits.TrailingZeros(uint(set))
		if set == 1<<s0 {
			path[set*n+s0] = 0
			continue
		}
		for v := s0 + 1; v < n; v++ {
			if set&(1<<v) == 0 {
				continue
			}
			prev := set ^ 1<<v
			best := Unreachable
			for u := s0; u < n; u++ {
				if prev&(1<<u) == 0 || !m.Reachable(u, v) {
					continue
				}
				best = min(best, path[prev*n+u]+m[u][v])
			}
			path[set*n+v] = best
		}
		closed := Unreachable
		for v := s0 + 1; v < n; v++ {
			if set&(1<<v) != 0 && m.Reachable(v, s0) {
				closed = min(closed, path[set*n+v]+m[v][s0])
			}
		}
		tc[set] = closed
	}
	return tc, nil
}

func (a score) with(obj Objective, c float64) score {
	a.total += c
	if obj == ObjectiveMinMax {
		a.primary = max(a.primary, c)
	} else {
		a.primary = a.total
	}
	return a
}

// regroupExhaustive splits the indices of m into k groups that can each be closed,
// choosing the split with the best score under opts.Objective. Ties keep the split found
// first. It returns errNoClosedTour when no such split exists.
//
// Group sizes are not capped: a feasible unbalanced split beats none.
func regroupExhaustive(ctx context.Context, m CostMatrix, k int, opts Options) ([][]int, error) {
	tc, err := subsetTourCosts(ctx, m)
	if err != nil {
		return nil, err
	}
	n := m.Size()
	full := 1 << n
	none := score{broken: 1}

	// best[j][S] scores the best split of S into j closable groups; choice[j][S] is the
	// group holding the lowest member of S.
	best := make([][]score, k+1)
	choice := make([][]int32, k+1)
	best[1], choice[1] = make([]score, full), make([]int32, full)
	for set := 1; set < full; set++ {
		if math.IsInf(tc[set], 1) {
			best[1][set] = none
			continue
		}
		best[1][set] = score{}.with(opts.Objective, tc[set])
		choice[1][set] = int32(set)
	}
	for j := 2; j <= k; j++ {
		best[j], choice[j] = make([]score, full), make([]int32, full)
		for set := 1; set < full; set++ {
			if set&255 == 0 {
				if err := ctx.Err(); err != nil {
					return nil, err
				}
			}
			best[j][set] = none
			if bits.OnesCount(uint(set)) < j {
				continue
			}
			low := set & -set
			rest := set ^ low
			for r := rest; ; r = (r - 1) & rest {
				if r != rest {
					head := low | r
					tail := best[j-1][set^head]
					if !math.IsInf(tc[head], 1) && tail.broken == 0 {
						if cand := tail.with(opts.Objective, tc[head]); cand.less(best[j][set], opts.Epsilon) {
							best[j][set], choice[j][set] = cand, int32(head)
						}
					}
				}
				if r == 0 {
					break
				}
			}
		}
	}
	if best[k][full-1].broken > 0 {
		return nil, errNoClosedTour
	}

	groups := make([][]int, 0, k)
	set := full - 1
	for j := k; j >= 1; j-- {
		head := int(choice[j][set])
		var members []int
		for i := 0; i < n; i++ {
			if head&(1<<i) != 0 {
				members = append(members, i)
			}
		}
		groups = append(groups, members)
		set ^= head
	}
	return groups, nil
}
