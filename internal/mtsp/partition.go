package mtsp

import (
	"context"
	"math/rand"
	"slices"
)

// PartitionStats describes one partitioning run.
type PartitionStats struct {
	Iterations int  // applied rebalance moves
	CapHit     bool // stopped by MaxRebalanceIterations or the time budget
}

// seedDepots picks k distinct seed indices: the first at random, each next one the index
// farthest (by round trip) from every seed chosen so far. Ties go to the lowest index.
func seedDepots(m CostMatrix, k int, rng *rand.Rand) []int {
	n := len(m)
	first := rng.Intn(n)
	seeds := []int{first}
	isSeed := make([]bool, n)
	isSeed[first] = true
	nearest := make([]tourCost, n)
	for i := range nearest {
		nearest[i] = roundTrip(m, i, first)
	}
	for len(seeds) < k {
		best := -1
		for i := 0; i < n; i++ {
			if isSeed[i] {
				continue
			}
			if best < 0 || nearest[best].less(nearest[i], 0) {
				best = i
			}
		}
		seeds = append(seeds, best)
		isSeed[best] = true
		for i := range nearest {
			if d := roundTrip(m, i, best); d.less(nearest[i], 0) {
				nearest[i] = d
			}
		}
	}
	return seeds
}

// assignNearestSeed puts every index in the group of its nearest seed. Ties go to the
// lowest group.
func assignNearestSeed(m CostMatrix, seeds []int) [][]int {
	groups := make([][]int, len(seeds))
	isSeed := make(map[int]int, len(seeds))
	for g, s := range seeds {
		groups[g] = []int{s}
		isSeed[s] = g
	}
	for i := range m {
		if _, ok := isSeed[i]; ok {
			continue
		}
		best, bestCost := 0, roundTrip(m, i, seeds[0])
		for g := 1; g < len(seeds); g++ {
			if d := roundTrip(m, i, seeds[g]); d.less(bestCost, 0) {
				best, bestCost = g, d
			}
		}
		groups[best] = append(groups[best], i)
	}
	return groups
}

// score is the objective estimate of a whole partition.
type score struct {
	broken  int
	primary float64
	total   float64
}

func (a score) less(b score, eps float64) bool {
	if a.broken != b.broken {
		return a.broken < b.broken
	}
	if a.primary < b.primary-eps {
		return true
	}
	if a.primary > b.primary+eps {
		return false
	}
	return a.total < b.total-eps
}

func scoreOf(obj Objective, costs []tourCost) score {
	var s score
	for _, c := range costs {
		s.broken += c.broken
		s.total += c.sum
		if obj == ObjectiveMinMax {
			s.primary = max(s.primary, c.sum)
		}
	}
	if obj != ObjectiveMinMax {
		s.primary = s.total
	}
	return s
}

// rebalancer holds the estimated tour of every group while moves are evaluated.
type rebalancer struct {
	m     CostMatrix
	opts  Options
	tours [][]int
	costs []tourCost
	cap   int
}

func newRebalancer(m CostMatrix, groups [][]int, opts Options, sizeCap int) *rebalancer {
	r := &rebalancer{m: m, opts: opts, cap: sizeCap, tours: make([][]int, len(groups)), costs: make([]tourCost, len(groups))}
	for g, members := range groups {
		r.tours[g] = estimateTour(m, members)
		r.costs[g] = cycleCost(m, r.tours[g])
	}
	return r
}

// estimateTour orders a group greedily for cost estimation only.
func estimateTour(m CostMatrix, group []int) []int {
	sorted := slices.Clone(group)
	slices.Sort(sorted)
	if tour, ok := nearestNeighbor(m, sorted, 0); ok {
		return tour
	}
	return sorted
}

type move struct {
	src, pos, dst, at int
	next              score
	srcCost, dstCost  tourCost
}

// bestMoveFrom evaluates relocating each member of src into every other group.
// capped restricts destinations to groups below the size cap.
func (r *rebalancer) bestMoveFrom(src int, capped bool) (move, bool) {
	best := move{src: -1}
	if len(r.tours[src]) < 2 {
		return best, false
	}
	costs := slices.Clone(r.costs)
	for pos, x := range r.tours[src] {
		srcCost := r.costs[src].add(removalDelta(r.m, r.tours[src], pos))
		for dst := range r.tours {
			if dst == src || (capped && len(r.tours[dst]) >= r.cap) {
				continue
			}
			at, delta := insertionDelta(r.m, r.tours[dst], x)
			dstCost := r.costs[dst].add(delta)
			costs[src], costs[dst] = srcCost, dstCost
			next := scoreOf(r.opts.Objective, costs)
			costs[src], costs[dst] = r.costs[src], r.costs[dst]
			if best.src < 0 || next.less(best.next, r.opts.Epsilon) {
				best = move{src: src, pos: pos, dst: dst, at: at, next: next, srcCost: srcCost, dstCost: dstCost}
			}
		}
	}
	return best, best.src >= 0
}

func (r *rebalancer) apply(mv move) {
	x := r.tours[mv.src][mv.pos]
	r.tours[mv.src] = removeAt(r.tours[mv.src], mv.pos)
	r.tours[mv.dst] = insertAt(r.tours[mv.dst], mv.at, x)
	r.costs[mv.src], r.costs[mv.dst] = mv.srcCost, mv.dstCost
}

// bySizeDesc returns group indices largest first; ties keep the lower index first.
func (r *rebalancer) bySizeDesc() []int {
	order := make([]int, len(r.tours))
	for i := range order {
		order[i] = i
	}
	slices.SortStableFunc(order, func(a, b int) int {
		if r.opts.Objective == ObjectiveMinMax && r.costs[a] != r.costs[b] {
			if r.costs[b].less(r.costs[a], 0) {
				return -1
			}
			return 1
		}
		return len(r.tours[b]) - len(r.tours[a])
	})
	return order
}

// enforceCap moves members out of oversized groups until every group fits the cap.
// It always terminates because k*cap >= n.
func (r *rebalancer) enforceCap() int {
	moves := 0
	for {
		src := r.bySizeDesc()[0]
		if r.opts.Objective == ObjectiveMinMax {
			src = -1
			for g := range r.tours {
				if len(r.tours[g]) > r.cap && (src < 0 || len(r.tours[g]) > len(r.tours[src])) {
					src = g
				}
			}
			if src < 0 {
				return moves
			}
		}
		if len(r.tours[src]) <= r.cap {
			return moves
		}
		mv, ok := r.bestMoveFrom(src, true)
		if !ok {
			return moves
		}
		r.apply(mv)
		moves++
	}
}

// improve applies improving moves, largest groups first, until none is left or a cap hits.
func (r *rebalancer) improve(ctx context.Context) (int, bool, error) {
	iters := 0
	capped := r.opts.Objective != ObjectiveTotal
	for {
		if err := ctx.Err(); err != nil {
			return iters, false, err
		}
		if iters >= r.opts.MaxRebalanceIterations || r.opts.expired() {
			return iters, true, nil
		}
		current := scoreOf(r.opts.Objective, r.costs)
		applied := false
		for _, src := range r.bySizeDesc() {
			mv, ok := r.bestMoveFrom(src, capped)
			if ok && mv.next.less(current, r.opts.Epsilon) {
				r.apply(mv)
				iters++
				applied = true
				break
			}
		}
		if !applied {
			return iters, false, nil
		}
	}
}

func (r *rebalancer) groups() [][]int {
	out := make([][]int, len(r.tours))
	for g, t := range r.tours {
		out[g] = slices.Clone(t)
		slices.Sort(out[g])
	}
	return out
}

// partitionNearestSeed is the shared partitioning phase of the nn2opt and exact strategies.
func partitionNearestSeed(ctx context.Context, m CostMatrix, k int, opts Options) ([][]int, PartitionStats, error) {
	seeds := seedDepots(m, k, opts.rng())
	groups := assignNearestSeed(m, seeds)
	if k == 1 || k == len(m) {
		return groups, PartitionStats{}, nil
	}
	r := newRebalancer(m, groups, opts, opts.sizeCap(len(m), k))
	forced := r.enforceCap()
	iters, capHit, err := r.improve(ctx)
	if err != nil {
		return nil, PartitionStats{}, err
	}
	return r.groups(), PartitionStats{Iterations: forced + iters, CapHit: capHit}, nil
}
