package mtsp

import (
	"context"
	"errors"
	"fmt"
	"slices"

	"github.com/samber/lo"
)

// repair reshapes group g against the already closed tours until g can be closed itself.
// Indices are relocated out of g while a finite insertion exists elsewhere. When none is
// left, one index is pulled in from another tour or swapped with one. tours[g] is set on
// success.
func (s *Solver) repair(ctx context.Context, strategy Strategy, m CostMatrix, tours, groups [][]int, g int, opts Options) (int, error) {
	group := slices.Clone(groups[g])
	moves := 0
	log := logger(s.Log)
	for {
		mv, ok := bestRepairMove(m, tours, group, g)
		if !ok {
			break
		}
		x := group[mv.pos]
		group = removeAt(group, mv.pos)
		tours[mv.dst] = insertAt(tours[mv.dst], mv.at, x)
		moves++
		log.Debug("repair move", "index", x, "from", g, "to", mv.dst)

		tour, _, err := strategy.Sequence(ctx, m, group, opts)
		if errors.Is(err, errNoClosedTour) {
			continue
		}
		if err != nil {
			return moves, err
		}
		tours[g] = tour
		return moves, nil
	}

	h, pos, ok, err := pullInMove(ctx, m, tours, group, g, opts)
	if err != nil {
		return moves, err
	}
	if ok {
		y := tours[h][pos]
		tours[h] = removeAt(tours[h], pos)
		group = append(group, y)
		log.Debug("repair pull", "index", y, "from", h, "to", g)
		return moves + 1, s.closeRepaired(ctx, strategy, m, tours, group, g, opts)
	}
	sw, ok, err := swapMove(ctx, m, tours, group, g, opts)
	if err != nil {
		return moves, err
	}
	if ok {
		x, y := group[sw.pos], tours[sw.dst][sw.at]
		tours[sw.dst][sw.at] = x
		group[sw.pos] = y
		log.Debug("repair swap", "index", x, "with", y, "group", g, "other", sw.dst)
		return moves + 1, s.closeRepaired(ctx, strategy, m, tours, group, g, opts)
	}
	slices.Sort(group)
	return moves, &InfeasibleError{Group: g, Indices: group}
}

// regroup replaces every group with the best exhaustive split and sequences it again.
// cause is returned when no split closes.
func (s *Solver) regroup(ctx context.Context, strategy Strategy, m CostMatrix, k int, opts Options, cause *InfeasibleError) ([][]int, []SequenceStats, error) {
	groups, err := regroupExhaustive(ctx, m, k, opts)
	if errors.Is(err, errNoClosedTour) {
		return nil, nil, cause
	}
	if err != nil {
		return nil, nil, err
	}
	tours, stats, failed, err := s.sequenceAll(ctx, strategy, m, groups, opts)
	if err != nil {
		return nil, nil, fmt.Errorf("sequence: %w", err)
	}
	if len(failed) > 0 {
		return nil, nil, &InfeasibleError{Group: failed[0], Indices: groups[failed[0]]}
	}
	return tours, stats, nil
}

// closeRepaired sequences a group already known to close.
func (s *Solver) closeRepaired(ctx context.Context, strategy Strategy, m CostMatrix, tours [][]int, group []int, g int, opts Options) error {
	tour, _, err := strategy.Sequence(ctx, m, group, opts)
	if errors.Is(err, errNoClosedTour) {
		slices.Sort(group)
		return &InfeasibleError{Group: g, Indices: group}
	}
	if err != nil {
		return err
	}
	tours[g] = tour
	return nil
}

// closable reports whether group has a closed tour, searching exhaustively up to
// ExactMaxGroup members.
func closable(ctx context.Context, m CostMatrix, group []int, opts Options) (bool, error) {
	_, _, err := constructTour(ctx, m, group, opts)
	if errors.Is(err, errNoClosedTour) {
		return false, nil
	}
	return err == nil, err
}

// pullInMove finds an index of another closed tour whose removal keeps that tour closed and
// whose arrival lets group close. The cheapest removal wins; ties go to the lower tour.
func pullInMove(ctx context.Context, m CostMatrix, tours [][]int, group []int, g int, opts Options) (int, int, bool, error) {
	type cand struct {
		h, pos int
		gain   tourCost
	}
	var cands []cand
	for h, tour := range tours {
		if h == g || len(tour) < 2 {
			continue
		}
		for pos := range tour {
			if d := removalDelta(m, tour, pos); d.broken == 0 {
				cands = append(cands, cand{h: h, pos: pos, gain: d})
			}
		}
	}
	slices.SortStableFunc(cands, func(a, b cand) int {
		switch {
		case a.gain.less(b.gain, 0):
			return -1
		case b.gain.less(a.gain, 0):
			return 1
		}
		return 0
	})
	grown := append(slices.Clone(group), 0)
	for _, c := range cands {
		grown[len(grown)-1] = tours[c.h][c.pos]
		ok, err := closable(ctx, m, grown, opts)
		if err != nil || ok {
			return c.h, c.pos, ok, err
		}
	}
	return 0, 0, false, nil
}

// swapMove finds a member of group and an index of another closed tour that can trade
// places: the member takes the index's slot without breaking that tour, and group closes
// with the index in place of the member. Members with an unreachable edge inside group go
// first.
func swapMove(ctx context.Context, m CostMatrix, tours [][]int, group []int, g int, opts Options) (move, bool, error) {
	order := indicesOf(group)
	slices.SortStableFunc(order, func(a, b int) int {
		oa, ob := offending(m, group, group[a]), offending(m, group, group[b])
		switch {
		case oa && !ob:
			return -1
		case ob && !oa:
			return 1
		}
		return 0
	})
	traded := slices.Clone(group)
	for _, pos := range order {
		x := group[pos]
		for h, tour := range tours {
			if h == g || tour == nil {
				continue
			}
			for at, y := range tour {
				if !fitsSlot(m, tour, at, x) {
					continue
				}
				traded[pos] = y
				ok, err := closable(ctx, m, traded, opts)
				traded[pos] = x
				if err != nil {
					return move{}, false, err
				}
				if ok {
					return move{src: g, pos: pos, dst: h, at: at}, true, nil
				}
			}
		}
	}
	return move{}, false, nil
}

// fitsSlot reports whether x can replace tour[at] with finite edges on both sides.
func fitsSlot(m CostMatrix, tour []int, at, x int) bool {
	n := len(tour)
	if n == 1 {
		return true
	}
	prev, next := tour[(at-1+n)%n], tour[(at+1)%n]
	return m.Reachable(prev, x) && m.Reachable(x, next)
}

func offending(m CostMatrix, group []int, x int) bool {
	return lo.SomeBy(group, func(y int) bool { return !m.Reachable(x, y) || !m.Reachable(y, x) })
}

func indicesOf(s []int) []int {
	out := make([]int, len(s))
	for i := range out {
		out[i] = i
	}
	return out
}

// bestRepairMove picks the member of group to relocate and where. Members with an
// unreachable edge to another member are preferred.
func bestRepairMove(m CostMatrix, tours [][]int, group []int, g int) (move, bool) {
	if len(group) < 2 {
		return move{}, false
	}
	best := move{src: -1}
	var bestDelta tourCost
	bestOffending := false
	for pos, x := range group {
		isOffending := offending(m, group, x)
		if bestOffending && !isOffending {
			continue
		}
		for dst, tour := range tours {
			if dst == g || tour == nil {
				continue
			}
			at, d := insertionDelta(m, tour, x)
			if d.broken > 0 {
				continue
			}
			if best.src < 0 || (isOffending && !bestOffending) || d.less(bestDelta, 0) {
				best = move{src: g, pos: pos, dst: dst, at: at}
				bestDelta, bestOffending = d, isOffending
			}
		}
	}
	return best, best.src >= 0
}
