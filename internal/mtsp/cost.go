package mtsp

import "math"

// tourCost keeps unreachable edges out of float arithmetic: broken counts them and sum
// holds the finite part. Any cost with broken == 0 beats any cost with broken > 0.
type tourCost struct {
	broken int
	sum    float64
}

func edgeCost(m CostMatrix, i, j int) tourCost {
	if i == j {
		return tourCost{}
	}
	w := m[i][j]
	if math.IsInf(w, 1) {
		return tourCost{broken: 1}
	}
	return tourCost{sum: w}
}

func (a tourCost) add(b tourCost) tourCost {
	return tourCost{broken: a.broken + b.broken, sum: a.sum + b.sum}
}

func (a tourCost) sub(b tourCost) tourCost {
	return tourCost{broken: a.broken - b.broken, sum: a.sum - b.sum}
}

// less reports whether a is better than b by more than eps.
func (a tourCost) less(b tourCost, eps float64) bool {
	if a.broken != b.broken {
		return a.broken < b.broken
	}
	return a.sum < b.sum-eps
}

func (a tourCost) value() float64 {
	if a.broken > 0 {
		return Unreachable
	}
	return a.sum
}

func cycleCost(m CostMatrix, tour []int) tourCost {
	var c tourCost
	if len(tour) < 2 {
		return c
	}
	for i := range tour {
		c = c.add(edgeCost(m, tour[i], tour[(i+1)%len(tour)]))
	}
	return c
}

// roundTrip is the cost of i→j→i, used as the partitioning distance.
func roundTrip(m CostMatrix, i, j int) tourCost {
	return edgeCost(m, i, j).add(edgeCost(m, j, i))
}

// insertionDelta returns the cheapest position to insert x into a closed tour and the
// resulting cost change. The new point goes after tour[pos].
func insertionDelta(m CostMatrix, tour []int, x int) (int, tourCost) {
	if len(tour) == 0 {
		return 0, tourCost{}
	}
	best, bestDelta := -1, tourCost{}
	for p := range tour {
		a, b := tour[p], tour[(p+1)%len(tour)]
		d := edgeCost(m, a, x).add(edgeCost(m, x, b)).sub(edgeCost(m, a, b))
		if best < 0 || d.less(bestDelta, 0) {
			best, bestDelta = p, d
		}
	}
	return best, bestDelta
}

// removalDelta returns the cost change from removing tour[pos].
func removalDelta(m CostMatrix, tour []int, pos int) tourCost {
	n := len(tour)
	if n < 2 {
		return tourCost{}
	}
	a, x, b := tour[(pos-1+n)%n], tour[pos], tour[(pos+1)%n]
	return edgeCost(m, a, b).sub(edgeCost(m, a, x)).sub(edgeCost(m, x, b))
}

func insertAt(tour []int, pos, x int) []int {
	out := make([]int, 0, len(tour)+1)
	out = append(out, tour[:pos+1]...)
	out = append(out, x)
	return append(out, tour[pos+1:]...)
}

func removeAt(tour []int, pos int) []int {
	out := make([]int, 0, len(tour)-1)
	out = append(out, tour[:pos]...)
	return append(out, tour[pos+1:]...)
}
