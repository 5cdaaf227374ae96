package mtsp_test

import (
	"context"
	"math"
	"math/rand"
	"sync"
	"sync/atomic"

	"mtspnav/internal/mtsp"
)

// matrixRouter serves costs and straight two-waypoint paths from a fixed matrix.
// Points are matrix indices.
type matrixRouter struct {
	m mtsp.CostMatrix
	// pathBlocked makes Path report these edges unreachable even if Cost does not.
	pathBlocked map[[2]int]bool
	costErr     error

	calls     atomic.Int64
	mu        sync.Mutex
	seenPairs map[[2]int]int
}

func newMatrixRouter(m mtsp.CostMatrix) *matrixRouter {
	return &matrixRouter{m: m, seenPairs: map[[2]int]int{}}
}

func coord(i int) mtsp.Coord { return mtsp.Coord{Lat: float64(i), Lng: float64(i) * 2} }

func (r *matrixRouter) Cost(ctx context.Context, a, b int, _ mtsp.Profile) (float64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	r.calls.Add(1)
	r.mu.Lock()
	r.seenPairs[[2]int{a, b}]++
	r.mu.Unlock()
	if r.costErr != nil {
		return 0, r.costErr
	}
	if math.IsInf(r.m[a][b], 1) {
		return 0, mtsp.ErrUnreachable
	}
	return r.m[a][b], nil
}

func (r *matrixRouter) Path(ctx context.Context, a, b int, _ mtsp.Profile) (mtsp.Path, error) {
	if err := ctx.Err(); err != nil {
		return mtsp.Path{}, err
	}
	r.calls.Add(1)
	if a == b {
		return mtsp.Path{Waypoints: []mtsp.Coord{coord(a)}}, nil
	}
	if r.pathBlocked[[2]int{a, b}] || math.IsInf(r.m[a][b], 1) {
		return mtsp.Path{}, mtsp.ErrUnreachable
	}
	w := r.m[a][b]
	return mtsp.Path{Waypoints: []mtsp.Coord{coord(a), coord(b)}, Cost: w, DistanceM: w * 1000, DurationSec: w * 60}, nil
}

func indices(n int) []int {
	out := make([]int, n)
	for i := range out {
		out[i] = i
	}
	return out
}

// uniformMatrix has every off-diagonal cell equal to w.
func uniformMatrix(n int, w float64) mtsp.CostMatrix {
	m := mtsp.NewCostMatrix(n)
	for i := range m {
		for j := range m[i] {
			if i != j {
				m[i][j] = w
			}
		}
	}
	return m
}

// lineMatrix places n points on a line at unit spacing.
func lineMatrix(n int) mtsp.CostMatrix {
	m := mtsp.NewCostMatrix(n)
	for i := range m {
		for j := range m[i] {
			m[i][j] = math.Abs(float64(i - j))
		}
	}
	return m
}

// randomMatrix returns an asymmetric matrix with weights in [1,100).
func randomMatrix(n int, seed int64) mtsp.CostMatrix {
	rng := rand.New(rand.NewSource(seed))
	m := mtsp.NewCostMatrix(n)
	for i := range m {
		for j := range m[i] {
			if i != j {
				m[i][j] = 1 + rng.Float64()*99
			}
		}
	}
	return m
}

// euclidMatrix returns symmetric Euclidean distances between pts.
func euclidMatrix(pts [][2]float64) mtsp.CostMatrix {
	m := mtsp.NewCostMatrix(len(pts))
	for i := range pts {
		for j := range pts {
			m[i][j] = math.Hypot(pts[i][0]-pts[j][0], pts[i][1]-pts[j][1])
		}
	}
	return m
}
