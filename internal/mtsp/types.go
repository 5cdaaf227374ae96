// Package mtsp assigns points to K vehicles and builds one closed tour per vehicle.
//
// The package never looks inside a point. All geometry and costing is delegated to a
// Router; the solver only works on the resulting cost matrix.
package mtsp

import (
	"fmt"
	"math"
	"strings"
)

// Unreachable marks a matrix cell with no feasible path.
var Unreachable = math.Inf(1)

// Profile selects the router cost model. The core passes it through untouched.
type Profile string

const (
	ProfileCar        Profile = "car"
	ProfileBike       Profile = "bike"
	ProfilePedestrian Profile = "pedestrian"
)

// Profiles lists the supported profiles.
var Profiles = []Profile{ProfileCar, ProfileBike, ProfilePedestrian}

// ParseProfile maps a user supplied name to a Profile. The empty string means car.
func ParseProfile(s string) (Profile, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "car", "driving":
		return ProfileCar, nil
	case "bike", "bicycle", "cycling":
		return ProfileBike, nil
	case "pedestrian", "foot", "walking":
		return ProfilePedestrian, nil
	}
	return "", fmt.Errorf("%w: unknown profile %q", ErrInvalidInput, s)
}

// CostMatrix holds directed travel costs; m[i][j] is the cost from i to j.
type CostMatrix [][]float64

// NewCostMatrix returns an n×n matrix with a zero diagonal and every other cell unreachable.
func NewCostMatrix(n int) CostMatrix {
	m := make(CostMatrix, n)
	for i := range m {
		m[i] = make([]float64, n)
		for j := range m[i] {
			if i != j {
				m[i][j] = Unreachable
			}
		}
	}
	return m
}

// Size returns the matrix order.
func (m CostMatrix) Size() int { return len(m) }

// Reachable reports whether the edge i→j is usable.
func (m CostMatrix) Reachable(i, j int) bool {
	return i == j || !math.IsInf(m[i][j], 1)
}

// Symmetric reports whether m[i][j] == m[j][i] for every pair within tol.
func (m CostMatrix) Symmetric(tol float64) bool {
	for i := range m {
		for j := i + 1; j < len(m); j++ {
			a, b := m[i][j], m[j][i]
			if math.IsInf(a, 1) || math.IsInf(b, 1) {
				if a != b {
					return false
				}
				continue
			}
			if math.Abs(a-b) > tol {
				return false
			}
		}
	}
	return true
}

// UnreachableCount returns the number of off-diagonal unreachable cells.
func (m CostMatrix) UnreachableCount() int {
	c := 0
	for i := range m {
		for j := range m[i] {
			if i != j && math.IsInf(m[i][j], 1) {
				c++
			}
		}
	}
	return c
}

// Validate checks shape and values. Unreachable cells are allowed.
func (m CostMatrix) Validate() error {
	n := len(m)
	if n == 0 {
		return fmt.Errorf("%w: empty cost matrix", ErrInvalidInput)
	}
	for i, row := range m {
		if len(row) != n {
			return fmt.Errorf("%w: cost matrix row %d has %d columns, want %d", ErrInvalidInput, i, len(row), n)
		}
		for j, w := range row {
			if math.IsNaN(w) || w < 0 || math.IsInf(w, -1) {
				return fmt.Errorf("%w: cost matrix cell (%d,%d) = %v", ErrInvalidInput, i, j, w)
			}
		}
	}
	return nil
}

// TourCost sums the edges of a closed tour including the closing edge.
// A single-point tour costs 0. Returns Unreachable if any edge is unreachable.
func (m CostMatrix) TourCost(tour []int) float64 {
	if len(tour) < 2 {
		return 0
	}
	total := 0.0
	for i := range tour {
		w := m[tour[i]][tour[(i+1)%len(tour)]]
		if math.IsInf(w, 1) {
			return Unreachable
		}
		total += w
	}
	return total
}

// Solution is a partition of the point indices into closed tours.
type Solution struct {
	Tours [][]int
	Costs []float64
}

// TotalCost sums the tour costs.
func (s Solution) TotalCost() float64 {
	t := 0.0
	for _, c := range s.Costs {
		t += c
	}
	return t
}

// MaxCost returns the most expensive tour cost.
func (s Solution) MaxCost() float64 {
	m := 0.0
	for _, c := range s.Costs {
		m = math.Max(m, c)
	}
	return m
}

// Objective selects what the partitioning phase optimizes.
type Objective string

const (
	// ObjectiveBalanced minimizes total cost with group sizes capped at ceil(N/K).
	ObjectiveBalanced Objective = "balanced"
	// ObjectiveTotal minimizes total cost with no size cap.
	ObjectiveTotal Objective = "total"
	// ObjectiveMinMax minimizes the most expensive tour, then total cost.
	ObjectiveMinMax Objective = "minmax"
)

// ParseObjective maps a name to an Objective. The empty string means balanced.
func ParseObjective(s string) (Objective, error) {
	switch Objective(strings.ToLower(strings.TrimSpace(s))) {
	case "", ObjectiveBalanced:
		return ObjectiveBalanced, nil
	case ObjectiveTotal:
		return ObjectiveTotal, nil
	case ObjectiveMinMax:
		return ObjectiveMinMax, nil
	}
	return "", fmt.Errorf("%w: unknown objective %q", ErrInvalidInput, s)
}
