package mtsp_test

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mtspnav/internal/mtsp"
)

func TestParseProfile(t *testing.T) {
	for in, want := range map[string]mtsp.Profile{
		"":           mtsp.ProfileCar,
		"Driving":    mtsp.ProfileCar,
		"bike":       mtsp.ProfileBike,
		" cycling ":  mtsp.ProfileBike,
		"pedestrian": mtsp.ProfilePedestrian,
		"foot":       mtsp.ProfilePedestrian,
	} {
		got, err := mtsp.ParseProfile(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}
	_, err := mtsp.ParseProfile("boat")
	assert.ErrorIs(t, err, mtsp.ErrInvalidInput)
}

func TestParseObjective(t *testing.T) {
	got, err := mtsp.ParseObjective("")
	require.NoError(t, err)
	assert.Equal(t, mtsp.ObjectiveBalanced, got)
	got, err = mtsp.ParseObjective("MinMax")
	require.NoError(t, err)
	assert.Equal(t, mtsp.ObjectiveMinMax, got)
	_, err = mtsp.ParseObjective("fastest")
	assert.ErrorIs(t, err, mtsp.ErrInvalidInput)
}

func TestCostMatrixValidate(t *testing.T) {
	require.NoError(t, lineMatrix(3).Validate())
	require.NoError(t, mtsp.NewCostMatrix(3).Validate(), "unreachable cells are valid")

	m := lineMatrix(3)
	m[0][2] = -1
	assert.ErrorIs(t, m.Validate(), mtsp.ErrInvalidInput)

	m = lineMatrix(3)
	m[1][0] = math.NaN()
	assert.ErrorIs(t, m.Validate(), mtsp.ErrInvalidInput)

	ragged := mtsp.CostMatrix{{0, 1}, {1}}
	assert.ErrorIs(t, ragged.Validate(), mtsp.ErrInvalidInput)
	assert.ErrorIs(t, mtsp.CostMatrix{}.Validate(), mtsp.ErrInvalidInput)
}

func TestCostMatrixTourCost(t *testing.T) {
	m := lineMatrix(4)
	assert.Equal(t, 6.0, m.TourCost([]int{0, 1, 2, 3}))
	assert.Equal(t, 8.0, m.TourCost([]int{0, 2, 1, 3}))
	assert.Equal(t, 0.0, m.TourCost([]int{2}))

	m[3][0] = mtsp.Unreachable
	assert.True(t, math.IsInf(m.TourCost([]int{0, 1, 2, 3}), 1))
	assert.False(t, m.Symmetric(1e-9))
	assert.Equal(t, 1, m.UnreachableCount())
	assert.True(t, lineMatrix(5).Symmetric(0))
}

func TestSolutionCosts(t *testing.T) {
	s := mtsp.Solution{Costs: []float64{3, 7, 2}}
	assert.Equal(t, 12.0, s.TotalCost())
	assert.Equal(t, 7.0, s.MaxCost())
}

func TestConcatenateMergesJunction(t *testing.T) {
	var r mtsp.Route
	r = mtsp.Concatenate(r, mtsp.Leg{From: 0, To: 1, Path: mtsp.Path{Waypoints: []mtsp.Coord{coord(0), coord(1)}, Cost: 1, DistanceM: 10}})
	r = mtsp.Concatenate(r, mtsp.Leg{From: 1, To: 2, Path: mtsp.Path{Waypoints: []mtsp.Coord{coord(1), coord(2)}, Cost: 2, DistanceM: 20}})
	// no shared junction: both ends kept
	r = mtsp.Concatenate(r, mtsp.Leg{From: 2, To: 0, Path: mtsp.Path{Waypoints: []mtsp.Coord{coord(5), coord(0)}, Cost: 4}})

	assert.Equal(t, []mtsp.Coord{coord(0), coord(1), coord(2), coord(5), coord(0)}, r.Waypoints)
	assert.Len(t, r.Legs, 3)
	assert.Equal(t, 7.0, r.Cost)
	assert.Equal(t, 30.0, r.DistanceM)
}
