package model

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mtspnav/internal/mtsp"
)

func TestRoutesDropsGeometryFromLegs(t *testing.T) {
	a, b := mtsp.Coord{Lat: 1, Lng: 1}, mtsp.Coord{Lat: 2, Lng: 2}
	in := []mtsp.Route{{
		Vehicle:   1,
		Order:     []int{0, 3},
		Cost:      10,
		Waypoints: []mtsp.Coord{a, b, a},
		Legs: []mtsp.Leg{
			{From: 0, To: 3, Path: mtsp.Path{Waypoints: []mtsp.Coord{a, b}, Cost: 4, DistanceM: 40}},
			{From: 3, To: 0, Path: mtsp.Path{Waypoints: []mtsp.Coord{b, a}, Cost: 6, DistanceM: 60}},
		},
	}}
	out := Routes(in)
	require.Len(t, out, 1)
	assert.Equal(t, []int{0, 3}, out[0].Order)
	assert.Equal(t, []Leg{{From: 0, To: 3, Cost: 4, DistanceM: 40}, {From: 3, To: 0, Cost: 6, DistanceM: 60}}, out[0].Legs)

	js, err := json.Marshal(out[0])
	require.NoError(t, err)
	assert.Contains(t, string(js), `"waypoints":[{"lat":1,"lng":1},{"lat":2,"lng":2},{"lat":1,"lng":1}]`)
}

func TestSolveRequestDecode(t *testing.T) {
	var req SolveRequest
	require.NoError(t, json.Unmarshal([]byte(`{"points":[{"lat":1,"lng":2}],"vehicles":2,"overrides":{"seed":7}}`), &req))
	assert.Equal(t, []mtsp.Coord{{Lat: 1, Lng: 2}}, req.Points)
	assert.Equal(t, 2, req.Vehicles)
	assert.EqualValues(t, 7, req.Overrides["seed"])
}
