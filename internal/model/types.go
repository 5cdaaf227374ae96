// Package model holds the JSON request and response bodies of the HTTP API.
package model

import (
	"github.com/samber/lo"

	"mtspnav/internal/mtsp"
)

type SolveRequest struct {
	Points    []mtsp.Coord `json:"points"`
	Vehicles  int          `json:"vehicles"`
	Profile   string       `json:"profile,omitempty"`
	Strategy  string       `json:"strategy,omitempty"`
	Objective string       `json:"objective,omitempty"`
	// Symmetric declares the cost model symmetric, halving router calls for the matrix.
	Symmetric bool `json:"symmetric,omitempty"`
	// Overrides are applied on top of the tenant's stored solver config.
	Overrides map[string]any `json:"overrides,omitempty"`
}

type SolveResponse struct {
	RunID  string      `json:"runId,omitempty"`
	Routes []Route     `json:"routes"`
	Report mtsp.Report `json:"report"`
}

type Route struct {
	Vehicle     int          `json:"vehicle"`
	Order       []int        `json:"order"`
	Cost        float64      `json:"cost"`
	DistanceM   float64      `json:"distanceM"`
	DurationSec float64      `json:"durationSec"`
	Legs        []Leg        `json:"legs"`
	Waypoints   []mtsp.Coord `json:"waypoints"`
}

type Leg struct {
	From        int     `json:"from"`
	To          int     `json:"to"`
	Cost        float64 `json:"cost"`
	DistanceM   float64 `json:"distanceM"`
	DurationSec float64 `json:"durationSec"`
}

// Routes converts planner output to response bodies.
func Routes(rs []mtsp.Route) []Route {
	return lo.Map(rs, func(r mtsp.Route, _ int) Route {
		return Route{
			Vehicle:     r.Vehicle,
			Order:       r.Order,
			Cost:        r.Cost,
			DistanceM:   r.DistanceM,
			DurationSec: r.DurationSec,
			Waypoints:   r.Waypoints,
			Legs: lo.Map(r.Legs, func(l mtsp.Leg, _ int) Leg {
				return Leg{From: l.From, To: l.To, Cost: l.Cost, DistanceM: l.DistanceM, DurationSec: l.DurationSec}
			}),
		}
	})
}

// WSMessage is one frame of the /v1/mtsp/ws stream. The client sends a single "solve"
// frame; the server answers with "event" frames and one final "result" or "error".
type WSMessage struct {
	Type    string         `json:"type"`
	Solve   *SolveRequest  `json:"solve,omitempty"`
	Event   *mtsp.Event    `json:"event,omitempty"`
	Result  *SolveResponse `json:"result,omitempty"`
	Problem any            `json:"problem,omitempty"`
}
