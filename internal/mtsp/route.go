package mtsp

import "context"

// Router is the point-to-point routing capability the solver is built on.
// Both methods must return an error matching ErrUnreachable when no path exists.
type Router[P any] interface {
	Cost(ctx context.Context, a, b P, profile Profile) (float64, error)
	Path(ctx context.Context, a, b P, profile Profile) (Path, error)
}

// Coord is a WGS84 waypoint.
type Coord struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// Path is one directed segment returned by a Router.
type Path struct {
	Waypoints   []Coord
	Cost        float64
	DistanceM   float64
	DurationSec float64
}

// Leg is a Path placed inside a Route.
type Leg struct {
	From, To int // indices into the caller's point slice
	Path
}

// Route is one vehicle's closed tour stitched from its legs.
type Route struct {
	Vehicle     int
	Order       []int
	Legs        []Leg
	Waypoints   []Coord
	Cost        float64
	DistanceM   float64
	DurationSec float64
}

// Concatenate appends leg to r. When the leg starts where r currently ends, the shared
// waypoint is kept once.
func Concatenate(r Route, leg Leg) Route {
	r.Legs = append(r.Legs, leg)
	wps := leg.Waypoints
	if n := len(r.Waypoints); n > 0 && len(wps) > 0 && r.Waypoints[n-1] == wps[0] {
		wps = wps[1:]
	}
	r.Waypoints = append(r.Waypoints, wps...)
	r.Cost += leg.Cost
	r.DistanceM += leg.DistanceM
	r.DurationSec += leg.DurationSec
	return r
}
