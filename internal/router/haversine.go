// Package router provides mtsp.Router implementations over WGS84 coordinates.
package router

import (
	"context"
	"fmt"
	"maps"
	"math"
	"sync"

	"mtspnav/internal/mtsp"
)

// DefaultSpeedsKph are the travel speeds the great-circle router assumes per profile.
var DefaultSpeedsKph = map[mtsp.Profile]float64{
	mtsp.ProfileCar:        50,
	mtsp.ProfileBike:       15,
	mtsp.ProfilePedestrian: 5,
}

// DefaultMaxLegM bounds a single leg per profile; longer legs are unreachable. 0 means no limit.
var DefaultMaxLegM = map[mtsp.Profile]float64{
	mtsp.ProfileCar:        0,
	mtsp.ProfileBike:       150_000,
	mtsp.ProfilePedestrian: 40_000,
}

// Haversine is an offline router: straight-line distance at a fixed speed per profile.
// Cost is travel time in seconds.
type Haversine struct {
	SpeedsKph map[mtsp.Profile]float64
	MaxLegM   map[mtsp.Profile]float64

	mu      sync.RWMutex
	blocked map[[2]mtsp.Coord]struct{}
}

// NewHaversine returns a Haversine router with the default speeds and leg limits.
func NewHaversine() *Haversine {
	return &Haversine{SpeedsKph: maps.Clone(DefaultSpeedsKph), MaxLegM: maps.Clone(DefaultMaxLegM)}
}

// Block makes the directed leg a→b unreachable.
func (h *Haversine) Block(a, b mtsp.Coord) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.blocked == nil {
		h.blocked = map[[2]mtsp.Coord]struct{}{}
	}
	h.blocked[[2]mtsp.Coord{a, b}] = struct{}{}
}

func (h *Haversine) isBlocked(a, b mtsp.Coord) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	_, ok := h.blocked[[2]mtsp.Coord{a, b}]
	return ok
}

func (h *Haversine) Cost(ctx context.Context, a, b mtsp.Coord, profile mtsp.Profile) (float64, error) {
	p, err := h.Path(ctx, a, b, profile)
	if err != nil {
		return 0, err
	}
	return p.Cost, nil
}

func (h *Haversine) Path(ctx context.Context, a, b mtsp.Coord, profile mtsp.Profile) (mtsp.Path, error) {
	if err := ctx.Err(); err != nil {
		return mtsp.Path{}, err
	}
	if a == b {
		return mtsp.Path{Waypoints: []mtsp.Coord{a}}, nil
	}
	speed := h.SpeedsKph[profile]
	if speed <= 0 {
		return mtsp.Path{}, fmt.Errorf("haversine: no speed for profile %q", profile)
	}
	if h.isBlocked(a, b) {
		return mtsp.Path{}, fmt.Errorf("haversine %v->%v: %w", a, b, mtsp.ErrUnreachable)
	}
	dist := haversineMeters(a.Lat, a.Lng, b.Lat, b.Lng)
	if limit := h.MaxLegM[profile]; limit > 0 && dist > limit {
		return mtsp.Path{}, fmt.Errorf("haversine %v->%v: %.0fm exceeds %s limit: %w", a, b, dist, profile, mtsp.ErrUnreachable)
	}
	dur := dist / (speed / 3.6)
	return mtsp.Path{Waypoints: []mtsp.Coord{a, b}, Cost: dur, DistanceM: dist, DurationSec: dur}, nil
}

func haversineMeters(lat1, lon1, lat2, lon2 float64) float64 {
	const R = 6371000.0
	dLat := (lat2 - lat1) * math.Pi / 180
	dLon := (lon2 - lon1) * math.Pi / 180
	a := math.Sin(dLat/2)*math.Sin(dLat/2) + math.Cos(lat1*math.Pi/180)*math.Cos(lat2*math.Pi/180)*math.Sin(dLon/2)*math.Sin(dLon/2)
	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))
	return R * c
}
