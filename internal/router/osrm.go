package router

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"mtspnav/internal/mtsp"
)

// osrmProfiles maps profiles onto the OSRM service profile names.
var osrmProfiles = map[mtsp.Profile]string{
	mtsp.ProfileCar:        "driving",
	mtsp.ProfileBike:       "cycling",
	mtsp.ProfilePedestrian: "foot",
}

// OSRM queries an OSRM compatible HTTP server. Cost is travel time in seconds.
type OSRM struct {
	BaseURL string
	Client  *http.Client
}

func NewOSRM(baseURL string) *OSRM {
	return &OSRM{BaseURL: strings.TrimRight(baseURL, "/"), Client: &http.Client{Timeout: 10 * time.Second}}
}

type osrmResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Routes  []struct {
		Distance float64 `json:"distance"`
		Duration float64 `json:"duration"`
		Geometry struct {
			Coordinates [][2]float64 `json:"coordinates"`
		} `json:"geometry"`
	} `json:"routes"`
}

func (o *OSRM) Cost(ctx context.Context, a, b mtsp.Coord, profile mtsp.Profile) (float64, error) {
	if a == b {
		return 0, nil
	}
	p, err := o.route(ctx, a, b, profile, false)
	if err != nil {
		return 0, err
	}
	return p.Cost, nil
}

func (o *OSRM) Path(ctx context.Context, a, b mtsp.Coord, profile mtsp.Profile) (mtsp.Path, error) {
	if a == b {
		return mtsp.Path{Waypoints: []mtsp.Coord{a}}, nil
	}
	return o.route(ctx, a, b, profile, true)
}

func (o *OSRM) route(ctx context.Context, a, b mtsp.Coord, profile mtsp.Profile, geometry bool) (mtsp.Path, error) {
	svc, ok := osrmProfiles[profile]
	if !ok {
		return mtsp.Path{}, fmt.Errorf("osrm: unsupported profile %q", profile)
	}
	q := url.Values{}
	q.Set("alternatives", "false")
	q.Set("steps", "false")
	if geometry {
		q.Set("overview", "full")
		q.Set("geometries", "geojson")
	} else {
		q.Set("overview", "false")
	}
	u := fmt.Sprintf("%s/route/v1/%s/%f,%f;%f,%f?%s", o.BaseURL, svc, a.Lng, a.Lat, b.Lng, b.Lat, q.Encode())
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return mtsp.Path{}, err
	}
	client := o.Client
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return mtsp.Path{}, fmt.Errorf("osrm: %w", err)
	}
	defer resp.Body.Close()

	var body osrmResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return mtsp.Path{}, fmt.Errorf("osrm: decode %s response: %w", resp.Status, err)
	}
	switch body.Code {
	case "Ok":
	case "NoRoute", "NoSegment":
		return mtsp.Path{}, fmt.Errorf("osrm %v->%v: %s: %w", a, b, body.Code, mtsp.ErrUnreachable)
	default:
		return mtsp.Path{}, fmt.Errorf("osrm: %s: %s (%s)", resp.Status, body.Code, body.Message)
	}
	if len(body.Routes) == 0 {
		return mtsp.Path{}, fmt.Errorf("osrm %v->%v: empty route list: %w", a, b, mtsp.ErrUnreachable)
	}
	rt := body.Routes[0]
	p := mtsp.Path{Cost: rt.Duration, DistanceM: rt.Distance, DurationSec: rt.Duration}
	for _, c := range rt.Geometry.Coordinates {
		p.Waypoints = append(p.Waypoints, mtsp.Coord{Lat: c[1], Lng: c[0]})
	}
	if len(p.Waypoints) == 0 {
		p.Waypoints = []mtsp.Coord{a, b}
	}
	return p, nil
}
