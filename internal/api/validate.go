package api

import (
	"fmt"

	"mtspnav/internal/model"
	"mtspnav/internal/mtsp"
)

func validateSolveRequest(req *model.SolveRequest, maxPoints int) error {
	if len(req.Points) < 2 {
		return fmt.Errorf("%w: at least 2 points required", mtsp.ErrInvalidInput)
	}
	if maxPoints > 0 && len(req.Points) > maxPoints {
		return fmt.Errorf("%w: %d points exceeds the limit of %d", mtsp.ErrInvalidInput, len(req.Points), maxPoints)
	}
	if req.Vehicles < 1 || req.Vehicles > len(req.Points) {
		return fmt.Errorf("%w: vehicles must be in [1,%d]", mtsp.ErrInvalidInput, len(req.Points))
	}
	for i, p := range req.Points {
		if p.Lat < -90 || p.Lat > 90 || p.Lng < -180 || p.Lng > 180 {
			return fmt.Errorf("%w: point %d out of range (%g,%g)", mtsp.ErrInvalidInput, i, p.Lat, p.Lng)
		}
	}
	if _, err := mtsp.ParseProfile(req.Profile); err != nil {
		return err
	}
	return nil
}
