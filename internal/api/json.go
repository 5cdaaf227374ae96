package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"mtspnav/internal/mtsp"
)

// Problem represents an RFC7807 problem details response body. RunID, Group and Indices
// are extension members set for failed solves.
type Problem struct {
	Type     string `json:"type"`
	Title    string `json:"title"`
	Status   int    `json:"status"`
	Detail   string `json:"detail,omitempty"`
	Instance string `json:"instance,omitempty"`
	RunID    string `json:"runId,omitempty"`
	Group    *int   `json:"group,omitempty"`
	Indices  []int  `json:"indices,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeProblem(w http.ResponseWriter, status int, title, detail, instance string) {
	writeJSON(w, status, newProblem(status, title, detail, instance))
}

func newProblem(status int, title, detail, instance string) Problem {
	return Problem{Type: "about:blank", Title: title, Status: status, Detail: detail, Instance: instance}
}

// solveProblem maps a planner error onto a problem document.
func solveProblem(err error, instance string) Problem {
	var inf *mtsp.InfeasibleError
	var rerr *mtsp.RouterError
	switch {
	case errors.As(err, &inf):
		p := newProblem(http.StatusUnprocessableEntity, "Infeasible", err.Error(), instance)
		p.Group, p.Indices = &inf.Group, inf.Indices
		return p
	case errors.Is(err, mtsp.ErrInvalidInput):
		return newProblem(http.StatusBadRequest, "Invalid solve request", err.Error(), instance)
	case errors.Is(err, context.DeadlineExceeded):
		return newProblem(http.StatusGatewayTimeout, "Solve timed out", err.Error(), instance)
	case errors.Is(err, context.Canceled):
		return newProblem(http.StatusServiceUnavailable, "Solve cancelled", err.Error(), instance)
	case errors.Is(err, mtsp.ErrAssembly):
		return newProblem(http.StatusBadGateway, "Route assembly failed", err.Error(), instance)
	case errors.As(err, &rerr):
		return newProblem(http.StatusBadGateway, "Router failure", err.Error(), instance)
	default:
		return newProblem(http.StatusInternalServerError, "Solve failed", err.Error(), instance)
	}
}
