package store

import (
	"context"
	"errors"
	"time"

	"mtspnav/internal/mtsp"
)

// Run statuses.
const (
	RunSolved     = "solved"
	RunInfeasible = "infeasible"
	RunInvalid    = "invalid"
	RunFailed     = "failed"
)

// Run is the recorded outcome of one solve request.
type Run struct {
	ID        string      `json:"id"`
	TenantID  string      `json:"tenantId"`
	CreatedAt time.Time   `json:"createdAt"`
	Status    string      `json:"status"`
	Error     string      `json:"error,omitempty"`
	Report    mtsp.Report `json:"report"`
}

// Store is the persistence interface used by the API server.
type Store interface {
	// Solver config per tenant
	GetSolverConfig(ctx context.Context, tenantID string) (map[string]any, error)
	SaveSolverConfig(ctx context.Context, tenantID string, cfg map[string]any) error

	// Run diagnostics. SaveRun assigns ID and CreatedAt when empty.
	SaveRun(ctx context.Context, run Run) (Run, error)
	GetRun(ctx context.Context, tenantID, id string) (Run, error)
	// ListRuns returns newest first; cursor is the last ID of the previous page.
	ListRuns(ctx context.Context, tenantID, cursor string, limit int) ([]Run, string, error)

	Ping(ctx context.Context) error
}

var (
	ErrNotFound      = errors.New("not found")
	ErrInvalidCursor = errors.New("invalid cursor")
)

func pageLimit(limit int) int {
	if limit <= 0 || limit > 500 {
		return 100
	}
	return limit
}
