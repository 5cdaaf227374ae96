package store

import (
	"context"
	"maps"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Memory is an in-process Store used when no DATABASE_URL is configured.
type Memory struct {
	mu     sync.Mutex
	optCfg map[string]map[string]any // tenant -> solver overrides
	runs   map[string]Run            // id -> run
	byTen  map[string][]string       // tenant -> run ids, oldest first
}

func NewMemory() *Memory {
	return &Memory{
		optCfg: map[string]map[string]any{},
		runs:   map[string]Run{},
		byTen:  map[string][]string{},
	}
}

func (m *Memory) GetSolverConfig(ctx context.Context, tenantID string) (map[string]any, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if cfg, ok := m.optCfg[tenantID]; ok {
		return maps.Clone(cfg), nil
	}
	return nil, nil
}

func (m *Memory) SaveSolverConfig(ctx context.Context, tenantID string, cfg map[string]any) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.optCfg[tenantID] = maps.Clone(cfg)
	return nil
}

func (m *Memory) SaveRun(ctx context.Context, run Run) (Run, error) {
	if run.ID == "" {
		run.ID = uuid.Must(uuid.NewV7()).String()
	}
	if run.CreatedAt.IsZero() {
		run.CreatedAt = time.Now().UTC()
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.runs[run.ID]; !exists {
		m.byTen[run.TenantID] = append(m.byTen[run.TenantID], run.ID)
	}
	m.runs[run.ID] = run
	return run, nil
}

func (m *Memory) GetRun(ctx context.Context, tenantID, id string) (Run, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.runs[id]
	if !ok || r.TenantID != tenantID {
		return Run{}, ErrNotFound
	}
	return r, nil
}

func (m *Memory) ListRuns(ctx context.Context, tenantID, cursor string, limit int) ([]Run, string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	limit = pageLimit(limit)
	ids := slices.Clone(m.byTen[tenantID])
	slices.SortFunc(ids, func(a, b string) int { return strings.Compare(b, a) })
	start := 0
	if cursor != "" {
		start = len(ids)
		for i, id := range ids {
			if strings.Compare(id, cursor) < 0 {
				start = i
				break
			}
		}
	}
	out := []Run{}
	for i := start; i < len(ids) && len(out) < limit; i++ {
		out = append(out, m.runs[ids[i]])
	}
	var next string
	if len(out) == limit && start+limit < len(ids) {
		next = out[len(out)-1].ID
	}
	return out, next, nil
}

func (m *Memory) Ping(ctx context.Context) error { return nil }
