package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"maps"
	"net/http"
	"strconv"
	"strings"
	"time"

	"mtspnav/internal/config"
	"mtspnav/internal/metrics"
	"mtspnav/internal/model"
	"mtspnav/internal/mtsp"
	"mtspnav/internal/store"
)

const maxBodyBytes = 4 << 20

// SolveHandler handles POST /v1/mtsp/solve
func (s *Server) SolveHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	p, ok := s.principal(w, r, false)
	if !ok {
		return
	}
	var req model.SolveRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&req); err != nil {
		writeProblem(w, http.StatusBadRequest, "Invalid JSON", err.Error(), r.URL.Path)
		return
	}
	resp, err := s.solve(r.Context(), p.Tenant, req, nil)
	if err != nil {
		prob := solveProblem(err, r.URL.Path)
		prob.RunID = resp.RunID
		writeJSON(w, prob.Status, prob)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

// solve runs the planner for one request and records the run. The returned response
// carries the run id and report also when err is non-nil.
func (s *Server) solve(ctx context.Context, tenant string, req model.SolveRequest, obs mtsp.Observer) (model.SolveResponse, error) {
	resp := model.SolveResponse{Routes: []model.Route{}}
	if err := validateSolveRequest(&req, s.Config.MaxPoints); err != nil {
		return resp, err
	}
	settings, err := s.resolveSolver(ctx, tenant, req)
	if err != nil {
		return resp, err
	}
	strategy, opts, err := settings.Build()
	if err != nil {
		return resp, err
	}
	profile, err := mtsp.ParseProfile(req.Profile)
	if err != nil {
		return resp, err
	}

	planner := mtsp.NewPlanner(s.Router, mtsp.PlannerConfig{
		Strategy:  strategy,
		Options:   opts,
		Workers:   s.Config.Router.Workers,
		Limiter:   s.limiter,
		Symmetric: s.Config.Router.Symmetric || req.Symmetric,
		Log:       s.Log.With("tenant", tenant),
	})
	routes, rep, err := planner.SolveObserved(ctx, profile, req.Points, req.Vehicles, obs)
	resp.Report = rep
	recordSolve(rep, err)

	run := store.Run{TenantID: tenant, Status: runStatus(err), Report: rep}
	if err != nil {
		run.Error = err.Error()
	}
	saved, serr := s.Store.SaveRun(context.WithoutCancel(ctx), run)
	if serr != nil {
		s.Log.Error("save run failed", "tenant", tenant, "err", serr)
	} else {
		resp.RunID = saved.ID
	}
	if err != nil {
		s.Log.Warn("solve failed", "tenant", tenant, "run", resp.RunID, "err", err)
		return resp, err
	}
	resp.Routes = model.Routes(routes)
	return resp, nil
}

// resolveSolver layers service defaults, the tenant's stored overrides and the request.
func (s *Server) resolveSolver(ctx context.Context, tenant string, req model.SolveRequest) (config.Solver, error) {
	settings := s.Config.Solver
	stored, err := s.Store.GetSolverConfig(ctx, tenant)
	if err != nil {
		return settings, fmt.Errorf("load solver config: %w", err)
	}
	if merged, err := settings.Merge(stored); err != nil {
		s.Log.Warn("ignoring stored solver config", "tenant", tenant, "err", err)
	} else {
		settings = merged
	}
	over := maps.Clone(req.Overrides)
	if over == nil {
		over = map[string]any{}
	}
	if req.Strategy != "" {
		over["strategy"] = req.Strategy
	}
	if req.Objective != "" {
		over["objective"] = req.Objective
	}
	return settings.Merge(over)
}

func runStatus(err error) string {
	switch {
	case err == nil:
		return store.RunSolved
	case errors.Is(err, mtsp.ErrInfeasible):
		return store.RunInfeasible
	case errors.Is(err, mtsp.ErrInvalidInput):
		return store.RunInvalid
	default:
		return store.RunFailed
	}
}

func recordSolve(rep mtsp.Report, err error) {
	phases := []struct {
		name string
		d    time.Duration
	}{
		{"matrix", rep.MatrixTime},
		{"partition", rep.PartitionTime},
		{"sequence", rep.SequenceTime},
		{"assembly", rep.AssemblyTime},
	}
	for _, ph := range phases {
		if ph.d > 0 {
			metrics.SolvePhase.WithLabelValues(rep.Strategy, ph.name).Observe(ph.d.Seconds())
		}
	}
	metrics.SolveOutcomes.WithLabelValues(rep.Strategy, runStatus(err)).Inc()
	if rep.RebalanceCapHit {
		metrics.CapHits.WithLabelValues("rebalance").Inc()
	}
	if rep.TwoOptCapHit {
		metrics.CapHits.WithLabelValues("two_opt").Inc()
	}
}

// OptimizerConfigHandler returns the solver settings in effect for the caller's tenant
func (s *Server) OptimizerConfigHandler(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/v1/optimizer/config" || r.Method != http.MethodGet {
		writeProblem(w, http.StatusNotFound, "Not Found", "", r.URL.Path)
		return
	}
	p, ok := s.principal(w, r, false)
	if !ok {
		return
	}
	settings := s.Config.Solver
	cfg, err := s.Store.GetSolverConfig(r.Context(), p.Tenant)
	if err != nil {
		writeProblem(w, http.StatusInternalServerError, "Load config failed", err.Error(), r.URL.Path)
		return
	}
	if merged, err := settings.Merge(cfg); err == nil {
		settings = merged
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"defaults":   settings,
		"strategies": mtsp.Strategies,
		"objectives": []mtsp.Objective{mtsp.ObjectiveBalanced, mtsp.ObjectiveTotal, mtsp.ObjectiveMinMax},
		"profiles":   mtsp.Profiles,
	})
}

// AdminOptimizerConfigHandler gets or replaces the tenant's solver overrides
func (s *Server) AdminOptimizerConfigHandler(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/v1/admin/optimizer/config" {
		writeProblem(w, http.StatusNotFound, "Not Found", "", r.URL.Path)
		return
	}
	p, ok := s.principal(w, r, true)
	if !ok {
		return
	}
	switch r.Method {
	case http.MethodGet:
		cfg, err := s.Store.GetSolverConfig(r.Context(), p.Tenant)
		if err != nil {
			writeProblem(w, http.StatusInternalServerError, "Load config failed", err.Error(), r.URL.Path)
			return
		}
		if cfg == nil {
			cfg = map[string]any{}
		}
		writeJSON(w, http.StatusOK, map[string]any{"config": cfg})
	case http.MethodPut:
		var body struct {
			Config map[string]any `json:"config"`
		}
		if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&body); err != nil {
			writeProblem(w, http.StatusBadRequest, "Invalid JSON", err.Error(), r.URL.Path)
			return
		}
		if body.Config == nil {
			writeProblem(w, http.StatusBadRequest, "Missing config", "", r.URL.Path)
			return
		}
		effective, err := s.Config.Solver.Merge(body.Config)
		if err != nil {
			writeProblem(w, http.StatusBadRequest, "Invalid config", err.Error(), r.URL.Path)
			return
		}
		if err := s.Store.SaveSolverConfig(r.Context(), p.Tenant, body.Config); err != nil {
			writeProblem(w, http.StatusInternalServerError, "Save failed", err.Error(), r.URL.Path)
			return
		}
		s.Log.Info("solver config updated", "tenant", p.Tenant, "strategy", effective.Strategy, "objective", effective.Objective)
		writeJSON(w, http.StatusOK, map[string]any{"ok": true, "effective": effective})
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

// RunsHandler handles GET /v1/admin/runs
func (s *Server) RunsHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	p, ok := s.principal(w, r, true)
	if !ok {
		return
	}
	limit := 100
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			writeProblem(w, http.StatusBadRequest, "Invalid limit", err.Error(), r.URL.Path)
			return
		}
		limit = n
	}
	items, next, err := s.Store.ListRuns(r.Context(), p.Tenant, r.URL.Query().Get("cursor"), limit)
	if errors.Is(err, store.ErrInvalidCursor) {
		writeProblem(w, http.StatusBadRequest, "Invalid cursor", err.Error(), r.URL.Path)
		return
	}
	if err != nil {
		writeProblem(w, http.StatusInternalServerError, "List runs failed", err.Error(), r.URL.Path)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": items, "nextCursor": next})
}

// RunByIDHandler handles GET /v1/admin/runs/{id}
func (s *Server) RunByIDHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	p, ok := s.principal(w, r, true)
	if !ok {
		return
	}
	id := strings.Trim(strings.TrimPrefix(r.URL.Path, "/v1/admin/runs/"), "/")
	if id == "" {
		writeProblem(w, http.StatusNotFound, "Not Found", "", r.URL.Path)
		return
	}
	run, err := s.Store.GetRun(r.Context(), p.Tenant, id)
	if errors.Is(err, store.ErrNotFound) {
		writeProblem(w, http.StatusNotFound, "Run not found", id, r.URL.Path)
		return
	}
	if err != nil {
		writeProblem(w, http.StatusInternalServerError, "Load run failed", err.Error(), r.URL.Path)
		return
	}
	writeJSON(w, http.StatusOK, run)
}

// Health
func (s *Server) HealthHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) ReadyHandler(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 500*time.Millisecond)
	defer cancel()
	if err := s.Store.Ping(ctx); err != nil {
		writeProblem(w, http.StatusServiceUnavailable, "Not Ready", err.Error(), r.URL.Path)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}
