// Package api implements the HTTP and WebSocket handlers of the MTSP service.
package api

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	redis "github.com/redis/go-redis/v9"
	"golang.org/x/time/rate"

	"mtspnav/internal/auth"
	"mtspnav/internal/config"
	"mtspnav/internal/logging"
	"mtspnav/internal/mtsp"
	"mtspnav/internal/router"
	"mtspnav/internal/store"
)

type Server struct {
	Store  store.Store
	Auth   *auth.Verifier
	Router mtsp.Router[mtsp.Coord]
	Config config.Config
	Log    *slog.Logger

	limiter *rate.Limiter
	closers []func() error
}

// New assembles a Server from ready-made parts.
func New(cfg config.Config, st store.Store, r mtsp.Router[mtsp.Coord], log *slog.Logger) *Server {
	if log == nil {
		log = logging.Discard()
	}
	s := &Server{
		Store:  st,
		Auth:   auth.NewVerifier(cfg.Auth.Mode, cfg.Auth.HMACSecret),
		Router: r,
		Config: cfg,
		Log:    log,
	}
	if cfg.Router.QPS > 0 {
		s.limiter = rate.NewLimiter(rate.Limit(cfg.Router.QPS), max(cfg.Router.Burst, 1))
	}
	return s
}

// NewServer creates a Server from configuration. If DatabaseURL is unset, uses the
// in-memory store; if RedisURL is set, router costs are cached in Redis.
func NewServer(ctx context.Context, cfg config.Config, log *slog.Logger) (*Server, error) {
	if log == nil {
		log = logging.Discard()
	}
	var closers []func() error
	var st store.Store
	if strings.TrimSpace(cfg.DatabaseURL) == "" {
		st = store.NewMemory()
	} else {
		pg, err := store.NewPostgres(cfg.DatabaseURL)
		if err != nil {
			return nil, fmt.Errorf("postgres: %w", err)
		}
		if cfg.DBMigrate {
			if err := pg.Migrate(ctx); err != nil {
				_ = pg.Close()
				return nil, err
			}
		}
		closers = append(closers, pg.Close)
		st = pg
	}

	var base mtsp.Router[mtsp.Coord]
	switch cfg.Router.Kind {
	case "osrm":
		base = router.NewOSRM(cfg.Router.URL)
	default:
		h := router.NewHaversine()
		for p, kph := range cfg.Router.Speeds() {
			h.SpeedsKph[p] = kph
		}
		base = h
	}
	var r mtsp.Router[mtsp.Coord] = router.Instrumented[mtsp.Coord]{Next: base}
	if cfg.RedisURL != "" {
		opts, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			return nil, fmt.Errorf("redis url: %w", err)
		}
		rc := redis.NewClient(opts)
		if err := rc.Ping(ctx).Err(); err != nil {
			log.Warn("redis unavailable; router cache disabled", "err", err)
			_ = rc.Close()
		} else {
			closers = append(closers, rc.Close)
			r = router.NewRedisCache(r, rc, cfg.Router.CacheTTL)
		}
	}

	s := New(cfg, st, r, log)
	s.closers = closers
	log.Info("server configured", "router", cfg.Router.Kind, "postgres", cfg.DatabaseURL != "", "redis", cfg.RedisURL != "")
	return s, nil
}

// Close releases database and cache connections.
func (s *Server) Close() error {
	var first error
	for _, c := range s.closers {
		if err := c(); err != nil && first == nil {
			first = err
		}
	}
	return first
}

// Routes returns the service mux.
func (s *Server) Routes() *http.ServeMux {
	mux := http.NewServeMux()

	// Solve
	mux.HandleFunc("/v1/mtsp/solve", s.SolveHandler)
	mux.HandleFunc("/v1/mtsp/ws", s.SolveWSHandler)

	// Solver config
	mux.HandleFunc("/v1/optimizer/config", s.OptimizerConfigHandler)
	mux.HandleFunc("/v1/admin/optimizer/config", s.AdminOptimizerConfigHandler)

	// Run diagnostics
	mux.HandleFunc("/v1/admin/runs", s.RunsHandler)
	mux.HandleFunc("/v1/admin/runs/", s.RunByIDHandler)

	// Health
	mux.HandleFunc("/healthz", s.HealthHandler)
	mux.HandleFunc("/readyz", s.ReadyHandler)
	mux.HandleFunc("/debug/info", s.DebugJSON)
	return mux
}
