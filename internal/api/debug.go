package api

import (
	"net/http"
	"time"

	"mtspnav/internal/buildinfo"
)

func (s *Server) DebugJSON(w http.ResponseWriter, r *http.Request) {
	if _, ok := s.principal(w, r, true); !ok {
		return
	}
	c := s.Config
	writeJSON(w, http.StatusOK, map[string]any{
		"build": buildinfo.Info(),
		"time":  time.Now().UTC().Format(time.RFC3339),
		"config": map[string]any{
			"port":             c.Port,
			"authMode":         c.Auth.Mode,
			"router":           c.Router.Kind,
			"routerQps":        c.Router.QPS,
			"matrixWorkers":    c.Router.Workers,
			"maxPoints":        c.MaxPoints,
			"solver":           c.Solver,
			"hasDatabaseUrl":   c.DatabaseURL != "",
			"hasRedisUrl":      c.RedisURL != "",
			"routerCacheTtlMs": c.Router.CacheTTL.Milliseconds(),
		},
	})
}
