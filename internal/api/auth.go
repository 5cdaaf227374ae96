package api

import (
	"net/http"
	"strings"

	"mtspnav/internal/auth"
)

// getPrincipal extracts tenant and role from the bearer token. In dev mode it falls back
// to the X-Tenant-Id and X-Role headers. ok is false when no identity could be established.
func (s *Server) getPrincipal(r *http.Request) (auth.Principal, bool) {
	authz := r.Header.Get("Authorization")
	if strings.HasPrefix(strings.ToLower(authz), "bearer ") {
		tok := strings.TrimSpace(authz[len("Bearer "):])
		pr, err := s.Auth.Verify(tok)
		if err != nil {
			s.Log.Debug("token rejected", "err", err)
			return auth.Principal{}, false
		}
		return pr, true
	}
	if s.Auth.Mode != auth.ModeDev {
		return auth.Principal{}, false
	}
	tenant := r.Header.Get("X-Tenant-Id")
	role := r.Header.Get("X-Role")
	if tenant == "" {
		tenant = "t_demo"
	}
	if role == "" {
		role = "admin"
	}
	return auth.Principal{Tenant: tenant, Role: strings.ToLower(role)}, true
}

// principal writes 401 (or 403 when admin is required) and returns ok=false on failure.
func (s *Server) principal(w http.ResponseWriter, r *http.Request, admin bool) (auth.Principal, bool) {
	p, ok := s.getPrincipal(r)
	if !ok {
		writeProblem(w, http.StatusUnauthorized, "Unauthorized", "valid bearer token required", r.URL.Path)
		return p, false
	}
	if admin && !p.IsAdmin() {
		writeProblem(w, http.StatusForbidden, "Forbidden", "admin required", r.URL.Path)
		return p, false
	}
	return p, true
}
