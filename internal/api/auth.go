package api

import (
	"net/http"
	"strings"

	"tenanthooks/internal/auth"
	"tenanthooks/internal/logging"
)

const (
	devTenant = "t_demo"
	devRole   = "admin"
)

// getPrincipal extracts tenant and role from JWT or headers.
//   - If Authorization: Bearer is present, uses the configured verifier (dev/hmac/jwks).
//   - Else, in dev mode only, falls back to X-Tenant-Id / X-Role headers.
func (s *Server) getPrincipal(r *http.Request) (auth.Principal, error) {
	authz := r.Header.Get("Authorization")
	if strings.HasPrefix(strings.ToLower(authz), "bearer ") {
		return s.Auth.Verify(strings.TrimSpace(authz[len("Bearer "):]))
	}
	if s.Auth.Mode() != auth.ModeDev {
		return auth.Principal{}, auth.ErrInvalidToken
	}
	tenant := r.Header.Get("X-Tenant-Id")
	if tenant == "" {
		tenant = devTenant
	}
	role := strings.ToLower(r.Header.Get("X-Role"))
	if role == "" {
		role = devRole
	}
	return auth.Principal{Tenant: tenant, Role: role}, nil
}

// principal resolves the caller and stores it, and a tenant-scoped logger, on
// the request context.
func (s *Server) principal(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		p, err := s.getPrincipal(r)
		if err != nil {
			writeProblem(w, http.StatusUnauthorized, "Unauthorized", err.Error(), r.URL.Path)
			return
		}
		ctx := auth.WithPrincipal(r.Context(), p)
		l := logging.Ctx(ctx).With().Str("tenant_id", p.Tenant).Str("role", p.Role).Logger()
		next.ServeHTTP(w, r.WithContext(logging.WithContext(ctx, l)))
	})
}

func requireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if p, _ := auth.FromContext(r.Context()); !p.IsAdmin() {
			writeProblem(w, http.StatusForbidden, "Forbidden", "admin required", r.URL.Path)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func principalFrom(r *http.Request) auth.Principal {
	p, _ := auth.FromContext(r.Context())
	return p
}
