package auth

import (
	"net"
	"net/http"
	"strings"

	"pilotdeck/pkg/logger"
	"pilotdeck/pkg/utils"
)

// openPath reports whether a request may bypass API key checks. Probe and
// observability endpoints stay open, as does the assistant proxy which
// carries its own CORS story and is credential-gated server-side.
func openPath(r *http.Request) bool {
	if (r.URL.Path == "/healthz" || r.URL.Path == "/readyz") && r.Method == http.MethodGet {
		return true
	}
	if r.URL.Path == "/metrics" && r.Method == http.MethodGet {
		return true
	}
	if r.URL.Path == "/gemini" {
		return true
	}
	return strings.HasPrefix(r.URL.Path, "/docs/")
}

// AuthenticateRequestMiddleware returns the gateway middleware: CORS,
// IP allowlisting, API key resolution and per-key rate limiting.
func AuthenticateRequestMiddleware(cfg SecConfig) func(http.Handler) http.Handler {
	limiters := &limiterPool{cfg: cfg}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			logger.LogRequest(r)

			// cors; the assistant proxy sets its own permissive headers
			origin := r.Header.Get("Origin")
			if r.URL.Path != "/gemini" && origin != "" && originAllowed(origin, cfg.AllowedOrigins) {
				w.Header().Set("Access-Control-Allow-Origin", origin)
				w.Header().Set("Vary", "Origin")
				w.Header().Set("Access-Control-Allow-Methods", "GET,POST,PATCH,DELETE,OPTIONS")
				w.Header().Set("Access-Control-Max-Age", "600")
				w.Header().Set("Access-Control-Allow-Headers", "Authorization,Content-Type,X-API-Key,apikey,x-client-info")
			}
			if r.Method == http.MethodOptions && r.URL.Path != "/gemini" {
				w.WriteHeader(http.StatusNoContent)
				return
			}

			if len(cfg.IPAllowlist) > 0 {
				ip := clientIP(r)
				if !ipAllowed(ip, cfg.IPAllowlist) {
					utils.JSONError(w, http.StatusForbidden, "forbidden")
					logger.Warn("request_blocked", "reason", "ip_not_allowed", "ip", ip, "path", r.URL.Path)
					return
				}
			}

			role, key, hasKey := authenticate(r, cfg)

			if openPath(r) {
				next.ServeHTTP(w, r)
				return
			}

			if role == RoleUnauth || !hasKey {
				if !cfg.AllowUnauth {
					utils.JSONError(w, http.StatusUnauthorized, "unauthorized")
					logger.Warn("request_unauthorized", "path", r.URL.Path, "remote", r.RemoteAddr)
					return
				}
				role = RoleBackend
			}

			if role == RoleFrontend && !frontendAllowed(r) {
				utils.JSONError(w, http.StatusForbidden, "forbidden")
				logger.Warn("request_forbidden", "reason", "frontend_scope", "path", r.URL.Path)
				return
			}

			if !limiters.Allow(key) {
				utils.JSONError(w, http.StatusTooManyRequests, "rate limit exceeded")
				logger.Warn("rate_limited", "path", r.URL.Path)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

func originAllowed(origin string, allowed []string) bool {
	for _, a := range allowed {
		if a == "*" || strings.EqualFold(a, origin) {
			return true
		}
	}
	return false
}

func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

func ipAllowed(ip string, list []string) bool {
	for _, a := range list {
		if ip == a {
			return true
		}
	}
	return false
}
