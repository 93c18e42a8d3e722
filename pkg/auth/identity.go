package auth

import (
	"net/http"
	"strings"

	"pilotdeck/pkg/config"
)

// Role is the resolved caller role for a request.
type Role int

const (
	RoleUnauth Role = iota
	RoleFrontend
	RoleBackend
)

// SecConfig carries the security settings the gateway needs: CORS origins,
// rate limits, IP allowlisting and the API key sets per role.
type SecConfig struct {
	AllowedOrigins []string
	RPS            float64
	Burst          int
	IPAllowlist    []string
	BackendKeys    map[string]struct{}
	FrontendKeys   map[string]struct{}
	AllowUnauth    bool
}

// FromConfig builds a SecConfig from the loaded server configuration.
func FromConfig(cfg *config.Config) SecConfig {
	return SecConfig{
		AllowedOrigins: cfg.Security.CORS.AllowedOrigins,
		RPS:            cfg.Security.RateLimit.RPS,
		Burst:          cfg.Security.RateLimit.Burst,
		IPAllowlist:    cfg.Security.IPAllowlist,
		BackendKeys:    keySet(cfg.Security.APIKeys.Backend),
		FrontendKeys:   keySet(cfg.Security.APIKeys.Frontend),
		AllowUnauth:    cfg.Security.APIKeys.AllowUnauth,
	}
}

func keySet(keys []string) map[string]struct{} {
	m := make(map[string]struct{}, len(keys))
	for _, k := range keys {
		k = strings.TrimSpace(k)
		if k != "" {
			m[k] = struct{}{}
		}
	}
	return m
}

// authenticate resolves the caller role from request credentials. It
// prefers Authorization: Bearer, then X-API-Key, then the bare apikey
// header browser dashboards send. Returns the role, the limiter key and
// whether any credential was presented.
func authenticate(r *http.Request, cfg SecConfig) (Role, string, bool) {
	auth := r.Header.Get("Authorization")
	var key string
	if strings.HasPrefix(strings.ToLower(auth), "bearer ") {
		key = strings.TrimSpace(auth[7:])
	}
	if key == "" {
		key = r.Header.Get("X-API-Key")
	}
	if key == "" {
		key = r.Header.Get("apikey")
	}
	if key == "" {
		return RoleUnauth, clientIP(r), false
	}
	if _, ok := cfg.BackendKeys[key]; ok {
		return RoleBackend, key, true
	}
	if _, ok := cfg.FrontendKeys[key]; ok {
		return RoleFrontend, key, true
	}
	return RoleUnauth, key, true
}

// frontendAllowed scopes frontend keys to the row store and chat APIs.
func frontendAllowed(r *http.Request) bool {
	return strings.HasPrefix(r.URL.Path, "/v1/")
}
