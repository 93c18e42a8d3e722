package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

func testSec() SecConfig {
	return SecConfig{
		AllowedOrigins: []string{"*"},
		RPS:            1000,
		Burst:          1000,
		BackendKeys:    map[string]struct{}{"bk": {}},
		FrontendKeys:   map[string]struct{}{"fk": {}},
	}
}

func serve(t *testing.T, cfg SecConfig, req *http.Request) (*httptest.ResponseRecorder, bool) {
	t.Helper()
	reached := false
	h := AuthenticateRequestMiddleware(cfg)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		reached = true
		w.WriteHeader(http.StatusOK)
	}))
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w, reached
}

func TestUnauthenticatedRejected(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/v1/projects", nil)
	w, reached := serve(t, testSec(), req)
	if reached || w.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without credentials, got %d (reached=%v)", w.Code, reached)
	}
}

func TestAllowUnauthMode(t *testing.T) {
	cfg := testSec()
	cfg.AllowUnauth = true
	req := httptest.NewRequest(http.MethodGet, "/v1/projects", nil)
	w, reached := serve(t, cfg, req)
	if !reached || w.Code != http.StatusOK {
		t.Fatalf("allow_unauth should admit the request, got %d", w.Code)
	}
}

func TestCredentialHeaders(t *testing.T) {
	for _, set := range []func(*http.Request){
		func(r *http.Request) { r.Header.Set("Authorization", "Bearer bk") },
		func(r *http.Request) { r.Header.Set("X-API-Key", "bk") },
		func(r *http.Request) { r.Header.Set("apikey", "bk") },
	} {
		req := httptest.NewRequest(http.MethodGet, "/v1/projects", nil)
		set(req)
		w, reached := serve(t, testSec(), req)
		if !reached || w.Code != http.StatusOK {
			t.Fatalf("backend key should be accepted from any header, got %d", w.Code)
		}
	}
}

func TestFrontendScope(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/v1/chats/c1/messages", nil)
	req.Header.Set("apikey", "fk")
	w, reached := serve(t, testSec(), req)
	if !reached || w.Code != http.StatusOK {
		t.Fatalf("frontend key should reach row APIs, got %d", w.Code)
	}

	req = httptest.NewRequest(http.MethodGet, "/internal/admin", nil)
	req.Header.Set("apikey", "fk")
	w, reached = serve(t, testSec(), req)
	if reached || w.Code != http.StatusForbidden {
		t.Fatalf("frontend key outside /v1 should 403, got %d", w.Code)
	}
}

func TestOpenPathsSkipAuth(t *testing.T) {
	for _, path := range []string{"/healthz", "/readyz", "/metrics", "/gemini"} {
		req := httptest.NewRequest(http.MethodGet, path, nil)
		_, reached := serve(t, testSec(), req)
		if !reached {
			t.Fatalf("%s should bypass API key checks", path)
		}
	}
}

func TestCORSPreflightShortCircuit(t *testing.T) {
	req := httptest.NewRequest(http.MethodOptions, "/v1/projects", nil)
	req.Header.Set("Origin", "https://deck.example")
	w, reached := serve(t, testSec(), req)
	if reached {
		t.Fatalf("preflight must not reach handlers")
	}
	if w.Code != http.StatusNoContent {
		t.Fatalf("preflight should 204, got %d", w.Code)
	}
	if got := w.Header().Get("Access-Control-Allow-Origin"); got != "https://deck.example" {
		t.Fatalf("origin not echoed for wildcard config, got %q", got)
	}
}

func TestIPAllowlistBlocks(t *testing.T) {
	cfg := testSec()
	cfg.IPAllowlist = []string{"10.1.2.3"}
	req := httptest.NewRequest(http.MethodGet, "/v1/projects", nil)
	req.RemoteAddr = "192.0.2.7:1234"
	req.Header.Set("apikey", "bk")
	w, reached := serve(t, cfg, req)
	if reached || w.Code != http.StatusForbidden {
		t.Fatalf("non-allowlisted ip should 403, got %d", w.Code)
	}
}

func TestRateLimitExhaustion(t *testing.T) {
	cfg := testSec()
	cfg.RPS = 1
	cfg.Burst = 2
	limited := false
	h := AuthenticateRequestMiddleware(cfg)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	for i := 0; i < 5; i++ {
		req := httptest.NewRequest(http.MethodGet, "/v1/projects", nil)
		req.Header.Set("apikey", "bk")
		w := httptest.NewRecorder()
		h.ServeHTTP(w, req)
		if w.Code == http.StatusTooManyRequests {
			limited = true
		}
	}
	if !limited {
		t.Fatalf("burst exhaustion should trip the limiter")
	}
}
