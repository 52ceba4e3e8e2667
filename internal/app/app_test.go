package app

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"github.com/tomtev/page.fun/internal/config"
	"github.com/tomtev/page.fun/internal/pkg/identity"
	pkgredis "github.com/tomtev/page.fun/internal/pkg/redis"
)

type stubVerifier map[string]*identity.Identity

func (s stubVerifier) Verify(_ context.Context, credential string) (*identity.Identity, error) {
	if id, ok := s[credential]; ok {
		return id, nil
	}
	return nil, identity.ErrInvalidCredential
}

type fixedLedger decimal.Decimal

func (f fixedLedger) Balance(context.Context, string, string) (decimal.Decimal, error) {
	return decimal.Decimal(f), nil
}

func testConfig() *config.AppConfig {
	return &config.AppConfig{
		Port:           3000,
		Env:            "production",
		AllowedOrigins: []string{"*.page.fun", "localhost:*"},
		Identity:       config.IdentityConfig{CookieName: "privy-id-token"},
		TokenGate:      config.TokenGateConfig{DefaultThreshold: "1", SignedURLTTL: 10 * time.Minute},
		Reconcile:      config.ReconcileConfig{Interval: time.Hour},
	}
}

func newTestApp(t *testing.T) (*App, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	rc := pkgredis.Wrap(goredis.NewClient(&goredis.Options{Addr: mr.Addr()}))
	t.Cleanup(func() { _ = rc.Close() })

	a, err := New(nil, testConfig(),
		WithRedis(rc),
		WithVerifier(stubVerifier{"alice-token": {UserID: "alice", Wallets: []string{"Wx1"}}}),
		WithLedger(fixedLedger(decimal.NewFromInt(500))),
	)
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}
	t.Cleanup(a.Shutdown)
	return a, mr
}

func serve(a *App, method, target, token string, body interface{}, header map[string]string) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		_ = json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, target, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.AddCookie(&http.Cookie{Name: "privy-id-token", Value: token})
	}
	for k, v := range header {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	a.Router().ServeHTTP(w, req)
	return w
}

func TestPingAndUnknownRoute(t *testing.T) {
	a, _ := newTestApp(t)

	w := serve(a, http.MethodGet, "/api/ping", "", nil, nil)
	if w.Code != http.StatusOK || !bytes.Contains(w.Body.Bytes(), []byte("pong")) {
		t.Fatalf("expected pong, got %d %s", w.Code, w.Body.String())
	}
	if w.Header().Get("X-Request-Id") == "" {
		t.Fatalf("expected request id header")
	}
	if w := serve(a, http.MethodGet, "/api/nope", "", nil, nil); w.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", w.Code)
	}
}

func TestHealthReportsRedisAndJobs(t *testing.T) {
	a, mr := newTestApp(t)

	w := serve(a, http.MethodGet, "/api/health", "", nil, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d %s", w.Code, w.Body.String())
	}
	var body struct {
		Redis string `json:"redis"`
		Jobs  []struct {
			Name string `json:"name"`
		} `json:"jobs"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode health: %v", err)
	}
	if body.Redis != "ok" || len(body.Jobs) != 1 || body.Jobs[0].Name != jobReconcileWalletIndex {
		t.Fatalf("unexpected health body %s", w.Body.String())
	}

	mr.Close()
	if w := serve(a, http.MethodGet, "/api/health", "", nil, nil); w.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503 with redis down, got %d", w.Code)
	}
}

func TestCORSHonoursAllowedOrigins(t *testing.T) {
	a, _ := newTestApp(t)

	w := serve(a, http.MethodGet, "/api/ping", "", nil, map[string]string{"Origin": "https://app.page.fun"})
	if got := w.Header().Get("Access-Control-Allow-Origin"); got != "https://app.page.fun" {
		t.Fatalf("expected allowed origin echoed, got %q", got)
	}
	if got := w.Header().Get("Access-Control-Allow-Credentials"); got != "true" {
		t.Fatalf("expected credentials allowed, got %q", got)
	}

	w = serve(a, http.MethodGet, "/api/ping", "", nil, map[string]string{"Origin": "https://evil.example"})
	if got := w.Header().Get("Access-Control-Allow-Origin"); got != "" {
		t.Fatalf("expected foreign origin refused, got %q", got)
	}
}

func TestPageAndGateRoutesAreMounted(t *testing.T) {
	a, _ := newTestApp(t)

	w := serve(a, http.MethodPost, "/api/page-store", "alice-token", map[string]interface{}{
		"slug": "alice", "walletAddress": "Wx1", "connectedToken": "TOK1", "title": "Alice",
	}, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected page saved, got %d %s", w.Code, w.Body.String())
	}
	w = serve(a, http.MethodGet, "/api/page-store?slug=alice", "", nil, nil)
	if w.Code != http.StatusOK || !bytes.Contains(w.Body.Bytes(), []byte(`"Alice"`)) {
		t.Fatalf("expected page readable, got %d %s", w.Code, w.Body.String())
	}

	// No private bucket is configured, so an allowed caller gets 500.
	w = serve(a, http.MethodPost, "/api/access-private-content", "alice-token", map[string]string{
		"walletAddress": "Wx1", "blobUrl": "https://r2.example.com/private/a.pdf", "pageSlug": "alice",
	}, nil)
	if w.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500 without signer, got %d %s", w.Code, w.Body.String())
	}
}

func TestUnconfiguredIdentityAnswers500(t *testing.T) {
	mr := miniredis.RunT(t)
	rc := pkgredis.Wrap(goredis.NewClient(&goredis.Options{Addr: mr.Addr()}))
	t.Cleanup(func() { _ = rc.Close() })

	a, err := New(nil, testConfig(), WithRedis(rc))
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}
	t.Cleanup(a.Shutdown)

	w := serve(a, http.MethodDelete, "/api/page-store?slug=alice", "some-token", nil, nil)
	if w.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500 when identity verification is unavailable, got %d %s", w.Code, w.Body.String())
	}
}

func TestMatchOriginPattern(t *testing.T) {
	t.Parallel()

	cases := []struct {
		pattern, host string
		want          bool
	}{
		{"page.fun", "page.fun", true},
		{"*.page.fun", "app.page.fun", true},
		{"*.page.fun", "page.fun.evil.com", false},
		{"localhost:*", "localhost:3000", true},
		{"https://page.fun", "page.fun", true},
		{"page.fun", "other.fun", false},
	}
	for _, tc := range cases {
		if got := matchOriginPattern(tc.pattern, tc.host); got != tc.want {
			t.Fatalf("matchOriginPattern(%q, %q) = %v, want %v", tc.pattern, tc.host, got, tc.want)
		}
	}
}

func TestParseTimezoneLocation(t *testing.T) {
	t.Parallel()

	loc, err := parseTimezoneLocation("+08:00")
	if err != nil {
		t.Fatalf("parse offset: %v", err)
	}
	if _, offset := time.Date(2026, 1, 1, 0, 0, 0, 0, loc).Zone(); offset != 8*3600 {
		t.Fatalf("expected +8h offset, got %d", offset)
	}
	if _, err := parseTimezoneLocation("Mars/Olympus"); err == nil {
		t.Fatalf("expected error for unknown zone")
	}
}
