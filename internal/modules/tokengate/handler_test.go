package tokengate

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/gin-gonic/gin"
	goredis "github.com/redis/go-redis/v9"
	"github.com/tomtev/page.fun/internal/middleware"
	"github.com/tomtev/page.fun/internal/models"
	"github.com/tomtev/page.fun/internal/modules/content/page"
	"github.com/tomtev/page.fun/internal/pkg/identity"
	"github.com/tomtev/page.fun/internal/pkg/redis"
)

const cookieName = "privy-id-token"

type stubVerifier map[string]*identity.Identity

func (s stubVerifier) Verify(_ context.Context, credential string) (*identity.Identity, error) {
	if id, ok := s[credential]; ok {
		return id, nil
	}
	return nil, identity.ErrInvalidCredential
}

type gateEnv struct {
	router *gin.Engine
	store  *page.Store
	mr     *miniredis.Miniredis
}

func newGateEnv(t *testing.T, ledger Ledger) *gateEnv {
	t.Helper()
	gin.SetMode(gin.TestMode)

	mr := miniredis.RunT(t)
	rdb := redis.Wrap(goredis.NewClient(&goredis.Options{Addr: mr.Addr()}))
	t.Cleanup(func() { _ = rdb.Close() })
	store := page.NewStore(rdb, page.NewValidator())

	gated := "https://discord.gg/secret"
	if _, err := store.Create(context.Background(), &models.PageRecord{
		Slug:           "alice",
		OwnerWallet:    "Wx1",
		ConnectedToken: "TOK1",
		TokenSymbol:    "TOK",
		GateThreshold:  "100",
		Items: []models.LinkItem{{
			ID: "b", PresetID: "discord", URL: &gated, TokenGated: true, RequiredTokens: []string{"TOK1"},
		}},
	}); err != nil {
		t.Fatalf("seed alice: %v", err)
	}
	if _, err := store.Create(context.Background(), &models.PageRecord{Slug: "plain", OwnerWallet: "Wx1"}); err != nil {
		t.Fatalf("seed plain: %v", err)
	}

	signer, err := NewS3Signer(testBlobConfig(), 10*time.Minute)
	if err != nil {
		t.Fatalf("NewS3Signer returned error: %v", err)
	}

	verifier := stubVerifier{
		"rich-token": {UserID: "rich", Wallets: []string{"Wrich"}},
		"poor-token": {UserID: "poor", Wallets: []string{"Wpoor"}},
	}
	r := gin.New()
	api := r.Group("/api", middleware.Identity(verifier, cookieName))
	NewHandler(store, NewVerifier(ledger), signer, "1", nil).RegisterRoutes(api)
	return &gateEnv{router: r, store: store, mr: mr}
}

func (e *gateEnv) post(t *testing.T, token string, body interface{}) (*httptest.ResponseRecorder, map[string]interface{}) {
	t.Helper()
	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(body); err != nil {
		t.Fatalf("encode body: %v", err)
	}
	req := httptest.NewRequest(http.MethodPost, "/api/access-private-content", &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.AddCookie(&http.Cookie{Name: cookieName, Value: token})
	}
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)

	var out map[string]interface{}
	if err := json.Unmarshal(w.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode response %q: %v", w.Body.String(), err)
	}
	return w, out
}

func accessBody(wallet, slug string) map[string]string {
	return map[string]string{
		"walletAddress": wallet,
		"blobUrl":       "https://r2.example.com/private/docs/a.pdf",
		"pageSlug":      slug,
	}
}

func holders() mapLedger {
	return mapLedger{balances: map[string]string{"Wrich/TOK1": "150", "Wpoor/TOK1": "50"}}
}

func TestAccessGrantedAboveThreshold(t *testing.T) {
	t.Parallel()

	env := newGateEnv(t, holders())
	w, body := env.post(t, "rich-token", accessBody("Wrich", "alice"))
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d %s", w.Code, w.Body.String())
	}
	if body["expiresIn"] != "10 minutes" {
		t.Fatalf("expected expiresIn 10 minutes, got %v", body["expiresIn"])
	}
	signed, _ := body["url"].(string)
	if !strings.Contains(signed, "/private/docs/a.pdf") || !strings.Contains(signed, "X-Amz-Expires=600") {
		t.Fatalf("unexpected signed url %q", signed)
	}
}

func TestAccessDeniedBelowThreshold(t *testing.T) {
	t.Parallel()

	env := newGateEnv(t, holders())
	w, body := env.post(t, "poor-token", accessBody("Wpoor", "alice"))
	if w.Code != http.StatusForbidden {
		t.Fatalf("expected 403, got %d %s", w.Code, w.Body.String())
	}
	if body["balance"] != "50" || body["tokenSymbol"] != "TOK" {
		t.Fatalf("expected balance and symbol in denial, got %v", body)
	}
	if msg, _ := body["message"].(string); msg != "Insufficient token balance. Required: 100, Current: 50" {
		t.Fatalf("unexpected denial message %q", msg)
	}
	if _, leaked := body["url"]; leaked {
		t.Fatalf("denied response must not carry a url")
	}
}

func TestAccessRequiresIdentityAndOwnedWallet(t *testing.T) {
	t.Parallel()

	env := newGateEnv(t, holders())
	if w, _ := env.post(t, "", accessBody("Wrich", "alice")); w.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without credential, got %d", w.Code)
	}
	if w, _ := env.post(t, "bogus", accessBody("Wrich", "alice")); w.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 for invalid credential, got %d", w.Code)
	}
	w, body := env.post(t, "poor-token", accessBody("Wrich", "alice"))
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 for a wallet the caller does not own, got %d", w.Code)
	}
	if body["message"] != "Wallet not owned by authenticated user" {
		t.Fatalf("unexpected message %v", body["message"])
	}
}

func TestAccessRequestErrors(t *testing.T) {
	t.Parallel()

	env := newGateEnv(t, holders())

	w, _ := env.post(t, "rich-token", map[string]string{"walletAddress": "Wrich", "pageSlug": "alice"})
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for missing blobUrl, got %d", w.Code)
	}
	w, _ = env.post(t, "rich-token", accessBody("Wrich", "ghost"))
	if w.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for unknown page, got %d", w.Code)
	}
	w, body := env.post(t, "rich-token", accessBody("Wrich", "plain"))
	if w.Code != http.StatusBadRequest || body["message"] != "No token is connected to this page" {
		t.Fatalf("expected 400 for page without token, got %d %v", w.Code, body)
	}

	foreign := accessBody("Wrich", "alice")
	foreign["blobUrl"] = "https://evil.example.com/private/docs/a.pdf"
	w, body = env.post(t, "rich-token", foreign)
	if w.Code != http.StatusBadRequest || body["field"] != "blobUrl" {
		t.Fatalf("expected 400 on blobUrl for foreign resource, got %d %v", w.Code, body)
	}
}

func TestAccessLedgerUnavailable(t *testing.T) {
	t.Parallel()

	env := newGateEnv(t, mapLedger{err: ErrLedgerUnavailable})
	w, body := env.post(t, "rich-token", accessBody("Wrich", "alice"))
	if w.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500 when the ledger is down, got %d", w.Code)
	}
	if body["message"] != "Failed to verify token holdings" {
		t.Fatalf("unexpected message %v", body["message"])
	}
}

func TestAccessComparesLedgerBalanceAsReported(t *testing.T) {
	t.Parallel()

	srv, _ := newLedgerServer(t, map[string][]fakeAsset{
		"Wrich": {{ID: "TOK1", Balance: "150", Decimals: 6}},
		"Wpoor": {{ID: "tok1", Balance: "50", Decimals: 6}},
	})
	env := newGateEnv(t, NewHeliusLedger(HeliusOptions{Endpoint: srv.URL, Timeout: time.Second}))

	w, body := env.post(t, "poor-token", accessBody("Wpoor", "alice"))
	if w.Code != http.StatusForbidden {
		t.Fatalf("expected 403, got %d %s", w.Code, w.Body.String())
	}
	if body["balance"] != "50" {
		t.Fatalf("expected the ledger's balance echoed unscaled, got %v", body["balance"])
	}
	if msg, _ := body["message"].(string); msg != "Insufficient token balance. Required: 100, Current: 50" {
		t.Fatalf("unexpected denial message %q", msg)
	}

	w, body = env.post(t, "rich-token", accessBody("Wrich", "alice"))
	if w.Code != http.StatusOK || body["expiresIn"] != "10 minutes" {
		t.Fatalf("expected 200 for a balance of 150 raw units, got %d %s", w.Code, w.Body.String())
	}
}

func TestAccessInvalidStoredThreshold(t *testing.T) {
	t.Parallel()

	env := newGateEnv(t, holders())
	legacy := `{"walletAddress":"Wx1","createdAt":"2024-11-02T10:00:00Z","connectedToken":"TOK1","gateThreshold":"lots"}`
	if err := env.mr.Set(page.PageKey("legacy"), legacy); err != nil {
		t.Fatalf("seed legacy page: %v", err)
	}

	w, body := env.post(t, "rich-token", accessBody("Wrich", "legacy"))
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for an unparseable threshold, got %d %s", w.Code, w.Body.String())
	}
	if body["message"] != "This page has an invalid token gate threshold" {
		t.Fatalf("unexpected message %v", body["message"])
	}
}
