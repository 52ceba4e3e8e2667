package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/tomtev/page.fun/internal/pkg/identity"
	"go.uber.org/zap"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type stubVerifier struct {
	ids map[string]*identity.Identity
}

func (s stubVerifier) Verify(_ context.Context, credential string) (*identity.Identity, error) {
	if id, ok := s.ids[credential]; ok {
		return id, nil
	}
	return nil, identity.ErrInvalidCredential
}

func newIdentityRouter() *gin.Engine {
	verifier := stubVerifier{ids: map[string]*identity.Identity{
		"good": {UserID: "u1", Wallets: []string{"Wx1"}},
	}}
	r := gin.New()
	r.Use(Identity(verifier, "privy-id-token"))
	r.GET("/open", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"authenticated": IsAuthenticated(c)})
	})
	r.GET("/closed", RequireIdentity(), func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"wallets": CurrentIdentity(c).Wallets})
	})
	return r
}

func TestIdentityReadsCookieAndBearer(t *testing.T) {
	t.Parallel()

	r := newIdentityRouter()

	req := httptest.NewRequest(http.MethodGet, "/closed", nil)
	req.AddCookie(&http.Cookie{Name: "privy-id-token", Value: "good"})
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("expected cookie credential to authenticate, got %d", w.Code)
	}

	req = httptest.NewRequest(http.MethodGet, "/closed", nil)
	req.Header.Set("Authorization", "Bearer good")
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("expected bearer credential to authenticate, got %d", w.Code)
	}
}

func TestRequireIdentityRejectsMissingAndInvalid(t *testing.T) {
	t.Parallel()

	r := newIdentityRouter()
	for name, cookie := range map[string]string{"missing": "", "invalid": "bad"} {
		req := httptest.NewRequest(http.MethodGet, "/closed", nil)
		if cookie != "" {
			req.AddCookie(&http.Cookie{Name: "privy-id-token", Value: cookie})
		}
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		if w.Code != http.StatusUnauthorized {
			t.Fatalf("%s: expected 401, got %d", name, w.Code)
		}
	}

	req := httptest.NewRequest(http.MethodGet, "/open", nil)
	req.AddCookie(&http.Cookie{Name: "privy-id-token", Value: "bad"})
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	if w.Code != http.StatusOK || w.Body.String() != `{"authenticated":false}` {
		t.Fatalf("expected invalid credential to fall back to anonymous, got %d %s", w.Code, w.Body.String())
	}
}

func TestLoggerAssignsRequestID(t *testing.T) {
	t.Parallel()

	r := gin.New()
	r.Use(Logger(zap.NewNop()))
	r.GET("/", func(c *gin.Context) { c.String(http.StatusOK, RequestID(c)) })

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))
	id := w.Header().Get(HeaderRequestID)
	if id == "" || id != w.Body.String() {
		t.Fatalf("expected generated request id echoed, header %q body %q", id, w.Body.String())
	}

	const given = "3f1b8f8e-9a57-4e8e-8d2c-6f3d1b0c2a11"
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(HeaderRequestID, given)
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	if w.Header().Get(HeaderRequestID) != given {
		t.Fatalf("expected incoming request id kept, got %q", w.Header().Get(HeaderRequestID))
	}
}

func TestRateLimitBlocksAfterMax(t *testing.T) {
	t.Parallel()

	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	r := gin.New()
	r.Use(RateLimit(rdb, 2, time.Hour, nil))
	r.GET("/", func(c *gin.Context) { c.Status(http.StatusOK) })

	codes := make([]int, 0, 3)
	for i := 0; i < 3; i++ {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))
		codes = append(codes, w.Code)
	}
	if codes[0] != http.StatusOK || codes[1] != http.StatusOK || codes[2] != http.StatusTooManyRequests {
		t.Fatalf("expected 200,200,429, got %v", codes)
	}
}

func TestRateLimitDisabled(t *testing.T) {
	t.Parallel()

	r := gin.New()
	r.Use(RateLimit(nil, 0, time.Second, nil))
	r.GET("/", func(c *gin.Context) { c.Status(http.StatusOK) })

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("expected disabled limiter to pass, got %d", w.Code)
	}
}
