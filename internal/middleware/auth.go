package middleware

import (
	"errors"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/tomtev/page.fun/internal/pkg/identity"
	"github.com/tomtev/page.fun/internal/pkg/response"
)

const (
	ContextKeyIdentity      = "identity"
	ContextKeyIdentityError = "identity_error"
)

// Identity resolves the identity credential when one is present. It never
// blocks; handlers decide whether an identity is required.
func Identity(verifier identity.Verifier, cookieName string) gin.HandlerFunc {
	return func(c *gin.Context) {
		credential := ExtractCredential(c, cookieName)
		if credential == "" {
			c.Set(ContextKeyIdentityError, identity.ErrMissingCredential)
			c.Next()
			return
		}
		id, err := verifier.Verify(c.Request.Context(), credential)
		if err != nil {
			c.Set(ContextKeyIdentityError, err)
		} else {
			c.Set(ContextKeyIdentity, id)
		}
		c.Next()
	}
}

// RequireIdentity aborts with 401 unless Identity verified the caller.
func RequireIdentity() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !Authenticate(c) {
			return
		}
		c.Next()
	}
}

// Authenticate writes the failure response and returns false when the request
// carries no verified identity.
func Authenticate(c *gin.Context) bool {
	if CurrentIdentity(c) != nil {
		return true
	}
	err := IdentityError(c)
	switch {
	case errors.Is(err, identity.ErrUnavailable):
		response.InternalError(c, err)
	case errors.Is(err, identity.ErrInvalidCredential):
		response.Unauthorized(c, "Invalid identity token")
	default:
		response.Unauthorized(c, "Missing identity token")
	}
	return false
}

// CurrentIdentity returns the verified caller, or nil for anonymous requests.
func CurrentIdentity(c *gin.Context) *identity.Identity {
	v, _ := c.Get(ContextKeyIdentity)
	id, _ := v.(*identity.Identity)
	return id
}

// IdentityError returns why no identity was resolved.
func IdentityError(c *gin.Context) error {
	v, _ := c.Get(ContextKeyIdentityError)
	err, _ := v.(error)
	return err
}

// IsAuthenticated returns true if the request carries a verified identity.
func IsAuthenticated(c *gin.Context) bool {
	return CurrentIdentity(c) != nil
}

// ExtractCredential reads the identity cookie, falling back to a Bearer token.
func ExtractCredential(c *gin.Context, cookieName string) string {
	if cookieName != "" {
		if v, err := c.Cookie(cookieName); err == nil && strings.TrimSpace(v) != "" {
			return strings.TrimSpace(v)
		}
	}
	return NormalizeToken(c.GetHeader("Authorization"))
}

// NormalizeToken trims spaces and strips optional Bearer prefix.
func NormalizeToken(raw string) string {
	token := strings.TrimSpace(raw)
	if token == "" {
		return ""
	}
	if strings.HasPrefix(strings.ToLower(token), "bearer ") {
		return strings.TrimSpace(token[7:])
	}
	return token
}
