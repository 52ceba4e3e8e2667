package identity

import (
	"context"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"errors"
	"testing"
	"time"

	jwtlib "github.com/golang-jwt/jwt/v5"
	"github.com/tomtev/page.fun/internal/pkg/jwt"
)

const testAppID = "app-test"

func newTestVerifier(t *testing.T) (*TokenVerifier, *ecdsa.PrivateKey) {
	t.Helper()
	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		t.Fatalf("GenerateKey returned error: %v", err)
	}
	parser := jwt.NewVerifierFromKey(&key.PublicKey, jwt.DefaultIssuer, testAppID)
	return NewTokenVerifier(parser, "solana"), key
}

func signToken(t *testing.T, key *ecdsa.PrivateKey, aud string, ttl time.Duration, accounts jwt.LinkedAccounts) string {
	t.Helper()
	token, err := jwt.Sign(key, jwt.Claims{
		LinkedAccounts: accounts,
		RegisteredClaims: jwtlib.RegisteredClaims{
			Subject:   "did:privy:user-1",
			Issuer:    jwt.DefaultIssuer,
			Audience:  jwtlib.ClaimStrings{aud},
			ExpiresAt: jwtlib.NewNumericDate(time.Now().Add(ttl)),
		},
	})
	if err != nil {
		t.Fatalf("Sign returned error: %v", err)
	}
	return token
}

func TestVerifyExtractsSolanaWallets(t *testing.T) {
	t.Parallel()

	v, key := newTestVerifier(t)
	token := signToken(t, key, testAppID, time.Hour, jwt.LinkedAccounts{
		{Type: "wallet", Address: "Wx1", ChainType: "solana"},
		{Type: "wallet", Address: "0xEth", ChainType: "ethereum"},
		{Type: "email", Address: "a@example.com"},
		{Type: "wallet", Address: "wx1", ChainType: "solana"},
	})

	id, err := v.Verify(context.Background(), token)
	if err != nil {
		t.Fatalf("Verify returned error: %v", err)
	}
	if id.UserID != "did:privy:user-1" {
		t.Fatalf("expected subject as user id, got %q", id.UserID)
	}
	if len(id.Wallets) != 1 || id.Wallets[0] != "Wx1" {
		t.Fatalf("expected only the solana wallet once, got %v", id.Wallets)
	}
	if !id.HasWallet("WX1") {
		t.Fatalf("expected case-insensitive wallet membership")
	}
	if id.HasWallet("0xEth") {
		t.Fatalf("expected wallets of other chains to be ignored")
	}
}

func TestVerifyRejectsBadTokens(t *testing.T) {
	t.Parallel()

	v, key := newTestVerifier(t)
	otherKey, _ := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	accounts := jwt.LinkedAccounts{{Type: "wallet", Address: "Wx1", ChainType: "solana"}}

	cases := map[string]string{
		"expired":        signToken(t, key, testAppID, -time.Hour, accounts),
		"wrong audience": signToken(t, key, "other-app", time.Hour, accounts),
		"wrong key":      signToken(t, otherKey, testAppID, time.Hour, accounts),
		"garbage":        "not-a-token",
	}
	for name, token := range cases {
		if _, err := v.Verify(context.Background(), token); !errors.Is(err, ErrInvalidCredential) {
			t.Fatalf("%s: expected ErrInvalidCredential, got %v", name, err)
		}
	}

	if _, err := v.Verify(context.Background(), "  "); !errors.Is(err, ErrMissingCredential) {
		t.Fatalf("expected ErrMissingCredential for blank credential, got %v", err)
	}
}

func TestLinkedAccountsAcceptsEncodedString(t *testing.T) {
	t.Parallel()

	var accounts jwt.LinkedAccounts
	raw := []byte(`"[{\"type\":\"wallet\",\"address\":\"Wx1\",\"chain_type\":\"solana\"}]"`)
	if err := accounts.UnmarshalJSON(raw); err != nil {
		t.Fatalf("UnmarshalJSON returned error: %v", err)
	}
	if len(accounts) != 1 || accounts[0].Address != "Wx1" {
		t.Fatalf("unexpected accounts %+v", accounts)
	}
}
