// Package identity turns an identity credential into the set of wallet
// addresses its holder has proven control of.
package identity

import (
	"context"
	"errors"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/tomtev/page.fun/internal/pkg/jwt"
)

var (
	ErrMissingCredential = errors.New("missing identity token")
	ErrInvalidCredential = errors.New("invalid identity token")
	ErrUnavailable       = errors.New("identity provider unavailable")
)

// Identity is a verified caller.
type Identity struct {
	UserID  string
	Wallets []string
}

// HasWallet reports whether wallet is among the verified addresses.
func (i *Identity) HasWallet(wallet string) bool {
	if i == nil {
		return false
	}
	w := strings.TrimSpace(wallet)
	if w == "" {
		return false
	}
	for _, addr := range i.Wallets {
		if strings.EqualFold(addr, w) {
			return true
		}
	}
	return false
}

// Verifier exchanges an opaque credential for a verified identity.
type Verifier interface {
	Verify(ctx context.Context, credential string) (*Identity, error)
}

// TokenVerifier verifies provider-issued identity tokens locally.
type TokenVerifier struct {
	parser    *jwt.Verifier
	chainType string
}

// NewTokenVerifier keeps only wallets of chainType ("" keeps every chain).
func NewTokenVerifier(parser *jwt.Verifier, chainType string) *TokenVerifier {
	return &TokenVerifier{parser: parser, chainType: strings.ToLower(strings.TrimSpace(chainType))}
}

func (v *TokenVerifier) Verify(_ context.Context, credential string) (*Identity, error) {
	credential = strings.TrimSpace(credential)
	if credential == "" {
		return nil, ErrMissingCredential
	}
	claims, err := v.parser.Parse(credential)
	if err != nil {
		return nil, eris.Wrap(ErrInvalidCredential, err.Error())
	}

	id := &Identity{UserID: claims.Subject}
	seen := make(map[string]struct{})
	for _, acc := range claims.LinkedAccounts {
		if acc.Type != "wallet" || strings.TrimSpace(acc.Address) == "" {
			continue
		}
		if v.chainType != "" && !strings.EqualFold(acc.ChainType, v.chainType) {
			continue
		}
		key := strings.ToLower(acc.Address)
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		id.Wallets = append(id.Wallets, acc.Address)
	}
	return id, nil
}
