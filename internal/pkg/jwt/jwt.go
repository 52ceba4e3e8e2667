package jwt

import (
	"crypto/ecdsa"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	jwtlib "github.com/golang-jwt/jwt/v5"
)

// DefaultIssuer is the issuer claim of identity tokens from the identity provider.
const DefaultIssuer = "privy.io"

// LinkedAccount is one account attached to an identity.
type LinkedAccount struct {
	Type      string `json:"type"`
	Address   string `json:"address,omitempty"`
	ChainType string `json:"chain_type,omitempty"`
}

// LinkedAccounts accepts either a JSON array or a JSON string holding an array,
// which is how the provider embeds it in identity tokens.
type LinkedAccounts []LinkedAccount

func (l *LinkedAccounts) UnmarshalJSON(data []byte) error {
	trimmed := strings.TrimSpace(string(data))
	if trimmed == "" || trimmed == "null" {
		*l = nil
		return nil
	}
	if strings.HasPrefix(trimmed, `"`) {
		var encoded string
		if err := json.Unmarshal(data, &encoded); err != nil {
			return err
		}
		if strings.TrimSpace(encoded) == "" {
			*l = nil
			return nil
		}
		data = []byte(encoded)
	}
	var accounts []LinkedAccount
	if err := json.Unmarshal(data, &accounts); err != nil {
		return fmt.Errorf("linked_accounts: %w", err)
	}
	*l = accounts
	return nil
}

// Claims is the identity token payload.
type Claims struct {
	LinkedAccounts LinkedAccounts `json:"linked_accounts,omitempty"`
	jwtlib.RegisteredClaims
}

// Verifier validates ES256 identity tokens against the provider's public key.
type Verifier struct {
	key      *ecdsa.PublicKey
	issuer   string
	audience string
	leeway   time.Duration
}

// NewVerifier parses a PEM encoded EC public key. Escaped "\n" sequences, as
// found in single-line environment variables, are accepted.
func NewVerifier(pemKey, issuer, audience string) (*Verifier, error) {
	pemKey = strings.ReplaceAll(strings.TrimSpace(pemKey), `\n`, "\n")
	if pemKey == "" {
		return nil, errors.New("identity verification key is empty")
	}
	key, err := jwtlib.ParseECPublicKeyFromPEM([]byte(pemKey))
	if err != nil {
		return nil, fmt.Errorf("parse identity verification key: %w", err)
	}
	return NewVerifierFromKey(key, issuer, audience), nil
}

// NewVerifierFromKey builds a Verifier from an already parsed key.
func NewVerifierFromKey(key *ecdsa.PublicKey, issuer, audience string) *Verifier {
	if strings.TrimSpace(issuer) == "" {
		issuer = DefaultIssuer
	}
	return &Verifier{key: key, issuer: issuer, audience: strings.TrimSpace(audience), leeway: 30 * time.Second}
}

// Parse validates a token string and returns the claims.
func (v *Verifier) Parse(tokenStr string) (*Claims, error) {
	opts := []jwtlib.ParserOption{
		jwtlib.WithValidMethods([]string{jwtlib.SigningMethodES256.Alg()}),
		jwtlib.WithIssuer(v.issuer),
		jwtlib.WithExpirationRequired(),
		jwtlib.WithLeeway(v.leeway),
	}
	if v.audience != "" {
		opts = append(opts, jwtlib.WithAudience(v.audience))
	}

	token, err := jwtlib.ParseWithClaims(tokenStr, &Claims{}, func(t *jwtlib.Token) (interface{}, error) {
		return v.key, nil
	}, opts...)
	if err != nil {
		return nil, err
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, fmt.Errorf("invalid token")
	}
	return claims, nil
}

// Sign issues an ES256 token. Used by local tooling and tests to mint identity tokens.
func Sign(key *ecdsa.PrivateKey, claims Claims) (string, error) {
	if claims.IssuedAt == nil {
		claims.IssuedAt = jwtlib.NewNumericDate(time.Now())
	}
	token := jwtlib.NewWithClaims(jwtlib.SigningMethodES256, claims)
	return token.SignedString(key)
}
