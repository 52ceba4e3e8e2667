package tokengate

import (
	"context"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/shopspring/decimal"
)

// Decision is the outcome of a balance check.
type Decision struct {
	Allowed bool
	Balance string
}

// Verifier compares ledger balances against a gate threshold.
type Verifier struct {
	ledger Ledger
}

func NewVerifier(ledger Ledger) *Verifier {
	return &Verifier{ledger: ledger}
}

// CheckAccess allows wallet when its balance of token is at least threshold.
// Amounts are compared as arbitrary-precision decimals.
func (v *Verifier) CheckAccess(ctx context.Context, wallet, token, threshold string) (Decision, error) {
	if strings.TrimSpace(token) == "" {
		return Decision{}, ErrTokenNotConfigured
	}
	required, err := decimal.NewFromString(strings.TrimSpace(threshold))
	if err != nil || required.IsNegative() {
		return Decision{}, eris.Wrapf(ErrInvalidThreshold, "%q", threshold)
	}

	balance, err := v.ledger.Balance(ctx, wallet, token)
	if err != nil {
		return Decision{}, err
	}
	return Decision{
		Allowed: balance.GreaterThanOrEqual(required),
		Balance: balance.String(),
	}, nil
}
