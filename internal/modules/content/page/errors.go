package page

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound          = errors.New("page not found")
	ErrConflict          = errors.New("slug is owned by another wallet")
	ErrStaleWrite        = errors.New("page was modified concurrently")
	ErrNotOwner          = errors.New("wallet not owned by authenticated user")
	ErrWalletNotVerified = errors.New("wallet not verified for this identity")
)

// ValidationError is the first rule a candidate page violated.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// AsValidationError unwraps err into a *ValidationError.
func AsValidationError(err error) (*ValidationError, bool) {
	var ve *ValidationError
	ok := errors.As(err, &ve)
	return ve, ok
}
