package tokengate

import "errors"

var (
	ErrLedgerUnavailable     = errors.New("failed to verify token holdings")
	ErrTokenNotConfigured    = errors.New("no token is connected to this page")
	ErrInvalidThreshold      = errors.New("invalid gate threshold")
	ErrResourceOutsideBucket = errors.New("resource is not in the private content bucket")
	ErrSigningDisabled       = errors.New("private content storage is not configured")
)
