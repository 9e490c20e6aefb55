package identity

import "errors"

// Sentinel kinds for credential verification.
var (
	ErrMissingCredential   = errors.New("missing authorization header")
	ErrInvalidCredential   = errors.New("invalid or expired credential")
	ErrProviderUnavailable = errors.New("identity provider unavailable")
)
