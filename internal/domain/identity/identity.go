// Package identity resolves bearer credentials to caller identities.
//
// Token issuance belongs to the external identity provider; this package
// only verifies what the provider issued.
package identity

import (
	"context"
	"strings"
)

const bearerPrefix = "bearer "

// Identity is the verified caller.
type Identity struct {
	UserID string
	Email  string
	Role   string
}

// Verifier validates a bearer credential and resolves the caller.
type Verifier interface {
	// Verify returns ErrInvalidCredential when the token is rejected or
	// expired, and ErrProviderUnavailable when it cannot be checked.
	Verify(ctx context.Context, credential string) (Identity, error)
}

// ParseBearer extracts the token from an Authorization header value.
// An absent header is ErrMissingCredential; a header that carries no bearer
// token is ErrInvalidCredential.
func ParseBearer(header string) (string, error) {
	header = strings.TrimSpace(header)
	if header == "" {
		return "", ErrMissingCredential
	}
	if len(header) < len(bearerPrefix) || !strings.EqualFold(header[:len(bearerPrefix)], bearerPrefix) {
		return "", ErrInvalidCredential
	}
	token := strings.TrimSpace(header[len(bearerPrefix):])
	if token == "" {
		return "", ErrInvalidCredential
	}
	return token, nil
}

// Authenticate parses header and verifies the token with v.
func Authenticate(ctx context.Context, v Verifier, header string) (Identity, error) {
	token, err := ParseBearer(header)
	if err != nil {
		return Identity{}, err
	}
	return v.Verify(ctx, token)
}
