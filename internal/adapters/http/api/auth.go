package api

import (
	"errors"
	"net/http"

	"github.com/softai/coursecore/internal/domain/identity"
	"github.com/softai/coursecore/pkg/metrics"
)

type authenticator struct {
	verifier identity.Verifier
}

// authenticate resolves the caller from the Authorization header.
func (a authenticator) authenticate(r *http.Request) (identity.Identity, error) {
	id, err := identity.Authenticate(r.Context(), a.verifier, r.Header.Get("Authorization"))
	switch {
	case err == nil:
		return id, nil
	case errors.Is(err, identity.ErrMissingCredential):
		metrics.RecordAuthFailure("missing")
	case errors.Is(err, identity.ErrInvalidCredential):
		metrics.RecordAuthFailure("invalid")
	default:
		metrics.RecordAuthFailure("provider")
	}
	return identity.Identity{}, err
}
