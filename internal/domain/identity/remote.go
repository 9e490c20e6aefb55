package identity

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// Remote verifier defaults.
const (
	defaultRemoteTimeout = 5 * time.Second
	userEndpoint         = "/auth/v1/user"
	maxUserBodyBytes     = 1 << 20
)

// RemoteOption applies a configuration option to the RemoteVerifier.
type RemoteOption func(*RemoteVerifier)

// WithHTTPClient sets the client used to reach the provider.
func WithHTTPClient(c *http.Client) RemoteOption {
	return func(v *RemoteVerifier) {
		if c != nil {
			v.client = c
		}
	}
}

// WithAPIKey sets the project key sent in the apikey header.
func WithAPIKey(key string) RemoteOption {
	return func(v *RemoteVerifier) {
		v.apiKey = key
	}
}

// WithTimeout bounds a single verification round trip.
func WithTimeout(d time.Duration) RemoteOption {
	return func(v *RemoteVerifier) {
		if d > 0 {
			v.timeout = d
		}
	}
}

// RemoteVerifier asks the identity provider who owns a token.
type RemoteVerifier struct {
	baseURL string
	apiKey  string
	timeout time.Duration
	client  *http.Client
}

// NewRemoteVerifier creates a verifier that calls baseURL + /auth/v1/user.
func NewRemoteVerifier(baseURL string, opts ...RemoteOption) *RemoteVerifier {
	v := &RemoteVerifier{
		baseURL: strings.TrimRight(baseURL, "/"),
		timeout: defaultRemoteTimeout,
		client:  &http.Client{},
	}
	for _, opt := range opts {
		opt(v)
	}
	return v
}

type providerUser struct {
	ID    string `json:"id"`
	Email string `json:"email"`
	Role  string `json:"role"`
}

// Verify resolves token through the provider.
func (v *RemoteVerifier) Verify(ctx context.Context, token string) (Identity, error) {
	ctx, cancel := context.WithTimeout(ctx, v.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, v.baseURL+userEndpoint, nil)
	if err != nil {
		return Identity{}, fmt.Errorf("%w: %v", ErrProviderUnavailable, err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	if v.apiKey != "" {
		req.Header.Set("apikey", v.apiKey)
	}

	resp, err := v.client.Do(req)
	if err != nil {
		return Identity{}, fmt.Errorf("%w: %v", ErrProviderUnavailable, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusUnauthorized, resp.StatusCode == http.StatusForbidden:
		return Identity{}, ErrInvalidCredential
	case resp.StatusCode != http.StatusOK:
		return Identity{}, fmt.Errorf("%w: unexpected status %d", ErrProviderUnavailable, resp.StatusCode)
	}

	var u providerUser
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxUserBodyBytes)).Decode(&u); err != nil {
		return Identity{}, fmt.Errorf("%w: decode user: %v", ErrProviderUnavailable, err)
	}
	if strings.TrimSpace(u.ID) == "" {
		return Identity{}, ErrInvalidCredential
	}
	return Identity{UserID: u.ID, Email: u.Email, Role: u.Role}, nil
}
