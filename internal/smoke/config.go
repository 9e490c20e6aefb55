// Package smoke drives a running coursecore instance end to end: it checks
// health, scores a quiz and fires concurrent certificate requests for one
// (user, course) pair to confirm issuance stays idempotent.
package smoke

import (
	"errors"
	"time"

	"github.com/softai/coursecore/internal/domain/types"
)

// Defaults for Config fields left zero.
const (
	DefaultConcurrency = 16
	DefaultTimeout     = 10 * time.Second
	DefaultAudience    = "authenticated"
)

var (
	// ErrUnhealthy is returned when /healthz does not answer 200.
	ErrUnhealthy = errors.New("service is not healthy")
	// ErrInconsistent is returned when concurrent issuance disagrees.
	ErrInconsistent = errors.New("certificate issuance is inconsistent")
	// ErrNoCredential is returned when neither a token nor a secret is set.
	ErrNoCredential = errors.New("token or jwt secret is required")
)

// Config holds configuration for a smoke run.
type Config struct {
	BaseURL string // Base URL of the service
	// Token is sent as the bearer credential. When empty a token for UserID
	// is signed with JWTSecret.
	Token     string
	JWTSecret string
	Audience  string

	UserID   string
	CourseID string
	// QuizID enables the scoring step when set.
	QuizID  string
	Answers map[string]int

	Concurrency int           // Number of simultaneous certificate requests
	Timeout     time.Duration // HTTP request timeout
}

func (c *Config) withDefaults() {
	if c.Concurrency <= 0 {
		c.Concurrency = DefaultConcurrency
	}
	if c.Timeout <= 0 {
		c.Timeout = DefaultTimeout
	}
	if c.Audience == "" {
		c.Audience = DefaultAudience
	}
}

// Report summarizes a smoke run.
type Report struct {
	Score *types.ScoreResponse

	CertificateRequests int
	Created             int
	Existing            int
	// Rejected counts non-200 responses keyed by status code.
	Rejected map[int]int
	// Codes holds the distinct certificate codes that were returned.
	Codes []string

	StartTime time.Time
	Duration  time.Duration
}
