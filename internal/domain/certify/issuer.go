// Package certify issues course-completion certificates: at most one per
// (user, course), only to the user themself and only once the store reports
// the course complete.
package certify

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/softai/coursecore/internal/adapters/repository"
	"github.com/softai/coursecore/internal/domain/identity"
	"github.com/softai/coursecore/internal/domain/model"
	"github.com/softai/coursecore/pkg/logger"
	"github.com/softai/coursecore/pkg/metrics"
)

// maxCodeAttempts bounds regeneration when a fresh code is already taken.
const maxCodeAttempts = 3

// Store is the part of the data gateway the issuer needs.
type Store interface {
	repository.CertificateStore
	repository.CompletionChecker
}

// Result is the outcome of a successful Issue call.
type Result struct {
	Code        string
	Certificate model.Certificate
	// Created is false when the certificate already existed.
	Created bool
}

// Issuer issues certificates.
type Issuer struct {
	store Store
	codes CodeGenerator
	now   func() time.Time
	log   logger.Logger
}

// Option configures an Issuer.
type Option func(*Issuer)

// WithCodeGenerator replaces the default UUID based code generator.
func WithCodeGenerator(g CodeGenerator) Option {
	return func(i *Issuer) {
		if g != nil {
			i.codes = g
		}
	}
}

// WithPrefix sets the certificate code prefix.
func WithPrefix(prefix string) Option {
	return func(i *Issuer) { i.codes = UUIDCodes(prefix) }
}

// WithClock sets the clock used for issue dates.
func WithClock(now func() time.Time) Option {
	return func(i *Issuer) {
		if now != nil {
			i.now = now
		}
	}
}

// WithLogger sets the issuer's logger.
func WithLogger(l logger.Logger) Option {
	return func(i *Issuer) {
		if l != nil {
			i.log = l
		}
	}
}

// NewIssuer creates an Issuer over store.
func NewIssuer(store Store, opts ...Option) *Issuer {
	i := &Issuer{
		store: store,
		codes: UUIDCodes(DefaultPrefix),
		now:   time.Now,
		log:   logger.Nop(),
	}
	for _, opt := range opts {
		opt(i)
	}
	return i
}

// Issue returns the certificate for (userID, courseID), creating it if the
// caller is that user, none exists yet and the course is complete.
func (i *Issuer) Issue(ctx context.Context, caller identity.Identity, userID, courseID string) (Result, error) {
	if caller.UserID != userID {
		metrics.RecordCertificateOutcome(metrics.OutcomeForbidden)
		return Result{}, ErrForbidden
	}

	existing, err := i.store.FindCertificate(ctx, userID, courseID)
	switch {
	case err == nil:
		metrics.RecordCertificateOutcome(metrics.OutcomeExisting)
		return existingResult(existing), nil
	case !errors.Is(err, repository.ErrNotFound):
		metrics.RecordCertificateOutcome(metrics.OutcomeError)
		return Result{}, fmt.Errorf("%w: %w", ErrIssueFailed, err)
	}

	complete, err := i.store.IsCourseComplete(ctx, userID, courseID)
	if err != nil {
		metrics.RecordCertificateOutcome(metrics.OutcomeError)
		return Result{}, fmt.Errorf("%w: %w", ErrCompletionCheckFailed, err)
	}
	if !complete {
		metrics.RecordCertificateOutcome(metrics.OutcomeIncomplete)
		return Result{}, i.incomplete(ctx, userID, courseID)
	}

	return i.create(ctx, userID, courseID)
}

func (i *Issuer) create(ctx context.Context, userID, courseID string) (Result, error) {
	var lastErr error
	for attempt := 0; attempt < maxCodeAttempts; attempt++ {
		cert := model.Certificate{
			ID:        uuid.NewString(),
			UserID:    userID,
			CourseID:  courseID,
			Code:      i.codes(),
			IssueDate: i.now().UTC(),
		}

		stored, err := i.store.InsertCertificate(ctx, cert)
		switch {
		case err == nil:
			metrics.RecordCertificateOutcome(metrics.OutcomeCreated)
			i.log.Info(ctx, "certificate issued",
				logger.String("user_id", userID),
				logger.String("course_id", courseID),
				logger.String("certificate_id", stored.Code))
			return Result{Code: stored.Code, Certificate: stored, Created: true}, nil
		case errors.Is(err, repository.ErrDuplicate):
			return i.lostRace(ctx, userID, courseID)
		case errors.Is(err, repository.ErrCodeCollision):
			lastErr = err
			i.log.Warn(ctx, "certificate code collision", logger.String("certificate_id", cert.Code))
			continue
		default:
			metrics.RecordCertificateOutcome(metrics.OutcomeError)
			return Result{}, fmt.Errorf("%w: %w", ErrIssueFailed, err)
		}
	}
	metrics.RecordCertificateOutcome(metrics.OutcomeError)
	return Result{}, fmt.Errorf("%w: %w", ErrIssueFailed, lastErr)
}

// lostRace re-reads the row written by a concurrent request for the same pair.
func (i *Issuer) lostRace(ctx context.Context, userID, courseID string) (Result, error) {
	winner, err := i.store.FindCertificate(ctx, userID, courseID)
	if err != nil {
		metrics.RecordCertificateOutcome(metrics.OutcomeError)
		return Result{}, fmt.Errorf("%w: re-read after conflict: %w", ErrIssueFailed, err)
	}
	metrics.RecordCertificateOutcome(metrics.OutcomeRaceExisting)
	i.log.Debug(ctx, "concurrent issuance resolved to existing certificate",
		logger.String("user_id", userID),
		logger.String("course_id", courseID))
	return existingResult(winner), nil
}

func (i *Issuer) incomplete(ctx context.Context, userID, courseID string) error {
	pct, err := i.store.CourseProgress(ctx, userID, courseID)
	if err != nil {
		i.log.Warn(ctx, "course progress unavailable", logger.Error(err))
		return &IncompleteError{}
	}
	return &IncompleteError{ProgressPercent: &pct}
}

func existingResult(c model.Certificate) Result {
	return Result{Code: c.Code, Certificate: c, Created: false}
}
