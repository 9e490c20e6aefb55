// Package repository is the data store gateway: narrow reads and writes of
// quizzes, questions and certificates plus the store-side course completion
// and progress computations.
package repository

import (
	"context"
	"time"

	"github.com/softai/coursecore/internal/domain/model"
	"github.com/softai/coursecore/pkg/metrics"
)

// Operation names used for metrics and logs.
const (
	opGetQuiz         = "get_quiz"
	opListQuestions   = "list_questions"
	opFindCertificate = "find_certificate"
	opInsertCert      = "insert_certificate"
	opCompletion      = "check_course_completion"
	opProgress        = "get_course_progress"
)

// QuizReader loads answer keys.
type QuizReader interface {
	// GetQuiz returns ErrNotFound when the quiz does not exist.
	GetQuiz(ctx context.Context, quizID string) (model.Quiz, error)
	// ListQuestions returns the quiz's questions ordered by Order ascending.
	ListQuestions(ctx context.Context, quizID string) ([]model.Question, error)
}

// CertificateStore reads and creates certificates.
type CertificateStore interface {
	// FindCertificate returns ErrNotFound when no certificate exists for the pair.
	FindCertificate(ctx context.Context, userID, courseID string) (model.Certificate, error)
	// InsertCertificate persists cert. It returns ErrDuplicate when a
	// certificate for (UserID, CourseID) already exists and ErrCodeCollision
	// when cert.Code is taken.
	InsertCertificate(ctx context.Context, cert model.Certificate) (model.Certificate, error)
}

// CompletionChecker exposes the store-side course completion computations.
type CompletionChecker interface {
	IsCourseComplete(ctx context.Context, userID, courseID string) (bool, error)
	// CourseProgress returns the completion percentage in [0, 100].
	CourseProgress(ctx context.Context, userID, courseID string) (int, error)
}

// Store is the full gateway.
type Store interface {
	QuizReader
	CertificateStore
	CompletionChecker
	Close() error
}

// observe records latency and failure metrics for one gateway call.
// Not-found results are part of normal control flow and are not failures.
func observe(op string, start time.Time, err error) {
	metrics.RecordStoreLatency(op, float64(time.Since(start).Microseconds())/1000)
	if err != nil && err != ErrNotFound {
		metrics.RecordStoreError(op)
	}
}
