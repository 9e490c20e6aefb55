package certify

import (
	"errors"
	"fmt"
)

var (
	// ErrForbidden is returned when the caller asks for another user's certificate.
	ErrForbidden = errors.New("unauthorized to generate certificate for another user")
	// ErrCourseNotComplete is returned when the store reports the course unfinished.
	ErrCourseNotComplete = errors.New("course not completed yet")
	// ErrCompletionCheckFailed wraps failures of the completion computation.
	ErrCompletionCheckFailed = errors.New("course completion check failed")
	// ErrIssueFailed wraps store failures while reading or creating certificates.
	ErrIssueFailed = errors.New("certificate issuance failed")
)

// IncompleteError carries the caller's progress alongside ErrCourseNotComplete.
type IncompleteError struct {
	// ProgressPercent is nil when the store could not report progress.
	ProgressPercent *int
}

func (e *IncompleteError) Error() string {
	if e.ProgressPercent == nil {
		return ErrCourseNotComplete.Error()
	}
	return fmt.Sprintf("%s (%d%%)", ErrCourseNotComplete, *e.ProgressPercent)
}

func (e *IncompleteError) Unwrap() error { return ErrCourseNotComplete }
