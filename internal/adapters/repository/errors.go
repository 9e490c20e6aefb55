package repository

import "errors"

// Sentinel kinds for gateway errors.
var (
	ErrNotFound = errors.New("record not found")
	// ErrDuplicate reports a (user_id, course_id) uniqueness violation.
	ErrDuplicate = errors.New("certificate already exists for user and course")
	// ErrCodeCollision reports a clash on the human-facing certificate code.
	ErrCodeCollision = errors.New("certificate code already in use")
)
