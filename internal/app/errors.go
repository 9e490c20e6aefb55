package service

import "errors"

// Sentinel kinds for service errors.
var (
	ErrQuizNotFound        = errors.New("quiz not found")
	ErrQuizFetchFailed     = errors.New("failed to fetch quiz")
	ErrQuestionFetchFailed = errors.New("failed to fetch questions")
)
