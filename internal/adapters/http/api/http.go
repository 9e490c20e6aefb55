// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	service "github.com/softai/coursecore/internal/app"
	"github.com/softai/coursecore/internal/domain/certify"
	"github.com/softai/coursecore/internal/domain/identity"
	"github.com/softai/coursecore/internal/domain/types"
	"github.com/softai/coursecore/pkg/logger"
)

// Public messages.
const (
	msgScoreRequired       = "quiz_id and user_answers are required"
	msgCertificateRequired = "user_id and course_id are required"
	msgQuizNotFound        = "Quiz not found"
	msgQuestionsFailed     = "Failed to fetch questions"
	msgForbidden           = "Unauthorized to generate certificate for another user"
	msgNotCompleted        = "Course not completed yet"
	msgUnauthorized        = "Unauthorized"
	msgInternal            = "Internal server error"
	msgCertificateCreated  = "Certificate generated successfully"
	msgCertificateExists   = "Certificate already exists"
	msgRateLimited         = "Too many requests"
)

// Dependencies required by HTTP handlers. Using an interface bundle keeps
// the handler layer loosely coupled to implementations in other packages.
type Dependencies interface {
	ScoreQuiz(ctx context.Context, caller identity.Identity, quizID string, answers map[string]int) (types.ScoreResponse, error)
	GenerateCertificate(ctx context.Context, caller identity.Identity, userID, courseID string) (certify.Result, error)
}

// StatsProvider reports service state for the health endpoint.
type StatsProvider interface {
	GetStats() map[string]interface{}
}

// Server wires HTTP routes for the business API.
type Server struct {
	scoreHandler       *ScoreHandler
	certificateHandler *CertificateHandler
	healthHandler      *HealthHandler

	limiter *RateLimiter
	logger  logger.Logger
}

// Option configures a Server.
type Option func(*Server)

// WithRateLimiter limits the business endpoints per client IP.
func WithRateLimiter(l *RateLimiter) Option {
	return func(s *Server) { s.limiter = l }
}

// WithLogger sets the request logger.
func WithLogger(l logger.Logger) Option {
	return func(s *Server) {
		if l != nil {
			s.logger = l
		}
	}
}

// NewServer creates a new API server with all handlers.
func NewServer(deps Dependencies, verifier identity.Verifier, stats StatsProvider, opts ...Option) *Server {
	s := &Server{logger: logger.Nop()}
	for _, opt := range opts {
		opt(s)
	}

	auth := authenticator{verifier: verifier}
	s.scoreHandler = NewScoreHandler(deps, auth, s.logger)
	s.certificateHandler = NewCertificateHandler(deps, auth, s.logger)
	s.healthHandler = NewHealthHandler(stats)
	return s
}

// Register attaches all HTTP routes to mux.
func (s *Server) Register(_ context.Context, mux *http.ServeMux) {
	mux.HandleFunc("/healthz", MetricsMiddleware(s.healthHandler.HandleHealth, "healthz"))
	mux.Handle("/metrics", MetricsHandler())

	mux.HandleFunc("/score-quiz", s.business(s.scoreHandler.HandleScoreQuiz, "score-quiz"))
	mux.HandleFunc("/generate-certificate", s.business(s.certificateHandler.HandleGenerateCertificate, "generate-certificate"))
}

// business stacks the middleware shared by the POST endpoints. CORS is
// outermost so that preflights, 405s and 429s all carry the CORS headers.
func (s *Server) business(h http.HandlerFunc, endpoint string) http.HandlerFunc {
	if s.limiter != nil {
		h = s.limiter.Middleware(h, endpoint)
	}
	h = CORS(h)
	h = LoggingMiddleware(h, s.logger)
	return MetricsMiddleware(h, endpoint)
}

type errorResponse struct {
	Error           string `json:"error"`
	Code            string `json:"code"`
	ProgressPercent *int   `json:"progress_percent,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code, msg string) {
	writeJSON(w, status, errorResponse{Error: msg, Code: code})
}

// writeFailure maps a domain error to its HTTP status and public message.
// Internal failures are logged and reported without detail.
func writeFailure(ctx context.Context, w http.ResponseWriter, log logger.Logger, err error) {
	var incomplete *certify.IncompleteError
	switch {
	case errors.Is(err, identity.ErrMissingCredential), errors.Is(err, identity.ErrInvalidCredential):
		writeError(w, http.StatusUnauthorized, "unauthorized", msgUnauthorized)
	case errors.Is(err, certify.ErrForbidden):
		writeError(w, http.StatusForbidden, "forbidden", msgForbidden)
	case errors.Is(err, ErrRateLimited):
		writeError(w, http.StatusTooManyRequests, "rate_limited", msgRateLimited)
	case errors.Is(err, service.ErrQuizNotFound):
		writeError(w, http.StatusNotFound, "not_found", msgQuizNotFound)
	case errors.As(err, &incomplete):
		writeJSON(w, http.StatusBadRequest, errorResponse{
			Error:           msgNotCompleted,
			Code:            "course_not_completed",
			ProgressPercent: incomplete.ProgressPercent,
		})
	case errors.Is(err, certify.ErrCourseNotComplete):
		writeError(w, http.StatusBadRequest, "course_not_completed", msgNotCompleted)
	case errors.Is(err, service.ErrQuestionFetchFailed):
		log.Error(ctx, "request failed", logger.Error(err))
		writeError(w, http.StatusInternalServerError, "internal_error", msgQuestionsFailed)
	default:
		log.Error(ctx, "request failed", logger.Error(err))
		writeError(w, http.StatusInternalServerError, "internal_error", msgInternal)
	}
}
