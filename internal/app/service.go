// Package service provides the core business service that implements
// the dependencies required by the HTTP API.
package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	eventqueue "github.com/softai/coursecore/internal/adapters/mq/queue"
	workerpool "github.com/softai/coursecore/internal/adapters/mq/worker"
	"github.com/softai/coursecore/internal/adapters/repository"
	"github.com/softai/coursecore/internal/domain/certify"
	"github.com/softai/coursecore/internal/domain/identity"
	"github.com/softai/coursecore/internal/domain/model"
	"github.com/softai/coursecore/internal/domain/scoring"
	"github.com/softai/coursecore/internal/domain/types"
	"github.com/softai/coursecore/pkg/logger"
	"github.com/softai/coursecore/pkg/metrics"
)

const (
	defaultWorkerCount = 2
	defaultQueueSize   = 1024
	eventDrainTimeout  = 10 * time.Second
	defaultCertPrefix  = certify.DefaultPrefix
)

// Service scores quiz attempts and issues certificates.
type Service struct {
	mu sync.RWMutex

	// Core components
	quizzes repository.QuizReader
	issuer  *certify.Issuer

	// Event pipeline; nil publisher disables it.
	publisher  workerpool.Publisher
	eventQueue eventqueue.Queue
	workerPool *workerpool.Pool

	// Configuration
	workerCount int
	queueSize   int
	certPrefix  string
	now         func() time.Time

	started bool
	logger  logger.Logger
}

// Option applies a configuration option to the Service.
type Option func(*Service)

// WithWorkerCount sets the number of event publishing workers.
func WithWorkerCount(count int) Option {
	return func(s *Service) {
		if count > 0 {
			s.workerCount = count
		}
	}
}

// WithQueueSize sets the capacity of the event outbox.
func WithQueueSize(size int) Option {
	return func(s *Service) {
		if size > 0 {
			s.queueSize = size
		}
	}
}

// WithPublisher enables domain events.
func WithPublisher(p workerpool.Publisher) Option {
	return func(s *Service) { s.publisher = p }
}

// WithCertificatePrefix sets the certificate code prefix.
func WithCertificatePrefix(prefix string) Option {
	return func(s *Service) {
		if prefix != "" {
			s.certPrefix = prefix
		}
	}
}

// WithClock sets the clock used for issue dates and event timestamps.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

// WithLogger sets a custom logger for the service.
func WithLogger(l logger.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}

// New constructs a Service over the given gateway parts.
func New(quizzes repository.QuizReader, certs certify.Store, opts ...Option) *Service {
	s := &Service{
		quizzes:     quizzes,
		workerCount: defaultWorkerCount,
		queueSize:   defaultQueueSize,
		certPrefix:  defaultCertPrefix,
		now:         time.Now,
		logger:      logger.Nop(),
	}
	for _, opt := range opts {
		opt(s)
	}

	s.issuer = certify.NewIssuer(certs,
		certify.WithPrefix(s.certPrefix),
		certify.WithClock(s.now),
		certify.WithLogger(s.logger.Named("certify")),
	)
	return s
}

// Start launches the event pipeline when a publisher is configured.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return nil
	}

	if s.publisher != nil {
		s.eventQueue = eventqueue.NewInMemoryQueue(eventqueue.WithCapacity(s.queueSize))
		s.workerPool = workerpool.NewPool(s.eventQueue, s.publisher,
			workerpool.WithWorkers(s.workerCount),
			workerpool.WithLogger(s.logger.Named("events")),
		)
		s.workerPool.Start(ctx)
	}

	s.started = true
	s.logger.Info(ctx, "course service started",
		logger.Bool("events", s.publisher != nil),
		logger.Int("workers", s.workerCount),
		logger.Int("queueSize", s.queueSize),
	)
	return nil
}

// Stop drains pending events and shuts the pipeline down.
func (s *Service) Stop(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.started {
		return nil
	}
	s.started = false

	if s.workerPool == nil {
		return nil
	}
	dctx, cancel := context.WithTimeout(ctx, eventDrainTimeout)
	defer cancel()
	if err := s.workerPool.Shutdown(dctx); err != nil {
		return fmt.Errorf("stop event pipeline: %w", err)
	}
	s.logger.Info(ctx, "course service stopped")
	return nil
}

// ScoreQuiz grades answers against the quiz's answer key. Answers are
// keyed by zero-based question position in ascending question order.
func (s *Service) ScoreQuiz(ctx context.Context, caller identity.Identity, quizID string, answers map[string]int) (types.ScoreResponse, error) {
	quiz, err := s.quizzes.GetQuiz(ctx, quizID)
	if errors.Is(err, repository.ErrNotFound) {
		return types.ScoreResponse{}, fmt.Errorf("%w: %s", ErrQuizNotFound, quizID)
	}
	if err != nil {
		return types.ScoreResponse{}, fmt.Errorf("%w: %w", ErrQuizFetchFailed, err)
	}

	questions, err := s.quizzes.ListQuestions(ctx, quizID)
	if err != nil {
		return types.ScoreResponse{}, fmt.Errorf("%w: %w", ErrQuestionFetchFailed, err)
	}

	res := scoring.Score(quiz, questions, scoring.NewAnswerSheet(answers))
	metrics.RecordQuizScored(res.ScorePercent, res.Passed)
	s.logger.Debug(ctx, "quiz scored",
		logger.String("quiz_id", quizID),
		logger.String("user_id", caller.UserID),
		logger.Int("score_percent", res.ScorePercent),
		logger.Bool("passed", res.Passed),
	)

	s.emit(ctx, model.EventQuizScored, caller.UserID, model.QuizScored{
		QuizID:       quizID,
		ScorePercent: res.ScorePercent,
		Passed:       res.Passed,
		EarnedPoints: res.EarnedPoints,
		TotalPoints:  res.TotalPoints,
		Answers:      answers,
	})

	return toScoreResponse(res), nil
}

// GenerateCertificate issues, or returns the existing, certificate for
// (userID, courseID) on behalf of caller.
func (s *Service) GenerateCertificate(ctx context.Context, caller identity.Identity, userID, courseID string) (certify.Result, error) {
	res, err := s.issuer.Issue(ctx, caller, userID, courseID)
	if err != nil {
		return certify.Result{}, err
	}
	if res.Created {
		s.emit(ctx, model.EventCertificateIssued, userID, model.CertificateIssued{Certificate: res.Certificate})
	}
	return res, nil
}

// emit hands an event to the outbox. Events are best effort and never fail
// the request that produced them.
func (s *Service) emit(ctx context.Context, routingKey, userID string, payload any) {
	s.mu.RLock()
	q := s.eventQueue
	started := s.started
	s.mu.RUnlock()
	if q == nil || !started {
		return
	}

	e := model.Event{
		EventID:    uuid.NewString(),
		RoutingKey: routingKey,
		UserID:     userID,
		Payload:    payload,
		TS:         s.now().UTC(),
	}
	if err := q.Enqueue(ctx, e); err != nil {
		s.logger.Warn(ctx, "event not queued",
			logger.String("routing_key", routingKey),
			logger.Error(err),
		)
	}
}

// GetStats returns service statistics for the health endpoint.
func (s *Service) GetStats() map[string]interface{} {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stats := map[string]interface{}{
		"started": s.started,
		"events":  s.publisher != nil,
	}
	if s.eventQueue != nil {
		stats["queueLength"] = s.eventQueue.Len()
	}
	return stats
}

func toScoreResponse(res scoring.Result) types.ScoreResponse {
	out := types.ScoreResponse{
		ScorePercent:       res.ScorePercent,
		Passed:             res.Passed,
		TotalPoints:        res.TotalPoints,
		EarnedPoints:       res.EarnedPoints,
		PerQuestionResults: make([]types.QuestionResult, 0, len(res.Questions)),
	}
	for _, q := range res.Questions {
		out.PerQuestionResults = append(out.PerQuestionResults, types.QuestionResult{
			QuestionID:   q.QuestionID,
			Correct:      q.Correct,
			Explanation:  q.Explanation,
			PointsEarned: q.PointsEarned,
			CorrectIndex: q.CorrectIndex,
			UserAnswer:   q.UserAnswer,
		})
	}
	return out
}
