package repository

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/softai/coursecore/internal/domain/dedupe"
	"github.com/softai/coursecore/internal/domain/model"
)

// Memory is an in-process gateway for local runs and tests.
// The (user, course) uniqueness of certificates is enforced by a deduper
// claimed under the write lock, so a losing insert can always re-read the
// winning row.
type Memory struct {
	mu           sync.RWMutex
	quizzes      map[string]model.Quiz
	questions    map[string][]model.Question
	certificates map[string]model.Certificate
	codes        map[string]struct{}
	progress     map[string]int

	pairs dedupe.Deduper
	now   func() time.Time
}

// NewMemory returns an empty store.
func NewMemory() *Memory {
	return &Memory{
		quizzes:      make(map[string]model.Quiz),
		questions:    make(map[string][]model.Question),
		certificates: make(map[string]model.Certificate),
		codes:        make(map[string]struct{}),
		progress:     make(map[string]int),
		pairs:        dedupe.NewInMemoryDeduper(),
		now:          time.Now,
	}
}

// PutQuiz stores a quiz and replaces its questions.
func (m *Memory) PutQuiz(quiz model.Quiz, questions ...model.Question) {
	m.mu.Lock()
	defer m.mu.Unlock()

	qs := make([]model.Question, len(questions))
	copy(qs, questions)
	for i := range qs {
		qs[i].QuizID = quiz.ID
	}
	sort.SliceStable(qs, func(i, j int) bool { return qs[i].Order < qs[j].Order })

	m.quizzes[quiz.ID] = quiz
	m.questions[quiz.ID] = qs
}

// SetProgress records a user's completion percentage for a course.
// A course counts as complete at 100.
func (m *Memory) SetProgress(userID, courseID string, percent int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.progress[dedupe.Key(userID, courseID)] = clampPercent(percent)
}

// CertificateCount returns the number of stored certificates.
func (m *Memory) CertificateCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.certificates)
}

func (m *Memory) GetQuiz(_ context.Context, quizID string) (q model.Quiz, err error) {
	defer func(start time.Time) { observe(opGetQuiz, start, err) }(time.Now())

	m.mu.RLock()
	defer m.mu.RUnlock()
	q, ok := m.quizzes[quizID]
	if !ok {
		return model.Quiz{}, ErrNotFound
	}
	return q, nil
}

func (m *Memory) ListQuestions(_ context.Context, quizID string) (qs []model.Question, err error) {
	defer func(start time.Time) { observe(opListQuestions, start, err) }(time.Now())

	m.mu.RLock()
	defer m.mu.RUnlock()
	src := m.questions[quizID]
	qs = make([]model.Question, len(src))
	copy(qs, src)
	return qs, nil
}

func (m *Memory) FindCertificate(_ context.Context, userID, courseID string) (c model.Certificate, err error) {
	defer func(start time.Time) { observe(opFindCertificate, start, err) }(time.Now())

	m.mu.RLock()
	defer m.mu.RUnlock()
	c, ok := m.certificates[dedupe.Key(userID, courseID)]
	if !ok {
		return model.Certificate{}, ErrNotFound
	}
	return c, nil
}

func (m *Memory) InsertCertificate(ctx context.Context, cert model.Certificate) (model.Certificate, error) {
	start := time.Now()
	defer observe(opInsertCert, start, nil)

	m.mu.Lock()
	defer m.mu.Unlock()

	key := dedupe.Key(cert.UserID, cert.CourseID)
	if m.pairs.SeenAndRecord(ctx, key) {
		return model.Certificate{}, fmt.Errorf("%w: %s/%s", ErrDuplicate, cert.UserID, cert.CourseID)
	}

	if _, taken := m.codes[cert.Code]; taken {
		m.pairs.Unrecord(ctx, key)
		return model.Certificate{}, fmt.Errorf("%w: %s", ErrCodeCollision, cert.Code)
	}

	if cert.ID == "" {
		cert.ID = uuid.NewString()
	}
	cert.CreatedAt = m.now().UTC()
	m.certificates[key] = cert
	m.codes[cert.Code] = struct{}{}
	return cert, nil
}

func (m *Memory) IsCourseComplete(_ context.Context, userID, courseID string) (done bool, err error) {
	defer func(start time.Time) { observe(opCompletion, start, err) }(time.Now())

	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.progress[dedupe.Key(userID, courseID)] >= 100, nil
}

func (m *Memory) CourseProgress(_ context.Context, userID, courseID string) (pct int, err error) {
	defer func(start time.Time) { observe(opProgress, start, err) }(time.Now())

	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.progress[dedupe.Key(userID, courseID)], nil
}

// Close is a no-op.
func (m *Memory) Close() error { return nil }
