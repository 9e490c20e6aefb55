package smoke

import (
	"context"
	"fmt"
	"net/http"
	"slices"
	"sync"
	"time"

	"github.com/softai/coursecore/internal/domain/types"
	"github.com/softai/coursecore/pkg/logger"
)

// Runner executes smoke runs against one service.
type Runner struct {
	cfg Config
	log logger.Logger
	now func() time.Time
}

// NewRunner validates cfg and returns a Runner.
func NewRunner(cfg Config, log logger.Logger) (*Runner, error) {
	cfg.withDefaults()
	if cfg.Token == "" && cfg.JWTSecret == "" {
		return nil, ErrNoCredential
	}
	if cfg.BaseURL == "" || cfg.UserID == "" || cfg.CourseID == "" {
		return nil, fmt.Errorf("base url, user id and course id are required")
	}
	return &Runner{cfg: cfg, log: log, now: time.Now}, nil
}

// Run executes the complete smoke run.
func (r *Runner) Run(ctx context.Context) (Report, error) {
	rep := Report{StartTime: r.now(), Rejected: map[int]int{}}

	r.log.Info(ctx, "starting coursecore smoke run",
		logger.String("baseURL", r.cfg.BaseURL),
		logger.String("userID", r.cfg.UserID),
		logger.String("courseID", r.cfg.CourseID),
		logger.Int("concurrency", r.cfg.Concurrency))

	token := r.cfg.Token
	if token == "" {
		var err error
		if token, err = signToken(r.cfg.JWTSecret, r.cfg.Audience, r.cfg.UserID, r.now()); err != nil {
			return rep, err
		}
	}
	c := newClient(r.cfg.BaseURL, token, r.cfg.Timeout)

	// Step 1: health
	status, err := c.get(ctx, "/healthz")
	if err != nil {
		return rep, fmt.Errorf("health check: %w", err)
	}
	if status != http.StatusOK {
		return rep, fmt.Errorf("%w: status %d", ErrUnhealthy, status)
	}

	// Step 2: scoring
	if r.cfg.QuizID != "" {
		var score types.ScoreResponse
		status, err := c.post(ctx, "/score-quiz", map[string]any{
			"quiz_id":      r.cfg.QuizID,
			"user_answers": r.cfg.Answers,
		}, &score)
		if err != nil {
			return rep, fmt.Errorf("score quiz: %w", err)
		}
		if status != http.StatusOK {
			return rep, fmt.Errorf("score quiz: unexpected status %d", status)
		}
		rep.Score = &score
		r.log.Info(ctx, "quiz scored",
			logger.Int("scorePercent", score.ScorePercent),
			logger.Bool("passed", score.Passed))
	}

	// Step 3: concurrent issuance
	r.issueConcurrently(ctx, c, &rep)

	rep.Duration = r.now().Sub(rep.StartTime)
	if err := verify(&rep); err != nil {
		return rep, err
	}
	r.log.Info(ctx, "smoke run completed",
		logger.Int("created", rep.Created),
		logger.Int("existing", rep.Existing),
		logger.String("duration", rep.Duration.String()))
	return rep, nil
}

func (r *Runner) issueConcurrently(ctx context.Context, c *client, rep *Report) {
	var (
		mu    sync.Mutex
		wg    sync.WaitGroup
		start = make(chan struct{})
		codes = map[string]struct{}{}
	)
	body := map[string]string{"user_id": r.cfg.UserID, "course_id": r.cfg.CourseID}

	for i := 0; i < r.cfg.Concurrency; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start

			var resp types.CertificateResponse
			status, err := c.post(ctx, "/generate-certificate", body, &resp)

			mu.Lock()
			defer mu.Unlock()
			rep.CertificateRequests++
			switch {
			case err != nil:
				r.log.Warn(ctx, "certificate request failed", logger.Error(err))
				rep.Rejected[status]++
			case status != http.StatusOK:
				rep.Rejected[status]++
			default:
				codes[resp.CertificateID] = struct{}{}
				if resp.Certificate != nil {
					rep.Created++
				} else {
					rep.Existing++
				}
			}
		}()
	}
	close(start)
	wg.Wait()

	for code := range codes {
		rep.Codes = append(rep.Codes, code)
	}
	slices.Sort(rep.Codes)
}

// verify checks that every request succeeded with one shared code and at
// most one request created the certificate.
func verify(rep *Report) error {
	switch {
	case len(rep.Rejected) > 0:
		return fmt.Errorf("%w: rejected responses %v", ErrInconsistent, rep.Rejected)
	case len(rep.Codes) != 1:
		return fmt.Errorf("%w: %d distinct codes", ErrInconsistent, len(rep.Codes))
	case rep.Created > 1:
		return fmt.Errorf("%w: %d requests created a certificate", ErrInconsistent, rep.Created)
	}
	return nil
}
