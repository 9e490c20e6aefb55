package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/softai/coursecore/internal/smoke"
	"github.com/softai/coursecore/pkg/logger"
)

const defaultRunTimeout = 2 * time.Minute

func main() {
	var (
		baseURL     = flag.String("url", "http://localhost:8080", "Base URL of the service")
		token       = flag.String("token", "", "Bearer token (default: signed from -secret)")
		secret      = flag.String("secret", os.Getenv("SOFTAI_JWT_SECRET"), "JWT secret used to sign a token for -user")
		userID      = flag.String("user", "", "User id to certify")
		courseID    = flag.String("course", "", "Course id to certify")
		quizID      = flag.String("quiz", "", "Quiz id to score (optional)")
		answers     = flag.String("answers", "{}", `Answers as JSON, e.g. {"0":2,"1":0}`)
		concurrency = flag.Int("concurrency", smoke.DefaultConcurrency, "Simultaneous certificate requests")
		timeout     = flag.Duration("timeout", smoke.DefaultTimeout, "HTTP request timeout")
		format      = flag.String("log-format", logger.FormatText, "Log format: text or json")
	)
	flag.Parse()

	if err := logger.Init(logger.WithFormat(*format)); err != nil {
		os.Stderr.WriteString("failed to initialize logging: " + err.Error() + "\n")
		os.Exit(2)
	}

	var parsed map[string]int
	if err := json.Unmarshal([]byte(*answers), &parsed); err != nil {
		os.Stderr.WriteString("invalid -answers: " + err.Error() + "\n")
		os.Exit(2)
	}

	runner, err := smoke.NewRunner(smoke.Config{
		BaseURL:     *baseURL,
		Token:       *token,
		JWTSecret:   *secret,
		UserID:      *userID,
		CourseID:    *courseID,
		QuizID:      *quizID,
		Answers:     parsed,
		Concurrency: *concurrency,
		Timeout:     *timeout,
	}, logger.Named("smoke"))
	if err != nil {
		os.Stderr.WriteString(err.Error() + "\n")
		os.Exit(2)
	}

	ctx, cancel := context.WithTimeout(context.Background(), defaultRunTimeout)
	defer cancel()

	rep, err := runner.Run(ctx)
	fmt.Printf("requests=%d created=%d existing=%d codes=%v rejected=%v duration=%s\n",
		rep.CertificateRequests, rep.Created, rep.Existing, rep.Codes, rep.Rejected, rep.Duration)
	if err != nil {
		os.Stderr.WriteString("smoke run failed: " + err.Error() + "\n")
		os.Exit(1)
	}
}
