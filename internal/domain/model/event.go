package model

import "time"

// Routing keys for domain events.
const (
	EventQuizScored        = "quiz.scored"
	EventCertificateIssued = "certificate.issued"
)

// Event is a domain event handed to the publishing pipeline.
// Payload is serialized as JSON by the publisher.
type Event struct {
	EventID    string    `json:"event_id"`    // unique id, lets consumers dedupe
	RoutingKey string    `json:"routing_key"` // e.g. "certificate.issued"
	UserID     string    `json:"user_id"`
	Payload    any       `json:"payload"`
	TS         time.Time `json:"ts"`
}

// QuizScored is the payload of EventQuizScored.
type QuizScored struct {
	QuizID       string         `json:"quiz_id"`
	ScorePercent int            `json:"score_percent"`
	Passed       bool           `json:"passed"`
	EarnedPoints int            `json:"earned_points"`
	TotalPoints  int            `json:"total_points"`
	Answers      map[string]int `json:"answers"`
}

// CertificateIssued is the payload of EventCertificateIssued.
type CertificateIssued struct {
	Certificate Certificate `json:"certificate"`
}
