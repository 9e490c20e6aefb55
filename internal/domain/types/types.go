// Package types contains the response shapes shared by the app and HTTP layers.
package types

import "github.com/softai/coursecore/internal/domain/model"

// QuestionResult is the per-question breakdown of a scored attempt.
type QuestionResult struct {
	QuestionID   string `json:"question_id"`
	Correct      bool   `json:"correct"`
	Explanation  string `json:"explanation"`
	PointsEarned int    `json:"points_earned"`
	CorrectIndex int    `json:"correct_index"`
	UserAnswer   int    `json:"user_answer"` // -1 when nothing was selected
}

// ScoreResponse is the body of a successful POST /score-quiz.
type ScoreResponse struct {
	ScorePercent       int              `json:"score_percent"`
	Passed             bool             `json:"passed"`
	PerQuestionResults []QuestionResult `json:"per_question_results"`
	TotalPoints        int              `json:"total_points"`
	EarnedPoints       int              `json:"earned_points"`
}

// CertificateResponse is the body of a successful POST /generate-certificate.
// Certificate is omitted when the certificate already existed.
type CertificateResponse struct {
	Message       string             `json:"message"`
	CertificateID string             `json:"certificate_id"`
	Certificate   *model.Certificate `json:"certificate,omitempty"`
}
