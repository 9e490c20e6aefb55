// Package model contains domain models passed between layers.
package model

// Quiz is the scoring-relevant part of a quiz row.
type Quiz struct {
	ID               string `json:"id"`
	PassScorePercent int    `json:"pass_score_percent"`
}

// Question is one answer-key entry of a quiz.
// Order is unique within a quiz; ascending Order defines the positions that
// submitted answers refer to.
type Question struct {
	ID           string `json:"id"`
	QuizID       string `json:"quiz_id"`
	Order        int    `json:"order"`
	CorrectIndex int    `json:"correct_index"`
	Points       int    `json:"points"`
	Explanation  string `json:"explanation"`
}
