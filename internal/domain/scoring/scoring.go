// Package scoring computes quiz results from an answer key and a submitted
// answer sheet. Everything here is pure: nothing is persisted.
package scoring

import "github.com/softai/coursecore/internal/domain/model"

// maxScorePercent bounds ScorePercent from above.
const maxScorePercent = 100

// QuestionResult is the outcome for a single question.
type QuestionResult struct {
	QuestionID   string
	Correct      bool
	Explanation  string
	PointsEarned int
	CorrectIndex int
	UserAnswer   int
}

// Result contains the computed score for one attempt.
type Result struct {
	ScorePercent int
	Passed       bool
	TotalPoints  int
	EarnedPoints int
	Questions    []QuestionResult
}

// Score grades sheet against questions, which must already be in quiz order.
// The i-th question is matched with the answer at position i regardless of
// the question's id or stored order value.
func Score(quiz model.Quiz, questions []model.Question, sheet AnswerSheet) Result {
	res := Result{Questions: make([]QuestionResult, 0, len(questions))}

	for i, q := range questions {
		res.TotalPoints += q.Points

		answer := sheet.Answer(i)
		correct := answer != NoSelection && answer == q.CorrectIndex

		earned := 0
		if correct {
			earned = q.Points
			res.EarnedPoints += q.Points
		}

		res.Questions = append(res.Questions, QuestionResult{
			QuestionID:   q.ID,
			Correct:      correct,
			Explanation:  q.Explanation,
			PointsEarned: earned,
			CorrectIndex: q.CorrectIndex,
			UserAnswer:   answer,
		})
	}

	res.ScorePercent = Percent(res.EarnedPoints, res.TotalPoints)
	res.Passed = res.ScorePercent >= quiz.PassScorePercent
	return res
}

// Percent returns round(100*earned/total) with ties rounded away from zero,
// or 0 when total is not positive. The result is clamped to [0, 100].
func Percent(earned, total int) int {
	if total <= 0 || earned <= 0 {
		return 0
	}
	if earned >= total {
		return maxScorePercent
	}
	// floor((100*earned)/total + 1/2) in integers; exact for non-negative inputs.
	return (2*maxScorePercent*earned + total) / (2 * total)
}
