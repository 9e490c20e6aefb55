package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/go-playground/validator/v10"
)

const maxBodyBytes = 1 << 20

var validate = validator.New(validator.WithRequiredStructEnabled())

// scoreRequest mirrors the body of POST /score-quiz.
type scoreRequest struct {
	QuizID string `json:"quiz_id" validate:"required"`
	// A null answer is kept as nil and means no selection.
	UserAnswers map[string]*int `json:"user_answers" validate:"required"`
}

// answers returns the submitted choices with null entries dropped.
func (r *scoreRequest) answers() map[string]int {
	out := make(map[string]int, len(r.UserAnswers))
	for k, v := range r.UserAnswers {
		if v != nil {
			out[k] = *v
		}
	}
	return out
}

// certificateRequest mirrors the body of POST /generate-certificate.
type certificateRequest struct {
	UserID   string `json:"user_id" validate:"required"`
	CourseID string `json:"course_id" validate:"required"`
}

// decodeRequest reads a JSON body into dst and checks required fields.
func decodeRequest(w http.ResponseWriter, r *http.Request, dst any) error {
	body := http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(body).Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return errors.New("empty body")
		}
		return fmt.Errorf("decode body: %w", err)
	}
	if err := validate.Struct(dst); err != nil {
		return fmt.Errorf("validate body: %w", err)
	}
	return nil
}
