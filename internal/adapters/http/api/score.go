package api

import (
	"fmt"
	"net/http"

	"github.com/softai/coursecore/pkg/logger"
)

// ScoreHandler handles quiz scoring requests.
type ScoreHandler struct {
	deps   Dependencies
	auth   authenticator
	logger logger.Logger
}

// NewScoreHandler creates a new score handler.
func NewScoreHandler(deps Dependencies, auth authenticator, log logger.Logger) *ScoreHandler {
	return &ScoreHandler{deps: deps, auth: auth, logger: log}
}

// HandleScoreQuiz handles POST /score-quiz requests.
func (h *ScoreHandler) HandleScoreQuiz(w http.ResponseWriter, r *http.Request) {
	const op = "api.score_quiz"
	ctx := r.Context()

	caller, err := h.auth.authenticate(r)
	if err != nil {
		writeFailure(ctx, w, h.logger, fmt.Errorf("%s: %w", op, err))
		return
	}

	var req scoreRequest
	if err := decodeRequest(w, r, &req); err != nil {
		h.logger.Debug(ctx, "rejected score request", logger.Error(WrapKind(op, ErrBadRequest, err)))
		writeError(w, http.StatusBadRequest, "bad_request", msgScoreRequired)
		return
	}

	res, err := h.deps.ScoreQuiz(ctx, caller, req.QuizID, req.answers())
	if err != nil {
		writeFailure(ctx, w, h.logger, fmt.Errorf("%s: %w", op, err))
		return
	}
	writeJSON(w, http.StatusOK, res)
}
