package api

import (
	"fmt"
	"net/http"

	"github.com/softai/coursecore/internal/domain/types"
	"github.com/softai/coursecore/pkg/logger"
)

// CertificateHandler handles certificate issuance requests.
type CertificateHandler struct {
	deps   Dependencies
	auth   authenticator
	logger logger.Logger
}

// NewCertificateHandler creates a new certificate handler.
func NewCertificateHandler(deps Dependencies, auth authenticator, log logger.Logger) *CertificateHandler {
	return &CertificateHandler{deps: deps, auth: auth, logger: log}
}

// HandleGenerateCertificate handles POST /generate-certificate requests.
func (h *CertificateHandler) HandleGenerateCertificate(w http.ResponseWriter, r *http.Request) {
	const op = "api.generate_certificate"
	ctx := r.Context()

	caller, err := h.auth.authenticate(r)
	if err != nil {
		writeFailure(ctx, w, h.logger, fmt.Errorf("%s: %w", op, err))
		return
	}

	var req certificateRequest
	if err := decodeRequest(w, r, &req); err != nil {
		h.logger.Debug(ctx, "rejected certificate request", logger.Error(WrapKind(op, ErrBadRequest, err)))
		writeError(w, http.StatusBadRequest, "bad_request", msgCertificateRequired)
		return
	}

	res, err := h.deps.GenerateCertificate(ctx, caller, req.UserID, req.CourseID)
	if err != nil {
		writeFailure(ctx, w, h.logger, fmt.Errorf("%s: %w", op, err))
		return
	}

	if !res.Created {
		writeJSON(w, http.StatusOK, types.CertificateResponse{
			Message:       msgCertificateExists,
			CertificateID: res.Code,
		})
		return
	}
	cert := res.Certificate
	writeJSON(w, http.StatusOK, types.CertificateResponse{
		Message:       msgCertificateCreated,
		CertificateID: res.Code,
		Certificate:   &cert,
	})
}
