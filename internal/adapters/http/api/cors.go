package api

import (
	"net/http"

	"github.com/softai/coursecore/pkg/metrics"
)

const (
	corsAllowOrigin  = "*"
	corsAllowMethods = "POST, OPTIONS"
	corsAllowHeaders = "Content-Type, Authorization, X-Client-Info, Apikey"
)

// CORS attaches the CORS headers to every response, answers preflight
// requests with an empty 200 and rejects methods other than POST.
func CORS(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		h := w.Header()
		h.Set("Access-Control-Allow-Origin", corsAllowOrigin)
		h.Set("Access-Control-Allow-Methods", corsAllowMethods)
		h.Set("Access-Control-Allow-Headers", corsAllowHeaders)

		switch r.Method {
		case http.MethodOptions:
			w.WriteHeader(http.StatusOK)
		case http.MethodPost:
			next(w, r)
		default:
			h.Set("Allow", corsAllowMethods)
			metrics.RecordHTTPError(r.URL.Path, "method_not_allowed")
			writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", ErrMethodNotAllowed.Error())
		}
	}
}
