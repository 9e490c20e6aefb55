package api

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/softai/coursecore/pkg/metrics"
)

// HealthHandler handles liveness requests.
type HealthHandler struct {
	stats StatsProvider
}

// NewHealthHandler creates a new health handler. stats may be nil.
func NewHealthHandler(stats StatsProvider) *HealthHandler {
	return &HealthHandler{stats: stats}
}

type healthResponse struct {
	Status  string                 `json:"status"`
	Service map[string]interface{} `json:"service,omitempty"`
}

// HandleHealth handles GET /healthz requests.
func (h *HealthHandler) HandleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		w.Header().Set("Allow", "GET, HEAD")
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", ErrMethodNotAllowed.Error())
		return
	}
	resp := healthResponse{Status: "ok"}
	if h.stats != nil {
		resp.Service = h.stats.GetStats()
	}
	writeJSON(w, http.StatusOK, resp)
}

// MetricsHandler serves the custom Prometheus registry.
func MetricsHandler() http.Handler {
	return promhttp.HandlerFor(metrics.GetRegistry(), promhttp.HandlerOpts{})
}
