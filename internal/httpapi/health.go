package httpapi

import (
	"net/http"

	"github.com/corvidlabs/vertexpass/internal/metrics"
)

// healthBody is the GET /health response.
type healthBody struct {
	Status  string           `json:"status"`
	Metrics metrics.Snapshot `json:"metrics"`
}

// HealthHandler reports liveness and the counter snapshot.
type HealthHandler struct {
	Metrics *metrics.Metrics
}

// Compile-time check to ensure HealthHandler implements http.Handler
var _ http.Handler = (*HealthHandler)(nil)

func (h *HealthHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	writeJSON(r.Context(), w, healthBody{
		Status:  "ok",
		Metrics: h.Metrics.Snapshot(),
	}, http.StatusOK)
}
