package handlers

import (
	"net/http"

	"github.com/onnwee/coin-tracker/internal/market"
)

// StatusReporter is implemented by market.Service.
type StatusReporter interface {
	Status() market.Status
}

// GetStatus handles GET /api/status: queue depth, breaker state and cache stats.
func GetStatus(s StatusReporter) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, s.Status())
	}
}
