package handlers

import (
	"log/slog"
	"net/http"

	"github.com/finsightx/alert-engine/internal/domain"
	"github.com/finsightx/alert-engine/pkg/metrics"
)

// GetCatalog returns the metric, operator, frequency, channel and severity
// registries the UI builds its rule form from.
// GET /api/v1/catalog
func (h *Handlers) GetCatalog(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, domain.CurrentCatalog())
}

// GetAlertStats returns aggregated alert and rule counts.
// GET /api/v1/stats?organization_id=
func (h *Handlers) GetAlertStats(w http.ResponseWriter, r *http.Request) {
	orgID := r.URL.Query().Get("organization_id")
	stats, err := h.db.GetAlertStats(r.Context(), orgID)
	if err != nil {
		h.writeError(w, err, "get alert stats", "organization_id", orgID)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

// ServiceMetricsResponse wraps service metrics with known service list.
type ServiceMetricsResponse struct {
	Services      map[string]*metrics.ServiceMetrics `json:"services"`
	KnownServices []string                           `json:"known_services"`
}

// GetServiceMetrics returns metrics for all services from Redis.
// GET /api/v1/services/metrics
func (h *Handlers) GetServiceMetrics(w http.ResponseWriter, r *http.Request) {
	if h.metricsReader == nil {
		http.Error(w, "Service metrics are not configured", http.StatusServiceUnavailable)
		return
	}
	ctx := r.Context()

	if serviceName := r.URL.Query().Get("service"); serviceName != "" {
		serviceMetrics, err := h.metricsReader.GetServiceMetrics(ctx, serviceName)
		if err != nil {
			slog.Warn("Failed to get service metrics", "service", serviceName, "error", err)
			serviceMetrics = &metrics.ServiceMetrics{
				ServiceName: serviceName,
				Status:      "offline",
			}
		}
		writeJSON(w, http.StatusOK, serviceMetrics)
		return
	}

	allMetrics, err := h.metricsReader.GetAllServiceMetrics(ctx)
	if err != nil {
		slog.Error("Failed to get all service metrics", "error", err)
		http.Error(w, "Failed to retrieve service metrics", http.StatusInternalServerError)
		return
	}

	// Known services with no snapshot are reported as offline.
	for _, name := range metrics.ServiceNames {
		if _, exists := allMetrics[name]; !exists {
			allMetrics[name] = &metrics.ServiceMetrics{
				ServiceName: name,
				Status:      "offline",
			}
		}
	}

	writeJSON(w, http.StatusOK, ServiceMetricsResponse{
		Services:      allMetrics,
		KnownServices: metrics.ServiceNames,
	})
}
