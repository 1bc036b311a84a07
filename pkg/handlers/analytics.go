package handlers

import (
	"net/http"

	"go.uber.org/zap"

	"github.com/ekaya-inc/orgpulse/pkg/services"
)

// AnalyticsHandler serves the dashboard overview.
type AnalyticsHandler struct {
	analyticsService services.AnalyticsService
	logger           *zap.Logger
}

// NewAnalyticsHandler creates a new analytics handler.
func NewAnalyticsHandler(analyticsService services.AnalyticsService, logger *zap.Logger) *AnalyticsHandler {
	return &AnalyticsHandler{
		analyticsService: analyticsService,
		logger:           logger,
	}
}

// RegisterRoutes registers the analytics routes on the given mux.
func (h *AnalyticsHandler) RegisterRoutes(mux *http.ServeMux, tenantMiddleware TenantMiddleware) {
	mux.HandleFunc("GET /api/projects/{pid}/analytics/overview", tenantMiddleware(h.Overview))
}

// Overview handles GET /api/projects/{pid}/analytics/overview
func (h *AnalyticsHandler) Overview(w http.ResponseWriter, r *http.Request) {
	projectID, ok := ParseProjectID(w, r, h.logger)
	if !ok {
		return
	}

	overview, err := h.analyticsService.Overview(r.Context(), projectID)
	if err != nil {
		writeServiceError(w, err, "load analytics overview", h.logger)
		return
	}
	writeData(w, http.StatusOK, overview, h.logger)
}
