package handlers

import (
	"net/http"

	"go.uber.org/zap"

	"github.com/ekaya-inc/orgpulse/pkg/models"
	"github.com/ekaya-inc/orgpulse/pkg/services"
)

// ApplyAnonymizationResponse for POST /setup/anonymization/apply
type ApplyAnonymizationResponse struct {
	Anonymized int `json:"anonymized"`
}

// SetupHandler drives the first-time setup wizard.
type SetupHandler struct {
	setupService services.SetupService
	logger       *zap.Logger
}

// NewSetupHandler creates a new setup handler.
func NewSetupHandler(setupService services.SetupService, logger *zap.Logger) *SetupHandler {
	return &SetupHandler{
		setupService: setupService,
		logger:       logger,
	}
}

// RegisterRoutes registers the setup wizard routes on the given mux.
func (h *SetupHandler) RegisterRoutes(mux *http.ServeMux, tenantMiddleware TenantMiddleware) {
	base := "/api/projects/{pid}/setup"

	mux.HandleFunc("GET "+base, tenantMiddleware(h.State))
	mux.HandleFunc("POST "+base+"/advance", tenantMiddleware(h.Advance))
	mux.HandleFunc("POST "+base+"/discovery", tenantMiddleware(h.RunDiscovery))
	mux.HandleFunc("PUT "+base+"/anonymization", tenantMiddleware(h.SaveAnonymization))
	mux.HandleFunc("POST "+base+"/anonymization/apply", tenantMiddleware(h.ApplyAnonymization))
}

// State handles GET /api/projects/{pid}/setup
func (h *SetupHandler) State(w http.ResponseWriter, r *http.Request) {
	projectID, ok := ParseProjectID(w, r, h.logger)
	if !ok {
		return
	}

	state, err := h.setupService.State(r.Context(), projectID)
	if err != nil {
		writeServiceError(w, err, "load setup state", h.logger)
		return
	}
	writeData(w, http.StatusOK, state, h.logger)
}

// Advance handles POST /api/projects/{pid}/setup/advance
func (h *SetupHandler) Advance(w http.ResponseWriter, r *http.Request) {
	projectID, ok := ParseProjectID(w, r, h.logger)
	if !ok {
		return
	}

	state, err := h.setupService.Advance(r.Context(), projectID)
	if err != nil {
		writeServiceError(w, err, "advance setup", h.logger)
		return
	}
	writeData(w, http.StatusOK, state, h.logger)
}

// RunDiscovery handles POST /api/projects/{pid}/setup/discovery
func (h *SetupHandler) RunDiscovery(w http.ResponseWriter, r *http.Request) {
	projectID, ok := ParseProjectID(w, r, h.logger)
	if !ok {
		return
	}

	result, err := h.setupService.RunDiscovery(r.Context(), projectID)
	if err != nil {
		writeServiceError(w, err, "discover employees", h.logger)
		return
	}
	writeData(w, http.StatusOK, result, h.logger)
}

// SaveAnonymization handles PUT /api/projects/{pid}/setup/anonymization
func (h *SetupHandler) SaveAnonymization(w http.ResponseWriter, r *http.Request) {
	projectID, ok := ParseProjectID(w, r, h.logger)
	if !ok {
		return
	}

	var settings models.AnonymizationSettings
	if !decodeBody(w, r, &settings, h.logger) {
		return
	}

	state, err := h.setupService.SaveAnonymization(r.Context(), projectID, settings)
	if err != nil {
		writeServiceError(w, err, "save anonymization settings", h.logger)
		return
	}
	writeData(w, http.StatusOK, state, h.logger)
}

// ApplyAnonymization handles POST /api/projects/{pid}/setup/anonymization/apply
func (h *SetupHandler) ApplyAnonymization(w http.ResponseWriter, r *http.Request) {
	projectID, ok := ParseProjectID(w, r, h.logger)
	if !ok {
		return
	}

	n, err := h.setupService.ApplyAnonymization(r.Context(), projectID)
	if err != nil {
		writeServiceError(w, err, "apply anonymization", h.logger)
		return
	}
	writeData(w, http.StatusOK, ApplyAnonymizationResponse{Anonymized: n}, h.logger)
}
