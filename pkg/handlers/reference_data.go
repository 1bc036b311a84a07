package handlers

import (
	"net/http"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/ekaya-inc/orgpulse/pkg/models"
	"github.com/ekaya-inc/orgpulse/pkg/services"
)

// DepartmentRequest for POST /departments and PUT /departments/{did}
type DepartmentRequest struct {
	Name        string     `json:"name"`
	Description string     `json:"description"`
	ParentID    *uuid.UUID `json:"parent_id"`
}

// LocationRequest for POST /locations
type LocationRequest struct {
	Name string `json:"name"`
}

// ReferenceDataHandler serves departments and locations.
type ReferenceDataHandler struct {
	referenceService services.ReferenceDataService
	logger           *zap.Logger
}

// NewReferenceDataHandler creates a new reference data handler.
func NewReferenceDataHandler(referenceService services.ReferenceDataService, logger *zap.Logger) *ReferenceDataHandler {
	return &ReferenceDataHandler{
		referenceService: referenceService,
		logger:           logger,
	}
}

// RegisterRoutes registers the reference data routes on the given mux.
func (h *ReferenceDataHandler) RegisterRoutes(mux *http.ServeMux, tenantMiddleware TenantMiddleware) {
	base := "/api/projects/{pid}"

	mux.HandleFunc("GET "+base+"/reference-data", tenantMiddleware(h.Load))
	mux.HandleFunc("GET "+base+"/departments", tenantMiddleware(h.ListDepartments))
	mux.HandleFunc("POST "+base+"/departments", tenantMiddleware(h.CreateDepartment))
	mux.HandleFunc("PUT "+base+"/departments/{did}", tenantMiddleware(h.UpdateDepartment))
	mux.HandleFunc("DELETE "+base+"/departments/{did}", tenantMiddleware(h.DeleteDepartment))
	mux.HandleFunc("GET "+base+"/locations", tenantMiddleware(h.ListLocations))
	mux.HandleFunc("POST "+base+"/locations", tenantMiddleware(h.CreateLocation))
}

// Load handles GET /api/projects/{pid}/reference-data
func (h *ReferenceDataHandler) Load(w http.ResponseWriter, r *http.Request) {
	projectID, ok := ParseProjectID(w, r, h.logger)
	if !ok {
		return
	}

	data, err := h.referenceService.Load(r.Context(), projectID)
	if err != nil {
		writeServiceError(w, err, "load reference data", h.logger)
		return
	}
	writeData(w, http.StatusOK, data, h.logger)
}

// ListDepartments handles GET /api/projects/{pid}/departments
func (h *ReferenceDataHandler) ListDepartments(w http.ResponseWriter, r *http.Request) {
	projectID, ok := ParseProjectID(w, r, h.logger)
	if !ok {
		return
	}

	departments, err := h.referenceService.ListDepartments(r.Context(), projectID)
	if err != nil {
		writeServiceError(w, err, "list departments", h.logger)
		return
	}
	if departments == nil {
		departments = []*models.Department{}
	}
	writeData(w, http.StatusOK, departments, h.logger)
}

// CreateDepartment handles POST /api/projects/{pid}/departments
func (h *ReferenceDataHandler) CreateDepartment(w http.ResponseWriter, r *http.Request) {
	projectID, ok := ParseProjectID(w, r, h.logger)
	if !ok {
		return
	}

	var req DepartmentRequest
	if !decodeBody(w, r, &req, h.logger) {
		return
	}

	department, err := h.referenceService.CreateDepartment(r.Context(), projectID, req.Name, req.Description, req.ParentID)
	if err != nil {
		writeServiceError(w, err, "create department", h.logger)
		return
	}
	writeData(w, http.StatusCreated, department, h.logger)
}

// UpdateDepartment handles PUT /api/projects/{pid}/departments/{did}
func (h *ReferenceDataHandler) UpdateDepartment(w http.ResponseWriter, r *http.Request) {
	projectID, ok := ParseProjectID(w, r, h.logger)
	if !ok {
		return
	}
	departmentID, ok := ParseDepartmentID(w, r, h.logger)
	if !ok {
		return
	}

	var req DepartmentRequest
	if !decodeBody(w, r, &req, h.logger) {
		return
	}

	department, err := h.referenceService.UpdateDepartment(r.Context(), projectID, departmentID, req.Name, req.Description, req.ParentID)
	if err != nil {
		writeServiceError(w, err, "update department", h.logger)
		return
	}
	writeData(w, http.StatusOK, department, h.logger)
}

// DeleteDepartment handles DELETE /api/projects/{pid}/departments/{did}
func (h *ReferenceDataHandler) DeleteDepartment(w http.ResponseWriter, r *http.Request) {
	projectID, ok := ParseProjectID(w, r, h.logger)
	if !ok {
		return
	}
	departmentID, ok := ParseDepartmentID(w, r, h.logger)
	if !ok {
		return
	}

	if err := h.referenceService.DeleteDepartment(r.Context(), projectID, departmentID); err != nil {
		writeServiceError(w, err, "delete department", h.logger)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ListLocations handles GET /api/projects/{pid}/locations
func (h *ReferenceDataHandler) ListLocations(w http.ResponseWriter, r *http.Request) {
	projectID, ok := ParseProjectID(w, r, h.logger)
	if !ok {
		return
	}

	locations, err := h.referenceService.ListLocations(r.Context(), projectID)
	if err != nil {
		writeServiceError(w, err, "list locations", h.logger)
		return
	}
	if locations == nil {
		locations = []*models.Location{}
	}
	writeData(w, http.StatusOK, locations, h.logger)
}

// CreateLocation handles POST /api/projects/{pid}/locations
func (h *ReferenceDataHandler) CreateLocation(w http.ResponseWriter, r *http.Request) {
	projectID, ok := ParseProjectID(w, r, h.logger)
	if !ok {
		return
	}

	var req LocationRequest
	if !decodeBody(w, r, &req, h.logger) {
		return
	}

	location, err := h.referenceService.CreateLocation(r.Context(), projectID, req.Name)
	if err != nil {
		writeServiceError(w, err, "create location", h.logger)
		return
	}
	writeData(w, http.StatusCreated, location, h.logger)
}
