package handlers

import (
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/ekaya-inc/orgpulse/pkg/models"
	"github.com/ekaya-inc/orgpulse/pkg/repositories"
	"github.com/ekaya-inc/orgpulse/pkg/services"
)

// ============================================================================
// Request/Response Types
// ============================================================================

// EmployeeListResponse for GET /employees
type EmployeeListResponse struct {
	Employees []*models.Employee `json:"employees"`
	Total     int                `json:"total"`
}

// EmployeeRequest for POST /employees and PUT /employees/{eid}.
// Omitted attributes are left unchanged on update.
type EmployeeRequest struct {
	Name       string                `json:"name"`
	Emails     []models.EmailAddress `json:"emails"`
	Department *string               `json:"department"`
	Position   *string               `json:"position"`
	Location   *string               `json:"location"`
	HireDate   *string               `json:"hire_date"`
	IsIncluded *bool                 `json:"is_included"`
}

// BulkDeleteRequest for POST /employees/bulk-delete
type BulkDeleteRequest struct {
	IDs []uuid.UUID `json:"ids"`
}

// BulkDeleteResponse reports how many employees were removed.
type BulkDeleteResponse struct {
	Deleted int `json:"deleted"`
}

// SetIncludedRequest for PUT /employees/{eid}/included
type SetIncludedRequest struct {
	Included bool `json:"included"`
}

// ============================================================================
// Handler
// ============================================================================

// EmployeeHandler handles stored employee records.
type EmployeeHandler struct {
	employeeService services.EmployeeService
	logger          *zap.Logger
}

// NewEmployeeHandler creates a new employee handler.
func NewEmployeeHandler(employeeService services.EmployeeService, logger *zap.Logger) *EmployeeHandler {
	return &EmployeeHandler{
		employeeService: employeeService,
		logger:          logger,
	}
}

// RegisterRoutes registers the employee handler's routes on the given mux.
func (h *EmployeeHandler) RegisterRoutes(mux *http.ServeMux, tenantMiddleware TenantMiddleware) {
	base := "/api/projects/{pid}/employees"

	mux.HandleFunc("GET "+base, tenantMiddleware(h.List))
	mux.HandleFunc("POST "+base, tenantMiddleware(h.Create))
	mux.HandleFunc("POST "+base+"/bulk-delete", tenantMiddleware(h.BulkDelete))
	mux.HandleFunc("GET "+base+"/{eid}", tenantMiddleware(h.Get))
	mux.HandleFunc("PUT "+base+"/{eid}", tenantMiddleware(h.Update))
	mux.HandleFunc("DELETE "+base+"/{eid}", tenantMiddleware(h.Delete))
	mux.HandleFunc("PUT "+base+"/{eid}/included", tenantMiddleware(h.SetIncluded))
}

// List handles GET /api/projects/{pid}/employees
// Optional query parameters: issue_type, included, department.
func (h *EmployeeHandler) List(w http.ResponseWriter, r *http.Request) {
	projectID, ok := ParseProjectID(w, r, h.logger)
	if !ok {
		return
	}

	q := r.URL.Query()
	filter := repositories.EmployeeFilter{
		IssueType:  models.IssueType(q.Get("issue_type")),
		Department: q.Get("department"),
	}
	if v := q.Get("included"); v != "" {
		included, err := strconv.ParseBool(v)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_filter", "included must be true or false", h.logger)
			return
		}
		filter.Included = &included
	}

	employees, err := h.employeeService.List(r.Context(), projectID, filter)
	if err != nil {
		writeServiceError(w, err, "list employees", h.logger)
		return
	}
	if employees == nil {
		employees = []*models.Employee{}
	}

	writeData(w, http.StatusOK, EmployeeListResponse{Employees: employees, Total: len(employees)}, h.logger)
}

// Get handles GET /api/projects/{pid}/employees/{eid}
func (h *EmployeeHandler) Get(w http.ResponseWriter, r *http.Request) {
	projectID, employeeID, ok := ParseProjectAndEmployeeIDs(w, r, h.logger)
	if !ok {
		return
	}

	employee, err := h.employeeService.Get(r.Context(), projectID, employeeID)
	if err != nil {
		writeServiceError(w, err, "get employee", h.logger)
		return
	}
	writeData(w, http.StatusOK, employee, h.logger)
}

// Create handles POST /api/projects/{pid}/employees
func (h *EmployeeHandler) Create(w http.ResponseWriter, r *http.Request) {
	projectID, ok := ParseProjectID(w, r, h.logger)
	if !ok {
		return
	}

	var req EmployeeRequest
	if !decodeBody(w, r, &req, h.logger) {
		return
	}
	input, ok := h.toInput(w, req)
	if !ok {
		return
	}

	employee, err := h.employeeService.Create(r.Context(), projectID, input)
	if err != nil {
		writeServiceError(w, err, "create employee", h.logger)
		return
	}
	writeData(w, http.StatusCreated, employee, h.logger)
}

// Update handles PUT /api/projects/{pid}/employees/{eid}
func (h *EmployeeHandler) Update(w http.ResponseWriter, r *http.Request) {
	projectID, employeeID, ok := ParseProjectAndEmployeeIDs(w, r, h.logger)
	if !ok {
		return
	}

	var req EmployeeRequest
	if !decodeBody(w, r, &req, h.logger) {
		return
	}
	input, ok := h.toInput(w, req)
	if !ok {
		return
	}

	employee, err := h.employeeService.Update(r.Context(), projectID, employeeID, input)
	if err != nil {
		writeServiceError(w, err, "update employee", h.logger)
		return
	}
	writeData(w, http.StatusOK, employee, h.logger)
}

// Delete handles DELETE /api/projects/{pid}/employees/{eid}
func (h *EmployeeHandler) Delete(w http.ResponseWriter, r *http.Request) {
	projectID, employeeID, ok := ParseProjectAndEmployeeIDs(w, r, h.logger)
	if !ok {
		return
	}

	if err := h.employeeService.Delete(r.Context(), projectID, employeeID); err != nil {
		writeServiceError(w, err, "delete employee", h.logger)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// BulkDelete handles POST /api/projects/{pid}/employees/bulk-delete
func (h *EmployeeHandler) BulkDelete(w http.ResponseWriter, r *http.Request) {
	projectID, ok := ParseProjectID(w, r, h.logger)
	if !ok {
		return
	}

	var req BulkDeleteRequest
	if !decodeBody(w, r, &req, h.logger) {
		return
	}

	deleted, err := h.employeeService.DeleteMany(r.Context(), projectID, req.IDs)
	if err != nil {
		writeServiceError(w, err, "delete employees", h.logger)
		return
	}
	writeData(w, http.StatusOK, BulkDeleteResponse{Deleted: deleted}, h.logger)
}

// SetIncluded handles PUT /api/projects/{pid}/employees/{eid}/included
func (h *EmployeeHandler) SetIncluded(w http.ResponseWriter, r *http.Request) {
	projectID, employeeID, ok := ParseProjectAndEmployeeIDs(w, r, h.logger)
	if !ok {
		return
	}

	var req SetIncludedRequest
	if !decodeBody(w, r, &req, h.logger) {
		return
	}

	if err := h.employeeService.SetIncluded(r.Context(), projectID, employeeID, req.Included); err != nil {
		writeServiceError(w, err, "update employee inclusion", h.logger)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *EmployeeHandler) toInput(w http.ResponseWriter, req EmployeeRequest) (services.EmployeeInput, bool) {
	input := services.EmployeeInput{
		Name:       req.Name,
		Emails:     req.Emails,
		Department: req.Department,
		Position:   req.Position,
		Location:   req.Location,
		IsIncluded: req.IsIncluded,
	}
	if req.HireDate != nil && *req.HireDate != "" {
		d, err := time.Parse(models.HireDateLayout, *req.HireDate)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_hire_date", "hire_date must be YYYY-MM-DD", h.logger)
			return input, false
		}
		input.HireDate = &d
	}
	return input, true
}
