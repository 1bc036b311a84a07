package handlers

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/ekaya-inc/orgpulse/pkg/jsonutil"
	"github.com/ekaya-inc/orgpulse/pkg/models"
	"github.com/ekaya-inc/orgpulse/pkg/reconcile"
	"github.com/ekaya-inc/orgpulse/pkg/services"
)

// ============================================================================
// Request/Response Types
// ============================================================================

// DataQualityResponse for GET /data-quality
type DataQualityResponse struct {
	models.IssueAggregate
	IsApplying bool `json:"is_applying"`
}

// RecordView is an employee as shown in the data-quality screens.
type RecordView struct {
	*models.Employee
	PrimaryEmail   string             `json:"primary_email"`
	MissingFields  []string           `json:"missing_fields"`
	Recommendation models.FieldValues `json:"recommendation,omitempty"`
}

// RecordListResponse for GET /data-quality/records
type RecordListResponse struct {
	Records []RecordView `json:"records"`
	Total   int          `json:"total"`
}

// ResolveRequest for POST /records/{eid}/resolve. Values may be sent as
// strings, numbers or booleans.
type ResolveRequest struct {
	Values json.RawMessage `json:"values"`
}

// CompleteRequest for POST /records/{eid}/complete
type CompleteRequest struct {
	Fields json.RawMessage `json:"fields"`
}

// BulkRequest for POST /data-quality/bulk
type BulkRequest struct {
	Operation models.BulkOperation `json:"operation"`
}

// CommitResponse for POST /data-quality/commit
type CommitResponse struct {
	Saved int `json:"saved"`
}

// ============================================================================
// Handler
// ============================================================================

// ReconciliationHandler exposes the data-quality workflow.
type ReconciliationHandler struct {
	reconciliationService services.ReconciliationService
	requiredFields        []string
	logger                *zap.Logger
}

// NewReconciliationHandler creates a new reconciliation handler.
// requiredFields drives the missing_fields of record views.
func NewReconciliationHandler(
	reconciliationService services.ReconciliationService,
	requiredFields []string,
	logger *zap.Logger,
) *ReconciliationHandler {
	if len(requiredFields) == 0 {
		requiredFields = models.DefaultRequiredFields
	}
	return &ReconciliationHandler{
		reconciliationService: reconciliationService,
		requiredFields:        requiredFields,
		logger:                logger,
	}
}

// RegisterRoutes registers the data-quality routes on the given mux.
func (h *ReconciliationHandler) RegisterRoutes(mux *http.ServeMux, tenantMiddleware TenantMiddleware) {
	base := "/api/projects/{pid}/data-quality"
	record := base + "/records/{eid}"

	mux.HandleFunc("GET "+base, tenantMiddleware(h.Summary))
	mux.HandleFunc("GET "+base+"/records", tenantMiddleware(h.Records))
	mux.HandleFunc("GET "+record+"/recommendation", tenantMiddleware(h.Recommendation))
	mux.HandleFunc("POST "+record+"/merge-aliases", tenantMiddleware(h.MergeAliases))
	mux.HandleFunc("POST "+record+"/resolve", tenantMiddleware(h.Resolve))
	mux.HandleFunc("POST "+record+"/complete", tenantMiddleware(h.Complete))
	mux.HandleFunc("POST "+record+"/toggle-inclusion", tenantMiddleware(h.ToggleInclusion))
	mux.HandleFunc("POST "+base+"/bulk", tenantMiddleware(h.Bulk))
	mux.HandleFunc("POST "+base+"/commit", tenantMiddleware(h.Commit))
}

// Summary handles GET /api/projects/{pid}/data-quality
func (h *ReconciliationHandler) Summary(w http.ResponseWriter, r *http.Request) {
	projectID, ok := ParseProjectID(w, r, h.logger)
	if !ok {
		return
	}

	session, err := h.reconciliationService.Session(r.Context(), projectID)
	if err != nil {
		writeServiceError(w, err, "load data quality session", h.logger)
		return
	}
	writeData(w, http.StatusOK, DataQualityResponse{
		IssueAggregate: session.GetAggregate(),
		IsApplying:     session.IsApplying(),
	}, h.logger)
}

// Records handles GET /api/projects/{pid}/data-quality/records?issue_type=
// Without issue_type every record is returned.
func (h *ReconciliationHandler) Records(w http.ResponseWriter, r *http.Request) {
	projectID, ok := ParseProjectID(w, r, h.logger)
	if !ok {
		return
	}

	var (
		records []*models.Employee
		err     error
	)
	if issueType := r.URL.Query().Get("issue_type"); issueType != "" {
		records, err = h.reconciliationService.RecordsByIssue(r.Context(), projectID, models.IssueType(issueType))
	} else {
		var session *reconcile.Session
		session, err = h.reconciliationService.Session(r.Context(), projectID)
		if err == nil {
			records = session.Records()
		}
	}
	if err != nil {
		writeServiceError(w, err, "list data quality records", h.logger)
		return
	}

	views := make([]RecordView, 0, len(records))
	for _, rec := range records {
		views = append(views, h.view(rec))
	}
	writeData(w, http.StatusOK, RecordListResponse{Records: views, Total: len(views)}, h.logger)
}

// Recommendation handles GET /api/projects/{pid}/data-quality/records/{eid}/recommendation
func (h *ReconciliationHandler) Recommendation(w http.ResponseWriter, r *http.Request) {
	projectID, employeeID, ok := ParseProjectAndEmployeeIDs(w, r, h.logger)
	if !ok {
		return
	}

	values, err := h.reconciliationService.Recommendation(r.Context(), projectID, employeeID)
	if err != nil {
		writeServiceError(w, err, "load recommendation", h.logger)
		return
	}
	if values == nil {
		values = models.FieldValues{}
	}
	writeData(w, http.StatusOK, values, h.logger)
}

// MergeAliases handles POST /api/projects/{pid}/data-quality/records/{eid}/merge-aliases
func (h *ReconciliationHandler) MergeAliases(w http.ResponseWriter, r *http.Request) {
	h.mutate(w, r, "merge aliases", func(ctx context.Context, projectID, id uuid.UUID) (*models.Employee, error) {
		return h.reconciliationService.MergeAliases(ctx, projectID, id)
	})
}

// Resolve handles POST /api/projects/{pid}/data-quality/records/{eid}/resolve
func (h *ReconciliationHandler) Resolve(w http.ResponseWriter, r *http.Request) {
	var req ResolveRequest
	if !decodeBody(w, r, &req, h.logger) {
		return
	}
	values, ok := h.fieldValues(w, req.Values)
	if !ok {
		return
	}
	h.mutate(w, r, "apply conflict resolution", func(ctx context.Context, projectID, id uuid.UUID) (*models.Employee, error) {
		return h.reconciliationService.ApplyConflictResolution(ctx, projectID, id, values)
	})
}

// Complete handles POST /api/projects/{pid}/data-quality/records/{eid}/complete
func (h *ReconciliationHandler) Complete(w http.ResponseWriter, r *http.Request) {
	var req CompleteRequest
	if !decodeBody(w, r, &req, h.logger) {
		return
	}
	fields, ok := h.fieldValues(w, req.Fields)
	if !ok {
		return
	}
	h.mutate(w, r, "complete employee information", func(ctx context.Context, projectID, id uuid.UUID) (*models.Employee, error) {
		return h.reconciliationService.CompleteInformation(ctx, projectID, id, fields)
	})
}

// ToggleInclusion handles POST /api/projects/{pid}/data-quality/records/{eid}/toggle-inclusion
func (h *ReconciliationHandler) ToggleInclusion(w http.ResponseWriter, r *http.Request) {
	h.mutate(w, r, "toggle inclusion", func(ctx context.Context, projectID, id uuid.UUID) (*models.Employee, error) {
		return h.reconciliationService.ToggleInclusion(ctx, projectID, id)
	})
}

// Bulk handles POST /api/projects/{pid}/data-quality/bulk
// Returns 409 while another bulk operation is running.
func (h *ReconciliationHandler) Bulk(w http.ResponseWriter, r *http.Request) {
	projectID, ok := ParseProjectID(w, r, h.logger)
	if !ok {
		return
	}

	var req BulkRequest
	if !decodeBody(w, r, &req, h.logger) {
		return
	}

	outcome, err := h.reconciliationService.RunBulk(r.Context(), projectID, req.Operation)
	if err != nil {
		writeServiceError(w, err, "run bulk operation", h.logger)
		return
	}
	writeData(w, http.StatusOK, outcome, h.logger)
}

// Commit handles POST /api/projects/{pid}/data-quality/commit
func (h *ReconciliationHandler) Commit(w http.ResponseWriter, r *http.Request) {
	projectID, ok := ParseProjectID(w, r, h.logger)
	if !ok {
		return
	}

	saved, err := h.reconciliationService.Commit(r.Context(), projectID)
	if err != nil {
		writeServiceError(w, err, "save data quality changes", h.logger)
		return
	}
	writeData(w, http.StatusOK, CommitResponse{Saved: saved}, h.logger)
}

func (h *ReconciliationHandler) mutate(
	w http.ResponseWriter,
	r *http.Request,
	action string,
	fn func(ctx context.Context, projectID, id uuid.UUID) (*models.Employee, error),
) {
	projectID, employeeID, ok := ParseProjectAndEmployeeIDs(w, r, h.logger)
	if !ok {
		return
	}

	updated, err := fn(r.Context(), projectID, employeeID)
	if err != nil {
		writeServiceError(w, err, action, h.logger)
		return
	}
	writeData(w, http.StatusOK, h.view(updated), h.logger)
}

func (h *ReconciliationHandler) fieldValues(w http.ResponseWriter, raw json.RawMessage) (models.FieldValues, bool) {
	if len(raw) == 0 {
		return models.FieldValues{}, true
	}
	values, err := jsonutil.FlexibleStringMap(raw)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "Field values must be a JSON object", h.logger)
		return nil, false
	}
	return models.FieldValues(values), true
}

func (h *ReconciliationHandler) view(e *models.Employee) RecordView {
	v := RecordView{
		Employee:      e,
		MissingFields: e.MissingFields(h.requiredFields),
	}
	if v.MissingFields == nil {
		v.MissingFields = []string{}
	}
	if primary, ok := e.PrimaryEmail(); ok {
		v.PrimaryEmail = primary.Address
	}
	if e.IssueType == models.IssueTypeConflict {
		v.Recommendation = reconcile.RecommendedResolution(e)
	}
	return v
}
