package handlers

import (
	"errors"
	"net/http"
	"slices"

	"go.uber.org/zap"

	"github.com/ekaya-inc/orgpulse/pkg/apperrors"
	"github.com/ekaya-inc/orgpulse/pkg/crypto"
	"github.com/ekaya-inc/orgpulse/pkg/logging"
	"github.com/ekaya-inc/orgpulse/pkg/models"
	"github.com/ekaya-inc/orgpulse/pkg/services"
)

// maskedSecret replaces secret settings in responses.
const maskedSecret = "********"

// ============================================================================
// Request/Response Types
// ============================================================================

// ConnectionRequest for POST /connections and POST /connections/test
type ConnectionRequest struct {
	Provider string         `json:"provider"`
	Name     string         `json:"name"`
	Config   map[string]any `json:"config"`
}

// TestConnectionResponse for connection test results.
type TestConnectionResponse struct {
	Success    bool                     `json:"success"`
	Message    string                   `json:"message"`
	Connection *models.SourceConnection `json:"connection,omitempty"`
}

// ============================================================================
// Handler
// ============================================================================

// ConnectionsHandler manages source connections.
type ConnectionsHandler struct {
	connectionService services.ConnectionService
	logger            *zap.Logger
}

// NewConnectionsHandler creates a new connections handler.
func NewConnectionsHandler(connectionService services.ConnectionService, logger *zap.Logger) *ConnectionsHandler {
	return &ConnectionsHandler{
		connectionService: connectionService,
		logger:            logger,
	}
}

// RegisterRoutes registers the connection routes on the given mux.
func (h *ConnectionsHandler) RegisterRoutes(mux *http.ServeMux, tenantMiddleware TenantMiddleware) {
	base := "/api/projects/{pid}/connections"

	mux.HandleFunc("GET /api/connectors", h.ListProviders)
	mux.HandleFunc("GET "+base, tenantMiddleware(h.List))
	mux.HandleFunc("POST "+base, tenantMiddleware(h.Create))
	mux.HandleFunc("POST "+base+"/test", tenantMiddleware(h.TestConfig))
	mux.HandleFunc("GET "+base+"/{cid}", tenantMiddleware(h.Get))
	mux.HandleFunc("DELETE "+base+"/{cid}", tenantMiddleware(h.Delete))
	mux.HandleFunc("POST "+base+"/{cid}/test", tenantMiddleware(h.Test))
}

// ListProviders handles GET /api/connectors
func (h *ConnectionsHandler) ListProviders(w http.ResponseWriter, r *http.Request) {
	writeData(w, http.StatusOK, h.connectionService.Providers(), h.logger)
}

// List handles GET /api/projects/{pid}/connections
func (h *ConnectionsHandler) List(w http.ResponseWriter, r *http.Request) {
	projectID, ok := ParseProjectID(w, r, h.logger)
	if !ok {
		return
	}

	conns, err := h.connectionService.List(r.Context(), projectID)
	if err != nil {
		writeServiceError(w, err, "list connections", h.logger)
		return
	}
	out := make([]*models.SourceConnection, 0, len(conns))
	for _, c := range conns {
		out = append(out, maskConnection(c))
	}
	writeData(w, http.StatusOK, out, h.logger)
}

// Get handles GET /api/projects/{pid}/connections/{cid}
func (h *ConnectionsHandler) Get(w http.ResponseWriter, r *http.Request) {
	projectID, ok := ParseProjectID(w, r, h.logger)
	if !ok {
		return
	}
	connectionID, ok := ParseConnectionID(w, r, h.logger)
	if !ok {
		return
	}

	conn, err := h.connectionService.Get(r.Context(), projectID, connectionID)
	if err != nil {
		writeServiceError(w, err, "get connection", h.logger)
		return
	}
	writeData(w, http.StatusOK, maskConnection(conn), h.logger)
}

// Create handles POST /api/projects/{pid}/connections
func (h *ConnectionsHandler) Create(w http.ResponseWriter, r *http.Request) {
	projectID, ok := ParseProjectID(w, r, h.logger)
	if !ok {
		return
	}

	var req ConnectionRequest
	if !decodeBody(w, r, &req, h.logger) {
		return
	}
	if req.Provider == "" {
		writeError(w, http.StatusBadRequest, "missing_provider", "provider is required", h.logger)
		return
	}

	conn, err := h.connectionService.Create(r.Context(), projectID, req.Provider, req.Name, req.Config)
	if err != nil {
		writeServiceError(w, err, "create connection", h.logger)
		return
	}
	writeData(w, http.StatusCreated, maskConnection(conn), h.logger)
}

// Delete handles DELETE /api/projects/{pid}/connections/{cid}
func (h *ConnectionsHandler) Delete(w http.ResponseWriter, r *http.Request) {
	projectID, ok := ParseProjectID(w, r, h.logger)
	if !ok {
		return
	}
	connectionID, ok := ParseConnectionID(w, r, h.logger)
	if !ok {
		return
	}

	if err := h.connectionService.Delete(r.Context(), projectID, connectionID); err != nil {
		writeServiceError(w, err, "delete connection", h.logger)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Test handles POST /api/projects/{pid}/connections/{cid}/test
// A failed test is reported in the body with status 200; the connection's
// status is updated either way.
func (h *ConnectionsHandler) Test(w http.ResponseWriter, r *http.Request) {
	projectID, ok := ParseProjectID(w, r, h.logger)
	if !ok {
		return
	}
	connectionID, ok := ParseConnectionID(w, r, h.logger)
	if !ok {
		return
	}

	conn, err := h.connectionService.Test(r.Context(), projectID, connectionID)
	if err != nil && conn == nil {
		writeServiceError(w, err, "test connection", h.logger)
		return
	}

	resp := TestConnectionResponse{
		Success:    err == nil,
		Message:    "Connection successful",
		Connection: maskConnection(conn),
	}
	if err != nil {
		resp.Message = logging.SanitizeError(err)
	}
	writeData(w, http.StatusOK, resp, h.logger)
}

// TestConfig handles POST /api/projects/{pid}/connections/test
// Tests settings without saving them.
func (h *ConnectionsHandler) TestConfig(w http.ResponseWriter, r *http.Request) {
	if _, ok := ParseProjectID(w, r, h.logger); !ok {
		return
	}

	var req ConnectionRequest
	if !decodeBody(w, r, &req, h.logger) {
		return
	}

	err := h.connectionService.TestConfig(r.Context(), req.Provider, req.Config)
	if errors.Is(err, apperrors.ErrValidation) {
		writeServiceError(w, err, "test connection", h.logger)
		return
	}

	resp := TestConnectionResponse{Success: err == nil, Message: "Connection successful"}
	if err != nil {
		resp.Message = logging.SanitizeError(err)
	}
	writeData(w, http.StatusOK, resp, h.logger)
}

// maskConnection returns a copy of conn with secret settings hidden.
func maskConnection(conn *models.SourceConnection) *models.SourceConnection {
	if conn == nil {
		return nil
	}
	out := *conn
	if conn.Config == nil {
		return &out
	}
	out.Config = make(map[string]any, len(conn.Config))
	for k, v := range conn.Config {
		if s, ok := v.(string); ok && s != "" && slices.Contains(crypto.SecretKeys, k) {
			out.Config[k] = maskedSecret
			continue
		}
		out.Config[k] = v
	}
	return &out
}
