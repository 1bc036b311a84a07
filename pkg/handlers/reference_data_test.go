package handlers

import (
	"fmt"
	"net/http"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/ekaya-inc/orgpulse/pkg/apperrors"
	"github.com/ekaya-inc/orgpulse/pkg/models"
)

func newReferenceMux(svc *mockReferenceDataService) *http.ServeMux {
	mux := http.NewServeMux()
	NewReferenceDataHandler(svc, zap.NewNop()).RegisterRoutes(mux, passthroughTenant)
	return mux
}

func TestReferenceDataHandler_Load(t *testing.T) {
	svc := &mockReferenceDataService{data: &models.ReferenceData{
		Departments: []string{"Engineering", "Finance"},
		Locations:   []string{"Berlin", "New York"},
	}}
	mux := newReferenceMux(svc)

	rec := serve(t, mux, http.MethodGet, fmt.Sprintf("/api/projects/%s/reference-data", uuid.New()), nil)

	require.Equal(t, http.StatusOK, rec.Code)
	var data models.ReferenceData
	decodeData(t, rec, &data)
	assert.Equal(t, []string{"Engineering", "Finance"}, data.Departments)
	assert.Equal(t, []string{"Berlin", "New York"}, data.Locations)
}

func TestReferenceDataHandler_ListDepartments_Empty(t *testing.T) {
	mux := newReferenceMux(&mockReferenceDataService{})

	rec := serve(t, mux, http.MethodGet, fmt.Sprintf("/api/projects/%s/departments", uuid.New()), nil)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"data":[]`)
}

func TestReferenceDataHandler_CreateDepartment(t *testing.T) {
	svc := &mockReferenceDataService{}
	mux := newReferenceMux(svc)
	parentID := uuid.New()

	rec := serve(t, mux, http.MethodPost, fmt.Sprintf("/api/projects/%s/departments", uuid.New()),
		map[string]any{"name": "Platform", "description": "Infra teams", "parent_id": parentID})

	require.Equal(t, http.StatusCreated, rec.Code)
	var dept models.Department
	decodeData(t, rec, &dept)
	assert.Equal(t, "Platform", dept.Name)
	require.NotNil(t, svc.lastParent)
	assert.Equal(t, parentID, *svc.lastParent)
}

func TestReferenceDataHandler_UpdateDepartment_Errors(t *testing.T) {
	tests := []struct {
		name       string
		path       string
		err        error
		wantStatus int
	}{
		{name: "invalid department id", path: "/departments/nope", wantStatus: http.StatusBadRequest},
		{name: "unknown department", path: "/departments/" + uuid.NewString(), err: apperrors.ErrNotFound, wantStatus: http.StatusNotFound},
		{name: "self parent", path: "/departments/" + uuid.NewString(), err: apperrors.ErrValidation, wantStatus: http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mux := newReferenceMux(&mockReferenceDataService{err: tt.err})
			rec := serve(t, mux, http.MethodPut, fmt.Sprintf("/api/projects/%s%s", uuid.New(), tt.path),
				map[string]any{"name": "Platform"})
			assert.Equal(t, tt.wantStatus, rec.Code)
		})
	}
}

func TestReferenceDataHandler_DeleteDepartment(t *testing.T) {
	mux := newReferenceMux(&mockReferenceDataService{})

	rec := serve(t, mux, http.MethodDelete, fmt.Sprintf("/api/projects/%s/departments/%s", uuid.New(), uuid.New()), nil)

	assert.Equal(t, http.StatusNoContent, rec.Code)
}

func TestReferenceDataHandler_Locations(t *testing.T) {
	svc := &mockReferenceDataService{locations: []*models.Location{{ID: uuid.New(), Name: "Berlin"}}}
	mux := newReferenceMux(svc)
	projectID := uuid.New()

	rec := serve(t, mux, http.MethodGet, fmt.Sprintf("/api/projects/%s/locations", projectID), nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var locations []models.Location
	decodeData(t, rec, &locations)
	require.Len(t, locations, 1)
	assert.Equal(t, "Berlin", locations[0].Name)

	rec = serve(t, mux, http.MethodPost, fmt.Sprintf("/api/projects/%s/locations", projectID), map[string]any{"name": "Lisbon"})
	require.Equal(t, http.StatusCreated, rec.Code)
	var created models.Location
	decodeData(t, rec, &created)
	assert.Equal(t, "Lisbon", created.Name)
	assert.Equal(t, projectID, created.ProjectID)
}
