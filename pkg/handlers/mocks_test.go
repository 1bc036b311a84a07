package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/ekaya-inc/orgpulse/pkg/adapters/directory"
	"github.com/ekaya-inc/orgpulse/pkg/models"
	"github.com/ekaya-inc/orgpulse/pkg/reconcile"
	"github.com/ekaya-inc/orgpulse/pkg/repositories"
	"github.com/ekaya-inc/orgpulse/pkg/services"
)

// passthroughTenant stands in for the database tenant middleware.
func passthroughTenant(next http.HandlerFunc) http.HandlerFunc {
	return next
}

// serve routes one request through mux and returns the recorder.
func serve(t *testing.T, mux *http.ServeMux, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	switch b := body.(type) {
	case nil:
		reader = bytes.NewReader(nil)
	case string:
		reader = bytes.NewReader([]byte(b))
	default:
		data, err := json.Marshal(b)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)
	return rec
}

// decodeData unwraps an ApiResponse and decodes its data into dst.
func decodeData(t *testing.T, rec *httptest.ResponseRecorder, dst any) ApiResponse {
	t.Helper()
	var raw struct {
		ApiResponse
		Data json.RawMessage `json:"data"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&raw))
	if dst != nil {
		require.NoError(t, json.Unmarshal(raw.Data, dst))
	}
	return raw.ApiResponse
}

// ============================================================================
// Service mocks
// ============================================================================

type mockEmployeeService struct {
	employees  []*models.Employee
	employee   *models.Employee
	err        error
	lastFilter repositories.EmployeeFilter
	lastInput  services.EmployeeInput
	lastIDs    []uuid.UUID
	included   *bool
}

func (m *mockEmployeeService) List(ctx context.Context, projectID uuid.UUID, filter repositories.EmployeeFilter) ([]*models.Employee, error) {
	m.lastFilter = filter
	return m.employees, m.err
}

func (m *mockEmployeeService) Get(ctx context.Context, projectID, id uuid.UUID) (*models.Employee, error) {
	if m.err != nil {
		return nil, m.err
	}
	return m.employee, nil
}

func (m *mockEmployeeService) Create(ctx context.Context, projectID uuid.UUID, input services.EmployeeInput) (*models.Employee, error) {
	m.lastInput = input
	if m.err != nil {
		return nil, m.err
	}
	return &models.Employee{ID: uuid.New(), ProjectID: projectID, Name: input.Name, Emails: input.Emails}, nil
}

func (m *mockEmployeeService) Update(ctx context.Context, projectID, id uuid.UUID, input services.EmployeeInput) (*models.Employee, error) {
	m.lastInput = input
	if m.err != nil {
		return nil, m.err
	}
	return &models.Employee{ID: id, ProjectID: projectID, Name: input.Name, Department: input.Department}, nil
}

func (m *mockEmployeeService) Delete(ctx context.Context, projectID, id uuid.UUID) error {
	return m.err
}

func (m *mockEmployeeService) DeleteMany(ctx context.Context, projectID uuid.UUID, ids []uuid.UUID) (int, error) {
	m.lastIDs = ids
	if m.err != nil {
		return 0, m.err
	}
	return len(ids), nil
}

func (m *mockEmployeeService) SetIncluded(ctx context.Context, projectID, id uuid.UUID, included bool) error {
	m.included = &included
	return m.err
}

var _ services.EmployeeService = (*mockEmployeeService)(nil)

type mockConnectionService struct {
	conns     []*models.SourceConnection
	conn      *models.SourceConnection
	err       error
	testErr   error
	providers []directory.AdapterInfo
}

func (m *mockConnectionService) Create(ctx context.Context, projectID uuid.UUID, provider, name string, config map[string]any) (*models.SourceConnection, error) {
	if m.err != nil {
		return nil, m.err
	}
	return &models.SourceConnection{
		ID:        uuid.New(),
		ProjectID: projectID,
		Provider:  provider,
		Name:      name,
		Config:    config,
		Status:    models.ConnectionStatusPending,
	}, nil
}

func (m *mockConnectionService) Get(ctx context.Context, projectID, id uuid.UUID) (*models.SourceConnection, error) {
	if m.err != nil {
		return nil, m.err
	}
	return m.conn, nil
}

func (m *mockConnectionService) List(ctx context.Context, projectID uuid.UUID) ([]*models.SourceConnection, error) {
	return m.conns, m.err
}

func (m *mockConnectionService) Delete(ctx context.Context, projectID, id uuid.UUID) error {
	return m.err
}

func (m *mockConnectionService) Test(ctx context.Context, projectID, id uuid.UUID) (*models.SourceConnection, error) {
	if m.err != nil {
		return nil, m.err
	}
	return m.conn, m.testErr
}

func (m *mockConnectionService) TestConfig(ctx context.Context, provider string, config map[string]any) error {
	return m.testErr
}

func (m *mockConnectionService) Providers() []directory.AdapterInfo {
	return m.providers
}

var _ services.ConnectionService = (*mockConnectionService)(nil)

type mockSetupService struct {
	state        *models.SetupState
	discovery    *services.DiscoveryResult
	anonymized   int
	err          error
	lastSettings models.AnonymizationSettings
}

func (m *mockSetupService) State(ctx context.Context, projectID uuid.UUID) (*models.SetupState, error) {
	return m.state, m.err
}

func (m *mockSetupService) Advance(ctx context.Context, projectID uuid.UUID) (*models.SetupState, error) {
	return m.state, m.err
}

func (m *mockSetupService) RunDiscovery(ctx context.Context, projectID uuid.UUID) (*services.DiscoveryResult, error) {
	return m.discovery, m.err
}

func (m *mockSetupService) SaveAnonymization(ctx context.Context, projectID uuid.UUID, settings models.AnonymizationSettings) (*models.SetupState, error) {
	m.lastSettings = settings
	if m.err != nil {
		return nil, m.err
	}
	state := *m.state
	state.Anonymization = settings
	return &state, nil
}

func (m *mockSetupService) ApplyAnonymization(ctx context.Context, projectID uuid.UUID) (int, error) {
	return m.anonymized, m.err
}

var _ services.SetupService = (*mockSetupService)(nil)

type mockReferenceDataService struct {
	data        *models.ReferenceData
	departments []*models.Department
	locations   []*models.Location
	err         error
	lastParent  *uuid.UUID
}

func (m *mockReferenceDataService) Load(ctx context.Context, projectID uuid.UUID) (*models.ReferenceData, error) {
	return m.data, m.err
}

func (m *mockReferenceDataService) ListDepartments(ctx context.Context, projectID uuid.UUID) ([]*models.Department, error) {
	return m.departments, m.err
}

func (m *mockReferenceDataService) CreateDepartment(ctx context.Context, projectID uuid.UUID, name, description string, parentID *uuid.UUID) (*models.Department, error) {
	m.lastParent = parentID
	if m.err != nil {
		return nil, m.err
	}
	return &models.Department{ID: uuid.New(), ProjectID: projectID, Name: name, Description: description, ParentID: parentID}, nil
}

func (m *mockReferenceDataService) UpdateDepartment(ctx context.Context, projectID, id uuid.UUID, name, description string, parentID *uuid.UUID) (*models.Department, error) {
	m.lastParent = parentID
	if m.err != nil {
		return nil, m.err
	}
	return &models.Department{ID: id, ProjectID: projectID, Name: name, Description: description, ParentID: parentID}, nil
}

func (m *mockReferenceDataService) DeleteDepartment(ctx context.Context, projectID, id uuid.UUID) error {
	return m.err
}

func (m *mockReferenceDataService) ListLocations(ctx context.Context, projectID uuid.UUID) ([]*models.Location, error) {
	return m.locations, m.err
}

func (m *mockReferenceDataService) CreateLocation(ctx context.Context, projectID uuid.UUID, name string) (*models.Location, error) {
	if m.err != nil {
		return nil, m.err
	}
	return &models.Location{ID: uuid.New(), ProjectID: projectID, Name: name}, nil
}

var _ services.ReferenceDataService = (*mockReferenceDataService)(nil)

type mockAnalyticsService struct {
	overview *models.AnalyticsOverview
	err      error
}

func (m *mockAnalyticsService) Overview(ctx context.Context, projectID uuid.UUID) (*models.AnalyticsOverview, error) {
	return m.overview, m.err
}

var _ services.AnalyticsService = (*mockAnalyticsService)(nil)

// fakeReconciliationService delegates to a real in-memory session.
type fakeReconciliationService struct {
	session    *reconcile.Session
	sessionErr error
	commitErr  error
	resets     int
}

func newFakeReconciliationService(records []*models.Employee) *fakeReconciliationService {
	return &fakeReconciliationService{
		session: reconcile.NewSession(uuid.New(), records, reconcile.Options{}, zap.NewNop()),
	}
}

func (f *fakeReconciliationService) Session(ctx context.Context, projectID uuid.UUID) (*reconcile.Session, error) {
	if f.sessionErr != nil {
		return nil, f.sessionErr
	}
	return f.session, nil
}

func (f *fakeReconciliationService) Aggregate(ctx context.Context, projectID uuid.UUID) (models.IssueAggregate, error) {
	return f.session.GetAggregate(), f.sessionErr
}

func (f *fakeReconciliationService) RecordsByIssue(ctx context.Context, projectID uuid.UUID, issueType models.IssueType) ([]*models.Employee, error) {
	return f.session.GetRecordsByIssue(issueType)
}

func (f *fakeReconciliationService) Recommendation(ctx context.Context, projectID, id uuid.UUID) (models.FieldValues, error) {
	return f.session.Recommendation(id)
}

func (f *fakeReconciliationService) MergeAliases(ctx context.Context, projectID, id uuid.UUID) (*models.Employee, error) {
	return f.session.MergeAliases(id)
}

func (f *fakeReconciliationService) ApplyConflictResolution(ctx context.Context, projectID, id uuid.UUID, chosen models.FieldValues) (*models.Employee, error) {
	return f.session.ApplyConflictResolution(id, chosen)
}

func (f *fakeReconciliationService) CompleteInformation(ctx context.Context, projectID, id uuid.UUID, fields models.FieldValues) (*models.Employee, error) {
	return f.session.CompleteInformation(id, fields)
}

func (f *fakeReconciliationService) ToggleInclusion(ctx context.Context, projectID, id uuid.UUID) (*models.Employee, error) {
	return f.session.ToggleInclusion(id)
}

func (f *fakeReconciliationService) RunBulk(ctx context.Context, projectID uuid.UUID, op models.BulkOperation) (*services.BulkOutcome, error) {
	result, err := f.session.RunBulk(ctx, op)
	if err != nil {
		return nil, err
	}
	return &services.BulkOutcome{BulkResult: result, Summary: services.BulkSummary(result)}, nil
}

func (f *fakeReconciliationService) Commit(ctx context.Context, projectID uuid.UUID) (int, error) {
	if f.commitErr != nil {
		return 0, f.commitErr
	}
	dirty := f.session.DirtyRecords()
	f.session.MarkSaved(dirty)
	return len(dirty), nil
}

func (f *fakeReconciliationService) Reset(projectID uuid.UUID) {
	f.resets++
}

func (f *fakeReconciliationService) EmployeesChanged(ctx context.Context, projectID uuid.UUID) {}

var _ services.ReconciliationService = (*fakeReconciliationService)(nil)
