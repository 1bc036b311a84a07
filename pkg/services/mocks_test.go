package services

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/ekaya-inc/orgpulse/pkg/adapters/directory"
	"github.com/ekaya-inc/orgpulse/pkg/apperrors"
	"github.com/ekaya-inc/orgpulse/pkg/models"
	"github.com/ekaya-inc/orgpulse/pkg/repositories"
)

// Test encryption key (32 bytes, base64 encoded).
const testEncryptionKey = "dGVzdC1rZXktZm9yLXVuaXQtdGVzdHMtMzItYnl0ZXM="

// mockEmployeeRepository is an in-memory EmployeeRepository.
type mockEmployeeRepository struct {
	mu        sync.Mutex
	employees []*models.Employee

	listErr    error
	saveAllErr []error // returned by successive SaveAll calls
	saveCalls  int
	saved      []*models.Employee
	onSaveAll  func() // runs before each SaveAll, outside the lock
}

func (m *mockEmployeeRepository) List(ctx context.Context, projectID uuid.UUID, filter repositories.EmployeeFilter) ([]*models.Employee, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.listErr != nil {
		return nil, m.listErr
	}
	var out []*models.Employee
	for _, e := range m.employees {
		if filter.IssueType != "" && e.IssueType != filter.IssueType {
			continue
		}
		if filter.Included != nil && e.IsIncluded != *filter.Included {
			continue
		}
		out = append(out, e.Clone())
	}
	return out, nil
}

func (m *mockEmployeeRepository) GetByID(ctx context.Context, projectID, id uuid.UUID) (*models.Employee, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, e := range m.employees {
		if e.ID == id {
			return e.Clone(), nil
		}
	}
	return nil, apperrors.ErrRecordNotFound
}

func (m *mockEmployeeRepository) Create(ctx context.Context, e *models.Employee) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.employees = append(m.employees, e.Clone())
	return nil
}

func (m *mockEmployeeRepository) Update(ctx context.Context, e *models.Employee) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i, existing := range m.employees {
		if existing.ID == e.ID {
			m.employees[i] = e.Clone()
			return nil
		}
	}
	return apperrors.ErrRecordNotFound
}

func (m *mockEmployeeRepository) SaveAll(ctx context.Context, projectID uuid.UUID, employees []*models.Employee) error {
	if m.onSaveAll != nil {
		m.onSaveAll()
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	call := m.saveCalls
	m.saveCalls++
	if call < len(m.saveAllErr) && m.saveAllErr[call] != nil {
		return m.saveAllErr[call]
	}
	m.saved = append(m.saved, employees...)
	for _, e := range employees {
		replaced := false
		for i, existing := range m.employees {
			if existing.ID == e.ID {
				m.employees[i] = e.Clone()
				replaced = true
			}
		}
		if !replaced {
			m.employees = append(m.employees, e.Clone())
		}
	}
	return nil
}

func (m *mockEmployeeRepository) ReplaceAll(ctx context.Context, projectID uuid.UUID, employees []*models.Employee) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.employees = nil
	for _, e := range employees {
		m.employees = append(m.employees, e.Clone())
	}
	return nil
}

func (m *mockEmployeeRepository) SetIncluded(ctx context.Context, projectID, id uuid.UUID, included bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, e := range m.employees {
		if e.ID == id {
			e.IsIncluded = included
			return nil
		}
	}
	return apperrors.ErrRecordNotFound
}

func (m *mockEmployeeRepository) Delete(ctx context.Context, projectID, id uuid.UUID) error {
	n, _ := m.DeleteMany(ctx, projectID, []uuid.UUID{id})
	if n == 0 {
		return apperrors.ErrRecordNotFound
	}
	return nil
}

func (m *mockEmployeeRepository) DeleteMany(ctx context.Context, projectID uuid.UUID, ids []uuid.UUID) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	remove := make(map[uuid.UUID]bool, len(ids))
	for _, id := range ids {
		remove[id] = true
	}
	var kept []*models.Employee
	for _, e := range m.employees {
		if !remove[e.ID] {
			kept = append(kept, e)
		}
	}
	n := len(m.employees) - len(kept)
	m.employees = kept
	return n, nil
}

// mockConnectionRepository is an in-memory ConnectionRepository.
type mockConnectionRepository struct {
	conns []*models.SourceConnection
}

func (m *mockConnectionRepository) Create(ctx context.Context, c *models.SourceConnection) error {
	c.ID = uuid.New()
	stored := *c
	m.conns = append(m.conns, &stored)
	return nil
}

func (m *mockConnectionRepository) GetByID(ctx context.Context, projectID, id uuid.UUID) (*models.SourceConnection, error) {
	for _, c := range m.conns {
		if c.ID == id {
			copied := *c
			return &copied, nil
		}
	}
	return nil, apperrors.ErrNotFound
}

func (m *mockConnectionRepository) List(ctx context.Context, projectID uuid.UUID) ([]*models.SourceConnection, error) {
	out := make([]*models.SourceConnection, 0, len(m.conns))
	for _, c := range m.conns {
		copied := *c
		out = append(out, &copied)
	}
	return out, nil
}

func (m *mockConnectionRepository) UpdateStatus(ctx context.Context, projectID, id uuid.UUID, status string, testedAt time.Time) error {
	for _, c := range m.conns {
		if c.ID == id {
			c.Status = status
			c.LastTestedAt = &testedAt
			return nil
		}
	}
	return apperrors.ErrNotFound
}

func (m *mockConnectionRepository) Delete(ctx context.Context, projectID, id uuid.UUID) error {
	for i, c := range m.conns {
		if c.ID == id {
			m.conns = append(m.conns[:i], m.conns[i+1:]...)
			return nil
		}
	}
	return apperrors.ErrNotFound
}

// mockSetupRepository is an in-memory SetupRepository.
type mockSetupRepository struct {
	state *models.SetupState
}

func (m *mockSetupRepository) Get(ctx context.Context, projectID uuid.UUID) (*models.SetupState, error) {
	if m.state == nil {
		return nil, nil
	}
	copied := *m.state
	return &copied, nil
}

func (m *mockSetupRepository) Save(ctx context.Context, state *models.SetupState) error {
	copied := *state
	m.state = &copied
	return nil
}

// mockDepartmentRepository is an in-memory DepartmentRepository.
type mockDepartmentRepository struct {
	departments []*models.Department
}

func (m *mockDepartmentRepository) List(ctx context.Context, projectID uuid.UUID) ([]*models.Department, error) {
	return m.departments, nil
}

func (m *mockDepartmentRepository) GetByID(ctx context.Context, projectID, id uuid.UUID) (*models.Department, error) {
	for _, d := range m.departments {
		if d.ID == id {
			copied := *d
			return &copied, nil
		}
	}
	return nil, apperrors.ErrNotFound
}

func (m *mockDepartmentRepository) Create(ctx context.Context, d *models.Department) error {
	for _, existing := range m.departments {
		if existing.Name == d.Name {
			return apperrors.ErrConflict
		}
	}
	d.ID = uuid.New()
	m.departments = append(m.departments, d)
	return nil
}

func (m *mockDepartmentRepository) Update(ctx context.Context, d *models.Department) error {
	for i, existing := range m.departments {
		if existing.ID == d.ID {
			m.departments[i] = d
			return nil
		}
	}
	return apperrors.ErrNotFound
}

func (m *mockDepartmentRepository) Delete(ctx context.Context, projectID, id uuid.UUID) error {
	for i, d := range m.departments {
		if d.ID == id {
			m.departments = append(m.departments[:i], m.departments[i+1:]...)
			return nil
		}
	}
	return apperrors.ErrNotFound
}

// mockLocationRepository is an in-memory LocationRepository.
type mockLocationRepository struct {
	locations []*models.Location
}

func (m *mockLocationRepository) List(ctx context.Context, projectID uuid.UUID) ([]*models.Location, error) {
	return m.locations, nil
}

func (m *mockLocationRepository) Create(ctx context.Context, l *models.Location) error {
	for _, existing := range m.locations {
		if existing.Name == l.Name {
			return apperrors.ErrConflict
		}
	}
	l.ID = uuid.New()
	m.locations = append(m.locations, l)
	return nil
}

// stubConnector serves fixed entries or fails.
type stubConnector struct {
	entries []models.DirectoryEntry
	testErr error
	listErr error
	closed  bool
}

func (c *stubConnector) TestConnection(ctx context.Context) error { return c.testErr }

func (c *stubConnector) ListEntries(ctx context.Context) ([]models.DirectoryEntry, error) {
	if c.listErr != nil {
		return nil, c.listErr
	}
	return c.entries, nil
}

func (c *stubConnector) Close() error {
	c.closed = true
	return nil
}

// stubFactory hands out connectors by provider.
type stubFactory struct {
	mu         sync.Mutex
	connectors map[string]*stubConnector
}

func (f *stubFactory) NewConnector(ctx context.Context, provider string, config map[string]any) (directory.Connector, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	c, ok := f.connectors[provider]
	if !ok {
		return nil, errors.New("unsupported provider " + provider)
	}
	return c, nil
}

func (f *stubFactory) ListProviders() []directory.AdapterInfo {
	return []directory.AdapterInfo{{Provider: models.ProviderSlack, DisplayName: "Slack"}}
}

// recordingListener counts change notifications.
type recordingListener struct {
	mu    sync.Mutex
	calls int
}

func (l *recordingListener) EmployeesChanged(ctx context.Context, projectID uuid.UUID) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.calls++
}

func (l *recordingListener) count() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.calls
}
