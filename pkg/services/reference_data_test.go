package services

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/ekaya-inc/orgpulse/pkg/apperrors"
	"github.com/ekaya-inc/orgpulse/pkg/models"
)

func TestLoadReferenceDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "reference.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
departments:
  - Engineering
  - Sales
locations:
  - London
`), 0644))

	defaults, err := LoadReferenceDefaults(path)
	require.NoError(t, err)
	assert.Equal(t, []string{"Engineering", "Sales"}, defaults.Departments)
	assert.Equal(t, []string{"London"}, defaults.Locations)

	empty, err := LoadReferenceDefaults("")
	require.NoError(t, err)
	assert.Empty(t, empty.Departments)

	_, err = LoadReferenceDefaults(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestReferenceDataService_LoadMergesDefaults(t *testing.T) {
	pid := uuid.New()
	departments := &mockDepartmentRepository{departments: []*models.Department{
		{ID: uuid.New(), Name: "sales"},
		{ID: uuid.New(), Name: "Product"},
	}}
	locations := &mockLocationRepository{locations: []*models.Location{{ID: uuid.New(), Name: "Tokyo"}}}
	svc := NewReferenceDataService(departments, locations, &ReferenceDefaults{
		Departments: []string{"Engineering", "Sales", " "},
		Locations:   []string{"London", "tokyo"},
	}, zap.NewNop())

	data, err := svc.Load(context.Background(), pid)
	require.NoError(t, err)
	assert.Equal(t, []string{"Engineering", "Product", "sales"}, data.Departments)
	assert.Equal(t, []string{"London", "Tokyo"}, data.Locations)
}

func TestReferenceDataService_Departments(t *testing.T) {
	pid := uuid.New()
	repo := &mockDepartmentRepository{}
	svc := NewReferenceDataService(repo, &mockLocationRepository{}, nil, zap.NewNop())
	ctx := context.Background()

	_, err := svc.CreateDepartment(ctx, pid, "  ", "", nil)
	require.ErrorIs(t, err, apperrors.ErrValidation)

	eng, err := svc.CreateDepartment(ctx, pid, "Engineering", "Builds things", nil)
	require.NoError(t, err)

	platform, err := svc.CreateDepartment(ctx, pid, "Platform", "", &eng.ID)
	require.NoError(t, err)
	assert.Equal(t, eng.ID, *platform.ParentID)

	missing := uuid.New()
	_, err = svc.CreateDepartment(ctx, pid, "Orphan", "", &missing)
	require.ErrorIs(t, err, apperrors.ErrNotFound)

	_, err = svc.CreateDepartment(ctx, pid, "Engineering", "", nil)
	require.ErrorIs(t, err, apperrors.ErrConflict)

	_, err = svc.UpdateDepartment(ctx, pid, platform.ID, "Platform", "", &platform.ID)
	require.ErrorIs(t, err, apperrors.ErrValidation)

	updated, err := svc.UpdateDepartment(ctx, pid, platform.ID, "Infrastructure", "Runs things", nil)
	require.NoError(t, err)
	assert.Equal(t, "Infrastructure", updated.Name)
	assert.Nil(t, updated.ParentID)

	require.NoError(t, svc.DeleteDepartment(ctx, pid, eng.ID))
	list, err := svc.ListDepartments(ctx, pid)
	require.NoError(t, err)
	assert.Len(t, list, 1)
}

func TestReferenceDataService_CreateLocationConflict(t *testing.T) {
	svc := NewReferenceDataService(&mockDepartmentRepository{}, &mockLocationRepository{}, nil, zap.NewNop())
	ctx := context.Background()
	pid := uuid.New()

	_, err := svc.CreateLocation(ctx, pid, "Berlin")
	require.NoError(t, err)
	_, err = svc.CreateLocation(ctx, pid, "Berlin")
	assert.ErrorIs(t, err, apperrors.ErrConflict)
}
