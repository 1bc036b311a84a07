//go:build integration

package repositories

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ekaya-inc/orgpulse/pkg/apperrors"
	"github.com/ekaya-inc/orgpulse/pkg/models"
	"github.com/ekaya-inc/orgpulse/pkg/testhelpers"
)

func setupEmployeeTest(t *testing.T) (context.Context, EmployeeRepository, uuid.UUID) {
	t.Helper()
	testDB := testhelpers.GetTestDB(t)
	projectID := uuid.New()
	return testDB.TenantContext(t, projectID), NewEmployeeRepository(), projectID
}

func testEmployee(projectID uuid.UUID, name string) *models.Employee {
	slack := "Slack"
	e := &models.Employee{
		ID:        uuid.New(),
		ProjectID: projectID,
		Name:      name,
		Emails: []models.EmailAddress{
			{Address: name + "@acme.io", Source: &slack},
			{Address: name + "@acme.com", IsPrimary: true},
		},
		Department: models.StringPtr("Engineering"),
		IsIncluded: true,
		EmailCount: 12,
	}
	e.SetIssue(models.IssueTypeAlias)
	return e
}

func TestEmployeeRepository_CreateAndGet(t *testing.T) {
	ctx, repo, projectID := setupEmployeeTest(t)

	e := testEmployee(projectID, "jane")
	hire := time.Date(2021, 3, 15, 0, 0, 0, 0, time.UTC)
	e.HireDate = &hire
	e.Conflicts = []models.AttributeConflict{{
		Field:  models.FieldDepartment,
		Values: []models.SourceValue{{Source: "Slack", Value: "Engineering"}, {Source: "HRIS", Value: "Product"}},
	}}
	require.NoError(t, repo.Create(ctx, e))

	got, err := repo.GetByID(ctx, projectID, e.ID)
	require.NoError(t, err)
	assert.Equal(t, "jane", got.Name)
	require.Len(t, got.Emails, 2)
	assert.Equal(t, "jane@acme.io", got.Emails[0].Address)
	require.NotNil(t, got.Emails[0].Source)
	assert.Equal(t, "Slack", *got.Emails[0].Source)
	assert.True(t, got.Emails[1].IsPrimary)
	assert.Equal(t, models.IssueTypeAlias, got.IssueType)
	assert.True(t, got.HasQualityIssues)
	require.NotNil(t, got.HireDate)
	assert.Equal(t, "2021-03-15", got.HireDate.Format(models.HireDateLayout))
	require.Len(t, got.Conflicts, 1)
	assert.Equal(t, []string{"Engineering", "Product"}, got.Conflicts[0].DistinctValues())
}

func TestEmployeeRepository_GetByID_NotFound(t *testing.T) {
	ctx, repo, projectID := setupEmployeeTest(t)

	_, err := repo.GetByID(ctx, projectID, uuid.New())
	assert.ErrorIs(t, err, apperrors.ErrRecordNotFound)
}

func TestEmployeeRepository_ListFilters(t *testing.T) {
	ctx, repo, projectID := setupEmployeeTest(t)

	alias := testEmployee(projectID, "alias")
	clean := testEmployee(projectID, "clean")
	clean.Emails = clean.Emails[1:]
	clean.SetIssue(models.IssueTypeNone)
	clean.IsIncluded = false
	clean.Department = models.StringPtr("Sales")
	require.NoError(t, repo.ReplaceAll(ctx, projectID, []*models.Employee{alias, clean}))

	all, err := repo.List(ctx, projectID, EmployeeFilter{})
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, "alias", all[0].Name, "discovery order is preserved")

	aliases, err := repo.List(ctx, projectID, EmployeeFilter{IssueType: models.IssueTypeAlias})
	require.NoError(t, err)
	require.Len(t, aliases, 1)
	assert.Equal(t, alias.ID, aliases[0].ID)

	included := true
	incl, err := repo.List(ctx, projectID, EmployeeFilter{Included: &included})
	require.NoError(t, err)
	require.Len(t, incl, 1)

	sales, err := repo.List(ctx, projectID, EmployeeFilter{Department: "sales"})
	require.NoError(t, err)
	require.Len(t, sales, 1)
	assert.Equal(t, clean.ID, sales[0].ID)
}

func TestEmployeeRepository_SaveAll(t *testing.T) {
	ctx, repo, projectID := setupEmployeeTest(t)

	e := testEmployee(projectID, "merge")
	require.NoError(t, repo.Create(ctx, e))

	merged := e.Clone()
	merged.Emails = []models.EmailAddress{e.Emails[1]}
	merged.SetIssue(models.IssueTypeNone)
	fresh := testEmployee(projectID, "fresh")
	require.NoError(t, repo.SaveAll(ctx, projectID, []*models.Employee{merged, fresh}))

	got, err := repo.GetByID(ctx, projectID, e.ID)
	require.NoError(t, err)
	assert.Len(t, got.Emails, 1)
	assert.False(t, got.HasQualityIssues)

	_, err = repo.GetByID(ctx, projectID, fresh.ID)
	require.NoError(t, err, "unknown records are inserted")
}

func TestEmployeeRepository_SetIncludedAndDelete(t *testing.T) {
	ctx, repo, projectID := setupEmployeeTest(t)

	a := testEmployee(projectID, "a")
	b := testEmployee(projectID, "b")
	c := testEmployee(projectID, "c")
	require.NoError(t, repo.ReplaceAll(ctx, projectID, []*models.Employee{a, b, c}))

	require.NoError(t, repo.SetIncluded(ctx, projectID, a.ID, false))
	got, err := repo.GetByID(ctx, projectID, a.ID)
	require.NoError(t, err)
	assert.False(t, got.IsIncluded)

	require.NoError(t, repo.Delete(ctx, projectID, a.ID))
	assert.ErrorIs(t, repo.Delete(ctx, projectID, a.ID), apperrors.ErrRecordNotFound)

	n, err := repo.DeleteMany(ctx, projectID, []uuid.UUID{b.ID, c.ID, uuid.New()})
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}

func TestEmployeeRepository_TenantIsolation(t *testing.T) {
	testDB := testhelpers.GetTestDB(t)
	repo := NewEmployeeRepository()

	projectA := uuid.New()
	projectB := uuid.New()
	ctxA := testDB.TenantContext(t, projectA)
	ctxB := testDB.TenantContext(t, projectB)

	require.NoError(t, repo.Create(ctxA, testEmployee(projectA, "only-a")))

	listB, err := repo.List(ctxB, projectB, EmployeeFilter{})
	require.NoError(t, err)
	assert.Empty(t, listB)
}
