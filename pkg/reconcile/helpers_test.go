package reconcile

import (
	"testing"

	"github.com/google/uuid"

	"github.com/ekaya-inc/orgpulse/pkg/models"
)

func strPtr(s string) *string { return &s }

func email(addr string, primary bool, source string) models.EmailAddress {
	e := models.EmailAddress{Address: addr, IsPrimary: primary}
	if source != "" {
		e.Source = strPtr(source)
	}
	return e
}

// newEmployee builds a complete, issue-free record.
func newEmployee(name string) *models.Employee {
	return &models.Employee{
		ID:         uuid.New(),
		Name:       name,
		Emails:     []models.EmailAddress{email(name+"@acme.com", true, "Google Workspace")},
		Department: strPtr("Engineering"),
		Position:   strPtr("Engineer"),
		IssueType:  models.IssueTypeNone,
		IsIncluded: true,
	}
}

func aliasEmployee(name string) *models.Employee {
	e := newEmployee(name)
	e.Emails = []models.EmailAddress{
		email(name+"@acme.io", false, "Slack"),
		email(name+"@acme.com", true, "Google Workspace"),
	}
	e.SetIssue(models.IssueTypeAlias)
	return e
}

func conflictEmployee(name string) *models.Employee {
	e := newEmployee(name)
	e.Conflicts = []models.AttributeConflict{{
		Field: models.FieldDepartment,
		Values: []models.SourceValue{
			{Source: "Google Workspace", Value: "Engineering"},
			{Source: "Microsoft 365", Value: "Product"},
		},
	}}
	e.SetIssue(models.IssueTypeConflict)
	return e
}

func missingEmployee(name string) *models.Employee {
	e := newEmployee(name)
	e.Department = nil
	e.Position = nil
	e.SetIssue(models.IssueTypeMissing)
	return e
}

func mixedRecords(aliases, conflicts, missing, clean int) []*models.Employee {
	var out []*models.Employee
	for i := 0; i < aliases; i++ {
		out = append(out, aliasEmployee("alias"+string(rune('a'+i))))
	}
	for i := 0; i < conflicts; i++ {
		out = append(out, conflictEmployee("conflict"+string(rune('a'+i))))
	}
	for i := 0; i < missing; i++ {
		out = append(out, missingEmployee("missing"+string(rune('a'+i))))
	}
	for i := 0; i < clean; i++ {
		out = append(out, newEmployee("clean"+string(rune('a'+i))))
	}
	return out
}

func assertIssueFlagsConsistent(t *testing.T, records []*models.Employee) {
	t.Helper()
	for _, r := range records {
		if r.HasQualityIssues != (r.IssueType != models.IssueTypeNone) {
			t.Errorf("record %s: has_quality_issues=%v but issue_type=%s", r.Name, r.HasQualityIssues, r.IssueType)
		}
	}
}
