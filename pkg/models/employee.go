package models

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// ============================================================================
// Issue Types
// ============================================================================

// IssueType is the single dominant data-quality problem tagged on an employee.
type IssueType string

const (
	IssueTypeAlias    IssueType = "alias"    // Several email addresses across source systems
	IssueTypeConflict IssueType = "conflict" // Sources disagree on an attribute value
	IssueTypeMissing  IssueType = "missing"  // A required attribute is absent
	IssueTypeNone     IssueType = "none"
)

// ValidIssueTypes contains all valid issue type values.
var ValidIssueTypes = []IssueType{
	IssueTypeAlias,
	IssueTypeConflict,
	IssueTypeMissing,
	IssueTypeNone,
}

// IsValid checks if the issue type is one of the known values.
func (t IssueType) IsValid() bool {
	for _, v := range ValidIssueTypes {
		if v == t {
			return true
		}
	}
	return false
}

// ============================================================================
// Employee Fields
// ============================================================================

// Attribute names accepted by conflict resolution and information completion.
const (
	FieldDepartment = "department"
	FieldPosition   = "position"
	FieldLocation   = "location"
	FieldHireDate   = "hire_date"
)

// HireDateLayout is the wire format for hire dates.
const HireDateLayout = "2006-01-02"

// NotSpecified is the default fill value used by bulk fixes.
const NotSpecified = "Not Specified"

// DefaultRequiredFields are the attributes downstream analysis cannot run without.
var DefaultRequiredFields = []string{FieldDepartment, FieldPosition}

// CanDefaultFill reports whether bulk fixes may write a placeholder into
// field. Hire dates have no meaningful placeholder.
func CanDefaultFill(field string) bool {
	return IsKnownField(field) && field != FieldHireDate
}

// IsKnownField reports whether name is an attribute employees carry.
func IsKnownField(name string) bool {
	switch name {
	case FieldDepartment, FieldPosition, FieldLocation, FieldHireDate:
		return true
	default:
		return false
	}
}

// FieldValues maps attribute names to caller-supplied values.
type FieldValues map[string]string

// ============================================================================
// Employee
// ============================================================================

// EmailAddress is one address an employee is known by in some source system.
type EmailAddress struct {
	Address   string  `json:"address"`
	Source    *string `json:"source,omitempty"`
	IsPrimary bool    `json:"is_primary"`
}

// SourceValue is what a single source system reported for an attribute.
type SourceValue struct {
	Source string `json:"source"`
	Value  string `json:"value"`
}

// AttributeConflict records competing values for one attribute.
type AttributeConflict struct {
	Field  string        `json:"field"`
	Values []SourceValue `json:"values"`
}

// DistinctValues returns the reported values de-duplicated case-insensitively,
// keeping first-seen order.
func (c AttributeConflict) DistinctValues() []string {
	seen := make(map[string]bool, len(c.Values))
	var out []string
	for _, v := range c.Values {
		value := strings.TrimSpace(v.Value)
		if value == "" {
			continue
		}
		key := strings.ToLower(value)
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, value)
	}
	return out
}

// Employee is a discovered employee record.
// Stored in employees table; emails in employee_emails.
// Records held by a reconciliation session are treated as immutable values:
// every change produces a new record via Clone.
type Employee struct {
	ID        uuid.UUID      `json:"id"`
	ProjectID uuid.UUID      `json:"project_id"`
	Name      string         `json:"name"`
	Emails    []EmailAddress `json:"emails"`

	// Activity counters, informational only
	EmailCount      int `json:"email_count"`
	ChatCount       int `json:"chat_count"`
	MeetingCount    int `json:"meeting_count"`
	FileAccessCount int `json:"file_access_count"`

	Department *string    `json:"department,omitempty"`
	Position   *string    `json:"position,omitempty"`
	Location   *string    `json:"location,omitempty"`
	HireDate   *time.Time `json:"hire_date,omitempty"`

	HasQualityIssues bool                `json:"has_quality_issues"`
	IssueType        IssueType           `json:"issue_type"`
	Conflicts        []AttributeConflict `json:"conflicts,omitempty"`
	IsIncluded       bool                `json:"is_included"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Clone returns a deep copy so callers can derive a new record without
// touching the original.
func (e *Employee) Clone() *Employee {
	c := *e
	if e.Emails != nil {
		c.Emails = make([]EmailAddress, len(e.Emails))
		copy(c.Emails, e.Emails)
	}
	if e.Conflicts != nil {
		c.Conflicts = make([]AttributeConflict, len(e.Conflicts))
		for i, conflict := range e.Conflicts {
			c.Conflicts[i] = AttributeConflict{
				Field:  conflict.Field,
				Values: append([]SourceValue(nil), conflict.Values...),
			}
		}
	}
	c.Department = cloneString(e.Department)
	c.Position = cloneString(e.Position)
	c.Location = cloneString(e.Location)
	if e.HireDate != nil {
		d := *e.HireDate
		c.HireDate = &d
	}
	return &c
}

// PrimaryEmail returns the email marked primary, falling back to the first one.
// Returns false if the record has no emails.
func (e *Employee) PrimaryEmail() (EmailAddress, bool) {
	if len(e.Emails) == 0 {
		return EmailAddress{}, false
	}
	for _, email := range e.Emails {
		if email.IsPrimary {
			return email, true
		}
	}
	return e.Emails[0], true
}

// SetIssue tags the record and keeps HasQualityIssues in sync.
func (e *Employee) SetIssue(t IssueType) {
	if t == "" {
		t = IssueTypeNone
	}
	e.IssueType = t
	e.HasQualityIssues = t != IssueTypeNone
}

// FieldValue returns the string form of an attribute, or nil when absent.
func (e *Employee) FieldValue(field string) *string {
	switch field {
	case FieldDepartment:
		return e.Department
	case FieldPosition:
		return e.Position
	case FieldLocation:
		return e.Location
	case FieldHireDate:
		if e.HireDate == nil {
			return nil
		}
		s := e.HireDate.Format(HireDateLayout)
		return &s
	default:
		return nil
	}
}

// HasField reports whether the attribute is present and non-blank.
func (e *Employee) HasField(field string) bool {
	v := e.FieldValue(field)
	return v != nil && strings.TrimSpace(*v) != ""
}

// MissingFields returns which of the required attributes are absent.
func (e *Employee) MissingFields(required []string) []string {
	var missing []string
	for _, field := range required {
		if !e.HasField(field) {
			missing = append(missing, field)
		}
	}
	return missing
}

func cloneString(s *string) *string {
	if s == nil {
		return nil
	}
	v := *s
	return &v
}

// StringPtr returns a pointer to s, or nil for an empty string.
func StringPtr(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
