package reconcile

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/ekaya-inc/orgpulse/pkg/apperrors"
	"github.com/ekaya-inc/orgpulse/pkg/models"
	"github.com/ekaya-inc/orgpulse/pkg/validation"
)

// CombinedSeparator joins competing source values in the recommended resolution.
const CombinedSeparator = " / "

// Engine applies single-record remediation operations against a RecordStore.
// Every operation replaces the stored record with a new value; on failure the
// store is left untouched.
type Engine struct {
	store    *RecordStore
	required []string
	now      func() time.Time
	logger   *zap.Logger
}

// NewEngine creates an Engine over store. required lists the attributes a
// record needs before a missing-data issue can be cleared.
func NewEngine(store *RecordStore, required []string, logger *zap.Logger) *Engine {
	if len(required) == 0 {
		required = models.DefaultRequiredFields
	}
	return &Engine{
		store:    store,
		required: required,
		now:      func() time.Time { return time.Now().UTC() },
		logger:   logger.Named("resolution"),
	}
}

// MergeAliases reduces a record's emails to its primary address.
// A record with a single email is returned unchanged. The issue is cleared
// only when the record is tagged as an alias issue.
func (e *Engine) MergeAliases(id uuid.UUID) (*models.Employee, error) {
	current, err := e.lookup(id)
	if err != nil {
		return nil, err
	}

	next, changed := mergeAliases(current)
	if !changed {
		return current, nil
	}
	return e.commit(next, "merge_aliases")
}

// ApplyConflictResolution commits the caller-chosen values to the record's
// conflicting attributes and clears a conflict issue.
func (e *Engine) ApplyConflictResolution(id uuid.UUID, chosen models.FieldValues) (*models.Employee, error) {
	current, err := e.lookup(id)
	if err != nil {
		return nil, err
	}

	next, err := applyResolution(current, chosen)
	if err != nil {
		return nil, err
	}
	return e.commit(next, "apply_conflict_resolution")
}

// CompleteInformation fills absent attributes from fields without
// overwriting present ones, clearing a missing-data issue once every
// required attribute is present.
func (e *Engine) CompleteInformation(id uuid.UUID, fields models.FieldValues) (*models.Employee, error) {
	current, err := e.lookup(id)
	if err != nil {
		return nil, err
	}

	next, err := completeInformation(current, fields, e.required)
	if err != nil {
		return nil, err
	}
	return e.commit(next, "complete_information")
}

// ToggleInclusion flips whether the record participates in analysis.
func (e *Engine) ToggleInclusion(id uuid.UUID) (*models.Employee, error) {
	current, err := e.lookup(id)
	if err != nil {
		return nil, err
	}

	next := current.Clone()
	next.IsIncluded = !current.IsIncluded
	return e.commit(next, "toggle_inclusion")
}

func (e *Engine) lookup(id uuid.UUID) (*models.Employee, error) {
	current, ok := e.store.Lookup(id)
	if !ok {
		return nil, fmt.Errorf("%w: %s", apperrors.ErrRecordNotFound, id)
	}
	return current, nil
}

func (e *Engine) commit(next *models.Employee, op string) (*models.Employee, error) {
	next.UpdatedAt = e.now()
	if err := e.store.Replace(next.ID, next); err != nil {
		return nil, err
	}
	e.logger.Debug("Applied resolution",
		zap.String("operation", op),
		zap.String("employee_id", next.ID.String()),
		zap.String("issue_type", string(next.IssueType)))
	return next, nil
}

// ============================================================================
// Record transforms (pure; shared with the bulk coordinator)
// ============================================================================

// mergeAliases returns a copy of r keeping only its primary email.
// changed is false when r already has at most one email.
func mergeAliases(r *models.Employee) (*models.Employee, bool) {
	if len(r.Emails) <= 1 {
		return r, false
	}
	primary, _ := r.PrimaryEmail()

	next := r.Clone()
	next.Emails = []models.EmailAddress{primary}
	if next.IssueType == models.IssueTypeAlias {
		next.SetIssue(models.IssueTypeNone)
	}
	return next, true
}

// applyResolution returns a copy of r with chosen committed.
func applyResolution(r *models.Employee, chosen models.FieldValues) (*models.Employee, error) {
	values, err := usableValues(chosen)
	if err != nil {
		return nil, err
	}

	next := r.Clone()
	for field, value := range values {
		if err := setField(next, field, value); err != nil {
			return nil, err
		}
	}

	remaining := next.Conflicts[:0]
	for _, c := range next.Conflicts {
		if _, resolved := values[c.Field]; !resolved {
			remaining = append(remaining, c)
		}
	}
	next.Conflicts = remaining
	if len(next.Conflicts) == 0 {
		next.Conflicts = nil
	}

	if next.IssueType == models.IssueTypeConflict {
		next.SetIssue(models.IssueTypeNone)
	}
	return next, nil
}

// completeInformation returns a copy of r with absent attributes filled.
func completeInformation(r *models.Employee, fields models.FieldValues, required []string) (*models.Employee, error) {
	values, err := usableValues(fields)
	if err != nil {
		return nil, err
	}

	next := r.Clone()
	for field, value := range values {
		if next.HasField(field) {
			continue
		}
		if err := setField(next, field, value); err != nil {
			return nil, err
		}
	}

	if next.IssueType == models.IssueTypeMissing && len(next.MissingFields(required)) == 0 {
		next.SetIssue(models.IssueTypeNone)
	}
	return next, nil
}

// fillDefaults returns a copy of r with every absent required attribute set
// to fill. Hire dates cannot take a textual default and are left absent.
func fillDefaults(r *models.Employee, required []string, fill string) *models.Employee {
	next := r.Clone()
	for _, field := range next.MissingFields(required) {
		if !models.CanDefaultFill(field) {
			continue
		}
		_ = setField(next, field, fill)
	}
	return next
}

// RecommendedResolution computes the "Combined (Recommended)" value for a
// conflict: the distinct reported values of each conflicting attribute,
// joined in discovery order. Hire dates take the first reported date.
// A record without recorded conflicts keeps its current department, or
// gets NotSpecified.
func RecommendedResolution(r *models.Employee) models.FieldValues {
	values := models.FieldValues{}
	for _, c := range r.Conflicts {
		if !models.IsKnownField(c.Field) {
			continue
		}
		distinct := c.DistinctValues()
		if len(distinct) == 0 {
			continue
		}
		if c.Field == models.FieldHireDate {
			values[c.Field] = distinct[0]
			continue
		}
		values[c.Field] = strings.Join(distinct, CombinedSeparator)
	}

	if len(values) == 0 {
		if r.HasField(models.FieldDepartment) {
			values[models.FieldDepartment] = *r.Department
		} else {
			values[models.FieldDepartment] = models.NotSpecified
		}
	}
	return values
}

// firstValueResolution picks the first reported value of every conflict.
// Used by fix-all when the combined value is rejected.
func firstValueResolution(r *models.Employee) models.FieldValues {
	values := models.FieldValues{}
	for _, c := range r.Conflicts {
		if distinct := c.DistinctValues(); len(distinct) > 0 && models.IsKnownField(c.Field) {
			values[c.Field] = distinct[0]
		}
	}
	return values
}

// usableValues keeps the entries with a known attribute name and a value that
// passes the input screen. Returns ErrValidation when nothing is usable.
func usableValues(fields models.FieldValues) (models.FieldValues, error) {
	usable := models.FieldValues{}
	var rejected []string
	for field, raw := range fields {
		if !models.IsKnownField(field) {
			rejected = append(rejected, field)
			continue
		}
		value, err := validation.CleanFieldValue(field, raw)
		if err != nil {
			rejected = append(rejected, field)
			continue
		}
		if field == models.FieldHireDate {
			if _, err := time.Parse(models.HireDateLayout, value); err != nil {
				rejected = append(rejected, field)
				continue
			}
		}
		usable[field] = value
	}

	if len(usable) == 0 {
		if len(rejected) > 0 {
			return nil, fmt.Errorf("%w: no usable fields (rejected: %s)", apperrors.ErrValidation, strings.Join(rejected, ", "))
		}
		return nil, fmt.Errorf("%w: no fields supplied", apperrors.ErrValidation)
	}
	return usable, nil
}

func setField(e *models.Employee, field, value string) error {
	switch field {
	case models.FieldDepartment:
		e.Department = &value
	case models.FieldPosition:
		e.Position = &value
	case models.FieldLocation:
		e.Location = &value
	case models.FieldHireDate:
		d, err := time.Parse(models.HireDateLayout, value)
		if err != nil {
			return fmt.Errorf("%w: hire_date must be YYYY-MM-DD", apperrors.ErrValidation)
		}
		e.HireDate = &d
	default:
		return fmt.Errorf("%w: unknown field %q", apperrors.ErrValidation, field)
	}
	return nil
}
