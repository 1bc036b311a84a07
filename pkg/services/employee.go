package services

import (
	"context"
	"fmt"
	"net/mail"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/ekaya-inc/orgpulse/pkg/apperrors"
	"github.com/ekaya-inc/orgpulse/pkg/logging"
	"github.com/ekaya-inc/orgpulse/pkg/models"
	"github.com/ekaya-inc/orgpulse/pkg/reconcile"
	"github.com/ekaya-inc/orgpulse/pkg/repositories"
	"github.com/ekaya-inc/orgpulse/pkg/validation"
)

// EmployeeChangeListener is told when stored employees of a project changed
// outside a reconciliation session.
type EmployeeChangeListener interface {
	EmployeesChanged(ctx context.Context, projectID uuid.UUID)
}

// EmployeeInput carries caller-supplied employee attributes.
// Nil attribute pointers leave the stored value unchanged on update.
type EmployeeInput struct {
	Name       string
	Emails     []models.EmailAddress
	Department *string
	Position   *string
	Location   *string
	HireDate   *time.Time
	IsIncluded *bool
}

// EmployeeService manages stored employee records.
type EmployeeService interface {
	List(ctx context.Context, projectID uuid.UUID, filter repositories.EmployeeFilter) ([]*models.Employee, error)
	Get(ctx context.Context, projectID, id uuid.UUID) (*models.Employee, error)
	Create(ctx context.Context, projectID uuid.UUID, input EmployeeInput) (*models.Employee, error)
	Update(ctx context.Context, projectID, id uuid.UUID, input EmployeeInput) (*models.Employee, error)
	Delete(ctx context.Context, projectID, id uuid.UUID) error
	// DeleteMany removes several employees and returns how many existed.
	DeleteMany(ctx context.Context, projectID uuid.UUID, ids []uuid.UUID) (int, error)
	SetIncluded(ctx context.Context, projectID, id uuid.UUID, included bool) error
}

type employeeService struct {
	repo      repositories.EmployeeRepository
	required  []string
	listeners []EmployeeChangeListener
	logger    *zap.Logger
}

// NewEmployeeService creates a new employee service. required lists the
// attributes a record needs to be free of missing-data issues.
func NewEmployeeService(
	repo repositories.EmployeeRepository,
	required []string,
	logger *zap.Logger,
	listeners ...EmployeeChangeListener,
) EmployeeService {
	if len(required) == 0 {
		required = models.DefaultRequiredFields
	}
	return &employeeService{
		repo:      repo,
		required:  required,
		listeners: listeners,
		logger:    logger.Named("employees"),
	}
}

var _ EmployeeService = (*employeeService)(nil)

func (s *employeeService) List(ctx context.Context, projectID uuid.UUID, filter repositories.EmployeeFilter) ([]*models.Employee, error) {
	if filter.IssueType != "" && !filter.IssueType.IsValid() {
		return nil, fmt.Errorf("%w: unknown issue type %q", apperrors.ErrValidation, filter.IssueType)
	}
	return s.repo.List(ctx, projectID, filter)
}

func (s *employeeService) Get(ctx context.Context, projectID, id uuid.UUID) (*models.Employee, error) {
	return s.repo.GetByID(ctx, projectID, id)
}

func (s *employeeService) Create(ctx context.Context, projectID uuid.UUID, input EmployeeInput) (*models.Employee, error) {
	name := strings.TrimSpace(input.Name)
	if name == "" {
		return nil, fmt.Errorf("%w: employee name is required", apperrors.ErrValidation)
	}
	emails, err := cleanEmails(input.Emails)
	if err != nil {
		return nil, err
	}
	if len(emails) == 0 {
		return nil, fmt.Errorf("%w: at least one email address is required", apperrors.ErrValidation)
	}

	e := &models.Employee{
		ID:         uuid.New(),
		ProjectID:  projectID,
		Name:       name,
		Emails:     emails,
		IsIncluded: true,
	}
	if input.IsIncluded != nil {
		e.IsIncluded = *input.IsIncluded
	}
	if err := applyAttributes(e, input); err != nil {
		return nil, err
	}
	e.SetIssue(reconcile.DetectIssueType(e, s.required))

	if err := s.repo.Create(ctx, e); err != nil {
		return nil, err
	}

	s.logger.Info("Created employee",
		zap.String("project_id", projectID.String()),
		zap.String("employee_id", e.ID.String()),
		zap.String("issue_type", string(e.IssueType)))
	s.notify(ctx, projectID)
	return e, nil
}

// Update overwrites the supplied attributes. Conflicts recorded for an
// attribute the caller set are dropped, and the issue is re-derived.
func (s *employeeService) Update(ctx context.Context, projectID, id uuid.UUID, input EmployeeInput) (*models.Employee, error) {
	current, err := s.repo.GetByID(ctx, projectID, id)
	if err != nil {
		return nil, err
	}
	e := current.Clone()

	if name := strings.TrimSpace(input.Name); name != "" {
		e.Name = name
	}
	if input.Emails != nil {
		emails, err := cleanEmails(input.Emails)
		if err != nil {
			return nil, err
		}
		if len(emails) == 0 {
			return nil, fmt.Errorf("%w: at least one email address is required", apperrors.ErrValidation)
		}
		e.Emails = emails
	}
	if input.IsIncluded != nil {
		e.IsIncluded = *input.IsIncluded
	}
	if err := applyAttributes(e, input); err != nil {
		return nil, err
	}

	var kept []models.AttributeConflict
	for _, c := range e.Conflicts {
		if !inputSets(input, c.Field) {
			kept = append(kept, c)
		}
	}
	e.Conflicts = kept
	e.SetIssue(reconcile.DetectIssueType(e, s.required))

	if err := s.repo.Update(ctx, e); err != nil {
		return nil, err
	}
	s.notify(ctx, projectID)
	return e, nil
}

func (s *employeeService) Delete(ctx context.Context, projectID, id uuid.UUID) error {
	if err := s.repo.Delete(ctx, projectID, id); err != nil {
		return err
	}
	s.logger.Info("Deleted employee",
		zap.String("project_id", projectID.String()),
		zap.String("employee_id", id.String()))
	s.notify(ctx, projectID)
	return nil
}

func (s *employeeService) DeleteMany(ctx context.Context, projectID uuid.UUID, ids []uuid.UUID) (int, error) {
	if len(ids) == 0 {
		return 0, fmt.Errorf("%w: no employee ids given", apperrors.ErrValidation)
	}
	n, err := s.repo.DeleteMany(ctx, projectID, ids)
	if err != nil {
		return 0, err
	}
	s.logger.Info("Deleted employees",
		zap.String("project_id", projectID.String()),
		zap.Int("requested", len(ids)),
		zap.Int("deleted", n))
	if n > 0 {
		s.notify(ctx, projectID)
	}
	return n, nil
}

func (s *employeeService) SetIncluded(ctx context.Context, projectID, id uuid.UUID, included bool) error {
	if err := s.repo.SetIncluded(ctx, projectID, id, included); err != nil {
		return err
	}
	s.notify(ctx, projectID)
	return nil
}

func (s *employeeService) notify(ctx context.Context, projectID uuid.UUID) {
	for _, l := range s.listeners {
		l.EmployeesChanged(ctx, projectID)
	}
}

// cleanEmails validates addresses, drops case-insensitive duplicates and
// keeps at most one primary.
func cleanEmails(in []models.EmailAddress) ([]models.EmailAddress, error) {
	seen := make(map[string]bool, len(in))
	out := make([]models.EmailAddress, 0, len(in))
	primary := false
	for _, email := range in {
		address := strings.TrimSpace(email.Address)
		parsed, err := mail.ParseAddress(address)
		if err != nil || parsed.Address != address {
			return nil, fmt.Errorf("%w: invalid email address %s", apperrors.ErrValidation, logging.MaskEmail(address))
		}
		key := strings.ToLower(address)
		if seen[key] {
			continue
		}
		seen[key] = true
		email.Address = address
		if email.IsPrimary {
			email.IsPrimary = !primary
			primary = true
		}
		out = append(out, email)
	}
	return out, nil
}

func applyAttributes(e *models.Employee, input EmployeeInput) error {
	set := func(field string, value *string, dst **string) error {
		if value == nil {
			return nil
		}
		if strings.TrimSpace(*value) == "" {
			*dst = nil
			return nil
		}
		v, err := validation.CleanFieldValue(field, *value)
		if err != nil {
			return fmt.Errorf("%w: %v", apperrors.ErrValidation, err)
		}
		*dst = &v
		return nil
	}
	if err := set(models.FieldDepartment, input.Department, &e.Department); err != nil {
		return err
	}
	if err := set(models.FieldPosition, input.Position, &e.Position); err != nil {
		return err
	}
	if err := set(models.FieldLocation, input.Location, &e.Location); err != nil {
		return err
	}
	if input.HireDate != nil {
		d := input.HireDate.UTC().Truncate(24 * time.Hour)
		e.HireDate = &d
	}
	return nil
}

func inputSets(input EmployeeInput, field string) bool {
	switch field {
	case models.FieldDepartment:
		return input.Department != nil
	case models.FieldPosition:
		return input.Position != nil
	case models.FieldLocation:
		return input.Location != nil
	default:
		return false
	}
}
