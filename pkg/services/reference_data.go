package services

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/text/collate"
	"golang.org/x/text/language"
	"gopkg.in/yaml.v3"

	"github.com/ekaya-inc/orgpulse/pkg/apperrors"
	"github.com/ekaya-inc/orgpulse/pkg/models"
	"github.com/ekaya-inc/orgpulse/pkg/repositories"
)

// ReferenceDefaults is the shape of the reference data YAML file.
type ReferenceDefaults struct {
	Departments []string `yaml:"departments"`
	Locations   []string `yaml:"locations"`
}

// LoadReferenceDefaults reads default departments and locations from a YAML
// file. An empty path yields empty defaults.
func LoadReferenceDefaults(path string) (*ReferenceDefaults, error) {
	defaults := &ReferenceDefaults{}
	if path == "" {
		return defaults, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read reference data: %w", err)
	}
	if err := yaml.Unmarshal(data, defaults); err != nil {
		return nil, fmt.Errorf("failed to parse reference data %s: %w", path, err)
	}
	return defaults, nil
}

// ReferenceDataService manages departments and locations.
type ReferenceDataService interface {
	// Load returns the selectable departments and locations for a project:
	// stored rows merged with the configured defaults, sorted for display.
	Load(ctx context.Context, projectID uuid.UUID) (*models.ReferenceData, error)

	ListDepartments(ctx context.Context, projectID uuid.UUID) ([]*models.Department, error)
	CreateDepartment(ctx context.Context, projectID uuid.UUID, name, description string, parentID *uuid.UUID) (*models.Department, error)
	UpdateDepartment(ctx context.Context, projectID, id uuid.UUID, name, description string, parentID *uuid.UUID) (*models.Department, error)
	DeleteDepartment(ctx context.Context, projectID, id uuid.UUID) error

	ListLocations(ctx context.Context, projectID uuid.UUID) ([]*models.Location, error)
	CreateLocation(ctx context.Context, projectID uuid.UUID, name string) (*models.Location, error)
}

type referenceDataService struct {
	departments repositories.DepartmentRepository
	locations   repositories.LocationRepository
	defaults    *ReferenceDefaults
	logger      *zap.Logger
}

// NewReferenceDataService creates a new reference data service.
func NewReferenceDataService(
	departments repositories.DepartmentRepository,
	locations repositories.LocationRepository,
	defaults *ReferenceDefaults,
	logger *zap.Logger,
) ReferenceDataService {
	if defaults == nil {
		defaults = &ReferenceDefaults{}
	}
	return &referenceDataService{
		departments: departments,
		locations:   locations,
		defaults:    defaults,
		logger:      logger.Named("reference-data"),
	}
}

var _ ReferenceDataService = (*referenceDataService)(nil)

func (s *referenceDataService) Load(ctx context.Context, projectID uuid.UUID) (*models.ReferenceData, error) {
	departments, err := s.departments.List(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("failed to list departments: %w", err)
	}
	locations, err := s.locations.List(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("failed to list locations: %w", err)
	}

	deptNames := make([]string, 0, len(departments)+len(s.defaults.Departments))
	for _, d := range departments {
		deptNames = append(deptNames, d.Name)
	}
	locNames := make([]string, 0, len(locations)+len(s.defaults.Locations))
	for _, l := range locations {
		locNames = append(locNames, l.Name)
	}

	return &models.ReferenceData{
		Departments: mergeNames(deptNames, s.defaults.Departments),
		Locations:   mergeNames(locNames, s.defaults.Locations),
	}, nil
}

func (s *referenceDataService) ListDepartments(ctx context.Context, projectID uuid.UUID) ([]*models.Department, error) {
	return s.departments.List(ctx, projectID)
}

func (s *referenceDataService) CreateDepartment(ctx context.Context, projectID uuid.UUID, name, description string, parentID *uuid.UUID) (*models.Department, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, fmt.Errorf("%w: department name is required", apperrors.ErrValidation)
	}
	if parentID != nil {
		if _, err := s.departments.GetByID(ctx, projectID, *parentID); err != nil {
			return nil, fmt.Errorf("parent department: %w", err)
		}
	}

	d := &models.Department{
		ProjectID:   projectID,
		Name:        name,
		Description: strings.TrimSpace(description),
		ParentID:    parentID,
	}
	if err := s.departments.Create(ctx, d); err != nil {
		return nil, err
	}

	s.logger.Info("Created department",
		zap.String("project_id", projectID.String()),
		zap.String("department_id", d.ID.String()),
		zap.String("name", name))
	return d, nil
}

func (s *referenceDataService) UpdateDepartment(ctx context.Context, projectID, id uuid.UUID, name, description string, parentID *uuid.UUID) (*models.Department, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, fmt.Errorf("%w: department name is required", apperrors.ErrValidation)
	}
	if parentID != nil && *parentID == id {
		return nil, fmt.Errorf("%w: a department cannot be its own parent", apperrors.ErrValidation)
	}

	d, err := s.departments.GetByID(ctx, projectID, id)
	if err != nil {
		return nil, err
	}
	d.Name = name
	d.Description = strings.TrimSpace(description)
	d.ParentID = parentID
	if err := s.departments.Update(ctx, d); err != nil {
		return nil, err
	}
	return d, nil
}

func (s *referenceDataService) DeleteDepartment(ctx context.Context, projectID, id uuid.UUID) error {
	if err := s.departments.Delete(ctx, projectID, id); err != nil {
		return err
	}
	s.logger.Info("Deleted department",
		zap.String("project_id", projectID.String()),
		zap.String("department_id", id.String()))
	return nil
}

func (s *referenceDataService) ListLocations(ctx context.Context, projectID uuid.UUID) ([]*models.Location, error) {
	return s.locations.List(ctx, projectID)
}

func (s *referenceDataService) CreateLocation(ctx context.Context, projectID uuid.UUID, name string) (*models.Location, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, fmt.Errorf("%w: location name is required", apperrors.ErrValidation)
	}
	l := &models.Location{ProjectID: projectID, Name: name}
	if err := s.locations.Create(ctx, l); err != nil {
		if errors.Is(err, apperrors.ErrConflict) {
			return nil, fmt.Errorf("location %q: %w", name, err)
		}
		return nil, err
	}
	return l, nil
}

// mergeNames unions name lists case-insensitively, keeping the first
// spelling seen, and sorts the result with English collation.
func mergeNames(lists ...[]string) []string {
	seen := make(map[string]bool)
	out := []string{}
	for _, list := range lists {
		for _, name := range list {
			name = strings.TrimSpace(name)
			key := strings.ToLower(name)
			if name == "" || seen[key] {
				continue
			}
			seen[key] = true
			out = append(out, name)
		}
	}
	collate.New(language.English, collate.IgnoreCase).SortStrings(out)
	return out
}
