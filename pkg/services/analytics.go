package services

import (
	"context"
	"fmt"
	"math"
	"sort"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/ekaya-inc/orgpulse/pkg/models"
	"github.com/ekaya-inc/orgpulse/pkg/repositories"
)

// UnassignedDepartment groups employees without a department.
const UnassignedDepartment = "Unassigned"

// AnalyticsService computes the dashboard overview from stored employees.
type AnalyticsService interface {
	Overview(ctx context.Context, projectID uuid.UUID) (*models.AnalyticsOverview, error)
}

type analyticsService struct {
	employees repositories.EmployeeRepository
	cache     OverviewCache
	logger    *zap.Logger
}

// NewAnalyticsService creates a new analytics service.
func NewAnalyticsService(employees repositories.EmployeeRepository, cache OverviewCache, logger *zap.Logger) AnalyticsService {
	if cache == nil {
		cache = noopOverviewCache{}
	}
	return &analyticsService{
		employees: employees,
		cache:     cache,
		logger:    logger.Named("analytics"),
	}
}

var _ AnalyticsService = (*analyticsService)(nil)

func (s *analyticsService) Overview(ctx context.Context, projectID uuid.UUID) (*models.AnalyticsOverview, error) {
	cached, err := s.cache.Get(ctx, projectID)
	if err != nil {
		// A broken cache only costs a recomputation.
		s.logger.Warn("Analytics cache read failed",
			zap.String("project_id", projectID.String()),
			zap.Error(err))
	}
	if cached != nil {
		return cached, nil
	}

	employees, err := s.employees.List(ctx, projectID, repositories.EmployeeFilter{})
	if err != nil {
		return nil, fmt.Errorf("failed to list employees: %w", err)
	}
	overview := BuildOverview(employees)

	if err := s.cache.Set(ctx, projectID, overview); err != nil {
		s.logger.Warn("Analytics cache write failed",
			zap.String("project_id", projectID.String()),
			zap.Error(err))
	}
	return overview, nil
}

// BuildOverview aggregates activity of included employees per department.
// The collaboration index of a department is the share of chat and meeting
// activity in all of its activity, rounded to two decimals.
func BuildOverview(employees []*models.Employee) *models.AnalyticsOverview {
	overview := &models.AnalyticsOverview{
		Headcount:   len(employees),
		Departments: []models.DepartmentActivity{},
	}
	byName := make(map[string]*models.DepartmentActivity)

	for _, e := range employees {
		if e.HasQualityIssues {
			overview.IssueCount++
		}
		if !e.IsIncluded {
			continue
		}
		overview.IncludedCount++

		name := UnassignedDepartment
		if e.HasField(models.FieldDepartment) {
			name = *e.Department
		}
		d, ok := byName[name]
		if !ok {
			d = &models.DepartmentActivity{Department: name}
			byName[name] = d
		}
		d.Headcount++
		d.EmailCount += e.EmailCount
		d.ChatCount += e.ChatCount
		d.MeetingCount += e.MeetingCount
		d.FileAccessCount += e.FileAccessCount
	}

	var sum float64
	for _, d := range byName {
		total := d.EmailCount + d.ChatCount + d.MeetingCount
		if total > 0 {
			d.Collaboration = round2(float64(d.ChatCount+d.MeetingCount) / float64(total))
		}
		sum += d.Collaboration
		overview.Departments = append(overview.Departments, *d)
	}
	sort.Slice(overview.Departments, func(i, j int) bool {
		a, b := overview.Departments[i], overview.Departments[j]
		if a.Headcount != b.Headcount {
			return a.Headcount > b.Headcount
		}
		return a.Department < b.Department
	})
	if len(byName) > 0 {
		overview.CollaborationMean = round2(sum / float64(len(byName)))
	}
	return overview
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
