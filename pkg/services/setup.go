package services

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/ekaya-inc/orgpulse/pkg/apperrors"
	"github.com/ekaya-inc/orgpulse/pkg/crypto"
	"github.com/ekaya-inc/orgpulse/pkg/models"
	"github.com/ekaya-inc/orgpulse/pkg/repositories"
)

// SetupService drives the first-time setup wizard:
// connection, discovery, data quality, anonymization, complete.
type SetupService interface {
	// State returns the project's wizard state, starting at the connection step.
	State(ctx context.Context, projectID uuid.UUID) (*models.SetupState, error)

	// Advance moves to the next step once the current one is done.
	// Returns apperrors.ErrSetupStepOrder when it is not.
	Advance(ctx context.Context, projectID uuid.UUID) (*models.SetupState, error)

	// RunDiscovery discovers employees and starts a fresh data-quality session.
	// Allowed during the discovery and data quality steps.
	RunDiscovery(ctx context.Context, projectID uuid.UUID) (*DiscoveryResult, error)

	// SaveAnonymization stores anonymization settings.
	SaveAnonymization(ctx context.Context, projectID uuid.UUID, settings models.AnonymizationSettings) (*models.SetupState, error)

	// ApplyAnonymization pseudonymizes stored employees according to the
	// saved settings and returns how many records changed. Applies once.
	ApplyAnonymization(ctx context.Context, projectID uuid.UUID) (int, error)
}

type setupService struct {
	repo           repositories.SetupRepository
	connections    ConnectionService
	discovery      DiscoveryService
	reconciliation ReconciliationService
	employees      repositories.EmployeeRepository
	pseudonymizer  *crypto.Pseudonymizer
	listeners      []EmployeeChangeListener
	now            func() time.Time
	logger         *zap.Logger
}

// NewSetupService creates a new setup wizard service.
func NewSetupService(
	repo repositories.SetupRepository,
	connections ConnectionService,
	discovery DiscoveryService,
	reconciliation ReconciliationService,
	employees repositories.EmployeeRepository,
	pseudonymizer *crypto.Pseudonymizer,
	logger *zap.Logger,
	listeners ...EmployeeChangeListener,
) SetupService {
	return &setupService{
		repo:           repo,
		connections:    connections,
		discovery:      discovery,
		reconciliation: reconciliation,
		employees:      employees,
		pseudonymizer:  pseudonymizer,
		listeners:      listeners,
		now:            func() time.Time { return time.Now().UTC() },
		logger:         logger.Named("setup"),
	}
}

var _ SetupService = (*setupService)(nil)

func (s *setupService) State(ctx context.Context, projectID uuid.UUID) (*models.SetupState, error) {
	state, err := s.repo.Get(ctx, projectID)
	if err != nil {
		return nil, err
	}
	if state == nil {
		state = &models.SetupState{
			ProjectID:   projectID,
			CurrentStep: models.SetupStepConnection,
		}
	}
	return state, nil
}

func (s *setupService) Advance(ctx context.Context, projectID uuid.UUID) (*models.SetupState, error) {
	state, err := s.State(ctx, projectID)
	if err != nil {
		return nil, err
	}
	if err := s.checkStepDone(ctx, state); err != nil {
		return nil, err
	}

	from := state.CurrentStep
	state.CurrentStep = from.Next()
	if state.CurrentStep == models.SetupStepComplete {
		now := s.now()
		state.CompletedAt = &now
	}
	if err := s.repo.Save(ctx, state); err != nil {
		return nil, err
	}

	s.logger.Info("Setup advanced",
		zap.String("project_id", projectID.String()),
		zap.String("from", string(from)),
		zap.String("to", string(state.CurrentStep)))
	return state, nil
}

// checkStepDone returns apperrors.ErrSetupStepOrder unless the current step's
// work is finished. Leaving data quality first commits the session.
func (s *setupService) checkStepDone(ctx context.Context, state *models.SetupState) error {
	switch state.CurrentStep {
	case models.SetupStepConnection:
		conns, err := s.connections.List(ctx, state.ProjectID)
		if err != nil {
			return err
		}
		for _, c := range conns {
			if c.Status == models.ConnectionStatusConnected {
				return nil
			}
		}
		return fmt.Errorf("%w: connect and test at least one source first", apperrors.ErrSetupStepOrder)

	case models.SetupStepDiscovery:
		if state.DiscoveredAt == nil {
			return fmt.Errorf("%w: run discovery first", apperrors.ErrSetupStepOrder)
		}
		return nil

	case models.SetupStepDataQuality:
		agg, err := s.reconciliation.Aggregate(ctx, state.ProjectID)
		if err != nil {
			return err
		}
		if agg.TotalIssueCount > 0 {
			return fmt.Errorf("%w: %d data quality issues remain", apperrors.ErrSetupStepOrder, agg.TotalIssueCount)
		}
		if _, err := s.reconciliation.Commit(ctx, state.ProjectID); err != nil {
			return err
		}
		return nil

	case models.SetupStepAnonymization:
		if state.Anonymization.Enabled && state.AnonymizedAt == nil {
			return fmt.Errorf("%w: apply anonymization or disable it first", apperrors.ErrSetupStepOrder)
		}
		return nil

	default:
		return fmt.Errorf("%w: setup is already complete", apperrors.ErrSetupStepOrder)
	}
}

func (s *setupService) RunDiscovery(ctx context.Context, projectID uuid.UUID) (*DiscoveryResult, error) {
	state, err := s.State(ctx, projectID)
	if err != nil {
		return nil, err
	}
	if state.CurrentStep != models.SetupStepDiscovery && state.CurrentStep != models.SetupStepDataQuality {
		return nil, fmt.Errorf("%w: discovery runs during the discovery or data quality step, current step is %s",
			apperrors.ErrSetupStepOrder, state.CurrentStep)
	}

	result, err := s.discovery.Discover(ctx, projectID)
	if err != nil {
		return nil, err
	}

	s.reconciliation.Reset(projectID)
	s.notify(ctx, projectID)

	discoveredAt := result.DiscoveredAt
	state.DiscoveredAt = &discoveredAt
	if err := s.repo.Save(ctx, state); err != nil {
		return nil, err
	}
	return result, nil
}

func (s *setupService) SaveAnonymization(ctx context.Context, projectID uuid.UUID, settings models.AnonymizationSettings) (*models.SetupState, error) {
	state, err := s.State(ctx, projectID)
	if err != nil {
		return nil, err
	}
	if state.CurrentStep != models.SetupStepAnonymization {
		return nil, fmt.Errorf("%w: current step is %s", apperrors.ErrSetupStepOrder, state.CurrentStep)
	}
	if state.AnonymizedAt != nil {
		return nil, fmt.Errorf("%w: anonymization was already applied", apperrors.ErrConflict)
	}
	if !settings.Enabled {
		settings.HashNames = false
		settings.HashEmails = false
	} else if !settings.HashNames && !settings.HashEmails {
		return nil, fmt.Errorf("%w: choose names, emails or both to anonymize", apperrors.ErrValidation)
	}

	state.Anonymization = settings
	if err := s.repo.Save(ctx, state); err != nil {
		return nil, err
	}
	return state, nil
}

func (s *setupService) ApplyAnonymization(ctx context.Context, projectID uuid.UUID) (int, error) {
	state, err := s.State(ctx, projectID)
	if err != nil {
		return 0, err
	}
	if state.CurrentStep != models.SetupStepAnonymization {
		return 0, fmt.Errorf("%w: current step is %s", apperrors.ErrSetupStepOrder, state.CurrentStep)
	}
	if !state.Anonymization.Enabled {
		return 0, fmt.Errorf("%w: anonymization is disabled", apperrors.ErrValidation)
	}
	if state.AnonymizedAt != nil {
		return 0, fmt.Errorf("%w: anonymization was already applied", apperrors.ErrConflict)
	}

	employees, err := s.employees.List(ctx, projectID, repositories.EmployeeFilter{})
	if err != nil {
		return 0, err
	}
	changed := AnonymizeEmployees(s.pseudonymizer, employees, state.Anonymization)
	if err := s.employees.SaveAll(ctx, projectID, changed); err != nil {
		return 0, fmt.Errorf("failed to save anonymized employees: %w", err)
	}

	now := s.now()
	state.AnonymizedAt = &now
	if err := s.repo.Save(ctx, state); err != nil {
		return 0, err
	}

	s.reconciliation.Reset(projectID)
	s.notify(ctx, projectID)
	s.logger.Info("Applied anonymization",
		zap.String("project_id", projectID.String()),
		zap.Bool("names", state.Anonymization.HashNames),
		zap.Bool("emails", state.Anonymization.HashEmails),
		zap.Int("records", len(changed)))
	return len(changed), nil
}

func (s *setupService) notify(ctx context.Context, projectID uuid.UUID) {
	for _, l := range s.listeners {
		l.EmployeesChanged(ctx, projectID)
	}
}

// AnonymizeEmployees returns pseudonymized copies of the employees. Activity
// counters and attributes are kept so analytics still work.
func AnonymizeEmployees(p *crypto.Pseudonymizer, employees []*models.Employee, settings models.AnonymizationSettings) []*models.Employee {
	out := make([]*models.Employee, 0, len(employees))
	for _, e := range employees {
		c := e.Clone()
		if settings.HashNames {
			c.Name = p.Name(e.Name)
		}
		if settings.HashEmails {
			for i := range c.Emails {
				c.Emails[i].Address = p.Email(c.Emails[i].Address)
			}
		}
		out = append(out, c)
	}
	return out
}
