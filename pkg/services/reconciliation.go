package services

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jinzhu/inflection"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/ekaya-inc/orgpulse/pkg/models"
	"github.com/ekaya-inc/orgpulse/pkg/reconcile"
	"github.com/ekaya-inc/orgpulse/pkg/repositories"
	"github.com/ekaya-inc/orgpulse/pkg/retry"
)

// ReconciliationConfig configures data-quality sessions.
type ReconciliationConfig struct {
	RequiredFields []string
	FillValue      string
	BulkDelay      time.Duration
	// BulkTimeout bounds a bulk batch; a batch that times out commits nothing.
	BulkTimeout time.Duration
	// Retry governs persisting resolved records. Nil uses retry.DefaultConfig.
	Retry *retry.Config
}

// BulkOutcome is a bulk result with a human-readable summary.
type BulkOutcome struct {
	*models.BulkResult
	Summary string `json:"summary"`
}

// ReconciliationService runs the data-quality workflow of a project over an
// in-memory session loaded from stored employees. Changes stay in the session
// until Commit persists them.
type ReconciliationService interface {
	// Session returns the project's session, loading it on first use.
	Session(ctx context.Context, projectID uuid.UUID) (*reconcile.Session, error)

	Aggregate(ctx context.Context, projectID uuid.UUID) (models.IssueAggregate, error)
	RecordsByIssue(ctx context.Context, projectID uuid.UUID, issueType models.IssueType) ([]*models.Employee, error)
	Recommendation(ctx context.Context, projectID, id uuid.UUID) (models.FieldValues, error)

	MergeAliases(ctx context.Context, projectID, id uuid.UUID) (*models.Employee, error)
	ApplyConflictResolution(ctx context.Context, projectID, id uuid.UUID, chosen models.FieldValues) (*models.Employee, error)
	CompleteInformation(ctx context.Context, projectID, id uuid.UUID, fields models.FieldValues) (*models.Employee, error)
	ToggleInclusion(ctx context.Context, projectID, id uuid.UUID) (*models.Employee, error)
	RunBulk(ctx context.Context, projectID uuid.UUID, op models.BulkOperation) (*BulkOutcome, error)

	// Commit persists records changed in the session and returns how many were saved.
	Commit(ctx context.Context, projectID uuid.UUID) (int, error)

	// Reset discards the project's session, including uncommitted changes.
	Reset(projectID uuid.UUID)

	EmployeeChangeListener
}

type reconciliationService struct {
	employees repositories.EmployeeRepository
	cache     OverviewCache
	cfg       ReconciliationConfig
	logger    *zap.Logger

	mu       sync.Mutex
	sessions map[uuid.UUID]*reconcile.Session
	loads    singleflight.Group
}

// NewReconciliationService creates a new reconciliation service.
func NewReconciliationService(
	employees repositories.EmployeeRepository,
	cache OverviewCache,
	cfg ReconciliationConfig,
	logger *zap.Logger,
) ReconciliationService {
	if cache == nil {
		cache = noopOverviewCache{}
	}
	return &reconciliationService{
		employees: employees,
		cache:     cache,
		cfg:       cfg,
		logger:    logger.Named("reconciliation"),
		sessions:  make(map[uuid.UUID]*reconcile.Session),
	}
}

var _ ReconciliationService = (*reconciliationService)(nil)

func (s *reconciliationService) Session(ctx context.Context, projectID uuid.UUID) (*reconcile.Session, error) {
	s.mu.Lock()
	session, ok := s.sessions[projectID]
	s.mu.Unlock()
	if ok {
		return session, nil
	}

	v, err, _ := s.loads.Do(projectID.String(), func() (any, error) {
		s.mu.Lock()
		if existing, ok := s.sessions[projectID]; ok {
			s.mu.Unlock()
			return existing, nil
		}
		s.mu.Unlock()

		records, err := s.employees.List(ctx, projectID, repositories.EmployeeFilter{})
		if err != nil {
			return nil, fmt.Errorf("failed to load employees: %w", err)
		}
		loaded := reconcile.NewSession(projectID, records, reconcile.Options{
			RequiredFields: s.cfg.RequiredFields,
			FillValue:      s.cfg.FillValue,
			BulkDelay:      s.cfg.BulkDelay,
		}, s.logger)

		s.mu.Lock()
		s.sessions[projectID] = loaded
		s.mu.Unlock()
		return loaded, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*reconcile.Session), nil
}

func (s *reconciliationService) Aggregate(ctx context.Context, projectID uuid.UUID) (models.IssueAggregate, error) {
	session, err := s.Session(ctx, projectID)
	if err != nil {
		return models.IssueAggregate{}, err
	}
	return session.GetAggregate(), nil
}

func (s *reconciliationService) RecordsByIssue(ctx context.Context, projectID uuid.UUID, issueType models.IssueType) ([]*models.Employee, error) {
	session, err := s.Session(ctx, projectID)
	if err != nil {
		return nil, err
	}
	return session.GetRecordsByIssue(issueType)
}

func (s *reconciliationService) Recommendation(ctx context.Context, projectID, id uuid.UUID) (models.FieldValues, error) {
	session, err := s.Session(ctx, projectID)
	if err != nil {
		return nil, err
	}
	return session.Recommendation(id)
}

func (s *reconciliationService) MergeAliases(ctx context.Context, projectID, id uuid.UUID) (*models.Employee, error) {
	session, err := s.Session(ctx, projectID)
	if err != nil {
		return nil, err
	}
	return session.MergeAliases(id)
}

func (s *reconciliationService) ApplyConflictResolution(ctx context.Context, projectID, id uuid.UUID, chosen models.FieldValues) (*models.Employee, error) {
	session, err := s.Session(ctx, projectID)
	if err != nil {
		return nil, err
	}
	return session.ApplyConflictResolution(id, chosen)
}

func (s *reconciliationService) CompleteInformation(ctx context.Context, projectID, id uuid.UUID, fields models.FieldValues) (*models.Employee, error) {
	session, err := s.Session(ctx, projectID)
	if err != nil {
		return nil, err
	}
	return session.CompleteInformation(id, fields)
}

func (s *reconciliationService) ToggleInclusion(ctx context.Context, projectID, id uuid.UUID) (*models.Employee, error) {
	session, err := s.Session(ctx, projectID)
	if err != nil {
		return nil, err
	}
	return session.ToggleInclusion(id)
}

func (s *reconciliationService) RunBulk(ctx context.Context, projectID uuid.UUID, op models.BulkOperation) (*BulkOutcome, error) {
	session, err := s.Session(ctx, projectID)
	if err != nil {
		return nil, err
	}
	if s.cfg.BulkTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.cfg.BulkTimeout)
		defer cancel()
	}

	result, err := session.RunBulk(ctx, op)
	if err != nil {
		return nil, err
	}
	return &BulkOutcome{BulkResult: result, Summary: BulkSummary(result)}, nil
}

func (s *reconciliationService) Commit(ctx context.Context, projectID uuid.UUID) (int, error) {
	session, err := s.Session(ctx, projectID)
	if err != nil {
		return 0, err
	}
	dirty := session.DirtyRecords()
	if len(dirty) == 0 {
		return 0, nil
	}

	err = retry.DoIfRetryable(ctx, s.cfg.Retry, func() error {
		return s.employees.SaveAll(ctx, projectID, dirty)
	})
	if err != nil {
		return 0, fmt.Errorf("failed to save resolved employees: %w", err)
	}

	session.MarkSaved(dirty)
	s.invalidateCache(ctx, projectID)

	s.logger.Info("Committed reconciliation changes",
		zap.String("project_id", projectID.String()),
		zap.Int("records", len(dirty)))
	return len(dirty), nil
}

func (s *reconciliationService) Reset(projectID uuid.UUID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, projectID)
}

// EmployeesChanged drops the session so the next request reloads the stored records.
func (s *reconciliationService) EmployeesChanged(ctx context.Context, projectID uuid.UUID) {
	s.mu.Lock()
	session, ok := s.sessions[projectID]
	delete(s.sessions, projectID)
	s.mu.Unlock()

	if ok {
		if n := len(session.DirtyRecords()); n > 0 {
			s.logger.Warn("Discarded uncommitted reconciliation changes",
				zap.String("project_id", projectID.String()),
				zap.Int("records", n))
		}
	}
}

func (s *reconciliationService) invalidateCache(ctx context.Context, projectID uuid.UUID) {
	if err := s.cache.Invalidate(ctx, projectID); err != nil {
		s.logger.Warn("Failed to invalidate analytics cache",
			zap.String("project_id", projectID.String()),
			zap.Error(err))
	}
}

// BulkSummary renders a result as e.g. "2 of 3 employees updated".
func BulkSummary(r *models.BulkResult) string {
	attempted := r.Attempted()
	noun := "employee"
	if attempted != 1 {
		noun = inflection.Plural(noun)
	}
	summary := fmt.Sprintf("%d of %d %s updated", r.UpdatedCount, attempted, noun)
	if failed := len(r.FailedIDs); failed > 0 {
		record := "record"
		if failed != 1 {
			record = inflection.Plural(record)
		}
		summary += fmt.Sprintf(", %d %s failed", failed, record)
	}
	return summary
}

// cacheInvalidator adapts an OverviewCache to EmployeeChangeListener.
type cacheInvalidator struct {
	cache  OverviewCache
	logger *zap.Logger
}

// NewCacheInvalidator returns a listener that drops cached analytics when employees change.
func NewCacheInvalidator(cache OverviewCache, logger *zap.Logger) EmployeeChangeListener {
	return &cacheInvalidator{cache: cache, logger: logger}
}

func (c *cacheInvalidator) EmployeesChanged(ctx context.Context, projectID uuid.UUID) {
	if err := c.cache.Invalidate(ctx, projectID); err != nil {
		c.logger.Warn("Failed to invalidate analytics cache",
			zap.String("project_id", projectID.String()),
			zap.Error(err))
	}
}
