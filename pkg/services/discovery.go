package services

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/ekaya-inc/orgpulse/pkg/adapters/directory"
	"github.com/ekaya-inc/orgpulse/pkg/apperrors"
	"github.com/ekaya-inc/orgpulse/pkg/logging"
	"github.com/ekaya-inc/orgpulse/pkg/models"
	"github.com/ekaya-inc/orgpulse/pkg/reconcile"
	"github.com/ekaya-inc/orgpulse/pkg/repositories"
)

// SourceFailure describes a connection that could not be read during discovery.
type SourceFailure struct {
	ConnectionID uuid.UUID `json:"connection_id"`
	Provider     string    `json:"provider"`
	Error        string    `json:"error"`
}

// DiscoveryResult summarises a discovery run.
type DiscoveryResult struct {
	SourceCount   int                   `json:"source_count"`
	EntryCount    int                   `json:"entry_count"`
	EmployeeCount int                   `json:"employee_count"`
	Failures      []SourceFailure       `json:"failures"`
	Aggregate     models.IssueAggregate `json:"aggregate"`
	DiscoveredAt  time.Time             `json:"discovered_at"`
	Employees     []*models.Employee    `json:"-"`
}

// DiscoveryService pulls directory entries from every source connection,
// merges them into employee records and stores the result.
type DiscoveryService interface {
	// Discover replaces the project's employees with a fresh merge of all
	// sources. Unreadable sources are reported in Failures; the run fails only
	// when no source could be read.
	Discover(ctx context.Context, projectID uuid.UUID) (*DiscoveryResult, error)
}

type discoveryService struct {
	connections ConnectionService
	factory     directory.ConnectorFactory
	employees   repositories.EmployeeRepository
	required    []string
	timeout     time.Duration
	logger      *zap.Logger
}

// NewDiscoveryService creates a new discovery service. timeout bounds the
// whole run across all sources; zero means no bound.
func NewDiscoveryService(
	connections ConnectionService,
	factory directory.ConnectorFactory,
	employees repositories.EmployeeRepository,
	required []string,
	timeout time.Duration,
	logger *zap.Logger,
) DiscoveryService {
	if len(required) == 0 {
		required = models.DefaultRequiredFields
	}
	return &discoveryService{
		connections: connections,
		factory:     factory,
		employees:   employees,
		required:    required,
		timeout:     timeout,
		logger:      logger.Named("discovery"),
	}
}

var _ DiscoveryService = (*discoveryService)(nil)

func (s *discoveryService) Discover(ctx context.Context, projectID uuid.UUID) (*DiscoveryResult, error) {
	conns, err := s.connections.List(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("failed to list connections: %w", err)
	}
	if len(conns) == 0 {
		return nil, fmt.Errorf("%w: no source connections configured", apperrors.ErrValidation)
	}

	start := time.Now()
	entries, failures := s.collect(ctx, conns)
	if len(failures) == len(conns) {
		return nil, fmt.Errorf("no source could be read: %s", failures[0].Error)
	}

	employees := MergeEntries(projectID, entries, s.required)
	if err := s.employees.ReplaceAll(ctx, projectID, employees); err != nil {
		return nil, fmt.Errorf("failed to store discovered employees: %w", err)
	}

	result := &DiscoveryResult{
		SourceCount:   len(conns),
		EntryCount:    len(entries),
		EmployeeCount: len(employees),
		Failures:      failures,
		DiscoveredAt:  time.Now().UTC(),
		Employees:     employees,
	}
	issues := reconcile.CountIssues(employees)
	result.Aggregate = reconcile.Classify(employees, issues).Aggregate

	s.logger.Info("Discovery completed",
		zap.String("project_id", projectID.String()),
		zap.Int("sources", len(conns)),
		zap.Int("failed_sources", len(failures)),
		zap.Int("entries", len(entries)),
		zap.Int("employees", len(employees)),
		zap.Int("issues", issues),
		zap.Duration("duration", time.Since(start)))
	return result, nil
}

// collect reads every connection concurrently. Entries are returned in
// connection order so merges are deterministic.
func (s *discoveryService) collect(ctx context.Context, conns []*models.SourceConnection) ([]models.DirectoryEntry, []SourceFailure) {
	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	perSource := make([][]models.DirectoryEntry, len(conns))
	failures := []SourceFailure{}
	var mu sync.Mutex

	eg, egCtx := errgroup.WithContext(ctx)
	for i, conn := range conns {
		eg.Go(func() error {
			entries, err := s.read(egCtx, conn)
			if err != nil {
				s.logger.Warn("Source connection could not be read",
					zap.String("connection_id", conn.ID.String()),
					zap.String("provider", conn.Provider),
					zap.String("error", logging.SanitizeError(err)))
				mu.Lock()
				failures = append(failures, SourceFailure{
					ConnectionID: conn.ID,
					Provider:     conn.Provider,
					Error:        logging.SanitizeError(err),
				})
				mu.Unlock()
				return nil
			}
			perSource[i] = entries
			return nil
		})
	}
	_ = eg.Wait()

	var all []models.DirectoryEntry
	for _, entries := range perSource {
		all = append(all, entries...)
	}
	return all, failures
}

func (s *discoveryService) read(ctx context.Context, conn *models.SourceConnection) ([]models.DirectoryEntry, error) {
	connector, err := s.factory.NewConnector(ctx, conn.Provider, conn.Config)
	if err != nil {
		return nil, err
	}
	defer connector.Close()
	return connector.ListEntries(ctx)
}
