package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/ekaya-inc/orgpulse/pkg/adapters/directory"
	"github.com/ekaya-inc/orgpulse/pkg/apperrors"
	"github.com/ekaya-inc/orgpulse/pkg/crypto"
	"github.com/ekaya-inc/orgpulse/pkg/logging"
	"github.com/ekaya-inc/orgpulse/pkg/models"
	"github.com/ekaya-inc/orgpulse/pkg/repositories"
)

// ConnectionService manages source connections. Secret settings are sealed
// before they reach the repository and opened on the way out.
type ConnectionService interface {
	// Create stores a new connection with sealed secrets.
	Create(ctx context.Context, projectID uuid.UUID, provider, name string, config map[string]any) (*models.SourceConnection, error)

	// Get returns a connection with opened secrets.
	Get(ctx context.Context, projectID, id uuid.UUID) (*models.SourceConnection, error)

	// List returns the project's connections with opened secrets.
	List(ctx context.Context, projectID uuid.UUID) ([]*models.SourceConnection, error)

	Delete(ctx context.Context, projectID, id uuid.UUID) error

	// Test checks a stored connection and records the outcome in its status.
	Test(ctx context.Context, projectID, id uuid.UUID) (*models.SourceConnection, error)

	// TestConfig checks provider settings without saving them.
	TestConfig(ctx context.Context, provider string, config map[string]any) error

	// Providers lists the providers connections can be made to.
	Providers() []directory.AdapterInfo
}

type connectionService struct {
	repo      repositories.ConnectionRepository
	encryptor *crypto.CredentialEncryptor
	factory   directory.ConnectorFactory
	now       func() time.Time
	logger    *zap.Logger
}

// NewConnectionService creates a new connection service.
func NewConnectionService(
	repo repositories.ConnectionRepository,
	encryptor *crypto.CredentialEncryptor,
	factory directory.ConnectorFactory,
	logger *zap.Logger,
) ConnectionService {
	return &connectionService{
		repo:      repo,
		encryptor: encryptor,
		factory:   factory,
		now:       func() time.Time { return time.Now().UTC() },
		logger:    logger.Named("connections"),
	}
}

var _ ConnectionService = (*connectionService)(nil)

func (s *connectionService) Create(ctx context.Context, projectID uuid.UUID, provider, name string, config map[string]any) (*models.SourceConnection, error) {
	if !models.IsValidProvider(provider) {
		return nil, fmt.Errorf("%w: unsupported provider %q", apperrors.ErrValidation, provider)
	}
	name = strings.TrimSpace(name)
	if name == "" {
		name = models.ProviderLabel(provider)
	}
	if config == nil {
		config = make(map[string]any)
	}

	sealed, err := s.encryptor.SealConfig(config)
	if err != nil {
		return nil, fmt.Errorf("failed to encrypt config: %w", err)
	}

	conn := &models.SourceConnection{
		ProjectID: projectID,
		Provider:  provider,
		Name:      name,
		Config:    sealed,
		Status:    models.ConnectionStatusPending,
	}
	if err := s.repo.Create(ctx, conn); err != nil {
		return nil, err
	}
	conn.Config = config

	s.logger.Info("Created source connection",
		zap.String("project_id", projectID.String()),
		zap.String("connection_id", conn.ID.String()),
		zap.String("provider", provider))
	return conn, nil
}

func (s *connectionService) Get(ctx context.Context, projectID, id uuid.UUID) (*models.SourceConnection, error) {
	conn, err := s.repo.GetByID(ctx, projectID, id)
	if err != nil {
		return nil, err
	}
	if err := s.open(conn); err != nil {
		return nil, err
	}
	return conn, nil
}

func (s *connectionService) List(ctx context.Context, projectID uuid.UUID) ([]*models.SourceConnection, error) {
	conns, err := s.repo.List(ctx, projectID)
	if err != nil {
		return nil, err
	}
	for _, conn := range conns {
		if err := s.open(conn); err != nil {
			return nil, err
		}
	}
	return conns, nil
}

func (s *connectionService) Delete(ctx context.Context, projectID, id uuid.UUID) error {
	if err := s.repo.Delete(ctx, projectID, id); err != nil {
		return err
	}
	s.logger.Info("Deleted source connection",
		zap.String("project_id", projectID.String()),
		zap.String("connection_id", id.String()))
	return nil
}

func (s *connectionService) Test(ctx context.Context, projectID, id uuid.UUID) (*models.SourceConnection, error) {
	conn, err := s.Get(ctx, projectID, id)
	if err != nil {
		return nil, err
	}

	testErr := s.TestConfig(ctx, conn.Provider, conn.Config)
	status := models.ConnectionStatusConnected
	if testErr != nil {
		status = models.ConnectionStatusFailed
	}
	testedAt := s.now()
	if err := s.repo.UpdateStatus(ctx, projectID, id, status, testedAt); err != nil {
		return nil, fmt.Errorf("failed to record connection status: %w", err)
	}
	conn.Status = status
	conn.LastTestedAt = &testedAt

	if testErr != nil {
		return conn, testErr
	}
	return conn, nil
}

func (s *connectionService) TestConfig(ctx context.Context, provider string, config map[string]any) error {
	connector, err := s.factory.NewConnector(ctx, provider, config)
	if err != nil {
		return fmt.Errorf("%w: %v", apperrors.ErrValidation, err)
	}
	defer connector.Close()

	if err := connector.TestConnection(ctx); err != nil {
		s.logger.Info("Connection test failed",
			zap.String("provider", provider),
			zap.String("error", logging.SanitizeError(err)))
		return fmt.Errorf("connection test failed: %w", err)
	}
	s.logger.Info("Connection test successful", zap.String("provider", provider))
	return nil
}

func (s *connectionService) Providers() []directory.AdapterInfo {
	return s.factory.ListProviders()
}

func (s *connectionService) open(conn *models.SourceConnection) error {
	config, err := s.encryptor.OpenConfig(conn.Config)
	if err != nil {
		return fmt.Errorf("connection %s: %w", conn.ID, err)
	}
	conn.Config = config
	return nil
}
