package repositories

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/ekaya-inc/orgpulse/pkg/apperrors"
	"github.com/ekaya-inc/orgpulse/pkg/database"
	"github.com/ekaya-inc/orgpulse/pkg/models"
)

// ConnectionRepository provides data access for source connections.
// Config is stored as given; secret entries are sealed by the service layer.
type ConnectionRepository interface {
	Create(ctx context.Context, c *models.SourceConnection) error
	GetByID(ctx context.Context, projectID, id uuid.UUID) (*models.SourceConnection, error)
	List(ctx context.Context, projectID uuid.UUID) ([]*models.SourceConnection, error)
	UpdateStatus(ctx context.Context, projectID, id uuid.UUID, status string, testedAt time.Time) error
	Delete(ctx context.Context, projectID, id uuid.UUID) error
}

type connectionRepository struct{}

// NewConnectionRepository creates a new source connection repository.
func NewConnectionRepository() ConnectionRepository {
	return &connectionRepository{}
}

var _ ConnectionRepository = (*connectionRepository)(nil)

func (r *connectionRepository) Create(ctx context.Context, c *models.SourceConnection) error {
	scope, ok := database.GetTenantScope(ctx)
	if !ok {
		return fmt.Errorf("no tenant scope in context")
	}

	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	if c.Status == "" {
		c.Status = models.ConnectionStatusPending
	}
	now := time.Now().UTC()
	c.CreatedAt = now
	c.UpdatedAt = now

	config := c.Config
	if config == nil {
		config = map[string]any{}
	}

	_, err := scope.Conn.Exec(ctx, `
		INSERT INTO source_connections (id, project_id, provider, name, config, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		c.ID, c.ProjectID, c.Provider, c.Name, config, c.Status, c.CreatedAt, c.UpdatedAt)
	return mapWriteError(err, "create source connection")
}

func (r *connectionRepository) GetByID(ctx context.Context, projectID, id uuid.UUID) (*models.SourceConnection, error) {
	scope, ok := database.GetTenantScope(ctx)
	if !ok {
		return nil, fmt.Errorf("no tenant scope in context")
	}

	c, err := scanConnection(scope.Conn.QueryRow(ctx, `
		SELECT id, project_id, provider, name, config, status, last_tested_at, created_at, updated_at
		FROM source_connections
		WHERE project_id = $1 AND id = $2`, projectID, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.ErrNotFound
		}
		return nil, err
	}
	return c, nil
}

func (r *connectionRepository) List(ctx context.Context, projectID uuid.UUID) ([]*models.SourceConnection, error) {
	scope, ok := database.GetTenantScope(ctx)
	if !ok {
		return nil, fmt.Errorf("no tenant scope in context")
	}

	rows, err := scope.Conn.Query(ctx, `
		SELECT id, project_id, provider, name, config, status, last_tested_at, created_at, updated_at
		FROM source_connections
		WHERE project_id = $1
		ORDER BY created_at`, projectID)
	if err != nil {
		return nil, fmt.Errorf("failed to list source connections: %w", err)
	}
	defer rows.Close()

	var connections []*models.SourceConnection
	for rows.Next() {
		c, err := scanConnection(rows)
		if err != nil {
			return nil, err
		}
		connections = append(connections, c)
	}
	return connections, rows.Err()
}

func (r *connectionRepository) UpdateStatus(ctx context.Context, projectID, id uuid.UUID, status string, testedAt time.Time) error {
	scope, ok := database.GetTenantScope(ctx)
	if !ok {
		return fmt.Errorf("no tenant scope in context")
	}

	tag, err := scope.Conn.Exec(ctx, `
		UPDATE source_connections SET status = $3, last_tested_at = $4, updated_at = now()
		WHERE project_id = $1 AND id = $2`, projectID, id, status, testedAt)
	if err != nil {
		return fmt.Errorf("failed to update connection status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperrors.ErrNotFound
	}
	return nil
}

func (r *connectionRepository) Delete(ctx context.Context, projectID, id uuid.UUID) error {
	scope, ok := database.GetTenantScope(ctx)
	if !ok {
		return fmt.Errorf("no tenant scope in context")
	}

	tag, err := scope.Conn.Exec(ctx, "DELETE FROM source_connections WHERE project_id = $1 AND id = $2", projectID, id)
	if err != nil {
		return fmt.Errorf("failed to delete source connection: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperrors.ErrNotFound
	}
	return nil
}

func scanConnection(row pgx.Row) (*models.SourceConnection, error) {
	var c models.SourceConnection
	err := row.Scan(&c.ID, &c.ProjectID, &c.Provider, &c.Name, &c.Config, &c.Status, &c.LastTestedAt, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to scan source connection: %w", err)
	}
	return &c, nil
}
