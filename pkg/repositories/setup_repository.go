package repositories

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/ekaya-inc/orgpulse/pkg/database"
	"github.com/ekaya-inc/orgpulse/pkg/models"
)

// SetupRepository persists setup wizard progress per project.
type SetupRepository interface {
	// Get returns the project's state, or nil when setup has not started.
	Get(ctx context.Context, projectID uuid.UUID) (*models.SetupState, error)
	// Save inserts or updates the project's state.
	Save(ctx context.Context, state *models.SetupState) error
}

type setupRepository struct{}

// NewSetupRepository creates a new setup state repository.
func NewSetupRepository() SetupRepository {
	return &setupRepository{}
}

var _ SetupRepository = (*setupRepository)(nil)

func (r *setupRepository) Get(ctx context.Context, projectID uuid.UUID) (*models.SetupState, error) {
	scope, ok := database.GetTenantScope(ctx)
	if !ok {
		return nil, fmt.Errorf("no tenant scope in context")
	}

	var s models.SetupState
	var step string
	err := scope.Conn.QueryRow(ctx, `
		SELECT project_id, current_step, discovered_at, anonymization, anonymized_at, completed_at, created_at, updated_at
		FROM setup_states
		WHERE project_id = $1`, projectID).
		Scan(&s.ProjectID, &step, &s.DiscoveredAt, &s.Anonymization, &s.AnonymizedAt, &s.CompletedAt, &s.CreatedAt, &s.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get setup state: %w", err)
	}
	s.CurrentStep = models.SetupStep(step)
	return &s, nil
}

func (r *setupRepository) Save(ctx context.Context, state *models.SetupState) error {
	scope, ok := database.GetTenantScope(ctx)
	if !ok {
		return fmt.Errorf("no tenant scope in context")
	}

	now := time.Now().UTC()
	if state.CreatedAt.IsZero() {
		state.CreatedAt = now
	}
	state.UpdatedAt = now

	_, err := scope.Conn.Exec(ctx, `
		INSERT INTO setup_states (project_id, current_step, discovered_at, anonymization, anonymized_at, completed_at, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (project_id) DO UPDATE SET
			current_step = EXCLUDED.current_step,
			discovered_at = EXCLUDED.discovered_at,
			anonymization = EXCLUDED.anonymization,
			anonymized_at = EXCLUDED.anonymized_at,
			completed_at = EXCLUDED.completed_at,
			updated_at = EXCLUDED.updated_at`,
		state.ProjectID, string(state.CurrentStep), state.DiscoveredAt, state.Anonymization,
		state.AnonymizedAt, state.CompletedAt, state.CreatedAt, state.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to save setup state: %w", err)
	}
	return nil
}
