package repositories

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/ekaya-inc/orgpulse/pkg/apperrors"
	"github.com/ekaya-inc/orgpulse/pkg/database"
	"github.com/ekaya-inc/orgpulse/pkg/models"
)

// DepartmentRepository provides data access for departments.
type DepartmentRepository interface {
	List(ctx context.Context, projectID uuid.UUID) ([]*models.Department, error)
	GetByID(ctx context.Context, projectID, id uuid.UUID) (*models.Department, error)
	// Create inserts a department. Returns apperrors.ErrConflict if the name is taken.
	Create(ctx context.Context, d *models.Department) error
	Update(ctx context.Context, d *models.Department) error
	Delete(ctx context.Context, projectID, id uuid.UUID) error
}

type departmentRepository struct{}

// NewDepartmentRepository creates a new department repository.
func NewDepartmentRepository() DepartmentRepository {
	return &departmentRepository{}
}

var _ DepartmentRepository = (*departmentRepository)(nil)

func (r *departmentRepository) List(ctx context.Context, projectID uuid.UUID) ([]*models.Department, error) {
	scope, ok := database.GetTenantScope(ctx)
	if !ok {
		return nil, fmt.Errorf("no tenant scope in context")
	}

	rows, err := scope.Conn.Query(ctx, `
		SELECT id, project_id, name, description, parent_id, created_at, updated_at
		FROM departments
		WHERE project_id = $1
		ORDER BY lower(name)`, projectID)
	if err != nil {
		return nil, fmt.Errorf("failed to list departments: %w", err)
	}
	defer rows.Close()

	var departments []*models.Department
	for rows.Next() {
		var d models.Department
		if err := rows.Scan(&d.ID, &d.ProjectID, &d.Name, &d.Description, &d.ParentID, &d.CreatedAt, &d.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan department: %w", err)
		}
		departments = append(departments, &d)
	}
	return departments, rows.Err()
}

func (r *departmentRepository) GetByID(ctx context.Context, projectID, id uuid.UUID) (*models.Department, error) {
	scope, ok := database.GetTenantScope(ctx)
	if !ok {
		return nil, fmt.Errorf("no tenant scope in context")
	}

	var d models.Department
	err := scope.Conn.QueryRow(ctx, `
		SELECT id, project_id, name, description, parent_id, created_at, updated_at
		FROM departments
		WHERE project_id = $1 AND id = $2`, projectID, id).
		Scan(&d.ID, &d.ProjectID, &d.Name, &d.Description, &d.ParentID, &d.CreatedAt, &d.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get department: %w", err)
	}
	return &d, nil
}

func (r *departmentRepository) Create(ctx context.Context, d *models.Department) error {
	scope, ok := database.GetTenantScope(ctx)
	if !ok {
		return fmt.Errorf("no tenant scope in context")
	}

	if d.ID == uuid.Nil {
		d.ID = uuid.New()
	}
	now := time.Now().UTC()
	d.CreatedAt = now
	d.UpdatedAt = now

	_, err := scope.Conn.Exec(ctx, `
		INSERT INTO departments (id, project_id, name, description, parent_id, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		d.ID, d.ProjectID, d.Name, d.Description, d.ParentID, d.CreatedAt, d.UpdatedAt)
	return mapWriteError(err, "create department")
}

func (r *departmentRepository) Update(ctx context.Context, d *models.Department) error {
	scope, ok := database.GetTenantScope(ctx)
	if !ok {
		return fmt.Errorf("no tenant scope in context")
	}

	d.UpdatedAt = time.Now().UTC()
	tag, err := scope.Conn.Exec(ctx, `
		UPDATE departments SET name = $3, description = $4, parent_id = $5, updated_at = $6
		WHERE project_id = $1 AND id = $2`,
		d.ProjectID, d.ID, d.Name, d.Description, d.ParentID, d.UpdatedAt)
	if err := mapWriteError(err, "update department"); err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return apperrors.ErrNotFound
	}
	return nil
}

func (r *departmentRepository) Delete(ctx context.Context, projectID, id uuid.UUID) error {
	scope, ok := database.GetTenantScope(ctx)
	if !ok {
		return fmt.Errorf("no tenant scope in context")
	}

	tag, err := scope.Conn.Exec(ctx, "DELETE FROM departments WHERE project_id = $1 AND id = $2", projectID, id)
	if err != nil {
		return fmt.Errorf("failed to delete department: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperrors.ErrNotFound
	}
	return nil
}

// LocationRepository provides data access for office locations.
type LocationRepository interface {
	List(ctx context.Context, projectID uuid.UUID) ([]*models.Location, error)
	// Create inserts a location. Returns apperrors.ErrConflict if the name is taken.
	Create(ctx context.Context, l *models.Location) error
}

type locationRepository struct{}

// NewLocationRepository creates a new location repository.
func NewLocationRepository() LocationRepository {
	return &locationRepository{}
}

var _ LocationRepository = (*locationRepository)(nil)

func (r *locationRepository) List(ctx context.Context, projectID uuid.UUID) ([]*models.Location, error) {
	scope, ok := database.GetTenantScope(ctx)
	if !ok {
		return nil, fmt.Errorf("no tenant scope in context")
	}

	rows, err := scope.Conn.Query(ctx, `
		SELECT id, project_id, name, created_at
		FROM locations
		WHERE project_id = $1
		ORDER BY lower(name)`, projectID)
	if err != nil {
		return nil, fmt.Errorf("failed to list locations: %w", err)
	}
	defer rows.Close()

	var locations []*models.Location
	for rows.Next() {
		var l models.Location
		if err := rows.Scan(&l.ID, &l.ProjectID, &l.Name, &l.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan location: %w", err)
		}
		locations = append(locations, &l)
	}
	return locations, rows.Err()
}

func (r *locationRepository) Create(ctx context.Context, l *models.Location) error {
	scope, ok := database.GetTenantScope(ctx)
	if !ok {
		return fmt.Errorf("no tenant scope in context")
	}

	if l.ID == uuid.Nil {
		l.ID = uuid.New()
	}
	l.CreatedAt = time.Now().UTC()

	_, err := scope.Conn.Exec(ctx, `
		INSERT INTO locations (id, project_id, name, created_at)
		VALUES ($1, $2, $3, $4)`, l.ID, l.ProjectID, l.Name, l.CreatedAt)
	return mapWriteError(err, "create location")
}

// mapWriteError turns unique violations (SQLSTATE 23505) into apperrors.ErrConflict.
func mapWriteError(err error, op string) error {
	if err == nil {
		return nil
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		return apperrors.ErrConflict
	}
	return fmt.Errorf("failed to %s: %w", op, err)
}
