package repositories

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/ekaya-inc/orgpulse/pkg/apperrors"
	"github.com/ekaya-inc/orgpulse/pkg/database"
	"github.com/ekaya-inc/orgpulse/pkg/models"
)

// EmployeeFilter narrows List results. Zero values mean "no filter".
type EmployeeFilter struct {
	IssueType  models.IssueType
	Included   *bool
	Department string
}

// EmployeeRepository provides data access for employees and their emails.
type EmployeeRepository interface {
	// List returns the project's employees in discovery order.
	List(ctx context.Context, projectID uuid.UUID, filter EmployeeFilter) ([]*models.Employee, error)

	// GetByID retrieves one employee. Returns apperrors.ErrRecordNotFound if absent.
	GetByID(ctx context.Context, projectID, id uuid.UUID) (*models.Employee, error)

	// Create inserts a new employee with its emails.
	Create(ctx context.Context, e *models.Employee) error

	// Update overwrites an employee and replaces its emails.
	Update(ctx context.Context, e *models.Employee) error

	// SaveAll upserts the given employees in one transaction.
	SaveAll(ctx context.Context, projectID uuid.UUID, employees []*models.Employee) error

	// ReplaceAll deletes every employee of the project and inserts the given
	// ones in one transaction. Used when discovery reloads the directory.
	ReplaceAll(ctx context.Context, projectID uuid.UUID, employees []*models.Employee) error

	// SetIncluded flips analysis inclusion for one employee.
	SetIncluded(ctx context.Context, projectID, id uuid.UUID, included bool) error

	// Delete removes one employee. Returns apperrors.ErrRecordNotFound if absent.
	Delete(ctx context.Context, projectID, id uuid.UUID) error

	// DeleteMany removes the given employees and returns how many existed.
	DeleteMany(ctx context.Context, projectID uuid.UUID, ids []uuid.UUID) (int, error)
}

type employeeRepository struct{}

// NewEmployeeRepository creates a new employee repository.
func NewEmployeeRepository() EmployeeRepository {
	return &employeeRepository{}
}

var _ EmployeeRepository = (*employeeRepository)(nil)

const employeeColumns = `id, project_id, name, department, position, location, hire_date,
	email_count, chat_count, meeting_count, file_access_count,
	has_quality_issues, issue_type, conflicts, is_included, created_at, updated_at`

func (r *employeeRepository) List(ctx context.Context, projectID uuid.UUID, filter EmployeeFilter) ([]*models.Employee, error) {
	scope, ok := database.GetTenantScope(ctx)
	if !ok {
		return nil, fmt.Errorf("no tenant scope in context")
	}

	where := []string{"project_id = $1"}
	args := []any{projectID}
	if filter.IssueType != "" {
		args = append(args, string(filter.IssueType))
		where = append(where, fmt.Sprintf("issue_type = $%d", len(args)))
	}
	if filter.Included != nil {
		args = append(args, *filter.Included)
		where = append(where, fmt.Sprintf("is_included = $%d", len(args)))
	}
	if filter.Department != "" {
		args = append(args, filter.Department)
		where = append(where, fmt.Sprintf("lower(department) = lower($%d)", len(args)))
	}

	query := `SELECT ` + employeeColumns + `
		FROM employees
		WHERE ` + strings.Join(where, " AND ") + `
		ORDER BY created_at, id`

	rows, err := scope.Conn.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list employees: %w", err)
	}
	defer rows.Close()

	var employees []*models.Employee
	byID := make(map[uuid.UUID]*models.Employee)
	for rows.Next() {
		e, err := scanEmployee(rows)
		if err != nil {
			return nil, err
		}
		employees = append(employees, e)
		byID[e.ID] = e
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating employees: %w", err)
	}

	if err := loadEmails(ctx, scope.Conn, projectID, byID); err != nil {
		return nil, err
	}
	return employees, nil
}

func (r *employeeRepository) GetByID(ctx context.Context, projectID, id uuid.UUID) (*models.Employee, error) {
	scope, ok := database.GetTenantScope(ctx)
	if !ok {
		return nil, fmt.Errorf("no tenant scope in context")
	}

	row := scope.Conn.QueryRow(ctx, `SELECT `+employeeColumns+`
		FROM employees
		WHERE project_id = $1 AND id = $2`, projectID, id)
	e, err := scanEmployee(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("%w: %s", apperrors.ErrRecordNotFound, id)
		}
		return nil, err
	}

	if err := loadEmails(ctx, scope.Conn, projectID, map[uuid.UUID]*models.Employee{e.ID: e}); err != nil {
		return nil, err
	}
	return e, nil
}

func (r *employeeRepository) Create(ctx context.Context, e *models.Employee) error {
	scope, ok := database.GetTenantScope(ctx)
	if !ok {
		return fmt.Errorf("no tenant scope in context")
	}

	if e.ID == uuid.Nil {
		e.ID = uuid.New()
	}
	now := time.Now().UTC()
	e.CreatedAt = now
	e.UpdatedAt = now

	return scope.InTx(ctx, func(tx pgx.Tx) error {
		return insertEmployee(ctx, tx, e)
	})
}

func (r *employeeRepository) Update(ctx context.Context, e *models.Employee) error {
	scope, ok := database.GetTenantScope(ctx)
	if !ok {
		return fmt.Errorf("no tenant scope in context")
	}

	e.UpdatedAt = time.Now().UTC()
	return scope.InTx(ctx, func(tx pgx.Tx) error {
		tag, err := updateEmployee(ctx, tx, e)
		if err != nil {
			return err
		}
		if tag.RowsAffected() == 0 {
			return fmt.Errorf("%w: %s", apperrors.ErrRecordNotFound, e.ID)
		}
		return replaceEmails(ctx, tx, e)
	})
}

func (r *employeeRepository) SaveAll(ctx context.Context, projectID uuid.UUID, employees []*models.Employee) error {
	scope, ok := database.GetTenantScope(ctx)
	if !ok {
		return fmt.Errorf("no tenant scope in context")
	}
	if len(employees) == 0 {
		return nil
	}

	return scope.InTx(ctx, func(tx pgx.Tx) error {
		for _, e := range employees {
			if e.ProjectID != projectID {
				return fmt.Errorf("%w: employee %s belongs to another project", apperrors.ErrValidation, e.ID)
			}
			tag, err := updateEmployee(ctx, tx, e)
			if err != nil {
				return err
			}
			if tag.RowsAffected() == 0 {
				if err := insertEmployee(ctx, tx, e); err != nil {
					return err
				}
				continue
			}
			if err := replaceEmails(ctx, tx, e); err != nil {
				return err
			}
		}
		return nil
	})
}

func (r *employeeRepository) ReplaceAll(ctx context.Context, projectID uuid.UUID, employees []*models.Employee) error {
	scope, ok := database.GetTenantScope(ctx)
	if !ok {
		return fmt.Errorf("no tenant scope in context")
	}

	return scope.InTx(ctx, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, "DELETE FROM employees WHERE project_id = $1", projectID); err != nil {
			return fmt.Errorf("failed to clear employees: %w", err)
		}
		// Spread creation timestamps so discovery order survives ORDER BY created_at.
		base := time.Now().UTC()
		for i, e := range employees {
			e.ProjectID = projectID
			e.CreatedAt = base.Add(time.Duration(i) * time.Microsecond)
			e.UpdatedAt = e.CreatedAt
			if err := insertEmployee(ctx, tx, e); err != nil {
				return err
			}
		}
		return nil
	})
}

func (r *employeeRepository) SetIncluded(ctx context.Context, projectID, id uuid.UUID, included bool) error {
	scope, ok := database.GetTenantScope(ctx)
	if !ok {
		return fmt.Errorf("no tenant scope in context")
	}

	tag, err := scope.Conn.Exec(ctx, `
		UPDATE employees SET is_included = $3, updated_at = now()
		WHERE project_id = $1 AND id = $2`, projectID, id, included)
	if err != nil {
		return fmt.Errorf("failed to update inclusion: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: %s", apperrors.ErrRecordNotFound, id)
	}
	return nil
}

func (r *employeeRepository) Delete(ctx context.Context, projectID, id uuid.UUID) error {
	scope, ok := database.GetTenantScope(ctx)
	if !ok {
		return fmt.Errorf("no tenant scope in context")
	}

	tag, err := scope.Conn.Exec(ctx, "DELETE FROM employees WHERE project_id = $1 AND id = $2", projectID, id)
	if err != nil {
		return fmt.Errorf("failed to delete employee: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: %s", apperrors.ErrRecordNotFound, id)
	}
	return nil
}

func (r *employeeRepository) DeleteMany(ctx context.Context, projectID uuid.UUID, ids []uuid.UUID) (int, error) {
	scope, ok := database.GetTenantScope(ctx)
	if !ok {
		return 0, fmt.Errorf("no tenant scope in context")
	}
	if len(ids) == 0 {
		return 0, nil
	}

	tag, err := scope.Conn.Exec(ctx, "DELETE FROM employees WHERE project_id = $1 AND id = ANY($2)", projectID, ids)
	if err != nil {
		return 0, fmt.Errorf("failed to delete employees: %w", err)
	}
	return int(tag.RowsAffected()), nil
}

// ============================================================================
// Helpers
// ============================================================================

type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

func scanEmployee(row pgx.Row) (*models.Employee, error) {
	var e models.Employee
	var issueType string
	var conflicts []byte
	err := row.Scan(
		&e.ID,
		&e.ProjectID,
		&e.Name,
		&e.Department,
		&e.Position,
		&e.Location,
		&e.HireDate,
		&e.EmailCount,
		&e.ChatCount,
		&e.MeetingCount,
		&e.FileAccessCount,
		&e.HasQualityIssues,
		&issueType,
		&conflicts,
		&e.IsIncluded,
		&e.CreatedAt,
		&e.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to scan employee: %w", err)
	}

	e.IssueType = models.IssueType(issueType)
	if len(conflicts) > 0 {
		if err := json.Unmarshal(conflicts, &e.Conflicts); err != nil {
			return nil, fmt.Errorf("failed to decode conflicts of %s: %w", e.ID, err)
		}
		if len(e.Conflicts) == 0 {
			e.Conflicts = nil
		}
	}
	return &e, nil
}

func loadEmails(ctx context.Context, q querier, projectID uuid.UUID, byID map[uuid.UUID]*models.Employee) error {
	if len(byID) == 0 {
		return nil
	}
	ids := make([]uuid.UUID, 0, len(byID))
	for id := range byID {
		ids = append(ids, id)
	}

	rows, err := q.Query(ctx, `
		SELECT employee_id, address, source, is_primary
		FROM employee_emails
		WHERE project_id = $1 AND employee_id = ANY($2)
		ORDER BY employee_id, position`, projectID, ids)
	if err != nil {
		return fmt.Errorf("failed to load employee emails: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var employeeID uuid.UUID
		var email models.EmailAddress
		if err := rows.Scan(&employeeID, &email.Address, &email.Source, &email.IsPrimary); err != nil {
			return fmt.Errorf("failed to scan employee email: %w", err)
		}
		if e, ok := byID[employeeID]; ok {
			e.Emails = append(e.Emails, email)
		}
	}
	return rows.Err()
}

func insertEmployee(ctx context.Context, tx pgx.Tx, e *models.Employee) error {
	conflicts, err := encodeConflicts(e.Conflicts)
	if err != nil {
		return err
	}
	if e.IssueType == "" {
		e.SetIssue(models.IssueTypeNone)
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now().UTC()
		e.UpdatedAt = e.CreatedAt
	}

	_, err = tx.Exec(ctx, `
		INSERT INTO employees (`+employeeColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)`,
		e.ID, e.ProjectID, e.Name, e.Department, e.Position, e.Location, e.HireDate,
		e.EmailCount, e.ChatCount, e.MeetingCount, e.FileAccessCount,
		e.HasQualityIssues, string(e.IssueType), conflicts, e.IsIncluded, e.CreatedAt, e.UpdatedAt,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return apperrors.ErrConflict
		}
		return fmt.Errorf("failed to insert employee: %w", err)
	}
	return replaceEmails(ctx, tx, e)
}

func updateEmployee(ctx context.Context, tx pgx.Tx, e *models.Employee) (pgconn.CommandTag, error) {
	conflicts, err := encodeConflicts(e.Conflicts)
	if err != nil {
		return pgconn.CommandTag{}, err
	}

	tag, err := tx.Exec(ctx, `
		UPDATE employees SET
			name = $3, department = $4, position = $5, location = $6, hire_date = $7,
			email_count = $8, chat_count = $9, meeting_count = $10, file_access_count = $11,
			has_quality_issues = $12, issue_type = $13, conflicts = $14, is_included = $15,
			updated_at = $16
		WHERE project_id = $1 AND id = $2`,
		e.ProjectID, e.ID, e.Name, e.Department, e.Position, e.Location, e.HireDate,
		e.EmailCount, e.ChatCount, e.MeetingCount, e.FileAccessCount,
		e.HasQualityIssues, string(e.IssueType), conflicts, e.IsIncluded, e.UpdatedAt,
	)
	if err != nil {
		return tag, fmt.Errorf("failed to update employee %s: %w", e.ID, err)
	}
	return tag, nil
}

func replaceEmails(ctx context.Context, tx pgx.Tx, e *models.Employee) error {
	if _, err := tx.Exec(ctx, "DELETE FROM employee_emails WHERE employee_id = $1", e.ID); err != nil {
		return fmt.Errorf("failed to clear emails of %s: %w", e.ID, err)
	}
	if len(e.Emails) == 0 {
		return nil
	}

	batch := &pgx.Batch{}
	for i, email := range e.Emails {
		batch.Queue(`
			INSERT INTO employee_emails (employee_id, project_id, address, source, is_primary, position)
			VALUES ($1, $2, $3, $4, $5, $6)`,
			e.ID, e.ProjectID, email.Address, email.Source, email.IsPrimary, i)
	}
	if err := tx.SendBatch(ctx, batch).Close(); err != nil {
		return fmt.Errorf("failed to insert emails of %s: %w", e.ID, err)
	}
	return nil
}

func encodeConflicts(conflicts []models.AttributeConflict) ([]byte, error) {
	if len(conflicts) == 0 {
		return []byte("[]"), nil
	}
	data, err := json.Marshal(conflicts)
	if err != nil {
		return nil, fmt.Errorf("failed to encode conflicts: %w", err)
	}
	return data, nil
}
