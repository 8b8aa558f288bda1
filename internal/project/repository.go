package project

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
)

var (
	ErrNotFound  = errors.New("project not found")
	ErrNameTaken = errors.New("project name is already in use")
)

const pgUniqueViolation = "23505"

type Repository struct {
	db *sql.DB
}

func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

func (r *Repository) Create(ctx context.Context, p Project) (Project, error) {
	id, err := uuid.NewV7()
	if err != nil {
		return Project{}, fmt.Errorf("generate project id: %w", err)
	}
	p.ID = id

	err = r.db.QueryRowContext(ctx, `
		INSERT INTO projects (id, name, description, start_date, end_date, status, estimated_span_days)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING created_at, updated_at
	`, p.ID, p.Name, p.Description, p.StartDate, p.EndDate, p.Status, p.EstimatedSpan).Scan(&p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation {
			return Project{}, ErrNameTaken
		}
		return Project{}, fmt.Errorf("insert project: %w", err)
	}

	return p, nil
}

func (r *Repository) GetByID(ctx context.Context, id uuid.UUID) (Project, error) {
	var p Project
	err := r.db.QueryRowContext(ctx, `
		SELECT id, name, description, start_date, end_date, status, estimated_span_days, created_at, updated_at
		FROM projects
		WHERE id = $1
	`, id).Scan(&p.ID, &p.Name, &p.Description, &p.StartDate, &p.EndDate, &p.Status, &p.EstimatedSpan, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Project{}, ErrNotFound
		}
		return Project{}, fmt.Errorf("query project: %w", err)
	}

	if p.EmployeeIDs, err = r.employeeIDs(ctx, p.ID); err != nil {
		return Project{}, err
	}

	return p, nil
}

func (r *Repository) List(ctx context.Context) ([]Project, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, name, description, start_date, end_date, status, estimated_span_days, created_at, updated_at
		FROM projects
		ORDER BY created_at DESC
	`)
	if err != nil {
		return nil, fmt.Errorf("query projects: %w", err)
	}
	defer rows.Close()

	return r.collect(ctx, rows)
}

// Filter narrows the listing by optional exact status and name prefix.
func (r *Repository) Filter(ctx context.Context, name, status string) ([]Project, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, name, description, start_date, end_date, status, estimated_span_days, created_at, updated_at
		FROM projects
		WHERE ($1 = '' OR name ILIKE $1 || '%')
		  AND ($2 = '' OR status = $2)
		ORDER BY created_at DESC
	`, name, status)
	if err != nil {
		return nil, fmt.Errorf("filter projects: %w", err)
	}
	defer rows.Close()

	return r.collect(ctx, rows)
}

// ListForEmployee returns every project the employee is assigned to.
func (r *Repository) ListForEmployee(ctx context.Context, employeeID uuid.UUID) ([]Project, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT p.id, p.name, p.description, p.start_date, p.end_date, p.status, p.estimated_span_days, p.created_at, p.updated_at
		FROM projects p
		JOIN project_employees pe ON pe.project_id = p.id
		WHERE pe.employee_id = $1
		ORDER BY p.created_at DESC
	`, employeeID)
	if err != nil {
		return nil, fmt.Errorf("query assigned projects: %w", err)
	}
	defer rows.Close()

	return r.collect(ctx, rows)
}

func (r *Repository) collect(ctx context.Context, rows *sql.Rows) ([]Project, error) {
	projects := make([]Project, 0)
	for rows.Next() {
		var p Project
		if err := rows.Scan(&p.ID, &p.Name, &p.Description, &p.StartDate, &p.EndDate, &p.Status, &p.EstimatedSpan, &p.CreatedAt, &p.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan project: %w", err)
		}
		projects = append(projects, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate projects: %w", err)
	}

	for i := range projects {
		ids, err := r.employeeIDs(ctx, projects[i].ID)
		if err != nil {
			return nil, err
		}
		projects[i].EmployeeIDs = ids
	}

	return projects, nil
}

func (r *Repository) Update(ctx context.Context, p Project) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE projects
		SET name = $2, description = $3, start_date = $4, end_date = $5, status = $6, estimated_span_days = $7, updated_at = NOW()
		WHERE id = $1
	`, p.ID, p.Name, p.Description, p.StartDate, p.EndDate, p.Status, p.EstimatedSpan)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation {
			return ErrNameTaken
		}
		return fmt.Errorf("update project: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update project rows affected: %w", err)
	}
	if affected == 0 {
		return ErrNotFound
	}

	return nil
}

func (r *Repository) Delete(ctx context.Context, id uuid.UUID) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM projects WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete project: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete project rows affected: %w", err)
	}
	if affected == 0 {
		return ErrNotFound
	}

	return nil
}

// SetEmployees replaces the project's employee assignments.
func (r *Repository) SetEmployees(ctx context.Context, projectID uuid.UUID, employeeIDs []uuid.UUID) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin set employees tx: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM project_employees WHERE project_id = $1`, projectID); err != nil {
		return fmt.Errorf("clear employee assignments: %w", err)
	}

	for _, employeeID := range employeeIDs {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO project_employees (project_id, employee_id)
			VALUES ($1, $2)
			ON CONFLICT DO NOTHING
		`, projectID, employeeID); err != nil {
			return fmt.Errorf("assign employee %s: %w", employeeID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit set employees tx: %w", err)
	}

	return nil
}

func (r *Repository) employeeIDs(ctx context.Context, projectID uuid.UUID) ([]uuid.UUID, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT employee_id
		FROM project_employees
		WHERE project_id = $1
	`, projectID)
	if err != nil {
		return nil, fmt.Errorf("query employee assignments: %w", err)
	}
	defer rows.Close()

	ids := make([]uuid.UUID, 0)
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan employee assignment: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate employee assignments: %w", err)
	}

	return ids, nil
}
