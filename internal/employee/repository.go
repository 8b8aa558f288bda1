package employee

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"golang.org/x/crypto/bcrypt"
)

var (
	ErrNotFound   = errors.New("employee not found")
	ErrEmailTaken = errors.New("email is already in use")
)

const pgUniqueViolation = "23505"

type Repository struct {
	db *sql.DB
}

func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

func (r *Repository) Create(ctx context.Context, e Employee) (Employee, error) {
	id, err := uuid.NewV7()
	if err != nil {
		return Employee{}, fmt.Errorf("generate employee id: %w", err)
	}
	e.ID = id

	err = r.db.QueryRowContext(ctx, `
		INSERT INTO employees (id, first_name, last_name, email, password_hash, is_admin)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING date_joined, updated_at
	`, e.ID, e.FirstName, e.LastName, e.Email, e.PasswordHash, e.IsAdmin).Scan(&e.DateJoined, &e.UpdatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation {
			return Employee{}, ErrEmailTaken
		}
		return Employee{}, fmt.Errorf("insert employee: %w", err)
	}

	return e, nil
}

// UpsertAdmin creates or updates the administrator account configured
// through the environment.
func (r *Repository) UpsertAdmin(ctx context.Context, email, plainPassword string) error {
	id, err := uuid.NewV7()
	if err != nil {
		return fmt.Errorf("generate admin id: %w", err)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(plainPassword), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("hash admin password: %w", err)
	}

	_, err = r.db.ExecContext(ctx, `
		INSERT INTO employees (id, first_name, last_name, email, password_hash, is_admin)
		VALUES ($1, 'admin', 'admin', $2, $3, TRUE)
		ON CONFLICT (email)
		DO UPDATE SET password_hash = EXCLUDED.password_hash, is_admin = TRUE, updated_at = NOW()
	`, id, email, string(hash))
	if err != nil {
		return fmt.Errorf("upsert admin employee: %w", err)
	}

	return nil
}

func (r *Repository) GetByID(ctx context.Context, id uuid.UUID) (Employee, error) {
	var e Employee
	err := r.db.QueryRowContext(ctx, `
		SELECT id, first_name, last_name, email, password_hash, is_admin, date_joined, updated_at
		FROM employees
		WHERE id = $1
	`, id).Scan(&e.ID, &e.FirstName, &e.LastName, &e.Email, &e.PasswordHash, &e.IsAdmin, &e.DateJoined, &e.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Employee{}, ErrNotFound
		}
		return Employee{}, fmt.Errorf("query employee: %w", err)
	}

	if e.ProjectIDs, err = r.projectIDs(ctx, e.ID); err != nil {
		return Employee{}, err
	}

	return e, nil
}

func (r *Repository) List(ctx context.Context) ([]Employee, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, first_name, last_name, email, password_hash, is_admin, date_joined, updated_at
		FROM employees
		ORDER BY date_joined ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("query employees: %w", err)
	}
	defer rows.Close()

	return r.collect(ctx, rows)
}

// Filter narrows the listing by optional exact email and prefix name
// matches.
func (r *Repository) Filter(ctx context.Context, email, firstName, lastName string) ([]Employee, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, first_name, last_name, email, password_hash, is_admin, date_joined, updated_at
		FROM employees
		WHERE ($1 = '' OR email = $1)
		  AND ($2 = '' OR first_name ILIKE $2 || '%')
		  AND ($3 = '' OR last_name ILIKE $3 || '%')
		ORDER BY date_joined ASC
	`, email, firstName, lastName)
	if err != nil {
		return nil, fmt.Errorf("filter employees: %w", err)
	}
	defer rows.Close()

	return r.collect(ctx, rows)
}

func (r *Repository) collect(ctx context.Context, rows *sql.Rows) ([]Employee, error) {
	employees := make([]Employee, 0)
	for rows.Next() {
		var e Employee
		if err := rows.Scan(&e.ID, &e.FirstName, &e.LastName, &e.Email, &e.PasswordHash, &e.IsAdmin, &e.DateJoined, &e.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan employee: %w", err)
		}
		employees = append(employees, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate employees: %w", err)
	}

	for i := range employees {
		ids, err := r.projectIDs(ctx, employees[i].ID)
		if err != nil {
			return nil, err
		}
		employees[i].ProjectIDs = ids
	}

	return employees, nil
}

func (r *Repository) Update(ctx context.Context, e Employee) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE employees
		SET first_name = $2, last_name = $3, email = $4, password_hash = $5, updated_at = NOW()
		WHERE id = $1
	`, e.ID, e.FirstName, e.LastName, e.Email, e.PasswordHash)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation {
			return ErrEmailTaken
		}
		return fmt.Errorf("update employee: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update employee rows affected: %w", err)
	}
	if affected == 0 {
		return ErrNotFound
	}

	return nil
}

func (r *Repository) Delete(ctx context.Context, id uuid.UUID) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM employees WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete employee: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete employee rows affected: %w", err)
	}
	if affected == 0 {
		return ErrNotFound
	}

	return nil
}

// SetProjects replaces the employee's project assignments.
func (r *Repository) SetProjects(ctx context.Context, employeeID uuid.UUID, projectIDs []uuid.UUID) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin set projects tx: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM project_employees WHERE employee_id = $1`, employeeID); err != nil {
		return fmt.Errorf("clear project assignments: %w", err)
	}

	for _, projectID := range projectIDs {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO project_employees (project_id, employee_id)
			VALUES ($1, $2)
			ON CONFLICT DO NOTHING
		`, projectID, employeeID); err != nil {
			return fmt.Errorf("assign project %s: %w", projectID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit set projects tx: %w", err)
	}

	return nil
}

func (r *Repository) projectIDs(ctx context.Context, employeeID uuid.UUID) ([]uuid.UUID, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT project_id
		FROM project_employees
		WHERE employee_id = $1
	`, employeeID)
	if err != nil {
		return nil, fmt.Errorf("query project assignments: %w", err)
	}
	defer rows.Close()

	ids := make([]uuid.UUID, 0)
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan project assignment: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate project assignments: %w", err)
	}

	return ids, nil
}
