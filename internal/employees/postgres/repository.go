// Package postgres provides the PostgreSQL implementation of the employees
// repository.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/pontualhq/pontual/internal/domain"
	"github.com/pontualhq/pontual/internal/employees"
)

const employeeColumns = `id, name, email, password_hash, role, department, position, is_active, hired_at, created_at, updated_at`

// Repository implements employees.Repository using PostgreSQL.
type Repository struct {
	db *pgxpool.Pool
}

// NewRepository creates a new PostgreSQL repository.
func NewRepository(db *pgxpool.Pool) *Repository {
	return &Repository{db: db}
}

// Create inserts an employee. The name_search column holds the folded
// name so listing can match accent-insensitively without extensions.
func (r *Repository) Create(ctx context.Context, e *domain.Employee) error {
	query := `
		INSERT INTO employees (name, name_search, email, password_hash, role, department, position, is_active, hired_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING id, created_at, updated_at
	`
	err := r.db.QueryRow(ctx, query,
		e.Name,
		employees.Fold(e.Name),
		e.Email,
		e.PasswordHash,
		e.Role,
		e.Department,
		e.Position,
		e.IsActive,
		e.HiredAt,
	).Scan(&e.ID, &e.CreatedAt, &e.UpdatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return employees.ErrEmailExists
		}
		return fmt.Errorf("create employee: %w", err)
	}
	return nil
}

// GetByID retrieves an employee by id.
func (r *Repository) GetByID(ctx context.Context, id string) (*domain.Employee, error) {
	return r.getEmployee(ctx, `WHERE id = $1`, id)
}

// GetByEmail retrieves an employee by email.
func (r *Repository) GetByEmail(ctx context.Context, email string) (*domain.Employee, error) {
	return r.getEmployee(ctx, `WHERE email = $1`, email)
}

func (r *Repository) getEmployee(ctx context.Context, where string, arg any) (*domain.Employee, error) {
	query := `SELECT ` + employeeColumns + ` FROM employees ` + where

	var e domain.Employee
	err := r.db.QueryRow(ctx, query, arg).Scan(
		&e.ID,
		&e.Name,
		&e.Email,
		&e.PasswordHash,
		&e.Role,
		&e.Department,
		&e.Position,
		&e.IsActive,
		&e.HiredAt,
		&e.CreatedAt,
		&e.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, employees.ErrEmployeeNotFound
		}
		return nil, fmt.Errorf("get employee: %w", err)
	}
	return &e, nil
}

// List returns employees matching the filter plus the total count.
func (r *Repository) List(ctx context.Context, filter employees.Filter) ([]domain.Employee, int, error) {
	where := ` WHERE 1=1`
	args := []any{}

	if !filter.IncludeInactive {
		where += ` AND is_active = true`
	}
	if filter.Department != nil {
		args = append(args, *filter.Department)
		where += ` AND department = $` + strconv.Itoa(len(args))
	}
	if filter.Search != "" {
		args = append(args, "%"+filter.Search+"%")
		n := strconv.Itoa(len(args))
		where += ` AND (name_search LIKE $` + n + ` OR email LIKE $` + n + `)`
	}

	var total int
	if err := r.db.QueryRow(ctx, `SELECT COUNT(*) FROM employees`+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count employees: %w", err)
	}

	query := `SELECT ` + employeeColumns + ` FROM employees` + where + ` ORDER BY name, id`
	if filter.Limit > 0 {
		args = append(args, filter.Limit)
		query += ` LIMIT $` + strconv.Itoa(len(args))
	}
	if filter.Offset > 0 {
		args = append(args, filter.Offset)
		query += ` OFFSET $` + strconv.Itoa(len(args))
	}

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("list employees: %w", err)
	}
	defer rows.Close()

	var list []domain.Employee
	for rows.Next() {
		var e domain.Employee
		err := rows.Scan(
			&e.ID,
			&e.Name,
			&e.Email,
			&e.PasswordHash,
			&e.Role,
			&e.Department,
			&e.Position,
			&e.IsActive,
			&e.HiredAt,
			&e.CreatedAt,
			&e.UpdatedAt,
		)
		if err != nil {
			return nil, 0, fmt.Errorf("scan employee: %w", err)
		}
		list = append(list, e)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("iterate employees: %w", err)
	}
	return list, total, nil
}

// Update persists the mutable employee fields.
func (r *Repository) Update(ctx context.Context, e *domain.Employee) error {
	query := `
		UPDATE employees
		SET name = $2, name_search = $3, role = $4, department = $5, position = $6,
		    password_hash = $7, hired_at = $8, updated_at = NOW()
		WHERE id = $1
		RETURNING updated_at
	`
	err := r.db.QueryRow(ctx, query,
		e.ID,
		e.Name,
		employees.Fold(e.Name),
		e.Role,
		e.Department,
		e.Position,
		e.PasswordHash,
		e.HiredAt,
	).Scan(&e.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return employees.ErrEmployeeNotFound
		}
		return fmt.Errorf("update employee: %w", err)
	}
	return nil
}

// SetActive toggles the soft-delete flag.
func (r *Repository) SetActive(ctx context.Context, id string, active bool) error {
	tag, err := r.db.Exec(ctx, `UPDATE employees SET is_active = $2, updated_at = NOW() WHERE id = $1`, id, active)
	if err != nil {
		return fmt.Errorf("set employee active: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return employees.ErrEmployeeNotFound
	}
	return nil
}

// ListDepartments returns the distinct non-empty department names.
func (r *Repository) ListDepartments(ctx context.Context) ([]string, error) {
	rows, err := r.db.Query(ctx, `SELECT DISTINCT department FROM employees WHERE department <> '' ORDER BY department`)
	if err != nil {
		return nil, fmt.Errorf("list departments: %w", err)
	}
	defer rows.Close()

	var departments []string
	for rows.Next() {
		var d string
		if err := rows.Scan(&d); err != nil {
			return nil, fmt.Errorf("scan department: %w", err)
		}
		departments = append(departments, d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate departments: %w", err)
	}
	return departments, nil
}
