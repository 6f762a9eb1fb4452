// Package postgres provides the PostgreSQL implementation of the attendance
// repository.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/pontualhq/pontual/internal/domain"
)

// Repository implements attendance.Repository using PostgreSQL.
type Repository struct {
	db *pgxpool.Pool
}

// NewRepository creates a new PostgreSQL repository.
func NewRepository(db *pgxpool.Pool) *Repository {
	return &Repository{db: db}
}

// Create inserts a punch.
func (r *Repository) Create(ctx context.Context, p *domain.Punch) error {
	query := `
		INSERT INTO punches (employee_id, kind, at, source)
		VALUES ($1, $2, $3, $4)
		RETURNING id, created_at
	`
	err := r.db.QueryRow(ctx, query, p.EmployeeID, p.Kind, p.At, p.Source).
		Scan(&p.ID, &p.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert punch: %w", err)
	}
	return nil
}

// LastOfKind returns the employee's most recent punch of the given kind,
// or nil when none exists.
func (r *Repository) LastOfKind(ctx context.Context, employeeID string, kind domain.PunchKind) (*domain.Punch, error) {
	query := `
		SELECT id, employee_id, kind, at, source, created_at
		FROM punches
		WHERE employee_id = $1 AND kind = $2
		ORDER BY at DESC
		LIMIT 1
	`
	var p domain.Punch
	err := r.db.QueryRow(ctx, query, employeeID, kind).Scan(
		&p.ID,
		&p.EmployeeID,
		&p.Kind,
		&p.At,
		&p.Source,
		&p.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get last punch: %w", err)
	}
	return &p, nil
}

// ListByEmployee returns punches in [from, to) ordered by time.
func (r *Repository) ListByEmployee(ctx context.Context, employeeID string, from, to time.Time) ([]domain.Punch, error) {
	query := `
		SELECT id, employee_id, kind, at, source, created_at
		FROM punches
		WHERE employee_id = $1 AND at >= $2 AND at < $3
		ORDER BY at, id
	`
	rows, err := r.db.Query(ctx, query, employeeID, from, to)
	if err != nil {
		return nil, fmt.Errorf("list punches: %w", err)
	}
	defer rows.Close()

	var punches []domain.Punch
	for rows.Next() {
		var p domain.Punch
		if err := rows.Scan(&p.ID, &p.EmployeeID, &p.Kind, &p.At, &p.Source, &p.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan punch: %w", err)
		}
		punches = append(punches, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate punches: %w", err)
	}
	return punches, nil
}

// EmployeeExists reports whether an active employee with the id exists.
func (r *Repository) EmployeeExists(ctx context.Context, employeeID string) (bool, error) {
	var exists bool
	err := r.db.QueryRow(ctx,
		`SELECT EXISTS(SELECT 1 FROM employees WHERE id = $1 AND is_active = true)`,
		employeeID,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check employee: %w", err)
	}
	return exists, nil
}
