// Package postgres provides the PostgreSQL implementation of the time-off
// repository.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/pontualhq/pontual/internal/domain"
	"github.com/pontualhq/pontual/internal/timeoff"
)

// Repository implements timeoff.Repository using PostgreSQL.
type Repository struct {
	db *pgxpool.Pool
}

// NewRepository creates a new PostgreSQL repository.
func NewRepository(db *pgxpool.Pool) *Repository {
	return &Repository{db: db}
}

// CreateAbsence inserts an absence record.
func (r *Repository) CreateAbsence(ctx context.Context, a *domain.Absence) error {
	query := `
		INSERT INTO absences (employee_id, date, reason, justified)
		VALUES ($1, $2, $3, $4)
		RETURNING id, created_at, updated_at
	`
	err := r.db.QueryRow(ctx, query, a.EmployeeID, a.Date, a.Reason, a.Justified).
		Scan(&a.ID, &a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		return fmt.Errorf("insert absence: %w", err)
	}
	return nil
}

// GetAbsence retrieves an absence by id.
func (r *Repository) GetAbsence(ctx context.Context, id string) (*domain.Absence, error) {
	query := `
		SELECT id, employee_id, date, reason, justified, created_at, updated_at
		FROM absences
		WHERE id = $1
	`
	var a domain.Absence
	err := r.db.QueryRow(ctx, query, id).Scan(
		&a.ID, &a.EmployeeID, &a.Date, &a.Reason, &a.Justified, &a.CreatedAt, &a.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, timeoff.ErrAbsenceNotFound
		}
		return nil, fmt.Errorf("get absence: %w", err)
	}
	return &a, nil
}

// ListAbsences returns an employee's absences in [from, to) ordered by date.
func (r *Repository) ListAbsences(ctx context.Context, employeeID string, from, to time.Time) ([]domain.Absence, error) {
	query := `
		SELECT id, employee_id, date, reason, justified, created_at, updated_at
		FROM absences
		WHERE employee_id = $1 AND date >= $2 AND date < $3
		ORDER BY date, id
	`
	rows, err := r.db.Query(ctx, query, employeeID, from, to)
	if err != nil {
		return nil, fmt.Errorf("list absences: %w", err)
	}
	defer rows.Close()

	var absences []domain.Absence
	for rows.Next() {
		var a domain.Absence
		if err := rows.Scan(&a.ID, &a.EmployeeID, &a.Date, &a.Reason, &a.Justified, &a.CreatedAt, &a.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan absence: %w", err)
		}
		absences = append(absences, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate absences: %w", err)
	}
	return absences, nil
}

// UpdateAbsence persists the mutable absence fields.
func (r *Repository) UpdateAbsence(ctx context.Context, a *domain.Absence) error {
	query := `
		UPDATE absences
		SET reason = $2, justified = $3, updated_at = NOW()
		WHERE id = $1
		RETURNING updated_at
	`
	err := r.db.QueryRow(ctx, query, a.ID, a.Reason, a.Justified).Scan(&a.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return timeoff.ErrAbsenceNotFound
		}
		return fmt.Errorf("update absence: %w", err)
	}
	return nil
}

// DeleteAbsence removes an absence record.
func (r *Repository) DeleteAbsence(ctx context.Context, id string) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM absences WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete absence: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return timeoff.ErrAbsenceNotFound
	}
	return nil
}

// CreateVacation inserts a vacation request.
func (r *Repository) CreateVacation(ctx context.Context, v *domain.Vacation) error {
	query := `
		INSERT INTO vacations (employee_id, start_date, end_date, status)
		VALUES ($1, $2, $3, $4)
		RETURNING id, created_at, updated_at
	`
	err := r.db.QueryRow(ctx, query, v.EmployeeID, v.StartDate, v.EndDate, v.Status).
		Scan(&v.ID, &v.CreatedAt, &v.UpdatedAt)
	if err != nil {
		return fmt.Errorf("insert vacation: %w", err)
	}
	return nil
}

// GetVacation retrieves a vacation request by id.
func (r *Repository) GetVacation(ctx context.Context, id string) (*domain.Vacation, error) {
	query := `
		SELECT id, employee_id, start_date, end_date, status, COALESCE(decided_by::text, ''), decided_at, created_at, updated_at
		FROM vacations
		WHERE id = $1
	`
	var v domain.Vacation
	err := r.db.QueryRow(ctx, query, id).Scan(
		&v.ID, &v.EmployeeID, &v.StartDate, &v.EndDate, &v.Status,
		&v.DecidedBy, &v.DecidedAt, &v.CreatedAt, &v.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, timeoff.ErrVacationNotFound
		}
		return nil, fmt.Errorf("get vacation: %w", err)
	}
	return &v, nil
}

// ListVacations returns vacation requests matching the filter ordered by
// start date descending.
func (r *Repository) ListVacations(ctx context.Context, filter timeoff.VacationFilter) ([]domain.Vacation, error) {
	query := `
		SELECT id, employee_id, start_date, end_date, status, COALESCE(decided_by::text, ''), decided_at, created_at, updated_at
		FROM vacations
		WHERE 1=1
	`
	args := []any{}
	if filter.EmployeeID != nil {
		args = append(args, *filter.EmployeeID)
		query += ` AND employee_id = $` + strconv.Itoa(len(args))
	}
	if filter.Status != nil {
		args = append(args, *filter.Status)
		query += ` AND status = $` + strconv.Itoa(len(args))
	}
	query += ` ORDER BY start_date DESC, id`

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list vacations: %w", err)
	}
	defer rows.Close()

	var vacations []domain.Vacation
	for rows.Next() {
		var v domain.Vacation
		err := rows.Scan(
			&v.ID, &v.EmployeeID, &v.StartDate, &v.EndDate, &v.Status,
			&v.DecidedBy, &v.DecidedAt, &v.CreatedAt, &v.UpdatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("scan vacation: %w", err)
		}
		vacations = append(vacations, v)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate vacations: %w", err)
	}
	return vacations, nil
}

// UpdateVacation persists the decision fields.
func (r *Repository) UpdateVacation(ctx context.Context, v *domain.Vacation) error {
	query := `
		UPDATE vacations
		SET status = $2, decided_by = NULLIF($3, ''), decided_at = $4, updated_at = NOW()
		WHERE id = $1
		RETURNING updated_at
	`
	err := r.db.QueryRow(ctx, query, v.ID, v.Status, v.DecidedBy, v.DecidedAt).Scan(&v.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return timeoff.ErrVacationNotFound
		}
		return fmt.Errorf("update vacation: %w", err)
	}
	return nil
}

// HasOverlappingVacation reports whether a non-rejected vacation of the
// employee intersects [start, end].
func (r *Repository) HasOverlappingVacation(ctx context.Context, employeeID string, start, end time.Time) (bool, error) {
	query := `
		SELECT EXISTS(
			SELECT 1 FROM vacations
			WHERE employee_id = $1
			  AND status <> 'rejected'
			  AND start_date <= $3
			  AND end_date >= $2
		)
	`
	var exists bool
	if err := r.db.QueryRow(ctx, query, employeeID, start, end).Scan(&exists); err != nil {
		return false, fmt.Errorf("check vacation overlap: %w", err)
	}
	return exists, nil
}
