// Package postgres provides the PostgreSQL implementation of the
// notifications repository.
package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/pontualhq/pontual/internal/domain"
	"github.com/pontualhq/pontual/internal/notifications"
)

// Repository implements notifications.Repository using PostgreSQL.
type Repository struct {
	db *pgxpool.Pool
}

// NewRepository creates a new PostgreSQL repository.
func NewRepository(db *pgxpool.Pool) *Repository {
	return &Repository{db: db}
}

// Create inserts a notification.
func (r *Repository) Create(ctx context.Context, n *domain.Notification) error {
	query := `
		INSERT INTO notifications (employee_id, title, body)
		VALUES ($1, $2, $3)
		RETURNING id, created_at
	`
	err := r.db.QueryRow(ctx, query, n.EmployeeID, n.Title, n.Body).
		Scan(&n.ID, &n.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert notification: %w", err)
	}
	return nil
}

// Get retrieves a notification by id.
func (r *Repository) Get(ctx context.Context, id string) (*domain.Notification, error) {
	query := `
		SELECT id, employee_id, title, body, is_read, created_at
		FROM notifications
		WHERE id = $1
	`
	var n domain.Notification
	err := r.db.QueryRow(ctx, query, id).Scan(
		&n.ID, &n.EmployeeID, &n.Title, &n.Body, &n.IsRead, &n.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, notifications.ErrNotificationNotFound
		}
		return nil, fmt.Errorf("get notification: %w", err)
	}
	return &n, nil
}

// ListByEmployee returns an employee's notifications, newest first.
func (r *Repository) ListByEmployee(ctx context.Context, employeeID string, unreadOnly bool, limit int) ([]domain.Notification, error) {
	query := `
		SELECT id, employee_id, title, body, is_read, created_at
		FROM notifications
		WHERE employee_id = $1
	`
	if unreadOnly {
		query += ` AND is_read = false`
	}
	query += ` ORDER BY created_at DESC, id LIMIT $2`

	rows, err := r.db.Query(ctx, query, employeeID, limit)
	if err != nil {
		return nil, fmt.Errorf("list notifications: %w", err)
	}
	defer rows.Close()

	var list []domain.Notification
	for rows.Next() {
		var n domain.Notification
		if err := rows.Scan(&n.ID, &n.EmployeeID, &n.Title, &n.Body, &n.IsRead, &n.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan notification: %w", err)
		}
		list = append(list, n)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate notifications: %w", err)
	}
	return list, nil
}

// MarkRead marks one notification read.
func (r *Repository) MarkRead(ctx context.Context, id string) error {
	tag, err := r.db.Exec(ctx, `UPDATE notifications SET is_read = true WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("mark notification read: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return notifications.ErrNotificationNotFound
	}
	return nil
}

// MarkAllRead marks every notification of the employee read.
func (r *Repository) MarkAllRead(ctx context.Context, employeeID string) error {
	if _, err := r.db.Exec(ctx, `UPDATE notifications SET is_read = true WHERE employee_id = $1 AND is_read = false`, employeeID); err != nil {
		return fmt.Errorf("mark all notifications read: %w", err)
	}
	return nil
}

// CountUnread returns the number of unread notifications.
func (r *Repository) CountUnread(ctx context.Context, employeeID string) (int, error) {
	var count int
	err := r.db.QueryRow(ctx, `SELECT COUNT(*) FROM notifications WHERE employee_id = $1 AND is_read = false`, employeeID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count unread notifications: %w", err)
	}
	return count, nil
}
