// Package postgres provides the PostgreSQL implementation of the identity
// repository.
package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/pontualhq/pontual/internal/domain"
	"github.com/pontualhq/pontual/internal/identity"
)

// Repository implements identity.Repository using PostgreSQL.
type Repository struct {
	db *pgxpool.Pool
}

// NewRepository creates a new PostgreSQL repository.
func NewRepository(db *pgxpool.Pool) *Repository {
	return &Repository{db: db}
}

// GetEmployeeByEmail retrieves an employee by email.
func (r *Repository) GetEmployeeByEmail(ctx context.Context, email string) (*domain.Employee, error) {
	return r.getEmployee(ctx, `WHERE email = $1`, email)
}

// GetEmployeeByID retrieves an employee by id.
func (r *Repository) GetEmployeeByID(ctx context.Context, id string) (*domain.Employee, error) {
	return r.getEmployee(ctx, `WHERE id = $1`, id)
}

func (r *Repository) getEmployee(ctx context.Context, where string, arg any) (*domain.Employee, error) {
	query := `
		SELECT id, name, email, password_hash, role, department, position, is_active, hired_at, created_at, updated_at
		FROM employees ` + where

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
			return nil, identity.ErrEmployeeNotFound
		}
		return nil, fmt.Errorf("get employee: %w", err)
	}
	return &e, nil
}

// SaveRefreshToken stores a refresh token hash.
func (r *Repository) SaveRefreshToken(ctx context.Context, token *domain.RefreshToken) error {
	query := `
		INSERT INTO refresh_tokens (employee_id, token_hash, expires_at)
		VALUES ($1, $2, $3)
		RETURNING id, created_at
	`
	return r.db.QueryRow(ctx, query, token.EmployeeID, token.TokenHash, token.ExpiresAt).
		Scan(&token.ID, &token.CreatedAt)
}

// GetRefreshToken retrieves a refresh token by hash.
func (r *Repository) GetRefreshToken(ctx context.Context, tokenHash string) (*domain.RefreshToken, error) {
	query := `
		SELECT id, employee_id, token_hash, expires_at, created_at
		FROM refresh_tokens
		WHERE token_hash = $1
	`
	var t domain.RefreshToken
	err := r.db.QueryRow(ctx, query, tokenHash).Scan(
		&t.ID,
		&t.EmployeeID,
		&t.TokenHash,
		&t.ExpiresAt,
		&t.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, identity.ErrInvalidToken
		}
		return nil, fmt.Errorf("get refresh token: %w", err)
	}
	return &t, nil
}

// DeleteRefreshToken removes one refresh token.
func (r *Repository) DeleteRefreshToken(ctx context.Context, tokenHash string) error {
	if _, err := r.db.Exec(ctx, `DELETE FROM refresh_tokens WHERE token_hash = $1`, tokenHash); err != nil {
		return fmt.Errorf("delete refresh token: %w", err)
	}
	return nil
}

// DeleteEmployeeRefreshTokens removes all refresh tokens for an employee.
func (r *Repository) DeleteEmployeeRefreshTokens(ctx context.Context, employeeID string) error {
	if _, err := r.db.Exec(ctx, `DELETE FROM refresh_tokens WHERE employee_id = $1`, employeeID); err != nil {
		return fmt.Errorf("delete employee refresh tokens: %w", err)
	}
	return nil
}
