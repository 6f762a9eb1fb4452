//go:build integration

package integration

import (
	"context"
	"fmt"
	"testing"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/pontualhq/pontual/internal/employees"
)

// seedEmployees inserts the fixture accounts the suite logs in with.
func seedEmployees(ctx context.Context) error {
	accounts := []struct {
		name     string
		email    string
		password string
		role     string
	}{
		{"Admin Account", "admin@example.com", "admin-pass-123", "admin"},
		{"Manager Account", "manager@example.com", "manager-pass-123", "manager"},
		{"Employee Account", "employee@example.com", "employee-pass-123", "employee"},
	}

	for _, a := range accounts {
		hash, err := bcrypt.GenerateFromPassword([]byte(a.password), bcrypt.MinCost)
		if err != nil {
			return fmt.Errorf("hash password: %w", err)
		}
		_, err = testDB.Exec(ctx, `
			INSERT INTO employees (name, name_search, email, password_hash, role)
			VALUES ($1, $2, $3, $4, $5)
			ON CONFLICT (email) DO NOTHING
		`, a.name, employees.Fold(a.name), a.email, string(hash), a.role)
		if err != nil {
			return fmt.Errorf("insert %s: %w", a.email, err)
		}
	}
	return nil
}

// employeeID looks up a fixture account id by email.
func employeeID(t *testing.T, email string) string {
	t.Helper()
	var id string
	err := testDB.QueryRow(context.Background(),
		`SELECT id FROM employees WHERE email = $1`, email).Scan(&id)
	if err != nil {
		t.Fatalf("look up employee %s: %v", email, err)
	}
	return id
}

// clearPunches removes all punches for an employee so tests start clean.
func clearPunches(t *testing.T, employeeID string) {
	t.Helper()
	if _, err := testDB.Exec(context.Background(),
		`DELETE FROM punches WHERE employee_id = $1`, employeeID); err != nil {
		t.Fatalf("clear punches: %v", err)
	}
}

// clearVacations removes all vacation requests for an employee.
func clearVacations(t *testing.T, employeeID string) {
	t.Helper()
	if _, err := testDB.Exec(context.Background(),
		`DELETE FROM vacations WHERE employee_id = $1`, employeeID); err != nil {
		t.Fatalf("clear vacations: %v", err)
	}
}

// uniqueEmail returns an email unlikely to collide across test runs.
func uniqueEmail(prefix string) string {
	return fmt.Sprintf("%s-%d@example.com", prefix, time.Now().UnixNano())
}
