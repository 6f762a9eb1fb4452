// Package employees provides management of the employee roster.
package employees

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"unicode"

	"golang.org/x/crypto/bcrypt"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"

	"github.com/pontualhq/pontual/internal/domain"
)

// Service errors.
var (
	ErrEmployeeNotFound = errors.New("employee not found")
	ErrEmailExists      = errors.New("email already registered")
	ErrAlreadyInactive  = errors.New("employee is already deactivated")
	ErrWeakPassword     = errors.New("password must be at least 8 characters")
)

// Repository defines the interface for employee data operations.
type Repository interface {
	Create(ctx context.Context, employee *domain.Employee) error
	GetByID(ctx context.Context, id string) (*domain.Employee, error)
	GetByEmail(ctx context.Context, email string) (*domain.Employee, error)
	List(ctx context.Context, filter Filter) ([]domain.Employee, int, error)
	Update(ctx context.Context, employee *domain.Employee) error
	SetActive(ctx context.Context, id string, active bool) error
	ListDepartments(ctx context.Context) ([]string, error)
}

// Filter represents filter criteria for listing employees.
type Filter struct {
	// Search matches name and email, ignoring case and accents.
	Search          string
	Department      *string
	IncludeInactive bool
	Limit           int
	Offset          int
}

// Service implements employee management logic.
type Service struct {
	repo Repository
}

// NewService creates a new employee service.
func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

// CreateInput carries the fields needed to register an employee.
type CreateInput struct {
	Name       string
	Email      string
	Password   string
	Role       domain.Role
	Department string
	Position   string
}

// Create registers a new employee with a hashed password.
func (s *Service) Create(ctx context.Context, input CreateInput) (*domain.Employee, error) {
	if len(input.Password) < 8 {
		return nil, ErrWeakPassword
	}

	email := strings.ToLower(strings.TrimSpace(input.Email))
	if _, err := s.repo.GetByEmail(ctx, email); err == nil {
		return nil, ErrEmailExists
	} else if !errors.Is(err, ErrEmployeeNotFound) {
		return nil, fmt.Errorf("check email: %w", err)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(input.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	employee := &domain.Employee{
		Name:         strings.TrimSpace(input.Name),
		Email:        email,
		PasswordHash: string(hash),
		Role:         input.Role,
		Department:   input.Department,
		Position:     input.Position,
		IsActive:     true,
	}
	if err := s.repo.Create(ctx, employee); err != nil {
		return nil, fmt.Errorf("create employee: %w", err)
	}
	return employee, nil
}

// Get returns one employee by id.
func (s *Service) Get(ctx context.Context, id string) (*domain.Employee, error) {
	return s.repo.GetByID(ctx, id)
}

// List returns employees matching the filter plus the total count.
// The search term is folded before it reaches the repository so that
// "José" and "jose" find the same rows.
func (s *Service) List(ctx context.Context, filter Filter) ([]domain.Employee, int, error) {
	filter.Search = Fold(filter.Search)
	return s.repo.List(ctx, filter)
}

// UpdateInput carries the mutable employee fields. Nil pointers leave
// the current value untouched.
type UpdateInput struct {
	Name       *string
	Role       *domain.Role
	Department *string
	Position   *string
	Password   *string
}

// Update applies a partial update to an employee.
func (s *Service) Update(ctx context.Context, id string, input UpdateInput) (*domain.Employee, error) {
	employee, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if input.Name != nil {
		employee.Name = strings.TrimSpace(*input.Name)
	}
	if input.Role != nil {
		employee.Role = *input.Role
	}
	if input.Department != nil {
		employee.Department = *input.Department
	}
	if input.Position != nil {
		employee.Position = *input.Position
	}
	if input.Password != nil {
		if len(*input.Password) < 8 {
			return nil, ErrWeakPassword
		}
		hash, err := bcrypt.GenerateFromPassword([]byte(*input.Password), bcrypt.DefaultCost)
		if err != nil {
			return nil, fmt.Errorf("hash password: %w", err)
		}
		employee.PasswordHash = string(hash)
	}

	if err := s.repo.Update(ctx, employee); err != nil {
		return nil, fmt.Errorf("update employee: %w", err)
	}
	return employee, nil
}

// Deactivate soft-deletes an employee. Historical punches stay intact.
func (s *Service) Deactivate(ctx context.Context, id string) error {
	employee, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if !employee.IsActive {
		return ErrAlreadyInactive
	}
	return s.repo.SetActive(ctx, id, false)
}

// Reactivate restores a deactivated employee.
func (s *Service) Reactivate(ctx context.Context, id string) error {
	if _, err := s.repo.GetByID(ctx, id); err != nil {
		return err
	}
	return s.repo.SetActive(ctx, id, true)
}

// Departments lists the distinct department names in use.
func (s *Service) Departments(ctx context.Context) ([]string, error) {
	return s.repo.ListDepartments(ctx)
}

var foldTransformer = transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)

// Fold lowercases a string and strips combining marks, so accented and
// unaccented spellings compare equal.
func Fold(s string) string {
	folded, _, err := transform.String(foldTransformer, s)
	if err != nil {
		return strings.ToLower(s)
	}
	return strings.ToLower(folded)
}
