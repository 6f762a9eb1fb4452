// Package identity provides authentication for employees and admins.
package identity

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"golang.org/x/crypto/bcrypt"
	"golang.org/x/time/rate"

	"github.com/pontualhq/pontual/internal/domain"
	"github.com/pontualhq/pontual/internal/identity/jwt"
)

// Service errors.
var (
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrEmployeeInactive   = errors.New("employee is deactivated")
	ErrEmployeeNotFound   = errors.New("employee not found")
	ErrInvalidToken       = errors.New("invalid or expired token")
	ErrTooManyAttempts    = errors.New("too many login attempts")
)

// Repository defines the identity data access.
type Repository interface {
	GetEmployeeByEmail(ctx context.Context, email string) (*domain.Employee, error)
	GetEmployeeByID(ctx context.Context, id string) (*domain.Employee, error)
	SaveRefreshToken(ctx context.Context, token *domain.RefreshToken) error
	GetRefreshToken(ctx context.Context, tokenHash string) (*domain.RefreshToken, error)
	DeleteRefreshToken(ctx context.Context, tokenHash string) error
	DeleteEmployeeRefreshTokens(ctx context.Context, employeeID string) error
}

// TokenPair carries both tokens issued at login.
type TokenPair struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
}

// Service implements authentication flows.
type Service struct {
	repo Repository
	auth *jwt.Authenticator

	// Per-email login limiter; entries are created on first use. The map
	// is bounded by the number of distinct emails attempting to log in.
	mu       sync.Mutex
	limiters map[string]*rate.Limiter
}

// NewService creates an identity service.
func NewService(repo Repository, auth *jwt.Authenticator) *Service {
	return &Service{
		repo:     repo,
		auth:     auth,
		limiters: make(map[string]*rate.Limiter),
	}
}

// Login verifies credentials and issues a token pair.
func (s *Service) Login(ctx context.Context, email, password string) (*domain.Employee, *TokenPair, error) {
	if !s.allowAttempt(email) {
		return nil, nil, ErrTooManyAttempts
	}

	employee, err := s.repo.GetEmployeeByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, ErrEmployeeNotFound) {
			// Burn comparable time so absent emails are not distinguishable.
			_ = bcrypt.CompareHashAndPassword([]byte("$2a$10$invalidsaltinvalidsaltinvalidsaltinvalidsalt"), []byte(password))
			return nil, nil, ErrInvalidCredentials
		}
		return nil, nil, fmt.Errorf("get employee: %w", err)
	}

	if err := bcrypt.CompareHashAndPassword([]byte(employee.PasswordHash), []byte(password)); err != nil {
		return nil, nil, ErrInvalidCredentials
	}

	if !employee.IsActive {
		return nil, nil, ErrEmployeeInactive
	}

	tokens, err := s.issueTokens(ctx, employee)
	if err != nil {
		return nil, nil, err
	}
	return employee, tokens, nil
}

// RefreshTokens rotates a refresh token into a new pair.
func (s *Service) RefreshTokens(ctx context.Context, refreshToken string) (*TokenPair, error) {
	hash := jwt.HashRefreshToken(refreshToken)

	stored, err := s.repo.GetRefreshToken(ctx, hash)
	if err != nil {
		return nil, ErrInvalidToken
	}
	if time.Now().After(stored.ExpiresAt) {
		_ = s.repo.DeleteRefreshToken(ctx, hash)
		return nil, ErrInvalidToken
	}

	employee, err := s.repo.GetEmployeeByID(ctx, stored.EmployeeID)
	if err != nil {
		return nil, ErrInvalidToken
	}
	if !employee.IsActive {
		return nil, ErrEmployeeInactive
	}

	// Rotation: the presented token is spent regardless of what follows.
	if err := s.repo.DeleteRefreshToken(ctx, hash); err != nil {
		return nil, fmt.Errorf("delete refresh token: %w", err)
	}

	return s.issueTokens(ctx, employee)
}

// Logout invalidates one refresh token.
func (s *Service) Logout(ctx context.Context, refreshToken string) error {
	return s.repo.DeleteRefreshToken(ctx, jwt.HashRefreshToken(refreshToken))
}

// Me returns the employee for an authenticated id.
func (s *Service) Me(ctx context.Context, employeeID string) (*domain.Employee, error) {
	employee, err := s.repo.GetEmployeeByID(ctx, employeeID)
	if err != nil {
		if errors.Is(err, ErrEmployeeNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("get employee: %w", err)
	}
	return employee, nil
}

// ValidateToken parses a bearer token for the auth middleware.
func (s *Service) ValidateToken(_ context.Context, token string) (string, domain.Role, error) {
	employeeID, role, err := s.auth.ParseAccessToken(token)
	if err != nil {
		return "", "", ErrInvalidToken
	}
	return employeeID, role, nil
}

func (s *Service) issueTokens(ctx context.Context, employee *domain.Employee) (*TokenPair, error) {
	access, err := s.auth.GenerateAccessToken(employee.ID, employee.Role)
	if err != nil {
		return nil, err
	}

	plain, hash, err := jwt.NewRefreshToken()
	if err != nil {
		return nil, err
	}

	err = s.repo.SaveRefreshToken(ctx, &domain.RefreshToken{
		EmployeeID: employee.ID,
		TokenHash:  hash,
		ExpiresAt:  time.Now().Add(s.auth.RefreshTokenDuration()),
	})
	if err != nil {
		return nil, fmt.Errorf("save refresh token: %w", err)
	}

	return &TokenPair{AccessToken: access, RefreshToken: plain}, nil
}

// allowAttempt enforces a small steady rate with a burst per email.
func (s *Service) allowAttempt(email string) bool {
	s.mu.Lock()
	limiter, ok := s.limiters[email]
	if !ok {
		limiter = rate.NewLimiter(rate.Every(10*time.Second), 5)
		s.limiters[email] = limiter
	}
	s.mu.Unlock()
	return limiter.Allow()
}
