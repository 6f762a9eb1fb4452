package employees

import (
	"context"
	"strconv"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/pontualhq/pontual/internal/domain"
)

// mockRepository implements Repository for testing.
type mockRepository struct {
	byID   map[string]*domain.Employee
	nextID int
}

func newMockRepository() *mockRepository {
	return &mockRepository{byID: make(map[string]*domain.Employee)}
}

func (m *mockRepository) Create(_ context.Context, e *domain.Employee) error {
	m.nextID++
	e.ID = "emp-" + strconv.Itoa(m.nextID)
	m.byID[e.ID] = e
	return nil
}

func (m *mockRepository) GetByID(_ context.Context, id string) (*domain.Employee, error) {
	if e, ok := m.byID[id]; ok {
		copied := *e
		return &copied, nil
	}
	return nil, ErrEmployeeNotFound
}

func (m *mockRepository) GetByEmail(_ context.Context, email string) (*domain.Employee, error) {
	for _, e := range m.byID {
		if e.Email == email {
			copied := *e
			return &copied, nil
		}
	}
	return nil, ErrEmployeeNotFound
}

func (m *mockRepository) List(_ context.Context, filter Filter) ([]domain.Employee, int, error) {
	var list []domain.Employee
	for _, e := range m.byID {
		if !filter.IncludeInactive && !e.IsActive {
			continue
		}
		if filter.Department != nil && e.Department != *filter.Department {
			continue
		}
		if filter.Search != "" {
			if !strings.Contains(Fold(e.Name), filter.Search) && !strings.Contains(e.Email, filter.Search) {
				continue
			}
		}
		list = append(list, *e)
	}
	return list, len(list), nil
}

func (m *mockRepository) Update(_ context.Context, e *domain.Employee) error {
	if _, ok := m.byID[e.ID]; !ok {
		return ErrEmployeeNotFound
	}
	copied := *e
	m.byID[e.ID] = &copied
	return nil
}

func (m *mockRepository) SetActive(_ context.Context, id string, active bool) error {
	e, ok := m.byID[id]
	if !ok {
		return ErrEmployeeNotFound
	}
	e.IsActive = active
	return nil
}

func (m *mockRepository) ListDepartments(_ context.Context) ([]string, error) {
	seen := make(map[string]bool)
	var departments []string
	for _, e := range m.byID {
		if e.Department != "" && !seen[e.Department] {
			seen[e.Department] = true
			departments = append(departments, e.Department)
		}
	}
	return departments, nil
}

func TestService_Create(t *testing.T) {
	service := NewService(newMockRepository())

	employee, err := service.Create(context.Background(), CreateInput{
		Name:       "José Silva",
		Email:      "Jose.Silva@Example.com",
		Password:   "s3cret-pass",
		Role:       domain.RoleEmployee,
		Department: "Engineering",
	})
	require.NoError(t, err)

	assert.NotEmpty(t, employee.ID)
	assert.Equal(t, "jose.silva@example.com", employee.Email, "email is normalized")
	assert.True(t, employee.IsActive)
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(employee.PasswordHash), []byte("s3cret-pass")))
}

func TestService_CreateDuplicateEmail(t *testing.T) {
	service := NewService(newMockRepository())

	_, err := service.Create(context.Background(), CreateInput{
		Name: "Ana", Email: "ana@example.com", Password: "s3cret-pass", Role: domain.RoleEmployee,
	})
	require.NoError(t, err)

	_, err = service.Create(context.Background(), CreateInput{
		Name: "Ana Again", Email: "ana@example.com", Password: "other-pass", Role: domain.RoleEmployee,
	})
	assert.ErrorIs(t, err, ErrEmailExists)
}

func TestService_CreateWeakPassword(t *testing.T) {
	service := NewService(newMockRepository())

	_, err := service.Create(context.Background(), CreateInput{
		Name: "Ana", Email: "ana@example.com", Password: "short", Role: domain.RoleEmployee,
	})
	assert.ErrorIs(t, err, ErrWeakPassword)
}

func TestService_ListSearchIgnoresAccents(t *testing.T) {
	repo := newMockRepository()
	service := NewService(repo)

	for _, name := range []string{"José Silva", "Joao Souza", "Maria Conceição"} {
		_, err := service.Create(context.Background(), CreateInput{
			Name: name, Email: Fold(strings.ReplaceAll(name, " ", ".")) + "@example.com",
			Password: "s3cret-pass", Role: domain.RoleEmployee,
		})
		require.NoError(t, err)
	}

	tests := []struct {
		search string
		want   int
	}{
		{"jose", 1},
		{"José", 1},
		{"conceicao", 1},
		{"jo", 2},
		{"nobody", 0},
	}
	for _, tt := range tests {
		list, total, err := service.List(context.Background(), Filter{Search: tt.search})
		require.NoError(t, err)
		assert.Len(t, list, tt.want, "search %q", tt.search)
		assert.Equal(t, tt.want, total)
	}
}

func TestService_UpdatePartial(t *testing.T) {
	service := NewService(newMockRepository())

	employee, err := service.Create(context.Background(), CreateInput{
		Name: "Ana", Email: "ana@example.com", Password: "s3cret-pass",
		Role: domain.RoleEmployee, Department: "Support",
	})
	require.NoError(t, err)

	newDept := "Engineering"
	updated, err := service.Update(context.Background(), employee.ID, UpdateInput{Department: &newDept})
	require.NoError(t, err)

	assert.Equal(t, "Engineering", updated.Department)
	assert.Equal(t, "Ana", updated.Name, "untouched fields survive")
}

func TestService_DeactivateTwice(t *testing.T) {
	service := NewService(newMockRepository())

	employee, err := service.Create(context.Background(), CreateInput{
		Name: "Ana", Email: "ana@example.com", Password: "s3cret-pass", Role: domain.RoleEmployee,
	})
	require.NoError(t, err)

	require.NoError(t, service.Deactivate(context.Background(), employee.ID))
	assert.ErrorIs(t, service.Deactivate(context.Background(), employee.ID), ErrAlreadyInactive)

	require.NoError(t, service.Reactivate(context.Background(), employee.ID))
	got, err := service.Get(context.Background(), employee.ID)
	require.NoError(t, err)
	assert.True(t, got.IsActive)
}

func TestFold(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"José", "jose"},
		{"Conceição", "conceicao"},
		{"ASCII only", "ascii only"},
		{"", ""},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Fold(tt.in))
	}
}
