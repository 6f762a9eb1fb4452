package timeoff

import (
	"context"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pontualhq/pontual/internal/domain"
)

// mockRepository implements Repository for testing.
type mockRepository struct {
	absences  map[string]*domain.Absence
	vacations map[string]*domain.Vacation
	nextID    int
}

func newMockRepository() *mockRepository {
	return &mockRepository{
		absences:  make(map[string]*domain.Absence),
		vacations: make(map[string]*domain.Vacation),
	}
}

func (m *mockRepository) id(prefix string) string {
	m.nextID++
	return prefix + "-" + strconv.Itoa(m.nextID)
}

func (m *mockRepository) CreateAbsence(_ context.Context, a *domain.Absence) error {
	a.ID = m.id("abs")
	copied := *a
	m.absences[a.ID] = &copied
	return nil
}

func (m *mockRepository) GetAbsence(_ context.Context, id string) (*domain.Absence, error) {
	if a, ok := m.absences[id]; ok {
		copied := *a
		return &copied, nil
	}
	return nil, ErrAbsenceNotFound
}

func (m *mockRepository) ListAbsences(_ context.Context, employeeID string, from, to time.Time) ([]domain.Absence, error) {
	var list []domain.Absence
	for _, a := range m.absences {
		if a.EmployeeID == employeeID && !a.Date.Before(from) && a.Date.Before(to) {
			list = append(list, *a)
		}
	}
	return list, nil
}

func (m *mockRepository) UpdateAbsence(_ context.Context, a *domain.Absence) error {
	if _, ok := m.absences[a.ID]; !ok {
		return ErrAbsenceNotFound
	}
	copied := *a
	m.absences[a.ID] = &copied
	return nil
}

func (m *mockRepository) DeleteAbsence(_ context.Context, id string) error {
	delete(m.absences, id)
	return nil
}

func (m *mockRepository) CreateVacation(_ context.Context, v *domain.Vacation) error {
	v.ID = m.id("vac")
	copied := *v
	m.vacations[v.ID] = &copied
	return nil
}

func (m *mockRepository) GetVacation(_ context.Context, id string) (*domain.Vacation, error) {
	if v, ok := m.vacations[id]; ok {
		copied := *v
		return &copied, nil
	}
	return nil, ErrVacationNotFound
}

func (m *mockRepository) ListVacations(_ context.Context, filter VacationFilter) ([]domain.Vacation, error) {
	var list []domain.Vacation
	for _, v := range m.vacations {
		if filter.EmployeeID != nil && v.EmployeeID != *filter.EmployeeID {
			continue
		}
		if filter.Status != nil && v.Status != *filter.Status {
			continue
		}
		list = append(list, *v)
	}
	return list, nil
}

func (m *mockRepository) UpdateVacation(_ context.Context, v *domain.Vacation) error {
	if _, ok := m.vacations[v.ID]; !ok {
		return ErrVacationNotFound
	}
	copied := *v
	m.vacations[v.ID] = &copied
	return nil
}

func (m *mockRepository) HasOverlappingVacation(_ context.Context, employeeID string, start, end time.Time) (bool, error) {
	for _, v := range m.vacations {
		if v.EmployeeID != employeeID || v.Status == domain.VacationRejected {
			continue
		}
		if !v.StartDate.After(end) && !v.EndDate.Before(start) {
			return true, nil
		}
	}
	return false, nil
}

// recordingNotifier captures notification titles.
type recordingNotifier struct {
	notes []string
}

func (n *recordingNotifier) Notify(_ context.Context, _, title, _ string) error {
	n.notes = append(n.notes, title)
	return nil
}

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func TestService_RequestVacation(t *testing.T) {
	service := NewService(newMockRepository(), nil)

	vacation, err := service.RequestVacation(context.Background(), "emp-1", date(2026, 7, 1), date(2026, 7, 15))
	require.NoError(t, err)

	assert.Equal(t, domain.VacationPending, vacation.Status)
	assert.NotEmpty(t, vacation.ID)
}

func TestService_RequestVacationInvalidPeriod(t *testing.T) {
	service := NewService(newMockRepository(), nil)

	_, err := service.RequestVacation(context.Background(), "emp-1", date(2026, 7, 15), date(2026, 7, 1))
	assert.ErrorIs(t, err, ErrInvalidPeriod)
}

func TestService_RequestVacationOverlap(t *testing.T) {
	service := NewService(newMockRepository(), nil)

	_, err := service.RequestVacation(context.Background(), "emp-1", date(2026, 7, 1), date(2026, 7, 15))
	require.NoError(t, err)

	_, err = service.RequestVacation(context.Background(), "emp-1", date(2026, 7, 10), date(2026, 7, 20))
	assert.ErrorIs(t, err, ErrOverlappingLeave)

	// A different employee can take the same period.
	_, err = service.RequestVacation(context.Background(), "emp-2", date(2026, 7, 10), date(2026, 7, 20))
	assert.NoError(t, err)
}

func TestService_DecideApprove(t *testing.T) {
	notifier := &recordingNotifier{}
	service := NewService(newMockRepository(), notifier)

	vacation, err := service.RequestVacation(context.Background(), "emp-1", date(2026, 7, 1), date(2026, 7, 15))
	require.NoError(t, err)

	decided, err := service.Decide(context.Background(), vacation.ID, "mgr-1", true)
	require.NoError(t, err)

	assert.Equal(t, domain.VacationApproved, decided.Status)
	assert.Equal(t, "mgr-1", decided.DecidedBy)
	require.NotNil(t, decided.DecidedAt)
	assert.Equal(t, []string{"Vacation request approved"}, notifier.notes)
}

func TestService_DecideIsFinal(t *testing.T) {
	service := NewService(newMockRepository(), nil)

	vacation, err := service.RequestVacation(context.Background(), "emp-1", date(2026, 7, 1), date(2026, 7, 15))
	require.NoError(t, err)

	_, err = service.Decide(context.Background(), vacation.ID, "mgr-1", false)
	require.NoError(t, err)

	_, err = service.Decide(context.Background(), vacation.ID, "mgr-2", true)
	assert.ErrorIs(t, err, ErrAlreadyDecided)
}

func TestService_DecideUnknown(t *testing.T) {
	service := NewService(newMockRepository(), nil)

	_, err := service.Decide(context.Background(), "vac-404", "mgr-1", true)
	assert.ErrorIs(t, err, ErrVacationNotFound)
}

func TestService_AbsenceLifecycle(t *testing.T) {
	service := NewService(newMockRepository(), nil)

	absence, err := service.RecordAbsence(context.Background(), "emp-1", date(2026, 3, 10), "", false)
	require.NoError(t, err)
	assert.False(t, absence.Justified)

	justified, err := service.JustifyAbsence(context.Background(), absence.ID, "medical appointment")
	require.NoError(t, err)
	assert.True(t, justified.Justified)
	assert.Equal(t, "medical appointment", justified.Reason)

	list, err := service.ListAbsences(context.Background(), "emp-1", date(2026, 3, 1), date(2026, 4, 1))
	require.NoError(t, err)
	assert.Len(t, list, 1)

	require.NoError(t, service.DeleteAbsence(context.Background(), absence.ID))
	assert.ErrorIs(t, service.DeleteAbsence(context.Background(), absence.ID), ErrAbsenceNotFound)
}
