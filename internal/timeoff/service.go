// Package timeoff manages absences and vacation requests.
package timeoff

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/pontualhq/pontual/internal/domain"
)

// Service errors.
var (
	ErrAbsenceNotFound  = errors.New("absence not found")
	ErrVacationNotFound = errors.New("vacation request not found")
	ErrInvalidPeriod    = errors.New("end date must not precede start date")
	ErrAlreadyDecided   = errors.New("vacation request was already decided")
	ErrOverlappingLeave = errors.New("period overlaps an existing vacation")
)

// Repository defines the interface for time-off data operations.
type Repository interface {
	CreateAbsence(ctx context.Context, absence *domain.Absence) error
	GetAbsence(ctx context.Context, id string) (*domain.Absence, error)
	ListAbsences(ctx context.Context, employeeID string, from, to time.Time) ([]domain.Absence, error)
	UpdateAbsence(ctx context.Context, absence *domain.Absence) error
	DeleteAbsence(ctx context.Context, id string) error

	CreateVacation(ctx context.Context, vacation *domain.Vacation) error
	GetVacation(ctx context.Context, id string) (*domain.Vacation, error)
	ListVacations(ctx context.Context, filter VacationFilter) ([]domain.Vacation, error)
	UpdateVacation(ctx context.Context, vacation *domain.Vacation) error
	HasOverlappingVacation(ctx context.Context, employeeID string, start, end time.Time) (bool, error)
}

// VacationFilter represents filter criteria for listing vacation requests.
type VacationFilter struct {
	EmployeeID *string
	Status     *domain.VacationStatus
}

// Notifier receives decision notifications. May be nil.
type Notifier interface {
	Notify(ctx context.Context, employeeID, title, body string) error
}

// Service implements time-off logic.
type Service struct {
	repo     Repository
	notifier Notifier
}

// NewService creates a time-off service. notifier may be nil.
func NewService(repo Repository, notifier Notifier) *Service {
	return &Service{repo: repo, notifier: notifier}
}

// RecordAbsence registers an absence for an employee.
func (s *Service) RecordAbsence(ctx context.Context, employeeID string, date time.Time, reason string, justified bool) (*domain.Absence, error) {
	absence := &domain.Absence{
		EmployeeID: employeeID,
		Date:       date,
		Reason:     reason,
		Justified:  justified,
	}
	if err := s.repo.CreateAbsence(ctx, absence); err != nil {
		return nil, fmt.Errorf("create absence: %w", err)
	}
	return absence, nil
}

// ListAbsences returns an employee's absences in [from, to).
func (s *Service) ListAbsences(ctx context.Context, employeeID string, from, to time.Time) ([]domain.Absence, error) {
	return s.repo.ListAbsences(ctx, employeeID, from, to)
}

// JustifyAbsence marks an absence justified with the given reason.
func (s *Service) JustifyAbsence(ctx context.Context, id, reason string) (*domain.Absence, error) {
	absence, err := s.repo.GetAbsence(ctx, id)
	if err != nil {
		return nil, err
	}
	absence.Justified = true
	if reason != "" {
		absence.Reason = reason
	}
	if err := s.repo.UpdateAbsence(ctx, absence); err != nil {
		return nil, fmt.Errorf("update absence: %w", err)
	}
	return absence, nil
}

// DeleteAbsence removes an absence record.
func (s *Service) DeleteAbsence(ctx context.Context, id string) error {
	if _, err := s.repo.GetAbsence(ctx, id); err != nil {
		return err
	}
	return s.repo.DeleteAbsence(ctx, id)
}

// RequestVacation opens a pending vacation request.
func (s *Service) RequestVacation(ctx context.Context, employeeID string, start, end time.Time) (*domain.Vacation, error) {
	if end.Before(start) {
		return nil, ErrInvalidPeriod
	}

	overlaps, err := s.repo.HasOverlappingVacation(ctx, employeeID, start, end)
	if err != nil {
		return nil, fmt.Errorf("check overlap: %w", err)
	}
	if overlaps {
		return nil, ErrOverlappingLeave
	}

	vacation := &domain.Vacation{
		EmployeeID: employeeID,
		StartDate:  start,
		EndDate:    end,
		Status:     domain.VacationPending,
	}
	if err := s.repo.CreateVacation(ctx, vacation); err != nil {
		return nil, fmt.Errorf("create vacation: %w", err)
	}
	return vacation, nil
}

// GetVacation returns one vacation request.
func (s *Service) GetVacation(ctx context.Context, id string) (*domain.Vacation, error) {
	return s.repo.GetVacation(ctx, id)
}

// ListVacations returns vacation requests matching the filter.
func (s *Service) ListVacations(ctx context.Context, filter VacationFilter) ([]domain.Vacation, error) {
	return s.repo.ListVacations(ctx, filter)
}

// Decide approves or rejects a pending vacation request. Decisions are
// final; a decided request cannot flip.
func (s *Service) Decide(ctx context.Context, id, deciderID string, approve bool) (*domain.Vacation, error) {
	vacation, err := s.repo.GetVacation(ctx, id)
	if err != nil {
		return nil, err
	}
	if vacation.Status != domain.VacationPending {
		return nil, ErrAlreadyDecided
	}

	now := time.Now()
	vacation.DecidedBy = deciderID
	vacation.DecidedAt = &now
	if approve {
		vacation.Status = domain.VacationApproved
	} else {
		vacation.Status = domain.VacationRejected
	}

	if err := s.repo.UpdateVacation(ctx, vacation); err != nil {
		return nil, fmt.Errorf("update vacation: %w", err)
	}

	if s.notifier != nil {
		title := "Vacation request rejected"
		if approve {
			title = "Vacation request approved"
		}
		body := fmt.Sprintf("Your vacation from %s to %s was %s.",
			vacation.StartDate.Format("2006-01-02"),
			vacation.EndDate.Format("2006-01-02"),
			vacation.Status)
		_ = s.notifier.Notify(ctx, vacation.EmployeeID, title, body)
	}
	return vacation, nil
}
