// Package attendance records and reports employee punches. Punch creation
// is the endpoint that queued offline punches replay against, so the
// duplicate check doubles as the replay idempotency guard.
package attendance

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/pontualhq/pontual/internal/domain"
)

// The replay guard window. A second punch of the same kind inside this
// window is treated as a duplicate delivery, not a new punch.
const duplicateWindow = time.Minute

// Service errors.
var (
	ErrDuplicatePunch   = errors.New("duplicate punch of same kind within a minute")
	ErrPunchInFuture    = errors.New("punch timestamp is in the future")
	ErrInvalidPunchKind = errors.New("invalid punch kind")
	ErrEmployeeNotFound = errors.New("employee not found")
)

// Repository defines the interface for attendance data operations.
type Repository interface {
	Create(ctx context.Context, punch *domain.Punch) error
	LastOfKind(ctx context.Context, employeeID string, kind domain.PunchKind) (*domain.Punch, error)
	ListByEmployee(ctx context.Context, employeeID string, from, to time.Time) ([]domain.Punch, error)
	EmployeeExists(ctx context.Context, employeeID string) (bool, error)
}

// Notifier receives a notification when an offline batch lands. The
// notifications module satisfies this.
type Notifier interface {
	Notify(ctx context.Context, employeeID, title, body string) error
}

// Service implements attendance logic.
type Service struct {
	repo     Repository
	notifier Notifier
	now      func() time.Time
}

// NewService creates an attendance service. notifier may be nil.
func NewService(repo Repository, notifier Notifier) *Service {
	return &Service{repo: repo, notifier: notifier, now: time.Now}
}

// CreateInput carries the fields of an incoming punch.
type CreateInput struct {
	EmployeeID string
	Kind       domain.PunchKind
	At         time.Time
	Source     domain.PunchSource
}

// Create records a punch. A punch of the same kind within a minute of an
// existing one is rejected with ErrDuplicatePunch so that a replayed
// offline queue item cannot double-register.
func (s *Service) Create(ctx context.Context, input CreateInput) (*domain.Punch, error) {
	switch input.Kind {
	case domain.PunchEntry, domain.PunchBreakStart, domain.PunchBreakEnd, domain.PunchExit:
	default:
		return nil, ErrInvalidPunchKind
	}

	at := input.At
	if at.IsZero() {
		at = s.now()
	}
	// Offline punches arrive late by definition, but never from the future.
	if at.After(s.now().Add(time.Minute)) {
		return nil, ErrPunchInFuture
	}

	exists, err := s.repo.EmployeeExists(ctx, input.EmployeeID)
	if err != nil {
		return nil, fmt.Errorf("check employee: %w", err)
	}
	if !exists {
		return nil, ErrEmployeeNotFound
	}

	last, err := s.repo.LastOfKind(ctx, input.EmployeeID, input.Kind)
	if err != nil {
		return nil, fmt.Errorf("check last punch: %w", err)
	}
	if last != nil {
		delta := at.Sub(last.At)
		if delta < 0 {
			delta = -delta
		}
		if delta < duplicateWindow {
			return nil, ErrDuplicatePunch
		}
	}

	source := input.Source
	if source == "" {
		source = domain.PunchSourceOnline
	}

	punch := &domain.Punch{
		EmployeeID: input.EmployeeID,
		Kind:       input.Kind,
		At:         at,
		Source:     source,
	}
	if err := s.repo.Create(ctx, punch); err != nil {
		return nil, fmt.Errorf("create punch: %w", err)
	}

	if source == domain.PunchSourceOfflineSync && s.notifier != nil {
		body := fmt.Sprintf("Punch %q from %s was synced from the offline queue.",
			punch.Kind, punch.At.Format("2006-01-02 15:04"))
		if err := s.notifier.Notify(ctx, punch.EmployeeID, "Offline punches synced", body); err != nil {
			// The punch is recorded; a missing banner is not worth failing over.
			return punch, nil
		}
	}
	return punch, nil
}

// List returns an employee's punches in [from, to).
func (s *Service) List(ctx context.Context, employeeID string, from, to time.Time) ([]domain.Punch, error) {
	return s.repo.ListByEmployee(ctx, employeeID, from, to)
}

// DaySummary aggregates one calendar day of punches in the given location.
func (s *Service) DaySummary(ctx context.Context, employeeID string, day time.Time, loc *time.Location) (*domain.DaySummary, error) {
	if loc == nil {
		loc = time.Local
	}
	start := time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, loc)
	end := start.AddDate(0, 0, 1)

	punches, err := s.repo.ListByEmployee(ctx, employeeID, start, end)
	if err != nil {
		return nil, fmt.Errorf("list punches: %w", err)
	}

	summary := &domain.DaySummary{
		Date:    start.Format("2006-01-02"),
		Punches: punches,
	}
	summary.WorkedMinutes, summary.Complete = tally(punches)
	return summary, nil
}

// tally pairs clock-in kinds (entry, break_end) with clock-out kinds
// (break_start, exit) in timestamp order. The day is complete when it
// opens with an entry, closes with an exit, and every interval is paired.
func tally(punches []domain.Punch) (minutes int64, complete bool) {
	var clockIn *time.Time
	balanced := true

	for i := range punches {
		p := &punches[i]
		switch p.Kind {
		case domain.PunchEntry, domain.PunchBreakEnd:
			if clockIn != nil {
				balanced = false
			}
			at := p.At
			clockIn = &at
		case domain.PunchBreakStart, domain.PunchExit:
			if clockIn == nil {
				balanced = false
				continue
			}
			minutes += int64(p.At.Sub(*clockIn) / time.Minute)
			clockIn = nil
		}
	}

	if len(punches) == 0 {
		return 0, false
	}
	complete = balanced &&
		clockIn == nil &&
		punches[0].Kind == domain.PunchEntry &&
		punches[len(punches)-1].Kind == domain.PunchExit
	return minutes, complete
}
