// Package notifications keeps a per-employee feed of short messages. Other
// modules push into it (synced offline punches, vacation decisions) and the
// portal's banner reads from it.
package notifications

import (
	"context"
	"errors"
	"fmt"

	"github.com/pontualhq/pontual/internal/domain"
)

// Service errors.
var (
	ErrNotificationNotFound = errors.New("notification not found")
	ErrNotOwned             = errors.New("notification does not belong to employee")
)

// Repository defines the interface for notification data operations.
type Repository interface {
	Create(ctx context.Context, notification *domain.Notification) error
	Get(ctx context.Context, id string) (*domain.Notification, error)
	ListByEmployee(ctx context.Context, employeeID string, unreadOnly bool, limit int) ([]domain.Notification, error)
	MarkRead(ctx context.Context, id string) error
	MarkAllRead(ctx context.Context, employeeID string) error
	CountUnread(ctx context.Context, employeeID string) (int, error)
}

// Service provides notification feed logic.
type Service struct {
	repo Repository
}

// NewService creates a notifications service.
func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

// Notify appends a message to an employee's feed. It satisfies the hook
// interfaces of the attendance and timeoff modules.
func (s *Service) Notify(ctx context.Context, employeeID, title, body string) error {
	notification := &domain.Notification{
		EmployeeID: employeeID,
		Title:      title,
		Body:       body,
	}
	if err := s.repo.Create(ctx, notification); err != nil {
		return fmt.Errorf("create notification: %w", err)
	}
	notificationsCreated.Inc()
	return nil
}

// List returns an employee's notifications, newest first.
func (s *Service) List(ctx context.Context, employeeID string, unreadOnly bool, limit int) ([]domain.Notification, error) {
	return s.repo.ListByEmployee(ctx, employeeID, unreadOnly, limit)
}

// MarkRead marks one notification read. Only the owner may do so.
func (s *Service) MarkRead(ctx context.Context, employeeID, id string) error {
	notification, err := s.repo.Get(ctx, id)
	if err != nil {
		return err
	}
	if notification.EmployeeID != employeeID {
		return ErrNotOwned
	}
	return s.repo.MarkRead(ctx, id)
}

// MarkAllRead marks every notification of the employee read.
func (s *Service) MarkAllRead(ctx context.Context, employeeID string) error {
	return s.repo.MarkAllRead(ctx, employeeID)
}

// UnreadCount returns the number of unread notifications.
func (s *Service) UnreadCount(ctx context.Context, employeeID string) (int, error) {
	return s.repo.CountUnread(ctx, employeeID)
}
