package notifications

import (
	"context"
	"sort"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pontualhq/pontual/internal/domain"
)

// mockRepository implements Repository for testing.
type mockRepository struct {
	byID   map[string]*domain.Notification
	nextID int
}

func newMockRepository() *mockRepository {
	return &mockRepository{byID: make(map[string]*domain.Notification)}
}

func (m *mockRepository) Create(_ context.Context, n *domain.Notification) error {
	m.nextID++
	n.ID = "note-" + strconv.Itoa(m.nextID)
	n.CreatedAt = time.Now().Add(time.Duration(m.nextID) * time.Millisecond)
	copied := *n
	m.byID[n.ID] = &copied
	return nil
}

func (m *mockRepository) Get(_ context.Context, id string) (*domain.Notification, error) {
	if n, ok := m.byID[id]; ok {
		copied := *n
		return &copied, nil
	}
	return nil, ErrNotificationNotFound
}

func (m *mockRepository) ListByEmployee(_ context.Context, employeeID string, unreadOnly bool, limit int) ([]domain.Notification, error) {
	var list []domain.Notification
	for _, n := range m.byID {
		if n.EmployeeID != employeeID {
			continue
		}
		if unreadOnly && n.IsRead {
			continue
		}
		list = append(list, *n)
	}
	sort.Slice(list, func(i, j int) bool { return list[i].CreatedAt.After(list[j].CreatedAt) })
	if len(list) > limit {
		list = list[:limit]
	}
	return list, nil
}

func (m *mockRepository) MarkRead(_ context.Context, id string) error {
	n, ok := m.byID[id]
	if !ok {
		return ErrNotificationNotFound
	}
	n.IsRead = true
	return nil
}

func (m *mockRepository) MarkAllRead(_ context.Context, employeeID string) error {
	for _, n := range m.byID {
		if n.EmployeeID == employeeID {
			n.IsRead = true
		}
	}
	return nil
}

func (m *mockRepository) CountUnread(_ context.Context, employeeID string) (int, error) {
	count := 0
	for _, n := range m.byID {
		if n.EmployeeID == employeeID && !n.IsRead {
			count++
		}
	}
	return count, nil
}

func TestService_NotifyAndList(t *testing.T) {
	service := NewService(newMockRepository())

	require.NoError(t, service.Notify(context.Background(), "emp-1", "first", "body"))
	require.NoError(t, service.Notify(context.Background(), "emp-1", "second", "body"))
	require.NoError(t, service.Notify(context.Background(), "emp-2", "other", "body"))

	list, err := service.List(context.Background(), "emp-1", false, 10)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "second", list[0].Title, "newest first")

	count, err := service.UnreadCount(context.Background(), "emp-1")
	require.NoError(t, err)
	assert.Equal(t, 2, count)
}

func TestService_MarkRead(t *testing.T) {
	repo := newMockRepository()
	service := NewService(repo)

	require.NoError(t, service.Notify(context.Background(), "emp-1", "hello", "body"))
	list, err := service.List(context.Background(), "emp-1", false, 10)
	require.NoError(t, err)
	id := list[0].ID

	require.NoError(t, service.MarkRead(context.Background(), "emp-1", id))

	unread, err := service.List(context.Background(), "emp-1", true, 10)
	require.NoError(t, err)
	assert.Empty(t, unread)
}

func TestService_MarkReadWrongOwner(t *testing.T) {
	service := NewService(newMockRepository())

	require.NoError(t, service.Notify(context.Background(), "emp-1", "hello", "body"))
	list, err := service.List(context.Background(), "emp-1", false, 10)
	require.NoError(t, err)

	err = service.MarkRead(context.Background(), "emp-2", list[0].ID)
	assert.ErrorIs(t, err, ErrNotOwned)
}

func TestService_MarkAllRead(t *testing.T) {
	service := NewService(newMockRepository())

	for range 3 {
		require.NoError(t, service.Notify(context.Background(), "emp-1", "n", "body"))
	}
	require.NoError(t, service.MarkAllRead(context.Background(), "emp-1"))

	count, err := service.UnreadCount(context.Background(), "emp-1")
	require.NoError(t, err)
	assert.Zero(t, count)
}

func TestService_MarkReadUnknown(t *testing.T) {
	service := NewService(newMockRepository())

	err := service.MarkRead(context.Background(), "emp-1", "note-404")
	assert.ErrorIs(t, err, ErrNotificationNotFound)
}
