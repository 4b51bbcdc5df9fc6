package service

import (
	"context"
	"database/sql"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/edumart/edumart-api/internal/dto"
	"github.com/edumart/edumart-api/internal/models"
	appErrors "github.com/edumart/edumart-api/pkg/errors"
	"github.com/edumart/edumart-api/pkg/jobs"
)

type notificationStoreStub struct {
	mu      sync.Mutex
	rows    map[string]*models.Notification
	allRead []string
}

func newNotificationStoreStub() *notificationStoreStub {
	return &notificationStoreStub{rows: map[string]*models.Notification{}}
}

func (s *notificationStoreStub) Create(ctx context.Context, n *models.Notification) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	clone := *n
	s.rows[n.ID] = &clone
	return nil
}

func (s *notificationStoreStub) List(ctx context.Context, filter models.NotificationFilter) ([]models.Notification, int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.Notification
	for _, n := range s.rows {
		if n.UserID != filter.UserID {
			continue
		}
		if filter.UnreadOnly && n.Read {
			continue
		}
		out = append(out, *n)
	}
	return out, len(out), nil
}

func (s *notificationStoreStub) CountUnread(ctx context.Context, userID string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	count := 0
	for _, n := range s.rows {
		if n.UserID == userID && !n.Read {
			count++
		}
	}
	return count, nil
}

func (s *notificationStoreStub) MarkRead(ctx context.Context, id, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	n, ok := s.rows[id]
	if !ok || n.UserID != userID {
		return sql.ErrNoRows
	}
	n.Read = true
	return nil
}

func (s *notificationStoreStub) MarkAllRead(ctx context.Context, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.allRead = append(s.allRead, userID)
	for _, n := range s.rows {
		if n.UserID == userID {
			n.Read = true
		}
	}
	return nil
}

func (s *notificationStoreStub) stored(id string) *models.Notification {
	s.mu.Lock()
	defer s.mu.Unlock()
	if n, ok := s.rows[id]; ok {
		clone := *n
		return &clone
	}
	return nil
}

func TestNotificationDispatchPersists(t *testing.T) {
	store := newNotificationStoreStub()
	svc := NewNotificationService(store, nil, jobs.QueueConfig{Workers: 1, BufferSize: 4})
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	svc.Start(ctx)
	defer svc.Stop()

	svc.Dispatch(models.Notification{
		ID:       "note-1",
		UserID:   "stud-1",
		Category: models.NotificationCourseApproved,
		Title:    "Course published",
	})

	require.Eventually(t, func() bool {
		return store.stored("note-1") != nil
	}, 2*time.Second, 10*time.Millisecond)
	require.Equal(t, models.NotificationCourseApproved, store.stored("note-1").Category)
}

func TestNotificationDispatchBeforeStartIsDropped(t *testing.T) {
	store := newNotificationStoreStub()
	svc := NewNotificationService(store, nil, jobs.QueueConfig{Workers: 1})

	svc.Dispatch(models.Notification{ID: "note-1", UserID: "stud-1"})
	require.Nil(t, store.stored("note-1"))
}

func TestNotificationListWithUnreadCount(t *testing.T) {
	store := newNotificationStoreStub()
	store.rows["note-1"] = &models.Notification{ID: "note-1", UserID: "stud-1"}
	store.rows["note-2"] = &models.Notification{ID: "note-2", UserID: "stud-1", Read: true}
	store.rows["note-3"] = &models.Notification{ID: "note-3", UserID: "stud-2"}
	svc := NewNotificationService(store, nil, jobs.QueueConfig{})

	notifications, pagination, unread, err := svc.List(context.Background(), "stud-1", dto.NotificationQuery{})
	require.NoError(t, err)
	require.Len(t, notifications, 2)
	require.Equal(t, 2, pagination.TotalCount)
	require.Equal(t, 1, unread)

	notifications, _, _, err = svc.List(context.Background(), "stud-1", dto.NotificationQuery{UnreadOnly: true})
	require.NoError(t, err)
	require.Len(t, notifications, 1)
	require.Equal(t, "note-1", notifications[0].ID)
}

func TestNotificationMarkReadScopedToOwner(t *testing.T) {
	store := newNotificationStoreStub()
	store.rows["note-1"] = &models.Notification{ID: "note-1", UserID: "stud-1"}
	svc := NewNotificationService(store, nil, jobs.QueueConfig{})

	err := svc.MarkRead(context.Background(), "note-1", "stud-2")
	require.Error(t, err)
	require.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)

	require.NoError(t, svc.MarkRead(context.Background(), "note-1", "stud-1"))
	require.True(t, store.stored("note-1").Read)
}

func TestNotificationMarkAllRead(t *testing.T) {
	store := newNotificationStoreStub()
	store.rows["note-1"] = &models.Notification{ID: "note-1", UserID: "stud-1"}
	store.rows["note-2"] = &models.Notification{ID: "note-2", UserID: "stud-1"}
	svc := NewNotificationService(store, nil, jobs.QueueConfig{})

	require.NoError(t, svc.MarkAllRead(context.Background(), "stud-1"))
	require.Equal(t, []string{"stud-1"}, store.allRead)
	require.True(t, store.stored("note-1").Read)
	require.True(t, store.stored("note-2").Read)
}
