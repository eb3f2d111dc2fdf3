package notify

import (
	"context"
	"errors"
	"io"
	"log"
	"testing"

	"taskhub/api/internal/store"
)

type fakeNotificationStore struct {
	insertFn func(ctx context.Context, notification store.Notification) error
	existsFn func(ctx context.Context, userID, targetType, targetID, title string) (bool, error)
}

func (f *fakeNotificationStore) InsertNotification(ctx context.Context, notification store.Notification) error {
	if f.insertFn != nil {
		return f.insertFn(ctx, notification)
	}
	return nil
}

func (f *fakeNotificationStore) ListNotifications(ctx context.Context, userID string) ([]store.Notification, error) {
	return nil, nil
}

func (f *fakeNotificationStore) MarkNotificationRead(ctx context.Context, userID, notificationID string) (bool, error) {
	return false, nil
}

func (f *fakeNotificationStore) MarkAllNotificationsRead(ctx context.Context, userID string) error {
	return nil
}

func (f *fakeNotificationStore) DeleteNotification(ctx context.Context, userID, notificationID string) (bool, error) {
	return false, nil
}

func (f *fakeNotificationStore) NotificationExists(ctx context.Context, userID, targetType, targetID, title string) (bool, error) {
	if f.existsFn != nil {
		return f.existsFn(ctx, userID, targetType, targetID, title)
	}
	return false, nil
}

type fakePublisher struct {
	published []string
	err       error
}

func (f *fakePublisher) PublishToUser(ctx context.Context, userID string, payload []byte) error {
	if f.err != nil {
		return f.err
	}
	f.published = append(f.published, userID)
	return nil
}

func quietLogger() *log.Logger {
	return log.New(io.Discard, "", 0)
}

func TestSendPersistsAndPublishes(t *testing.T) {
	var saved store.Notification
	st := &fakeNotificationStore{
		insertFn: func(ctx context.Context, notification store.Notification) error {
			saved = notification
			return nil
		},
	}
	pub := &fakePublisher{}
	svc := NewService(st, pub, quietLogger())

	notification, err := svc.Send(context.Background(), Event{
		RecipientID: "user-1",
		Title:       "Task assigned",
		Message:     `You were assigned to task "Ship it"`,
		TargetType:  "task",
		TargetID:    "task-1",
		ProjectID:   "proj-1",
		WorkspaceID: "ws-1",
	})
	if err != nil {
		t.Fatalf("Send failed: %v", err)
	}
	if saved.UserID != "user-1" || saved.Title != "Task assigned" {
		t.Errorf("unexpected persisted notification: %+v", saved)
	}
	if saved.IsRead {
		t.Error("new notification must start unread")
	}
	if notification.ID == "" {
		t.Error("expected generated notification id")
	}
	if len(pub.published) != 1 || pub.published[0] != "user-1" {
		t.Errorf("expected publish to user-1, got %v", pub.published)
	}
}

func TestSendPersistFailureReturnsError(t *testing.T) {
	st := &fakeNotificationStore{
		insertFn: func(ctx context.Context, notification store.Notification) error {
			return errors.New("db down")
		},
	}
	pub := &fakePublisher{}
	svc := NewService(st, pub, quietLogger())

	if _, err := svc.Send(context.Background(), Event{RecipientID: "user-1"}); err == nil {
		t.Fatal("expected error when persistence fails")
	}
	if len(pub.published) != 0 {
		t.Error("must not publish when persistence fails")
	}
}

func TestSendPublishFailureIsSwallowed(t *testing.T) {
	st := &fakeNotificationStore{}
	pub := &fakePublisher{err: errors.New("redis down")}
	svc := NewService(st, pub, quietLogger())

	if _, err := svc.Send(context.Background(), Event{RecipientID: "user-1"}); err != nil {
		t.Fatalf("publish failure must not fail Send: %v", err)
	}
}

func TestSendWithoutPublisher(t *testing.T) {
	svc := NewService(&fakeNotificationStore{}, nil, quietLogger())
	if _, err := svc.Send(context.Background(), Event{RecipientID: "user-1"}); err != nil {
		t.Fatalf("Send without publisher failed: %v", err)
	}
}

func TestFanoutContinuesPastFailures(t *testing.T) {
	var saved []string
	st := &fakeNotificationStore{
		insertFn: func(ctx context.Context, notification store.Notification) error {
			if notification.UserID == "user-2" {
				return errors.New("db hiccup")
			}
			saved = append(saved, notification.UserID)
			return nil
		},
	}
	svc := NewService(st, &fakePublisher{}, quietLogger())

	svc.Fanout(context.Background(), []string{"user-1", "user-2", "user-3"}, Event{
		Title: "Project assigned",
	})

	if len(saved) != 2 || saved[0] != "user-1" || saved[1] != "user-3" {
		t.Errorf("expected delivery to user-1 and user-3, got %v", saved)
	}
}

func TestFanoutSetsRecipientPerEvent(t *testing.T) {
	var recipients []string
	st := &fakeNotificationStore{
		insertFn: func(ctx context.Context, notification store.Notification) error {
			recipients = append(recipients, notification.UserID)
			return nil
		},
	}
	svc := NewService(st, nil, quietLogger())

	svc.Fanout(context.Background(), []string{"a", "b"}, Event{Title: "Task assigned"})

	if len(recipients) != 2 || recipients[0] != "a" || recipients[1] != "b" {
		t.Errorf("unexpected recipients: %v", recipients)
	}
}
