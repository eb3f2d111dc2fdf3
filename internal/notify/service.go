// Package notify persists notifications and fans them out to connected
// clients.
package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"taskhub/api/internal/realtime"
	"taskhub/api/internal/store"
	"taskhub/api/internal/util"
)

type notificationStore interface {
	InsertNotification(ctx context.Context, notification store.Notification) error
	ListNotifications(ctx context.Context, userID string) ([]store.Notification, error)
	MarkNotificationRead(ctx context.Context, userID, notificationID string) (bool, error)
	MarkAllNotificationsRead(ctx context.Context, userID string) error
	DeleteNotification(ctx context.Context, userID, notificationID string) (bool, error)
	NotificationExists(ctx context.Context, userID, targetType, targetID, title string) (bool, error)
}

// Service writes notification rows and publishes them to each recipient's
// live channel. The row is the durable record; the publish is best effort
// and a failed publish never fails the calling operation.
type Service struct {
	store     notificationStore
	publisher realtime.Publisher
	logger    *log.Logger
}

func NewService(st notificationStore, publisher realtime.Publisher, logger *log.Logger) *Service {
	if logger == nil {
		logger = log.Default()
	}
	return &Service{store: st, publisher: publisher, logger: logger}
}

// Event is one notification to deliver.
type Event struct {
	RecipientID string
	Title       string
	Message     string
	TargetType  string
	TargetID    string
	ProjectID   string
	WorkspaceID string
}

// Send persists the event for one recipient and publishes it. Persistence
// errors are returned; publish errors are logged and swallowed.
func (s *Service) Send(ctx context.Context, event Event) (store.Notification, error) {
	notification := store.Notification{
		ID:          util.NewID("ntf"),
		UserID:      event.RecipientID,
		Title:       event.Title,
		Message:     event.Message,
		TargetType:  event.TargetType,
		TargetID:    event.TargetID,
		ProjectID:   event.ProjectID,
		WorkspaceID: event.WorkspaceID,
		CreatedAt:   time.Now().UTC(),
	}
	if err := s.store.InsertNotification(ctx, notification); err != nil {
		return store.Notification{}, fmt.Errorf("persist notification: %w", err)
	}
	s.publish(ctx, notification)
	return notification, nil
}

// Fanout sends the event to every recipient independently. A failure for one
// recipient is logged and does not stop delivery to the rest.
func (s *Service) Fanout(ctx context.Context, recipients []string, event Event) {
	for _, recipientID := range recipients {
		event.RecipientID = recipientID
		if _, err := s.Send(ctx, event); err != nil {
			s.logger.Printf("notify: send to %s failed: %v", recipientID, err)
		}
	}
}

func (s *Service) publish(ctx context.Context, notification store.Notification) {
	if s.publisher == nil {
		return
	}
	payload, err := json.Marshal(notification)
	if err != nil {
		s.logger.Printf("notify: marshal notification %s: %v", notification.ID, err)
		return
	}
	if err := s.publisher.PublishToUser(ctx, notification.UserID, payload); err != nil {
		s.logger.Printf("notify: publish to %s failed: %v", notification.UserID, err)
	}
}

// List returns the recipient's notifications, newest first.
func (s *Service) List(ctx context.Context, userID string) ([]store.Notification, error) {
	return s.store.ListNotifications(ctx, userID)
}

// MarkRead marks one of the recipient's notifications read. Returns false
// when the id does not exist or belongs to another user.
func (s *Service) MarkRead(ctx context.Context, userID, notificationID string) (bool, error) {
	return s.store.MarkNotificationRead(ctx, userID, notificationID)
}

func (s *Service) MarkAllRead(ctx context.Context, userID string) error {
	return s.store.MarkAllNotificationsRead(ctx, userID)
}

func (s *Service) Delete(ctx context.Context, userID, notificationID string) (bool, error) {
	return s.store.DeleteNotification(ctx, userID, notificationID)
}

// Exists reports whether the recipient already has a notification with the
// given target and title. The due-date reminder uses this as its dedup key.
func (s *Service) Exists(ctx context.Context, userID, targetType, targetID, title string) (bool, error) {
	return s.store.NotificationExists(ctx, userID, targetType, targetID, title)
}
