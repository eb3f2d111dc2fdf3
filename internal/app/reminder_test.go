package app

import (
	"context"
	"io"
	"log"
	"testing"
	"time"

	"taskhub/api/internal/store"
)

func quietLogger() *log.Logger {
	return log.New(io.Discard, "", 0)
}

func TestReminderNotifiesAssigneesOnce(t *testing.T) {
	due := time.Now().Add(24 * time.Hour)
	st := &fakeStore{
		dueSoonTasksFn: func(_ context.Context, from, to time.Time) ([]store.Task, error) {
			if window := to.Sub(from); window != 48*time.Hour {
				t.Fatalf("expected a 48h window, got %v", window)
			}
			return []store.Task{
				{ID: "t1", ProjectID: "p1", Title: "Ship it", DueDate: &due, Assignees: []string{"u1", "u2"}},
			}, nil
		},
		getProjectFn: func(context.Context, string) (store.Project, error) {
			return store.Project{ID: "p1", WorkspaceID: "ws1"}, nil
		},
	}
	notifier := &fakeNotifier{
		// u1 was already reminded by a previous sweep.
		existsFn: func(_ context.Context, userID, _, _, _ string) (bool, error) {
			return userID == "u1", nil
		},
	}
	svc := newTestService(st, notifier)
	reminder := NewReminder(svc, 9, quietLogger())

	if err := reminder.RunOnce(context.Background(), time.Now()); err != nil {
		t.Fatalf("sweep failed: %v", err)
	}

	if len(notifier.sends) != 1 {
		t.Fatalf("expected 1 notification, got %d", len(notifier.sends))
	}
	event := notifier.sends[0]
	if event.RecipientID != "u2" {
		t.Fatalf("expected u2 to be notified, got %s", event.RecipientID)
	}
	if event.Title != "Task due soon" {
		t.Fatalf("unexpected title: %q", event.Title)
	}
	if event.Message != `Task "Ship it" is due within 2 days` {
		t.Fatalf("unexpected message: %q", event.Message)
	}
}

func TestReminderSkipsOverlappingSweep(t *testing.T) {
	listed := false
	st := &fakeStore{
		dueSoonTasksFn: func(context.Context, time.Time, time.Time) ([]store.Task, error) {
			listed = true
			return nil, nil
		},
	}
	svc := newTestService(st, &fakeNotifier{})
	reminder := NewReminder(svc, 9, quietLogger())

	reminder.running.Store(true)
	if err := reminder.RunOnce(context.Background(), time.Now()); err != nil {
		t.Fatalf("overlapping sweep returned error: %v", err)
	}
	if listed {
		t.Fatal("overlapping sweep must not query the store")
	}

	reminder.running.Store(false)
	if err := reminder.RunOnce(context.Background(), time.Now()); err != nil {
		t.Fatalf("sweep failed: %v", err)
	}
	if !listed {
		t.Fatal("sweep did not query the store")
	}
}
