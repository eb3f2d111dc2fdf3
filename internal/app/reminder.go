package app

import (
	"context"
	"fmt"
	"log"
	"sync/atomic"
	"time"

	"taskhub/api/internal/notify"
)

// Reminder sends a daily due-date notification sweep. One run per wall-clock
// day at the configured hour; an overlapping trigger is skipped, not queued.
type Reminder struct {
	svc     *Service
	hour    int
	logger  *log.Logger
	running atomic.Bool
}

func NewReminder(svc *Service, hour int, logger *log.Logger) *Reminder {
	if hour < 0 || hour > 23 {
		hour = 9
	}
	if logger == nil {
		logger = log.Default()
	}
	return &Reminder{svc: svc, hour: hour, logger: logger}
}

// Run blocks until ctx is cancelled, firing RunOnce at the configured hour.
func (r *Reminder) Run(ctx context.Context) {
	for {
		wait := time.Until(r.nextRun(time.Now()))
		select {
		case <-ctx.Done():
			return
		case <-time.After(wait):
		}
		if err := r.RunOnce(ctx, time.Now()); err != nil {
			r.logger.Printf("reminder: sweep failed: %v", err)
		}
	}
}

func (r *Reminder) nextRun(now time.Time) time.Time {
	next := time.Date(now.Year(), now.Month(), now.Day(), r.hour, 0, 0, 0, now.Location())
	if !next.After(now) {
		next = next.Add(24 * time.Hour)
	}
	return next
}

// RunOnce performs a single sweep: every task due within the next 48 hours
// that is not Done and not archived produces one notification per assignee.
// The dedup check keeps a task/assignee pair from being notified twice across
// consecutive daily runs.
func (r *Reminder) RunOnce(ctx context.Context, now time.Time) error {
	if !r.running.CompareAndSwap(false, true) {
		r.logger.Printf("reminder: previous sweep still running, skipping")
		return nil
	}
	defer r.running.Store(false)

	tasks, err := r.svc.store.DueSoonTasks(ctx, now, now.Add(48*time.Hour))
	if err != nil {
		return fmt.Errorf("list due tasks: %w", err)
	}

	sent := 0
	for _, task := range tasks {
		project, err := r.svc.store.GetProject(ctx, task.ProjectID)
		if err != nil {
			r.logger.Printf("reminder: load project %s: %v", task.ProjectID, err)
			continue
		}
		title := "Task due soon"
		message := fmt.Sprintf("Task %q is due within 2 days", task.Title)
		for _, userID := range task.Assignees {
			exists, err := r.svc.notifier.Exists(ctx, userID, "task", task.ID, title)
			if err != nil {
				r.logger.Printf("reminder: dedup check %s/%s: %v", task.ID, userID, err)
				continue
			}
			if exists {
				continue
			}
			if _, err := r.svc.notifier.Send(ctx, notify.Event{
				RecipientID: userID,
				Title:       title,
				Message:     message,
				TargetType:  "task",
				TargetID:    task.ID,
				ProjectID:   task.ProjectID,
				WorkspaceID: project.WorkspaceID,
			}); err != nil {
				r.logger.Printf("reminder: notify %s/%s: %v", task.ID, userID, err)
				continue
			}
			sent++
		}
	}
	r.logger.Printf("reminder: sweep done, %d tasks due, %d notifications sent", len(tasks), sent)
	return nil
}
