package workflow

import (
	"context"
	"testing"
	"time"

	"github.com/openshelf/library_backend/models"
)

func TestMarkPublishFailedSchedulesRetry(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	d := NewOutboxDispatcher(db, nil)

	event := models.NotificationEvent{
		NotificationId:  1,
		UserId:          1,
		Payload:         []byte(`{"type":"return_reminder"}`),
		PublishStatus:   models.PublishStatusProcessing,
		PublishAttempts: 2,
	}
	if err := db.Create(&event).Error; err != nil {
		t.Fatalf("failed to seed outbox event: %v", err)
	}

	d.markPublishFailed(ctx, event.ID, publishError{"pubsub unavailable"}, event.PublishAttempts)

	var got models.NotificationEvent
	if err := db.First(&got, event.ID).Error; err != nil {
		t.Fatalf("failed to reload event: %v", err)
	}
	if got.PublishStatus != models.PublishStatusFailed {
		t.Fatalf("expected FAILED, got %q", got.PublishStatus)
	}
	if got.NextAttemptAt == nil || !got.NextAttemptAt.After(time.Now().UTC().Add(-time.Second)) {
		t.Fatalf("expected a future retry time, got %v", got.NextAttemptAt)
	}
	if got.LastPublishError != "pubsub unavailable" {
		t.Fatalf("expected error recorded, got %q", got.LastPublishError)
	}
}

func TestMarkPublishFailedGoesDeadAfterMaxAttempts(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	d := NewOutboxDispatcher(db, nil)
	d.MaxAttempts = 3

	event := models.NotificationEvent{
		NotificationId:  2,
		UserId:          1,
		Payload:         []byte(`{"type":"overdue"}`),
		PublishStatus:   models.PublishStatusProcessing,
		PublishAttempts: 3,
	}
	if err := db.Create(&event).Error; err != nil {
		t.Fatalf("failed to seed outbox event: %v", err)
	}

	d.markPublishFailed(ctx, event.ID, publishError{"still down"}, event.PublishAttempts)

	var got models.NotificationEvent
	if err := db.First(&got, event.ID).Error; err != nil {
		t.Fatalf("failed to reload event: %v", err)
	}
	if got.PublishStatus != models.PublishStatusDead {
		t.Fatalf("expected DEAD after max attempts, got %q", got.PublishStatus)
	}
	if got.NextAttemptAt != nil {
		t.Fatalf("terminal events must not be rescheduled, got %v", got.NextAttemptAt)
	}
}

type publishError struct{ msg string }

func (e publishError) Error() string { return e.msg }
