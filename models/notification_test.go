package models

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/openshelf/library_backend/config"
	"gorm.io/gorm"
)

func TestCreateNotificationTxWritesOutboxEvent(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	user := seedUser(t, db, "reader@example.com")

	notification := Notification{
		UserId:  user.ID,
		Type:    NotificationTypeReturnReminder,
		Title:   "Book Due Today",
		Message: "Your book \"X\" is due today. Please return it.",
	}
	err := db.Transaction(func(tx *gorm.DB) error {
		return CreateNotificationTx(ctx, tx, &notification)
	})
	if err != nil {
		t.Fatalf("create notification failed: %v", err)
	}

	var event NotificationEvent
	if err := db.Where("notification_id = ?", notification.ID).Take(&event).Error; err != nil {
		t.Fatalf("expected outbox event for notification: %v", err)
	}
	if event.PublishStatus != PublishStatusPending {
		t.Fatalf("expected PENDING event, got %q", event.PublishStatus)
	}
	if event.CorrelationId == "" {
		t.Fatalf("expected a correlation id on the event")
	}

	var msg config.NotificationEventMessage
	if err := json.Unmarshal(event.Payload, &msg); err != nil {
		t.Fatalf("payload is not valid JSON: %v", err)
	}
	if msg.NotificationId != notification.ID || msg.Type != NotificationTypeReturnReminder {
		t.Fatalf("payload does not match notification: %+v", msg)
	}
}

func TestCreateNotificationTxRollsBackWithTransaction(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	user := seedUser(t, db, "reader@example.com")

	sentinel := gorm.ErrInvalidData
	err := db.Transaction(func(tx *gorm.DB) error {
		notification := Notification{
			UserId:  user.ID,
			Type:    NotificationTypeOverdue,
			Title:   "Book Overdue",
			Message: "rolled back",
		}
		if err := CreateNotificationTx(ctx, tx, &notification); err != nil {
			return err
		}
		return sentinel
	})
	if err != sentinel {
		t.Fatalf("expected sentinel error, got %v", err)
	}

	var notifications int64
	db.Model(&Notification{}).Count(&notifications)
	var events int64
	db.Model(&NotificationEvent{}).Count(&events)
	if notifications != 0 || events != 0 {
		t.Fatalf("expected rollback to remove notification and event, got %d/%d", notifications, events)
	}
}
