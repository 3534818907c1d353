package models

import "time"

// NotificationEvent is the transactional outbox row behind every
// Notification. It is written in the same transaction as the notification
// and published to Pub/Sub afterwards by the outbox dispatcher.
type NotificationEvent struct {
	ID               int        `gorm:"primary_key" json:"id"`
	NotificationId   int        `gorm:"not null;index" json:"notification_id"`
	UserId           int        `gorm:"not null;index" json:"user_id"`
	Payload          []byte     `gorm:"type:json" json:"payload"`
	PublishStatus    string     `gorm:"size:20;not null;default:PENDING;index" json:"publish_status"`
	PublishAttempts  int        `gorm:"not null;default:0" json:"publish_attempts"`
	NextAttemptAt    *time.Time `gorm:"index" json:"next_attempt_at"`
	LockedAt         *time.Time `json:"locked_at"`
	LockedBy         string     `gorm:"size:100" json:"locked_by"`
	LastPublishError string     `gorm:"size:1000" json:"last_publish_error"`
	CorrelationId    string     `gorm:"size:64" json:"correlation_id"`
	CreatedAt        time.Time  `gorm:"autoCreateTime" json:"created_at"`
	PublishedAt      *time.Time `json:"published_at"`
}
