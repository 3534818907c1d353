package models

// Borrow lifecycle.
const (
	BorrowStatusActive   = "active"
	BorrowStatusReturned = "returned"
)

// Reservation lifecycle.
const (
	ReserveStatusActive    = "active"
	ReserveStatusCancelled = "cancelled"
	ReserveStatusProcessed = "processed"
)

// Fine lifecycle.
const (
	FineStatusUnpaid = "unpaid"
	FineStatusPaid   = "paid"
)

// Notification kinds emitted by the daily lifecycle run.
const (
	NotificationTypeReturnReminder      = "return_reminder"
	NotificationTypeOverdue             = "overdue"
	NotificationTypeOverdueFine         = "overdue_fine"
	NotificationTypeReservationToBorrow = "reservation_to_borrow"
)

// Membership tiers. Premium-only resources are hidden from free members.
const (
	PackageTypeFree    = "free"
	PackageTypePremium = "premium"
)

// Outbox publish states for notification events.
const (
	PublishStatusPending    = "PENDING"
	PublishStatusProcessing = "PROCESSING"
	PublishStatusSent       = "SENT"
	PublishStatusFailed     = "FAILED"
	PublishStatusDead       = "DEAD"
)
