package models

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/openshelf/library_backend/config"
	"github.com/openshelf/library_backend/utils"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type Notification struct {
	ID          int              `gorm:"primary_key" json:"id"`
	UserId      int              `gorm:"not null;index" json:"user_id"`
	BorrowId    *int             `gorm:"index" json:"borrow_id"`
	ReserveId   *int             `gorm:"index" json:"reserve_id"`
	ResourceId  *int             `gorm:"index" json:"resource_id"`
	Type        string           `gorm:"size:30;not null;index" json:"type"`
	Title       string           `gorm:"size:255;not null" json:"title"`
	Message     string           `gorm:"type:text;not null" json:"message"`
	Read        *bool            `gorm:"not null;default:false" json:"read"`
	OverdueDays int              `gorm:"not null;default:0" json:"overdue_days"`
	FineAmount  *decimal.Decimal `gorm:"type:decimal(12,2)" json:"fine_amount"`
	CreatedAt   time.Time        `gorm:"autoCreateTime" json:"created_at"`
}

// CreateNotificationTx writes the notification and its outbox event inside
// the caller's transaction, so the event is published only if the business
// write commits. Publishing itself happens asynchronously in the dispatcher.
func CreateNotificationTx(ctx context.Context, tx *gorm.DB, notification *Notification) error {

	if notification.Read == nil {
		notification.Read = utils.NewFalse()
	}
	if err := tx.Create(notification).Error; err != nil {
		return err
	}

	msg := config.NotificationEventMessage{
		NotificationId: notification.ID,
		UserId:         notification.UserId,
		Type:           notification.Type,
		Title:          notification.Title,
		Message:        notification.Message,
		CreatedAt:      notification.CreatedAt,
		CorrelationId:  correlationIdFromContextOrNew(ctx),
	}
	payload, err := json.Marshal(&msg)
	if err != nil {
		return err
	}

	event := NotificationEvent{
		NotificationId: notification.ID,
		UserId:         notification.UserId,
		Payload:        payload,
		PublishStatus:  PublishStatusPending,
		CorrelationId:  msg.CorrelationId,
	}
	return tx.Create(&event).Error
}

func correlationIdFromContextOrNew(ctx context.Context) string {
	if ctx != nil {
		if v, ok := utils.GetCorrelationIdFromContext(ctx); ok && v != "" {
			return v
		}
	}
	return uuid.NewString()
}

// GetNotifications lists the caller's notifications newest first.
func GetNotifications(ctx context.Context, userId int, page int, pageSize int) ([]*Notification, error) {

	db := config.GetDB()
	var results []*Notification

	if err := db.WithContext(ctx).
		Where("user_id = ?", userId).
		Scopes(Paginate(page, pageSize)).
		Order("created_at DESC").
		Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}

// MarkNotificationRead flags one of the caller's notifications as read.
func MarkNotificationRead(ctx context.Context, userId int, notificationId int) (*Notification, error) {

	db := config.GetDB()
	var notification Notification

	if err := db.WithContext(ctx).
		Where("id = ? AND user_id = ?", notificationId, userId).
		Take(&notification).Error; err != nil {
		return nil, utils.NewValidationError("Notification not found")
	}
	if err := db.WithContext(ctx).Model(&notification).Update("read", true).Error; err != nil {
		return nil, err
	}
	notification.Read = utils.NewTrue()
	return &notification, nil
}

// MarkAllNotificationsRead flags every unread notification of the caller.
func MarkAllNotificationsRead(ctx context.Context, userId int) (int64, error) {

	db := config.GetDB()
	result := db.WithContext(ctx).Model(&Notification{}).
		Where("user_id = ? AND `read` = ?", userId, false).
		Update("read", true)
	return result.RowsAffected, result.Error
}
