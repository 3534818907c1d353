package models

import (
	"context"
	"time"

	"github.com/openshelf/library_backend/config"
	"github.com/openshelf/library_backend/utils"
	"github.com/shopspring/decimal"
)

type Fine struct {
	ID          int             `gorm:"primary_key" json:"id"`
	BorrowId    int             `gorm:"not null;index" json:"borrow_id"`
	ResourceId  int             `gorm:"not null;index" json:"resource_id"`
	UserId      int             `gorm:"not null;index" json:"user_id"`
	OverdueDays int             `gorm:"not null" json:"overdue_days"`
	FineAmount  decimal.Decimal `gorm:"type:decimal(12,2);not null" json:"fine_amount"`
	Status      string          `gorm:"size:20;not null;default:unpaid;index" json:"status"`
	PaidAt      *time.Time      `json:"paid_at"`
	DueDate     time.Time       `gorm:"not null" json:"due_date"`
	CreatedAt   time.Time       `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt   time.Time       `gorm:"autoUpdateTime" json:"updated_at"`
}

// FineView joins fines with user and resource fields for the admin ledger.
type FineView struct {
	Fine
	Title     string `json:"title"`
	Author    string `json:"author"`
	UserName  string `json:"user_name"`
	UserEmail string `json:"user_email"`
}

// MarkFinePaid settles an unpaid fine.
func MarkFinePaid(ctx context.Context, fineId int) (*Fine, error) {

	db := config.GetDB()
	var fine Fine

	if err := db.WithContext(ctx).Where("id = ? AND status = ?", fineId, FineStatusUnpaid).
		Take(&fine).Error; err != nil {
		return nil, utils.NewValidationError("Unpaid fine not found")
	}

	now := time.Now()
	if err := db.WithContext(ctx).Model(&fine).Updates(map[string]interface{}{
		"status":  FineStatusPaid,
		"paid_at": now,
	}).Error; err != nil {
		return nil, err
	}
	fine.Status = FineStatusPaid
	fine.PaidAt = &now
	return &fine, nil
}

// GetAllFines lists the fine ledger with joined user and resource fields.
func GetAllFines(ctx context.Context, status string, page int, pageSize int) ([]*FineView, error) {

	db := config.GetDB()
	var results []*FineView

	dbCtx := db.WithContext(ctx).Model(&Fine{}).
		Select("fines.*, resources.title, resources.author, users.name AS user_name, users.email AS user_email").
		Joins("LEFT JOIN resources ON resources.id = fines.resource_id").
		Joins("LEFT JOIN users ON users.id = fines.user_id")
	if status != "" {
		dbCtx = dbCtx.Where("fines.status = ?", status)
	}
	if err := dbCtx.Scopes(Paginate(page, pageSize)).
		Order("fines.created_at DESC").
		Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}

// GetFineLedger returns the full joined ledger, unpaginated, for exports.
func GetFineLedger(ctx context.Context, status string) ([]*FineView, error) {

	db := config.GetDB()
	var results []*FineView

	dbCtx := db.WithContext(ctx).Model(&Fine{}).
		Select("fines.*, resources.title, resources.author, users.name AS user_name, users.email AS user_email").
		Joins("LEFT JOIN resources ON resources.id = fines.resource_id").
		Joins("LEFT JOIN users ON users.id = fines.user_id")
	if status != "" {
		dbCtx = dbCtx.Where("fines.status = ?", status)
	}
	if err := dbCtx.Order("fines.created_at DESC").Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}

// GetUserFines lists the caller's own fines newest first.
func GetUserFines(ctx context.Context, userId int) ([]*FineView, error) {

	db := config.GetDB()
	var results []*FineView

	if err := db.WithContext(ctx).Model(&Fine{}).
		Select("fines.*, resources.title, resources.author").
		Joins("LEFT JOIN resources ON resources.id = fines.resource_id").
		Where("fines.user_id = ?", userId).
		Order("fines.created_at DESC").
		Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}
