package models

import (
	"context"
	"time"

	"github.com/openshelf/library_backend/config"
	"github.com/openshelf/library_backend/utils"
	"gorm.io/gorm"
)

type Reserve struct {
	ID               int        `gorm:"primary_key" json:"id"`
	ResourceId       int        `gorm:"not null;index" json:"resource_id" binding:"required"`
	UserId           int        `gorm:"not null;index" json:"user_id"`
	ReserveStartDate time.Time  `gorm:"not null" json:"reserve_start_date"`
	ReturnDate       *time.Time `json:"return_date"`
	Status           string     `gorm:"size:20;not null;default:active;index" json:"status"`
	CancelledAt      *time.Time `json:"cancelled_at"`
	CreatedAt        time.Time  `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt        time.Time  `gorm:"autoUpdateTime" json:"updated_at"`
}

type NewReserve struct {
	ResourceId       int        `json:"resource_id" binding:"required"`
	ReserveStartDate *time.Time `json:"reserve_start_date"`
	ReturnDate       *time.Time `json:"return_date"`
}

// ReserveView joins reservations with resource and user fields for listings.
type ReserveView struct {
	Reserve
	Title        string `json:"title"`
	Author       string `json:"author"`
	ThumbnailUrl string `json:"thumbnail_url"`
	UserName     string `json:"user_name"`
	UserEmail    string `json:"user_email"`
}

// ReserveResource places a hold. The copy is claimed at reservation time so
// promotion to a borrow later never has to race for availability.
func ReserveResource(ctx context.Context, userId int, input *NewReserve) (*Reserve, error) {

	now := time.Now()
	startDate := now
	if input.ReserveStartDate != nil {
		if input.ReserveStartDate.Before(utils.StartOfDay(now)) {
			return nil, utils.NewValidationError("Reserve start date cannot be in the past")
		}
		startDate = *input.ReserveStartDate
	}
	if input.ReturnDate != nil {
		if input.ReturnDate.Before(startDate) {
			return nil, utils.NewValidationError("Return date cannot be before the reserve start date")
		}
		if input.ReturnDate.After(startDate.AddDate(0, 0, config.BorrowWindowDays())) {
			return nil, utils.NewValidationError("Return date cannot be more than 14 days from now")
		}
	}

	db := config.GetDB()
	var reserve Reserve

	err := db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var resource Resource
		if err := tx.First(&resource, input.ResourceId).Error; err != nil {
			return utils.ErrorRecordNotFound
		}
		if resource.AvailableCopies <= 0 {
			return utils.NewValidationError("No available copies to reserve")
		}

		var count int64
		if err := tx.Model(&Reserve{}).
			Where("resource_id = ? AND user_id = ? AND status = ?", input.ResourceId, userId, ReserveStatusActive).
			Count(&count).Error; err != nil {
			return err
		}
		if count > 0 {
			return utils.NewValidationError("You already have an active reserve for this book")
		}

		held, err := holdCopy(tx, input.ResourceId)
		if err != nil {
			return err
		}
		if !held {
			return utils.NewValidationError("No available copies to reserve")
		}

		reserve = Reserve{
			ResourceId:       input.ResourceId,
			UserId:           userId,
			ReserveStartDate: startDate,
			ReturnDate:       input.ReturnDate,
			Status:           ReserveStatusActive,
		}
		return tx.Create(&reserve).Error
	})
	if err != nil {
		return nil, err
	}

	bustResourceCaches()
	return &reserve, nil
}

// CancelReservation cancels the caller's active hold and releases the copy.
func CancelReservation(ctx context.Context, userId int, reserveId int) (*Reserve, error) {
	return cancelReservation(ctx, reserveId, &userId)
}

// AdminCancelReservation cancels any active hold by id.
func AdminCancelReservation(ctx context.Context, reserveId int) (*Reserve, error) {
	return cancelReservation(ctx, reserveId, nil)
}

func cancelReservation(ctx context.Context, reserveId int, userId *int) (*Reserve, error) {

	db := config.GetDB()
	var reserve Reserve

	err := db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		dbCtx := tx.Where("id = ? AND status = ?", reserveId, ReserveStatusActive)
		if userId != nil {
			dbCtx = dbCtx.Where("user_id = ?", *userId)
		}
		if err := dbCtx.Take(&reserve).Error; err != nil {
			return utils.NewValidationError("Reservation not found or already cancelled")
		}
		now := time.Now()
		if err := tx.Model(&reserve).Updates(map[string]interface{}{
			"status":       ReserveStatusCancelled,
			"cancelled_at": now,
		}).Error; err != nil {
			return err
		}
		reserve.Status = ReserveStatusCancelled
		reserve.CancelledAt = &now
		return releaseCopy(tx, reserve.ResourceId)
	})
	if err != nil {
		return nil, err
	}

	bustResourceCaches()
	return &reserve, nil
}

// ExtendReservation pushes an active reservation's start date forward.
func ExtendReservation(ctx context.Context, reserveId int, daysToAdd int) (*Reserve, error) {

	if daysToAdd <= 0 {
		return nil, utils.NewValidationError("days to add must be positive")
	}

	db := config.GetDB()
	var reserve Reserve

	if err := db.WithContext(ctx).Where("id = ? AND status = ?", reserveId, ReserveStatusActive).
		Take(&reserve).Error; err != nil {
		return nil, utils.NewValidationError("Active reservation not found")
	}

	newDate := reserve.ReserveStartDate.AddDate(0, 0, daysToAdd)
	if err := db.WithContext(ctx).Model(&reserve).Update("reserve_start_date", newDate).Error; err != nil {
		return nil, err
	}
	reserve.ReserveStartDate = newDate
	return &reserve, nil
}

// GetActiveReserves lists the caller's active holds newest first.
func GetActiveReserves(ctx context.Context, userId int) ([]*ReserveView, error) {

	db := config.GetDB()
	var results []*ReserveView

	if err := db.WithContext(ctx).Model(&Reserve{}).
		Select("reserves.*, resources.title, resources.author, resources.thumbnail_url").
		Joins("LEFT JOIN resources ON resources.id = reserves.resource_id").
		Where("reserves.user_id = ? AND reserves.status = ?", userId, ReserveStatusActive).
		Order("reserves.reserve_start_date DESC").
		Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}

// GetAllReserves lists reservations for the admin console.
func GetAllReserves(ctx context.Context, status string, page int, pageSize int) ([]*ReserveView, error) {

	db := config.GetDB()
	var results []*ReserveView

	dbCtx := db.WithContext(ctx).Model(&Reserve{}).
		Select("reserves.*, resources.title, resources.author, resources.thumbnail_url, users.name AS user_name, users.email AS user_email").
		Joins("LEFT JOIN resources ON resources.id = reserves.resource_id").
		Joins("LEFT JOIN users ON users.id = reserves.user_id")
	if status != "" {
		dbCtx = dbCtx.Where("reserves.status = ?", status)
	}
	if err := dbCtx.Scopes(Paginate(page, pageSize)).
		Order("reserves.reserve_start_date DESC").
		Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}
