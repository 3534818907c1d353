package models

import (
	"context"
	"time"

	"github.com/openshelf/library_backend/config"
	"github.com/openshelf/library_backend/utils"
	"gorm.io/gorm"
)

type Borrow struct {
	ID               int        `gorm:"primary_key" json:"id"`
	ResourceId       int        `gorm:"not null;index" json:"resource_id" binding:"required"`
	UserId           int        `gorm:"not null;index" json:"user_id"`
	BorrowDate       time.Time  `gorm:"not null" json:"borrow_date"`
	ReturnDate       *time.Time `json:"return_date"`
	ActualReturnDate *time.Time `json:"actual_return_date"`
	Status           string     `gorm:"size:20;not null;default:active;index" json:"status"`
	CreatedAt        time.Time  `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt        time.Time  `gorm:"autoUpdateTime" json:"updated_at"`
}

type NewBorrow struct {
	ResourceId int        `json:"resource_id" binding:"required"`
	ReturnDate *time.Time `json:"return_date"`
}

// BorrowView joins loan rows with resource and user fields for listings.
type BorrowView struct {
	Borrow
	Title        string `json:"title"`
	Author       string `json:"author"`
	ThumbnailUrl string `json:"thumbnail_url"`
	UserName     string `json:"user_name"`
	UserEmail    string `json:"user_email"`
}

// BorrowResource checks out one copy. The availability pre-check gives a
// friendly error early; the conditional decrement inside the transaction is
// what actually guards against oversubscription.
func BorrowResource(ctx context.Context, userId int, input *NewBorrow) (*Borrow, error) {

	now := time.Now()
	if input.ReturnDate != nil {
		if input.ReturnDate.Before(utils.StartOfDay(now)) {
			return nil, utils.NewValidationError("Return date cannot be in the past")
		}
		if input.ReturnDate.After(now.AddDate(0, 0, config.BorrowWindowDays())) {
			return nil, utils.NewValidationError("Return date cannot be more than 14 days from now")
		}
	}

	db := config.GetDB()
	var borrow Borrow

	err := db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var resource Resource
		if err := tx.First(&resource, input.ResourceId).Error; err != nil {
			return utils.ErrorRecordNotFound
		}
		if resource.AvailableCopies <= 0 {
			return utils.NewValidationError("No available copies to borrow")
		}

		var count int64
		if err := tx.Model(&Borrow{}).
			Where("resource_id = ? AND user_id = ? AND status = ?", input.ResourceId, userId, BorrowStatusActive).
			Count(&count).Error; err != nil {
			return err
		}
		if count > 0 {
			return utils.NewValidationError("You have already borrowed this book")
		}

		held, err := holdCopy(tx, input.ResourceId)
		if err != nil {
			return err
		}
		if !held {
			return utils.NewValidationError("No available copies to borrow")
		}

		// No requested date leaves the loan open ended; loans without a due
		// date never become overdue.
		borrow = Borrow{
			ResourceId: input.ResourceId,
			UserId:     userId,
			BorrowDate: now,
			ReturnDate: input.ReturnDate,
			Status:     BorrowStatusActive,
		}
		return tx.Create(&borrow).Error
	})
	if err != nil {
		return nil, err
	}

	bustResourceCaches()
	return &borrow, nil
}

// ReturnBorrow closes the caller's active loan and releases the copy.
func ReturnBorrow(ctx context.Context, userId int, loanId int) (*Borrow, error) {

	db := config.GetDB()
	var borrow Borrow

	err := db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("id = ? AND user_id = ? AND status = ?", loanId, userId, BorrowStatusActive).
			Take(&borrow).Error; err != nil {
			return utils.NewValidationError("Loan not found or already returned")
		}
		now := time.Now()
		if err := tx.Model(&borrow).Updates(map[string]interface{}{
			"status":             BorrowStatusReturned,
			"actual_return_date": now,
		}).Error; err != nil {
			return err
		}
		borrow.Status = BorrowStatusReturned
		borrow.ActualReturnDate = &now
		return releaseCopy(tx, borrow.ResourceId)
	})
	if err != nil {
		return nil, err
	}

	bustResourceCaches()
	return &borrow, nil
}

// ForceReturnBorrow closes an active loan by id regardless of owner.
func ForceReturnBorrow(ctx context.Context, loanId int) (*Borrow, error) {

	db := config.GetDB()
	var borrow Borrow

	err := db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("id = ? AND status = ?", loanId, BorrowStatusActive).
			Take(&borrow).Error; err != nil {
			return utils.NewValidationError("Loan not found or already returned")
		}
		now := time.Now()
		if err := tx.Model(&borrow).Updates(map[string]interface{}{
			"status":             BorrowStatusReturned,
			"actual_return_date": now,
		}).Error; err != nil {
			return err
		}
		borrow.Status = BorrowStatusReturned
		borrow.ActualReturnDate = &now
		return releaseCopy(tx, borrow.ResourceId)
	})
	if err != nil {
		return nil, err
	}

	bustResourceCaches()
	return &borrow, nil
}

// ExtendBorrow pushes an active loan's due date forward. There is no upper
// bound; extensions are an admin action.
func ExtendBorrow(ctx context.Context, loanId int, daysToAdd int) (*Borrow, error) {

	if daysToAdd <= 0 {
		return nil, utils.NewValidationError("days to add must be positive")
	}

	db := config.GetDB()
	var borrow Borrow

	if err := db.WithContext(ctx).Where("id = ? AND status = ?", loanId, BorrowStatusActive).
		Take(&borrow).Error; err != nil {
		return nil, utils.NewValidationError("Active loan not found")
	}
	if borrow.ReturnDate == nil {
		return nil, utils.NewValidationError("Loan has no due date")
	}

	newDate := borrow.ReturnDate.AddDate(0, 0, daysToAdd)
	if err := db.WithContext(ctx).Model(&borrow).Update("return_date", newDate).Error; err != nil {
		return nil, err
	}
	borrow.ReturnDate = &newDate
	return &borrow, nil
}

// GetActiveLoans lists the caller's open loans newest first.
func GetActiveLoans(ctx context.Context, userId int) ([]*BorrowView, error) {

	db := config.GetDB()
	var results []*BorrowView

	if err := db.WithContext(ctx).Model(&Borrow{}).
		Select("borrows.*, resources.title, resources.author, resources.thumbnail_url").
		Joins("LEFT JOIN resources ON resources.id = borrows.resource_id").
		Where("borrows.user_id = ? AND borrows.status = ?", userId, BorrowStatusActive).
		Order("borrows.borrow_date DESC").
		Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}

// GetAllBorrows lists loans for the admin console with user and resource
// fields joined in.
func GetAllBorrows(ctx context.Context, status string, page int, pageSize int) ([]*BorrowView, error) {

	db := config.GetDB()
	var results []*BorrowView

	dbCtx := db.WithContext(ctx).Model(&Borrow{}).
		Select("borrows.*, resources.title, resources.author, resources.thumbnail_url, users.name AS user_name, users.email AS user_email").
		Joins("LEFT JOIN resources ON resources.id = borrows.resource_id").
		Joins("LEFT JOIN users ON users.id = borrows.user_id")
	if status != "" {
		dbCtx = dbCtx.Where("borrows.status = ?", status)
	}
	if err := dbCtx.Scopes(Paginate(page, pageSize)).
		Order("borrows.borrow_date DESC").
		Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}
