package workflow

import (
	"context"
	"fmt"

	"github.com/openshelf/library_backend/models"
	"github.com/openshelf/library_backend/utils"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// ProcessReserves promotes matured reservations into active loans. The copy
// was already held at reservation time, so promotion only transfers the hold
// and never touches available_copies. Each reservation commits in its own
// transaction; a failure skips that reservation and keeps going.
func (d *DailyTasks) ProcessReserves(ctx context.Context) (*ProcessReservesResult, error) {
	now := d.Now()

	var reserves []*models.Reserve
	if err := d.DB.WithContext(ctx).
		Where("status = ? AND reserve_start_date <= ?", models.ReserveStatusActive, now).
		Order("id").
		Find(&reserves).Error; err != nil {
		return nil, err
	}

	processed := 0
	for _, reserve := range reserves {
		err := d.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			borrowDate := reserve.ReserveStartDate
			if borrowDate.After(now) {
				borrowDate = now
			}
			borrow := models.Borrow{
				ResourceId: reserve.ResourceId,
				UserId:     reserve.UserId,
				BorrowDate: borrowDate,
				ReturnDate: reserve.ReturnDate,
				Status:     models.BorrowStatusActive,
			}
			if err := tx.Create(&borrow).Error; err != nil {
				return err
			}

			message := "Your reservation has been converted to a borrow."
			if reserve.ReturnDate != nil {
				message = fmt.Sprintf("Your reservation has been converted to a borrow. Please return by %s.",
					reserve.ReturnDate.Format("2006-01-02"))
			}
			notification := models.Notification{
				UserId:     reserve.UserId,
				BorrowId:   &borrow.ID,
				ReserveId:  &reserve.ID,
				ResourceId: &reserve.ResourceId,
				Type:       models.NotificationTypeReservationToBorrow,
				Title:      "Reservation Ready",
				Message:    message,
			}
			if err := models.CreateNotificationTx(ctx, tx, &notification); err != nil {
				return err
			}

			return tx.Model(&models.Reserve{}).
				Where("id = ? AND status = ?", reserve.ID, models.ReserveStatusActive).
				Update("status", models.ReserveStatusProcessed).Error
		})
		if err != nil {
			if d.Logger != nil {
				d.Logger.WithFields(logrus.Fields{
					"field":      "ProcessReserves",
					"reserve_id": reserve.ID,
				}).Error("failed to process reservation: " + err.Error())
			}
			continue
		}
		processed++
	}

	return &ProcessReservesResult{
		Processed: processed,
		Message:   fmt.Sprintf("Processed %d reservation%s", processed, utils.Plural(processed)),
	}, nil
}
