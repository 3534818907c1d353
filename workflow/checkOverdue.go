package workflow

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/openshelf/library_backend/models"
	"github.com/openshelf/library_backend/utils"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

type loanRow struct {
	models.Borrow
	Title string
}

// CheckOverdue scans every active loan once and emits the due-soon reminders,
// overdue notices and fines for the current calendar day.
//
// Day arithmetic is anchored on the start of today:
// daysUntilDue = ceil((returnDate - startOfToday) / 24h). A loan due later
// today yields 0, due tomorrow yields 1, one day overdue yields -1.
func (d *DailyTasks) CheckOverdue(ctx context.Context) (*CheckOverdueResult, error) {
	now := d.Now()
	today := utils.StartOfDay(now)

	var loans []*loanRow
	if err := d.DB.WithContext(ctx).Model(&models.Borrow{}).
		Select("borrows.*, resources.title").
		Joins("LEFT JOIN resources ON resources.id = borrows.resource_id").
		Where("borrows.status = ?", models.BorrowStatusActive).
		Order("borrows.id").
		Find(&loans).Error; err != nil {
		return nil, err
	}

	result := CheckOverdueResult{TotalLoans: len(loans)}

	for _, loan := range loans {
		// Loans without a due date never become due or overdue.
		if loan.ReturnDate == nil {
			continue
		}

		daysUntilDue := daysUntil(*loan.ReturnDate, today)

		switch {
		case daysUntilDue == 0 || daysUntilDue == 1:
			// Reminders carry no same-day guard; a rerun duplicates them.
			if err := d.sendReminder(ctx, loan, daysUntilDue); err != nil {
				d.logLoanError(loan.ID, "reminder", err)
				continue
			}
			result.Reminders++

		case daysUntilDue < 0:
			overdueDays := -daysUntilDue
			if overdueDays <= d.Config.GracePeriodDays {
				sent, err := d.sendOverdueNotice(ctx, loan, overdueDays, today)
				if err != nil {
					d.logLoanError(loan.ID, "overdue notice", err)
					continue
				}
				if sent {
					result.OverdueNotices++
				}
			} else {
				sent, err := d.applyFine(ctx, loan, overdueDays, today)
				if err != nil {
					d.logLoanError(loan.ID, "fine", err)
					continue
				}
				if sent {
					result.FineNotices++
				}
			}
		}
	}

	result.Message = fmt.Sprintf("Checked %d loan%s: %d reminder%s, %d overdue notice%s, %d fine notice%s",
		result.TotalLoans, utils.Plural(result.TotalLoans),
		result.Reminders, utils.Plural(result.Reminders),
		result.OverdueNotices, utils.Plural(result.OverdueNotices),
		result.FineNotices, utils.Plural(result.FineNotices))
	return &result, nil
}

func daysUntil(returnDate, startOfToday time.Time) int {
	diff := returnDate.Sub(startOfToday)
	return int(math.Ceil(diff.Hours() / 24))
}

func (d *DailyTasks) sendReminder(ctx context.Context, loan *loanRow, daysUntilDue int) error {
	title := "Book Due Today"
	message := fmt.Sprintf("Your book %q is due today. Please return it.", loan.Title)
	if daysUntilDue == 1 {
		title = "Book Due Tomorrow"
		message = fmt.Sprintf("Your book %q is due tomorrow. Don't forget to return it.", loan.Title)
	}

	return d.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		notification := models.Notification{
			UserId:     loan.UserId,
			BorrowId:   &loan.ID,
			ResourceId: &loan.ResourceId,
			Type:       models.NotificationTypeReturnReminder,
			Title:      title,
			Message:    message,
		}
		return models.CreateNotificationTx(ctx, tx, &notification)
	})
}

// notifiedToday reports whether a notification of the given kind was already
// written for this loan during the current calendar day.
func notifiedToday(tx *gorm.DB, borrowId int, kind string, startOfToday time.Time) (bool, error) {
	var count int64
	err := tx.Model(&models.Notification{}).
		Where("borrow_id = ? AND type = ? AND created_at >= ?", borrowId, kind, startOfToday).
		Count(&count).Error
	return count > 0, err
}

func (d *DailyTasks) sendOverdueNotice(ctx context.Context, loan *loanRow, overdueDays int, today time.Time) (bool, error) {
	sent := false
	err := d.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		already, err := notifiedToday(tx, loan.ID, models.NotificationTypeOverdue, today)
		if err != nil || already {
			return err
		}

		graceLeft := d.Config.GracePeriodDays - overdueDays
		message := fmt.Sprintf("Your book %q is %d day%s overdue. You have %d day%s grace period left.",
			loan.Title, overdueDays, utils.Plural(overdueDays), graceLeft, utils.Plural(graceLeft))
		notification := models.Notification{
			UserId:      loan.UserId,
			BorrowId:    &loan.ID,
			ResourceId:  &loan.ResourceId,
			Type:        models.NotificationTypeOverdue,
			Title:       "Book Overdue",
			Message:     message,
			OverdueDays: overdueDays,
		}
		if err := models.CreateNotificationTx(ctx, tx, &notification); err != nil {
			return err
		}
		sent = true
		return nil
	})
	return sent, err
}

func (d *DailyTasks) applyFine(ctx context.Context, loan *loanRow, overdueDays int, today time.Time) (bool, error) {
	sent := false
	err := d.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		already, err := notifiedToday(tx, loan.ID, models.NotificationTypeOverdueFine, today)
		if err != nil || already {
			return err
		}

		fineAmount := d.Config.FinePerDay.Mul(decimal.NewFromInt(int64(overdueDays - d.Config.GracePeriodDays)))

		// One unpaid fine per loan; reruns and later days update nothing.
		var unpaid int64
		if err := tx.Model(&models.Fine{}).
			Where("borrow_id = ? AND status = ?", loan.ID, models.FineStatusUnpaid).
			Count(&unpaid).Error; err != nil {
			return err
		}
		if unpaid == 0 {
			fine := models.Fine{
				BorrowId:    loan.ID,
				ResourceId:  loan.ResourceId,
				UserId:      loan.UserId,
				OverdueDays: overdueDays,
				FineAmount:  fineAmount,
				Status:      models.FineStatusUnpaid,
				DueDate:     today.AddDate(0, 0, d.Config.FinePaymentDueDays),
			}
			if err := tx.Create(&fine).Error; err != nil {
				return err
			}
		}

		message := fmt.Sprintf("Your book %q is overdue by %d days. Fine: ₦%s.",
			loan.Title, overdueDays, fineAmount.StringFixed(2))
		notification := models.Notification{
			UserId:      loan.UserId,
			BorrowId:    &loan.ID,
			ResourceId:  &loan.ResourceId,
			Type:        models.NotificationTypeOverdueFine,
			Title:       "Overdue Book Fine",
			Message:     message,
			OverdueDays: overdueDays,
			FineAmount:  &fineAmount,
		}
		if err := models.CreateNotificationTx(ctx, tx, &notification); err != nil {
			return err
		}
		sent = true
		return nil
	})
	return sent, err
}

func (d *DailyTasks) logLoanError(loanId int, step string, err error) {
	if d.Logger == nil {
		return
	}
	d.Logger.WithFields(logrus.Fields{
		"field":     "CheckOverdue",
		"borrow_id": loanId,
		"step":      step,
	}).Error(err.Error())
}
