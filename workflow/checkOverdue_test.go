package workflow

import (
	"context"
	"testing"
	"time"

	"github.com/openshelf/library_backend/models"
	"github.com/openshelf/library_backend/utils"
	"github.com/shopspring/decimal"
)

func TestDaysUntil(t *testing.T) {
	startOfToday := time.Date(2026, time.March, 10, 0, 0, 0, 0, time.UTC)

	cases := []struct {
		name       string
		returnDate time.Time
		want       int
	}{
		{"due at midnight today", startOfToday, 0},
		{"due this evening rounds up", startOfToday.Add(18 * time.Hour), 1},
		{"due tomorrow midnight", startOfToday.AddDate(0, 0, 1), 1},
		{"due in five days", startOfToday.AddDate(0, 0, 5), 5},
		{"one day overdue", startOfToday.AddDate(0, 0, -1), -1},
		{"five days overdue", startOfToday.AddDate(0, 0, -5), -5},
		{"overdue by half a day rounds to today", startOfToday.Add(-12 * time.Hour), 0},
	}
	for _, tc := range cases {
		if got := daysUntil(tc.returnDate, startOfToday); got != tc.want {
			t.Fatalf("%s: expected %d, got %d", tc.name, tc.want, got)
		}
	}
}

func TestCheckOverdueGraceBoundaryAndFineMath(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	now := time.Now()
	today := utils.StartOfDay(now)
	tasks := newTestTasks(db, now)

	user := seedUser(t, db, "reader@example.com")
	resource := seedResource(t, db, "Overdue Title", 10)

	withinGrace := seedActiveLoan(t, db, user.ID, resource.ID, today.AddDate(0, 0, -1))
	atBoundary := seedActiveLoan(t, db, user.ID, resource.ID, today.AddDate(0, 0, -3))
	justPast := seedActiveLoan(t, db, user.ID, resource.ID, today.AddDate(0, 0, -4))
	farPast := seedActiveLoan(t, db, user.ID, resource.ID, today.AddDate(0, 0, -5))

	result, err := tasks.CheckOverdue(ctx)
	if err != nil {
		t.Fatalf("check overdue failed: %v", err)
	}
	if result.TotalLoans != 4 {
		t.Fatalf("expected 4 loans scanned, got %d", result.TotalLoans)
	}
	if result.OverdueNotices != 2 {
		t.Fatalf("expected 2 overdue notices (1 and 3 days), got %d", result.OverdueNotices)
	}
	if result.FineNotices != 2 {
		t.Fatalf("expected 2 fine notices (4 and 5 days), got %d", result.FineNotices)
	}

	// Within the grace period there must be no fine at all.
	var graceFines int64
	db.Model(&models.Fine{}).Where("borrow_id IN ?", []int{withinGrace.ID, atBoundary.ID}).Count(&graceFines)
	if graceFines != 0 {
		t.Fatalf("expected no fines within grace, got %d", graceFines)
	}

	var fine models.Fine
	if err := db.Where("borrow_id = ?", justPast.ID).Take(&fine).Error; err != nil {
		t.Fatalf("expected fine for loan one day past grace: %v", err)
	}
	if !fine.FineAmount.Equal(decimal.NewFromInt(50)) {
		t.Fatalf("expected fine 50 for 4 days overdue, got %s", fine.FineAmount)
	}
	if fine.OverdueDays != 4 || fine.Status != models.FineStatusUnpaid {
		t.Fatalf("unexpected fine row: %+v", fine)
	}
	wantDue := today.AddDate(0, 0, 30)
	if !fine.DueDate.Equal(wantDue) {
		t.Fatalf("expected fine due date %v, got %v", wantDue, fine.DueDate)
	}

	// Fresh struct; reusing fine would pin its primary key in the WHERE.
	var farFine models.Fine
	if err := db.Where("borrow_id = ?", farPast.ID).Take(&farFine).Error; err != nil {
		t.Fatalf("expected fine for loan two days past grace: %v", err)
	}
	if !farFine.FineAmount.Equal(decimal.NewFromInt(100)) {
		t.Fatalf("expected fine 100 for 5 days overdue, got %s", farFine.FineAmount)
	}
}

func TestCheckOverdueSameDayIdempotence(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	now := time.Now()
	today := utils.StartOfDay(now)
	tasks := newTestTasks(db, now)

	user := seedUser(t, db, "reader@example.com")
	resource := seedResource(t, db, "Rerun Title", 10)

	overdueLoan := seedActiveLoan(t, db, user.ID, resource.ID, today.AddDate(0, 0, -2))
	finedLoan := seedActiveLoan(t, db, user.ID, resource.ID, today.AddDate(0, 0, -6))
	dueSoon := seedActiveLoan(t, db, user.ID, resource.ID, today.AddDate(0, 0, 1))

	for i := 0; i < 2; i++ {
		if _, err := tasks.CheckOverdue(ctx); err != nil {
			t.Fatalf("run %d failed: %v", i+1, err)
		}
	}

	if got := countNotifications(t, db, overdueLoan.ID, models.NotificationTypeOverdue); got != 1 {
		t.Fatalf("expected 1 overdue notice after rerun, got %d", got)
	}
	if got := countNotifications(t, db, finedLoan.ID, models.NotificationTypeOverdueFine); got != 1 {
		t.Fatalf("expected 1 fine notice after rerun, got %d", got)
	}
	var fines int64
	db.Model(&models.Fine{}).Where("borrow_id = ?", finedLoan.ID).Count(&fines)
	if fines != 1 {
		t.Fatalf("expected 1 fine after rerun, got %d", fines)
	}

	// Reminders carry no guard; a rerun duplicates them.
	if got := countNotifications(t, db, dueSoon.ID, models.NotificationTypeReturnReminder); got != 2 {
		t.Fatalf("expected 2 reminders after rerun, got %d", got)
	}
}

func TestCheckOverdueNextDayEmitsAgain(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	now := time.Now()
	today := utils.StartOfDay(now)

	user := seedUser(t, db, "reader@example.com")
	resource := seedResource(t, db, "Daily Title", 10)
	loan := seedActiveLoan(t, db, user.ID, resource.ID, today.AddDate(0, 0, -6))

	if _, err := newTestTasks(db, now).CheckOverdue(ctx); err != nil {
		t.Fatalf("first day failed: %v", err)
	}
	if _, err := newTestTasks(db, now.AddDate(0, 0, 1)).CheckOverdue(ctx); err != nil {
		t.Fatalf("second day failed: %v", err)
	}

	if got := countNotifications(t, db, loan.ID, models.NotificationTypeOverdueFine); got != 2 {
		t.Fatalf("expected a fine notice per day, got %d", got)
	}
	var fines int64
	db.Model(&models.Fine{}).Where("borrow_id = ?", loan.ID).Count(&fines)
	if fines != 1 {
		t.Fatalf("the unpaid fine must not be duplicated across days, got %d", fines)
	}
}

func TestExtendBorrowSuppressesFine(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	now := time.Now()
	today := utils.StartOfDay(now)
	tasks := newTestTasks(db, now)

	user := seedUser(t, db, "reader@example.com")
	resource := seedResource(t, db, "Rescued Title", 10)
	loan := seedActiveLoan(t, db, user.ID, resource.ID, today.AddDate(0, 0, -5))

	// Five days overdue would earn a fine; extending by six lands the due
	// date on tomorrow, which is reminder territory.
	if _, err := models.ExtendBorrow(ctx, loan.ID, 6); err != nil {
		t.Fatalf("extend failed: %v", err)
	}

	result, err := tasks.CheckOverdue(ctx)
	if err != nil {
		t.Fatalf("check overdue failed: %v", err)
	}
	if result.FineNotices != 0 || result.OverdueNotices != 0 {
		t.Fatalf("expected no overdue output after extension, got %+v", result)
	}
	if result.Reminders != 1 {
		t.Fatalf("expected a due-tomorrow reminder, got %d", result.Reminders)
	}
	var fines int64
	db.Model(&models.Fine{}).Where("borrow_id = ?", loan.ID).Count(&fines)
	if fines != 0 {
		t.Fatalf("expected no fine after extension, got %d", fines)
	}
}

func TestCheckOverdueSkipsLoansWithoutDueDate(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	tasks := newTestTasks(db, time.Now())

	user := seedUser(t, db, "reader@example.com")
	resource := seedResource(t, db, "Open Ended", 10)
	borrow := models.Borrow{
		ResourceId: resource.ID,
		UserId:     user.ID,
		BorrowDate: time.Now().AddDate(0, 0, -30),
		Status:     models.BorrowStatusActive,
	}
	if err := db.Create(&borrow).Error; err != nil {
		t.Fatalf("failed to seed loan: %v", err)
	}

	result, err := tasks.CheckOverdue(ctx)
	if err != nil {
		t.Fatalf("check overdue failed: %v", err)
	}
	if result.TotalLoans != 1 {
		t.Fatalf("expected the loan to be scanned, got %d", result.TotalLoans)
	}
	if result.Reminders != 0 || result.OverdueNotices != 0 || result.FineNotices != 0 {
		t.Fatalf("loan without due date must not produce output, got %+v", result)
	}
}
