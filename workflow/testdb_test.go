package workflow

import (
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/openshelf/library_backend/config"
	"github.com/openshelf/library_backend/models"
	"github.com/openshelf/library_backend/utils"
	"github.com/shopspring/decimal"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("failed to open sqlite: %v", err)
	}
	config.SetDB(db)
	models.MigrateTable()
	return db
}

// newTestTasks pins the engine clock and tunables so the calendar-day logic
// is deterministic.
func newTestTasks(db *gorm.DB, now time.Time) *DailyTasks {
	return &DailyTasks{
		DB: db,
		Config: LifecycleConfig{
			FinePerDay:         decimal.NewFromInt(50),
			GracePeriodDays:    3,
			FinePaymentDueDays: 30,
		},
		Now: func() time.Time { return now },
	}
}

func seedUser(t *testing.T, db *gorm.DB, email string) *models.User {
	t.Helper()
	user := models.User{
		Name:        "Test Reader",
		Email:       email,
		Password:    "not-a-real-hash",
		IsAdmin:     utils.NewFalse(),
		PackageType: models.PackageTypeFree,
	}
	if err := db.Create(&user).Error; err != nil {
		t.Fatalf("failed to seed user: %v", err)
	}
	return &user
}

func seedResource(t *testing.T, db *gorm.DB, title string, copies int) *models.Resource {
	t.Helper()
	resource := models.Resource{
		Title:           title,
		Author:          "Test Author",
		PackageType:     models.PackageTypeFree,
		TotalCopies:     copies,
		AvailableCopies: copies,
	}
	if err := db.Create(&resource).Error; err != nil {
		t.Fatalf("failed to seed resource: %v", err)
	}
	return &resource
}

func seedActiveLoan(t *testing.T, db *gorm.DB, userId, resourceId int, due time.Time) *models.Borrow {
	t.Helper()
	borrow := models.Borrow{
		ResourceId: resourceId,
		UserId:     userId,
		BorrowDate: due.AddDate(0, 0, -14),
		ReturnDate: &due,
		Status:     models.BorrowStatusActive,
	}
	if err := db.Create(&borrow).Error; err != nil {
		t.Fatalf("failed to seed loan: %v", err)
	}
	return &borrow
}

func countNotifications(t *testing.T, db *gorm.DB, borrowId int, kind string) int64 {
	t.Helper()
	var count int64
	if err := db.Model(&models.Notification{}).
		Where("borrow_id = ? AND type = ?", borrowId, kind).
		Count(&count).Error; err != nil {
		t.Fatalf("failed to count notifications: %v", err)
	}
	return count
}
