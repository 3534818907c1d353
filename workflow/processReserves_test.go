package workflow

import (
	"context"
	"testing"
	"time"

	"github.com/openshelf/library_backend/models"
)

func TestProcessReservesPromotesMaturedHold(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	user := seedUser(t, db, "reader@example.com")
	resource := seedResource(t, db, "Reserved Title", 3)

	// Reserving claims the copy up front.
	reserve, err := models.ReserveResource(ctx, user.ID, &models.NewReserve{ResourceId: resource.ID})
	if err != nil {
		t.Fatalf("reserve failed: %v", err)
	}
	// The engine clock must not predate the reservation's start date.
	tasks := newTestTasks(db, time.Now())
	var held models.Resource
	if err := db.First(&held, resource.ID).Error; err != nil {
		t.Fatalf("failed to reload resource: %v", err)
	}
	if held.AvailableCopies != 2 {
		t.Fatalf("expected hold to consume a copy, got %d available", held.AvailableCopies)
	}

	result, err := tasks.ProcessReserves(ctx)
	if err != nil {
		t.Fatalf("process reserves failed: %v", err)
	}
	if result.Processed != 1 {
		t.Fatalf("expected 1 reservation processed, got %d", result.Processed)
	}

	var promoted models.Reserve
	if err := db.First(&promoted, reserve.ID).Error; err != nil {
		t.Fatalf("failed to reload reservation: %v", err)
	}
	if promoted.Status != models.ReserveStatusProcessed {
		t.Fatalf("expected processed reservation, got %q", promoted.Status)
	}

	var borrow models.Borrow
	if err := db.Where("user_id = ? AND resource_id = ? AND status = ?",
		user.ID, resource.ID, models.BorrowStatusActive).Take(&borrow).Error; err != nil {
		t.Fatalf("expected an active loan from the promotion: %v", err)
	}

	// The hold transfers to the loan; promotion must not decrement again.
	if err := db.First(&held, resource.ID).Error; err != nil {
		t.Fatalf("failed to reload resource: %v", err)
	}
	if held.AvailableCopies != 2 {
		t.Fatalf("promotion must not consume a second copy, got %d available", held.AvailableCopies)
	}

	var notices int64
	db.Model(&models.Notification{}).
		Where("reserve_id = ? AND type = ?", reserve.ID, models.NotificationTypeReservationToBorrow).
		Count(&notices)
	if notices != 1 {
		t.Fatalf("expected a promotion notification, got %d", notices)
	}
}

func TestProcessReservesIsIdempotent(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	user := seedUser(t, db, "reader@example.com")
	resource := seedResource(t, db, "Once Only", 2)

	if _, err := models.ReserveResource(ctx, user.ID, &models.NewReserve{ResourceId: resource.ID}); err != nil {
		t.Fatalf("reserve failed: %v", err)
	}
	tasks := newTestTasks(db, time.Now())

	first, err := tasks.ProcessReserves(ctx)
	if err != nil {
		t.Fatalf("first run failed: %v", err)
	}
	second, err := tasks.ProcessReserves(ctx)
	if err != nil {
		t.Fatalf("second run failed: %v", err)
	}
	if first.Processed != 1 || second.Processed != 0 {
		t.Fatalf("expected 1 then 0 processed, got %d then %d", first.Processed, second.Processed)
	}

	var loans int64
	db.Model(&models.Borrow{}).Where("user_id = ?", user.ID).Count(&loans)
	if loans != 1 {
		t.Fatalf("expected a single loan after rerun, got %d", loans)
	}
}

func TestProcessReservesSkipsFutureHolds(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	tasks := newTestTasks(db, time.Now())

	user := seedUser(t, db, "reader@example.com")
	resource := seedResource(t, db, "Future Hold", 2)

	start := time.Now().AddDate(0, 0, 3)
	if _, err := models.ReserveResource(ctx, user.ID, &models.NewReserve{
		ResourceId:       resource.ID,
		ReserveStartDate: &start,
	}); err != nil {
		t.Fatalf("reserve failed: %v", err)
	}

	result, err := tasks.ProcessReserves(ctx)
	if err != nil {
		t.Fatalf("process reserves failed: %v", err)
	}
	if result.Processed != 0 {
		t.Fatalf("future reservation must not be promoted, got %d processed", result.Processed)
	}
}
