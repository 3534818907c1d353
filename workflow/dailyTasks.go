package workflow

import (
	"context"
	"time"

	"github.com/openshelf/library_backend/config"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// LifecycleConfig holds the tunables of the daily lifecycle run.
type LifecycleConfig struct {
	FinePerDay         decimal.Decimal
	GracePeriodDays    int
	FinePaymentDueDays int
}

func LifecycleConfigFromEnv() LifecycleConfig {
	return LifecycleConfig{
		FinePerDay:         config.FinePerDay(),
		GracePeriodDays:    config.GracePeriodDays(),
		FinePaymentDueDays: config.FinePaymentDueDays(),
	}
}

// DailyTasks is the canonical lifecycle engine. The cron endpoint, the
// background scheduler and the run-daily-tasks CLI all invoke the same
// instance methods, so behavior cannot drift between entry points.
type DailyTasks struct {
	DB     *gorm.DB
	Logger *logrus.Logger
	Config LifecycleConfig

	// Now is the clock; tests override it to pin the calendar day.
	Now func() time.Time
}

func NewDailyTasks(db *gorm.DB, logger *logrus.Logger) *DailyTasks {
	return &DailyTasks{
		DB:     db,
		Logger: logger,
		Config: LifecycleConfigFromEnv(),
		Now:    time.Now,
	}
}

type ProcessReservesResult struct {
	Processed int    `json:"processed"`
	Message   string `json:"message"`
}

type CheckOverdueResult struct {
	TotalLoans     int    `json:"total_loans"`
	Reminders      int    `json:"reminders"`
	OverdueNotices int    `json:"overdue_notices"`
	FineNotices    int    `json:"fine_notices"`
	Message        string `json:"message"`
}

type DailyTasksSummary struct {
	ReservationsProcessed int `json:"reservations_processed"`
	LoansCheckedForFines  int `json:"loans_checked_for_fines"`
	TotalTasksCompleted   int `json:"total_tasks_completed"`
}

type DailyTasksResult struct {
	Success   bool      `json:"success"`
	Timestamp time.Time `json:"timestamp"`
	Tasks     struct {
		ProcessReserves ProcessReservesResult `json:"process_reserves"`
		CheckOverdue    CheckOverdueResult    `json:"check_overdue"`
	} `json:"tasks"`
	Summary DailyTasksSummary `json:"summary"`
}

// Run executes both lifecycle tasks. A failing iteration inside either task
// never rolls back the iterations that already committed.
func (d *DailyTasks) Run(ctx context.Context) (*DailyTasksResult, error) {
	reserves, err := d.ProcessReserves(ctx)
	if err != nil {
		return nil, err
	}
	overdue, err := d.CheckOverdue(ctx)
	if err != nil {
		return nil, err
	}

	result := DailyTasksResult{
		Success:   true,
		Timestamp: d.Now(),
	}
	result.Tasks.ProcessReserves = *reserves
	result.Tasks.CheckOverdue = *overdue
	result.Summary = DailyTasksSummary{
		ReservationsProcessed: reserves.Processed,
		LoansCheckedForFines:  overdue.TotalLoans,
		TotalTasksCompleted:   2,
	}

	if d.Logger != nil {
		d.Logger.WithFields(logrus.Fields{
			"field":                  "DailyTasks",
			"reservations_processed": reserves.Processed,
			"loans_checked":          overdue.TotalLoans,
			"reminders":              overdue.Reminders,
			"overdue_notices":        overdue.OverdueNotices,
			"fine_notices":           overdue.FineNotices,
		}).Info("daily tasks completed")
	}
	return &result, nil
}
