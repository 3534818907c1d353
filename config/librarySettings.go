package config

import (
	"os"
	"strings"

	"github.com/shopspring/decimal"
)

// Lifecycle constants for the borrow/reserve engine. Fixed per deployment;
// env overrides exist so staging can run with a short grace period.
//
// - FINE_PER_DAY (default 50, currency units per overdue day past grace)
// - GRACE_PERIOD_DAYS (default 3)
// - BORROW_WINDOW_DAYS (default 14, max days ahead a user may pick a due date)
// - FINE_PAYMENT_DUE_DAYS (default 30, days a fine stays payable before escalation)

func FinePerDay() decimal.Decimal {
	v := strings.TrimSpace(os.Getenv("FINE_PER_DAY"))
	if v != "" {
		if d, err := decimal.NewFromString(v); err == nil && d.Sign() > 0 {
			return d
		}
	}
	return decimal.NewFromInt(50)
}

func GracePeriodDays() int {
	return intFromEnv("GRACE_PERIOD_DAYS", 3)
}

func BorrowWindowDays() int {
	return intFromEnv("BORROW_WINDOW_DAYS", 14)
}

func FinePaymentDueDays() int {
	return intFromEnv("FINE_PAYMENT_DUE_DAYS", 30)
}

// CronSecret guards the /api/cron/daily-tasks endpoint. When unset, only an
// admin session may trigger the batch.
func CronSecret() string {
	return strings.TrimSpace(os.Getenv("CRON_SECRET"))
}
