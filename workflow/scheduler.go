package workflow

import (
	"context"
	"time"

	"github.com/bsm/redislock"
	"github.com/openshelf/library_backend/config"
	"github.com/sirupsen/logrus"
)

// DailyTaskScheduler triggers the lifecycle engine once per calendar day.
// The last-run marker lives in redis so restarts and replicas agree on
// whether today already ran; when redis is down the in-process marker keeps
// a single instance from re-running.
type DailyTaskScheduler struct {
	Tasks        *DailyTasks
	Logger       *logrus.Logger
	PollInterval time.Duration

	lastRunDay string
}

func NewDailyTaskScheduler(tasks *DailyTasks, logger *logrus.Logger) *DailyTaskScheduler {
	return &DailyTaskScheduler{
		Tasks:        tasks,
		Logger:       logger,
		PollInterval: time.Minute,
	}
}

func (s *DailyTaskScheduler) Run(ctx context.Context) {
	if ctx == nil {
		ctx = context.Background()
	}
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}
		s.tick(ctx)
		select {
		case <-ctx.Done():
			return
		case <-time.After(s.PollInterval):
		}
	}
}

func (s *DailyTaskScheduler) tick(ctx context.Context) {
	today := s.Tasks.Now().Format("2006-01-02")

	if s.lastRunDay == today {
		return
	}
	lastRun, exists, err := config.GetRedisValue("DailyTasks:LastRun")
	if err == nil && exists && lastRun == today {
		s.lastRunDay = today
		return
	}

	// Single concurrent run across replicas; skipped silently when another
	// replica holds the lock. Without redis the scheduler proceeds alone.
	var lock *redislock.Lock
	if locker := config.GetRedisLock(); locker != nil {
		lock, err = locker.Obtain(ctx, "lock:daily-tasks", 10*time.Minute, nil)
		if err == redislock.ErrNotObtained {
			return
		}
		if err != nil {
			lock = nil
		}
	}
	if lock != nil {
		defer lock.Release(ctx)
	}

	result, err := s.Tasks.Run(ctx)
	if err != nil {
		if s.Logger != nil {
			s.Logger.WithFields(logrus.Fields{
				"field": "DailyTaskScheduler",
				"day":   today,
			}).Error("daily tasks failed: " + err.Error())
		}
		return
	}

	s.lastRunDay = today
	_ = config.SetRedisValue("DailyTasks:LastRun", today, 48*time.Hour)

	if s.Logger != nil {
		s.Logger.WithFields(logrus.Fields{
			"field":                  "DailyTaskScheduler",
			"day":                    today,
			"reservations_processed": result.Summary.ReservationsProcessed,
			"loans_checked":          result.Summary.LoansCheckedForFines,
		}).Info("scheduled daily tasks completed")
	}
}
