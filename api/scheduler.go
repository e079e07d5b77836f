/*
scheduler.go - Automated daily schedule regeneration

PURPOSE:
  Periodically regenerates the current business day's office assignments
  so that webhook-driven changes, manual edits, and imported bookings all
  converge back onto a conflict-free schedule.

DESIGN:
  - Runs a background goroutine with configurable check interval
  - Takes the cross-instance lease before each run, so two server
    instances never regenerate the same day concurrently
  - Skips the run (without error) when another instance holds the lease
  - Lease TTL outlives a normal run; a crashed holder expires naturally

CONFIGURATION:
  - CheckInterval: How often to regenerate (default: 1 hour)
  - LeaseTTL:      How long one run may hold the lease (default: 10 min)
  - Enabled:       Whether the scheduler is active (default: true)

USAGE:
  scheduler := NewDailyScheduler(engine, lease, logger)
  scheduler.Start()
  // ... later
  scheduler.Stop()

SEE ALSO:
  - handlers.go: GenerateSchedule endpoint (manual regeneration)
  - lock/lease.go: the lease primitive
*/
package api

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/catalyst-eval/catalyst-scheduler/scheduling"
)

// maintenanceLease names the cross-instance lease for daily regeneration.
const maintenanceLease = "daily-schedule"

// Locker is the lease surface the scheduler needs. lock.Lease satisfies it.
type Locker interface {
	Acquire(ctx context.Context, name string, ttl time.Duration) (bool, error)
	Release(ctx context.Context, name string) error
}

// DailyScheduler regenerates the business day's schedule on a timer.
type DailyScheduler struct {
	Engine        *scheduling.Engine
	Locker        Locker // nil means single-instance, no lease
	CheckInterval time.Duration
	LeaseTTL      time.Duration
	Enabled       bool

	logger *zap.Logger
	ticker *time.Ticker
	stop   chan struct{}
	wg     sync.WaitGroup
	mu     sync.Mutex
}

// NewDailyScheduler creates a scheduler with the default cadence.
func NewDailyScheduler(engine *scheduling.Engine, locker Locker, logger *zap.Logger) *DailyScheduler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &DailyScheduler{
		Engine:        engine,
		Locker:        locker,
		CheckInterval: 1 * time.Hour,
		LeaseTTL:      10 * time.Minute,
		Enabled:       true,
		logger:        logger,
		stop:          make(chan struct{}),
	}
}

// Start begins the scheduler.
func (ds *DailyScheduler) Start() {
	ds.mu.Lock()
	defer ds.mu.Unlock()

	if !ds.Enabled {
		ds.logger.Info("daily scheduler disabled, not starting")
		return
	}

	ds.ticker = time.NewTicker(ds.CheckInterval)
	ds.wg.Add(1)
	go ds.run()

	ds.logger.Info("daily scheduler started",
		zap.Duration("check_interval", ds.CheckInterval))
}

// Stop stops the scheduler and waits for an in-flight run.
func (ds *DailyScheduler) Stop() {
	ds.mu.Lock()
	defer ds.mu.Unlock()

	if ds.ticker != nil {
		ds.ticker.Stop()
		close(ds.stop)
		ds.wg.Wait()
		ds.logger.Info("daily scheduler stopped")
	}
}

func (ds *DailyScheduler) run() {
	defer ds.wg.Done()

	// Run immediately on start
	ds.RunOnce()

	for {
		select {
		case <-ds.ticker.C:
			ds.RunOnce()
		case <-ds.stop:
			return
		}
	}
}

// RunOnce regenerates today's schedule under the lease. Exposed so tests
// and one-shot tooling can trigger a run directly.
func (ds *DailyScheduler) RunOnce() {
	ctx := context.Background()

	if ds.Locker != nil {
		acquired, err := ds.Locker.Acquire(ctx, maintenanceLease, ds.LeaseTTL)
		if err != nil {
			ds.logger.Error("lease acquire failed", zap.Error(err))
			return
		}
		if !acquired {
			ds.logger.Info("another instance holds the regeneration lease, skipping")
			return
		}
		defer func() {
			if err := ds.Locker.Release(ctx, maintenanceLease); err != nil {
				ds.logger.Warn("lease release failed", zap.Error(err))
			}
		}()
	}

	date := ds.Engine.BusinessDate()
	schedule, err := ds.Engine.GenerateDailySchedule(ctx, date)
	if err != nil {
		ds.logger.Error("scheduled regeneration failed",
			zap.String("date", date.Format("2006-01-02")),
			zap.Error(err))
		return
	}

	ds.logger.Info("scheduled regeneration completed",
		zap.String("date", date.Format("2006-01-02")),
		zap.Int("appointments", schedule.Stats.Total),
		zap.Int("changed", schedule.Stats.Changed),
		zap.Int("conflicts", schedule.Stats.ConflictsFound),
		zap.Int("conflicts_resolved", schedule.Stats.ConflictsResolved))
}
