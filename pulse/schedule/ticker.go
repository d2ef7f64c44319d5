package schedule

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/teranos/autoblog/logger"
)

// Ticker drives the scheduler: every interval it runs a sweep over due
// schedules. Sweeps never overlap because the loop runs them inline.
type Ticker struct {
	scheduler *Scheduler
	interval  time.Duration
	ctx       context.Context
	cancel    context.CancelFunc
	wg        sync.WaitGroup
	pulseLog  *zap.SugaredLogger
	now       func() time.Time

	mu              sync.Mutex
	lastTickAt      time.Time
	ticksSinceStart int64
	lastSweep       *SweepResult
	lastNextDue     string // schedule id and time last logged, to log only on change
}

// NewTicker creates a ticker with a parent context
func NewTicker(ctx context.Context, scheduler *Scheduler, interval time.Duration, log *zap.SugaredLogger) *Ticker {
	if log == nil {
		log = logger.Logger
	}
	if interval <= 0 {
		interval = DefaultConfig().TickerInterval
	}
	tickerCtx, cancel := context.WithCancel(ctx)
	return &Ticker{
		scheduler: scheduler,
		interval:  interval,
		ctx:       tickerCtx,
		cancel:    cancel,
		pulseLog:  logger.AddPulseSymbol(log.Named("pulse.ticker")),
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// Start begins the ticker loop
func (t *Ticker) Start() {
	t.wg.Add(1)
	go t.run()
	t.pulseLog.Infow("Pulse ticker started", "interval", t.interval)
}

// Stop gracefully stops the ticker, waiting for a running sweep to finish
func (t *Ticker) Stop() {
	t.cancel()
	t.wg.Wait()
	t.pulseLog.Infow("Pulse ticker stopped")
}

// run is the main ticker loop
func (t *Ticker) run() {
	defer t.wg.Done()

	ticker := time.NewTicker(t.interval)
	defer ticker.Stop()

	for {
		select {
		case <-t.ctx.Done():
			return
		case <-ticker.C:
			t.Tick()
		}
	}
}

// Tick runs one sweep now.
func (t *Ticker) Tick() {
	now := t.now()
	t.mu.Lock()
	t.lastTickAt = now
	t.ticksSinceStart++
	tick := t.ticksSinceStart
	t.mu.Unlock()

	result, err := t.scheduler.RunDueSchedules(t.ctx, now)
	if err != nil {
		// Don't spam logs - log errors at warn level
		t.pulseLog.Warnw("Pulse tick error", logger.FieldError, err, "tick", tick)
		return
	}
	t.mu.Lock()
	t.lastSweep = result
	t.mu.Unlock()

	t.logNextDue(now)
}

// logNextDue logs time until the next due schedule when it changes
func (t *Ticker) logNextDue(now time.Time) {
	next, err := t.scheduler.nextDue(t.ctx)
	if err != nil {
		t.pulseLog.Warnw("Failed to get next due schedule", logger.FieldError, err)
		return
	}

	key := ""
	if next != nil {
		key = next.scheduleID + "@" + next.at.Format(time.RFC3339)
	}
	t.mu.Lock()
	changed := key != t.lastNextDue
	t.lastNextDue = key
	t.mu.Unlock()
	if !changed {
		return
	}

	if next == nil {
		t.pulseLog.Infow("Pulse - no enabled schedules")
		return
	}
	timeUntil := next.at.Sub(now)
	if timeUntil < 0 {
		timeUntil = 0
	}
	t.pulseLog.Infow("Pulse - next schedule due",
		logger.FieldScheduleID, next.scheduleID,
		"in", timeUntil.Round(time.Second).String(),
		logger.FieldNextRun, next.at.Format(time.RFC3339))
}

// Stats returns ticker statistics
func (t *Ticker) Stats() map[string]interface{} {
	t.mu.Lock()
	defer t.mu.Unlock()

	stats := map[string]interface{}{
		"last_tick_at":      t.lastTickAt,
		"ticks_since_start": t.ticksSinceStart,
		"interval":          t.interval.String(),
	}
	if t.lastSweep != nil {
		stats["last_sweep"] = map[string]int{
			"schedules":  t.lastSweep.Schedules,
			"dispatched": t.lastSweep.Dispatched,
			"failed":     t.lastSweep.Failed,
			"skipped":    t.lastSweep.Skipped,
		}
	}
	return stats
}
