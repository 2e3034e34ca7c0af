package daycycle

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"marketsimulator/internal/cache"
	"marketsimulator/internal/dao/daycontrol"
	"marketsimulator/internal/interfaces"
	"marketsimulator/internal/metrics"
	"marketsimulator/internal/models"
	"marketsimulator/internal/types"

	"gorm.io/datatypes"
)

// Bounds on the auto-advance interval. The interval is stored in whole
// milliseconds.
const (
	MinAutoInterval = time.Millisecond
	MaxAutoInterval = 30 * 24 * time.Hour
)

// CacheInvalidator drops cached entries that depend on the current day.
type CacheInvalidator interface {
	InvalidatePrefix(prefix string)
}

// Settings are the simulation defaults used when the singleton is created or
// reset.
type Settings struct {
	TotalDays int
	Interval  time.Duration
}

// Options wires the controller's collaborators. Only Settings is required.
type Options struct {
	Settings    Settings
	Cache       CacheInvalidator
	Broadcaster interfaces.Broadcaster
	Metrics     *metrics.DayCycle
}

// DayStatus is the administrator view of the simulation.
type DayStatus struct {
	State               models.DayState `json:"state"`
	CurrentDay          int             `json:"currentDay"`
	TotalDays           int             `json:"totalDays"`
	IsSimulationActive  bool            `json:"isSimulationActive"`
	IsPaused            bool            `json:"isPaused"`
	RemainingMs         *int64          `json:"remainingMs"`
	PausedAt            *time.Time      `json:"pausedAt"`
	SimulationStartDate *time.Time      `json:"simulationStartDate"`
	LastDayChange       time.Time       `json:"lastDayChange"`
	Scheduler           SchedulerStatus `json:"scheduler"`
}

// AdvanceResult reports a manual or scheduled advance.
type AdvanceResult struct {
	Status      *DayStatus `json:"status"`
	PreviousDay int        `json:"previousDay"`
	CurrentDay  int        `json:"currentDay"`
	Overflow    bool       `json:"overflow"`
	Stopped     bool       `json:"stopped"`
}

// PauseResult carries the countdown stored at pause time.
type PauseResult struct {
	Status      *DayStatus `json:"status"`
	RemainingMs int64      `json:"remainingMs"`
	// Raced is set when the timer had already fired; that advance still lands.
	Raced bool `json:"raced"`
}

// ResumeResult reports a resume. FiredNow is set when the day advanced as part
// of it; AdvanceError carries the reason when that advance was due but failed.
type ResumeResult struct {
	Status       *DayStatus `json:"status"`
	RemainingMs  int64      `json:"remainingMs"`
	FiredNow     bool       `json:"firedNow"`
	AdvanceError string     `json:"advanceError,omitempty"`
}

// Controller owns the day-control singleton and the scheduler. Every
// transition, manual or timer-driven, runs under mu, so the store only ever
// sees one read-modify-write at a time from this process; the store's version
// check catches writers from anywhere else.
type Controller struct {
	mu        sync.Mutex
	dao       daycontrol.DayControlDAOInterface
	clock     Clock
	scheduler *Scheduler
	settings  Settings
	dayCache  CacheInvalidator
	hub       interfaces.Broadcaster
	metrics   *metrics.DayCycle
}

// NewController creates a controller with a held scheduler. Call Restore
// before serving requests.
func NewController(dao daycontrol.DayControlDAOInterface, clock Clock, opts Options) *Controller {
	if clock == nil {
		clock = RealClock()
	}
	hub := opts.Broadcaster
	if hub == nil {
		hub = interfaces.NopBroadcaster{}
	}
	c := &Controller{
		dao:      dao,
		clock:    clock,
		settings: opts.Settings,
		dayCache: opts.Cache,
		hub:      hub,
		metrics:  opts.Metrics,
	}
	c.scheduler = NewScheduler(clock, opts.Settings.Interval, c.handleFire)
	return c
}

// Restore creates the singleton if needed and brings the scheduler back in
// line with the persisted state. Call it once at process start.
func (c *Controller) Restore(ctx context.Context) (*DayStatus, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	dc, err := c.dao.EnsureSingleton(ctx, c.defaultRecord())
	if err != nil {
		return nil, err
	}

	if err := c.scheduler.Configure(dc.AutoAdvanceEnabled, c.intervalOf(dc)); err != nil {
		return nil, err
	}
	if dc.State() == models.DayStateRunning {
		c.scheduler.Release()
		c.scheduler.ResetTimer()
	} else {
		c.scheduler.Hold()
	}
	c.metrics.ObserveState(dc.CurrentDay, dc.IsSimulationActive)

	log.Printf("Day control restored: day %d/%d state=%s auto=%t", dc.CurrentDay, dc.TotalDays, dc.State(), dc.AutoAdvanceEnabled)
	return c.statusOf(dc), nil
}

// Status reads the stored day control.
func (c *Controller) Status(ctx context.Context) (*DayStatus, error) {
	dc, err := c.dao.Get(ctx)
	if err != nil {
		return nil, err
	}
	return c.statusOf(dc), nil
}

// AutoStatus reports the scheduler without touching storage.
func (c *Controller) AutoStatus() SchedulerStatus {
	return c.scheduler.Status()
}

// RecentEvents returns the newest day events first.
func (c *Controller) RecentEvents(ctx context.Context, limit int) ([]models.DayEvent, error) {
	return c.dao.RecentEvents(ctx, limit)
}

// Start opens day 1 after a reset, or resumes a stopped simulation on its
// current day.
func (c *Controller) Start(ctx context.Context) (*DayStatus, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	dc, err := c.dao.Get(ctx)
	if err != nil {
		return nil, err
	}
	next, err := StartState(dc, c.clock.Now())
	if err != nil {
		return nil, err
	}

	event := newEvent(models.DayEventStart, models.TriggerManual, dc.CurrentDay, next.CurrentDay, nil)
	if err := c.dao.Update(ctx, next, event); err != nil {
		return nil, err
	}

	c.scheduler.Release()
	c.scheduler.ResetTimer()
	c.committed(dc, next, event)
	log.Printf("Simulation started on day %d/%d", next.CurrentDay, next.TotalDays)
	return c.statusOf(next), nil
}

// Advance is the administrator force-advance. It is allowed while paused; the
// paused countdown restarts at a full interval. Going past the final day is
// applied and ends the simulation in the same write.
func (c *Controller) Advance(ctx context.Context) (*AdvanceResult, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	dc, err := c.dao.Get(ctx)
	if err != nil {
		return nil, err
	}
	return c.advanceLocked(ctx, dc, models.TriggerManual, true)
}

// Stop ends the simulation and holds the scheduler.
func (c *Controller) Stop(ctx context.Context) (*DayStatus, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	dc, err := c.dao.Get(ctx)
	if err != nil {
		return nil, err
	}
	next, err := StopState(dc)
	if err != nil {
		return nil, err
	}

	event := newEvent(models.DayEventStop, models.TriggerManual, dc.CurrentDay, next.CurrentDay, nil)
	if err := c.dao.Update(ctx, next, event); err != nil {
		return nil, err
	}

	c.scheduler.Hold()
	c.committed(dc, next, event)
	log.Printf("Simulation stopped on day %d", next.CurrentDay)
	return c.statusOf(next), nil
}

// Pause stores what is left of the countdown and disarms the timer.
func (c *Controller) Pause(ctx context.Context) (*PauseResult, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	dc, err := c.dao.Get(ctx)
	if err != nil {
		return nil, err
	}
	// Reject illegal pauses before the scheduler is touched.
	if _, err := PauseState(dc, c.clock.Now(), 0); err != nil {
		return nil, err
	}

	remaining, raced, err := c.scheduler.Pause()
	armed := err == nil
	if errors.Is(err, ErrSchedulerNotArmed) {
		remaining = c.intervalOf(dc)
		c.scheduler.Hold()
	} else if err != nil {
		return nil, err
	}

	next, err := PauseState(dc, c.clock.Now(), remaining)
	if err != nil {
		return nil, err
	}
	event := newEvent(models.DayEventPause, models.TriggerManual, dc.CurrentDay, next.CurrentDay, map[string]interface{}{
		"remainingMs": remaining.Milliseconds(),
		"raced":       raced,
	})
	if err := c.dao.Update(ctx, next, event); err != nil {
		if armed {
			c.undoSchedulerPause(remaining, raced)
		} else {
			c.scheduler.Release()
		}
		return nil, err
	}

	c.committed(dc, next, event)
	log.Printf("Simulation paused on day %d with %dms remaining (raced=%t)", next.CurrentDay, remaining.Milliseconds(), raced)
	return &PauseResult{Status: c.statusOf(next), RemainingMs: remaining.Milliseconds(), Raced: raced}, nil
}

// undoSchedulerPause puts the countdown back after a pause failed to persist.
// A raced fire keeps its ticket and rearms on its own once released.
func (c *Controller) undoSchedulerPause(remaining time.Duration, raced bool) {
	if raced {
		c.scheduler.Release()
		return
	}
	if c.scheduler.Resume(remaining) {
		c.scheduler.ResetTimer()
	}
}

// Resume restarts the countdown with what was left at pause time. With
// nothing left the day advances right away and the regular cadence follows.
func (c *Controller) Resume(ctx context.Context) (*ResumeResult, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	dc, err := c.dao.Get(ctx)
	if err != nil {
		return nil, err
	}
	next, remaining, err := ResumeState(dc)
	if err != nil {
		return nil, err
	}

	event := newEvent(models.DayEventResume, models.TriggerManual, dc.CurrentDay, next.CurrentDay, map[string]interface{}{
		"remainingMs": remaining.Milliseconds(),
	})
	if err := c.dao.Update(ctx, next, event); err != nil {
		return nil, err
	}
	fireNow := c.scheduler.Resume(remaining)
	c.committed(dc, next, event)
	log.Printf("Simulation resumed on day %d with %dms remaining", next.CurrentDay, remaining.Milliseconds())

	result := &ResumeResult{RemainingMs: remaining.Milliseconds(), FiredNow: fireNow}
	if !fireNow {
		result.Status = c.statusOf(next)
		return result, nil
	}

	advanced, err := c.autoAdvanceLocked(ctx, next, false)
	c.scheduler.ResetTimer()
	if err != nil {
		// The resume is already stored; the regular cadence retries the advance.
		log.Printf("Immediate advance on resume failed: %v", err)
		result.FiredNow = false
		result.AdvanceError = err.Error()
		result.Status = c.statusOf(next)
		return result, nil
	}
	result.Status = advanced.Status
	result.Status.Scheduler = c.scheduler.Status()
	return result, nil
}

// ConfigureAuto turns automatic advance on or off. A new interval takes effect
// from now; a countdown already running is discarded, and a paused simulation
// gets a fresh full-interval countdown.
func (c *Controller) ConfigureAuto(ctx context.Context, enabled bool, interval time.Duration) (SchedulerStatus, error) {
	if interval < MinAutoInterval || interval > MaxAutoInterval {
		return SchedulerStatus{}, &ValidationError{
			Field:   "interval",
			Message: fmt.Sprintf("must be between %s and %s", MinAutoInterval, MaxAutoInterval),
		}
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	dc, err := c.dao.Get(ctx)
	if err != nil {
		return SchedulerStatus{}, err
	}
	next := dc.Clone()
	next.AutoAdvanceEnabled = enabled
	next.AutoAdvanceIntervalMs = interval.Milliseconds()
	if next.IsPaused {
		ms := interval.Milliseconds()
		next.RemainingMs = &ms
	}

	event := newEvent(models.DayEventConfigure, models.TriggerManual, dc.CurrentDay, next.CurrentDay, map[string]interface{}{
		"enabled":    enabled,
		"intervalMs": interval.Milliseconds(),
	})
	if err := c.dao.Update(ctx, next, event); err != nil {
		return SchedulerStatus{}, err
	}
	if err := c.scheduler.Configure(enabled, interval); err != nil {
		return SchedulerStatus{}, err
	}

	c.committed(dc, next, event)
	return c.scheduler.Status(), nil
}

// Reset wipes trading history and returns to day 0. The confirmation must be
// exactly ResetConfirmation.
func (c *Controller) Reset(ctx context.Context, confirmation string) (*DayStatus, error) {
	if confirmation != ResetConfirmation {
		return nil, &ValidationError{Field: "confirmation", Message: fmt.Sprintf("must be %q", ResetConfirmation)}
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	dc, err := c.dao.Get(ctx)
	if errors.Is(err, ErrNotInitialized) {
		dc = c.defaultRecord()
		dc.Version = -1
	} else if err != nil {
		return nil, err
	}

	next := ResetState(dc, c.clock.Now())
	event := newEvent(models.DayEventReset, models.TriggerManual, dc.CurrentDay, 0, nil)
	stored, err := c.dao.Reset(ctx, next, event)
	if err != nil {
		log.Printf("Simulation reset failed, nothing was changed: %v", err)
		return nil, err
	}

	c.scheduler.Disable()
	c.committed(dc, stored, event)
	c.hub.Broadcast(types.SimulationReset, types.SimulationResetData{
		TotalDays: stored.TotalDays,
		ResetAt:   stored.LastDayChange,
	})
	log.Printf("Simulation reset from day %d", dc.CurrentDay)
	return c.statusOf(stored), nil
}

// Shutdown disarms the scheduler for good.
func (c *Controller) Shutdown() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.scheduler.Shutdown()
}

// handleFire runs on the timer goroutine.
func (c *Controller) handleFire(ticket *FireTicket) {
	c.mu.Lock()
	defer c.mu.Unlock()

	proceed, raced := ticket.Claim()
	if !proceed {
		c.metrics.SchedulerFire(metrics.FireCancelled)
		log.Printf("Scheduler fire absorbed by a concurrent transition")
		return
	}

	ctx := context.Background()
	dc, err := c.dao.Get(ctx)
	if err != nil {
		c.metrics.SchedulerFire(metrics.FireFailed)
		log.Printf("Scheduler fire failed to read day control: %v", err)
		return
	}
	if !dc.IsSimulationActive || (dc.IsPaused && !raced) {
		c.metrics.SchedulerFire(metrics.FireSkipped)
		log.Printf("Scheduler fire skipped: state=%s", dc.State())
		return
	}

	result, err := c.autoAdvanceLocked(ctx, dc, raced)
	if err != nil {
		c.metrics.SchedulerFire(metrics.FireFailed)
		log.Printf("Scheduler advance failed on day %d: %v", dc.CurrentDay, err)
		return
	}
	if result.Stopped {
		c.metrics.SchedulerFire(metrics.FireStopped)
	} else {
		c.metrics.SchedulerFire(metrics.FireAdvanced)
	}
}

// autoAdvanceLocked is the scheduler's advance. It never goes past the final
// day: a fire on the final day ends the simulation instead.
func (c *Controller) autoAdvanceLocked(ctx context.Context, dc *models.DayControl, forced bool) (*AdvanceResult, error) {
	if dc.CurrentDay < dc.TotalDays {
		return c.advanceLocked(ctx, dc, models.TriggerScheduler, forced)
	}

	next, err := StopState(dc)
	if err != nil {
		return nil, err
	}
	event := newEvent(models.DayEventStop, models.TriggerScheduler, dc.CurrentDay, next.CurrentDay, map[string]interface{}{
		"reason": "final day reached",
	})
	if err := c.dao.Update(ctx, next, event); err != nil {
		return nil, err
	}

	c.scheduler.Hold()
	c.committed(dc, next, event)
	log.Printf("Final day %d reached, simulation stopped", next.CurrentDay)
	return &AdvanceResult{
		Status:      c.statusOf(next),
		PreviousDay: dc.CurrentDay,
		CurrentDay:  next.CurrentDay,
		Stopped:     true,
	}, nil
}

func (c *Controller) advanceLocked(ctx context.Context, dc *models.DayControl, trigger models.DayTrigger, forced bool) (*AdvanceResult, error) {
	next, outcome, err := AdvanceState(dc, c.clock.Now(), forced)
	if err != nil {
		return nil, err
	}
	if next.IsPaused {
		ms := c.intervalOf(dc).Milliseconds()
		next.RemainingMs = &ms
	}
	if outcome.Overflow {
		next.IsSimulationActive = false
		next.IsPaused = false
		next.PausedAt = nil
		next.RemainingMs = nil
	}

	event := newEvent(models.DayEventAdvance, trigger, outcome.PreviousDay, outcome.CurrentDay, map[string]interface{}{
		"overflow": outcome.Overflow,
		"forced":   forced && dc.IsPaused,
	})
	if err := c.dao.Update(ctx, next, event); err != nil {
		return nil, err
	}

	switch {
	case outcome.Overflow || next.IsPaused:
		c.scheduler.Hold()
	case trigger == models.TriggerManual:
		c.scheduler.ResetTimer()
	}

	c.committed(dc, next, event)
	log.Printf("Day advanced: %d -> %d (trigger=%s)", outcome.PreviousDay, outcome.CurrentDay, trigger)
	if outcome.Overflow {
		log.Printf("Day %d is past the final day %d, simulation stopped", outcome.CurrentDay, next.TotalDays)
	}

	return &AdvanceResult{
		Status:      c.statusOf(next),
		PreviousDay: outcome.PreviousDay,
		CurrentDay:  outcome.CurrentDay,
		Overflow:    outcome.Overflow,
		Stopped:     outcome.Overflow,
	}, nil
}

// committed runs the side effects of a stored transition. None of them can
// fail the transition.
func (c *Controller) committed(prev, next *models.DayControl, event *models.DayEvent) {
	if c.dayCache != nil {
		c.dayCache.InvalidatePrefix(cache.DayScope)
	}
	c.metrics.Transition(string(event.Kind), string(event.Trigger))
	c.metrics.ObserveState(next.CurrentDay, next.IsSimulationActive)

	if next.CurrentDay != prev.CurrentDay {
		c.hub.Broadcast(types.DayChanged, types.DayChangedData{
			PreviousDay: prev.CurrentDay,
			CurrentDay:  next.CurrentDay,
			TotalDays:   next.TotalDays,
			Trigger:     string(event.Trigger),
			Stopped:     prev.IsSimulationActive && !next.IsSimulationActive,
			ChangedAt:   next.LastDayChange,
		})
	}
	c.hub.Broadcast(types.SimulationStatus, types.SimulationStatusData{
		State:              string(next.State()),
		CurrentDay:         next.CurrentDay,
		TotalDays:          next.TotalDays,
		IsSimulationActive: next.IsSimulationActive,
		IsPaused:           next.IsPaused,
		RemainingMs:        next.RemainingMs,
	})
	sched := c.scheduler.Status()
	c.hub.Broadcast(types.SchedulerStatus, types.SchedulerStatusData{
		Enabled:    sched.Enabled,
		IntervalMs: sched.IntervalMs,
		NextRunAt:  sched.NextRunAt,
	})
}

func (c *Controller) statusOf(dc *models.DayControl) *DayStatus {
	return &DayStatus{
		State:               dc.State(),
		CurrentDay:          dc.CurrentDay,
		TotalDays:           dc.TotalDays,
		IsSimulationActive:  dc.IsSimulationActive,
		IsPaused:            dc.IsPaused,
		RemainingMs:         dc.RemainingMs,
		PausedAt:            dc.PausedAt,
		SimulationStartDate: dc.SimulationStartDate,
		LastDayChange:       dc.LastDayChange,
		Scheduler:           c.scheduler.Status(),
	}
}

func (c *Controller) intervalOf(dc *models.DayControl) time.Duration {
	if dc.AutoAdvanceIntervalMs > 0 {
		return time.Duration(dc.AutoAdvanceIntervalMs) * time.Millisecond
	}
	return c.settings.Interval
}

func (c *Controller) defaultRecord() *models.DayControl {
	return &models.DayControl{
		ID:                    models.DayControlID,
		TotalDays:             c.settings.TotalDays,
		LastDayChange:         c.clock.Now(),
		AutoAdvanceIntervalMs: c.settings.Interval.Milliseconds(),
	}
}

func newEvent(kind models.DayEventKind, trigger models.DayTrigger, from, to int, details map[string]interface{}) *models.DayEvent {
	event := &models.DayEvent{
		Kind:    kind,
		Trigger: trigger,
		FromDay: from,
		ToDay:   to,
	}
	if details != nil {
		if raw, err := json.Marshal(details); err == nil {
			event.Details = datatypes.JSON(raw)
		}
	}
	return event
}
