package daycycle

import (
	"fmt"
	"log"
	"sync"
	"time"
)

// SchedulerStatus is the countdown view shown to administrators and display
// clients.
type SchedulerStatus struct {
	Enabled    bool       `json:"enabled"`
	IntervalMs int64      `json:"intervalMs"`
	NextRunAt  *time.Time `json:"nextRunAt"`
	Held       bool       `json:"held"`
}

// FireTicket is handed to the fire handler for one timer expiry. The handler
// must Claim it inside its critical section before advancing.
type FireTicket struct {
	scheduler  *Scheduler
	cancelled  bool
	pauseRaced bool
	claimed    bool
}

// Claim reports whether the fire should still advance the day, and whether a
// pause arrived after the timer expired. A ticket is cancelled by any disarm
// other than pause: a manual advance, a stop, a reset or a reconfiguration.
func (t *FireTicket) Claim() (proceed bool, pauseRaced bool) {
	s := t.scheduler
	s.mu.Lock()
	defer s.mu.Unlock()
	if t.claimed || t.cancelled {
		return false, t.pauseRaced
	}
	t.claimed = true
	return true, t.pauseRaced
}

// Scheduler fires the day-advance handler every interval while enabled and
// not held. It is single-owner process state: the controller creates it and
// is the only caller of its mutating methods.
//
// Every arm bumps a generation counter; a timer callback whose generation is
// stale does nothing, so a stopped timer that already started running cannot
// fire twice.
type Scheduler struct {
	mu        sync.Mutex
	clock     Clock
	enabled   bool
	held      bool
	closed    bool
	interval  time.Duration
	nextRunAt *time.Time
	timer     Timer
	gen       uint64
	inFlight  *FireTicket
	onFire    func(ticket *FireTicket)
}

// NewScheduler returns a disabled, held scheduler.
func NewScheduler(clock Clock, interval time.Duration, onFire func(ticket *FireTicket)) *Scheduler {
	return &Scheduler{
		clock:    clock,
		interval: interval,
		held:     true,
		onFire:   onFire,
	}
}

// Configure enables or disables automatic advance. Any pending countdown is
// discarded; when enabled and not held a new one starts now. A new interval
// never retroactively changes a timer already in flight.
func (s *Scheduler) Configure(enabled bool, interval time.Duration) error {
	if interval <= 0 {
		return fmt.Errorf("interval must be positive, got %s", interval)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.enabled = enabled
	s.interval = interval
	s.disarmLocked(true)
	if s.enabled && !s.held {
		s.armLocked(s.interval)
	}
	log.Printf("Scheduler configured: enabled=%t interval=%s", enabled, interval)
	return nil
}

// Pause disarms the countdown and returns what was left of it. If the timer
// already expired and its advance is still in flight, the pause loses: the
// advance goes ahead and the returned remaining time is a full interval.
func (s *Scheduler) Pause() (remaining time.Duration, raced bool, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch {
	case s.inFlight != nil && !s.inFlight.cancelled:
		s.inFlight.pauseRaced = true
		remaining = s.interval
		raced = true
	case s.timer != nil && s.nextRunAt != nil:
		remaining = s.nextRunAt.Sub(s.clock.Now())
		if remaining < 0 {
			remaining = 0
		}
	default:
		return 0, false, ErrSchedulerNotArmed
	}

	s.disarmLocked(false)
	s.held = true
	return remaining, raced, nil
}

// Resume releases the hold and arms a one-shot countdown for remaining;
// after it fires the regular interval applies. fireNow is returned instead of
// arming when nothing is left on the countdown, and the caller must advance
// synchronously and then call ResetTimer.
func (s *Scheduler) Resume(remaining time.Duration) (fireNow bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.held = false
	if !s.enabled || s.closed {
		return false
	}
	if remaining <= 0 {
		return true
	}
	s.disarmLocked(true)
	s.armLocked(remaining)
	return false
}

// ResetTimer restarts the countdown from now with the configured interval.
func (s *Scheduler) ResetTimer() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.disarmLocked(true)
	if s.enabled && !s.held {
		s.armLocked(s.interval)
	}
}

// Hold disarms without changing the configuration, for a simulation that is
// not running.
func (s *Scheduler) Hold() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.disarmLocked(true)
	s.held = true
}

// Release lifts a hold. It does not arm; call ResetTimer or Resume.
func (s *Scheduler) Release() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.held = false
}

// Disable turns automatic advance off and holds.
func (s *Scheduler) Disable() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.enabled = false
	s.held = true
	s.disarmLocked(true)
}

// Enabled reports whether automatic advance is configured on.
func (s *Scheduler) Enabled() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.enabled
}

// Interval returns the configured cadence.
func (s *Scheduler) Interval() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.interval
}

// Status is a point-in-time copy, safe for any number of readers.
func (s *Scheduler) Status() SchedulerStatus {
	s.mu.Lock()
	defer s.mu.Unlock()

	status := SchedulerStatus{
		Enabled:    s.enabled,
		IntervalMs: s.interval.Milliseconds(),
		Held:       s.held,
	}
	if s.nextRunAt != nil {
		at := *s.nextRunAt
		status.NextRunAt = &at
	}
	return status
}

// Shutdown disarms for good. Later calls never arm again.
func (s *Scheduler) Shutdown() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.disarmLocked(true)
	s.closed = true
	log.Printf("Scheduler shut down")
}

func (s *Scheduler) armLocked(d time.Duration) {
	if s.closed {
		return
	}
	s.gen++
	gen := s.gen
	at := s.clock.Now().Add(d)
	s.nextRunAt = &at
	s.timer = s.clock.AfterFunc(d, func() { s.fire(gen) })
}

func (s *Scheduler) disarmLocked(cancelInFlight bool) {
	s.gen++
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
	s.nextRunAt = nil
	if cancelInFlight && s.inFlight != nil {
		s.inFlight.cancelled = true
	}
}

func (s *Scheduler) fire(gen uint64) {
	s.mu.Lock()
	if s.closed || gen != s.gen || s.timer == nil {
		s.mu.Unlock()
		return
	}
	s.timer = nil
	s.nextRunAt = nil
	ticket := &FireTicket{scheduler: s}
	s.inFlight = ticket
	handler := s.onFire
	s.mu.Unlock()

	if handler != nil {
		handler(ticket)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.inFlight == ticket {
		s.inFlight = nil
	}
	// Rearm even when the handler failed; only a hold or disable stops the cadence.
	if !s.closed && s.enabled && !s.held && s.timer == nil {
		s.armLocked(s.interval)
	}
}
