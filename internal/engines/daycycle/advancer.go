package daycycle

import (
	"time"

	"marketsimulator/internal/models"
)

// The functions in this file are the day state machine. They never mutate
// their input and never touch storage; the controller persists what they
// return.

// StartState moves NotStarted or Stopped to Running. The first start after a
// reset opens day 1; later starts resume from the current day.
func StartState(dc *models.DayControl, now time.Time) (*models.DayControl, error) {
	if dc.IsSimulationActive {
		return nil, transitionError(ErrAlreadyActive, "Simulation is already active (day %d)", dc.CurrentDay)
	}

	next := dc.Clone()
	next.IsSimulationActive = true
	next.IsPaused = false
	next.PausedAt = nil
	next.RemainingMs = nil
	if next.CurrentDay == 0 {
		next.CurrentDay = 1
		next.LastDayChange = now
		started := now
		next.SimulationStartDate = &started
	}
	if next.SimulationStartDate == nil {
		started := now
		next.SimulationStartDate = &started
	}
	return next, nil
}

// AdvanceOutcome describes an applied day advance.
type AdvanceOutcome struct {
	PreviousDay int
	CurrentDay  int
	// Overflow is set when the new day is past TotalDays. The advance is
	// still applied; stopping is the caller's decision.
	Overflow bool
}

// AdvanceState moves the day forward by one. A paused simulation only
// advances when forced.
func AdvanceState(dc *models.DayControl, now time.Time, forced bool) (*models.DayControl, AdvanceOutcome, error) {
	if !dc.IsSimulationActive {
		return nil, AdvanceOutcome{}, transitionError(ErrNotActive, "Simulation is not active")
	}
	if dc.IsPaused && !forced {
		return nil, AdvanceOutcome{}, transitionError(ErrAlreadyPaused, "Simulation is paused")
	}

	next := dc.Clone()
	next.CurrentDay = dc.CurrentDay + 1
	next.LastDayChange = now

	return next, AdvanceOutcome{
		PreviousDay: dc.CurrentDay,
		CurrentDay:  next.CurrentDay,
		Overflow:    next.CurrentDay > dc.TotalDays,
	}, nil
}

// StopState ends a running or paused simulation, keeping the current day.
func StopState(dc *models.DayControl) (*models.DayControl, error) {
	if !dc.IsSimulationActive {
		return nil, transitionError(ErrNotActive, "Simulation is not active")
	}

	next := dc.Clone()
	next.IsSimulationActive = false
	next.IsPaused = false
	next.PausedAt = nil
	next.RemainingMs = nil
	return next, nil
}

// PauseState freezes a running simulation with the countdown left on the
// scheduler.
func PauseState(dc *models.DayControl, now time.Time, remaining time.Duration) (*models.DayControl, error) {
	if !dc.IsSimulationActive {
		return nil, transitionError(ErrNotActive, "Simulation is not active")
	}
	if dc.IsPaused {
		return nil, transitionError(ErrAlreadyPaused, "Simulation is already paused")
	}
	if remaining < 0 {
		remaining = 0
	}

	next := dc.Clone()
	ms := remaining.Milliseconds()
	pausedAt := now
	next.IsPaused = true
	next.RemainingMs = &ms
	next.PausedAt = &pausedAt
	return next, nil
}

// ResumeState unfreezes a paused simulation and returns the countdown that
// was stored at pause time.
func ResumeState(dc *models.DayControl) (*models.DayControl, time.Duration, error) {
	if !dc.IsSimulationActive {
		return nil, 0, transitionError(ErrNotActive, "Simulation is not active")
	}
	if !dc.IsPaused {
		return nil, 0, transitionError(ErrNotPaused, "Simulation is not paused")
	}

	var remaining time.Duration
	if dc.RemainingMs != nil {
		remaining = time.Duration(*dc.RemainingMs) * time.Millisecond
	}

	next := dc.Clone()
	next.IsPaused = false
	next.PausedAt = nil
	next.RemainingMs = nil
	return next, remaining, nil
}

// ResetState returns the NotStarted record for any prior state. TotalDays and
// the configured interval survive; the scheduler is disabled.
func ResetState(dc *models.DayControl, now time.Time) *models.DayControl {
	next := dc.Clone()
	next.CurrentDay = 0
	next.IsSimulationActive = false
	next.IsPaused = false
	next.RemainingMs = nil
	next.PausedAt = nil
	next.SimulationStartDate = nil
	next.LastDayChange = now
	next.AutoAdvanceEnabled = false
	next.Version = dc.Version + 1
	return next
}
