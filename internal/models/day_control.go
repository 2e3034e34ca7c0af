package models

import (
	"time"
)

// DayControlID is the fixed primary key of the singleton day control row.
const DayControlID uint = 1

type DayState string

const (
	DayStateNotStarted DayState = "not_started"
	DayStateRunning    DayState = "running"
	DayStatePaused     DayState = "paused"
	DayStateStopped    DayState = "stopped"
)

// DayControl is the persisted lifecycle state of the simulation. There is
// exactly one row, addressed by DayControlID.
type DayControl struct {
	ID                  uint       `json:"id" gorm:"primaryKey"`
	CurrentDay          int        `json:"currentDay" gorm:"not null;default:0"`
	TotalDays           int        `json:"totalDays" gorm:"not null"`
	IsSimulationActive  bool       `json:"isSimulationActive" gorm:"not null;default:false"`
	IsPaused            bool       `json:"isPaused" gorm:"not null;default:false"`
	RemainingMs         *int64     `json:"remainingMs"`
	PausedAt            *time.Time `json:"pausedAt"`
	LastDayChange       time.Time  `json:"lastDayChange" gorm:"not null"`
	SimulationStartDate *time.Time `json:"simulationStartDate"`

	// Scheduler settings, restored at process start
	AutoAdvanceEnabled    bool  `json:"autoAdvanceEnabled" gorm:"not null;default:false"`
	AutoAdvanceIntervalMs int64 `json:"autoAdvanceIntervalMs" gorm:"not null"`

	// Version is bumped on every write and checked by the store
	Version   int64     `json:"version" gorm:"not null;default:0"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

func (DayControl) TableName() string {
	return "day_controls"
}

// State derives the lifecycle state from the flags.
func (dc *DayControl) State() DayState {
	switch {
	case dc.IsSimulationActive && dc.IsPaused:
		return DayStatePaused
	case dc.IsSimulationActive:
		return DayStateRunning
	case dc.CurrentDay == 0:
		return DayStateNotStarted
	default:
		return DayStateStopped
	}
}

// Clone returns a deep copy so transitions never alias the caller's pointers.
func (dc *DayControl) Clone() *DayControl {
	if dc == nil {
		return nil
	}
	out := *dc
	if dc.RemainingMs != nil {
		v := *dc.RemainingMs
		out.RemainingMs = &v
	}
	if dc.PausedAt != nil {
		v := *dc.PausedAt
		out.PausedAt = &v
	}
	if dc.SimulationStartDate != nil {
		v := *dc.SimulationStartDate
		out.SimulationStartDate = &v
	}
	return &out
}
