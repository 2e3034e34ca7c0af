package models

import (
	"time"

	"gorm.io/datatypes"
)

type DayEventKind string

const (
	DayEventStart     DayEventKind = "start"
	DayEventAdvance   DayEventKind = "advance"
	DayEventStop      DayEventKind = "stop"
	DayEventPause     DayEventKind = "pause"
	DayEventResume    DayEventKind = "resume"
	DayEventConfigure DayEventKind = "configure_auto"
	DayEventReset     DayEventKind = "reset"
)

type DayTrigger string

const (
	TriggerManual    DayTrigger = "manual"
	TriggerScheduler DayTrigger = "scheduler"
	TriggerSystem    DayTrigger = "system"
)

// DayEvent is an append-only audit record of a committed day-control transition.
type DayEvent struct {
	ID        uint           `json:"id" gorm:"primaryKey"`
	Kind      DayEventKind   `json:"kind" gorm:"not null;index"`
	Trigger   DayTrigger     `json:"trigger" gorm:"not null"`
	FromDay   int            `json:"fromDay" gorm:"not null"`
	ToDay     int            `json:"toDay" gorm:"not null"`
	Details   datatypes.JSON `json:"details" gorm:"type:jsonb"`
	CreatedAt time.Time      `json:"createdAt" gorm:"index"`
}

func (DayEvent) TableName() string {
	return "day_events"
}
