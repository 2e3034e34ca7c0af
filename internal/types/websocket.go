package types

import "time"

// MessageType defines the type of WebSocket message
type MessageType string

const (
	ConnectionStatus MessageType = "connection_status"
	Error            MessageType = "error"
	// Day cycle broadcasts
	DayChanged       MessageType = "day_changed"
	SimulationStatus MessageType = "simulation_status"
	SchedulerStatus  MessageType = "scheduler_status"
	SimulationReset  MessageType = "simulation_reset"
)

// WebSocketMessage represents a WebSocket message
type WebSocketMessage struct {
	Type MessageType `json:"type"`
	Data interface{} `json:"data"`
}

// ConnectionStatusData represents connection status message data
type ConnectionStatusData struct {
	Status    string `json:"status"`
	ClientID  string `json:"clientId"`
	Message   string `json:"message"`
	Timestamp int64  `json:"timestamp"`
}

// DayChangedData is sent whenever the current day moves
type DayChangedData struct {
	PreviousDay int       `json:"previousDay"`
	CurrentDay  int       `json:"currentDay"`
	TotalDays   int       `json:"totalDays"`
	Trigger     string    `json:"trigger"`
	Stopped     bool      `json:"stopped"`
	ChangedAt   time.Time `json:"changedAt"`
}

// SimulationStatusData mirrors the lifecycle flags after a transition
type SimulationStatusData struct {
	State              string `json:"state"`
	CurrentDay         int    `json:"currentDay"`
	TotalDays          int    `json:"totalDays"`
	IsSimulationActive bool   `json:"isSimulationActive"`
	IsPaused           bool   `json:"isPaused"`
	RemainingMs        *int64 `json:"remainingMs"`
}

// SchedulerStatusData drives countdown widgets
type SchedulerStatusData struct {
	Enabled    bool       `json:"enabled"`
	IntervalMs int64      `json:"intervalMs"`
	NextRunAt  *time.Time `json:"nextRunAt"`
}

type SimulationResetData struct {
	TotalDays int       `json:"totalDays"`
	ResetAt   time.Time `json:"resetAt"`
}

type ErrorData struct {
	Message string `json:"message"`
	Error   string `json:"error"`
}
