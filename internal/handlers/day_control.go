package handlers

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	"marketsimulator/internal/engines/daycycle"

	"github.com/gin-gonic/gin"
)

const (
	defaultEventLimit = 20
	maxEventLimit     = 200
)

// DayControlHandler exposes the day controller to administrators
type DayControlHandler struct {
	controller *daycycle.Controller
}

func NewDayControlHandler(controller *daycycle.Controller) *DayControlHandler {
	return &DayControlHandler{
		controller: controller,
	}
}

type ConfigureAutoRequest struct {
	Enabled *bool `json:"enabled" binding:"required"`
	// Omitted keeps the current interval
	IntervalMinutes *float64 `json:"intervalMinutes"`
}

type ResetRequest struct {
	Confirmation string `json:"confirmation" binding:"required"`
}

// RegisterRoutes mounts the admin day routes on group
func (h *DayControlHandler) RegisterRoutes(group *gin.RouterGroup) {
	day := group.Group("/day")
	day.GET("/status", h.Status)
	day.POST("/start", h.Start)
	day.POST("/advance", h.Advance)
	day.POST("/stop", h.Stop)
	day.POST("/pause", h.Pause)
	day.POST("/resume", h.Resume)
	day.POST("/auto", h.ConfigureAuto)
	day.GET("/auto", h.AutoStatus)
	day.GET("/events", h.Events)
	day.POST("/reset", h.Reset)
}

// GET /api/v1/admin/day/status
func (h *DayControlHandler) Status(c *gin.Context) {
	status, err := h.controller.Status(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, status)
}

// POST /api/v1/admin/day/start
func (h *DayControlHandler) Start(c *gin.Context) {
	status, err := h.controller.Start(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message":    "Simulation started",
		"currentDay": status.CurrentDay,
		"status":     status,
	})
}

// POST /api/v1/admin/day/advance
func (h *DayControlHandler) Advance(c *gin.Context) {
	result, err := h.controller.Advance(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}

	message := "Day advanced"
	if result.Stopped {
		message = "Day advanced, simulation finished"
	}
	c.JSON(http.StatusOK, gin.H{
		"message":     message,
		"previousDay": result.PreviousDay,
		"currentDay":  result.CurrentDay,
		"overflow":    result.Overflow,
		"stopped":     result.Stopped,
		"status":      result.Status,
	})
}

// POST /api/v1/admin/day/stop
func (h *DayControlHandler) Stop(c *gin.Context) {
	status, err := h.controller.Stop(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message":    "Simulation stopped",
		"currentDay": status.CurrentDay,
		"status":     status,
	})
}

// POST /api/v1/admin/day/pause
func (h *DayControlHandler) Pause(c *gin.Context) {
	result, err := h.controller.Pause(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message":     "Simulation paused",
		"remainingMs": result.RemainingMs,
		"status":      result.Status,
	})
}

// POST /api/v1/admin/day/resume
func (h *DayControlHandler) Resume(c *gin.Context) {
	result, err := h.controller.Resume(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}

	body := gin.H{
		"message":     "Simulation resumed",
		"remainingMs": result.RemainingMs,
		"firedNow":    result.FiredNow,
		"status":      result.Status,
	}
	if result.AdvanceError != "" {
		body["advanceError"] = result.AdvanceError
	}
	c.JSON(http.StatusOK, body)
}

// POST /api/v1/admin/day/auto
func (h *DayControlHandler) ConfigureAuto(c *gin.Context) {
	var req ConfigureAutoRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	interval := time.Duration(h.controller.AutoStatus().IntervalMs) * time.Millisecond
	if req.IntervalMinutes != nil {
		ms := *req.IntervalMinutes * float64(time.Minute/time.Millisecond)
		if !(ms >= float64(daycycle.MinAutoInterval/time.Millisecond) && ms <= float64(daycycle.MaxAutoInterval/time.Millisecond)) {
			respondError(c, &daycycle.ValidationError{
				Field:   "intervalMinutes",
				Message: fmt.Sprintf("must be between %s and %s", daycycle.MinAutoInterval, daycycle.MaxAutoInterval),
			})
			return
		}
		interval = time.Duration(ms) * time.Millisecond
	}

	status, err := h.controller.ConfigureAuto(c.Request.Context(), *req.Enabled, interval)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message":   "Auto-advance updated",
		"scheduler": status,
	})
}

// GET /api/v1/admin/day/auto
func (h *DayControlHandler) AutoStatus(c *gin.Context) {
	c.JSON(http.StatusOK, h.controller.AutoStatus())
}

// GET /api/v1/admin/day/events?limit=N
func (h *DayControlHandler) Events(c *gin.Context) {
	limit := defaultEventLimit
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "limit must be a positive integer"})
			return
		}
		limit = n
	}
	if limit > maxEventLimit {
		limit = maxEventLimit
	}

	events, err := h.controller.RecentEvents(c.Request.Context(), limit)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"events": events, "count": len(events)})
}

// POST /api/v1/admin/day/reset
func (h *DayControlHandler) Reset(c *gin.Context) {
	var req ResetRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	status, err := h.controller.Reset(c.Request.Context(), req.Confirmation)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message": "Simulation reset",
		"status":  status,
	})
}
