package handlers

import (
	"net/http"
	"strconv"

	"marketsimulator/internal/services"

	"github.com/gin-gonic/gin"
)

// PublicHandler serves the unauthenticated display endpoints
type PublicHandler struct {
	service *services.PublicService
}

func NewPublicHandler(service *services.PublicService) *PublicHandler {
	return &PublicHandler{
		service: service,
	}
}

func (h *PublicHandler) RegisterRoutes(group *gin.RouterGroup) {
	group.GET("/day", h.CurrentDay)
	group.GET("/leaderboard", h.Leaderboard)
	group.GET("/portfolio/:userId", h.Portfolio)
}

// GET /api/v1/public/day
func (h *PublicHandler) CurrentDay(c *gin.Context) {
	snapshot, err := h.service.CurrentDay(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, snapshot)
}

// GET /api/v1/public/leaderboard?limit=N
func (h *PublicHandler) Leaderboard(c *gin.Context) {
	limit := 0
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "limit must be a positive integer"})
			return
		}
		limit = n
	}

	board, err := h.service.Leaderboard(c.Request.Context(), limit)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, board)
}

// GET /api/v1/public/portfolio/:userId
func (h *PublicHandler) Portfolio(c *gin.Context) {
	userID, err := strconv.ParseUint(c.Param("userId"), 10, 64)
	if err != nil || userID == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "userId must be a positive integer"})
		return
	}

	summary, err := h.service.Portfolio(c.Request.Context(), uint(userID))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, summary)
}
