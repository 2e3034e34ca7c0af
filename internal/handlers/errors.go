package handlers

import (
	"errors"
	"log"
	"net/http"

	portfolioDAO "marketsimulator/internal/dao/portfolio"
	"marketsimulator/internal/engines/daycycle"

	"github.com/gin-gonic/gin"
)

// respondError maps domain errors onto status codes. Unknown errors are
// logged and reported generically.
func respondError(c *gin.Context, err error) {
	var simErr *daycycle.DaySimulationError
	var valErr *daycycle.ValidationError

	switch {
	case errors.Is(err, daycycle.ErrNotInitialized), errors.Is(err, daycycle.ErrConcurrentUpdate):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	case errors.As(err, &valErr):
		c.JSON(http.StatusBadRequest, gin.H{"error": valErr.Error(), "field": valErr.Field})
	case errors.As(err, &simErr):
		c.JSON(http.StatusBadRequest, gin.H{"error": simErr.Error()})
	case errors.Is(err, portfolioDAO.ErrParticipantNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	default:
		log.Printf("Request %s %s failed: %v", c.Request.Method, c.FullPath(), err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
	}
}
