package handlers

import (
	"net/http"

	"marketsimulator/internal/handlers/websocket"

	"github.com/gin-gonic/gin"
)

type RouterConfig struct {
	AdminToken string
	Production bool
	RateLimit  float64
	RateBurst  int
}

// Handlers groups everything the router mounts. Metrics and WebSocket are
// optional.
type Handlers struct {
	Health     *HealthHandler
	DayControl *DayControlHandler
	Public     *PublicHandler
	WebSocket  *websocket.WebSocketHandler
	Metrics    http.Handler
}

func NewRouter(cfg RouterConfig, h Handlers) *gin.Engine {
	r := gin.New()
	r.Use(gin.Logger(), gin.Recovery(), RequestID(), CORS())

	r.GET("/health", h.Health.Health)
	if h.Metrics != nil {
		r.GET("/metrics", gin.WrapH(h.Metrics))
	}
	if h.WebSocket != nil {
		r.GET("/ws", h.WebSocket.HandleWebSocket)
	}

	api := r.Group("/api/v1")

	admin := api.Group("/admin", AdminAuth(cfg.AdminToken, cfg.Production))
	h.DayControl.RegisterRoutes(admin)

	limiter := NewRateLimiter(cfg.RateLimit, cfg.RateBurst)
	public := api.Group("/public", limiter.Middleware())
	h.Public.RegisterRoutes(public)

	return r
}
