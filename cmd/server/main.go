package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"marketsimulator/internal/cache"
	"marketsimulator/internal/config"
	"marketsimulator/internal/dao/daycontrol"
	"marketsimulator/internal/dao/market"
	"marketsimulator/internal/dao/memory"
	"marketsimulator/internal/dao/portfolio"
	"marketsimulator/internal/database"
	"marketsimulator/internal/engines/daycycle"
	"marketsimulator/internal/engines/valuation"
	"marketsimulator/internal/handlers"
	"marketsimulator/internal/handlers/websocket"
	"marketsimulator/internal/metrics"
	"marketsimulator/internal/services"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"gorm.io/gorm"
)

const memoryURLPrefix = "memory://"

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Storage: postgres, or the in-process store for demos
	var (
		db         *gorm.DB
		dayDAO     daycontrol.DayControlDAOInterface
		priceDAO   market.StockPriceDAOInterface
		holdingDAO portfolio.PortfolioDAOInterface
	)
	if strings.HasPrefix(cfg.DatabaseURL, memoryURLPrefix) {
		log.Println("Using in-memory store; state is lost on exit")
		store := memory.NewStore()
		dayDAO, priceDAO, holdingDAO = store, store, store
	} else {
		db, err = database.Connect(cfg.DatabaseURL, cfg.IsProduction())
		if err != nil {
			log.Fatalf("Failed to connect to database: %v", err)
		}
		defer database.Close(db)

		if err := database.AutoMigrate(db, cfg.Simulation.AutoAdvanceInterval); err != nil {
			log.Fatalf("Failed to run database migrations: %v", err)
		}
		dayDAO = daycontrol.NewDayControlDAO(db)
		priceDAO = market.NewStockPriceDAO(db)
		holdingDAO = portfolio.NewPortfolioDAO(db)
	}

	// Metrics
	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	dayMetrics := metrics.NewDayCycle(registry)

	// WebSocket hub
	hub := websocket.NewHub()
	go hub.Run(ctx)

	// Day controller and its scheduler
	readCache := cache.NewTTLCache(cfg.Public.DayCacheTTL, time.Minute)
	controller := daycycle.NewController(dayDAO, daycycle.RealClock(), daycycle.Options{
		Settings: daycycle.Settings{
			TotalDays: cfg.Simulation.TotalDays,
			Interval:  cfg.Simulation.AutoAdvanceInterval,
		},
		Cache:       readCache,
		Broadcaster: hub,
		Metrics:     dayMetrics,
	})
	if _, err := controller.Restore(ctx); err != nil {
		log.Fatalf("Failed to restore day control: %v", err)
	}

	// Public read path
	engine := valuation.NewEngine(priceDAO, holdingDAO, cfg.Simulation.ValuationWorkers)
	publicService := services.NewPublicService(controller, engine, readCache, cfg.Public)

	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}
	if cfg.AdminToken == "" && cfg.IsProduction() {
		log.Println("ADMIN_TOKEN is not set; admin routes are disabled")
	} else if cfg.AdminToken == "" {
		log.Println("ADMIN_TOKEN is not set; admin routes are open")
	}

	router := handlers.NewRouter(handlers.RouterConfig{
		AdminToken: cfg.AdminToken,
		Production: cfg.IsProduction(),
		RateLimit:  cfg.Public.RateLimit,
		RateBurst:  cfg.Public.RateBurst,
	}, handlers.Handlers{
		Health:     handlers.NewHealthHandler(db),
		DayControl: handlers.NewDayControlHandler(controller),
		Public:     handlers.NewPublicHandler(publicService),
		WebSocket:  websocket.NewWebSocketHandler(hub),
		Metrics:    promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
	})

	server := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Printf("Server starting on port %s", cfg.Port)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()

	<-ctx.Done()
	log.Println("Shutting down")

	controller.Shutdown()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("Server shutdown error: %v", err)
	}
	log.Println("Server stopped")
}
