package services

import (
	"context"
	"time"

	"marketsimulator/internal/cache"
	"marketsimulator/internal/config"
	"marketsimulator/internal/engines/daycycle"
	"marketsimulator/internal/engines/valuation"
)

// MaxLeaderboardLimit caps the limit query parameter so one request cannot
// ask for an unbounded ranking.
const MaxLeaderboardLimit = 100

// DayReader is the part of the day controller the public path needs
type DayReader interface {
	Status(ctx context.Context) (*daycycle.DayStatus, error)
}

// DaySnapshot is what display widgets poll
type DaySnapshot struct {
	CurrentDay         int        `json:"currentDay"`
	TotalDays          int        `json:"totalDays"`
	State              string     `json:"state"`
	IsSimulationActive bool       `json:"isSimulationActive"`
	IsPaused           bool       `json:"isPaused"`
	LastDayChange      time.Time  `json:"lastDayChange"`
	NextDayAt          *time.Time `json:"nextDayAt"`
	GeneratedAt        time.Time  `json:"generatedAt"`
}

// HoldingSummary is one priced position, rounded for display
type HoldingSummary struct {
	CompanyID       uint    `json:"companyId"`
	Quantity        int64   `json:"quantity"`
	AverageBuyPrice float64 `json:"averageBuyPrice"`
	CurrentPrice    float64 `json:"currentPrice"`
	HasPrice        bool    `json:"hasPrice"`
	MarketValue     float64 `json:"marketValue"`
	UnrealizedPnL   float64 `json:"unrealizedPnL"`
}

// PortfolioSummary is a participant's valuation as of the current day
type PortfolioSummary struct {
	UserID           uint             `json:"userId"`
	TeamLabel        string           `json:"teamLabel"`
	Day              int              `json:"day"`
	CashBalance      float64          `json:"cashBalance"`
	HoldingsValue    float64          `json:"holdingsValue"`
	TotalValue       float64          `json:"totalValue"`
	ReturnPercentage float64          `json:"returnPercentage"`
	Holdings         []HoldingSummary `json:"holdings"`
}

// PublicService serves the unauthenticated read path. Day and leaderboard
// reads are cache-backed; the day controller drops those entries on every
// transition.
type PublicService struct {
	day    DayReader
	engine *valuation.Engine
	cache  cache.Cache
	cfg    config.PublicConfig
	now    func() time.Time
}

// NewPublicService creates a new public read service
func NewPublicService(day DayReader, engine *valuation.Engine, c cache.Cache, cfg config.PublicConfig) *PublicService {
	return &PublicService{
		day:    day,
		engine: engine,
		cache:  c,
		cfg:    cfg,
		now:    time.Now,
	}
}

// CurrentDay returns the cached day snapshot
func (ps *PublicService) CurrentDay(ctx context.Context) (*DaySnapshot, error) {
	if cached, ok := ps.cache.Get(cache.CurrentDayKey); ok {
		if snapshot, ok := cached.(*DaySnapshot); ok {
			return snapshot, nil
		}
	}

	generation := ps.cache.Generation()
	status, err := ps.day.Status(ctx)
	if err != nil {
		return nil, err
	}
	snapshot := &DaySnapshot{
		CurrentDay:         status.CurrentDay,
		TotalDays:          status.TotalDays,
		State:              string(status.State),
		IsSimulationActive: status.IsSimulationActive,
		IsPaused:           status.IsPaused,
		LastDayChange:      status.LastDayChange,
		NextDayAt:          status.Scheduler.NextRunAt,
		GeneratedAt:        ps.now(),
	}
	ps.cache.SetIfGeneration(cache.CurrentDayKey, snapshot, ps.cfg.DayCacheTTL, generation)
	return snapshot, nil
}

// Leaderboard returns the cached ranking as of the current day
func (ps *PublicService) Leaderboard(ctx context.Context, limit int) (*valuation.Leaderboard, error) {
	if limit <= 0 {
		limit = ps.cfg.LeaderboardLimit
	}
	if limit > MaxLeaderboardLimit {
		limit = MaxLeaderboardLimit
	}

	key := cache.LeaderboardKey(limit)
	if cached, ok := ps.cache.Get(key); ok {
		if board, ok := cached.(*valuation.Leaderboard); ok {
			return board, nil
		}
	}

	generation := ps.cache.Generation()
	snapshot, err := ps.CurrentDay(ctx)
	if err != nil {
		return nil, err
	}
	board, err := ps.engine.Leaderboard(ctx, snapshot.CurrentDay, limit)
	if err != nil {
		return nil, err
	}
	ps.cache.SetIfGeneration(key, board, ps.cfg.LeaderboardCacheTTL, generation)
	return board, nil
}

// Portfolio values one participant as of the current day. It is not cached.
func (ps *PublicService) Portfolio(ctx context.Context, userID uint) (*PortfolioSummary, error) {
	snapshot, err := ps.CurrentDay(ctx)
	if err != nil {
		return nil, err
	}
	v, err := ps.engine.ValueOf(ctx, userID, snapshot.CurrentDay)
	if err != nil {
		return nil, err
	}

	summary := &PortfolioSummary{
		UserID:           v.UserID,
		TeamLabel:        v.TeamLabel,
		Day:              v.Day,
		CashBalance:      v.CashBalance.Round(2).InexactFloat64(),
		HoldingsValue:    v.HoldingsValue.Round(2).InexactFloat64(),
		TotalValue:       v.TotalValue.Round(2).InexactFloat64(),
		ReturnPercentage: v.ReturnPercentage.Round(2).InexactFloat64(),
		Holdings:         make([]HoldingSummary, 0, len(v.Holdings)),
	}
	for _, h := range v.Holdings {
		summary.Holdings = append(summary.Holdings, HoldingSummary{
			CompanyID:       h.CompanyID,
			Quantity:        h.Quantity,
			AverageBuyPrice: h.AverageBuyPrice.Round(2).InexactFloat64(),
			CurrentPrice:    h.Price.Round(2).InexactFloat64(),
			HasPrice:        h.PriceFound,
			MarketValue:     h.MarketValue.Round(2).InexactFloat64(),
			UnrealizedPnL:   h.UnrealizedPnL.Round(2).InexactFloat64(),
		})
	}
	return summary, nil
}
