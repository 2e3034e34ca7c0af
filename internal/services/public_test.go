package services

import (
	"context"
	"testing"
	"time"

	"marketsimulator/internal/cache"
	"marketsimulator/internal/config"
	"marketsimulator/internal/dao/memory"
	"marketsimulator/internal/engines/daycycle"
	"marketsimulator/internal/engines/valuation"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countingDayReader struct {
	controller *daycycle.Controller
	calls      int
	// afterRead runs once, after the next status read returns from storage.
	afterRead func(ctx context.Context)
}

func (r *countingDayReader) Status(ctx context.Context) (*daycycle.DayStatus, error) {
	r.calls++
	status, err := r.controller.Status(ctx)
	if hook := r.afterRead; hook != nil {
		r.afterRead = nil
		hook(ctx)
	}
	return status, err
}

type fixture struct {
	store   *memory.Store
	day     *countingDayReader
	control *daycycle.Controller
	svc     *PublicService
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	ctx := context.Background()
	store := memory.NewStore()
	ttl := cache.NewTTLCache(time.Minute, time.Minute)

	control := daycycle.NewController(store, nil, daycycle.Options{
		Settings: daycycle.Settings{TotalDays: 5, Interval: time.Hour},
		Cache:    ttl,
	})
	_, err := control.Restore(ctx)
	require.NoError(t, err)
	t.Cleanup(control.Shutdown)

	reader := &countingDayReader{controller: control}
	engine := valuation.NewEngine(store, store, 2)
	svc := NewPublicService(reader, engine, ttl, config.PublicConfig{
		DayCacheTTL:         time.Minute,
		LeaderboardCacheTTL: 5 * time.Minute,
		LeaderboardLimit:    10,
	})
	return &fixture{store: store, day: reader, control: control, svc: svc}
}

func TestCurrentDayIsCachedUntilTransition(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	snap, err := f.svc.CurrentDay(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, snap.CurrentDay)
	assert.Equal(t, "not_started", snap.State)

	_, err = f.svc.CurrentDay(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, f.day.calls)

	_, err = f.control.Start(ctx)
	require.NoError(t, err)

	snap, err = f.svc.CurrentDay(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, snap.CurrentDay, "a transition drops the cached snapshot")
	assert.Equal(t, 2, f.day.calls)
}

func TestTransitionDuringReadIsNotCached(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	_, err := f.control.Start(ctx)
	require.NoError(t, err)

	f.day.afterRead = func(ctx context.Context) {
		_, err := f.control.Advance(ctx)
		require.NoError(t, err)
	}
	snap, err := f.svc.CurrentDay(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, snap.CurrentDay)

	snap, err = f.svc.CurrentDay(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, snap.CurrentDay, "the day read before the advance must not outlive it")

	f.day.afterRead = func(ctx context.Context) {
		_, err := f.control.Advance(ctx)
		require.NoError(t, err)
	}
	// drops the cached day so the leaderboard reads storage
	_, err = f.control.Advance(ctx)
	require.NoError(t, err)
	board, err := f.svc.Leaderboard(ctx, 0)
	require.NoError(t, err)
	assert.Equal(t, 3, board.Day)
	_, ok := f.svc.cache.Get(cache.LeaderboardKey(10))
	assert.False(t, ok)

	board, err = f.svc.Leaderboard(ctx, 0)
	require.NoError(t, err)
	assert.Equal(t, 4, board.Day)
}

func TestLeaderboardCachedPerLimit(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	a := f.store.AddParticipant("alpha", decimal.NewFromInt(1000))
	f.store.AddParticipant("bravo", decimal.NewFromInt(1000))
	f.store.SetPrice(1, 1, decimal.NewFromInt(10))
	f.store.SetPrice(1, 2, decimal.NewFromInt(20))
	f.store.SetCash(a.ID, decimal.NewFromInt(900))
	f.store.SetHolding(a.ID, 1, 10, decimal.NewFromInt(10))

	_, err := f.control.Start(ctx)
	require.NoError(t, err)

	board, err := f.svc.Leaderboard(ctx, 0)
	require.NoError(t, err)
	assert.Equal(t, 1, board.Day)
	assert.Equal(t, 2, board.Total)
	assert.Equal(t, "alpha", board.Entries[0].TeamLabel)
	assert.Equal(t, 1000.0, board.Entries[0].PortfolioValue)
	assert.Equal(t, "bravo", board.Entries[1].TeamLabel, "tie keeps participant order")

	f.store.SetCash(a.ID, decimal.NewFromInt(0))
	cached, err := f.svc.Leaderboard(ctx, 0)
	require.NoError(t, err)
	assert.Same(t, board, cached)

	_, err = f.control.Advance(ctx)
	require.NoError(t, err)
	board, err = f.svc.Leaderboard(ctx, 0)
	require.NoError(t, err)
	assert.Equal(t, 2, board.Day)
	assert.Equal(t, "bravo", board.Entries[0].TeamLabel)
	assert.Equal(t, 200.0, board.Entries[1].PortfolioValue)

	one, err := f.svc.Leaderboard(ctx, 1)
	require.NoError(t, err)
	assert.Len(t, one.Entries, 1)
	assert.Equal(t, 2, one.Total)
}

func TestLeaderboardLimitIsCapped(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	_, err := f.svc.Leaderboard(ctx, 5000)
	require.NoError(t, err)

	_, ok := f.svc.cache.Get(cache.LeaderboardKey(MaxLeaderboardLimit))
	assert.True(t, ok)
}

func TestPortfolioValuesAsOfCurrentDay(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	a := f.store.AddParticipant("alpha", decimal.NewFromInt(1000))
	f.store.SetPrice(3, 1, decimal.RequireFromString("12.345"))
	f.store.SetCash(a.ID, decimal.NewFromInt(500))
	f.store.SetHolding(a.ID, 3, 40, decimal.NewFromInt(12))
	f.store.SetHolding(a.ID, 9, 5, decimal.NewFromInt(7))

	_, err := f.control.Start(ctx)
	require.NoError(t, err)

	p, err := f.svc.Portfolio(ctx, a.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, p.Day)
	assert.Equal(t, 493.8, p.HoldingsValue)
	assert.Equal(t, 993.8, p.TotalValue)
	assert.Equal(t, -0.62, p.ReturnPercentage)
	require.Len(t, p.Holdings, 2)
	assert.False(t, p.Holdings[1].HasPrice)

	_, err = f.svc.Portfolio(ctx, 404)
	assert.Error(t, err)
}
