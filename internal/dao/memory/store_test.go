package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"marketsimulator/internal/dao/daycontrol"
	"marketsimulator/internal/dao/portfolio"
	"marketsimulator/internal/models"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func seeded(t *testing.T) *Store {
	t.Helper()
	s := NewStore()
	_, err := s.EnsureSingleton(context.Background(), &models.DayControl{TotalDays: 5, LastDayChange: time.Now()})
	require.NoError(t, err)
	return s
}

func TestGetBeforeSingleton(t *testing.T) {
	_, err := NewStore().Get(context.Background())
	assert.True(t, errors.Is(err, daycontrol.ErrNotInitialized))
}

func TestEnsureSingletonKeepsExistingRow(t *testing.T) {
	ctx := context.Background()
	s := seeded(t)

	dc, err := s.EnsureSingleton(ctx, &models.DayControl{TotalDays: 99})
	require.NoError(t, err)
	assert.Equal(t, 5, dc.TotalDays)
	assert.Equal(t, models.DayControlID, dc.ID)
}

func TestUpdateChecksVersion(t *testing.T) {
	ctx := context.Background()
	s := seeded(t)

	first, err := s.Get(ctx)
	require.NoError(t, err)
	stale := first.Clone()

	first.CurrentDay = 1
	require.NoError(t, s.Update(ctx, first, nil))
	assert.Equal(t, int64(1), first.Version, "caller sees the stored version")

	stale.CurrentDay = 2
	err = s.Update(ctx, stale, nil)
	assert.True(t, errors.Is(err, daycontrol.ErrVersionConflict))

	got, err := s.Get(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, got.CurrentDay)
}

func TestAdvancePublishesThroughNewDay(t *testing.T) {
	ctx := context.Background()
	s := seeded(t)
	s.SetPrice(1, 1, decimal.NewFromInt(10))
	s.SetPrice(1, 2, decimal.NewFromInt(11))
	s.SetPrice(1, 3, decimal.NewFromInt(12))
	s.AddReport(1, 2, "Q2")

	dc, err := s.Get(ctx)
	require.NoError(t, err)
	dc.CurrentDay = 2
	require.NoError(t, s.Update(ctx, dc, &models.DayEvent{Kind: models.DayEventAdvance, FromDay: 0, ToDay: 2}))

	prices, reports, _, _, _ := s.Snapshot()
	for _, p := range prices {
		assert.Equal(t, p.DayNumber <= 2, p.IsActive, "day %d", p.DayNumber)
	}
	assert.True(t, reports[0].IsAvailable)

	events, err := s.RecentEvents(ctx, 0)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.NotZero(t, events[0].ID)
}

func TestResetCascade(t *testing.T) {
	ctx := context.Background()
	s := seeded(t)
	p := s.AddParticipant("alpha", decimal.NewFromInt(1000))
	s.SetCash(p.ID, decimal.NewFromInt(400))
	s.SetHolding(p.ID, 1, 10, decimal.NewFromInt(60))
	s.SetPrice(1, 1, decimal.NewFromInt(60))
	s.AddReport(1, 1, "Q1")
	s.AddTransaction(models.Transaction{UserID: p.ID, CompanyID: 1, Quantity: 10})

	dc, err := s.Get(ctx)
	require.NoError(t, err)
	dc.CurrentDay = 1
	require.NoError(t, s.Update(ctx, dc, &models.DayEvent{Kind: models.DayEventStart, ToDay: 1}))

	stored, err := s.Reset(ctx, &models.DayControl{TotalDays: 5}, &models.DayEvent{Kind: models.DayEventReset, FromDay: 1})
	require.NoError(t, err)
	assert.Equal(t, 0, stored.CurrentDay)

	prices, reports, holdings, transactions, participants := s.Snapshot()
	assert.Empty(t, holdings)
	assert.Empty(t, transactions)
	assert.True(t, participants[0].CashBalance.Equal(decimal.NewFromInt(1000)))
	assert.False(t, prices[0].IsActive)
	assert.False(t, reports[0].IsAvailable)

	events, err := s.RecentEvents(ctx, 0)
	require.NoError(t, err)
	require.Len(t, events, 2, "reset keeps the log")
	assert.Equal(t, models.DayEventReset, events[0].Kind)
}

func TestResetFailureChangesNothing(t *testing.T) {
	ctx := context.Background()
	s := seeded(t)
	p := s.AddParticipant("alpha", decimal.NewFromInt(1000))
	s.SetCash(p.ID, decimal.NewFromInt(400))
	s.SetHolding(p.ID, 1, 10, decimal.NewFromInt(60))
	s.ResetFault = func(step string) error {
		if step == "hide financial reports" {
			return errors.New("disk full")
		}
		return nil
	}

	_, err := s.Reset(ctx, &models.DayControl{TotalDays: 5}, &models.DayEvent{Kind: models.DayEventReset})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "hide financial reports")

	_, _, holdings, _, participants := s.Snapshot()
	assert.Len(t, holdings, 1)
	assert.True(t, participants[0].CashBalance.Equal(decimal.NewFromInt(400)))
	events, err := s.RecentEvents(ctx, 0)
	require.NoError(t, err)
	assert.Empty(t, events)
}

func TestPortfolioReads(t *testing.T) {
	ctx := context.Background()
	s := NewStore()
	a := s.AddParticipant("alpha", decimal.NewFromInt(1000))
	s.SetHolding(a.ID, 1, 10, decimal.NewFromInt(5))
	s.SetHolding(a.ID, 2, 0, decimal.NewFromInt(5))
	s.SetPrice(1, 1, decimal.NewFromInt(7))
	s.SetPrice(1, 4, decimal.NewFromInt(9))

	holdings, err := s.GetHoldings(ctx, a.ID)
	require.NoError(t, err)
	assert.Len(t, holdings, 1, "empty positions are skipped")

	_, err = s.GetParticipant(ctx, 42)
	assert.True(t, errors.Is(err, portfolio.ErrParticipantNotFound))

	prices, err := s.PricesAsOf(ctx, []uint{1, 2}, 3)
	require.NoError(t, err)
	assert.True(t, prices[1].Equal(decimal.NewFromInt(7)))
	_, ok := prices[2]
	assert.False(t, ok)
}
