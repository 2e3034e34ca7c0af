package valuation

import (
	"context"
	"fmt"

	marketDAO "marketsimulator/internal/dao/market"
	portfolioDAO "marketsimulator/internal/dao/portfolio"
	"marketsimulator/internal/models"

	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"
)

var hundred = decimal.NewFromInt(100)

// HoldingValue is one position priced as of the valuation day.
type HoldingValue struct {
	CompanyID       uint
	Quantity        int64
	AverageBuyPrice decimal.Decimal
	// Price is zero and PriceFound false when the company has no price yet.
	Price         decimal.Decimal
	PriceFound    bool
	MarketValue   decimal.Decimal
	UnrealizedPnL decimal.Decimal
}

// Valuation keeps full precision; round only when presenting it.
type Valuation struct {
	UserID           uint
	TeamLabel        string
	Day              int
	CashBalance      decimal.Decimal
	StartingBalance  decimal.Decimal
	HoldingsValue    decimal.Decimal
	TotalValue       decimal.Decimal
	ReturnPercentage decimal.Decimal
	Holdings         []HoldingValue
}

// ResolvePriceAsOf picks the price with the greatest day number not after
// day. history may be in any order.
func ResolvePriceAsOf(history []models.StockPrice, day int) (decimal.Decimal, bool) {
	best := -1
	price := decimal.Zero
	for _, p := range history {
		if p.DayNumber <= day && p.DayNumber > best {
			best = p.DayNumber
			price = p.Price
		}
	}
	return price, best >= 0
}

// ReturnPercentage is the gain over the starting balance in percent, or zero
// when there is no positive starting balance.
func ReturnPercentage(total, starting decimal.Decimal) decimal.Decimal {
	if !starting.IsPositive() {
		return decimal.Zero
	}
	return total.Sub(starting).Div(starting).Mul(hundred)
}

// Value prices one participant's holdings. Companies missing from prices are
// valued at zero.
func Value(participant models.Participant, holdings []models.PortfolioHolding, prices map[uint]decimal.Decimal, day int) Valuation {
	v := Valuation{
		UserID:          participant.ID,
		TeamLabel:       participant.TeamLabel,
		Day:             day,
		CashBalance:     participant.CashBalance,
		StartingBalance: participant.StartingBalance,
		HoldingsValue:   decimal.Zero,
		Holdings:        make([]HoldingValue, 0, len(holdings)),
	}

	for _, h := range holdings {
		price, found := prices[h.CompanyID]
		qty := decimal.NewFromInt(h.Quantity)
		marketValue := qty.Mul(price)
		v.Holdings = append(v.Holdings, HoldingValue{
			CompanyID:       h.CompanyID,
			Quantity:        h.Quantity,
			AverageBuyPrice: h.AverageBuyPrice,
			Price:           price,
			PriceFound:      found,
			MarketValue:     marketValue,
			UnrealizedPnL:   marketValue.Sub(qty.Mul(h.AverageBuyPrice)),
		})
		v.HoldingsValue = v.HoldingsValue.Add(marketValue)
	}

	v.TotalValue = v.CashBalance.Add(v.HoldingsValue)
	v.ReturnPercentage = ReturnPercentage(v.TotalValue, v.StartingBalance)
	return v
}

// Engine values participants against the stored prices and holdings. It only
// reads.
type Engine struct {
	prices     marketDAO.StockPriceDAOInterface
	portfolios portfolioDAO.PortfolioDAOInterface
	workers    int
}

func NewEngine(prices marketDAO.StockPriceDAOInterface, portfolios portfolioDAO.PortfolioDAOInterface, workers int) *Engine {
	if workers <= 0 {
		workers = 1
	}
	return &Engine{
		prices:     prices,
		portfolios: portfolios,
		workers:    workers,
	}
}

// ValueOf values one participant as of day.
func (e *Engine) ValueOf(ctx context.Context, userID uint, day int) (*Valuation, error) {
	participant, err := e.portfolios.GetParticipant(ctx, userID)
	if err != nil {
		return nil, err
	}
	v, err := e.valueParticipant(ctx, *participant, day)
	if err != nil {
		return nil, err
	}
	return &v, nil
}

// ValueAll values every participant, in participant enumeration order.
// Participants are valued concurrently and independently.
func (e *Engine) ValueAll(ctx context.Context, day int) ([]Valuation, error) {
	participants, err := e.portfolios.ListParticipants(ctx)
	if err != nil {
		return nil, err
	}

	out := make([]Valuation, len(participants))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.workers)
	for i := range participants {
		i := i
		g.Go(func() error {
			v, err := e.valueParticipant(gctx, participants[i], day)
			if err != nil {
				return err
			}
			out[i] = v
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

func (e *Engine) valueParticipant(ctx context.Context, participant models.Participant, day int) (Valuation, error) {
	holdings, err := e.portfolios.GetHoldings(ctx, participant.ID)
	if err != nil {
		return Valuation{}, fmt.Errorf("failed to value participant %d: %w", participant.ID, err)
	}

	companyIDs := make([]uint, 0, len(holdings))
	for _, h := range holdings {
		companyIDs = append(companyIDs, h.CompanyID)
	}
	prices, err := e.prices.PricesAsOf(ctx, companyIDs, day)
	if err != nil {
		return Valuation{}, fmt.Errorf("failed to value participant %d: %w", participant.ID, err)
	}

	return Value(participant, holdings, prices, day), nil
}

// Leaderboard values everyone as of day and ranks them.
func (e *Engine) Leaderboard(ctx context.Context, day, limit int) (*Leaderboard, error) {
	valuations, err := e.ValueAll(ctx, day)
	if err != nil {
		return nil, err
	}
	board := Build(valuations, limit)
	board.Day = day
	return &board, nil
}
