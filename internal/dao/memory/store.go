package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"marketsimulator/internal/dao/daycontrol"
	"marketsimulator/internal/dao/market"
	"marketsimulator/internal/dao/portfolio"
	"marketsimulator/internal/models"

	"github.com/shopspring/decimal"
)

var (
	_ daycontrol.DayControlDAOInterface = (*Store)(nil)
	_ market.StockPriceDAOInterface     = (*Store)(nil)
	_ portfolio.PortfolioDAOInterface   = (*Store)(nil)
)

type state struct {
	dayControl   *models.DayControl
	events       []models.DayEvent
	prices       []models.StockPrice
	reports      []models.FinancialReport
	participants []models.Participant
	holdings     []models.PortfolioHolding
	transactions []models.Transaction
}

func (s *state) clone() *state {
	out := &state{
		dayControl:   s.dayControl.Clone(),
		events:       append([]models.DayEvent(nil), s.events...),
		prices:       append([]models.StockPrice(nil), s.prices...),
		reports:      append([]models.FinancialReport(nil), s.reports...),
		participants: append([]models.Participant(nil), s.participants...),
		holdings:     append([]models.PortfolioHolding(nil), s.holdings...),
		transactions: append([]models.Transaction(nil), s.transactions...),
	}
	return out
}

// Store keeps the whole simulation in process memory behind one lock. It
// implements every DAO contract, so a multi-table reset is applied to a copy
// and swapped in only when every step succeeded.
type Store struct {
	mu     sync.RWMutex
	data   *state
	nextID uint

	// ResetFault, when set, is consulted before each reset step; an error
	// aborts the reset.
	ResetFault func(step string) error
}

func NewStore() *Store {
	return &Store{data: &state{}, nextID: 1}
}

func (s *Store) id() uint {
	id := s.nextID
	s.nextID++
	return id
}

// Get reads the singleton row
func (s *Store) Get(_ context.Context) (*models.DayControl, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.data.dayControl == nil {
		return nil, daycontrol.ErrNotInitialized
	}
	return s.data.dayControl.Clone(), nil
}

func (s *Store) Update(_ context.Context, next *models.DayControl, event *models.DayEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	current := s.data.dayControl
	if current == nil {
		return daycontrol.ErrNotInitialized
	}
	if current.Version != next.Version {
		return daycontrol.ErrVersionConflict
	}

	stored := next.Clone()
	stored.ID = models.DayControlID
	stored.Version = current.Version + 1
	stored.CreatedAt = current.CreatedAt
	stored.UpdatedAt = time.Now()
	s.data.dayControl = stored

	if event != nil && event.ToDay > event.FromDay {
		s.data.publishThrough(event.ToDay)
	}
	if event != nil {
		s.data.appendEvent(event, s.id())
	}

	next.Version = stored.Version
	return nil
}

func (s *Store) Reset(_ context.Context, defaults *models.DayControl, event *models.DayEvent) (*models.DayControl, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	work := s.data.clone()
	steps := []struct {
		name string
		run  func()
	}{
		{"delete transactions", func() { work.transactions = nil }},
		{"delete holdings", func() { work.holdings = nil }},
		{"restore cash balances", func() {
			for i := range work.participants {
				work.participants[i].CashBalance = work.participants[i].StartingBalance
			}
		}},
		{"deactivate stock prices", func() {
			for i := range work.prices {
				work.prices[i].IsActive = false
			}
		}},
		{"hide financial reports", func() {
			for i := range work.reports {
				work.reports[i].IsAvailable = false
			}
		}},
		{"reset day control", func() {
			stored := defaults.Clone()
			stored.ID = models.DayControlID
			if work.dayControl != nil {
				stored.CreatedAt = work.dayControl.CreatedAt
			}
			work.dayControl = stored
		}},
		{"record reset event", func() {
			if event != nil {
				work.appendEvent(event, s.nextID)
			}
		}},
	}

	for _, step := range steps {
		if s.ResetFault != nil {
			if err := s.ResetFault(step.name); err != nil {
				return nil, fmt.Errorf("reset step %q failed: %w", step.name, err)
			}
		}
		step.run()
	}

	if event != nil {
		s.nextID++
	}
	s.data = work
	return defaults, nil
}

func (s *Store) EnsureSingleton(_ context.Context, defaults *models.DayControl) (*models.DayControl, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.data.dayControl == nil {
		seed := defaults.Clone()
		seed.ID = models.DayControlID
		seed.CreatedAt = time.Now()
		s.data.dayControl = seed
	}
	return s.data.dayControl.Clone(), nil
}

func (s *Store) RecentEvents(_ context.Context, limit int) ([]models.DayEvent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]models.DayEvent, 0, len(s.data.events))
	for i := len(s.data.events) - 1; i >= 0; i-- {
		if limit > 0 && len(out) == limit {
			break
		}
		out = append(out, s.data.events[i])
	}
	return out, nil
}

func (s *Store) PriceAsOf(_ context.Context, companyID uint, day int) (decimal.Decimal, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	price, ok := s.data.priceAsOf(companyID, day)
	return price, ok, nil
}

func (s *Store) PricesAsOf(_ context.Context, companyIDs []uint, day int) (map[uint]decimal.Decimal, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[uint]decimal.Decimal, len(companyIDs))
	for _, id := range companyIDs {
		if price, ok := s.data.priceAsOf(id, day); ok {
			out[id] = price
		}
	}
	return out, nil
}

func (s *Store) History(_ context.Context, companyID uint) ([]models.StockPrice, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []models.StockPrice
	for _, p := range s.data.prices {
		if p.CompanyID == companyID {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].DayNumber < out[j].DayNumber })
	return out, nil
}

func (s *Store) ListParticipants(_ context.Context) ([]models.Participant, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := append([]models.Participant(nil), s.data.participants...)
	sort.SliceStable(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *Store) GetParticipant(_ context.Context, userID uint) (*models.Participant, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, p := range s.data.participants {
		if p.ID == userID {
			out := p
			return &out, nil
		}
	}
	return nil, portfolio.ErrParticipantNotFound
}

func (s *Store) GetHoldings(_ context.Context, userID uint) ([]models.PortfolioHolding, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []models.PortfolioHolding
	for _, h := range s.data.holdings {
		if h.UserID == userID && h.Quantity > 0 {
			out = append(out, h)
		}
	}
	return out, nil
}

func (s *Store) ListHoldings(_ context.Context) ([]models.PortfolioHolding, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []models.PortfolioHolding
	for _, h := range s.data.holdings {
		if h.Quantity > 0 {
			out = append(out, h)
		}
	}
	return out, nil
}

// Seeding helpers for development mode and tests.

func (s *Store) AddParticipant(teamLabel string, startingBalance decimal.Decimal) models.Participant {
	s.mu.Lock()
	defer s.mu.Unlock()
	p := models.Participant{
		ID:              s.id(),
		TeamLabel:       teamLabel,
		CashBalance:     startingBalance,
		StartingBalance: startingBalance,
		CreatedAt:       time.Now(),
	}
	s.data.participants = append(s.data.participants, p)
	return p
}

// SetCash overrides a participant's cash balance.
func (s *Store) SetCash(userID uint, cash decimal.Decimal) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.data.participants {
		if s.data.participants[i].ID == userID {
			s.data.participants[i].CashBalance = cash
		}
	}
}

// SetHolding inserts or replaces the holding for (userID, companyID).
func (s *Store) SetHolding(userID, companyID uint, quantity int64, averageBuyPrice decimal.Decimal) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.data.holdings {
		h := &s.data.holdings[i]
		if h.UserID == userID && h.CompanyID == companyID {
			h.Quantity = quantity
			h.AverageBuyPrice = averageBuyPrice
			return
		}
	}
	s.data.holdings = append(s.data.holdings, models.PortfolioHolding{
		ID:              s.id(),
		UserID:          userID,
		CompanyID:       companyID,
		Quantity:        quantity,
		AverageBuyPrice: averageBuyPrice,
	})
}

// SetPrice inserts or replaces the price for (companyID, day).
func (s *Store) SetPrice(companyID uint, day int, price decimal.Decimal) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.data.prices {
		p := &s.data.prices[i]
		if p.CompanyID == companyID && p.DayNumber == day {
			p.Price = price
			return
		}
	}
	s.data.prices = append(s.data.prices, models.StockPrice{
		ID:        s.id(),
		CompanyID: companyID,
		DayNumber: day,
		Price:     price,
		CreatedAt: time.Now(),
	})
}

func (s *Store) AddReport(companyID uint, day int, title string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data.reports = append(s.data.reports, models.FinancialReport{
		ID:        s.id(),
		CompanyID: companyID,
		DayNumber: day,
		Title:     title,
		CreatedAt: time.Now(),
	})
}

func (s *Store) AddTransaction(tx models.Transaction) {
	s.mu.Lock()
	defer s.mu.Unlock()
	tx.ID = s.id()
	s.data.transactions = append(s.data.transactions, tx)
}

// Snapshot returns copies of the market and history tables.
func (s *Store) Snapshot() (prices []models.StockPrice, reports []models.FinancialReport, holdings []models.PortfolioHolding, transactions []models.Transaction, participants []models.Participant) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c := s.data.clone()
	return c.prices, c.reports, c.holdings, c.transactions, c.participants
}

func (st *state) priceAsOf(companyID uint, day int) (decimal.Decimal, bool) {
	best := -1
	var price decimal.Decimal
	for _, p := range st.prices {
		if p.CompanyID == companyID && p.DayNumber <= day && p.DayNumber > best {
			best = p.DayNumber
			price = p.Price
		}
	}
	return price, best >= 0
}

func (st *state) publishThrough(day int) {
	for i := range st.prices {
		if st.prices[i].DayNumber <= day {
			st.prices[i].IsActive = true
		}
	}
	for i := range st.reports {
		if st.reports[i].DayNumber <= day {
			st.reports[i].IsAvailable = true
		}
	}
}

func (st *state) appendEvent(event *models.DayEvent, id uint) {
	event.ID = id
	if event.CreatedAt.IsZero() {
		event.CreatedAt = time.Now()
	}
	st.events = append(st.events, *event)
}
