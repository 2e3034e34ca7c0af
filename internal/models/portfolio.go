package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Participant is a trading team. Teams are enumerated in ID order, which is
// the stable order the leaderboard preserves for ties.
type Participant struct {
	ID              uint            `json:"id" gorm:"primaryKey"`
	TeamLabel       string          `json:"teamLabel" gorm:"not null;uniqueIndex"`
	CashBalance     decimal.Decimal `json:"cashBalance" gorm:"type:numeric(20,4);not null"`
	StartingBalance decimal.Decimal `json:"startingBalance" gorm:"type:numeric(20,4);not null"`
	CreatedAt       time.Time       `json:"createdAt"`
	UpdatedAt       time.Time       `json:"updatedAt"`
}

func (Participant) TableName() string {
	return "participants"
}

type PortfolioHolding struct {
	ID              uint            `json:"id" gorm:"primaryKey"`
	UserID          uint            `json:"userId" gorm:"not null;uniqueIndex:idx_holdings_user_company"`
	CompanyID       uint            `json:"companyId" gorm:"not null;uniqueIndex:idx_holdings_user_company"`
	Quantity        int64           `json:"quantity" gorm:"not null;default:0"`
	AverageBuyPrice decimal.Decimal `json:"averageBuyPrice" gorm:"type:numeric(20,4);not null"`
	UpdatedAt       time.Time       `json:"updatedAt"`
}

func (PortfolioHolding) TableName() string {
	return "portfolio_holdings"
}

type TransactionType string

const (
	TransactionBuy  TransactionType = "buy"
	TransactionSell TransactionType = "sell"
)

// Transaction is settled trade history. It is only cleared here, by reset.
type Transaction struct {
	ID        uint            `json:"id" gorm:"primaryKey"`
	UserID    uint            `json:"userId" gorm:"not null;index"`
	CompanyID uint            `json:"companyId" gorm:"not null;index"`
	Type      TransactionType `json:"type" gorm:"not null"`
	Quantity  int64           `json:"quantity" gorm:"not null"`
	Price     decimal.Decimal `json:"price" gorm:"type:numeric(20,4);not null"`
	DayNumber int             `json:"dayNumber" gorm:"not null"`
	CreatedAt time.Time       `json:"createdAt"`
}

func (Transaction) TableName() string {
	return "transactions"
}
