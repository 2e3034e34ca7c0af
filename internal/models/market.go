package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// StockPrice is the admin-entered price of a company for one simulated day.
type StockPrice struct {
	ID        uint            `json:"id" gorm:"primaryKey"`
	CompanyID uint            `json:"companyId" gorm:"not null;uniqueIndex:idx_stock_prices_company_day"`
	DayNumber int             `json:"dayNumber" gorm:"not null;uniqueIndex:idx_stock_prices_company_day"`
	Price     decimal.Decimal `json:"price" gorm:"type:numeric(20,4);not null"`
	IsActive  bool            `json:"isActive" gorm:"not null;default:false"`
	CreatedAt time.Time       `json:"createdAt"`
}

func (StockPrice) TableName() string {
	return "stock_prices"
}

// FinancialReport becomes available to participants once its day is reached.
type FinancialReport struct {
	ID          uint      `json:"id" gorm:"primaryKey"`
	CompanyID   uint      `json:"companyId" gorm:"not null;index"`
	DayNumber   int       `json:"dayNumber" gorm:"not null;index"`
	Title       string    `json:"title" gorm:"not null"`
	IsAvailable bool      `json:"isAvailable" gorm:"not null;default:false"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

func (FinancialReport) TableName() string {
	return "financial_reports"
}
