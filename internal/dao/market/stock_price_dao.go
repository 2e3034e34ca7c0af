package market

import (
	"context"
	"errors"
	"fmt"

	"marketsimulator/internal/models"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// StockPriceDAOInterface resolves prices as of a simulated day: the row with
// the greatest day number not after the requested day.
type StockPriceDAOInterface interface {
	PriceAsOf(ctx context.Context, companyID uint, day int) (decimal.Decimal, bool, error)
	PricesAsOf(ctx context.Context, companyIDs []uint, day int) (map[uint]decimal.Decimal, error)
	History(ctx context.Context, companyID uint) ([]models.StockPrice, error)
}

// StockPriceDAO handles database operations for stock prices
type StockPriceDAO struct {
	db *gorm.DB
}

// NewStockPriceDAO creates a new stock price DAO instance
func NewStockPriceDAO(db *gorm.DB) StockPriceDAOInterface {
	return &StockPriceDAO{
		db: db,
	}
}

// PriceAsOf returns false when the company has no price at or before day
func (dao *StockPriceDAO) PriceAsOf(ctx context.Context, companyID uint, day int) (decimal.Decimal, bool, error) {
	var price models.StockPrice
	err := dao.db.WithContext(ctx).
		Where("company_id = ? AND day_number <= ?", companyID, day).
		Order("day_number DESC").
		Take(&price).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return decimal.Zero, false, nil
	}
	if err != nil {
		return decimal.Zero, false, fmt.Errorf("failed to get price as of day %d: %w", day, err)
	}
	return price.Price, true, nil
}

// PricesAsOf resolves many companies in one query. Companies without a price
// are absent from the result.
func (dao *StockPriceDAO) PricesAsOf(ctx context.Context, companyIDs []uint, day int) (map[uint]decimal.Decimal, error) {
	out := make(map[uint]decimal.Decimal, len(companyIDs))
	if len(companyIDs) == 0 || day <= 0 {
		return out, nil
	}

	var rows []struct {
		CompanyID uint
		Price     decimal.Decimal
	}
	err := dao.db.WithContext(ctx).Raw(`
		SELECT DISTINCT ON (company_id) company_id, price
		FROM stock_prices
		WHERE company_id IN ? AND day_number <= ?
		ORDER BY company_id, day_number DESC
	`, companyIDs, day).Scan(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("failed to get prices as of day %d: %w", day, err)
	}

	for _, row := range rows {
		out[row.CompanyID] = row.Price
	}
	return out, nil
}

// History returns every price of a company ordered by day
func (dao *StockPriceDAO) History(ctx context.Context, companyID uint) ([]models.StockPrice, error) {
	var prices []models.StockPrice
	if err := dao.db.WithContext(ctx).
		Where("company_id = ?", companyID).
		Order("day_number ASC").
		Find(&prices).Error; err != nil {
		return nil, fmt.Errorf("failed to get price history: %w", err)
	}
	return prices, nil
}
