package portfolio

import (
	"context"
	"errors"
	"fmt"

	"marketsimulator/internal/models"

	"gorm.io/gorm"
)

var ErrParticipantNotFound = errors.New("participant not found")

// PortfolioDAOInterface is the read side of participants and their holdings.
// Holdings are written only by trade settlement.
type PortfolioDAOInterface interface {
	ListParticipants(ctx context.Context) ([]models.Participant, error)
	GetParticipant(ctx context.Context, userID uint) (*models.Participant, error)
	GetHoldings(ctx context.Context, userID uint) ([]models.PortfolioHolding, error)
	ListHoldings(ctx context.Context) ([]models.PortfolioHolding, error)
}

// PortfolioDAO handles database operations for participants and holdings
type PortfolioDAO struct {
	db *gorm.DB
}

// NewPortfolioDAO creates a new portfolio DAO instance
func NewPortfolioDAO(db *gorm.DB) PortfolioDAOInterface {
	return &PortfolioDAO{
		db: db,
	}
}

// ListParticipants returns all participants in id order
func (dao *PortfolioDAO) ListParticipants(ctx context.Context) ([]models.Participant, error) {
	var participants []models.Participant
	if err := dao.db.WithContext(ctx).Order("id ASC").Find(&participants).Error; err != nil {
		return nil, fmt.Errorf("failed to list participants: %w", err)
	}
	return participants, nil
}

// GetParticipant retrieves a participant by id
func (dao *PortfolioDAO) GetParticipant(ctx context.Context, userID uint) (*models.Participant, error) {
	var participant models.Participant
	err := dao.db.WithContext(ctx).First(&participant, userID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrParticipantNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get participant: %w", err)
	}
	return &participant, nil
}

// GetHoldings gets the non-empty holdings of one participant
func (dao *PortfolioDAO) GetHoldings(ctx context.Context, userID uint) ([]models.PortfolioHolding, error) {
	var holdings []models.PortfolioHolding
	if err := dao.db.WithContext(ctx).
		Where("user_id = ? AND quantity > 0", userID).
		Order("company_id ASC").
		Find(&holdings).Error; err != nil {
		return nil, fmt.Errorf("failed to get holdings: %w", err)
	}
	return holdings, nil
}

// ListHoldings gets every non-empty holding, grouped by participant
func (dao *PortfolioDAO) ListHoldings(ctx context.Context) ([]models.PortfolioHolding, error) {
	var holdings []models.PortfolioHolding
	if err := dao.db.WithContext(ctx).
		Where("quantity > 0").
		Order("user_id ASC, company_id ASC").
		Find(&holdings).Error; err != nil {
		return nil, fmt.Errorf("failed to list holdings: %w", err)
	}
	return holdings, nil
}
