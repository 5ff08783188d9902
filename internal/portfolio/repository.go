package portfolio

import (
	"context"
	"errors"

	"github.com/Jainex17/CoinPlay/internal/models"
	"gorm.io/gorm"
)

// HoldingRepository reads positions
type HoldingRepository interface {
	ListByAccount(ctx context.Context, accountID uint) ([]*models.Holding, error)
	ListByToken(ctx context.Context, tokenID uint, limit, offset int) ([]*models.Holding, error)
}

// holdingRepository implements HoldingRepository interface
type holdingRepository struct {
	db *gorm.DB
}

// NewHoldingRepository creates a new holding repository
func NewHoldingRepository(db *gorm.DB) HoldingRepository {
	return &holdingRepository{db: db}
}

// ListByAccount retrieves an account's non-empty holdings, largest first
func (r *holdingRepository) ListByAccount(ctx context.Context, accountID uint) ([]*models.Holding, error) {
	if accountID == 0 {
		return nil, errors.New("accountID cannot be zero")
	}

	var holdings []*models.Holding
	err := r.db.WithContext(ctx).Preload("Token").
		Where("account_id = ? AND amount > 0", accountID).
		Order("amount DESC, id ASC").Find(&holdings).Error
	return holdings, err
}

// ListByToken retrieves a token's holders, largest first
func (r *holdingRepository) ListByToken(ctx context.Context, tokenID uint, limit, offset int) ([]*models.Holding, error) {
	if tokenID == 0 {
		return nil, errors.New("tokenID cannot be zero")
	}

	var holdings []*models.Holding
	err := r.db.WithContext(ctx).Preload("Account").
		Where("token_id = ? AND amount > 0", tokenID).
		Order("amount DESC, id ASC").Limit(limit).Offset(offset).Find(&holdings).Error
	return holdings, err
}
