package token

import (
	"context"
	"errors"
	"strings"

	"github.com/Jainex17/CoinPlay/internal/models"
	"gorm.io/gorm"
)

// TokenRepository defines the read operations on tokens
type TokenRepository interface {
	GetBySymbol(ctx context.Context, symbol string) (*models.Token, error)
	List(ctx context.Context, limit, offset int) ([]*models.Token, error)
	Search(ctx context.Context, query string, limit, offset int) ([]*models.Token, error)
	ListByCreator(ctx context.Context, creatorID uint, limit, offset int) ([]*models.Token, error)
	HolderCount(ctx context.Context, tokenID uint) (int64, error)
}

// tokenRepository implements TokenRepository interface
type tokenRepository struct {
	db *gorm.DB
}

// NewTokenRepository creates a new token repository instance
func NewTokenRepository(db *gorm.DB) TokenRepository {
	return &tokenRepository{db: db}
}

// GetBySymbol retrieves a token by symbol, ignoring case
func (r *tokenRepository) GetBySymbol(ctx context.Context, symbol string) (*models.Token, error) {
	if strings.TrimSpace(symbol) == "" {
		return nil, errors.New("symbol cannot be empty")
	}

	var token models.Token
	err := r.db.WithContext(ctx).Where("symbol = ?", strings.ToUpper(strings.TrimSpace(symbol))).First(&token).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &token, nil
}

// List retrieves tokens with pagination, newest first
func (r *tokenRepository) List(ctx context.Context, limit, offset int) ([]*models.Token, error) {
	var tokens []*models.Token
	err := r.db.WithContext(ctx).Order("created_at DESC, id DESC").
		Limit(limit).Offset(offset).Find(&tokens).Error
	return tokens, err
}

// Search searches tokens by name or symbol
func (r *tokenRepository) Search(ctx context.Context, query string, limit, offset int) ([]*models.Token, error) {
	if strings.TrimSpace(query) == "" {
		return []*models.Token{}, nil
	}

	var tokens []*models.Token
	searchPattern := "%" + strings.ToLower(strings.TrimSpace(query)) + "%"
	err := r.db.WithContext(ctx).Where("LOWER(name) LIKE ? OR LOWER(symbol) LIKE ?", searchPattern, searchPattern).
		Order("created_at DESC, id DESC").
		Limit(limit).Offset(offset).Find(&tokens).Error
	return tokens, err
}

// ListByCreator retrieves the tokens an account created
func (r *tokenRepository) ListByCreator(ctx context.Context, creatorID uint, limit, offset int) ([]*models.Token, error) {
	if creatorID == 0 {
		return nil, errors.New("creatorID cannot be zero")
	}

	var tokens []*models.Token
	err := r.db.WithContext(ctx).Where("creator_id = ?", creatorID).
		Order("created_at DESC, id DESC").
		Limit(limit).Offset(offset).Find(&tokens).Error
	return tokens, err
}

// HolderCount counts accounts with a positive holding of the token
func (r *tokenRepository) HolderCount(ctx context.Context, tokenID uint) (int64, error) {
	if tokenID == 0 {
		return 0, errors.New("tokenID cannot be zero")
	}

	var count int64
	err := r.db.WithContext(ctx).Model(&models.Holding{}).
		Where("token_id = ? AND amount > 0", tokenID).
		Count(&count).Error
	return count, err
}
