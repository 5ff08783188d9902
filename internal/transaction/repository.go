package transaction

import (
	"context"
	"errors"
	"time"

	"github.com/Jainex17/CoinPlay/internal/models"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// PricePoint is the executed price of one trade.
type PricePoint struct {
	Price     decimal.Decimal  `json:"price"`
	Direction models.Direction `json:"direction"`
	Amount    int64            `json:"amount"`
	CreatedAt time.Time        `json:"created_at"`
}

// TransactionRepository reads the append-only trade log
type TransactionRepository interface {
	GetByReference(ctx context.Context, reference string) (*models.Transaction, error)
	ListByToken(ctx context.Context, tokenID uint, limit, offset int) ([]*models.Transaction, error)
	ListByAccount(ctx context.Context, accountID uint, limit, offset int) ([]*models.Transaction, error)
	PriceHistory(ctx context.Context, tokenID uint, since time.Time, limit int) ([]PricePoint, error)
	Volume(ctx context.Context, tokenID uint, since time.Time) (int64, error)
	FirstPriceSince(ctx context.Context, tokenID uint, since time.Time) (decimal.Decimal, bool, error)
	TotalSpent(ctx context.Context, accountID, tokenID uint) (int64, error)
}

// transactionRepository implements TransactionRepository interface
type transactionRepository struct {
	db *gorm.DB
}

// NewTransactionRepository creates a new transaction repository
func NewTransactionRepository(db *gorm.DB) TransactionRepository {
	return &transactionRepository{db: db}
}

// GetByReference retrieves a transaction by its reference
func (r *transactionRepository) GetByReference(ctx context.Context, reference string) (*models.Transaction, error) {
	if reference == "" {
		return nil, errors.New("reference cannot be empty")
	}

	var transaction models.Transaction
	err := r.db.WithContext(ctx).Preload("Token").Where("reference = ?", reference).First(&transaction).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &transaction, nil
}

// ListByToken retrieves a token's trades, newest first
func (r *transactionRepository) ListByToken(ctx context.Context, tokenID uint, limit, offset int) ([]*models.Transaction, error) {
	if tokenID == 0 {
		return nil, errors.New("tokenID cannot be zero")
	}

	var transactions []*models.Transaction
	err := r.db.WithContext(ctx).Where("token_id = ?", tokenID).
		Order("created_at DESC, id DESC").Limit(limit).Offset(offset).Find(&transactions).Error
	return transactions, err
}

// ListByAccount retrieves an account's trades, newest first
func (r *transactionRepository) ListByAccount(ctx context.Context, accountID uint, limit, offset int) ([]*models.Transaction, error) {
	if accountID == 0 {
		return nil, errors.New("accountID cannot be zero")
	}

	var transactions []*models.Transaction
	err := r.db.WithContext(ctx).Preload("Token").Where("account_id = ?", accountID).
		Order("created_at DESC, id DESC").Limit(limit).Offset(offset).Find(&transactions).Error
	return transactions, err
}

// PriceHistory returns executed prices since the given time, oldest first.
// A non-positive limit returns every point.
func (r *transactionRepository) PriceHistory(ctx context.Context, tokenID uint, since time.Time, limit int) ([]PricePoint, error) {
	if tokenID == 0 {
		return nil, errors.New("tokenID cannot be zero")
	}

	query := r.db.WithContext(ctx).Model(&models.Transaction{}).
		Select("price_per_unit AS price, direction, amount, created_at").
		Where("token_id = ? AND created_at >= ?", tokenID, since).
		Order("created_at ASC, id ASC")
	if limit > 0 {
		query = query.Limit(limit)
	}

	var points []PricePoint
	err := query.Scan(&points).Error
	return points, err
}

// Volume sums the tokens traded since the given time
func (r *transactionRepository) Volume(ctx context.Context, tokenID uint, since time.Time) (int64, error) {
	if tokenID == 0 {
		return 0, errors.New("tokenID cannot be zero")
	}

	var volume int64
	err := r.db.WithContext(ctx).Model(&models.Transaction{}).
		Select("COALESCE(SUM(amount), 0)").
		Where("token_id = ? AND created_at >= ?", tokenID, since).
		Scan(&volume).Error
	return volume, err
}

// FirstPriceSince returns the earliest executed price in the window. ok is
// false when the token did not trade in it.
func (r *transactionRepository) FirstPriceSince(ctx context.Context, tokenID uint, since time.Time) (decimal.Decimal, bool, error) {
	if tokenID == 0 {
		return decimal.Zero, false, errors.New("tokenID cannot be zero")
	}

	var first models.Transaction
	err := r.db.WithContext(ctx).Where("token_id = ? AND created_at >= ?", tokenID, since).
		Order("created_at ASC, id ASC").First(&first).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return decimal.Zero, false, nil
		}
		return decimal.Zero, false, err
	}
	return first.PricePerUnit, true, nil
}

// TotalSpent sums what an account paid for a token across all its buys
func (r *transactionRepository) TotalSpent(ctx context.Context, accountID, tokenID uint) (int64, error) {
	if accountID == 0 || tokenID == 0 {
		return 0, errors.New("accountID and tokenID cannot be zero")
	}

	var spent int64
	err := r.db.WithContext(ctx).Model(&models.Transaction{}).
		Select("COALESCE(SUM(total), 0)").
		Where("account_id = ? AND token_id = ? AND direction = ?", accountID, tokenID, models.DirectionBuy).
		Scan(&spent).Error
	return spent, err
}
