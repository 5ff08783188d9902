// Package token lists user-created tokens and reports their market data.
// Creation charges a fee and seeds the token's pool in one unit of work.
package token

import (
	"context"
	"time"

	"github.com/Jainex17/CoinPlay/internal/ledger"
	"github.com/Jainex17/CoinPlay/internal/metrics"
	"github.com/Jainex17/CoinPlay/internal/models"
	"github.com/Jainex17/CoinPlay/internal/pricing"
	"github.com/Jainex17/CoinPlay/internal/transaction"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

const (
	marketWindow   = 24 * time.Hour
	maxHistorySpan = 30 * 24 * time.Hour
)

// Market is a token's current price and trailing 24h activity.
type Market struct {
	Token     *models.Token   `json:"token"`
	Price     decimal.Decimal `json:"price"`
	Volume24h int64           `json:"volume_24h"`
	Change24h decimal.Decimal `json:"change_24h"`
	Holders   int64           `json:"holders"`
	MarketCap decimal.Decimal `json:"market_cap"`
}

// Service defines token service operations
type Service interface {
	CreateToken(ctx context.Context, req CreateTokenRequest, creatorID uint) (*models.Token, error)
	GetToken(ctx context.Context, symbol string) (*models.Token, error)
	ListTokens(ctx context.Context, limit, offset int) ([]*models.Token, error)
	SearchTokens(ctx context.Context, query string, limit, offset int) ([]*models.Token, error)
	ListByCreator(ctx context.Context, creatorID uint, limit, offset int) ([]*models.Token, error)
	GetMarket(ctx context.Context, symbol string) (*Market, error)
	PriceHistory(ctx context.Context, symbol string, span time.Duration, limit int) ([]transaction.PricePoint, error)
	RecentTrades(ctx context.Context, symbol string, limit, offset int) ([]*models.Transaction, error)
}

type service struct {
	store        ledger.Store
	repo         TokenRepository
	transactions transaction.TransactionRepository
	cfg          Config
	metrics      *metrics.Metrics
	log          logrus.FieldLogger
	now          func() time.Time
}

// NewService creates a new token service. m may be nil.
func NewService(store ledger.Store, repo TokenRepository, transactions transaction.TransactionRepository, cfg Config, m *metrics.Metrics, log logrus.FieldLogger) Service {
	return &service{
		store:        store,
		repo:         repo,
		transactions: transactions,
		cfg:          cfg,
		metrics:      m,
		log:          log,
		now:          time.Now,
	}
}

func (s *service) GetToken(ctx context.Context, symbol string) (*models.Token, error) {
	return s.store.GetToken(ctx, symbol)
}

func (s *service) ListTokens(ctx context.Context, limit, offset int) ([]*models.Token, error) {
	limit, offset = page(limit, offset)
	tokens, err := s.repo.List(ctx, limit, offset)
	return tokens, ledger.Classify(err)
}

func (s *service) SearchTokens(ctx context.Context, query string, limit, offset int) ([]*models.Token, error) {
	limit, offset = page(limit, offset)
	tokens, err := s.repo.Search(ctx, query, limit, offset)
	return tokens, ledger.Classify(err)
}

func (s *service) ListByCreator(ctx context.Context, creatorID uint, limit, offset int) ([]*models.Token, error) {
	if creatorID == 0 {
		return nil, ledger.Fail(ledger.ErrValidation, "creator id cannot be zero")
	}
	limit, offset = page(limit, offset)
	tokens, err := s.repo.ListByCreator(ctx, creatorID, limit, offset)
	return tokens, ledger.Classify(err)
}

// GetMarket reports the spot price, 24h volume and price change, holder
// count and market cap. An exhausted pool reports a zero price.
func (s *service) GetMarket(ctx context.Context, symbol string) (*Market, error) {
	token, err := s.store.GetToken(ctx, symbol)
	if err != nil {
		return nil, err
	}

	since := s.now().Add(-marketWindow)
	volume, err := s.transactions.Volume(ctx, token.ID, since)
	if err != nil {
		return nil, ledger.Classify(err)
	}
	open, traded, err := s.transactions.FirstPriceSince(ctx, token.ID, since)
	if err != nil {
		return nil, ledger.Classify(err)
	}
	holders, err := s.repo.HolderCount(ctx, token.ID)
	if err != nil {
		return nil, ledger.Classify(err)
	}

	price, err := pricing.Pool{TokenReserve: token.TokenReserve, BaseReserve: token.BaseReserve}.Price()
	if err != nil {
		price = decimal.Zero
	}
	return &Market{
		Token:     token,
		Price:     price,
		Volume24h: volume,
		Change24h: percentChange(open, price, traded),
		Holders:   holders,
		MarketCap: price.Mul(decimal.NewFromInt(token.CirculatingSupply)),
	}, nil
}

// PriceHistory returns executed prices over the trailing span, oldest first.
func (s *service) PriceHistory(ctx context.Context, symbol string, span time.Duration, limit int) ([]transaction.PricePoint, error) {
	if span <= 0 || span > maxHistorySpan {
		return nil, ledger.Fail(ledger.ErrValidation, "history span must be positive and at most %s", maxHistorySpan)
	}
	token, err := s.store.GetToken(ctx, symbol)
	if err != nil {
		return nil, err
	}
	points, err := s.transactions.PriceHistory(ctx, token.ID, s.now().Add(-span), limit)
	return points, ledger.Classify(err)
}

// RecentTrades returns a token's trades, newest first.
func (s *service) RecentTrades(ctx context.Context, symbol string, limit, offset int) ([]*models.Transaction, error) {
	token, err := s.store.GetToken(ctx, symbol)
	if err != nil {
		return nil, err
	}
	limit, offset = page(limit, offset)
	trades, err := s.transactions.ListByToken(ctx, token.ID, limit, offset)
	return trades, ledger.Classify(err)
}

// percentChange is the move from open to current in percent, rounded to
// two places. No trades in the window means no change.
func percentChange(open, current decimal.Decimal, traded bool) decimal.Decimal {
	if !traded || open.IsZero() {
		return decimal.Zero
	}
	return current.Sub(open).Div(open).Mul(decimal.NewFromInt(100)).Round(2)
}

func page(limit, offset int) (int, int) {
	if limit <= 0 {
		limit = 10
	}
	if limit > 100 {
		limit = 100
	}
	if offset < 0 {
		offset = 0
	}
	return limit, offset
}
