// Package portfolio values an account's holdings at current pool prices and
// lists who holds a token.
package portfolio

import (
	"context"

	"github.com/Jainex17/CoinPlay/internal/ledger"
	"github.com/Jainex17/CoinPlay/internal/models"
	"github.com/Jainex17/CoinPlay/internal/pricing"
	"github.com/Jainex17/CoinPlay/internal/transaction"
	"github.com/shopspring/decimal"
)

// Position is one holding valued at the pool's spot price.
type Position struct {
	TokenID      uint            `json:"token_id"`
	Symbol       string          `json:"symbol"`
	Name         string          `json:"name"`
	Amount       int64           `json:"amount"`
	CurrentPrice decimal.Decimal `json:"current_price"`
	Value        decimal.Decimal `json:"value"`
	TotalSpent   int64           `json:"total_spent"`
}

// Portfolio is an account's cash and positions.
type Portfolio struct {
	AccountID     uint            `json:"account_id"`
	Balance       int64           `json:"balance"`
	Positions     []Position      `json:"positions"`
	HoldingsValue decimal.Decimal `json:"holdings_value"`
	NetWorth      decimal.Decimal `json:"net_worth"`
}

// Holder is one account holding a token.
type Holder struct {
	AccountID  uint   `json:"account_id"`
	Username   string `json:"username"`
	Amount     int64  `json:"amount"`
	TotalSpent int64  `json:"total_spent"`
}

// Service defines portfolio operations
type Service interface {
	Holdings(ctx context.Context, accountID uint) (*Portfolio, error)
	Holders(ctx context.Context, symbol string, limit, offset int) ([]Holder, error)
	History(ctx context.Context, accountID uint, limit, offset int) ([]*models.Transaction, error)
}

type service struct {
	store        ledger.Store
	holdings     HoldingRepository
	transactions transaction.TransactionRepository
}

// NewService creates a new portfolio service
func NewService(store ledger.Store, holdings HoldingRepository, transactions transaction.TransactionRepository) Service {
	return &service{store: store, holdings: holdings, transactions: transactions}
}

// Holdings values every non-empty position, largest first. A token whose
// pool has no token reserve is valued at zero.
func (s *service) Holdings(ctx context.Context, accountID uint) (*Portfolio, error) {
	account, err := s.store.GetAccount(ctx, accountID)
	if err != nil {
		return nil, err
	}
	holdings, err := s.holdings.ListByAccount(ctx, accountID)
	if err != nil {
		return nil, ledger.Classify(err)
	}

	portfolio := &Portfolio{
		AccountID:     account.ID,
		Balance:       account.Balance,
		Positions:     make([]Position, 0, len(holdings)),
		HoldingsValue: decimal.Zero,
	}
	for _, h := range holdings {
		spent, err := s.transactions.TotalSpent(ctx, accountID, h.TokenID)
		if err != nil {
			return nil, ledger.Classify(err)
		}
		position := Position{
			TokenID:      h.TokenID,
			Amount:       h.Amount,
			CurrentPrice: decimal.Zero,
			TotalSpent:   spent,
		}
		if h.Token != nil {
			position.Symbol = h.Token.Symbol
			position.Name = h.Token.Name
			if price, err := (pricing.Pool{TokenReserve: h.Token.TokenReserve, BaseReserve: h.Token.BaseReserve}).Price(); err == nil {
				position.CurrentPrice = price
			}
		}
		position.Value = position.CurrentPrice.Mul(decimal.NewFromInt(h.Amount))
		portfolio.HoldingsValue = portfolio.HoldingsValue.Add(position.Value)
		portfolio.Positions = append(portfolio.Positions, position)
	}
	portfolio.NetWorth = portfolio.HoldingsValue.Add(decimal.NewFromInt(account.Balance))
	return portfolio, nil
}

// Holders lists accounts holding the token, largest first.
func (s *service) Holders(ctx context.Context, symbol string, limit, offset int) ([]Holder, error) {
	token, err := s.store.GetToken(ctx, symbol)
	if err != nil {
		return nil, err
	}
	limit, offset = page(limit, offset)
	holdings, err := s.holdings.ListByToken(ctx, token.ID, limit, offset)
	if err != nil {
		return nil, ledger.Classify(err)
	}

	holders := make([]Holder, 0, len(holdings))
	for _, h := range holdings {
		spent, err := s.transactions.TotalSpent(ctx, h.AccountID, token.ID)
		if err != nil {
			return nil, ledger.Classify(err)
		}
		holder := Holder{AccountID: h.AccountID, Amount: h.Amount, TotalSpent: spent}
		if h.Account != nil {
			holder.Username = h.Account.Username
		}
		holders = append(holders, holder)
	}
	return holders, nil
}

// History lists an account's trades, newest first.
func (s *service) History(ctx context.Context, accountID uint, limit, offset int) ([]*models.Transaction, error) {
	if accountID == 0 {
		return nil, ledger.Fail(ledger.ErrUnauthorized, "account is required")
	}
	limit, offset = page(limit, offset)
	trades, err := s.transactions.ListByAccount(ctx, accountID, limit, offset)
	return trades, ledger.Classify(err)
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
