// Package ledger is the durable store behind trading: accounts, tokens,
// holdings and the transaction log. Mutations happen inside a unit of work
// and every conditional update reports a failed precondition as a
// classified *Error instead of a driver error.
package ledger

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Jainex17/CoinPlay/internal/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Unit is the set of operations available inside one unit of work. All row
// locks taken through a Unit are held until the unit commits or rolls back.
type Unit interface {
	LockAccount(id uint) (*models.Account, error)
	LockToken(symbol string) (*models.Token, error)
	DebitAccount(id uint, amount int64) (*models.Account, error)
	CreditAccount(id uint, amount int64) (*models.Account, error)
	ApplyBuyToPool(tokenID uint, tokensOut, baseIn int64) (*models.Token, error)
	ApplySellToPool(tokenID uint, tokensIn, baseOut int64) (*models.Token, error)
	AdjustHolding(accountID, tokenID uint, delta int64) (*models.Holding, error)
	AppendTransaction(record *models.Transaction) error
	InsertToken(token *models.Token) error
	SymbolExists(symbol string) (bool, error)
}

// Store opens units of work and serves committed reads.
type Store interface {
	// WithinUnit runs fn in a database transaction. A nil return commits;
	// an error or panic rolls everything back.
	WithinUnit(ctx context.Context, fn func(Unit) error) error

	SymbolExists(ctx context.Context, symbol string) (bool, error)
	CreateAccount(ctx context.Context, account *models.Account) error
	GetAccount(ctx context.Context, id uint) (*models.Account, error)
	GetToken(ctx context.Context, symbol string) (*models.Token, error)
	GetHolding(ctx context.Context, accountID, tokenID uint) (*models.Holding, error)
}

// Options tunes a Store.
type Options struct {
	// LockTimeout bounds row lock waits on PostgreSQL. Zero leaves the server default.
	LockTimeout time.Duration
}

type store struct {
	db   *gorm.DB
	opts Options
}

// NewStore creates a ledger store over db
func NewStore(db *gorm.DB, opts Options) Store {
	return &store{db: db, opts: opts}
}

func (s *store) WithinUnit(ctx context.Context, fn func(Unit) error) error {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if tx.Dialector.Name() == "postgres" && s.opts.LockTimeout > 0 {
			stmt := fmt.Sprintf("SET LOCAL lock_timeout = '%dms'", s.opts.LockTimeout.Milliseconds())
			if err := tx.Exec(stmt).Error; err != nil {
				return err
			}
		}
		return fn(&unit{tx: tx})
	})
	return classify(err)
}

func (s *store) SymbolExists(ctx context.Context, symbol string) (bool, error) {
	return symbolExists(s.db.WithContext(ctx), symbol)
}

func (s *store) CreateAccount(ctx context.Context, account *models.Account) error {
	if account == nil {
		return Fail(ErrValidation, "account cannot be nil")
	}
	err := classify(s.db.WithContext(ctx).Create(account).Error)
	if errors.Is(err, ErrSymbolTaken) {
		return Fail(ErrValidation, "username %q is taken", account.Username)
	}
	return err
}

func (s *store) GetAccount(ctx context.Context, id uint) (*models.Account, error) {
	var account models.Account
	if err := s.db.WithContext(ctx).First(&account, id).Error; err != nil {
		return nil, notFound(err, "account %d not found", id)
	}
	return &account, nil
}

func (s *store) GetToken(ctx context.Context, symbol string) (*models.Token, error) {
	normalized := NormalizeSymbol(symbol)
	if normalized == "" {
		return nil, Fail(ErrValidation, "symbol cannot be empty")
	}
	var token models.Token
	if err := s.db.WithContext(ctx).Where("symbol = ?", normalized).First(&token).Error; err != nil {
		return nil, notFound(err, "token %s not found", normalized)
	}
	return &token, nil
}

func (s *store) GetHolding(ctx context.Context, accountID, tokenID uint) (*models.Holding, error) {
	return getHolding(s.db.WithContext(ctx), accountID, tokenID)
}

type unit struct {
	tx *gorm.DB
}

func (u *unit) LockAccount(id uint) (*models.Account, error) {
	if id == 0 {
		return nil, Fail(ErrValidation, "account id cannot be zero")
	}
	var account models.Account
	err := u.tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&account, id).Error
	if err != nil {
		return nil, notFound(err, "account %d not found", id)
	}
	return &account, nil
}

func (u *unit) LockToken(symbol string) (*models.Token, error) {
	normalized := NormalizeSymbol(symbol)
	if normalized == "" {
		return nil, Fail(ErrValidation, "symbol cannot be empty")
	}
	var token models.Token
	err := u.tx.Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("symbol = ?", normalized).
		First(&token).Error
	if err != nil {
		return nil, notFound(err, "token %s not found", normalized)
	}
	return &token, nil
}

func (u *unit) DebitAccount(id uint, amount int64) (*models.Account, error) {
	if amount <= 0 {
		return nil, Fail(ErrValidation, "debit amount must be positive")
	}
	res := u.tx.Model(&models.Account{}).
		Where("id = ? AND balance >= ?", id, amount).
		Update("balance", gorm.Expr("balance - ?", amount))
	if res.Error != nil {
		return nil, classify(res.Error)
	}
	if res.RowsAffected == 0 {
		return nil, Fail(ErrInsufficientFunds, "balance is below %d", amount)
	}
	return u.reloadAccount(id)
}

func (u *unit) CreditAccount(id uint, amount int64) (*models.Account, error) {
	if amount <= 0 {
		return nil, Fail(ErrValidation, "credit amount must be positive")
	}
	res := u.tx.Model(&models.Account{}).
		Where("id = ?", id).
		Update("balance", gorm.Expr("balance + ?", amount))
	if res.Error != nil {
		return nil, classify(res.Error)
	}
	if res.RowsAffected == 0 {
		return nil, Fail(ErrNotFound, "account %d not found", id)
	}
	return u.reloadAccount(id)
}

func (u *unit) ApplyBuyToPool(tokenID uint, tokensOut, baseIn int64) (*models.Token, error) {
	if tokensOut <= 0 || baseIn <= 0 {
		return nil, Fail(ErrValidation, "pool deltas must be positive")
	}
	res := u.tx.Model(&models.Token{}).
		Where("id = ? AND token_reserve >= ?", tokenID, tokensOut).
		Updates(map[string]interface{}{
			"token_reserve":      gorm.Expr("token_reserve - ?", tokensOut),
			"base_reserve":       gorm.Expr("base_reserve + ?", baseIn),
			"circulating_supply": gorm.Expr("circulating_supply + ?", tokensOut),
		})
	if res.Error != nil {
		return nil, classify(res.Error)
	}
	if res.RowsAffected == 0 {
		return nil, Fail(ErrPoolExhausted, "pool cannot release %d tokens", tokensOut)
	}
	return u.reloadToken(tokenID)
}

func (u *unit) ApplySellToPool(tokenID uint, tokensIn, baseOut int64) (*models.Token, error) {
	if tokensIn <= 0 || baseOut <= 0 {
		return nil, Fail(ErrValidation, "pool deltas must be positive")
	}
	res := u.tx.Model(&models.Token{}).
		Where("id = ? AND base_reserve >= ?", tokenID, baseOut).
		Updates(map[string]interface{}{
			"token_reserve":      gorm.Expr("token_reserve + ?", tokensIn),
			"base_reserve":       gorm.Expr("base_reserve - ?", baseOut),
			"circulating_supply": gorm.Expr("circulating_supply - ?", tokensIn),
		})
	if res.Error != nil {
		return nil, classify(res.Error)
	}
	if res.RowsAffected == 0 {
		return nil, Fail(ErrPoolExhausted, "pool cannot pay out %d", baseOut)
	}
	return u.reloadToken(tokenID)
}

func (u *unit) AdjustHolding(accountID, tokenID uint, delta int64) (*models.Holding, error) {
	switch {
	case delta == 0:
		return nil, Fail(ErrValidation, "holding delta cannot be zero")
	case delta > 0:
		holding := models.Holding{AccountID: accountID, TokenID: tokenID, Amount: delta}
		err := u.tx.Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "account_id"}, {Name: "token_id"}},
			DoUpdates: clause.Assignments(map[string]interface{}{
				"amount":     gorm.Expr("holdings.amount + excluded.amount"),
				"updated_at": time.Now(),
			}),
		}).Create(&holding).Error
		if err != nil {
			return nil, classify(err)
		}
	default:
		res := u.tx.Model(&models.Holding{}).
			Where("account_id = ? AND token_id = ? AND amount >= ?", accountID, tokenID, -delta).
			Update("amount", gorm.Expr("amount - ?", -delta))
		if res.Error != nil {
			return nil, classify(res.Error)
		}
		if res.RowsAffected == 0 {
			return nil, Fail(ErrInsufficientHolding, "holding is below %d", -delta)
		}
	}
	return getHolding(u.tx, accountID, tokenID)
}

func (u *unit) AppendTransaction(record *models.Transaction) error {
	if record == nil {
		return Fail(ErrValidation, "transaction cannot be nil")
	}
	if record.Reference == "" {
		record.Reference = uuid.NewString()
	}
	return classify(u.tx.Create(record).Error)
}

func (u *unit) InsertToken(token *models.Token) error {
	if token == nil {
		return Fail(ErrValidation, "token cannot be nil")
	}
	token.Symbol = NormalizeSymbol(token.Symbol)
	return classify(u.tx.Create(token).Error)
}

func (u *unit) SymbolExists(symbol string) (bool, error) {
	return symbolExists(u.tx, symbol)
}

func (u *unit) reloadAccount(id uint) (*models.Account, error) {
	var account models.Account
	if err := u.tx.First(&account, id).Error; err != nil {
		return nil, notFound(err, "account %d not found", id)
	}
	return &account, nil
}

func (u *unit) reloadToken(id uint) (*models.Token, error) {
	var token models.Token
	if err := u.tx.First(&token, id).Error; err != nil {
		return nil, notFound(err, "token %d not found", id)
	}
	return &token, nil
}

func symbolExists(db *gorm.DB, symbol string) (bool, error) {
	normalized := NormalizeSymbol(symbol)
	if normalized == "" {
		return false, Fail(ErrValidation, "symbol cannot be empty")
	}
	var count int64
	if err := db.Model(&models.Token{}).Where("symbol = ?", normalized).Count(&count).Error; err != nil {
		return false, classify(err)
	}
	return count > 0, nil
}

func getHolding(db *gorm.DB, accountID, tokenID uint) (*models.Holding, error) {
	var holding models.Holding
	err := db.Where("account_id = ? AND token_id = ?", accountID, tokenID).First(&holding).Error
	if err != nil {
		return nil, notFound(err, "no holding of token %d for account %d", tokenID, accountID)
	}
	return &holding, nil
}

func notFound(err error, format string, args ...interface{}) error {
	classified := classify(err)
	if le, ok := classified.(*Error); ok && le.Kind == ErrNotFound {
		le.Reason = fmt.Sprintf(format, args...)
	}
	return classified
}
