package models

import (
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Account represents a player's cash account
type Account struct {
	ID          uint      `json:"id" gorm:"primaryKey"`
	Username    string    `json:"username" gorm:"uniqueIndex;not null;size:64"`
	Balance     int64     `json:"balance" gorm:"not null;default:0"`
	ClaimedCash int64     `json:"claimed_cash" gorm:"not null;default:0"`
	LastClaimAt time.Time `json:"last_claim_at"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// TableName returns the table name for Account model
func (Account) TableName() string {
	return "accounts"
}

// BeforeCreate hook to validate account data
func (a *Account) BeforeCreate(tx *gorm.DB) error {
	if a.Username == "" || a.Balance < 0 {
		return gorm.ErrInvalidData
	}
	return nil
}

// Token represents a user-created token and its liquidity pool
type Token struct {
	ID                uint      `json:"id" gorm:"primaryKey"`
	Name              string    `json:"name" gorm:"not null;size:64"`
	Symbol            string    `json:"symbol" gorm:"uniqueIndex;not null;size:6"`
	CreatorID         uint      `json:"creator_id" gorm:"not null;index"`
	TotalSupply       int64     `json:"total_supply" gorm:"not null"`
	TokenReserve      int64     `json:"token_reserve" gorm:"not null"`
	BaseReserve       int64     `json:"base_reserve" gorm:"not null"`
	CirculatingSupply int64     `json:"circulating_supply" gorm:"not null;default:0"`
	CreatedAt         time.Time `json:"created_at"`
	UpdatedAt         time.Time `json:"updated_at"`

	Creator *Account `json:"creator,omitempty" gorm:"foreignKey:CreatorID"`
}

// TableName returns the table name for Token model
func (Token) TableName() string {
	return "tokens"
}

// BeforeCreate hook to validate token data
func (t *Token) BeforeCreate(tx *gorm.DB) error {
	if t.Symbol == "" || t.Name == "" || t.CreatorID == 0 {
		return gorm.ErrInvalidData
	}
	if t.TokenReserve < 0 || t.BaseReserve < 0 || t.TokenReserve > t.TotalSupply {
		return gorm.ErrInvalidData
	}
	return nil
}

// Holding is the amount of a token owned by an account
type Holding struct {
	ID        uint      `json:"id" gorm:"primaryKey"`
	AccountID uint      `json:"account_id" gorm:"not null;uniqueIndex:idx_holdings_account_token"`
	TokenID   uint      `json:"token_id" gorm:"not null;uniqueIndex:idx_holdings_account_token;index"`
	Amount    int64     `json:"amount" gorm:"not null;default:0"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	Account *Account `json:"account,omitempty" gorm:"foreignKey:AccountID"`
	Token   *Token   `json:"token,omitempty" gorm:"foreignKey:TokenID"`
}

// TableName returns the table name for Holding model
func (Holding) TableName() string {
	return "holdings"
}

// Direction is the side of a trade
type Direction string

const (
	DirectionBuy  Direction = "buy"
	DirectionSell Direction = "sell"
)

// Valid reports whether d is a known direction
func (d Direction) Valid() bool {
	return d == DirectionBuy || d == DirectionSell
}

// Transaction is an executed trade. Rows are append-only.
type Transaction struct {
	ID           uint            `json:"id" gorm:"primaryKey"`
	Reference    string          `json:"reference" gorm:"uniqueIndex;not null;size:36"`
	AccountID    uint            `json:"account_id" gorm:"not null;index"`
	TokenID      uint            `json:"token_id" gorm:"not null;index:idx_transactions_token_created"`
	Direction    Direction       `json:"direction" gorm:"not null;size:4"`
	Amount       int64           `json:"amount" gorm:"not null"`
	PricePerUnit decimal.Decimal `json:"price_per_unit" gorm:"type:decimal(36,18);not null"`
	Total        int64           `json:"total" gorm:"not null"`
	CreatedAt    time.Time       `json:"created_at" gorm:"index:idx_transactions_token_created"`

	Account *Account `json:"account,omitempty" gorm:"foreignKey:AccountID"`
	Token   *Token   `json:"token,omitempty" gorm:"foreignKey:TokenID"`
}

// TableName returns the table name for Transaction model
func (Transaction) TableName() string {
	return "transactions"
}

// BeforeCreate hook to validate transaction data
func (t *Transaction) BeforeCreate(tx *gorm.DB) error {
	if !t.Direction.Valid() || t.Reference == "" {
		return gorm.ErrInvalidData
	}
	if t.Amount <= 0 || t.Total <= 0 {
		return gorm.ErrInvalidData
	}
	return nil
}

// All returns every model for schema migration
func All() []interface{} {
	return []interface{}{&Account{}, &Token{}, &Holding{}, &Transaction{}}
}
