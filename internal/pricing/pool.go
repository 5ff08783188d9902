// Package pricing implements constant-product market maker math.
//
// All intermediate products and quotients are computed with arbitrary
// precision decimals and every truncation floors toward the pool, so
// reserves never go negative and tokenReserve*baseReserve never decreases.
package pricing

import (
	"errors"

	"github.com/shopspring/decimal"
)

var (
	// ErrDivisionByZero is returned when the pool holds no tokens.
	ErrDivisionByZero = errors.New("pool has no token reserve")
	// ErrAmountTooSmall is returned when a trade would yield less than one unit.
	ErrAmountTooSmall = errors.New("amount too small")
	// ErrInvalidAmount is returned for non-positive trade inputs.
	ErrInvalidAmount = errors.New("amount must be positive")
)

// Pool is a snapshot of a token's reserves.
type Pool struct {
	TokenReserve int64
	BaseReserve  int64
}

// Quote is the outcome of pricing one trade against a Pool.
type Quote struct {
	In  int64
	Out int64
	// EffectivePrice is base currency per token actually paid or received.
	EffectivePrice decimal.Decimal
	// SpotPrice is the instantaneous price before the trade.
	SpotPrice decimal.Decimal
	// PriceImpact is the relative move of the spot price caused by the trade.
	PriceImpact decimal.Decimal
	// After is the pool once the trade is applied.
	After Pool
}

// K returns the constant product.
func (p Pool) K() decimal.Decimal {
	return decimal.NewFromInt(p.TokenReserve).Mul(decimal.NewFromInt(p.BaseReserve))
}

// Price returns the instantaneous price of one token in base currency.
func (p Pool) Price() (decimal.Decimal, error) {
	if p.TokenReserve <= 0 {
		return decimal.Zero, ErrDivisionByZero
	}
	return decimal.NewFromInt(p.BaseReserve).Div(decimal.NewFromInt(p.TokenReserve)), nil
}

// QuoteBuy prices spending baseIn for tokens.
func (p Pool) QuoteBuy(baseIn int64) (Quote, error) {
	if baseIn <= 0 {
		return Quote{}, ErrInvalidAmount
	}
	spot, err := p.Price()
	if err != nil {
		return Quote{}, err
	}

	// floor(T - k/newB) == T - ceil(k/newB)
	newBase := decimal.NewFromInt(p.BaseReserve).Add(decimal.NewFromInt(baseIn))
	out := p.TokenReserve - ceilQuo(p.K(), newBase)
	if out < 1 {
		return Quote{}, ErrAmountTooSmall
	}

	after := Pool{TokenReserve: p.TokenReserve - out, BaseReserve: p.BaseReserve + baseIn}
	return p.quote(baseIn, out, decimal.NewFromInt(baseIn).Div(decimal.NewFromInt(out)), spot, after), nil
}

// QuoteSell prices selling tokensIn for base currency.
func (p Pool) QuoteSell(tokensIn int64) (Quote, error) {
	if tokensIn <= 0 {
		return Quote{}, ErrInvalidAmount
	}
	spot, err := p.Price()
	if err != nil {
		return Quote{}, err
	}

	newToken := decimal.NewFromInt(p.TokenReserve).Add(decimal.NewFromInt(tokensIn))
	out := p.BaseReserve - ceilQuo(p.K(), newToken)
	if out < 1 {
		return Quote{}, ErrAmountTooSmall
	}

	after := Pool{TokenReserve: p.TokenReserve + tokensIn, BaseReserve: p.BaseReserve - out}
	return p.quote(tokensIn, out, decimal.NewFromInt(out).Div(decimal.NewFromInt(tokensIn)), spot, after), nil
}

// MinBuy returns the smallest base amount that buys at least one token.
// ok is false when no amount can, i.e. the pool holds one token or fewer.
func (p Pool) MinBuy() (int64, bool) {
	if p.TokenReserve <= 1 {
		return 0, false
	}
	// tokensOut >= 1  <=>  B + b >= k / (T - 1)
	need := ceilQuo(p.K(), decimal.NewFromInt(p.TokenReserve-1)) - p.BaseReserve
	if need < 1 {
		need = 1
	}
	return need, true
}

// MinSell returns the smallest token amount that sells for at least one unit
// of base currency. ok is false when the pool holds one unit or fewer.
func (p Pool) MinSell() (int64, bool) {
	if p.BaseReserve <= 1 || p.TokenReserve <= 0 {
		return 0, false
	}
	need := ceilQuo(p.K(), decimal.NewFromInt(p.BaseReserve-1)) - p.TokenReserve
	if need < 1 {
		need = 1
	}
	return need, true
}

func (p Pool) quote(in, out int64, effective, spot decimal.Decimal, after Pool) Quote {
	q := Quote{
		In:             in,
		Out:            out,
		EffectivePrice: effective,
		SpotPrice:      spot,
		After:          after,
	}
	if afterPrice, err := after.Price(); err == nil && !spot.IsZero() {
		q.PriceImpact = afterPrice.Sub(spot).Div(spot).Abs()
	}
	return q
}

// ceilQuo returns ceil(num/den) for positive operands.
func ceilQuo(num, den decimal.Decimal) int64 {
	q, r := num.QuoRem(den, 0)
	if r.IsPositive() {
		q = q.Add(decimal.NewFromInt(1))
	}
	return q.IntPart()
}
