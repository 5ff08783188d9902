package trade

import (
	"strings"

	"github.com/Jainex17/CoinPlay/internal/ledger"
	"github.com/Jainex17/CoinPlay/internal/models"
	"github.com/shopspring/decimal"
)

// MaxAmount bounds every trade input so reserve arithmetic stays within int64.
var MaxAmount = decimal.NewFromInt(1_000_000_000_000_000)

// Amounts are checked by exponent before any arithmetic that rescales them.
const (
	minAmountExponent = -18
	maxAmountExponent = 15
)

// BuyRequest spends Amount base currency minor units on Symbol.
// Fractional amounts are floored.
type BuyRequest struct {
	Symbol    string
	AccountID uint
	Amount    decimal.NullDecimal
}

// SellRequest sells Amount whole tokens of Symbol. Fractional amounts are floored.
type SellRequest struct {
	Symbol    string
	AccountID uint
	Amount    decimal.NullDecimal
}

// QuoteRequest previews a trade without executing it.
type QuoteRequest struct {
	Symbol    string
	Direction models.Direction
	Amount    decimal.NullDecimal
}

type order struct {
	symbol    string
	accountID uint
	amount    int64
}

func (r BuyRequest) validate() (order, error) {
	symbol, err := validSymbol(r.Symbol)
	if err != nil {
		return order{}, err
	}
	if r.AccountID == 0 {
		return order{}, ledger.Fail(ledger.ErrUnauthorized, "account is required")
	}
	amount, err := wholeAmount(r.Amount)
	if err != nil {
		return order{}, err
	}
	// A zero floor is priced against the pool so the caller learns the minimum.
	return order{symbol: symbol, accountID: r.AccountID, amount: amount}, nil
}

func (r SellRequest) validate() (order, error) {
	symbol, err := validSymbol(r.Symbol)
	if err != nil {
		return order{}, err
	}
	if r.AccountID == 0 {
		return order{}, ledger.Fail(ledger.ErrUnauthorized, "account is required")
	}
	amount, err := wholeAmount(r.Amount)
	if err != nil {
		return order{}, err
	}
	if amount < 1 {
		return order{}, ledger.Fail(ledger.ErrValidation, "amount must be at least one whole token")
	}
	return order{symbol: symbol, accountID: r.AccountID, amount: amount}, nil
}

func (r QuoteRequest) validate() (order, error) {
	if !r.Direction.Valid() {
		return order{}, ledger.Fail(ledger.ErrValidation, "direction must be buy or sell")
	}
	symbol, err := validSymbol(r.Symbol)
	if err != nil {
		return order{}, err
	}
	amount, err := wholeAmount(r.Amount)
	if err != nil {
		return order{}, err
	}
	if r.Direction == models.DirectionSell && amount < 1 {
		return order{}, ledger.Fail(ledger.ErrValidation, "amount must be at least one whole token")
	}
	return order{symbol: symbol, amount: amount}, nil
}

func validSymbol(symbol string) (string, error) {
	if strings.TrimSpace(symbol) == "" {
		return "", ledger.Fail(ledger.ErrValidation, "symbol is required")
	}
	normalized, ok := ledger.ParseSymbol(symbol)
	if !ok {
		return "", ledger.Fail(ledger.ErrValidation, "symbol must be 3 to 6 letters or digits")
	}
	return normalized, nil
}

// wholeAmount checks a decoded amount and floors it to whole units.
func wholeAmount(amount decimal.NullDecimal) (int64, error) {
	switch {
	case !amount.Valid:
		return 0, ledger.Fail(ledger.ErrValidation, "amount is required")
	case !amount.Decimal.IsPositive():
		return 0, ledger.Fail(ledger.ErrValidation, "amount must be positive")
	case amount.Decimal.Exponent() < minAmountExponent:
		return 0, ledger.Fail(ledger.ErrValidation, "amount has more than %d decimal places", -minAmountExponent)
	case amount.Decimal.Exponent() > maxAmountExponent:
		return 0, ledger.Fail(ledger.ErrValidation, "amount exceeds %s", MaxAmount)
	case amount.Decimal.GreaterThan(MaxAmount):
		return 0, ledger.Fail(ledger.ErrValidation, "amount exceeds %s", MaxAmount)
	}
	return amount.Decimal.Floor().IntPart(), nil
}
