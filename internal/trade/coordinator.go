// Package trade executes buys and sells against token pools. Every trade is
// one unit of work: the token row is locked before the account row, the quote
// is computed from the locked reserves, and all writes commit together.
package trade

import (
	"context"
	"errors"
	"time"

	"github.com/Jainex17/CoinPlay/internal/ledger"
	"github.com/Jainex17/CoinPlay/internal/marketfeed"
	"github.com/Jainex17/CoinPlay/internal/metrics"
	"github.com/Jainex17/CoinPlay/internal/models"
	"github.com/Jainex17/CoinPlay/internal/pricing"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

const publishTimeout = 2 * time.Second

// Service defines the trading operations
type Service interface {
	Buy(ctx context.Context, req BuyRequest) (*BuyResult, error)
	Sell(ctx context.Context, req SellRequest) (*SellResult, error)
	Quote(ctx context.Context, req QuoteRequest) (*QuoteResult, error)
}

// BuyResult is a committed buy.
type BuyResult struct {
	Transaction    *models.Transaction `json:"transaction"`
	TokensReceived int64               `json:"tokens_received"`
	Token          *models.Token       `json:"token"`
	Account        *models.Account     `json:"account"`
	Holding        *models.Holding     `json:"holding"`
	PriceImpact    decimal.Decimal     `json:"price_impact"`
}

// SellResult is a committed sell.
type SellResult struct {
	Transaction  *models.Transaction `json:"transaction"`
	BaseReceived int64               `json:"base_received"`
	Token        *models.Token       `json:"token"`
	Account      *models.Account     `json:"account"`
	Holding      *models.Holding     `json:"holding"`
	PriceImpact  decimal.Decimal     `json:"price_impact"`
}

// QuoteResult is an advisory preview computed from committed reserves.
type QuoteResult struct {
	Symbol         string           `json:"symbol"`
	Direction      models.Direction `json:"direction"`
	AmountIn       int64            `json:"amount_in"`
	AmountOut      int64            `json:"amount_out"`
	EffectivePrice decimal.Decimal  `json:"effective_price"`
	SpotPrice      decimal.Decimal  `json:"spot_price"`
	PriceImpact    decimal.Decimal  `json:"price_impact"`
}

// Coordinator implements Service on a ledger store.
type Coordinator struct {
	store   ledger.Store
	feed    marketfeed.Publisher
	metrics *metrics.Metrics
	log     logrus.FieldLogger
}

// NewCoordinator creates a trade coordinator. feed and m may be nil.
func NewCoordinator(store ledger.Store, feed marketfeed.Publisher, m *metrics.Metrics, log logrus.FieldLogger) *Coordinator {
	if feed == nil {
		feed = marketfeed.NopPublisher{}
	}
	return &Coordinator{store: store, feed: feed, metrics: m, log: log}
}

func (c *Coordinator) Buy(ctx context.Context, req BuyRequest) (*BuyResult, error) {
	start := time.Now()
	o, err := req.validate()

	var result *BuyResult
	if err == nil {
		err = c.store.WithinUnit(ctx, func(u ledger.Unit) error {
			r, err := buy(u, o)
			result = r
			return err
		})
	}

	c.finish(models.DirectionBuy, o, err, start)
	if err != nil {
		return nil, err
	}
	c.metrics.ObserveTrade(string(models.DirectionBuy), metrics.OutcomeCommitted, result.Transaction.Total, time.Since(start))
	c.publish(ctx, result.Transaction, result.Token)
	return result, nil
}

func (c *Coordinator) Sell(ctx context.Context, req SellRequest) (*SellResult, error) {
	start := time.Now()
	o, err := req.validate()

	var result *SellResult
	if err == nil {
		err = c.store.WithinUnit(ctx, func(u ledger.Unit) error {
			r, err := sell(u, o)
			result = r
			return err
		})
	}

	c.finish(models.DirectionSell, o, err, start)
	if err != nil {
		return nil, err
	}
	c.metrics.ObserveTrade(string(models.DirectionSell), metrics.OutcomeCommitted, result.Transaction.Total, time.Since(start))
	c.publish(ctx, result.Transaction, result.Token)
	return result, nil
}

// Quote prices a trade against the last committed reserves. Nothing is
// locked, so the executed trade may differ.
func (c *Coordinator) Quote(ctx context.Context, req QuoteRequest) (*QuoteResult, error) {
	o, err := req.validate()
	if err != nil {
		return nil, err
	}
	token, err := c.store.GetToken(ctx, o.symbol)
	if err != nil {
		return nil, err
	}

	pool := pricing.Pool{TokenReserve: token.TokenReserve, BaseReserve: token.BaseReserve}
	var q pricing.Quote
	if req.Direction == models.DirectionBuy {
		q, err = quoteBuy(pool, o.amount)
	} else {
		q, err = quoteSell(pool, o.amount)
	}
	if err != nil {
		return nil, err
	}
	return &QuoteResult{
		Symbol:         token.Symbol,
		Direction:      req.Direction,
		AmountIn:       q.In,
		AmountOut:      q.Out,
		EffectivePrice: q.EffectivePrice,
		SpotPrice:      q.SpotPrice,
		PriceImpact:    q.PriceImpact,
	}, nil
}

func buy(u ledger.Unit, o order) (*BuyResult, error) {
	token, err := u.LockToken(o.symbol)
	if err != nil {
		return nil, err
	}
	if _, err := u.LockAccount(o.accountID); err != nil {
		return nil, err
	}

	q, err := quoteBuy(pricing.Pool{TokenReserve: token.TokenReserve, BaseReserve: token.BaseReserve}, o.amount)
	if err != nil {
		return nil, err
	}

	account, err := u.DebitAccount(o.accountID, q.In)
	if err != nil {
		return nil, err
	}
	token, err = u.ApplyBuyToPool(token.ID, q.Out, q.In)
	if err != nil {
		return nil, err
	}
	holding, err := u.AdjustHolding(o.accountID, token.ID, q.Out)
	if err != nil {
		return nil, err
	}

	record := &models.Transaction{
		AccountID:    o.accountID,
		TokenID:      token.ID,
		Direction:    models.DirectionBuy,
		Amount:       q.Out,
		PricePerUnit: q.EffectivePrice,
		Total:        q.In,
	}
	if err := u.AppendTransaction(record); err != nil {
		return nil, err
	}

	return &BuyResult{
		Transaction:    record,
		TokensReceived: q.Out,
		Token:          token,
		Account:        account,
		Holding:        holding,
		PriceImpact:    q.PriceImpact,
	}, nil
}

func sell(u ledger.Unit, o order) (*SellResult, error) {
	token, err := u.LockToken(o.symbol)
	if err != nil {
		return nil, err
	}
	if _, err := u.LockAccount(o.accountID); err != nil {
		return nil, err
	}

	q, err := quoteSell(pricing.Pool{TokenReserve: token.TokenReserve, BaseReserve: token.BaseReserve}, o.amount)
	if err != nil {
		return nil, err
	}

	holding, err := u.AdjustHolding(o.accountID, token.ID, -q.In)
	if err != nil {
		return nil, err
	}
	token, err = u.ApplySellToPool(token.ID, q.In, q.Out)
	if err != nil {
		return nil, err
	}
	account, err := u.CreditAccount(o.accountID, q.Out)
	if err != nil {
		return nil, err
	}

	record := &models.Transaction{
		AccountID:    o.accountID,
		TokenID:      token.ID,
		Direction:    models.DirectionSell,
		Amount:       q.In,
		PricePerUnit: q.EffectivePrice,
		Total:        q.Out,
	}
	if err := u.AppendTransaction(record); err != nil {
		return nil, err
	}

	return &SellResult{
		Transaction:  record,
		BaseReceived: q.Out,
		Token:        token,
		Account:      account,
		Holding:      holding,
		PriceImpact:  q.PriceImpact,
	}, nil
}

func quoteBuy(pool pricing.Pool, baseIn int64) (pricing.Quote, error) {
	if baseIn >= 1 {
		q, err := pool.QuoteBuy(baseIn)
		if err == nil {
			return q, nil
		}
		if !errors.Is(err, pricing.ErrAmountTooSmall) {
			return pricing.Quote{}, quoteError(err)
		}
	}
	min, ok := pool.MinBuy()
	if !ok {
		return pricing.Quote{}, ledger.Fail(ledger.ErrPoolExhausted, "no tokens left to buy")
	}
	return pricing.Quote{}, ledger.TooSmall(min, "currency units")
}

func quoteSell(pool pricing.Pool, tokensIn int64) (pricing.Quote, error) {
	q, err := pool.QuoteSell(tokensIn)
	if err == nil {
		return q, nil
	}
	if !errors.Is(err, pricing.ErrAmountTooSmall) {
		return pricing.Quote{}, quoteError(err)
	}
	min, ok := pool.MinSell()
	if !ok {
		return pricing.Quote{}, ledger.Fail(ledger.ErrPoolExhausted, "no currency left to pay out")
	}
	return pricing.Quote{}, ledger.TooSmall(min, "tokens")
}

func quoteError(err error) error {
	if errors.Is(err, pricing.ErrDivisionByZero) {
		return ledger.Fail(ledger.ErrPoolExhausted, "pool has no token reserve")
	}
	return ledger.Fail(ledger.ErrValidation, "%s", err)
}

// finish logs and counts a trade that did not commit.
func (c *Coordinator) finish(direction models.Direction, o order, err error, start time.Time) {
	if err == nil {
		return
	}
	business := ledger.IsBusiness(err)
	c.metrics.ObserveTrade(string(direction), metrics.Outcome(err, business), 0, time.Since(start))

	entry := c.log.WithFields(logrus.Fields{
		"direction":  direction,
		"symbol":     o.symbol,
		"account_id": o.accountID,
		"amount":     o.amount,
	})
	if business {
		entry.WithError(err).Debug("Trade rejected")
		return
	}
	cause := errors.Unwrap(err)
	if cause == nil {
		cause = err
	}
	entry.WithError(cause).
		WithField("storage_detail", ledger.StorageDetail(err)).
		Error("Trade failed")
}

// publish announces a committed trade. Failures are logged and never
// affect the trade.
func (c *Coordinator) publish(ctx context.Context, record *models.Transaction, token *models.Token) {
	spot, _ := pricing.Pool{TokenReserve: token.TokenReserve, BaseReserve: token.BaseReserve}.Price()
	event := marketfeed.TradeEvent{
		Reference:    record.Reference,
		Symbol:       token.Symbol,
		Direction:    string(record.Direction),
		AccountID:    record.AccountID,
		Amount:       record.Amount,
		Total:        record.Total,
		Price:        record.PricePerUnit,
		SpotPrice:    spot,
		TokenReserve: token.TokenReserve,
		BaseReserve:  token.BaseReserve,
		Timestamp:    record.CreatedAt,
	}

	pubCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), publishTimeout)
	defer cancel()
	if err := c.feed.Publish(pubCtx, event); err != nil {
		c.metrics.FeedPublishFailed()
		c.log.WithError(err).WithField("reference", record.Reference).Warn("Failed to publish trade event")
	}

	c.log.WithFields(logrus.Fields{
		"reference":  record.Reference,
		"direction":  record.Direction,
		"symbol":     token.Symbol,
		"account_id": record.AccountID,
		"amount":     record.Amount,
		"total":      record.Total,
	}).Info("Trade committed")
}
