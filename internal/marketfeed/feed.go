// Package marketfeed broadcasts committed trades. Events are published to
// Redis pub/sub after the trade's unit of work commits and are relayed to
// websocket clients per token symbol.
package marketfeed

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// TradeEvent describes one committed trade.
type TradeEvent struct {
	Reference    string          `json:"reference"`
	Symbol       string          `json:"symbol"`
	Direction    string          `json:"direction"`
	AccountID    uint            `json:"account_id"`
	Amount       int64           `json:"amount"`
	Total        int64           `json:"total"`
	Price        decimal.Decimal `json:"price"`
	SpotPrice    decimal.Decimal `json:"spot_price"`
	TokenReserve int64           `json:"token_reserve"`
	BaseReserve  int64           `json:"base_reserve"`
	Timestamp    time.Time       `json:"timestamp"`
}

// Publisher delivers trade events to subscribers.
type Publisher interface {
	Publish(ctx context.Context, event TradeEvent) error
}

// Subscription is a live stream of encoded events for one symbol.
type Subscription interface {
	Messages() <-chan []byte
	Close() error
}

// Subscriber opens event streams.
type Subscriber interface {
	Subscribe(ctx context.Context, symbol string) (Subscription, error)
}

// Channel returns the pub/sub channel for a symbol.
func Channel(symbol string) string {
	return "market:" + strings.ToUpper(strings.TrimSpace(symbol))
}

// Encode renders an event for the wire.
func Encode(event TradeEvent) ([]byte, error) {
	payload, err := json.Marshal(event)
	if err != nil {
		return nil, fmt.Errorf("encode trade event: %w", err)
	}
	return payload, nil
}

// NopPublisher drops every event.
type NopPublisher struct{}

func (NopPublisher) Publish(context.Context, TradeEvent) error { return nil }
