package token

import (
	"context"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/Jainex17/CoinPlay/internal/ledger"
	"github.com/Jainex17/CoinPlay/internal/metrics"
	"github.com/Jainex17/CoinPlay/internal/models"
	"github.com/Jainex17/CoinPlay/internal/transaction"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/suite"
	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"
)

// ServiceTestSuite runs token creation and market reads against SQLite
type ServiceTestSuite struct {
	suite.Suite
	db      *gorm.DB
	store   ledger.Store
	metrics *metrics.Metrics
	hook    *test.Hook
	service *service
	ctx     context.Context
	now     time.Time

	alice *models.Account
	bob   *models.Account
}

func (suite *ServiceTestSuite) SetupSuite() {
	db, err := ledger.OpenSQLite(ledger.MemoryDSN())
	suite.Require().NoError(err)
	suite.Require().NoError(ledger.Migrate(db))
	suite.db = db
	suite.store = ledger.NewStore(db, ledger.Options{})
	suite.ctx = context.Background()
}

func (suite *ServiceTestSuite) SetupTest() {
	suite.db.Exec("DELETE FROM transactions")
	suite.db.Exec("DELETE FROM holdings")
	suite.db.Exec("DELETE FROM tokens")
	suite.db.Exec("DELETE FROM accounts")

	logger, hook := test.NewNullLogger()
	logger.SetLevel(logrus.DebugLevel)
	suite.hook = hook
	suite.metrics = metrics.New()
	suite.now = time.Now().UTC().Truncate(time.Second)

	svc := NewService(suite.store, NewTokenRepository(suite.db), transaction.NewTransactionRepository(suite.db),
		DefaultConfig(), suite.metrics, logger).(*service)
	svc.now = func() time.Time { return suite.now }
	suite.service = svc

	suite.alice = &models.Account{Username: "alice", Balance: 5000}
	suite.bob = &models.Account{Username: "bob", Balance: 5000}
	suite.Require().NoError(suite.store.CreateAccount(suite.ctx, suite.alice))
	suite.Require().NoError(suite.store.CreateAccount(suite.ctx, suite.bob))
}

func (suite *ServiceTestSuite) TearDownSuite() {
	if sqlDB, err := suite.db.DB(); err == nil {
		sqlDB.Close()
	}
}

func (suite *ServiceTestSuite) balance(id uint) int64 {
	account, err := suite.store.GetAccount(suite.ctx, id)
	suite.Require().NoError(err)
	return account.Balance
}

func (suite *ServiceTestSuite) tokenCount() int64 {
	var count int64
	suite.Require().NoError(suite.db.Model(&models.Token{}).Count(&count).Error)
	return count
}

func (suite *ServiceTestSuite) TestCreateToken_SeedsPoolAndChargesFee() {
	token, err := suite.service.CreateToken(suite.ctx, CreateTokenRequest{Name: " Doge Two ", Symbol: "doge2"}, suite.alice.ID)
	suite.Require().NoError(err)

	suite.Equal("DOGE2", token.Symbol)
	suite.Equal("Doge Two", token.Name)
	suite.Equal(suite.alice.ID, token.CreatorID)
	suite.Equal(int64(1_000_000_000), token.TotalSupply)
	suite.Equal(int64(1_000_000_000), token.TokenReserve)
	suite.Equal(int64(1000), token.BaseReserve)
	suite.Zero(token.CirculatingSupply)
	suite.Equal(int64(4000), suite.balance(suite.alice.ID))

	stored, err := suite.store.GetToken(suite.ctx, "DOGE2")
	suite.Require().NoError(err)
	suite.Equal(token.ID, stored.ID)
	suite.Equal(logrus.InfoLevel, suite.hook.LastEntry().Level)
	suite.Equal("Token created", suite.hook.LastEntry().Message)
}

// A case-insensitive duplicate is rejected without charging the second creator.
func (suite *ServiceTestSuite) TestCreateToken_DuplicateSymbolChargesNothing() {
	_, err := suite.service.CreateToken(suite.ctx, CreateTokenRequest{Name: "Doge Two", Symbol: "DOGE2"}, suite.alice.ID)
	suite.Require().NoError(err)

	_, err = suite.service.CreateToken(suite.ctx, CreateTokenRequest{Name: "Copycat", Symbol: "doge2"}, suite.bob.ID)
	suite.ErrorIs(err, ledger.ErrSymbolTaken)
	suite.Equal(int64(5000), suite.balance(suite.bob.ID))
	suite.Equal(int64(1), suite.tokenCount())
	suite.Equal(logrus.DebugLevel, suite.hook.LastEntry().Level)
}

func (suite *ServiceTestSuite) TestCreateToken_InsufficientFundsLeavesNoToken() {
	poor := &models.Account{Username: "carol", Balance: 999}
	suite.Require().NoError(suite.store.CreateAccount(suite.ctx, poor))

	_, err := suite.service.CreateToken(suite.ctx, CreateTokenRequest{Name: "Poor", Symbol: "POOR"}, poor.ID)
	suite.ErrorIs(err, ledger.ErrInsufficientFunds)
	suite.Equal(int64(999), suite.balance(poor.ID))
	suite.Zero(suite.tokenCount())

	exists, err := suite.store.SymbolExists(suite.ctx, "POOR")
	suite.Require().NoError(err)
	suite.False(exists)
}

func (suite *ServiceTestSuite) TestCreateToken_UnknownCreator() {
	_, err := suite.service.CreateToken(suite.ctx, CreateTokenRequest{Name: "Ghost", Symbol: "GHOST"}, 9999)
	suite.ErrorIs(err, ledger.ErrUnauthorized)
	suite.Zero(suite.tokenCount())
}

func (suite *ServiceTestSuite) TestCreateToken_Validation() {
	tests := []struct {
		name      string
		req       CreateTokenRequest
		creatorID uint
		kind      error
	}{
		{"no creator", CreateTokenRequest{Name: "Doge", Symbol: "DOGE"}, 0, ledger.ErrUnauthorized},
		{"blank name", CreateTokenRequest{Name: "   ", Symbol: "DOGE"}, suite.alice.ID, ledger.ErrValidation},
		{"long name", CreateTokenRequest{Name: string(make([]byte, 65)), Symbol: "DOGE"}, suite.alice.ID, ledger.ErrValidation},
		{"short symbol", CreateTokenRequest{Name: "Doge", Symbol: "DO"}, suite.alice.ID, ledger.ErrValidation},
		{"long symbol", CreateTokenRequest{Name: "Doge", Symbol: "DOGECOIN"}, suite.alice.ID, ledger.ErrValidation},
		{"punctuation", CreateTokenRequest{Name: "Doge", Symbol: "DO$E"}, suite.alice.ID, ledger.ErrValidation},
	}
	for _, tt := range tests {
		suite.Run(tt.name, func() {
			_, err := suite.service.CreateToken(suite.ctx, tt.req, tt.creatorID)
			suite.ErrorIs(err, tt.kind)
		})
	}
	suite.Equal(int64(5000), suite.balance(suite.alice.ID))
	suite.Zero(suite.tokenCount())
}

func (suite *ServiceTestSuite) TestCreateToken_NameAtLimit() {
	name := ""
	for i := 0; i < maxNameLength; i++ {
		name += "é"
	}
	_, err := suite.service.CreateToken(suite.ctx, CreateTokenRequest{Name: name, Symbol: "ACCENT"}, suite.alice.ID)
	suite.NoError(err)
}

// Racing creators of one symbol: exactly one wins and only the winner pays.
func (suite *ServiceTestSuite) TestCreateToken_ConcurrentSameSymbol() {
	creators := []*models.Account{suite.alice, suite.bob}
	for i := 0; i < 4; i++ {
		account := &models.Account{Username: uuid.NewString()[:8], Balance: 5000}
		suite.Require().NoError(suite.store.CreateAccount(suite.ctx, account))
		creators = append(creators, account)
	}

	errs := make([]error, len(creators))
	var g errgroup.Group
	for i, creator := range creators {
		i, creator := i, creator
		g.Go(func() error {
			_, errs[i] = suite.service.CreateToken(suite.ctx, CreateTokenRequest{Name: "Race", Symbol: "RACE"}, creator.ID)
			return nil
		})
	}
	suite.Require().NoError(g.Wait())

	winners := 0
	var total int64
	for i, err := range errs {
		if err == nil {
			winners++
		} else {
			suite.ErrorIs(err, ledger.ErrSymbolTaken)
		}
		total += suite.balance(creators[i].ID)
	}
	suite.Equal(1, winners)
	suite.Equal(int64(len(creators))*5000-1000, total)
	suite.Equal(int64(1), suite.tokenCount())
}

func (suite *ServiceTestSuite) TestCreateToken_RecordsMetrics() {
	_, err := suite.service.CreateToken(suite.ctx, CreateTokenRequest{Name: "Doge", Symbol: "DOGE"}, suite.alice.ID)
	suite.Require().NoError(err)
	_, err = suite.service.CreateToken(suite.ctx, CreateTokenRequest{Name: "Doge", Symbol: "DOGE"}, suite.bob.ID)
	suite.Require().Error(err)

	resp := httptest.NewRecorder()
	suite.metrics.Handler().ServeHTTP(resp, httptest.NewRequest("GET", "/metrics", nil))
	suite.Contains(resp.Body.String(), `coinplay_tokens_created_total{outcome="committed"} 1`)
	suite.Contains(resp.Body.String(), `coinplay_tokens_created_total{outcome="rejected"} 1`)
}

func (suite *ServiceTestSuite) TestCreateToken_CustomEconomics() {
	suite.service.cfg = Config{CreationFee: 0, InitialTokenReserve: 500, InitialBaseReserve: 50}

	token, err := suite.service.CreateToken(suite.ctx, CreateTokenRequest{Name: "Free", Symbol: "FREE"}, suite.alice.ID)
	suite.Require().NoError(err)
	suite.Equal(int64(500), token.TotalSupply)
	suite.Equal(int64(50), token.BaseReserve)
	suite.Equal(int64(5000), suite.balance(suite.alice.ID))
}

func (suite *ServiceTestSuite) createToken(symbol string) *models.Token {
	token, err := suite.service.CreateToken(suite.ctx, CreateTokenRequest{Name: symbol, Symbol: symbol}, suite.alice.ID)
	suite.Require().NoError(err)
	return token
}

func (suite *ServiceTestSuite) recordTrade(token *models.Token, price string, amount int64, age time.Duration) {
	suite.Require().NoError(suite.db.Create(&models.Transaction{
		Reference:    uuid.NewString(),
		AccountID:    suite.bob.ID,
		TokenID:      token.ID,
		Direction:    models.DirectionBuy,
		Amount:       amount,
		PricePerUnit: decimal.RequireFromString(price),
		Total:        1,
		CreatedAt:    suite.now.Add(-age),
	}).Error)
}

func (suite *ServiceTestSuite) TestGetMarket_NoTrades() {
	suite.createToken("DOGE")

	market, err := suite.service.GetMarket(suite.ctx, "doge")
	suite.Require().NoError(err)
	suite.True(market.Price.Equal(decimal.RequireFromString("0.000001")), market.Price.String())
	suite.Zero(market.Volume24h)
	suite.True(market.Change24h.IsZero())
	suite.Zero(market.Holders)
	suite.True(market.MarketCap.IsZero())
}

func (suite *ServiceTestSuite) TestGetMarket_WindowedStats() {
	token := suite.createToken("DOGE")
	suite.recordTrade(token, "0.0000004", 7000, 30*time.Hour)
	suite.recordTrade(token, "0.0000008", 3000, 20*time.Hour)
	suite.recordTrade(token, "0.0000009", 2000, time.Hour)

	suite.Require().NoError(suite.db.Create(&models.Holding{AccountID: suite.bob.ID, TokenID: token.ID, Amount: 5000}).Error)
	suite.Require().NoError(suite.db.Create(&models.Holding{AccountID: suite.alice.ID, TokenID: token.ID, Amount: 0}).Error)
	suite.Require().NoError(suite.db.Model(&models.Token{}).Where("id = ?", token.ID).
		Update("circulating_supply", 5000).Error)

	market, err := suite.service.GetMarket(suite.ctx, "DOGE")
	suite.Require().NoError(err)
	suite.Equal(int64(5000), market.Volume24h)
	suite.True(market.Change24h.Equal(decimal.NewFromInt(25)), market.Change24h.String())
	suite.Equal(int64(1), market.Holders)
	suite.True(market.MarketCap.Equal(decimal.RequireFromString("0.005")), market.MarketCap.String())
}

func (suite *ServiceTestSuite) TestGetMarket_ExhaustedPoolHasZeroPrice() {
	token := suite.createToken("DRY")
	suite.Require().NoError(suite.db.Model(&models.Token{}).Where("id = ?", token.ID).
		Updates(map[string]interface{}{"token_reserve": 0, "circulating_supply": token.TotalSupply}).Error)

	market, err := suite.service.GetMarket(suite.ctx, "DRY")
	suite.Require().NoError(err)
	suite.True(market.Price.IsZero())
	suite.True(market.MarketCap.IsZero())
}

func (suite *ServiceTestSuite) TestGetMarket_NotFound() {
	_, err := suite.service.GetMarket(suite.ctx, "NOPE")
	suite.ErrorIs(err, ledger.ErrNotFound)
}

func (suite *ServiceTestSuite) TestPriceHistory() {
	token := suite.createToken("DOGE")
	suite.recordTrade(token, "0.0000004", 10, 30*time.Hour)
	suite.recordTrade(token, "0.0000008", 10, 20*time.Hour)
	suite.recordTrade(token, "0.0000009", 10, time.Hour)

	points, err := suite.service.PriceHistory(suite.ctx, "doge", 24*time.Hour, 0)
	suite.Require().NoError(err)
	suite.Len(points, 2)

	points, err = suite.service.PriceHistory(suite.ctx, "doge", 48*time.Hour, 0)
	suite.Require().NoError(err)
	suite.Len(points, 3)

	_, err = suite.service.PriceHistory(suite.ctx, "doge", 0, 0)
	suite.ErrorIs(err, ledger.ErrValidation)
	_, err = suite.service.PriceHistory(suite.ctx, "doge", 31*24*time.Hour, 0)
	suite.ErrorIs(err, ledger.ErrValidation)
}

func (suite *ServiceTestSuite) TestRecentTrades() {
	token := suite.createToken("DOGE")
	suite.recordTrade(token, "0.0000004", 10, 2*time.Hour)
	suite.recordTrade(token, "0.0000008", 20, time.Hour)

	trades, err := suite.service.RecentTrades(suite.ctx, "DOGE", 0, 0)
	suite.Require().NoError(err)
	suite.Require().Len(trades, 2)
	suite.Equal(int64(20), trades[0].Amount)

	_, err = suite.service.RecentTrades(suite.ctx, "NOPE", 0, 0)
	suite.ErrorIs(err, ledger.ErrNotFound)
}

func (suite *ServiceTestSuite) TestListAndSearch() {
	suite.createToken("DOGE")
	suite.createToken("PEPE")
	suite.createToken("DOGGO")

	all, err := suite.service.ListTokens(suite.ctx, 0, -5)
	suite.Require().NoError(err)
	suite.Len(all, 3)

	found, err := suite.service.SearchTokens(suite.ctx, "dog", 10, 0)
	suite.Require().NoError(err)
	suite.Len(found, 2)

	mine, err := suite.service.ListByCreator(suite.ctx, suite.alice.ID, 10, 0)
	suite.Require().NoError(err)
	suite.Len(mine, 3)

	_, err = suite.service.ListByCreator(suite.ctx, 0, 10, 0)
	suite.ErrorIs(err, ledger.ErrValidation)
}

func TestServiceTestSuite(t *testing.T) {
	suite.Run(t, new(ServiceTestSuite))
}

func TestPercentChange(t *testing.T) {
	d := decimal.RequireFromString
	assert.True(t, percentChange(d("2"), d("3"), true).Equal(d("50")))
	assert.True(t, percentChange(d("3"), d("2"), true).Equal(d("-33.33")))
	assert.True(t, percentChange(d("2"), d("3"), false).IsZero())
	assert.True(t, percentChange(decimal.Zero, d("3"), true).IsZero())
}

func TestPage(t *testing.T) {
	limit, offset := page(0, -1)
	assert.Equal(t, 10, limit)
	assert.Equal(t, 0, offset)

	limit, offset = page(500, 20)
	assert.Equal(t, 100, limit)
	assert.Equal(t, 20, offset)
}
