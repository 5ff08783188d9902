package token

import (
	"context"
	"testing"

	"github.com/Jainex17/CoinPlay/internal/ledger"
	"github.com/Jainex17/CoinPlay/internal/models"
	"github.com/stretchr/testify/suite"
	"gorm.io/gorm"
)

// TokenRepositoryTestSuite defines the test suite for TokenRepository
type TokenRepositoryTestSuite struct {
	suite.Suite
	db      *gorm.DB
	repo    TokenRepository
	ctx     context.Context
	creator *models.Account
}

func (suite *TokenRepositoryTestSuite) SetupSuite() {
	db, err := ledger.OpenSQLite(ledger.MemoryDSN())
	suite.Require().NoError(err)
	suite.Require().NoError(ledger.Migrate(db))

	suite.db = db
	suite.repo = NewTokenRepository(db)
	suite.ctx = context.Background()
}

func (suite *TokenRepositoryTestSuite) SetupTest() {
	suite.db.Exec("DELETE FROM holdings")
	suite.db.Exec("DELETE FROM tokens")
	suite.db.Exec("DELETE FROM accounts")

	suite.creator = &models.Account{Username: "alice", Balance: 0}
	suite.Require().NoError(suite.db.Create(suite.creator).Error)
}

func (suite *TokenRepositoryTestSuite) TearDownSuite() {
	if sqlDB, err := suite.db.DB(); err == nil {
		sqlDB.Close()
	}
}

func (suite *TokenRepositoryTestSuite) createToken(name, symbol string) *models.Token {
	token := &models.Token{
		Name:         name,
		Symbol:       symbol,
		CreatorID:    suite.creator.ID,
		TotalSupply:  1000,
		TokenReserve: 1000,
		BaseReserve:  10,
	}
	suite.Require().NoError(suite.db.Create(token).Error)
	return token
}

func (suite *TokenRepositoryTestSuite) TestGetBySymbol() {
	created := suite.createToken("Doge Two", "DOGE2")

	found, err := suite.repo.GetBySymbol(suite.ctx, " doge2 ")
	suite.Require().NoError(err)
	suite.Require().NotNil(found)
	suite.Equal(created.ID, found.ID)

	missing, err := suite.repo.GetBySymbol(suite.ctx, "NOPE")
	suite.NoError(err)
	suite.Nil(missing)

	_, err = suite.repo.GetBySymbol(suite.ctx, "  ")
	suite.Error(err)
}

func (suite *TokenRepositoryTestSuite) TestListPagination() {
	suite.createToken("One", "ONE")
	suite.createToken("Two", "TWO")
	suite.createToken("Three", "THREE")

	first, err := suite.repo.List(suite.ctx, 2, 0)
	suite.Require().NoError(err)
	suite.Len(first, 2)

	rest, err := suite.repo.List(suite.ctx, 2, 2)
	suite.Require().NoError(err)
	suite.Len(rest, 1)
}

func (suite *TokenRepositoryTestSuite) TestSearch() {
	suite.createToken("Doge Two", "DOGE2")
	suite.createToken("Shiba", "SHIB")
	suite.createToken("Hotdog", "HDOG")

	found, err := suite.repo.Search(suite.ctx, "DOG", 10, 0)
	suite.Require().NoError(err)
	suite.Len(found, 2)

	byName, err := suite.repo.Search(suite.ctx, "shiba", 10, 0)
	suite.Require().NoError(err)
	suite.Len(byName, 1)

	empty, err := suite.repo.Search(suite.ctx, " ", 10, 0)
	suite.Require().NoError(err)
	suite.Empty(empty)
}

func (suite *TokenRepositoryTestSuite) TestHolderCount_IgnoresEmptyHoldings() {
	token := suite.createToken("Doge Two", "DOGE2")
	bob := &models.Account{Username: "bob"}
	carol := &models.Account{Username: "carol"}
	suite.Require().NoError(suite.db.Create(bob).Error)
	suite.Require().NoError(suite.db.Create(carol).Error)

	suite.Require().NoError(suite.db.Create(&models.Holding{AccountID: bob.ID, TokenID: token.ID, Amount: 10}).Error)
	suite.Require().NoError(suite.db.Create(&models.Holding{AccountID: carol.ID, TokenID: token.ID, Amount: 0}).Error)
	suite.Require().NoError(suite.db.Create(&models.Holding{AccountID: suite.creator.ID, TokenID: token.ID, Amount: 3}).Error)

	count, err := suite.repo.HolderCount(suite.ctx, token.ID)
	suite.Require().NoError(err)
	suite.Equal(int64(2), count)

	_, err = suite.repo.HolderCount(suite.ctx, 0)
	suite.Error(err)
}

func (suite *TokenRepositoryTestSuite) TestListByCreator() {
	suite.createToken("Doge Two", "DOGE2")
	other := &models.Account{Username: "bob"}
	suite.Require().NoError(suite.db.Create(other).Error)

	mine, err := suite.repo.ListByCreator(suite.ctx, suite.creator.ID, 10, 0)
	suite.Require().NoError(err)
	suite.Len(mine, 1)

	theirs, err := suite.repo.ListByCreator(suite.ctx, other.ID, 10, 0)
	suite.Require().NoError(err)
	suite.Empty(theirs)
}

func TestTokenRepositoryTestSuite(t *testing.T) {
	suite.Run(t, new(TokenRepositoryTestSuite))
}
