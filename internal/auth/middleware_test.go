package auth

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/Jainex17/CoinPlay/internal/ledger"
	"github.com/Jainex17/CoinPlay/internal/models"
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/suite"
)

type MockAccountLookup struct {
	mock.Mock
}

func (m *MockAccountLookup) GetAccount(ctx context.Context, id uint) (*models.Account, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Account), args.Error(1)
}

// AuthMiddlewareTestSuite exercises account resolution
type AuthMiddlewareTestSuite struct {
	suite.Suite
	accounts *MockAccountLookup
	router   *gin.Engine
}

func (suite *AuthMiddlewareTestSuite) SetupTest() {
	gin.SetMode(gin.TestMode)
	logger, _ := test.NewNullLogger()

	suite.accounts = new(MockAccountLookup)
	middleware := NewAuthMiddleware(suite.accounts, logger)

	suite.router = gin.New()
	suite.router.GET("/me", middleware.RequireAccount(), func(c *gin.Context) {
		id, ok := AccountID(c)
		if !ok {
			c.Status(http.StatusInternalServerError)
			return
		}
		c.JSON(http.StatusOK, gin.H{"account_id": id})
	})
}

func (suite *AuthMiddlewareTestSuite) request(header string) *httptest.ResponseRecorder {
	req, _ := http.NewRequest(http.MethodGet, "/me", nil)
	if header != "" {
		req.Header.Set(AccountHeader, header)
	}
	resp := httptest.NewRecorder()
	suite.router.ServeHTTP(resp, req)
	return resp
}

func (suite *AuthMiddlewareTestSuite) TestValidAccount() {
	suite.accounts.On("GetAccount", mock.Anything, uint(7)).Return(&models.Account{ID: 7}, nil)

	resp := suite.request("7")
	suite.Equal(http.StatusOK, resp.Code)
	suite.JSONEq(`{"account_id": 7}`, resp.Body.String())
	suite.accounts.AssertExpectations(suite.T())
}

func (suite *AuthMiddlewareTestSuite) TestMissingHeader() {
	resp := suite.request("")
	suite.Equal(http.StatusUnauthorized, resp.Code)
	suite.Contains(resp.Body.String(), "ACCOUNT_HEADER_MISSING")
}

func (suite *AuthMiddlewareTestSuite) TestMalformedHeader() {
	for _, header := range []string{"abc", "-1", "0", "1.5", "99999999999"} {
		resp := suite.request(header)
		suite.Equal(http.StatusUnauthorized, resp.Code, header)
		suite.Contains(resp.Body.String(), "INVALID_ACCOUNT_ID", header)
	}
	suite.accounts.AssertNotCalled(suite.T(), "GetAccount", mock.Anything, mock.Anything)
}

func (suite *AuthMiddlewareTestSuite) TestUnknownAccount() {
	suite.accounts.On("GetAccount", mock.Anything, uint(8)).Return(nil, ledger.Fail(ledger.ErrNotFound, "account 8 not found"))

	resp := suite.request("8")
	suite.Equal(http.StatusUnauthorized, resp.Code)
	suite.Contains(resp.Body.String(), "ACCOUNT_NOT_FOUND")
}

func (suite *AuthMiddlewareTestSuite) TestLookupFailure() {
	suite.accounts.On("GetAccount", mock.Anything, uint(9)).Return(nil, errors.New("connection reset"))

	resp := suite.request("9")
	suite.Equal(http.StatusServiceUnavailable, resp.Code)
	suite.NotContains(resp.Body.String(), "connection reset")
}

func TestAuthMiddlewareTestSuite(t *testing.T) {
	suite.Run(t, new(AuthMiddlewareTestSuite))
}

func TestSecurityHeaders(t *testing.T) {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.Use(SecurityHeaders())
	router.GET("/health", func(c *gin.Context) { c.Status(http.StatusOK) })

	resp := httptest.NewRecorder()
	req, _ := http.NewRequest(http.MethodGet, "/health", nil)
	router.ServeHTTP(resp, req)

	assert.Equal(t, "nosniff", resp.Header().Get("X-Content-Type-Options"))
	assert.Equal(t, "DENY", resp.Header().Get("X-Frame-Options"))
}

func TestSecureCORS(t *testing.T) {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.Use(SecureCORS([]string{"http://localhost:3000"}))
	router.GET("/tokens", func(c *gin.Context) { c.Status(http.StatusOK) })

	t.Run("AllowedOrigin", func(t *testing.T) {
		req, _ := http.NewRequest(http.MethodGet, "/tokens", nil)
		req.Header.Set("Origin", "http://localhost:3000")
		resp := httptest.NewRecorder()
		router.ServeHTTP(resp, req)
		assert.Equal(t, "http://localhost:3000", resp.Header().Get("Access-Control-Allow-Origin"))
	})

	t.Run("ForeignOrigin", func(t *testing.T) {
		req, _ := http.NewRequest(http.MethodGet, "/tokens", nil)
		req.Header.Set("Origin", "https://evil.example")
		resp := httptest.NewRecorder()
		router.ServeHTTP(resp, req)
		assert.Empty(t, resp.Header().Get("Access-Control-Allow-Origin"))
	})

	t.Run("Preflight", func(t *testing.T) {
		req, _ := http.NewRequest(http.MethodOptions, "/tokens", nil)
		resp := httptest.NewRecorder()
		router.ServeHTTP(resp, req)
		assert.Equal(t, http.StatusNoContent, resp.Code)
		assert.Contains(t, resp.Header().Get("Access-Control-Allow-Headers"), AccountHeader)
	})
}
