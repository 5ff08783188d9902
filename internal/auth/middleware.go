package auth

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/Jainex17/CoinPlay/internal/ledger"
	"github.com/Jainex17/CoinPlay/internal/models"
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

// AccountHeader carries the account id resolved by the upstream auth gateway.
const AccountHeader = "X-Account-ID"

const accountKey = "account_id"

// AccountLookup confirms that an account exists.
type AccountLookup interface {
	GetAccount(ctx context.Context, id uint) (*models.Account, error)
}

// AuthMiddleware resolves the calling account for protected routes
type AuthMiddleware struct {
	accounts AccountLookup
	log      logrus.FieldLogger
}

// NewAuthMiddleware creates a new authentication middleware
func NewAuthMiddleware(accounts AccountLookup, log logrus.FieldLogger) *AuthMiddleware {
	return &AuthMiddleware{accounts: accounts, log: log}
}

// RequireAccount rejects requests without a valid, existing account id.
func (am *AuthMiddleware) RequireAccount() gin.HandlerFunc {
	return func(c *gin.Context) {
		raw := strings.TrimSpace(c.GetHeader(AccountHeader))
		if raw == "" {
			c.JSON(http.StatusUnauthorized, gin.H{
				"error": "account header required",
				"code":  "ACCOUNT_HEADER_MISSING",
			})
			c.Abort()
			return
		}

		id, err := strconv.ParseUint(raw, 10, 32)
		if err != nil || id == 0 {
			c.JSON(http.StatusUnauthorized, gin.H{
				"error": "invalid account id",
				"code":  "INVALID_ACCOUNT_ID",
			})
			c.Abort()
			return
		}

		if _, err := am.accounts.GetAccount(c.Request.Context(), uint(id)); err != nil {
			if errors.Is(err, ledger.ErrNotFound) {
				c.JSON(http.StatusUnauthorized, gin.H{
					"error": "unknown account",
					"code":  "ACCOUNT_NOT_FOUND",
				})
			} else {
				am.log.WithError(err).Warn("Account lookup failed")
				c.JSON(http.StatusServiceUnavailable, gin.H{
					"error": "temporary failure, please try again",
					"code":  "STORAGE_FAILURE",
				})
			}
			c.Abort()
			return
		}

		c.Set(accountKey, uint(id))
		c.Next()
	}
}

// AccountID returns the account resolved by RequireAccount.
func AccountID(c *gin.Context) (uint, bool) {
	v, ok := c.Get(accountKey)
	if !ok {
		return 0, false
	}
	id, ok := v.(uint)
	return id, ok && id != 0
}

// SecurityHeaders middleware adds security headers
func SecurityHeaders() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("X-Content-Type-Options", "nosniff")
		c.Header("X-Frame-Options", "DENY")
		c.Header("Strict-Transport-Security", "max-age=31536000; includeSubDomains")
		c.Header("Content-Security-Policy", "default-src 'self'")
		c.Header("Referrer-Policy", "strict-origin-when-cross-origin")
		c.Next()
	}
}

// SecureCORS allows cross-origin requests from the configured origins only
func SecureCORS(allowedOrigins []string) gin.HandlerFunc {
	allowed := make(map[string]bool, len(allowedOrigins))
	for _, origin := range allowedOrigins {
		allowed[origin] = true
	}

	return func(c *gin.Context) {
		origin := c.Request.Header.Get("Origin")
		if allowed[origin] {
			c.Header("Access-Control-Allow-Origin", origin)
			c.Header("Vary", "Origin")
		}
		c.Header("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Origin, Content-Type, "+AccountHeader)
		c.Header("Access-Control-Max-Age", "86400")

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}
