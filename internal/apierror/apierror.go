// Package apierror renders ledger errors as HTTP responses.
package apierror

import (
	"errors"
	"net/http"

	"github.com/Jainex17/CoinPlay/internal/ledger"
	"github.com/gin-gonic/gin"
)

var kinds = []struct {
	kind   error
	status int
	code   string
}{
	{ledger.ErrValidation, http.StatusBadRequest, "VALIDATION_ERROR"},
	{ledger.ErrUnauthorized, http.StatusUnauthorized, "UNAUTHORIZED"},
	{ledger.ErrNotFound, http.StatusNotFound, "NOT_FOUND"},
	{ledger.ErrSymbolTaken, http.StatusConflict, "SYMBOL_TAKEN"},
	{ledger.ErrInsufficientFunds, http.StatusUnprocessableEntity, "INSUFFICIENT_FUNDS"},
	{ledger.ErrInsufficientHolding, http.StatusUnprocessableEntity, "INSUFFICIENT_HOLDING"},
	{ledger.ErrAmountTooSmall, http.StatusUnprocessableEntity, "AMOUNT_TOO_SMALL"},
	{ledger.ErrPoolExhausted, http.StatusUnprocessableEntity, "POOL_EXHAUSTED"},
	{ledger.ErrStorage, http.StatusServiceUnavailable, "STORAGE_FAILURE"},
}

// Status returns the HTTP status and machine code for err.
func Status(err error) (int, string) {
	for _, k := range kinds {
		if errors.Is(err, k.kind) {
			return k.status, k.code
		}
	}
	return http.StatusInternalServerError, "INTERNAL_ERROR"
}

// Respond writes err as a JSON error body. Unclassified errors never leak
// their message.
func Respond(c *gin.Context, err error) {
	status, code := Status(err)
	body := gin.H{"error": "internal error", "code": code}

	var le *ledger.Error
	if errors.As(err, &le) {
		body["error"] = le.Reason
		if le.Reason == "" {
			body["error"] = le.Kind.Error()
		}
		if le.Kind == ledger.ErrAmountTooSmall && le.Minimum > 0 {
			body["minimum"] = le.Minimum
		}
		if le.Retriable() {
			body["retriable"] = true
		}
	}
	c.JSON(status, body)
}

// BadRequest rejects a malformed request body.
func BadRequest(c *gin.Context, err error) {
	c.JSON(http.StatusBadRequest, gin.H{"error": err.Error(), "code": "VALIDATION_ERROR"})
}
