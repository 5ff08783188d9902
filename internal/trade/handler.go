package trade

import (
	"net/http"

	"github.com/Jainex17/CoinPlay/internal/apierror"
	"github.com/Jainex17/CoinPlay/internal/auth"
	"github.com/Jainex17/CoinPlay/internal/ledger"
	"github.com/Jainex17/CoinPlay/internal/models"
	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
)

// amounts accept JSON numbers or decimal strings
type tradePayload struct {
	Symbol string              `json:"symbol"`
	Amount decimal.NullDecimal `json:"amount"`
}

type quotePayload struct {
	Symbol    string              `json:"symbol"`
	Direction string              `json:"direction"`
	Amount    decimal.NullDecimal `json:"amount"`
}

type Handler struct {
	service Service
}

func NewHandler(service Service) *Handler {
	return &Handler{service: service}
}

func (h *Handler) Buy(c *gin.Context) {
	accountID, ok := auth.AccountID(c)
	if !ok {
		apierror.Respond(c, ledger.Fail(ledger.ErrUnauthorized, "account is required"))
		return
	}
	var payload tradePayload
	if err := c.ShouldBindJSON(&payload); err != nil {
		apierror.BadRequest(c, err)
		return
	}

	result, err := h.service.Buy(c.Request.Context(), BuyRequest{
		Symbol:    payload.Symbol,
		AccountID: accountID,
		Amount:    payload.Amount,
	})
	if err != nil {
		apierror.Respond(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

func (h *Handler) Sell(c *gin.Context) {
	accountID, ok := auth.AccountID(c)
	if !ok {
		apierror.Respond(c, ledger.Fail(ledger.ErrUnauthorized, "account is required"))
		return
	}
	var payload tradePayload
	if err := c.ShouldBindJSON(&payload); err != nil {
		apierror.BadRequest(c, err)
		return
	}

	result, err := h.service.Sell(c.Request.Context(), SellRequest{
		Symbol:    payload.Symbol,
		AccountID: accountID,
		Amount:    payload.Amount,
	})
	if err != nil {
		apierror.Respond(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

func (h *Handler) Quote(c *gin.Context) {
	var payload quotePayload
	if err := c.ShouldBindJSON(&payload); err != nil {
		apierror.BadRequest(c, err)
		return
	}

	result, err := h.service.Quote(c.Request.Context(), QuoteRequest{
		Symbol:    payload.Symbol,
		Direction: models.Direction(payload.Direction),
		Amount:    payload.Amount,
	})
	if err != nil {
		apierror.Respond(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

// RegisterRoutes mounts the trade endpoints. requireAccount guards the
// endpoints that move funds.
func (h *Handler) RegisterRoutes(router *gin.RouterGroup, requireAccount gin.HandlerFunc) {
	trades := router.Group("/trade")
	{
		trades.POST("/buy", requireAccount, h.Buy)
		trades.POST("/sell", requireAccount, h.Sell)
		trades.POST("/quote", h.Quote)
	}
}
