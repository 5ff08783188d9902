package token

import (
	"net/http"
	"strconv"
	"time"

	"github.com/Jainex17/CoinPlay/internal/apierror"
	"github.com/Jainex17/CoinPlay/internal/auth"
	"github.com/Jainex17/CoinPlay/internal/ledger"
	"github.com/gin-gonic/gin"
)

type Handler struct {
	service Service
}

func NewHandler(service Service) *Handler {
	return &Handler{service: service}
}

func (h *Handler) CreateToken(c *gin.Context) {
	accountID, ok := auth.AccountID(c)
	if !ok {
		apierror.Respond(c, ledger.Fail(ledger.ErrUnauthorized, "account is required"))
		return
	}
	var req CreateTokenRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		apierror.BadRequest(c, err)
		return
	}

	token, err := h.service.CreateToken(c.Request.Context(), req, accountID)
	if err != nil {
		apierror.Respond(c, err)
		return
	}

	c.JSON(http.StatusCreated, token)
}

func (h *Handler) GetToken(c *gin.Context) {
	token, err := h.service.GetToken(c.Request.Context(), c.Param("symbol"))
	if err != nil {
		apierror.Respond(c, err)
		return
	}

	c.JSON(http.StatusOK, token)
}

// ListTokens lists tokens newest first, or searches them when q is set.
func (h *Handler) ListTokens(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "10"))
	offset, _ := strconv.Atoi(c.DefaultQuery("offset", "0"))

	ctx := c.Request.Context()
	var err error
	var result interface{}
	switch {
	case c.Query("q") != "":
		result, err = h.service.SearchTokens(ctx, c.Query("q"), limit, offset)
	case c.Query("creator") != "":
		creatorID, perr := strconv.ParseUint(c.Query("creator"), 10, 32)
		if perr != nil {
			apierror.Respond(c, ledger.Fail(ledger.ErrValidation, "invalid creator id"))
			return
		}
		result, err = h.service.ListByCreator(ctx, uint(creatorID), limit, offset)
	default:
		result, err = h.service.ListTokens(ctx, limit, offset)
	}
	if err != nil {
		apierror.Respond(c, err)
		return
	}

	c.JSON(http.StatusOK, result)
}

func (h *Handler) GetMarket(c *gin.Context) {
	market, err := h.service.GetMarket(c.Request.Context(), c.Param("symbol"))
	if err != nil {
		apierror.Respond(c, err)
		return
	}

	c.JSON(http.StatusOK, market)
}

func (h *Handler) GetHistory(c *gin.Context) {
	hours, err := strconv.Atoi(c.DefaultQuery("hours", "24"))
	if err != nil {
		apierror.Respond(c, ledger.Fail(ledger.ErrValidation, "hours must be a whole number"))
		return
	}
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "0"))

	points, err := h.service.PriceHistory(c.Request.Context(), c.Param("symbol"), time.Duration(hours)*time.Hour, limit)
	if err != nil {
		apierror.Respond(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"symbol": ledger.NormalizeSymbol(c.Param("symbol")), "points": points})
}

func (h *Handler) GetTrades(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "10"))
	offset, _ := strconv.Atoi(c.DefaultQuery("offset", "0"))

	trades, err := h.service.RecentTrades(c.Request.Context(), c.Param("symbol"), limit, offset)
	if err != nil {
		apierror.Respond(c, err)
		return
	}

	c.JSON(http.StatusOK, trades)
}

// RegisterRoutes mounts the token endpoints. Creating a token requires an
// account.
func (h *Handler) RegisterRoutes(router *gin.RouterGroup, requireAccount gin.HandlerFunc) {
	tokens := router.Group("/tokens")
	{
		tokens.POST("", requireAccount, h.CreateToken)
		tokens.GET("", h.ListTokens)
		tokens.GET("/:symbol", h.GetToken)
		tokens.GET("/:symbol/market", h.GetMarket)
		tokens.GET("/:symbol/history", h.GetHistory)
		tokens.GET("/:symbol/trades", h.GetTrades)
	}
}
