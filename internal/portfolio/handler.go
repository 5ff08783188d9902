package portfolio

import (
	"net/http"
	"strconv"

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

func (h *Handler) GetPortfolio(c *gin.Context) {
	accountID, ok := auth.AccountID(c)
	if !ok {
		apierror.Respond(c, ledger.Fail(ledger.ErrUnauthorized, "account is required"))
		return
	}

	portfolio, err := h.service.Holdings(c.Request.Context(), accountID)
	if err != nil {
		apierror.Respond(c, err)
		return
	}

	c.JSON(http.StatusOK, portfolio)
}

func (h *Handler) GetHistory(c *gin.Context) {
	accountID, ok := auth.AccountID(c)
	if !ok {
		apierror.Respond(c, ledger.Fail(ledger.ErrUnauthorized, "account is required"))
		return
	}
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "10"))
	offset, _ := strconv.Atoi(c.DefaultQuery("offset", "0"))

	trades, err := h.service.History(c.Request.Context(), accountID, limit, offset)
	if err != nil {
		apierror.Respond(c, err)
		return
	}

	c.JSON(http.StatusOK, trades)
}

func (h *Handler) GetHolders(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "10"))
	offset, _ := strconv.Atoi(c.DefaultQuery("offset", "0"))

	holders, err := h.service.Holders(c.Request.Context(), c.Param("symbol"), limit, offset)
	if err != nil {
		apierror.Respond(c, err)
		return
	}

	c.JSON(http.StatusOK, holders)
}

// RegisterRoutes mounts the portfolio endpoints and the per-token holder list.
func (h *Handler) RegisterRoutes(router *gin.RouterGroup, requireAccount gin.HandlerFunc) {
	portfolio := router.Group("/portfolio", requireAccount)
	{
		portfolio.GET("", h.GetPortfolio)
		portfolio.GET("/transactions", h.GetHistory)
	}
	router.GET("/tokens/:symbol/holders", h.GetHolders)
}
