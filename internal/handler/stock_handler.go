package handler

import (
	"net/http"

	"procurement/internal/middleware"
	"procurement/internal/service"
	"procurement/pkg/pagination"
	"procurement/pkg/response"

	"github.com/gin-gonic/gin"
)

type StockHandler struct {
	stockService service.StockService
	auth         *middleware.Authenticator
}

func NewStockHandler(stockService service.StockService, auth *middleware.Authenticator) *StockHandler {
	return &StockHandler{stockService: stockService, auth: auth}
}

// RegisterRoutes expects router to run Authenticate already.
func (h *StockHandler) RegisterRoutes(router *gin.RouterGroup) {
	stock := router.Group("/api/stock", h.auth.RequirePermission(service.PermViewStock))
	{
		stock.GET("", h.ListStock)
		stock.GET("/receipts/:id", h.ReceiptMovements)
	}
}

// ListStock returns on-hand quantities built from completed goods receipts
// @Summary      List stock on hand
// @Tags         stock
// @Produce      json
// @Security     BearerAuth
// @Param        search  query     string  false  "Search by description"
// @Param        page    query     int     false  "Page number (default 1)"
// @Param        limit   query     int     false  "Items per page (default 20)"
// @Success      200     {object}  response.Response{data=response.Page[service.StockItemResponse]}
// @Router       /api/stock [get]
func (h *StockHandler) ListStock(c *gin.Context) {
	p := pagination.Parse(c)

	items, total, err := h.stockService.ListStock(c.Request.Context(), service.StockListFilter{
		Search: c.Query("search"),
		Offset: p.Offset,
		Limit:  p.Limit,
	})
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, response.Success(http.StatusOK, response.NewPage(items, total, p.Page, p.Limit)))
}

// ReceiptMovements returns the stock card lines a goods receipt posted
// @Summary      Stock movements of a goods receipt
// @Tags         stock
// @Produce      json
// @Security     BearerAuth
// @Param        id   path      string  true  "Goods receipt ID"
// @Success      200  {object}  response.Response{data=[]service.StockMovementResponse}
// @Failure      404  {object}  response.Response
// @Router       /api/stock/receipts/{id} [get]
func (h *StockHandler) ReceiptMovements(c *gin.Context) {
	movements, err := h.stockService.ReceiptMovements(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, movements))
}
