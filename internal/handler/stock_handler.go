package handler

import (
	"net/http"

	"salesledger/internal/logger"
	"salesledger/internal/model"
	"salesledger/internal/service"
	"salesledger/pkg/pagination"
	"salesledger/pkg/response"

	"github.com/gin-gonic/gin"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

type StockHandler struct {
	stockService service.StockService
	guard        RoleGuard
	idempotent   gin.HandlerFunc
}

func NewStockHandler(stockService service.StockService, guard RoleGuard, idempotent gin.HandlerFunc) *StockHandler {
	return &StockHandler{stockService: stockService, guard: guard, idempotent: idempotent}
}

func (h *StockHandler) RegisterRoutes(router *gin.RouterGroup) {
	staff := h.guard(model.RoleAdmin, model.RoleManager)

	stock := router.Group("/api/stock")
	{
		stock.POST("/import", staff, h.idempotent, h.ImportStock)
		stock.POST("/import/bulk", staff, h.idempotent, h.BulkImportStock)
		stock.POST("/adjust", staff, h.idempotent, h.AdjustStock)
	}

	router.GET("/api/products/:id/stock-logs", h.guard(), h.ListStockLogs)
	router.GET("/api/products/:id/stock-logs/export", h.guard(), h.ExportStockLogs)
}

// ImportStock adds received goods to a product
// @Summary      Import stock
// @Tags         stock
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        payload  body      service.StockImportRequest  true  "Import"
// @Success      200      {object}  response.Response{data=service.StockChange}
// @Failure      400      {object}  response.Response
// @Failure      404      {object}  response.Response
// @Router       /api/stock/import [post]
func (h *StockHandler) ImportStock(c *gin.Context) {
	var req service.StockImportRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}

	userID, _ := currentUser(c)
	change, err := h.stockService.ImportStock(c.Request.Context(), userID, req)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, response.Success(http.StatusOK, change))
}

// BulkImportStock imports several lines in one all-or-nothing batch
// @Summary      Bulk import stock
// @Tags         stock
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        payload  body      service.BulkStockImportRequest  true  "Import lines"
// @Success      200      {object}  response.Response{data=[]service.StockChange}
// @Failure      400      {object}  response.Response
// @Failure      404      {object}  response.Response
// @Router       /api/stock/import/bulk [post]
func (h *StockHandler) BulkImportStock(c *gin.Context) {
	var req service.BulkStockImportRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}

	userID, _ := currentUser(c)
	changes, err := h.stockService.BulkImportStock(c.Request.Context(), userID, req)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, response.Success(http.StatusOK, changes))
}

// AdjustStock sets a product's stock to a counted quantity
// @Summary      Adjust stock
// @Tags         stock
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        payload  body      service.StockAdjustRequest  true  "Adjustment"
// @Success      200      {object}  response.Response{data=service.StockChange}
// @Failure      400      {object}  response.Response
// @Failure      404      {object}  response.Response
// @Router       /api/stock/adjust [post]
func (h *StockHandler) AdjustStock(c *gin.Context) {
	var req service.StockAdjustRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}

	userID, _ := currentUser(c)
	change, err := h.stockService.AdjustStock(c.Request.Context(), userID, req)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, response.Success(http.StatusOK, change))
}

// ListStockLogs pages through a product's stock movements, newest first
// @Summary      List stock logs
// @Tags         stock
// @Security     BearerAuth
// @Produce      json
// @Param        id     path      string  true   "Product ID"
// @Param        page   query     int     false  "Page number (default 1)"
// @Param        limit  query     int     false  "Number of items per page (default 20)"
// @Success      200    {object}  response.Response{data=pagination.Page}
// @Failure      404    {object}  response.Response
// @Router       /api/products/{id}/stock-logs [get]
func (h *StockHandler) ListStockLogs(c *gin.Context) {
	id, ok := uuidParam(c, "id")
	if !ok {
		return
	}
	p := pagination.Parse(c)

	logs, total, err := h.stockService.ListStockLogs(c.Request.Context(), id, p.Page, p.Limit)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, response.Success(http.StatusOK, pagination.NewPage(logs, total, p)))
}

// ExportStockLogs downloads a product's full stock trail as XLSX
// @Summary      Export stock logs
// @Tags         stock
// @Security     BearerAuth
// @Produce      application/vnd.openxmlformats-officedocument.spreadsheetml.sheet
// @Param        id   path      string  true  "Product ID"
// @Success      200  {file}    file
// @Failure      404  {object}  response.Response
// @Router       /api/products/{id}/stock-logs/export [get]
func (h *StockHandler) ExportStockLogs(c *gin.Context) {
	id, ok := uuidParam(c, "id")
	if !ok {
		return
	}

	export, err := h.stockService.ExportStockLogs(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	defer export.File.Close()

	c.Header("Content-Disposition", `attachment; filename="`+export.Filename+`"`)
	c.Header("Content-Type", xlsxContentType)
	c.Status(http.StatusOK)
	if err := export.File.Write(c.Writer); err != nil {
		logger.LogError("handler", "ExportStockLogs", "failed to stream workbook", id, err)
	}
}
