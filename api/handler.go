package api

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"stock_ledger/internal/coordinator"
	"stock_ledger/internal/inventory"
	"stock_ledger/internal/sales"
)

// ledgerHandler exposes the coordinator over HTTP.
type ledgerHandler struct {
	coord  *coordinator.Coordinator
	logger *zap.Logger
}

// NewLedgerHandler creates a new ledger handler.
func NewLedgerHandler(coord *coordinator.Coordinator, logger *zap.Logger) *ledgerHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ledgerHandler{
		coord:  coord,
		logger: logger,
	}
}

type productRequest struct {
	Barcode  string           `json:"barcode"`
	Name     string           `json:"name"`
	Category string           `json:"category"`
	Size     string           `json:"size"`
	Color    string           `json:"color"`
	Price    decimal.Decimal  `json:"price"`
	Quantity *int             `json:"quantity"`
	Photo    *inventory.Photo `json:"photo"`
}

// handleCreateProduct handles the POST /products endpoint.
func (h *ledgerHandler) handleCreateProduct(ctx *gin.Context) {
	var req productRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		h.logger.Warn("failed to bind JSON request", zap.Error(err))
		ctx.JSON(http.StatusBadRequest, gin.H{"error": "invalid request payload"})
		return
	}
	if req.Quantity == nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": "invalid input: initial quantity is required"})
		return
	}

	created, err := h.coord.RegisterProduct(ctx.Request.Context(), inventory.Product{
		Barcode:  req.Barcode,
		Name:     req.Name,
		Category: req.Category,
		Size:     req.Size,
		Color:    req.Color,
		Price:    req.Price,
		Quantity: *req.Quantity,
		Photo:    req.Photo,
	})
	if err != nil {
		h.writeError(ctx, "failed to register product", err)
		return
	}
	ctx.JSON(http.StatusCreated, created)
}

// handleUpdateProduct handles PUT /products/:barcode. A body barcode different
// from the path one moves the product.
func (h *ledgerHandler) handleUpdateProduct(ctx *gin.Context) {
	barcode := ctx.Param("barcode")
	var req productRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		h.logger.Warn("failed to bind JSON request", zap.Error(err))
		ctx.JSON(http.StatusBadRequest, gin.H{"error": "invalid request payload"})
		return
	}

	updated, err := h.coord.EditProduct(ctx.Request.Context(), barcode, inventory.Fields{
		NewBarcode: req.Barcode,
		Name:       req.Name,
		Category:   req.Category,
		Size:       req.Size,
		Color:      req.Color,
		Price:      req.Price,
		Photo:      req.Photo,
	})
	if err != nil {
		h.writeError(ctx, "failed to update product", err)
		return
	}
	ctx.JSON(http.StatusOK, updated)
}

func (h *ledgerHandler) handleDeleteProduct(ctx *gin.Context) {
	removed, err := h.coord.RemoveProduct(ctx.Request.Context(), ctx.Param("barcode"))
	if err != nil {
		h.writeError(ctx, "failed to remove product", err)
		return
	}
	ctx.JSON(http.StatusOK, removed)
}

func (h *ledgerHandler) handleGetProduct(ctx *gin.Context) {
	barcode := ctx.Param("barcode")
	p, ok := h.coord.FindProduct(barcode)
	if !ok {
		ctx.JSON(http.StatusNotFound, gin.H{"error": "product " + barcode + " not found"})
		return
	}
	ctx.JSON(http.StatusOK, p)
}

// handleListProducts handles GET /products with optional category and q filters.
func (h *ledgerHandler) handleListProducts(ctx *gin.Context) {
	category := ctx.Query("category")
	query := ctx.Query("q")

	var results []inventory.Product
	if category == "" && query == "" {
		results = h.coord.ListProducts()
	} else {
		results = h.coord.SearchProducts(category, query)
	}
	ctx.JSON(http.StatusOK, gin.H{"results": results, "count": len(results)})
}

func (h *ledgerHandler) handleLowStock(ctx *gin.Context) {
	threshold := 0
	if raw := ctx.Query("threshold"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			ctx.JSON(http.StatusBadRequest, gin.H{"error": "invalid input: threshold must be a positive integer"})
			return
		}
		threshold = n
	}
	results := h.coord.LowStock(threshold)
	ctx.JSON(http.StatusOK, gin.H{"results": results, "count": len(results)})
}

// handleAdjustStock handles POST /products/:barcode/adjust.
func (h *ledgerHandler) handleAdjustStock(ctx *gin.Context) {
	var req struct {
		Delta int `json:"delta"`
	}
	if err := ctx.ShouldBindJSON(&req); err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": "invalid request payload"})
		return
	}

	p, err := h.coord.AdjustStock(ctx.Request.Context(), ctx.Param("barcode"), req.Delta)
	if err != nil {
		h.writeError(ctx, "failed to adjust stock", err)
		return
	}
	ctx.JSON(http.StatusOK, p)
}

// handleSetStock handles PUT /products/:barcode/quantity.
func (h *ledgerHandler) handleSetStock(ctx *gin.Context) {
	var req struct {
		Quantity *int `json:"quantity"`
	}
	if err := ctx.ShouldBindJSON(&req); err != nil || req.Quantity == nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": "invalid request payload"})
		return
	}

	p, err := h.coord.SetStock(ctx.Request.Context(), ctx.Param("barcode"), *req.Quantity)
	if err != nil {
		h.writeError(ctx, "failed to set stock", err)
		return
	}
	ctx.JSON(http.StatusOK, p)
}

// handleCreateSale handles the POST /sales endpoint.
func (h *ledgerHandler) handleCreateSale(ctx *gin.Context) {
	var req coordinator.SaleLine
	if err := ctx.ShouldBindJSON(&req); err != nil {
		h.logger.Warn("failed to bind JSON request", zap.Error(err))
		ctx.JSON(http.StatusBadRequest, gin.H{"error": "invalid request payload"})
		return
	}

	res, err := h.coord.Sell(ctx.Request.Context(), req.Barcode, req.Quantity)
	if err != nil {
		h.writeError(ctx, "failed to record sale", err)
		return
	}
	ctx.JSON(http.StatusCreated, res)
}

// handleCreateMultiSale handles the POST /sales/multi endpoint.
func (h *ledgerHandler) handleCreateMultiSale(ctx *gin.Context) {
	var req struct {
		Lines []coordinator.SaleLine `json:"lines"`
	}
	if err := ctx.ShouldBindJSON(&req); err != nil {
		h.logger.Warn("failed to bind JSON request", zap.Error(err))
		ctx.JSON(http.StatusBadRequest, gin.H{"error": "invalid request payload"})
		return
	}

	res, err := h.coord.SellMulti(ctx.Request.Context(), req.Lines)
	if err != nil {
		h.writeError(ctx, "failed to record multi-sale", err)
		return
	}
	ctx.JSON(http.StatusCreated, res)
}

func (h *ledgerHandler) handleCancelSale(ctx *gin.Context) {
	res, err := h.coord.CancelSale(ctx.Request.Context(), ctx.Param("id"))
	if err != nil {
		h.writeError(ctx, "failed to cancel sale", err)
		return
	}
	ctx.JSON(http.StatusOK, cancelResponse(res))
}

func (h *ledgerHandler) handleCancelMultiSale(ctx *gin.Context) {
	res, err := h.coord.CancelMultiSale(ctx.Request.Context(), ctx.Param("groupId"))
	if err != nil {
		h.writeError(ctx, "failed to cancel multi-sale", err)
		return
	}
	ctx.JSON(http.StatusOK, cancelResponse(res))
}

func cancelResponse(res coordinator.CancelResult) gin.H {
	body := gin.H{
		"removed":   res.Removed,
		"restored":  res.Restored,
		"amount":    res.Amount,
		"totalCash": res.TotalCash,
	}
	if res.PartialRestore() {
		body["skippedRestores"] = res.SkippedRestores
		body["warning"] = "some products no longer exist; their stock was not restored"
	}
	return body
}

// handleGetSales handles GET /sales?period=&q=.
func (h *ledgerHandler) handleGetSales(ctx *gin.Context) {
	period, err := sales.ParsePeriod(ctx.Query("period"))
	if err != nil {
		h.writeError(ctx, "invalid sales query", err)
		return
	}

	res := h.coord.QueryTransactions(period, ctx.Query("q"))
	ctx.JSON(http.StatusOK, gin.H{
		"results":   res.Transactions,
		"metadata":  res.Summary,
		"totalCash": h.coord.TotalCash(),
	})
}

// handleCloseRegister handles POST /register/close. The period defaults to today.
func (h *ledgerHandler) handleCloseRegister(ctx *gin.Context) {
	period, err := sales.ParsePeriod(ctx.DefaultQuery("period", string(sales.PeriodToday)))
	if err != nil {
		h.writeError(ctx, "invalid close period", err)
		return
	}

	res, err := h.coord.CloseRegister(ctx.Request.Context(), period)
	if err != nil {
		h.writeError(ctx, "failed to close register", err)
		return
	}
	if res.Nothing {
		ctx.JSON(http.StatusOK, gin.H{"message": "nothing to reset", "result": res})
		return
	}
	ctx.JSON(http.StatusOK, gin.H{"message": "register closed", "result": res})
}

func (h *ledgerHandler) handleDashboard(ctx *gin.Context) {
	ctx.JSON(http.StatusOK, h.coord.Dashboard())
}
