package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"stock_ledger/internal/coordinator"
)

// InitRoutes registers the product, sale and register endpoints on the given
// Gin engine, all served by coord.
func InitRoutes(e *gin.Engine, coord *coordinator.Coordinator, logger *zap.Logger) {
	h := NewLedgerHandler(coord, logger)

	e.POST("/products", h.handleCreateProduct)
	e.GET("/products", h.handleListProducts)
	e.GET("/products/low-stock", h.handleLowStock)
	e.GET("/products/:barcode", h.handleGetProduct)
	e.PUT("/products/:barcode", h.handleUpdateProduct)
	e.DELETE("/products/:barcode", h.handleDeleteProduct)
	e.POST("/products/:barcode/adjust", h.handleAdjustStock)
	e.PUT("/products/:barcode/quantity", h.handleSetStock)

	e.POST("/sales", h.handleCreateSale)
	e.POST("/sales/multi", h.handleCreateMultiSale)
	e.GET("/sales", h.handleGetSales)
	e.DELETE("/sales/:id", h.handleCancelSale)
	e.DELETE("/sales/groups/:groupId", h.handleCancelMultiSale)

	e.POST("/register/close", h.handleCloseRegister)
	e.GET("/dashboard", h.handleDashboard)

	e.GET("/ping", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"message": "pong",
		})
	})
}
