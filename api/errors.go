package api

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"stock_ledger/internal/apperrors"
)

// writeError maps a domain error to its HTTP status. The body always names
// the failed precondition.
func (h *ledgerHandler) writeError(ctx *gin.Context, msg string, err error) {
	var stockErr *apperrors.InsufficientStockError
	switch {
	case errors.As(err, &stockErr):
		h.logger.Info(msg, zap.Error(err))
		ctx.JSON(http.StatusConflict, gin.H{
			"error":      err.Error(),
			"barcode":    stockErr.Barcode,
			"requested":  stockErr.Requested,
			"available":  stockErr.Available,
			"outOfStock": stockErr.OutOfStock(),
		})
	case errors.Is(err, apperrors.ErrNotFound):
		h.logger.Info(msg, zap.Error(err))
		ctx.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.Is(err, apperrors.ErrDuplicateBarcode):
		h.logger.Info(msg, zap.Error(err))
		ctx.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	case errors.Is(err, apperrors.ErrInvalidInput):
		h.logger.Info(msg, zap.Error(err))
		ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	default:
		h.logger.Error(msg, zap.Error(err))
		ctx.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}
