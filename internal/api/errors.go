package api

import (
	"errors"
	"net/http"

	"inventory-service/internal/service"
	"inventory-service/internal/store"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// writeError maps service and store errors onto HTTP responses
func (h *Handler) writeError(c *gin.Context, err error) {
	var (
		stockErr      *service.InsufficientStockError
		supplierErr   *service.InsufficientSupplierStockError
		transitionErr *service.InvalidTransitionError
	)

	switch {
	case errors.As(err, &stockErr):
		c.JSON(http.StatusConflict, gin.H{
			"error":      "Insufficient stock",
			"details":    err.Error(),
			"product_id": stockErr.ProductID,
			"requested":  stockErr.Requested,
			"available":  stockErr.Available,
		})
	case errors.As(err, &supplierErr):
		c.JSON(http.StatusConflict, gin.H{
			"error":               "Insufficient supplier stock",
			"details":             err.Error(),
			"item_id":             supplierErr.ItemID,
			"supplier_product_id": supplierErr.SupplierProductID,
			"requested":           supplierErr.Requested,
			"available":           supplierErr.Available,
		})
	case errors.As(err, &transitionErr):
		c.JSON(http.StatusUnprocessableEntity, gin.H{
			"error":   "Invalid status transition",
			"details": err.Error(),
			"from":    transitionErr.From,
			"to":      transitionErr.To,
		})
	case errors.Is(err, service.ErrInvalidTransition):
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": "Invalid status transition", "details": err.Error()})
	case errors.Is(err, store.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "Not found", "details": err.Error()})
	case errors.Is(err, service.ErrInvalidInput):
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid input", "details": err.Error()})
	case errors.Is(err, store.ErrConflict), errors.Is(err, store.ErrInsufficientStock):
		c.JSON(http.StatusConflict, gin.H{"error": "Conflict", "details": err.Error()})
	case errors.Is(err, service.ErrBusy):
		c.JSON(http.StatusConflict, gin.H{"error": "Busy", "details": err.Error()})
	case errors.Is(err, service.ErrUnauthorized):
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized", "details": err.Error()})
	case errors.Is(err, service.ErrForbidden):
		c.JSON(http.StatusForbidden, gin.H{"error": "Forbidden", "details": err.Error()})
	default:
		h.logger.Error("Request failed",
			zap.String("method", c.Request.Method),
			zap.String("path", c.FullPath()),
			zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
	}
}
