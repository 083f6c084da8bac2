package api

import (
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"inventory-service/internal/models"
	"inventory-service/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const maxReceiptSize = 10 << 20

var receiptExtensions = map[string]bool{
	".pdf": true, ".png": true, ".jpg": true, ".jpeg": true,
}

func (h *Handler) createPurchaseOrder(c *gin.Context) {
	key, ok := idempotencyKeyHeader(c)
	if !ok {
		return
	}
	var req service.CreatePurchaseOrderRequest
	if !bindJSON(c, &req) {
		return
	}
	if req.IdempotencyKey == "" {
		req.IdempotencyKey = key
	}

	order, err := h.orders.CreatePurchaseOrder(c.Request.Context(), &req)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, order)
}

// listPurchaseOrders shows a supplier only its own orders
func (h *Handler) listPurchaseOrders(c *gin.Context) {
	var supplierID int64
	if actor := currentActor(c); actor.IsSupplier() {
		supplierID = actor.UserID
	}
	orders, err := h.orders.ListPurchaseOrders(c.Request.Context(), supplierID)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, orders)
}

// visibleOrder loads the order and checks the caller may see it
func (h *Handler) visibleOrder(c *gin.Context, id int64) (*service.PurchaseOrderDetail, bool) {
	order, err := h.orders.GetPurchaseOrder(c.Request.Context(), id)
	if err != nil {
		h.writeError(c, err)
		return nil, false
	}
	if actor := currentActor(c); actor.IsSupplier() && order.SupplierID != actor.UserID {
		c.JSON(http.StatusForbidden, gin.H{"error": "Purchase order belongs to another supplier"})
		return nil, false
	}
	return order, true
}

func (h *Handler) getPurchaseOrder(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	order, ok := h.visibleOrder(c, id)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, order)
}

func (h *Handler) deletePurchaseOrder(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	if err := h.orders.DeletePurchaseOrder(c.Request.Context(), id); err != nil {
		h.writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// setPurchaseOrderStatus is open to managers and to the supplier the order was placed with
func (h *Handler) setPurchaseOrderStatus(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	var req service.SetStatusRequest
	if !bindJSON(c, &req) {
		return
	}
	if _, ok := h.visibleOrder(c, id); !ok {
		return
	}

	result, err := h.orders.SetStatus(c.Request.Context(), id, &req)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

// uploadPaymentReceipt accepts a multipart "file" or a "receipt_url" form field
// and marks the order paid.
func (h *Handler) uploadPaymentReceipt(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}

	receiptURL := strings.TrimSpace(c.PostForm("receipt_url"))
	if file, err := c.FormFile("file"); err == nil {
		ext := strings.ToLower(filepath.Ext(file.Filename))
		if !receiptExtensions[ext] {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Receipt must be a PDF or an image"})
			return
		}
		if file.Size > maxReceiptSize {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Receipt is too large"})
			return
		}
		if err := os.MkdirAll(h.opts.UploadsDir, 0o755); err != nil {
			h.writeError(c, fmt.Errorf("failed to prepare uploads dir: %w", err))
			return
		}

		name := uuid.New().String() + ext
		if err := c.SaveUploadedFile(file, filepath.Join(h.opts.UploadsDir, name)); err != nil {
			h.writeError(c, fmt.Errorf("failed to save receipt: %w", err))
			return
		}
		receiptURL = "/uploads/" + name
		h.logger.Info("Payment receipt stored", zap.Int64("order_id", id), zap.String("file", name))
	}

	if receiptURL == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "A receipt file or receipt_url is required"})
		return
	}

	order, err := h.orders.MarkPaid(c.Request.Context(), id, receiptURL)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"order":  order,
		"status": models.OrderStatusPaid,
	})
}
