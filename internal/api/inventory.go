package api

import (
	"bytes"
	"net/http"
	"strconv"

	"inventory-service/internal/service"

	"github.com/gin-gonic/gin"
)

func (h *Handler) listProducts(c *gin.Context) {
	products, err := h.catalog.ListProducts(c.Request.Context())
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, products)
}

func (h *Handler) getProduct(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	product, err := h.catalog.GetProduct(c.Request.Context(), id)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, product)
}

func (h *Handler) createProduct(c *gin.Context) {
	var req service.ProductRequest
	if !bindJSON(c, &req) {
		return
	}
	product, err := h.catalog.CreateProduct(c.Request.Context(), &req)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, product)
}

func (h *Handler) updateProduct(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	var req service.ProductRequest
	if !bindJSON(c, &req) {
		return
	}
	product, err := h.catalog.UpdateProduct(c.Request.Context(), id, &req)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, product)
}

func (h *Handler) deleteProduct(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	if err := h.catalog.DeleteProduct(c.Request.Context(), id); err != nil {
		h.writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *Handler) addBatch(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	var req service.AddBatchRequest
	if !bindJSON(c, &req) {
		return
	}
	batch, err := h.inventory.AddBatch(c.Request.Context(), id, &req)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, batch)
}

func (h *Handler) updateBatch(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	batchID, ok := pathID(c, "batch_id")
	if !ok {
		return
	}
	var req service.UpdateBatchRequest
	if !bindJSON(c, &req) {
		return
	}
	batch, err := h.inventory.UpdateBatch(c.Request.Context(), id, batchID, &req)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, batch)
}

func (h *Handler) deleteBatch(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	batchID, ok := pathID(c, "batch_id")
	if !ok {
		return
	}
	if err := h.inventory.DeleteBatch(c.Request.Context(), id, batchID); err != nil {
		h.writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *Handler) getStock(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	level, err := h.inventory.GetStockLevel(c.Request.Context(), id)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, level)
}

func (h *Handler) ledgerCheck(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	report, err := h.inventory.ReconcileLedger(c.Request.Context(), id)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, report)
}

func (h *Handler) listSales(c *gin.Context) {
	sales, err := h.inventory.ListSales(c.Request.Context())
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, sales)
}

// createSale records a sale. An Idempotency-Key header makes retries safe.
func (h *Handler) createSale(c *gin.Context) {
	key, ok := idempotencyKeyHeader(c)
	if !ok {
		return
	}
	var req service.CreateSaleRequest
	if !bindJSON(c, &req) {
		return
	}
	req.IdempotencyKey = key

	result, err := h.inventory.CreateSale(c.Request.Context(), &req)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, result)
}

// listInventory lists ledger entries, optionally for one product
func (h *Handler) listInventory(c *gin.Context) {
	var productID int64
	if raw := c.Query("product_id"); raw != "" {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || id <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid product_id"})
			return
		}
		productID = id
	}

	entries, err := h.inventory.ListInventory(c.Request.Context(), productID)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, entries)
}

func (h *Handler) inventoryReport(c *gin.Context) {
	var buf bytes.Buffer
	if err := h.reports.WriteInventoryXLSX(c.Request.Context(), &buf); err != nil {
		h.writeError(c, err)
		return
	}
	c.Header("Content-Disposition", `attachment; filename="inventory.xlsx"`)
	c.Data(http.StatusOK, "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet", buf.Bytes())
}
