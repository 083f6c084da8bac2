package api

import (
	"net/http"

	"inventory-service/internal/service"

	"github.com/gin-gonic/gin"
)

func (h *Handler) listSuppliers(c *gin.Context) {
	suppliers, err := h.catalog.ListSuppliers(c.Request.Context())
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, suppliers)
}

func (h *Handler) listOwnSupplierProducts(c *gin.Context) {
	products, err := h.catalog.ListSupplierProducts(c.Request.Context(), currentActor(c).UserID)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, products)
}

func (h *Handler) listSupplierProductsBySupplier(c *gin.Context) {
	supplierID, ok := pathID(c, "supplier_id")
	if !ok {
		return
	}
	products, err := h.catalog.ListSupplierProducts(c.Request.Context(), supplierID)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, products)
}

func (h *Handler) createSupplierProduct(c *gin.Context) {
	var req service.SupplierProductRequest
	if !bindJSON(c, &req) {
		return
	}
	sp, err := h.catalog.CreateSupplierProduct(c.Request.Context(), currentActor(c).UserID, &req)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, sp)
}

func (h *Handler) updateSupplierProduct(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	var req service.SupplierProductRequest
	if !bindJSON(c, &req) {
		return
	}
	sp, err := h.catalog.UpdateSupplierProduct(c.Request.Context(), currentActor(c).UserID, id, &req)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, sp)
}

func (h *Handler) deleteSupplierProduct(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	if err := h.catalog.DeleteSupplierProduct(c.Request.Context(), currentActor(c).UserID, id); err != nil {
		h.writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *Handler) listMappings(c *gin.Context) {
	mappings, err := h.catalog.ListMappings(c.Request.Context())
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, mappings)
}

func (h *Handler) upsertMapping(c *gin.Context) {
	var req service.MappingRequest
	if !bindJSON(c, &req) {
		return
	}
	mapping, err := h.catalog.UpsertMapping(c.Request.Context(), &req)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, mapping)
}

func (h *Handler) deleteMapping(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	if err := h.catalog.DeleteMapping(c.Request.Context(), id); err != nil {
		h.writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *Handler) listOwnBankAccounts(c *gin.Context) {
	accounts, err := h.catalog.ListBankAccounts(c.Request.Context(), currentActor(c).UserID)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, accounts)
}

func (h *Handler) listBankAccountsBySupplier(c *gin.Context) {
	supplierID, ok := pathID(c, "supplier_id")
	if !ok {
		return
	}
	actor := currentActor(c)
	if actor.IsSupplier() && actor.UserID != supplierID {
		c.JSON(http.StatusForbidden, gin.H{"error": "Cannot view another supplier's bank accounts"})
		return
	}
	accounts, err := h.catalog.ListBankAccounts(c.Request.Context(), supplierID)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, accounts)
}

func (h *Handler) upsertBankAccount(c *gin.Context) {
	var req service.BankAccountRequest
	if !bindJSON(c, &req) {
		return
	}
	acc, err := h.catalog.UpsertBankAccount(c.Request.Context(), currentActor(c).UserID, &req)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, acc)
}

func (h *Handler) deleteBankAccount(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	if err := h.catalog.DeleteBankAccount(c.Request.Context(), currentActor(c).UserID, id); err != nil {
		h.writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
