package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"inventory-service/internal/models"
)

// CreatePurchaseOrder creates a new purchase order
func (q *queries) CreatePurchaseOrder(ctx context.Context, po *models.PurchaseOrder) error {
	query := `
		INSERT INTO purchase_orders (supplier_id, status, total_cost, description, idempotency_key)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, order_date`

	return q.get(ctx, po, query,
		po.SupplierID, po.Status, po.TotalCost, po.Description, po.IdempotencyKey)
}

// CreateOrderItem creates a new order item
func (q *queries) CreateOrderItem(ctx context.Context, item *models.OrderItem) error {
	query := `
		INSERT INTO purchase_order_items (purchase_order_id, supplier_product_id, quantity, unit_cost, subtotal)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id`

	return q.get(ctx, &item.ID, query,
		item.PurchaseOrderID, item.SupplierProductID, item.Quantity, item.UnitCost, item.Subtotal)
}

// GetPurchaseOrder retrieves an order by ID
func (q *queries) GetPurchaseOrder(ctx context.Context, id int64) (*models.PurchaseOrder, error) {
	var po models.PurchaseOrder
	if err := q.get(ctx, &po, "SELECT * FROM purchase_orders WHERE id = $1", id); err != nil {
		return nil, err
	}
	return &po, nil
}

// GetPurchaseOrderForUpdate locks the order row until the transaction ends
func (q *queries) GetPurchaseOrderForUpdate(ctx context.Context, id int64) (*models.PurchaseOrder, error) {
	var po models.PurchaseOrder
	if err := q.get(ctx, &po, "SELECT * FROM purchase_orders WHERE id = $1 FOR UPDATE", id); err != nil {
		return nil, err
	}
	return &po, nil
}

// GetPurchaseOrderByIdempotencyKey retrieves an order by idempotency key
func (q *queries) GetPurchaseOrderByIdempotencyKey(ctx context.Context, key string) (*models.PurchaseOrder, error) {
	var po models.PurchaseOrder
	err := q.get(ctx, &po, "SELECT * FROM purchase_orders WHERE idempotency_key = $1", key)
	if errors.Is(err, ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &po, nil
}

func (q *queries) ListPurchaseOrders(ctx context.Context, supplierID int64) ([]models.PurchaseOrder, error) {
	orders := []models.PurchaseOrder{}
	err := q.selectAll(ctx, &orders, `
		SELECT * FROM purchase_orders
		WHERE $1 = 0 OR supplier_id = $1
		ORDER BY order_date DESC, id DESC`, supplierID)
	return orders, err
}

// ListOrderItems retrieves all items for an order
func (q *queries) ListOrderItems(ctx context.Context, orderID int64) ([]models.OrderItem, error) {
	items := []models.OrderItem{}
	err := q.selectAll(ctx, &items,
		"SELECT * FROM purchase_order_items WHERE purchase_order_id = $1 ORDER BY id", orderID)
	return items, err
}

// UpdatePurchaseOrderStatus updates order status
func (q *queries) UpdatePurchaseOrderStatus(ctx context.Context, id int64, status models.OrderStatus) error {
	return q.execOne(ctx, "UPDATE purchase_orders SET status = $1 WHERE id = $2", status, id)
}

func (q *queries) SetPurchaseOrderPayment(ctx context.Context, id int64, receiptURL string, paidAt time.Time) error {
	return q.execOne(ctx,
		"UPDATE purchase_orders SET payment_receipt_url = $1, payment_date = $2 WHERE id = $3",
		receiptURL, paidAt, id)
}

func (q *queries) AddStatusHistory(ctx context.Context, h *models.StatusHistory) error {
	query := `
		INSERT INTO purchase_order_status_history (purchase_order_id, status, message)
		VALUES ($1, $2, $3)
		RETURNING id, updated_at`

	return q.get(ctx, h, query, h.PurchaseOrderID, h.Status, h.Message)
}

func (q *queries) ListStatusHistory(ctx context.Context, orderID int64) ([]models.StatusHistory, error) {
	history := []models.StatusHistory{}
	err := q.selectAll(ctx, &history,
		"SELECT * FROM purchase_order_status_history WHERE purchase_order_id = $1 ORDER BY id", orderID)
	return history, err
}

// DeletePurchaseOrder removes an order; items and history cascade
func (q *queries) DeletePurchaseOrder(ctx context.Context, id int64) error {
	return q.execOne(ctx, "DELETE FROM purchase_orders WHERE id = $1", id)
}

func (q *queries) ListSupplierProducts(ctx context.Context, supplierID int64) ([]models.SupplierProduct, error) {
	products := []models.SupplierProduct{}
	err := q.selectAll(ctx, &products,
		"SELECT * FROM supplier_products WHERE supplier_id = $1 ORDER BY id", supplierID)
	return products, err
}

func (q *queries) GetSupplierProduct(ctx context.Context, id int64) (*models.SupplierProduct, error) {
	var sp models.SupplierProduct
	if err := q.get(ctx, &sp, "SELECT * FROM supplier_products WHERE id = $1", id); err != nil {
		return nil, err
	}
	return &sp, nil
}

func (q *queries) GetSupplierProductForUpdate(ctx context.Context, id int64) (*models.SupplierProduct, error) {
	var sp models.SupplierProduct
	if err := q.get(ctx, &sp, "SELECT * FROM supplier_products WHERE id = $1 FOR UPDATE", id); err != nil {
		return nil, err
	}
	return &sp, nil
}

func (q *queries) GetSupplierProductByCode(ctx context.Context, code string) (*models.SupplierProduct, error) {
	var sp models.SupplierProduct
	if err := q.get(ctx, &sp, "SELECT * FROM supplier_products WHERE code = $1", code); err != nil {
		return nil, err
	}
	return &sp, nil
}

func (q *queries) CreateSupplierProduct(ctx context.Context, sp *models.SupplierProduct) error {
	query := `
		INSERT INTO supplier_products (supplier_id, name, category, code, cost, quantity_available)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id, created_at`

	return q.get(ctx, sp, query,
		sp.SupplierID, sp.Name, sp.Category, sp.Code, sp.Cost, sp.QuantityAvailable)
}

func (q *queries) UpdateSupplierProduct(ctx context.Context, sp *models.SupplierProduct) error {
	return q.execOne(ctx, `
		UPDATE supplier_products
		SET name = $1, category = $2, cost = $3, quantity_available = $4
		WHERE id = $5`,
		sp.Name, sp.Category, sp.Cost, sp.QuantityAvailable, sp.ID)
}

func (q *queries) DeleteSupplierProduct(ctx context.Context, id int64) error {
	return q.execOne(ctx, "DELETE FROM supplier_products WHERE id = $1", id)
}

func (q *queries) AdjustSupplierStock(ctx context.Context, id int64, delta int) error {
	res, err := q.ext.ExecContext(ctx, `
		UPDATE supplier_products
		SET quantity_available = quantity_available + $1
		WHERE id = $2 AND quantity_available + $1 >= 0`, delta, id)
	if err != nil {
		return mapError(err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("%w: supplier product %d", ErrInsufficientStock, id)
	}
	return nil
}

func (q *queries) ListMappings(ctx context.Context) ([]models.ProductMapping, error) {
	mappings := []models.ProductMapping{}
	err := q.selectAll(ctx, &mappings, "SELECT * FROM product_mapping ORDER BY id")
	return mappings, err
}

func (q *queries) GetMappingBySupplierProduct(ctx context.Context, supplierProductID int64) (*models.ProductMapping, error) {
	var m models.ProductMapping
	if err := q.get(ctx, &m, "SELECT * FROM product_mapping WHERE supplier_product_id = $1", supplierProductID); err != nil {
		return nil, err
	}
	return &m, nil
}

// UpsertMapping creates the mapping or repoints an existing one for the same supplier product
func (q *queries) UpsertMapping(ctx context.Context, m *models.ProductMapping) error {
	query := `
		INSERT INTO product_mapping (supplier_id, supplier_product_id, product_id)
		VALUES ($1, $2, $3)
		ON CONFLICT (supplier_product_id) DO UPDATE SET product_id = EXCLUDED.product_id
		RETURNING id, supplier_id`

	return q.get(ctx, m, query, m.SupplierID, m.SupplierProductID, m.ProductID)
}

func (q *queries) DeleteMapping(ctx context.Context, id int64) error {
	return q.execOne(ctx, "DELETE FROM product_mapping WHERE id = $1", id)
}
