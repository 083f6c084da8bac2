package store

import (
	"context"
	"fmt"

	"inventory-service/internal/models"
)

var (
	_ Repository = (*Store)(nil)
	_ Repository = (*txStore)(nil)
)

// ListProducts retrieves all products
func (q *queries) ListProducts(ctx context.Context) ([]models.Product, error) {
	products := []models.Product{}
	err := q.selectAll(ctx, &products, "SELECT * FROM products ORDER BY id")
	return products, err
}

// GetProductByID retrieves a product by ID
func (q *queries) GetProductByID(ctx context.Context, id int64) (*models.Product, error) {
	var product models.Product
	if err := q.get(ctx, &product, "SELECT * FROM products WHERE id = $1", id); err != nil {
		return nil, err
	}
	return &product, nil
}

// GetProductByCode retrieves a product by its unique code
func (q *queries) GetProductByCode(ctx context.Context, code string) (*models.Product, error) {
	var product models.Product
	if err := q.get(ctx, &product, "SELECT * FROM products WHERE code = $1", code); err != nil {
		return nil, err
	}
	return &product, nil
}

func (q *queries) CreateProduct(ctx context.Context, p *models.Product) error {
	query := `
		INSERT INTO products (name, category, code, cost, retail_price, stock_threshold)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id`

	return q.get(ctx, &p.ID, query,
		p.Name, p.Category, p.Code, p.Cost, p.RetailPrice, p.StockThreshold)
}

func (q *queries) UpdateProduct(ctx context.Context, p *models.Product) error {
	return q.execOne(ctx, `
		UPDATE products
		SET name = $1, category = $2, code = $3, cost = $4, retail_price = $5, stock_threshold = $6
		WHERE id = $7`,
		p.Name, p.Category, p.Code, p.Cost, p.RetailPrice, p.StockThreshold, p.ID)
}

// DeleteProduct removes a product; batches, ledger rows, sales and mappings cascade
func (q *queries) DeleteProduct(ctx context.Context, id int64) error {
	return q.execOne(ctx, "DELETE FROM products WHERE id = $1", id)
}

func (q *queries) ListBatchesByProduct(ctx context.Context, productID int64) ([]models.Batch, error) {
	batches := []models.Batch{}
	err := q.selectAll(ctx, &batches,
		"SELECT * FROM product_batches WHERE product_id = $1 ORDER BY expiry_date ASC, batch_id ASC", productID)
	return batches, err
}

func (q *queries) ListAvailableBatchesForUpdate(ctx context.Context, productID int64) ([]models.Batch, error) {
	batches := []models.Batch{}
	err := q.selectAll(ctx, &batches, `
		SELECT * FROM product_batches
		WHERE product_id = $1 AND quantity > 0
		ORDER BY expiry_date ASC, batch_id ASC
		FOR UPDATE`, productID)
	return batches, err
}

func (q *queries) GetBatchForUpdate(ctx context.Context, productID, batchID int64) (*models.Batch, error) {
	var batch models.Batch
	err := q.get(ctx, &batch,
		"SELECT * FROM product_batches WHERE batch_id = $1 AND product_id = $2 FOR UPDATE", batchID, productID)
	if err != nil {
		return nil, err
	}
	return &batch, nil
}

func (q *queries) CreateBatch(ctx context.Context, b *models.Batch) error {
	query := `
		INSERT INTO product_batches (product_id, quantity, received_quantity, expiry_date, received_date)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING batch_id`

	return q.get(ctx, &b.ID, query,
		b.ProductID, b.Quantity, b.ReceivedQuantity, b.ExpiryDate, b.ReceivedDate)
}

func (q *queries) UpdateBatch(ctx context.Context, b *models.Batch) error {
	return q.execOne(ctx, `
		UPDATE product_batches
		SET quantity = $1, received_quantity = $2, expiry_date = $3, received_date = $4
		WHERE batch_id = $5`,
		b.Quantity, b.ReceivedQuantity, b.ExpiryDate, b.ReceivedDate, b.ID)
}

func (q *queries) DeductBatch(ctx context.Context, batchID int64, qty int) error {
	res, err := q.ext.ExecContext(ctx,
		"UPDATE product_batches SET quantity = quantity - $1 WHERE batch_id = $2 AND quantity >= $1",
		qty, batchID)
	if err != nil {
		return mapError(err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("%w: batch %d", ErrInsufficientStock, batchID)
	}
	return nil
}

// DeleteBatch removes a batch; ledger rows that reference it keep a NULL batch_id
func (q *queries) DeleteBatch(ctx context.Context, batchID int64) error {
	return q.execOne(ctx, "DELETE FROM product_batches WHERE batch_id = $1", batchID)
}

func (q *queries) SumRemainingStock(ctx context.Context, productID int64) (int, error) {
	var total int
	err := q.get(ctx, &total,
		"SELECT COALESCE(SUM(quantity), 0) FROM product_batches WHERE product_id = $1", productID)
	return total, err
}

func (q *queries) CreateInventoryEntry(ctx context.Context, e *models.InventoryEntry) error {
	query := `
		INSERT INTO inventory (product_id, change_amount, transaction_type, batch_id)
		VALUES ($1, $2, $3, $4)
		RETURNING id, created_at`

	return q.get(ctx, e, query, e.ProductID, e.ChangeAmount, e.TransactionType, e.BatchID)
}

func (q *queries) ListInventoryEntries(ctx context.Context, productID int64) ([]models.InventoryEntry, error) {
	entries := []models.InventoryEntry{}
	err := q.selectAll(ctx, &entries, `
		SELECT i.*, p.name AS product_name
		FROM inventory i
		JOIN products p ON p.id = i.product_id
		WHERE $1 = 0 OR i.product_id = $1
		ORDER BY i.created_at DESC, i.id DESC`, productID)
	return entries, err
}

func (q *queries) CreateSale(ctx context.Context, s *models.Sale) error {
	query := `
		INSERT INTO sales (product_id, quantity, sell_date, remarks)
		VALUES ($1, $2, $3, $4)
		RETURNING id`

	return q.get(ctx, &s.ID, query, s.ProductID, s.Quantity, s.SellDate, s.Remarks)
}

func (q *queries) ListSales(ctx context.Context) ([]models.Sale, error) {
	sales := []models.Sale{}
	err := q.selectAll(ctx, &sales, `
		SELECT s.*, p.name AS product_name
		FROM sales s
		JOIN products p ON p.id = s.product_id
		ORDER BY s.sell_date DESC, s.id DESC`)
	return sales, err
}
