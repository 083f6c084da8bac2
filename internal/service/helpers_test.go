package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"inventory-service/internal/models"
	"inventory-service/internal/store/memory"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

type fakeCache struct {
	mu     sync.Mutex
	stock  map[int64]int
	getErr error
}

func newFakeCache() *fakeCache {
	return &fakeCache{stock: make(map[int64]int)}
}

func (c *fakeCache) GetStock(_ context.Context, productID int64) (int, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.getErr != nil {
		return 0, false, c.getErr
	}
	qty, ok := c.stock[productID]
	return qty, ok, nil
}

func (c *fakeCache) SetStock(_ context.Context, productID int64, qty int) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.stock[productID] = qty
	return nil
}

func (c *fakeCache) DeleteStock(_ context.Context, productID int64) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.stock, productID)
	return nil
}

func (c *fakeCache) get(productID int64) (int, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	qty, ok := c.stock[productID]
	return qty, ok
}

type fakeIdempotency struct {
	mu   sync.Mutex
	keys map[string]bool
}

func (f *fakeIdempotency) ReserveKey(_ context.Context, key string, _ time.Duration) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.keys == nil {
		f.keys = make(map[string]bool)
	}
	if f.keys[key] {
		return false, nil
	}
	f.keys[key] = true
	return true, nil
}

func (f *fakeIdempotency) ReleaseKey(_ context.Context, key string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.keys, key)
	return nil
}

type busyLocker struct{}

func (busyLocker) TryLock(context.Context, string, time.Duration) (func(context.Context), bool, error) {
	return nil, false, nil
}

type recordingPublisher struct {
	mu        sync.Mutex
	sales     []*models.SaleRecordedEvent
	restocks  []*models.StockRestockedEvent
	adjusts   []*models.StockAdjustedEvent
	lowStock  []*models.LowStockEvent
	statusChg []*models.OrderStatusChangedEvent
}

func (p *recordingPublisher) PublishSaleRecorded(_ context.Context, e *models.SaleRecordedEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.sales = append(p.sales, e)
	return nil
}

func (p *recordingPublisher) PublishStockRestocked(_ context.Context, e *models.StockRestockedEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.restocks = append(p.restocks, e)
	return nil
}

func (p *recordingPublisher) PublishStockAdjusted(_ context.Context, e *models.StockAdjustedEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.adjusts = append(p.adjusts, e)
	return nil
}

func (p *recordingPublisher) PublishLowStock(_ context.Context, e *models.LowStockEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.lowStock = append(p.lowStock, e)
	return nil
}

func (p *recordingPublisher) PublishOrderStatusChanged(_ context.Context, e *models.OrderStatusChangedEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.statusChg = append(p.statusChg, e)
	return nil
}

func seedProduct(t *testing.T, repo *memory.Store, code string, threshold int) *models.Product {
	t.Helper()
	p := &models.Product{
		Name:           "Milk " + code,
		Category:       "Dairy",
		Code:           code,
		Cost:           decimal.RequireFromString("1.10"),
		RetailPrice:    decimal.RequireFromString("2.00"),
		StockThreshold: threshold,
	}
	require.NoError(t, repo.CreateProduct(context.Background(), p))
	return p
}

// seedBatch creates a batch with a matching manual_add ledger row.
func seedBatch(t *testing.T, repo *memory.Store, productID int64, qty int, expiry string) models.Batch {
	t.Helper()
	ctx := context.Background()
	b := models.Batch{
		ProductID:        productID,
		Quantity:         qty,
		ReceivedQuantity: qty,
		ExpiryDate:       date(expiry),
		ReceivedDate:     date("2024-12-01"),
	}
	require.NoError(t, repo.CreateBatch(ctx, &b))
	id := b.ID
	require.NoError(t, repo.CreateInventoryEntry(ctx, &models.InventoryEntry{
		ProductID:       productID,
		ChangeAmount:    qty,
		TransactionType: models.TransactionManualAdd,
		BatchID:         &id,
	}))
	return b
}

func seedSupplier(t *testing.T, repo *memory.Store, email string) *models.User {
	t.Helper()
	u := &models.User{Email: email, PasswordHash: "x", FullName: "Acme Foods", Role: models.RoleSupplier}
	require.NoError(t, repo.CreateUser(context.Background(), u))
	return u
}

func seedSupplierProduct(t *testing.T, repo *memory.Store, supplierID int64, code string, available int) *models.SupplierProduct {
	t.Helper()
	sp := &models.SupplierProduct{
		SupplierID:        supplierID,
		Name:              "Crate " + code,
		Category:          "Dairy",
		Code:              code,
		Cost:              decimal.RequireFromString("2.50"),
		QuantityAvailable: available,
	}
	require.NoError(t, repo.CreateSupplierProduct(context.Background(), sp))
	return sp
}

func batchQuantities(t *testing.T, repo *memory.Store, productID int64) map[int64]int {
	t.Helper()
	batches, err := repo.ListBatchesByProduct(context.Background(), productID)
	require.NoError(t, err)
	out := make(map[int64]int, len(batches))
	for _, b := range batches {
		out[b.ID] = b.Quantity
	}
	return out
}
