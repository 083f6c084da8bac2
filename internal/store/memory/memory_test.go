package memory

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"inventory-service/internal/models"
	"inventory-service/internal/store"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newProduct(t *testing.T, s *Store, code string) *models.Product {
	t.Helper()
	p := &models.Product{
		Name:        "Yogurt",
		Category:    "Dairy",
		Code:        code,
		Cost:        decimal.RequireFromString("0.80"),
		RetailPrice: decimal.RequireFromString("1.50"),
	}
	require.NoError(t, s.CreateProduct(context.Background(), p))
	return p
}

func newBatch(t *testing.T, s *Store, productID int64, qty int, expiry time.Time) models.Batch {
	t.Helper()
	b := models.Batch{
		ProductID:        productID,
		Quantity:         qty,
		ReceivedQuantity: qty,
		ExpiryDate:       expiry,
		ReceivedDate:     models.DateOnly(time.Now()),
	}
	require.NoError(t, s.CreateBatch(context.Background(), &b))
	return b
}

func TestAvailableBatchesAreFEFOOrdered(t *testing.T) {
	s := New()
	ctx := context.Background()
	p := newProduct(t, s, "YOG-1")

	day := models.DateOnly(time.Now())
	late := newBatch(t, s, p.ID, 5, day.AddDate(0, 0, 10))
	earlyA := newBatch(t, s, p.ID, 2, day.AddDate(0, 0, 1))
	earlyB := newBatch(t, s, p.ID, 3, day.AddDate(0, 0, 1))
	newBatch(t, s, p.ID, 0, day)

	batches, err := s.ListAvailableBatchesForUpdate(ctx, p.ID)
	require.NoError(t, err)
	require.Len(t, batches, 3)
	assert.Equal(t, []int64{earlyA.ID, earlyB.ID, late.ID},
		[]int64{batches[0].ID, batches[1].ID, batches[2].ID})
}

func TestDeductBatchIsConditional(t *testing.T) {
	s := New()
	ctx := context.Background()
	p := newProduct(t, s, "YOG-2")
	b := newBatch(t, s, p.ID, 3, time.Now())

	assert.ErrorIs(t, s.DeductBatch(ctx, b.ID, 4), store.ErrInsufficientStock)
	require.NoError(t, s.DeductBatch(ctx, b.ID, 3))

	total, err := s.SumRemainingStock(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, total)
}

func TestWithTxRestoresSnapshotOnError(t *testing.T) {
	s := New()
	ctx := context.Background()
	p := newProduct(t, s, "YOG-3")
	b := newBatch(t, s, p.ID, 10, time.Now())

	boom := errors.New("boom")
	err := s.WithTx(ctx, func(tx store.Repository) error {
		require.NoError(t, tx.DeductBatch(ctx, b.ID, 4))
		require.NoError(t, tx.CreateInventoryEntry(ctx, &models.InventoryEntry{
			ProductID: p.ID, ChangeAmount: -4, TransactionType: models.TransactionSale, BatchID: &b.ID,
		}))
		return boom
	})
	assert.ErrorIs(t, err, boom)

	total, err := s.SumRemainingStock(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, 10, total)

	entries, err := s.ListInventoryEntries(ctx, p.ID)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, 4, entries[0].ChangeAmount)
	assert.Nil(t, entries[0].BatchID)
}

func TestConcurrentTransactionsAreSerialized(t *testing.T) {
	s := New()
	ctx := context.Background()
	p := newProduct(t, s, "YOG-4")
	newBatch(t, s, p.ID, 5, time.Now())

	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		successes int
	)
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := s.WithTx(ctx, func(tx store.Repository) error {
				batches, err := tx.ListAvailableBatchesForUpdate(ctx, p.ID)
				if err != nil {
					return err
				}
				if len(batches) == 0 {
					return store.ErrInsufficientStock
				}
				return tx.DeductBatch(ctx, batches[0].ID, 1)
			})
			if err == nil {
				mu.Lock()
				successes++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 5, successes)
	total, err := s.SumRemainingStock(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, total)
}

func TestDeleteBatchDetachesLedgerRows(t *testing.T) {
	s := New()
	ctx := context.Background()
	p := newProduct(t, s, "YOG-5")
	b := newBatch(t, s, p.ID, 4, time.Now())
	require.NoError(t, s.CreateInventoryEntry(ctx, &models.InventoryEntry{
		ProductID: p.ID, ChangeAmount: 4, TransactionType: models.TransactionManualAdd, BatchID: &b.ID,
	}))

	require.NoError(t, s.DeleteBatch(ctx, b.ID))

	entries, err := s.ListInventoryEntries(ctx, p.ID)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, 4, entries[0].ChangeAmount)
	assert.Nil(t, entries[0].BatchID)
}

func TestUniqueConstraints(t *testing.T) {
	s := New()
	ctx := context.Background()
	newProduct(t, s, "DUP")

	err := s.CreateProduct(ctx, &models.Product{Name: "Other", Code: "DUP"})
	assert.ErrorIs(t, err, store.ErrConflict)

	u := &models.User{Email: "a@example.com", Role: models.RoleSupplier}
	require.NoError(t, s.CreateUser(ctx, u))
	assert.ErrorIs(t, s.CreateUser(ctx, &models.User{Email: "a@example.com"}), store.ErrConflict)
}

func TestUpsertMappingRepointsExisting(t *testing.T) {
	s := New()
	ctx := context.Background()

	supplier := &models.User{Email: "s@example.com", Role: models.RoleSupplier}
	require.NoError(t, s.CreateUser(ctx, supplier))
	sp := &models.SupplierProduct{SupplierID: supplier.ID, Name: "Milk 1L", Code: "SP-1", QuantityAvailable: 10}
	require.NoError(t, s.CreateSupplierProduct(ctx, sp))
	p1 := newProduct(t, s, "P-1")
	p2 := newProduct(t, s, "P-2")

	first := &models.ProductMapping{SupplierID: supplier.ID, SupplierProductID: sp.ID, ProductID: p1.ID}
	require.NoError(t, s.UpsertMapping(ctx, first))

	second := &models.ProductMapping{SupplierID: supplier.ID, SupplierProductID: sp.ID, ProductID: p2.ID}
	require.NoError(t, s.UpsertMapping(ctx, second))
	assert.Equal(t, first.ID, second.ID)

	m, err := s.GetMappingBySupplierProduct(ctx, sp.ID)
	require.NoError(t, err)
	assert.Equal(t, p2.ID, m.ProductID)
}

func TestAdjustSupplierStockNeverNegative(t *testing.T) {
	s := New()
	ctx := context.Background()

	supplier := &models.User{Email: "s2@example.com", Role: models.RoleSupplier}
	require.NoError(t, s.CreateUser(ctx, supplier))
	sp := &models.SupplierProduct{SupplierID: supplier.ID, Name: "Eggs", Code: "SP-2", QuantityAvailable: 3}
	require.NoError(t, s.CreateSupplierProduct(ctx, sp))

	assert.ErrorIs(t, s.AdjustSupplierStock(ctx, sp.ID, -4), store.ErrInsufficientStock)
	require.NoError(t, s.AdjustSupplierStock(ctx, sp.ID, -3))

	got, err := s.GetSupplierProduct(ctx, sp.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, got.QuantityAvailable)
}
