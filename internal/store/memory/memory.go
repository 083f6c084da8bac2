// Package memory is an in-process Repository used for local runs and tests.
package memory

import (
	"cmp"
	"context"
	"fmt"
	"maps"
	"slices"
	"sync"
	"time"

	"inventory-service/internal/models"
	"inventory-service/internal/store"
)

type data struct {
	nextID           int64
	users            map[int64]models.User
	products         map[int64]models.Product
	batches          map[int64]models.Batch
	entries          []models.InventoryEntry
	sales            []models.Sale
	supplierProducts map[int64]models.SupplierProduct
	mappings         map[int64]models.ProductMapping
	orders           map[int64]models.PurchaseOrder
	items            []models.OrderItem
	history          []models.StatusHistory
	bankAccounts     map[int64]models.SupplierBankAccount
	processed        map[string]models.ProcessedEvent
}

func (d *data) clone() *data {
	return &data{
		nextID:           d.nextID,
		users:            maps.Clone(d.users),
		products:         maps.Clone(d.products),
		batches:          maps.Clone(d.batches),
		entries:          slices.Clone(d.entries),
		sales:            slices.Clone(d.sales),
		supplierProducts: maps.Clone(d.supplierProducts),
		mappings:         maps.Clone(d.mappings),
		orders:           maps.Clone(d.orders),
		items:            slices.Clone(d.items),
		history:          slices.Clone(d.history),
		bankAccounts:     maps.Clone(d.bankAccounts),
		processed:        maps.Clone(d.processed),
	}
}

func (d *data) newID() int64 {
	d.nextID++
	return d.nextID
}

// Store keeps every table in maps. Transactions are serialized: WithTx holds
// txMu for the whole callback and restores a snapshot when the callback fails.
type Store struct {
	repo

	txMu sync.Mutex
	mu   sync.Mutex
	d    *data
}

var (
	_ store.Repository = (*Store)(nil)
	_ store.Repository = (*repo)(nil)
)

// repo carries the store methods; inTx marks a handle that already owns txMu.
type repo struct {
	s    *Store
	inTx bool
}

func New() *Store {
	s := &Store{
		d: &data{
			users:            make(map[int64]models.User),
			products:         make(map[int64]models.Product),
			batches:          make(map[int64]models.Batch),
			supplierProducts: make(map[int64]models.SupplierProduct),
			mappings:         make(map[int64]models.ProductMapping),
			orders:           make(map[int64]models.PurchaseOrder),
			bankAccounts:     make(map[int64]models.SupplierBankAccount),
			processed:        make(map[string]models.ProcessedEvent),
		},
	}
	s.repo = repo{s: s}
	return s
}

// Close is a no-op kept for parity with the Postgres store.
func (s *Store) Close() error { return nil }

func (s *Store) Ping(context.Context) error { return nil }

func (r *repo) lock() (*data, func()) {
	if !r.inTx {
		r.s.txMu.Lock()
	}
	r.s.mu.Lock()
	return r.s.d, func() {
		r.s.mu.Unlock()
		if !r.inTx {
			r.s.txMu.Unlock()
		}
	}
}

// WithTx runs fn with exclusive access. Calls made inside fn must go through
// the handle it receives; using the outer Store there would block forever.
func (r *repo) WithTx(_ context.Context, fn func(tx store.Repository) error) error {
	if r.inTx {
		return fn(r)
	}

	r.s.txMu.Lock()
	defer r.s.txMu.Unlock()

	r.s.mu.Lock()
	snapshot := r.s.d.clone()
	r.s.mu.Unlock()

	if err := fn(&repo{s: r.s, inTx: true}); err != nil {
		r.s.mu.Lock()
		r.s.d = snapshot
		r.s.mu.Unlock()
		return err
	}
	return nil
}

func notFound(what string, id interface{}) error {
	return fmt.Errorf("%w: %s %v", store.ErrNotFound, what, id)
}

func conflict(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", store.ErrConflict, fmt.Sprintf(format, args...))
}

func now() time.Time {
	return time.Now().UTC()
}

// Products

func (r *repo) ListProducts(_ context.Context) ([]models.Product, error) {
	d, unlock := r.lock()
	defer unlock()

	products := make([]models.Product, 0, len(d.products))
	for _, p := range d.products {
		products = append(products, p)
	}
	slices.SortFunc(products, func(a, b models.Product) int { return cmp.Compare(a.ID, b.ID) })
	return products, nil
}

func (r *repo) GetProductByID(_ context.Context, id int64) (*models.Product, error) {
	d, unlock := r.lock()
	defer unlock()

	p, ok := d.products[id]
	if !ok {
		return nil, notFound("product", id)
	}
	return &p, nil
}

func (r *repo) GetProductByCode(_ context.Context, code string) (*models.Product, error) {
	d, unlock := r.lock()
	defer unlock()

	for _, p := range d.products {
		if p.Code == code {
			return &p, nil
		}
	}
	return nil, notFound("product", code)
}

func (r *repo) CreateProduct(_ context.Context, p *models.Product) error {
	d, unlock := r.lock()
	defer unlock()

	for _, existing := range d.products {
		if existing.Code == p.Code {
			return conflict("product code %s", p.Code)
		}
	}
	p.ID = d.newID()
	d.products[p.ID] = *p
	return nil
}

func (r *repo) UpdateProduct(_ context.Context, p *models.Product) error {
	d, unlock := r.lock()
	defer unlock()

	if _, ok := d.products[p.ID]; !ok {
		return notFound("product", p.ID)
	}
	for _, existing := range d.products {
		if existing.ID != p.ID && existing.Code == p.Code {
			return conflict("product code %s", p.Code)
		}
	}
	d.products[p.ID] = *p
	return nil
}

func (r *repo) DeleteProduct(_ context.Context, id int64) error {
	d, unlock := r.lock()
	defer unlock()

	if _, ok := d.products[id]; !ok {
		return notFound("product", id)
	}
	delete(d.products, id)
	maps.DeleteFunc(d.batches, func(_ int64, b models.Batch) bool { return b.ProductID == id })
	maps.DeleteFunc(d.mappings, func(_ int64, m models.ProductMapping) bool { return m.ProductID == id })
	d.entries = slices.DeleteFunc(d.entries, func(e models.InventoryEntry) bool { return e.ProductID == id })
	d.sales = slices.DeleteFunc(d.sales, func(s models.Sale) bool { return s.ProductID == id })
	return nil
}

// Batches

func compareFEFO(a, b models.Batch) int {
	if c := a.ExpiryDate.Compare(b.ExpiryDate); c != 0 {
		return c
	}
	return cmp.Compare(a.ID, b.ID)
}

func (r *repo) ListBatchesByProduct(_ context.Context, productID int64) ([]models.Batch, error) {
	d, unlock := r.lock()
	defer unlock()

	batches := []models.Batch{}
	for _, b := range d.batches {
		if b.ProductID == productID {
			batches = append(batches, b)
		}
	}
	slices.SortFunc(batches, compareFEFO)
	return batches, nil
}

func (r *repo) ListAvailableBatchesForUpdate(_ context.Context, productID int64) ([]models.Batch, error) {
	d, unlock := r.lock()
	defer unlock()

	batches := []models.Batch{}
	for _, b := range d.batches {
		if b.ProductID == productID && b.Quantity > 0 {
			batches = append(batches, b)
		}
	}
	slices.SortFunc(batches, compareFEFO)
	return batches, nil
}

func (r *repo) GetBatchForUpdate(_ context.Context, productID, batchID int64) (*models.Batch, error) {
	d, unlock := r.lock()
	defer unlock()

	b, ok := d.batches[batchID]
	if !ok || b.ProductID != productID {
		return nil, notFound("batch", batchID)
	}
	return &b, nil
}

func (r *repo) CreateBatch(_ context.Context, b *models.Batch) error {
	d, unlock := r.lock()
	defer unlock()

	if _, ok := d.products[b.ProductID]; !ok {
		return conflict("batch references missing product %d", b.ProductID)
	}
	if b.Quantity < 0 {
		return fmt.Errorf("%w: negative batch quantity", store.ErrInsufficientStock)
	}
	b.ID = d.newID()
	d.batches[b.ID] = *b
	return nil
}

func (r *repo) UpdateBatch(_ context.Context, b *models.Batch) error {
	d, unlock := r.lock()
	defer unlock()

	existing, ok := d.batches[b.ID]
	if !ok {
		return notFound("batch", b.ID)
	}
	if b.Quantity < 0 {
		return fmt.Errorf("%w: negative batch quantity", store.ErrInsufficientStock)
	}
	b.ProductID = existing.ProductID
	d.batches[b.ID] = *b
	return nil
}

func (r *repo) DeductBatch(_ context.Context, batchID int64, qty int) error {
	d, unlock := r.lock()
	defer unlock()

	b, ok := d.batches[batchID]
	if !ok || b.Quantity < qty {
		return fmt.Errorf("%w: batch %d", store.ErrInsufficientStock, batchID)
	}
	b.Quantity -= qty
	d.batches[batchID] = b
	return nil
}

func (r *repo) DeleteBatch(_ context.Context, batchID int64) error {
	d, unlock := r.lock()
	defer unlock()

	if _, ok := d.batches[batchID]; !ok {
		return notFound("batch", batchID)
	}
	delete(d.batches, batchID)
	for i, e := range d.entries {
		if e.BatchID != nil && *e.BatchID == batchID {
			d.entries[i].BatchID = nil
		}
	}
	return nil
}

func (r *repo) SumRemainingStock(_ context.Context, productID int64) (int, error) {
	d, unlock := r.lock()
	defer unlock()

	total := 0
	for _, b := range d.batches {
		if b.ProductID == productID {
			total += b.Quantity
		}
	}
	return total, nil
}

// Ledger and sales

func (r *repo) CreateInventoryEntry(_ context.Context, e *models.InventoryEntry) error {
	d, unlock := r.lock()
	defer unlock()

	if _, ok := d.products[e.ProductID]; !ok {
		return conflict("ledger entry references missing product %d", e.ProductID)
	}
	if e.BatchID != nil {
		if _, ok := d.batches[*e.BatchID]; !ok {
			return conflict("ledger entry references missing batch %d", *e.BatchID)
		}
	}
	e.ID = d.newID()
	e.CreatedAt = now()
	stored := *e
	stored.ProductName = ""
	d.entries = append(d.entries, stored)
	return nil
}

func (r *repo) ListInventoryEntries(_ context.Context, productID int64) ([]models.InventoryEntry, error) {
	d, unlock := r.lock()
	defer unlock()

	entries := []models.InventoryEntry{}
	for _, e := range d.entries {
		if productID != 0 && e.ProductID != productID {
			continue
		}
		e.ProductName = d.products[e.ProductID].Name
		entries = append(entries, e)
	}
	slices.SortFunc(entries, func(a, b models.InventoryEntry) int {
		if c := b.CreatedAt.Compare(a.CreatedAt); c != 0 {
			return c
		}
		return cmp.Compare(b.ID, a.ID)
	})
	return entries, nil
}

func (r *repo) CreateSale(_ context.Context, s *models.Sale) error {
	d, unlock := r.lock()
	defer unlock()

	if _, ok := d.products[s.ProductID]; !ok {
		return conflict("sale references missing product %d", s.ProductID)
	}
	s.ID = d.newID()
	stored := *s
	stored.ProductName = ""
	d.sales = append(d.sales, stored)
	return nil
}

func (r *repo) ListSales(_ context.Context) ([]models.Sale, error) {
	d, unlock := r.lock()
	defer unlock()

	sales := make([]models.Sale, 0, len(d.sales))
	for _, s := range d.sales {
		s.ProductName = d.products[s.ProductID].Name
		sales = append(sales, s)
	}
	slices.SortFunc(sales, func(a, b models.Sale) int {
		if c := b.SellDate.Compare(a.SellDate); c != 0 {
			return c
		}
		return cmp.Compare(b.ID, a.ID)
	})
	return sales, nil
}

// Supplier products and mappings

func (r *repo) ListSupplierProducts(_ context.Context, supplierID int64) ([]models.SupplierProduct, error) {
	d, unlock := r.lock()
	defer unlock()

	products := []models.SupplierProduct{}
	for _, sp := range d.supplierProducts {
		if sp.SupplierID == supplierID {
			products = append(products, sp)
		}
	}
	slices.SortFunc(products, func(a, b models.SupplierProduct) int { return cmp.Compare(a.ID, b.ID) })
	return products, nil
}

func (r *repo) GetSupplierProduct(_ context.Context, id int64) (*models.SupplierProduct, error) {
	d, unlock := r.lock()
	defer unlock()

	sp, ok := d.supplierProducts[id]
	if !ok {
		return nil, notFound("supplier product", id)
	}
	return &sp, nil
}

func (r *repo) GetSupplierProductForUpdate(ctx context.Context, id int64) (*models.SupplierProduct, error) {
	return r.GetSupplierProduct(ctx, id)
}

func (r *repo) GetSupplierProductByCode(_ context.Context, code string) (*models.SupplierProduct, error) {
	d, unlock := r.lock()
	defer unlock()

	for _, sp := range d.supplierProducts {
		if sp.Code == code {
			return &sp, nil
		}
	}
	return nil, notFound("supplier product", code)
}

func (r *repo) CreateSupplierProduct(_ context.Context, sp *models.SupplierProduct) error {
	d, unlock := r.lock()
	defer unlock()

	if _, ok := d.users[sp.SupplierID]; !ok {
		return conflict("supplier %d does not exist", sp.SupplierID)
	}
	for _, existing := range d.supplierProducts {
		if existing.Code == sp.Code {
			return conflict("supplier product code %s", sp.Code)
		}
	}
	if sp.QuantityAvailable < 0 {
		return fmt.Errorf("%w: negative quantity available", store.ErrInsufficientStock)
	}
	sp.ID = d.newID()
	sp.CreatedAt = now()
	d.supplierProducts[sp.ID] = *sp
	return nil
}

func (r *repo) UpdateSupplierProduct(_ context.Context, sp *models.SupplierProduct) error {
	d, unlock := r.lock()
	defer unlock()

	existing, ok := d.supplierProducts[sp.ID]
	if !ok {
		return notFound("supplier product", sp.ID)
	}
	if sp.QuantityAvailable < 0 {
		return fmt.Errorf("%w: negative quantity available", store.ErrInsufficientStock)
	}
	existing.Name = sp.Name
	existing.Category = sp.Category
	existing.Cost = sp.Cost
	existing.QuantityAvailable = sp.QuantityAvailable
	d.supplierProducts[sp.ID] = existing
	return nil
}

func (r *repo) DeleteSupplierProduct(_ context.Context, id int64) error {
	d, unlock := r.lock()
	defer unlock()

	if _, ok := d.supplierProducts[id]; !ok {
		return notFound("supplier product", id)
	}
	for _, it := range d.items {
		if it.SupplierProductID == id {
			return conflict("supplier product %d is referenced by purchase order %d", id, it.PurchaseOrderID)
		}
	}
	delete(d.supplierProducts, id)
	maps.DeleteFunc(d.mappings, func(_ int64, m models.ProductMapping) bool { return m.SupplierProductID == id })
	return nil
}

func (r *repo) AdjustSupplierStock(_ context.Context, id int64, delta int) error {
	d, unlock := r.lock()
	defer unlock()

	sp, ok := d.supplierProducts[id]
	if !ok || sp.QuantityAvailable+delta < 0 {
		return fmt.Errorf("%w: supplier product %d", store.ErrInsufficientStock, id)
	}
	sp.QuantityAvailable += delta
	d.supplierProducts[id] = sp
	return nil
}

func (r *repo) ListMappings(_ context.Context) ([]models.ProductMapping, error) {
	d, unlock := r.lock()
	defer unlock()

	mappings := make([]models.ProductMapping, 0, len(d.mappings))
	for _, m := range d.mappings {
		mappings = append(mappings, m)
	}
	slices.SortFunc(mappings, func(a, b models.ProductMapping) int { return cmp.Compare(a.ID, b.ID) })
	return mappings, nil
}

func (r *repo) GetMappingBySupplierProduct(_ context.Context, supplierProductID int64) (*models.ProductMapping, error) {
	d, unlock := r.lock()
	defer unlock()

	for _, m := range d.mappings {
		if m.SupplierProductID == supplierProductID {
			return &m, nil
		}
	}
	return nil, notFound("mapping for supplier product", supplierProductID)
}

func (r *repo) UpsertMapping(_ context.Context, m *models.ProductMapping) error {
	d, unlock := r.lock()
	defer unlock()

	if _, ok := d.supplierProducts[m.SupplierProductID]; !ok {
		return conflict("mapping references missing supplier product %d", m.SupplierProductID)
	}
	if _, ok := d.products[m.ProductID]; !ok {
		return conflict("mapping references missing product %d", m.ProductID)
	}
	for id, existing := range d.mappings {
		if existing.SupplierProductID == m.SupplierProductID {
			existing.ProductID = m.ProductID
			d.mappings[id] = existing
			*m = existing
			return nil
		}
	}
	m.ID = d.newID()
	d.mappings[m.ID] = *m
	return nil
}

func (r *repo) DeleteMapping(_ context.Context, id int64) error {
	d, unlock := r.lock()
	defer unlock()

	if _, ok := d.mappings[id]; !ok {
		return notFound("mapping", id)
	}
	delete(d.mappings, id)
	return nil
}

// Purchase orders

func (r *repo) CreatePurchaseOrder(_ context.Context, po *models.PurchaseOrder) error {
	d, unlock := r.lock()
	defer unlock()

	if _, ok := d.users[po.SupplierID]; !ok {
		return conflict("supplier %d does not exist", po.SupplierID)
	}
	if po.IdempotencyKey != nil {
		for _, existing := range d.orders {
			if existing.IdempotencyKey != nil && *existing.IdempotencyKey == *po.IdempotencyKey {
				return conflict("idempotency key %s", *po.IdempotencyKey)
			}
		}
	}
	if po.Status == "" {
		po.Status = models.OrderStatusPending
	}
	po.ID = d.newID()
	po.OrderDate = models.DateOnly(now())
	d.orders[po.ID] = *po
	return nil
}

func (r *repo) CreateOrderItem(_ context.Context, item *models.OrderItem) error {
	d, unlock := r.lock()
	defer unlock()

	if _, ok := d.orders[item.PurchaseOrderID]; !ok {
		return conflict("item references missing purchase order %d", item.PurchaseOrderID)
	}
	if _, ok := d.supplierProducts[item.SupplierProductID]; !ok {
		return conflict("item references missing supplier product %d", item.SupplierProductID)
	}
	item.ID = d.newID()
	d.items = append(d.items, *item)
	return nil
}

func (r *repo) GetPurchaseOrder(_ context.Context, id int64) (*models.PurchaseOrder, error) {
	d, unlock := r.lock()
	defer unlock()

	po, ok := d.orders[id]
	if !ok {
		return nil, notFound("purchase order", id)
	}
	return &po, nil
}

func (r *repo) GetPurchaseOrderForUpdate(ctx context.Context, id int64) (*models.PurchaseOrder, error) {
	return r.GetPurchaseOrder(ctx, id)
}

func (r *repo) GetPurchaseOrderByIdempotencyKey(_ context.Context, key string) (*models.PurchaseOrder, error) {
	d, unlock := r.lock()
	defer unlock()

	for _, po := range d.orders {
		if po.IdempotencyKey != nil && *po.IdempotencyKey == key {
			return &po, nil
		}
	}
	return nil, nil
}

func (r *repo) ListPurchaseOrders(_ context.Context, supplierID int64) ([]models.PurchaseOrder, error) {
	d, unlock := r.lock()
	defer unlock()

	orders := []models.PurchaseOrder{}
	for _, po := range d.orders {
		if supplierID != 0 && po.SupplierID != supplierID {
			continue
		}
		orders = append(orders, po)
	}
	slices.SortFunc(orders, func(a, b models.PurchaseOrder) int {
		if c := b.OrderDate.Compare(a.OrderDate); c != 0 {
			return c
		}
		return cmp.Compare(b.ID, a.ID)
	})
	return orders, nil
}

func (r *repo) ListOrderItems(_ context.Context, orderID int64) ([]models.OrderItem, error) {
	d, unlock := r.lock()
	defer unlock()

	items := []models.OrderItem{}
	for _, it := range d.items {
		if it.PurchaseOrderID == orderID {
			items = append(items, it)
		}
	}
	return items, nil
}

func (r *repo) UpdatePurchaseOrderStatus(_ context.Context, id int64, status models.OrderStatus) error {
	d, unlock := r.lock()
	defer unlock()

	po, ok := d.orders[id]
	if !ok {
		return notFound("purchase order", id)
	}
	po.Status = status
	d.orders[id] = po
	return nil
}

func (r *repo) SetPurchaseOrderPayment(_ context.Context, id int64, receiptURL string, paidAt time.Time) error {
	d, unlock := r.lock()
	defer unlock()

	po, ok := d.orders[id]
	if !ok {
		return notFound("purchase order", id)
	}
	po.PaymentReceiptURL = &receiptURL
	po.PaymentDate = &paidAt
	d.orders[id] = po
	return nil
}

func (r *repo) AddStatusHistory(_ context.Context, h *models.StatusHistory) error {
	d, unlock := r.lock()
	defer unlock()

	if _, ok := d.orders[h.PurchaseOrderID]; !ok {
		return conflict("history references missing purchase order %d", h.PurchaseOrderID)
	}
	h.ID = d.newID()
	h.UpdatedAt = now()
	d.history = append(d.history, *h)
	return nil
}

func (r *repo) ListStatusHistory(_ context.Context, orderID int64) ([]models.StatusHistory, error) {
	d, unlock := r.lock()
	defer unlock()

	history := []models.StatusHistory{}
	for _, h := range d.history {
		if h.PurchaseOrderID == orderID {
			history = append(history, h)
		}
	}
	return history, nil
}

func (r *repo) DeletePurchaseOrder(_ context.Context, id int64) error {
	d, unlock := r.lock()
	defer unlock()

	if _, ok := d.orders[id]; !ok {
		return notFound("purchase order", id)
	}
	delete(d.orders, id)
	d.items = slices.DeleteFunc(d.items, func(it models.OrderItem) bool { return it.PurchaseOrderID == id })
	d.history = slices.DeleteFunc(d.history, func(h models.StatusHistory) bool { return h.PurchaseOrderID == id })
	return nil
}

// Users and bank accounts

func (r *repo) CreateUser(_ context.Context, u *models.User) error {
	d, unlock := r.lock()
	defer unlock()

	for _, existing := range d.users {
		if existing.Email == u.Email {
			return conflict("email %s", u.Email)
		}
	}
	u.ID = d.newID()
	u.CreatedAt = now()
	d.users[u.ID] = *u
	return nil
}

func (r *repo) GetUserByID(_ context.Context, id int64) (*models.User, error) {
	d, unlock := r.lock()
	defer unlock()

	u, ok := d.users[id]
	if !ok {
		return nil, notFound("user", id)
	}
	return &u, nil
}

func (r *repo) GetUserByEmail(_ context.Context, email string) (*models.User, error) {
	d, unlock := r.lock()
	defer unlock()

	for _, u := range d.users {
		if u.Email == email {
			return &u, nil
		}
	}
	return nil, notFound("user", email)
}

func (r *repo) ListUsersByRole(_ context.Context, role string) ([]models.User, error) {
	d, unlock := r.lock()
	defer unlock()

	users := []models.User{}
	for _, u := range d.users {
		if u.Role == role {
			users = append(users, u)
		}
	}
	slices.SortFunc(users, func(a, b models.User) int { return cmp.Compare(a.ID, b.ID) })
	return users, nil
}

func (r *repo) UpdateUserPassword(_ context.Context, id int64, passwordHash string) error {
	d, unlock := r.lock()
	defer unlock()

	u, ok := d.users[id]
	if !ok {
		return notFound("user", id)
	}
	u.PasswordHash = passwordHash
	d.users[id] = u
	return nil
}

func (r *repo) ListBankAccountsBySupplier(_ context.Context, supplierID int64) ([]models.SupplierBankAccount, error) {
	d, unlock := r.lock()
	defer unlock()

	accounts := []models.SupplierBankAccount{}
	for _, acc := range d.bankAccounts {
		if acc.SupplierID == supplierID {
			accounts = append(accounts, acc)
		}
	}
	return accounts, nil
}

func (r *repo) UpsertBankAccount(_ context.Context, acc *models.SupplierBankAccount) error {
	d, unlock := r.lock()
	defer unlock()

	if _, ok := d.users[acc.SupplierID]; !ok {
		return conflict("supplier %d does not exist", acc.SupplierID)
	}
	for id, existing := range d.bankAccounts {
		if existing.SupplierID == acc.SupplierID {
			acc.ID = id
			d.bankAccounts[id] = *acc
			return nil
		}
	}
	acc.ID = d.newID()
	d.bankAccounts[acc.ID] = *acc
	return nil
}

func (r *repo) DeleteBankAccount(_ context.Context, id int64) error {
	d, unlock := r.lock()
	defer unlock()

	if _, ok := d.bankAccounts[id]; !ok {
		return notFound("bank account", id)
	}
	delete(d.bankAccounts, id)
	return nil
}

// Processed events

func (r *repo) IsEventProcessed(_ context.Context, eventID string) (bool, error) {
	d, unlock := r.lock()
	defer unlock()

	_, ok := d.processed[eventID]
	return ok, nil
}

func (r *repo) MarkEventProcessed(_ context.Context, eventID, eventType string) error {
	d, unlock := r.lock()
	defer unlock()

	if _, ok := d.processed[eventID]; !ok {
		d.processed[eventID] = models.ProcessedEvent{EventID: eventID, EventType: eventType, ProcessedAt: now()}
	}
	return nil
}
