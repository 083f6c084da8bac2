package store

import (
	"context"
	"errors"
	"time"

	"inventory-service/internal/models"
)

var (
	ErrNotFound          = errors.New("not found")
	ErrConflict          = errors.New("conflicts with existing data")
	ErrInsufficientStock = errors.New("insufficient stock")
)

// Repository is the persistence contract used by the services. Implementations
// must make every call made through WithTx's callback commit or roll back as a unit.
type Repository interface {
	WithTx(ctx context.Context, fn func(tx Repository) error) error

	ListProducts(ctx context.Context) ([]models.Product, error)
	GetProductByID(ctx context.Context, id int64) (*models.Product, error)
	GetProductByCode(ctx context.Context, code string) (*models.Product, error)
	CreateProduct(ctx context.Context, product *models.Product) error
	UpdateProduct(ctx context.Context, product *models.Product) error
	DeleteProduct(ctx context.Context, id int64) error

	ListBatchesByProduct(ctx context.Context, productID int64) ([]models.Batch, error)
	// ListAvailableBatchesForUpdate returns batches with stock left in FEFO order
	// (expiry ascending, batch id ascending), locked for the enclosing transaction.
	ListAvailableBatchesForUpdate(ctx context.Context, productID int64) ([]models.Batch, error)
	GetBatchForUpdate(ctx context.Context, productID, batchID int64) (*models.Batch, error)
	CreateBatch(ctx context.Context, batch *models.Batch) error
	UpdateBatch(ctx context.Context, batch *models.Batch) error
	// DeductBatch decrements a batch only if it still holds qty; otherwise ErrInsufficientStock.
	DeductBatch(ctx context.Context, batchID int64, qty int) error
	DeleteBatch(ctx context.Context, batchID int64) error
	SumRemainingStock(ctx context.Context, productID int64) (int, error)

	CreateInventoryEntry(ctx context.Context, entry *models.InventoryEntry) error
	// ListInventoryEntries lists ledger rows, newest first; productID 0 means all products.
	ListInventoryEntries(ctx context.Context, productID int64) ([]models.InventoryEntry, error)

	CreateSale(ctx context.Context, sale *models.Sale) error
	ListSales(ctx context.Context) ([]models.Sale, error)

	ListSupplierProducts(ctx context.Context, supplierID int64) ([]models.SupplierProduct, error)
	GetSupplierProduct(ctx context.Context, id int64) (*models.SupplierProduct, error)
	GetSupplierProductForUpdate(ctx context.Context, id int64) (*models.SupplierProduct, error)
	GetSupplierProductByCode(ctx context.Context, code string) (*models.SupplierProduct, error)
	CreateSupplierProduct(ctx context.Context, sp *models.SupplierProduct) error
	UpdateSupplierProduct(ctx context.Context, sp *models.SupplierProduct) error
	DeleteSupplierProduct(ctx context.Context, id int64) error
	// AdjustSupplierStock adds delta to quantity_available, refusing to go below zero
	// with ErrInsufficientStock.
	AdjustSupplierStock(ctx context.Context, id int64, delta int) error

	ListMappings(ctx context.Context) ([]models.ProductMapping, error)
	GetMappingBySupplierProduct(ctx context.Context, supplierProductID int64) (*models.ProductMapping, error)
	UpsertMapping(ctx context.Context, mapping *models.ProductMapping) error
	DeleteMapping(ctx context.Context, id int64) error

	CreatePurchaseOrder(ctx context.Context, po *models.PurchaseOrder) error
	CreateOrderItem(ctx context.Context, item *models.OrderItem) error
	GetPurchaseOrder(ctx context.Context, id int64) (*models.PurchaseOrder, error)
	GetPurchaseOrderForUpdate(ctx context.Context, id int64) (*models.PurchaseOrder, error)
	// GetPurchaseOrderByIdempotencyKey returns nil, nil when no order carries key.
	GetPurchaseOrderByIdempotencyKey(ctx context.Context, key string) (*models.PurchaseOrder, error)
	// ListPurchaseOrders lists orders, newest first; supplierID 0 means all suppliers.
	ListPurchaseOrders(ctx context.Context, supplierID int64) ([]models.PurchaseOrder, error)
	ListOrderItems(ctx context.Context, orderID int64) ([]models.OrderItem, error)
	UpdatePurchaseOrderStatus(ctx context.Context, id int64, status models.OrderStatus) error
	SetPurchaseOrderPayment(ctx context.Context, id int64, receiptURL string, paidAt time.Time) error
	AddStatusHistory(ctx context.Context, h *models.StatusHistory) error
	ListStatusHistory(ctx context.Context, orderID int64) ([]models.StatusHistory, error)
	DeletePurchaseOrder(ctx context.Context, id int64) error

	CreateUser(ctx context.Context, user *models.User) error
	GetUserByID(ctx context.Context, id int64) (*models.User, error)
	GetUserByEmail(ctx context.Context, email string) (*models.User, error)
	ListUsersByRole(ctx context.Context, role string) ([]models.User, error)
	UpdateUserPassword(ctx context.Context, id int64, passwordHash string) error

	ListBankAccountsBySupplier(ctx context.Context, supplierID int64) ([]models.SupplierBankAccount, error)
	UpsertBankAccount(ctx context.Context, acc *models.SupplierBankAccount) error
	DeleteBankAccount(ctx context.Context, id int64) error

	IsEventProcessed(ctx context.Context, eventID string) (bool, error)
	MarkEventProcessed(ctx context.Context, eventID, eventType string) error
}
