package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// User is either a manager or a supplier account
type User struct {
	ID           int64     `db:"id" json:"id"`
	Email        string    `db:"email" json:"email"`
	PasswordHash string    `db:"password_hash" json:"-"`
	FullName     string    `db:"full_name" json:"full_name"`
	Role         string    `db:"role" json:"role"`
	PhoneNumber  string    `db:"phone_number" json:"phone_number,omitempty"`
	CreatedAt    time.Time `db:"created_at" json:"created_at"`
}

// User roles
const (
	RoleManager  = "manager"
	RoleSupplier = "supplier"
)

// Product represents a product in the managed catalog
type Product struct {
	ID             int64           `db:"id" json:"id"`
	Name           string          `db:"name" json:"name"`
	Category       string          `db:"category" json:"category"`
	Code           string          `db:"code" json:"code"`
	Cost           decimal.Decimal `db:"cost" json:"cost"`
	RetailPrice    decimal.Decimal `db:"retail_price" json:"retail_price"`
	StockThreshold int             `db:"stock_threshold" json:"stock_threshold"`
}

// Batch is a received lot of a product
type Batch struct {
	ID               int64     `db:"batch_id" json:"batch_id"`
	ProductID        int64     `db:"product_id" json:"product_id"`
	Quantity         int       `db:"quantity" json:"quantity"`
	ReceivedQuantity int       `db:"received_quantity" json:"received_quantity"`
	ExpiryDate       time.Time `db:"expiry_date" json:"expiry_date"`
	ReceivedDate     time.Time `db:"received_date" json:"received_date"`
}

// Transaction kinds of an inventory entry
const (
	TransactionSale       = "sale"
	TransactionRestock    = "restock"
	TransactionManualAdd  = "manual_add"
	TransactionAdjustment = "adjustment"
)

// InventoryEntry is one append-only ledger row
type InventoryEntry struct {
	ID              int64     `db:"id" json:"id"`
	ProductID       int64     `db:"product_id" json:"product_id"`
	ChangeAmount    int       `db:"change_amount" json:"change_amount"`
	TransactionType string    `db:"transaction_type" json:"transaction_type"`
	CreatedAt       time.Time `db:"created_at" json:"created_at"`
	BatchID         *int64    `db:"batch_id" json:"batch_id,omitempty"`
	ProductName     string    `db:"product_name" json:"product_name,omitempty"`
}

// Sale records a quantity sold on a date
type Sale struct {
	ID          int64     `db:"id" json:"id"`
	ProductID   int64     `db:"product_id" json:"product_id"`
	Quantity    int       `db:"quantity" json:"quantity"`
	SellDate    time.Time `db:"sell_date" json:"sell_date"`
	Remarks     *string   `db:"remarks" json:"remarks,omitempty"`
	ProductName string    `db:"product_name" json:"product_name,omitempty"`
}

// SupplierProduct is a listing offered by a supplier
type SupplierProduct struct {
	ID                int64           `db:"id" json:"id"`
	SupplierID        int64           `db:"supplier_id" json:"supplier_id"`
	Name              string          `db:"name" json:"name"`
	Category          string          `db:"category" json:"category"`
	Code              string          `db:"code" json:"code"`
	Cost              decimal.Decimal `db:"cost" json:"cost"`
	QuantityAvailable int             `db:"quantity_available" json:"quantity_available"`
	CreatedAt         time.Time       `db:"created_at" json:"created_at"`
}

// ProductMapping links a supplier product to a managed product
type ProductMapping struct {
	ID                int64 `db:"id" json:"id"`
	SupplierID        int64 `db:"supplier_id" json:"supplier_id"`
	SupplierProductID int64 `db:"supplier_product_id" json:"supplier_product_id"`
	ProductID         int64 `db:"product_id" json:"product_id"`
}

// PurchaseOrder represents an order placed with a supplier
type PurchaseOrder struct {
	ID                int64           `db:"id" json:"id"`
	SupplierID        int64           `db:"supplier_id" json:"supplier_id"`
	OrderDate         time.Time       `db:"order_date" json:"order_date"`
	Status            OrderStatus     `db:"status" json:"status"`
	TotalCost         decimal.Decimal `db:"total_cost" json:"total_cost"`
	Description       *string         `db:"description" json:"description,omitempty"`
	PaymentReceiptURL *string         `db:"payment_receipt_url" json:"payment_receipt_url,omitempty"`
	PaymentDate       *time.Time      `db:"payment_date" json:"payment_date,omitempty"`
	IdempotencyKey    *string         `db:"idempotency_key" json:"-"`
}

// OrderItem represents a line in a purchase order
type OrderItem struct {
	ID                int64           `db:"id" json:"id"`
	PurchaseOrderID   int64           `db:"purchase_order_id" json:"purchase_order_id"`
	SupplierProductID int64           `db:"supplier_product_id" json:"supplier_product_id"`
	Quantity          int             `db:"quantity" json:"quantity"`
	UnitCost          decimal.Decimal `db:"unit_cost" json:"unit_cost"`
	Subtotal          decimal.Decimal `db:"subtotal" json:"subtotal"`
}

// NewOrderItem builds an item with its subtotal derived from quantity and unit cost
func NewOrderItem(supplierProductID int64, quantity int, unitCost decimal.Decimal) OrderItem {
	return OrderItem{
		SupplierProductID: supplierProductID,
		Quantity:          quantity,
		UnitCost:          unitCost,
		Subtotal:          unitCost.Mul(decimal.NewFromInt(int64(quantity))),
	}
}

// StatusHistory is one row of a purchase order's status log
type StatusHistory struct {
	ID              int64       `db:"id" json:"id"`
	PurchaseOrderID int64       `db:"purchase_order_id" json:"purchase_order_id"`
	Status          OrderStatus `db:"status" json:"status"`
	UpdatedAt       time.Time   `db:"updated_at" json:"updated_at"`
	Message         *string     `db:"message" json:"message,omitempty"`
}

// SupplierBankAccount holds a supplier's payout details
type SupplierBankAccount struct {
	ID            int64  `db:"id" json:"id"`
	SupplierID    int64  `db:"supplier_id" json:"supplier_id"`
	BankName      string `db:"bank_name" json:"bank_name"`
	AccountNumber string `db:"account_number" json:"account_number"`
	AccountHolder string `db:"account_holder" json:"account_holder"`
}

// ProcessedEvent for idempotency
type ProcessedEvent struct {
	EventID     string    `db:"event_id"`
	EventType   string    `db:"event_type"`
	ProcessedAt time.Time `db:"processed_at"`
}

// DateOnly truncates t to midnight UTC of its calendar day.
func DateOnly(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
