package models

import "time"

// Event types
const (
	EventTypeSaleRecorded       = "SALE_RECORDED"
	EventTypeStockRestocked     = "STOCK_RESTOCKED"
	EventTypeStockAdjusted      = "STOCK_ADJUSTED"
	EventTypeLowStock           = "LOW_STOCK"
	EventTypeOrderStatusChanged = "PURCHASE_ORDER_STATUS_CHANGED"
)

// BaseEvent contains common fields for all events
type BaseEvent struct {
	EventID   string    `json:"event_id"`
	EventType string    `json:"event_type"`
	Timestamp time.Time `json:"timestamp"`
}

// SaleRecordedEvent published after a FEFO sale commits
type SaleRecordedEvent struct {
	BaseEvent
	SaleID     int64           `json:"sale_id"`
	ProductID  int64           `json:"product_id"`
	Quantity   int             `json:"quantity"`
	Deductions []BatchMovement `json:"deductions"`
}

// StockRestockedEvent published when batches are received for a product
type StockRestockedEvent struct {
	BaseEvent
	ProductID       int64           `json:"product_id"`
	PurchaseOrderID int64           `json:"purchase_order_id,omitempty"`
	Batches         []BatchMovement `json:"batches"`
}

// StockAdjustedEvent published on manual batch edits
type StockAdjustedEvent struct {
	BaseEvent
	ProductID int64 `json:"product_id"`
	BatchID   int64 `json:"batch_id"`
	Change    int   `json:"change"`
}

// LowStockEvent published when remaining stock drops below the reorder threshold
type LowStockEvent struct {
	BaseEvent
	ProductID int64  `json:"product_id"`
	Code      string `json:"code"`
	Remaining int    `json:"remaining"`
	Threshold int    `json:"threshold"`
}

// OrderStatusChangedEvent published after every accepted purchase-order transition
type OrderStatusChangedEvent struct {
	BaseEvent
	PurchaseOrderID int64       `json:"purchase_order_id"`
	SupplierID      int64       `json:"supplier_id"`
	From            OrderStatus `json:"from"`
	To              OrderStatus `json:"to"`
	Message         string      `json:"message,omitempty"`
}

// BatchMovement is a quantity moved in or out of one batch
type BatchMovement struct {
	BatchID  int64 `json:"batch_id"`
	Quantity int   `json:"quantity"`
}
