package worker

import (
	"context"
	"fmt"

	"inventory-service/internal/broker"
	"inventory-service/internal/models"
	"inventory-service/internal/util"

	"go.uber.org/zap"
)

// StockRefresher recomputes a product's stock and rewrites its cache entry
type StockRefresher interface {
	RefreshStock(ctx context.Context, productID int64) (int, error)
}

// ProcessedEvents records which events were already handled
type ProcessedEvents interface {
	IsEventProcessed(ctx context.Context, eventID string) (bool, error)
	MarkEventProcessed(ctx context.Context, eventID, eventType string) error
}

// StockWorker consumes inventory events. It keeps the stock cache in step with
// committed changes, including those made by other instances, and logs alerts.
type StockWorker struct {
	consumer     *broker.Consumer
	eventHandler *broker.EventHandler
	stock        StockRefresher
	processed    ProcessedEvents
	logger       *zap.Logger
}

// NewStockWorker creates a new stock worker. consumer may be nil when the
// handlers are driven directly.
func NewStockWorker(consumer *broker.Consumer, stock StockRefresher, processed ProcessedEvents) *StockWorker {
	w := &StockWorker{
		consumer:  consumer,
		stock:     stock,
		processed: processed,
		logger:    util.GetLogger(),
	}

	eventHandler := broker.NewEventHandler()
	eventHandler.OnSaleRecorded(w.HandleSaleRecorded)
	eventHandler.OnStockRestocked(w.HandleStockRestocked)
	eventHandler.OnStockAdjusted(w.HandleStockAdjusted)
	eventHandler.OnLowStock(w.HandleLowStock)
	eventHandler.OnOrderStatusChanged(w.HandleOrderStatusChanged)
	w.eventHandler = eventHandler

	return w
}

// Handler exposes the routing handler used by Start
func (w *StockWorker) Handler() *broker.EventHandler {
	return w.eventHandler
}

// Start starts the worker
func (w *StockWorker) Start(ctx context.Context) error {
	if w.consumer == nil {
		return fmt.Errorf("stock worker has no consumer")
	}
	w.logger.Info("Starting stock worker")
	return w.consumer.StartConsuming(ctx, w.eventHandler.HandleMessage)
}

// Stop stops the worker
func (w *StockWorker) Stop() error {
	w.logger.Info("Stopping stock worker")
	if w.consumer == nil {
		return nil
	}
	return w.consumer.Close()
}

func (w *StockWorker) HandleSaleRecorded(ctx context.Context, event *models.SaleRecordedEvent) error {
	return w.once(ctx, event.BaseEvent, func() error {
		return w.refresh(ctx, event.ProductID)
	})
}

func (w *StockWorker) HandleStockRestocked(ctx context.Context, event *models.StockRestockedEvent) error {
	return w.once(ctx, event.BaseEvent, func() error {
		return w.refresh(ctx, event.ProductID)
	})
}

func (w *StockWorker) HandleStockAdjusted(ctx context.Context, event *models.StockAdjustedEvent) error {
	return w.once(ctx, event.BaseEvent, func() error {
		return w.refresh(ctx, event.ProductID)
	})
}

func (w *StockWorker) HandleLowStock(ctx context.Context, event *models.LowStockEvent) error {
	return w.once(ctx, event.BaseEvent, func() error {
		w.logger.Warn("Reorder needed",
			zap.Int64("product_id", event.ProductID),
			zap.String("code", event.Code),
			zap.Int("remaining", event.Remaining),
			zap.Int("threshold", event.Threshold))
		return nil
	})
}

func (w *StockWorker) HandleOrderStatusChanged(ctx context.Context, event *models.OrderStatusChangedEvent) error {
	return w.once(ctx, event.BaseEvent, func() error {
		w.logger.Info("Purchase order moved",
			zap.Int64("order_id", event.PurchaseOrderID),
			zap.Int64("supplier_id", event.SupplierID),
			zap.String("from", event.From.String()),
			zap.String("to", event.To.String()))
		return nil
	})
}

func (w *StockWorker) refresh(ctx context.Context, productID int64) error {
	remaining, err := w.stock.RefreshStock(ctx, productID)
	if err != nil {
		return fmt.Errorf("failed to refresh stock for product %d: %w", productID, err)
	}
	w.logger.Debug("Stock cache refreshed", zap.Int64("product_id", productID), zap.Int("remaining", remaining))
	return nil
}

// once runs fn unless the event was already processed, then records it
func (w *StockWorker) once(ctx context.Context, event models.BaseEvent, fn func() error) error {
	if event.EventID != "" {
		done, err := w.processed.IsEventProcessed(ctx, event.EventID)
		if err != nil {
			return fmt.Errorf("failed to check processed events: %w", err)
		}
		if done {
			w.logger.Info("Event already processed, skipping",
				zap.String("event_id", event.EventID),
				zap.String("event_type", event.EventType))
			return nil
		}
	}

	if err := fn(); err != nil {
		return err
	}

	if event.EventID == "" {
		return nil
	}
	return w.processed.MarkEventProcessed(ctx, event.EventID, event.EventType)
}
