package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"inventory-service/internal/models"
	"inventory-service/internal/store"
	"inventory-service/internal/util"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

const dateLayout = "2006-01-02"

// InventoryService owns batches, the inventory ledger and sales
type InventoryService struct {
	repo           store.Repository
	cache          StockCache
	idempotency    IdempotencyStore
	events         EventPublisher
	logger         *zap.Logger
	lowStockAlerts bool
	idempotencyTTL time.Duration
}

type InventoryOptions struct {
	LowStockAlerts bool
	IdempotencyTTL time.Duration
}

// NewInventoryService creates a new inventory service. cache, idempotency and
// events may be nil.
func NewInventoryService(
	repo store.Repository,
	cache StockCache,
	idempotency IdempotencyStore,
	events EventPublisher,
	opts InventoryOptions,
) *InventoryService {
	if cache == nil {
		cache = noopCache{}
	}
	if idempotency == nil {
		idempotency = noopIdempotency{}
	}
	if events == nil {
		events = noopPublisher{}
	}
	if opts.IdempotencyTTL <= 0 {
		opts.IdempotencyTTL = 24 * time.Hour
	}
	return &InventoryService{
		repo:           repo,
		cache:          cache,
		idempotency:    idempotency,
		events:         events,
		logger:         util.GetLogger(),
		lowStockAlerts: opts.LowStockAlerts,
		idempotencyTTL: opts.IdempotencyTTL,
	}
}

// CreateSaleRequest represents a request to record a sale
type CreateSaleRequest struct {
	ProductID      int64   `json:"product_id" binding:"required"`
	Quantity       int     `json:"quantity" binding:"required,min=1"`
	SellDate       string  `json:"sell_date" binding:"omitempty,datetime=2006-01-02"`
	Remarks        *string `json:"remarks,omitempty"`
	IdempotencyKey string  `json:"-"`
}

// SaleResult is a committed sale with the batches it consumed
type SaleResult struct {
	Sale           models.Sale            `json:"sale"`
	Deductions     []models.BatchMovement `json:"deductions"`
	RemainingStock int                    `json:"remaining_stock"`
}

// CreateSale deducts quantity from the product's batches in FEFO order and
// records the sale, all in one transaction. Nothing is written when stock is short.
func (s *InventoryService) CreateSale(ctx context.Context, req *CreateSaleRequest) (*SaleResult, error) {
	ctx, span := util.StartSpan(ctx, "InventoryService.CreateSale",
		attribute.Int64("product_id", req.ProductID),
		attribute.Int("quantity", req.Quantity))
	defer span.End()

	start := time.Now()
	defer func() {
		util.SaleDeductionLatency.Observe(time.Since(start).Seconds())
	}()

	if req.Quantity <= 0 {
		util.SalesRejectedTotal.WithLabelValues("invalid_input").Inc()
		return nil, invalidInput("quantity must be positive, got %d", req.Quantity)
	}
	sellDate := models.DateOnly(time.Now())
	if req.SellDate != "" {
		d, err := parseDate(req.SellDate)
		if err != nil {
			util.SalesRejectedTotal.WithLabelValues("invalid_input").Inc()
			return nil, err
		}
		sellDate = d
	}
	if err := checkIdempotencyKey(req.IdempotencyKey); err != nil {
		util.SalesRejectedTotal.WithLabelValues("invalid_input").Inc()
		return nil, err
	}

	if req.IdempotencyKey != "" {
		key := "sale:" + req.IdempotencyKey
		fresh, err := s.idempotency.ReserveKey(ctx, key, s.idempotencyTTL)
		if err != nil {
			s.logger.Warn("Idempotency check failed, continuing without it",
				zap.String("idempotency_key", req.IdempotencyKey),
				zap.Error(err))
		} else if !fresh {
			util.SalesRejectedTotal.WithLabelValues("duplicate").Inc()
			return nil, fmt.Errorf("%w: duplicate sale request %s", store.ErrConflict, req.IdempotencyKey)
		}
	}

	var (
		product *models.Product
		result  SaleResult
	)
	err := s.repo.WithTx(ctx, func(tx store.Repository) error {
		var err error
		product, err = tx.GetProductByID(ctx, req.ProductID)
		if err != nil {
			return fmt.Errorf("product %d: %w", req.ProductID, err)
		}

		batches, err := tx.ListAvailableBatchesForUpdate(ctx, req.ProductID)
		if err != nil {
			return fmt.Errorf("failed to load batches: %w", err)
		}

		plan, err := PlanDeduction(batches, req.Quantity)
		if err != nil {
			var shortage *InsufficientStockError
			if errors.As(err, &shortage) {
				shortage.ProductID = req.ProductID
			}
			return err
		}

		for _, d := range plan {
			if err := tx.DeductBatch(ctx, d.BatchID, d.Quantity); err != nil {
				if errors.Is(err, store.ErrInsufficientStock) {
					return &InsufficientStockError{ProductID: req.ProductID, Requested: req.Quantity}
				}
				return fmt.Errorf("failed to deduct batch %d: %w", d.BatchID, err)
			}
			batchID := d.BatchID
			entry := &models.InventoryEntry{
				ProductID:       req.ProductID,
				ChangeAmount:    -d.Quantity,
				TransactionType: models.TransactionSale,
				BatchID:         &batchID,
			}
			if err := tx.CreateInventoryEntry(ctx, entry); err != nil {
				return fmt.Errorf("failed to write ledger entry: %w", err)
			}
		}

		sale := models.Sale{
			ProductID: req.ProductID,
			Quantity:  req.Quantity,
			SellDate:  sellDate,
			Remarks:   req.Remarks,
		}
		if err := tx.CreateSale(ctx, &sale); err != nil {
			return fmt.Errorf("failed to create sale: %w", err)
		}
		sale.ProductName = product.Name

		remaining, err := tx.SumRemainingStock(ctx, req.ProductID)
		if err != nil {
			return err
		}

		result = SaleResult{Sale: sale, Deductions: plan, RemainingStock: remaining}
		return nil
	})
	if err != nil {
		if req.IdempotencyKey != "" {
			if rerr := s.idempotency.ReleaseKey(ctx, "sale:"+req.IdempotencyKey); rerr != nil {
				s.logger.Warn("Failed to release idempotency key", zap.Error(rerr))
			}
		}
		switch {
		case errors.Is(err, ErrInsufficientStock):
			util.SalesRejectedTotal.WithLabelValues("insufficient_stock").Inc()
		case errors.Is(err, store.ErrNotFound):
			util.SalesRejectedTotal.WithLabelValues("not_found").Inc()
		default:
			util.SalesRejectedTotal.WithLabelValues("error").Inc()
		}
		span.RecordError(err)
		return nil, err
	}

	util.SalesRecordedTotal.Inc()
	util.UnitsSoldTotal.Add(float64(req.Quantity))
	util.BatchesTouchedPerSale.Observe(float64(len(result.Deductions)))
	s.logger.Info("Sale recorded",
		zap.Int64("sale_id", result.Sale.ID),
		zap.Int64("product_id", req.ProductID),
		zap.Int("quantity", req.Quantity),
		zap.Int("batches", len(result.Deductions)),
		zap.Int("remaining", result.RemainingStock))

	event := &models.SaleRecordedEvent{
		BaseEvent:  newBaseEvent(models.EventTypeSaleRecorded),
		SaleID:     result.Sale.ID,
		ProductID:  req.ProductID,
		Quantity:   req.Quantity,
		Deductions: result.Deductions,
	}
	if err := s.events.PublishSaleRecorded(ctx, event); err != nil {
		s.logger.Error("Failed to publish SaleRecorded event", zap.Error(err))
	}

	s.afterStockChange(ctx, product, result.RemainingStock)
	return &result, nil
}

// ListSales returns every sale, newest first
func (s *InventoryService) ListSales(ctx context.Context) ([]models.Sale, error) {
	return s.repo.ListSales(ctx)
}

// AddBatchRequest adds stock received outside a purchase order
type AddBatchRequest struct {
	Quantity     int    `json:"quantity" binding:"required,min=1"`
	ExpiryDate   string `json:"expiry_date" binding:"required,datetime=2006-01-02"`
	ReceivedDate string `json:"received_date" binding:"omitempty,datetime=2006-01-02"`
}

// AddBatch creates a batch and its manual_add ledger entry
func (s *InventoryService) AddBatch(ctx context.Context, productID int64, req *AddBatchRequest) (*models.Batch, error) {
	ctx, span := util.StartSpan(ctx, "InventoryService.AddBatch", attribute.Int64("product_id", productID))
	defer span.End()

	if req.Quantity <= 0 {
		return nil, invalidInput("quantity must be positive, got %d", req.Quantity)
	}
	expiry, err := parseDate(req.ExpiryDate)
	if err != nil {
		return nil, err
	}
	received := models.DateOnly(time.Now())
	if req.ReceivedDate != "" {
		if received, err = parseDate(req.ReceivedDate); err != nil {
			return nil, err
		}
	}

	var (
		product   *models.Product
		batch     models.Batch
		remaining int
	)
	err = s.repo.WithTx(ctx, func(tx store.Repository) error {
		var err error
		product, err = tx.GetProductByID(ctx, productID)
		if err != nil {
			return fmt.Errorf("product %d: %w", productID, err)
		}

		batch = models.Batch{
			ProductID:        productID,
			Quantity:         req.Quantity,
			ReceivedQuantity: req.Quantity,
			ExpiryDate:       expiry,
			ReceivedDate:     received,
		}
		if err := tx.CreateBatch(ctx, &batch); err != nil {
			return fmt.Errorf("failed to create batch: %w", err)
		}

		batchID := batch.ID
		if err := tx.CreateInventoryEntry(ctx, &models.InventoryEntry{
			ProductID:       productID,
			ChangeAmount:    req.Quantity,
			TransactionType: models.TransactionManualAdd,
			BatchID:         &batchID,
		}); err != nil {
			return fmt.Errorf("failed to write ledger entry: %w", err)
		}

		remaining, err = tx.SumRemainingStock(ctx, productID)
		return err
	})
	if err != nil {
		return nil, util.RecordError(span, err)
	}

	util.UnitsRestockedTotal.WithLabelValues("manual").Add(float64(req.Quantity))
	s.logger.Info("Batch added",
		zap.Int64("product_id", productID),
		zap.Int64("batch_id", batch.ID),
		zap.Int("quantity", batch.Quantity))

	s.publishRestock(ctx, productID, 0, []models.BatchMovement{{BatchID: batch.ID, Quantity: batch.Quantity}})
	s.afterStockChange(ctx, product, remaining)
	return &batch, nil
}

// UpdateBatchRequest edits a batch. Nil fields are left unchanged.
type UpdateBatchRequest struct {
	Quantity     *int    `json:"quantity" binding:"omitempty,min=0"`
	ExpiryDate   *string `json:"expiry_date" binding:"omitempty,datetime=2006-01-02"`
	ReceivedDate *string `json:"received_date" binding:"omitempty,datetime=2006-01-02"`
}

// UpdateBatch applies the edit and records any quantity change as an adjustment entry
func (s *InventoryService) UpdateBatch(ctx context.Context, productID, batchID int64, req *UpdateBatchRequest) (*models.Batch, error) {
	ctx, span := util.StartSpan(ctx, "InventoryService.UpdateBatch", attribute.Int64("batch_id", batchID))
	defer span.End()

	if req.Quantity != nil && *req.Quantity < 0 {
		return nil, invalidInput("quantity cannot be negative")
	}

	var (
		product   *models.Product
		batch     *models.Batch
		delta     int
		remaining int
	)
	err := s.repo.WithTx(ctx, func(tx store.Repository) error {
		var err error
		product, err = tx.GetProductByID(ctx, productID)
		if err != nil {
			return fmt.Errorf("product %d: %w", productID, err)
		}
		batch, err = tx.GetBatchForUpdate(ctx, productID, batchID)
		if err != nil {
			return fmt.Errorf("batch %d: %w", batchID, err)
		}

		if req.ExpiryDate != nil {
			if batch.ExpiryDate, err = parseDate(*req.ExpiryDate); err != nil {
				return err
			}
		}
		if req.ReceivedDate != nil {
			if batch.ReceivedDate, err = parseDate(*req.ReceivedDate); err != nil {
				return err
			}
		}
		if req.Quantity != nil {
			delta = *req.Quantity - batch.Quantity
			batch.Quantity = *req.Quantity
		}

		if err := tx.UpdateBatch(ctx, batch); err != nil {
			return fmt.Errorf("failed to update batch: %w", err)
		}

		if delta != 0 {
			id := batch.ID
			if err := tx.CreateInventoryEntry(ctx, &models.InventoryEntry{
				ProductID:       productID,
				ChangeAmount:    delta,
				TransactionType: models.TransactionAdjustment,
				BatchID:         &id,
			}); err != nil {
				return fmt.Errorf("failed to write ledger entry: %w", err)
			}
		}

		remaining, err = tx.SumRemainingStock(ctx, productID)
		return err
	})
	if err != nil {
		return nil, util.RecordError(span, err)
	}

	if delta != 0 {
		s.logger.Info("Batch quantity adjusted",
			zap.Int64("batch_id", batchID),
			zap.Int("change", delta))
		s.publishAdjust(ctx, productID, batchID, delta)
		s.afterStockChange(ctx, product, remaining)
	}
	return batch, nil
}

// DeleteBatch writes off the batch's remaining quantity as an adjustment entry,
// then removes the batch. Its ledger rows stay, detached from the batch.
func (s *InventoryService) DeleteBatch(ctx context.Context, productID, batchID int64) error {
	ctx, span := util.StartSpan(ctx, "InventoryService.DeleteBatch", attribute.Int64("batch_id", batchID))
	defer span.End()

	var (
		product   *models.Product
		writeOff  int
		remaining int
	)
	err := s.repo.WithTx(ctx, func(tx store.Repository) error {
		var err error
		product, err = tx.GetProductByID(ctx, productID)
		if err != nil {
			return fmt.Errorf("product %d: %w", productID, err)
		}
		batch, err := tx.GetBatchForUpdate(ctx, productID, batchID)
		if err != nil {
			return fmt.Errorf("batch %d: %w", batchID, err)
		}

		if batch.Quantity > 0 {
			writeOff = -batch.Quantity
			id := batch.ID
			if err := tx.CreateInventoryEntry(ctx, &models.InventoryEntry{
				ProductID:       productID,
				ChangeAmount:    writeOff,
				TransactionType: models.TransactionAdjustment,
				BatchID:         &id,
			}); err != nil {
				return fmt.Errorf("failed to write ledger entry: %w", err)
			}
		}
		if err := tx.DeleteBatch(ctx, batchID); err != nil {
			return err
		}
		remaining, err = tx.SumRemainingStock(ctx, productID)
		return err
	})
	if err != nil {
		return util.RecordError(span, err)
	}

	s.logger.Info("Batch deleted",
		zap.Int64("product_id", productID),
		zap.Int64("batch_id", batchID),
		zap.Int("written_off", -writeOff))
	if writeOff != 0 {
		s.publishAdjust(ctx, productID, batchID, writeOff)
	}
	s.afterStockChange(ctx, product, remaining)
	return nil
}

// ListInventory returns ledger entries, newest first. productID 0 lists every product.
func (s *InventoryService) ListInventory(ctx context.Context, productID int64) ([]models.InventoryEntry, error) {
	return s.repo.ListInventoryEntries(ctx, productID)
}

// StockLevel is the remaining quantity of a product
type StockLevel struct {
	ProductID int64 `json:"product_id"`
	Remaining int   `json:"remaining"`
	Threshold int   `json:"stock_threshold"`
	LowStock  bool  `json:"low_stock"`
	Cached    bool  `json:"cached"`
}

// GetStockLevel answers from the cache when it can and fills it otherwise
func (s *InventoryService) GetStockLevel(ctx context.Context, productID int64) (*StockLevel, error) {
	ctx, span := util.StartSpan(ctx, "InventoryService.GetStockLevel", attribute.Int64("product_id", productID))
	defer span.End()

	product, err := s.repo.GetProductByID(ctx, productID)
	if err != nil {
		return nil, fmt.Errorf("product %d: %w", productID, err)
	}

	level := &StockLevel{ProductID: productID, Threshold: product.StockThreshold}

	qty, found, err := s.cache.GetStock(ctx, productID)
	switch {
	case err != nil:
		util.CacheRequestsTotal.WithLabelValues("error").Inc()
		s.logger.Warn("Stock cache read failed, falling back to DB",
			zap.Int64("product_id", productID),
			zap.Error(err))
	case found:
		util.CacheRequestsTotal.WithLabelValues("hit").Inc()
		level.Remaining = qty
		level.Cached = true
		level.LowStock = isLowStock(product, qty)
		return level, nil
	default:
		util.CacheRequestsTotal.WithLabelValues("miss").Inc()
	}

	level.Remaining, err = s.repo.SumRemainingStock(ctx, productID)
	if err != nil {
		return nil, err
	}
	level.LowStock = isLowStock(product, level.Remaining)

	if err := s.cache.SetStock(ctx, productID, level.Remaining); err != nil {
		s.logger.Warn("Failed to fill stock cache", zap.Int64("product_id", productID), zap.Error(err))
	}
	return level, nil
}

// RefreshStock recomputes a product's stock and rewrites the cache entry
func (s *InventoryService) RefreshStock(ctx context.Context, productID int64) (int, error) {
	remaining, err := s.repo.SumRemainingStock(ctx, productID)
	if err != nil {
		return 0, err
	}
	if err := s.cache.SetStock(ctx, productID, remaining); err != nil {
		return remaining, fmt.Errorf("failed to cache stock: %w", err)
	}
	return remaining, nil
}

// SyncStockToCache loads every product's stock into the cache
func (s *InventoryService) SyncStockToCache(ctx context.Context) error {
	s.logger.Info("Starting stock sync to cache")

	products, err := s.repo.ListProducts(ctx)
	if err != nil {
		return fmt.Errorf("failed to get products: %w", err)
	}

	for _, p := range products {
		if _, err := s.RefreshStock(ctx, p.ID); err != nil {
			s.logger.Error("Failed to sync product stock",
				zap.Int64("product_id", p.ID),
				zap.Error(err))
		}
	}

	s.logger.Info("Stock sync completed", zap.Int("count", len(products)))
	return nil
}

// BatchReconciliation compares one batch with the sum of its ledger entries
type BatchReconciliation struct {
	BatchID    int64 `json:"batch_id"`
	Quantity   int   `json:"quantity"`
	LedgerSum  int   `json:"ledger_sum"`
	Consistent bool  `json:"consistent"`
}

type LedgerReport struct {
	ProductID        int64                 `json:"product_id"`
	Batches          []BatchReconciliation `json:"batches"`
	UnbatchedEntries int                   `json:"unbatched_entries"`
	Consistent       bool                  `json:"consistent"`
}

// ReconcileLedger checks that every batch's ledger entries add up to its remaining quantity
func (s *InventoryService) ReconcileLedger(ctx context.Context, productID int64) (*LedgerReport, error) {
	ctx, span := util.StartSpan(ctx, "InventoryService.ReconcileLedger", attribute.Int64("product_id", productID))
	defer span.End()

	if _, err := s.repo.GetProductByID(ctx, productID); err != nil {
		return nil, fmt.Errorf("product %d: %w", productID, err)
	}
	batches, err := s.repo.ListBatchesByProduct(ctx, productID)
	if err != nil {
		return nil, err
	}
	entries, err := s.repo.ListInventoryEntries(ctx, productID)
	if err != nil {
		return nil, err
	}

	sums := make(map[int64]int, len(batches))
	report := &LedgerReport{ProductID: productID, Consistent: true, Batches: []BatchReconciliation{}}
	for _, e := range entries {
		if e.BatchID == nil {
			report.UnbatchedEntries++
			continue
		}
		sums[*e.BatchID] += e.ChangeAmount
	}

	for _, b := range batches {
		rec := BatchReconciliation{
			BatchID:    b.ID,
			Quantity:   b.Quantity,
			LedgerSum:  sums[b.ID],
			Consistent: sums[b.ID] == b.Quantity,
		}
		if !rec.Consistent {
			report.Consistent = false
			s.logger.Warn("Ledger drift detected",
				zap.Int64("product_id", productID),
				zap.Int64("batch_id", b.ID),
				zap.Int("quantity", b.Quantity),
				zap.Int("ledger_sum", rec.LedgerSum))
		}
		report.Batches = append(report.Batches, rec)
	}
	return report, nil
}

// afterStockChange drops the cached stock and raises a low-stock alert when needed.
// The next read refills the entry from the database.
func (s *InventoryService) afterStockChange(ctx context.Context, product *models.Product, remaining int) {
	if product == nil {
		return
	}
	s.invalidateStock(ctx, product.ID)

	if !s.lowStockAlerts || !isLowStock(product, remaining) {
		return
	}

	util.LowStockAlertsTotal.Inc()
	s.logger.Warn("Product below reorder threshold",
		zap.Int64("product_id", product.ID),
		zap.String("code", product.Code),
		zap.Int("remaining", remaining),
		zap.Int("threshold", product.StockThreshold))

	event := &models.LowStockEvent{
		BaseEvent: newBaseEvent(models.EventTypeLowStock),
		ProductID: product.ID,
		Code:      product.Code,
		Remaining: remaining,
		Threshold: product.StockThreshold,
	}
	if err := s.events.PublishLowStock(ctx, event); err != nil {
		s.logger.Error("Failed to publish LowStock event", zap.Error(err))
	}
}

func (s *InventoryService) publishRestock(ctx context.Context, productID, orderID int64, batches []models.BatchMovement) {
	event := &models.StockRestockedEvent{
		BaseEvent:       newBaseEvent(models.EventTypeStockRestocked),
		ProductID:       productID,
		PurchaseOrderID: orderID,
		Batches:         batches,
	}
	if err := s.events.PublishStockRestocked(ctx, event); err != nil {
		s.logger.Error("Failed to publish StockRestocked event", zap.Error(err))
	}
}

func (s *InventoryService) invalidateStock(ctx context.Context, productID int64) {
	if err := s.cache.DeleteStock(ctx, productID); err != nil {
		s.logger.Warn("Failed to invalidate stock cache",
			zap.Int64("product_id", productID),
			zap.Error(err))
	}
}

func (s *InventoryService) publishAdjust(ctx context.Context, productID, batchID int64, change int) {
	event := &models.StockAdjustedEvent{
		BaseEvent: newBaseEvent(models.EventTypeStockAdjusted),
		ProductID: productID,
		BatchID:   batchID,
		Change:    change,
	}
	if err := s.events.PublishStockAdjusted(ctx, event); err != nil {
		s.logger.Error("Failed to publish StockAdjusted event", zap.Error(err))
	}
}

func isLowStock(p *models.Product, remaining int) bool {
	return p.StockThreshold > 0 && remaining < p.StockThreshold
}

func newBaseEvent(eventType string) models.BaseEvent {
	return models.BaseEvent{
		EventID:   uuid.New().String(),
		EventType: eventType,
		Timestamp: time.Now().UTC(),
	}
}

func parseDate(s string) (time.Time, error) {
	t, err := time.Parse(dateLayout, s)
	if err != nil {
		return time.Time{}, invalidInput("date %q must use YYYY-MM-DD", s)
	}
	return t, nil
}
