package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"inventory-service/internal/models"
	"inventory-service/internal/store"
	"inventory-service/internal/util"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

// PurchaseOrderService handles purchase orders and their fulfillment
type PurchaseOrderService struct {
	repo      store.Repository
	inventory *InventoryService
	locker    Locker
	events    EventPublisher
	logger    *zap.Logger
	lockTTL   time.Duration
}

// NewPurchaseOrderService creates a new purchase order service. locker and events may be nil.
func NewPurchaseOrderService(
	repo store.Repository,
	inventory *InventoryService,
	locker Locker,
	events EventPublisher,
	lockTTL time.Duration,
) *PurchaseOrderService {
	if locker == nil {
		locker = noopLocker{}
	}
	if events == nil {
		events = noopPublisher{}
	}
	if lockTTL <= 0 {
		lockTTL = 30 * time.Second
	}
	return &PurchaseOrderService{
		repo:      repo,
		inventory: inventory,
		locker:    locker,
		events:    events,
		logger:    util.GetLogger(),
		lockTTL:   lockTTL,
	}
}

// CreatePurchaseOrderRequest represents a request to create a purchase order
type CreatePurchaseOrderRequest struct {
	SupplierID     int64              `json:"supplier_id" binding:"required"`
	Description    *string            `json:"description,omitempty"`
	Items          []OrderItemRequest `json:"items" binding:"required,min=1,dive"`
	IdempotencyKey string             `json:"idempotency_key,omitempty" binding:"omitempty,max=64"`
}

// OrderItemRequest represents an item in a purchase order
type OrderItemRequest struct {
	SupplierProductID int64 `json:"supplier_product_id" binding:"required"`
	Quantity          int   `json:"quantity" binding:"required,min=1"`
}

// PurchaseOrderDetail is an order with its items and status history
type PurchaseOrderDetail struct {
	models.PurchaseOrder
	Items   []models.OrderItem     `json:"items"`
	History []models.StatusHistory `json:"status_history"`
}

// CreatePurchaseOrder creates a pending order. Unit costs come from the supplier's
// listing; subtotals and the total are computed here. A repeated idempotency key
// returns the order created the first time.
func (s *PurchaseOrderService) CreatePurchaseOrder(ctx context.Context, req *CreatePurchaseOrderRequest) (*PurchaseOrderDetail, error) {
	ctx, span := util.StartSpan(ctx, "PurchaseOrderService.CreatePurchaseOrder",
		attribute.Int64("supplier_id", req.SupplierID))
	defer span.End()

	if len(req.Items) == 0 {
		return nil, invalidInput("a purchase order needs at least one item")
	}
	if err := checkIdempotencyKey(req.IdempotencyKey); err != nil {
		return nil, err
	}
	if req.IdempotencyKey == "" {
		req.IdempotencyKey = uuid.New().String()
	}

	existing, err := s.repo.GetPurchaseOrderByIdempotencyKey(ctx, req.IdempotencyKey)
	if err != nil {
		return nil, fmt.Errorf("failed to check idempotency: %w", err)
	}
	if existing != nil {
		s.logger.Info("Duplicate purchase order request detected",
			zap.String("idempotency_key", req.IdempotencyKey),
			zap.Int64("order_id", existing.ID))
		return s.GetPurchaseOrder(ctx, existing.ID)
	}

	var orderID int64
	err = s.repo.WithTx(ctx, func(tx store.Repository) error {
		supplier, err := tx.GetUserByID(ctx, req.SupplierID)
		if err != nil || supplier.Role != models.RoleSupplier {
			return invalidInput("supplier %d does not exist", req.SupplierID)
		}

		items := make([]models.OrderItem, 0, len(req.Items))
		total := decimal.Zero
		for _, it := range req.Items {
			if it.Quantity <= 0 {
				return invalidInput("item quantity must be positive")
			}
			sp, err := tx.GetSupplierProduct(ctx, it.SupplierProductID)
			if err != nil {
				if errors.Is(err, store.ErrNotFound) {
					return invalidInput("supplier product %d does not exist", it.SupplierProductID)
				}
				return err
			}
			if sp.SupplierID != req.SupplierID {
				return invalidInput("supplier product %d belongs to another supplier", sp.ID)
			}
			item := models.NewOrderItem(sp.ID, it.Quantity, sp.Cost)
			total = total.Add(item.Subtotal)
			items = append(items, item)
		}

		key := req.IdempotencyKey
		po := &models.PurchaseOrder{
			SupplierID:     req.SupplierID,
			Status:         models.OrderStatusPending,
			TotalCost:      total,
			Description:    req.Description,
			IdempotencyKey: &key,
		}
		if err := tx.CreatePurchaseOrder(ctx, po); err != nil {
			return fmt.Errorf("failed to create purchase order: %w", err)
		}

		for i := range items {
			items[i].PurchaseOrderID = po.ID
			if err := tx.CreateOrderItem(ctx, &items[i]); err != nil {
				return fmt.Errorf("failed to create order item: %w", err)
			}
		}

		msg := "Order created"
		if err := tx.AddStatusHistory(ctx, &models.StatusHistory{
			PurchaseOrderID: po.ID,
			Status:          models.OrderStatusPending,
			Message:         &msg,
		}); err != nil {
			return fmt.Errorf("failed to record status history: %w", err)
		}

		orderID = po.ID
		return nil
	})
	if err != nil {
		// A concurrent request with the same key won the insert.
		if errors.Is(err, store.ErrConflict) {
			if winner, lerr := s.repo.GetPurchaseOrderByIdempotencyKey(ctx, req.IdempotencyKey); lerr == nil && winner != nil {
				return s.GetPurchaseOrder(ctx, winner.ID)
			}
		}
		return nil, util.RecordError(span, err)
	}

	util.PurchaseOrdersCreatedTotal.Inc()
	s.logger.Info("Purchase order created",
		zap.Int64("order_id", orderID),
		zap.Int64("supplier_id", req.SupplierID),
		zap.Int("items", len(req.Items)))

	return s.GetPurchaseOrder(ctx, orderID)
}

// GetPurchaseOrder retrieves an order with items and history
func (s *PurchaseOrderService) GetPurchaseOrder(ctx context.Context, orderID int64) (*PurchaseOrderDetail, error) {
	return loadOrderDetail(ctx, s.repo, orderID)
}

func loadOrderDetail(ctx context.Context, repo store.Repository, orderID int64) (*PurchaseOrderDetail, error) {
	po, err := repo.GetPurchaseOrder(ctx, orderID)
	if err != nil {
		return nil, fmt.Errorf("purchase order %d: %w", orderID, err)
	}
	items, err := repo.ListOrderItems(ctx, orderID)
	if err != nil {
		return nil, err
	}
	history, err := repo.ListStatusHistory(ctx, orderID)
	if err != nil {
		return nil, err
	}
	return &PurchaseOrderDetail{PurchaseOrder: *po, Items: items, History: history}, nil
}

// ListPurchaseOrders lists orders, newest first. supplierID 0 lists all suppliers.
func (s *PurchaseOrderService) ListPurchaseOrders(ctx context.Context, supplierID int64) ([]models.PurchaseOrder, error) {
	return s.repo.ListPurchaseOrders(ctx, supplierID)
}

// DeletePurchaseOrder removes an order that never moved stock
func (s *PurchaseOrderService) DeletePurchaseOrder(ctx context.Context, orderID int64) error {
	ctx, span := util.StartSpan(ctx, "PurchaseOrderService.DeletePurchaseOrder", attribute.Int64("order_id", orderID))
	defer span.End()

	err := s.repo.WithTx(ctx, func(tx store.Repository) error {
		po, err := tx.GetPurchaseOrderForUpdate(ctx, orderID)
		if err != nil {
			return fmt.Errorf("purchase order %d: %w", orderID, err)
		}
		if po.Status != models.OrderStatusPending && po.Status != models.OrderStatusCancelled {
			return fmt.Errorf("%w: only pending or cancelled orders can be deleted, order is %s",
				ErrInvalidTransition, po.Status)
		}
		return tx.DeletePurchaseOrder(ctx, orderID)
	})
	if err != nil {
		return util.RecordError(span, err)
	}

	s.logger.Info("Purchase order deleted", zap.Int64("order_id", orderID))
	return nil
}

// SetStatusRequest moves an order to a new status. ExpiryDate is the default
// expiry for batches created on delivery; ItemExpiryDates overrides it per order item id.
type SetStatusRequest struct {
	Status          models.OrderStatus `json:"status" binding:"required,order_status"`
	Message         *string            `json:"message,omitempty" binding:"omitempty,max=100"`
	ExpiryDate      string             `json:"expiry_date,omitempty" binding:"omitempty,datetime=2006-01-02"`
	ItemExpiryDates map[int64]string   `json:"item_expiry_dates,omitempty" binding:"omitempty,dive,datetime=2006-01-02"`
}

// TransitionResult is the order after a status change plus any fulfillment notes
type TransitionResult struct {
	Order    *PurchaseOrderDetail `json:"order"`
	Warnings []string             `json:"warnings"`
	Batches  []models.Batch       `json:"batches,omitempty"`
}

// deliveryPlan carries the expiry dates for a delivery
type deliveryPlan struct {
	defaultExpiry time.Time
	itemExpiry    map[int64]time.Time
}

func (p deliveryPlan) expiryFor(itemID int64) (time.Time, bool) {
	if t, ok := p.itemExpiry[itemID]; ok {
		return t, true
	}
	return p.defaultExpiry, !p.defaultExpiry.IsZero()
}

// checkItems rejects expiry dates keyed by an item the order does not have
func (p deliveryPlan) checkItems(orderID int64, items []models.OrderItem) error {
	known := make(map[int64]bool, len(items))
	for _, it := range items {
		known[it.ID] = true
	}
	for itemID := range p.itemExpiry {
		if !known[itemID] {
			return invalidInput("item %d does not belong to purchase order %d", itemID, orderID)
		}
	}
	return nil
}

// SetStatus applies a status transition and its side effects in one transaction.
// Re-setting the current status only appends a history row.
func (s *PurchaseOrderService) SetStatus(ctx context.Context, orderID int64, req *SetStatusRequest) (*TransitionResult, error) {
	ctx, span := util.StartSpan(ctx, "PurchaseOrderService.SetStatus",
		attribute.Int64("order_id", orderID),
		attribute.String("status", req.Status.String()))
	defer span.End()

	if !req.Status.IsValid() {
		util.PurchaseOrderTransitionsFailed.WithLabelValues("invalid_input").Inc()
		return nil, invalidInput("unknown status %q", req.Status)
	}

	plan, err := parseDeliveryPlan(req)
	if err != nil {
		util.PurchaseOrderTransitionsFailed.WithLabelValues("invalid_input").Inc()
		return nil, err
	}

	release, err := s.lock(ctx, orderID)
	if err != nil {
		return nil, err
	}
	defer release(ctx)

	var (
		from     models.OrderStatus
		po       *models.PurchaseOrder
		warnings = []string{}
		received map[int64][]models.Batch
	)
	err = s.repo.WithTx(ctx, func(tx store.Repository) error {
		var err error
		po, err = tx.GetPurchaseOrderForUpdate(ctx, orderID)
		if err != nil {
			return fmt.Errorf("purchase order %d: %w", orderID, err)
		}
		from = po.Status

		if !from.CanTransitionTo(req.Status) {
			return &InvalidTransitionError{From: from, To: req.Status}
		}
		// paid carries a receipt and payment date, only MarkPaid sets them
		if req.Status == models.OrderStatusPaid && from != models.OrderStatusPaid {
			return &InvalidTransitionError{
				From: from,
				To:   req.Status,
				Hint: "upload a payment receipt to mark the order paid",
			}
		}

		if from != req.Status {
			items, err := tx.ListOrderItems(ctx, orderID)
			if err != nil {
				return err
			}

			switch req.Status {
			case models.OrderStatusProcessing:
				if err := reserveSupplierStock(ctx, tx, items); err != nil {
					return err
				}
			case models.OrderStatusDelivered:
				if err := plan.checkItems(orderID, items); err != nil {
					return err
				}
				received, warnings, err = receiveDelivery(ctx, tx, items, plan)
				if err != nil {
					return err
				}
			case models.OrderStatusCancelled:
				if from == models.OrderStatusProcessing {
					if err := releaseSupplierStock(ctx, tx, items); err != nil {
						return err
					}
				}
			}

			if err := tx.UpdatePurchaseOrderStatus(ctx, orderID, req.Status); err != nil {
				return fmt.Errorf("failed to update status: %w", err)
			}
		}

		return tx.AddStatusHistory(ctx, &models.StatusHistory{
			PurchaseOrderID: orderID,
			Status:          req.Status,
			Message:         req.Message,
		})
	})
	if err != nil {
		s.recordTransitionFailure(err)
		span.RecordError(err)
		return nil, err
	}

	result := &TransitionResult{Warnings: warnings}
	if from != req.Status {
		s.afterTransition(ctx, po, from, req.Status, req.Message)
		result.Batches = s.afterDelivery(ctx, orderID, received)
	}

	result.Order, err = s.GetPurchaseOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}
	return result, nil
}

// MarkPaid records the payment receipt and moves a delivered order to paid
func (s *PurchaseOrderService) MarkPaid(ctx context.Context, orderID int64, receiptURL string) (*PurchaseOrderDetail, error) {
	ctx, span := util.StartSpan(ctx, "PurchaseOrderService.MarkPaid", attribute.Int64("order_id", orderID))
	defer span.End()

	if receiptURL == "" {
		return nil, invalidInput("a payment receipt is required")
	}

	release, err := s.lock(ctx, orderID)
	if err != nil {
		return nil, err
	}
	defer release(ctx)

	var (
		from models.OrderStatus
		po   *models.PurchaseOrder
	)
	err = s.repo.WithTx(ctx, func(tx store.Repository) error {
		var err error
		po, err = tx.GetPurchaseOrderForUpdate(ctx, orderID)
		if err != nil {
			return fmt.Errorf("purchase order %d: %w", orderID, err)
		}
		from = po.Status
		if !from.CanTransitionTo(models.OrderStatusPaid) {
			return &InvalidTransitionError{From: from, To: models.OrderStatusPaid}
		}

		if err := tx.SetPurchaseOrderPayment(ctx, orderID, receiptURL, time.Now().UTC()); err != nil {
			return err
		}
		if from != models.OrderStatusPaid {
			if err := tx.UpdatePurchaseOrderStatus(ctx, orderID, models.OrderStatusPaid); err != nil {
				return err
			}
		}

		msg := "Payment receipt uploaded"
		return tx.AddStatusHistory(ctx, &models.StatusHistory{
			PurchaseOrderID: orderID,
			Status:          models.OrderStatusPaid,
			Message:         &msg,
		})
	})
	if err != nil {
		s.recordTransitionFailure(err)
		return nil, util.RecordError(span, err)
	}

	if from != models.OrderStatusPaid {
		msg := "Payment receipt uploaded"
		s.afterTransition(ctx, po, from, models.OrderStatusPaid, &msg)
	}
	return s.GetPurchaseOrder(ctx, orderID)
}

// lock takes the per-order transition lock. A lock backend failure is logged and
// ignored since the row lock inside the transaction still serializes writers.
func (s *PurchaseOrderService) lock(ctx context.Context, orderID int64) (func(context.Context), error) {
	release, ok, err := s.locker.TryLock(ctx, fmt.Sprintf("purchase-order:%d:transition", orderID), s.lockTTL)
	if err != nil {
		s.logger.Warn("Transition lock unavailable, relying on row lock",
			zap.Int64("order_id", orderID),
			zap.Error(err))
		return func(context.Context) {}, nil
	}
	if !ok {
		util.PurchaseOrderTransitionsFailed.WithLabelValues("busy").Inc()
		return nil, fmt.Errorf("%w: purchase order %d is being updated", ErrBusy, orderID)
	}
	return release, nil
}

func (s *PurchaseOrderService) recordTransitionFailure(err error) {
	reason := "error"
	switch {
	case errors.Is(err, ErrInvalidTransition):
		reason = "invalid_transition"
	case errors.Is(err, ErrInsufficientSupplierStock):
		reason = "insufficient_supplier_stock"
	case errors.Is(err, ErrInvalidInput):
		reason = "invalid_input"
	case errors.Is(err, store.ErrNotFound):
		reason = "not_found"
	}
	util.PurchaseOrderTransitionsFailed.WithLabelValues(reason).Inc()
}

func (s *PurchaseOrderService) afterTransition(ctx context.Context, po *models.PurchaseOrder, from, to models.OrderStatus, message *string) {
	util.PurchaseOrderTransitionsTotal.WithLabelValues(from.String(), to.String()).Inc()
	s.logger.Info("Purchase order status changed",
		zap.Int64("order_id", po.ID),
		zap.String("from", from.String()),
		zap.String("to", to.String()))

	event := &models.OrderStatusChangedEvent{
		BaseEvent:       newBaseEvent(models.EventTypeOrderStatusChanged),
		PurchaseOrderID: po.ID,
		SupplierID:      po.SupplierID,
		From:            from,
		To:              to,
	}
	if message != nil {
		event.Message = *message
	}
	if err := s.events.PublishOrderStatusChanged(ctx, event); err != nil {
		s.logger.Error("Failed to publish PurchaseOrderStatusChanged event", zap.Error(err))
	}
}

// afterDelivery refreshes stock for every product that received batches
func (s *PurchaseOrderService) afterDelivery(ctx context.Context, orderID int64, received map[int64][]models.Batch) []models.Batch {
	if len(received) == 0 {
		return nil
	}

	productIDs := make([]int64, 0, len(received))
	for id := range received {
		productIDs = append(productIDs, id)
	}
	sort.Slice(productIDs, func(i, j int) bool { return productIDs[i] < productIDs[j] })

	var all []models.Batch
	for _, productID := range productIDs {
		batches := received[productID]
		moves := make([]models.BatchMovement, 0, len(batches))
		units := 0
		for _, b := range batches {
			moves = append(moves, models.BatchMovement{BatchID: b.ID, Quantity: b.Quantity})
			units += b.Quantity
		}
		all = append(all, batches...)
		util.UnitsRestockedTotal.WithLabelValues("purchase_order").Add(float64(units))

		if s.inventory == nil {
			continue
		}
		s.inventory.publishRestock(ctx, productID, orderID, moves)
		s.inventory.invalidateStock(ctx, productID)
	}
	return all
}

func parseDeliveryPlan(req *SetStatusRequest) (deliveryPlan, error) {
	var plan deliveryPlan
	if req.Status != models.OrderStatusDelivered {
		return plan, nil
	}
	if req.ExpiryDate != "" {
		d, err := parseDate(req.ExpiryDate)
		if err != nil {
			return plan, err
		}
		plan.defaultExpiry = d
	}
	plan.itemExpiry = make(map[int64]time.Time, len(req.ItemExpiryDates))
	for itemID, raw := range req.ItemExpiryDates {
		d, err := parseDate(raw)
		if err != nil {
			return plan, err
		}
		plan.itemExpiry[itemID] = d
	}
	return plan, nil
}

// reserveSupplierStock checks every item before touching any supplier quantity,
// then decrements each one. Rows are locked in id order.
func reserveSupplierStock(ctx context.Context, tx store.Repository, items []models.OrderItem) error {
	needed := make(map[int64]int, len(items))
	firstItem := make(map[int64]int64, len(items))
	for _, it := range items {
		needed[it.SupplierProductID] += it.Quantity
		if _, ok := firstItem[it.SupplierProductID]; !ok {
			firstItem[it.SupplierProductID] = it.ID
		}
	}

	ids := make([]int64, 0, len(needed))
	for id := range needed {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	for _, id := range ids {
		sp, err := tx.GetSupplierProductForUpdate(ctx, id)
		if err != nil {
			return fmt.Errorf("supplier product %d: %w", id, err)
		}
		if sp.QuantityAvailable < needed[id] {
			return &InsufficientSupplierStockError{
				ItemID:            firstItem[id],
				SupplierProductID: id,
				Name:              sp.Name,
				Requested:         needed[id],
				Available:         sp.QuantityAvailable,
			}
		}
	}

	for _, id := range ids {
		if err := tx.AdjustSupplierStock(ctx, id, -needed[id]); err != nil {
			if errors.Is(err, store.ErrInsufficientStock) {
				return &InsufficientSupplierStockError{ItemID: firstItem[id], SupplierProductID: id, Requested: needed[id]}
			}
			return err
		}
	}
	return nil
}

func releaseSupplierStock(ctx context.Context, tx store.Repository, items []models.OrderItem) error {
	for _, it := range items {
		if err := tx.AdjustSupplierStock(ctx, it.SupplierProductID, it.Quantity); err != nil {
			return fmt.Errorf("failed to release supplier stock for item %d: %w", it.ID, err)
		}
	}
	return nil
}

// receiveDelivery turns mapped items into batches with restock entries. Unmapped
// items are skipped and reported as warnings.
func receiveDelivery(ctx context.Context, tx store.Repository, items []models.OrderItem, plan deliveryPlan) (map[int64][]models.Batch, []string, error) {
	received := make(map[int64][]models.Batch)
	warnings := []string{}
	today := models.DateOnly(time.Now())

	for _, it := range items {
		mapping, err := tx.GetMappingBySupplierProduct(ctx, it.SupplierProductID)
		if errors.Is(err, store.ErrNotFound) {
			warnings = append(warnings, fmt.Sprintf(
				"item %d: supplier product %d is not mapped to a product, %d units not added to inventory",
				it.ID, it.SupplierProductID, it.Quantity))
			util.FulfillmentWarningsTotal.Inc()
			continue
		}
		if err != nil {
			return nil, nil, err
		}

		expiry, ok := plan.expiryFor(it.ID)
		if !ok {
			return nil, nil, invalidInput("expiry date required for item %d", it.ID)
		}

		batch := models.Batch{
			ProductID:        mapping.ProductID,
			Quantity:         it.Quantity,
			ReceivedQuantity: it.Quantity,
			ExpiryDate:       expiry,
			ReceivedDate:     today,
		}
		if err := tx.CreateBatch(ctx, &batch); err != nil {
			return nil, nil, fmt.Errorf("failed to create batch: %w", err)
		}

		batchID := batch.ID
		if err := tx.CreateInventoryEntry(ctx, &models.InventoryEntry{
			ProductID:       mapping.ProductID,
			ChangeAmount:    it.Quantity,
			TransactionType: models.TransactionRestock,
			BatchID:         &batchID,
		}); err != nil {
			return nil, nil, fmt.Errorf("failed to write ledger entry: %w", err)
		}

		received[mapping.ProductID] = append(received[mapping.ProductID], batch)
	}
	return received, warnings, nil
}
