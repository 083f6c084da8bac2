package broker

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"inventory-service/internal/models"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type capturedEvent struct {
	key   string
	value []byte
}

type captureWriter struct {
	events []capturedEvent
}

func (w *captureWriter) PublishEvent(_ context.Context, key string, event interface{}) error {
	raw, err := json.Marshal(event)
	if err != nil {
		return err
	}
	w.events = append(w.events, capturedEvent{key: key, value: raw})
	return nil
}

func TestPublisherKeysByAggregate(t *testing.T) {
	w := &captureWriter{}
	ep := &EventPublisher{producer: w}
	ctx := context.Background()

	require.NoError(t, ep.PublishSaleRecorded(ctx, &models.SaleRecordedEvent{ProductID: 7}))
	require.NoError(t, ep.PublishOrderStatusChanged(ctx, &models.OrderStatusChangedEvent{PurchaseOrderID: 3}))

	require.Len(t, w.events, 2)
	assert.Equal(t, "product-7", w.events[0].key)
	assert.Equal(t, "purchase-order-3", w.events[1].key)
}

func TestHandleMessageRoutesByType(t *testing.T) {
	w := &captureWriter{}
	ep := &EventPublisher{producer: w}
	ctx := context.Background()

	require.NoError(t, ep.PublishLowStock(ctx, &models.LowStockEvent{
		BaseEvent: models.BaseEvent{EventID: "e1", EventType: models.EventTypeLowStock, Timestamp: time.Now()},
		ProductID: 9,
		Remaining: 2,
		Threshold: 5,
	}))
	require.NoError(t, ep.PublishOrderStatusChanged(ctx, &models.OrderStatusChangedEvent{
		BaseEvent:       models.BaseEvent{EventID: "e2", EventType: models.EventTypeOrderStatusChanged},
		PurchaseOrderID: 4,
		From:            models.OrderStatusPending,
		To:              models.OrderStatusProcessing,
	}))

	var (
		lowStock *models.LowStockEvent
		changed  *models.OrderStatusChangedEvent
	)
	h := NewEventHandler()
	h.OnLowStock(func(_ context.Context, e *models.LowStockEvent) error {
		lowStock = e
		return nil
	})
	h.OnOrderStatusChanged(func(_ context.Context, e *models.OrderStatusChangedEvent) error {
		changed = e
		return nil
	})

	for _, ev := range w.events {
		require.NoError(t, h.HandleMessage(ctx, kafka.Message{Key: []byte(ev.key), Value: ev.value}))
	}

	require.NotNil(t, lowStock)
	assert.Equal(t, int64(9), lowStock.ProductID)
	assert.Equal(t, 2, lowStock.Remaining)
	require.NotNil(t, changed)
	assert.Equal(t, models.OrderStatusProcessing, changed.To)
}

func TestHandleMessageIgnoresUnknownAndUnregistered(t *testing.T) {
	h := NewEventHandler()
	ctx := context.Background()

	assert.NoError(t, h.HandleMessage(ctx, kafka.Message{Value: []byte(`{"event_type":"SOMETHING_ELSE"}`)}))
	assert.NoError(t, h.HandleMessage(ctx, kafka.Message{Value: []byte(`{"event_type":"SALE_RECORDED","sale_id":1}`)}))
	assert.Error(t, h.HandleMessage(ctx, kafka.Message{Value: []byte(`not json`)}))
}
