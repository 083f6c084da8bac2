package service

import (
	"context"
	"time"

	"inventory-service/internal/models"
	"inventory-service/internal/util"

	"go.uber.org/zap"
)

// StockCache holds the remaining stock per product. GetStock reports found=false on a miss.
type StockCache interface {
	GetStock(ctx context.Context, productID int64) (qty int, found bool, err error)
	SetStock(ctx context.Context, productID int64, qty int) error
	DeleteStock(ctx context.Context, productID int64) error
}

// IdempotencyStore remembers request keys for a while.
type IdempotencyStore interface {
	// ReserveKey returns false when key was already reserved.
	ReserveKey(ctx context.Context, key string, ttl time.Duration) (bool, error)
	ReleaseKey(ctx context.Context, key string) error
}

// Locker hands out short-lived exclusive locks. ok is false when another holder has the key.
type Locker interface {
	TryLock(ctx context.Context, key string, ttl time.Duration) (release func(context.Context), ok bool, err error)
}

// EventPublisher publishes domain events after their transaction committed.
type EventPublisher interface {
	PublishSaleRecorded(ctx context.Context, event *models.SaleRecordedEvent) error
	PublishStockRestocked(ctx context.Context, event *models.StockRestockedEvent) error
	PublishStockAdjusted(ctx context.Context, event *models.StockAdjustedEvent) error
	PublishLowStock(ctx context.Context, event *models.LowStockEvent) error
	PublishOrderStatusChanged(ctx context.Context, event *models.OrderStatusChangedEvent) error
}

// Mailer delivers password reset tokens.
type Mailer interface {
	SendPasswordReset(ctx context.Context, email, token string) error
}

type noopCache struct{}

func (noopCache) GetStock(context.Context, int64) (int, bool, error) { return 0, false, nil }
func (noopCache) SetStock(context.Context, int64, int) error        { return nil }
func (noopCache) DeleteStock(context.Context, int64) error          { return nil }

type noopIdempotency struct{}

func (noopIdempotency) ReserveKey(context.Context, string, time.Duration) (bool, error) {
	return true, nil
}
func (noopIdempotency) ReleaseKey(context.Context, string) error { return nil }

type noopLocker struct{}

func (noopLocker) TryLock(context.Context, string, time.Duration) (func(context.Context), bool, error) {
	return func(context.Context) {}, true, nil
}

type noopPublisher struct{}

func (noopPublisher) PublishSaleRecorded(context.Context, *models.SaleRecordedEvent) error { return nil }
func (noopPublisher) PublishStockRestocked(context.Context, *models.StockRestockedEvent) error {
	return nil
}
func (noopPublisher) PublishStockAdjusted(context.Context, *models.StockAdjustedEvent) error {
	return nil
}
func (noopPublisher) PublishLowStock(context.Context, *models.LowStockEvent) error { return nil }
func (noopPublisher) PublishOrderStatusChanged(context.Context, *models.OrderStatusChangedEvent) error {
	return nil
}

// LogMailer stands in for mail delivery. The token itself is only logged at debug level.
type LogMailer struct {
	logger *zap.Logger
}

func NewLogMailer() *LogMailer {
	return &LogMailer{logger: util.GetLogger()}
}

func (m *LogMailer) SendPasswordReset(_ context.Context, email, token string) error {
	m.logger.Info("Password reset requested", zap.String("email", email))
	m.logger.Debug("Password reset token issued",
		zap.String("email", email),
		zap.String("reset_token", token))
	return nil
}
