package outbox

import (
	"context"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/oscarfrank/saas-template-sub007/internal/model"
	"github.com/oscarfrank/saas-template-sub007/prometheus"
)

// Handler processes one outbox event. Delivery is at-least-once: a handler
// may see the same event again after a crash between handling and marking,
// so handlers must tolerate redelivery.
type Handler func(ctx context.Context, event *model.OutboxEvent) error

// Dispatcher polls the outbox table and delivers pending events to their
// registered handlers.
type Dispatcher struct {
	db          *gorm.DB
	log         *zap.Logger
	handlers    map[string]Handler
	interval    time.Duration
	batchSize   int
	maxAttempts int
}

// NewDispatcher creates a dispatcher with no handlers registered
func NewDispatcher(db *gorm.DB, log *zap.Logger, interval time.Duration, batchSize, maxAttempts int) *Dispatcher {
	if interval <= 0 {
		interval = 2 * time.Second
	}
	if batchSize <= 0 {
		batchSize = 50
	}
	if maxAttempts <= 0 {
		maxAttempts = 10
	}
	return &Dispatcher{
		db:          db,
		log:         log,
		handlers:    make(map[string]Handler),
		interval:    interval,
		batchSize:   batchSize,
		maxAttempts: maxAttempts,
	}
}

// Register binds a handler to an event type. Later registrations for the
// same type replace earlier ones.
func (d *Dispatcher) Register(eventType string, h Handler) {
	d.handlers[eventType] = h
}

// Start runs the poll loop until the context is canceled
func (d *Dispatcher) Start(ctx context.Context) {
	go func() {
		ticker := time.NewTicker(d.interval)
		defer ticker.Stop()

		d.log.Info("Outbox dispatcher started",
			zap.Duration("interval", d.interval),
			zap.Int("batch_size", d.batchSize))

		for {
			select {
			case <-ctx.Done():
				d.log.Info("Outbox dispatcher stopped")
				return
			case <-ticker.C:
				if err := d.RunOnce(ctx); err != nil {
					d.log.Error("Outbox poll failed", zap.Error(err))
				}
			}
		}
	}()
}

// RunOnce processes a single batch of pending events. Exposed so tests can
// drive the dispatcher without the ticker.
func (d *Dispatcher) RunOnce(ctx context.Context) error {
	var events []model.OutboxEvent
	result := d.db.
		Where("processed_at IS NULL AND attempts < ?", d.maxAttempts).
		Order("id").
		Limit(d.batchSize).
		Find(&events)
	if result.Error != nil {
		return result.Error
	}

	for i := range events {
		d.deliver(ctx, &events[i])
	}

	var pending int64
	if err := d.db.Model(&model.OutboxEvent{}).Where("processed_at IS NULL").Count(&pending).Error; err == nil {
		prometheus.OutboxPendingGauge.Set(float64(pending))
	}

	return nil
}

func (d *Dispatcher) deliver(ctx context.Context, event *model.OutboxEvent) {
	handler, ok := d.handlers[event.Type]
	if !ok {
		// No handler is a wiring bug; count the attempt so the event
		// eventually stops being retried.
		d.fail(event, "no handler registered for event type")
		prometheus.RecordOutboxEvent(event.Type, "failed")
		return
	}

	if err := handler(ctx, event); err != nil {
		d.log.Warn("Outbox handler failed, will retry",
			zap.String("event_id", event.EventID),
			zap.String("type", event.Type),
			zap.Int("attempts", event.Attempts+1),
			zap.Error(err))
		d.fail(event, err.Error())
		prometheus.RecordOutboxEvent(event.Type, "failed")
		return
	}

	now := time.Now()
	update := d.db.Model(event).Updates(map[string]interface{}{
		"processed_at": now,
		"attempts":     gorm.Expr("attempts + 1"),
		"last_error":   "",
	})
	if update.Error != nil {
		// The handler ran but the mark didn't stick; the event will be
		// redelivered, which handlers are required to tolerate.
		d.log.Error("Failed to mark outbox event processed",
			zap.String("event_id", event.EventID),
			zap.Error(update.Error))
		return
	}
	prometheus.RecordOutboxEvent(event.Type, "processed")
}

func (d *Dispatcher) fail(event *model.OutboxEvent, reason string) {
	// Increment in SQL so concurrent dispatchers never lose an attempt.
	update := d.db.Model(event).Updates(map[string]interface{}{
		"attempts":   gorm.Expr("attempts + 1"),
		"last_error": reason,
	})
	if update.Error != nil {
		d.log.Error("Failed to record outbox attempt",
			zap.String("event_id", event.EventID),
			zap.Error(update.Error))
	}
}
