package worker

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
)

// NotificationDeliverer drains queued transition notifications.
type NotificationDeliverer interface {
	DeliverPending(ctx context.Context, limit int) (int, error)
}

// NotificationWorkerConfig holds configuration for the notification worker
type NotificationWorkerConfig struct {
	PollInterval    time.Duration
	BatchSize       int
	DeliveryTimeout time.Duration
}

// DefaultNotificationWorkerConfig returns default configuration
func DefaultNotificationWorkerConfig() NotificationWorkerConfig {
	return NotificationWorkerConfig{
		PollInterval:    15 * time.Second,
		BatchSize:       20,
		DeliveryTimeout: 30 * time.Second,
	}
}

// NotificationWorker retries queued notification deliveries on a timer.
// Rows are written inside the decision transaction and normally delivered
// right after commit; this worker picks up whatever that path missed.
type NotificationWorker struct {
	config    NotificationWorkerConfig
	deliverer NotificationDeliverer
	logger    *zap.Logger

	mu             sync.RWMutex
	ctx            context.Context
	cancel         context.CancelFunc
	isRunning      bool
	deliveredCount int
	lastError      error
}

// NewNotificationWorker creates a new notification worker
func NewNotificationWorker(
	config NotificationWorkerConfig,
	deliverer NotificationDeliverer,
	logger *zap.Logger,
) *NotificationWorker {
	return &NotificationWorker{
		config:    config,
		deliverer: deliverer,
		logger:    logger,
	}
}

// Start begins the worker polling loop
func (w *NotificationWorker) Start(ctx context.Context) error {
	w.mu.Lock()
	if w.isRunning {
		w.mu.Unlock()
		return fmt.Errorf("notification worker already running")
	}

	w.ctx, w.cancel = context.WithCancel(ctx)
	w.isRunning = true
	w.mu.Unlock()

	w.logger.Info("NotificationWorker started",
		zap.Duration("poll_interval", w.config.PollInterval),
		zap.Int("batch_size", w.config.BatchSize))

	go w.pollLoop()

	return nil
}

// Stop gracefully terminates the worker
func (w *NotificationWorker) Stop() error {
	w.mu.Lock()
	if !w.isRunning {
		w.mu.Unlock()
		return nil
	}

	w.isRunning = false
	cancel := w.cancel
	delivered := w.deliveredCount
	w.mu.Unlock()

	if cancel != nil {
		cancel()
	}

	w.logger.Info("NotificationWorker stopped",
		zap.Int("delivered_count", delivered))

	return nil
}

// Name returns the worker name for identification
func (w *NotificationWorker) Name() string {
	return "NotificationWorker"
}

// pollLoop runs the main polling loop in background
func (w *NotificationWorker) pollLoop() {
	ticker := time.NewTicker(w.config.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-w.ctx.Done():
			w.logger.Debug("Poll loop context cancelled")
			return

		case <-ticker.C:
			if err := w.drainPending(); err != nil {
				w.mu.Lock()
				w.lastError = err
				w.mu.Unlock()
				w.logger.Error("Failed to deliver pending notifications", zap.Error(err))
			}
		}
	}
}

// drainPending delivers one batch of queued notifications
func (w *NotificationWorker) drainPending() error {
	ctx, cancel := context.WithTimeout(w.ctx, w.config.DeliveryTimeout)
	defer cancel()

	sent, err := w.deliverer.DeliverPending(ctx, w.config.BatchSize)
	if err != nil {
		return err
	}

	if sent > 0 {
		w.mu.Lock()
		w.deliveredCount += sent
		w.mu.Unlock()
		w.logger.Info("Delivered queued notifications", zap.Int("count", sent))
	}
	return nil
}

// Verify interface compliance
var _ Worker = (*NotificationWorker)(nil)
