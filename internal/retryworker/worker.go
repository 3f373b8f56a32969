package retryworker

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
	"gorm.io/datatypes"

	"gitlab.com/proptechlab/api/lead-intake-service/internal/config"
	"gitlab.com/proptechlab/api/lead-intake-service/internal/model"
	"gitlab.com/proptechlab/api/lead-intake-service/internal/observer"
	"gitlab.com/proptechlab/api/lead-intake-service/internal/storage"
	"gitlab.com/proptechlab/api/lead-intake-service/pkg/logger"
	"gitlab.com/proptechlab/api/lead-intake-service/pkg/utils"
)

const defaultBatchLimit = 50

// Deliverer runs a single delivery attempt against one named CDP system.
type Deliverer interface {
	DeliverTo(ctx context.Context, systemName string, lead *model.Lead) error
}

// Worker periodically drains due failed-delivery records and reattempts
// them. Each record carries its own retry budget; once spent, the record is
// marked failed for good and an exhaustion event is logged.
type Worker struct {
	schedule   string
	batchLimit int
	baseDelay  time.Duration
	maxDelay   time.Duration
	repo       storage.Repository
	deliverer  Deliverer
	cron       *cron.Cron
	logger     *zap.Logger
}

// NewWorker creates the retry scheduler. It does not start the cron loop.
func NewWorker(retryCfg config.RetryConfig, cdpCfg config.CDPConfig, repo storage.Repository, deliverer Deliverer, log *zap.Logger) *Worker {
	batchLimit := retryCfg.BatchLimit
	if batchLimit < 1 {
		batchLimit = defaultBatchLimit
	}
	return &Worker{
		schedule:   retryCfg.Schedule,
		batchLimit: batchLimit,
		baseDelay:  cdpCfg.RetryBaseDelay,
		maxDelay:   cdpCfg.RetryMaxDelay,
		repo:       repo,
		deliverer:  deliverer,
		cron:       cron.New(),
		logger:     log.Named("retry_worker"),
	}
}

// Start registers the sweep on the cron schedule and starts the scheduler.
func (w *Worker) Start() error {
	_, err := w.cron.AddFunc(w.schedule, func() {
		defer utils.RecoverWithLog(context.Background(), "retry sweep")
		w.Sweep(context.Background())
	})
	if err != nil {
		return fmt.Errorf("invalid retry schedule %q: %w", w.schedule, err)
	}
	w.cron.Start()
	w.logger.Info("Retry scheduler started", zap.String("schedule", w.schedule))
	return nil
}

// Stop halts the scheduler and waits for a running sweep to complete.
func (w *Worker) Stop() {
	ctx := w.cron.Stop()
	<-ctx.Done()
	w.logger.Info("Retry scheduler stopped")
}

// Sweep drains one batch of due failure records. A bad record never blocks
// the rest of the batch.
func (w *Worker) Sweep(ctx context.Context) {
	observer.IncRetryRun()
	ctx = logger.WithLogger(ctx, w.logger)

	records, err := w.repo.GetPendingDeliveries(ctx, w.batchLimit)
	if err != nil {
		w.logger.Error("Failed to fetch due failed deliveries", zap.Error(err))
		return
	}
	observer.ObserveRetryBatchSize(len(records))
	if len(records) == 0 {
		return
	}

	w.logger.Info("Retrying failed deliveries", zap.Int("count", len(records)))
	for i := range records {
		w.processRecord(ctx, &records[i])
	}
}

// processRecord reattempts one failed delivery and advances its state.
func (w *Worker) processRecord(ctx context.Context, record *model.FailedDelivery) {
	log := w.logger.With(
		zap.Uint("failed_delivery_id", record.ID),
		zap.Uint("lead_id", record.LeadID),
		zap.String("cdp_system", record.CDPSystemName),
		zap.Int("retry_count", record.RetryCount),
	)

	if !record.CanRetry() {
		w.markExhausted(ctx, record, "retry budget exhausted")
		return
	}

	if record.Lead == nil {
		// Lead row is gone; nothing left to deliver.
		log.Warn("Failed delivery references a deleted lead, abandoning")
		w.markExhausted(ctx, record, "lead no longer exists")
		return
	}

	observer.IncDeliveryRetry(record.CDPSystemName)
	err := w.deliverer.DeliverTo(ctx, record.CDPSystemName, record.Lead)
	if err == nil {
		w.markResolved(ctx, record)
		return
	}

	log.Warn("Retry attempt failed", zap.Error(err))
	attempt := record.RetryCount + 1

	event := w.newDeliveryEvent(model.EventDeliveryRetried, record, map[string]interface{}{
		"cdp_system":  record.CDPSystemName,
		"retry_count": attempt,
		"error":       err.Error(),
	})
	event.ErrorMessage = err.Error()
	if logErr := w.repo.AppendEvent(ctx, event); logErr != nil {
		log.Error("Failed to log retry event", zap.Error(logErr))
	}

	if attempt >= record.MaxRetries {
		record.RetryCount = attempt
		w.markExhausted(ctx, record, err.Error())
		return
	}

	nextRetryAt := utils.Now().Add(w.backoffDelay(attempt))
	if updErr := w.repo.UpdateDeliveryRetryInfo(ctx, record.ID, attempt, &nextRetryAt, model.DeliveryStatusRetrying); updErr != nil {
		log.Error("Failed to update retry info", zap.Error(updErr))
	}
}

// markResolved closes a record after a successful retry.
func (w *Worker) markResolved(ctx context.Context, record *model.FailedDelivery) {
	log := w.logger.With(
		zap.Uint("failed_delivery_id", record.ID),
		zap.String("cdp_system", record.CDPSystemName),
	)

	if err := w.repo.MarkDeliveryResolved(ctx, record.ID); err != nil {
		log.Error("Failed to mark delivery resolved", zap.Error(err))
		return
	}
	observer.IncDeliveryResolved(record.CDPSystemName)

	event := w.newDeliveryEvent(model.EventDeliverySuccess, record, map[string]interface{}{
		"cdp_system":  record.CDPSystemName,
		"retry_count": record.RetryCount + 1,
		"recovered":   true,
	})
	if err := w.repo.AppendEvent(ctx, event); err != nil {
		log.Error("Failed to log recovery event", zap.Error(err))
	}

	log.Info("Failed delivery resolved by retry")
}

// markExhausted closes a record whose retry budget is spent.
func (w *Worker) markExhausted(ctx context.Context, record *model.FailedDelivery, reason string) {
	log := w.logger.With(
		zap.Uint("failed_delivery_id", record.ID),
		zap.String("cdp_system", record.CDPSystemName),
	)

	if err := w.repo.MarkDeliveryFailed(ctx, record.ID, record.RetryCount); err != nil {
		log.Error("Failed to mark delivery exhausted", zap.Error(err))
		return
	}
	observer.IncDeliveryExhausted(record.CDPSystemName)

	event := w.newDeliveryEvent(model.EventDeliveryExhausted, record, map[string]interface{}{
		"cdp_system":  record.CDPSystemName,
		"retry_count": record.RetryCount,
		"reason":      reason,
	})
	event.ErrorMessage = reason
	if err := w.repo.AppendEvent(ctx, event); err != nil {
		log.Error("Failed to log exhaustion event", zap.Error(err))
	}

	log.Warn("Failed delivery abandoned after exhausting retries", zap.String("reason", reason))
}

func (w *Worker) newDeliveryEvent(eventType string, record *model.FailedDelivery, details map[string]interface{}) *model.Event {
	return &model.Event{
		EventType:  eventType,
		EntityType: model.EntityTypeLead,
		EntityID:   record.LeadID,
		Details:    datatypes.JSON(utils.MustMarshalJSON(details)),
	}
}

// backoffDelay doubles the base delay per attempt, capped at maxDelay.
func (w *Worker) backoffDelay(retryCount int) time.Duration {
	baseDelay := w.baseDelay
	if baseDelay <= 0 {
		baseDelay = time.Minute
	}
	maxDelay := w.maxDelay
	if maxDelay <= 0 {
		maxDelay = 15 * time.Minute
	}

	if retryCount <= 0 {
		return baseDelay
	}

	delay := baseDelay * time.Duration(1<<uint(retryCount-1))
	if delay > maxDelay {
		delay = maxDelay
	}
	return delay
}
