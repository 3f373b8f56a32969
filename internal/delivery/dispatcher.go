package delivery

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/panjf2000/ants/v2"
	"go.uber.org/zap"
	"gorm.io/datatypes"

	"gitlab.com/proptechlab/api/lead-intake-service/internal/apperrors"
	"gitlab.com/proptechlab/api/lead-intake-service/internal/config"
	"gitlab.com/proptechlab/api/lead-intake-service/internal/model"
	"gitlab.com/proptechlab/api/lead-intake-service/internal/observer"
	"gitlab.com/proptechlab/api/lead-intake-service/internal/storage"
	"gitlab.com/proptechlab/api/lead-intake-service/pkg/logger"
	"gitlab.com/proptechlab/api/lead-intake-service/pkg/utils"
)

// Dispatcher fans a persisted lead out to every configured CDP system.
// Failure in one system never blocks the others; each failed attempt is
// logged as an event and captured as a failed-delivery record for the retry
// scheduler.
type Dispatcher struct {
	repo       storage.Repository
	client     CDPClient
	systems    []config.CDPSystemConfig
	maxRetries int
	pool       *ants.Pool
	logger     *zap.Logger
}

// antsLoggerAdapter routes ants pool logging through zap.
type antsLoggerAdapter struct {
	log *zap.Logger
}

func (a *antsLoggerAdapter) Printf(format string, args ...interface{}) {
	a.log.Warn(fmt.Sprintf(format, args...))
}

// NewDispatcher creates a dispatcher with a worker pool sized to the number
// of configured systems.
func NewDispatcher(repo storage.Repository, client CDPClient, cfg config.CDPConfig, log *zap.Logger) (*Dispatcher, error) {
	poolSize := len(cfg.Systems)
	if poolSize < 1 {
		poolSize = 1
	}
	pool, err := ants.NewPool(poolSize,
		ants.WithLogger(&antsLoggerAdapter{log: log.Named("delivery-pool")}),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create delivery worker pool: %w", err)
	}

	return &Dispatcher{
		repo:       repo,
		client:     client,
		systems:    cfg.Systems,
		maxRetries: cfg.MaxRetries,
		pool:       pool,
		logger:     log,
	}, nil
}

// Systems returns the configured CDP system names.
func (d *Dispatcher) Systems() []string {
	names := make([]string, 0, len(d.systems))
	for _, s := range d.systems {
		names = append(names, s.Name)
	}
	return names
}

// Dispatch attempts delivery of the lead to all configured systems in
// parallel and waits for every attempt to finish. It never returns an error:
// delivery failures are isolated per system and recorded for retry.
func (d *Dispatcher) Dispatch(ctx context.Context, lead *model.Lead) {
	var wg sync.WaitGroup
	for _, system := range d.systems {
		system := system
		wg.Add(1)
		task := func() {
			defer wg.Done()
			defer utils.RecoverWithLog(ctx, "cdp delivery "+system.Name)
			d.deliverAndRecord(ctx, system, lead)
		}
		if err := d.pool.Submit(task); err != nil {
			// Pool saturated or released; run inline rather than drop.
			task()
		}
	}
	wg.Wait()
}

// deliverAndRecord runs one delivery attempt and records its outcome.
func (d *Dispatcher) deliverAndRecord(ctx context.Context, system config.CDPSystemConfig, lead *model.Lead) {
	log := logger.FromContext(ctx).With(
		zap.String("cdp_system", system.Name),
		zap.String("lead_uuid", lead.LeadUUID),
	)

	err := d.attempt(ctx, system, lead)
	if err == nil {
		log.Info("Lead delivered to CDP system")
		d.recordSuccess(ctx, system.Name, lead)
		return
	}

	log.Warn("Lead delivery to CDP system failed", zap.Error(err))
	d.recordFailure(ctx, system.Name, lead, err)
}

// attempt builds the payload and performs the HTTP call, with metrics.
func (d *Dispatcher) attempt(ctx context.Context, system config.CDPSystemConfig, lead *model.Lead) error {
	payload, err := BuildPayload(system.Name, lead)
	if err != nil {
		observer.IncDeliveryAttempt(system.Name, "failure")
		return fmt.Errorf("%w: payload transformation failed: %w", apperrors.ErrDelivery, err)
	}

	startTime := utils.Now()
	err = d.client.Deliver(ctx, system, payload)
	observer.ObserveDeliveryDuration(system.Name, time.Since(startTime))
	if err != nil {
		observer.IncDeliveryAttempt(system.Name, "failure")
		return err
	}
	observer.IncDeliveryAttempt(system.Name, "success")
	return nil
}

// DeliverTo runs a single delivery attempt against one named system. Used by
// the retry scheduler; outcome recording is the caller's responsibility.
func (d *Dispatcher) DeliverTo(ctx context.Context, systemName string, lead *model.Lead) error {
	for _, system := range d.systems {
		if strings.EqualFold(system.Name, systemName) {
			return d.attempt(ctx, system, lead)
		}
	}
	return apperrors.NewFatal(apperrors.ErrDelivery, "cdp system %q is not configured", systemName)
}

func (d *Dispatcher) recordSuccess(ctx context.Context, systemName string, lead *model.Lead) {
	event := &model.Event{
		EventType:  model.EventDeliverySuccess,
		EntityType: model.EntityTypeLead,
		EntityID:   lead.ID,
		Details: datatypes.JSON(utils.MustMarshalJSON(map[string]interface{}{
			"cdp_system": systemName,
			"lead_uuid":  lead.LeadUUID,
		})),
	}
	if err := d.repo.AppendEvent(ctx, event); err != nil {
		d.logger.Error("Failed to log delivery success event",
			zap.String("cdp_system", systemName),
			zap.String("lead_uuid", lead.LeadUUID),
			zap.Error(err))
	}
}

func (d *Dispatcher) recordFailure(ctx context.Context, systemName string, lead *model.Lead, deliveryErr error) {
	event := &model.Event{
		EventType:    model.EventDeliveryFailed,
		EntityType:   model.EntityTypeLead,
		EntityID:     lead.ID,
		ErrorMessage: deliveryErr.Error(),
		Details: datatypes.JSON(utils.MustMarshalJSON(map[string]interface{}{
			"cdp_system": systemName,
			"lead_uuid":  lead.LeadUUID,
		})),
	}
	if err := d.repo.AppendEvent(ctx, event); err != nil {
		d.logger.Error("Failed to log delivery failure event",
			zap.String("cdp_system", systemName),
			zap.String("lead_uuid", lead.LeadUUID),
			zap.Error(err))
	}

	fd := &model.FailedDelivery{
		LeadID:        lead.ID,
		CDPSystemName: systemName,
		ErrorCode:     statusCodeOf(deliveryErr),
		ErrorMessage:  deliveryErr.Error(),
		RetryCount:    0,
		MaxRetries:    d.maxRetries,
		Status:        model.DeliveryStatusPending,
	}
	if err := d.repo.CreateFailedDelivery(ctx, fd); err != nil {
		d.logger.Error("Failed to record failed delivery",
			zap.String("cdp_system", systemName),
			zap.String("lead_uuid", lead.LeadUUID),
			zap.Error(err))
	}
}

// statusCodeOf extracts the HTTP status code from a delivery error, if any.
func statusCodeOf(err error) *string {
	var statusErr *StatusError
	if errors.As(err, &statusErr) {
		code := strconv.Itoa(statusErr.StatusCode)
		return &code
	}
	return nil
}

// Close releases the dispatcher's worker pool.
func (d *Dispatcher) Close() {
	if d.pool != nil {
		d.pool.Release()
	}
}
