package deliveryworker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/panjf2000/ants/v2"
	"go.uber.org/zap"

	"gitlab.com/proptechlab/api/lead-intake-service/internal/apperrors"
	"gitlab.com/proptechlab/api/lead-intake-service/internal/config"
	"gitlab.com/proptechlab/api/lead-intake-service/internal/model"
	"gitlab.com/proptechlab/api/lead-intake-service/internal/observer"
	"gitlab.com/proptechlab/api/lead-intake-service/internal/queue"
	"gitlab.com/proptechlab/api/lead-intake-service/internal/storage"
	"gitlab.com/proptechlab/api/lead-intake-service/pkg/logger"
)

const (
	defaultJobChanCap = 100
	fetchBatchSize    = 10
	fetchMaxWait      = 5 * time.Second
	taskTimeout       = 1 * time.Minute
	requeueDelay      = 5 * time.Second
)

// LeadDispatcher delivers one committed lead to all configured CDP systems.
type LeadDispatcher interface {
	Dispatch(ctx context.Context, lead *model.Lead)
}

// Worker consumes delivery jobs from the JetStream queue and drives the
// dispatcher for each persisted lead. One fetcher goroutine pulls batches,
// one dispatcher goroutine feeds an ants pool.
type Worker struct {
	cfg        config.QueueConfig
	logger     *zap.Logger
	js         queue.ClientInterface
	pool       *ants.Pool
	dispatcher LeadDispatcher
	leads      storage.LeadRepo
	jobCh      chan *nats.Msg
	stopWg     sync.WaitGroup
	cancel     context.CancelFunc
}

// NewWorker creates and initializes a delivery queue worker, including the
// JetStream stream and durable pull consumer it reads from.
func NewWorker(cfg config.QueueConfig, log *zap.Logger, jsClient queue.ClientInterface, dispatcher LeadDispatcher, leads storage.LeadRepo) (*Worker, error) {
	workers := cfg.Workers
	if workers < 1 {
		workers = 1
	}
	pool, err := ants.NewPool(workers,
		ants.WithLogger(newAntsLoggerAdapter(log.Named("ants_pool"))),
		ants.WithPanicHandler(func(err interface{}) {
			log.Error("Delivery worker panic caught", zap.Any("error", err), zap.Stack("stack"))
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create ants pool: %w", err)
	}

	setupCtx := context.Background()
	if err := jsClient.SetupStream(setupCtx, queue.DeliveryStreamConfig(cfg)); err != nil {
		pool.Release()
		return nil, fmt.Errorf("failed to setup delivery stream '%s': %w", cfg.Stream, err)
	}
	if err := jsClient.SetupConsumer(setupCtx, cfg.Stream, queue.DeliveryConsumerConfig(cfg)); err != nil {
		pool.Release()
		return nil, fmt.Errorf("failed to setup delivery consumer for stream '%s': %w", cfg.Stream, err)
	}

	worker := &Worker{
		cfg:        cfg,
		logger:     log.Named("delivery_worker"),
		js:         jsClient,
		pool:       pool,
		dispatcher: dispatcher,
		leads:      leads,
		jobCh:      make(chan *nats.Msg, defaultJobChanCap),
	}

	worker.logger.Info("Delivery worker initialized", zap.Int("pool_size", workers))
	return worker, nil
}

// Start begins the fetch and dispatch loops. It blocks until the context is
// cancelled.
func (w *Worker) Start(ctx context.Context) error {
	derivedCtx, cancel := context.WithCancel(ctx)
	w.cancel = cancel

	w.logger.Info("Starting delivery worker...")

	durableName := queue.DeliveryConsumerName(w.cfg.Stream)
	sub, err := w.js.SubscribePull(w.cfg.Stream, w.cfg.Subject, durableName)
	if err != nil {
		w.logger.Error("Failed to create delivery pull subscription", zap.Error(err))
		cancel()
		return fmt.Errorf("failed to create delivery pull subscription: %w", err)
	}

	w.stopWg.Add(1)
	go w.fetchJobs(derivedCtx, sub)

	w.stopWg.Add(1)
	go w.dispatchJobs(derivedCtx)

	w.logger.Info("Delivery worker started successfully")

	<-derivedCtx.Done()
	w.logger.Info("Delivery worker context cancelled, initiating shutdown...")

	return nil
}

// Stop gracefully shuts down the worker.
func (w *Worker) Stop() {
	w.logger.Info("Stopping delivery worker...")
	if w.cancel != nil {
		w.cancel()
	}

	w.stopWg.Wait()
	close(w.jobCh)
	w.pool.Release()
	w.logger.Info("Delivery worker stopped")
}

// fetchJobs pulls messages from the subscription and sends them to jobCh.
func (w *Worker) fetchJobs(ctx context.Context, sub *nats.Subscription) {
	defer w.stopWg.Done()
	w.logger.Info("Starting delivery job fetcher loop...")

	for {
		select {
		case <-ctx.Done():
			w.logger.Info("Fetcher loop stopping due to context cancellation")
			return
		default:
			observer.IncQueueFetchRequest()
			msgs, err := sub.Fetch(fetchBatchSize, nats.MaxWait(fetchMaxWait))
			if err != nil {
				if errors.Is(err, context.Canceled) || errors.Is(err, nats.ErrTimeout) || errors.Is(err, nats.ErrConnectionClosed) {
					if ctx.Err() != nil {
						return
					}
					continue
				}
				observer.IncQueueFetchError()
				w.logger.Error("Fetcher loop error retrieving jobs", zap.Error(err))
				time.Sleep(1 * time.Second)
				continue
			}

			for _, msg := range msgs {
				select {
				case w.jobCh <- msg:
				case <-ctx.Done():
					w.logger.Info("Fetcher loop stopping while sending to channel")
					return
				}
			}
		}
	}
}

// dispatchJobs reads jobs from jobCh and submits them to the worker pool.
func (w *Worker) dispatchJobs(ctx context.Context) {
	defer w.stopWg.Done()
	w.logger.Info("Starting delivery job dispatcher loop...")

	for {
		observer.SetQueueLength(len(w.jobCh))
		observer.SetQueueWorkersActive(w.pool.Running())

		select {
		case <-ctx.Done():
			w.logger.Info("Dispatcher loop stopping due to context cancellation")
			return
		case msg, ok := <-w.jobCh:
			if !ok {
				return
			}
			currentMsg := msg
			err := w.pool.Submit(func() {
				taskCtx, taskCancel := context.WithTimeout(context.Background(), taskTimeout)
				defer taskCancel()
				w.handleJob(taskCtx, currentMsg)
			})
			if err != nil {
				w.logger.Error("Failed to submit job to ants pool", zap.Error(err))
				if nakErr := currentMsg.NakWithDelay(requeueDelay); nakErr != nil {
					w.logger.Error("Failed to NAK job after pool submission error", zap.Error(nakErr))
					observer.IncQueueAckFailure()
				}
			} else {
				observer.IncQueueTasksSubmitted()
			}
		}
	}
}

// handleJob processes a single delivery job. Unparseable payloads and
// deleted leads are terminated; transient load failures are NAKed with a
// delay until the consumer's MaxDeliver budget runs out.
func (w *Worker) handleJob(ctx context.Context, msg *nats.Msg) {
	startTime := time.Now()
	defer func() {
		observer.ObserveQueueProcessingDuration(time.Since(startTime))
	}()

	meta, err := msg.Metadata()
	if err != nil {
		w.logger.Error("Failed to get job metadata", zap.Error(err))
		w.terminate(msg)
		return
	}

	var job model.DeliveryJob
	if err := json.Unmarshal(msg.Data, &job); err != nil {
		w.logger.Error("Failed to unmarshal delivery job, terminating",
			zap.Error(err),
			zap.Uint64("sequence", meta.Sequence.Stream),
			zap.ByteString("data", msg.Data),
		)
		w.terminate(msg)
		return
	}

	log := w.logger.With(
		zap.String("lead_uuid", job.LeadUUID),
		zap.String("correlation_id", job.CorrelationID),
		zap.Uint64("num_delivered", meta.NumDelivered),
	)
	handlerCtx := logger.WithLogger(ctx, log)

	lead, err := w.leads.FindLeadByUUID(handlerCtx, job.LeadUUID)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			// Lead was deleted between enqueue and processing.
			log.Warn("Lead for delivery job no longer exists, terminating")
			w.terminate(msg)
			return
		}

		if w.cfg.MaxDeliver > 0 && int(meta.NumDelivered) >= w.cfg.MaxDeliver {
			log.Error("Delivery job exceeded max deliveries, dropping", zap.Error(err))
			observer.IncQueueTasksDropped()
			w.terminate(msg)
			return
		}

		log.Warn("Failed to load lead for delivery job, requeueing", zap.Error(err))
		if nakErr := msg.NakWithDelay(requeueDelay); nakErr != nil {
			log.Error("Failed to NAK delivery job", zap.Error(nakErr))
			observer.IncQueueAckFailure()
		} else {
			observer.IncQueueTaskRetry()
		}
		return
	}

	// The dispatcher never errors: per-system failures become failed-delivery
	// records that the retry scheduler owns from here on.
	w.dispatcher.Dispatch(handlerCtx, lead)

	if ackErr := msg.Ack(); ackErr != nil {
		log.Error("Failed to ACK processed delivery job", zap.Error(ackErr))
		observer.IncQueueAckFailure()
		return
	}
	observer.IncQueueAckSuccess()
	log.Info("Delivery job processed")
}

func (w *Worker) terminate(msg *nats.Msg) {
	if err := msg.Term(); err != nil {
		w.logger.Error("Failed to terminate job", zap.Error(err))
	}
	observer.IncQueueAckFailure()
}

// --- Ants Logger Adapter ---

type antsLoggerAdapter struct {
	logger *zap.Logger
}

func newAntsLoggerAdapter(logger *zap.Logger) *antsLoggerAdapter {
	return &antsLoggerAdapter{logger: logger}
}

func (a *antsLoggerAdapter) Printf(format string, args ...interface{}) {
	a.logger.Info(fmt.Sprintf(format, args...))
}
