package storage

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"gitlab.com/proptechlab/api/lead-intake-service/internal/apperrors"
	"gitlab.com/proptechlab/api/lead-intake-service/internal/model"
	"gitlab.com/proptechlab/api/lead-intake-service/internal/observer"
	"gitlab.com/proptechlab/api/lead-intake-service/pkg/logger"
	"gitlab.com/proptechlab/api/lead-intake-service/pkg/utils"
)

// --- Event Repository Methods ---

// AppendEvent writes one audit event. The events table is append-only; there
// are no update or delete paths through this repository.
func (r *PostgresRepo) AppendEvent(ctx context.Context, event *model.Event) error {
	event.CreatedAt = utils.Now()

	startTime := utils.Now()
	err := r.db.WithContext(ctx).Create(event).Error
	if err != nil {
		wrapped := checkConstraintViolation(err)
		observer.ObserveDbOperationDuration("append", "event", time.Since(startTime), wrapped)
		logger.FromContext(ctx).Error("Failed to append event",
			zap.String("event_type", event.EventType),
			zap.String("entity_type", event.EntityType),
			zap.Uint("entity_id", event.EntityID),
			zap.Error(wrapped))
		return wrapped
	}
	observer.ObserveDbOperationDuration("append", "event", time.Since(startTime), nil)
	return nil
}

// FindEventsByEntity returns the audit trail for one entity, newest first.
func (r *PostgresRepo) FindEventsByEntity(ctx context.Context, entityType string, entityID uint, limit int) ([]model.Event, error) {
	var events []model.Event
	operation := func() error {
		result := r.db.WithContext(ctx).
			Where("entity_type = ? AND entity_id = ?", entityType, entityID).
			Order("created_at DESC").
			Limit(limit).
			Find(&events)
		if result.Error != nil {
			return fmt.Errorf("%w: query failed: %w", apperrors.ErrDatabase, result.Error)
		}
		return nil
	}

	readPolicy := newRetryPolicy(ctx, readRetryMaxElapsedTime)
	startTime := utils.Now()
	findErr := retryableOperation(ctx, readPolicy, "FindEventsByEntity", operation)
	observer.ObserveDbOperationDuration("find_by_entity", "event", time.Since(startTime), findErr)

	if findErr != nil {
		logger.FromContext(ctx).Error("Failed to list events after retries",
			zap.String("entity_type", entityType),
			zap.Uint("entity_id", entityID),
			zap.Error(findErr))
		return nil, findErr
	}
	return events, nil
}
