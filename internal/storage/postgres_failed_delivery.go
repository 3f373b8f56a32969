package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"gitlab.com/proptechlab/api/lead-intake-service/internal/apperrors"
	"gitlab.com/proptechlab/api/lead-intake-service/internal/model"
	"gitlab.com/proptechlab/api/lead-intake-service/internal/observer"
	"gitlab.com/proptechlab/api/lead-intake-service/pkg/logger"
	"gitlab.com/proptechlab/api/lead-intake-service/pkg/utils"
)

// --- Failed Delivery Repository Methods ---

// CreateFailedDelivery records a delivery failure for later retry.
func (r *PostgresRepo) CreateFailedDelivery(ctx context.Context, fd *model.FailedDelivery) error {
	fd.CreatedAt = utils.Now()
	if fd.Status == "" {
		fd.Status = model.DeliveryStatusPending
	}

	startTime := utils.Now()
	err := r.db.WithContext(ctx).Omit("Lead").Create(fd).Error
	if err != nil {
		wrapped := checkConstraintViolation(err)
		observer.ObserveDbOperationDuration("create", "failed_delivery", time.Since(startTime), wrapped)
		logger.FromContext(ctx).Error("Failed to record failed delivery",
			zap.Uint("lead_id", fd.LeadID),
			zap.String("cdp_system", fd.CDPSystemName),
			zap.Error(wrapped))
		return wrapped
	}
	observer.ObserveDbOperationDuration("create", "failed_delivery", time.Since(startTime), nil)
	return nil
}

// GetPendingDeliveries returns failure records that are due for a retry
// attempt: non-terminal status and a next_retry_at that is unset or in the
// past. Records are returned oldest first so no lead starves.
func (r *PostgresRepo) GetPendingDeliveries(ctx context.Context, limit int) ([]model.FailedDelivery, error) {
	var records []model.FailedDelivery
	operation := func() error {
		result := r.db.WithContext(ctx).
			Preload("Lead").
			Preload("Lead.Customer").
			Preload("Lead.Property").
			Where("status IN ?", []string{model.DeliveryStatusPending, model.DeliveryStatusRetrying}).
			Where("next_retry_at IS NULL OR next_retry_at <= ?", utils.Now()).
			Order("created_at ASC").
			Limit(limit).
			Find(&records)
		if result.Error != nil {
			return fmt.Errorf("%w: query failed: %w", apperrors.ErrDatabase, result.Error)
		}
		return nil
	}

	readPolicy := newRetryPolicy(ctx, readRetryMaxElapsedTime)
	startTime := utils.Now()
	findErr := retryableOperation(ctx, readPolicy, "GetPendingDeliveries", operation)
	observer.ObserveDbOperationDuration("get_pending", "failed_delivery", time.Since(startTime), findErr)

	if findErr != nil {
		logger.FromContext(ctx).Error("Failed to fetch pending deliveries after retries", zap.Error(findErr))
		return nil, findErr
	}
	return records, nil
}

// FindFailedDeliveryByID loads a single failure record.
func (r *PostgresRepo) FindFailedDeliveryByID(ctx context.Context, id uint) (*model.FailedDelivery, error) {
	var fd model.FailedDelivery
	operation := func() error {
		result := r.db.WithContext(ctx).Where("id = ?", id).First(&fd)
		if result.Error != nil {
			if errors.Is(result.Error, gorm.ErrRecordNotFound) {
				return fmt.Errorf("%w: failed_delivery id %d: %w", apperrors.ErrNotFound, id, result.Error)
			}
			return fmt.Errorf("%w: query failed: %w", apperrors.ErrDatabase, result.Error)
		}
		return nil
	}

	readPolicy := newRetryPolicy(ctx, readRetryMaxElapsedTime)
	startTime := utils.Now()
	findErr := retryableOperation(ctx, readPolicy, "FindFailedDeliveryByID", operation)
	observer.ObserveDbOperationDuration("find_by_id", "failed_delivery", time.Since(startTime), findErr)

	if findErr != nil {
		if errors.Is(findErr, apperrors.ErrNotFound) {
			return nil, findErr
		}
		logger.FromContext(ctx).Error("Failed to find failed delivery after retries",
			zap.Uint("failed_delivery_id", id),
			zap.Error(findErr))
		return nil, findErr
	}
	return &fd, nil
}

// MarkDeliveryResolved transitions a failure record to its terminal success
// state and stamps resolved_at.
func (r *PostgresRepo) MarkDeliveryResolved(ctx context.Context, id uint) error {
	startTime := utils.Now()
	result := r.db.WithContext(ctx).Model(&model.FailedDelivery{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"status":      model.DeliveryStatusResolved,
			"resolved_at": utils.Now(),
		})
	if result.Error != nil {
		wrapped := checkConstraintViolation(result.Error)
		observer.ObserveDbOperationDuration("mark_resolved", "failed_delivery", time.Since(startTime), wrapped)
		return wrapped
	}
	observer.ObserveDbOperationDuration("mark_resolved", "failed_delivery", time.Since(startTime), nil)
	if result.RowsAffected == 0 {
		return fmt.Errorf("%w: failed_delivery id %d", apperrors.ErrNotFound, id)
	}
	return nil
}

// MarkDeliveryFailed transitions a failure record to its terminal exhausted
// state once the retry budget is spent. The final attempt count is persisted
// with it so the row agrees with the exhaustion event.
func (r *PostgresRepo) MarkDeliveryFailed(ctx context.Context, id uint, retryCount int) error {
	startTime := utils.Now()
	result := r.db.WithContext(ctx).Model(&model.FailedDelivery{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"status":        model.DeliveryStatusFailed,
			"next_retry_at": nil,
			"retry_count":   retryCount,
		})
	if result.Error != nil {
		wrapped := checkConstraintViolation(result.Error)
		observer.ObserveDbOperationDuration("mark_failed", "failed_delivery", time.Since(startTime), wrapped)
		return wrapped
	}
	observer.ObserveDbOperationDuration("mark_failed", "failed_delivery", time.Since(startTime), nil)
	if result.RowsAffected == 0 {
		return fmt.Errorf("%w: failed_delivery id %d", apperrors.ErrNotFound, id)
	}
	return nil
}

// UpdateDeliveryRetryInfo advances a failure record after an unsuccessful
// retry attempt: new attempt count, next due time and status.
func (r *PostgresRepo) UpdateDeliveryRetryInfo(ctx context.Context, id uint, retryCount int, nextRetryAt *time.Time, status string) error {
	startTime := utils.Now()
	result := r.db.WithContext(ctx).Model(&model.FailedDelivery{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"retry_count":   retryCount,
			"next_retry_at": nextRetryAt,
			"status":        status,
		})
	if result.Error != nil {
		wrapped := checkConstraintViolation(result.Error)
		observer.ObserveDbOperationDuration("update_retry_info", "failed_delivery", time.Since(startTime), wrapped)
		return wrapped
	}
	observer.ObserveDbOperationDuration("update_retry_info", "failed_delivery", time.Since(startTime), nil)
	if result.RowsAffected == 0 {
		return fmt.Errorf("%w: failed_delivery id %d", apperrors.ErrNotFound, id)
	}
	return nil
}

// FindFailedDeliveriesByLeadID lists all failure records for a lead, newest
// first. Used to derive a lead's per-system delivery view.
func (r *PostgresRepo) FindFailedDeliveriesByLeadID(ctx context.Context, leadID uint) ([]model.FailedDelivery, error) {
	var records []model.FailedDelivery
	operation := func() error {
		result := r.db.WithContext(ctx).
			Where("lead_id = ?", leadID).
			Order("created_at DESC").
			Find(&records)
		if result.Error != nil {
			return fmt.Errorf("%w: query failed: %w", apperrors.ErrDatabase, result.Error)
		}
		return nil
	}

	readPolicy := newRetryPolicy(ctx, readRetryMaxElapsedTime)
	startTime := utils.Now()
	findErr := retryableOperation(ctx, readPolicy, "FindFailedDeliveriesByLeadID", operation)
	observer.ObserveDbOperationDuration("find_by_lead", "failed_delivery", time.Since(startTime), findErr)

	if findErr != nil {
		logger.FromContext(ctx).Error("Failed to list failed deliveries after retries",
			zap.Uint("lead_id", leadID),
			zap.Error(findErr))
		return nil, findErr
	}
	return records, nil
}
