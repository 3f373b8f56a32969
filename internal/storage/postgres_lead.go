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

// --- Lead Repository Methods ---

// CreateLead inserts a new lead row. Timestamp stamping is explicit here, not
// a GORM callback. A unique violation on lead_uuid surfaces as ErrDuplicate.
func (r *PostgresRepo) CreateLead(ctx context.Context, lead *model.Lead) error {
	now := utils.Now()
	lead.CreatedAt = now
	lead.UpdatedAt = now
	if lead.Status == "" {
		lead.Status = model.LeadStatusNew
	}

	startTime := utils.Now()
	// Omit associations: the customer row already exists and the property
	// extension is attached separately by the orchestrator.
	err := r.db.WithContext(ctx).Omit("Customer", "Property", "FailedDeliveries").Create(lead).Error
	if err != nil {
		wrapped := checkConstraintViolation(err)
		observer.ObserveDbOperationDuration("create", "lead", time.Since(startTime), wrapped)
		logger.FromContext(ctx).Error("Failed to create lead",
			zap.String("lead_uuid", lead.LeadUUID),
			zap.Error(wrapped))
		return wrapped
	}
	observer.ObserveDbOperationDuration("create", "lead", time.Since(startTime), nil)
	return nil
}

// CreateLeadProperty inserts the 1:1 property extension for a lead.
func (r *PostgresRepo) CreateLeadProperty(ctx context.Context, property *model.LeadProperty) error {
	now := utils.Now()
	property.CreatedAt = now
	property.UpdatedAt = now

	startTime := utils.Now()
	err := r.db.WithContext(ctx).Create(property).Error
	if err != nil {
		wrapped := checkConstraintViolation(err)
		observer.ObserveDbOperationDuration("create", "lead_property", time.Since(startTime), wrapped)
		logger.FromContext(ctx).Error("Failed to create lead property",
			zap.Uint("lead_id", property.LeadID),
			zap.Error(wrapped))
		return wrapped
	}
	observer.ObserveDbOperationDuration("create", "lead_property", time.Since(startTime), nil)
	return nil
}

// FindLeadByUUID finds a lead by its UUID, preloading the customer and the
// property extension.
func (r *PostgresRepo) FindLeadByUUID(ctx context.Context, leadUUID string) (*model.Lead, error) {
	var lead model.Lead
	operation := func() error {
		result := r.db.WithContext(ctx).
			Preload("Customer").
			Preload("Property").
			Where("lead_uuid = ?", leadUUID).
			First(&lead)
		if result.Error != nil {
			if errors.Is(result.Error, gorm.ErrRecordNotFound) {
				return fmt.Errorf("%w: lead_uuid %s: %w", apperrors.ErrNotFound, leadUUID, result.Error)
			}
			return fmt.Errorf("%w: query failed: %w", apperrors.ErrDatabase, result.Error)
		}
		return nil
	}

	readPolicy := newRetryPolicy(ctx, readRetryMaxElapsedTime)
	startTime := utils.Now()
	findErr := retryableOperation(ctx, readPolicy, "FindLeadByUUID", operation)
	observer.ObserveDbOperationDuration("find_by_uuid", "lead", time.Since(startTime), findErr)

	if findErr != nil {
		if errors.Is(findErr, apperrors.ErrNotFound) {
			return nil, findErr
		}
		logger.FromContext(ctx).Error("Failed to find lead by UUID after retries",
			zap.String("lead_uuid", leadUUID),
			zap.Error(findErr))
		return nil, findErr
	}
	return &lead, nil
}

// LeadExists reports whether a lead with the given UUID exists.
func (r *PostgresRepo) LeadExists(ctx context.Context, leadUUID string) (bool, error) {
	var count int64
	operation := func() error {
		result := r.db.WithContext(ctx).Model(&model.Lead{}).Where("lead_uuid = ?", leadUUID).Count(&count)
		if result.Error != nil {
			return fmt.Errorf("%w: count failed: %w", apperrors.ErrDatabase, result.Error)
		}
		return nil
	}

	readPolicy := newRetryPolicy(ctx, readRetryMaxElapsedTime)
	startTime := utils.Now()
	countErr := retryableOperation(ctx, readPolicy, "LeadExists", operation)
	observer.ObserveDbOperationDuration("exists", "lead", time.Since(startTime), countErr)

	if countErr != nil {
		logger.FromContext(ctx).Error("Failed to check lead existence after retries",
			zap.String("lead_uuid", leadUUID),
			zap.Error(countErr))
		return false, countErr
	}
	return count > 0, nil
}

// UpdateLeadStatus sets a new status on a lead. The transition graph is
// deliberately loose; the caller is responsible for logging the change.
func (r *PostgresRepo) UpdateLeadStatus(ctx context.Context, leadID uint, status string) error {
	startTime := utils.Now()
	result := r.db.WithContext(ctx).Model(&model.Lead{}).
		Where("id = ?", leadID).
		Updates(map[string]interface{}{
			"status":     status,
			"updated_at": utils.Now(),
		})
	if result.Error != nil {
		wrapped := checkConstraintViolation(result.Error)
		observer.ObserveDbOperationDuration("update_status", "lead", time.Since(startTime), wrapped)
		return wrapped
	}
	observer.ObserveDbOperationDuration("update_status", "lead", time.Since(startTime), nil)
	if result.RowsAffected == 0 {
		return fmt.Errorf("%w: lead_id %d", apperrors.ErrNotFound, leadID)
	}
	return nil
}

// UpdateLeadScore caches the scoring collaborator's result on the lead.
func (r *PostgresRepo) UpdateLeadScore(ctx context.Context, leadID uint, score model.LeadScore) error {
	startTime := utils.Now()
	result := r.db.WithContext(ctx).Model(&model.Lead{}).
		Where("id = ?", leadID).
		Updates(map[string]interface{}{
			"ai_score":       score.Score,
			"ai_category":    score.Category,
			"ai_reasoning":   score.Reasoning,
			"ai_suggestions": score.Suggestions,
			"ai_scored_at":   utils.Now(),
			"updated_at":     utils.Now(),
		})
	if result.Error != nil {
		wrapped := checkConstraintViolation(result.Error)
		observer.ObserveDbOperationDuration("update_score", "lead", time.Since(startTime), wrapped)
		return wrapped
	}
	observer.ObserveDbOperationDuration("update_score", "lead", time.Since(startTime), nil)
	if result.RowsAffected == 0 {
		return fmt.Errorf("%w: lead_id %d", apperrors.ErrNotFound, leadID)
	}
	return nil
}

// DeleteLead removes a lead row and its property extension. The property is
// removed first so databases without cascade support stay consistent; the
// caller logs the deletion event before either row goes away.
func (r *PostgresRepo) DeleteLead(ctx context.Context, lead *model.Lead) error {
	startTime := utils.Now()

	if err := r.db.WithContext(ctx).Where("lead_id = ?", lead.ID).Delete(&model.LeadProperty{}).Error; err != nil {
		wrapped := checkConstraintViolation(err)
		observer.ObserveDbOperationDuration("delete", "lead_property", time.Since(startTime), wrapped)
		logger.FromContext(ctx).Error("Failed to delete lead property",
			zap.String("lead_uuid", lead.LeadUUID),
			zap.Error(wrapped))
		return wrapped
	}

	result := r.db.WithContext(ctx).Where("id = ?", lead.ID).Delete(&model.Lead{})
	if result.Error != nil {
		wrapped := checkConstraintViolation(result.Error)
		observer.ObserveDbOperationDuration("delete", "lead", time.Since(startTime), wrapped)
		logger.FromContext(ctx).Error("Failed to delete lead",
			zap.String("lead_uuid", lead.LeadUUID),
			zap.Error(wrapped))
		return wrapped
	}
	observer.ObserveDbOperationDuration("delete", "lead", time.Since(startTime), nil)
	if result.RowsAffected == 0 {
		return fmt.Errorf("%w: lead_uuid %s", apperrors.ErrNotFound, lead.LeadUUID)
	}
	return nil
}
