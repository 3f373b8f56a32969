package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"gitlab.com/proptechlab/api/lead-intake-service/internal/apperrors"
	"gitlab.com/proptechlab/api/lead-intake-service/internal/model"
	"gitlab.com/proptechlab/api/lead-intake-service/internal/observer"
	"gitlab.com/proptechlab/api/lead-intake-service/pkg/logger"
	"gitlab.com/proptechlab/api/lead-intake-service/pkg/utils"
)

// --- Customer Repository Methods ---

// FindOrCreateCustomer looks up a customer by (email, phone) and creates one
// when none exists. The read takes a pessimistic write lock: without it, two
// concurrent submissions for the same new person both observe "no customer"
// and both insert, breaking the dedup invariant. The lock is scoped to the
// caller's transaction, so this must run inside RunInTransaction; the second
// transaction blocks until the first commits or rolls back.
func (r *PostgresRepo) FindOrCreateCustomer(ctx context.Context, email, phone, firstName, lastName string) (*model.Customer, error) {
	startTime := utils.Now()

	var existing model.Customer
	result := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("email = ? AND phone = ?", email, phone).
		First(&existing)
	findErr := result.Error

	if findErr == nil {
		observer.ObserveDbOperationDuration("find_or_create", "customer", time.Since(startTime), nil)
		return &existing, nil
	}

	if !errors.Is(findErr, gorm.ErrRecordNotFound) {
		// Storage errors here are never swallowed: silent failure would
		// corrupt deduplication. The email involved goes into the context.
		wrapped := fmt.Errorf("%w: failed to lock customer row for %s: %w", apperrors.ErrDatabase, email, findErr)
		observer.ObserveDbOperationDuration("find_or_create", "customer", time.Since(startTime), wrapped)
		logger.FromContext(ctx).Error("Customer dedup lookup failed", zap.String("email", email), zap.Error(wrapped))
		return nil, wrapped
	}

	now := utils.Now()
	customer := model.Customer{
		Email:     email,
		Phone:     phone,
		FirstName: firstName,
		LastName:  lastName,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if createErr := r.db.WithContext(ctx).Create(&customer).Error; createErr != nil {
		wrapped := checkConstraintViolation(createErr)
		wrapped = fmt.Errorf("failed to create customer for %s: %w", email, wrapped)
		observer.ObserveDbOperationDuration("find_or_create", "customer", time.Since(startTime), wrapped)
		logger.FromContext(ctx).Error("Customer creation failed", zap.String("email", email), zap.Error(wrapped))
		return nil, wrapped
	}

	observer.ObserveDbOperationDuration("find_or_create", "customer", time.Since(startTime), nil)
	logger.FromContext(ctx).Info("Created new customer",
		zap.Uint("customer_id", customer.ID),
		zap.String("email", email),
	)
	return &customer, nil
}

// FindCustomerByID finds a customer by its ID.
func (r *PostgresRepo) FindCustomerByID(ctx context.Context, id uint) (*model.Customer, error) {
	var customer model.Customer
	operation := func() error {
		result := r.db.WithContext(ctx).Where("id = ?", id).First(&customer)
		if result.Error != nil {
			if errors.Is(result.Error, gorm.ErrRecordNotFound) {
				return fmt.Errorf("%w: customer_id %d: %w", apperrors.ErrNotFound, id, result.Error)
			}
			return fmt.Errorf("%w: query failed: %w", apperrors.ErrDatabase, result.Error)
		}
		return nil
	}

	readPolicy := newRetryPolicy(ctx, readRetryMaxElapsedTime)
	startTime := utils.Now()
	findErr := retryableOperation(ctx, readPolicy, "FindCustomerByID", operation)
	observer.ObserveDbOperationDuration("find_by_id", "customer", time.Since(startTime), findErr)

	if findErr != nil {
		if errors.Is(findErr, apperrors.ErrNotFound) {
			return nil, findErr
		}
		logger.FromContext(ctx).Error("Failed to find customer by ID after retries",
			zap.Uint("customer_id", id),
			zap.Error(findErr))
		return nil, findErr
	}
	return &customer, nil
}
