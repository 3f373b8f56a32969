package storage

import (
	"context"
	"time"

	"gitlab.com/proptechlab/api/lead-intake-service/internal/model"
)

// CustomerRepo defines the customer deduplication store.
type CustomerRepo interface {
	// FindOrCreateCustomer returns the customer matching (email, phone),
	// creating one if none exists. Inside a transaction the read takes a
	// pessimistic write lock so concurrent submissions for the same person
	// serialize instead of both inserting.
	FindOrCreateCustomer(ctx context.Context, email, phone, firstName, lastName string) (*model.Customer, error)
	FindCustomerByID(ctx context.Context, id uint) (*model.Customer, error)
}

// LeadRepo defines lead storage operations.
type LeadRepo interface {
	CreateLead(ctx context.Context, lead *model.Lead) error
	CreateLeadProperty(ctx context.Context, property *model.LeadProperty) error
	FindLeadByUUID(ctx context.Context, leadUUID string) (*model.Lead, error)
	LeadExists(ctx context.Context, leadUUID string) (bool, error)
	UpdateLeadStatus(ctx context.Context, leadID uint, status string) error
	UpdateLeadScore(ctx context.Context, leadID uint, score model.LeadScore) error
	DeleteLead(ctx context.Context, lead *model.Lead) error
}

// FailedDeliveryRepo defines the failed-delivery store used by the dispatcher
// and the retry scheduler.
type FailedDeliveryRepo interface {
	CreateFailedDelivery(ctx context.Context, record *model.FailedDelivery) error
	GetPendingDeliveries(ctx context.Context, limit int) ([]model.FailedDelivery, error)
	FindFailedDeliveryByID(ctx context.Context, id uint) (*model.FailedDelivery, error)
	MarkDeliveryResolved(ctx context.Context, id uint) error
	MarkDeliveryFailed(ctx context.Context, id uint, retryCount int) error
	UpdateDeliveryRetryInfo(ctx context.Context, id uint, retryCount int, nextRetryAt *time.Time, status string) error
	FindFailedDeliveriesByLeadID(ctx context.Context, leadID uint) ([]model.FailedDelivery, error)
}

// EventRepo defines the append-only audit sink. Events are never updated or
// deleted; reads exist only for delivery-status derivation and audit viewing.
type EventRepo interface {
	AppendEvent(ctx context.Context, event *model.Event) error
	FindEventsByEntity(ctx context.Context, entityType string, entityID uint, limit int) ([]model.Event, error)
}

// Repository is the combined storage surface the orchestrator works against.
// RunInTransaction yields a Repository bound to one database transaction so
// the creation steps commit or roll back as a unit.
type Repository interface {
	CustomerRepo
	LeadRepo
	FailedDeliveryRepo
	EventRepo
	RunInTransaction(ctx context.Context, fn func(tx Repository) error) error
	Close(ctx context.Context) error
}
