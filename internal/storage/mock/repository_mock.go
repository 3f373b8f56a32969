package mock

import (
	"context"
	"time"

	"github.com/stretchr/testify/mock"

	"gitlab.com/proptechlab/api/lead-intake-service/internal/model"
	"gitlab.com/proptechlab/api/lead-intake-service/internal/storage"
)

// --- Repository Mock (Combined Interface) ---

// RepositoryMock mocks the combined Repository interface
type RepositoryMock struct {
	mock.Mock
	CustomerRepoMock       // Embed CustomerRepoMock
	LeadRepoMock           // Embed LeadRepoMock
	FailedDeliveryRepoMock // Embed FailedDeliveryRepoMock
	EventRepoMock          // Embed EventRepoMock
}

// RunInTransaction mocks the RunInTransaction method. When the expectation
// returns a nil error, the callback is executed against this same mock so
// tests can assert on the calls made inside the transaction.
func (m *RepositoryMock) RunInTransaction(ctx context.Context, fn func(tx storage.Repository) error) error {
	args := m.Called(ctx)
	if args.Error(0) != nil {
		return args.Error(0)
	}
	return fn(m)
}

// Close mocks the Close method
func (m *RepositoryMock) Close(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

// --- CustomerRepo Mock ---

// CustomerRepoMock mocks the CustomerRepo interface
type CustomerRepoMock struct {
	mock.Mock
}

// FindOrCreateCustomer mocks the FindOrCreateCustomer method
func (m *CustomerRepoMock) FindOrCreateCustomer(ctx context.Context, email, phone, firstName, lastName string) (*model.Customer, error) {
	args := m.Called(ctx, email, phone, firstName, lastName)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Customer), args.Error(1)
}

// FindCustomerByID mocks the FindCustomerByID method
func (m *CustomerRepoMock) FindCustomerByID(ctx context.Context, id uint) (*model.Customer, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Customer), args.Error(1)
}

// --- LeadRepo Mock ---

// LeadRepoMock mocks the LeadRepo interface
type LeadRepoMock struct {
	mock.Mock
}

// CreateLead mocks the CreateLead method
func (m *LeadRepoMock) CreateLead(ctx context.Context, lead *model.Lead) error {
	args := m.Called(ctx, lead)
	return args.Error(0)
}

// CreateLeadProperty mocks the CreateLeadProperty method
func (m *LeadRepoMock) CreateLeadProperty(ctx context.Context, property *model.LeadProperty) error {
	args := m.Called(ctx, property)
	return args.Error(0)
}

// FindLeadByUUID mocks the FindLeadByUUID method
func (m *LeadRepoMock) FindLeadByUUID(ctx context.Context, leadUUID string) (*model.Lead, error) {
	args := m.Called(ctx, leadUUID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Lead), args.Error(1)
}

// LeadExists mocks the LeadExists method
func (m *LeadRepoMock) LeadExists(ctx context.Context, leadUUID string) (bool, error) {
	args := m.Called(ctx, leadUUID)
	return args.Bool(0), args.Error(1)
}

// UpdateLeadStatus mocks the UpdateLeadStatus method
func (m *LeadRepoMock) UpdateLeadStatus(ctx context.Context, leadID uint, status string) error {
	args := m.Called(ctx, leadID, status)
	return args.Error(0)
}

// UpdateLeadScore mocks the UpdateLeadScore method
func (m *LeadRepoMock) UpdateLeadScore(ctx context.Context, leadID uint, score model.LeadScore) error {
	args := m.Called(ctx, leadID, score)
	return args.Error(0)
}

// DeleteLead mocks the DeleteLead method
func (m *LeadRepoMock) DeleteLead(ctx context.Context, lead *model.Lead) error {
	args := m.Called(ctx, lead)
	return args.Error(0)
}

// --- FailedDeliveryRepo Mock ---

// FailedDeliveryRepoMock mocks the FailedDeliveryRepo interface
type FailedDeliveryRepoMock struct {
	mock.Mock
}

// CreateFailedDelivery mocks the CreateFailedDelivery method
func (m *FailedDeliveryRepoMock) CreateFailedDelivery(ctx context.Context, fd *model.FailedDelivery) error {
	args := m.Called(ctx, fd)
	return args.Error(0)
}

// GetPendingDeliveries mocks the GetPendingDeliveries method
func (m *FailedDeliveryRepoMock) GetPendingDeliveries(ctx context.Context, limit int) ([]model.FailedDelivery, error) {
	args := m.Called(ctx, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.FailedDelivery), args.Error(1)
}

// FindFailedDeliveryByID mocks the FindFailedDeliveryByID method
func (m *FailedDeliveryRepoMock) FindFailedDeliveryByID(ctx context.Context, id uint) (*model.FailedDelivery, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.FailedDelivery), args.Error(1)
}

// MarkDeliveryResolved mocks the MarkDeliveryResolved method
func (m *FailedDeliveryRepoMock) MarkDeliveryResolved(ctx context.Context, id uint) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

// MarkDeliveryFailed mocks the MarkDeliveryFailed method
func (m *FailedDeliveryRepoMock) MarkDeliveryFailed(ctx context.Context, id uint, retryCount int) error {
	args := m.Called(ctx, id, retryCount)
	return args.Error(0)
}

// UpdateDeliveryRetryInfo mocks the UpdateDeliveryRetryInfo method
func (m *FailedDeliveryRepoMock) UpdateDeliveryRetryInfo(ctx context.Context, id uint, retryCount int, nextRetryAt *time.Time, status string) error {
	args := m.Called(ctx, id, retryCount, nextRetryAt, status)
	return args.Error(0)
}

// FindFailedDeliveriesByLeadID mocks the FindFailedDeliveriesByLeadID method
func (m *FailedDeliveryRepoMock) FindFailedDeliveriesByLeadID(ctx context.Context, leadID uint) ([]model.FailedDelivery, error) {
	args := m.Called(ctx, leadID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.FailedDelivery), args.Error(1)
}

// --- EventRepo Mock ---

// EventRepoMock mocks the EventRepo interface
type EventRepoMock struct {
	mock.Mock
}

// AppendEvent mocks the AppendEvent method
func (m *EventRepoMock) AppendEvent(ctx context.Context, event *model.Event) error {
	args := m.Called(ctx, event)
	return args.Error(0)
}

// FindEventsByEntity mocks the FindEventsByEntity method
func (m *EventRepoMock) FindEventsByEntity(ctx context.Context, entityType string, entityID uint, limit int) ([]model.Event, error) {
	args := m.Called(ctx, entityType, entityID, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.Event), args.Error(1)
}
