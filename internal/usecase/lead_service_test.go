package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
	"gorm.io/datatypes"

	"gitlab.com/proptechlab/api/lead-intake-service/internal/apperrors"
	"gitlab.com/proptechlab/api/lead-intake-service/internal/model"
	queuemock "gitlab.com/proptechlab/api/lead-intake-service/internal/queue/mock"
	storagemock "gitlab.com/proptechlab/api/lead-intake-service/internal/storage/mock"
	"gitlab.com/proptechlab/api/lead-intake-service/internal/validator"
	"gitlab.com/proptechlab/api/lead-intake-service/pkg/logger"
)

const testQueueSubject = "v1.leads.delivery"

// fakeDispatcher records dispatched leads.
type fakeDispatcher struct {
	mu         sync.Mutex
	systems    []string
	dispatched []*model.Lead
}

func (f *fakeDispatcher) Dispatch(_ context.Context, lead *model.Lead) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.dispatched = append(f.dispatched, lead)
}

func (f *fakeDispatcher) Systems() []string { return f.systems }

// fakeScorer returns a canned verdict.
type fakeScorer struct {
	score model.LeadScore
	err   error
}

func (f *fakeScorer) Score(_ context.Context, _ *model.Lead) (model.LeadScore, error) {
	return f.score, f.err
}

func eventOfType(eventType string) interface{} {
	return mock.MatchedBy(func(event *model.Event) bool {
		return event.EventType == eventType
	})
}

func newTestService(t *testing.T, repo *storagemock.RepositoryMock, dispatcher *fakeDispatcher, queueClient *queuemock.ClientMock) *LeadService {
	t.Helper()
	logger.Log = zaptest.NewLogger(t)
	v, err := validator.New(validator.Config{AllowedApplications: []string{"morizon", "gratka", "hms"}})
	require.NoError(t, err)

	if dispatcher.systems == nil {
		dispatcher.systems = []string{"salesmanago", "synerise"}
	}
	if queueClient == nil {
		return NewLeadService(repo, v, dispatcher, nil, nil, testQueueSubject, logger.Log)
	}
	return NewLeadService(repo, v, dispatcher, nil, queueClient, testQueueSubject, logger.Log)
}

func testSubmission() *model.LeadSubmission {
	price := 450000.50
	city := "Warszawa"
	return &model.LeadSubmission{
		LeadUUID:        "3b241101-e2bb-4255-8caf-4136c566a962",
		ApplicationName: "morizon",
		Customer: model.CustomerPayload{
			Email:     "jan.kowalski@example.com",
			Phone:     "+48123456789",
			FirstName: "Jan",
			LastName:  "Kowalski",
		},
		Property: &model.PropertyPayload{
			Price: &price,
			City:  &city,
		},
	}
}

func TestCreateLead_HappyPath(t *testing.T) {
	repo := new(storagemock.RepositoryMock)
	dispatcher := &fakeDispatcher{}
	svc := newTestService(t, repo, dispatcher, nil)
	ctx := context.Background()
	sub := testSubmission()
	customer := &model.Customer{ID: 5, Email: sub.Customer.Email, Phone: sub.Customer.Phone}

	repo.On("RunInTransaction", ctx).Return(nil).Once()
	repo.LeadRepoMock.On("LeadExists", ctx, sub.LeadUUID).Return(false, nil).Once()
	repo.CustomerRepoMock.On("FindOrCreateCustomer", ctx, sub.Customer.Email, sub.Customer.Phone, "Jan", "Kowalski").
		Return(customer, nil).Once()
	repo.LeadRepoMock.On("CreateLead", ctx, mock.AnythingOfType("*model.Lead")).
		Run(func(args mock.Arguments) { args.Get(1).(*model.Lead).ID = 11 }).
		Return(nil).Once()
	repo.LeadRepoMock.On("CreateLeadProperty", ctx, mock.AnythingOfType("*model.LeadProperty")).
		Return(nil).Once()
	repo.EventRepoMock.On("AppendEvent", ctx, eventOfType(model.EventLeadCreated)).
		Return(nil).Once()

	result, err := svc.CreateLead(ctx, sub)
	require.NoError(t, err)
	assert.Equal(t, uint(11), result.LeadID)
	assert.Equal(t, sub.LeadUUID, result.LeadUUID)
	assert.Equal(t, uint(5), result.CustomerID)
	assert.Equal(t, model.LeadStatusNew, result.Status)
	assert.Equal(t, model.DeliveryStatusPending, result.DeliveryStatus)

	// With no queue configured, delivery runs synchronously after commit with
	// the full lead graph loaded.
	require.Len(t, dispatcher.dispatched, 1)
	lead := dispatcher.dispatched[0]
	assert.Equal(t, customer, lead.Customer)
	require.NotNil(t, lead.Property)
	assert.Equal(t, uint(11), lead.Property.LeadID)

	repo.AssertExpectations(t)
	repo.LeadRepoMock.AssertExpectations(t)
	repo.CustomerRepoMock.AssertExpectations(t)
	repo.EventRepoMock.AssertExpectations(t)
}

func TestCreateLead_ValidationRejection(t *testing.T) {
	repo := new(storagemock.RepositoryMock)
	dispatcher := &fakeDispatcher{}
	svc := newTestService(t, repo, dispatcher, nil)
	sub := testSubmission()
	sub.Customer.Email = "not-an-email"

	result, err := svc.CreateLead(context.Background(), sub)
	assert.Nil(t, result)
	assert.ErrorIs(t, err, apperrors.ErrValidation)
	assert.Empty(t, dispatcher.dispatched)
	repo.AssertNotCalled(t, "RunInTransaction", mock.Anything)
}

func TestCreateLead_DuplicateUUIDConflict(t *testing.T) {
	repo := new(storagemock.RepositoryMock)
	dispatcher := &fakeDispatcher{}
	svc := newTestService(t, repo, dispatcher, nil)
	ctx := context.Background()
	sub := testSubmission()

	repo.On("RunInTransaction", ctx).Return(nil).Once()
	repo.LeadRepoMock.On("LeadExists", ctx, sub.LeadUUID).Return(true, nil).Once()

	result, err := svc.CreateLead(ctx, sub)
	assert.Nil(t, result)
	assert.ErrorIs(t, err, apperrors.ErrConflict)
	assert.Empty(t, dispatcher.dispatched)
	repo.CustomerRepoMock.AssertNotCalled(t, "FindOrCreateCustomer", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	repo.LeadRepoMock.AssertNotCalled(t, "CreateLead", mock.Anything, mock.Anything)
}

func TestCreateLead_NoPropertyRowForEmptyPayload(t *testing.T) {
	repo := new(storagemock.RepositoryMock)
	dispatcher := &fakeDispatcher{}
	svc := newTestService(t, repo, dispatcher, nil)
	ctx := context.Background()
	sub := testSubmission()
	sub.Property = &model.PropertyPayload{}

	repo.On("RunInTransaction", ctx).Return(nil).Once()
	repo.LeadRepoMock.On("LeadExists", ctx, sub.LeadUUID).Return(false, nil).Once()
	repo.CustomerRepoMock.On("FindOrCreateCustomer", ctx, sub.Customer.Email, sub.Customer.Phone, "Jan", "Kowalski").
		Return(&model.Customer{ID: 5}, nil).Once()
	repo.LeadRepoMock.On("CreateLead", ctx, mock.AnythingOfType("*model.Lead")).
		Run(func(args mock.Arguments) { args.Get(1).(*model.Lead).ID = 11 }).
		Return(nil).Once()
	repo.EventRepoMock.On("AppendEvent", ctx, eventOfType(model.EventLeadCreated)).
		Return(nil).Once()

	_, err := svc.CreateLead(ctx, sub)
	require.NoError(t, err)
	repo.LeadRepoMock.AssertNotCalled(t, "CreateLeadProperty", mock.Anything, mock.Anything)

	require.Len(t, dispatcher.dispatched, 1)
	assert.Nil(t, dispatcher.dispatched[0].Property)
}

func TestCreateLead_TransactionFailureRollsBack(t *testing.T) {
	repo := new(storagemock.RepositoryMock)
	dispatcher := &fakeDispatcher{}
	svc := newTestService(t, repo, dispatcher, nil)
	ctx := context.Background()
	sub := testSubmission()

	repo.On("RunInTransaction", ctx).Return(nil).Once()
	repo.LeadRepoMock.On("LeadExists", ctx, sub.LeadUUID).Return(false, nil).Once()
	repo.CustomerRepoMock.On("FindOrCreateCustomer", ctx, sub.Customer.Email, sub.Customer.Phone, "Jan", "Kowalski").
		Return(nil, apperrors.ErrDatabase).Once()

	result, err := svc.CreateLead(ctx, sub)
	assert.Nil(t, result)
	assert.ErrorIs(t, err, apperrors.ErrDatabase)
	assert.Empty(t, dispatcher.dispatched)
}

func TestCreateLead_RetriesOnCustomerInsertRace(t *testing.T) {
	repo := new(storagemock.RepositoryMock)
	dispatcher := &fakeDispatcher{}
	svc := newTestService(t, repo, dispatcher, nil)
	ctx := context.Background()
	sub := testSubmission()
	customer := &model.Customer{ID: 5, Email: sub.Customer.Email, Phone: sub.Customer.Phone}
	raceErr := fmt.Errorf("failed to create customer for %s: %w: constraint idx_customers_email_phone",
		sub.Customer.Email, apperrors.ErrDuplicate)

	// A concurrent submission inserts the same customer first, so the row
	// lock finds nothing and the insert loses to the unique index. The
	// re-run finds the committed row.
	repo.On("RunInTransaction", ctx).Return(nil).Twice()
	repo.LeadRepoMock.On("LeadExists", ctx, sub.LeadUUID).Return(false, nil).Twice()
	repo.CustomerRepoMock.On("FindOrCreateCustomer", ctx, sub.Customer.Email, sub.Customer.Phone, "Jan", "Kowalski").
		Return(nil, raceErr).Once()
	repo.CustomerRepoMock.On("FindOrCreateCustomer", ctx, sub.Customer.Email, sub.Customer.Phone, "Jan", "Kowalski").
		Return(customer, nil).Once()
	repo.LeadRepoMock.On("CreateLead", ctx, mock.AnythingOfType("*model.Lead")).
		Run(func(args mock.Arguments) { args.Get(1).(*model.Lead).ID = 11 }).
		Return(nil).Once()
	repo.LeadRepoMock.On("CreateLeadProperty", ctx, mock.AnythingOfType("*model.LeadProperty")).
		Return(nil).Once()
	repo.EventRepoMock.On("AppendEvent", ctx, eventOfType(model.EventLeadCreated)).
		Return(nil).Once()

	result, err := svc.CreateLead(ctx, sub)
	require.NoError(t, err)
	assert.Equal(t, uint(11), result.LeadID)
	assert.Equal(t, uint(5), result.CustomerID)
	require.Len(t, dispatcher.dispatched, 1)

	repo.AssertExpectations(t)
	repo.CustomerRepoMock.AssertExpectations(t)
	repo.LeadRepoMock.AssertExpectations(t)
}

func TestCreateLead_CustomerRaceRetriesOnlyOnce(t *testing.T) {
	repo := new(storagemock.RepositoryMock)
	dispatcher := &fakeDispatcher{}
	svc := newTestService(t, repo, dispatcher, nil)
	ctx := context.Background()
	sub := testSubmission()
	raceErr := fmt.Errorf("failed to create customer for %s: %w", sub.Customer.Email, apperrors.ErrDuplicate)

	repo.On("RunInTransaction", ctx).Return(nil).Twice()
	repo.LeadRepoMock.On("LeadExists", ctx, sub.LeadUUID).Return(false, nil).Twice()
	repo.CustomerRepoMock.On("FindOrCreateCustomer", ctx, sub.Customer.Email, sub.Customer.Phone, "Jan", "Kowalski").
		Return(nil, raceErr).Twice()

	result, err := svc.CreateLead(ctx, sub)
	assert.Nil(t, result)
	assert.ErrorIs(t, err, apperrors.ErrDuplicate)
	assert.Empty(t, dispatcher.dispatched)

	repo.AssertExpectations(t)
	repo.CustomerRepoMock.AssertExpectations(t)
}

func TestCreateLead_EnqueuesDeliveryJob(t *testing.T) {
	repo := new(storagemock.RepositoryMock)
	dispatcher := &fakeDispatcher{}
	queueClient := new(queuemock.ClientMock)
	svc := newTestService(t, repo, dispatcher, queueClient)
	ctx := context.Background()
	sub := testSubmission()

	repo.On("RunInTransaction", ctx).Return(nil).Once()
	repo.LeadRepoMock.On("LeadExists", ctx, sub.LeadUUID).Return(false, nil).Once()
	repo.CustomerRepoMock.On("FindOrCreateCustomer", ctx, sub.Customer.Email, sub.Customer.Phone, "Jan", "Kowalski").
		Return(&model.Customer{ID: 5}, nil).Once()
	repo.LeadRepoMock.On("CreateLead", ctx, mock.AnythingOfType("*model.Lead")).
		Run(func(args mock.Arguments) { args.Get(1).(*model.Lead).ID = 11 }).
		Return(nil).Once()
	repo.LeadRepoMock.On("CreateLeadProperty", ctx, mock.AnythingOfType("*model.LeadProperty")).
		Return(nil).Once()
	repo.EventRepoMock.On("AppendEvent", ctx, eventOfType(model.EventLeadCreated)).
		Return(nil).Once()

	var published []byte
	queueClient.On("Publish", testQueueSubject, mock.AnythingOfType("[]uint8"), mock.Anything).
		Run(func(args mock.Arguments) { published = args.Get(1).([]byte) }).
		Return(nil).Once()

	_, err := svc.CreateLead(ctx, sub)
	require.NoError(t, err)

	// Queue publish replaces the synchronous dispatch.
	assert.Empty(t, dispatcher.dispatched)
	var job model.DeliveryJob
	require.NoError(t, json.Unmarshal(published, &job))
	assert.Equal(t, sub.LeadUUID, job.LeadUUID)
	assert.False(t, job.EnqueuedAt.IsZero())
	queueClient.AssertExpectations(t)
}

func TestCreateLead_PublishFailureFallsBackToDispatch(t *testing.T) {
	repo := new(storagemock.RepositoryMock)
	dispatcher := &fakeDispatcher{}
	queueClient := new(queuemock.ClientMock)
	svc := newTestService(t, repo, dispatcher, queueClient)
	ctx := context.Background()
	sub := testSubmission()

	repo.On("RunInTransaction", ctx).Return(nil).Once()
	repo.LeadRepoMock.On("LeadExists", ctx, sub.LeadUUID).Return(false, nil).Once()
	repo.CustomerRepoMock.On("FindOrCreateCustomer", ctx, sub.Customer.Email, sub.Customer.Phone, "Jan", "Kowalski").
		Return(&model.Customer{ID: 5}, nil).Once()
	repo.LeadRepoMock.On("CreateLead", ctx, mock.AnythingOfType("*model.Lead")).
		Run(func(args mock.Arguments) { args.Get(1).(*model.Lead).ID = 11 }).
		Return(nil).Once()
	repo.LeadRepoMock.On("CreateLeadProperty", ctx, mock.AnythingOfType("*model.LeadProperty")).
		Return(nil).Once()
	repo.EventRepoMock.On("AppendEvent", ctx, eventOfType(model.EventLeadCreated)).
		Return(nil).Once()
	queueClient.On("Publish", testQueueSubject, mock.Anything, mock.Anything).
		Return(errors.New("nats: connection closed")).Once()

	_, err := svc.CreateLead(ctx, sub)
	require.NoError(t, err)
	assert.Len(t, dispatcher.dispatched, 1)
}

func TestScoreAndCache(t *testing.T) {
	repo := new(storagemock.RepositoryMock)
	dispatcher := &fakeDispatcher{}
	svc := newTestService(t, repo, dispatcher, nil)
	svc.scorer = &fakeScorer{score: model.LeadScore{Score: 85, Category: "hot"}}
	ctx := context.Background()
	lead := model.NewLead(&model.Lead{ID: 11})

	repo.LeadRepoMock.On("UpdateLeadScore", ctx, uint(11), model.LeadScore{Score: 85, Category: "hot"}).
		Return(nil).Once()
	repo.EventRepoMock.On("AppendEvent", ctx, eventOfType(model.EventLeadScored)).
		Return(nil).Once()

	svc.scoreAndCache(ctx, lead)

	repo.LeadRepoMock.AssertExpectations(t)
	repo.EventRepoMock.AssertExpectations(t)
}

func TestScoreAndCache_ScorerFailureIsSwallowed(t *testing.T) {
	repo := new(storagemock.RepositoryMock)
	dispatcher := &fakeDispatcher{}
	svc := newTestService(t, repo, dispatcher, nil)
	svc.scorer = &fakeScorer{err: apperrors.ErrScoring}

	svc.scoreAndCache(context.Background(), model.NewLead(&model.Lead{ID: 11}))

	repo.LeadRepoMock.AssertNotCalled(t, "UpdateLeadScore", mock.Anything, mock.Anything, mock.Anything)
}

func TestUpdateLeadStatus_RejectsUnknownStatus(t *testing.T) {
	repo := new(storagemock.RepositoryMock)
	svc := newTestService(t, repo, &fakeDispatcher{}, nil)

	err := svc.UpdateLeadStatus(context.Background(), "3b241101-e2bb-4255-8caf-4136c566a962", "escalated")
	assert.ErrorIs(t, err, apperrors.ErrValidation)
	repo.AssertNotCalled(t, "RunInTransaction", mock.Anything)
}

func TestUpdateLeadStatus_LogsTransition(t *testing.T) {
	repo := new(storagemock.RepositoryMock)
	svc := newTestService(t, repo, &fakeDispatcher{}, nil)
	ctx := context.Background()
	lead := model.NewLead(&model.Lead{ID: 11, Status: model.LeadStatusNew})

	repo.On("RunInTransaction", ctx).Return(nil).Once()
	repo.LeadRepoMock.On("FindLeadByUUID", ctx, lead.LeadUUID).Return(lead, nil).Once()
	repo.LeadRepoMock.On("UpdateLeadStatus", ctx, uint(11), model.LeadStatusQualified).Return(nil).Once()
	repo.EventRepoMock.On("AppendEvent", ctx, mock.MatchedBy(func(event *model.Event) bool {
		if event.EventType != model.EventLeadStatusChanged {
			return false
		}
		var details map[string]interface{}
		if err := json.Unmarshal(event.Details, &details); err != nil {
			return false
		}
		return details["old_status"] == model.LeadStatusNew && details["new_status"] == model.LeadStatusQualified
	})).Return(nil).Once()

	err := svc.UpdateLeadStatus(ctx, lead.LeadUUID, model.LeadStatusQualified)
	assert.NoError(t, err)
	repo.LeadRepoMock.AssertExpectations(t)
	repo.EventRepoMock.AssertExpectations(t)
}

func TestDeleteLead_EventPrecedesDelete(t *testing.T) {
	repo := new(storagemock.RepositoryMock)
	svc := newTestService(t, repo, &fakeDispatcher{}, nil)
	ctx := context.Background()
	lead := model.NewLead(&model.Lead{ID: 11})

	var order []string
	repo.On("RunInTransaction", ctx).Return(nil).Once()
	repo.LeadRepoMock.On("FindLeadByUUID", ctx, lead.LeadUUID).Return(lead, nil).Once()
	repo.EventRepoMock.On("AppendEvent", ctx, eventOfType(model.EventLeadDeleted)).
		Run(func(mock.Arguments) { order = append(order, "event") }).
		Return(nil).Once()
	repo.LeadRepoMock.On("DeleteLead", ctx, lead).
		Run(func(mock.Arguments) { order = append(order, "delete") }).
		Return(nil).Once()

	err := svc.DeleteLead(ctx, lead.LeadUUID)
	require.NoError(t, err)
	assert.Equal(t, []string{"event", "delete"}, order)
}

func TestDeleteLead_NotFound(t *testing.T) {
	repo := new(storagemock.RepositoryMock)
	svc := newTestService(t, repo, &fakeDispatcher{}, nil)
	ctx := context.Background()

	repo.On("RunInTransaction", ctx).Return(nil).Once()
	repo.LeadRepoMock.On("FindLeadByUUID", ctx, "missing-uuid").
		Return(nil, apperrors.ErrNotFound).Once()

	err := svc.DeleteLead(ctx, "missing-uuid")
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
	repo.LeadRepoMock.AssertNotCalled(t, "DeleteLead", mock.Anything, mock.Anything)
}

func TestGetDeliveryStatus_DerivesPerSystemView(t *testing.T) {
	repo := new(storagemock.RepositoryMock)
	dispatcher := &fakeDispatcher{systems: []string{"salesmanago", "synerise", "ipresso"}}
	svc := newTestService(t, repo, dispatcher, nil)
	ctx := context.Background()
	lead := model.NewLead(&model.Lead{ID: 11})
	now := time.Now()
	resolvedAt := now.Add(-time.Minute)

	repo.LeadRepoMock.On("FindLeadByUUID", ctx, lead.LeadUUID).Return(lead, nil).Once()
	repo.FailedDeliveryRepoMock.On("FindFailedDeliveriesByLeadID", ctx, uint(11)).
		Return([]model.FailedDelivery{
			// Newest first: synerise recovered on retry, ipresso exhausted.
			{ID: 23, LeadID: 11, CDPSystemName: "synerise", Status: model.DeliveryStatusResolved, ResolvedAt: &resolvedAt, CreatedAt: now.Add(-2 * time.Minute)},
			{ID: 22, LeadID: 11, CDPSystemName: "ipresso", Status: model.DeliveryStatusFailed, ErrorMessage: "status 500", CreatedAt: now.Add(-3 * time.Minute)},
			{ID: 21, LeadID: 11, CDPSystemName: "ipresso", Status: model.DeliveryStatusRetrying, ErrorMessage: "status 502", CreatedAt: now.Add(-10 * time.Minute)},
		}, nil).Once()
	repo.EventRepoMock.On("FindEventsByEntity", ctx, model.EntityTypeLead, uint(11), 200).
		Return([]model.Event{
			{EventType: model.EventDeliverySuccess, EntityType: model.EntityTypeLead, EntityID: 11,
				Details: datatypes.JSON([]byte(`{"cdp_system":"salesmanago"}`)), CreatedAt: now.Add(-4 * time.Minute)},
		}, nil).Once()

	states, err := svc.GetDeliveryStatus(ctx, lead.LeadUUID)
	require.NoError(t, err)
	require.Len(t, states, 3)

	// Output follows the configured system order.
	assert.Equal(t, "salesmanago", states[0].SystemName)
	assert.Equal(t, "delivered", states[0].Status)

	assert.Equal(t, "synerise", states[1].SystemName)
	assert.Equal(t, "delivered", states[1].Status)
	assert.Empty(t, states[1].LastError)

	assert.Equal(t, "ipresso", states[2].SystemName)
	assert.Equal(t, model.DeliveryStatusFailed, states[2].Status)
	assert.Equal(t, "status 500", states[2].LastError)
}

func TestGetDeliveryStatus_ReportsRemovedSystemWithSuccessEvent(t *testing.T) {
	repo := new(storagemock.RepositoryMock)
	dispatcher := &fakeDispatcher{systems: []string{"salesmanago"}}
	svc := newTestService(t, repo, dispatcher, nil)
	ctx := context.Background()
	lead := model.NewLead(&model.Lead{ID: 11})
	now := time.Now()

	// ipresso was removed from config; its only history is a first-attempt
	// success event, which must still surface in the view.
	repo.LeadRepoMock.On("FindLeadByUUID", ctx, lead.LeadUUID).Return(lead, nil).Once()
	repo.FailedDeliveryRepoMock.On("FindFailedDeliveriesByLeadID", ctx, uint(11)).
		Return([]model.FailedDelivery{}, nil).Once()
	repo.EventRepoMock.On("FindEventsByEntity", ctx, model.EntityTypeLead, uint(11), 200).
		Return([]model.Event{
			{EventType: model.EventDeliverySuccess, EntityType: model.EntityTypeLead, EntityID: 11,
				Details: datatypes.JSON([]byte(`{"cdp_system":"ipresso"}`)), CreatedAt: now.Add(-time.Minute)},
		}, nil).Once()

	states, err := svc.GetDeliveryStatus(ctx, lead.LeadUUID)
	require.NoError(t, err)
	require.Len(t, states, 2)

	assert.Equal(t, "salesmanago", states[0].SystemName)
	assert.Equal(t, model.DeliveryStatusPending, states[0].Status)

	assert.Equal(t, "ipresso", states[1].SystemName)
	assert.Equal(t, "delivered", states[1].Status)
	require.NotNil(t, states[1].UpdatedAt)
}

func TestGetDeliveryStatus_AllPendingWithoutRecords(t *testing.T) {
	repo := new(storagemock.RepositoryMock)
	dispatcher := &fakeDispatcher{}
	svc := newTestService(t, repo, dispatcher, nil)
	ctx := context.Background()
	lead := model.NewLead(&model.Lead{ID: 11})

	repo.LeadRepoMock.On("FindLeadByUUID", ctx, lead.LeadUUID).Return(lead, nil).Once()
	repo.FailedDeliveryRepoMock.On("FindFailedDeliveriesByLeadID", ctx, uint(11)).
		Return([]model.FailedDelivery{}, nil).Once()
	repo.EventRepoMock.On("FindEventsByEntity", ctx, model.EntityTypeLead, uint(11), 200).
		Return([]model.Event{}, nil).Once()

	states, err := svc.GetDeliveryStatus(ctx, lead.LeadUUID)
	require.NoError(t, err)
	require.Len(t, states, 2)
	for _, state := range states {
		assert.Equal(t, model.DeliveryStatusPending, state.Status)
	}
}
