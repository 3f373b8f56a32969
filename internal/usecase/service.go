package usecase

import (
	"context"

	"go.uber.org/zap"
	"gorm.io/datatypes"

	"gitlab.com/proptechlab/api/lead-intake-service/internal/actor"
	"gitlab.com/proptechlab/api/lead-intake-service/internal/model"
	"gitlab.com/proptechlab/api/lead-intake-service/internal/queue"
	"gitlab.com/proptechlab/api/lead-intake-service/internal/scoring"
	"gitlab.com/proptechlab/api/lead-intake-service/internal/storage"
	"gitlab.com/proptechlab/api/lead-intake-service/internal/validator"
	"gitlab.com/proptechlab/api/lead-intake-service/pkg/utils"
)

// DeliveryDispatcher is the slice of the delivery layer the orchestrator
// needs: a fire-and-forget fan-out plus the configured system names.
type DeliveryDispatcher interface {
	Dispatch(ctx context.Context, lead *model.Lead)
	Systems() []string
}

// LeadService orchestrates the intake pipeline: validation, the atomic
// persistence unit, and the post-commit side effects (delivery handoff and
// scoring).
type LeadService struct {
	repo         storage.Repository
	validator    *validator.Validator
	dispatcher   DeliveryDispatcher
	scorer       scoring.Scorer // nil when scoring is disabled
	queueClient  queue.ClientInterface
	queueSubject string
	logger       *zap.Logger
}

// NewLeadService creates the orchestrator. queueClient may be nil, in which
// case delivery runs synchronously after commit instead of through the
// durable queue. scorer may be nil when scoring is disabled.
func NewLeadService(
	repo storage.Repository,
	v *validator.Validator,
	dispatcher DeliveryDispatcher,
	scorer scoring.Scorer,
	queueClient queue.ClientInterface,
	queueSubject string,
	logger *zap.Logger,
) *LeadService {
	return &LeadService{
		repo:         repo,
		validator:    v,
		dispatcher:   dispatcher,
		scorer:       scorer,
		queueClient:  queueClient,
		queueSubject: queueSubject,
		logger:       logger,
	}
}

// newEvent builds an audit event stamped with the acting user and the
// caller's network identity from the context.
func newEvent(ctx context.Context, eventType, entityType string, entityID uint, details map[string]interface{}) *model.Event {
	clientInfo := actor.ClientInfoFromContext(ctx)
	event := &model.Event{
		EventType:  eventType,
		EntityType: entityType,
		EntityID:   entityID,
		UserID:     actor.UserIDOrNil(ctx),
		IPAddress:  clientInfo.IPAddress,
		UserAgent:  clientInfo.UserAgent,
	}
	if details != nil {
		event.Details = datatypes.JSON(utils.MustMarshalJSON(details))
	}
	return event
}
