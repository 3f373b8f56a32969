package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"gitlab.com/proptechlab/api/lead-intake-service/internal/actor"
	"gitlab.com/proptechlab/api/lead-intake-service/internal/apperrors"
	"gitlab.com/proptechlab/api/lead-intake-service/internal/model"
	"gitlab.com/proptechlab/api/lead-intake-service/internal/observer"
	"gitlab.com/proptechlab/api/lead-intake-service/internal/queue"
	"gitlab.com/proptechlab/api/lead-intake-service/internal/storage"
	"gitlab.com/proptechlab/api/lead-intake-service/pkg/logger"
	"gitlab.com/proptechlab/api/lead-intake-service/pkg/utils"
)

// CreateLead runs the full intake pipeline for one submission: validation,
// the atomic persistence unit (conflict check, customer dedup, lead row,
// optional property row, creation event), then the post-commit delivery
// handoff and scoring. The returned DeliveryStatus is always "pending";
// delivery outcomes never surface in the intake response.
func (s *LeadService) CreateLead(ctx context.Context, sub *model.LeadSubmission) (*model.LeadCreatedResult, error) {
	log := logger.FromContext(ctx).With(
		zap.String("lead_uuid", sub.LeadUUID),
		zap.String("application_name", sub.ApplicationName),
	)
	observer.IncLeadsReceived(sub.ApplicationName)

	if err := s.validator.Check(sub); err != nil {
		observer.IncLeadsRejected(sub.ApplicationName)
		log.Warn("Lead submission rejected by validation", zap.Error(err))
		return nil, err
	}

	startTime := utils.Now()
	var lead *model.Lead
	persist := func() error {
		return s.repo.RunInTransaction(ctx, func(tx storage.Repository) error {
			exists, err := tx.LeadExists(ctx, sub.LeadUUID)
			if err != nil {
				return err
			}
			if exists {
				return fmt.Errorf("%w: lead %s already exists", apperrors.ErrConflict, sub.LeadUUID)
			}

			customer, err := tx.FindOrCreateCustomer(ctx,
				sub.Customer.Email, sub.Customer.Phone,
				sub.Customer.FirstName, sub.Customer.LastName)
			if err != nil {
				return err
			}

			lead = &model.Lead{
				LeadUUID:        sub.LeadUUID,
				CustomerID:      customer.ID,
				ApplicationName: sub.ApplicationName,
				Status:          model.LeadStatusNew,
			}
			if err := tx.CreateLead(ctx, lead); err != nil {
				return err
			}
			lead.Customer = customer

			if sub.Property.HasAny() {
				property := propertyFromPayload(lead.ID, sub.Property)
				if err := tx.CreateLeadProperty(ctx, property); err != nil {
					return err
				}
				lead.Property = property
			}

			return tx.AppendEvent(ctx, newEvent(ctx, model.EventLeadCreated, model.EntityTypeLead, lead.ID, map[string]interface{}{
				"lead_uuid":        lead.LeadUUID,
				"application_name": lead.ApplicationName,
				"customer_id":      customer.ID,
			}))
		})
	}
	err := persist()
	if errors.Is(err, apperrors.ErrDuplicate) {
		// The customer row lock only covers rows that already exist, so two
		// concurrent submissions for a brand-new customer can both insert and
		// the loser aborts on the unique index. The winner's row is committed
		// by the time we see the violation, so one re-run finds and locks it.
		log.Info("Concurrent insert detected, re-running intake transaction", zap.Error(err))
		err = persist()
	}
	observer.ObserveLeadIntakeDuration(sub.ApplicationName, time.Since(startTime))
	if err != nil {
		observer.IncLeadsRejected(sub.ApplicationName)
		log.Warn("Lead creation failed", zap.Error(err))
		return nil, err
	}

	observer.IncLeadsCreated(sub.ApplicationName)
	log.Info("Lead created",
		zap.Uint("lead_id", lead.ID),
		zap.Uint("customer_id", lead.CustomerID))

	// Post-commit side effects. Neither may fail the intake.
	s.handOffDelivery(ctx, lead)
	s.scheduleScoring(ctx, lead)

	return &model.LeadCreatedResult{
		LeadID:         lead.ID,
		LeadUUID:       lead.LeadUUID,
		CustomerID:     lead.CustomerID,
		Status:         lead.Status,
		DeliveryStatus: model.DeliveryStatusPending,
	}, nil
}

func propertyFromPayload(leadID uint, p *model.PropertyPayload) *model.LeadProperty {
	return &model.LeadProperty{
		LeadID:        leadID,
		PropertyID:    p.PropertyID,
		DevelopmentID: p.DevelopmentID,
		PartnerID:     p.PartnerID,
		PropertyType:  p.PropertyType,
		Price:         p.Price,
		Location:      p.Location,
		City:          p.City,
	}
}

// handOffDelivery hands the committed lead to the delivery mechanism. The
// durable queue is preferred; when it is disabled or the publish fails, the
// dispatcher runs directly so the lead still reaches the CDP systems.
func (s *LeadService) handOffDelivery(ctx context.Context, lead *model.Lead) {
	log := logger.FromContext(ctx).With(zap.String("lead_uuid", lead.LeadUUID))

	if s.queueClient != nil {
		correlationID, _ := actor.RequestIDFromContext(ctx)
		job := model.DeliveryJob{
			LeadUUID:      lead.LeadUUID,
			CorrelationID: correlationID,
			EnqueuedAt:    utils.Now(),
		}
		headers := map[string]string{}
		if correlationID != "" {
			headers[queue.HeaderCorrelationID] = correlationID
		}
		err := s.queueClient.Publish(s.queueSubject, utils.MustMarshalJSON(job), headers)
		if err == nil {
			log.Info("Delivery job enqueued", zap.String("subject", s.queueSubject))
			return
		}
		log.Warn("Delivery job publish failed, dispatching synchronously", zap.Error(err))
	}

	s.dispatcher.Dispatch(ctx, lead)
}

// scheduleScoring kicks off best-effort scoring in the background. Failures
// are logged and nothing else; the lead stays unscored.
func (s *LeadService) scheduleScoring(ctx context.Context, lead *model.Lead) {
	if s.scorer == nil {
		return
	}
	bgCtx := context.WithoutCancel(ctx)
	utils.SafeGo(func() {
		s.scoreAndCache(bgCtx, lead)
	}, nil)
}

// scoreAndCache runs one scoring pass and caches the verdict on the lead.
func (s *LeadService) scoreAndCache(ctx context.Context, lead *model.Lead) {
	log := logger.FromContext(ctx).With(zap.String("lead_uuid", lead.LeadUUID))

	score, err := s.scorer.Score(ctx, lead)
	if err != nil {
		log.Warn("Lead scoring failed", zap.Error(err))
		return
	}

	if err := s.repo.UpdateLeadScore(ctx, lead.ID, score); err != nil {
		log.Warn("Failed to cache lead score", zap.Error(err))
		return
	}

	event := newEvent(ctx, model.EventLeadScored, model.EntityTypeLead, lead.ID, map[string]interface{}{
		"lead_uuid": lead.LeadUUID,
		"score":     score.Score,
		"category":  score.Category,
	})
	if err := s.repo.AppendEvent(ctx, event); err != nil {
		log.Warn("Failed to log scoring event", zap.Error(err))
	}

	log.Info("Lead scored",
		zap.Int("score", score.Score),
		zap.String("category", score.Category))
}

// FindLeadByUUID returns a lead with its customer and property loaded.
func (s *LeadService) FindLeadByUUID(ctx context.Context, leadUUID string) (*model.Lead, error) {
	return s.repo.FindLeadByUUID(ctx, leadUUID)
}

// LeadExists reports whether a lead with the given UUID exists.
func (s *LeadService) LeadExists(ctx context.Context, leadUUID string) (bool, error) {
	return s.repo.LeadExists(ctx, leadUUID)
}

// UpdateLeadStatus sets a new status on a lead and logs the transition with
// the old and new values. Any status may follow any other.
func (s *LeadService) UpdateLeadStatus(ctx context.Context, leadUUID, newStatus string) error {
	if !model.IsValidLeadStatus(newStatus) {
		return apperrors.NewValidation(map[string]string{
			"status": fmt.Sprintf("must be one of %v", model.LeadStatuses()),
		})
	}

	return s.repo.RunInTransaction(ctx, func(tx storage.Repository) error {
		lead, err := tx.FindLeadByUUID(ctx, leadUUID)
		if err != nil {
			return err
		}
		oldStatus := lead.Status
		if err := tx.UpdateLeadStatus(ctx, lead.ID, newStatus); err != nil {
			return err
		}

		event := newEvent(ctx, model.EventLeadStatusChanged, model.EntityTypeLead, lead.ID, map[string]interface{}{
			"lead_uuid":  lead.LeadUUID,
			"old_status": oldStatus,
			"new_status": newStatus,
		})
		if err := tx.AppendEvent(ctx, event); err != nil {
			return err
		}

		logger.FromContext(ctx).Info("Lead status changed",
			zap.String("lead_uuid", lead.LeadUUID),
			zap.String("old_status", oldStatus),
			zap.String("new_status", newStatus))
		return nil
	})
}

// DeleteLead hard-deletes a lead and its property extension. The deletion
// event is written before the rows are removed, inside the same transaction,
// so an audit record survives the delete or the whole operation rolls back.
func (s *LeadService) DeleteLead(ctx context.Context, leadUUID string) error {
	return s.repo.RunInTransaction(ctx, func(tx storage.Repository) error {
		lead, err := tx.FindLeadByUUID(ctx, leadUUID)
		if err != nil {
			return err
		}

		event := newEvent(ctx, model.EventLeadDeleted, model.EntityTypeLead, lead.ID, map[string]interface{}{
			"lead_uuid":        lead.LeadUUID,
			"application_name": lead.ApplicationName,
			"customer_id":      lead.CustomerID,
			"status":           lead.Status,
		})
		if err := tx.AppendEvent(ctx, event); err != nil {
			return err
		}

		if err := tx.DeleteLead(ctx, lead); err != nil {
			return err
		}

		logger.FromContext(ctx).Info("Lead deleted",
			zap.String("lead_uuid", lead.LeadUUID),
			zap.Uint("lead_id", lead.ID))
		return nil
	})
}

// GetDeliveryStatus derives the per-system delivery view for a lead from its
// failed-delivery records and audit trail.
func (s *LeadService) GetDeliveryStatus(ctx context.Context, leadUUID string) ([]model.SystemDeliveryState, error) {
	lead, err := s.repo.FindLeadByUUID(ctx, leadUUID)
	if err != nil {
		return nil, err
	}

	states := make(map[string]*model.SystemDeliveryState)
	for _, name := range s.dispatcher.Systems() {
		states[name] = &model.SystemDeliveryState{
			SystemName: name,
			Status:     model.DeliveryStatusPending,
		}
	}

	// Failure records carry the authoritative retry state. They come back
	// newest first, so only the first record per system counts.
	records, err := s.repo.FindFailedDeliveriesByLeadID(ctx, lead.ID)
	if err != nil {
		return nil, err
	}
	seen := make(map[string]bool)
	for i := range records {
		record := &records[i]
		if seen[record.CDPSystemName] {
			continue
		}
		seen[record.CDPSystemName] = true

		state, ok := states[record.CDPSystemName]
		if !ok {
			// System was removed from config; still report it.
			state = &model.SystemDeliveryState{SystemName: record.CDPSystemName}
			states[record.CDPSystemName] = state
		}
		updatedAt := record.CreatedAt
		if record.ResolvedAt != nil {
			updatedAt = *record.ResolvedAt
		}
		state.UpdatedAt = &updatedAt
		switch record.Status {
		case model.DeliveryStatusResolved:
			state.Status = "delivered"
		case model.DeliveryStatusFailed:
			state.Status = model.DeliveryStatusFailed
			state.LastError = record.ErrorMessage
		default:
			state.Status = model.DeliveryStatusRetrying
			state.LastError = record.ErrorMessage
		}
	}

	// First-attempt successes leave no failure record, only an event.
	events, err := s.repo.FindEventsByEntity(ctx, model.EntityTypeLead, lead.ID, 200)
	if err != nil {
		return nil, err
	}
	for i := range events {
		event := &events[i]
		if event.EventType != model.EventDeliverySuccess {
			continue
		}
		var details struct {
			CDPSystem string `json:"cdp_system"`
		}
		if err := json.Unmarshal(event.Details, &details); err != nil || details.CDPSystem == "" {
			continue
		}
		if seen[details.CDPSystem] {
			continue
		}
		state, ok := states[details.CDPSystem]
		if !ok {
			// System was removed from config; still report it.
			state = &model.SystemDeliveryState{SystemName: details.CDPSystem}
			states[details.CDPSystem] = state
		}
		eventTime := event.CreatedAt
		state.Status = "delivered"
		state.UpdatedAt = &eventTime
	}

	result := make([]model.SystemDeliveryState, 0, len(states))
	for _, name := range s.dispatcher.Systems() {
		if state, ok := states[name]; ok {
			result = append(result, *state)
			delete(states, name)
		}
	}
	for _, state := range states {
		result = append(result, *state)
	}
	return result, nil
}
