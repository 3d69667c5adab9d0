// Package events is the append-only webhook event log.
package events

import (
	"context"
	"encoding/json"
	"errors"

	"go.uber.org/zap"

	"github.com/upb/pipebridge/models"
	"github.com/upb/pipebridge/repositories"
	"github.com/upb/pipebridge/services"
)

// List limits
const (
	DefaultLimit = 100
	MaxLimit     = 1000
)

// AppendInput is one event to record. Empty CardID and PipeID are omitted.
type AppendInput struct {
	OrganizationID string
	EventType      string
	RawPayload     json.RawMessage
	CardID         string
	PipeID         string
}

// Store appends and lists events. It never deduplicates.
type Store struct {
	repo   repositories.EventRepository
	logger *zap.Logger
}

// NewStore creates an event store over repo
func NewStore(repo repositories.EventRepository, logger *zap.Logger) *Store {
	return &Store{
		repo:   repo,
		logger: logger,
	}
}

// Append persists one event and returns it with its id and created_at
func (s *Store) Append(ctx context.Context, in AppendInput) (*models.Event, error) {
	if in.OrganizationID == "" || in.EventType == "" {
		return nil, services.NewDomainError(services.ErrorTypeValidation, "organization and event type are required", nil)
	}
	if len(in.RawPayload) == 0 {
		in.RawPayload = json.RawMessage("{}")
	}

	event := models.NewEvent(in.OrganizationID, in.EventType, in.RawPayload, in.CardID, in.PipeID)
	if err := s.repo.Insert(ctx, event); err != nil {
		s.logger.Error("failed to append event",
			zap.String("organization_id", in.OrganizationID),
			zap.String("event_type", in.EventType),
			zap.Error(err),
		)
		return nil, persistenceError("failed to store event", err)
	}

	s.logger.Info("event appended",
		zap.String("event_id", event.ID),
		zap.String("organization_id", event.OrganizationID),
		zap.String("event_type", event.EventType),
		zap.String("card_id", in.CardID),
	)
	return event, nil
}

// ListByOrganization returns up to limit events of the organization, newest first
func (s *Store) ListByOrganization(ctx context.Context, organizationID string, limit int) ([]*models.Event, error) {
	limit, err := NormalizeLimit(limit)
	if err != nil {
		return nil, err
	}
	events, err := s.repo.ListByOrganization(ctx, organizationID, limit)
	if err != nil {
		return nil, persistenceError("failed to list events", err)
	}
	return nonNil(events), nil
}

// ListByCard returns up to limit events of the card, newest first
func (s *Store) ListByCard(ctx context.Context, cardID string, limit int) ([]*models.Event, error) {
	limit, err := NormalizeLimit(limit)
	if err != nil {
		return nil, err
	}
	events, err := s.repo.ListByCard(ctx, cardID, limit)
	if err != nil {
		return nil, persistenceError("failed to list events", err)
	}
	return nonNil(events), nil
}

// NormalizeLimit applies the list limit policy: 0 means DefaultLimit,
// negatives are rejected, values above MaxLimit are clamped.
func NormalizeLimit(limit int) (int, error) {
	switch {
	case limit == 0:
		return DefaultLimit, nil
	case limit < 0:
		return 0, services.NewDomainError(services.ErrorTypeValidation, "limit must be at least 1", nil).
			WithDetail("limit", limit)
	case limit > MaxLimit:
		return MaxLimit, nil
	default:
		return limit, nil
	}
}

func persistenceError(message string, err error) *services.DomainError {
	derr := services.WrapPersistence(message, err)
	var statusErr *repositories.StatusError
	if errors.As(err, &statusErr) {
		derr.WithUpstream(statusErr.StatusCode, statusErr.Body)
	}
	return derr
}

func nonNil(events []*models.Event) []*models.Event {
	if events == nil {
		return []*models.Event{}
	}
	return events
}
