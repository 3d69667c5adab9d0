// Package webhook turns Pipefy webhook deliveries into stored events.
//
// A delivery moves through RECEIVED, VALIDATED, optionally ENRICHED,
// PERSISTED and ACKNOWLEDGED. Decode or validation failures end in REJECTED,
// enrichment or persistence failures in FAILED. Every terminal state is
// logged and counted.
package webhook

import (
	"bytes"
	"context"
	"encoding/json"

	"go.uber.org/zap"

	"github.com/upb/pipebridge/internal/observability"
	"github.com/upb/pipebridge/models"
	"github.com/upb/pipebridge/services"
	"github.com/upb/pipebridge/services/events"
)

// CardFetcher re-fetches a card from Pipefy
type CardFetcher interface {
	FetchCard(ctx context.Context, cardID string) (*models.CardSnapshot, json.RawMessage, error)
}

// EventLog appends and lists events
type EventLog interface {
	Append(ctx context.Context, in events.AppendInput) (*models.Event, error)
	ListByOrganization(ctx context.Context, organizationID string, limit int) ([]*models.Event, error)
	ListByCard(ctx context.Context, cardID string, limit int) ([]*models.Event, error)
}

// TenantResolver maps a pipe to its organization
type TenantResolver interface {
	Resolve(ctx context.Context, pipeID string) (string, error)
}

// CardEventResult acknowledges a card lifecycle webhook
type CardEventResult struct {
	EventID   string `json:"event_id"`
	EventType string `json:"event_type"`
}

// PhaseTransitionResult acknowledges a phase transition webhook
type PhaseTransitionResult struct {
	CardID  string          `json:"card_id"`
	Details json.RawMessage `json:"details"`
	Event   *models.Event   `json:"event"`
}

// Ingestor normalizes webhook payloads and persists them
type Ingestor struct {
	events         EventLog
	cards          CardFetcher
	tenants        TenantResolver
	organizationID string
	metrics        observability.MetricsRecorder
	logger         *zap.Logger
}

// NewIngestor creates an ingestor. organizationID owns every
// card_details_fetched event.
func NewIngestor(eventLog EventLog, cards CardFetcher, tenants TenantResolver, organizationID string, metrics observability.MetricsRecorder, logger *zap.Logger) *Ingestor {
	if metrics == nil {
		metrics = observability.NopMetrics{}
	}
	return &Ingestor{
		events:         eventLog,
		cards:          cards,
		tenants:        tenants,
		organizationID: organizationID,
		metrics:        metrics,
		logger:         logger,
	}
}

// IngestCardEvent stores a card lifecycle webhook. raw is the request body as
// received; payload is its decoded and validated form.
func (i *Ingestor) IngestCardEvent(ctx context.Context, raw []byte, payload *models.PipefyWebhookPayload) (*CardEventResult, error) {
	shape := observability.ShapeCardEvent
	eventType := payload.Data.Action
	cardID := payload.CardID()
	pipeID := payload.PipeID()

	log := i.logger.With(
		zap.String("shape", shape),
		zap.String("event_type", eventType),
		zap.String("card_id", cardID),
		zap.String("pipe_id", pipeID),
	)
	log.Debug("webhook validated")

	rawPayload, err := compact(raw)
	if err != nil {
		return nil, i.fail(log, shape, "webhook body is not valid JSON",
			services.WrapError(services.ErrorTypeValidation, "invalid JSON body", err))
	}

	orgID, err := i.tenants.Resolve(ctx, pipeID)
	if err != nil {
		return nil, i.fail(log, shape, "tenant resolution failed", err)
	}

	event, err := i.events.Append(ctx, events.AppendInput{
		OrganizationID: orgID,
		EventType:      eventType,
		RawPayload:     rawPayload,
		CardID:         cardID,
		PipeID:         pipeID,
	})
	if err != nil {
		return nil, i.fail(log, shape, "event persistence failed", err)
	}

	i.metrics.RecordWebhook(shape, observability.OutcomeAcknowledged)
	log.Info("webhook acknowledged",
		zap.String("event_id", event.ID),
		zap.String("organization_id", orgID),
	)
	return &CardEventResult{EventID: event.ID, EventType: event.EventType}, nil
}

// IngestPhaseTransition re-fetches the moved card once and stores the fetched
// snapshot once as a card_details_fetched event.
func (i *Ingestor) IngestPhaseTransition(ctx context.Context, payload *models.PhaseTransitionPayload) (*PhaseTransitionResult, error) {
	shape := observability.ShapePhaseTransition
	cardID := payload.Data.Card.ID.String()
	pipeID := payload.Data.Card.PipeID.String()

	log := i.logger.With(
		zap.String("shape", shape),
		zap.String("action", payload.Data.Action),
		zap.String("card_id", cardID),
	)
	if payload.Data.From != nil && payload.Data.To != nil {
		log = log.With(
			zap.String("from_phase", payload.Data.From.Name),
			zap.String("to_phase", payload.Data.To.Name),
		)
	}
	log.Debug("webhook validated")

	card, details, err := i.cards.FetchCard(ctx, cardID)
	if err != nil {
		return nil, i.fail(log, shape, "card enrichment failed", err)
	}
	log.Debug("card details fetched", zap.String("title", card.Title))

	event, err := i.events.Append(ctx, events.AppendInput{
		OrganizationID: i.organizationID,
		EventType:      models.EventTypeCardDetailsFetched,
		RawPayload:     details,
		CardID:         cardID,
		PipeID:         pipeID,
	})
	if err != nil {
		return nil, i.fail(log, shape, "event persistence failed", err)
	}

	i.metrics.RecordWebhook(shape, observability.OutcomeAcknowledged)
	log.Info("webhook acknowledged", zap.String("event_id", event.ID))
	return &PhaseTransitionResult{
		CardID:  cardID,
		Details: details,
		Event:   event,
	}, nil
}

// Reject records a delivery that failed decoding or validation
func (i *Ingestor) Reject(shape string, err error) {
	i.metrics.RecordWebhook(shape, observability.OutcomeRejected)
	i.logger.Info("webhook rejected", zap.String("shape", shape), zap.Error(err))
}

// ListByOrganization returns the organization's events, newest first
func (i *Ingestor) ListByOrganization(ctx context.Context, organizationID string, limit int) ([]*models.Event, error) {
	return i.events.ListByOrganization(ctx, organizationID, limit)
}

// ListByCard returns the card's events, newest first
func (i *Ingestor) ListByCard(ctx context.Context, cardID string, limit int) ([]*models.Event, error) {
	return i.events.ListByCard(ctx, cardID, limit)
}

func (i *Ingestor) fail(log *zap.Logger, shape, msg string, err error) error {
	outcome := observability.OutcomeFailed
	if services.IsValidationError(err) || services.IsUnmappedTenantError(err) {
		outcome = observability.OutcomeRejected
	}
	i.metrics.RecordWebhook(shape, outcome)
	log.Error(msg, zap.String("outcome", outcome), zap.Error(err))
	return err
}

func compact(raw []byte) (json.RawMessage, error) {
	var buf bytes.Buffer
	if err := json.Compact(&buf, raw); err != nil {
		return nil, err
	}
	return json.RawMessage(buf.Bytes()), nil
}
