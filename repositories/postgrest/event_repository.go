package postgrest

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/upb/pipebridge/models"
	"github.com/upb/pipebridge/repositories"
)

// eventRow is the pipefy_events row as the data API sends and receives it
type eventRow struct {
	ID             string          `json:"id,omitempty"`
	OrganizationID string          `json:"organization_id"`
	EventType      string          `json:"event_type"`
	PipefyCardID   *string         `json:"pipefy_card_id,omitempty"`
	PipeID         *string         `json:"pipe_id,omitempty"`
	RawPayload     json.RawMessage `json:"raw_payload"`
	CreatedAt      *time.Time      `json:"created_at,omitempty"`
}

func (r *eventRow) toModel() *models.Event {
	e := &models.Event{
		ID:             r.ID,
		OrganizationID: r.OrganizationID,
		EventType:      r.EventType,
		CardID:         r.PipefyCardID,
		PipeID:         r.PipeID,
		RawPayload:     r.RawPayload,
	}
	if r.CreatedAt != nil {
		e.CreatedAt = *r.CreatedAt
	}
	return e
}

// EventRepository implements repositories.EventRepository over the data API
type EventRepository struct {
	client *Client
	logger *zap.Logger
}

// NewEventRepository creates a new event repository
func NewEventRepository(client *Client, logger *zap.Logger) repositories.EventRepository {
	return &EventRepository{
		client: client,
		logger: logger,
	}
}

// Insert appends an event and copies the stored id and timestamp back
func (r *EventRepository) Insert(ctx context.Context, event *models.Event) error {
	row := eventRow{
		OrganizationID: event.OrganizationID,
		EventType:      event.EventType,
		PipefyCardID:   event.CardID,
		PipeID:         event.PipeID,
		RawPayload:     event.RawPayload,
	}

	var created []eventRow
	err := r.client.do(ctx, request{
		op:     "insert_event",
		method: http.MethodPost,
		table:  models.Event{}.TableName(),
		body:   row,
		prefer: "return=representation",
	}, &created)
	if err != nil {
		return err
	}
	if len(created) == 0 {
		return fmt.Errorf("insert_event: data API returned no representation")
	}

	stored := created[0].toModel()
	event.ID = stored.ID
	event.CreatedAt = stored.CreatedAt

	r.logger.Debug("event stored",
		zap.String("id", event.ID),
		zap.String("organization_id", event.OrganizationID),
		zap.String("event_type", event.EventType),
	)
	return nil
}

// ListByOrganization returns an organization's events, newest first
func (r *EventRepository) ListByOrganization(ctx context.Context, organizationID string, limit int) ([]*models.Event, error) {
	return r.list(ctx, "list_events_by_organization", "organization_id", organizationID, limit)
}

// ListByCard returns a card's events, newest first
func (r *EventRepository) ListByCard(ctx context.Context, cardID string, limit int) ([]*models.Event, error) {
	return r.list(ctx, "list_events_by_card", "pipefy_card_id", cardID, limit)
}

func (r *EventRepository) list(ctx context.Context, op, column, value string, limit int) ([]*models.Event, error) {
	query := url.Values{}
	query.Set("select", "*")
	query.Set(column, eq(value))
	query.Set("order", "created_at.desc")
	query.Set("limit", strconv.Itoa(limit))

	var rows []eventRow
	if err := r.client.do(ctx, request{
		op:     op,
		method: http.MethodGet,
		table:  models.Event{}.TableName(),
		query:  query,
	}, &rows); err != nil {
		return nil, err
	}

	events := make([]*models.Event, 0, len(rows))
	for i := range rows {
		events = append(events, rows[i].toModel())
	}
	return events, nil
}
