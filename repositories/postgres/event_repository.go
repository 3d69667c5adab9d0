package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"go.uber.org/zap"

	"github.com/upb/pipebridge/models"
	"github.com/upb/pipebridge/repositories"
)

// EventRepository implements the repositories.EventRepository interface
type EventRepository struct {
	db     *DB
	logger *zap.Logger
}

// NewEventRepository creates a new event repository
func NewEventRepository(db *DB, logger *zap.Logger) repositories.EventRepository {
	return &EventRepository{
		db:     db,
		logger: logger,
	}
}

// Insert appends an event; id and created_at come from column defaults
func (r *EventRepository) Insert(ctx context.Context, event *models.Event) error {
	query := `
		INSERT INTO pipefy_events (organization_id, event_type, pipefy_card_id, pipe_id, raw_payload)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, created_at
	`

	err := r.db.QueryRowContext(ctx, query,
		event.OrganizationID,
		event.EventType,
		event.CardID,
		event.PipeID,
		string(event.RawPayload),
	).Scan(&event.ID, &event.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert event: %w", err)
	}

	r.logger.Debug("event stored",
		zap.String("id", event.ID),
		zap.String("organization_id", event.OrganizationID),
		zap.String("event_type", event.EventType),
	)
	return nil
}

// ListByOrganization returns an organization's events, newest first
func (r *EventRepository) ListByOrganization(ctx context.Context, organizationID string, limit int) ([]*models.Event, error) {
	query := `
		SELECT id, organization_id, event_type, pipefy_card_id, pipe_id, raw_payload, created_at
		FROM pipefy_events
		WHERE organization_id = $1
		ORDER BY created_at DESC
		LIMIT $2
	`
	return r.list(ctx, query, organizationID, limit)
}

// ListByCard returns a card's events, newest first
func (r *EventRepository) ListByCard(ctx context.Context, cardID string, limit int) ([]*models.Event, error) {
	query := `
		SELECT id, organization_id, event_type, pipefy_card_id, pipe_id, raw_payload, created_at
		FROM pipefy_events
		WHERE pipefy_card_id = $1
		ORDER BY created_at DESC
		LIMIT $2
	`
	return r.list(ctx, query, cardID, limit)
}

func (r *EventRepository) list(ctx context.Context, query, value string, limit int) ([]*models.Event, error) {
	rows, err := r.db.QueryContext(ctx, query, value, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list events: %w", err)
	}
	defer rows.Close()

	events := make([]*models.Event, 0)
	for rows.Next() {
		event := &models.Event{}
		var raw []byte
		if err := rows.Scan(
			&event.ID,
			&event.OrganizationID,
			&event.EventType,
			&event.CardID,
			&event.PipeID,
			&raw,
			&event.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan event: %w", err)
		}
		event.RawPayload = json.RawMessage(raw)
		events = append(events, event)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating events: %w", err)
	}

	return events, nil
}
