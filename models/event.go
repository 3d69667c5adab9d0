package models

import (
	"encoding/json"
	"time"
)

// EventTypeCardDetailsFetched marks events whose raw payload is a card
// snapshot re-fetched from Pipefy.
const EventTypeCardDetailsFetched = "card_details_fetched"

// Event is an append-only record of a single webhook occurrence.
// ID and CreatedAt are assigned by the store on creation.
type Event struct {
	ID             string          `json:"id" db:"id"`
	OrganizationID string          `json:"organization_id" db:"organization_id"`
	EventType      string          `json:"event_type" db:"event_type"`
	CardID         *string         `json:"card_id,omitempty" db:"pipefy_card_id"`
	PipeID         *string         `json:"pipe_id,omitempty" db:"pipe_id"`
	RawPayload     json.RawMessage `json:"raw_payload" db:"raw_payload"` // JSONB, stored verbatim
	CreatedAt      time.Time       `json:"created_at" db:"created_at"`
}

// TableName returns the table name for the Event model
func (Event) TableName() string {
	return "pipefy_events"
}

// NewEvent builds an unsaved event. Empty card and pipe ids are left unset so
// the store sees the columns omitted rather than null.
func NewEvent(organizationID, eventType string, rawPayload json.RawMessage, cardID, pipeID string) *Event {
	e := &Event{
		OrganizationID: organizationID,
		EventType:      eventType,
		RawPayload:     rawPayload,
	}
	if cardID != "" {
		e.CardID = &cardID
	}
	if pipeID != "" {
		e.PipeID = &pipeID
	}
	return e
}

// PipeMapping links a Pipefy pipe to the organization that owns its events
type PipeMapping struct {
	PipeID         string `json:"pipe_id" db:"pipe_id"`
	OrganizationID string `json:"organization_id" db:"organization_id"`
}

// TableName returns the table name for the PipeMapping model
func (PipeMapping) TableName() string {
	return "pipe_organizations"
}
