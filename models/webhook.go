package models

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// FlexibleID is an external identifier that Pipefy may send either as a JSON
// string or as a JSON number. It always marshals as a string.
type FlexibleID string

// UnmarshalJSON implements json.Unmarshaler accepting strings, numbers and null
func (id *FlexibleID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*id = ""
		return nil
	}

	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		*id = FlexibleID(s)
		return nil
	}

	var n json.Number
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	if err := dec.Decode(&n); err != nil {
		return fmt.Errorf("id must be a string or a number, got %s", string(data))
	}
	*id = FlexibleID(n.String())
	return nil
}

// String returns the identifier as a plain string
func (id FlexibleID) String() string {
	return string(id)
}

// PipeRef identifies the pipe a card belongs to
type PipeRef struct {
	ID FlexibleID `json:"id"`
}

// PipefyCard is the card object carried by generic card lifecycle webhooks
type PipefyCard struct {
	ID            FlexibleID               `json:"id" validate:"required"`
	Title         string                   `json:"title,omitempty"`
	DueDate       *string                  `json:"due_date,omitempty"`
	Assignees     []map[string]interface{} `json:"assignees,omitempty"`
	Comments      []map[string]interface{} `json:"comments,omitempty"`
	CommentsCount int                      `json:"comments_count,omitempty"`
	CurrentPhase  map[string]interface{}   `json:"current_phase,omitempty"`
	Done          bool                     `json:"done,omitempty"`
	Fields        []map[string]interface{} `json:"fields,omitempty"`
	Labels        []map[string]interface{} `json:"labels,omitempty"`
	PhasesHistory []map[string]interface{} `json:"phases_history,omitempty"`
	Pipe          *PipeRef                 `json:"pipe,omitempty"`
	URL           string                   `json:"url,omitempty"`
}

// PipefyWebhookData is the data object of a generic card lifecycle webhook
type PipefyWebhookData struct {
	Action     string                 `json:"action" validate:"required"`
	Card       *PipefyCard            `json:"card,omitempty" validate:"omitempty"`
	FromPhase  *PhaseRef              `json:"from_phase,omitempty"`
	OnPhase    *PhaseRef              `json:"on_phase,omitempty"`
	Field      map[string]interface{} `json:"field,omitempty"`
	FieldValue interface{}            `json:"field_value,omitempty"`
}

// PipefyWebhookPayload is a generic card lifecycle webhook (card.create,
// card.move, card.done, card.field_update, ...)
type PipefyWebhookPayload struct {
	Data *PipefyWebhookData `json:"data" validate:"required"`
}

// CardID returns data.card.id, or "" when the payload carries no card
func (p *PipefyWebhookPayload) CardID() string {
	if p.Data == nil || p.Data.Card == nil {
		return ""
	}
	return p.Data.Card.ID.String()
}

// PipeID returns data.card.pipe.id, or "" when absent
func (p *PipefyWebhookPayload) PipeID() string {
	if p.Data == nil || p.Data.Card == nil || p.Data.Card.Pipe == nil {
		return ""
	}
	return p.Data.Card.Pipe.ID.String()
}

// Mover is the Pipefy user that moved a card between phases
type Mover struct {
	ID        FlexibleID `json:"id"`
	Name      string     `json:"name"`
	Username  string     `json:"username"`
	Email     string     `json:"email" validate:"omitempty,email"`
	AvatarURL string     `json:"avatar_url" validate:"omitempty,url"`
}

// CardRef is the minimal card reference carried by phase transition webhooks
type CardRef struct {
	ID     FlexibleID `json:"id" validate:"required"`
	Title  string     `json:"title"`
	PipeID FlexibleID `json:"pipe_id"`
}

// PhaseTransitionData is the data object of a phase transition webhook
type PhaseTransitionData struct {
	Action  string    `json:"action" validate:"required"`
	From    *PhaseRef `json:"from" validate:"required"`
	To      *PhaseRef `json:"to" validate:"required"`
	MovedBy *Mover    `json:"moved_by" validate:"required"`
	Card    *CardRef  `json:"card" validate:"required"`
}

// PhaseTransitionPayload is the webhook that triggers a live re-fetch of a card
type PhaseTransitionPayload struct {
	Data *PhaseTransitionData `json:"data" validate:"required"`
}
