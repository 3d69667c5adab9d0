package models

// CardSnapshot is a transient view of a Pipefy card fetched on demand.
// It is only persisted as the raw payload of a card_details_fetched event.
type CardSnapshot struct {
	ID           string       `json:"id"`
	Title        string       `json:"title"`
	CurrentPhase *PhaseRef    `json:"current_phase,omitempty"`
	Fields       []CardField  `json:"fields"`
	Assignees    []CardPerson `json:"assignees"`
	Labels       []CardLabel  `json:"labels"`
	CreatedAt    string       `json:"created_at,omitempty"`
	UpdatedAt    string       `json:"updated_at,omitempty"`
	DueDate      *string      `json:"due_date,omitempty"`
	URL          string       `json:"url,omitempty"`
}

// PhaseRef identifies a pipe phase
type PhaseRef struct {
	ID   FlexibleID `json:"id"`
	Name string     `json:"name"`
}

// CardField is a filled-in field on a card
type CardField struct {
	Name  string           `json:"name"`
	Value interface{}      `json:"value"`
	Field *FieldDefinition `json:"field,omitempty"`
}

// FieldDefinition describes the pipe field behind a CardField
type FieldDefinition struct {
	ID    string `json:"id"`
	Label string `json:"label"`
	Type  string `json:"type"`
}

// CardPerson is an assignee on a card
type CardPerson struct {
	ID    FlexibleID `json:"id"`
	Name  string     `json:"name"`
	Email string     `json:"email,omitempty"`
}

// CardLabel is a label attached to a card
type CardLabel struct {
	ID    FlexibleID `json:"id"`
	Name  string     `json:"name"`
	Color string     `json:"color,omitempty"`
}
