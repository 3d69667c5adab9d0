package repositories

import (
	"context"
	"errors"
	"fmt"

	"github.com/upb/pipebridge/models"
)

// ErrNotFound is returned when a lookup matches no row
var ErrNotFound = errors.New("record not found")

// StatusError is returned when the data store answers with a non-success
// status. Transport failures are returned as plain wrapped errors.
type StatusError struct {
	Op         string
	StatusCode int
	Body       []byte
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s: data store returned status %d", e.Op, e.StatusCode)
}

// EventRepository handles webhook event persistence
type EventRepository interface {
	// Insert appends an event. The store assigns ID and CreatedAt, which are
	// written back into event.
	Insert(ctx context.Context, event *models.Event) error

	// ListByOrganization returns an organization's events, newest first
	ListByOrganization(ctx context.Context, organizationID string, limit int) ([]*models.Event, error)

	// ListByCard returns a card's events, newest first
	ListByCard(ctx context.Context, cardID string, limit int) ([]*models.Event, error)
}

// ProfileRepository reads app_users records
type ProfileRepository interface {
	// GetWithOrganization returns the profile joined with its organization,
	// or ErrNotFound when the user has no record
	GetWithOrganization(ctx context.Context, userID string) (*models.Profile, error)
}

// OrganizationRepository handles organization data operations
type OrganizationRepository interface {
	// Create inserts an organization and fills in its generated fields
	Create(ctx context.Context, org *models.Organization) error
}

// PipeMappingRepository resolves which organization owns a pipe
type PipeMappingRepository interface {
	// GetOrganizationID returns the organization mapped to pipeID, or ErrNotFound
	GetOrganizationID(ctx context.Context, pipeID string) (string, error)
}

// Repositories holds the repository set used by the application
type Repositories struct {
	Events        EventRepository
	Profiles      ProfileRepository
	Organizations OrganizationRepository
	PipeMappings  PipeMappingRepository
}
