package models

import (
	"encoding/json"
	"time"
)

// UserRole represents the role of a user within an organization
type UserRole string

const (
	RoleAdmin  UserRole = "admin"
	RoleMember UserRole = "member"
	RoleViewer UserRole = "viewer"

	// RoleUnprovisioned is assigned to authenticated identities that have no
	// app_users record yet. It grants nothing by itself.
	RoleUnprovisioned UserRole = "unprovisioned"
)

// Identity is the result of validating a bearer token against the auth service.
// It is re-derived on every request and never cached.
type Identity struct {
	UserID   string                 `json:"id"`
	Email    string                 `json:"email"`
	Metadata map[string]interface{} `json:"user_metadata,omitempty"`
	Raw      json.RawMessage        `json:"-"`
}

// DisplayName returns user_metadata.name, or "" when absent
func (i *Identity) DisplayName() string {
	if i == nil || i.Metadata == nil {
		return ""
	}
	name, _ := i.Metadata["name"].(string)
	return name
}

// Profile is the tenant-scoped app_users record joined with its organization
type Profile struct {
	ID             string        `json:"id"`
	Email          string        `json:"email"`
	Name           string        `json:"name"`
	Role           UserRole      `json:"role"`
	Phone          *string       `json:"phone,omitempty"`
	Address        *string       `json:"address,omitempty"`
	OrganizationID *string       `json:"organization_id,omitempty"`
	Organization   *Organization `json:"organization,omitempty"`
	CreatedAt      *time.Time    `json:"created_at,omitempty"`

	// Provisioned is false for profiles synthesized from a bare identity.
	Provisioned bool `json:"-"`
}

// TableName returns the table name for the Profile model
func (Profile) TableName() string {
	return "app_users"
}

// NewFallbackProfile synthesizes a minimal profile for an identity that has
// no app_users record.
func NewFallbackProfile(identity *Identity) *Profile {
	return &Profile{
		ID:          identity.UserID,
		Email:       identity.Email,
		Name:        identity.DisplayName(),
		Role:        RoleUnprovisioned,
		Provisioned: false,
	}
}

// IsAdmin returns true if the user has admin role
func (p *Profile) IsAdmin() bool {
	return p.Role == RoleAdmin
}

// OrganizationName returns the joined organization's name, or "" when absent
func (p *Profile) OrganizationName() string {
	if p.Organization == nil {
		return ""
	}
	return p.Organization.Name
}

// BelongsTo reports whether the profile is linked to the given organization
func (p *Profile) BelongsTo(organizationID string) bool {
	return p.OrganizationID != nil && *p.OrganizationID == organizationID
}

// Session is the outcome of a password login
type Session struct {
	AccessToken string    `json:"access_token"`
	TokenType   string    `json:"token_type"`
	ExpiresIn   int       `json:"expires_in"`
	ExpiresAt   time.Time `json:"expires_at"`
	Identity    *Identity `json:"-"`
}
