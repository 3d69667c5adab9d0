package models

import (
	"time"
)

// Organization represents a tenant in the multi-tenant system
type Organization struct {
	ID        string     `json:"id"`
	Name      string     `json:"name"`
	LegalName *string    `json:"legal_name,omitempty"`
	TaxID     *string    `json:"tax_id,omitempty"`
	CreatedAt *time.Time `json:"created_at,omitempty"`
}

// TableName returns the table name for the Organization model
func (Organization) TableName() string {
	return "organization"
}

// NewOrganization creates a new Organization instance ready to be inserted.
// Empty legal name and tax id are left unset.
func NewOrganization(name, legalName, taxID string) *Organization {
	org := &Organization{Name: name}
	if legalName != "" {
		org.LegalName = &legalName
	}
	if taxID != "" {
		org.TaxID = &taxID
	}
	return org
}
