package postgrest

import (
	"context"
	"fmt"
	"net/http"

	"go.uber.org/zap"

	"github.com/upb/pipebridge/models"
	"github.com/upb/pipebridge/repositories"
)

// organizationRow omits the generated columns on insert
type organizationRow struct {
	Name      string  `json:"name"`
	LegalName *string `json:"legal_name,omitempty"`
	TaxID     *string `json:"tax_id,omitempty"`
}

// OrganizationRepository implements repositories.OrganizationRepository over the data API
type OrganizationRepository struct {
	client *Client
	logger *zap.Logger
}

// NewOrganizationRepository creates a new organization repository
func NewOrganizationRepository(client *Client, logger *zap.Logger) repositories.OrganizationRepository {
	return &OrganizationRepository{
		client: client,
		logger: logger,
	}
}

// Create inserts org and replaces it with the stored representation
func (r *OrganizationRepository) Create(ctx context.Context, org *models.Organization) error {
	var created []models.Organization
	err := r.client.do(ctx, request{
		op:     "create_organization",
		method: http.MethodPost,
		table:  models.Organization{}.TableName(),
		body: organizationRow{
			Name:      org.Name,
			LegalName: org.LegalName,
			TaxID:     org.TaxID,
		},
		prefer: "return=representation",
	}, &created)
	if err != nil {
		return err
	}
	if len(created) == 0 {
		return fmt.Errorf("create_organization: data API returned no representation")
	}

	*org = created[0]
	r.logger.Info("organization created", zap.String("id", org.ID), zap.String("name", org.Name))
	return nil
}
