package postgrest

import (
	"context"
	"net/http"
	"net/url"

	"go.uber.org/zap"

	"github.com/upb/pipebridge/models"
	"github.com/upb/pipebridge/repositories"
)

// profileSelect embeds the linked organization through its foreign key
const profileSelect = "*,organization:organization_id(id,name,legal_name,tax_id)"

// ProfileRepository implements repositories.ProfileRepository over the data API
type ProfileRepository struct {
	client *Client
	logger *zap.Logger
}

// NewProfileRepository creates a new profile repository
func NewProfileRepository(client *Client, logger *zap.Logger) repositories.ProfileRepository {
	return &ProfileRepository{
		client: client,
		logger: logger,
	}
}

// GetWithOrganization returns the user's app_users row joined with its organization
func (r *ProfileRepository) GetWithOrganization(ctx context.Context, userID string) (*models.Profile, error) {
	query := url.Values{}
	query.Set("select", profileSelect)
	query.Set("id", eq(userID))

	var rows []models.Profile
	if err := r.client.do(ctx, request{
		op:     "get_profile",
		method: http.MethodGet,
		table:  models.Profile{}.TableName(),
		query:  query,
	}, &rows); err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, repositories.ErrNotFound
	}

	profile := rows[0]
	profile.Provisioned = true
	return &profile, nil
}
