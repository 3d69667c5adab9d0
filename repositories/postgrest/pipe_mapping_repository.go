package postgrest

import (
	"context"
	"net/http"
	"net/url"

	"go.uber.org/zap"

	"github.com/upb/pipebridge/models"
	"github.com/upb/pipebridge/repositories"
)

// PipeMappingRepository implements repositories.PipeMappingRepository over the data API
type PipeMappingRepository struct {
	client *Client
	logger *zap.Logger
}

// NewPipeMappingRepository creates a new pipe mapping repository
func NewPipeMappingRepository(client *Client, logger *zap.Logger) repositories.PipeMappingRepository {
	return &PipeMappingRepository{
		client: client,
		logger: logger,
	}
}

// GetOrganizationID looks up the organization that owns pipeID
func (r *PipeMappingRepository) GetOrganizationID(ctx context.Context, pipeID string) (string, error) {
	query := url.Values{}
	query.Set("select", "pipe_id,organization_id")
	query.Set("pipe_id", eq(pipeID))
	query.Set("limit", "1")

	var rows []models.PipeMapping
	if err := r.client.do(ctx, request{
		op:     "get_pipe_mapping",
		method: http.MethodGet,
		table:  models.PipeMapping{}.TableName(),
		query:  query,
	}, &rows); err != nil {
		return "", err
	}
	if len(rows) == 0 || rows[0].OrganizationID == "" {
		return "", repositories.ErrNotFound
	}
	return rows[0].OrganizationID, nil
}
