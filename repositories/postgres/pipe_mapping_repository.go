package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/upb/pipebridge/repositories"
)

// PipeMappingRepository implements the repositories.PipeMappingRepository interface
type PipeMappingRepository struct {
	db     *DB
	logger *zap.Logger
}

// NewPipeMappingRepository creates a new pipe mapping repository
func NewPipeMappingRepository(db *DB, logger *zap.Logger) repositories.PipeMappingRepository {
	return &PipeMappingRepository{
		db:     db,
		logger: logger,
	}
}

// GetOrganizationID returns the organization that owns pipeID
func (r *PipeMappingRepository) GetOrganizationID(ctx context.Context, pipeID string) (string, error) {
	query := `
		SELECT organization_id
		FROM pipe_organizations
		WHERE pipe_id = $1
	`

	var organizationID string
	err := r.db.QueryRowContext(ctx, query, pipeID).Scan(&organizationID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", repositories.ErrNotFound
		}
		return "", fmt.Errorf("failed to get pipe mapping: %w", err)
	}

	return organizationID, nil
}
