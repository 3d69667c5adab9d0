// Package tenant maps Pipefy pipes to the organizations that own their events.
package tenant

import (
	"context"
	"errors"
	"strings"

	"go.uber.org/zap"

	"github.com/upb/pipebridge/repositories"
	"github.com/upb/pipebridge/services"
)

// Resolver looks a pipe up in the configured static map first and in the
// pipe_organizations table second. There is no default organization.
type Resolver struct {
	static   map[string]string
	mappings repositories.PipeMappingRepository
	logger   *zap.Logger
}

// NewResolver creates a tenant resolver. mappings may be nil, in which case
// only the static map is consulted.
func NewResolver(static map[string]string, mappings repositories.PipeMappingRepository, logger *zap.Logger) *Resolver {
	if static == nil {
		static = map[string]string{}
	}
	return &Resolver{
		static:   static,
		mappings: mappings,
		logger:   logger,
	}
}

// Resolve returns the organization id owning pipeID
func (r *Resolver) Resolve(ctx context.Context, pipeID string) (string, error) {
	pipeID = strings.TrimSpace(pipeID)
	if pipeID == "" {
		return "", services.NewDomainError(services.ErrorTypeUnmappedTenant, "event carries no pipe id", nil)
	}

	if orgID, ok := r.static[pipeID]; ok {
		return orgID, nil
	}

	if r.mappings == nil {
		return "", unmapped(pipeID)
	}

	orgID, err := r.mappings.GetOrganizationID(ctx, pipeID)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			r.logger.Warn("pipe has no organization mapping", zap.String("pipe_id", pipeID))
			return "", unmapped(pipeID)
		}
		r.logger.Error("failed to resolve pipe organization", zap.String("pipe_id", pipeID), zap.Error(err))
		derr := services.WrapPersistence("failed to resolve pipe organization", err)
		var statusErr *repositories.StatusError
		if errors.As(err, &statusErr) {
			derr.WithUpstream(statusErr.StatusCode, statusErr.Body)
		}
		return "", derr
	}
	if orgID == "" {
		return "", unmapped(pipeID)
	}
	return orgID, nil
}

func unmapped(pipeID string) error {
	return services.NewDomainError(services.ErrorTypeUnmappedTenant, "pipe is not mapped to an organization", nil).
		WithDetail("pipe_id", pipeID)
}
