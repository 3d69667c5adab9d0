// Package profile resolves an authenticated identity into its tenant-scoped
// app_users profile.
package profile

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/upb/pipebridge/models"
	"github.com/upb/pipebridge/repositories"
)

var (
	// ErrProfileNotFound means the identity has no app_users record
	ErrProfileNotFound = errors.New("profile not found")

	// ErrProfileDegraded means the lookup failed; the cause is wrapped
	ErrProfileDegraded = errors.New("profile lookup degraded")
)

// Resolver looks up profiles. Resolve only ever fails with
// ErrProfileNotFound or an error wrapping ErrProfileDegraded.
type Resolver struct {
	profiles repositories.ProfileRepository
	logger   *zap.Logger
}

// NewResolver creates a profile resolver
func NewResolver(profiles repositories.ProfileRepository, logger *zap.Logger) *Resolver {
	return &Resolver{
		profiles: profiles,
		logger:   logger,
	}
}

// Resolve fetches the profile for userID joined with its organization
func (r *Resolver) Resolve(ctx context.Context, userID string) (*models.Profile, error) {
	p, err := r.profiles.GetWithOrganization(ctx, userID)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return nil, ErrProfileNotFound
		}
		return nil, fmt.Errorf("%w: %v", ErrProfileDegraded, err)
	}
	return p, nil
}

// Fallback synthesizes the minimal profile used when none can be resolved
func (r *Resolver) Fallback(identity *models.Identity) *models.Profile {
	return models.NewFallbackProfile(identity)
}

// ResolveOrFallback never fails: lookup problems yield the fallback profile
func (r *Resolver) ResolveOrFallback(ctx context.Context, identity *models.Identity) *models.Profile {
	p, err := r.Resolve(ctx, identity.UserID)
	switch {
	case err == nil:
		return p
	case errors.Is(err, ErrProfileNotFound):
		r.logger.Debug("no profile for identity, using fallback", zap.String("user_id", identity.UserID))
	default:
		r.logger.Warn("profile lookup failed, using fallback",
			zap.String("user_id", identity.UserID),
			zap.Error(err),
		)
	}
	return r.Fallback(identity)
}
