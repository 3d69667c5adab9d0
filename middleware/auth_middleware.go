package middleware

import (
	"context"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/upb/pipebridge/models"
	"github.com/upb/pipebridge/services"
	"github.com/upb/pipebridge/services/identity"
	"github.com/upb/pipebridge/utils"
)

// TokenResolver validates a bearer token against the auth service
type TokenResolver interface {
	ResolveToken(ctx context.Context, token string) (*models.Identity, error)
}

// ProfileResolver enriches an identity with its app_users profile
type ProfileResolver interface {
	ResolveOrFallback(ctx context.Context, identity *models.Identity) *models.Profile
}

// 401 messages
const (
	msgMissingHeader = "Missing authorization header"
	msgInvalidHeader = "Invalid authorization header"
	msgInvalidScheme = "Invalid authorization scheme"
	msgInvalidToken  = "Invalid or expired token"
)

// AuthMiddleware provides authentication middleware functionality
type AuthMiddleware struct {
	tokens   TokenResolver
	profiles ProfileResolver
	logger   *zap.Logger
	now      func() time.Time
}

// NewAuthMiddleware creates a new AuthMiddleware
func NewAuthMiddleware(tokens TokenResolver, profiles ProfileResolver, logger *zap.Logger) *AuthMiddleware {
	return &AuthMiddleware{
		tokens:   tokens,
		profiles: profiles,
		logger:   logger,
		now:      time.Now,
	}
}

// RequireAuth rejects requests without a valid bearer token and attaches the
// resolved Principal to the request context.
func (m *AuthMiddleware) RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		requestID := GetRequestIDFromContext(ctx)

		token, msg := bearerToken(r.Header.Get("Authorization"))
		if msg != "" {
			m.logger.Warn("rejected authorization header",
				zap.String("request_id", requestID),
				zap.String("reason", msg))
			_ = utils.WriteUnauthorized(w, msg)
			return
		}

		// Expired JWTs are refused locally; opaque tokens go upstream.
		if exp, ok := identity.PeekTokenExpiry(token); ok && !exp.After(m.now()) {
			m.logger.Warn("token expired",
				zap.String("request_id", requestID),
				zap.Time("expired_at", exp))
			_ = utils.WriteUnauthorized(w, msgInvalidToken)
			return
		}

		id, err := m.tokens.ResolveToken(ctx, token)
		if err != nil {
			if services.IsUpstreamUnavailableError(err) {
				m.logger.Error("auth service unavailable",
					zap.String("request_id", requestID),
					zap.Error(err))
				_ = utils.WriteError(w, http.StatusServiceUnavailable, "Authentication service unavailable", nil)
				return
			}
			m.logger.Warn("token validation failed",
				zap.String("request_id", requestID),
				zap.Error(err))
			_ = utils.WriteUnauthorized(w, msgInvalidToken)
			return
		}

		profile := m.profiles.ResolveOrFallback(ctx, id)
		ctx = WithPrincipal(ctx, &Principal{
			Identity: id,
			Profile:  profile,
			Token:    token,
		})

		m.logger.Debug("authentication successful",
			zap.String("request_id", requestID),
			zap.String("user_id", id.UserID),
			zap.String("role", string(profile.Role)))

		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// RequireRole is a middleware that requires one of the given roles.
// It must run after RequireAuth.
func (m *AuthMiddleware) RequireRole(roles ...models.UserRole) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			requestID := GetRequestIDFromContext(ctx)

			principal := GetPrincipalFromContext(ctx)
			if principal == nil {
				m.logger.Error("principal not found in context",
					zap.String("request_id", requestID))
				_ = utils.WriteUnauthorized(w, "Authentication required")
				return
			}

			for _, role := range roles {
				if principal.Profile.Role == role {
					next.ServeHTTP(w, r)
					return
				}
			}

			m.logger.Warn("insufficient permissions",
				zap.String("request_id", requestID),
				zap.String("user_id", principal.Identity.UserID),
				zap.String("role", string(principal.Profile.Role)))
			_ = utils.WriteForbidden(w, "Insufficient permissions")
		})
	}
}

// bearerToken extracts the token from an Authorization header value. A
// non-empty message names the reason the header was refused.
func bearerToken(header string) (string, string) {
	header = strings.TrimSpace(header)
	if header == "" {
		return "", msgMissingHeader
	}

	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 {
		return "", msgInvalidHeader
	}
	if !strings.EqualFold(parts[0], "bearer") {
		return "", msgInvalidScheme
	}

	token := strings.TrimSpace(parts[1])
	if token == "" {
		return "", msgInvalidHeader
	}
	return token, ""
}
