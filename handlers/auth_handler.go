package handlers

import (
	"context"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/upb/pipebridge/middleware"
	"github.com/upb/pipebridge/models"
	"github.com/upb/pipebridge/services/identity"
	"github.com/upb/pipebridge/utils"
)

// IdentityService authenticates and registers users with the auth service
type IdentityService interface {
	Login(ctx context.Context, email, password string) (*models.Session, error)
	Register(ctx context.Context, in identity.RegisterInput) (*models.Session, error)
}

// ProfileLookup resolves an identity's app_users profile
type ProfileLookup interface {
	Resolve(ctx context.Context, userID string) (*models.Profile, error)
}

// LoginRequest represents a password login
type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// RegisterRequest represents a new account
type RegisterRequest struct {
	Email    string  `json:"email" validate:"required,email"`
	Password string  `json:"password" validate:"required,min=6"`
	Name     string  `json:"name" validate:"required"`
	Phone    *string `json:"phone,omitempty"`
	Address  *string `json:"address,omitempty"`
}

// LoginResponse is returned by POST /auth/login
type LoginResponse struct {
	AccessToken string      `json:"access_token"`
	TokenType   string      `json:"token_type"`
	ExpiresIn   int         `json:"expires_in"`
	User        interface{} `json:"user"`
}

// RegisterResponse is returned by POST /auth/register
type RegisterResponse struct {
	AccessToken string      `json:"access_token"`
	TokenType   string      `json:"token_type"`
	User        interface{} `json:"user"`
}

// UserResponse is the public view of a profile
type UserResponse struct {
	ID               string          `json:"id"`
	Email            string          `json:"email"`
	Name             string          `json:"name"`
	Role             models.UserRole `json:"role"`
	Phone            *string         `json:"phone,omitempty"`
	Address          *string         `json:"address,omitempty"`
	OrganizationID   *string         `json:"organization_id,omitempty"`
	OrganizationName string          `json:"organization_name,omitempty"`
	CreatedAt        *time.Time      `json:"created_at,omitempty"`
}

// NewUserResponse converts a profile to its public view
func NewUserResponse(p *models.Profile) UserResponse {
	return UserResponse{
		ID:               p.ID,
		Email:            p.Email,
		Name:             p.Name,
		Role:             p.Role,
		Phone:            p.Phone,
		Address:          p.Address,
		OrganizationID:   p.OrganizationID,
		OrganizationName: p.OrganizationName(),
		CreatedAt:        p.CreatedAt,
	}
}

// AuthHandler handles login, registration and the current user
type AuthHandler struct {
	identity     IdentityService
	profiles     ProfileLookup
	maxBodyBytes int64
	logger       *zap.Logger
}

// NewAuthHandler creates a new AuthHandler
func NewAuthHandler(identity IdentityService, profiles ProfileLookup, maxBodyBytes int64, logger *zap.Logger) *AuthHandler {
	return &AuthHandler{
		identity:     identity,
		profiles:     profiles,
		maxBodyBytes: maxBodyBytes,
		logger:       logger,
	}
}

// HandleLogin handles POST /auth/login
func (h *AuthHandler) HandleLogin(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	body, ok := readBody(w, r, h.maxBodyBytes, h.logger)
	if !ok {
		return
	}
	var req LoginRequest
	if err := decodeAndValidate(body, &req); err != nil {
		HandleValidationError(w, err, h.logger)
		return
	}

	session, err := h.identity.Login(ctx, req.Email, req.Password)
	if err != nil {
		h.logger.Info("login failed",
			zap.String("request_id", middleware.GetRequestIDFromContext(ctx)),
			zap.Error(err))
		HandleServiceError(w, err, h.logger)
		return
	}

	_ = utils.WriteOK(w, LoginResponse{
		AccessToken: session.AccessToken,
		TokenType:   session.TokenType,
		ExpiresIn:   session.ExpiresIn,
		User:        h.userBody(ctx, session.Identity),
	})
}

// HandleRegister handles POST /auth/register
func (h *AuthHandler) HandleRegister(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	body, ok := readBody(w, r, h.maxBodyBytes, h.logger)
	if !ok {
		return
	}
	var req RegisterRequest
	if err := decodeAndValidate(body, &req); err != nil {
		HandleValidationError(w, err, h.logger)
		return
	}

	session, err := h.identity.Register(ctx, identity.RegisterInput{
		Email:    req.Email,
		Password: req.Password,
		Name:     req.Name,
		Phone:    req.Phone,
		Address:  req.Address,
	})
	if err != nil {
		HandleServiceError(w, err, h.logger)
		return
	}

	h.logger.Info("user registered",
		zap.String("request_id", middleware.GetRequestIDFromContext(ctx)),
		zap.String("email", req.Email))

	_ = utils.WriteOK(w, RegisterResponse{
		AccessToken: session.AccessToken,
		TokenType:   session.TokenType,
		User:        h.userBody(ctx, session.Identity),
	})
}

// HandleMe handles GET /user/me
func (h *AuthHandler) HandleMe(w http.ResponseWriter, r *http.Request) {
	principal := middleware.GetPrincipalFromContext(r.Context())
	if principal == nil {
		_ = utils.WriteUnauthorized(w, "Authentication required")
		return
	}
	_ = utils.WriteOK(w, NewUserResponse(principal.Profile))
}

// HandleProtected handles GET /protected
func (h *AuthHandler) HandleProtected(w http.ResponseWriter, r *http.Request) {
	principal := middleware.GetPrincipalFromContext(r.Context())
	if principal == nil {
		_ = utils.WriteUnauthorized(w, "Authentication required")
		return
	}
	_ = utils.WriteOK(w, map[string]string{
		"message":    "You have access to this protected route",
		"user_email": principal.Identity.Email,
	})
}

// userBody prefers the provisioned profile and falls back to the identity
// exactly as the auth service returned it.
func (h *AuthHandler) userBody(ctx context.Context, id *models.Identity) interface{} {
	if id == nil {
		return nil
	}
	if p, err := h.profiles.Resolve(ctx, id.UserID); err == nil {
		return NewUserResponse(p)
	}
	if len(id.Raw) > 0 {
		return id.Raw
	}
	return id
}
