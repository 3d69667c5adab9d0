package handlers

import (
	"errors"
	"net/http"

	"go.uber.org/zap"

	"github.com/upb/pipebridge/middleware"
	"github.com/upb/pipebridge/models"
	"github.com/upb/pipebridge/repositories"
	"github.com/upb/pipebridge/services"
	"github.com/upb/pipebridge/utils"
)

// CreateOrganizationRequest represents a request to create an organization
type CreateOrganizationRequest struct {
	Name      string `json:"name" validate:"required,max=255"`
	LegalName string `json:"legal_name,omitempty" validate:"omitempty,max=255"`
	TaxID     string `json:"tax_id,omitempty" validate:"omitempty,max=64"`
}

// OrganizationHandler handles organization administration
type OrganizationHandler struct {
	orgs         repositories.OrganizationRepository
	maxBodyBytes int64
	logger       *zap.Logger
}

// NewOrganizationHandler creates a new OrganizationHandler
func NewOrganizationHandler(orgs repositories.OrganizationRepository, maxBodyBytes int64, logger *zap.Logger) *OrganizationHandler {
	return &OrganizationHandler{
		orgs:         orgs,
		maxBodyBytes: maxBodyBytes,
		logger:       logger,
	}
}

// HandleCreate handles POST /create/organization
func (h *OrganizationHandler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := middleware.GetRequestIDFromContext(ctx)

	body, ok := readBody(w, r, h.maxBodyBytes, h.logger)
	if !ok {
		return
	}
	var req CreateOrganizationRequest
	if err := decodeAndValidate(body, &req); err != nil {
		HandleValidationError(w, err, h.logger)
		return
	}

	org := models.NewOrganization(req.Name, req.LegalName, req.TaxID)
	if err := h.orgs.Create(ctx, org); err != nil {
		derr := services.WrapPersistence("failed to create organization", err)
		var statusErr *repositories.StatusError
		if errors.As(err, &statusErr) {
			derr.WithUpstream(statusErr.StatusCode, statusErr.Body)
		}
		HandleServiceError(w, derr, h.logger)
		return
	}

	h.logger.Info("organization created",
		zap.String("request_id", requestID),
		zap.String("organization_id", org.ID),
		zap.String("name", org.Name))

	_ = utils.WriteCreated(w, org)
}
