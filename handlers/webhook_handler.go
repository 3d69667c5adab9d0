package handlers

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/upb/pipebridge/internal/observability"
	"github.com/upb/pipebridge/middleware"
	"github.com/upb/pipebridge/models"
	"github.com/upb/pipebridge/services"
	"github.com/upb/pipebridge/services/webhook"
	"github.com/upb/pipebridge/utils"
)

// WebhookIngestor processes inbound webhooks and serves the event log
type WebhookIngestor interface {
	IngestCardEvent(ctx context.Context, raw []byte, payload *models.PipefyWebhookPayload) (*webhook.CardEventResult, error)
	IngestPhaseTransition(ctx context.Context, payload *models.PhaseTransitionPayload) (*webhook.PhaseTransitionResult, error)
	Reject(shape string, err error)
	ListByOrganization(ctx context.Context, organizationID string, limit int) ([]*models.Event, error)
	ListByCard(ctx context.Context, cardID string, limit int) ([]*models.Event, error)
}

// CardEventResponse acknowledges POST /webhook/pipefy
type CardEventResponse struct {
	Success   bool   `json:"success"`
	Message   string `json:"message"`
	EventID   string `json:"event_id"`
	EventType string `json:"event_type"`
}

// PhaseTransitionResponse acknowledges POST /webhook/pipefy/receive
type PhaseTransitionResponse struct {
	Success bool                           `json:"success"`
	Message string                         `json:"message"`
	Data    *webhook.PhaseTransitionResult `json:"data"`
}

// WebhookHandler handles Pipefy webhooks and event queries
type WebhookHandler struct {
	ingestor     WebhookIngestor
	maxBodyBytes int64
	logger       *zap.Logger
}

// NewWebhookHandler creates a new WebhookHandler
func NewWebhookHandler(ingestor WebhookIngestor, maxBodyBytes int64, logger *zap.Logger) *WebhookHandler {
	return &WebhookHandler{
		ingestor:     ingestor,
		maxBodyBytes: maxBodyBytes,
		logger:       logger,
	}
}

// HandleCardEvent handles POST /webhook/pipefy
func (h *WebhookHandler) HandleCardEvent(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	body, ok := readBody(w, r, h.maxBodyBytes, h.logger)
	if !ok {
		h.ingestor.Reject(observability.ShapeCardEvent, errUnreadableBody)
		return
	}

	var payload models.PipefyWebhookPayload
	if err := decodeAndValidate(body, &payload); err != nil {
		h.ingestor.Reject(observability.ShapeCardEvent, err)
		HandleValidationError(w, err, h.logger)
		return
	}

	result, err := h.ingestor.IngestCardEvent(ctx, body, &payload)
	if err != nil {
		HandleServiceError(w, err, h.logger)
		return
	}

	_ = utils.WriteOK(w, CardEventResponse{
		Success:   true,
		Message:   "Webhook processed successfully",
		EventID:   result.EventID,
		EventType: result.EventType,
	})
}

// HandlePhaseTransition handles POST /webhook/pipefy/receive
func (h *WebhookHandler) HandlePhaseTransition(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	body, ok := readBody(w, r, h.maxBodyBytes, h.logger)
	if !ok {
		h.ingestor.Reject(observability.ShapePhaseTransition, errUnreadableBody)
		return
	}

	var payload models.PhaseTransitionPayload
	if err := decodeAndValidate(body, &payload); err != nil {
		h.ingestor.Reject(observability.ShapePhaseTransition, err)
		HandleValidationError(w, err, h.logger)
		return
	}

	result, err := h.ingestor.IngestPhaseTransition(ctx, &payload)
	if err != nil {
		HandleServiceError(w, err, h.logger)
		return
	}

	_ = utils.WriteOK(w, PhaseTransitionResponse{
		Success: true,
		Message: "Card details fetched and stored",
		Data:    result,
	})
}

// HandleListByOrganization handles GET /webhook/pipefy/events/{organization_id}
func (h *WebhookHandler) HandleListByOrganization(w http.ResponseWriter, r *http.Request) {
	orgID := chi.URLParam(r, "organization_id")
	if err := utils.ValidateUUID(orgID); err != nil {
		_ = utils.WriteBadRequest(w, "Invalid organization_id format", nil)
		return
	}
	h.listByOrganization(w, r, orgID)
}

// HandleListByCard handles GET /webhook/pipefy/events/card/{card_id}
func (h *WebhookHandler) HandleListByCard(w http.ResponseWriter, r *http.Request) {
	cardID := chi.URLParam(r, "card_id")
	if err := utils.ValidateRequired(cardID, "card_id"); err != nil {
		_ = utils.WriteBadRequest(w, err.Error(), nil)
		return
	}

	limit, err := parseLimit(r)
	if err != nil {
		HandleServiceError(w, err, h.logger)
		return
	}

	events, err := h.ingestor.ListByCard(r.Context(), cardID, limit)
	if err != nil {
		HandleServiceError(w, err, h.logger)
		return
	}
	_ = utils.WriteOK(w, events)
}

// HandleReports handles GET /main/reports/{organization_id}. The caller must
// belong to the organization or be an admin.
func (h *WebhookHandler) HandleReports(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	orgID := chi.URLParam(r, "organization_id")
	if err := utils.ValidateUUID(orgID); err != nil {
		_ = utils.WriteBadRequest(w, "Invalid organization_id format", nil)
		return
	}

	principal := middleware.GetPrincipalFromContext(ctx)
	if principal == nil {
		_ = utils.WriteUnauthorized(w, "Authentication required")
		return
	}
	if !principal.Profile.IsAdmin() && !principal.Profile.BelongsTo(orgID) {
		h.logger.Warn("report access denied",
			zap.String("request_id", middleware.GetRequestIDFromContext(ctx)),
			zap.String("user_id", principal.Identity.UserID),
			zap.String("organization_id", orgID))
		HandleServiceError(w, services.NewDomainError(services.ErrorTypeForbidden, "Not a member of this organization", nil), h.logger)
		return
	}

	h.listByOrganization(w, r, orgID)
}

func (h *WebhookHandler) listByOrganization(w http.ResponseWriter, r *http.Request, orgID string) {
	limit, err := parseLimit(r)
	if err != nil {
		HandleServiceError(w, err, h.logger)
		return
	}

	events, err := h.ingestor.ListByOrganization(r.Context(), orgID, limit)
	if err != nil {
		HandleServiceError(w, err, h.logger)
		return
	}
	_ = utils.WriteOK(w, events)
}
