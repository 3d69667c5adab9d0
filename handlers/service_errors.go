package handlers

import (
	"errors"
	"net/http"

	"go.uber.org/zap"

	"github.com/upb/pipebridge/services"
	"github.com/upb/pipebridge/utils"
)

// HandleServiceError maps domain errors to HTTP responses
func HandleServiceError(w http.ResponseWriter, err error, logger *zap.Logger) {
	if err == nil {
		return
	}

	status := StatusForError(err)
	message := "An unexpected error occurred"
	details := services.GetErrorDetails(err)

	var domainErr *services.DomainError
	if !errors.As(err, &domainErr) {
		logger.Error("unhandled error", zap.Error(err))
		if err := utils.WriteInternalServerError(w, message); err != nil {
			logger.Error("failed to write error response", zap.Error(err))
		}
		return
	}

	message = domainErr.Message
	logger.Debug("handled service error",
		zap.String("type", string(domainErr.Type)),
		zap.String("message", domainErr.Message),
		zap.Any("details", domainErr.Details))

	if status >= http.StatusInternalServerError {
		logger.Error("request failed",
			zap.Int("status", status),
			zap.String("error_type", string(domainErr.Type)),
			zap.Error(err))
	}

	if err := utils.WriteError(w, status, message, details); err != nil {
		logger.Error("failed to write error response", zap.Error(err))
	}
}

// StatusForError returns the HTTP status for err
func StatusForError(err error) int {
	switch {
	case services.IsValidationError(err):
		return http.StatusBadRequest
	case services.IsAuthenticationError(err), services.IsInvalidTokenError(err):
		return http.StatusUnauthorized
	case services.IsForbiddenError(err):
		return http.StatusForbidden
	case services.IsNotFoundError(err):
		return http.StatusNotFound
	case services.IsRegistrationError(err):
		// upstream 4xx is the caller's fault and passes through
		if s := services.GetUpstreamStatus(err); s >= 400 && s < 500 {
			return s
		}
		return http.StatusBadGateway
	case services.IsUnmappedTenantError(err):
		return http.StatusUnprocessableEntity
	case services.IsUpstreamUnavailableError(err):
		return http.StatusServiceUnavailable
	case services.IsUpstreamQueryError(err):
		return http.StatusBadGateway
	case services.IsPersistenceError(err):
		return http.StatusInternalServerError
	default:
		return http.StatusInternalServerError
	}
}

// HandleValidationError handles validation errors from request parsing
func HandleValidationError(w http.ResponseWriter, err error, logger *zap.Logger) {
	var verr *utils.ValidationError
	if utils.IsValidationError(err) && errors.As(err, &verr) {
		logger.Debug("request validation failed", zap.Any("fields", utils.GetValidationFields(err)))
		if err := utils.WriteBadRequest(w, verr.Message, verr.Details()); err != nil {
			logger.Error("failed to write validation error response", zap.Error(err))
		}
		return
	}

	if err := utils.WriteBadRequest(w, err.Error(), nil); err != nil {
		logger.Error("failed to write validation error response", zap.Error(err))
	}
}
