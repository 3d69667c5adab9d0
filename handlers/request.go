package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"go.uber.org/zap"

	"github.com/upb/pipebridge/services"
	"github.com/upb/pipebridge/utils"
)

// defaultMaxBodyBytes bounds request bodies when no limit is configured
const defaultMaxBodyBytes = 1 << 20

var errUnreadableBody = errors.New("request body could not be read")

// readBody reads the request body, writing a 413 or 400 response on failure
func readBody(w http.ResponseWriter, r *http.Request, limit int64, logger *zap.Logger) ([]byte, bool) {
	if limit <= 0 {
		limit = defaultMaxBodyBytes
	}
	body, err := utils.ReadBody(r, limit)
	if err != nil {
		if errors.Is(err, utils.ErrBodyTooLarge) {
			_ = utils.WriteError(w, http.StatusRequestEntityTooLarge, "Request body too large", map[string]interface{}{
				"limit_bytes": limit,
			})
			return nil, false
		}
		logger.Warn("failed to read request body", zap.Error(err))
		_ = utils.WriteBadRequest(w, "Failed to read request body", nil)
		return nil, false
	}
	return body, true
}

// decodeAndValidate decodes body into v and validates it
func decodeAndValidate(body []byte, v interface{}) error {
	if err := utils.DecodeJSON(body, v); err != nil {
		return err
	}
	return utils.ValidateStruct(v)
}

// parseLimit reads the optional limit query parameter. 0 means unset.
func parseLimit(r *http.Request) (int, error) {
	raw := r.URL.Query().Get("limit")
	if raw == "" {
		return 0, nil
	}
	limit, err := strconv.Atoi(raw)
	if err != nil {
		return 0, services.NewDomainError(services.ErrorTypeValidation, "limit must be an integer", nil).
			WithDetail("limit", raw)
	}
	if limit < 1 {
		return 0, services.NewDomainError(services.ErrorTypeValidation, "limit must be at least 1", nil).
			WithDetail("limit", limit)
	}
	return limit, nil
}
