package middleware

import (
	"bytes"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"io"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"github.com/upb/pipebridge/utils"
)

// SignatureHeader carries the hex HMAC-SHA256 of the raw webhook body
const SignatureHeader = "X-Pipefy-Signature"

// SignatureVerifier authenticates webhook deliveries with a shared secret
type SignatureVerifier struct {
	secret   []byte
	maxBytes int64
	logger   *zap.Logger
}

// NewSignatureVerifier creates a verifier. An empty secret disables it.
func NewSignatureVerifier(secret string, maxBytes int64, logger *zap.Logger) *SignatureVerifier {
	return &SignatureVerifier{
		secret:   []byte(secret),
		maxBytes: maxBytes,
		logger:   logger,
	}
}

// Middleware rejects deliveries whose signature does not match the body. The
// body is restored for the next handler.
func (v *SignatureVerifier) Middleware(next http.Handler) http.Handler {
	if len(v.secret) == 0 {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := GetRequestIDFromContext(r.Context())

		body, err := utils.ReadBody(r, v.maxBytes)
		if err != nil {
			if errors.Is(err, utils.ErrBodyTooLarge) {
				_ = utils.WriteError(w, http.StatusRequestEntityTooLarge, "Request body too large", nil)
				return
			}
			_ = utils.WriteBadRequest(w, "Failed to read request body", nil)
			return
		}

		if !v.Verify(body, r.Header.Get(SignatureHeader)) {
			v.logger.Warn("webhook signature mismatch",
				zap.String("request_id", requestID),
				zap.Bool("header_present", r.Header.Get(SignatureHeader) != ""))
			_ = utils.WriteUnauthorized(w, "Invalid webhook signature")
			return
		}

		r.Body = io.NopCloser(bytes.NewReader(body))
		next.ServeHTTP(w, r)
	})
}

// Verify reports whether signature is the HMAC of body. A "sha256=" prefix is
// accepted.
func (v *SignatureVerifier) Verify(body []byte, signature string) bool {
	signature = strings.TrimPrefix(strings.TrimSpace(signature), "sha256=")
	if signature == "" {
		return false
	}
	got, err := hex.DecodeString(signature)
	if err != nil {
		return false
	}
	return hmac.Equal(got, Sign(v.secret, body))
}

// Sign returns the raw HMAC-SHA256 of body
func Sign(secret, body []byte) []byte {
	mac := hmac.New(sha256.New, secret)
	mac.Write(body)
	return mac.Sum(nil)
}
