// Package identity talks to the Supabase auth service: password login,
// admin account creation and bearer token resolution.
package identity

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"

	"github.com/upb/pipebridge/config"
	"github.com/upb/pipebridge/internal/observability"
	"github.com/upb/pipebridge/models"
	"github.com/upb/pipebridge/services"
)

const (
	upstreamName = "auth"
	maxBodyBytes = 1 << 20
)

// RegisterInput is the data needed to create an account
type RegisterInput struct {
	Email    string
	Password string
	Name     string
	Phone    *string
	Address  *string
}

// tokenResponse is the password grant response
type tokenResponse struct {
	AccessToken string          `json:"access_token"`
	TokenType   string          `json:"token_type"`
	ExpiresIn   int             `json:"expires_in"`
	ExpiresAt   int64           `json:"expires_at"`
	User        json.RawMessage `json:"user"`
}

// adminUserRequest is the admin create-user body
type adminUserRequest struct {
	Email        string                 `json:"email"`
	Password     string                 `json:"password"`
	EmailConfirm bool                   `json:"email_confirm"`
	UserMetadata map[string]interface{} `json:"user_metadata"`
}

// Client is the auth service client. It holds no per-user state.
type Client struct {
	baseURL    string
	serviceKey string
	httpClient *http.Client
	metrics    observability.MetricsRecorder
	logger     *zap.Logger
	now        func() time.Time
}

// NewClient creates an auth client. A nil httpClient gets one bounded by cfg.Timeout.
func NewClient(cfg config.SupabaseConfig, httpClient *http.Client, metrics observability.MetricsRecorder, logger *zap.Logger) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: cfg.Timeout}
	}
	if metrics == nil {
		metrics = observability.NopMetrics{}
	}
	return &Client{
		baseURL:    cfg.URL + "/auth/v1",
		serviceKey: cfg.ServiceRoleKey,
		httpClient: httpClient,
		metrics:    metrics,
		logger:     logger,
		now:        time.Now,
	}
}

// Login exchanges email and password for a session
func (c *Client) Login(ctx context.Context, email, password string) (*models.Session, error) {
	body := map[string]string{"email": email, "password": password}
	status, respBody, err := c.call(ctx, "login", http.MethodPost, "/token?grant_type=password", "", body)
	if err != nil {
		return nil, err
	}
	if status != http.StatusOK {
		c.logger.Info("login rejected", zap.Int("status", status))
		return nil, services.NewDomainError(services.ErrorTypeAuthentication, "Invalid credentials", nil).
			WithUpstream(status, respBody)
	}

	var tr tokenResponse
	if err := json.Unmarshal(respBody, &tr); err != nil || tr.AccessToken == "" {
		return nil, services.WrapError(services.ErrorTypeUpstreamQuery, "unexpected auth service response", err).
			WithUpstream(status, respBody)
	}

	session := &models.Session{
		AccessToken: tr.AccessToken,
		TokenType:   "bearer",
		ExpiresIn:   tr.ExpiresIn,
		ExpiresAt:   c.expiry(tr),
	}
	if len(tr.User) > 0 {
		identity, err := decodeIdentity(tr.User)
		if err == nil {
			session.Identity = identity
		}
	}
	return session, nil
}

// Register creates a confirmed account with the service credential, then
// logs it in. A login failure after creation is returned as-is; the account
// is not rolled back.
func (c *Client) Register(ctx context.Context, in RegisterInput) (*models.Session, error) {
	req := adminUserRequest{
		Email:        in.Email,
		Password:     in.Password,
		EmailConfirm: true,
		UserMetadata: map[string]interface{}{
			"name":    in.Name,
			"phone":   in.Phone,
			"address": in.Address,
		},
	}

	status, respBody, err := c.call(ctx, "register", http.MethodPost, "/admin/users", c.serviceKey, req)
	if err != nil {
		return nil, err
	}
	if status != http.StatusOK && status != http.StatusCreated {
		c.logger.Info("registration rejected", zap.Int("status", status))
		return nil, services.NewDomainError(services.ErrorTypeRegistration, "Registration failed", nil).
			WithUpstream(status, respBody)
	}

	created, err := decodeIdentity(respBody)
	if err != nil {
		return nil, services.WrapError(services.ErrorTypeUpstreamQuery, "unexpected auth service response", err).
			WithUpstream(status, respBody)
	}

	session, err := c.Login(ctx, in.Email, in.Password)
	if err != nil {
		c.logger.Warn("account created but login failed",
			zap.String("user_id", created.UserID),
			zap.Error(err),
		)
		return nil, err
	}
	if session.Identity == nil {
		session.Identity = created
	}
	return session, nil
}

// ResolveToken validates token with the auth service and returns its identity
func (c *Client) ResolveToken(ctx context.Context, token string) (*models.Identity, error) {
	status, respBody, err := c.call(ctx, "resolve_token", http.MethodGet, "/user", token, nil)
	if err != nil {
		return nil, err
	}
	if status != http.StatusOK {
		return nil, services.NewDomainError(services.ErrorTypeInvalidToken, "Invalid or expired token", nil).
			WithUpstream(status, respBody)
	}

	identity, err := decodeIdentity(respBody)
	if err != nil {
		return nil, services.WrapError(services.ErrorTypeInvalidToken, "Invalid or expired token", err)
	}
	return identity, nil
}

// call performs one request. bearer, when set, goes in Authorization. The
// apikey header always carries the service credential.
func (c *Client) call(ctx context.Context, op, method, path, bearer string, payload interface{}) (int, []byte, error) {
	var body io.Reader
	if payload != nil {
		encoded, err := json.Marshal(payload)
		if err != nil {
			return 0, nil, fmt.Errorf("%s: failed to encode body: %w", op, err)
		}
		body = bytes.NewReader(encoded)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return 0, nil, fmt.Errorf("%s: failed to build request: %w", op, err)
	}
	req.Header.Set("apikey", c.serviceKey)
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.metrics.RecordUpstream(upstreamName, op, 0, time.Since(start))
		c.logger.Error("auth service request failed", zap.String("op", op), zap.Error(err))
		return 0, nil, services.WrapUnavailable("auth service unreachable", err)
	}
	defer resp.Body.Close()
	c.metrics.RecordUpstream(upstreamName, op, resp.StatusCode, time.Since(start))

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return 0, nil, services.WrapUnavailable("failed to read auth service response", err)
	}
	return resp.StatusCode, respBody, nil
}

// expiry prefers expires_at, then the token's exp claim, then expires_in
func (c *Client) expiry(tr tokenResponse) time.Time {
	if tr.ExpiresAt > 0 {
		return time.Unix(tr.ExpiresAt, 0).UTC()
	}
	if exp, ok := PeekTokenExpiry(tr.AccessToken); ok {
		return exp
	}
	return c.now().Add(time.Duration(tr.ExpiresIn) * time.Second).UTC()
}

func decodeIdentity(raw []byte) (*models.Identity, error) {
	var identity models.Identity
	if err := json.Unmarshal(raw, &identity); err != nil {
		return nil, fmt.Errorf("failed to decode user: %w", err)
	}
	if identity.UserID == "" {
		return nil, fmt.Errorf("user object has no id")
	}
	identity.Raw = append(json.RawMessage(nil), raw...)
	return &identity, nil
}

// PeekTokenExpiry reads the exp claim of a JWT without verifying its
// signature. ok is false for opaque tokens and tokens without exp.
func PeekTokenExpiry(token string) (time.Time, bool) {
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return time.Time{}, false
	}
	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return time.Time{}, false
	}
	return exp.Time.UTC(), true
}
