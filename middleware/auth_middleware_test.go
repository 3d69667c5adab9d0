package middleware

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/upb/pipebridge/models"
	"github.com/upb/pipebridge/services"
	"github.com/upb/pipebridge/utils"
)

// MockTokenResolver is a mock implementation of TokenResolver
type MockTokenResolver struct {
	mock.Mock
}

func (m *MockTokenResolver) ResolveToken(ctx context.Context, token string) (*models.Identity, error) {
	args := m.Called(ctx, token)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Identity), args.Error(1)
}

// MockProfileResolver is a mock implementation of ProfileResolver
type MockProfileResolver struct {
	mock.Mock
}

func (m *MockProfileResolver) ResolveOrFallback(ctx context.Context, identity *models.Identity) *models.Profile {
	args := m.Called(ctx, identity)
	return args.Get(0).(*models.Profile)
}

func signedToken(t *testing.T, exp time.Time) string {
	t.Helper()
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": "user-123",
		"exp": exp.Unix(),
	}).SignedString([]byte("test-secret"))
	require.NoError(t, err)
	return token
}

func decodeError(t *testing.T, w *httptest.ResponseRecorder) utils.ErrorResponse {
	t.Helper()
	var resp utils.ErrorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	return resp
}

func TestRequireAuth(t *testing.T) {
	logger := zap.NewNop()

	t.Run("valid token attaches principal", func(t *testing.T) {
		tokens := new(MockTokenResolver)
		profiles := new(MockProfileResolver)
		middleware := NewAuthMiddleware(tokens, profiles, logger)

		identity := &models.Identity{UserID: "user-123", Email: "user@example.com"}
		profile := &models.Profile{ID: "user-123", Role: models.RoleMember, Provisioned: true}
		tokens.On("ResolveToken", mock.Anything, "valid-token").Return(identity, nil)
		profiles.On("ResolveOrFallback", mock.Anything, identity).Return(profile)

		handler := middleware.RequireAuth(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			principal := GetPrincipalFromContext(r.Context())
			require.NotNil(t, principal)
			assert.Same(t, identity, principal.Identity)
			assert.Same(t, profile, principal.Profile)
			assert.Equal(t, "valid-token", principal.Token)
			w.WriteHeader(http.StatusOK)
		}))

		req := httptest.NewRequest(http.MethodGet, "/test", nil)
		req.Header.Set("Authorization", "Bearer valid-token")
		w := httptest.NewRecorder()

		handler.ServeHTTP(w, req)

		assert.Equal(t, http.StatusOK, w.Code)
		tokens.AssertExpectations(t)
		profiles.AssertExpectations(t)
	})

	t.Run("scheme is case insensitive", func(t *testing.T) {
		tokens := new(MockTokenResolver)
		profiles := new(MockProfileResolver)
		middleware := NewAuthMiddleware(tokens, profiles, logger)

		identity := &models.Identity{UserID: "user-123"}
		tokens.On("ResolveToken", mock.Anything, "valid-token").Return(identity, nil)
		profiles.On("ResolveOrFallback", mock.Anything, identity).Return(models.NewFallbackProfile(identity))

		handler := middleware.RequireAuth(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusOK)
		}))

		req := httptest.NewRequest(http.MethodGet, "/test", nil)
		req.Header.Set("Authorization", "bearer valid-token")
		w := httptest.NewRecorder()

		handler.ServeHTTP(w, req)

		assert.Equal(t, http.StatusOK, w.Code)
	})

	headerCases := []struct {
		name    string
		header  string
		message string
	}{
		{name: "missing header", header: "", message: "Missing authorization header"},
		{name: "single part", header: "InvalidFormat", message: "Invalid authorization header"},
		{name: "empty token", header: "Bearer    ", message: "Invalid authorization header"},
		{name: "basic scheme", header: "Basic dXNlcjpwYXNz", message: "Invalid authorization scheme"},
	}
	for _, tc := range headerCases {
		t.Run(tc.name+" returns 401 without upstream call", func(t *testing.T) {
			tokens := new(MockTokenResolver)
			profiles := new(MockProfileResolver)
			middleware := NewAuthMiddleware(tokens, profiles, logger)

			handler := middleware.RequireAuth(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				t.Fatal("handler should not be called")
			}))

			req := httptest.NewRequest(http.MethodGet, "/test", nil)
			if tc.header != "" {
				req.Header.Set("Authorization", tc.header)
			}
			w := httptest.NewRecorder()

			handler.ServeHTTP(w, req)

			assert.Equal(t, http.StatusUnauthorized, w.Code)
			assert.Equal(t, tc.message, decodeError(t, w).Message)
			tokens.AssertNotCalled(t, "ResolveToken", mock.Anything, mock.Anything)
			profiles.AssertNotCalled(t, "ResolveOrFallback", mock.Anything, mock.Anything)
		})
	}

	t.Run("expired JWT rejected locally", func(t *testing.T) {
		tokens := new(MockTokenResolver)
		middleware := NewAuthMiddleware(tokens, new(MockProfileResolver), logger)

		handler := middleware.RequireAuth(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			t.Fatal("handler should not be called")
		}))

		req := httptest.NewRequest(http.MethodGet, "/test", nil)
		req.Header.Set("Authorization", "Bearer "+signedToken(t, time.Now().Add(-time.Hour)))
		w := httptest.NewRecorder()

		handler.ServeHTTP(w, req)

		assert.Equal(t, http.StatusUnauthorized, w.Code)
		assert.Equal(t, "Invalid or expired token", decodeError(t, w).Message)
		tokens.AssertNotCalled(t, "ResolveToken", mock.Anything, mock.Anything)
	})

	t.Run("unexpired JWT goes upstream", func(t *testing.T) {
		token := signedToken(t, time.Now().Add(time.Hour))
		tokens := new(MockTokenResolver)
		tokens.On("ResolveToken", mock.Anything, token).
			Return(nil, services.NewDomainError(services.ErrorTypeInvalidToken, "Invalid or expired token", nil))
		middleware := NewAuthMiddleware(tokens, new(MockProfileResolver), logger)

		handler := middleware.RequireAuth(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			t.Fatal("handler should not be called")
		}))

		req := httptest.NewRequest(http.MethodGet, "/test", nil)
		req.Header.Set("Authorization", "Bearer "+token)
		w := httptest.NewRecorder()

		handler.ServeHTTP(w, req)

		assert.Equal(t, http.StatusUnauthorized, w.Code)
		assert.Equal(t, "Invalid or expired token", decodeError(t, w).Message)
		tokens.AssertExpectations(t)
	})

	t.Run("auth service unavailable returns 503", func(t *testing.T) {
		tokens := new(MockTokenResolver)
		tokens.On("ResolveToken", mock.Anything, "opaque").
			Return(nil, services.WrapUnavailable("auth service unreachable", context.DeadlineExceeded))
		middleware := NewAuthMiddleware(tokens, new(MockProfileResolver), logger)

		handler := middleware.RequireAuth(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			t.Fatal("handler should not be called")
		}))

		req := httptest.NewRequest(http.MethodGet, "/test", nil)
		req.Header.Set("Authorization", "Bearer opaque")
		w := httptest.NewRecorder()

		handler.ServeHTTP(w, req)

		assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	})
}

func TestRequireRole(t *testing.T) {
	logger := zap.NewNop()
	middleware := NewAuthMiddleware(nil, nil, logger)

	ok := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	tests := []struct {
		name      string
		principal *Principal
		want      int
	}{
		{
			name:      "admin allowed",
			principal: &Principal{Identity: &models.Identity{UserID: "u1"}, Profile: &models.Profile{Role: models.RoleAdmin}},
			want:      http.StatusOK,
		},
		{
			name:      "member forbidden",
			principal: &Principal{Identity: &models.Identity{UserID: "u2"}, Profile: &models.Profile{Role: models.RoleMember}},
			want:      http.StatusForbidden,
		},
		{
			name: "fallback profile forbidden",
			principal: &Principal{
				Identity: &models.Identity{UserID: "u3"},
				Profile:  models.NewFallbackProfile(&models.Identity{UserID: "u3"}),
			},
			want: http.StatusForbidden,
		},
		{
			name: "no principal",
			want: http.StatusUnauthorized,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/test", nil)
			if tt.principal != nil {
				req = req.WithContext(WithPrincipal(req.Context(), tt.principal))
			}
			w := httptest.NewRecorder()

			middleware.RequireRole(models.RoleAdmin)(ok).ServeHTTP(w, req)

			assert.Equal(t, tt.want, w.Code)
		})
	}
}

func TestBearerToken(t *testing.T) {
	token, msg := bearerToken("Bearer  abc.def ")
	assert.Equal(t, "abc.def", token)
	assert.Empty(t, msg)
}
