package identity

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/upb/pipebridge/config"
	"github.com/upb/pipebridge/services"
)

const (
	testServiceKey = "service-role-key"
	userJSON       = `{"id":"user-1","email":"ana@example.com","user_metadata":{"name":"Ana"}}`
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	cfg := config.SupabaseConfig{URL: srv.URL, ServiceRoleKey: testServiceKey, Timeout: 5 * time.Second}
	return NewClient(cfg, srv.Client(), nil, zap.NewNop())
}

func signedToken(t *testing.T, exp time.Time) string {
	t.Helper()
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": "user-1",
		"exp": exp.Unix(),
	}).SignedString([]byte("not-the-real-secret"))
	require.NoError(t, err)
	return token
}

func TestClient_Login(t *testing.T) {
	t.Run("success with expires_at", func(t *testing.T) {
		client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, http.MethodPost, r.Method)
			assert.Equal(t, "/auth/v1/token", r.URL.Path)
			assert.Equal(t, "password", r.URL.Query().Get("grant_type"))
			assert.Equal(t, testServiceKey, r.Header.Get("apikey"))
			assert.Empty(t, r.Header.Get("Authorization"))

			var body map[string]string
			require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
			assert.Equal(t, "ana@example.com", body["email"])
			assert.Equal(t, "s3cret", body["password"])

			_, _ = io.WriteString(w, `{"access_token":"opaque","token_type":"bearer","expires_in":3600,"expires_at":1900000000,"user":`+userJSON+`}`)
		})

		session, err := client.Login(context.Background(), "ana@example.com", "s3cret")
		require.NoError(t, err)
		assert.Equal(t, "opaque", session.AccessToken)
		assert.Equal(t, "bearer", session.TokenType)
		assert.Equal(t, 3600, session.ExpiresIn)
		assert.Equal(t, time.Unix(1900000000, 0).UTC(), session.ExpiresAt)
		require.NotNil(t, session.Identity)
		assert.Equal(t, "user-1", session.Identity.UserID)
		assert.Equal(t, "Ana", session.Identity.DisplayName())
	})

	t.Run("expiry peeked from the access token", func(t *testing.T) {
		exp := time.Now().Add(2 * time.Hour).Truncate(time.Second).UTC()
		token := signedToken(t, exp)

		client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			_, _ = io.WriteString(w, `{"access_token":"`+token+`","expires_in":60}`)
		})

		session, err := client.Login(context.Background(), "ana@example.com", "s3cret")
		require.NoError(t, err)
		assert.Equal(t, exp, session.ExpiresAt)
		assert.Nil(t, session.Identity)
	})

	t.Run("expiry from expires_in", func(t *testing.T) {
		fixed := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
		client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			_, _ = io.WriteString(w, `{"access_token":"opaque","expires_in":60}`)
		})
		client.now = func() time.Time { return fixed }

		session, err := client.Login(context.Background(), "ana@example.com", "s3cret")
		require.NoError(t, err)
		assert.Equal(t, fixed.Add(time.Minute), session.ExpiresAt)
	})

	t.Run("rejected credentials", func(t *testing.T) {
		client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusBadRequest)
			_, _ = io.WriteString(w, `{"error":"invalid_grant"}`)
		})

		_, err := client.Login(context.Background(), "ana@example.com", "wrong")
		require.Error(t, err)
		assert.True(t, services.IsAuthenticationError(err))
		assert.Equal(t, http.StatusBadRequest, services.GetUpstreamStatus(err))
		assert.Contains(t, services.GetErrorDetails(err)[services.DetailUpstreamBody], "invalid_grant")
	})

	t.Run("auth service unreachable", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
		srv.Close()
		client := NewClient(config.SupabaseConfig{URL: srv.URL, ServiceRoleKey: testServiceKey, Timeout: time.Second}, nil, nil, zap.NewNop())

		_, err := client.Login(context.Background(), "ana@example.com", "s3cret")
		require.Error(t, err)
		assert.True(t, services.IsUpstreamUnavailableError(err))
	})
}

func TestClient_Register(t *testing.T) {
	t.Run("creates then logs in", func(t *testing.T) {
		var calls []string
		client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			calls = append(calls, r.URL.Path)
			switch r.URL.Path {
			case "/auth/v1/admin/users":
				assert.Equal(t, "Bearer "+testServiceKey, r.Header.Get("Authorization"))
				assert.Equal(t, testServiceKey, r.Header.Get("apikey"))

				var body map[string]interface{}
				require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
				assert.Equal(t, true, body["email_confirm"])
				meta := body["user_metadata"].(map[string]interface{})
				assert.Equal(t, "Ana", meta["name"])
				assert.Equal(t, "+57 300", meta["phone"])
				assert.Nil(t, meta["address"])

				w.WriteHeader(http.StatusCreated)
				_, _ = io.WriteString(w, userJSON)
			case "/auth/v1/token":
				_, _ = io.WriteString(w, `{"access_token":"opaque","expires_in":3600}`)
			default:
				t.Errorf("unexpected path %s", r.URL.Path)
			}
		})

		phone := "+57 300"
		session, err := client.Register(context.Background(), RegisterInput{
			Email:    "ana@example.com",
			Password: "s3cret",
			Name:     "Ana",
			Phone:    &phone,
		})
		require.NoError(t, err)
		assert.Equal(t, []string{"/auth/v1/admin/users", "/auth/v1/token"}, calls)
		assert.Equal(t, "opaque", session.AccessToken)
		require.NotNil(t, session.Identity)
		assert.Equal(t, "user-1", session.Identity.UserID)
	})

	t.Run("create rejected", func(t *testing.T) {
		client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusUnprocessableEntity)
			_, _ = io.WriteString(w, `{"msg":"email already registered"}`)
		})

		_, err := client.Register(context.Background(), RegisterInput{Email: "ana@example.com", Password: "s3cret", Name: "Ana"})
		require.Error(t, err)
		assert.True(t, services.IsRegistrationError(err))
		assert.Equal(t, http.StatusUnprocessableEntity, services.GetUpstreamStatus(err))
	})

	t.Run("login after create fails", func(t *testing.T) {
		client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Path == "/auth/v1/admin/users" {
				_, _ = io.WriteString(w, userJSON)
				return
			}
			w.WriteHeader(http.StatusBadRequest)
		})

		_, err := client.Register(context.Background(), RegisterInput{Email: "ana@example.com", Password: "s3cret", Name: "Ana"})
		require.Error(t, err)
		assert.True(t, services.IsAuthenticationError(err))
	})
}

func TestClient_ResolveToken(t *testing.T) {
	t.Run("valid token", func(t *testing.T) {
		client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, http.MethodGet, r.Method)
			assert.Equal(t, "/auth/v1/user", r.URL.Path)
			assert.Equal(t, "Bearer user-token", r.Header.Get("Authorization"))
			assert.Equal(t, testServiceKey, r.Header.Get("apikey"))
			_, _ = io.WriteString(w, userJSON)
		})

		identity, err := client.ResolveToken(context.Background(), "user-token")
		require.NoError(t, err)
		assert.Equal(t, "user-1", identity.UserID)
		assert.Equal(t, "ana@example.com", identity.Email)
		assert.JSONEq(t, userJSON, string(identity.Raw))
	})

	t.Run("rejected token", func(t *testing.T) {
		client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusUnauthorized)
		})

		_, err := client.ResolveToken(context.Background(), "bad")
		require.Error(t, err)
		assert.True(t, services.IsInvalidTokenError(err))
	})

	t.Run("body without id", func(t *testing.T) {
		client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			_, _ = io.WriteString(w, `{"email":"x@example.com"}`)
		})

		_, err := client.ResolveToken(context.Background(), "weird")
		require.Error(t, err)
		assert.True(t, services.IsInvalidTokenError(err))
	})

	t.Run("cancelled context", func(t *testing.T) {
		client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			_, _ = io.WriteString(w, userJSON)
		})
		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		_, err := client.ResolveToken(ctx, "user-token")
		require.Error(t, err)
		assert.True(t, services.IsUpstreamUnavailableError(err))
	})
}

func TestPeekTokenExpiry(t *testing.T) {
	exp := time.Now().Add(-time.Minute).Truncate(time.Second).UTC()

	got, ok := PeekTokenExpiry(signedToken(t, exp))
	assert.True(t, ok)
	assert.Equal(t, exp, got)

	_, ok = PeekTokenExpiry("opaque-token")
	assert.False(t, ok)

	noExp, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{"sub": "x"}).SignedString([]byte("k"))
	require.NoError(t, err)
	_, ok = PeekTokenExpiry(noExp)
	assert.False(t, ok)
}
