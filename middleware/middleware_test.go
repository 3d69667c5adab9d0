package middleware

import (
	"encoding/hex"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
	"golang.org/x/time/rate"

	"github.com/upb/pipebridge/internal/observability"
)

type httpRecord struct {
	route, method string
	status        int
}

type recordingMetrics struct {
	observability.NopMetrics
	mu          sync.Mutex
	requests    []httpRecord
	rateLimited []string
}

func (r *recordingMetrics) RecordHTTPRequest(route, method string, status int, _ time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.requests = append(r.requests, httpRecord{route, method, status})
}

func (r *recordingMetrics) RecordRateLimited(route string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.rateLimited = append(r.rateLimited, route)
}

func TestRequestLogger(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	metrics := &recordingMetrics{}

	r := chi.NewRouter()
	r.Use(RequestLogger(zap.New(core), metrics))
	r.Get("/events/card/{card_id}", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})
	r.Get("/ok", func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, "fine")
	})

	for _, path := range []string{"/events/card/9001", "/ok"} {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, nil))
	}

	assert.Equal(t, []httpRecord{
		{"/events/card/{card_id}", http.MethodGet, http.StatusNotFound},
		{"/ok", http.MethodGet, http.StatusOK},
	}, metrics.requests)

	entries := logs.All()
	require.Len(t, entries, 2)
	assert.Equal(t, zapcore.WarnLevel, entries[0].Level)
	assert.Equal(t, "/events/card/9001", entries[0].ContextMap()["path"])
	assert.Equal(t, zapcore.InfoLevel, entries[1].Level)
}

func TestRateLimiter(t *testing.T) {
	metrics := &recordingMetrics{}
	limiter := NewRateLimiter(0.5, 2, metrics, zap.NewNop())

	r := chi.NewRouter()
	r.With(limiter.Middleware).Post("/webhook/pipefy", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	codes := make([]int, 0, 3)
	var last *httptest.ResponseRecorder
	for i := 0; i < 3; i++ {
		last = httptest.NewRecorder()
		r.ServeHTTP(last, httptest.NewRequest(http.MethodPost, "/webhook/pipefy", nil))
		codes = append(codes, last.Code)
	}

	assert.Equal(t, []int{http.StatusOK, http.StatusOK, http.StatusTooManyRequests}, codes)
	assert.Equal(t, "2", last.Header().Get("Retry-After"))
	assert.Contains(t, last.Body.String(), "rate_limit_exceeded")
	assert.Equal(t, []string{"/webhook/pipefy"}, metrics.rateLimited)
}

func TestRateLimiter_Disabled(t *testing.T) {
	limiter := NewRateLimiter(0, 0, nil, zap.NewNop())
	handler := limiter.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	for i := 0; i < 50; i++ {
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/", nil))
		require.Equal(t, http.StatusOK, w.Code)
	}
}

func TestRetryAfterSeconds(t *testing.T) {
	assert.Equal(t, 1, retryAfterSeconds(rate.Limit(50)))
	assert.Equal(t, 1, retryAfterSeconds(rate.Limit(1)))
	assert.Equal(t, 4, retryAfterSeconds(rate.Limit(0.25)))
}

func TestSignatureVerifier(t *testing.T) {
	const body = `{"data":{"action":"card.move"}}`
	secret := []byte("webhook-secret")
	valid := hex.EncodeToString(Sign(secret, []byte(body)))

	tests := []struct {
		name      string
		signature string
		want      int
	}{
		{name: "valid", signature: valid, want: http.StatusOK},
		{name: "valid with prefix", signature: "sha256=" + valid, want: http.StatusOK},
		{name: "missing", signature: "", want: http.StatusUnauthorized},
		{name: "not hex", signature: "zz", want: http.StatusUnauthorized},
		{name: "wrong", signature: hex.EncodeToString(Sign([]byte("other"), []byte(body))), want: http.StatusUnauthorized},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			verifier := NewSignatureVerifier(string(secret), 1<<20, zap.NewNop())
			handler := verifier.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				got, err := io.ReadAll(r.Body)
				require.NoError(t, err)
				assert.Equal(t, body, string(got))
				w.WriteHeader(http.StatusOK)
			}))

			req := httptest.NewRequest(http.MethodPost, "/webhook/pipefy", strings.NewReader(body))
			if tt.signature != "" {
				req.Header.Set(SignatureHeader, tt.signature)
			}
			w := httptest.NewRecorder()
			handler.ServeHTTP(w, req)

			assert.Equal(t, tt.want, w.Code)
		})
	}
}

func TestSignatureVerifier_TooLarge(t *testing.T) {
	verifier := NewSignatureVerifier("s", 8, zap.NewNop())
	handler := verifier.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("handler should not be called")
	}))

	w := httptest.NewRecorder()
	handler.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"data":"0123456789"}`)))
	assert.Equal(t, http.StatusRequestEntityTooLarge, w.Code)
}

func TestSignatureVerifier_DisabledWithoutSecret(t *testing.T) {
	verifier := NewSignatureVerifier("", 0, zap.NewNop())
	handler := verifier.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	w := httptest.NewRecorder()
	handler.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/", strings.NewReader("{}")))
	assert.Equal(t, http.StatusOK, w.Code)
}
