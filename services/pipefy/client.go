// Package pipefy fetches authoritative card state from the Pipefy GraphQL API.
package pipefy

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/upb/pipebridge/config"
	"github.com/upb/pipebridge/internal/observability"
	"github.com/upb/pipebridge/models"
	"github.com/upb/pipebridge/services"
)

const (
	upstreamName = "pipefy"
	maxBodyBytes = 4 << 20
)

const getCardQuery = `query GetCard($cardId: ID!) {
  card(id: $cardId) {
    id
    title
    current_phase { id name }
    fields { name value field { id label type } }
    assignees { id name email }
    labels { id name color }
    created_at
    updated_at
    due_date
    url
  }
}`

type graphQLRequest struct {
	Query     string                 `json:"query"`
	Variables map[string]interface{} `json:"variables,omitempty"`
}

type graphQLError struct {
	Message string `json:"message"`
}

type getCardResponse struct {
	Data *struct {
		Card json.RawMessage `json:"card"`
	} `json:"data"`
	Errors []graphQLError `json:"errors"`
}

// Client queries card details. One request per call, no retries.
type Client struct {
	endpoint   string
	token      string
	httpClient *http.Client
	metrics    observability.MetricsRecorder
	logger     *zap.Logger
}

// NewClient creates a Pipefy client. A nil httpClient gets one bounded by
// cfg.Timeout, itself capped at config.MaxPipefyTimeout.
func NewClient(cfg config.PipefyConfig, httpClient *http.Client, metrics observability.MetricsRecorder, logger *zap.Logger) *Client {
	if httpClient == nil {
		timeout := cfg.Timeout
		if timeout <= 0 || timeout > config.MaxPipefyTimeout {
			timeout = config.MaxPipefyTimeout
		}
		httpClient = &http.Client{Timeout: timeout}
	}
	if metrics == nil {
		metrics = observability.NopMetrics{}
	}
	return &Client{
		endpoint:   cfg.APIURL,
		token:      cfg.APIToken,
		httpClient: httpClient,
		metrics:    metrics,
		logger:     logger,
	}
}

// FetchCard returns the typed snapshot together with the card JSON exactly
// as Pipefy sent it.
func (c *Client) FetchCard(ctx context.Context, cardID string) (*models.CardSnapshot, json.RawMessage, error) {
	if strings.TrimSpace(cardID) == "" {
		return nil, nil, services.NewDomainError(services.ErrorTypeValidation, "card id is required", nil)
	}

	payload, err := json.Marshal(graphQLRequest{
		Query:     getCardQuery,
		Variables: map[string]interface{}{"cardId": cardID},
	})
	if err != nil {
		return nil, nil, fmt.Errorf("failed to encode query: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(payload))
	if err != nil {
		return nil, nil, fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.metrics.RecordUpstream(upstreamName, "get_card", 0, time.Since(start))
		c.logger.Error("pipefy request failed", zap.String("card_id", cardID), zap.Error(err))
		return nil, nil, services.WrapUnavailable("pipefy API unreachable", err)
	}
	defer resp.Body.Close()
	c.metrics.RecordUpstream(upstreamName, "get_card", resp.StatusCode, time.Since(start))

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, nil, services.WrapUnavailable("failed to read pipefy response", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		c.logger.Warn("pipefy returned an error status",
			zap.String("card_id", cardID),
			zap.Int("status", resp.StatusCode),
		)
		return nil, nil, services.NewDomainError(services.ErrorTypeUpstreamQuery, "pipefy request failed", nil).
			WithUpstream(resp.StatusCode, body)
	}

	var gr getCardResponse
	if err := json.Unmarshal(body, &gr); err != nil {
		return nil, nil, services.WrapError(services.ErrorTypeUpstreamQuery, "invalid pipefy response", err).
			WithUpstream(resp.StatusCode, body)
	}

	if len(gr.Errors) > 0 {
		messages := make([]string, 0, len(gr.Errors))
		for _, e := range gr.Errors {
			messages = append(messages, e.Message)
		}
		c.logger.Warn("pipefy query returned errors",
			zap.String("card_id", cardID),
			zap.Strings("errors", messages),
		)
		return nil, nil, services.NewDomainError(services.ErrorTypeUpstreamQuery, "pipefy query failed", nil).
			WithDetail("errors", messages).
			WithUpstream(resp.StatusCode, nil)
	}

	if gr.Data == nil || len(gr.Data.Card) == 0 || bytes.Equal(gr.Data.Card, []byte("null")) {
		return nil, nil, services.NewDomainError(services.ErrorTypeUpstreamQuery, "card not found", nil).
			WithDetail("card_id", cardID)
	}

	var card models.CardSnapshot
	if err := json.Unmarshal(gr.Data.Card, &card); err != nil {
		return nil, nil, services.WrapError(services.ErrorTypeUpstreamQuery, "unexpected card shape", err)
	}

	return &card, gr.Data.Card, nil
}
