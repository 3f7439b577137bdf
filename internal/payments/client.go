package payments

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"marketplace_backend/platform/config"
	"marketplace_backend/platform/logger"
)

// Client is the HTTP implementation of Provider.
type Client struct {
	httpClient *http.Client
	baseURL    string
	apiKey     string
	log        *logger.Logger
}

// NewClient creates a payment API client.
func NewClient(cfg config.PaymentConfig, log *logger.Logger) *Client {
	return &Client{
		httpClient: &http.Client{Timeout: 10 * time.Second},
		baseURL:    cfg.GetPaymentAPIURL(),
		apiKey:     cfg.GetPaymentAPIKey(),
		log:        log,
	}
}

type intentRequestBody struct {
	Amount   int64             `json:"amount"`
	Currency string            `json:"currency"`
	Metadata map[string]string `json:"metadata,omitempty"`
}

type intentResponseBody struct {
	IntentID string `json:"intentId"`
}

// CreateIntent requests a payment intent and returns its opaque handle.
func (c *Client) CreateIntent(ctx context.Context, req IntentRequest) (string, error) {
	body, err := json.Marshal(intentRequestBody{
		Amount:   req.AmountCents,
		Currency: req.Currency,
		Metadata: req.Metadata,
	})
	if err != nil {
		return "", fmt.Errorf("marshal intent request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/intents", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("build intent request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("create payment intent: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		return "", fmt.Errorf("payment intent failed: status %d", resp.StatusCode)
	}

	var parsed intentResponseBody
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return "", fmt.Errorf("decode intent response: %w", err)
	}
	if parsed.IntentID == "" {
		return "", fmt.Errorf("payment intent response missing intentId")
	}

	c.log.Info("payment_intent_created",
		"engagement_id", req.EngagementID.String(),
		"amount_cents", req.AmountCents,
		"currency", req.Currency,
	)
	return parsed.IntentID, nil
}

// Compile-time check that Client implements Provider.
var _ Provider = (*Client)(nil)
var _ Provider = Disabled{}
