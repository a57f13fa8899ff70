package payment

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"
)

// HTTPDoer defines http.Client interface subset.
type HTTPDoer interface {
	Do(*http.Request) (*http.Response, error)
}

// Client talks to a Stripe-compatible payment API. Amounts cross the wire in
// minor currency units; the rest of the system works in major units.
type Client struct {
	baseURL   string
	secretKey string
	currency  string
	client    HTTPDoer
	logger    *zap.Logger
}

// NewClient builds payment client.
func NewClient(baseURL, secretKey, currency string, logger *zap.Logger) *Client {
	if currency == "" {
		currency = "pln"
	}
	return &Client{
		baseURL:   strings.TrimRight(baseURL, "/"),
		secretKey: secretKey,
		currency:  currency,
		client:    &http.Client{Timeout: 15 * time.Second},
		logger:    logger,
	}
}

type intentResponse struct {
	ID           string `json:"id"`
	ClientSecret string `json:"client_secret"`
}

type refundResponse struct {
	ID string `json:"id"`
}

type apiError struct {
	Error struct {
		Message string `json:"message"`
	} `json:"error"`
}

// CreateIntent authorizes a hold for the given amount.
func (c *Client) CreateIntent(ctx context.Context, amount float64) (Hold, error) {
	form := url.Values{}
	form.Set("amount", strconv.FormatInt(toMinorUnits(amount), 10))
	form.Set("currency", c.currency)

	var resp intentResponse
	if err := c.post(ctx, "/v1/payment_intents", form, &resp); err != nil {
		return Hold{}, fmt.Errorf("payment: create intent: %w", err)
	}

	c.logger.Info("payment intent created", zap.String("intent_id", resp.ID), zap.Float64("amount", amount))
	return Hold{ID: resp.ID, ClientSecret: resp.ClientSecret}, nil
}

// Refund returns part of a previously authorized hold.
func (c *Client) Refund(ctx context.Context, paymentIntentID string, amount float64) (string, error) {
	form := url.Values{}
	form.Set("payment_intent", paymentIntentID)
	form.Set("amount", strconv.FormatInt(toMinorUnits(amount), 10))

	var resp refundResponse
	if err := c.post(ctx, "/v1/refunds", form, &resp); err != nil {
		return "", fmt.Errorf("payment: refund: %w", err)
	}

	c.logger.Info("refund issued",
		zap.String("intent_id", paymentIntentID),
		zap.String("refund_id", resp.ID),
		zap.Float64("amount", amount),
	)
	return resp.ID, nil
}

func (c *Client) post(ctx context.Context, path string, form url.Values, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, strings.NewReader(form.Encode()))
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+c.secretKey)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		var apiErr apiError
		if err := json.NewDecoder(resp.Body).Decode(&apiErr); err == nil && apiErr.Error.Message != "" {
			return fmt.Errorf("status %d: %s", resp.StatusCode, apiErr.Error.Message)
		}
		return fmt.Errorf("status %d", resp.StatusCode)
	}

	return json.NewDecoder(resp.Body).Decode(out)
}

func toMinorUnits(amount float64) int64 {
	return int64(math.Round(amount * 100))
}
