package stripe

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"online-booking-backend/config"
	"online-booking-backend/internal/gateway"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

// Client is a thin HTTP wrapper over the Stripe payment-intents API. Amounts
// are converted to the smallest currency unit; every create carries an
// Idempotency-Key header so the gateway deduplicates retried requests
// server-side.
type Client struct {
	baseURL    string
	secretKey  string
	httpClient *http.Client
	log        *logrus.Logger
}

func NewClient(cfg config.StripeConfig, log *logrus.Logger) *Client {
	return &Client{
		baseURL:   strings.TrimRight(cfg.BaseURL, "/"),
		secretKey: cfg.SecretKey,
		// Per-call deadlines come from the caller's context; the transport
		// timeout is a backstop only.
		httpClient: &http.Client{Timeout: cfg.CallTimeout + 5*time.Second},
		log:        log,
	}
}

type intentPayload struct {
	ID     string `json:"id"`
	Status string `json:"status"`
}

type errorPayload struct {
	Error struct {
		Type    string         `json:"type"`
		Code    string         `json:"code"`
		Message string         `json:"message"`
		Intent  *intentPayload `json:"payment_intent"`
	} `json:"error"`
}

func (c *Client) CreateIntent(ctx context.Context, amount decimal.Decimal, currency, idempotencyKey, description string) (*gateway.Intent, error) {
	form := url.Values{}
	form.Set("amount", fmt.Sprintf("%d", amount.Mul(decimal.NewFromInt(100)).IntPart()))
	form.Set("currency", strings.ToLower(currency))
	form.Set("description", description)
	form.Set("automatic_payment_methods[enabled]", "true")

	payload, err := c.do(ctx, http.MethodPost, "/v1/payment_intents", form, idempotencyKey)
	if err != nil {
		return nil, err
	}
	return &gateway.Intent{Ref: payload.ID, Status: gateway.IntentStatus(payload.Status)}, nil
}

func (c *Client) Confirm(ctx context.Context, intentRef string) (gateway.IntentStatus, error) {
	payload, err := c.do(ctx, http.MethodPost, "/v1/payment_intents/"+intentRef+"/confirm", url.Values{}, "")
	if err != nil {
		return "", err
	}
	return gateway.IntentStatus(payload.Status), nil
}

func (c *Client) Cancel(ctx context.Context, intentRef string) (gateway.IntentStatus, error) {
	payload, err := c.do(ctx, http.MethodPost, "/v1/payment_intents/"+intentRef+"/cancel", url.Values{}, "")
	if err != nil {
		return "", err
	}
	return gateway.IntentStatus(payload.Status), nil
}

func (c *Client) Retrieve(ctx context.Context, intentRef string) (gateway.IntentStatus, error) {
	payload, err := c.do(ctx, http.MethodGet, "/v1/payment_intents/"+intentRef, nil, "")
	if err != nil {
		return "", err
	}
	return gateway.IntentStatus(payload.Status), nil
}

func (c *Client) do(ctx context.Context, method, path string, form url.Values, idempotencyKey string) (*intentPayload, error) {
	var body io.Reader
	if method != http.MethodGet && form != nil {
		body = strings.NewReader(form.Encode())
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+c.secretKey)
	if method != http.MethodGet {
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	}
	if idempotencyKey != "" {
		req.Header.Set("Idempotency-Key", idempotencyKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		// Timeouts and transport failures leave the true outcome unknown.
		c.log.Warnf("Stripe request %s %s failed: %+v", method, path, err)
		return nil, gateway.ErrUnavailable
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, gateway.ErrUnavailable
	}

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		var payload intentPayload
		if err := json.Unmarshal(raw, &payload); err != nil {
			return nil, fmt.Errorf("failed to decode gateway response: %w", err)
		}
		return &payload, nil
	}

	var payload errorPayload
	_ = json.Unmarshal(raw, &payload)

	// A retried confirm against an already-settled intent is not a failure:
	// the gateway reports the state the intent is already in.
	if payload.Error.Code == "payment_intent_unexpected_state" &&
		payload.Error.Intent != nil &&
		gateway.IntentStatus(payload.Error.Intent.Status).Settled() {
		return payload.Error.Intent, nil
	}

	return nil, c.mapError(resp.StatusCode, payload, method, path)
}

func (c *Client) mapError(statusCode int, payload errorPayload, method, path string) error {
	switch {
	case statusCode == http.StatusNotFound:
		return gateway.ErrIntentNotFound
	case statusCode == http.StatusTooManyRequests || statusCode >= 500:
		c.log.Warnf("Stripe %s %s returned %d: %s", method, path, statusCode, payload.Error.Message)
		return gateway.ErrUnavailable
	default:
		c.log.Warnf("Stripe %s %s rejected (%d, %s): %s", method, path, statusCode, payload.Error.Code, payload.Error.Message)
		return gateway.ErrRejected
	}
}
