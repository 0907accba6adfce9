package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"online-booking-backend/config"

	"github.com/sirupsen/logrus"
)

// ErrBackendUnavailable is returned when the AI backend cannot be reached or
// answers with an error. The chat usecase substitutes a fallback reply.
var ErrBackendUnavailable = errors.New("ai backend unavailable")

// Client proxies support-chat messages to the AI backend.
type Client struct {
	baseURL    string
	httpClient *http.Client
	log        *logrus.Logger
}

func NewClient(cfg config.ChatConfig, log *logrus.Logger) *Client {
	return &Client{
		baseURL:    strings.TrimRight(cfg.AIBackendURL, "/"),
		httpClient: &http.Client{Timeout: cfg.CallTimeout},
		log:        log,
	}
}

type chatRequest struct {
	Message  string `json:"message"`
	ReportID string `json:"report_id"`
}

type chatResponse struct {
	Response string `json:"response"`
}

// Reply sends the user's message and the session's report ID to the backend
// and returns its answer.
func (c *Client) Reply(ctx context.Context, message, reportID string) (string, error) {
	body, err := json.Marshal(chatRequest{Message: message, ReportID: reportID})
	if err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat", bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.log.Warnf("Failed to call AI backend: %+v", err)
		return "", ErrBackendUnavailable
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		c.log.Warnf("AI backend returned status %d", resp.StatusCode)
		return "", ErrBackendUnavailable
	}

	var payload chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return "", fmt.Errorf("failed to decode AI response: %w", err)
	}
	return payload.Response, nil
}
