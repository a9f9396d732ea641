// Package backendapi is the client for the bot's own backend service, which
// brokers viewer discount claims and serves the channel roster for auto-join.
package backendapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"
)

// Reason classifies a failed claim. The backend emits these values; anything
// else is treated as unclassified and logged with the full payload.
type Reason string

const (
	ReasonNetworkError Reason = "network_error"
	ReasonHTTPError    Reason = "http_error"
	ReasonNotFound     Reason = "not_found"
	ReasonDisabled     Reason = "disabled"
	ReasonNotConnected Reason = "not_connected"
	ReasonCooldown     Reason = "cooldown"
	ReasonLimitReached Reason = "limit_reached"
	ReasonPlanLimit    Reason = "plan_limit"
	ReasonUnknown      Reason = "unknown"
)

// classify maps a raw backend reason string onto the known enumeration.
func classify(raw string) Reason {
	switch Reason(raw) {
	case ReasonNotFound, ReasonDisabled, ReasonNotConnected, ReasonCooldown,
		ReasonLimitReached, ReasonPlanLimit:
		return Reason(raw)
	default:
		return ReasonUnknown
	}
}

// ClaimResult is the structured outcome of a claim request.
type ClaimResult struct {
	OK                bool   `json:"ok"`
	DiscountCode      string `json:"discountCode,omitempty"`
	Reason            Reason `json:"reason,omitempty"`
	Message           string `json:"message,omitempty"`
	RetryAfterSeconds int    `json:"retryAfterSeconds,omitempty"`
}

// Client talks to the dropbot backend. BaseURL has no trailing slash.
type Client struct {
	BaseURL    string
	HTTPClient *http.Client
}

func (c *Client) http() *http.Client {
	if c.HTTPClient != nil {
		return c.HTTPClient
	}
	return &http.Client{Timeout: 10 * time.Second}
}

// RequestClaim asks the backend to issue a discount for a viewer in a channel.
// Transport failures come back as a ClaimResult with reason network_error;
// unexpected statuses or non-JSON bodies as http_error. The returned error is
// non-nil only for programming mistakes (bad request construction).
func (c *Client) RequestClaim(ctx context.Context, channel, username string) (*ClaimResult, error) {
	payload, err := json.Marshal(map[string]string{
		"channel":  channel,
		"username": username,
	})
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+"/api/claim", bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http().Do(req)
	if err != nil {
		slog.Warn("claim request transport failure", slog.Any("err", err))
		return &ClaimResult{OK: false, Reason: ReasonNetworkError}, nil
	}
	defer func() {
		if err := resp.Body.Close(); err != nil {
			slog.Warn("failed to close response body", slog.Any("err", err))
		}
	}()

	var raw struct {
		OK                bool   `json:"ok"`
		DiscountCode      string `json:"discountCode"`
		Reason            string `json:"reason"`
		Message           string `json:"message"`
		RetryAfterSeconds int    `json:"retryAfterSeconds"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&raw); err != nil {
		slog.Warn("claim response not JSON", slog.Int("status", resp.StatusCode), slog.Any("err", err))
		return &ClaimResult{OK: false, Reason: ReasonHTTPError}, nil
	}
	if raw.OK {
		return &ClaimResult{OK: true, DiscountCode: raw.DiscountCode}, nil
	}

	reason := classify(raw.Reason)
	if reason == ReasonUnknown {
		slog.Error("unclassified claim failure",
			slog.String("channel", channel),
			slog.String("username", username),
			slog.Int("status", resp.StatusCode),
			slog.String("reason", raw.Reason),
			slog.String("message", raw.Message))
	}
	return &ClaimResult{
		OK:                false,
		Reason:            reason,
		Message:           raw.Message,
		RetryAfterSeconds: raw.RetryAfterSeconds,
	}, nil
}

// ListChannels fetches the roster of channels the bot should sit in.
func (c *Client) ListChannels(ctx context.Context) ([]string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.BaseURL+"/api/channels", nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.http().Do(req)
	if err != nil {
		return nil, fmt.Errorf("channel roster request: %w", err)
	}
	defer func() {
		if err := resp.Body.Close(); err != nil {
			slog.Warn("failed to close response body", slog.Any("err", err))
		}
	}()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("channel roster request failed: %s", resp.Status)
	}
	var body struct {
		OK       bool     `json:"ok"`
		Channels []string `json:"channels"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, err
	}
	if !body.OK {
		return nil, fmt.Errorf("channel roster response not ok")
	}
	return body.Channels, nil
}
