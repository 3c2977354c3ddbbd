// Package telephony places outbound calls through the Twilio REST API
// and builds the TwiML that routes answered calls to the media relay.
package telephony

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"github.com/verbilabs/callbridge/internal/httpc"
)

// DefaultBaseURL is the Twilio REST API endpoint.
const DefaultBaseURL = "https://api.twilio.com"

// ErrNoCredentials is returned when the account SID or auth token is empty.
var ErrNoCredentials = errors.New("telephony: missing account credentials")

// PlacementError is a non-2xx response from the call placement API.
type PlacementError struct {
	StatusCode int
	Code       int
	Message    string
}

func (e *PlacementError) Error() string {
	return fmt.Sprintf("telephony: call placement failed (HTTP %d, code %d): %s",
		e.StatusCode, e.Code, e.Message)
}

// Client places calls for one account.
type Client struct {
	accountSID string
	authToken  string
	from       string
	baseURL    string
	httpClient *http.Client
	logger     *slog.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithBaseURL overrides the API endpoint. Used in tests.
func WithBaseURL(u string) Option {
	return func(c *Client) { c.baseURL = u }
}

// WithHTTPClient overrides the HTTP client.
func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) { c.httpClient = h }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(c *Client) { c.logger = l.With("component", "telephony") }
}

// NewClient creates a placement client. from is the E.164 caller number.
func NewClient(accountSID, authToken, from string, opts ...Option) (*Client, error) {
	if accountSID == "" || authToken == "" {
		return nil, ErrNoCredentials
	}
	c := &Client{
		accountSID: accountSID,
		authToken:  authToken,
		from:       from,
		baseURL:    DefaultBaseURL,
		httpClient: httpc.NewClient(httpc.DefaultTimeout),
		logger:     slog.Default().With("component", "telephony"),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// PlaceCall starts an outbound call to the given number, executing the
// provided TwiML when answered. Returns the provider's call SID.
func (c *Client) PlaceCall(ctx context.Context, to, twiml string) (string, error) {
	form := url.Values{
		"To":    {to},
		"From":  {c.from},
		"Twiml": {twiml},
	}

	endpoint := fmt.Sprintf("%s/2010-04-01/Accounts/%s/Calls.json", c.baseURL, c.accountSID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return "", fmt.Errorf("telephony: build request: %w", err)
	}
	req.SetBasicAuth(c.accountSID, c.authToken)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("telephony: place call: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("telephony: read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", parsePlacementError(resp.StatusCode, body)
	}

	var placed struct {
		Sid    string `json:"sid"`
		Status string `json:"status"`
	}
	if err := json.Unmarshal(body, &placed); err != nil {
		return "", fmt.Errorf("telephony: decode response: %w", err)
	}

	c.logger.Info("call placed", "call_sid", placed.Sid, "to", to, "status", placed.Status)
	return placed.Sid, nil
}

func parsePlacementError(status int, body []byte) error {
	var apiErr struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	}
	if err := json.Unmarshal(body, &apiErr); err != nil || apiErr.Message == "" {
		apiErr.Message = strings.TrimSpace(string(body))
	}
	return &PlacementError{
		StatusCode: status,
		Code:       apiErr.Code,
		Message:    apiErr.Message,
	}
}
