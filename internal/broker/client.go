// Package broker is the adapter between the onboarding control plane and the
// external connection broker (Composio-compatible REST API).
//
// Client speaks the broker's HTTP protocol. Provider owns the single shared
// Client per (API key, base URL) pair and rebuilds it when credentials change.
// Neither performs retries: a failed call is reported once, as is.
package broker

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/Hazard-House/openclaw/pkg/models"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// DefaultBaseURL is the hosted broker endpoint.
const DefaultBaseURL = "https://backend.composio.dev"

// maxErrorBody caps how much of a failed response is read for its message.
const maxErrorBody = 64 << 10

// APIError is a non-2xx response from the broker.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("broker returned %d %s", e.StatusCode, http.StatusText(e.StatusCode))
	}
	return e.Message
}

// Client is an HTTP client for one broker account. It is safe for concurrent use.
type Client struct {
	apiKey  string
	baseURL string
	http    *http.Client
}

// NewClient creates a broker client. An empty baseURL selects DefaultBaseURL.
func NewClient(apiKey, baseURL string) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &Client{
		apiKey:  apiKey,
		baseURL: strings.TrimRight(baseURL, "/"),
		http: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// BaseURL returns the normalized endpoint this client talks to.
func (c *Client) BaseURL() string { return c.baseURL }

// ── Broker operations ───────────────────────────────────────

// Initiate starts a connection and returns the account id and redirect URL.
func (c *Client) Initiate(ctx context.Context, req models.ConnectionRequest) (*models.InitiateResult, error) {
	body := map[string]string{
		"appName":  req.AppName,
		"entityId": req.EntityID,
	}
	if req.RedirectURI != "" {
		body["redirectUri"] = req.RedirectURI
	}

	data, err := c.do(ctx, http.MethodPost, "/api/v1/connectedAccounts", nil, body)
	if err != nil {
		return nil, err
	}
	return decodeInitiate(data)
}

// Get returns the broker's current record for a connected account.
func (c *Client) Get(ctx context.Context, connectedAccountID string) (*models.ConnectedAccount, error) {
	data, err := c.do(ctx, http.MethodGet, "/api/v1/connectedAccounts/"+url.PathEscape(connectedAccountID), nil, nil)
	if err != nil {
		return nil, err
	}
	obj, err := parseObject(data)
	if err != nil {
		return nil, err
	}
	return decodeAccount(obj)
}

// Delete removes a connected account.
func (c *Client) Delete(ctx context.Context, connectedAccountID string) error {
	_, err := c.do(ctx, http.MethodDelete, "/api/v1/connectedAccounts/"+url.PathEscape(connectedAccountID), nil, nil)
	return err
}

// Execute runs an action and returns the broker's result object untouched.
func (c *Client) Execute(ctx context.Context, req models.ExecuteRequest) (map[string]any, error) {
	params := req.Params
	if params == nil {
		params = map[string]any{}
	}
	body := map[string]any{
		"entityId": req.EntityID,
		"input":    params,
	}
	if req.ConnectedAccountID != "" {
		body["connectedAccountId"] = req.ConnectedAccountID
	}

	data, err := c.do(ctx, http.MethodPost, "/api/v2/actions/"+url.PathEscape(req.ActionName)+"/execute", nil, body)
	if err != nil {
		return nil, err
	}
	return decodeResult(data)
}

// ListForEntity returns every connected account of an entity.
func (c *Client) ListForEntity(ctx context.Context, entityID string) ([]models.ConnectedAccount, error) {
	query := url.Values{"user_uuids": {entityID}}
	data, err := c.do(ctx, http.MethodGet, "/api/v1/connectedAccounts", query, nil)
	if err != nil {
		return nil, err
	}
	return decodeAccountList(data)
}

// ── Transport ───────────────────────────────────────────────

func (c *Client) do(ctx context.Context, method, path string, query url.Values, body any) ([]byte, error) {
	endpoint := c.baseURL + path
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}

	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("encode request: %w", err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	requestID := uuid.New().String()
	req.Header.Set("x-api-key", c.apiKey)
	req.Header.Set("X-Request-Id", requestID)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("broker %s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	log.Debug().
		Str("method", method).
		Str("path", path).
		Int("status", resp.StatusCode).
		Str("request_id", requestID).
		Dur("duration", time.Since(start)).
		Msg("broker call")

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return nil, &APIError{StatusCode: resp.StatusCode, Message: errorMessage(raw)}
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	return data, nil
}
