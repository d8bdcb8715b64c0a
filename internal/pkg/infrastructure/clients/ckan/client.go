package ckan

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

// Client speaks CKAN's action API: every operation is a POST to
// /api/3/action/<action> with a JSON body and a JSON envelope in return.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient http.Client
}

// Option configures a Client.
type Option func(*Client)

// WithAPIKey sets the Authorization header used on every call.
func WithAPIKey(key string) Option {
	return func(c *Client) {
		c.apiKey = key
	}
}

// WithoutSSLVerification disables certificate checks for instances running
// with self signed certificates.
func WithoutSSLVerification() Option {
	return func(c *Client) {
		transport := http.DefaultTransport.(*http.Transport).Clone()
		transport.TLSClientConfig = &tls.Config{InsecureSkipVerify: true}
		c.httpClient.Transport = otelhttp.NewTransport(transport)
	}
}

// WithTimeout overrides the default 30 second request timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		c.httpClient.Timeout = d
	}
}

// New creates a client for the CKAN instance at baseURL. A scheme is
// prepended when missing.
func New(baseURL string, opts ...Option) *Client {
	if baseURL != "" && !strings.HasPrefix(baseURL, "http://") && !strings.HasPrefix(baseURL, "https://") {
		baseURL = "http://" + baseURL
	}

	c := &Client{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		httpClient: http.Client{
			Transport: otelhttp.NewTransport(http.DefaultTransport),
			Timeout:   30 * time.Second,
		},
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// URL returns the base URL the client was created with.
func (c *Client) URL() string {
	return c.baseURL
}

type envelope struct {
	Success bool            `json:"success"`
	Result  json.RawMessage `json:"result"`
	Error   *actionError    `json:"error,omitempty"`
}

type actionError struct {
	Type    string `json:"__type"`
	Message string `json:"message"`
}

// Error classification for action failures, so the repository layer can
// translate onto its typed taxonomy without parsing message text.
var (
	ErrActionNotFound   = errors.New("ckan: not found")
	ErrActionValidation = errors.New("ckan: validation error")
	ErrActionConflict   = errors.New("ckan: conflict")
	ErrUnreachable      = errors.New("ckan: unreachable")
)

// Call invokes a CKAN action with the given JSON payload and unmarshals
// the result into out when out is non nil.
func (c *Client) Call(ctx context.Context, action string, payload any, out any) error {
	body := []byte("{}")

	if payload != nil {
		var err error
		body, err = json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("failed to marshal %s payload: %w", action, err)
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/3/action/"+action, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Add("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Add("Authorization", c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		var netErr net.Error
		if errors.As(err, &netErr) && netErr.Timeout() {
			return fmt.Errorf("%w: request to %s timed out", ErrUnreachable, c.baseURL)
		}
		return fmt.Errorf("%w: %s", ErrUnreachable, err.Error())
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response body: %w", err)
	}

	var env envelope
	if err := json.Unmarshal(respBody, &env); err != nil {
		return fmt.Errorf("ckan returned status code %d with unparseable body: %s", resp.StatusCode, string(respBody))
	}

	if !env.Success || resp.StatusCode >= http.StatusBadRequest {
		return c.actionFailure(action, resp.StatusCode, env.Error)
	}

	if out != nil && len(env.Result) > 0 {
		if err := json.Unmarshal(env.Result, out); err != nil {
			return fmt.Errorf("failed to unmarshal %s result: %w", action, err)
		}
	}

	return nil
}

func (c *Client) actionFailure(action string, statusCode int, actionErr *actionError) error {
	message := fmt.Sprintf("action %s failed with status code %d", action, statusCode)
	errType := ""

	if actionErr != nil {
		errType = actionErr.Type
		if actionErr.Message != "" {
			message = actionErr.Message
		}
	}

	switch {
	case errType == "Not Found Error" || statusCode == http.StatusNotFound:
		return fmt.Errorf("%w: %s", ErrActionNotFound, message)
	case errType == "Validation Error":
		return fmt.Errorf("%w: %s", ErrActionValidation, message)
	case statusCode == http.StatusConflict:
		return fmt.Errorf("%w: %s", ErrActionConflict, message)
	case statusCode == http.StatusBadGateway || statusCode == http.StatusServiceUnavailable || statusCode == http.StatusGatewayTimeout:
		return fmt.Errorf("%w: %s", ErrUnreachable, message)
	default:
		return fmt.Errorf("ckan: %s", message)
	}
}
