// Package httpclient provides a small JSON-over-HTTP client used
// for the catalog action API and for webhook notifications. It
// carries API-key authentication, a token-bucket rate limiter and
// request/response logging.
package httpclient

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

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"digital.vasic.beekeeper/pkg/logging"
)

// ClientOption configures an APIClient via functional options.
type ClientOption func(*APIClient)

// APIClient wraps net/http.Client for calling JSON APIs. Defaults
// let callers use NewAPIClient(url) with zero options.
type APIClient struct {
	baseURL    string
	apiKey     string
	authHeader string
	userAgent  string
	httpClient *http.Client
	limiter    *rate.Limiter
	logger     logging.Logger
}

// StatusError is returned when the server answers with a
// non-2xx status. The body is kept so callers can decode API
// specific error envelopes.
type StatusError struct {
	StatusCode int
	Body       []byte
}

func (e *StatusError) Error() string {
	body := string(e.Body)
	if len(body) > 200 {
		body = body[:200] + "..."
	}
	return fmt.Sprintf("HTTP %d: %s", e.StatusCode, body)
}

// NewAPIClient creates an API client targeting the given base URL.
func NewAPIClient(baseURL string, opts ...ClientOption) *APIClient {
	c := &APIClient{
		baseURL:    strings.TrimRight(baseURL, "/"),
		authHeader: "Authorization",
		userAgent:  "beekeeper",
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		logger: logging.NullLogger{},
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// WithAPIKey sets the key sent with every request.
func WithAPIKey(key string) ClientOption {
	return func(c *APIClient) { c.apiKey = key }
}

// WithAuthHeader overrides the header carrying the API key.
func WithAuthHeader(name string) ClientOption {
	return func(c *APIClient) { c.authHeader = name }
}

// WithTimeout overrides the default HTTP client timeout.
func WithTimeout(d time.Duration) ClientOption {
	return func(c *APIClient) { c.httpClient.Timeout = d }
}

// WithRateLimit bounds outgoing requests to rps per second with
// the given burst. A non-positive rps disables limiting.
func WithRateLimit(rps float64, burst int) ClientOption {
	return func(c *APIClient) {
		if rps <= 0 {
			c.limiter = nil
			return
		}
		if burst < 1 {
			burst = 1
		}
		c.limiter = rate.NewLimiter(rate.Limit(rps), burst)
	}
}

// WithLogger sets the logger receiving request/response logs.
func WithLogger(l logging.Logger) ClientOption {
	return func(c *APIClient) {
		if l != nil {
			c.logger = l
		}
	}
}

// WithUserAgent overrides the User-Agent header.
func WithUserAgent(ua string) ClientOption {
	return func(c *APIClient) { c.userAgent = ua }
}

// GetJSON performs a GET on path with the given query and decodes
// the JSON response into out. Numbers are decoded as json.Number
// so integer fields survive unchanged.
func (c *APIClient) GetJSON(
	ctx context.Context, path string, query url.Values, out any,
) error {
	target := c.baseURL + path
	if len(query) > 0 {
		target += "?" + query.Encode()
	}
	req, err := http.NewRequestWithContext(
		ctx, http.MethodGet, target, nil,
	)
	if err != nil {
		return errors.Wrap(err, "create request")
	}
	return c.do(req, out)
}

// PostJSON marshals body, POSTs it to path and decodes the JSON
// response into out. A nil out discards the response body.
func (c *APIClient) PostJSON(
	ctx context.Context, path string, body, out any,
) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return errors.Wrap(err, "marshal request body")
	}
	req, err := http.NewRequestWithContext(
		ctx, http.MethodPost, c.baseURL+path,
		bytes.NewReader(payload),
	)
	if err != nil {
		return errors.Wrap(err, "create request")
	}
	req.Header.Set("Content-Type", "application/json")
	return c.do(req, out)
}

func (c *APIClient) do(req *http.Request, out any) error {
	if c.limiter != nil {
		if err := c.limiter.Wait(req.Context()); err != nil {
			return errors.Wrap(err, "rate limiter")
		}
	}

	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", c.userAgent)
	if c.apiKey != "" {
		req.Header.Set(c.authHeader, c.apiKey)
	}

	requestID := uuid.NewString()
	c.logger.LogAPIRequest(logging.APIRequestLog{
		RequestID: requestID,
		Method:    req.Method,
		URL:       req.URL.String(),
		Headers:   flattenHeaders(req.Header),
	})

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return errors.Wrapf(err, "%s %s", req.Method, req.URL.Path)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return errors.Wrap(err, "read response")
	}

	c.logger.LogAPIResponse(logging.APIResponseLog{
		RequestID:      requestID,
		StatusCode:     resp.StatusCode,
		BodyLength:     len(data),
		ResponseTimeMs: time.Since(start).Milliseconds(),
	})

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &StatusError{StatusCode: resp.StatusCode, Body: data}
	}

	if out == nil || len(data) == 0 {
		return nil
	}

	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	if err := dec.Decode(out); err != nil {
		return errors.Wrap(err, "parse response")
	}
	return nil
}

func flattenHeaders(h http.Header) map[string]string {
	out := make(map[string]string, len(h))
	for k, v := range h {
		out[k] = strings.Join(v, ", ")
	}
	return out
}
