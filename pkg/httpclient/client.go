package httpclient

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/url"
	"time"

	errs "rolesync/pkg/errors"
	"rolesync/pkg/logger"
)

// Fetcher is the subset of Client used by the sync components
type Fetcher interface {
	Get(ctx context.Context, rawURL string, timeout time.Duration) ([]byte, error)
	GetJSON(ctx context.Context, rawURL string, timeout time.Duration, target interface{}) error
}

// Options configures a Client
type Options struct {
	UserAgent string
	// Token is sent as a bearer token, but only to TokenHost
	Token     string
	TokenHost string
	// HTTPClient overrides the underlying client (tests, proxies)
	HTTPClient *http.Client
	Logger     logger.Logger
}

// Client performs GET requests against the upstream hosts. Every call gets
// its own deadline through the timeout argument, covering the body read.
type Client struct {
	httpClient *http.Client
	headers    map[string]string
	token      string
	tokenHost  string
	logger     logger.Logger
}

// New creates a Client
func New(opts Options) *Client {
	log := opts.Logger
	if log == nil {
		log = logger.GetLogger()
	}
	hc := opts.HTTPClient
	if hc == nil {
		hc = &http.Client{}
	}
	ua := opts.UserAgent
	if ua == "" {
		ua = "rolesync/1.0"
	}

	return &Client{
		httpClient: hc,
		headers: map[string]string{
			"User-Agent": ua,
			"Accept":     "application/json, image/*;q=0.9, */*;q=0.8",
		},
		token:     opts.Token,
		tokenHost: opts.TokenHost,
		logger:    log,
	}
}

// SetHeader sets a header sent with every request
func (c *Client) SetHeader(key, value string) {
	c.headers[key] = value
}

// Get fetches rawURL and returns the body of a 200 response. Any other
// status, or a transport failure, is returned as an *errors.Error whose Code
// carries the status (0 for transport failures).
func (c *Client) Get(ctx context.Context, rawURL string, timeout time.Duration) ([]byte, error) {
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, errs.New(errs.ErrorTypeUnknown, 0, err, "failed to create request for %s", rawURL)
	}
	for key, value := range c.headers {
		req.Header.Set(key, value)
	}
	if c.token != "" && req.URL.Host == c.tokenHost {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		logger.LogRequest(c.logger, req.Method, rawURL, 0, time.Since(start))
		return nil, errs.New(errs.ErrorTypeNetwork, 0, err, "request to %s failed", rawURL)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	logger.LogRequest(c.logger, req.Method, rawURL, resp.StatusCode, time.Since(start))
	if err != nil {
		return nil, errs.New(errs.ErrorTypeNetwork, resp.StatusCode, err, "failed to read response body from %s", rawURL)
	}

	if err := statusError(resp.StatusCode, rawURL); err != nil {
		return nil, err
	}
	return body, nil
}

// GetJSON fetches rawURL and decodes the body into target
func (c *Client) GetJSON(ctx context.Context, rawURL string, timeout time.Duration, target interface{}) error {
	body, err := c.Get(ctx, rawURL, timeout)
	if err != nil {
		return err
	}

	if err := json.Unmarshal(body, target); err != nil {
		preview := string(body)
		if len(preview) > 200 {
			preview = preview[:200] + "..."
		}
		c.logger.DebugWithFields("failed to parse JSON response", map[string]interface{}{
			"url":          rawURL,
			"body_preview": preview,
		})
		return errs.New(errs.ErrorTypeParsing, http.StatusOK, err, "invalid JSON from %s", rawURL)
	}
	return nil
}

func statusError(status int, rawURL string) error {
	switch {
	case status == http.StatusOK:
		return nil
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return errs.New(errs.ErrorTypeAuth, status, nil, "access denied for %s", rawURL)
	case status == http.StatusNotFound:
		return errs.New(errs.ErrorTypeNotFound, status, nil, "%s not found", rawURL)
	case status == http.StatusTooManyRequests:
		return errs.New(errs.ErrorTypeRateLimit, status, nil, "rate limited by %s", hostOf(rawURL))
	case status >= 500:
		return errs.New(errs.ErrorTypeServerError, status, nil, "server error from %s", hostOf(rawURL))
	default:
		return errs.New(errs.ErrorTypeUnknown, status, nil, "unexpected status %d from %s", status, rawURL)
	}
}

func hostOf(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return rawURL
	}
	return u.Host
}

// StatusCode extracts the HTTP status carried by err, or 0
func StatusCode(err error) int {
	var typed *errs.Error
	if errors.As(err, &typed) {
		return typed.Code
	}
	return 0
}

// HostOf returns the host part of rawURL
func HostOf(rawURL string) string {
	return hostOf(rawURL)
}

var _ Fetcher = (*Client)(nil)
