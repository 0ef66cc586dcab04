// Package api is the typed HTTP client for the context, forge and proxy
// endpoints. Every call carries the app id header, is bounded by its own
// timeout and returns *errors.VestigeError on failure.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"

	"github.com/Sruimeng/vestige/internal/config"
	"github.com/Sruimeng/vestige/internal/errors"
)

// AppIDHeader identifies the application on every backend request.
const AppIDHeader = "X-App-ID"

// Endpoint paths.
const (
	HistoryPath     = "/api/context/history/"
	DailyPath       = "/api/context/daily"
	FossilPath      = "/api/context/fossil/"
	ForgeCreatePath = "/api/forge/create"
	ForgeStatusPath = "/api/forge/status/"
	ForgeAssetsPath = "/api/forge/assets"
	ProxyModelPath  = "/api/proxy-model"
)

// maxResponseBytes caps JSON response bodies.
const maxResponseBytes = 4 << 20

// Client talks to the time-capsule backend.
type Client struct {
	baseURL      string
	appID        string
	timeout      time.Duration
	pollInterval time.Duration
	maxPoll      time.Duration
	modelURLs    ModelURLRules
	httpClient   *http.Client
	clock        clockwork.Clock
	logger       *zap.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithClock injects the clock used by the polling loop.
func WithClock(clock clockwork.Clock) Option {
	return func(c *Client) { c.clock = clock }
}

// WithLogger sets the client logger.
func WithLogger(logger *zap.Logger) Option {
	return func(c *Client) { c.logger = logger }
}

// WithTimeout sets the per-call timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) { c.timeout = d }
}

// WithPolling sets the forge polling interval and the bound on the whole loop.
func WithPolling(interval, max time.Duration) Option {
	return func(c *Client) {
		c.pollInterval = interval
		c.maxPoll = max
	}
}

// WithModelURLRules overrides proxy hosts and the fallback model.
func WithModelURLRules(proxyHosts []string, fallback string) Option {
	return func(c *Client) {
		c.modelURLs.ProxyHosts = proxyHosts
		c.modelURLs.Fallback = fallback
	}
}

// New creates a Client for baseURL.
func New(baseURL, appID string, opts ...Option) *Client {
	baseURL = strings.TrimRight(strings.TrimSpace(baseURL), "/")
	c := &Client{
		baseURL:      baseURL,
		appID:        appID,
		timeout:      10 * time.Second,
		pollInterval: 3 * time.Second,
		maxPoll:      300 * time.Second,
		httpClient:   &http.Client{},
		clock:        clockwork.NewRealClock(),
		logger:       zap.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.modelURLs.BaseURL = baseURL
	return c
}

// NewFromConfig creates a Client from application configuration.
func NewFromConfig(cfg *config.Config, opts ...Option) *Client {
	base := []Option{
		WithTimeout(cfg.APITimeout()),
		WithPolling(cfg.PollInterval(), cfg.MaxPollDuration()),
		WithModelURLRules(cfg.ProxyHosts, cfg.FallbackModelURL),
	}
	return New(cfg.APIBaseURL, cfg.AppID, append(base, opts...)...)
}

// BaseURL returns the backend origin.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// ModelURLs returns the normalization rules for model URLs.
func (c *Client) ModelURLs() ModelURLRules {
	return c.modelURLs
}

// ErrorEnvelope is the body of a non-2xx response.
type ErrorEnvelope struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// validatable is implemented by every response payload.
type validatable interface {
	Validate() error
}

// call performs a JSON request and decodes the {data: ...} envelope into out.
// domain names the error family ("context", "forge") used for synthesized
// envelopes; what names the payload for schema errors.
func (c *Client) call(ctx context.Context, domain, what, method, path string, body any, out validatable) error {
	callCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return errors.NewInternal(err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(callCtx, method, c.baseURL+path, reader)
	if err != nil {
		return errors.NewInternal(err)
	}
	req.Header.Set(AppIDHeader, c.appID)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return c.classify(ctx, callCtx, method, path, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return c.classify(ctx, callCtx, method, path, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		env := decodeEnvelope(raw, domain, resp.StatusCode)
		c.logger.Debug("backend error response",
			zap.String("path", path),
			zap.Int("status", resp.StatusCode),
			zap.String("code", env.Code))
		return errors.NewUpstream(resp.StatusCode, env.Code, env.Message)
	}

	var wrapper struct {
		Data json.RawMessage `json:"data"`
	}
	if err := json.Unmarshal(raw, &wrapper); err != nil {
		return errors.NewSchemaMismatch(what, err)
	}
	if len(wrapper.Data) == 0 || string(wrapper.Data) == "null" {
		return errors.NewSchemaMismatch(what, fmt.Errorf("missing data"))
	}
	if err := json.Unmarshal(wrapper.Data, out); err != nil {
		return errors.NewSchemaMismatch(what, err)
	}
	if err := out.Validate(); err != nil {
		return errors.NewSchemaMismatch(what, err)
	}
	return nil
}

// classify maps a transport error to abort, timeout or network failure.
func (c *Client) classify(parent, callCtx context.Context, method, path string, err error) error {
	if parent.Err() != nil {
		return errors.NewAborted(parent.Err())
	}
	if stderrors.Is(callCtx.Err(), context.DeadlineExceeded) {
		return errors.NewTimeout(fmt.Sprintf("%s %s timed out after %s", method, path, c.timeout))
	}
	return errors.NewNetwork(err)
}

// decodeEnvelope parses an error body, synthesizing one when it is unusable.
func decodeEnvelope(raw []byte, domain string, status int) ErrorEnvelope {
	var env ErrorEnvelope
	if err := json.Unmarshal(raw, &env); err != nil || (env.Code == "" && env.Message == "") {
		return ErrorEnvelope{
			Code:    domain + "_error",
			Message: fmt.Sprintf("HTTP %d", status),
		}
	}
	if env.Code == "" {
		env.Code = domain + "_error"
	}
	if env.Message == "" {
		env.Message = fmt.Sprintf("HTTP %d", status)
	}
	return env
}
