package genapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/sony/gobreaker/v2"
	"go.uber.org/zap"

	"github.com/vidgen/studio/internal/model"
	"github.com/vidgen/studio/internal/port/outbound"
	"github.com/vidgen/studio/internal/shared/config"
)

const defaultMaxErrorBody = 4096

// Client implements VideoGeneratorPort against the remote generation API.
type Client struct {
	client       *http.Client
	baseURL      string
	maxErrorBody int
	breaker      *gobreaker.CircuitBreaker[io.ReadCloser]
	logger       *zap.Logger
}

// NewClient creates a generation API client. The breaker is skipped when
// brk.Enabled is false.
func NewClient(client *http.Client, gen config.GenerationConfig, brk config.BreakerConfig, logger *zap.Logger) *Client {
	if client == nil {
		client = http.DefaultClient
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	maxBody := gen.MaxErrorBody
	if maxBody <= 0 {
		maxBody = defaultMaxErrorBody
	}

	c := &Client{
		client:       client,
		baseURL:      strings.TrimRight(gen.BaseURL, "/"),
		maxErrorBody: maxBody,
		logger:       logger,
	}
	if brk.Enabled {
		c.breaker = newBreaker(brk, logger)
	}
	return c
}

func newBreaker(cfg config.BreakerConfig, logger *zap.Logger) *gobreaker.CircuitBreaker[io.ReadCloser] {
	threshold := cfg.FailureThreshold
	if threshold == 0 {
		threshold = 5
	}
	settings := gobreaker.Settings{
		Name:        "generation-api",
		MaxRequests: cfg.MaxRequests,
		Interval:    cfg.Interval,
		Timeout:     cfg.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= threshold
		},
		IsSuccessful: isSuccessful,
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("Circuit breaker state changed",
				zap.String("breaker", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()),
			)
		},
	}
	return gobreaker.NewCircuitBreaker[io.ReadCloser](settings)
}

// isSuccessful counts only server-side and network failures against the breaker.
func isSuccessful(err error) bool {
	if err == nil {
		return true
	}
	var genErr *model.GenerationError
	if !errors.As(err, &genErr) {
		return false
	}
	switch genErr.Kind {
	case model.GenerationErrorRemote:
		return genErr.StatusCode < http.StatusInternalServerError
	case model.GenerationErrorTransport:
		return false
	default:
		return true
	}
}

// Generate posts req to the endpoint for mode and returns the response body.
// The caller closes the body.
func (c *Client) Generate(ctx context.Context, credential string, mode model.GenerationMode, req *model.VideoAPIRequest) (io.ReadCloser, error) {
	if c.baseURL == "" {
		return nil, model.NewConfigurationError("no generation API base URL configured")
	}

	payload, err := json.Marshal(req)
	if err != nil {
		return nil, model.NewValidationError(fmt.Sprintf("marshal request: %v", err))
	}

	call := func() (io.ReadCloser, error) {
		return c.post(ctx, credential, c.baseURL+mode.Endpoint(), payload)
	}
	if c.breaker == nil {
		return call()
	}

	body, err := c.breaker.Execute(call)
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return nil, model.NewTransportError(fmt.Errorf("generation API unavailable: %w", err))
	}
	return body, err
}

func (c *Client) post(ctx context.Context, credential, url string, payload []byte) (io.ReadCloser, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return nil, model.NewTransportError(fmt.Errorf("create request: %w", err))
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+credential)

	resp, err := c.do(ctx, httpReq)
	if err != nil {
		return nil, err
	}
	return resp.Body, nil
}

// do executes httpReq and turns every non-2xx response into a remote error.
func (c *Client) do(ctx context.Context, httpReq *http.Request) (*http.Response, error) {
	resp, err := c.client.Do(httpReq)
	if err != nil {
		if ctx.Err() != nil {
			return nil, model.NewCancelledError(ctx.Err())
		}
		return nil, model.NewTransportError(fmt.Errorf("execute request: %w", err))
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		defer resp.Body.Close()
		body, _ := io.ReadAll(io.LimitReader(resp.Body, int64(c.maxErrorBody)))
		c.logger.Debug("Generation API returned error status",
			zap.String("url", httpReq.URL.String()),
			zap.Int("status_code", resp.StatusCode),
		)
		return nil, model.NewRemoteError(resp.StatusCode, strings.TrimSpace(string(body)))
	}
	return resp, nil
}

// Configured reports whether a base URL is set.
func (c *Client) Configured() bool {
	return c.baseURL != ""
}

// BreakerState returns the breaker state, or closed when no breaker is used.
func (c *Client) BreakerState() gobreaker.State {
	if c.breaker == nil {
		return gobreaker.StateClosed
	}
	return c.breaker.State()
}

// Compile-time interface check
var _ outbound.VideoGeneratorPort = (*Client)(nil)
