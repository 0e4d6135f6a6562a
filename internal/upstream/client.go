package upstream

import (
	"context"
	"fmt"
	"io"
	"math/rand"
	"net/http"
	"time"

	json "github.com/goccy/go-json"
	"go.uber.org/zap"

	"github.com/polyscope/polyscope/pkg/types"
)

// RetryPolicy controls retry behavior for upstream calls. Only transport
// failures, rate limits, and server errors are retried; other client errors
// fail fast.
type RetryPolicy struct {
	MaxAttempts int
	BaseDelay   time.Duration
	MaxDelay    time.Duration
}

// Backoff returns the delay before the given retry attempt (0-based):
// exponential growth capped at MaxDelay, plus up to 25% uniform jitter.
func (p RetryPolicy) Backoff(attempt int) time.Duration {
	delay := p.BaseDelay << uint(attempt)
	if delay > p.MaxDelay || delay <= 0 {
		delay = p.MaxDelay
	}
	jitter := time.Duration(rand.Int63n(int64(delay)/4 + 1))
	return delay + jitter
}

// Client is an HTTP client for the Gamma metadata API and the CLOB market
// data API, with retries and optional request signing.
type Client struct {
	gammaURL   string
	clobURL    string
	httpClient *http.Client
	retry      RetryPolicy
	breaker    *Breaker
	creds      *Credentials
	logger     *zap.Logger
}

// Config holds upstream client configuration.
type Config struct {
	GammaURL         string
	ClobURL          string
	Timeout          time.Duration
	Retry            RetryPolicy
	BreakerThreshold int           // consecutive exhausted retries before the circuit opens; 0 uses the default
	BreakerCooldown  time.Duration // open duration before a half-open probe; 0 uses the default
	Credentials      *Credentials  // nil disables signed endpoints
	Logger           *zap.Logger
}

// NewClient creates an upstream API client.
func NewClient(cfg *Config) (*Client, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config cannot be nil")
	}
	if cfg.Logger == nil {
		return nil, fmt.Errorf("logger cannot be nil")
	}
	if cfg.Retry.MaxAttempts <= 0 {
		return nil, fmt.Errorf("retry max attempts must be positive")
	}

	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 30 * time.Second
	}
	threshold := cfg.BreakerThreshold
	if threshold == 0 {
		threshold = 5
	}
	cooldown := cfg.BreakerCooldown
	if cooldown == 0 {
		cooldown = time.Minute
	}

	breaker, err := NewBreaker(&BreakerConfig{
		Threshold: threshold,
		Cooldown:  cooldown,
		Logger:    cfg.Logger,
	})
	if err != nil {
		return nil, fmt.Errorf("create breaker: %w", err)
	}

	return &Client{
		gammaURL:   cfg.GammaURL,
		clobURL:    cfg.ClobURL,
		httpClient: &http.Client{Timeout: timeout},
		retry:      cfg.Retry,
		breaker:    breaker,
		creds:      cfg.Credentials,
		logger:     cfg.Logger,
	}, nil
}

// HasCredentials reports whether signed endpoints are usable.
func (c *Client) HasCredentials() bool {
	return c.creds != nil
}

// Close releases idle connections.
func (c *Client) Close() {
	c.httpClient.CloseIdleConnections()
}

// getJSON performs a GET with retries and decodes the response body into out.
// Every failure is returned as a *types.UpstreamError so callers can classify
// it. Exhausting all retries feeds the circuit breaker; an open circuit
// rejects calls immediately until its cooldown elapses.
func (c *Client) getJSON(ctx context.Context, endpoint, requestURL string, signed bool, out any) error {
	if !c.breaker.Allow(time.Now()) {
		return &types.UpstreamError{
			Kind: types.ErrKindBreaker, URL: requestURL,
			Err: fmt.Errorf("circuit open after repeated upstream failures"),
		}
	}

	var lastErr error
	for attempt := 0; attempt < c.retry.MaxAttempts; attempt++ {
		if attempt > 0 {
			delay := c.retry.Backoff(attempt - 1)
			c.logger.Debug("retrying-upstream-request",
				zap.String("endpoint", endpoint),
				zap.Int("attempt", attempt),
				zap.Duration("delay", delay))
			select {
			case <-ctx.Done():
				c.breaker.RecordFailure(time.Now())
				return &types.UpstreamError{Kind: types.ErrKindTransport, URL: requestURL, Err: ctx.Err()}
			case <-time.After(delay):
			}
		}

		lastErr = c.doOnce(ctx, endpoint, requestURL, signed, out)
		if lastErr == nil {
			c.breaker.RecordSuccess()
			return nil
		}
		if !types.IsRetryable(lastErr) {
			// A definitive client-side rejection still proves the
			// service reachable.
			c.breaker.RecordSuccess()
			return lastErr
		}
	}
	c.breaker.RecordFailure(time.Now())
	return lastErr
}

func (c *Client) doOnce(ctx context.Context, endpoint, requestURL string, signed bool, out any) error {
	start := time.Now()
	RequestsTotal.WithLabelValues(endpoint).Inc()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, requestURL, nil)
	if err != nil {
		return &types.UpstreamError{Kind: types.ErrKindTransport, URL: requestURL, Err: err}
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", "polyscope/1.0")

	if signed {
		if c.creds == nil {
			return &types.UpstreamError{
				Kind: types.ErrKindClient, URL: requestURL,
				Err: fmt.Errorf("endpoint requires API credentials"),
			}
		}
		if err := c.creds.SignRequest(req, time.Now()); err != nil {
			return &types.UpstreamError{Kind: types.ErrKindClient, URL: requestURL, Err: err}
		}
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		ErrorsTotal.WithLabelValues(endpoint, string(types.ErrKindTransport)).Inc()
		return &types.UpstreamError{Kind: types.ErrKindTransport, URL: requestURL, Err: err}
	}
	defer func() { _ = resp.Body.Close() }()

	RequestDuration.WithLabelValues(endpoint).Observe(time.Since(start).Seconds())

	if resp.StatusCode != http.StatusOK {
		kind := types.ClassifyStatus(resp.StatusCode)
		ErrorsTotal.WithLabelValues(endpoint, string(kind)).Inc()
		if kind == types.ErrKindRateLimit {
			RateLimitedTotal.WithLabelValues(endpoint).Inc()
			c.logger.Warn("upstream-rate-limited",
				zap.String("endpoint", endpoint),
				zap.String("url", requestURL))
		}
		// Drain so the connection can be reused.
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		return &types.UpstreamError{Kind: kind, StatusCode: resp.StatusCode, URL: requestURL}
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		ErrorsTotal.WithLabelValues(endpoint, string(types.ErrKindTransport)).Inc()
		return &types.UpstreamError{Kind: types.ErrKindTransport, URL: requestURL, Err: err}
	}

	err = json.Unmarshal(body, out)
	if err != nil {
		ErrorsTotal.WithLabelValues(endpoint, string(types.ErrKindClient)).Inc()
		return &types.UpstreamError{
			Kind: types.ErrKindClient, StatusCode: resp.StatusCode, URL: requestURL,
			Err: fmt.Errorf("unmarshal response: %w", err),
		}
	}
	return nil
}
