package docstore

import (
	"bytes"
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"time"

	"github.com/vaidashi/storefront-orders/pkg/circuitbreaker"
	"github.com/vaidashi/storefront-orders/pkg/errors"
	"github.com/vaidashi/storefront-orders/pkg/logger"
	"github.com/vaidashi/storefront-orders/pkg/retry"
)

// Client talks to the json-server style document store holding users and products.
type Client struct {
	baseURL     string
	httpClient  *http.Client
	logger      logger.Logger
	retryConfig *retry.RetryConfig
	breaker     *circuitbreaker.CircuitBreaker
}

// Options tunes the client. Zero values fall back to the defaults below.
type Options struct {
	Timeout     time.Duration
	MaxAttempts int
	Backoff     retry.BackoffStrategy
	Breaker     *circuitbreaker.CircuitBreaker
}

// NewClient creates a new Client instance
func NewClient(baseURL string, opts Options, log logger.Logger) *Client {
	if opts.Timeout <= 0 {
		opts.Timeout = 5 * time.Second
	}
	if opts.MaxAttempts < 1 {
		opts.MaxAttempts = 3
	}
	if opts.Backoff == nil {
		opts.Backoff = retry.NewDefaultExponentialBackoff()
	}
	if opts.Breaker == nil {
		opts.Breaker = circuitbreaker.New(circuitbreaker.Config{
			Name:             "docstore",
			FailureThreshold: 5,
			ResetTimeout:     10 * time.Second,
			HalfOpenMaxCalls: 1,
		})
	}

	return &Client{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: opts.Timeout},
		logger:     log,
		retryConfig: &retry.RetryConfig{
			MaxAttempts:     opts.MaxAttempts,
			BackoffStrategy: opts.Backoff,
			Logger:          log,
			RetryableErrors: []error{
				errors.ErrTimeout,
				errors.ErrNetworkFailure,
				errors.ErrServiceUnavailable,
			},
		},
		breaker: opts.Breaker,
	}
}

// Breaker exposes the circuit breaker guarding the store
func (c *Client) Breaker() *circuitbreaker.CircuitBreaker {
	return c.breaker
}

// Get fetches path and decodes the JSON body into out. Failed reads are retried.
func (c *Client) Get(ctx context.Context, path string, out interface{}) error {
	err := retry.Retry(ctx, func() error {
		return c.do(ctx, http.MethodGet, path, nil, out, true)
	}, c.retryConfig)

	if err != nil {
		c.logger.Error("Document store read failed", "path", path, "error", err)
	}
	return err
}

// Patch merges body into the document at path. A request that may have reached
// the store is never sent twice; only connection failures are retried.
func (c *Client) Patch(ctx context.Context, path string, body, out interface{}) error {
	return c.write(ctx, http.MethodPatch, path, body, out)
}

// Post creates a document under the collection at path
func (c *Client) Post(ctx context.Context, path string, body, out interface{}) error {
	return c.write(ctx, http.MethodPost, path, body, out)
}

func (c *Client) write(ctx context.Context, method, path string, body, out interface{}) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return errors.NewInternalError(fmt.Sprintf("failed to marshal request: %v", err))
	}

	err = retry.Retry(ctx, func() error {
		return c.do(ctx, method, path, payload, out, false)
	}, c.retryConfig)

	if err != nil {
		c.logger.Error("Document store write failed", "method", method, "path", path, "error", err)
	}
	return err
}

func (c *Client) do(ctx context.Context, method, path string, payload []byte, out interface{}, idempotent bool) error {
	var result error

	err := c.breaker.Execute(func() error {
		result = c.roundTrip(ctx, method, path, payload, out, idempotent)
		return result
	}, func(err error) bool {
		return ctx.Err() == nil && countsAgainstStore(err)
	})

	if stderrors.Is(err, circuitbreaker.ErrOpen) {
		return retry.Permanent(errors.NewServiceUnavailableError("document store is unavailable"))
	}
	return result
}

func (c *Client) roundTrip(ctx context.Context, method, path string, payload []byte, out interface{}, idempotent bool) error {
	url := c.baseURL + path

	var reqBody io.Reader
	if payload != nil {
		reqBody = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, reqBody)
	if err != nil {
		return retry.Permanent(errors.NewInternalError(fmt.Sprintf("failed to create request: %v", err)))
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)

	if err != nil {
		return transportError(ctx, err, idempotent)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)

	if err != nil {
		return retry.Permanent(errors.NewNetworkError(fmt.Sprintf("failed to read response body: %v", err)))
	}

	if resp.StatusCode >= 400 {
		statusErr := statusError(method, path, resp.StatusCode)
		if !idempotent {
			return retry.Permanent(statusErr)
		}
		return statusErr
	}

	if out == nil || len(bytes.TrimSpace(body)) == 0 {
		return nil
	}

	if err := json.Unmarshal(body, out); err != nil {
		return retry.Permanent(errors.NewInternalError(fmt.Sprintf("failed to parse response: %v", err)))
	}

	return nil
}

func transportError(ctx context.Context, err error, idempotent bool) error {
	if ctxErr := ctx.Err(); ctxErr != nil {
		return retry.Permanent(errors.NewTimeoutError(fmt.Sprintf("request abandoned: %v", ctxErr)))
	}

	var netErr net.Error
	if stderrors.As(err, &netErr) && netErr.Timeout() {
		appErr := errors.NewTimeoutError("document store request timed out")
		if !idempotent {
			return retry.Permanent(appErr)
		}
		return appErr
	}

	appErr := errors.NewNetworkError(fmt.Sprintf("failed to reach document store: %v", err))

	// a refused dial never reached the store, so even writes can go again
	var opErr *net.OpError
	if !idempotent && !(stderrors.As(err, &opErr) && opErr.Op == "dial") {
		return retry.Permanent(appErr)
	}
	return appErr
}

func statusError(method, path string, status int) error {
	switch {
	case status == http.StatusNotFound:
		return errors.NewNotFoundError(fmt.Sprintf("document %s not found", path))
	case status == http.StatusRequestTimeout || status == http.StatusGatewayTimeout:
		return errors.NewTimeoutError(fmt.Sprintf("document store timed out on %s %s", method, path))
	case status == http.StatusServiceUnavailable:
		return errors.NewServiceUnavailableError(fmt.Sprintf("document store unavailable: %d", status))
	case status >= 500:
		return errors.NewNetworkError(fmt.Sprintf("document store error: %d", status))
	}

	return errors.NewAppError(
		errors.ErrInternal,
		fmt.Sprintf("document store rejected %s %s: %d", method, path, status),
		http.StatusBadGateway,
		false,
	)
}

// countsAgainstStore decides which failures trip the breaker. A missing document
// or a rejected request comes from a healthy store.
func countsAgainstStore(err error) bool {
	return errors.IsRetryable(err)
}
