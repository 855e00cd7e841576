package common

import (
	"context"
	"errors"
	"fmt"
	"math"
	"net"
	"net/http"
	"time"

	"github.com/sirupsen/logrus"
)

var (
	ErrServiceUnavailable = errors.New("service unavailable")
	ErrServiceTimeout     = errors.New("service timeout")
	ErrServiceOverloaded  = errors.New("service overloaded")
	ErrMaxRetriesExceeded = errors.New("max retries exceeded")
)

// overloadStatuses are answered by the blob API when it wants the caller to back off.
var overloadStatuses = map[int]bool{
	http.StatusTooManyRequests:    true,
	http.StatusBadGateway:         true,
	http.StatusServiceUnavailable: true,
	http.StatusGatewayTimeout:     true,
}

// RetryConfig holds retry/backoff configuration
type RetryConfig struct {
	MaxRetries     int
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
	BackoffFactor  float64
}

// DefaultRetryConfig returns the backoff used for blob store calls.
// Retries are off unless the caller asks for them.
func DefaultRetryConfig(maxRetries int) RetryConfig {
	if maxRetries < 0 {
		maxRetries = 0
	}
	return RetryConfig{
		MaxRetries:     maxRetries,
		InitialBackoff: 500 * time.Millisecond,
		MaxBackoff:     10 * time.Second,
		BackoffFactor:  2.0,
	}
}

func (rc RetryConfig) delay(attempt int) time.Duration {
	return CalculateBackoff(attempt, rc.InitialBackoff, rc.MaxBackoff, rc.BackoffFactor)
}

// RequestBuilder creates a fresh request for every attempt so that bodies
// can be replayed.
type RequestBuilder func(ctx context.Context) (*http.Request, error)

// ResilientHTTPClient sends blob API requests, retrying dial failures and
// overload answers.
type ResilientHTTPClient struct {
	client *http.Client
	retry  RetryConfig
	logger *logrus.Logger
}

func NewResilientHTTPClient(timeout time.Duration, retry RetryConfig, logger *logrus.Logger) *ResilientHTTPClient {
	dialer := &net.Dialer{Timeout: 10 * time.Second, KeepAlive: 30 * time.Second}
	transport := &http.Transport{
		Proxy:               http.ProxyFromEnvironment,
		DialContext:         dialer.DialContext,
		MaxIdleConns:        10,
		MaxIdleConnsPerHost: 5,
		IdleConnTimeout:     90 * time.Second,
	}
	return &ResilientHTTPClient{
		client: &http.Client{Timeout: timeout, Transport: transport},
		retry:  retry,
		logger: logger,
	}
}

// Send executes the request produced by build. Non-overload statuses are
// returned untouched. When every attempt ends in an overload status the last
// response is handed back so the caller can read its error body.
func (c *ResilientHTTPClient) Send(ctx context.Context, operation string, build RequestBuilder) (*http.Response, error) {
	attempts := c.retry.MaxRetries + 1
	var lastErr error

	for attempt := 0; attempt < attempts; attempt++ {
		if err := c.wait(ctx, operation, attempt); err != nil {
			return nil, err
		}

		req, err := build(ctx)
		if err != nil {
			return nil, fmt.Errorf("build %s request: %w", operation, err)
		}

		resp, err := c.client.Do(req)
		if err != nil {
			lastErr = transportError(err)
			if errors.Is(lastErr, ErrServiceTimeout) {
				return nil, lastErr
			}
			c.logger.WithFields(logrus.Fields{
				"operation": operation,
				"attempt":   attempt + 1,
				"error":     err.Error(),
			}).Warn("Blob API request failed")
			continue
		}

		if !overloadStatuses[resp.StatusCode] || attempt == attempts-1 {
			return resp, nil
		}

		resp.Body.Close()
		lastErr = fmt.Errorf("%w: status %d", ErrServiceOverloaded, resp.StatusCode)
		c.logger.WithFields(logrus.Fields{
			"operation":   operation,
			"attempt":     attempt + 1,
			"status_code": resp.StatusCode,
		}).Warn("Blob API overloaded")
	}

	return nil, fmt.Errorf("%w after %d attempts: %v", ErrMaxRetriesExceeded, attempts, lastErr)
}

// wait sleeps before a retry, giving up early when ctx ends.
func (c *ResilientHTTPClient) wait(ctx context.Context, operation string, attempt int) error {
	if attempt == 0 {
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("%w: %v", ErrServiceTimeout, err)
		}
		return nil
	}

	backoff := c.retry.delay(attempt)
	c.logger.WithFields(logrus.Fields{
		"operation": operation,
		"attempt":   attempt,
		"backoff":   backoff.String(),
	}).Debug("Backing off before retry")

	timer := time.NewTimer(backoff)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return fmt.Errorf("%w: %v", ErrServiceTimeout, ctx.Err())
	case <-timer.C:
		return nil
	}
}

func transportError(err error) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %v", ErrServiceTimeout, err)
	}
	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return fmt.Errorf("%w: dns: %v", ErrServiceUnavailable, err)
	}
	return fmt.Errorf("%w: %v", ErrServiceUnavailable, err)
}

// CalculateBackoff returns initial*factor^(attempt-1), capped at max.
func CalculateBackoff(attempt int, initial, max time.Duration, factor float64) time.Duration {
	if attempt <= 0 {
		return 0
	}
	d := time.Duration(float64(initial) * math.Pow(factor, float64(attempt-1)))
	if d > max {
		return max
	}
	return d
}
