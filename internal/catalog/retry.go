package catalog

import (
	"context"
	"fmt"
	"io"
	"math/rand"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"artie/internal/faults"
	"artie/internal/logging"
)

const (
	defaultMaxAttempts = 4
	initialBackoff     = 500 * time.Millisecond
	maxBackoff         = 8 * time.Second

	// Throttling signals are retried on their own budget so a chatty remote
	// never exhausts the retry budget reserved for genuine faults.
	maxThrottleRetries = 6
	defaultCooldown    = 2 * time.Second

	maxResponseBytes = 32 << 20
)

func (c *Client) getJSON(ctx context.Context, endpoint string, params url.Values) ([]byte, error) {
	body, _, err := c.doGET(ctx, c.endpointURL(endpoint, params), endpoint)
	return body, err
}

func (c *Client) getBytes(ctx context.Context, target string) ([]byte, string, error) {
	return c.doGET(ctx, target, "media")
}

// doGET performs a rate-limited GET with bounded retries. Transient faults
// (network errors, 5xx) back off exponentially with jitter; 401/403 and 404
// fail immediately; 429 penalizes the shared limiter and retries after the
// remote's indicated cool-down.
func (c *Client) doGET(ctx context.Context, target, operation string) ([]byte, string, error) {
	transientFailures := 0
	throttleRetries := 0

	for {
		if err := c.limiter.Acquire(ctx); err != nil {
			return nil, "", faults.Wrap(ErrTransient, "catalog", operation, "rate limiter", err)
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
		if err != nil {
			return nil, "", faults.Wrap(ErrTransient, "catalog", operation, "build request", err)
		}
		req.Header.Set("User-Agent", c.softname)

		resp, err := c.http.Do(req)
		if err != nil {
			if ctx.Err() != nil {
				return nil, "", ctx.Err()
			}
			transientFailures++
			if transientFailures > c.maxRetries {
				return nil, "", faults.Wrap(ErrTransient, "catalog", operation,
					fmt.Sprintf("request failed after %d attempts", transientFailures), err)
			}
			if sleepErr := c.backoff(ctx, transientFailures, operation, err); sleepErr != nil {
				return nil, "", sleepErr
			}
			continue
		}

		body, readErr := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
		_ = resp.Body.Close()

		switch {
		case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
			// Retrying cannot succeed without new credentials.
			return nil, "", faults.Wrap(ErrAuth, "catalog", operation,
				fmt.Sprintf("status %d", resp.StatusCode), nil)

		case resp.StatusCode == http.StatusNotFound:
			return nil, "", faults.Wrap(ErrNotFound, "catalog", operation, "status 404", nil)

		case resp.StatusCode == http.StatusTooManyRequests:
			throttleRetries++
			if throttleRetries > maxThrottleRetries {
				return nil, "", faults.Wrap(ErrTransient, "catalog", operation,
					fmt.Sprintf("still throttled after %d cool-downs", maxThrottleRetries), nil)
			}
			cooldown := retryAfter(resp)
			c.limiter.Penalize(cooldown)
			if throttleRetries > 1 {
				c.limiter.ReduceRate(0.5)
			}
			c.logger.Warn("catalog throttled; cooling down",
				logging.String(logging.FieldEventType, "catalog_throttled"),
				logging.String("operation", operation),
				logging.Duration("cooldown", cooldown),
				logging.Int("throttle_retries", throttleRetries))
			if sleepErr := sleepWithContext(ctx, cooldown); sleepErr != nil {
				return nil, "", sleepErr
			}
			continue

		case resp.StatusCode >= 500:
			transientFailures++
			if transientFailures > c.maxRetries {
				return nil, "", faults.Wrap(ErrTransient, "catalog", operation,
					fmt.Sprintf("status %d after %d attempts", resp.StatusCode, transientFailures), nil)
			}
			if sleepErr := c.backoff(ctx, transientFailures, operation,
				fmt.Errorf("status %d", resp.StatusCode)); sleepErr != nil {
				return nil, "", sleepErr
			}
			continue

		case resp.StatusCode != http.StatusOK:
			return nil, "", faults.Wrap(ErrTransient, "catalog", operation,
				fmt.Sprintf("unexpected status %d", resp.StatusCode), nil)

		default:
			if readErr != nil {
				transientFailures++
				if transientFailures > c.maxRetries {
					return nil, "", faults.Wrap(ErrTransient, "catalog", operation, "read response", readErr)
				}
				if sleepErr := c.backoff(ctx, transientFailures, operation, readErr); sleepErr != nil {
					return nil, "", sleepErr
				}
				continue
			}
			return body, resp.Header.Get("ETag"), nil
		}
	}
}

func (c *Client) backoff(ctx context.Context, failures int, operation string, cause error) error {
	delay := initialBackoff << (failures - 1)
	if delay > maxBackoff {
		delay = maxBackoff
	}
	// Half fixed, half jitter, so concurrent workers do not retry in lockstep.
	delay = delay/2 + time.Duration(rand.Int63n(int64(delay/2)+1))
	c.logger.Debug("retrying catalog request",
		logging.String(logging.FieldEventType, "catalog_retry"),
		logging.String("operation", operation),
		logging.Int("failures", failures),
		logging.Duration("delay", delay),
		logging.Error(cause))
	return sleepWithContext(ctx, delay)
}

func retryAfter(resp *http.Response) time.Duration {
	header := resp.Header.Get("Retry-After")
	if header == "" {
		return defaultCooldown
	}
	if seconds, err := strconv.Atoi(header); err == nil && seconds > 0 {
		return time.Duration(seconds) * time.Second
	}
	if at, err := http.ParseTime(header); err == nil {
		if wait := time.Until(at); wait > 0 {
			return wait
		}
	}
	return defaultCooldown
}

func sleepWithContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
