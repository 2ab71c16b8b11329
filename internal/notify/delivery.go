package notify

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/hashicorp/go-retryablehttp"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"
)

const errorBodyLimit = 1024

// Pacing bounds how hard a target is hit. Interval and Burst feed a token
// bucket per Sail project; the backoff fields limit retries of one message.
type Pacing struct {
	Timeout        time.Duration
	Interval       time.Duration
	Burst          int
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
	MaxElapsed     time.Duration
}

// DefaultPacing allows one message per project per second and gives up on a
// message after thirty seconds of failures.
var DefaultPacing = Pacing{
	Timeout:        10 * time.Second,
	Interval:       time.Second,
	Burst:          1,
	InitialBackoff: time.Second,
	MaxBackoff:     10 * time.Second,
	MaxElapsed:     30 * time.Second,
}

// Option customizes a notifier.
type Option func(*Pacing)

// WithPacing replaces DefaultPacing.
func WithPacing(p Pacing) Option {
	return func(dst *Pacing) { *dst = p }
}

func buildPacing(opts []Option) Pacing {
	p := DefaultPacing
	for _, opt := range opts {
		opt(&p)
	}
	return p
}

func (p Pacing) retryPolicy(ctx context.Context) backoff.BackOffContext {
	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = p.InitialBackoff
	policy.MaxInterval = p.MaxBackoff
	policy.MaxElapsedTime = p.MaxElapsed
	return backoff.WithContext(policy, ctx)
}

// endpoint posts JSON messages to one webhook URL.
type endpoint struct {
	name   string
	url    string
	pacing Pacing
	client *retryablehttp.Client
	logger zerolog.Logger

	mu       sync.Mutex
	limiters map[string]*rate.Limiter
}

func newEndpoint(logger zerolog.Logger, name, url string, pacing Pacing) *endpoint {
	client := retryablehttp.NewClient()
	// Retries happen in postWithRetry, where Retry-After is honoured.
	client.RetryMax = 0
	client.CheckRetry = func(context.Context, *http.Response, error) (bool, error) {
		return false, nil
	}
	client.Logger = nil
	client.HTTPClient = &http.Client{Timeout: pacing.Timeout}

	return &endpoint{
		name:     name,
		url:      url,
		pacing:   pacing,
		client:   client,
		logger:   logger.With().Str("target", name).Logger(),
		limiters: make(map[string]*rate.Limiter),
	}
}

// deliver waits for the project's rate slot, then posts messages in order.
// The first message that cannot be delivered aborts the rest.
func (e *endpoint) deliver(ctx context.Context, project string, messages ...[]byte) error {
	if limiter := e.limiter(project); limiter != nil {
		if err := limiter.Wait(ctx); err != nil {
			return fmt.Errorf("%s: wait for rate limit: %w", e.name, err)
		}
	}
	for i, message := range messages {
		if err := e.postWithRetry(ctx, message); err != nil {
			if len(messages) > 1 {
				return fmt.Errorf("message %d/%d: %w", i+1, len(messages), err)
			}
			return err
		}
	}
	return nil
}

func (e *endpoint) limiter(project string) *rate.Limiter {
	if e.pacing.Interval <= 0 {
		return nil
	}
	e.mu.Lock()
	defer e.mu.Unlock()

	if limiter, ok := e.limiters[project]; ok {
		return limiter
	}
	limiter := rate.NewLimiter(rate.Every(e.pacing.Interval), max(e.pacing.Burst, 1))
	e.limiters[project] = limiter
	return limiter
}

func (e *endpoint) postWithRetry(ctx context.Context, payload []byte) error {
	var pause time.Duration
	attempt := func() error {
		if pause > 0 {
			if !sleepWithContext(ctx, pause) {
				return backoff.Permanent(ctx.Err())
			}
			pause = 0
		}
		err := e.post(ctx, payload)
		if err == nil {
			return nil
		}
		var throttled *retryAfterError
		if errors.As(err, &throttled) {
			pause = throttled.Duration
			return err
		}
		var transient *transientError
		if errors.As(err, &transient) {
			return err
		}
		return backoff.Permanent(err)
	}

	return backoff.RetryNotify(attempt, e.pacing.retryPolicy(ctx), func(err error, wait time.Duration) {
		e.logger.Debug().Err(err).Dur("retry_in", wait+pause).Msg("delivery failed, retrying")
	})
}

// post makes a single attempt and classifies the outcome.
func (e *endpoint) post(ctx context.Context, payload []byte) error {
	reqCtx, cancel := context.WithTimeout(ctx, e.pacing.Timeout)
	defer cancel()

	req, err := retryablehttp.NewRequestWithContext(reqCtx, http.MethodPost, e.url, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("build %s request: %w", e.name, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := e.client.Do(req)
	if err != nil {
		return &transientError{err: fmt.Errorf("%s request failed: %w", e.name, err)}
	}
	defer resp.Body.Close()

	switch code := resp.StatusCode; {
	case code >= 200 && code < 300:
		return nil
	case code == http.StatusTooManyRequests:
		limited := fmt.Errorf("%s rate limited: %s", e.name, resp.Status)
		if wait, ok := parseRetryAfter(resp.Header.Get("Retry-After")); ok {
			return &retryAfterError{Duration: wait, err: limited}
		}
		return &transientError{err: limited}
	case code >= http.StatusInternalServerError:
		return &transientError{err: fmt.Errorf("%s server error: %s", e.name, resp.Status)}
	}

	body, _ := io.ReadAll(io.LimitReader(resp.Body, errorBodyLimit))
	if detail := strings.TrimSpace(string(body)); detail != "" {
		return fmt.Errorf("%s rejected the message: %s (%s)", e.name, resp.Status, detail)
	}
	return fmt.Errorf("%s rejected the message: %s", e.name, resp.Status)
}

// parseRetryAfter accepts both delay-seconds and HTTP-date forms.
func parseRetryAfter(value string) (time.Duration, bool) {
	value = strings.TrimSpace(value)
	if value == "" {
		return 0, false
	}
	if seconds, err := strconv.Atoi(value); err == nil {
		return time.Duration(seconds) * time.Second, seconds > 0
	}
	when, err := http.ParseTime(value)
	if err != nil {
		return 0, false
	}
	wait := time.Until(when)
	return wait, wait > 0
}

func sleepWithContext(ctx context.Context, wait time.Duration) bool {
	timer := time.NewTimer(wait)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}

type transientError struct {
	err error
}

func (e *transientError) Error() string { return e.err.Error() }
func (e *transientError) Unwrap() error { return e.err }

type retryAfterError struct {
	Duration time.Duration
	err      error
}

func (e *retryAfterError) Error() string {
	return fmt.Sprintf("%v; retry after %s", e.err, e.Duration)
}

func (e *retryAfterError) Unwrap() error { return e.err }
