package source

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math/rand/v2"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"
	"github.com/sony/gobreaker"

	"game-catalog-pipeline/internal/observability"
)

const (
	// DefaultTimeout bounds a single HTTP request.
	DefaultTimeout = 30 * time.Second
	// DefaultMaxAttempts caps total tries per call, first attempt included.
	DefaultMaxAttempts = 3
	// DefaultRetryBase is the first backoff step.
	DefaultRetryBase = 300 * time.Millisecond
	// DefaultRetryCap bounds the exponential backoff step.
	DefaultRetryCap = 5 * time.Second

	breakerTripAfter = 5
	breakerOpenFor   = 2 * time.Minute
	// maxRetryAfterDelay clamps an honored Retry-After to the backoff cap.
	maxRetryAfterDelay = DefaultRetryCap
)

// Gate admits one upstream call, blocking until the source's rate
// policy allows it. Implementations are shared across workers.
type Gate interface {
	Take(ctx context.Context) error
}

// NopGate admits every call immediately.
type NopGate struct{}

func (NopGate) Take(context.Context) error { return nil }

// Caller is the HTTP machinery shared by catalog source clients: rate
// gate, bounded retries with jittered backoff, circuit breaking and
// error classification. The breaker counts only transport failures;
// HTTP error statuses pass through it so that a flapping endpoint does
// not latch the breaker open.
type Caller struct {
	name        string
	httpClient  *http.Client
	gate        Gate
	breaker     *gobreaker.CircuitBreaker
	clock       clockwork.Clock
	maxAttempts int
	retryBase   time.Duration
	retryCap    time.Duration
	userAgent   string
}

// CallerOption configures a Caller.
type CallerOption func(*Caller)

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(client *http.Client) CallerOption {
	return func(c *Caller) {
		c.httpClient = client
	}
}

// WithTimeout sets the per-request timeout on the underlying client.
func WithTimeout(timeout time.Duration) CallerOption {
	return func(c *Caller) {
		c.httpClient.Timeout = timeout
	}
}

// WithGate installs the rate gate taken before every attempt.
func WithGate(gate Gate) CallerOption {
	return func(c *Caller) {
		c.gate = gate
	}
}

// WithMaxAttempts caps the total number of tries per call.
func WithMaxAttempts(n int) CallerOption {
	return func(c *Caller) {
		c.maxAttempts = n
	}
}

// WithRetryBackoff overrides the backoff base and cap.
func WithRetryBackoff(base, ceiling time.Duration) CallerOption {
	return func(c *Caller) {
		c.retryBase = base
		c.retryCap = ceiling
	}
}

// WithUserAgent sets the User-Agent header on outgoing requests.
func WithUserAgent(ua string) CallerOption {
	return func(c *Caller) {
		c.userAgent = ua
	}
}

// WithCallerClock injects the clock used for backoff sleeps.
func WithCallerClock(clock clockwork.Clock) CallerOption {
	return func(c *Caller) {
		c.clock = clock
	}
}

// NewCaller creates the shared call machinery for one named source.
func NewCaller(name string, opts ...CallerOption) *Caller {
	c := &Caller{
		name:        name,
		httpClient:  &http.Client{Timeout: DefaultTimeout},
		gate:        NopGate{},
		clock:       clockwork.NewRealClock(),
		maxAttempts: DefaultMaxAttempts,
		retryBase:   DefaultRetryBase,
		retryCap:    DefaultRetryCap,
	}

	for _, opt := range opts {
		opt(c)
	}

	if c.maxAttempts < 1 {
		c.maxAttempts = 1
	}

	c.breaker = gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        name,
		MaxRequests: 1,
		Timeout:     breakerOpenFor,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= breakerTripAfter
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.Warn().
				Str("source", name).
				Str("from", from.String()).
				Str("to", to.String()).
				Msg("source circuit breaker state change")
			observability.SetBreakerState(name, float64(to))
			observability.RecordBreakerTransition(name, to.String())
		},
	})

	return c
}

// Name returns the source name used in errors, logs and metrics.
func (c *Caller) Name() string {
	return c.name
}

// NewError builds a source error attributed to this caller.
func (c *Caller) NewError(kind ErrorKind, statusCode int, err error) *Error {
	return &Error{Kind: kind, Source: c.name, StatusCode: statusCode, Err: err}
}

// GetJSON performs a rate-gated GET and decodes the JSON response into
// out. Network errors, 429 and 5xx responses are retried with jittered
// exponential backoff, honoring Retry-After when the source sends one.
// 404, unexpected 4xx and undecodable payloads fail immediately. When
// the breaker is open the call fails fast without consuming the gate.
func (c *Caller) GetJSON(ctx context.Context, rawURL string, out any) error {
	var lastErr error
	var retryAfter time.Duration

	for attempt := 0; attempt < c.maxAttempts; attempt++ {
		if attempt > 0 {
			wait := c.backoff(attempt, retryAfter)
			log.Debug().
				Str("source", c.name).
				Int("attempt", attempt+1).
				Dur("wait", wait).
				Msg("retrying source request")
			observability.RecordSourceRetry(c.name)
			select {
			case <-ctx.Done():
				return fmt.Errorf("source %s: %w", c.name, ctx.Err())
			case <-c.clock.After(wait):
			}
		}
		retryAfter = 0

		if c.breaker.State() == gobreaker.StateOpen {
			return c.NewError(KindNetwork, 0, gobreaker.ErrOpenState)
		}

		if err := c.gate.Take(ctx); err != nil {
			return fmt.Errorf("source %s: %w", c.name, err)
		}

		start := time.Now()
		hint, err := c.once(ctx, rawURL, out)
		elapsed := time.Since(start).Seconds()

		if err == nil {
			observability.RecordSourceRequest(c.name, "ok", elapsed)
			return nil
		}
		observability.RecordSourceRequest(c.name, string(KindOf(err)), elapsed)

		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return err
		}
		if ctx.Err() != nil {
			return err
		}
		if !IsRetryable(err) {
			return err
		}

		lastErr = err
		retryAfter = hint
	}

	return lastErr
}

// once performs a single gated attempt. The returned duration is the
// server's Retry-After hint, zero when absent.
func (c *Caller) once(ctx context.Context, rawURL string, out any) (time.Duration, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return 0, c.NewError(KindMalformed, 0, fmt.Errorf("build request: %w", err))
	}
	req.Header.Set("Accept", "application/json")
	if c.userAgent != "" {
		req.Header.Set("User-Agent", c.userAgent)
	}

	result, err := c.breaker.Execute(func() (interface{}, error) {
		return c.httpClient.Do(req)
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return 0, c.NewError(KindNetwork, 0, err)
		}
		return 0, c.NewError(KindNetwork, 0, redactTransportError(err))
	}

	resp := result.(*http.Response)
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return 0, c.NewError(KindNetwork, 0, fmt.Errorf("read response body: %w", err))
	}

	switch {
	case resp.StatusCode == http.StatusOK:
		if err := json.Unmarshal(body, out); err != nil {
			return 0, c.NewError(KindMalformed, resp.StatusCode, fmt.Errorf("decode response: %w", err))
		}
		return 0, nil
	case resp.StatusCode == http.StatusNotFound:
		return 0, c.NewError(KindNotFound, resp.StatusCode, errors.New("record not found"))
	case resp.StatusCode == http.StatusTooManyRequests:
		return parseRetryAfter(resp.Header.Get("Retry-After")),
			c.NewError(KindRateLimited, resp.StatusCode, errors.New("throttled by source"))
	case resp.StatusCode >= 500:
		return parseRetryAfter(resp.Header.Get("Retry-After")),
			c.NewError(KindUpstream, resp.StatusCode, errors.New("source server error"))
	default:
		return 0, c.NewError(KindMalformed, resp.StatusCode, fmt.Errorf("unexpected status %d", resp.StatusCode))
	}
}

// backoff computes the wait before retry number attempt, never below
// the server's Retry-After hint.
func (c *Caller) backoff(attempt int, hint time.Duration) time.Duration {
	wait := c.retryBase << uint(attempt-1)
	if wait > c.retryCap {
		wait = c.retryCap
	}
	wait = time.Duration(float64(wait) * (0.5 + rand.Float64()))
	if hint > wait {
		wait = hint
	}
	return wait
}

// redactTransportError strips query strings from transport errors so
// API keys never reach logs or failure details.
func redactTransportError(err error) error {
	var ue *url.Error
	if errors.As(err, &ue) {
		return fmt.Errorf("%s %s: %w", ue.Op, redactURL(ue.URL), ue.Err)
	}
	return err
}

func redactURL(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return "(unparseable url)"
	}
	if u.RawQuery != "" {
		u.RawQuery = "redacted"
	}
	return u.String()
}

// parseRetryAfter handles both delta-seconds and HTTP-date forms,
// clamped so a hostile header cannot stall a worker.
func parseRetryAfter(header string) time.Duration {
	if header == "" {
		return 0
	}

	var delay time.Duration
	if secs, err := strconv.Atoi(header); err == nil {
		delay = time.Duration(secs) * time.Second
	} else if at, err := http.ParseTime(header); err == nil {
		delay = time.Until(at)
	}

	if delay < 0 {
		delay = 0
	}
	if delay > maxRetryAfterDelay {
		delay = maxRetryAfterDelay
	}
	return delay
}
