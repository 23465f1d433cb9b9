package upstream

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"math/rand/v2"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/corvidlabs/vertexpass/internal/anthropicapi"
	"github.com/corvidlabs/vertexpass/internal/apperrors"
	"github.com/corvidlabs/vertexpass/internal/metrics"
)

const (
	// connectTimeout bounds TCP+TLS establishment to the upstream.
	connectTimeout = 10 * time.Second

	// nonStreamingTimeout bounds a whole non-streaming upstream call.
	nonStreamingTimeout = 120 * time.Second

	// streamIdleTimeout is the longest gap tolerated between received bytes
	// of a streaming body. Streaming calls have no aggregate timeout.
	streamIdleTimeout = 60 * time.Second

	backoffBase = 200 * time.Millisecond
	backoffCap  = 5 * time.Second

	// DefaultMaxAttempts is the retry budget when none is configured.
	DefaultMaxAttempts = 3

	// errorBodyLimit caps how much of an upstream error body is read.
	errorBodyLimit = 1 << 20
)

// DefaultTransport clones http.DefaultTransport with the connect and
// response-header timeouts the upstream contract requires.
func DefaultTransport() *http.Transport {
	t := http.DefaultTransport.(*http.Transport).Clone()
	t.DialContext = (&net.Dialer{Timeout: connectTimeout}).DialContext
	t.ResponseHeaderTimeout = 30 * time.Second
	return t
}

// Client POSTs Anthropic Messages requests to a Backend with bearer
// authorization, retrying transport errors and retryable statuses with
// jittered exponential backoff.
type Client struct {
	httpClient   *http.Client
	backend      Backend
	metrics      *metrics.Metrics
	retryEnabled bool
	maxAttempts  int
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient sets a custom HTTP client (timeouts, TLS, pooling).
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithRetry configures the retry policy. maxAttempts counts the first try;
// values below 1 fall back to DefaultMaxAttempts.
func WithRetry(enabled bool, maxAttempts int) Option {
	return func(c *Client) {
		c.retryEnabled = enabled
		if maxAttempts >= 1 {
			c.maxAttempts = maxAttempts
		}
	}
}

// NewClient creates an upstream Client for the given backend.
func NewClient(backend Backend, m *metrics.Metrics, opts ...Option) *Client {
	c := &Client{
		httpClient:   &http.Client{Transport: DefaultTransport()},
		backend:      backend,
		metrics:      m,
		retryEnabled: true,
		maxAttempts:  DefaultMaxAttempts,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Backend returns the backend this client was built around.
func (c *Client) Backend() Backend { return c.backend }

// Do performs one non-streaming Messages call and decodes the response.
func (c *Client) Do(ctx context.Context, req *anthropicapi.Request) (*anthropicapi.Response, error) {
	ctx, cancel := context.WithTimeout(ctx, nonStreamingTimeout)
	defer cancel()

	req.Stream = false
	resp, err := c.send(ctx, false, req)
	if err != nil {
		return nil, err
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, mapTransportError(err)
	}

	var out anthropicapi.Response
	if err := json.Unmarshal(body, &out); err != nil {
		return nil, apperrors.Wrap(apperrors.KindConversion, "decode upstream response", err)
	}
	return &out, nil
}

// Stream performs one streaming Messages call and returns the raw SSE body.
// The returned reader enforces the idle timeout between received bytes;
// closing it cancels the upstream stream.
func (c *Client) Stream(ctx context.Context, req *anthropicapi.Request) (io.ReadCloser, error) {
	ctx, cancel := context.WithCancelCause(ctx)

	req.Stream = true
	resp, err := c.send(ctx, true, req)
	if err != nil {
		cancel(nil)
		return nil, err
	}

	return newIdleTimeoutBody(ctx, resp.Body, cancel), nil
}

// send runs the retry loop around one POST. On success the response body is
// unread; on failure it has been drained and closed.
func (c *Client) send(ctx context.Context, streaming bool, req *anthropicapi.Request) (*http.Response, error) {
	payload, err := json.Marshal(req)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.KindConversion, "encode upstream request", err)
	}

	accept := "application/json"
	if streaming {
		accept = "text/event-stream"
	}
	url := c.backend.URL(streaming)

	attempts := c.maxAttempts
	if !c.retryEnabled {
		attempts = 1
	}

	var lastErr error
	for attempt := 0; attempt < attempts; attempt++ {
		if attempt > 0 {
			c.metrics.RetryAttempt()
			if err := sleepBackoff(ctx, attempt-1); err != nil {
				return nil, mapTransportError(err)
			}
		}

		auth, err := c.backend.Authorization(ctx)
		if err != nil {
			// Authentication failures are never retried at this call site.
			if appErr := (*apperrors.Error)(nil); apperrors.As(err, &appErr) {
				return nil, err
			}
			return nil, apperrors.Wrap(apperrors.KindAuthentication, "obtain upstream authorization", err)
		}

		httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
		if err != nil {
			return nil, apperrors.Wrap(apperrors.KindConfig, "build upstream request", err)
		}
		httpReq.Header.Set("Authorization", auth)
		httpReq.Header.Set("Content-Type", "application/json")
		httpReq.Header.Set("Accept", accept)

		resp, err := c.httpClient.Do(httpReq)
		if err != nil {
			lastErr = mapTransportError(err)
			if ctx.Err() != nil {
				return nil, lastErr
			}
			continue
		}

		if resp.StatusCode >= 200 && resp.StatusCode < 300 {
			return resp, nil
		}

		body, _ := io.ReadAll(io.LimitReader(resp.Body, errorBodyLimit))
		_ = resp.Body.Close()

		if resp.StatusCode == http.StatusTooManyRequests && isQuotaBody(body) {
			c.metrics.QuotaError()
		}

		lastErr = mapStatusError(resp.StatusCode, string(body))
		if !retryableStatus(resp.StatusCode) {
			return nil, lastErr
		}
	}

	return nil, lastErr
}

// retryableStatus reports whether a status is worth retrying: transport-
// level retries cover 5xx, 429, and 408; other 4xx surface immediately.
func retryableStatus(status int) bool {
	return status >= 500 || status == http.StatusTooManyRequests || status == http.StatusRequestTimeout
}

// isQuotaBody reports whether a 429 body indicates quota exhaustion rather
// than plain rate limiting.
func isQuotaBody(body []byte) bool {
	lower := strings.ToLower(string(body))
	return strings.Contains(lower, "quota") || strings.Contains(lower, "resource_exhausted") || strings.Contains(lower, "resource exhausted")
}

func mapStatusError(status int, body string) *apperrors.Error {
	if status == http.StatusTooManyRequests {
		err := apperrors.New(apperrors.KindQuotaExceeded, "upstream quota or rate limit exceeded")
		err.Status = status
		err.Body = body
		return err
	}
	return apperrors.Upstream(status, body)
}

func mapTransportError(err error) *apperrors.Error {
	if errors.Is(err, context.DeadlineExceeded) {
		return apperrors.Wrap(apperrors.KindTimeout, "upstream request timed out", err)
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return apperrors.Wrap(apperrors.KindTimeout, "upstream request timed out", err)
	}
	return apperrors.Wrap(apperrors.KindNetwork, "upstream request failed", err)
}

// sleepBackoff waits the jittered exponential delay for the given 0-based
// retry ordinal, honoring context cancellation. Full jitter: the actual
// delay is uniform in [0, min(cap, base*2^n)].
func sleepBackoff(ctx context.Context, n int) error {
	d := backoffBase << n
	if d > backoffCap || d <= 0 {
		d = backoffCap
	}
	d = time.Duration(rand.Float64() * float64(d))

	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// errStreamIdle marks an idle-timeout cancellation so Read can distinguish
// it from a caller cancellation.
var errStreamIdle = errors.New("upstream stream idle timeout")

// idleTimeoutBody wraps a streaming response body with a per-read idle
// deadline: a timer armed before each Read cancels the request context if
// no bytes arrive in time, which unblocks the read.
type idleTimeoutBody struct {
	ctx    context.Context
	body   io.ReadCloser
	timer  *time.Timer
	cancel context.CancelCauseFunc
}

func newIdleTimeoutBody(ctx context.Context, body io.ReadCloser, cancel context.CancelCauseFunc) *idleTimeoutBody {
	b := &idleTimeoutBody{ctx: ctx, body: body, cancel: cancel}
	b.timer = time.AfterFunc(streamIdleTimeout, func() { cancel(errStreamIdle) })
	return b
}

func (b *idleTimeoutBody) Read(p []byte) (int, error) {
	b.timer.Reset(streamIdleTimeout)
	n, err := b.body.Read(p)
	if err != nil && errors.Is(context.Cause(b.ctx), errStreamIdle) {
		return n, apperrors.Wrap(apperrors.KindTimeout, "upstream stream went idle", err)
	}
	return n, err
}

func (b *idleTimeoutBody) Close() error {
	b.timer.Stop()
	b.cancel(nil)
	return b.body.Close()
}
