package transport

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/sirupsen/logrus"
)

// TransportError is a network or non-2xx failure that survived the
// retry budget.
type TransportError struct {
	Op         string
	StatusCode int
	Attempts   int
	Err        error
}

func (e *TransportError) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("%s: status %d after %d attempts", e.Op, e.StatusCode, e.Attempts)
	}
	return fmt.Sprintf("%s: %v after %d attempts", e.Op, e.Err, e.Attempts)
}

func (e *TransportError) Unwrap() error { return e.Err }

// AuthError is an authorization failure (401/403). The transport does
// not retry these; the credential manager decides whether to re-acquire.
type AuthError struct {
	Platform   string
	StatusCode int
}

func (e *AuthError) Error() string {
	return fmt.Sprintf("authorization failed for %s: status %d", e.Platform, e.StatusCode)
}

// RateLimitedError signals a platform-level rate limit (HTTP 429). The
// orchestrator suspends the platform for the remainder of the cycle.
type RateLimitedError struct {
	Platform   string
	RetryAfter time.Duration
}

func (e *RateLimitedError) Error() string {
	return fmt.Sprintf("rate limited by %s (retry after %s)", e.Platform, e.RetryAfter)
}

// Request describes one outbound call. Platform tags the error shaping;
// Idempotent opts the request into retries (GETs and token refreshes
// are; unconfirmed writes are not).
type Request struct {
	Method     string
	URL        string
	Platform   string
	Header     map[string]string
	QueryParam map[string]string
	FormData   map[string]string
	Body       interface{}
	BasicAuth  [2]string
	Idempotent bool
}

// Client wraps resty with bounded exponential-backoff retry and uniform
// error shaping. All connectors and the credential manager route every
// outbound call through it.
type Client struct {
	http       *resty.Client
	maxRetries int
	baseDelay  time.Duration
}

// NewClient creates a retry transport. maxRetries is the number of
// retries after the first attempt; delay doubles each attempt.
func NewClient(timeout time.Duration, maxRetries int, baseDelay time.Duration) *Client {
	return &Client{
		http: resty.New().
			SetTimeout(timeout).
			SetHeader("User-Agent", "AuraShield-Mentions-Bot/1.0"),
		maxRetries: maxRetries,
		baseDelay:  baseDelay,
	}
}

// Execute performs the request, retrying transport failures and
// retryable status codes up to the configured budget. 401/403 and 429
// are shaped into their taxonomy errors and never retried here.
func (c *Client) Execute(ctx context.Context, req *Request) (*resty.Response, error) {
	var lastErr error
	var lastStatus int

	attempts := 1
	if req.Idempotent {
		attempts += c.maxRetries
	}

	for attempt := 0; attempt < attempts; attempt++ {
		if attempt > 0 {
			delay := c.baseDelay * (1 << (attempt - 1))
			logrus.Debugf("Retrying %s %s in %s (attempt %d/%d)", req.Method, req.URL, delay, attempt+1, attempts)
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(delay):
			}
		}

		resp, err := c.do(ctx, req)
		if err != nil {
			lastErr = err
			continue
		}

		switch code := resp.StatusCode(); {
		case resp.IsSuccess():
			return resp, nil
		case code == 401 || code == 403:
			return resp, &AuthError{Platform: req.Platform, StatusCode: code}
		case code == 429:
			return resp, &RateLimitedError{Platform: req.Platform, RetryAfter: retryAfter(resp)}
		default:
			lastStatus = code
			lastErr = fmt.Errorf("status %d: %s", code, resp.Body())
		}
	}

	return nil, &TransportError{
		Op:         fmt.Sprintf("%s %s", req.Method, req.URL),
		StatusCode: lastStatus,
		Attempts:   attempts,
		Err:        lastErr,
	}
}

func (c *Client) do(ctx context.Context, req *Request) (*resty.Response, error) {
	r := c.http.R().SetContext(ctx)

	for k, v := range req.Header {
		r.SetHeader(k, v)
	}
	if len(req.QueryParam) > 0 {
		r.SetQueryParams(req.QueryParam)
	}
	if len(req.FormData) > 0 {
		r.SetFormData(req.FormData)
	}
	if req.Body != nil {
		r.SetBody(req.Body)
	}
	if req.BasicAuth[0] != "" {
		r.SetBasicAuth(req.BasicAuth[0], req.BasicAuth[1])
	}

	return r.Execute(req.Method, req.URL)
}

// retryAfter reads the standard Retry-After header, falling back to the
// x-rate-limit-reset epoch some platforms send instead.
func retryAfter(resp *resty.Response) time.Duration {
	if v := resp.Header().Get("Retry-After"); v != "" {
		if secs, err := strconv.Atoi(v); err == nil && secs > 0 {
			return time.Duration(secs) * time.Second
		}
	}
	if v := resp.Header().Get("x-rate-limit-reset"); v != "" {
		if epoch, err := strconv.ParseInt(v, 10, 64); err == nil {
			if d := time.Until(time.Unix(epoch, 0)); d > 0 {
				return d
			}
		}
	}
	return time.Minute
}
