package httpx

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math/rand"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"
)

// HTTPError carries status/body for non-2xx responses so callers can
// decide how to react (skip the record, abort the loop, etc.).
type HTTPError struct {
	Method     string
	URL        string
	StatusCode int
	Body       []byte
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("http error: %s %s status=%d body=%s", e.Method, e.URL, e.StatusCode, snippet(e.Body, 900))
}

func snippet(b []byte, max int) string {
	s := strings.TrimSpace(string(b))
	if len(s) <= max {
		return s
	}
	return s[:max] + "…"
}

// Policy is the retry policy applied to a single logical request.
// The zero value means "one attempt, no retries"; use Default() for
// backoff against transient failures.
type Policy struct {
	MaxAttempts int
	BaseDelay   time.Duration
	MaxDelay    time.Duration

	// Retry any 5xx in addition to Statuses.
	Retry5xx bool

	// Extra statuses to retry (429, 408, ...).
	Statuses map[int]bool
}

// Disabled performs exactly one attempt.
func Disabled() Policy {
	return Policy{MaxAttempts: 1}
}

func Default() Policy {
	return Policy{
		MaxAttempts: 5,
		BaseDelay:   700 * time.Millisecond,
		MaxDelay:    30 * time.Second,
		Retry5xx:    true,
		Statuses: map[int]bool{
			http.StatusTooManyRequests: true,
			http.StatusRequestTimeout:  true,
		},
	}
}

func (p Policy) normalized() Policy {
	if p.MaxAttempts <= 0 {
		p.MaxAttempts = 1
	}
	if p.BaseDelay <= 0 {
		p.BaseDelay = 700 * time.Millisecond
	}
	if p.MaxDelay <= 0 {
		p.MaxDelay = 30 * time.Second
	}
	return p
}

func (p Policy) retryable(code int) bool {
	if p.Statuses != nil && p.Statuses[code] {
		return true
	}
	return p.Retry5xx && code >= 500 && code <= 599
}

// Do executes a request built by buildReq under the given policy. The
// response body is always read in full so the transport can reuse the
// connection.
func Do(
	ctx context.Context,
	client *http.Client,
	buildReq func(context.Context) (*http.Request, error),
	pol Policy,
) (*http.Response, []byte, error) {
	pol = pol.normalized()

	var lastErr error
	for attempt := 1; attempt <= pol.MaxAttempts; attempt++ {
		req, err := buildReq(ctx)
		if err != nil {
			return nil, nil, err
		}

		resp, err := client.Do(req)
		if err != nil {
			lastErr = err
			if attempt < pol.MaxAttempts && retryableNetErr(err) {
				if err := backoff(ctx, attempt, pol, 0); err != nil {
					return nil, nil, err
				}
				continue
			}
			return nil, nil, err
		}

		body, readErr := io.ReadAll(resp.Body)
		resp.Body.Close()
		if readErr != nil {
			lastErr = readErr
			if attempt < pol.MaxAttempts && retryableNetErr(readErr) {
				if err := backoff(ctx, attempt, pol, 0); err != nil {
					return nil, nil, err
				}
				continue
			}
			return resp, body, readErr
		}

		if resp.StatusCode >= 200 && resp.StatusCode < 300 {
			return resp, body, nil
		}

		herr := &HTTPError{
			Method:     req.Method,
			URL:        req.URL.String(),
			StatusCode: resp.StatusCode,
			Body:       body,
		}
		lastErr = herr
		if attempt < pol.MaxAttempts && pol.retryable(resp.StatusCode) {
			if err := backoff(ctx, attempt, pol, RetryAfter(resp)); err != nil {
				return nil, nil, err
			}
			continue
		}
		return resp, body, herr
	}

	if lastErr != nil {
		return nil, nil, lastErr
	}
	return nil, nil, errors.New("httpx: request failed")
}

// DoJSON runs Do and unmarshals the body into out (skipped when out is nil).
func DoJSON(
	ctx context.Context,
	client *http.Client,
	buildReq func(context.Context) (*http.Request, error),
	out any,
	pol Policy,
) error {
	_, body, err := Do(ctx, client, buildReq, pol)
	if err != nil {
		return err
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("json parse error: %w body=%s", err, snippet(body, 900))
	}
	return nil
}

func backoff(ctx context.Context, attempt int, pol Policy, retryAfter time.Duration) error {
	sleep := retryAfter
	if sleep <= 0 {
		sleep = pol.BaseDelay * time.Duration(1<<(attempt-1))
		if sleep > pol.MaxDelay {
			sleep = pol.MaxDelay
		}
		// jitter 0..400ms
		sleep += time.Duration(rand.Intn(400)) * time.Millisecond
	}

	t := time.NewTimer(sleep)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func retryableNetErr(err error) bool {
	if errors.Is(err, context.Canceled) {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}

	var nerr net.Error
	if errors.As(err, &nerr) && nerr.Timeout() {
		return true
	}

	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "connection reset") ||
		strings.Contains(msg, "broken pipe") ||
		strings.Contains(msg, "eof")
}

// RetryAfter parses the Retry-After header (seconds or HTTP date).
// Returns 0 when the header is missing or invalid.
func RetryAfter(resp *http.Response) time.Duration {
	v := strings.TrimSpace(resp.Header.Get("Retry-After"))
	if v == "" {
		return 0
	}
	if secs, err := strconv.Atoi(v); err == nil && secs >= 0 {
		return time.Duration(secs) * time.Second
	}
	if t, err := http.ParseTime(v); err == nil {
		if d := time.Until(t); d > 0 {
			return d
		}
	}
	return 0
}
