package httpx

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// scriptedTransport replays a fixed sequence of responses.
type scriptedTransport struct {
	responses []*http.Response
	calls     int
}

func (s *scriptedTransport) RoundTrip(*http.Request) (*http.Response, error) {
	if s.calls >= len(s.responses) {
		return nil, io.ErrUnexpectedEOF
	}
	resp := s.responses[s.calls]
	s.calls++
	return resp, nil
}

func resp(status int, body string, headers map[string]string) *http.Response {
	h := http.Header{}
	for k, v := range headers {
		h.Set(k, v)
	}
	return &http.Response{
		StatusCode: status,
		Body:       io.NopCloser(bytes.NewBufferString(body)),
		Header:     h,
	}
}

func buildGet(t *testing.T) func(context.Context) (*http.Request, error) {
	t.Helper()
	return func(ctx context.Context) (*http.Request, error) {
		return http.NewRequestWithContext(ctx, http.MethodGet, "https://lms.test/courses", nil)
	}
}

func TestDoSuccess(t *testing.T) {
	tr := &scriptedTransport{responses: []*http.Response{resp(200, `{"ok":true}`, nil)}}
	client := &http.Client{Transport: tr}

	r, body, err := Do(context.Background(), client, buildGet(t), Disabled())
	require.NoError(t, err)
	assert.Equal(t, 200, r.StatusCode)
	assert.JSONEq(t, `{"ok":true}`, string(body))
	assert.Equal(t, 1, tr.calls)
}

func TestDoDisabledDoesNotRetry(t *testing.T) {
	tr := &scriptedTransport{responses: []*http.Response{
		resp(503, "unavailable", nil),
		resp(200, "late", nil),
	}}
	client := &http.Client{Transport: tr}

	_, _, err := Do(context.Background(), client, buildGet(t), Disabled())
	require.Error(t, err)

	var herr *HTTPError
	require.ErrorAs(t, err, &herr)
	assert.Equal(t, 503, herr.StatusCode)
	assert.Equal(t, 1, tr.calls, "disabled policy must issue exactly one attempt")
}

func TestDoRetriesTransientStatus(t *testing.T) {
	tr := &scriptedTransport{responses: []*http.Response{
		resp(503, "unavailable", nil),
		resp(429, "slow down", nil),
		resp(200, "ok", nil),
	}}
	client := &http.Client{Transport: tr}

	pol := Default()
	pol.BaseDelay = time.Millisecond
	pol.MaxDelay = 2 * time.Millisecond

	r, body, err := Do(context.Background(), client, buildGet(t), pol)
	require.NoError(t, err)
	assert.Equal(t, 200, r.StatusCode)
	assert.Equal(t, "ok", string(body))
	assert.Equal(t, 3, tr.calls)
}

func TestDoPermanentStatusNotRetried(t *testing.T) {
	tr := &scriptedTransport{responses: []*http.Response{
		resp(404, "missing", nil),
		resp(200, "never", nil),
	}}
	client := &http.Client{Transport: tr}

	pol := Default()
	pol.BaseDelay = time.Millisecond

	_, _, err := Do(context.Background(), client, buildGet(t), pol)
	require.Error(t, err)

	var herr *HTTPError
	require.ErrorAs(t, err, &herr)
	assert.Equal(t, 404, herr.StatusCode)
	assert.Equal(t, 1, tr.calls)
}

func TestDoExhaustsAttempts(t *testing.T) {
	tr := &scriptedTransport{responses: []*http.Response{
		resp(500, "a", nil),
		resp(500, "b", nil),
		resp(500, "c", nil),
	}}
	client := &http.Client{Transport: tr}

	pol := Policy{MaxAttempts: 3, BaseDelay: time.Millisecond, MaxDelay: time.Millisecond, Retry5xx: true}
	_, _, err := Do(context.Background(), client, buildGet(t), pol)
	require.Error(t, err)
	assert.Equal(t, 3, tr.calls)
}

func TestRetryAfter(t *testing.T) {
	tests := []struct {
		name   string
		header string
		want   time.Duration
	}{
		{"missing", "", 0},
		{"seconds", "7", 7 * time.Second},
		{"negative", "-3", 0},
		{"garbage", "soon", 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := resp(429, "", nil)
			if tt.header != "" {
				r.Header.Set("Retry-After", tt.header)
			}
			assert.Equal(t, tt.want, RetryAfter(r))
		})
	}
}

func TestDoJSON(t *testing.T) {
	tr := &scriptedTransport{responses: []*http.Response{resp(200, `{"name":"Курс"}`, nil)}}
	client := &http.Client{Transport: tr}

	var out struct {
		Name string `json:"name"`
	}
	err := DoJSON(context.Background(), client, buildGet(t), &out, Disabled())
	require.NoError(t, err)
	assert.Equal(t, "Курс", out.Name)
}

func TestDoJSONParseError(t *testing.T) {
	tr := &scriptedTransport{responses: []*http.Response{resp(200, `<html>gateway</html>`, nil)}}
	client := &http.Client{Transport: tr}

	var out map[string]any
	err := DoJSON(context.Background(), client, buildGet(t), &out, Disabled())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "json parse error")
}
