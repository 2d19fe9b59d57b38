package modelclient

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/multiview/internal/resilience"
	"github.com/sells-group/multiview/pkg/anthropic"
	"github.com/sells-group/multiview/pkg/openrouter"
)

const okBody = `{"id":"gen-1","choices":[{"index":0,"message":{"role":"assistant","content":"model says hi"}}]}`

func testConfig() Config {
	return Config{
		Timeout: 50 * time.Millisecond,
		Retry: resilience.RetryPolicy{
			MaxAttempts: 3,
			BaseDelay:   time.Millisecond,
			MaxDelay:    5 * time.Millisecond,
			Multiplier:  2,
		},
		Breaker: resilience.BreakerConfig{Threshold: 0},
	}
}

func newRouter(t *testing.T, cfg Config, h http.HandlerFunc, opts ...Option) (*Router, *atomic.Int32) {
	t.Helper()
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		h(w, r)
	}))
	t.Cleanup(func() {
		srv.CloseClientConnections()
		srv.Close()
	})
	return New(cfg, openrouter.NewClient(openrouter.WithBaseURL(srv.URL)), opts...), &hits
}

func reply(status int, body string) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}
}

func requireKind(t *testing.T, err error, kind Kind) *Error {
	t.Helper()
	require.Error(t, err)
	var e *Error
	require.True(t, errors.As(err, &e), "expected *modelclient.Error, got %T", err)
	assert.Equal(t, kind, e.Kind)
	return e
}

func TestCall_Success(t *testing.T) {
	r, hits := newRouter(t, testConfig(), func(w http.ResponseWriter, req *http.Request) {
		assert.Equal(t, "Bearer valid-key", req.Header.Get("Authorization"))
		reply(http.StatusOK, okBody)(w, req)
	})

	got, err := r.Call(context.Background(), "valid-key", "openchat/openchat-3.5-0106", "hello")
	require.NoError(t, err)
	assert.Equal(t, "model says hi", got)
	assert.Equal(t, int32(1), hits.Load())
}

// stall holds a request open until the client gives up. The body is read
// first so the server notices the disconnect and cancels req.Context().
func stall(req *http.Request) {
	_, _ = io.Copy(io.Discard, req.Body)
	<-req.Context().Done()
}

func TestCall_TimeoutsThenSuccess(t *testing.T) {
	var n atomic.Int32
	r, hits := newRouter(t, testConfig(), func(w http.ResponseWriter, req *http.Request) {
		if n.Add(1) <= 2 {
			stall(req)
			return
		}
		reply(http.StatusOK, okBody)(w, req)
	})

	got, err := r.Call(context.Background(), "valid-key", "m/slow", "hello")
	require.NoError(t, err)
	assert.Equal(t, "model says hi", got)
	assert.Equal(t, int32(3), hits.Load())
}

func TestCall_NotFoundIsNotRetried(t *testing.T) {
	r, hits := newRouter(t, testConfig(), reply(http.StatusNotFound, `{"error":"no such model"}`))

	_, err := r.Call(context.Background(), "valid-key", "bogus/model", "hello")
	e := requireKind(t, err, KindUpstream)
	assert.Equal(t, 404, e.StatusCode)
	assert.Equal(t, `{"error":"no such model"}`, e.Body)
	assert.Equal(t, 1, e.Attempts)
	assert.Equal(t, int32(1), hits.Load())
}

func TestCall_RateLimitIsNotRetried(t *testing.T) {
	r, hits := newRouter(t, testConfig(), reply(http.StatusTooManyRequests, `slow down`))

	_, err := r.Call(context.Background(), "valid-key", "m/x", "hello")
	e := requireKind(t, err, KindUpstream)
	assert.Equal(t, 429, e.StatusCode)
	assert.Equal(t, int32(1), hits.Load())
}

func TestCall_ServerErrorExhaustsRetries(t *testing.T) {
	r, hits := newRouter(t, testConfig(), reply(http.StatusServiceUnavailable, `overloaded`))

	_, err := r.Call(context.Background(), "valid-key", "m/x", "hello")
	e := requireKind(t, err, KindUpstream)
	assert.Equal(t, 503, e.StatusCode)
	assert.Equal(t, 3, e.Attempts)
	assert.Equal(t, int32(3), hits.Load())
}

func TestCall_TimeoutsExhaustRetries(t *testing.T) {
	r, hits := newRouter(t, testConfig(), func(_ http.ResponseWriter, req *http.Request) {
		stall(req)
	})

	_, err := r.Call(context.Background(), "valid-key", "m/x", "hello")
	e := requireKind(t, err, KindTransient)
	assert.Equal(t, 3, e.Attempts)
	assert.Equal(t, int32(3), hits.Load())
}

func TestCall_MalformedResponseIsData(t *testing.T) {
	tests := map[string]string{
		"no choices":      `{"choices":[]}`,
		"missing content": `{"choices":[{"message":{"role":"assistant"}}]}`,
		"not json":        `<html>oops</html>`,
	}
	for name, body := range tests {
		t.Run(name, func(t *testing.T) {
			r, hits := newRouter(t, testConfig(), reply(http.StatusOK, body))

			_, err := r.Call(context.Background(), "valid-key", "m/x", "hello")
			e := requireKind(t, err, KindData)
			assert.Equal(t, 1, e.Attempts)
			assert.Equal(t, int32(1), hits.Load())
		})
	}
}

func TestCall_MissingCredential(t *testing.T) {
	r, hits := newRouter(t, testConfig(), reply(http.StatusOK, okBody))

	_, err := r.Call(context.Background(), "", "m/x", "hello")
	e := requireKind(t, err, KindConfig)
	assert.True(t, errors.Is(err, ErrMissingCredential))
	assert.Equal(t, 0, e.Attempts)
	assert.Equal(t, int32(0), hits.Load())
}

func TestCall_UnconfiguredProvider(t *testing.T) {
	r, hits := newRouter(t, testConfig(), reply(http.StatusOK, okBody))

	_, err := r.Call(context.Background(), "valid-key", "anthropic:claude-haiku-4-5-20251001", "hello")
	requireKind(t, err, KindConfig)
	assert.True(t, errors.Is(err, ErrProviderNotConfigured))
	assert.Equal(t, int32(0), hits.Load())
}

func TestCall_BreakerOpensOnRepeatedOutage(t *testing.T) {
	cfg := testConfig()
	cfg.Retry.MaxAttempts = 1
	cfg.Breaker = resilience.BreakerConfig{Threshold: 2, Cooldown: time.Minute, OnStateChange: func(string, resilience.BreakerState, resilience.BreakerState) {}}
	r, hits := newRouter(t, cfg, reply(http.StatusBadGateway, `bad gateway`))

	for i := 0; i < 2; i++ {
		_, err := r.Call(context.Background(), "valid-key", "m/flaky", "hello")
		requireKind(t, err, KindUpstream)
	}

	_, err := r.Call(context.Background(), "valid-key", "m/flaky", "hello")
	requireKind(t, err, KindTransient)
	assert.True(t, errors.Is(err, resilience.ErrBreakerOpen))
	assert.Equal(t, int32(2), hits.Load())

	snap := r.Breakers()
	require.Len(t, snap, 1)
	assert.Equal(t, "m/flaky", snap[0].Model)
	assert.Equal(t, "open", snap[0].State)
}

type fakeAnthropic struct {
	calls int
	req   anthropic.MessageRequest
	resp  *anthropic.MessageResponse
	err   error
}

func (f *fakeAnthropic) CreateMessage(_ context.Context, req anthropic.MessageRequest) (*anthropic.MessageResponse, error) {
	f.calls++
	f.req = req
	return f.resp, f.err
}

type fakeGemini struct {
	model, prompt string
	text          string
	err           error
}

func (f *fakeGemini) GenerateText(_ context.Context, model, prompt string) (string, error) {
	f.model, f.prompt = model, prompt
	return f.text, f.err
}

func TestCall_AnthropicRoute(t *testing.T) {
	fa := &fakeAnthropic{resp: &anthropic.MessageResponse{Content: []anthropic.ContentBlock{{Type: "text", Text: "claude answer"}}}}
	r, hits := newRouter(t, testConfig(), reply(http.StatusOK, okBody), WithAnthropic(fa))

	got, err := r.Call(context.Background(), "valid-key", "anthropic:claude-sonnet-4-5-20250929", "prompt")
	require.NoError(t, err)
	assert.Equal(t, "claude answer", got)
	assert.Equal(t, "claude-sonnet-4-5-20250929", fa.req.Model)
	require.Len(t, fa.req.Messages, 1)
	assert.Equal(t, "prompt", fa.req.Messages[0].Content)
	assert.Equal(t, int32(0), hits.Load())
}

func TestCall_AnthropicClientErrorIsUpstream(t *testing.T) {
	fa := &fakeAnthropic{err: &anthropic.APIError{StatusCode: 401, Body: `{"error":"invalid x-api-key"}`}}
	r, _ := newRouter(t, testConfig(), reply(http.StatusOK, okBody), WithAnthropic(fa))

	_, err := r.Call(context.Background(), "valid-key", "anthropic:claude-haiku-4-5-20251001", "prompt")
	e := requireKind(t, err, KindUpstream)
	assert.Equal(t, 401, e.StatusCode)
	assert.Contains(t, e.Body, "invalid x-api-key")
	assert.Equal(t, 1, fa.calls)
}

func TestCall_AnthropicEmptyIsData(t *testing.T) {
	fa := &fakeAnthropic{resp: &anthropic.MessageResponse{}}
	r, _ := newRouter(t, testConfig(), reply(http.StatusOK, okBody), WithAnthropic(fa))

	_, err := r.Call(context.Background(), "valid-key", "anthropic:claude-haiku-4-5-20251001", "prompt")
	requireKind(t, err, KindData)
	assert.Equal(t, 1, fa.calls)
}

func TestCall_GeminiRoute(t *testing.T) {
	fg := &fakeGemini{text: "gemini answer"}
	r, _ := newRouter(t, testConfig(), reply(http.StatusOK, okBody), WithGemini(fg))

	got, err := r.Call(context.Background(), "valid-key", "gemini:gemini-2.5-pro", "synthesize")
	require.NoError(t, err)
	assert.Equal(t, "gemini answer", got)
	assert.Equal(t, "gemini-2.5-pro", fg.model)
	assert.Equal(t, "synthesize", fg.prompt)
}

func TestKindHelpers(t *testing.T) {
	err := &Error{Kind: KindData, Model: "m", Attempts: 1, Err: errors.New("bad shape")}
	k, ok := KindOf(err)
	assert.True(t, ok)
	assert.Equal(t, KindData, k)
	assert.True(t, IsKind(err, KindData))
	assert.False(t, IsKind(errors.New("plain"), KindData))
	assert.Contains(t, err.Error(), "data error from m")
}
