// Package modelclient sends one prompt to a named model and returns its
// text, retrying transient failures and classifying the rest.
package modelclient

import (
	"context"
	"math"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/sells-group/multiview/internal/resilience"
	"github.com/sells-group/multiview/pkg/anthropic"
	"github.com/sells-group/multiview/pkg/gemini"
	"github.com/sells-group/multiview/pkg/openrouter"
)

// Client calls a model with a fully rendered prompt.
type Client interface {
	Call(ctx context.Context, credential, model, prompt string) (string, error)
}

// Config bounds every call made through a Router.
type Config struct {
	// Timeout applies to each attempt. Default: 60s.
	Timeout time.Duration
	Retry   resilience.RetryPolicy
	Breaker resilience.BreakerConfig
	// RPS limits outbound attempts across all models. Zero is unlimited.
	RPS   float64
	Burst int
}

// Option attaches optional providers to a Router.
type Option func(*Router)

// WithAnthropic serves "anthropic:" routes.
func WithAnthropic(c anthropic.Client) Option {
	return func(r *Router) { r.anthropic = c }
}

// WithGemini serves "gemini:" routes.
func WithGemini(c gemini.Client) Option {
	return func(r *Router) { r.gemini = c }
}

// Router is the Client implementation. OpenRouter calls use the caller's
// credential; other providers use the key they were built with.
type Router struct {
	cfg        Config
	openrouter openrouter.Client
	anthropic  anthropic.Client
	gemini     gemini.Client
	limiter    *rate.Limiter
	breakers   *resilience.Breakers
}

// New creates a Router over an OpenRouter client.
func New(cfg Config, or openrouter.Client, opts ...Option) *Router {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 60 * time.Second
	}

	limit := rate.Inf
	if cfg.RPS > 0 {
		limit = rate.Limit(cfg.RPS)
	}
	burst := cfg.Burst
	if burst <= 0 {
		burst = int(math.Max(1, math.Ceil(cfg.RPS)))
	}

	r := &Router{
		cfg:        cfg,
		openrouter: or,
		limiter:    rate.NewLimiter(limit, burst),
		breakers:   resilience.NewBreakers(cfg.Breaker),
	}
	for _, o := range opts {
		o(r)
	}
	return r
}

// Call sends prompt to model. Failures are always *Error.
func (r *Router) Call(ctx context.Context, credential, model, prompt string) (string, error) {
	if credential == "" {
		return "", classify(model, 0, ErrMissingCredential)
	}

	route := ParseRoute(model)
	if !r.configured(route.Provider) {
		return "", classify(model, 0, eris.Wrapf(ErrProviderNotConfigured, "route %s", route))
	}

	log := zap.L().With(zap.String("model", model))
	start := time.Now()

	policy := r.cfg.Retry
	policy.Retryable = retryable
	if policy.OnRetry == nil {
		policy.OnRetry = resilience.RetryLogger(model)
	}

	attempts := 0
	text, err := resilience.Guard(ctx, r.breakers.Get(model), func(ctx context.Context) (string, error) {
		out, n, err := resilience.Retry(ctx, policy, func(ctx context.Context, _ int) (string, error) {
			return r.attempt(ctx, route, credential, prompt)
		})
		attempts = n
		return out, err
	})
	if err != nil {
		e := classify(model, attempts, err)
		log.Warn("modelclient: call failed",
			zap.String("kind", string(e.Kind)),
			zap.Int("status", e.StatusCode),
			zap.Int("attempts", attempts),
			zap.Int64("duration_ms", time.Since(start).Milliseconds()),
			zap.Error(err),
		)
		return "", e
	}

	log.Debug("modelclient: call complete",
		zap.Int("attempts", attempts),
		zap.Int("response_chars", len(text)),
		zap.Int64("duration_ms", time.Since(start).Milliseconds()),
	)
	return text, nil
}

// Breakers reports the state of every breaker used so far.
func (r *Router) Breakers() []resilience.BreakerStatus {
	return r.breakers.Snapshot()
}

func (r *Router) configured(p Provider) bool {
	switch p {
	case ProviderAnthropic:
		return r.anthropic != nil
	case ProviderGemini:
		return r.gemini != nil
	default:
		return r.openrouter != nil
	}
}

// attempt makes exactly one provider call bounded by the per-attempt timeout.
func (r *Router) attempt(ctx context.Context, route Route, credential, prompt string) (string, error) {
	if err := r.limiter.Wait(ctx); err != nil {
		return "", eris.Wrap(err, "modelclient: rate limit wait")
	}

	actx, cancel := context.WithTimeout(ctx, r.cfg.Timeout)
	defer cancel()

	switch route.Provider {
	case ProviderAnthropic:
		resp, err := r.anthropic.CreateMessage(actx, anthropic.MessageRequest{
			Model:    route.Model,
			Messages: []anthropic.Message{{Role: "user", Content: prompt}},
		})
		if err != nil {
			return "", err
		}
		if len(resp.Content) == 0 {
			return "", ErrEmptyCompletion
		}
		return resp.Text(), nil

	case ProviderGemini:
		return r.gemini.GenerateText(actx, route.Model, prompt)

	default:
		resp, err := r.openrouter.ChatCompletion(actx, credential, openrouter.ChatCompletionRequest{
			Model:    route.Model,
			Messages: []openrouter.Message{openrouter.UserMessage(prompt)},
		})
		if err != nil {
			return "", err
		}
		return resp.FirstContent()
	}
}
