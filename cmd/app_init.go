package main

import (
	"context"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/multiview/internal/config"
	"github.com/sells-group/multiview/internal/extract"
	"github.com/sells-group/multiview/internal/modelclient"
	"github.com/sells-group/multiview/internal/ocr"
	"github.com/sells-group/multiview/internal/pipeline"
	"github.com/sells-group/multiview/internal/prompts"
	"github.com/sells-group/multiview/internal/resilience"
	anthropicpkg "github.com/sells-group/multiview/pkg/anthropic"
	"github.com/sells-group/multiview/pkg/gemini"
	"github.com/sells-group/multiview/pkg/openrouter"
)

// appEnv holds the clients and services needed by serve and ask.
type appEnv struct {
	Client    *modelclient.Router
	Pipeline  *pipeline.Pipeline
	Extractor *extract.Service
}

// initApp validates the config for mode and builds the model client,
// pipeline and extractor.
func initApp(ctx context.Context, c *config.Config, mode string) (*appEnv, error) {
	if err := c.Validate(mode); err != nil {
		return nil, err
	}

	client, err := initModelClient(ctx, c)
	if err != nil {
		return nil, err
	}

	pcfg, err := pipeline.NewConfig(c)
	if err != nil {
		return nil, err
	}

	set := prompts.Default()
	if c.Pipeline.PromptsFile != "" {
		set, err = prompts.Load(c.Pipeline.PromptsFile)
		if err != nil {
			return nil, err
		}
	}

	p, err := pipeline.New(pcfg, client, set)
	if err != nil {
		return nil, err
	}

	ext, err := initExtractor(c)
	if err != nil {
		return nil, err
	}

	zap.L().Info("pipeline initialized",
		zap.String("analysis_model", pcfg.AnalysisModel),
		zap.Int("viewpoints", len(pcfg.Viewpoints)),
		zap.String("synthesis_model", pcfg.SynthesisModel),
		zap.Bool("anthropic", c.Anthropic.Key != ""),
		zap.Bool("gemini", c.Gemini.Key != ""),
	)

	return &appEnv{Client: client, Pipeline: p, Extractor: ext}, nil
}

// initModelClient builds the routing model client. Anthropic and Gemini
// routes are enabled only when their keys are configured.
func initModelClient(ctx context.Context, c *config.Config) (*modelclient.Router, error) {
	or := openrouter.NewClient(
		openrouter.WithBaseURL(c.OpenRouter.BaseURL),
		openrouter.WithReferer(c.OpenRouter.Referer),
		openrouter.WithTitle(c.OpenRouter.Title),
	)

	var opts []modelclient.Option
	if c.Anthropic.Key != "" {
		var aopts []anthropicpkg.Option
		if c.Anthropic.BaseURL != "" {
			aopts = append(aopts, anthropicpkg.WithBaseURL(c.Anthropic.BaseURL))
		}
		if c.Anthropic.MaxTokens > 0 {
			aopts = append(aopts, anthropicpkg.WithMaxTokens(int64(c.Anthropic.MaxTokens)))
		}
		opts = append(opts, modelclient.WithAnthropic(anthropicpkg.NewClient(c.Anthropic.Key, aopts...)))
	}
	if c.Gemini.Key != "" {
		gc, err := gemini.NewClient(ctx, c.Gemini.Key)
		if err != nil {
			return nil, eris.Wrap(err, "init gemini client")
		}
		opts = append(opts, modelclient.WithGemini(gc))
	}

	return modelclient.New(modelclient.Config{
		Timeout: time.Duration(c.OpenRouter.TimeoutSecs) * time.Second,
		Retry: resilience.PolicyFrom(
			c.Retry.MaxAttempts,
			c.Retry.InitialBackoffMs,
			c.Retry.MaxBackoffMs,
			c.Retry.Multiplier,
			c.Retry.JitterFraction,
		),
		Breaker: resilience.BreakerFrom(c.Circuit.FailureThreshold, c.Circuit.ResetTimeoutSecs),
		RPS:     c.RateLimit.RPS,
		Burst:   c.RateLimit.Burst,
	}, or, opts...), nil
}

// initExtractor builds the file extraction service and its OCR engine.
func initExtractor(c *config.Config) (*extract.Service, error) {
	engine, err := ocr.NewExtractor(c.Extract)
	if err != nil {
		return nil, err
	}
	return extract.New(extract.ConfigFrom(c.Extract), engine)
}
