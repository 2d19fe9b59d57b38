package pipeline

import (
	"context"
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/sells-group/multiview/internal/model"
)

// Live serves runs from a Pipeline that can be replaced at runtime. Runs
// already in flight finish on the Pipeline they started with.
type Live struct {
	cur atomic.Pointer[Pipeline]
}

// NewLive wraps p.
func NewLive(p *Pipeline) *Live {
	l := &Live{}
	l.cur.Store(p)
	return l
}

// Run runs the query on the current Pipeline.
func (l *Live) Run(ctx context.Context, credential, query string, docs []model.Document) (*model.PipelineResponse, error) {
	return l.cur.Load().Run(ctx, credential, query, docs)
}

// Config returns the current configuration.
func (l *Live) Config() Config { return l.cur.Load().Config() }

// Reconfigure validates cfg and swaps in a Pipeline built from it, keeping
// the model client and prompt templates. On error the current Pipeline
// stays in place.
func (l *Live) Reconfigure(cfg Config) error {
	old := l.cur.Load()
	next, err := New(cfg, old.client, old.prompts)
	if err != nil {
		return err
	}
	l.cur.Store(next)
	zap.L().Info("pipeline: reconfigured",
		zap.String("analysis_model", cfg.AnalysisModel),
		zap.String("synthesis_model", cfg.SynthesisModel),
		zap.Int("viewpoints", len(cfg.Viewpoints)),
	)
	return nil
}
