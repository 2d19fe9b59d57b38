package pipeline

import (
	"context"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/multiview/internal/model"
	"github.com/sells-group/multiview/internal/prompts"
)

// GeneratePerspectives asks every configured viewpoint model concurrently.
// It returns one result per viewpoint in configuration order; a failed call
// is recorded on its own result and does not affect the others.
func (p *Pipeline) GeneratePerspectives(ctx context.Context, credential, query string, analysis model.AnalysisResult, documentsContent string) []model.PerspectiveResult {
	res, _ := p.generatePerspectives(ctx, zap.L(), credential, query, analysis, documentsContent)
	return res
}

func (p *Pipeline) generatePerspectives(ctx context.Context, log *zap.Logger, credential, query string, analysis model.AnalysisResult, documentsContent string) ([]model.PerspectiveResult, callStats) {
	summary := AnalysisSummary(analysis)
	results := make([]model.PerspectiveResult, len(p.cfg.Viewpoints))
	called := make([]bool, len(p.cfg.Viewpoints))
	callErrs := make([]error, len(p.cfg.Viewpoints))

	var g errgroup.Group
	for i, vp := range p.cfg.Viewpoints {
		g.Go(func() error {
			results[i], called[i], callErrs[i] = p.perspective(ctx, log, credential, vp, prompts.ViewpointData{
				Model:            vp.Model,
				Query:            query,
				DocumentsContent: documentsContent,
				AnalysisSummary:  summary,
			})
			return nil
		})
	}
	_ = g.Wait()

	var stats callStats
	for i := range results {
		if called[i] {
			stats.record(callErrs[i])
		}
	}
	return results, stats
}

// perspective runs one viewpoint. called reports whether a model call was
// made and callErr is its failure.
func (p *Pipeline) perspective(ctx context.Context, log *zap.Logger, credential string, vp Viewpoint, data prompts.ViewpointData) (res model.PerspectiveResult, called bool, callErr error) {
	res = model.PerspectiveResult{Type: vp.Type, Model: vp.Model}

	prompt, err := p.prompts.Viewpoint(vp.Type, data)
	if err != nil {
		res.Error = model.StringPtr(err.Error())
		res.Response = errorPlaceholder(err.Error())
		return res, false, nil
	}
	res.Prompt = prompt

	start := time.Now()
	text, err := p.client.Call(ctx, credential, vp.Model, prompt)
	if err != nil {
		log.Error("pipeline: perspective call failed",
			zap.String("viewpoint", vp.Type.String()),
			zap.String("model", vp.Model),
			zap.Error(err),
		)
		res.Error = model.StringPtr(err.Error())
		res.Response = errorPlaceholder(err.Error())
		return res, true, err
	}

	log.Debug("pipeline: perspective complete",
		zap.String("viewpoint", vp.Type.String()),
		zap.String("model", vp.Model),
		zap.Int64("duration_ms", time.Since(start).Milliseconds()),
	)
	res.Response = text
	return res, true, nil
}
