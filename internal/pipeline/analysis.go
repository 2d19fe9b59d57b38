package pipeline

import (
	"context"

	"go.uber.org/zap"

	"github.com/sells-group/multiview/internal/model"
	"github.com/sells-group/multiview/internal/prompts"
)

// Analyze runs the analysis stage. It never fails: call and parse errors
// are recorded on the result.
func (p *Pipeline) Analyze(ctx context.Context, credential, query, documentsSummary string) model.AnalysisResult {
	res, _ := p.analyze(ctx, zap.L(), credential, query, documentsSummary)
	return res
}

func (p *Pipeline) analyze(ctx context.Context, log *zap.Logger, credential, query, documentsSummary string) (model.AnalysisResult, callStats) {
	var stats callStats
	res := model.AnalysisResult{Model: p.cfg.AnalysisModel}

	prompt, err := p.prompts.Analysis(prompts.AnalysisData{Query: query, DocumentsSummary: documentsSummary})
	if err != nil {
		res.Error = model.StringPtr(err.Error())
		res.RawResponse = errorPlaceholder(err.Error())
		return res, stats
	}
	res.Prompt = prompt

	raw, err := p.client.Call(ctx, credential, p.cfg.AnalysisModel, prompt)
	stats.record(err)
	if err != nil {
		log.Error("pipeline: analysis call failed", zap.String("model", p.cfg.AnalysisModel), zap.Error(err))
		msg := "analysis call failed: " + err.Error()
		res.Error = model.StringPtr(msg)
		res.RawResponse = errorPlaceholder(msg)
		return res, stats
	}
	res.RawResponse = raw

	obj, err := ExtractStructured(raw)
	if err != nil {
		log.Warn("pipeline: analysis response is not JSON",
			zap.String("model", p.cfg.AnalysisModel),
			zap.String("raw_preview", preview(raw, 200)),
			zap.Error(err),
		)
		res.Error = model.StringPtr("could not parse analysis JSON: " + err.Error())
		return res, stats
	}
	res.ResultStructured = obj
	return res, stats
}
