package pipeline

import (
	"context"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/multiview/internal/model"
	"github.com/sells-group/multiview/internal/prompts"
)

// Reasons synthesis is skipped without a model call.
var (
	ErrIncompletePerspectives = eris.New("pipeline: incomplete perspectives, skipping verification and synthesis")
	ErrMissingViewpoint       = eris.New("pipeline: missing viewpoint type")
	ErrUpstreamPerspective    = eris.New("pipeline: a perspective carries an error, skipping verification and synthesis")
)

// VerifyAndSynthesize merges the perspectives into one answer. When the
// perspectives are incomplete or failed, no call is made and the reason is
// recorded on the result.
func (p *Pipeline) VerifyAndSynthesize(ctx context.Context, credential, query string, analysis model.AnalysisResult, perspectives []model.PerspectiveResult) model.VerificationSynthesisResult {
	res, _ := p.verifyAndSynthesize(ctx, zap.L(), credential, query, analysis, perspectives)
	return res
}

func (p *Pipeline) verifyAndSynthesize(ctx context.Context, log *zap.Logger, credential, query string, analysis model.AnalysisResult, perspectives []model.PerspectiveResult) (model.VerificationSynthesisResult, callStats) {
	var stats callStats
	res := model.VerificationSynthesisResult{Model: p.cfg.SynthesisModel}

	ordered, err := p.checkPerspectives(perspectives)
	if err != nil {
		log.Warn("pipeline: skipping verification and synthesis", zap.Error(err))
		res.Error = model.StringPtr(err.Error())
		res.RawResponse = errorPlaceholder(err.Error())
		return res, stats
	}

	data := prompts.SynthesisData{
		Query:           query,
		AnalysisSummary: AnalysisSummary(analysis),
	}
	for i, pr := range ordered {
		data.Perspectives = append(data.Perspectives, prompts.SynthesisPerspective{
			Number:   i + 1,
			Type:     pr.Type.String(),
			Model:    pr.Model,
			Response: pr.Response,
		})
	}

	prompt, err := p.prompts.Synthesis(data)
	if err != nil {
		res.Error = model.StringPtr(err.Error())
		res.RawResponse = errorPlaceholder(err.Error())
		return res, stats
	}
	res.Prompt = prompt

	raw, err := p.client.Call(ctx, credential, p.cfg.SynthesisModel, prompt)
	stats.record(err)
	if err != nil {
		log.Error("pipeline: synthesis call failed", zap.String("model", p.cfg.SynthesisModel), zap.Error(err))
		msg := "verification and synthesis call failed: " + err.Error()
		res.Error = model.StringPtr(msg)
		res.RawResponse = errorPlaceholder(msg)
		return res, stats
	}
	res.RawResponse = raw

	report, answer := SplitSections(raw)
	if report == splitFailed {
		log.Warn("pipeline: synthesis response has no section markers", zap.String("model", p.cfg.SynthesisModel))
	}
	res.VerificationReport = &report
	res.FinalAnswer = &answer
	return res, stats
}

// checkPerspectives returns the perspectives in configured viewpoint order,
// or the first reason synthesis cannot run over them.
func (p *Pipeline) checkPerspectives(perspectives []model.PerspectiveResult) ([]model.PerspectiveResult, error) {
	if len(perspectives) < len(p.cfg.Viewpoints) {
		return nil, eris.Wrapf(ErrIncompletePerspectives, "pipeline: got %d of %d perspectives", len(perspectives), len(p.cfg.Viewpoints))
	}

	byType := make(map[model.ViewpointType]model.PerspectiveResult, len(perspectives))
	for _, pr := range perspectives {
		if _, dup := byType[pr.Type]; !dup {
			byType[pr.Type] = pr
		}
	}

	ordered := make([]model.PerspectiveResult, 0, len(p.cfg.Viewpoints))
	for _, vp := range p.cfg.Viewpoints {
		pr, ok := byType[vp.Type]
		if !ok {
			return nil, eris.Wrapf(ErrMissingViewpoint, "pipeline: no %s perspective", vp.Type)
		}
		ordered = append(ordered, pr)
	}

	for _, pr := range perspectives {
		if pr.Failed() {
			return nil, eris.Wrapf(ErrUpstreamPerspective, "pipeline: %s perspective failed", pr.Type)
		}
	}
	return ordered, nil
}
