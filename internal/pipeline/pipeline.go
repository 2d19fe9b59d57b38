// Package pipeline runs a query through analysis, concurrent viewpoint
// perspectives and a final verification and synthesis call.
package pipeline

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/multiview/internal/model"
	"github.com/sells-group/multiview/internal/modelclient"
	"github.com/sells-group/multiview/internal/prompts"
)

var (
	// ErrMissingCredential is returned by Run before any call when no
	// credential is supplied.
	ErrMissingCredential = eris.New("pipeline: credential is required")
	// ErrEmptyQuery is returned by Run when the query is blank.
	ErrEmptyQuery = eris.New("pipeline: query is required")
)

// UpstreamError reports a run in which every model call failed. Run returns
// it together with the fully assembled response.
type UpstreamError struct {
	Calls int
	Err   error
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("pipeline: all %d model call(s) failed: %v", e.Calls, e.Err)
}

func (e *UpstreamError) Unwrap() error { return e.Err }

// Pipeline orchestrates the three stages of a run.
type Pipeline struct {
	cfg     Config
	client  modelclient.Client
	prompts *prompts.Set
}

// New creates a Pipeline. A nil prompt set uses the built-in templates.
func New(cfg Config, client modelclient.Client, set *prompts.Set) (*Pipeline, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if client == nil {
		return nil, eris.New("pipeline: model client is required")
	}
	if set == nil {
		set = prompts.Default()
	}
	return &Pipeline{cfg: cfg, client: client, prompts: set}, nil
}

// Config returns the pipeline's configuration.
func (p *Pipeline) Config() Config { return p.cfg }

// callStats counts model calls made by a stage.
type callStats struct {
	calls     int
	succeeded int
	firstErr  error
}

func (s *callStats) add(o callStats) {
	s.calls += o.calls
	s.succeeded += o.succeeded
	if s.firstErr == nil {
		s.firstErr = o.firstErr
	}
}

func (s *callStats) record(err error) {
	s.calls++
	if err == nil {
		s.succeeded++
		return
	}
	if s.firstErr == nil {
		s.firstErr = err
	}
}

// Run executes analysis, perspectives and synthesis for one query. Stage
// failures are recorded in the response; only a missing credential or an
// empty query stop the run, and an UpstreamError is returned alongside the
// response when FailOnUpstreamOutage is set and no call succeeded.
func (p *Pipeline) Run(ctx context.Context, credential, query string, docs []model.Document) (*model.PipelineResponse, error) {
	if strings.TrimSpace(credential) == "" {
		return nil, ErrMissingCredential
	}
	if strings.TrimSpace(query) == "" {
		return nil, ErrEmptyQuery
	}

	start := time.Now().UTC()
	runID := uuid.NewString()
	log := zap.L().With(zap.String("run_id", runID), zap.String("query", preview(query, 50)))
	log.Info("pipeline: starting run", zap.Int("documents", len(docs)))

	resp := &model.PipelineResponse{
		Query:     query,
		Timestamp: start.Format(time.RFC3339),
		RunID:     runID,
	}

	// Stage tracking helper.
	trackStage := func(name string, fn func() *string) {
		stageStart := time.Now()
		errMsg := fn()
		duration := time.Since(stageStart).Milliseconds()

		sr := model.StageResult{Name: name, Status: model.StageStatusComplete, Duration: duration}
		if errMsg != nil {
			sr.Status = model.StageStatusDegraded
			sr.Error = *errMsg
			log.Warn("pipeline: stage degraded",
				zap.String("stage", name),
				zap.Int64("duration_ms", duration),
				zap.String("error", *errMsg),
			)
		} else {
			log.Info("pipeline: stage complete",
				zap.String("stage", name),
				zap.Int64("duration_ms", duration),
			)
		}
		resp.Stages = append(resp.Stages, sr)
	}

	docsSummary := BuildDocumentsSummary(docs, p.cfg.PreviewChars)
	docsContent := BuildDocumentsContent(docs, p.cfg.MaxDocumentChars)

	var stats callStats

	trackStage("1_analysis", func() *string {
		var s callStats
		resp.Analysis, s = p.analyze(ctx, log, credential, query, docsSummary)
		stats.add(s)
		return resp.Analysis.Error
	})

	trackStage("2_perspectives", func() *string {
		var s callStats
		resp.Perspectives, s = p.generatePerspectives(ctx, log, credential, query, resp.Analysis, docsContent)
		stats.add(s)
		return perspectivesError(resp.Perspectives)
	})

	trackStage("3_verification_synthesis", func() *string {
		var s callStats
		resp.VerificationSynthesis, s = p.verifyAndSynthesize(ctx, log, credential, query, resp.Analysis, resp.Perspectives)
		stats.add(s)
		return resp.VerificationSynthesis.Error
	})

	log.Info("pipeline: run complete",
		zap.Int64("duration_ms", time.Since(start).Milliseconds()),
		zap.Int("calls", stats.calls),
		zap.Int("calls_succeeded", stats.succeeded),
	)

	if p.cfg.FailOnUpstreamOutage && stats.calls > 0 && stats.succeeded == 0 {
		return resp, &UpstreamError{Calls: stats.calls, Err: stats.firstErr}
	}
	return resp, nil
}

func perspectivesError(ps []model.PerspectiveResult) *string {
	var failed []string
	for _, p := range ps {
		if p.Failed() {
			failed = append(failed, p.Type.String())
		}
	}
	if len(failed) == 0 {
		return nil
	}
	return model.StringPtr("failed perspectives: " + strings.Join(failed, ", "))
}

func errorPlaceholder(msg string) string {
	return "ERROR: " + msg
}

// preview returns at most n runes of s for log fields.
func preview(s string, n int) string {
	out, cut := truncateRunes(s, n)
	if cut {
		out += "..."
	}
	return out
}
