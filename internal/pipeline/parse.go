package pipeline

import (
	"encoding/json"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/sells-group/multiview/internal/model"
	"github.com/sells-group/multiview/internal/prompts"
)

const (
	jsonFence = "```json"
	fence     = "```"

	analysisUnavailable = "Analysis unavailable."
	reportNotFound      = "Verification and comparison report was not found in the response."
	splitFailed         = "Could not split the response into a report and a final answer."
)

// ErrNoJSONObject is returned when no JSON object can be recovered from a
// model's text.
var ErrNoJSONObject = eris.New("pipeline: no JSON object in response")

// ExtractStructured recovers a JSON object from free-form model text. It
// tries a ```json fenced block first, then the outermost brace span of the
// block, then the outermost brace span of the whole text.
func ExtractStructured(raw string) (map[string]any, error) {
	if strings.TrimSpace(raw) == "" {
		return nil, eris.Wrap(ErrNoJSONObject, "pipeline: empty response")
	}

	var candidates []string
	if block, ok := fencedJSON(raw); ok {
		candidates = append(candidates, block)
		if span, ok := braceSpan(block); ok {
			candidates = append(candidates, span)
		}
	}
	if span, ok := braceSpan(raw); ok {
		candidates = append(candidates, span)
	}
	if len(candidates) == 0 {
		return nil, ErrNoJSONObject
	}

	var lastErr error
	for _, c := range candidates {
		obj, err := decodeObject(c)
		if err == nil {
			return obj, nil
		}
		lastErr = err
	}
	return nil, lastErr
}

// fencedJSON returns the text between a case-insensitive ```json marker and
// the next closing fence, or the end of text when the fence is unclosed.
func fencedJSON(raw string) (string, bool) {
	start := strings.Index(strings.ToLower(raw), jsonFence)
	if start < 0 {
		return "", false
	}
	rest := raw[start+len(jsonFence):]
	if end := strings.Index(rest, fence); end >= 0 {
		rest = rest[:end]
	}
	rest = strings.TrimSpace(rest)
	return rest, rest != ""
}

func braceSpan(s string) (string, bool) {
	start := strings.Index(s, "{")
	end := strings.LastIndex(s, "}")
	if start < 0 || end <= start {
		return "", false
	}
	return s[start : end+1], true
}

func decodeObject(s string) (map[string]any, error) {
	var v any
	if err := json.Unmarshal([]byte(s), &v); err != nil {
		return nil, eris.Wrap(err, "pipeline: decode analysis JSON")
	}
	obj, ok := v.(map[string]any)
	if !ok {
		return nil, eris.Wrap(ErrNoJSONObject, "pipeline: analysis JSON is not an object")
	}
	return obj, nil
}

// SplitSections cuts a synthesis response into its report and final answer
// sections. Missing markers yield placeholder text rather than an error.
func SplitSections(raw string) (report, answer string) {
	reportAt := strings.Index(raw, prompts.ReportMarker)
	answerAt := strings.Index(raw, prompts.AnswerMarker)

	switch {
	case reportAt >= 0 && answerAt > reportAt:
		report = strings.TrimSpace(raw[reportAt+len(prompts.ReportMarker) : answerAt])
		answer = strings.TrimSpace(raw[answerAt+len(prompts.AnswerMarker):])
	case answerAt >= 0:
		report = reportNotFound
		answer = strings.TrimSpace(raw[answerAt+len(prompts.AnswerMarker):])
	default:
		report = splitFailed
		answer = raw
	}
	return report, answer
}

// AnalysisSummary returns the analysis_summary field of a structured
// analysis, or a placeholder when it is unavailable.
func AnalysisSummary(a model.AnalysisResult) string {
	if a.ResultStructured == nil {
		return analysisUnavailable
	}
	s, ok := a.ResultStructured["analysis_summary"].(string)
	if !ok || strings.TrimSpace(s) == "" {
		return analysisUnavailable
	}
	return s
}
