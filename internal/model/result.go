package model

// AnalysisResult is the outcome of the analysis stage. ResultStructured is
// set only when the model's text held a decodable JSON object.
type AnalysisResult struct {
	Model            string         `json:"model"`
	Prompt           string         `json:"prompt"`
	ResultStructured map[string]any `json:"result_json"`
	RawResponse      string         `json:"raw_response"`
	Error            *string        `json:"error"`
}

// PerspectiveResult is one viewpoint's answer. Exactly one exists per
// configured viewpoint in a run.
type PerspectiveResult struct {
	Type     ViewpointType `json:"type"`
	Model    string        `json:"model"`
	Prompt   string        `json:"prompt"`
	Response string        `json:"response"`
	Error    *string       `json:"error"`
}

// Failed reports whether the perspective carries an error.
func (p PerspectiveResult) Failed() bool { return p.Error != nil }

// VerificationSynthesisResult is the outcome of the final stage. The
// report and answer are sections of RawResponse.
type VerificationSynthesisResult struct {
	Model              string  `json:"model"`
	Prompt             string  `json:"prompt"`
	VerificationReport *string `json:"verification_comparison_report"`
	FinalAnswer        *string `json:"final_synthesized_answer"`
	RawResponse        string  `json:"raw_response"`
	Error              *string `json:"error"`
}

// PipelineResponse is the assembled output of one pipeline run.
type PipelineResponse struct {
	Query                 string                      `json:"query"`
	Timestamp             string                      `json:"timestamp"`
	Analysis              AnalysisResult              `json:"analysis"`
	Perspectives          []PerspectiveResult         `json:"perspectives"`
	VerificationSynthesis VerificationSynthesisResult `json:"verification_synthesis"`

	RunID  string        `json:"run_id,omitempty"`
	Stages []StageResult `json:"stages,omitempty"`
}

// StageStatus is how a stage ended.
type StageStatus string

const (
	StageStatusComplete StageStatus = "complete"
	StageStatusDegraded StageStatus = "degraded"
)

// StageResult is timing and outcome for one stage of a run.
type StageResult struct {
	Name     string      `json:"name"`
	Status   StageStatus `json:"status"`
	Duration int64       `json:"duration_ms"`
	Error    string      `json:"error,omitempty"`
}

// StringPtr returns a pointer to s.
func StringPtr(s string) *string { return &s }
