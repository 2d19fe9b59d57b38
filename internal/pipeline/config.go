package pipeline

import (
	"github.com/rotisserie/eris"

	"github.com/sells-group/multiview/internal/config"
	"github.com/sells-group/multiview/internal/model"
)

// Viewpoint binds a viewpoint to the model that answers it.
type Viewpoint struct {
	Type  model.ViewpointType `json:"type"`
	Model string              `json:"model"`
}

// Config is everything a Pipeline needs to know about models and limits.
type Config struct {
	AnalysisModel  string
	Viewpoints     []Viewpoint
	SynthesisModel string

	// MaxDocumentChars caps each document's text in perspective prompts.
	MaxDocumentChars int
	// PreviewChars caps each document's preview in the analysis prompt.
	PreviewChars int

	// FailOnUpstreamOutage makes Run return an UpstreamError when no model
	// call in the run succeeded.
	FailOnUpstreamOutage bool
}

// DefaultConfig returns the three-viewpoint configuration.
func DefaultConfig() Config {
	return Config{
		AnalysisModel: "openchat/openchat-3.5-0106",
		Viewpoints: []Viewpoint{
			{Type: model.Informative, Model: "meta-llama/llama-3-70b-instruct"},
			{Type: model.Contrarian, Model: "teknium/openhermes-2.5-mistral-7b"},
			{Type: model.Complementary, Model: "qwen/qwen-2.5-coder-32b-instruct:free"},
		},
		SynthesisModel:   "google/gemini-2.5-pro-exp-03-25:free",
		MaxDocumentChars: 4000,
		PreviewChars:     100,
	}
}

// Validate checks that the configuration names 1 to 3 distinct viewpoints
// and a model for every role.
func (c Config) Validate() error {
	if c.AnalysisModel == "" {
		return eris.New("pipeline: analysis model is required")
	}
	if c.SynthesisModel == "" {
		return eris.New("pipeline: synthesis model is required")
	}
	if n := len(c.Viewpoints); n < 1 || n > len(model.AllViewpoints()) {
		return eris.Errorf("pipeline: expected 1 to %d viewpoints, got %d", len(model.AllViewpoints()), n)
	}
	seen := make(map[model.ViewpointType]bool, len(c.Viewpoints))
	for _, v := range c.Viewpoints {
		if !v.Type.Valid() {
			return eris.Errorf("pipeline: invalid viewpoint %d", int(v.Type))
		}
		if seen[v.Type] {
			return eris.Errorf("pipeline: viewpoint %s configured twice", v.Type)
		}
		seen[v.Type] = true
		if v.Model == "" {
			return eris.Errorf("pipeline: viewpoint %s has no model", v.Type)
		}
	}
	if c.MaxDocumentChars <= 0 {
		return eris.New("pipeline: max document chars must be > 0")
	}
	if c.PreviewChars <= 0 {
		return eris.New("pipeline: preview chars must be > 0")
	}
	return nil
}

// NewConfig converts the application configuration into a pipeline Config.
func NewConfig(cfg *config.Config) (Config, error) {
	c := Config{
		AnalysisModel:        cfg.Models.Analysis,
		SynthesisModel:       cfg.Models.Synthesis,
		MaxDocumentChars:     cfg.Pipeline.MaxDocumentChars,
		PreviewChars:         cfg.Pipeline.PreviewChars,
		FailOnUpstreamOutage: cfg.Pipeline.FailOnUpstreamOutage,
	}
	for _, name := range cfg.Pipeline.Viewpoints {
		vt, err := model.ParseViewpoint(name)
		if err != nil {
			return Config{}, eris.Wrap(err, "pipeline: viewpoints")
		}
		c.Viewpoints = append(c.Viewpoints, Viewpoint{Type: vt, Model: viewpointModel(cfg.Models, vt)})
	}
	if err := c.Validate(); err != nil {
		return Config{}, err
	}
	return c, nil
}

func viewpointModel(m config.ModelsConfig, vt model.ViewpointType) string {
	switch vt {
	case model.Informative:
		return m.Informative
	case model.Contrarian:
		return m.Contrarian
	case model.Complementary:
		return m.Complementary
	default:
		return ""
	}
}
