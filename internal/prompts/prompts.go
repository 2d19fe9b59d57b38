// Package prompts renders the analysis, viewpoint and synthesis prompts.
package prompts

import (
	"bytes"
	"os"
	"text/template"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"

	"github.com/sells-group/multiview/internal/model"
)

// AnalysisData fills the analysis template.
type AnalysisData struct {
	Query            string
	DocumentsSummary string
}

// ViewpointData fills a viewpoint template.
type ViewpointData struct {
	Model            string
	Query            string
	DocumentsContent string
	AnalysisSummary  string
}

// SynthesisPerspective is one perspective as shown to the synthesis model.
type SynthesisPerspective struct {
	Number   int
	Type     string
	Model    string
	Response string
}

// SynthesisData fills the synthesis template.
type SynthesisData struct {
	Query           string
	AnalysisSummary string
	Perspectives    []SynthesisPerspective
}

// Set holds parsed templates for every prompt.
type Set struct {
	analysis   *template.Template
	viewpoints map[model.ViewpointType]*template.Template
	synthesis  *template.Template
}

// Overrides replaces built-in templates. Empty fields keep the built-in.
type Overrides struct {
	Analysis      string `yaml:"analysis"`
	Informative   string `yaml:"informative"`
	Contrarian    string `yaml:"contrarian"`
	Complementary string `yaml:"complementary"`
	Synthesis     string `yaml:"synthesis"`
}

func (o Overrides) viewpoint(v model.ViewpointType) string {
	switch v {
	case model.Informative:
		return o.Informative
	case model.Contrarian:
		return o.Contrarian
	case model.Complementary:
		return o.Complementary
	default:
		return ""
	}
}

// Default returns the built-in templates.
func Default() *Set {
	s, err := New(Overrides{})
	if err != nil {
		panic(err)
	}
	return s
}

// New parses the built-in templates with o applied on top.
func New(o Overrides) (*Set, error) {
	s := &Set{viewpoints: make(map[model.ViewpointType]*template.Template)}

	var err error
	if s.analysis, err = parse("analysis", pick(o.Analysis, analysisTemplate)); err != nil {
		return nil, err
	}
	for _, v := range model.AllViewpoints() {
		t, err := parse(v.String(), pick(o.viewpoint(v), builtinViewpoint(v)))
		if err != nil {
			return nil, err
		}
		s.viewpoints[v] = t
	}
	if s.synthesis, err = parse("synthesis", pick(o.Synthesis, synthesisTemplate)); err != nil {
		return nil, err
	}
	if err := s.check(); err != nil {
		return nil, err
	}
	return s, nil
}

// check executes every template once so that unknown fields fail at load
// time instead of mid-run.
func (s *Set) check() error {
	if _, err := s.Analysis(AnalysisData{}); err != nil {
		return err
	}
	for v := range s.viewpoints {
		if _, err := s.Viewpoint(v, ViewpointData{}); err != nil {
			return err
		}
	}
	_, err := s.Synthesis(SynthesisData{Perspectives: []SynthesisPerspective{{Number: 1}}})
	return err
}

// Load reads overrides from a YAML file with a top-level "prompts" key.
// An empty path returns the built-in set.
func Load(path string) (*Set, error) {
	if path == "" {
		return Default(), nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "prompts: read %s", path)
	}

	var wrapper struct {
		Prompts Overrides `yaml:"prompts"`
	}
	if err := yaml.Unmarshal(data, &wrapper); err != nil {
		return nil, eris.Wrapf(err, "prompts: parse %s", path)
	}
	return New(wrapper.Prompts)
}

// Analysis renders the analysis prompt.
func (s *Set) Analysis(d AnalysisData) (string, error) {
	return render(s.analysis, d)
}

// Viewpoint renders the prompt for viewpoint v.
func (s *Set) Viewpoint(v model.ViewpointType, d ViewpointData) (string, error) {
	t, ok := s.viewpoints[v]
	if !ok {
		return "", eris.Errorf("prompts: no template for viewpoint %s", v)
	}
	return render(t, d)
}

// Synthesis renders the verification and synthesis prompt.
func (s *Set) Synthesis(d SynthesisData) (string, error) {
	return render(s.synthesis, d)
}

func pick(override, builtin string) string {
	if override != "" {
		return override
	}
	return builtin
}

func parse(name, text string) (*template.Template, error) {
	t, err := template.New(name).Option("missingkey=error").Parse(text)
	if err != nil {
		return nil, eris.Wrapf(err, "prompts: parse %s template", name)
	}
	return t, nil
}

func render(t *template.Template, data any) (string, error) {
	var buf bytes.Buffer
	if err := t.Execute(&buf, data); err != nil {
		return "", eris.Wrapf(err, "prompts: render %s", t.Name())
	}
	return buf.String(), nil
}
