package pipeline

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/multiview/internal/config"
	"github.com/sells-group/multiview/internal/model"
)

func appConfig() *config.Config {
	cfg := &config.Config{}
	cfg.Models = config.ModelsConfig{
		Analysis:      "a",
		Informative:   "i",
		Contrarian:    "c",
		Complementary: "x",
		Synthesis:     "s",
	}
	cfg.Pipeline = config.PipelineConfig{
		Viewpoints:           []string{"Contrarian", "informative"},
		MaxDocumentChars:     4000,
		PreviewChars:         100,
		FailOnUpstreamOutage: true,
	}
	return cfg
}

func TestNewConfig(t *testing.T) {
	c, err := NewConfig(appConfig())
	require.NoError(t, err)

	assert.Equal(t, "a", c.AnalysisModel)
	assert.Equal(t, "s", c.SynthesisModel)
	assert.Equal(t, []Viewpoint{
		{Type: model.Contrarian, Model: "c"},
		{Type: model.Informative, Model: "i"},
	}, c.Viewpoints)
	assert.True(t, c.FailOnUpstreamOutage)
}

func TestNewConfig_UnknownViewpoint(t *testing.T) {
	cfg := appConfig()
	cfg.Pipeline.Viewpoints = []string{"sarcastic"}

	_, err := NewConfig(cfg)
	assert.Error(t, err)
}

func TestDefaultConfigIsValid(t *testing.T) {
	c := DefaultConfig()
	assert.NoError(t, c.Validate())
	assert.Len(t, c.Viewpoints, 3)
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"no analysis model", func(c *Config) { c.AnalysisModel = "" }},
		{"no synthesis model", func(c *Config) { c.SynthesisModel = "" }},
		{"no viewpoints", func(c *Config) { c.Viewpoints = nil }},
		{"duplicate viewpoint", func(c *Config) { c.Viewpoints[1].Type = model.Informative }},
		{"invalid viewpoint", func(c *Config) { c.Viewpoints[0].Type = model.ViewpointType(9) }},
		{"viewpoint without model", func(c *Config) { c.Viewpoints[2].Model = "" }},
		{"four viewpoints", func(c *Config) {
			c.Viewpoints = append(c.Viewpoints, Viewpoint{Type: model.Informative, Model: "m"})
		}},
		{"zero document cap", func(c *Config) { c.MaxDocumentChars = 0 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := DefaultConfig()
			tt.mutate(&c)
			assert.Error(t, c.Validate())
		})
	}
}
