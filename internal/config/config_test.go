package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func chdirTemp(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	origDir, _ := os.Getwd()
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { os.Chdir(origDir) })
	return dir
}

func TestLoadDefaults(t *testing.T) {
	// Change to temp dir so no config.yaml is found
	chdirTemp(t)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "https://openrouter.ai/api/v1", cfg.OpenRouter.BaseURL)
	assert.Equal(t, "http://localhost:8000", cfg.OpenRouter.Referer)
	assert.Equal(t, "Multiview", cfg.OpenRouter.Title)
	assert.Equal(t, 60, cfg.OpenRouter.TimeoutSecs)
	assert.Equal(t, 4096, cfg.Anthropic.MaxTokens)
	assert.Equal(t, 3, cfg.Retry.MaxAttempts)
	assert.Equal(t, 2000, cfg.Retry.InitialBackoffMs)
	assert.Equal(t, 30000, cfg.Retry.MaxBackoffMs)
	assert.InDelta(t, 2.0, cfg.Retry.Multiplier, 0.001)
	assert.Equal(t, 5, cfg.Circuit.FailureThreshold)
	assert.Equal(t, 30, cfg.Circuit.ResetTimeoutSecs)
	assert.Equal(t, "openchat/openchat-3.5-0106", cfg.Models.Analysis)
	assert.Equal(t, "meta-llama/llama-3-70b-instruct", cfg.Models.Informative)
	assert.Equal(t, "teknium/openhermes-2.5-mistral-7b", cfg.Models.Contrarian)
	assert.Equal(t, "qwen/qwen-2.5-coder-32b-instruct:free", cfg.Models.Complementary)
	assert.Equal(t, "google/gemini-2.5-pro-exp-03-25:free", cfg.Models.Synthesis)
	assert.Equal(t, []string{"informative", "contrarian", "complementary"}, cfg.Pipeline.Viewpoints)
	assert.Equal(t, 4000, cfg.Pipeline.MaxDocumentChars)
	assert.Equal(t, 100, cfg.Pipeline.PreviewChars)
	assert.False(t, cfg.Pipeline.FailOnUpstreamOutage)
	assert.Equal(t, 15, cfg.Extract.MaxBase64MB)
	assert.Equal(t, 10, cfg.Extract.MaxFileMB)
	assert.Equal(t, 4000, cfg.Extract.MaxChars)
	assert.Equal(t, 128, cfg.Extract.CacheSize)
	assert.Equal(t, "local", cfg.Extract.OCRProvider)
	assert.Equal(t, "pdftotext", cfg.Extract.PdfToTextPath)
	assert.Equal(t, "tesseract", cfg.Extract.TesseractPath)
	assert.Equal(t, "qwen/qwen3-coder:free", cfg.Credentials.CheckModel)
	assert.Equal(t, 40, cfg.Credentials.MinKeyLength)
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, []string{"http://localhost:5173", "http://127.0.0.1:5173"}, cfg.Server.AllowedOrigins)
	assert.Empty(t, cfg.Server.AdminToken)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "json", cfg.Log.Format)
}

func TestLoadFromYAML(t *testing.T) {
	dir := chdirTemp(t)

	yaml := `
models:
  analysis: anthropic:claude-haiku-4-5-20251001
  synthesis: gemini:gemini-2.5-pro
pipeline:
  viewpoints: [informative, contrarian]
  max_document_chars: 2000
  fail_on_upstream_outage: true
retry:
  max_attempts: 2
log:
  level: debug
  format: console
server:
  port: 9090
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(yaml), 0644))

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "anthropic:claude-haiku-4-5-20251001", cfg.Models.Analysis)
	assert.Equal(t, "gemini:gemini-2.5-pro", cfg.Models.Synthesis)
	assert.Equal(t, "meta-llama/llama-3-70b-instruct", cfg.Models.Informative)
	assert.Equal(t, []string{"informative", "contrarian"}, cfg.Pipeline.Viewpoints)
	assert.Equal(t, 2000, cfg.Pipeline.MaxDocumentChars)
	assert.True(t, cfg.Pipeline.FailOnUpstreamOutage)
	assert.Equal(t, 2, cfg.Retry.MaxAttempts)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "console", cfg.Log.Format)
	assert.Equal(t, 9090, cfg.Server.Port)
}

func TestLoadInvalidYAML(t *testing.T) {
	dir := chdirTemp(t)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte("models: [unclosed"), 0644))

	_, err := Load()
	assert.Error(t, err)
}

func TestLoadEnvOverridesFile(t *testing.T) {
	dir := chdirTemp(t)

	yaml := `
models:
  analysis: from-file
log:
  level: debug
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(yaml), 0644))

	t.Setenv("MULTIVIEW_MODELS_ANALYSIS", "from-env")
	t.Setenv("MULTIVIEW_LOG_LEVEL", "warn")

	cfg, err := Load()
	require.NoError(t, err)

	// Env overrides file
	assert.Equal(t, "from-env", cfg.Models.Analysis)
	assert.Equal(t, "warn", cfg.Log.Level)
}

func TestLoadEnvOverridesDefaults(t *testing.T) {
	chdirTemp(t)

	t.Setenv("MULTIVIEW_SERVER_PORT", "3000")
	t.Setenv("MULTIVIEW_RETRY_MAX_ATTEMPTS", "5")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 3000, cfg.Server.Port)
	assert.Equal(t, 5, cfg.Retry.MaxAttempts)
}

func TestLoadConventionalProviderEnv(t *testing.T) {
	chdirTemp(t)

	t.Setenv("OPENROUTER_API_KEY", "sk-or-test")
	t.Setenv("APP_URL", "https://multiview.example")
	t.Setenv("APP_TITLE", "Multiview Test")
	t.Setenv("ANTHROPIC_API_KEY", "sk-ant-test")
	t.Setenv("GEMINI_API_KEY", "gm-test")
	t.Setenv("MISTRAL_API_KEY", "ms-test")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "sk-or-test", cfg.OpenRouter.Key)
	assert.Equal(t, "https://multiview.example", cfg.OpenRouter.Referer)
	assert.Equal(t, "Multiview Test", cfg.OpenRouter.Title)
	assert.Equal(t, "sk-ant-test", cfg.Anthropic.Key)
	assert.Equal(t, "gm-test", cfg.Gemini.Key)
	assert.Equal(t, "ms-test", cfg.Extract.MistralKey)
}

func TestLoadPrefixedKeyWins(t *testing.T) {
	chdirTemp(t)

	t.Setenv("MULTIVIEW_OPENROUTER_KEY", "prefixed")
	t.Setenv("OPENROUTER_API_KEY", "conventional")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "prefixed", cfg.OpenRouter.Key)
}

func TestLoadDotEnv(t *testing.T) {
	dir := chdirTemp(t)
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env"), []byte("GEMINI_API_KEY=from-dotenv\n"), 0644))
	t.Cleanup(func() { os.Unsetenv("GEMINI_API_KEY") })

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "from-dotenv", cfg.Gemini.Key)
}

func TestInitLoggerConsole(t *testing.T) {
	err := InitLogger(LogConfig{Level: "debug", Format: "console"})
	require.NoError(t, err)
	assert.NotNil(t, zap.L())
}

func TestInitLoggerJSON(t *testing.T) {
	err := InitLogger(LogConfig{Level: "info", Format: "json"})
	require.NoError(t, err)
	assert.NotNil(t, zap.L())
}

func TestInitLoggerInvalidLevel(t *testing.T) {
	err := InitLogger(LogConfig{Level: "invalid", Format: "json"})
	assert.Error(t, err)
}

// validDefaults returns a Config with all defaults populated for validation tests.
func validDefaults() *Config {
	cfg := &Config{}
	cfg.OpenRouter.TimeoutSecs = 60
	cfg.Retry.MaxAttempts = 3
	cfg.Models.Analysis = "openchat/openchat-3.5-0106"
	cfg.Models.Synthesis = "google/gemini-2.5-pro-exp-03-25:free"
	cfg.Pipeline.Viewpoints = []string{"informative", "contrarian", "complementary"}
	cfg.Extract.MaxBase64MB = 15
	cfg.Extract.MaxFileMB = 10
	cfg.Extract.OCRProvider = "local"
	cfg.Server.Port = 8080
	return cfg
}

func TestValidateServe_Valid(t *testing.T) {
	assert.NoError(t, validDefaults().Validate("serve"))
}

func TestValidateServe_InvalidPort(t *testing.T) {
	cfg := validDefaults()
	cfg.Server.Port = 0

	err := cfg.Validate("serve")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "server.port must be > 0")
}

func TestValidateAsk_MissingModels(t *testing.T) {
	cfg := validDefaults()
	cfg.Models.Analysis = ""
	cfg.Models.Synthesis = ""

	err := cfg.Validate("ask")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "models.analysis is required")
	assert.Contains(t, err.Error(), "models.synthesis is required")
}

func TestValidateViewpointCount(t *testing.T) {
	cfg := validDefaults()
	cfg.Pipeline.Viewpoints = nil

	err := cfg.Validate("models")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "pipeline.viewpoints")

	cfg.Pipeline.Viewpoints = []string{"informative", "contrarian", "complementary", "informative"}
	assert.Error(t, cfg.Validate("models"))
}

func TestValidateExtract_MistralNeedsKey(t *testing.T) {
	cfg := validDefaults()
	cfg.Extract.OCRProvider = "mistral"

	err := cfg.Validate("extract")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "extract.mistral_key is required")

	cfg.Extract.MistralKey = "ms-key"
	assert.NoError(t, cfg.Validate("extract"))
}

func TestValidateExtract_UnknownProvider(t *testing.T) {
	cfg := validDefaults()
	cfg.Extract.OCRProvider = "textract"

	err := cfg.Validate("extract")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "not supported")
}

func TestValidateExtractIgnoresModels(t *testing.T) {
	cfg := validDefaults()
	cfg.Models.Analysis = ""
	assert.NoError(t, cfg.Validate("extract"))
}

func TestValidateUnknownMode(t *testing.T) {
	cfg := validDefaults()
	err := cfg.Validate("unknown")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "unknown mode")
}
