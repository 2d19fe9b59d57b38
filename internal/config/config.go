package config

import (
	"fmt"
	"strings"

	"github.com/joho/godotenv"
	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	OpenRouter  OpenRouterConfig  `yaml:"openrouter" mapstructure:"openrouter"`
	Anthropic   AnthropicConfig   `yaml:"anthropic" mapstructure:"anthropic"`
	Gemini      GeminiConfig      `yaml:"gemini" mapstructure:"gemini"`
	Retry       RetryConfig       `yaml:"retry" mapstructure:"retry"`
	Circuit     CircuitConfig     `yaml:"circuit" mapstructure:"circuit"`
	RateLimit   RateLimitConfig   `yaml:"rate_limit" mapstructure:"rate_limit"`
	Models      ModelsConfig      `yaml:"models" mapstructure:"models"`
	Pipeline    PipelineConfig    `yaml:"pipeline" mapstructure:"pipeline"`
	Extract     ExtractConfig     `yaml:"extract" mapstructure:"extract"`
	Credentials CredentialsConfig `yaml:"credentials" mapstructure:"credentials"`
	Server      ServerConfig      `yaml:"server" mapstructure:"server"`
	Log         LogConfig         `yaml:"log" mapstructure:"log"`
}

// OpenRouterConfig holds chat-completions endpoint settings. Key is the
// fallback credential used when a request does not carry its own.
type OpenRouterConfig struct {
	Key         string `yaml:"key" mapstructure:"key"`
	BaseURL     string `yaml:"base_url" mapstructure:"base_url"`
	Referer     string `yaml:"referer" mapstructure:"referer"`
	Title       string `yaml:"title" mapstructure:"title"`
	TimeoutSecs int    `yaml:"timeout_secs" mapstructure:"timeout_secs"`
}

// AnthropicConfig holds Anthropic API settings for anthropic: model routes.
type AnthropicConfig struct {
	Key       string `yaml:"key" mapstructure:"key"`
	BaseURL   string `yaml:"base_url" mapstructure:"base_url"`
	MaxTokens int    `yaml:"max_tokens" mapstructure:"max_tokens"`
}

// GeminiConfig holds Gemini API settings for gemini: model routes.
type GeminiConfig struct {
	Key string `yaml:"key" mapstructure:"key"`
}

// RetryConfig configures retry of transient model call failures.
type RetryConfig struct {
	MaxAttempts      int     `yaml:"max_attempts" mapstructure:"max_attempts"`
	InitialBackoffMs int     `yaml:"initial_backoff_ms" mapstructure:"initial_backoff_ms"`
	MaxBackoffMs     int     `yaml:"max_backoff_ms" mapstructure:"max_backoff_ms"`
	Multiplier       float64 `yaml:"multiplier" mapstructure:"multiplier"`
	JitterFraction   float64 `yaml:"jitter_fraction" mapstructure:"jitter_fraction"`
}

// CircuitConfig configures per-model circuit breakers. A zero threshold
// disables them.
type CircuitConfig struct {
	FailureThreshold int `yaml:"failure_threshold" mapstructure:"failure_threshold"`
	ResetTimeoutSecs int `yaml:"reset_timeout_secs" mapstructure:"reset_timeout_secs"`
}

// RateLimitConfig bounds outbound model calls. Zero RPS means unlimited.
type RateLimitConfig struct {
	RPS   float64 `yaml:"rps" mapstructure:"rps"`
	Burst int     `yaml:"burst" mapstructure:"burst"`
}

// ModelsConfig maps each pipeline role to a model id.
type ModelsConfig struct {
	Analysis      string `yaml:"analysis" mapstructure:"analysis"`
	Informative   string `yaml:"informative" mapstructure:"informative"`
	Contrarian    string `yaml:"contrarian" mapstructure:"contrarian"`
	Complementary string `yaml:"complementary" mapstructure:"complementary"`
	Synthesis     string `yaml:"synthesis" mapstructure:"synthesis"`
}

// PipelineConfig controls orchestration.
type PipelineConfig struct {
	Viewpoints           []string `yaml:"viewpoints" mapstructure:"viewpoints"`
	MaxDocumentChars     int      `yaml:"max_document_chars" mapstructure:"max_document_chars"`
	PreviewChars         int      `yaml:"preview_chars" mapstructure:"preview_chars"`
	FailOnUpstreamOutage bool     `yaml:"fail_on_upstream_outage" mapstructure:"fail_on_upstream_outage"`
	PromptsFile          string   `yaml:"prompts_file" mapstructure:"prompts_file"`
}

// ExtractConfig configures file text extraction.
type ExtractConfig struct {
	MaxBase64MB    int    `yaml:"max_base64_mb" mapstructure:"max_base64_mb"`
	MaxFileMB      int    `yaml:"max_file_mb" mapstructure:"max_file_mb"`
	MaxChars       int    `yaml:"max_chars" mapstructure:"max_chars"`
	CacheSize      int    `yaml:"cache_size" mapstructure:"cache_size"`
	OCRProvider    string `yaml:"ocr_provider" mapstructure:"ocr_provider"`
	PdfToTextPath  string `yaml:"pdftotext_path" mapstructure:"pdftotext_path"`
	TesseractPath  string `yaml:"tesseract_path" mapstructure:"tesseract_path"`
	TesseractLangs string `yaml:"tesseract_langs" mapstructure:"tesseract_langs"`
	MistralKey     string `yaml:"mistral_key" mapstructure:"mistral_key"`
	MistralModel   string `yaml:"mistral_model" mapstructure:"mistral_model"`
}

// CredentialsConfig configures the OpenRouter key check.
type CredentialsConfig struct {
	// CheckModel must be an OpenRouter model; other providers ignore the
	// caller's key.
	CheckModel   string `yaml:"check_model" mapstructure:"check_model"`
	MinKeyLength int    `yaml:"min_key_length" mapstructure:"min_key_length"`
}

// ServerConfig configures the HTTP server. When AdminToken is set, changing
// settings requires it in the X-Admin-Token header.
type ServerConfig struct {
	Port           int      `yaml:"port" mapstructure:"port"`
	AllowedOrigins []string `yaml:"allowed_origins" mapstructure:"allowed_origins"`
	AdminToken     string   `yaml:"admin_token" mapstructure:"admin_token"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// Load reads configuration from .env, file and environment.
func Load() (*Config, error) {
	// .env is optional
	_ = godotenv.Load()

	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("MULTIVIEW")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Conventional provider variables
	bindings := map[string]string{
		"openrouter.key":      "OPENROUTER_API_KEY",
		"openrouter.referer":  "APP_URL",
		"openrouter.title":    "APP_TITLE",
		"anthropic.key":       "ANTHROPIC_API_KEY",
		"gemini.key":          "GEMINI_API_KEY",
		"extract.mistral_key": "MISTRAL_API_KEY",
	}
	for key, env := range bindings {
		prefixed := "MULTIVIEW_" + strings.ToUpper(strings.ReplaceAll(key, ".", "_"))
		if err := v.BindEnv(key, prefixed, env); err != nil {
			return nil, eris.Wrapf(err, "config: bind env %s", env)
		}
	}

	// Defaults
	v.SetDefault("openrouter.base_url", "https://openrouter.ai/api/v1")
	v.SetDefault("openrouter.referer", "http://localhost:8000")
	v.SetDefault("openrouter.title", "Multiview")
	v.SetDefault("openrouter.timeout_secs", 60)
	v.SetDefault("anthropic.max_tokens", 4096)
	v.SetDefault("retry.max_attempts", 3)
	v.SetDefault("retry.initial_backoff_ms", 2000)
	v.SetDefault("retry.max_backoff_ms", 30000)
	v.SetDefault("retry.multiplier", 2.0)
	v.SetDefault("retry.jitter_fraction", 0.0)
	v.SetDefault("circuit.failure_threshold", 5)
	v.SetDefault("circuit.reset_timeout_secs", 30)
	v.SetDefault("rate_limit.rps", 0.0)
	v.SetDefault("rate_limit.burst", 1)
	v.SetDefault("models.analysis", "openchat/openchat-3.5-0106")
	v.SetDefault("models.informative", "meta-llama/llama-3-70b-instruct")
	v.SetDefault("models.contrarian", "teknium/openhermes-2.5-mistral-7b")
	v.SetDefault("models.complementary", "qwen/qwen-2.5-coder-32b-instruct:free")
	v.SetDefault("models.synthesis", "google/gemini-2.5-pro-exp-03-25:free")
	v.SetDefault("pipeline.viewpoints", []string{"informative", "contrarian", "complementary"})
	v.SetDefault("pipeline.max_document_chars", 4000)
	v.SetDefault("pipeline.preview_chars", 100)
	v.SetDefault("pipeline.fail_on_upstream_outage", false)
	v.SetDefault("pipeline.prompts_file", "")
	v.SetDefault("extract.max_base64_mb", 15)
	v.SetDefault("extract.max_file_mb", 10)
	v.SetDefault("extract.max_chars", 4000)
	v.SetDefault("extract.cache_size", 128)
	v.SetDefault("extract.ocr_provider", "local")
	v.SetDefault("extract.pdftotext_path", "pdftotext")
	v.SetDefault("extract.tesseract_path", "tesseract")
	v.SetDefault("extract.tesseract_langs", "eng")
	v.SetDefault("extract.mistral_model", "mistral-ocr-latest")
	v.SetDefault("credentials.check_model", "qwen/qwen3-coder:free")
	v.SetDefault("credentials.min_key_length", 40)
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.allowed_origins", []string{"http://localhost:5173", "http://127.0.0.1:5173"})
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

	// Read config file (optional)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	return &cfg, nil
}

// Validate checks the fields the given command mode depends on.
func (c *Config) Validate(mode string) error {
	var problems []string

	checkModels := func() {
		if c.Models.Analysis == "" {
			problems = append(problems, "models.analysis is required")
		}
		if c.Models.Synthesis == "" {
			problems = append(problems, "models.synthesis is required")
		}
		if n := len(c.Pipeline.Viewpoints); n < 1 || n > 3 {
			problems = append(problems, fmt.Sprintf("pipeline.viewpoints must list 1 to 3 viewpoints, got %d", n))
		}
		if c.Retry.MaxAttempts < 1 {
			problems = append(problems, "retry.max_attempts must be >= 1")
		}
		if c.OpenRouter.TimeoutSecs <= 0 {
			problems = append(problems, "openrouter.timeout_secs must be > 0")
		}
	}
	checkExtract := func() {
		if c.Extract.MaxFileMB <= 0 || c.Extract.MaxBase64MB <= 0 {
			problems = append(problems, "extract size limits must be > 0")
		}
		switch c.Extract.OCRProvider {
		case "local", "":
		case "mistral":
			if c.Extract.MistralKey == "" {
				problems = append(problems, "extract.mistral_key is required for the mistral OCR provider")
			}
		default:
			problems = append(problems, fmt.Sprintf("extract.ocr_provider %q is not supported", c.Extract.OCRProvider))
		}
	}

	switch mode {
	case "serve":
		checkModels()
		checkExtract()
		if c.Server.Port <= 0 {
			problems = append(problems, "server.port must be > 0")
		}
	case "ask":
		checkModels()
		checkExtract()
	case "extract":
		checkExtract()
	case "models":
		checkModels()
	default:
		return eris.Errorf("config: unknown mode %q", mode)
	}

	if len(problems) > 0 {
		return eris.Errorf("config: %s", strings.Join(problems, "; "))
	}
	return nil
}

// InitLogger initializes the global zap logger.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)

	return nil
}
