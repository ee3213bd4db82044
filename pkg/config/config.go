package config

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const (
	defaultConfigPath       = "config.yaml"
	defaultProvider         = ProviderGemini
	defaultScriptModel      = "gemini-3-pro-preview"
	defaultVisionModel      = "gemini-3-flash-preview"
	defaultImageModel       = "gemini-2.5-flash-image"
	defaultArkBaseURL       = "https://ark.cn-beijing.volces.com/api/v3"
	defaultArkTextEndpoint  = "doubao-pro-32k"
	defaultArkVisionModel   = "doubao-vision-pro-32k"
	defaultArkImageEndpoint = "doubao-image-gen"
	defaultArkTimeout       = 120 * time.Second
	defaultArkMaxRetries    = 2
	defaultWordCount        = 800
	defaultStylePrompt      = "Warm, hand-drawn digital watercolor children's book style"
	defaultCoverAspect      = "16:9"
	defaultFrameAspect      = "16:9"
	defaultOutputDir        = "./output"
	defaultGCSPrefix        = "decks"
	defaultMinKeyLength     = 20
)

const (
	ProviderGemini = "gemini"
	ProviderArk    = "ark"
)

type Config struct {
	APIKey          string
	GeminiAPIKey    string
	ArkAPIKey       string
	GCSBucket       string
	CredentialsFile string

	Provider    string           `yaml:"provider"`
	Gemini      GeminiConfig     `yaml:"gemini"`
	Ark         ArkConfig        `yaml:"ark"`
	Book        BookConfig       `yaml:"book"`
	Output      OutputConfig     `yaml:"output"`
	Credential  CredentialConfig `yaml:"credential"`
	PromptsPath string           `yaml:"prompts_path"`
}

type GeminiConfig struct {
	ScriptModel string `yaml:"script_model"`
	VisionModel string `yaml:"vision_model"`
	ImageModel  string `yaml:"image_model"`
	BaseURL     string `yaml:"base_url"`
}

type ArkConfig struct {
	BaseURL        string        `yaml:"base_url"`
	TextEndpoint   string        `yaml:"text_endpoint"`
	VisionEndpoint string        `yaml:"vision_endpoint"`
	ImageEndpoint  string        `yaml:"image_endpoint"`
	Timeout        time.Duration `yaml:"timeout"`
	MaxRetries     int           `yaml:"max_retries"`
}

type BookConfig struct {
	WordCount        int    `yaml:"word_count"`
	StylePrompt      string `yaml:"style_prompt"`
	CoverAspectRatio string `yaml:"cover_aspect_ratio"`
	FrameAspectRatio string `yaml:"frame_aspect_ratio"`
}

type OutputConfig struct {
	Dir       string `yaml:"dir"`
	GCSPrefix string `yaml:"gcs_prefix"`
}

type CredentialConfig struct {
	SecretName   string `yaml:"secret_name"`
	MinKeyLength int    `yaml:"min_key_length"`
}

func Load(ctx context.Context) (*Config, error) {
	return LoadFrom(ctx, defaultConfigPath)
}

func LoadFrom(_ context.Context, path string) (*Config, error) {
	if err := godotenv.Load(); err != nil {
		slog.Debug("No .env file found, relying on environment variables")
	}

	cfg := &Config{
		APIKey:          os.Getenv("API_KEY"),
		GeminiAPIKey:    os.Getenv("GEMINI_API_KEY"),
		ArkAPIKey:       os.Getenv("ARK_API_KEY"),
		GCSBucket:       os.Getenv("GCS_BUCKET"),
		CredentialsFile: os.Getenv("GOOGLE_APPLICATION_CREDENTIALS"),
	}
	// Seeded before the file is read so an explicit 0 survives.
	cfg.Ark.MaxRetries = defaultArkMaxRetries

	if err := loadYAMLConfig(cfg, path); err != nil {
		return nil, err
	}
	applyDefaults(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) Validate() error {
	switch c.Provider {
	case ProviderGemini, ProviderArk:
	default:
		return fmt.Errorf("unknown provider %q", c.Provider)
	}
	for _, ratio := range []string{c.Book.CoverAspectRatio, c.Book.FrameAspectRatio} {
		if ratio != "16:9" && ratio != "9:16" {
			return fmt.Errorf("unsupported aspect ratio %q", ratio)
		}
	}
	return nil
}

// ProviderKeyEnv lists the environment variables consulted for the active
// provider's key, most specific last.
func (c *Config) ProviderKeyEnv() []string {
	if c.Provider == ProviderArk {
		return []string{"API_KEY", "ARK_API_KEY"}
	}
	return []string{"API_KEY", "GEMINI_API_KEY"}
}

func loadYAMLConfig(cfg *Config, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		slog.Debug("No config file found, using defaults", "path", path)
		return nil
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("parse %s: %w", path, err)
	}
	return nil
}

func applyDefaults(cfg *Config) {
	if cfg.Provider == "" {
		cfg.Provider = defaultProvider
	}
	applyGeminiDefaults(cfg)
	applyArkDefaults(cfg)
	applyBookDefaults(cfg)
	applyOutputDefaults(cfg)
	applyCredentialDefaults(cfg)
}

func applyGeminiDefaults(cfg *Config) {
	if cfg.Gemini.ScriptModel == "" {
		cfg.Gemini.ScriptModel = defaultScriptModel
	}
	if cfg.Gemini.VisionModel == "" {
		cfg.Gemini.VisionModel = defaultVisionModel
	}
	if cfg.Gemini.ImageModel == "" {
		cfg.Gemini.ImageModel = defaultImageModel
	}
}

func applyArkDefaults(cfg *Config) {
	if cfg.Ark.BaseURL == "" {
		cfg.Ark.BaseURL = getEnvOrDefault("ARK_BASE_URL", defaultArkBaseURL)
	}
	if cfg.Ark.TextEndpoint == "" {
		cfg.Ark.TextEndpoint = defaultArkTextEndpoint
	}
	if cfg.Ark.VisionEndpoint == "" {
		cfg.Ark.VisionEndpoint = defaultArkVisionModel
	}
	if cfg.Ark.ImageEndpoint == "" {
		cfg.Ark.ImageEndpoint = defaultArkImageEndpoint
	}
	if cfg.Ark.Timeout == 0 {
		cfg.Ark.Timeout = defaultArkTimeout
	}
}

func applyBookDefaults(cfg *Config) {
	if cfg.Book.WordCount == 0 {
		cfg.Book.WordCount = defaultWordCount
	}
	if cfg.Book.StylePrompt == "" {
		cfg.Book.StylePrompt = defaultStylePrompt
	}
	if cfg.Book.CoverAspectRatio == "" {
		cfg.Book.CoverAspectRatio = defaultCoverAspect
	}
	if cfg.Book.FrameAspectRatio == "" {
		cfg.Book.FrameAspectRatio = defaultFrameAspect
	}
}

func applyOutputDefaults(cfg *Config) {
	if cfg.Output.Dir == "" {
		cfg.Output.Dir = defaultOutputDir
	}
	if cfg.Output.GCSPrefix == "" {
		cfg.Output.GCSPrefix = defaultGCSPrefix
	}
}

func applyCredentialDefaults(cfg *Config) {
	if cfg.Credential.MinKeyLength == 0 {
		cfg.Credential.MinKeyLength = defaultMinKeyLength
	}
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
