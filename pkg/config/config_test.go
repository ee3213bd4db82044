package config

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func chdirTemp(t *testing.T) string {
	t.Helper()
	tmp := t.TempDir()
	orig, _ := os.Getwd()
	t.Cleanup(func() { _ = os.Chdir(orig) })
	if err := os.Chdir(tmp); err != nil {
		t.Fatal(err)
	}
	return tmp
}

func TestLoadFromYAML(t *testing.T) {
	tmp := chdirTemp(t)

	yaml := `
provider: ark
ark:
  text_endpoint: ep-text
  timeout: 30s
book:
  word_count: 400
  cover_aspect_ratio: "9:16"
credential:
  secret_name: projects/p/secrets/book-key/versions/latest
`
	_ = os.WriteFile(filepath.Join(tmp, "config.yaml"), []byte(yaml), 0644)

	cfg, err := Load(context.Background())
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}

	if cfg.Provider != ProviderArk {
		t.Errorf("Provider = %q, want ark", cfg.Provider)
	}
	if cfg.Ark.TextEndpoint != "ep-text" {
		t.Errorf("Ark.TextEndpoint = %q, want ep-text", cfg.Ark.TextEndpoint)
	}
	if cfg.Ark.Timeout != 30*time.Second {
		t.Errorf("Ark.Timeout = %v, want 30s", cfg.Ark.Timeout)
	}
	if cfg.Ark.ImageEndpoint != defaultArkImageEndpoint {
		t.Errorf("Ark.ImageEndpoint = %q, want default", cfg.Ark.ImageEndpoint)
	}
	if cfg.Book.WordCount != 400 {
		t.Errorf("Book.WordCount = %d, want 400", cfg.Book.WordCount)
	}
	if cfg.Ark.MaxRetries != defaultArkMaxRetries {
		t.Errorf("Ark.MaxRetries = %d, want default %d", cfg.Ark.MaxRetries, defaultArkMaxRetries)
	}
	if cfg.Book.CoverAspectRatio != "9:16" {
		t.Errorf("Book.CoverAspectRatio = %q, want 9:16", cfg.Book.CoverAspectRatio)
	}
	if cfg.Credential.SecretName == "" {
		t.Error("Credential.SecretName should be set")
	}
}

func TestLoadFromEnv(t *testing.T) {
	chdirTemp(t)

	t.Setenv("API_KEY", "shared-key")
	t.Setenv("GEMINI_API_KEY", "gemini-key")
	t.Setenv("GCS_BUCKET", "books")

	cfg, err := Load(context.Background())
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}

	if cfg.APIKey != "shared-key" {
		t.Errorf("APIKey = %q, want shared-key", cfg.APIKey)
	}
	if cfg.GeminiAPIKey != "gemini-key" {
		t.Errorf("GeminiAPIKey = %q, want gemini-key", cfg.GeminiAPIKey)
	}
	if cfg.GCSBucket != "books" {
		t.Errorf("GCSBucket = %q, want books", cfg.GCSBucket)
	}
}

func TestLoadMissingConfigFileUsesDefaults(t *testing.T) {
	chdirTemp(t)

	cfg, err := Load(context.Background())
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}

	if cfg.Provider != ProviderGemini {
		t.Errorf("Provider = %q, want gemini", cfg.Provider)
	}
	if cfg.Gemini.ImageModel != defaultImageModel {
		t.Errorf("Gemini.ImageModel = %q, want %q", cfg.Gemini.ImageModel, defaultImageModel)
	}
	if cfg.Book.WordCount != defaultWordCount {
		t.Errorf("Book.WordCount = %d, want %d", cfg.Book.WordCount, defaultWordCount)
	}
	if cfg.Book.StylePrompt != defaultStylePrompt {
		t.Errorf("Book.StylePrompt = %q", cfg.Book.StylePrompt)
	}
	if cfg.Output.Dir != defaultOutputDir {
		t.Errorf("Output.Dir = %q, want %q", cfg.Output.Dir, defaultOutputDir)
	}
}

func TestLoadInvalid(t *testing.T) {
	tests := []struct {
		name string
		yaml string
	}{
		{name: "malformedYAML", yaml: "provider: [unterminated"},
		{name: "unknownProvider", yaml: "provider: openai"},
		{name: "badAspectRatio", yaml: "book:\n  frame_aspect_ratio: \"4:3\""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tmp := chdirTemp(t)
			_ = os.WriteFile(filepath.Join(tmp, "config.yaml"), []byte(tt.yaml), 0644)

			if _, err := Load(context.Background()); err == nil {
				t.Error("Load() should fail")
			}
		})
	}
}

func TestProviderKeyEnv(t *testing.T) {
	tests := []struct {
		provider string
		want     string
	}{
		{provider: ProviderGemini, want: "GEMINI_API_KEY"},
		{provider: ProviderArk, want: "ARK_API_KEY"},
	}

	for _, tt := range tests {
		cfg := &Config{Provider: tt.provider}
		names := cfg.ProviderKeyEnv()
		if names[0] != "API_KEY" {
			t.Errorf("%s: first name = %q, want API_KEY", tt.provider, names[0])
		}
		if names[len(names)-1] != tt.want {
			t.Errorf("%s: last name = %q, want %q", tt.provider, names[len(names)-1], tt.want)
		}
	}
}

func TestLoadKeepsZeroRetries(t *testing.T) {
	tmp := chdirTemp(t)
	_ = os.WriteFile(filepath.Join(tmp, "config.yaml"), []byte("provider: ark\nark:\n  max_retries: 0\n"), 0644)

	cfg, err := Load(context.Background())
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if cfg.Ark.MaxRetries != 0 {
		t.Errorf("Ark.MaxRetries = %d, want 0", cfg.Ark.MaxRetries)
	}
}
