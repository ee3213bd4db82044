package app

import (
	"context"
	"testing"
	"time"

	"picturebook/internal/credential"
	"picturebook/pkg/config"
)

func testConfig(t *testing.T, backend string) *config.Config {
	t.Helper()
	return &config.Config{
		GeminiAPIKey: "gemini-key-0123456789abcdef",
		ArkAPIKey:    "ark-key-0123456789abcdefghij",
		Provider:     backend,
		Gemini:       config.GeminiConfig{ScriptModel: "script", VisionModel: "vision", ImageModel: "image"},
		Ark:          config.ArkConfig{BaseURL: "http://localhost/api/v3", Timeout: time.Second, MaxRetries: 1},
		Book:         config.BookConfig{FrameAspectRatio: "16:9", CoverAspectRatio: "16:9"},
		Output:       config.OutputConfig{Dir: t.TempDir()},
		Credential:   config.CredentialConfig{MinKeyLength: 20},
	}
}

func TestBuildService(t *testing.T) {
	tests := []struct {
		name     string
		backend  string
		wantName string
		wantKey  string
		wantErr  bool
	}{
		{name: "gemini", backend: config.ProviderGemini, wantName: "gemini", wantKey: "gemini-key-0123456789abcdef"},
		{name: "ark", backend: config.ProviderArk, wantName: "ark", wantKey: "ark-key-0123456789abcdefghij"},
		{name: "unknown", backend: "dalle", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("API_KEY", "")
			t.Setenv("GEMINI_API_KEY", "")
			t.Setenv("ARK_API_KEY", "")

			svc, err := BuildService(context.Background(), testConfig(t, tt.backend), nil)
			if (err != nil) != tt.wantErr {
				t.Fatalf("BuildService() error = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.wantErr {
				return
			}
			if got := svc.Provider().Name(); got != tt.wantName {
				t.Errorf("Provider().Name() = %q, want %q", got, tt.wantName)
			}
			if svc.Uploads() != nil {
				t.Error("Uploads() should be nil without a bucket")
			}
			if !svc.Credentials().Ensure(context.Background()) {
				t.Fatal("Ensure() = false, want configured key")
			}
			if got := svc.Credentials().Key(); got != tt.wantKey {
				t.Errorf("Key() = %q, want %q", got, tt.wantKey)
			}
		})
	}
}

func TestBuildServiceWithoutKey(t *testing.T) {
	t.Setenv("API_KEY", "")
	t.Setenv("GEMINI_API_KEY", "")

	cfg := testConfig(t, config.ProviderGemini)
	cfg.GeminiAPIKey = ""

	svc, err := BuildService(context.Background(), cfg, nil)
	if err != nil {
		t.Fatal(err)
	}
	if svc.Credentials().Ensure(context.Background()) {
		t.Error("Ensure() = true without any key")
	}
	if svc.Credentials().State() != credential.Missing {
		t.Errorf("State() = %v, want missing", svc.Credentials().State())
	}
}

func TestCredentialSources(t *testing.T) {
	cfg := testConfig(t, config.ProviderArk)
	if got := len(credentialSources(cfg)); got != 3 {
		t.Errorf("sources = %d, want 3", got)
	}

	cfg.Credential.SecretName = "projects/p/secrets/ark/versions/latest"
	sources := credentialSources(cfg)
	if len(sources) != 4 {
		t.Fatalf("sources = %d, want 4", len(sources))
	}
	if _, ok := sources[3].(*credential.SecretManagerSource); !ok {
		t.Errorf("last source = %T, want secret manager", sources[3])
	}
}
