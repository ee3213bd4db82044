package app

import (
	"context"
	"fmt"
	"net/http"

	"picturebook/internal/credential"
	"picturebook/internal/provider"
	"picturebook/internal/provider/ark"
	"picturebook/internal/provider/gemini"
	"picturebook/internal/storage"
	"picturebook/pkg/config"
	"picturebook/pkg/httputil"
	"picturebook/pkg/prompts"
)

// BuildService wires a Service from cfg. picker may be nil when no terminal
// is attached.
func BuildService(ctx context.Context, cfg *config.Config, picker credential.Picker) (*Service, error) {
	p, err := prompts.Load(cfg.PromptsPath)
	if err != nil {
		return nil, err
	}

	credentials := credential.NewManager(credential.Options{
		Sources:      credentialSources(cfg),
		Picker:       picker,
		MinKeyLength: cfg.Credential.MinKeyLength,
	})

	backend, err := buildProvider(cfg, credentials.Key, p)
	if err != nil {
		return nil, err
	}

	localStorage := storage.NewLocalStorage(cfg.Output.Dir)
	if err := localStorage.EnsureDirectories(); err != nil {
		return nil, err
	}

	opts := ServiceOptions{
		Config:      cfg,
		Provider:    backend,
		Credentials: credentials,
		Storage:     localStorage,
		Prompts:     p,
	}

	if cfg.GCSBucket != "" {
		gcs, err := storage.NewGCSStorage(ctx, cfg.GCSBucket, cfg.Output.GCSPrefix, cfg.CredentialsFile)
		if err != nil {
			return nil, err
		}
		opts.Uploads = gcs
	}

	return NewService(opts), nil
}

func credentialSources(cfg *config.Config) []credential.Source {
	var sources []credential.Source
	switch cfg.Provider {
	case config.ProviderArk:
		sources = append(sources, credential.StaticSource(cfg.ArkAPIKey))
	default:
		sources = append(sources, credential.StaticSource(cfg.GeminiAPIKey))
	}
	sources = append(sources, credential.StaticSource(cfg.APIKey), credential.NewEnvSource(cfg.ProviderKeyEnv()...))

	if cfg.Credential.SecretName != "" {
		sources = append(sources, credential.NewSecretManagerSource(cfg.Credential.SecretName))
	}
	return sources
}

func buildProvider(cfg *config.Config, key provider.KeyFunc, p *prompts.Prompts) (provider.Provider, error) {
	switch cfg.Provider {
	case config.ProviderGemini:
		return gemini.NewClient(gemini.Config{
			ScriptModel: cfg.Gemini.ScriptModel,
			VisionModel: cfg.Gemini.VisionModel,
			ImageModel:  cfg.Gemini.ImageModel,
			BaseURL:     cfg.Gemini.BaseURL,
		}, key, p), nil
	case config.ProviderArk:
		retries := cfg.Ark.MaxRetries
		if retries <= 0 {
			retries = httputil.NoRetries
		}
		httpClient := httputil.NewRetryClient(&http.Client{Timeout: cfg.Ark.Timeout}, httputil.RetryConfig{
			MaxRetries: retries,
		})
		return ark.NewClient(ark.Config{
			BaseURL:        cfg.Ark.BaseURL,
			TextEndpoint:   cfg.Ark.TextEndpoint,
			VisionEndpoint: cfg.Ark.VisionEndpoint,
			ImageEndpoint:  cfg.Ark.ImageEndpoint,
			HTTPClient:     httpClient,
		}, key, p), nil
	default:
		return nil, fmt.Errorf("unknown provider %q", cfg.Provider)
	}
}
