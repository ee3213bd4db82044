package app

import (
	"io"

	"picturebook/internal/credential"
	"picturebook/internal/provider"
	"picturebook/internal/storage"
	"picturebook/pkg/config"
	"picturebook/pkg/prompts"
)

type Service struct {
	cfg         *config.Config
	provider    provider.Provider
	credentials *credential.Manager
	storage     storage.Writer
	uploads     storage.Writer
	prompts     *prompts.Prompts
}

type ServiceOptions struct {
	Config      *config.Config
	Provider    provider.Provider
	Credentials *credential.Manager
	Storage     storage.Writer
	Uploads     storage.Writer
	Prompts     *prompts.Prompts
}

func NewService(opts ServiceOptions) *Service {
	p := opts.Prompts
	if p == nil {
		p = prompts.Default()
	}
	creds := opts.Credentials
	if creds == nil {
		creds = credential.NewManager(credential.Options{})
	}
	return &Service{
		cfg:         opts.Config,
		provider:    opts.Provider,
		credentials: creds,
		storage:     opts.Storage,
		uploads:     opts.Uploads,
		prompts:     p,
	}
}

func (s *Service) Config() *config.Config {
	return s.cfg
}

func (s *Service) Provider() provider.Provider {
	return s.provider
}

func (s *Service) Credentials() *credential.Manager {
	return s.credentials
}

func (s *Service) Storage() storage.Writer {
	return s.storage
}

// Uploads is the remote deck store, nil when none is configured.
func (s *Service) Uploads() storage.Writer {
	return s.uploads
}

func (s *Service) Prompts() *prompts.Prompts {
	return s.prompts
}

func (s *Service) Close() error {
	if closer, ok := s.uploads.(io.Closer); ok {
		return closer.Close()
	}
	return nil
}
