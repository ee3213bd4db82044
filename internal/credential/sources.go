package credential

import (
	"context"
	"fmt"
	"os"
	"strings"
	"sync"

	secretmanager "cloud.google.com/go/secretmanager/apiv1"
	"cloud.google.com/go/secretmanager/apiv1/secretmanagerpb"
)

// EnvSource returns the first non-empty variable, checked in order.
type EnvSource struct {
	Names []string
}

func NewEnvSource(names ...string) *EnvSource {
	return &EnvSource{Names: names}
}

func (s *EnvSource) Lookup(_ context.Context) (string, error) {
	for _, name := range s.Names {
		if value := strings.TrimSpace(os.Getenv(name)); value != "" {
			return value, nil
		}
	}
	return "", nil
}

// StaticSource serves a key that was already resolved, typically by config.
type StaticSource string

func (s StaticSource) Lookup(_ context.Context) (string, error) {
	return string(s), nil
}

type secretAccessor interface {
	AccessSecretVersion(ctx context.Context, name string) ([]byte, error)
}

// SecretManagerSource reads a key from Google Secret Manager. The payload
// is fetched once and reused.
type SecretManagerSource struct {
	name     string
	accessor secretAccessor

	once  sync.Once
	value string
	err   error
}

func NewSecretManagerSource(name string) *SecretManagerSource {
	return &SecretManagerSource{name: name, accessor: gcpAccessor{}}
}

func (s *SecretManagerSource) Lookup(ctx context.Context) (string, error) {
	s.once.Do(func() {
		data, err := s.accessor.AccessSecretVersion(ctx, s.name)
		if err != nil {
			s.err = fmt.Errorf("access secret %s: %w", s.name, err)
			return
		}
		s.value = strings.TrimSpace(string(data))
	})
	return s.value, s.err
}

type gcpAccessor struct{}

func (gcpAccessor) AccessSecretVersion(ctx context.Context, name string) ([]byte, error) {
	client, err := secretmanager.NewClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("create secret manager client: %w", err)
	}
	defer func() { _ = client.Close() }()

	resp, err := client.AccessSecretVersion(ctx, &secretmanagerpb.AccessSecretVersionRequest{Name: name})
	if err != nil {
		return nil, err
	}
	return resp.GetPayload().GetData(), nil
}
