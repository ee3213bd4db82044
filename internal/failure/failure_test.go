package failure

import (
	"errors"
	"fmt"
	"strings"
	"testing"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want Kind
	}{
		{name: "entityNotFound", err: errors.New("Requested entity was not found."), want: CredentialRejected},
		{name: "apiKeyField", err: errors.New("API_KEY_INVALID"), want: CredentialRejected},
		{name: "apiKeyNotValid", err: errors.New("API key not valid. Please pass a valid API key."), want: CredentialRejected},
		{name: "status401", err: errors.New("error, status code: 401, message: bad auth"), want: CredentialRejected},
		{name: "status403", err: errors.New("request failed with 403"), want: CredentialRejected},
		{name: "wrappedSignature", err: fmt.Errorf("generate: %w", errors.New("permission denied")), want: CredentialRejected},
		{name: "networkError", err: errors.New("dial tcp: connection refused"), want: Provider},
		{name: "quota", err: errors.New("status 429: resource exhausted"), want: Provider},
		{name: "missingSentinel", err: fmt.Errorf("ensure: %w", ErrMissingCredential), want: MissingCredential},
		{name: "typedParse", err: New(Parse, "decode script", errors.New("unexpected 401 in body")), want: Parse},
		{name: "wrappedTyped", err: fmt.Errorf("outer: %w", New(Export, "zip", errors.New("disk full"))), want: Export},
		{name: "nilError", err: nil, want: Provider},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Classify(tt.err); got != tt.want {
				t.Errorf("Classify() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestWrap(t *testing.T) {
	if Wrap("op", nil) != nil {
		t.Error("Wrap(nil) should be nil")
	}

	err := Wrap("generate script", errors.New("API key not valid"))
	var typed *Error
	if !errors.As(err, &typed) {
		t.Fatalf("Wrap() = %T, want *Error", err)
	}
	if typed.Kind != CredentialRejected {
		t.Errorf("Kind = %v, want %v", typed.Kind, CredentialRejected)
	}
	if typed.Op != "generate script" {
		t.Errorf("Op = %q", typed.Op)
	}

	original := New(Parse, "decode", errors.New("bad json"))
	if Wrap("other", original) != error(original) {
		t.Error("Wrap() should pass typed errors through")
	}
}

func TestErrorMessage(t *testing.T) {
	err := New(Provider, "generate illustration", ErrNoImage)
	if err.Error() != "generate illustration: response contained no image" {
		t.Errorf("Error() = %q", err.Error())
	}
	if !errors.Is(err, ErrNoImage) {
		t.Error("errors.Is should see the wrapped sentinel")
	}
}

func TestDescribe(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{name: "missing", err: New(MissingCredential, "ensure", ErrMissingCredential), want: "No API key"},
		{name: "rejected", err: errors.New("403 forbidden"), want: "rejected"},
		{name: "parse", err: New(Parse, "decode", errors.New("unexpected end")), want: "unexpected end"},
		{name: "export", err: New(Export, "write", errors.New("disk full")), want: "slide deck"},
		{name: "provider", err: errors.New("timeout"), want: "Generation failed: timeout"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Describe(tt.err); !strings.Contains(got, tt.want) {
				t.Errorf("Describe() = %q, want it to contain %q", got, tt.want)
			}
		})
	}

	if Describe(nil) != "" {
		t.Error("Describe(nil) should be empty")
	}
}
