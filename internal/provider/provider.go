package provider

import (
	"context"
	"encoding/json"
	"strings"

	"picturebook/internal/book"
	"picturebook/internal/failure"
)

const (
	DefaultStyle  = "Hand-drawn children's book style"
	maxStyleWords = 50
)

// Provider is the capability every generation backend offers.
type Provider interface {
	Name() string
	AnalyzeStyle(ctx context.Context, image []byte, mimeType string) (string, error)
	GenerateScript(ctx context.Context, brief book.Brief) (*book.Script, error)
	GenerateIllustration(ctx context.Context, req IllustrationRequest) (*book.Image, error)
}

type IllustrationRequest struct {
	Prompt          string
	StylePrompt     string
	VisualAnchor    string
	CharacterDesign string
	AspectRatio     book.AspectRatio
}

// KeyFunc returns the key to use for the next call. Backends read it per
// request because the key may be reselected at any time.
type KeyFunc func() string

// DecodeScript parses a model's JSON reply, tolerating a surrounding
// markdown code fence.
func DecodeScript(raw string) (*book.Script, error) {
	text := stripFence(raw)
	if text == "" {
		return nil, failure.Newf(failure.Parse, "decode script", "empty response")
	}

	var script book.Script
	if err := json.Unmarshal([]byte(text), &script); err != nil {
		return nil, failure.New(failure.Parse, "decode script", err)
	}
	return &script, nil
}

func stripFence(raw string) string {
	text := strings.TrimSpace(raw)
	if !strings.HasPrefix(text, "```") {
		return text
	}
	text = strings.TrimPrefix(text, "```")
	if nl := strings.IndexByte(text, '\n'); nl >= 0 {
		text = text[nl+1:]
	}
	text = strings.TrimSuffix(strings.TrimSpace(text), "```")
	return strings.TrimSpace(text)
}

// NormalizeStyle cleans a style description returned by a vision model.
func NormalizeStyle(text string) string {
	words := strings.Fields(text)
	if len(words) == 0 {
		return DefaultStyle
	}
	if len(words) > maxStyleWords {
		words = words[:maxStyleWords]
	}
	return strings.Trim(strings.Join(words, " "), "\"")
}
