package ark

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"sync"

	"github.com/sashabaranov/go-openai"

	"picturebook/internal/book"
	"picturebook/internal/failure"
	"picturebook/internal/provider"
	"picturebook/pkg/prompts"
)

const Name = "ark"

// Config addresses an OpenAI-compatible endpoint. Endpoint values are the
// deployment ids the service routes on.
type Config struct {
	BaseURL        string
	TextEndpoint   string
	VisionEndpoint string
	ImageEndpoint  string
	HTTPClient     openai.HTTPDoer
}

type Client struct {
	cfg     Config
	key     provider.KeyFunc
	prompts *prompts.Prompts

	mu        sync.Mutex
	cachedKey string
	client    *openai.Client
}

func NewClient(cfg Config, key provider.KeyFunc, p *prompts.Prompts) *Client {
	if p == nil {
		p = prompts.Default()
	}
	return &Client{cfg: cfg, key: key, prompts: p}
}

func (c *Client) Name() string {
	return Name
}

func (c *Client) openaiClient() (*openai.Client, error) {
	key := c.key()
	if key == "" {
		return nil, failure.New(failure.MissingCredential, "ark client", failure.ErrMissingCredential)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.client != nil && c.cachedKey == key {
		return c.client, nil
	}

	config := openai.DefaultConfig(key)
	config.BaseURL = strings.TrimRight(c.cfg.BaseURL, "/")
	if c.cfg.HTTPClient != nil {
		config.HTTPClient = c.cfg.HTTPClient
	}
	c.client = openai.NewClientWithConfig(config)
	c.cachedKey = key
	return c.client, nil
}

func (c *Client) AnalyzeStyle(ctx context.Context, image []byte, mimeType string) (string, error) {
	client, err := c.openaiClient()
	if err != nil {
		return "", err
	}
	if mimeType == "" {
		mimeType = "image/jpeg"
	}
	dataURL := (&book.Image{Data: image, MIMEType: mimeType}).DataURL()

	slog.Debug("Calling Ark", "op", "analyze style", "endpoint", c.cfg.VisionEndpoint)
	resp, err := client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: c.cfg.VisionEndpoint,
		Messages: []openai.ChatCompletionMessage{
			{
				Role: openai.ChatMessageRoleUser,
				MultiContent: []openai.ChatMessagePart{
					{Type: openai.ChatMessagePartTypeText, Text: c.prompts.Style.Analyze},
					{Type: openai.ChatMessagePartTypeImageURL, ImageURL: &openai.ChatMessageImageURL{URL: dataURL}},
				},
			},
		},
	})
	if err != nil {
		return "", classify("analyze style", err)
	}
	return provider.NormalizeStyle(firstChoice(resp)), nil
}

func (c *Client) GenerateScript(ctx context.Context, brief book.Brief) (*book.Script, error) {
	client, err := c.openaiClient()
	if err != nil {
		return nil, err
	}

	prompt, err := c.prompts.RenderScript(prompts.ScriptParams{
		Title:        brief.Title,
		Theme:        brief.Theme,
		WordCount:    brief.WordCount,
		VisualAnchor: brief.VisualAnchor,
		StylePrompt:  brief.StylePrompt,
		Introduction: brief.Introduction,
	})
	if err != nil {
		return nil, fmt.Errorf("render prompt: %w", err)
	}

	slog.Debug("Calling Ark", "op", "generate script", "endpoint", c.cfg.TextEndpoint)
	resp, err := client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: c.cfg.TextEndpoint,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: c.prompts.System.ScriptJSON},
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		},
	})
	if err != nil {
		return nil, classify("generate script", err)
	}
	return provider.DecodeScript(firstChoice(resp))
}

func (c *Client) GenerateIllustration(ctx context.Context, req provider.IllustrationRequest) (*book.Image, error) {
	client, err := c.openaiClient()
	if err != nil {
		return nil, err
	}

	prompt, err := c.prompts.RenderArkIllustration(prompts.IllustrationParams{
		Scene:           req.Prompt,
		Style:           req.StylePrompt,
		VisualAnchor:    req.VisualAnchor,
		CharacterDesign: req.CharacterDesign,
	})
	if err != nil {
		return nil, fmt.Errorf("render prompt: %w", err)
	}

	slog.Debug("Calling Ark", "op", "generate illustration", "endpoint", c.cfg.ImageEndpoint)
	resp, err := client.CreateImage(ctx, openai.ImageRequest{
		Model:          c.cfg.ImageEndpoint,
		Prompt:         prompt,
		Size:           imageSize(req.AspectRatio),
		N:              1,
		ResponseFormat: openai.CreateImageResponseFormatB64JSON,
	})
	if err != nil {
		return nil, classify("generate illustration", err)
	}

	if len(resp.Data) == 0 || resp.Data[0].B64JSON == "" {
		return nil, failure.New(failure.Provider, "generate illustration", failure.ErrNoImage)
	}
	data, err := base64.StdEncoding.DecodeString(resp.Data[0].B64JSON)
	if err != nil {
		return nil, failure.New(failure.Provider, "decode illustration", err)
	}
	return &book.Image{Data: data, MIMEType: sniffImageType(data)}, nil
}

func sniffImageType(data []byte) string {
	if mime := http.DetectContentType(data); strings.HasPrefix(mime, "image/") {
		return mime
	}
	return "image/png"
}

func imageSize(ratio book.AspectRatio) string {
	if ratio == book.Portrait {
		return "720x1280"
	}
	return "1280x720"
}

func firstChoice(resp openai.ChatCompletionResponse) string {
	if len(resp.Choices) == 0 {
		return ""
	}
	return strings.TrimSpace(resp.Choices[0].Message.Content)
}

func classify(op string, err error) error {
	status := 0
	var apiErr *openai.APIError
	var reqErr *openai.RequestError
	switch {
	case errors.As(err, &apiErr):
		status = apiErr.HTTPStatusCode
	case errors.As(err, &reqErr):
		status = reqErr.HTTPStatusCode
	}
	if status == http.StatusUnauthorized || status == http.StatusForbidden {
		return failure.New(failure.CredentialRejected, op, err)
	}
	return failure.Wrap(op, err)
}
