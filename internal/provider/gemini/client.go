package gemini

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"sync"

	"google.golang.org/genai"

	"picturebook/internal/book"
	"picturebook/internal/failure"
	"picturebook/internal/provider"
	"picturebook/pkg/prompts"
)

const Name = "gemini"

type Config struct {
	ScriptModel string
	VisionModel string
	ImageModel  string
	BaseURL     string
	HTTPClient  *http.Client
}

type Client struct {
	cfg     Config
	key     provider.KeyFunc
	prompts *prompts.Prompts

	mu        sync.Mutex
	cachedKey string
	client    *genai.Client
}

var frameSchema = &genai.Schema{
	Type: genai.TypeObject,
	Properties: map[string]*genai.Schema{
		"id":               {Type: genai.TypeString},
		"storyText":        {Type: genai.TypeString, Description: "Text printed on the page"},
		"sceneDescription": {Type: genai.TypeString, Description: "Visual description for the illustrator"},
	},
	Required: []string{"id", "storyText", "sceneDescription"},
}

var scriptSchema = &genai.Schema{
	Type: genai.TypeObject,
	Properties: map[string]*genai.Schema{
		"title":           {Type: genai.TypeString},
		"introduction":    {Type: genai.TypeString},
		"characterDesign": {Type: genai.TypeString, Description: "Detailed visual traits of the main characters"},
		"coverPrompt":     {Type: genai.TypeString, Description: "Purely visual cover description without any text"},
		"frames":          {Type: genai.TypeArray, Items: frameSchema},
	},
	Required: []string{"title", "introduction", "characterDesign", "coverPrompt", "frames"},
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

// genaiClient returns a client bound to the current key, rebuilding it when
// the key has changed since the last call.
func (c *Client) genaiClient(ctx context.Context) (*genai.Client, error) {
	key := c.key()
	if key == "" {
		return nil, failure.New(failure.MissingCredential, "gemini client", failure.ErrMissingCredential)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.client != nil && c.cachedKey == key {
		return c.client, nil
	}

	cc := &genai.ClientConfig{
		APIKey:     key,
		Backend:    genai.BackendGeminiAPI,
		HTTPClient: c.cfg.HTTPClient,
	}
	if c.cfg.BaseURL != "" {
		cc.HTTPOptions = genai.HTTPOptions{BaseURL: c.cfg.BaseURL}
	}

	client, err := genai.NewClient(ctx, cc)
	if err != nil {
		return nil, fmt.Errorf("create gemini client: %w", err)
	}
	c.client = client
	c.cachedKey = key
	return client, nil
}

func (c *Client) AnalyzeStyle(ctx context.Context, image []byte, mimeType string) (string, error) {
	if mimeType == "" {
		mimeType = "image/jpeg"
	}
	contents := []*genai.Content{
		genai.NewContentFromParts([]*genai.Part{
			genai.NewPartFromBytes(image, mimeType),
			genai.NewPartFromText(c.prompts.Style.Analyze),
		}, genai.RoleUser),
	}

	resp, err := c.generate(ctx, "analyze style", c.cfg.VisionModel, contents, nil)
	if err != nil {
		return "", err
	}
	return provider.NormalizeStyle(responseText(resp)), nil
}

func (c *Client) GenerateScript(ctx context.Context, brief book.Brief) (*book.Script, error) {
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

	config := &genai.GenerateContentConfig{
		SystemInstruction: &genai.Content{
			Parts: []*genai.Part{{Text: c.prompts.System.Script}},
		},
		ResponseMIMEType: "application/json",
		ResponseSchema:   scriptSchema,
	}

	resp, err := c.generate(ctx, "generate script", c.cfg.ScriptModel, genai.Text(prompt), config)
	if err != nil {
		return nil, err
	}
	return provider.DecodeScript(responseText(resp))
}

func (c *Client) GenerateIllustration(ctx context.Context, req provider.IllustrationRequest) (*book.Image, error) {
	prompt, err := c.prompts.RenderGeminiIllustration(prompts.IllustrationParams{
		Scene:           req.Prompt,
		Style:           req.StylePrompt,
		VisualAnchor:    req.VisualAnchor,
		CharacterDesign: req.CharacterDesign,
	})
	if err != nil {
		return nil, fmt.Errorf("render prompt: %w", err)
	}

	ratio := req.AspectRatio
	if ratio == "" {
		ratio = book.Landscape
	}
	config := &genai.GenerateContentConfig{
		ImageConfig: &genai.ImageConfig{AspectRatio: string(ratio)},
	}

	resp, err := c.generate(ctx, "generate illustration", c.cfg.ImageModel, genai.Text(prompt), config)
	if err != nil {
		return nil, err
	}

	for _, cand := range resp.Candidates {
		if cand.Content == nil {
			continue
		}
		for _, part := range cand.Content.Parts {
			if part.InlineData != nil && len(part.InlineData.Data) > 0 {
				mime := part.InlineData.MIMEType
				if mime == "" {
					mime = "image/png"
				}
				return &book.Image{Data: part.InlineData.Data, MIMEType: mime}, nil
			}
		}
	}
	return nil, failure.New(failure.Provider, "generate illustration", failure.ErrNoImage)
}

func (c *Client) generate(ctx context.Context, op, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error) {
	client, err := c.genaiClient(ctx)
	if err != nil {
		return nil, err
	}

	slog.Debug("Calling Gemini", "op", op, "model", model)
	resp, err := client.Models.GenerateContent(ctx, model, contents, config)
	if err != nil {
		return nil, classify(op, err)
	}
	return resp, nil
}

func classify(op string, err error) error {
	if apiErr, ok := asAPIError(err); ok {
		switch {
		case apiErr.Code == http.StatusUnauthorized, apiErr.Code == http.StatusForbidden:
			return failure.New(failure.CredentialRejected, op, err)
		case apiErr.Code == http.StatusNotFound && strings.Contains(apiErr.Message, "Requested entity was not found"):
			return failure.New(failure.CredentialRejected, op, err)
		}
	}
	return failure.Wrap(op, err)
}

func asAPIError(err error) (genai.APIError, bool) {
	var apiErr genai.APIError
	if errors.As(err, &apiErr) {
		return apiErr, true
	}
	var apiErrPtr *genai.APIError
	if errors.As(err, &apiErrPtr) && apiErrPtr != nil {
		return *apiErrPtr, true
	}
	return genai.APIError{}, false
}

func responseText(resp *genai.GenerateContentResponse) string {
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return ""
	}
	var sb strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		sb.WriteString(part.Text)
	}
	return strings.TrimSpace(sb.String())
}
