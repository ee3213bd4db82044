package prompts

import (
	"bytes"
	_ "embed"
	"fmt"
	"os"
	"strings"
	"text/template"

	"gopkg.in/yaml.v3"
)

//go:embed prompts.yaml
var defaultPrompts []byte

type Prompts struct {
	System       SystemPrompts       `yaml:"system"`
	Script       ScriptPrompts       `yaml:"script"`
	Style        StylePrompts        `yaml:"style"`
	Illustration IllustrationPrompts `yaml:"illustration"`
	Cover        CoverPrompts        `yaml:"cover"`
}

type SystemPrompts struct {
	Script     string `yaml:"script"`
	ScriptJSON string `yaml:"script_json"`
}

type ScriptPrompts struct {
	User string `yaml:"user"`
}

type StylePrompts struct {
	Analyze string `yaml:"analyze"`
}

type IllustrationPrompts struct {
	Gemini string `yaml:"gemini"`
	Ark    string `yaml:"ark"`
}

type CoverPrompts struct {
	Guard string `yaml:"guard"`
}

type ScriptParams struct {
	Title        string
	Theme        string
	WordCount    int
	VisualAnchor string
	StylePrompt  string
	Introduction string
}

type IllustrationParams struct {
	Scene           string
	Style           string
	VisualAnchor    string
	CharacterDesign string
}

// Default returns the prompts compiled into the binary.
func Default() *Prompts {
	var p Prompts
	if err := yaml.Unmarshal(defaultPrompts, &p); err != nil {
		panic(fmt.Sprintf("embedded prompts.yaml: %v", err))
	}
	return &p
}

// Load reads an override file when path is set. Sections missing from the
// override keep their built-in text.
func Load(path string) (*Prompts, error) {
	if path == "" {
		return Default(), nil
	}
	return LoadFrom(path)
}

func LoadFrom(path string) (*Prompts, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read prompts file: %w", err)
	}

	p := Default()
	if err := yaml.Unmarshal(data, p); err != nil {
		return nil, fmt.Errorf("failed to parse prompts file: %w", err)
	}

	return p, nil
}

func (p *Prompts) RenderScript(params ScriptParams) (string, error) {
	return render(p.Script.User, params)
}

func (p *Prompts) RenderGeminiIllustration(params IllustrationParams) (string, error) {
	return render(p.Illustration.Gemini, params)
}

func (p *Prompts) RenderArkIllustration(params IllustrationParams) (string, error) {
	return render(p.Illustration.Ark, params)
}

// GuardCover appends the no-text guard to a cover prompt.
func (p *Prompts) GuardCover(coverPrompt string) string {
	coverPrompt = strings.TrimRight(strings.TrimSpace(coverPrompt), ".")
	if coverPrompt == "" {
		return p.Cover.Guard
	}
	return coverPrompt + ". " + p.Cover.Guard
}

func render(tmpl string, data any) (string, error) {
	t, err := template.New("prompt").Parse(tmpl)
	if err != nil {
		return "", fmt.Errorf("failed to parse template: %w", err)
	}

	var buf bytes.Buffer
	if err := t.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("failed to execute template: %w", err)
	}

	return buf.String(), nil
}
