package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"sync"

	"github.com/charmbracelet/huh"
	"github.com/charmbracelet/huh/spinner"
	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-isatty"

	"picturebook/internal/app"
	"picturebook/internal/credential"
	"picturebook/internal/failure"
	"picturebook/pkg/config"
)

var (
	titleStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("212")).MarginBottom(1)
	successStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
	warnStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("214"))
	infoStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("39"))
)

func interactive() bool {
	fd := os.Stdin.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}

// keyPicker asks for an API key on the terminal when none is configured.
// The key lives for the rest of the process only. While held, a spinner owns
// the terminal and prompts are skipped.
type keyPicker struct {
	provider string

	mu   sync.Mutex
	key  string
	held bool
}

func (p *keyPicker) HasSelected(_ context.Context) (bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.key != "", nil
}

func (p *keyPicker) OpenSelect(_ context.Context) error {
	p.mu.Lock()
	held := p.held
	p.mu.Unlock()
	if held {
		slog.Debug("Key prompt deferred until the running task ends")
		return nil
	}

	var key string
	err := huh.NewInput().
		Title(fmt.Sprintf("API key for %s", p.provider)).
		Description("No usable key was found. Paste one to continue, or run `picturebook setup` to store it.").
		EchoMode(huh.EchoModePassword).
		Value(&key).
		Run()
	if err != nil {
		return fmt.Errorf("select key: %w", err)
	}

	p.mu.Lock()
	p.key = strings.TrimSpace(key)
	p.mu.Unlock()
	return nil
}

func (p *keyPicker) Selected() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.key
}

func (p *keyPicker) hold(held bool) {
	p.mu.Lock()
	p.held = held
	p.mu.Unlock()
}

// terminalPicker is the picker attached by buildPipeline, nil without a
// terminal.
var terminalPicker *keyPicker

// buildPipeline loads config and wires a pipeline, attaching the terminal
// key picker when stdin is a terminal. A non-empty outputDir overrides the
// configured one.
func buildPipeline(ctx context.Context, outputDir string) (*app.Service, *app.Pipeline, error) {
	cfg, err := config.Load(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("load config: %w", err)
	}
	if outputDir != "" {
		cfg.Output.Dir = outputDir
	}

	var picker credential.Picker
	terminalPicker = nil
	if interactive() {
		terminalPicker = &keyPicker{provider: cfg.Provider}
		picker = terminalPicker
	}

	service, err := app.BuildService(ctx, cfg, picker)
	if err != nil {
		return nil, nil, fmt.Errorf("build service: %w", err)
	}
	return service, app.NewPipeline(service), nil
}

func runWithSpinner(title string, fn func() error) error {
	if !interactive() {
		return fn()
	}
	var err error
	_ = spinner.New().
		Title(title).
		Action(func() { err = fn() }).
		Run()
	if err != nil {
		return err
	}
	fmt.Println(successStyle.Render("✓ " + title))
	return nil
}

// runProviderStep runs a provider call behind a spinner. The key is settled
// before the spinner starts. If the key is rejected while it runs, the new
// key is asked for once the spinner stops and fn runs one more time.
func runProviderStep(ctx context.Context, creds *credential.Manager, title string, fn func() error) error {
	if terminalPicker == nil {
		return runWithSpinner(title, fn)
	}
	if !creds.Ensure(ctx) {
		return failure.New(failure.MissingCredential, "select key", failure.ErrMissingCredential)
	}

	attempt := func() error {
		terminalPicker.hold(true)
		defer terminalPicker.hold(false)
		return runWithSpinner(title, fn)
	}

	err := attempt()
	if err == nil || creds.State() != credential.Missing {
		return err
	}
	printFailure(err)
	if !creds.Ensure(ctx) {
		return err
	}
	return attempt()
}

func printFailure(err error) {
	fmt.Println(warnStyle.Render("✗ " + failure.Describe(err)))
}
