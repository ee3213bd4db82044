package credential

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"

	"picturebook/internal/failure"
)

type State int

const (
	Checking State = iota
	Ready
	Missing
)

func (s State) String() string {
	switch s {
	case Ready:
		return "ready"
	case Missing:
		return "missing"
	default:
		return "checking"
	}
}

// Source yields a key from somewhere outside the process, or "" if it has
// none.
type Source interface {
	Lookup(ctx context.Context) (string, error)
}

// Picker lets the user choose a key interactively.
type Picker interface {
	HasSelected(ctx context.Context) (bool, error)
	OpenSelect(ctx context.Context) error
	Selected() string
}

type Options struct {
	Sources      []Source
	Picker       Picker
	MinKeyLength int
}

// Manager owns the credential state. Only Ensure and HandleError write it.
// Keys the provider rejected are remembered and never handed out again.
type Manager struct {
	sources   []Source
	picker    Picker
	minLength int

	// prompt serializes picker use, so concurrent callers share one prompt.
	prompt sync.Mutex

	mu       sync.RWMutex
	state    State
	key      string
	rejected map[string]struct{}
}

func NewManager(opts Options) *Manager {
	minLength := opts.MinKeyLength
	if minLength <= 0 {
		minLength = 1
	}
	return &Manager{
		sources:   opts.Sources,
		picker:    opts.Picker,
		minLength: minLength,
		state:     Checking,
		rejected:  make(map[string]struct{}),
	}
}

func (m *Manager) State() State {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.state
}

func (m *Manager) Key() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.key
}

func (m *Manager) set(state State, key string) {
	m.mu.Lock()
	prev := m.state
	m.state = state
	m.key = key
	m.mu.Unlock()

	if prev != state {
		slog.Info("Credential state changed", "from", prev, "to", state)
	}
}

// Ensure reports whether a usable key is available, asking the picker when
// no source has one. It never fails: every problem degrades to Missing.
func (m *Manager) Ensure(ctx context.Context) bool {
	if key := m.lookup(ctx); key != "" {
		m.set(Ready, key)
		return true
	}

	if m.picker == nil {
		m.set(Missing, "")
		return false
	}

	m.prompt.Lock()
	defer m.prompt.Unlock()

	// Another caller may have finished a prompt while this one waited.
	if key, ok := m.fromPicker(ctx); ok {
		m.set(Ready, key)
		return true
	}

	if err := m.picker.OpenSelect(ctx); err != nil {
		slog.Warn("Key selection failed", "error", err)
		m.set(Missing, "")
		return false
	}

	if key, ok := m.fromPicker(ctx); ok {
		m.set(Ready, key)
		return true
	}

	m.set(Missing, "")
	return false
}

func (m *Manager) lookup(ctx context.Context) string {
	for _, src := range m.sources {
		key, err := src.Lookup(ctx)
		if err != nil {
			slog.Debug("Credential source failed", "error", err)
			continue
		}
		if m.acceptable(key) {
			return strings.TrimSpace(key)
		}
	}
	return ""
}

func (m *Manager) fromPicker(ctx context.Context) (string, bool) {
	selected, err := m.picker.HasSelected(ctx)
	if err != nil {
		slog.Warn("Key picker unavailable", "error", err)
		return "", false
	}
	if !selected {
		return "", false
	}
	key := strings.TrimSpace(m.picker.Selected())
	if !m.acceptable(key) {
		return "", false
	}
	return key, true
}

func (m *Manager) acceptable(key string) bool {
	key = strings.TrimSpace(key)
	if len(key) < m.minLength || strings.ContainsAny(key, " \t\r\n") {
		return false
	}
	m.mu.RLock()
	_, bad := m.rejected[key]
	m.mu.RUnlock()
	return !bad
}

// HandleError classifies a provider failure. key is the one the failed call
// used. A rejected key is never handed out again. The first failure for it
// moves the state to Missing and reopens the picker so the next Ensure can
// pick up a replacement.
func (m *Manager) HandleError(ctx context.Context, op, key string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.Canceled) {
		return failure.New(failure.Provider, op, err)
	}

	wrapped := failure.Wrap(op, err)
	if failure.Classify(wrapped) != failure.CredentialRejected {
		return wrapped
	}

	if !m.reject(strings.TrimSpace(key)) {
		slog.Debug("API key already rejected", "op", op)
		return wrapped
	}
	slog.Warn("API key rejected", "op", op, "error", err)

	if m.picker != nil {
		m.reacquire(ctx)
	}
	return wrapped
}

// reacquire opens the picker unless a usable key turned up while waiting
// for the prompt.
func (m *Manager) reacquire(ctx context.Context) {
	m.prompt.Lock()
	defer m.prompt.Unlock()

	if m.lookup(ctx) != "" {
		return
	}
	if _, ok := m.fromPicker(ctx); ok {
		return
	}
	if err := m.picker.OpenSelect(ctx); err != nil {
		slog.Warn("Key selection failed", "error", err)
	}
}

// reject records key as unusable and clears it if it is the current one.
// It reports false when key had already been rejected.
func (m *Manager) reject(key string) bool {
	m.mu.Lock()
	if key != "" {
		if _, seen := m.rejected[key]; seen {
			m.mu.Unlock()
			return false
		}
		m.rejected[key] = struct{}{}
	}
	prev := m.state
	if key == "" || m.key == key {
		m.state = Missing
		m.key = ""
	}
	state := m.state
	m.mu.Unlock()

	if prev != state {
		slog.Info("Credential state changed", "from", prev, "to", state)
	}
	return true
}
