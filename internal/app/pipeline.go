package app

import (
	"context"
	"errors"
	"log/slog"
	"slices"
	"sync"

	"golang.org/x/sync/errgroup"

	"picturebook/internal/book"
	"picturebook/internal/credential"
	"picturebook/internal/deck"
	"picturebook/internal/failure"
	"picturebook/internal/provider"
)

type Stage int

const (
	StageScript Stage = iota
	StageCover
	StageStoryboard
	StageDeck
)

func (s Stage) String() string {
	switch s {
	case StageCover:
		return "cover"
	case StageStoryboard:
		return "storyboard"
	case StageDeck:
		return "deck"
	default:
		return "script"
	}
}

// Snapshot is a consistent copy of the pipeline state. Document is nil when
// no book has been generated.
type Snapshot struct {
	Stage      Stage
	Document   *book.Document
	Scripting  bool
	Credential credential.State
}

// Observer receives every new Snapshot. Observers run with the pipeline
// locked and must not call back into it.
type Observer func(Snapshot)

// Pipeline owns the single book being worked on. Every change to it is a
// book.Delta applied under the lock, so concurrent illustration requests
// merge by frame identity.
type Pipeline struct {
	service *Service

	mu        sync.Mutex
	doc       *book.Document
	stage     Stage
	scripting int
	scriptSeq uint64
	observers []Observer
}

func NewPipeline(service *Service) *Pipeline {
	return &Pipeline{service: service}
}

func (p *Pipeline) Subscribe(fn Observer) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.observers = append(p.observers, fn)
}

func (p *Pipeline) State() Snapshot {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.snapshotLocked()
}

func (p *Pipeline) SetStage(stage Stage) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.stage = stage
	p.notifyLocked()
}

// Discard drops the current book. Results still in flight for it are
// ignored when they arrive.
func (p *Pipeline) Discard() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.doc = nil
	p.scriptSeq++
	p.stage = StageScript
	p.notifyLocked()
}

// SubmitScript generates a new book from brief and replaces the current
// one. A brief without a title is ignored. On failure the current book is
// left as it was.
func (p *Pipeline) SubmitScript(ctx context.Context, brief book.Brief) error {
	const op = "generate script"

	brief = brief.Normalize()
	if !brief.Ready() {
		return nil
	}

	creds := p.service.Credentials()
	if !creds.Ensure(ctx) {
		p.touch()
		return failure.New(failure.MissingCredential, op, failure.ErrMissingCredential)
	}

	key := creds.Key()
	seq := p.beginScript()
	slog.Info("Generating script...", "title", brief.Title, "words", brief.WordCount, "provider", p.service.Provider().Name())

	script, err := p.service.Provider().GenerateScript(ctx, brief)
	if err != nil {
		err = creds.HandleError(ctx, op, key, err)
		p.endScript(seq, nil)
		return err
	}

	doc, err := book.Assemble(brief, script)
	if err != nil {
		p.endScript(seq, nil)
		return failure.Wrap(op, err)
	}

	if !p.endScript(seq, &doc) {
		slog.Debug("Dropping script for a discarded request", "title", doc.Title)
		return nil
	}
	slog.Info("Script ready", "title", doc.Title, "frames", len(doc.Frames))
	return nil
}

// RequestFrameImage illustrates one frame. The frame is marked in flight
// before the provider is called. Unknown frames and frames already in
// flight are ignored.
func (p *Pipeline) RequestFrameImage(ctx context.Context, frameID string) error {
	const op = "generate illustration"

	if _, ok := p.frame(frameID); !ok {
		return nil
	}

	creds := p.service.Credentials()
	if !creds.Ensure(ctx) {
		p.touch()
		return failure.New(failure.MissingCredential, op, failure.ErrMissingCredential)
	}

	docID, req, ok := p.startFrame(frameID)
	if !ok {
		return nil
	}
	slog.Debug("Generating illustration", "frame", frameID)

	img, err := p.illustrate(ctx, op, creds.Key(), req)
	if err != nil {
		slog.Warn("Illustration failed", "frame", frameID, "error", err)
		p.update(docID, book.FailFrame(frameID, failure.Describe(err)))
		return err
	}

	if p.update(docID, book.SettleFrame(frameID, img)) {
		slog.Info("Illustration ready", "frame", frameID, "bytes", len(img.Data))
	}
	return nil
}

// RequestFrameImages illustrates the given frames concurrently, or every
// frame still without an image when ids is empty. Failures are joined.
func (p *Pipeline) RequestFrameImages(ctx context.Context, ids ...string) error {
	if len(ids) == 0 {
		ids = p.pendingFrames()
	}

	errs := make([]error, len(ids))
	var g errgroup.Group
	for i, id := range ids {
		g.Go(func() error {
			errs[i] = p.RequestFrameImage(ctx, id)
			return nil
		})
	}
	_ = g.Wait()

	return errors.Join(errs...)
}

// RequestCover illustrates the cover slot. An empty ratio uses the
// configured default.
func (p *Pipeline) RequestCover(ctx context.Context, ratio book.AspectRatio) error {
	const op = "generate cover"

	if ratio == "" {
		ratio = p.coverAspect()
	}
	if err := ratio.Validate(); err != nil {
		return failure.New(failure.Provider, op, err)
	}

	if p.State().Document == nil {
		return nil
	}

	creds := p.service.Credentials()
	if !creds.Ensure(ctx) {
		p.touch()
		return failure.New(failure.MissingCredential, op, failure.ErrMissingCredential)
	}

	docID, req, ok := p.startCover(ratio)
	if !ok {
		return nil
	}
	slog.Debug("Generating cover", "ratio", ratio)

	img, err := p.illustrate(ctx, op, creds.Key(), req)
	if err != nil {
		slog.Warn("Cover failed", "error", err)
		p.update(docID, book.FailCover(failure.Describe(err)))
		return err
	}

	p.update(docID, book.SettleCover(img))
	return nil
}

// AnalyzeStyle describes the art style of a reference image for use as a
// style prompt.
func (p *Pipeline) AnalyzeStyle(ctx context.Context, image []byte, mimeType string) (string, error) {
	const op = "analyze style"

	if len(image) == 0 {
		return "", failure.Newf(failure.Provider, op, "reference image is empty")
	}

	creds := p.service.Credentials()
	if !creds.Ensure(ctx) {
		p.touch()
		return "", failure.New(failure.MissingCredential, op, failure.ErrMissingCredential)
	}

	key := creds.Key()
	style, err := p.service.Provider().AnalyzeStyle(ctx, image, mimeType)
	if err != nil {
		return "", creds.HandleError(ctx, op, key, err)
	}
	return provider.NormalizeStyle(style), nil
}

// Export renders the current book as a slide deck.
func (p *Pipeline) Export() (*deck.Result, error) {
	snap := p.State()
	if snap.Document == nil {
		return nil, failure.Newf(failure.Export, "export deck", "no book to export")
	}

	result, err := deck.Export(*snap.Document)
	if err != nil {
		return nil, err
	}
	slog.Info("Deck exported", "name", result.Name, "slides", result.Slides)
	return result, nil
}

// Save writes an exported deck to local storage and returns its path.
func (p *Pipeline) Save(ctx context.Context, result *deck.Result) (string, error) {
	store := p.service.Storage()
	if store == nil {
		return "", failure.Newf(failure.Export, "save deck", "no output storage configured")
	}
	location, err := store.Save(ctx, result.Name, result.Data)
	if err != nil {
		return "", failure.New(failure.Export, "save deck", err)
	}
	return location, nil
}

// Upload copies an exported deck to the remote store.
func (p *Pipeline) Upload(ctx context.Context, result *deck.Result) (string, error) {
	store := p.service.Uploads()
	if store == nil {
		return "", failure.Newf(failure.Export, "upload deck", "no remote storage configured (set GCS_BUCKET)")
	}
	location, err := store.Save(ctx, result.Name, result.Data)
	if err != nil {
		return "", failure.New(failure.Export, "upload deck", err)
	}
	slog.Info("Deck uploaded", "location", location)
	return location, nil
}

// illustrate calls the provider with the current key; key is what a
// rejection is charged against.
func (p *Pipeline) illustrate(ctx context.Context, op, key string, req provider.IllustrationRequest) (*book.Image, error) {
	img, err := p.service.Provider().GenerateIllustration(ctx, req)
	if err != nil {
		return nil, p.service.Credentials().HandleError(ctx, op, key, err)
	}
	if img == nil || len(img.Data) == 0 {
		return nil, failure.New(failure.Provider, op, failure.ErrNoImage)
	}
	return img, nil
}

func (p *Pipeline) beginScript() uint64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.scripting++
	p.scriptSeq++
	p.notifyLocked()
	return p.scriptSeq
}

// endScript installs doc if no later script request or discard happened
// since seq was issued.
func (p *Pipeline) endScript(seq uint64, doc *book.Document) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.scripting--

	installed := doc != nil && seq == p.scriptSeq
	if installed {
		p.doc = doc
		p.stage = StageStoryboard
	}
	p.notifyLocked()
	return installed
}

func (p *Pipeline) startFrame(frameID string) (string, provider.IllustrationRequest, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.doc == nil {
		return "", provider.IllustrationRequest{}, false
	}
	frame, ok := p.doc.Frame(frameID)
	if !ok || frame.Status == book.InFlight {
		return "", provider.IllustrationRequest{}, false
	}

	next := book.MarkFrameInFlight(frameID)(*p.doc)
	p.doc = &next
	p.notifyLocked()

	return next.ID, provider.IllustrationRequest{
		Prompt:          frame.SceneDescription,
		StylePrompt:     next.StylePrompt,
		VisualAnchor:    next.VisualAnchor,
		CharacterDesign: next.CharacterDesign,
		AspectRatio:     p.frameAspect(),
	}, true
}

func (p *Pipeline) startCover(ratio book.AspectRatio) (string, provider.IllustrationRequest, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.doc == nil || p.doc.Cover.Status == book.InFlight {
		return "", provider.IllustrationRequest{}, false
	}

	next := book.MarkCoverInFlight(ratio)(*p.doc)
	p.doc = &next
	p.notifyLocked()

	return next.ID, provider.IllustrationRequest{
		Prompt:          p.service.Prompts().GuardCover(next.CoverPrompt),
		StylePrompt:     next.StylePrompt,
		VisualAnchor:    next.VisualAnchor,
		CharacterDesign: next.CharacterDesign,
		AspectRatio:     ratio,
	}, true
}

// update applies delta to the book identified by docID. It reports false
// and changes nothing when that book has since been replaced.
func (p *Pipeline) update(docID string, delta book.Delta) bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.doc == nil || p.doc.ID != docID {
		slog.Debug("Dropping result for a replaced book", "document", docID)
		return false
	}
	next := delta(*p.doc)
	p.doc = &next
	p.notifyLocked()
	return true
}

func (p *Pipeline) frame(frameID string) (book.Frame, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.doc == nil {
		return book.Frame{}, false
	}
	return p.doc.Frame(frameID)
}

func (p *Pipeline) pendingFrames() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.doc == nil {
		return nil
	}
	var ids []string
	for _, f := range p.doc.Frames {
		if f.Status != book.Ready && f.Status != book.InFlight {
			ids = append(ids, f.ID)
		}
	}
	return ids
}

func (p *Pipeline) touch() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.notifyLocked()
}

func (p *Pipeline) snapshotLocked() Snapshot {
	snap := Snapshot{
		Stage:      p.stage,
		Scripting:  p.scripting > 0,
		Credential: p.service.Credentials().State(),
	}
	if p.doc != nil {
		doc := *p.doc
		doc.Frames = slices.Clone(doc.Frames)
		snap.Document = &doc
	}
	return snap
}

func (p *Pipeline) notifyLocked() {
	if len(p.observers) == 0 {
		return
	}
	snap := p.snapshotLocked()
	for _, fn := range p.observers {
		fn(snap)
	}
}

func (p *Pipeline) frameAspect() book.AspectRatio {
	if cfg := p.service.Config(); cfg != nil && cfg.Book.FrameAspectRatio != "" {
		return book.AspectRatio(cfg.Book.FrameAspectRatio)
	}
	return book.Landscape
}

func (p *Pipeline) coverAspect() book.AspectRatio {
	if cfg := p.service.Config(); cfg != nil && cfg.Book.CoverAspectRatio != "" {
		return book.AspectRatio(cfg.Book.CoverAspectRatio)
	}
	return book.Landscape
}
