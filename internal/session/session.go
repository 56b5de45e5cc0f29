// Package session assembles the folding, token hiding and active line
// machinery for one editor from a config.Config.
package session

import (
	"context"
	"fmt"
	"maps"
	"time"

	"go.opentelemetry.io/otel/trace"

	"github.com/zjrosen/mdfold/internal/activeline"
	"github.com/zjrosen/mdfold/internal/codefold"
	"github.com/zjrosen/mdfold/internal/config"
	"github.com/zjrosen/mdfold/internal/editor"
	"github.com/zjrosen/mdfold/internal/fold"
	"github.com/zjrosen/mdfold/internal/folders"
	"github.com/zjrosen/mdfold/internal/hidetoken"
	"github.com/zjrosen/mdfold/internal/log"
	"github.com/zjrosen/mdfold/internal/pubsub"
	"github.com/zjrosen/mdfold/internal/sched"
	"github.com/zjrosen/mdfold/internal/span"
	"github.com/zjrosen/mdfold/internal/tracing"
	"github.com/zjrosen/mdfold/internal/ui/shared/markdown"
	"github.com/zjrosen/mdfold/internal/vault"
)

// Options carries the collaborators of a session. Only Config is needed;
// everything else has a default.
type Options struct {
	Config    config.Config
	Scheduler sched.Scheduler
	Tracer    trace.Tracer

	Vault *vault.Vault
	// SourcePath is the vault-relative path of the edited note.
	SourcePath string
	// Embed is shared between sessions so one watcher can invalidate it.
	Embed *folders.EmbedRenderer
	// Plugins backs the plugin code renderers. Nil installs the built-in
	// admonition plugin only.
	Plugins      codefold.PluginHost
	MathRenderer folders.MathRendererFunc
	HTMLChecker  func(html string) bool
}

// Status is the toggle state of a session, in the shape the config file
// stores it.
type Status struct {
	Fold       map[string]bool
	Code       map[string]bool
	HideTokens bool
	ActiveLine bool
}

// Session owns the engines attached to one editor.
type Session struct {
	ed       *editor.Editor
	cfg      config.Config
	spans    *span.Extractor
	registry *fold.Registry
	code     *codefold.Folder
	engine   *fold.Engine
	hide     *hidetoken.Engine
	active   *activeline.Tracker

	activeMode  activeline.Mode
	stopMark    func()
	unsubUnload func()
	closed      bool
}

// New builds a session for ed. The span extractor subscribes first so its
// cache is truncated before any engine reacts to an edit.
func New(ed *editor.Editor, opts Options) (*Session, error) {
	cfg := opts.Config
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if opts.Scheduler == nil {
		opts.Scheduler = sched.NewLoop(64)
	}
	if opts.Tracer == nil {
		opts.Tracer = tracing.Default()
	}

	s := &Session{ed: ed, cfg: cfg}
	s.spans = span.New(ed)

	md, err := markdown.New(cfg.Embed.Width, cfg.Theme)
	if err != nil {
		s.spans.Close()
		return nil, fmt.Errorf("markdown renderer: %w", err)
	}

	codeReg := codefold.NewRegistry()
	host := opts.Plugins
	if host == nil {
		host = codefold.Plugins{codefold.AdmonitionPlugin: codefold.NewBuiltinAdmonition(md)}
	}
	if err := codefold.RegisterBuiltins(codeReg, host, chromaStyle(cfg.Theme)); err != nil {
		s.spans.Close()
		return nil, fmt.Errorf("code renderers: %w", err)
	}
	s.code = codefold.NewFolder(codeReg, cfg.CodeStatus())

	embed := opts.Embed
	if embed == nil {
		embed = folders.NewEmbedRenderer(opts.Vault,
			folders.WithEmbedStyle(cfg.Theme, cfg.Embed.Width),
			folders.WithEmbedTTL(cfg.Embed.CacheTTL))
	}
	s.registry = fold.NewRegistry()
	if err := folders.Register(s.registry, folders.Options{
		Vault:        opts.Vault,
		SourcePath:   opts.SourcePath,
		MathRenderer: opts.MathRenderer,
		HTMLChecker:  opts.HTMLChecker,
		Emoji:        cfg.Emoji,
		Embed:        embed,
	}); err != nil {
		s.spans.Close()
		return nil, fmt.Errorf("folders: %w", err)
	}
	if err := s.registry.Register(s.code.Folder(), false); err != nil {
		s.spans.Close()
		return nil, fmt.Errorf("code folder: %w", err)
	}

	s.engine = fold.New(ed, s.registry,
		fold.WithScheduler(opts.Scheduler),
		fold.WithDebounce(orDefault(cfg.Debounce.Fold, fold.DefaultDebounce)),
		fold.WithTracer(opts.Tracer),
		fold.WithSpans(s.spans),
	)

	hideOpts := []hidetoken.Option{
		hidetoken.WithScheduler(opts.Scheduler),
		hidetoken.WithDelay(orDefault(cfg.Debounce.HideToken, hidetoken.DefaultDelay)),
		hidetoken.WithSpans(s.spans),
	}
	if cfg.HideToken.TokenTypes != nil {
		types := make([]span.Type, 0, len(cfg.HideToken.TokenTypes))
		for _, t := range cfg.HideToken.TokenTypes {
			types = append(types, span.Type(t))
		}
		hideOpts = append(hideOpts, hidetoken.WithTypes(types...))
	}
	s.hide = hidetoken.New(ed, hideOpts...)

	s.activeMode = activeline.CursorOnly
	if cfg.ActiveLine.NonEmpty {
		s.activeMode = activeline.NonEmpty
	}
	mode := activeline.Off
	if cfg.ActiveLine.Enabled {
		mode = s.activeMode
	}
	s.active = activeline.New(ed, mode)

	if cfg.MarkSelection {
		s.stopMark = editor.MarkSelection(ed)
	}

	for name, on := range cfg.FoldStatus() {
		if err := s.engine.SetStatus(name, on); err != nil {
			log.Warn(log.CatConfig, "ignoring fold setting", "type", name, "error", err)
		}
	}
	s.hide.SetEnabled(cfg.HideToken.Enabled)

	s.unsubUnload = ed.OnUnload(s.Close)
	log.Info(log.CatFold, "session started",
		"lines", ed.LineCount(), "source", opts.SourcePath, "hide_tokens", cfg.HideToken.Enabled, "active_line", mode)
	return s, nil
}

func orDefault(d, def time.Duration) time.Duration {
	if d > 0 {
		return d
	}
	return def
}

// chromaStyle picks the highlight style matching a markdown theme.
func chromaStyle(theme string) string {
	switch theme {
	case markdown.StyleLight:
		return "github"
	case markdown.StylePlain:
		return "bw"
	}
	return "monokai"
}

// Editor returns the editor the session drives.
func (s *Session) Editor() *editor.Editor { return s.ed }

// Engine returns the fold engine.
func (s *Session) Engine() *fold.Engine { return s.engine }

// CodeFolder returns the fenced code folder.
func (s *Session) CodeFolder() *codefold.Folder { return s.code }

// HideTokens returns the token hiding engine.
func (s *Session) HideTokens() *hidetoken.Engine { return s.hide }

// ActiveLine returns the active line tracker.
func (s *Session) ActiveLine() *activeline.Tracker { return s.active }

// Spans returns the shared span extractor.
func (s *Session) Spans() *span.Extractor { return s.spans }

// ToggleFold flips one fold type and returns its new state.
func (s *Session) ToggleFold(typ string) (bool, error) {
	on := !s.engine.Enabled(typ)
	if err := s.engine.SetStatus(typ, on); err != nil {
		return false, err
	}
	return on, nil
}

// ToggleCodeRenderer flips one code renderer and refolds code blocks.
func (s *Session) ToggleCodeRenderer(name string) (bool, error) {
	on := !s.code.Enabled(name)
	if err := s.code.SetEnabled(name, on); err != nil {
		return false, err
	}
	if s.engine.Enabled(codefold.FoldType) {
		s.engine.Clear(codefold.FoldType)
		vp := s.ed.Viewport()
		s.engine.StartFoldImmediately(vp.From, vp.To-1)
	}
	return on, nil
}

// ToggleHideTokens flips token hiding and returns its new state.
func (s *Session) ToggleHideTokens() bool {
	on := !s.hide.Enabled()
	s.hide.SetEnabled(on)
	return on
}

// ToggleActiveLine flips active line styling and returns its new state.
func (s *Session) ToggleActiveLine() bool {
	if s.active.Mode() == activeline.Off {
		s.active.SetMode(s.activeMode)
		return true
	}
	s.active.SetMode(activeline.Off)
	return false
}

// Status returns the current toggle state.
func (s *Session) Status() Status {
	return Status{
		Fold:       s.engine.Status(),
		Code:       maps.Clone(s.code.Status()),
		HideTokens: s.hide.Enabled(),
		ActiveLine: s.active.Mode() != activeline.Off,
	}
}

// Subscribe returns fold events until ctx is done.
func (s *Session) Subscribe(ctx context.Context) <-chan pubsub.Event[fold.Event] {
	return s.engine.Subscribe(ctx)
}

// Handle registers a synchronous fold event handler.
func (s *Session) Handle(fn func(pubsub.Event[fold.Event])) func() {
	return s.engine.Handle(fn)
}

// Close detaches every engine, clearing all folds, hidden tokens and line
// classes. It runs automatically when the editor unloads.
func (s *Session) Close() {
	if s.closed {
		return
	}
	s.closed = true
	if s.stopMark != nil {
		s.stopMark()
	}
	s.hide.Close()
	s.active.Close()
	s.engine.Unload()
	s.spans.Close()
	if s.unsubUnload != nil {
		s.unsubUnload()
	}
	log.Debug(log.CatFold, "session closed")
}
