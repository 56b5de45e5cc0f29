// Package codefold folds fenced code blocks whose language has a renderer
// (dataview, admonitions, charts, highlighted source) and shows the
// rendered result in a widget under the closing fence.
package codefold

import (
	"cmp"
	"errors"
	"fmt"
	"regexp"
	"slices"
	"strings"

	"github.com/zjrosen/mdfold/internal/editor"
	"github.com/zjrosen/mdfold/internal/sched"
)

// ErrRendererExists is returned when registering a taken name without force.
var ErrRendererExists = errors.New("code renderer already registered")

// Matcher reports whether a renderer handles a (lowercased) language.
type Matcher func(lang string) bool

// Exact matches one language name, ignoring case.
func Exact(name string) Matcher {
	return func(lang string) bool { return strings.EqualFold(lang, name) }
}

// Pattern matches languages against a regexp.
func Pattern(expr string) Matcher {
	re := regexp.MustCompile(expr)
	return re.MatchString
}

// Context is what a renderer knows about the block it renders.
type Context struct {
	Lang       string
	Attributes Attributes
	Editor     *editor.Editor
	Scheduler  sched.Scheduler
	// Line is the opening fence line.
	Line int
}

// Result is a renderer's output.
type Result struct {
	Element *editor.Element
	// AsyncRender, when set, runs once right after the widget is inserted
	// and calls changed whenever the element's size may have changed.
	AsyncRender func(changed func())
	// OnRemove runs when the fold is torn down.
	OnRemove func()
}

// RenderFunc renders the code between the fences.
type RenderFunc func(code string, ctx Context) (Result, error)

// Renderer is a registry entry.
type Renderer struct {
	Name      string
	Match     Matcher
	Render    RenderFunc
	Suggested bool
	// Priority orders renderers matching the same language: higher first,
	// then registration order.
	Priority int
}

type entry struct {
	Renderer
	seq int
}

// Registry is the catalog of code renderers.
type Registry struct {
	entries map[string]*entry
	seq     int
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{entries: make(map[string]*entry)}
}

// Register adds r. A taken name fails with ErrRendererExists unless force
// is set, in which case r replaces the old entry in its slot.
func (r *Registry) Register(rr Renderer, force bool) error {
	if rr.Name == "" || rr.Match == nil || rr.Render == nil {
		return fmt.Errorf("register code renderer %q: name, matcher and render func are required", rr.Name)
	}
	if old, ok := r.entries[rr.Name]; ok {
		if !force {
			return fmt.Errorf("code renderer %s: %w", rr.Name, ErrRendererExists)
		}
		old.Renderer = rr
		return nil
	}
	r.entries[rr.Name] = &entry{Renderer: rr, seq: r.seq}
	r.seq++
	return nil
}

// Get returns the renderer registered as name.
func (r *Registry) Get(name string) (Renderer, bool) {
	e, ok := r.entries[name]
	if !ok {
		return Renderer{}, false
	}
	return e.Renderer, true
}

// Renderers returns the entries in match order.
func (r *Registry) Renderers() []Renderer {
	es := make([]*entry, 0, len(r.entries))
	for _, e := range r.entries {
		es = append(es, e)
	}
	slices.SortFunc(es, func(a, b *entry) int {
		if c := cmp.Compare(b.Priority, a.Priority); c != 0 {
			return c
		}
		return cmp.Compare(a.seq, b.seq)
	})
	out := make([]Renderer, len(es))
	for i, e := range es {
		out[i] = e.Renderer
	}
	return out
}

// Names returns renderer names in match order.
func (r *Registry) Names() []string {
	var names []string
	for _, rr := range r.Renderers() {
		names = append(names, rr.Name)
	}
	return names
}

// Suggested returns the default enabled state of every renderer.
func (r *Registry) Suggested() map[string]bool {
	out := make(map[string]bool, len(r.entries))
	for name, e := range r.entries {
		out[name] = e.Suggested
	}
	return out
}

// Match returns the first renderer in match order that is enabled and
// handles lang.
func (r *Registry) Match(lang string, enabled func(name string) bool) (Renderer, bool) {
	for _, rr := range r.Renderers() {
		if enabled(rr.Name) && rr.Match(lang) {
			return rr, true
		}
	}
	return Renderer{}, false
}
