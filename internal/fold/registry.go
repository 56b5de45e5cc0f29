// Package fold replaces ranges of markdown with rendered widgets.
//
// A Registry is the catalog of fold types. Each Engine (one per editor)
// keeps its own enabled subset, scans visible and edited lines, runs the
// enabled detectors over unclaimed tokens and owns the resulting markers
// until their text changes, the cursor enters them, their type is disabled
// or the editor unloads.
package fold

import (
	"cmp"
	"errors"
	"fmt"
	"slices"

	"github.com/zjrosen/mdfold/internal/mdtoken"
)

var (
	// ErrFolderExists is returned when registering a taken name without force.
	ErrFolderExists = errors.New("folder already registered")
	// ErrUnknownFolder is returned for a fold type missing from the registry.
	ErrUnknownFolder = errors.New("unknown folder")
)

// Detector inspects the token under the stream and returns a marker when it
// folds something starting there. It only ever sees tokens no other marker
// claimed, and must return nil as soon as a RequestRange call is not OK.
type Detector func(s *Stream, tok mdtoken.Token) *Marker

// Folder is a registry entry.
type Folder struct {
	Name   string
	Detect Detector
	// Suggested folders are enabled in the suggested configuration.
	Suggested bool
	// Priority orders detectors on the same token: higher runs first,
	// equal priorities run in registration order.
	Priority int
}

type entry struct {
	Folder
	seq int
}

// Registry is the catalog of available fold types.
type Registry struct {
	entries map[string]*entry
	seq     int
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{entries: make(map[string]*entry)}
}

// Register adds f. A name that already exists is an error unless force is
// set, in which case f replaces it and keeps its registration slot.
func (r *Registry) Register(f Folder, force bool) error {
	if f.Name == "" || f.Detect == nil {
		return fmt.Errorf("register folder: name and detector are required")
	}
	if old, ok := r.entries[f.Name]; ok {
		if !force {
			return fmt.Errorf("folder %s: %w", f.Name, ErrFolderExists)
		}
		old.Folder = f
		return nil
	}
	r.entries[f.Name] = &entry{Folder: f, seq: r.seq}
	r.seq++
	return nil
}

// MustRegister is Register for package init code; it panics on error.
func (r *Registry) MustRegister(f Folder) {
	if err := r.Register(f, false); err != nil {
		panic(err)
	}
}

// Get returns the folder named name.
func (r *Registry) Get(name string) (Folder, bool) {
	e, ok := r.entries[name]
	if !ok {
		return Folder{}, false
	}
	return e.Folder, true
}

// Has reports whether name is registered.
func (r *Registry) Has(name string) bool {
	_, ok := r.entries[name]
	return ok
}

// Ordered returns folders in detection precedence.
func (r *Registry) Ordered() []Folder {
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
	out := make([]Folder, len(es))
	for i, e := range es {
		out[i] = e.Folder
	}
	return out
}

// Names returns folder names in detection precedence.
func (r *Registry) Names() []string {
	var names []string
	for _, f := range r.Ordered() {
		names = append(names, f.Name)
	}
	return names
}

// Suggested returns the suggested enabled state of every folder.
func (r *Registry) Suggested() map[string]bool {
	out := make(map[string]bool, len(r.entries))
	for name, e := range r.entries {
		out[name] = e.Suggested
	}
	return out
}
