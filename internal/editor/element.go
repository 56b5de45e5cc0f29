package editor

import (
	"maps"
	"slices"
	"strings"
)

// Element is a renderer-agnostic widget node. Folders build Elements and
// the host decides how to draw them (the terminal preview flattens them to
// styled text).
//
// Mutations made through the methods notify observers registered with
// Observe, which is how widgets learn that an async renderer finished.
type Element struct {
	Tag      string
	Class    string
	Text     string
	Attrs    map[string]string
	Children []*Element

	parent    *Element
	onClick   []func()
	observers map[int]func(*Element)
	nextObs   int
}

// NewElement returns an element with the given tag and class.
func NewElement(tag, class string) *Element {
	return &Element{Tag: tag, Class: class}
}

// HasClass reports whether class appears in the element's class list.
func (el *Element) HasClass(class string) bool {
	return slices.Contains(strings.Fields(el.Class), class)
}

// AddClass appends class unless already present.
func (el *Element) AddClass(class string) {
	if el.HasClass(class) {
		return
	}
	el.Class = strings.TrimSpace(el.Class + " " + class)
	el.mutated()
}

// RemoveClass drops class from the class list.
func (el *Element) RemoveClass(class string) {
	if !el.HasClass(class) {
		return
	}
	el.Class = strings.Join(slices.DeleteFunc(strings.Fields(el.Class), func(c string) bool { return c == class }), " ")
	el.mutated()
}

// Attr returns an attribute value, or "" if unset.
func (el *Element) Attr(key string) string {
	return el.Attrs[key]
}

// SetAttr sets an attribute.
func (el *Element) SetAttr(key, value string) {
	if el.Attrs == nil {
		el.Attrs = make(map[string]string)
	}
	if v, ok := el.Attrs[key]; ok && v == value {
		return
	}
	el.Attrs[key] = value
	el.mutated()
}

// SetText replaces the element's own text and drops its children.
func (el *Element) SetText(text string) {
	el.Text = text
	el.Children = nil
	el.mutated()
}

// Append adds children.
func (el *Element) Append(children ...*Element) {
	for _, c := range children {
		c.parent = el
	}
	el.Children = append(el.Children, children...)
	el.mutated()
}

// TextContent returns the element's text followed by its children's.
func (el *Element) TextContent() string {
	var sb strings.Builder
	el.walk(func(e *Element) { sb.WriteString(e.Text) })
	return sb.String()
}

// Find returns the first element in the subtree (el included) with class.
func (el *Element) Find(class string) *Element {
	var found *Element
	el.walk(func(e *Element) {
		if found == nil && e.HasClass(class) {
			found = e
		}
	})
	return found
}

func (el *Element) walk(fn func(*Element)) {
	fn(el)
	for _, c := range el.Children {
		c.walk(fn)
	}
}

// OnClick registers a click handler.
func (el *Element) OnClick(fn func()) {
	el.onClick = append(el.onClick, fn)
}

// Click runs the click handlers of el and then of its ancestors, like an
// event bubbling up.
func (el *Element) Click() {
	for e := el; e != nil; e = e.parent {
		for _, fn := range slices.Clone(e.onClick) {
			fn()
		}
	}
}

// Observe calls fn whenever el or any descendant is mutated. The returned
// func disconnects the observer.
func (el *Element) Observe(fn func(*Element)) (detach func()) {
	if el.observers == nil {
		el.observers = make(map[int]func(*Element))
	}
	id := el.nextObs
	el.nextObs++
	el.observers[id] = fn
	return func() { delete(el.observers, id) }
}

// Observed reports whether any observer is attached to el.
func (el *Element) Observed() bool {
	return len(el.observers) > 0
}

func (el *Element) mutated() {
	for e := el; e != nil; e = e.parent {
		ids := slices.Sorted(maps.Keys(e.observers))
		for _, id := range ids {
			if fn, ok := e.observers[id]; ok {
				fn(el)
			}
		}
	}
}
