// Package presentation converts session state into the JSON shapes printed
// by the command line.
package presentation

import (
	"slices"
	"strings"

	"github.com/zjrosen/mdfold/internal/editor"
	"github.com/zjrosen/mdfold/internal/fold"
	"github.com/zjrosen/mdfold/internal/session"
)

// PosDTO is a document position.
type PosDTO struct {
	Line int `json:"line"`
	Ch   int `json:"ch"`
}

// FoldDTO represents one live fold.
type FoldDTO struct {
	Type  string `json:"type"`
	From  PosDTO `json:"from"`
	To    PosDTO `json:"to"`
	Text  string `json:"text"`            // folded source
	Label string `json:"label,omitempty"` // widget text or its best attribute
	Block string `json:"block,omitempty"` // line widget text
}

// HiddenDTO lists the hidden token starts of one line.
type HiddenDTO struct {
	Line   int   `json:"line"`
	Tokens []int `json:"tokens"`
}

// TaskDTO is the checkbox state of a task line.
type TaskDTO struct {
	Line  int    `json:"line"`
	State string `json:"state"`
}

// ScanDTO is the result of scanning a note.
type ScanDTO struct {
	Path        string      `json:"path"`
	Folds       []FoldDTO   `json:"folds"`
	Hidden      []HiddenDTO `json:"hidden"`
	Tasks       []TaskDTO   `json:"tasks"`
	ActiveLines []int       `json:"active_lines"`
}

// FolderDTO describes a fold type or code renderer.
type FolderDTO struct {
	Kind      string `json:"kind"` // "fold" or "code"
	Name      string `json:"name"`
	Enabled   bool   `json:"enabled"`
	Suggested bool   `json:"suggested"`
}

// FromMarker converts a live marker to a DTO. ok is false once the
// marker has been torn down.
func FromMarker(ed *editor.Editor, m *fold.Marker) (FoldDTO, bool) {
	from, to, ok := m.Find()
	if !ok {
		return FoldDTO{}, false
	}
	dto := FoldDTO{
		Type:  m.Type,
		From:  PosDTO{Line: from.Line, Ch: from.Ch},
		To:    PosDTO{Line: to.Line, Ch: to.Ch},
		Text:  ed.GetRange(from, to),
		Label: Label(m.Widget()),
	}
	if lw := m.LineWidget(); lw != nil && lw.Node != nil {
		dto.Block = strings.TrimSpace(lw.Node.TextContent())
	}
	return dto, true
}

// Label flattens a widget to one line of text, falling back to its alt,
// title, src or href attribute.
func Label(el *editor.Element) string {
	if el == nil {
		return ""
	}
	if text := strings.Join(strings.Fields(el.TextContent()), " "); text != "" {
		return text
	}
	for _, attr := range []string{"alt", "title", "src", "href"} {
		if v := el.Attr(attr); v != "" {
			return v
		}
	}
	return ""
}

// FromSession snapshots the folds, hidden tokens, task states and active
// lines of s.
func FromSession(path string, s *session.Session) ScanDTO {
	ed := s.Editor()
	dto := ScanDTO{
		Path:        path,
		Folds:       make([]FoldDTO, 0),
		Hidden:      make([]HiddenDTO, 0),
		Tasks:       make([]TaskDTO, 0),
		ActiveLines: s.ActiveLine().ActiveLines(),
	}
	for _, m := range s.Engine().AllMarkers() {
		if f, ok := FromMarker(ed, m); ok {
			dto.Folds = append(dto.Folds, f)
		}
	}
	slices.SortStableFunc(dto.Folds, func(a, b FoldDTO) int {
		if a.From.Line != b.From.Line {
			return a.From.Line - b.From.Line
		}
		return a.From.Ch - b.From.Ch
	})
	for n := range ed.LineCount() {
		if toks := ed.HiddenTokens(ed.LineHandle(n)); len(toks) > 0 {
			dto.Hidden = append(dto.Hidden, HiddenDTO{Line: n, Tokens: toks})
		}
		if state, ok := s.HideTokens().TaskState(n); ok {
			dto.Tasks = append(dto.Tasks, TaskDTO{Line: n, State: state})
		}
	}
	return dto
}

// FromSessionFolders lists the fold types and code renderers of s with
// their current state.
func FromSessionFolders(s *session.Session) []FolderDTO {
	st := s.Status()
	out := make([]FolderDTO, 0)
	for _, f := range s.Engine().Registry().Ordered() {
		out = append(out, FolderDTO{Kind: "fold", Name: f.Name, Enabled: st.Fold[f.Name], Suggested: f.Suggested})
	}
	for _, r := range s.CodeFolder().Registry().Renderers() {
		out = append(out, FolderDTO{Kind: "code", Name: r.Name, Enabled: st.Code[r.Name], Suggested: r.Suggested})
	}
	return out
}
