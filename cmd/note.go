package cmd

import (
	"fmt"
	"os"
	"path/filepath"

	"go.opentelemetry.io/otel/trace"

	"github.com/zjrosen/mdfold/internal/config"
	"github.com/zjrosen/mdfold/internal/editor"
	"github.com/zjrosen/mdfold/internal/folders"
	"github.com/zjrosen/mdfold/internal/sched"
	"github.com/zjrosen/mdfold/internal/session"
	"github.com/zjrosen/mdfold/internal/vault"
)

// note is an opened Markdown file with its session attached.
type note struct {
	path    string // absolute; empty for a scratch note
	vault   *vault.Vault
	embed   *folders.EmbedRenderer
	editor  *editor.Editor
	session *session.Session
}

// openNote reads path (an empty path opens an empty scratch note) and
// attaches a session. The vault is cfg.Vault, else the note's directory,
// else the working directory.
func openNote(path string, cfg config.Config, s sched.Scheduler, tracer trace.Tracer) (*note, error) {
	n := &note{}
	text := ""
	if path != "" {
		abs, err := filepath.Abs(path)
		if err != nil {
			return nil, fmt.Errorf("resolving %s: %w", path, err)
		}
		data, err := os.ReadFile(abs) //nolint:gosec // G304: the user's note
		if err != nil {
			return nil, fmt.Errorf("reading note: %w", err)
		}
		n.path = abs
		text = string(data)
	}

	root := cfg.Vault
	switch {
	case root != "":
	case n.path != "":
		root = filepath.Dir(n.path)
	default:
		wd, err := os.Getwd()
		if err != nil {
			return nil, fmt.Errorf("getting current directory: %w", err)
		}
		root = wd
	}
	v, err := vault.Open(root)
	if err != nil {
		return nil, fmt.Errorf("opening vault: %w", err)
	}
	n.vault = v

	source := ""
	if n.path != "" {
		if rel, err := filepath.Rel(v.Root(), n.path); err == nil {
			source = filepath.ToSlash(rel)
		}
	}

	n.embed = folders.NewEmbedRenderer(v,
		folders.WithEmbedStyle(cfg.Theme, cfg.Embed.Width),
		folders.WithEmbedTTL(cfg.Embed.CacheTTL))
	n.editor = editor.New(text)
	n.session, err = session.New(n.editor, session.Options{
		Config:     cfg,
		Scheduler:  s,
		Tracer:     tracer,
		Vault:      v,
		SourcePath: source,
		Embed:      n.embed,
	})
	if err != nil {
		return nil, err
	}
	return n, nil
}
