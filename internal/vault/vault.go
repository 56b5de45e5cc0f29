// Package vault resolves note and attachment links against a directory
// tree, the way wiki links and embeds name their targets.
package vault

import (
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"slices"
	"strings"

	"github.com/zjrosen/mdfold/internal/log"
)

// ErrNotFound is returned when a link resolves to no file.
var ErrNotFound = errors.New("link target not found")

// Vault is an indexed directory of notes and attachments.
type Vault struct {
	root  string
	files []string // slash separated, relative to root, sorted
}

// Open indexes root.
func Open(root string) (*Vault, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("open vault %s: %w", root, err)
	}
	v := &Vault{root: abs}
	if err := v.Refresh(); err != nil {
		return nil, err
	}
	return v, nil
}

// Root returns the absolute vault directory.
func (v *Vault) Root() string { return v.root }

// Refresh rebuilds the file index. Hidden directories are skipped.
func (v *Vault) Refresh() error {
	var files []string
	err := filepath.WalkDir(v.root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if p != v.root && strings.HasPrefix(d.Name(), ".") {
				return filepath.SkipDir
			}
			return nil
		}
		rel, err := filepath.Rel(v.root, p)
		if err != nil {
			return err
		}
		files = append(files, filepath.ToSlash(rel))
		return nil
	})
	if err != nil {
		return fmt.Errorf("index vault %s: %w", v.root, err)
	}
	slices.Sort(files)
	v.files = files
	log.Debug(log.CatWatcher, "vault indexed", "root", v.root, "files", len(files))
	return nil
}

// Files returns the indexed paths.
func (v *Vault) Files() []string { return slices.Clone(v.files) }

// Resolve finds the file a link points at. A link without an extension
// names a markdown note. An exact path match wins; otherwise the shortest
// path ending in the link is used. Matching ignores case.
func (v *Vault) Resolve(link string) (string, bool) {
	link = strings.TrimSpace(link)
	if u, err := url.PathUnescape(link); err == nil {
		link = u
	}
	link = strings.TrimPrefix(path.Clean("/"+filepath.ToSlash(link)), "/")
	if link == "" || link == "." {
		return "", false
	}
	if path.Ext(link) == "" {
		link += ".md"
	}

	var best string
	for _, f := range v.files {
		if strings.EqualFold(f, link) {
			return f, true
		}
		if len(f) > len(link) && f[len(f)-len(link)-1] == '/' && strings.EqualFold(f[len(f)-len(link):], link) {
			if best == "" || len(f) < len(best) {
				best = f
			}
		}
	}
	return best, best != ""
}

// Abs returns the absolute path of a vault-relative file.
func (v *Vault) Abs(rel string) string {
	return filepath.Join(v.root, filepath.FromSlash(rel))
}

// ResourcePath returns a url the host can load rel from.
func (v *Vault) ResourcePath(rel string) string {
	return (&url.URL{Scheme: "file", Path: filepath.ToSlash(v.Abs(rel))}).String()
}

// ReadFile reads a vault-relative file.
func (v *Vault) ReadFile(rel string) ([]byte, error) {
	b, err := os.ReadFile(v.Abs(rel))
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", rel, err)
	}
	return b, nil
}

// ReadLink resolves link and reads the target.
func (v *Vault) ReadLink(link string) (rel string, data []byte, err error) {
	rel, ok := v.Resolve(link)
	if !ok {
		return "", nil, fmt.Errorf("%s: %w", link, ErrNotFound)
	}
	data, err = v.ReadFile(rel)
	return rel, data, err
}
