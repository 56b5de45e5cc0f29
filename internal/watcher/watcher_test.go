package watcher_test

import (
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	"github.com/zjrosen/mdfold/internal/editor"
	"github.com/zjrosen/mdfold/internal/watcher"
)

func start(t *testing.T, dir string) <-chan []string {
	t.Helper()
	w, err := watcher.New(watcher.Config{
		Root:        dir,
		DebounceDur: 50 * time.Millisecond,
	})
	require.NoError(t, err, "failed to create watcher")
	t.Cleanup(func() { _ = w.Stop() })

	onChange, err := w.Start()
	require.NoError(t, err, "failed to start watcher")
	return onChange
}

func TestWatcher_DebounceMultipleWrites(t *testing.T) {
	dir := t.TempDir()
	note := filepath.Join(dir, "note.md")
	require.NoError(t, os.WriteFile(note, []byte("test"), 0o644))

	onChange := start(t, dir)

	// Rapid writes should coalesce into single notification
	for i := 0; i < 10; i++ {
		require.NoError(t, os.WriteFile(note, []byte(fmt.Sprintf("test%d", i)), 0o644))
		time.Sleep(10 * time.Millisecond)
	}

	select {
	case batch := <-onChange:
		require.Equal(t, []string{"note.md"}, batch)
	case <-time.After(500 * time.Millisecond):
		t.Fatal("expected notification but got timeout")
	}

	select {
	case <-onChange:
		t.Fatal("unexpected second notification")
	case <-time.After(100 * time.Millisecond):
	}
}

func TestWatcher_ReportsSubdirectories(t *testing.T) {
	dir := t.TempDir()
	sub := filepath.Join(dir, "assets")
	require.NoError(t, os.Mkdir(sub, 0o755))

	onChange := start(t, dir)

	require.NoError(t, os.WriteFile(filepath.Join(sub, "cat.png"), []byte("png"), 0o644))

	select {
	case batch := <-onChange:
		require.Equal(t, []string{"assets/cat.png"}, batch)
	case <-time.After(500 * time.Millisecond):
		t.Fatal("expected notification for subdirectory write")
	}
}

func TestWatcher_IgnoresHiddenAndSwapFiles(t *testing.T) {
	dir := t.TempDir()
	hidden := filepath.Join(dir, ".obsidian")
	require.NoError(t, os.Mkdir(hidden, 0o755))

	onChange := start(t, dir)

	require.NoError(t, os.WriteFile(filepath.Join(hidden, "workspace.json"), []byte("{}"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "note.md.swp"), []byte("x"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".note.md.tmp"), []byte("x"), 0o644))

	select {
	case batch := <-onChange:
		t.Fatalf("should not notify for ignored files, got %v", batch)
	case <-time.After(150 * time.Millisecond):
	}
}

func TestWatcher_Stop(t *testing.T) {
	w, err := watcher.New(watcher.DefaultConfig(t.TempDir()))
	require.NoError(t, err, "failed to create watcher")

	_, err = w.Start()
	require.NoError(t, err, "failed to start watcher")

	// Stop should not hang or panic
	done := make(chan struct{})
	go func() {
		err := w.Stop()
		assert.NoError(t, err, "Stop returned error")
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(1 * time.Second):
		t.Fatal("Stop() timed out - possible deadlock")
	}
}

func TestDefaultConfig(t *testing.T) {
	cfg := watcher.DefaultConfig("/notes")

	assert.Equal(t, "/notes", cfg.Root)
	assert.Equal(t, 300*time.Millisecond, cfg.DebounceDur)
}

func TestReload_MinimalEdits(t *testing.T) {
	ed := editor.New("a\nb\nc\nd")
	var changes []editor.Change
	ed.OnTextChanged(func(c editor.Change) { changes = append(changes, c) })
	keep := ed.MarkText(editor.P(3, 0), editor.P(3, 1), editor.MarkerOptions{})

	n := watcher.Reload(ed, "a\nB\nc\nd")
	require.Equal(t, 1, n)
	require.Equal(t, "a\nB\nc\nd", ed.Value())
	require.Len(t, changes, 1)
	require.Equal(t, watcher.ReloadOrigin, changes[0].Origin)

	from, to, ok := keep.Find()
	require.True(t, ok)
	require.Equal(t, editor.P(3, 0), from)
	require.Equal(t, editor.P(3, 1), to)
}

func TestReload_Unchanged(t *testing.T) {
	ed := editor.New("same")
	require.Zero(t, watcher.Reload(ed, "same"))
}

func TestReload_EndOfDocument(t *testing.T) {
	tests := []struct{ from, to string }{
		{"a\nb", "a\n"},
		{"a\n", "a\nb"},
		{"a", "a\nb"},
		{"a\nb", "a\nc"},
		{"a\nb\nc", "c"},
		{"", "x\ny"},
		{"x\ny", ""},
	}
	for _, tt := range tests {
		ed := editor.New(tt.from)
		watcher.Reload(ed, tt.to)
		require.Equal(t, tt.to, ed.Value(), "%q -> %q", tt.from, tt.to)
	}
}

func TestReload_ReachesTarget(t *testing.T) {
	line := rapid.SampledFrom([]string{"a", "b", "", "# h", "**x**"})
	rapid.Check(t, func(rt *rapid.T) {
		from := rapid.SliceOfN(line, 0, 8).Draw(rt, "from")
		to := rapid.SliceOfN(line, 0, 8).Draw(rt, "to")
		ed := editor.New(join(from))
		watcher.Reload(ed, join(to))
		require.Equal(rt, join(to), ed.Value())
	})
}

func join(lines []string) string {
	out := ""
	for i, l := range lines {
		if i > 0 {
			out += "\n"
		}
		out += l
	}
	return out
}
