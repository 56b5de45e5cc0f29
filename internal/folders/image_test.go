package folders

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/zjrosen/mdfold/internal/editor"
	"github.com/zjrosen/mdfold/internal/fold"
	"github.com/zjrosen/mdfold/internal/vault"
)

func TestImage_FoldsRemoteImage(t *testing.T) {
	h := newHarness(t, `![a cat](https://x.io/cat.png "Cat")`+"\nnext", editor.P(1, 0), Options{}, Image)

	m := h.only(t, Image)
	require.Equal(t, "0:0-0:36", markerSpan(t, m))
	img := m.Widget()
	require.Equal(t, "img", img.Tag)
	require.True(t, img.HasClass(ImageLoadingClass))
	require.Equal(t, "a cat", img.Attr("alt"))
	require.Equal(t, "Cat", img.Attr("title"))
	require.Equal(t, "https://x.io/cat.png", img.Attr("src"))

	ready := h.signalled(fold.SignalImageReadyToLoad)
	require.Len(t, ready, 1)
	require.Same(t, m, ready[0].Marker)
	require.Equal(t, "https://x.io/cat.png", ready[0].Attrs["src"])
}

func TestImage_IgnoresNonImageTargets(t *testing.T) {
	h := newHarness(t, "![doc](https://x.io/readme.txt)\nnext", editor.P(1, 0), Options{}, Image)
	require.Empty(t, h.eng.Markers(Image))
}

func TestImage_Dimensions(t *testing.T) {
	h := newHarness(t, "![cat|300x200](https://x.io/cat.png)\nnext", editor.P(1, 0), Options{}, Image)

	img := h.only(t, Image).Widget()
	require.Equal(t, "width: 300px; height: 200px;", img.Attr("style"))
}

func TestImage_VaultEmbed(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "assets"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "assets", "cat.png"), []byte("png"), 0o644))
	v, err := vault.Open(dir)
	require.NoError(t, err)

	h := newHarness(t, "![[cat.png]]\nnext", editor.P(1, 0), Options{Vault: v}, Image, Embed)

	require.Empty(t, h.eng.Markers(Embed), "image embeds belong to the image folder")
	img := h.only(t, Image).Widget()
	require.Equal(t, "assets/cat.png", img.Attr("data-path"))
	require.Equal(t, v.ResourcePath("assets/cat.png"), img.Attr("src"))
}

func TestImage_MissingFileShowsWarning(t *testing.T) {
	v, err := vault.Open(t.TempDir())
	require.NoError(t, err)

	h := newHarness(t, "![x](missing.png)\nnext", editor.P(1, 0), Options{Vault: v}, Image)
	require.Equal(t, "⚠️", h.only(t, Image).Widget().Attr("alt"))
}

func TestImage_Loaded(t *testing.T) {
	h := newHarness(t, "![a](https://x.io/a.png)\n![b](https://x.io/b.png)\nnext", editor.P(2, 0), Options{}, Image)
	ms := h.eng.Markers(Image)
	require.Len(t, ms, 2)

	gen := ms[0].Text().Generation()
	ImageLoaded(ms[0], nil)
	require.False(t, ms[0].Widget().HasClass(ImageLoadingClass))
	require.False(t, ms[0].Widget().HasClass(ImageErrorClass))
	require.Greater(t, ms[0].Text().Generation(), gen, "load asks for a remeasure")

	ImageLoaded(ms[1], errors.New("404"))
	require.True(t, ms[1].Widget().HasClass(ImageErrorClass))
}

func TestImage_ClickSignalsAndBreaks(t *testing.T) {
	h := newHarness(t, "![a](https://x.io/a.png)\nnext", editor.P(1, 0), Options{}, Image)
	m := h.only(t, Image)

	m.Widget().Click()

	require.Len(t, h.signalled(fold.SignalImageClicked), 1)
	require.True(t, m.Torn())
	require.Equal(t, editor.P(0, 0), h.ed.Cursor())
}

func TestImage_CursorEnteringClears(t *testing.T) {
	h := newHarness(t, "![a](https://x.io/a.png)\nnext", editor.P(1, 0), Options{}, Image)
	m := h.only(t, Image)

	h.ed.SetCursor(editor.P(0, 5))
	require.True(t, m.Torn())
	require.Empty(t, h.eng.Markers(Image), "the cursor is still inside, so no refold")
}
