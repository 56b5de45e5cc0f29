package cmd

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/muesli/termenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/require"

	"github.com/zjrosen/mdfold/internal/editor"
	"github.com/zjrosen/mdfold/internal/presentation"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o750))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
}

// run executes the root command with args against a throwaway config.
func run(t *testing.T, args ...string) string {
	t.Helper()
	cfgPath := filepath.Join(t.TempDir(), "config.yaml")
	writeFile(t, cfgPath, "theme: notty\n")

	scanCursor = ""
	foldersJSON = false
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetArgs(append(args, "--config", cfgPath))
	t.Cleanup(func() {
		rootCmd.SetOut(nil)
		rootCmd.SetArgs(nil)
		cfgFile = ""
	})
	require.NoError(t, rootCmd.Execute())
	return out.String()
}

func TestReadConfig_Explicit(t *testing.T) {
	path := filepath.Join(t.TempDir(), "custom.yaml")
	writeFile(t, path, "theme: light\nfold:\n  html: true\n")

	v := viper.New()
	used, err := readConfig(v, path, t.TempDir())
	require.NoError(t, err)
	require.Equal(t, path, used)
	require.Equal(t, "light", v.GetString("theme"))
	require.True(t, v.GetBool("fold.html"))
}

func TestReadConfig_WritesDefaultWhenMissing(t *testing.T) {
	home := t.TempDir()
	t.Chdir(t.TempDir())

	v := viper.New()
	used, err := readConfig(v, "", home)
	require.NoError(t, err)
	require.Equal(t, filepath.Join(home, ".config", "mdfold", "config.yaml"), used)
	require.FileExists(t, used)
}

func TestReadConfig_PrefersProjectConfig(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)
	writeFile(t, filepath.Join(dir, ".mdfold", "config.yaml"), "theme: notty\n")

	v := viper.New()
	used, err := readConfig(v, "", t.TempDir())
	require.NoError(t, err)
	require.Equal(t, filepath.Join(".mdfold", "config.yaml"), used)
	require.Equal(t, "notty", v.GetString("theme"))
}

func TestReadConfig_BrokenFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.yaml")
	writeFile(t, path, "fold: [\n")

	_, err := readConfig(viper.New(), path, "")
	require.Error(t, err)
}

func TestDetectTheme(t *testing.T) {
	require.Equal(t, "notty", detectTheme(termenv.Ascii, true))
	require.Equal(t, "dark", detectTheme(termenv.TrueColor, true))
	require.Equal(t, "light", detectTheme(termenv.ANSI256, false))
}

func TestLoadConfig_ThemeFlagOverridesDetection(t *testing.T) {
	prevErr := configErr
	configErr = nil
	viper.Set("theme", "light")
	t.Cleanup(func() {
		configErr = prevErr
		viper.Set("theme", nil)
	})

	cmd := &cobra.Command{Use: "x"}
	cmd.Flags().String("theme", "", "")
	require.NoError(t, cmd.Flags().Set("theme", "light"))

	cfg, err := loadConfig(cmd)
	require.NoError(t, err)
	require.Equal(t, "light", cfg.Theme)
}

func TestParseCursor(t *testing.T) {
	ed := editor.New("abc\nde")

	p, err := parseCursor(ed, "")
	require.NoError(t, err)
	require.Equal(t, editor.P(1, 2), p)

	p, err = parseCursor(ed, "1:2")
	require.NoError(t, err)
	require.Equal(t, editor.P(0, 1), p)

	p, err = parseCursor(ed, "9:9")
	require.NoError(t, err)
	require.Equal(t, editor.P(1, 2), p)

	_, err = parseCursor(ed, "0:1")
	require.Error(t, err)
	_, err = parseCursor(ed, "x")
	require.Error(t, err)
}

func TestScanCommand(t *testing.T) {
	dir := t.TempDir()
	note := filepath.Join(dir, "note.md")
	writeFile(t, note, "**b** ![a](https://x.io/a.png)\n\nlast line\n")

	out := run(t, "scan", note)

	var scan presentation.ScanDTO
	require.NoError(t, json.Unmarshal([]byte(out), &scan))
	require.Len(t, scan.Folds, 1)
	require.Equal(t, "image", scan.Folds[0].Type)
	require.Equal(t, "a", scan.Folds[0].Label)
	require.NotEmpty(t, scan.Hidden)
	require.Equal(t, 0, scan.Hidden[0].Line)
}

func TestScanCommand_CursorKeepsLineUnfolded(t *testing.T) {
	dir := t.TempDir()
	note := filepath.Join(dir, "note.md")
	writeFile(t, note, "![a](https://x.io/a.png)\nnext\n")

	out := run(t, "scan", note, "--cursor", "1:1")

	var scan presentation.ScanDTO
	require.NoError(t, json.Unmarshal([]byte(out), &scan))
	require.Empty(t, scan.Folds)
	require.Equal(t, []int{0}, scan.ActiveLines)
}

func TestFoldersCommand(t *testing.T) {
	out := run(t, "folders")
	require.Contains(t, out, "fold  image")
	require.Contains(t, out, "code  dataview")

	out = run(t, "folders", "--json")
	var list []presentation.FolderDTO
	require.NoError(t, json.Unmarshal([]byte(out), &list))
	require.NotEmpty(t, list)
}

func TestInitConfigCommand(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sub", "config.yaml")
	initConfigForce = false

	out := run(t, "init-config", path)
	require.Contains(t, out, "wrote "+path)
	require.FileExists(t, path)

	rootCmd.SetArgs([]string{"init-config", path})
	require.Error(t, rootCmd.Execute())
}
