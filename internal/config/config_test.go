package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/require"
)

func TestDefaults_Valid(t *testing.T) {
	cfg := Defaults()
	require.NoError(t, cfg.Validate())
	require.False(t, cfg.Fold["html"], "raw html is opt-in")
	require.True(t, cfg.Fold["embed"])
	require.False(t, cfg.FoldCode["highlight"])
	require.Equal(t, 200*time.Millisecond, cfg.Debounce.Fold)
	require.Equal(t, 100*time.Millisecond, cfg.Debounce.HideToken)
}

func TestValidate_Theme(t *testing.T) {
	cfg := Defaults()
	cfg.Theme = "solarized"
	err := cfg.Validate()
	require.ErrorIs(t, err, ErrInvalid)
	require.Contains(t, err.Error(), "theme")
}

func TestValidate_UnknownTokenType(t *testing.T) {
	cfg := Defaults()
	cfg.HideToken.TokenTypes = []string{"strong", "blink"}
	err := cfg.Validate()
	require.ErrorIs(t, err, ErrInvalid)
	require.Contains(t, err.Error(), `"blink"`)
}

func TestValidate_NegativeDebounce(t *testing.T) {
	cfg := Defaults()
	cfg.Debounce.Fold = -time.Second
	require.ErrorIs(t, cfg.Validate(), ErrInvalid)
}

func TestValidate_LogLevel(t *testing.T) {
	cfg := Defaults()
	cfg.Log.Level = "chatty"
	require.ErrorIs(t, cfg.Validate(), ErrInvalid)
}

func TestValidate_VaultMustBeDirectory(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "note.md")
	require.NoError(t, os.WriteFile(file, []byte("x"), 0o600))

	cfg := Defaults()
	cfg.Vault = dir
	require.NoError(t, cfg.Validate())

	cfg.Vault = file
	require.ErrorIs(t, cfg.Validate(), ErrInvalid)
}

func TestValidateTracing(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"sample rate", func(c *Config) { c.Tracing.SampleRate = 1.5 }, "sample_rate"},
		{"exporter", func(c *Config) { c.Tracing.Exporter = "kafka" }, "exporter"},
		{"file path", func(c *Config) {
			c.Tracing.Enabled = true
			c.Tracing.Exporter = "file"
			c.Tracing.FilePath = ""
		}, "file_path"},
		{"otlp endpoint", func(c *Config) {
			c.Tracing.Enabled = true
			c.Tracing.Exporter = "otlp"
			c.Tracing.OTLPEndpoint = ""
		}, "otlp_endpoint"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Defaults()
			tt.mutate(&cfg)
			err := cfg.Validate()
			require.ErrorIs(t, err, ErrInvalid)
			require.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestLoad_MergesFileOverDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
theme: light
fold:
  html: true
  emoji: false
hide_token:
  token_types: [strong]
debounce:
  fold: 50ms
emoji:
  shipit: "squirrel"
`), 0o600))

	v := viper.New()
	v.SetConfigFile(path)
	require.NoError(t, v.ReadInConfig())

	cfg, err := Load(v)
	require.NoError(t, err)
	require.Equal(t, "light", cfg.Theme)
	require.True(t, cfg.Fold["html"])
	require.False(t, cfg.Fold["emoji"])
	require.True(t, cfg.Fold["image"], "unset fold types keep their default")
	require.Equal(t, []string{"strong"}, cfg.HideToken.TokenTypes)
	require.Equal(t, 50*time.Millisecond, cfg.Debounce.Fold)
	require.Equal(t, 100*time.Millisecond, cfg.Debounce.HideToken)
	require.Equal(t, "squirrel", cfg.Emoji["shipit"])
}

func TestLoad_RejectsInvalid(t *testing.T) {
	v := viper.New()
	v.Set("theme", "neon")
	_, err := Load(v)
	require.ErrorIs(t, err, ErrInvalid)
}

func TestFoldStatus_FillsMissing(t *testing.T) {
	cfg := Config{Fold: map[string]bool{"math": false}, FoldCode: map[string]bool{"highlight": true}}
	fold := cfg.FoldStatus()
	require.False(t, fold["math"])
	require.True(t, fold["image"])
	require.Len(t, fold, len(DefaultFold()))

	code := cfg.CodeStatus()
	require.True(t, code["highlight"])
	require.True(t, code["dataview"])
}

func TestDefaultConfigTemplate_LoadsToDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".mdfold", "config.yaml")
	require.NoError(t, WriteDefaultConfig(path))

	v := viper.New()
	v.SetConfigFile(path)
	require.NoError(t, v.ReadInConfig())
	cfg, err := Load(v)
	require.NoError(t, err)

	want := Defaults()
	require.Equal(t, want.Fold, cfg.Fold)
	require.Equal(t, want.FoldCode, cfg.FoldCode)
	require.Equal(t, want.HideToken, cfg.HideToken)
	require.Equal(t, want.ActiveLine, cfg.ActiveLine)
	require.Equal(t, want.Debounce, cfg.Debounce)
	require.Equal(t, want.Embed, cfg.Embed)
}
