// Package config provides configuration types and defaults for mdfold.
package config

import (
	"errors"
	"fmt"
	"maps"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/zjrosen/mdfold/internal/log"
	"github.com/zjrosen/mdfold/internal/tracing"
)

// ErrInvalid is wrapped by every validation error.
var ErrInvalid = errors.New("invalid config")

// HideTokenTypes are the span types hide_token.token_types accepts.
var HideTokenTypes = []string{
	"em", "strong", "strikethrough", "code", "linkText", "task", "mark",
	"internalLink", "highlight", "ins", "sub", "sup", "hashtag", "linkHref",
}

// Config holds all configuration options for mdfold.
type Config struct {
	// Vault is the directory wiki links and embeds resolve against.
	// Default: the directory of the opened file.
	Vault string `mapstructure:"vault"`

	// Theme is the glamour style for embeds and admonitions:
	// "dark" (default), "light" or "notty".
	Theme string `mapstructure:"theme"`

	Fold          map[string]bool   `mapstructure:"fold"`      // fold type -> enabled
	FoldCode      map[string]bool   `mapstructure:"fold_code"` // code renderer -> enabled
	HideToken     HideTokenConfig   `mapstructure:"hide_token"`
	ActiveLine    ActiveLineConfig  `mapstructure:"active_line"`
	MarkSelection bool              `mapstructure:"mark_selection"`
	Debounce      DebounceConfig    `mapstructure:"debounce"`
	Embed         EmbedConfig       `mapstructure:"embed"`
	Emoji         map[string]string `mapstructure:"emoji"` // custom :name: -> text
	Log           LogConfig         `mapstructure:"log"`
	Tracing       tracing.Config    `mapstructure:"tracing"`
}

// HideTokenConfig controls formatting token hiding.
type HideTokenConfig struct {
	Enabled    bool     `mapstructure:"enabled"`
	TokenTypes []string `mapstructure:"token_types"`
}

// ActiveLineConfig controls active line styling.
type ActiveLineConfig struct {
	Enabled bool `mapstructure:"enabled"`
	// NonEmpty also styles every line covered by a non-empty selection.
	NonEmpty bool `mapstructure:"non_empty"`
}

// DebounceConfig holds the delays of the debounced passes.
type DebounceConfig struct {
	Fold      time.Duration `mapstructure:"fold"`
	HideToken time.Duration `mapstructure:"hide_token"`
}

// EmbedConfig controls embedded note rendering.
type EmbedConfig struct {
	Width    int           `mapstructure:"width"`
	CacheTTL time.Duration `mapstructure:"cache_ttl"`
}

// LogConfig controls the debug log.
type LogConfig struct {
	File  string `mapstructure:"file"`
	Level string `mapstructure:"level"`
}

// DefaultTracesFilePath returns ~/.config/mdfold/traces/traces.jsonl, or
// an empty string if the home directory is unavailable.
func DefaultTracesFilePath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".config", "mdfold", "traces", "traces.jsonl")
}

// DefaultFold returns the per-editor fold defaults: everything on except
// raw HTML.
func DefaultFold() map[string]bool {
	return map[string]bool{
		"image": true,
		"link":  true,
		"code":  true,
		"math":  true,
		"html":  false,
		"emoji": true,
		"embed": true,
	}
}

// DefaultFoldCode returns the code renderer defaults. Highlighting every
// fenced block is opt-in.
func DefaultFoldCode() map[string]bool {
	return map[string]bool{
		"dataview":   true,
		"query":      true,
		"tasks":      true,
		"admonition": true,
		"chart":      true,
		"highlight":  false,
	}
}

// Defaults returns a Config with sensible default values.
func Defaults() Config {
	tc := tracing.DefaultConfig()
	tc.FilePath = DefaultTracesFilePath()
	return Config{
		Theme:    "dark",
		Fold:     DefaultFold(),
		FoldCode: DefaultFoldCode(),
		HideToken: HideTokenConfig{
			Enabled:    true,
			TokenTypes: []string{"em", "strong", "strikethrough", "code", "linkText", "task", "mark", "internalLink", "highlight"},
		},
		ActiveLine: ActiveLineConfig{
			Enabled:  true,
			NonEmpty: false,
		},
		MarkSelection: true,
		Debounce: DebounceConfig{
			Fold:      200 * time.Millisecond,
			HideToken: 100 * time.Millisecond,
		},
		Embed: EmbedConfig{
			Width:    80,
			CacheTTL: 5 * time.Minute,
		},
		Log: LogConfig{
			Level: "info",
		},
		Tracing: tc,
	}
}

// SetDefaults registers every default with v, key by key so a config file
// that sets one fold type keeps the defaults of the others.
func SetDefaults(v *viper.Viper) {
	d := Defaults()
	v.SetDefault("vault", d.Vault)
	v.SetDefault("theme", d.Theme)
	for name, on := range d.Fold {
		v.SetDefault("fold."+name, on)
	}
	for name, on := range d.FoldCode {
		v.SetDefault("fold_code."+name, on)
	}
	v.SetDefault("hide_token.enabled", d.HideToken.Enabled)
	v.SetDefault("hide_token.token_types", d.HideToken.TokenTypes)
	v.SetDefault("active_line.enabled", d.ActiveLine.Enabled)
	v.SetDefault("active_line.non_empty", d.ActiveLine.NonEmpty)
	v.SetDefault("mark_selection", d.MarkSelection)
	v.SetDefault("debounce.fold", d.Debounce.Fold)
	v.SetDefault("debounce.hide_token", d.Debounce.HideToken)
	v.SetDefault("embed.width", d.Embed.Width)
	v.SetDefault("embed.cache_ttl", d.Embed.CacheTTL)
	v.SetDefault("log.level", d.Log.Level)
	v.SetDefault("tracing.enabled", d.Tracing.Enabled)
	v.SetDefault("tracing.exporter", d.Tracing.Exporter)
	v.SetDefault("tracing.file_path", d.Tracing.FilePath)
	v.SetDefault("tracing.otlp_endpoint", d.Tracing.OTLPEndpoint)
	v.SetDefault("tracing.sample_rate", d.Tracing.SampleRate)
	v.SetDefault("tracing.service_name", d.Tracing.ServiceName)
}

// Load applies the defaults to v, decodes it and validates the result.
// v must already have read its config file, if any.
func Load(v *viper.Viper) (Config, error) {
	SetDefaults(v)
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("decoding config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks the configuration for errors.
func (c Config) Validate() error {
	switch c.Theme {
	case "", "dark", "light", "notty":
	default:
		return fmt.Errorf("%w: theme must be \"dark\", \"light\" or \"notty\", got %q", ErrInvalid, c.Theme)
	}
	for _, typ := range c.HideToken.TokenTypes {
		if !slices.Contains(HideTokenTypes, typ) {
			return fmt.Errorf("%w: hide_token.token_types: unknown type %q (valid: %s)",
				ErrInvalid, typ, strings.Join(HideTokenTypes, ", "))
		}
	}
	if c.Debounce.Fold < 0 || c.Debounce.HideToken < 0 {
		return fmt.Errorf("%w: debounce durations must not be negative", ErrInvalid)
	}
	if c.Embed.Width < 0 {
		return fmt.Errorf("%w: embed.width must not be negative, got %d", ErrInvalid, c.Embed.Width)
	}
	if _, err := log.ParseLevel(c.Log.Level); err != nil {
		return fmt.Errorf("%w: log.level: %w", ErrInvalid, err)
	}
	if c.Vault != "" {
		if info, err := os.Stat(c.Vault); err != nil || !info.IsDir() {
			return fmt.Errorf("%w: vault %q is not a directory", ErrInvalid, c.Vault)
		}
	}
	return ValidateTracing(c.Tracing)
}

// ValidateTracing checks tracing configuration for errors.
// Returns nil if the configuration is valid (empty values use defaults).
func ValidateTracing(tc tracing.Config) error {
	if tc.SampleRate < 0.0 || tc.SampleRate > 1.0 {
		return fmt.Errorf("%w: tracing.sample_rate must be between 0.0 and 1.0, got %v", ErrInvalid, tc.SampleRate)
	}

	if tc.Exporter != "" {
		switch tc.Exporter {
		case "none", "file", "stdout", "otlp":
		default:
			return fmt.Errorf("%w: tracing.exporter must be \"none\", \"file\", \"stdout\", or \"otlp\", got %q", ErrInvalid, tc.Exporter)
		}
	}

	// Only validate path requirements when tracing is enabled
	if tc.Enabled {
		if tc.Exporter == "file" && tc.FilePath == "" {
			return fmt.Errorf("%w: tracing.file_path is required when exporter is \"file\"", ErrInvalid)
		}
		if tc.Exporter == "otlp" && tc.OTLPEndpoint == "" {
			return fmt.Errorf("%w: tracing.otlp_endpoint is required when exporter is \"otlp\"", ErrInvalid)
		}
	}
	return nil
}

// FoldStatus returns the fold map with every built-in type present.
func (c Config) FoldStatus() map[string]bool {
	out := DefaultFold()
	maps.Copy(out, c.Fold)
	return out
}

// CodeStatus returns the code renderer map with every built-in present.
func (c Config) CodeStatus() map[string]bool {
	out := DefaultFoldCode()
	maps.Copy(out, c.FoldCode)
	return out
}

// DefaultConfigTemplate returns the default config as a YAML string with comments.
func DefaultConfigTemplate() string {
	return `# mdfold configuration

# Directory wiki links and ![[embeds]] resolve against
# (default: the directory of the opened file)
# vault: ~/notes

# Markdown style for embeds and admonitions: dark (default), light or notty
theme: dark

# Fold types. Each folded range is replaced by a widget until the cursor
# enters it.
fold:
  image: true   # ![alt](url) and ![[file.png]]
  link: true    # the (url "title") part of [text](url)
  code: true    # fenced blocks with a renderer, see fold_code
  math: true    # $inline$ and $$block$$
  html: false   # raw HTML, sanitized
  emoji: true   # :name:
  embed: true   # ![[note]], ![[note#Heading]], ![[note#^block]]

# Code block renderers, matched by the fence language
fold_code:
  dataview: true     # dataview, dataviewjs
  query: true        # query
  tasks: true        # tasks
  admonition: true   # ad-note, ad-warning, ...
  chart: true        # chart
  highlight: false   # any language chroma knows

# Hide markup such as ** and [[ ]] while the cursor is elsewhere
hide_token:
  enabled: true
  token_types: [em, strong, strikethrough, code, linkText, task, mark, internalLink, highlight]

# Style the lines under the cursor
active_line:
  enabled: true
  non_empty: false   # also style lines covered by a selection

# Highlight selected text
mark_selection: true

# Delays of the debounced passes
debounce:
  fold: 200ms
  hide_token: 100ms

# Embedded notes
embed:
  width: 80
  cache_ttl: 5m

# Custom emoji, checked before the GitHub set
# emoji:
#   shipit: "🐿️"

# Debug log (also enabled with --debug)
# log:
#   file: mdfold.log
#   level: debug

# Tracing of fold scans
# tracing:
#   enabled: false                 # Enable/disable tracing (default: false)
#   exporter: file                 # Export backend: none, file, stdout, otlp (default: file)
#   file_path: ~/.config/mdfold/traces/traces.jsonl
#   otlp_endpoint: localhost:4317  # OTLP collector endpoint (for otlp exporter)
#   sample_rate: 1.0               # Trace sampling rate 0.0-1.0 (default: 1.0)
`
}

// WriteDefaultConfig creates a config file at the given path with default settings and comments.
// Creates the parent directory if it doesn't exist.
func WriteDefaultConfig(configPath string) error {
	log.Debug(log.CatConfig, "Writing default config", "path", configPath)

	dir := filepath.Dir(configPath)
	if err := os.MkdirAll(dir, 0o750); err != nil {
		log.ErrorErr(log.CatConfig, "Failed to create config directory", err, "dir", dir)
		return fmt.Errorf("creating config directory: %w", err)
	}

	if err := os.WriteFile(configPath, []byte(DefaultConfigTemplate()), 0o600); err != nil {
		log.ErrorErr(log.CatConfig, "Failed to write config file", err, "path", configPath)
		return fmt.Errorf("writing config file: %w", err)
	}

	log.Info(log.CatConfig, "Created default config", "path", configPath)
	return nil
}
