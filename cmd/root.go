package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	zone "github.com/lrstanley/bubblezone"
	"github.com/muesli/termenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/zjrosen/mdfold/internal/config"
	"github.com/zjrosen/mdfold/internal/log"
	"github.com/zjrosen/mdfold/internal/sched"
	"github.com/zjrosen/mdfold/internal/tracing"
	"github.com/zjrosen/mdfold/internal/ui/preview"
	"github.com/zjrosen/mdfold/internal/watcher"
)

func init() {
	// Force lipgloss/termenv to query terminal background color BEFORE
	// any Bubble Tea program starts. This prevents the terminal's OSC 11
	// response from racing with Bubble Tea's input loop and appearing as
	// garbage text in the preview.
	//
	// See: https://github.com/charmbracelet/bubbletea/issues/1036
	_ = lipgloss.HasDarkBackground()
}

var (
	version        = "dev"
	cfgFile        string
	configFilePath string
	configErr      error
)

var rootCmd = &cobra.Command{
	Use:   "mdfold [file]",
	Short: "A terminal preview of Markdown notes with live folding",
	Long: `Open a Markdown note in a terminal preview that folds images, links,
math, inline html, emoji, note embeds and fenced code into widgets and
hides formatting markup everywhere except under the cursor.`,
	Version: version,
	Args:    cobra.MaximumNArgs(1),
	RunE:    runApp,
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "",
		"config file (default: ~/.config/mdfold/config.yaml)")
	rootCmd.PersistentFlags().String("vault", "",
		"directory wiki links and embeds resolve against (default: the note's directory)")
	rootCmd.PersistentFlags().String("theme", "",
		`render theme: "dark", "light" or "notty" (default: detected)`)
	rootCmd.PersistentFlags().String("log-file", "",
		"write a debug log to this file")
	rootCmd.Flags().Bool("no-watch", false,
		"do not reload the note when it changes on disk")

	// Bind flags to viper
	_ = viper.BindPFlag("vault", rootCmd.PersistentFlags().Lookup("vault"))
	_ = viper.BindPFlag("theme", rootCmd.PersistentFlags().Lookup("theme"))
	_ = viper.BindPFlag("log.file", rootCmd.PersistentFlags().Lookup("log-file"))
}

func initConfig() {
	home, _ := os.UserHomeDir()
	configFilePath, configErr = readConfig(viper.GetViper(), cfgFile, home)
}

// readConfig points v at the config file and reads it. Lookup order:
//  1. explicit (the --config flag)
//  2. .mdfold/config.yaml (current directory)
//  3. ~/.config/mdfold/config.yaml (user config)
//
// When no file exists anywhere a commented default is written to the user
// config path. It returns the path toggles should be saved to.
func readConfig(v *viper.Viper, explicit, home string) (string, error) {
	userPath := filepath.Join(home, ".config", "mdfold", "config.yaml")
	switch {
	case explicit != "":
		v.SetConfigFile(explicit)
	case fileExists(filepath.Join(".mdfold", "config.yaml")):
		v.SetConfigFile(filepath.Join(".mdfold", "config.yaml"))
	default:
		v.AddConfigPath(filepath.Dir(userPath))
		v.SetConfigName("config")
		v.SetConfigType("yaml")
	}

	err := v.ReadInConfig()
	var notFound viper.ConfigFileNotFoundError
	switch {
	case err == nil:
		return v.ConfigFileUsed(), nil
	case errors.As(err, &notFound):
		if home == "" {
			return "", nil
		}
		// If the write fails, just continue with defaults.
		if writeErr := config.WriteDefaultConfig(userPath); writeErr != nil {
			return "", nil
		}
		v.SetConfigFile(userPath)
		if err := v.ReadInConfig(); err != nil {
			return "", fmt.Errorf("reading %s: %w", userPath, err)
		}
		return userPath, nil
	default:
		return "", fmt.Errorf("reading config: %w", err)
	}
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// loadConfig decodes the global viper into a validated config. A theme
// neither the config file nor a flag of cmd sets is detected from the terminal.
func loadConfig(cmd *cobra.Command) (config.Config, error) {
	if configErr != nil {
		return config.Config{}, configErr
	}
	cfg, err := config.Load(viper.GetViper())
	if err != nil {
		return config.Config{}, err
	}
	themeSet := viper.InConfig("theme") || cmd.Flags().Changed("theme")
	if cfg.Theme == "" || !themeSet {
		cfg.Theme = detectTheme(termenv.EnvColorProfile(), lipgloss.HasDarkBackground())
	}
	return cfg, nil
}

// detectTheme maps the terminal to a render theme.
func detectTheme(profile termenv.Profile, dark bool) string {
	switch {
	case profile == termenv.Ascii:
		return "notty"
	case dark:
		return "dark"
	default:
		return "light"
	}
}

// setupLogging opens the debug log named by lc. Without a file, entries
// only reach the in-app log pane. For the preview the file also receives
// Bubble Tea's own diagnostics. The returned func closes the file.
func setupLogging(lc config.LogConfig, preview bool) (func(), error) {
	level, err := log.ParseLevel(lc.Level)
	if err != nil {
		return nil, err
	}
	if lc.File == "" {
		log.InitWriter(io.Discard, level)
		return func() {}, nil
	}
	open := log.Init
	if preview {
		open = func(path string) (func(), error) { return log.InitWithTeaLog(path, "mdfold ") }
	}
	cleanup, err := open(lc.File)
	if err != nil {
		return nil, fmt.Errorf("opening log: %w", err)
	}
	log.SetMinLevel(level)
	return cleanup, nil
}

// setupTracing installs the tracer provider. The returned func flushes it.
func setupTracing(tc tracing.Config) (*tracing.Provider, func(), error) {
	provider, err := tracing.NewProvider(tc)
	if err != nil {
		return nil, nil, fmt.Errorf("tracing: %w", err)
	}
	return provider, func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if err := provider.Shutdown(ctx); err != nil {
			log.ErrorErr(log.CatTracing, "tracer shutdown failed", err)
		}
	}, nil
}

func runApp(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	closeLog, err := setupLogging(cfg.Log, true)
	if err != nil {
		return err
	}
	defer closeLog()
	provider, shutdown, err := setupTracing(cfg.Tracing)
	if err != nil {
		return err
	}
	defer shutdown()

	path := ""
	if len(args) == 1 {
		path = args[0]
	}
	loop := sched.NewLoop(256)
	n, err := openNote(path, cfg, loop, provider.Tracer())
	if err != nil {
		return err
	}
	defer n.editor.Unload()

	var changes <-chan []string
	if noWatch, _ := cmd.Flags().GetBool("no-watch"); !noWatch && n.path != "" {
		w, err := watcher.New(watcher.DefaultConfig(n.vault.Root()))
		if err == nil {
			changes, err = w.Start()
		}
		if err != nil {
			log.ErrorErr(log.CatWatcher, "watch disabled", err, "root", n.vault.Root())
		} else {
			defer func() { _ = w.Stop() }()
		}
	}

	zone.NewGlobal()
	model := preview.New(preview.Options{
		Session:    n.session,
		Loop:       loop,
		Path:       n.path,
		ConfigPath: configFilePath,
		Vault:      n.vault,
		Embed:      n.embed,
		Changes:    changes,
	})
	defer model.Close()

	p := tea.NewProgram(
		model,
		tea.WithAltScreen(),
		tea.WithMouseCellMotion(),
	)
	if _, err := p.Run(); err != nil {
		return fmt.Errorf("running program: %w", err)
	}
	return nil
}

// Execute runs the root command
func Execute() error {
	return rootCmd.Execute()
}

// SetVersion sets the version string (called from main with ldflags)
func SetVersion(v string) {
	version = v
	rootCmd.Version = v
}
