// Package log provides structured logging for mdfold.
// Entries carry a level, a category and key=value fields. Output goes to a
// debug log file (or any writer) and every entry is fanned out to pubsub
// subscribers so the preview can show a live log pane.
package log

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/zjrosen/mdfold/internal/pubsub"
)

// Level represents log severity.
type Level int

const (
	LevelDebug Level = iota
	LevelInfo
	LevelWarn
	LevelError
)

func (l Level) String() string {
	switch l {
	case LevelDebug:
		return "DEBUG"
	case LevelInfo:
		return "INFO"
	case LevelWarn:
		return "WARN"
	case LevelError:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}

// ParseLevel maps a level name from config or flags to a Level.
func ParseLevel(s string) (Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug", "":
		return LevelDebug, nil
	case "info":
		return LevelInfo, nil
	case "warn", "warning":
		return LevelWarn, nil
	case "error":
		return LevelError, nil
	}
	return LevelDebug, fmt.Errorf("unknown log level %q", s)
}

// Category groups related log messages.
type Category string

const (
	CatFold    Category = "fold"    // Fold engine scans, requests and marker lifecycle
	CatHide    Category = "hide"    // Hide-token recomputes
	CatActive  Category = "active"  // Active line tracking
	CatSpan    Category = "span"    // Span extraction and cache invalidation
	CatRender  Category = "render"  // Widget renderers (image, math, code, embed)
	CatConfig  Category = "config"  // Configuration loading/saving
	CatWatcher Category = "watcher" // File watcher events
	CatCache   Category = "cache"   // cache operations
	CatUI      Category = "ui"      // Preview updates
	CatTracing Category = "tracing" // Tracing provider setup and export
)

// Categories lists every category in display order.
var Categories = []Category{
	CatFold, CatHide, CatActive, CatSpan, CatRender, CatConfig, CatWatcher, CatCache, CatUI, CatTracing,
}

// Logger provides structured logging.
type Logger struct {
	mu       sync.Mutex
	closer   io.Closer
	writer   io.Writer
	enabled  bool
	minLevel Level
	broker   *pubsub.Broker[string] // Pub/sub for log events
	now      func() time.Time

	// ring keeps the newest entries for the in-app log pane.
	ring []string
	head int
	full bool
}

// BufferSize is the number of entries kept for GetRecentLogs.
const BufferSize = 500

var (
	defaultLogger *Logger
	once          sync.Once
)

// Init initializes the global logger writing to the file at path.
// Returns a cleanup function to close the log file.
func Init(path string) (func(), error) {
	var initErr error
	once.Do(func() {
		var f *os.File
		f, initErr = os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644) //nolint:gosec // G304: path is the user's debug log path
		if initErr != nil {
			return
		}
		defaultLogger = newLogger(f, f)
	})
	if initErr != nil {
		return nil, initErr
	}
	if defaultLogger == nil {
		return nil, fmt.Errorf("logger initialization failed or already attempted")
	}
	return func() {
		if defaultLogger != nil && defaultLogger.closer != nil {
			_ = defaultLogger.closer.Close()
		}
	}, nil
}

// InitWithTeaLog uses tea.LogToFile for initialization. Used by the preview
// so bubbletea's own diagnostics land in the same file.
func InitWithTeaLog(path string, prefix string) (func(), error) {
	f, err := tea.LogToFile(path, prefix)
	if err != nil {
		return nil, err
	}
	defaultLogger = newLogger(f, f)
	return func() { _ = f.Close() }, nil
}

// InitWriter points the global logger at w. The scan command uses it with
// stderr for --verbose; tests use it with a buffer.
func InitWriter(w io.Writer, minLevel Level) {
	l := newLogger(w, nil)
	l.minLevel = minLevel
	defaultLogger = l
}

func newLogger(w io.Writer, c io.Closer) *Logger {
	return &Logger{
		closer:   c,
		writer:   w,
		enabled:  true,
		minLevel: LevelDebug,
		broker:   pubsub.NewBroker[string](),
		now:      time.Now,
		ring:     make([]string, BufferSize),
	}
}

// SetEnabled toggles logging on/off.
func SetEnabled(enabled bool) {
	if defaultLogger != nil {
		defaultLogger.mu.Lock()
		defaultLogger.enabled = enabled
		defaultLogger.mu.Unlock()
	}
}

// SetMinLevel sets the minimum log level.
func SetMinLevel(level Level) {
	if defaultLogger != nil {
		defaultLogger.mu.Lock()
		defaultLogger.minLevel = level
		defaultLogger.mu.Unlock()
	}
}

// Debug logs at debug level.
func Debug(cat Category, msg string, fields ...any) {
	log(LevelDebug, cat, msg, fields...)
}

// Info logs at info level.
func Info(cat Category, msg string, fields ...any) {
	log(LevelInfo, cat, msg, fields...)
}

// Warn logs at warning level.
func Warn(cat Category, msg string, fields ...any) {
	log(LevelWarn, cat, msg, fields...)
}

// Error logs at error level.
func Error(cat Category, msg string, fields ...any) {
	log(LevelError, cat, msg, fields...)
}

// ErrorErr logs an error with the error value.
func ErrorErr(cat Category, msg string, err error, fields ...any) {
	if err != nil {
		fields = append(fields, "error", err.Error())
	} else {
		fields = append(fields, "error", "<nil>")
	}
	log(LevelError, cat, msg, fields...)
}

func log(level Level, cat Category, msg string, fields ...any) {
	l := defaultLogger
	if l == nil {
		return
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if !l.enabled || level < l.minLevel {
		return
	}

	entry := formatEntry(l.now(), level, cat, msg, fields)

	if l.writer != nil {
		_, _ = io.WriteString(l.writer, entry)
	}
	l.ring[l.head] = entry
	l.head = (l.head + 1) % len(l.ring)
	if l.head == 0 {
		l.full = true
	}
	if l.broker != nil {
		l.broker.Publish(pubsub.CreatedEvent, entry)
	}
}

// formatEntry renders one line:
// 2026-01-02T10:45:00 [ERROR] [fold] message key=value key2=value2
func formatEntry(ts time.Time, level Level, cat Category, msg string, fields []any) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "%s [%s] [%s] %s", ts.Format("2006-01-02T15:04:05"), level, cat, msg)
	for i := 0; i+1 < len(fields); i += 2 {
		fmt.Fprintf(&sb, " %v=%v", fields[i], fields[i+1])
	}
	if len(fields)%2 != 0 {
		fmt.Fprintf(&sb, " %v=<missing>", fields[len(fields)-1])
	}
	sb.WriteByte('\n')
	return sb.String()
}

// GetRecentLogs returns up to n of the newest buffered entries, oldest
// first.
func GetRecentLogs(n int) []string {
	l := defaultLogger
	if l == nil || n <= 0 {
		return nil
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	count := l.head
	if l.full {
		count = len(l.ring)
	}
	n = min(n, count)
	out := make([]string, 0, n)
	for i := count - n; i < count; i++ {
		idx := i
		if l.full {
			idx = (l.head + i) % len(l.ring)
		}
		out = append(out, l.ring[idx])
	}
	return out
}

// ClearBuffer drops every buffered entry.
func ClearBuffer() {
	l := defaultLogger
	if l == nil {
		return
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	clear(l.ring)
	l.head = 0
	l.full = false
}

// LogEvent is a pubsub event containing a log entry.
type LogEvent = pubsub.Event[string]

// LogListener delivers log events to an Update loop.
type LogListener = pubsub.Listener[string]

// NewListener subscribes to log events, delivering each through wrap.
// The subscription ends when ctx is cancelled. It returns nil before Init.
func NewListener(ctx context.Context, wrap pubsub.Wrap[string]) *LogListener {
	if defaultLogger == nil || defaultLogger.broker == nil {
		return nil
	}
	return pubsub.NewListener(ctx, defaultLogger.broker.Subscribe(ctx), wrap)
}
