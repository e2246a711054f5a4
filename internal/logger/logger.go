package logger

import (
	"context"
	"io"
	"net/http"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

func init() {
	zerolog.TimeFieldFormat = time.RFC3339Nano
}

var (
	globalLogger *Logger
	once         sync.Once
	mu           sync.RWMutex

	defaultConfig = Config{
		Level:      "info",
		Format:     FormatConsole,
		TimeFormat: time.RFC3339,
	}
)

// Logger wraps zerolog.Logger with field-map helpers used across the module.
type Logger struct {
	zerolog.Logger
	level zerolog.Level
}

// LogFormat selects the output encoding.
type LogFormat string

const (
	// FormatJSON writes one JSON object per line
	FormatJSON LogFormat = "json"
	// FormatConsole writes human readable lines
	FormatConsole LogFormat = "console"
)

func (f LogFormat) String() string {
	return string(f)
}

// ParseLogFormat maps a configuration string to a LogFormat. Unknown values fall back to JSON.
func ParseLogFormat(format string) LogFormat {
	switch strings.ToLower(strings.TrimSpace(format)) {
	case "console", "text", "pretty":
		return FormatConsole
	default:
		return FormatJSON
	}
}

// Config holds the configuration for the logger
type Config struct {
	// Level is the log level (debug, info, warn, error)
	Level string
	// Format is the log format (json, console)
	Format LogFormat
	// Output defaults to os.Stdout
	Output io.Writer
	// TimeFormat defaults to time.RFC3339
	TimeFormat string
}

// Get returns the process-wide logger, creating it with defaults on first use.
func Get() *Logger {
	once.Do(func() {
		mu.Lock()
		defer mu.Unlock()
		if globalLogger == nil {
			globalLogger = newLogger(defaultConfig)
		}
	})
	mu.RLock()
	defer mu.RUnlock()
	return globalLogger
}

// Setup initializes the process-wide logger. Only the first call has an effect.
func Setup(cfg Config) {
	once.Do(func() {
		mu.Lock()
		defer mu.Unlock()
		globalLogger = newLogger(cfg)
	})
}

// ForceSetup replaces the process-wide logger regardless of earlier Setup calls.
func ForceSetup(cfg Config) {
	l := newLogger(cfg)
	once.Do(func() {})
	mu.Lock()
	globalLogger = l
	mu.Unlock()
}

// ResetForTesting clears the process-wide logger so tests can call Setup again.
func ResetForTesting() {
	mu.Lock()
	globalLogger = nil
	once = sync.Once{}
	mu.Unlock()
}

// New builds a standalone logger without touching the process-wide instance.
func New(cfg Config) *Logger {
	return newLogger(cfg)
}

func newLogger(cfg Config) *Logger {
	level := zerolog.InfoLevel
	if cfg.Level != "" {
		if parsed, err := zerolog.ParseLevel(strings.ToLower(cfg.Level)); err == nil && parsed != zerolog.NoLevel {
			level = parsed
		}
	}
	if cfg.Format == "" {
		cfg.Format = FormatJSON
	}
	if cfg.TimeFormat == "" {
		cfg.TimeFormat = time.RFC3339
	}
	output := cfg.Output
	if output == nil {
		output = os.Stdout
	}

	var zl zerolog.Logger
	switch cfg.Format {
	case FormatConsole:
		zl = zerolog.New(zerolog.ConsoleWriter{Out: output, TimeFormat: cfg.TimeFormat})
	default:
		zl = zerolog.New(output)
	}
	zl = zl.Level(level).With().Timestamp().Logger()

	return &Logger{Logger: zl, level: level}
}

// GetLevel returns the configured level.
func (l *Logger) GetLevel() zerolog.Level {
	if l == nil {
		return zerolog.NoLevel
	}
	return l.level
}

// WithFields returns a child logger carrying the given fields.
func (l *Logger) WithFields(fields map[string]interface{}) *Logger {
	if l == nil {
		return Get()
	}
	if len(fields) == 0 {
		return l
	}
	return &Logger{
		Logger: l.Logger.With().Fields(fields).Logger(),
		level:  l.level,
	}
}

// With is shorthand for WithFields.
func (l *Logger) With(fields map[string]interface{}) *Logger {
	return l.WithFields(fields)
}

func (l *Logger) emit(ev *zerolog.Event, msg string, fields []map[string]interface{}) {
	for _, f := range fields {
		if len(f) > 0 {
			ev = ev.Fields(f)
		}
	}
	ev.Msg(msg)
}

// Debug logs at debug level with optional fields.
func (l *Logger) Debug(msg string, fields ...map[string]interface{}) {
	if l == nil {
		return
	}
	l.emit(l.Logger.Debug(), msg, fields)
}

// Info logs at info level with optional fields.
func (l *Logger) Info(msg string, fields ...map[string]interface{}) {
	if l == nil {
		return
	}
	l.emit(l.Logger.Info(), msg, fields)
}

// Warn logs at warn level with optional fields.
func (l *Logger) Warn(msg string, fields ...map[string]interface{}) {
	if l == nil {
		return
	}
	l.emit(l.Logger.Warn(), msg, fields)
}

// Error logs at error level with optional fields.
func (l *Logger) Error(msg string, fields ...map[string]interface{}) {
	if l == nil {
		return
	}
	l.emit(l.Logger.Error(), msg, fields)
}

// Infof logs a formatted message at info level.
func (l *Logger) Infof(format string, args ...interface{}) {
	if l == nil {
		return
	}
	l.Logger.Info().Msgf(format, args...)
}

type loggerKey struct{}

// WithLogger stores l in ctx. A nil logger leaves ctx unchanged.
func WithLogger(ctx context.Context, l *Logger) context.Context {
	if l == nil {
		return ctx
	}
	return context.WithValue(ctx, loggerKey{}, l)
}

// FromContext returns the logger stored in ctx, or the process-wide logger.
func FromContext(ctx context.Context) *Logger {
	if ctx != nil {
		if l, ok := ctx.Value(loggerKey{}).(*Logger); ok {
			return l
		}
	}
	return Get()
}

// HTTPMiddleware logs one line per request.
func HTTPMiddleware(log *Logger, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rw := &statusRecorder{ResponseWriter: w, status: http.StatusOK}

		next.ServeHTTP(rw, r.WithContext(WithLogger(r.Context(), log)))

		log.Info("HTTP request", map[string]interface{}{
			"method":   r.Method,
			"path":     r.URL.Path,
			"status":   rw.status,
			"duration": time.Since(start).String(),
		})
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}
