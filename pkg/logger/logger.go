package logger

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/term"

	"eoscraper/pkg/config"
)

// Version is stamped on every log line
var Version = "dev"

// Logger is the structured logger every component receives
type Logger interface {
	Debug(msg string)
	Info(msg string)
	Warn(msg string)
	Error(msg string)

	// Child loggers carry their fields on every event
	WithField(key string, value interface{}) Logger
	WithFields(fields map[string]interface{}) Logger
	WithError(err error) Logger

	DebugWithFields(msg string, fields map[string]interface{})
	InfoWithFields(msg string, fields map[string]interface{})
	WarnWithFields(msg string, fields map[string]interface{})
	ErrorWithFields(msg string, fields map[string]interface{})
}

type zerologLogger struct {
	logger *zerolog.Logger
	fields map[string]interface{}
}

// New creates a Logger writing to stderr and, when configured, to a file
func New(cfg *config.LoggingConfig) (Logger, error) {
	return NewWithWriter(cfg, os.Stderr)
}

// NewWithWriter creates a Logger whose console stream goes to out. The
// format "auto" picks the colored console writer when out is a terminal and
// JSON lines otherwise.
func NewWithWriter(cfg *config.LoggingConfig, out io.Writer) (Logger, error) {
	zlog, err := build(cfg, out)
	if err != nil {
		return nil, err
	}
	return &zerologLogger{logger: zlog}, nil
}

func build(cfg *config.LoggingConfig, out io.Writer) (*zerolog.Logger, error) {
	level, err := parseLogLevel(cfg.Level)
	if err != nil {
		return nil, fmt.Errorf("invalid log level: %w", err)
	}
	zerolog.SetGlobalLevel(level)
	zerolog.TimeFieldFormat = time.RFC3339

	var console io.Writer
	switch strings.ToLower(cfg.Format) {
	case "json":
		console = out
	case "console":
		console = newConsoleWriter(out)
	case "", "auto":
		console = out
		if f, ok := out.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
			console = newConsoleWriter(out)
		}
	default:
		return nil, fmt.Errorf("unknown log format: %s", cfg.Format)
	}

	output := console
	if cfg.File != "" {
		file, err := openLogFile(cfg.File)
		if err != nil {
			return nil, fmt.Errorf("failed to setup file output: %w", err)
		}
		// The file always receives JSON lines
		output = zerolog.MultiLevelWriter(console, file)
	}

	zlog := zerolog.New(output).With().
		Timestamp().
		Str("app", "eoscraper").
		Str("version", Version).
		Logger()
	return &zlog, nil
}

func newConsoleWriter(out io.Writer) zerolog.ConsoleWriter {
	levels := map[string]string{
		"debug": "\033[37mDEBG\033[0m",
		"info":  "\033[32mINFO\033[0m",
		"warn":  "\033[33mWARN\033[0m",
		"error": "\033[31mERRO\033[0m",
		"fatal": "\033[35mFATL\033[0m",
	}
	return zerolog.ConsoleWriter{
		Out:           out,
		TimeFormat:    "15:04:05",
		FieldsExclude: []string{"app", "version"},
		FormatLevel: func(i interface{}) string {
			s, _ := i.(string)
			if colored, ok := levels[s]; ok {
				return colored
			}
			return strings.ToUpper(s)
		},
		FormatMessage: func(i interface{}) string {
			if i == nil {
				return ""
			}
			return fmt.Sprintf("| %s", i)
		},
		FormatFieldName: func(i interface{}) string {
			return fmt.Sprintf("\033[36m%s\033[0m:", i)
		},
	}
}

func openLogFile(path string) (io.Writer, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("failed to create log directory: %w", err)
	}
	file, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
	if err != nil {
		return nil, fmt.Errorf("failed to open log file: %w", err)
	}
	return file, nil
}

// parseLogLevel accepts zerolog's level names plus "warning". Trace and
// panic are not offered.
func parseLogLevel(level string) (zerolog.Level, error) {
	name := strings.ToLower(strings.TrimSpace(level))
	if name == "warning" {
		name = "warn"
	}
	switch name {
	case "debug", "info", "warn", "error", "fatal", "disabled":
		return zerolog.ParseLevel(name)
	default:
		return zerolog.InfoLevel, fmt.Errorf("unknown log level: %q", level)
	}
}

func (l *zerologLogger) Debug(msg string) { l.logger.Debug().Fields(l.fields).Msg(msg) }
func (l *zerologLogger) Info(msg string)  { l.logger.Info().Fields(l.fields).Msg(msg) }
func (l *zerologLogger) Warn(msg string)  { l.logger.Warn().Fields(l.fields).Msg(msg) }
func (l *zerologLogger) Error(msg string) { l.logger.Error().Fields(l.fields).Msg(msg) }

func (l *zerologLogger) WithField(key string, value interface{}) Logger {
	return l.WithFields(map[string]interface{}{key: value})
}

// WithFields returns a child logger carrying the union of both field sets
func (l *zerologLogger) WithFields(fields map[string]interface{}) Logger {
	merged := make(map[string]interface{}, len(l.fields)+len(fields))
	for k, v := range l.fields {
		merged[k] = v
	}
	for k, v := range fields {
		merged[k] = v
	}
	return &zerologLogger{logger: l.logger, fields: merged}
}

func (l *zerologLogger) WithError(err error) Logger {
	if err == nil {
		return l
	}
	return l.WithField("error", err.Error())
}

func (l *zerologLogger) DebugWithFields(msg string, fields map[string]interface{}) {
	l.logger.Debug().Fields(l.fields).Fields(fields).Msg(msg)
}

func (l *zerologLogger) InfoWithFields(msg string, fields map[string]interface{}) {
	l.logger.Info().Fields(l.fields).Fields(fields).Msg(msg)
}

func (l *zerologLogger) WarnWithFields(msg string, fields map[string]interface{}) {
	l.logger.Warn().Fields(l.fields).Fields(fields).Msg(msg)
}

func (l *zerologLogger) ErrorWithFields(msg string, fields map[string]interface{}) {
	l.logger.Error().Fields(l.fields).Fields(fields).Msg(msg)
}

var globalLogger Logger

// Initialize sets up the global logger. zerolog's package logger is pointed
// at the same outputs so library log lines end up in the same place.
func Initialize(cfg *config.LoggingConfig) error {
	zlog, err := build(cfg, os.Stderr)
	if err != nil {
		return err
	}
	globalLogger = &zerologLogger{logger: zlog}
	log.Logger = *zlog
	return nil
}

// GetLogger returns the global logger, creating an info level one on first
// use when Initialize was never called
func GetLogger() Logger {
	if globalLogger == nil {
		globalLogger, _ = New(&config.LoggingConfig{Level: "info"})
	}
	return globalLogger
}
