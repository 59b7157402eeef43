package lgr

import (
	"io"
	"log/slog"
	"os"
	"strconv"
	"strings"

	"github.com/natefinch/lumberjack"
)

// Logger is the process-wide structured logger. It is replaced by Configure
// once the environment (and .env file) has been loaded.
var Logger = New(Options{Format: "pretty", Level: slog.LevelInfo, Out: os.Stdout})

type Options struct {
	Format string // pretty or json
	Level  slog.Level
	Out    io.Writer

	// Optional rotating JSON file sink
	File           string
	FileMaxSize    int // MB
	FileMaxBackups int
	FileMaxAge     int // days
}

// Configure rebuilds Logger from LOG_FORMAT, LOG_LEVEL and LOG_FILE*.
func Configure() {
	Logger = New(Options{
		Format:         getEnvOrDefault("LOG_FORMAT", "pretty"),
		Level:          parseLevel(os.Getenv("LOG_LEVEL")),
		Out:            os.Stdout,
		File:           os.Getenv("LOG_FILE"),
		FileMaxSize:    getEnvAsIntOrDefault("LOG_FILE_MAX_SIZE", 10),
		FileMaxBackups: getEnvAsIntOrDefault("LOG_FILE_MAX_BACKUPS", 5),
		FileMaxAge:     getEnvAsIntOrDefault("LOG_FILE_MAX_AGE", 7),
	})
}

func New(opts Options) *slog.Logger {
	handlerOpts := &slog.HandlerOptions{
		Level:       opts.Level,
		ReplaceAttr: replaceAttr,
	}

	out := opts.Out
	if out == nil {
		out = os.Stdout
	}

	var console slog.Handler
	if opts.Format == "json" {
		console = slog.NewJSONHandler(out, handlerOpts)
	} else {
		console = NewPrettyHandler(out, handlerOpts)
	}

	handlers := []slog.Handler{console}
	if opts.File != "" {
		handlers = append(handlers, slog.NewJSONHandler(&lumberjack.Logger{
			Filename:   opts.File,
			MaxSize:    opts.FileMaxSize,
			MaxBackups: opts.FileMaxBackups,
			MaxAge:     opts.FileMaxAge,
			Compress:   true,
		}, handlerOpts))
	}

	return slog.New(&traceHandler{next: newFanoutHandler(handlers...)})
}

func parseLevel(s string) slog.Level {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsIntOrDefault(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}
