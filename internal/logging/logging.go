package logging

import (
	"io"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"sync/atomic"
)

type Options struct {
	Level string `koanf:"level"`
	JSON  bool   `koanf:"json"`
}

var def atomic.Value

func init() {
	def.Store(newLogger(os.Stderr, Options{}))
}

// Configure replaces the process-wide logger.
func Configure(opts Options) {
	def.Store(newLogger(os.Stderr, opts))
}

// SetOutput is Configure with an explicit writer; tests use it to capture logs.
func SetOutput(w io.Writer, opts Options) {
	def.Store(newLogger(w, opts))
}

func newLogger(w io.Writer, opts Options) *slog.Logger {
	cfg := &slog.HandlerOptions{Level: parseLevel(opts.Level)}
	var h slog.Handler
	if opts.JSON {
		h = slog.NewJSONHandler(w, cfg)
	} else {
		h = slog.NewTextHandler(w, cfg)
	}
	return slog.New(h)
}

func parseLevel(s string) slog.Level {
	s = strings.ToLower(strings.TrimSpace(s))
	switch s {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func L() *slog.Logger {
	l, _ := def.Load().(*slog.Logger)
	return l
}

// FromEnv overlays POINTCONV_LOG_LEVEL / POINTCONV_LOG_JSON on opts.
func FromEnv(opts Options) Options {
	if lvl := os.Getenv("POINTCONV_LOG_LEVEL"); lvl != "" {
		opts.Level = lvl
	}
	if b, err := strconv.ParseBool(strings.TrimSpace(os.Getenv("POINTCONV_LOG_JSON"))); err == nil {
		opts.JSON = b
	}
	return opts
}

func InitFromEnv() {
	Configure(FromEnv(Options{}))
}
