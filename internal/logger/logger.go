// Package logger provides structured logging setup for Titan.
package logger

import (
	"log/slog"
	"os"
	"strings"

	"github.com/titanchat/titan/internal/config"
)

var levelNames = map[string]slog.Level{
	"debug":   slog.LevelDebug,
	"info":    slog.LevelInfo,
	"warn":    slog.LevelWarn,
	"warning": slog.LevelWarn,
	"error":   slog.LevelError,
}

// New builds a *slog.Logger from the Logging config: JSON records on
// stdout, each carrying a "service" attribute. With Async set, records
// pass through a buffered async handler so slow stdout never stalls a
// streaming exchange; the returned Closer drains it on shutdown.
func New(cfg config.Logging) (*slog.Logger, Closer) {
	var handler slog.Handler = slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: parseLevel(cfg.Level),
	})

	closer := Closer(nopCloser{})
	if cfg.Async {
		async := NewAsyncHandler(handler, 4096, 1)
		handler = async
		closer = async
	}

	return slog.New(handler).With("service", cfg.Service), closer
}

// parseLevel maps a config string to a slog.Level, defaulting to Info
// for anything unrecognized.
func parseLevel(s string) slog.Level {
	if lvl, ok := levelNames[strings.ToLower(s)]; ok {
		return lvl
	}
	return slog.LevelInfo
}
