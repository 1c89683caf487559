package app

import (
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/lmittmann/tint"

	"github.com/flemzord/scout/internal/config"
	"github.com/flemzord/scout/internal/security"
)

// newLogger builds the root logger. Every format is wrapped in a
// redacting handler so registered credentials never reach the output.
func newLogger(w io.Writer, format string, level slog.Level, redactor *security.Redactor) *slog.Logger {
	if w == nil {
		w = os.Stderr
	}

	var inner slog.Handler
	switch format {
	case config.LogFormatJSON:
		inner = slog.NewJSONHandler(w, &slog.HandlerOptions{Level: level})
	case config.LogFormatPretty:
		inner = tint.NewHandler(w, &tint.Options{
			Level:      level,
			TimeFormat: time.Kitchen,
			ReplaceAttr: func(_ []string, a slog.Attr) slog.Attr {
				if a.Value.Kind() == slog.KindAny {
					if _, ok := a.Value.Any().(error); ok {
						return tint.Attr(9, a)
					}
				}
				return a
			},
		})
	default:
		inner = slog.NewTextHandler(w, &slog.HandlerOptions{Level: level})
	}
	return slog.New(security.NewRedactingHandler(inner, redactor))
}

// resolveLevel prefers an explicit override over the configured level.
func resolveLevel(override, configured string) slog.Level {
	for _, s := range []string{override, configured} {
		if s == "" {
			continue
		}
		if level, err := config.ParseLevel(s); err == nil {
			return level
		}
	}
	return slog.LevelInfo
}
