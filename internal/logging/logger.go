// Package logging configures log/slog for the refiner and hands out loggers
// that carry the chi request id, so every line written while serving a
// request can be correlated.
package logging

import (
	"context"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/go-chi/chi/v5/middleware"
)

// Setup installs the default logger on stdout.
// level is one of debug, info, warn, error; format is text or json.
// Unknown values fall back to info and text.
func Setup(level, format string) {
	slog.SetDefault(New(os.Stdout, level, format))
}

// New builds a logger writing to w. Debug loggers also record the source
// position of each call.
func New(w io.Writer, level, format string) *slog.Logger {
	lvl := parseLevel(level)
	opts := &slog.HandlerOptions{
		Level:     lvl,
		AddSource: lvl == slog.LevelDebug,
	}

	if strings.EqualFold(format, "json") {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

func parseLevel(level string) slog.Level {
	switch strings.ToLower(level) {
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

// FromContext returns the default logger, tagged with request_id when ctx
// went through chi's RequestID middleware.
//
//	log := logging.FromContext(r.Context())
//	log.Info("file received", "filename", header.Filename)
func FromContext(ctx context.Context) *slog.Logger {
	logger := slog.Default()
	if reqID := middleware.GetReqID(ctx); reqID != "" {
		logger = logger.With("request_id", reqID)
	}
	return logger
}

// WithFields is FromContext plus args.
func WithFields(ctx context.Context, args ...any) *slog.Logger {
	return FromContext(ctx).With(args...)
}

// WithSession returns the logger used for everything that happens to one
// file: correction attempts, insertion and audit writes.
//
//	log := logging.WithSession(ctx, fs.ID, fs.Filename)
//	log.Info("correction applied", "source", fs.Source, "attempt", fs.Attempts)
func WithSession(ctx context.Context, sessionID, filename string) *slog.Logger {
	return WithFields(ctx, "session_id", sessionID, "filename", filename)
}
