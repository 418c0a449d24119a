// Package logging provides the farmtable structured logger built on
// [log/slog]. The process logger is built once at startup via [New] and
// handed to request and command code through [WithLogger] / [FromContext].
//
// Environment variables:
//
//	LOG_LEVEL  = debug | info | warn | error  (default: info)
//	LOG_FORMAT = json | text                  (default: json)
//	LOG_SOURCE = true                         (adds file:line to records)
//
// Attributes whose key names a credential (api_key, authorization, dsn and
// similar) are replaced with "[redacted]" before they reach the handler.
package logging

import (
	"context"
	"io"
	"log/slog"
	"os"
	"strings"
)

// Service is attached to every record as service=farmtable.
const Service = "farmtable"

// redacted replaces the value of credential attributes.
const redacted = "[redacted]"

// secretKeys are lower-cased attribute keys that never carry their value.
// Environment variable names are not listed; audit reduces those to
// set/unset itself.
var secretKeys = map[string]bool{
	"api_key":       true,
	"apikey":        true,
	"authorization": true,
	"password":      true,
	"token":         true,
	"secret":        true,
	"dsn":           true,
}

type contextKey struct{}

// New constructs the process logger from the environment, writing to stderr.
func New() *slog.Logger {
	return NewWithWriter(os.Stderr)
}

// NewWithWriter is [New] with an explicit destination.
func NewWithWriter(w io.Writer) *slog.Logger {
	opts := &slog.HandlerOptions{
		Level:       parseLevel(os.Getenv("LOG_LEVEL")),
		AddSource:   strings.EqualFold(os.Getenv("LOG_SOURCE"), "true"),
		ReplaceAttr: redact,
	}

	var handler slog.Handler
	if strings.EqualFold(os.Getenv("LOG_FORMAT"), "text") {
		handler = slog.NewTextHandler(w, opts)
	} else {
		handler = slog.NewJSONHandler(w, opts)
	}
	return slog.New(handler).With(slog.String("service", Service))
}

// redact is the ReplaceAttr hook. Groups are walked by slog itself, so only
// the leaf key matters.
func redact(_ []string, a slog.Attr) slog.Attr {
	if secretKeys[strings.ToLower(a.Key)] && a.Value.Kind() != slog.KindGroup {
		if a.Value.String() == "" {
			return slog.String(a.Key, "")
		}
		return slog.String(a.Key, redacted)
	}
	return a
}

// WithLogger returns a copy of ctx carrying logger.
func WithLogger(ctx context.Context, logger *slog.Logger) context.Context {
	return context.WithValue(ctx, contextKey{}, logger)
}

// FromContext returns the logger stored in ctx, or [slog.Default].
func FromContext(ctx context.Context) *slog.Logger {
	if l, ok := ctx.Value(contextKey{}).(*slog.Logger); ok && l != nil {
		return l
	}
	return slog.Default()
}

// parseLevel converts a string to a [slog.Level], defaulting to Info.
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
