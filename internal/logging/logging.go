// Package logging configures log/slog for the whole process. Loggers handed
// out by L before Init runs follow the handler Init installs later.
package logging

import (
	"context"
	"io"
	"log/slog"
	"os"
	"strings"
	"sync/atomic"
)

// Structured field keys.
const (
	KeyComponent = "component"
	KeyConnID    = "connId"
	KeyRemote    = "remote"
	KeyPath      = "path"
	KeyError     = "error"
)

// root holds the handler every logger ultimately writes through.
var root atomic.Pointer[slog.Handler]

// step is one WithAttrs or WithGroup call, replayed in order onto the current
// root handler.
type step struct {
	attrs []slog.Attr
	group string
}

// deferredHandler records With* calls and applies them to whatever handler
// is installed at the time a record is handled.
type deferredHandler struct {
	steps []step
}

func (h deferredHandler) resolve() slog.Handler {
	handler := *root.Load()
	for _, s := range h.steps {
		if s.group != "" {
			handler = handler.WithGroup(s.group)
		} else {
			handler = handler.WithAttrs(s.attrs)
		}
	}
	return handler
}

func (h deferredHandler) with(s step) deferredHandler {
	steps := make([]step, len(h.steps), len(h.steps)+1)
	copy(steps, h.steps)
	return deferredHandler{steps: append(steps, s)}
}

func (h deferredHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return (*root.Load()).Enabled(ctx, level)
}

func (h deferredHandler) Handle(ctx context.Context, r slog.Record) error {
	return h.resolve().Handle(ctx, r)
}

func (h deferredHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	if len(attrs) == 0 {
		return h
	}
	return h.with(step{attrs: attrs})
}

func (h deferredHandler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}
	return h.with(step{group: name})
}

func install(h slog.Handler) {
	root.Store(&h)
}

func init() {
	install(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	slog.SetDefault(slog.New(deferredHandler{}))
}

// Init installs the process handler. format is "json" or "text"; level is
// debug, info, warn or error; a nil output means stdout. Unknown values fall
// back to text at info.
func Init(format, level string, output io.Writer) {
	if output == nil {
		output = os.Stdout
	}
	opts := &slog.HandlerOptions{Level: ParseLevel(level)}
	if strings.EqualFold(format, "json") {
		install(slog.NewJSONHandler(output, opts))
	} else {
		install(slog.NewTextHandler(output, opts))
	}
}

// L returns a logger tagged with the given component name.
func L(component string) *slog.Logger {
	return slog.New(deferredHandler{}).With(slog.String(KeyComponent, component))
}

// Or returns logger, or the component logger when logger is nil.
func Or(logger *slog.Logger, component string) *slog.Logger {
	if logger != nil {
		return logger
	}
	return L(component)
}

// WithConn tags logger with a connection ID and remote address.
func WithConn(logger *slog.Logger, connID, remote string) *slog.Logger {
	return logger.With(slog.String(KeyConnID, connID), slog.String(KeyRemote, remote))
}

// ParseLevel maps a level name to a slog.Level, defaulting to info.
func ParseLevel(s string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
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
