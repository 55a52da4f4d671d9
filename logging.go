package atom

import (
	"context"
	"log/slog"
	"time"
)

// EventKind identifies what a LogEvent describes.
type EventKind string

const (
	EventUpdate     EventKind = "update"
	EventSet        EventKind = "set"
	EventWatcher    EventKind = "watcher"
	EventProjection EventKind = "projection"
	EventActivity   EventKind = "activity"
	EventEvaluate   EventKind = "evaluate"
)

// LogEvent describes a store operation for logging.
type LogEvent struct {
	Store     string
	Kind      EventKind
	Version   uint64
	Published bool
	Applied   []string
	Watcher   string
	Engine    string
	Expr      string
	Duration  time.Duration
	Err       error
}

// Logger records store events.
type Logger interface {
	LogEvent(LogEvent)
}

// LoggerFunc adapts a function to Logger.
type LoggerFunc func(LogEvent)

// LogEvent implements Logger.
func (f LoggerFunc) LogEvent(event LogEvent) {
	if f != nil {
		f(event)
	}
}

type noopLogger struct{}

func (noopLogger) LogEvent(LogEvent) {}

// NewSlogLogger adapts a *slog.Logger. Failures log at error level,
// projection and activity failures at warn, everything else at debug.
func NewSlogLogger(logger *slog.Logger) Logger {
	if logger == nil {
		logger = slog.Default()
	}
	return &slogLogger{log: logger.With("component", "atom")}
}

type slogLogger struct {
	log *slog.Logger
}

func (l *slogLogger) LogEvent(event LogEvent) {
	attrs := []slog.Attr{
		slog.String("store", event.Store),
		slog.String("kind", string(event.Kind)),
		slog.Uint64("version", event.Version),
	}
	if event.Kind == EventUpdate || event.Kind == EventSet {
		attrs = append(attrs, slog.Bool("published", event.Published))
	}
	if len(event.Applied) > 0 {
		attrs = append(attrs, slog.Any("applied", event.Applied))
	}
	if event.Watcher != "" {
		attrs = append(attrs, slog.String("watcher", event.Watcher))
	}
	if event.Engine != "" {
		attrs = append(attrs, slog.String("engine", event.Engine), slog.String("expr", event.Expr))
	}
	if event.Duration > 0 {
		attrs = append(attrs, slog.Duration("duration", event.Duration))
	}

	level := slog.LevelDebug
	msg := "atom " + string(event.Kind)
	if event.Err != nil {
		attrs = append(attrs, slog.Any("error", event.Err))
		level = slog.LevelError
		if event.Kind == EventProjection || event.Kind == EventActivity {
			level = slog.LevelWarn
		}
	}
	l.log.LogAttrs(context.Background(), level, msg, attrs...)
}
