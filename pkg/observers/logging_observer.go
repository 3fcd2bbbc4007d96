// Package observers provides lifecycle event sinks for tickfsm machines
package observers

import (
	"context"
	"log/slog"

	"github.com/anggasct/tickfsm"
)

// SlogLogger writes lifecycle events to a slog.Logger. Setup events are
// logged at debug, transitions at info, rejected attempts at warn and hook
// failures at error.
type SlogLogger struct {
	logger *slog.Logger
	levels map[tickfsm.EventKind]slog.Level
}

// SlogOption configures a SlogLogger
type SlogOption func(*SlogLogger)

// WithLevel overrides the level used for kind
func WithLevel(kind tickfsm.EventKind, level slog.Level) SlogOption {
	return func(l *SlogLogger) {
		l.levels[kind] = level
	}
}

// NewSlogLogger creates a logger writing to logger, or slog.Default() when nil
func NewSlogLogger(logger *slog.Logger, opts ...SlogOption) *SlogLogger {
	if logger == nil {
		logger = slog.Default()
	}

	l := &SlogLogger{
		logger: logger,
		levels: defaultLevels(),
	}

	for _, opt := range opts {
		opt(l)
	}

	return l
}

func defaultLevels() map[tickfsm.EventKind]slog.Level {
	return map[tickfsm.EventKind]slog.Level{
		tickfsm.EventStateAdded:         slog.LevelDebug,
		tickfsm.EventTransitionAdded:    slog.LevelDebug,
		tickfsm.EventInitialised:        slog.LevelDebug,
		tickfsm.EventResourcesLoaded:    slog.LevelDebug,
		tickfsm.EventTransitionStarted:  slog.LevelDebug,
		tickfsm.EventStateExited:        slog.LevelDebug,
		tickfsm.EventStateEntered:       slog.LevelDebug,
		tickfsm.EventActivated:          slog.LevelInfo,
		tickfsm.EventTransitioned:       slog.LevelInfo,
		tickfsm.EventShutdown:           slog.LevelInfo,
		tickfsm.EventTransitionRejected: slog.LevelWarn,
		tickfsm.EventTransitionFailed:   slog.LevelError,
	}
}

// Log implements tickfsm.Logger
func (l *SlogLogger) Log(event tickfsm.LifecycleEvent) {
	level, ok := l.levels[event.Kind]
	if !ok {
		level = slog.LevelInfo
	}

	// A failed shutdown is a failure whatever the configured level.
	if event.Kind == tickfsm.EventShutdown && event.Err != nil {
		level = slog.LevelError
	}

	ctx := context.Background()
	if !l.logger.Enabled(ctx, level) {
		return
	}

	attrs := []slog.Attr{
		slog.String("machine", event.Machine),
		slog.String("machine_id", event.MachineID),
	}
	if event.TransitionID != "" {
		attrs = append(attrs, slog.String("transition_id", event.TransitionID))
	}
	if event.State != "" {
		attrs = append(attrs, slog.String("state", event.State))
	}
	if event.From != "" {
		attrs = append(attrs, slog.String("from", event.From))
	}
	if event.To != "" {
		attrs = append(attrs, slog.String("to", event.To))
	}
	if !event.Payload.IsEmpty() {
		attrs = append(attrs, slog.String("payload_type", event.Payload.TypeName()))
	}
	if event.Err != nil {
		attrs = append(attrs,
			slog.String("error", event.Err.Error()),
			slog.String("error_code", tickfsm.GetErrorCode(event.Err).String()),
		)
	}

	record := slog.NewRecord(event.Time, level, "tickfsm "+event.Kind.String(), 0)
	record.AddAttrs(attrs...)
	_ = l.logger.Handler().Handle(ctx, record)
}
