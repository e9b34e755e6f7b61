package fsm

import (
	"context"

	"github.com/amp-labs/amp-fsm/logger"
)

// LoggingObserver logs state changes and transition lifecycle through the
// logger package. Ticks are not logged.
type LoggingObserver struct {
	NopObserver

	ctx context.Context //nolint:containedctx // carries logger values for the tick loop
}

// NewLoggingObserver creates an observer that logs with the values attached
// to ctx (see logger.With).
func NewLoggingObserver(ctx context.Context) *LoggingObserver {
	if ctx == nil {
		ctx = context.Background()
	}

	return &LoggingObserver{ctx: ctx}
}

func (l *LoggingObserver) StateChanged(m *Machine, from, to State, forced bool) {
	logger.Get(l.ctx).DebugContext(l.ctx, "State changed",
		"machine", m.Name(),
		"from", stateName(from),
		"to", stateName(to),
		"forced", forced,
	)
}

func (l *LoggingObserver) TransitionBegan(m *Machine, t Transition) {
	logger.Get(l.ctx).DebugContext(l.ctx, "Transition began",
		"machine", m.Name(),
		"transition", t.Name(),
		"from", stateName(t.From()),
		"to", stateName(t.To()),
		"state_time", m.Current().Time(),
	)
}

func (l *LoggingObserver) TransitionEnded(m *Machine, t Transition) {
	logger.Get(l.ctx).DebugContext(l.ctx, "Transition ended",
		"machine", m.Name(),
		"transition", t.Name(),
	)
}

func (l *LoggingObserver) TransitionCancelled(m *Machine, t Transition) {
	logger.Get(l.ctx).InfoContext(l.ctx, "Transition cancelled",
		"machine", m.Name(),
		"transition", t.Name(),
		"progress", t.Progress(),
	)
}

func (l *LoggingObserver) Stopped(m *Machine) {
	logger.Get(l.ctx).InfoContext(l.ctx, "State machine stopped",
		"machine", m.Name(),
		"time", m.Time(),
	)
}
