package fsm

import (
	"context"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "fsm"

// TracingObserver records each transition as an OpenTelemetry span that
// starts when the transition is entered and ends when it is committed or
// cancelled. Forced switches are recorded as zero-length spans.
//
// The observer may be shared between machines ticked on different
// goroutines.
type TracingObserver struct {
	NopObserver

	ctx context.Context //nolint:containedctx // parent for spans started inside the tick loop

	mut   sync.Mutex
	spans map[*Machine]trace.Span
}

// NewTracingObserver creates an observer whose spans are children of ctx.
// It uses the global tracer provider (see the telemetry package).
func NewTracingObserver(ctx context.Context) *TracingObserver {
	if ctx == nil {
		ctx = context.Background()
	}

	return &TracingObserver{
		ctx:   ctx,
		spans: make(map[*Machine]trace.Span),
	}
}

func (o *TracingObserver) TransitionBegan(m *Machine, t Transition) {
	_, span := otel.Tracer(tracerName).Start(o.ctx, "transition."+t.Name())
	span.SetAttributes(
		attribute.String("machine", m.Name()),
		attribute.String("transition", t.Name()),
		attribute.String("from", stateName(t.From())),
		attribute.String("to", stateName(t.To())),
	)

	o.mut.Lock()
	defer o.mut.Unlock()

	if prev, ok := o.spans[m]; ok {
		prev.End()
	}

	o.spans[m] = span
}

func (o *TracingObserver) TransitionEnded(m *Machine, t Transition) {
	o.finish(m, func(span trace.Span) {
		span.SetStatus(codes.Ok, "completed")
	})
}

func (o *TracingObserver) TransitionCancelled(m *Machine, t Transition) {
	o.finish(m, func(span trace.Span) {
		span.SetAttributes(
			attribute.Bool("cancelled", true),
			attribute.Float64("progress", t.Progress()),
		)
		span.SetStatus(codes.Unset, "cancelled")
	})
}

func (o *TracingObserver) StateChanged(m *Machine, from, to State, forced bool) {
	if !forced {
		return
	}

	_, span := otel.Tracer(tracerName).Start(o.ctx, "switch."+stateName(to))
	span.SetAttributes(
		attribute.String("machine", m.Name()),
		attribute.String("from", stateName(from)),
		attribute.String("to", stateName(to)),
	)
	span.End()
}

func (o *TracingObserver) Stopped(m *Machine) {
	o.finish(m, func(span trace.Span) {
		span.SetAttributes(attribute.Bool("stopped", true))
	})
}

func (o *TracingObserver) finish(m *Machine, annotate func(span trace.Span)) {
	o.mut.Lock()
	span, ok := o.spans[m]
	delete(o.spans, m)
	o.mut.Unlock()

	if !ok {
		return
	}

	annotate(span)
	span.End()
}
