package fsm

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"testing"

	"github.com/amp-labs/amp-fsm/logger"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

// runPatrol drives a small machine through one committed transition, one
// cancelled transition, a forced switch and a stop.
func runPatrol(name string, o Observer) {
	idle := NewState("idle")
	walk := NewState("walk")
	alert := NewState("alert")

	Link("start", idle, walk, BeginAfter(1))
	Link("slow", walk, idle, BeginAfter(1), Duration(10))

	m := New(name, idle, WithObserver(o))
	m.Add("idle", idle)
	m.Add("walk", walk)
	m.Add("alert", alert)

	m.Update(1) // start begins
	m.Update(1) // start commits
	m.Update(1) // slow begins
	m.SwitchToName("alert", false)
	m.Stop()
}

//nolint:paralleltest // Reads global Prometheus metrics
func TestMetricsObserver(t *testing.T) {
	const name = "metrics-observer-test"

	runPatrol(name, NewMetricsObserver())

	assert.InDelta(t, 3, testutil.ToFloat64(ticksTotal.WithLabelValues(name)), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(stateChangesTotal.WithLabelValues(name, "idle", "walk", "transition")), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(stateChangesTotal.WithLabelValues(name, "walk", "alert", "switch")), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(transitionsStartedTotal.WithLabelValues(name, "start")), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(transitionsCompletedTotal.WithLabelValues(name, "start")), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(transitionsStartedTotal.WithLabelValues(name, "slow")), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(transitionsCancelledTotal.WithLabelValues(name, "slow")), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(stopsTotal.WithLabelValues(name)), 0)
	assert.Equal(t, "none", sanitizeName(""))
}

//nolint:paralleltest // Replaces the global tracer provider
func TestTracingObserver(t *testing.T) {
	exporter := tracetest.NewInMemoryExporter()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSyncer(exporter))

	old := otel.GetTracerProvider()
	otel.SetTracerProvider(tp)
	t.Cleanup(func() { otel.SetTracerProvider(old) })

	runPatrol("tracing-observer-test", NewTracingObserver(t.Context()))

	spans := exporter.GetSpans()
	require.Len(t, spans, 3)

	byName := map[string]tracetest.SpanStub{}
	for _, span := range spans {
		byName[span.Name] = span
	}

	require.Contains(t, byName, "transition.start")
	require.Contains(t, byName, "transition.slow")
	require.Contains(t, byName, "switch.alert")

	attrs := map[string]any{}
	for _, attr := range byName["transition.slow"].Attributes {
		attrs[string(attr.Key)] = attr.Value.AsInterface()
	}

	assert.Equal(t, "tracing-observer-test", attrs["machine"])
	assert.Equal(t, "walk", attrs["from"])
	assert.Equal(t, "idle", attrs["to"])
	assert.Equal(t, true, attrs["cancelled"])
}

//nolint:paralleltest // Replaces the default logger
func TestLoggingObserver(t *testing.T) {
	var buf bytes.Buffer

	logger.ConfigureLoggingWithOptions(logger.Options{
		Subsystem: "fsm-test",
		JSON:      true,
		MinLevel:  slog.LevelDebug,
		Output:    &buf,
	})
	t.Cleanup(func() { slog.SetDefault(slog.New(slog.DiscardHandler)) })

	ctx := logger.With(context.Background(), "entity", "guard-1")
	runPatrol("logging-observer-test", NewLoggingObserver(ctx))

	var msgs []string

	for _, line := range bytes.Split(bytes.TrimSpace(buf.Bytes()), []byte("\n")) {
		var rec map[string]any
		require.NoError(t, json.Unmarshal(line, &rec))

		assert.Equal(t, "guard-1", rec["entity"])
		assert.Equal(t, "logging-observer-test", rec["machine"])

		msgs = append(msgs, rec["msg"].(string)) //nolint:forcetypeassert
	}

	assert.Equal(t, []string{
		"Transition began",
		"State changed",
		"Transition ended",
		"Transition began",
		"Transition cancelled",
		"State changed",
		"State machine stopped",
	}, msgs)
}
