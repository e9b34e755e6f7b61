package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func decodeLines(t *testing.T, buf *bytes.Buffer) []map[string]any {
	t.Helper()

	var records []map[string]any

	for _, line := range bytes.Split(bytes.TrimSpace(buf.Bytes()), []byte("\n")) {
		if len(line) == 0 {
			continue
		}

		var rec map[string]any
		require.NoError(t, json.Unmarshal(line, &rec))

		records = append(records, rec)
	}

	return records
}

func TestGetCarriesContextValues(t *testing.T) { //nolint:paralleltest // replaces the default logger
	var buf bytes.Buffer

	ConfigureLoggingWithOptions(Options{
		Subsystem: "fsm-test",
		JSON:      true,
		MinLevel:  slog.LevelDebug,
		Output:    &buf,
	})

	Get().Info("default subsystem")

	ctx := With(WithSubsystem(t.Context(), "world"), "entity", "e-1")
	ctx = With(ctx, "machine", "guard")
	Get(ctx).Info("enriched")

	Get(WithMuted(ctx, true)).Info("never written")

	records := decodeLines(t, &buf)
	require.Len(t, records, 2)

	assert.Equal(t, "fsm-test", records[0]["subsystem"])
	assert.Equal(t, "world", records[1]["subsystem"])
	assert.Equal(t, "e-1", records[1]["entity"])
	assert.Equal(t, "guard", records[1]["machine"])
	assert.NotEmpty(t, records[1]["pod"])
}

func TestLegacyLogRedirected(t *testing.T) { //nolint:paralleltest // replaces the default logger
	var buf bytes.Buffer

	ConfigureLoggingWithOptions(Options{
		Subsystem:   "fsm-test",
		JSON:        true,
		LegacyLevel: slog.LevelWarn,
		Output:      &buf,
	})

	log.Println("legacy line")

	records := decodeLines(t, &buf)
	require.Len(t, records, 1)
	assert.Equal(t, "WARN", records[0]["level"])
	assert.Equal(t, "legacy line", records[0]["msg"])
}

func TestAnnotatedErrorAttributesAreLogged(t *testing.T) { //nolint:paralleltest // replaces the default logger
	var buf bytes.Buffer

	ConfigureLoggingWithOptions(Options{JSON: true, Output: &buf})

	base := errors.New("unknown condition") //nolint:err113
	err := AnnotateError(base, "state", "idle", "transition", 2)

	require.ErrorIs(t, err, base)
	assert.Equal(t, "unknown condition", err.Error())

	Get().Error("build failed", "error", err)

	records := decodeLines(t, &buf)
	require.Len(t, records, 1)
	assert.Equal(t, "idle", records[0]["state"])
	assert.InDelta(t, 2, records[0]["transition"], 0)
}

func TestAttrs(t *testing.T) {
	t.Parallel()

	assert.NoError(t, AnnotateError(nil, "k", "v"))
	assert.Empty(t, Attrs(errors.New("plain"))) //nolint:err113

	inner := AnnotateError(errors.New("inner"), "a", 1) //nolint:err113
	outer := AnnotateError(inner, "b", 2)

	attrs := Attrs(outer)
	require.Len(t, attrs, 2)
	assert.Equal(t, "b", attrs[0].Key)
	assert.Equal(t, "a", attrs[1].Key)
}

func TestOutputFor(t *testing.T) {
	t.Parallel()

	_, err := outputFor("stderr")
	require.NoError(t, err)

	_, err = outputFor("syslog")
	require.ErrorIs(t, err, ErrInvalidLogOutput)
}

func TestGetWithNilContext(t *testing.T) {
	t.Parallel()

	//nolint:staticcheck // nil context is tolerated
	assert.NotNil(t, Get(nil, context.Background()))
}

func TestConfigureLoggingFansOutToHandlers(t *testing.T) { //nolint:paralleltest // replaces the default logger
	var primary, extra bytes.Buffer

	ConfigureLoggingWithOptions(Options{
		Subsystem: "fsm-test",
		JSON:      true,
		MinLevel:  slog.LevelInfo,
		Output:    &primary,
		Handlers:  []slog.Handler{slog.NewJSONHandler(&extra, &slog.HandlerOptions{Level: slog.LevelDebug})},
	})

	Get().Debug("dropped everywhere")
	Get().Info("fanned out", "machine", "guard")

	err := AnnotateError(errors.New("boom"), "entity", "e-1") //nolint:err113
	Get().Error("annotated", "error", err)

	for _, buf := range []*bytes.Buffer{&primary, &extra} {
		records := decodeLines(t, buf)
		require.Len(t, records, 2)

		assert.Equal(t, "fanned out", records[0]["msg"])
		assert.Equal(t, "guard", records[0]["machine"])
		assert.Equal(t, "fsm-test", records[0]["subsystem"])
		assert.Equal(t, "e-1", records[1]["entity"])
	}
}

func TestWithHandlerIgnoresNil(t *testing.T) {
	t.Parallel()

	var opts Options

	WithHandler(nil)(&opts)
	assert.Empty(t, opts.Handlers)

	WithHandler(slog.DiscardHandler)(&opts)
	assert.Len(t, opts.Handlers, 1)
}
