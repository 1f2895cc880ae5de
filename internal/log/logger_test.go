package log

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	assert.Equal(t, slog.LevelDebug, ParseLevel("DEBUG"))
	assert.Equal(t, slog.LevelWarn, ParseLevel("warning"))
	assert.Equal(t, slog.LevelError, ParseLevel("error"))
	assert.Equal(t, slog.LevelInfo, ParseLevel("loud"))
}

func TestLoggerAddsComponent(t *testing.T) {
	var buf bytes.Buffer
	logger := New(Config{Level: slog.LevelInfo, Format: FormatJSON, Output: &buf, Component: ComponentLedger})

	logger.WithComponent(ComponentStore).Info("saved", FieldRevision, 3)

	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, "saved", line["msg"])
	assert.Equal(t, ComponentStore, line[FieldComponent])
	assert.Equal(t, float64(3), line[FieldRevision])
}

func TestStructuredLoggerLogError(t *testing.T) {
	var buf bytes.Buffer
	logger := New(Config{Level: slog.LevelInfo, Format: FormatJSON, Output: &buf, Component: ComponentStore})
	sl := NewStructuredLogger(logger)

	sl.LogError(context.Background(), "save failed", errors.New("disk full"), OpSave, NewFields().WithEntity("entry", "e1"))

	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, "ERROR", line["level"])
	assert.Equal(t, "disk full", line[FieldError])
	assert.Equal(t, OpSave, line[FieldOperation])
	assert.Equal(t, "e1", line[FieldEntityID])
}

func TestFromContext(t *testing.T) {
	logger := Discard().WithComponent(ComponentSearch)
	ctx := NewContext(context.Background(), logger)
	assert.Same(t, logger, FromContext(ctx))
	assert.Equal(t, "unknown", FromContext(context.Background()).Component())
}
