package logging

import (
	"bytes"
	"encoding/json"
	"errors"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vmap/mapviewer/internal/dispatcher"
)

var _ dispatcher.Logger = (*DispatcherLogger)(nil)

func decodeLine(t *testing.T, buf *bytes.Buffer) map[string]any {
	t.Helper()
	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	return entry
}

func TestDispatcherLogger_Levels(t *testing.T) {
	tests := []struct {
		level string
		log   func(*DispatcherLogger)
	}{
		{"debug", func(dl *DispatcherLogger) { dl.Debug("event", "type", "map.click") }},
		{"info", func(dl *DispatcherLogger) { dl.Info("event", "type", "map.click") }},
		{"warn", func(dl *DispatcherLogger) { dl.Warn("event", "type", "map.click") }},
		{"error", func(dl *DispatcherLogger) { dl.Error("event", "type", "map.click") }},
	}

	for _, tt := range tests {
		t.Run(tt.level, func(t *testing.T) {
			var buf bytes.Buffer
			dl := NewDispatcherLogger(zerolog.New(&buf).Level(zerolog.DebugLevel))

			tt.log(dl)

			entry := decodeLine(t, &buf)
			assert.Equal(t, tt.level, entry["level"])
			assert.Equal(t, "event", entry["message"])
			assert.Equal(t, "map.click", entry["type"])
		})
	}
}

func TestDispatcherLogger_NumericField(t *testing.T) {
	var buf bytes.Buffer
	dl := NewDispatcherLogger(zerolog.New(&buf))

	dl.Error("handler failed", "code", 500, "reason", "internal")

	entry := decodeLine(t, &buf)
	assert.Equal(t, float64(500), entry["code"])
	assert.Equal(t, "internal", entry["reason"])
}

func TestDispatcherLogger_FilteredByLevel(t *testing.T) {
	var buf bytes.Buffer
	dl := NewDispatcherLogger(zerolog.New(&buf).Level(zerolog.InfoLevel))

	dl.Debug("dropped")
	assert.Empty(t, buf.String())
}

func TestDispatcherLogger_SkipsMalformedPairs(t *testing.T) {
	var buf bytes.Buffer
	dl := NewDispatcherLogger(zerolog.New(&buf))

	dl.Info("pairs", "a", 1, 2, "skipped", "dangling")

	entry := decodeLine(t, &buf)
	assert.Equal(t, float64(1), entry["a"])
	assert.NotContains(t, entry, "dangling")
	assert.Len(t, entry, 3) // level, message, a
}

func TestDispatcherLogger_ErrorValue(t *testing.T) {
	var buf bytes.Buffer
	dl := NewDispatcherLogger(zerolog.New(&buf))

	dl.Error("event failed", "error", errors.New("marker 3 not found"))

	entry := decodeLine(t, &buf)
	assert.Equal(t, "marker 3 not found", entry["error"])
}
