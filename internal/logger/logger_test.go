package logger

import (
	"bytes"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLogger_WritesStructuredFields(t *testing.T) {
	var buf bytes.Buffer
	log := NewWithWriter(&buf, zerolog.InfoLevel).With(String("stage", "classify"))

	log.Info("labeled panel",
		Int("rows", 300),
		Float64("threshold", 0.2),
		Date("start", time.Date(2000, 1, 3, 0, 0, 0, 0, time.UTC)),
		Error(errors.New("boom")),
	)

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "labeled panel", entry["message"])
	assert.Equal(t, "classify", entry["stage"])
	assert.Equal(t, float64(300), entry["rows"])
	assert.Equal(t, 0.2, entry["threshold"])
	assert.Equal(t, "2000-01-03", entry["start"])
	assert.Equal(t, "boom", entry["error"])
}

func TestLogger_LevelFilters(t *testing.T) {
	var buf bytes.Buffer
	log := NewWithWriter(&buf, zerolog.WarnLevel)

	log.Info("hidden")
	assert.Zero(t, buf.Len())

	log.Warn("shown")
	assert.Contains(t, buf.String(), "shown")
}

func TestNew_RejectsUnknownLevel(t *testing.T) {
	_, err := New(&Config{Level: "loud", Format: "json"})
	assert.Error(t, err)
}

func TestNop_DoesNotPanic(t *testing.T) {
	Nop().Error("nothing", Any("k", map[string]int{"a": 1}))
}
