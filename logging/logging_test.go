package logging

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

func TestZerologFields(t *testing.T) {
	var buf bytes.Buffer
	log := NewZerolog(zerolog.New(&buf))

	log.Warn("weak credentials",
		F("scheme", "plaintext"),
		F("err", errors.New("boom")),
		F("elapsed", 1500*time.Millisecond),
		F("count", 3),
	)

	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, "warn", line["level"])
	assert.Equal(t, "weak credentials", line["message"])
	assert.Equal(t, "plaintext", line["scheme"])
	assert.Equal(t, "boom", line["err"])
	assert.EqualValues(t, 1500, line["elapsed"])
	assert.EqualValues(t, 3, line["count"])
}

func TestZerologLevelFilter(t *testing.T) {
	var buf bytes.Buffer
	log := NewZerolog(zerolog.New(&buf).Level(zerolog.InfoLevel))

	log.Debug("hidden")
	assert.Zero(t, buf.Len())

	log.Error("shown")
	assert.Contains(t, buf.String(), "shown")
}

func TestNewConsoleUnknownLevel(t *testing.T) {
	var buf bytes.Buffer
	log := NewConsole(&buf, "chatty")

	log.Debug("hidden")
	log.Info("visible")
	assert.NotContains(t, buf.String(), "hidden")
	assert.Contains(t, buf.String(), "visible")
}

func TestRecorder(t *testing.T) {
	rec := &Recorder{}
	rec.Info("cache hit", F("endpoint", "ping"))
	rec.Warn("weak")
	rec.Warn("weak")

	assert.Len(t, rec.Entries(), 3)
	assert.Equal(t, 2, rec.Count("warn"))

	hits := rec.Find("cache hit")
	require.Len(t, hits, 1)
	assert.Equal(t, "ping", hits[0].Fields["endpoint"])
}

func TestOrNop(t *testing.T) {
	assert.Equal(t, Nop, OrNop(nil))
	rec := &Recorder{}
	assert.Equal(t, Logger(rec), OrNop(rec))
}
