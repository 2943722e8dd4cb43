package logger

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSlogLoggerLevelFiltering(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	log := NewSlogLogger(&buf, LogLevelWarn, nil)

	log.Debug("debug line")
	log.Info("info line")
	log.Warn("warn line")
	log.Error("error line")

	out := buf.String()
	assert.NotContains(t, out, "debug line")
	assert.NotContains(t, out, "info line")
	assert.Contains(t, out, "warn line")
	assert.Contains(t, out, "error line")
}

func TestSlogLoggerFields(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	log := NewSlogLogger(&buf, LogLevelInfo, nil)

	log.Info("capture started",
		String("role", "outdoor"),
		Int("attempt", 3),
		Bool("recovered", true))

	out := buf.String()
	assert.Contains(t, out, "role=outdoor")
	assert.Contains(t, out, "attempt=3")
	assert.Contains(t, out, "recovered=true")
}

func TestSlogLoggerWith(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	log := NewSlogLogger(&buf, LogLevelInfo, nil).With(String("component", "notifier"))

	log.Info("tick")
	log.Info("tick again")

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 2)
	for _, line := range lines {
		assert.Contains(t, line, "component=notifier")
	}
}

func TestErrorFieldNil(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	log := NewSlogLogger(&buf, LogLevelInfo, nil)

	log.Info("no failure", Error(nil))
	assert.Contains(t, buf.String(), `error=""`)
}
