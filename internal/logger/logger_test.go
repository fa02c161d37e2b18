package logger_test

import (
	"bytes"
	"testing"

	"codeberg.org/mutker/ecodanctl/internal/logger"
	"github.com/stretchr/testify/assert"
)

func TestComponentLogger(t *testing.T) {
	var buf bytes.Buffer
	logger.InitWithWriter(&buf, "debug", true)

	logger.With("poller").Info().Str("cycle_id", "abc").Msg("Cycle complete")

	out := buf.String()
	assert.Contains(t, out, "Cycle complete")
	assert.Contains(t, out, "component=poller")
	assert.Contains(t, out, "cycle_id=abc")
}

func TestLevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	logger.InitWithWriter(&buf, "warn", true)
	defer logger.SetLogLevel(logger.InfoLevel)

	logger.Info().Msg("hidden")
	logger.Warn().Msg("shown")

	assert.NotContains(t, buf.String(), "hidden")
	assert.Contains(t, buf.String(), "shown")
}

func TestParseLevel(t *testing.T) {
	assert.Equal(t, logger.DebugLevel, logger.ParseLevel("DEBUG"))
	assert.Equal(t, logger.WarnLevel, logger.ParseLevel("warning"))
	assert.Equal(t, logger.ErrorLevel, logger.ParseLevel("error"))
	assert.Equal(t, logger.InfoLevel, logger.ParseLevel(""))
}
