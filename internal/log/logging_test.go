package log

import (
	"bytes"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	assert.Equal(t, LevelTrace, ParseLevel("trace"))
	assert.Equal(t, slog.LevelDebug, ParseLevel("debug"))
	assert.Equal(t, slog.LevelInfo, ParseLevel(""))
	assert.Equal(t, slog.LevelWarn, ParseLevel("warn"))
	assert.Equal(t, slog.LevelError, ParseLevel("error"))
	assert.Equal(t, slog.LevelInfo, ParseLevel("bogus"))
}

func TestSetupLoggerSplitsStreams(t *testing.T) {
	var stdout, stderr bytes.Buffer
	logger, closers, err := setupLogger(Config{Level: "trace"}, &stdout, &stderr)
	require.NoError(t, err)
	assert.Empty(t, closers)

	logger.Log(t.Context(), LevelTrace, "cycle")
	logger.Info("hello", "slot", 1)
	logger.Error("boom")

	assert.Contains(t, stdout.String(), "level=TRACE msg=cycle")
	assert.Contains(t, stdout.String(), "msg=hello slot=1")
	assert.NotContains(t, stdout.String(), "boom")
	assert.Contains(t, stderr.String(), "msg=boom")
}

func TestSetupLoggerFiltersBelowLevel(t *testing.T) {
	var stdout, stderr bytes.Buffer
	logger, _, err := setupLogger(Config{Level: "warn"}, &stdout, &stderr)
	require.NoError(t, err)

	logger.Info("quiet")
	logger.Warn("loud")
	assert.NotContains(t, stdout.String(), "quiet")
	assert.Contains(t, stdout.String(), "loud")
}

func TestRawLogger(t *testing.T) {
	var buf bytes.Buffer
	r := NewRaw(&buf)
	r.Frame("1.2.3.4:5", true, []byte{0x01, 0xab})
	r.Frame("1.2.3.4:5", false, nil)
	assert.Contains(t, buf.String(), "1.2.3.4:5 R->B 2 bytes: 01 ab")
	assert.Equal(t, 1, bytes.Count(buf.Bytes(), []byte("\n")))

	NewRaw(nil).Frame("x", false, []byte{1})
}
