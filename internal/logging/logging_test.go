package logging

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	assert.Equal(t, slog.LevelDebug, parseLevel(" DEBUG "))
	assert.Equal(t, slog.LevelWarn, parseLevel("warn"))
	assert.Equal(t, slog.LevelError, parseLevel("error"))
	assert.Equal(t, slog.LevelInfo, parseLevel("bogus"))
	assert.Equal(t, slog.LevelInfo, parseLevel(""))
}

func TestSetOutput_JSON(t *testing.T) {
	var buf bytes.Buffer
	SetOutput(&buf, Options{Level: "debug", JSON: true})
	t.Cleanup(InitFromEnv)

	L().Debug("converted", "points", 3)

	var rec map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &rec))
	assert.Equal(t, "converted", rec["msg"])
	assert.EqualValues(t, 3, rec["points"])
}

func TestFromEnv(t *testing.T) {
	t.Setenv("POINTCONV_LOG_LEVEL", "warn")
	t.Setenv("POINTCONV_LOG_JSON", "true")

	opts := FromEnv(Options{Level: "info"})
	assert.Equal(t, "warn", opts.Level)
	assert.True(t, opts.JSON)
}
